// Package vsockdial dials a guest VM's vsock control port, the
// transport every internal/guestrpc client rides on. Grounded on the
// teacher's use of github.com/mdlayher/vsock in
// macvmgr/vnet/cmd/gvnetclient for host<->guest socket-family framing.
package vsockdial

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/mdlayher/vsock"
)

// Dial opens a vsock connection to cid:port, the guest's vminit control
// port. A context deadline, if set, bounds the dial attempt.
func Dial(ctx context.Context, cid, port uint32) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		conn, err := vsock.Dial(cid, port, nil)
		ch <- result{conn, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("vsockdial: dial cid=%d port=%d: %w", cid, port, r.err)
		}
		return r.conn, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("vsockdial: dial cid=%d port=%d: %w", cid, port, ctx.Err())
	}
}

// DialWithRetry retries Dial with backoff until ctx is done, used right
// after a VM has been launched: the guest's vminit supervisor needs a
// moment to bring its vsock listener up before the host's first control
// call can land.
func DialWithRetry(ctx context.Context, cid, port uint32, initialBackoff time.Duration) (net.Conn, error) {
	backoff := initialBackoff
	var lastErr error
	for {
		conn, err := Dial(ctx, cid, port)
		if err == nil {
			return conn, nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("vsockdial: giving up after retries: %w (last: %v)", ctx.Err(), lastErr)
		case <-time.After(backoff):
		}
		if backoff < 2*time.Second {
			backoff *= 2
		}
	}
}
