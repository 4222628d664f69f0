package types

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewID returns a new ULID-based identifier, grounded on the teacher's use
// of oklog/ulid for container and job IDs: lexically sortable by
// creation time, which keeps bbolt bucket scans and recovery ordering
// cheap without a secondary index.
func NewID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// ShortID returns the conventional 12-character prefix of a full ID, the
// form shown in `list` output and accepted as a prefix in ID resolution.
func ShortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12]
}

// LooksLikeID reports whether s is plausibly an ID (full or prefix)
// rather than a name, used by the resolver to decide which index to
// probe first. IDs in this daemon are uppercase Crockford base32 ULIDs.
func LooksLikeID(s string) bool {
	if len(s) < 4 {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789ABCDEFGHJKMNPQRSTVWXYZabcdefghjkmnpqrstvwxyz", r) {
			return false
		}
	}
	return true
}

// randomHex returns n random lowercase hex characters; it backs
// NewAttachToken.
func randomHex(n int) string {
	const alphabet = "0123456789abcdef"
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			panic(fmt.Sprintf("types: crypto/rand failed: %v", err))
		}
		buf[i] = alphabet[idx.Int64()]
	}
	return string(buf)
}

// NewAttachToken returns an opaque random 16-character hex token. The
// deferred-create attach path does not use it: concore queues attach
// handles by container ID.
func NewAttachToken() string {
	return randomHex(16)
}
