package netcore

import (
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

// dnsTTLSeconds matches the teacher's mdns.go TTL choice: long enough
// that a busy network isn't flooded with re-queries, short enough that
// a removed/recreated container's stale mapping doesn't linger.
const dnsTTLSeconds = 5 * 60

// DNSRegistry serves authoritative A records for every container
// attached to networks this daemon manages, under a single internal
// zone (e.g. "arca.internal."). Grounded on the shape of the teacher's
// scon/mdns.go registry (a live name->IP map backing a DNS responder)
// generalized from mDNS (.orb.local, link-local multicast) to a plain
// unicast authoritative zone server, since nothing in this spec calls
// for multicast discovery specifically -- just "push network topology
// information to consumers", which an ordinary zone satisfies.
type DNSRegistry struct {
	zone string

	mu      sync.RWMutex
	records map[string][]net.IP // fqdn -> addresses

	server *dns.Server
}

// NewDNSRegistry returns a registry for the given zone (must end in a
// dot, e.g. "arca.internal.").
func NewDNSRegistry(zone string) *DNSRegistry {
	if !strings.HasSuffix(zone, ".") {
		zone += "."
	}
	return &DNSRegistry{
		zone:    zone,
		records: make(map[string][]net.IP),
	}
}

func (r *DNSRegistry) fqdn(name string) string {
	return dns.Fqdn(name) + r.zone
}

// Register adds or replaces the address set for name within the zone.
func (r *DNSRegistry) Register(name string, addrs ...net.IP) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[r.fqdn(name)] = addrs
}

// Unregister removes name from the zone entirely.
func (r *DNSRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, r.fqdn(name))
}

func (r *DNSRegistry) handleQuery(w dns.ResponseWriter, req *dns.Msg) {
	m := new(dns.Msg)
	m.SetReply(req)
	m.Authoritative = true

	for _, q := range req.Question {
		if q.Qtype != dns.TypeA && q.Qtype != dns.TypeAAAA {
			continue
		}

		r.mu.RLock()
		addrs, ok := r.records[strings.ToLower(q.Name)]
		r.mu.RUnlock()
		if !ok {
			continue
		}

		for _, addr := range addrs {
			if q.Qtype == dns.TypeA && addr.To4() != nil {
				m.Answer = append(m.Answer, &dns.A{
					Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: dnsTTLSeconds},
					A:   addr.To4(),
				})
			}
			if q.Qtype == dns.TypeAAAA && addr.To4() == nil {
				m.Answer = append(m.Answer, &dns.AAAA{
					Hdr:  dns.RR_Header{Name: q.Name, Rrtype: dns.TypeAAAA, Class: dns.ClassINET, Ttl: dnsTTLSeconds},
					AAAA: addr,
				})
			}
		}
	}

	if len(m.Answer) == 0 {
		m.Rcode = dns.RcodeNameError
	}

	if err := w.WriteMsg(m); err != nil {
		logrus.WithError(err).Warn("netcore: dns registry failed to write response")
	}
}

// ListenAndServe starts the UDP DNS responder on addr (e.g.
// "172.30.30.200:53") and blocks until Shutdown is called or the
// listener fails.
func (r *DNSRegistry) ListenAndServe(addr string) error {
	mux := dns.NewServeMux()
	mux.HandleFunc(r.zone, r.handleQuery)

	r.server = &dns.Server{Addr: addr, Net: "udp", Handler: mux}
	if err := r.server.ListenAndServe(); err != nil {
		return fmt.Errorf("netcore: dns registry listen on %s: %w", addr, err)
	}
	return nil
}

// Shutdown stops the DNS responder.
func (r *DNSRegistry) Shutdown() error {
	if r.server == nil {
		return nil
	}
	return r.server.Shutdown()
}
