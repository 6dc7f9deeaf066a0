package update

import (
	"fmt"
	"strings"

	"jabberwocky238/jw238ddns/types"

	"github.com/miekg/dns"
)

// script accumulates nsupdate directives.
type script struct {
	b strings.Builder
}

func newScript(server string) *script {
	s := &script{}
	host, port := splitServer(server)
	if port == "53" {
		s.line("server %s", host)
	} else {
		s.line("server %s %s", host, port)
	}
	return s
}

func (s *script) line(format string, args ...any) {
	fmt.Fprintf(&s.b, format, args...)
	s.b.WriteByte('\n')
}

// finish appends the trailing show and send directives.
func (s *script) finish() string {
	s.line("show")
	s.line("send")
	return s.b.String()
}

// PTRName returns the reverse-DNS name for an IPv4 literal without the
// trailing root dot, e.g. 10.0.0.5 -> 5.0.0.10.in-addr.arpa.
func PTRName(ip string) (string, error) {
	v4, err := types.ParseIPv4(ip)
	if err != nil {
		return "", err
	}
	rev, err := dns.ReverseAddr(v4.String())
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrInvalidAddress, err)
	}
	return strings.TrimSuffix(rev, "."), nil
}

// AScript renders the update that replaces the A record for r.Name.
func AScript(server string, r *types.DNSRecord) (string, error) {
	v4, err := types.ParseIPv4(r.Value)
	if err != nil {
		return "", err
	}
	name := dns.Fqdn(r.Name)
	s := newScript(server)
	s.line("update delete %s A", name)
	s.line("update add %s %d A %d.%d.%d.%d", name, recordTTL(r), v4[0], v4[1], v4[2], v4[3])
	return s.finish(), nil
}

// PTRScript renders the update that adds the reverse PTR record for an A
// record.
func PTRScript(server string, r *types.DNSRecord) (string, error) {
	ptr, err := PTRName(r.Value)
	if err != nil {
		return "", err
	}
	s := newScript(server)
	s.line("update add %s %d PTR %s", dns.Fqdn(ptr), recordTTL(r), dns.Fqdn(r.Name))
	return s.finish(), nil
}

// CNAMEScript renders the update that replaces the CNAME for r.Name.
func CNAMEScript(server string, r *types.DNSRecord) (string, error) {
	if r.Value == "" {
		return "", fmt.Errorf("%w: empty CNAME target for %s", types.ErrInvalidValue, r.Name)
	}
	name := dns.Fqdn(r.Name)
	s := newScript(server)
	s.line("update delete %s CNAME", name)
	s.line("update add %s %d CNAME %s", name, recordTTL(r), dns.Fqdn(r.Value))
	return s.finish(), nil
}
