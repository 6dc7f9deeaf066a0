package update

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"jabberwocky238/jw238ddns/types"

	"github.com/miekg/dns"
)

// CheckResult compares a stored record with what the server answers.
type CheckResult struct {
	Record *types.DNSRecord `json:"record"`
	Served []string         `json:"served"`
	InSync bool             `json:"in_sync"`
}

// Checker queries the authoritative server directly for registered names.
type Checker struct {
	server string
	client *dns.Client
}

// NewChecker creates a Checker for server with the given query timeout.
func NewChecker(server string, timeout time.Duration) *Checker {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Checker{
		server: serverAddr(server),
		client: &dns.Client{Net: "udp", Timeout: timeout},
	}
}

// Lookup returns the values the server holds for the record's name and
// type. NXDOMAIN yields an empty result, not an error.
func (c *Checker) Lookup(ctx context.Context, r *types.DNSRecord) ([]string, error) {
	var qtype uint16
	switch r.Type {
	case types.RecordTypeA:
		qtype = dns.TypeA
	case types.RecordTypeCNAME:
		qtype = dns.TypeCNAME
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidRecordType, r.Type)
	}

	query := new(dns.Msg)
	query.SetQuestion(dns.Fqdn(r.Name), qtype)
	query.RecursionDesired = false

	resp, _, err := c.client.ExchangeContext(ctx, query, c.server)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", c.server, err)
	}
	if resp.Rcode == dns.RcodeNameError {
		slog.Debug("server returned NXDOMAIN", "server", c.server, "name", r.Name)
		return nil, nil
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("query %s: server answered %s", c.server, dns.RcodeToString[resp.Rcode])
	}

	var values []string
	for _, rr := range resp.Answer {
		switch v := rr.(type) {
		case *dns.A:
			if qtype == dns.TypeA {
				values = append(values, v.A.String())
			}
		case *dns.CNAME:
			if qtype == dns.TypeCNAME {
				values = append(values, types.NormalizeName(v.Target))
			}
		}
	}
	return values, nil
}

// Check looks the record up and reports whether the server holds exactly
// the stored value.
func (c *Checker) Check(ctx context.Context, r *types.DNSRecord) (*CheckResult, error) {
	served, err := c.Lookup(ctx, r)
	if err != nil {
		return nil, err
	}
	want := r.Value
	if r.Type == types.RecordTypeCNAME {
		want = types.NormalizeName(r.Value)
	}
	return &CheckResult{
		Record: r,
		Served: served,
		InSync: len(served) == 1 && served[0] == want,
	}, nil
}
