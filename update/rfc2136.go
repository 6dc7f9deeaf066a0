package update

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"jabberwocky238/jw238ddns/types"

	"github.com/miekg/dns"
)

// RFC2136Config holds configuration for the native DNS UPDATE client.
type RFC2136Config struct {
	Server      string        // authoritative server, "host" or "host:port"
	Zone        string        // forward zone the registered names live in
	ReverseZone string        // zone for PTR updates; defaults to in-addr.arpa.
	Net         string        // "tcp" (default) or "udp"
	Timeout     time.Duration // per-exchange timeout

	TSIGName      string // key name; empty disables TSIG
	TSIGSecret    string // base64 secret
	TSIGAlgorithm string // defaults to hmac-sha256.
}

// RFC2136Client implements Client by sending DNS UPDATE messages
// directly, without an external binary.
type RFC2136Client struct {
	config RFC2136Config
	client *dns.Client
}

// NewRFC2136Client creates a client from cfg, filling defaults.
func NewRFC2136Client(cfg RFC2136Config) *RFC2136Client {
	if cfg.Net == "" {
		cfg.Net = "tcp"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.ReverseZone == "" {
		cfg.ReverseZone = "in-addr.arpa."
	}
	if cfg.TSIGAlgorithm == "" {
		cfg.TSIGAlgorithm = dns.HmacSHA256
	}
	cfg.Zone = dns.Fqdn(cfg.Zone)
	cfg.ReverseZone = dns.Fqdn(cfg.ReverseZone)
	cfg.TSIGAlgorithm = dns.Fqdn(cfg.TSIGAlgorithm)

	c := &dns.Client{Net: cfg.Net, Timeout: cfg.Timeout}
	if cfg.TSIGName != "" {
		cfg.TSIGName = dns.Fqdn(cfg.TSIGName)
		c.TsigSecret = map[string]string{cfg.TSIGName: cfg.TSIGSecret}
	}

	return &RFC2136Client{config: cfg, client: c}
}

// PushA replaces the A RRset for the name and adds the reverse PTR.
func (c *RFC2136Client) PushA(ctx context.Context, r *types.DNSRecord) error {
	if r.Type != types.RecordTypeA {
		return fmt.Errorf("%w: PushA called with %s record %s", types.ErrInvalidRecordType, r.Type, r.Name)
	}
	v4, err := types.ParseIPv4(r.Value)
	if err != nil {
		return err
	}
	ptr, err := PTRName(r.Value)
	if err != nil {
		return err
	}

	name := dns.Fqdn(r.Name)
	if !dns.IsSubDomain(c.config.Zone, name) {
		return fmt.Errorf("%w: %s is outside zone %s", types.ErrInvalidName, name, c.config.Zone)
	}

	ttl := recordTTL(r)
	m := new(dns.Msg)
	m.SetUpdate(c.config.Zone)
	m.RemoveRRset([]dns.RR{&dns.A{Hdr: dns.RR_Header{Name: name, Rrtype: dns.TypeA, Class: dns.ClassINET}}})
	m.Insert([]dns.RR{&dns.A{
		Hdr: dns.RR_Header{Name: name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: ttl},
		A:   v4,
	}})
	if err := c.send(ctx, "A", r.Name, m); err != nil {
		return err
	}

	m = new(dns.Msg)
	m.SetUpdate(c.config.ReverseZone)
	m.Insert([]dns.RR{&dns.PTR{
		Hdr: dns.RR_Header{Name: dns.Fqdn(ptr), Rrtype: dns.TypePTR, Class: dns.ClassINET, Ttl: ttl},
		Ptr: name,
	}})
	if err := c.send(ctx, "PTR", r.Name, m); err != nil {
		return err
	}

	slog.Info("updated A record", "name", r.Name, "address", r.Value, "mode", "rfc2136")
	return nil
}

// PushCNAME replaces the CNAME RRset for the name.
func (c *RFC2136Client) PushCNAME(ctx context.Context, r *types.DNSRecord) error {
	if r.Type != types.RecordTypeCNAME {
		return fmt.Errorf("%w: PushCNAME called with %s record %s", types.ErrInvalidRecordType, r.Type, r.Name)
	}
	name := dns.Fqdn(r.Name)
	if !dns.IsSubDomain(c.config.Zone, name) {
		return fmt.Errorf("%w: %s is outside zone %s", types.ErrInvalidName, name, c.config.Zone)
	}

	m := new(dns.Msg)
	m.SetUpdate(c.config.Zone)
	m.RemoveRRset([]dns.RR{&dns.CNAME{Hdr: dns.RR_Header{Name: name, Rrtype: dns.TypeCNAME, Class: dns.ClassINET}}})
	m.Insert([]dns.RR{&dns.CNAME{
		Hdr:    dns.RR_Header{Name: name, Rrtype: dns.TypeCNAME, Class: dns.ClassINET, Ttl: recordTTL(r)},
		Target: dns.Fqdn(r.Value),
	}})
	if err := c.send(ctx, "CNAME", r.Name, m); err != nil {
		return err
	}

	slog.Info("updated CNAME record", "name", r.Name, "target", r.Value, "mode", "rfc2136")
	return nil
}

func (c *RFC2136Client) send(ctx context.Context, op, name string, m *dns.Msg) error {
	if c.config.TSIGName != "" {
		m.SetTsig(c.config.TSIGName, c.config.TSIGAlgorithm, 300, time.Now().Unix())
	}

	resp, _, err := c.client.ExchangeContext(ctx, m, serverAddr(c.config.Server))
	if err != nil {
		return &UpdateError{Op: op, Name: name, Err: err}
	}
	if resp.Rcode != dns.RcodeSuccess {
		return &UpdateError{
			Op:     op,
			Name:   name,
			Stdout: resp.String(),
			Err:    fmt.Errorf("server answered %s", dns.RcodeToString[resp.Rcode]),
		}
	}
	return nil
}
