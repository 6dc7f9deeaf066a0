package update

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"jabberwocky238/jw238ddns/types"

	"github.com/miekg/dns"
)

func TestRFC2136Client_PushA(t *testing.T) {
	ts := &testServer{}
	addr := startTestServer(t, "tcp", ts, nil)

	client := NewRFC2136Client(RFC2136Config{
		Server:      addr,
		Zone:        "example.com",
		ReverseZone: "10.in-addr.arpa",
		Timeout:     2 * time.Second,
	})

	if err := client.PushA(context.Background(), types.NewARecord("host.example.com", "10.0.0.5")); err != nil {
		t.Fatalf("PushA() error = %v", err)
	}

	msgs := ts.messages()
	if len(msgs) != 2 {
		t.Fatalf("server received %d messages, want 2", len(msgs))
	}

	fwd := msgs[0]
	if fwd.Opcode != dns.OpcodeUpdate {
		t.Errorf("opcode = %d, want UPDATE", fwd.Opcode)
	}
	if fwd.Question[0].Name != "example.com." {
		t.Errorf("zone = %q, want example.com.", fwd.Question[0].Name)
	}
	// RFC 2136 update section: RRset delete (class ANY) then the add.
	if len(fwd.Ns) != 2 {
		t.Fatalf("update section has %d RRs, want 2", len(fwd.Ns))
	}
	if fwd.Ns[0].Header().Class != dns.ClassANY || fwd.Ns[0].Header().Rrtype != dns.TypeA {
		t.Errorf("first RR is not an A RRset delete: %v", fwd.Ns[0])
	}
	a, ok := fwd.Ns[1].(*dns.A)
	if !ok || a.A.String() != "10.0.0.5" || a.Hdr.Ttl != 86400 {
		t.Errorf("second RR = %v, want A 10.0.0.5 ttl 86400", fwd.Ns[1])
	}

	rev := msgs[1]
	if rev.Question[0].Name != "10.in-addr.arpa." {
		t.Errorf("reverse zone = %q", rev.Question[0].Name)
	}
	ptr, ok := rev.Ns[0].(*dns.PTR)
	if !ok || ptr.Hdr.Name != "5.0.0.10.in-addr.arpa." || ptr.Ptr != "host.example.com." {
		t.Errorf("PTR RR = %v", rev.Ns[0])
	}
}

func TestRFC2136Client_PushCNAME(t *testing.T) {
	ts := &testServer{}
	addr := startTestServer(t, "tcp", ts, nil)

	client := NewRFC2136Client(RFC2136Config{Server: addr, Zone: "example.com."})
	if err := client.PushCNAME(context.Background(), types.NewCNAMERecord("www.example.com", "host.example.com")); err != nil {
		t.Fatalf("PushCNAME() error = %v", err)
	}

	msgs := ts.messages()
	if len(msgs) != 1 {
		t.Fatalf("server received %d messages, want 1", len(msgs))
	}
	c, ok := msgs[0].Ns[1].(*dns.CNAME)
	if !ok || c.Target != "host.example.com." {
		t.Errorf("CNAME RR = %v", msgs[0].Ns[1])
	}
}

func TestRFC2136Client_Refused(t *testing.T) {
	ts := &testServer{
		handle: func(_ dns.ResponseWriter, r *dns.Msg) *dns.Msg {
			m := new(dns.Msg)
			m.SetRcode(r, dns.RcodeRefused)
			return m
		},
	}
	addr := startTestServer(t, "tcp", ts, nil)

	client := NewRFC2136Client(RFC2136Config{Server: addr, Zone: "example.com"})
	err := client.PushA(context.Background(), types.NewARecord("host.example.com", "10.0.0.5"))
	if !errors.Is(err, ErrUpdateFailed) {
		t.Fatalf("PushA() error = %v, want ErrUpdateFailed", err)
	}
	var ue *UpdateError
	if !errors.As(err, &ue) || ue.Op != "A" {
		t.Errorf("error = %#v, want A UpdateError", err)
	}
	if len(ts.messages()) != 1 {
		t.Errorf("PTR sent after A was refused")
	}
}

func TestRFC2136Client_OutsideZone(t *testing.T) {
	client := NewRFC2136Client(RFC2136Config{Server: "127.0.0.1:1", Zone: "example.com"})
	err := client.PushA(context.Background(), types.NewARecord("host.example.org", "10.0.0.5"))
	if !errors.Is(err, types.ErrInvalidName) {
		t.Errorf("PushA() error = %v, want ErrInvalidName", err)
	}
}

func TestRFC2136Client_TSIG(t *testing.T) {
	const keyName = "ddns-key."
	const secret = "c2VjcmV0c2VjcmV0c2VjcmV0c2VjcmV0"

	var tsigOK atomic.Bool
	ts := &testServer{
		handle: func(w dns.ResponseWriter, r *dns.Msg) *dns.Msg {
			tsigOK.Store(r.IsTsig() != nil && w.TsigStatus() == nil)
			m := new(dns.Msg)
			m.SetReply(r)
			m.SetTsig(keyName, dns.HmacSHA256, 300, time.Now().Unix())
			return m
		},
	}
	addr := startTestServer(t, "tcp", ts, map[string]string{keyName: secret})

	client := NewRFC2136Client(RFC2136Config{
		Server:     addr,
		Zone:       "example.com",
		TSIGName:   "ddns-key",
		TSIGSecret: secret,
	})
	if err := client.PushCNAME(context.Background(), types.NewCNAMERecord("www.example.com", "host.example.com")); err != nil {
		t.Fatalf("PushCNAME() error = %v", err)
	}
	if !tsigOK.Load() {
		t.Error("server did not receive a valid TSIG signature")
	}
}
