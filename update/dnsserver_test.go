package update

import (
	"net"
	"sync"
	"testing"

	"github.com/miekg/dns"
)

// testServer is an in-process DNS server that records every message it
// receives and answers through handle.
type testServer struct {
	mu       sync.Mutex
	received []*dns.Msg
	handle   func(w dns.ResponseWriter, r *dns.Msg) *dns.Msg
}

func (s *testServer) ServeDNS(w dns.ResponseWriter, r *dns.Msg) {
	s.mu.Lock()
	s.received = append(s.received, r.Copy())
	s.mu.Unlock()

	var resp *dns.Msg
	if s.handle != nil {
		resp = s.handle(w, r)
	}
	if resp == nil {
		resp = new(dns.Msg)
		resp.SetReply(r)
	}
	_ = w.WriteMsg(resp)
}

func (s *testServer) messages() []*dns.Msg {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*dns.Msg, len(s.received))
	copy(out, s.received)
	return out
}

// startTestServer starts ts on a random loopback port for network ("tcp"
// or "udp") and returns its address.
func startTestServer(t *testing.T, network string, ts *testServer, tsig map[string]string) string {
	t.Helper()

	started := make(chan struct{})
	// The default accept func answers UPDATE opcodes with NOTIMP.
	srv := &dns.Server{
		Net:               network,
		Handler:           ts,
		TsigSecret:        tsig,
		NotifyStartedFunc: func() { close(started) },
		MsgAcceptFunc:     func(dns.Header) dns.MsgAcceptAction { return dns.MsgAccept },
	}

	switch network {
	case "tcp":
		l, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen tcp: %v", err)
		}
		srv.Listener = l
	default:
		pc, err := net.ListenPacket("udp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen udp: %v", err)
		}
		srv.PacketConn = pc
	}

	go func() { _ = srv.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = srv.Shutdown() })

	if srv.Listener != nil {
		return srv.Listener.Addr().String()
	}
	return srv.PacketConn.LocalAddr().String()
}
