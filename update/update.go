// Package update pushes registered records to the authoritative DNS
// server. The default client drives the external nsupdate binary; a
// native RFC 2136 client is available as well.
//
// Clients return every failure to the caller. Retrying and logging are
// the reconciliation loop's job.
package update

import (
	"context"
	"errors"
	"fmt"
	"net"

	"jabberwocky238/jw238ddns/types"
)

// ErrUpdateFailed matches every *UpdateError.
var ErrUpdateFailed = errors.New("update failed")

// Client pushes single records to the authoritative server.
type Client interface {
	// PushA replaces the A record for the name and adds the reverse PTR.
	PushA(ctx context.Context, record *types.DNSRecord) error

	// PushCNAME replaces the CNAME record for the name.
	PushCNAME(ctx context.Context, record *types.DNSRecord) error
}

// Push dispatches record to the Client method for its type.
func Push(ctx context.Context, c Client, record *types.DNSRecord) error {
	switch record.Type {
	case types.RecordTypeA:
		return c.PushA(ctx, record)
	case types.RecordTypeCNAME:
		return c.PushCNAME(ctx, record)
	default:
		return fmt.Errorf("%w: %q for %s", types.ErrInvalidRecordType, record.Type, record.Name)
	}
}

// UpdateError describes one failed update together with whatever the
// update mechanism printed.
type UpdateError struct {
	Op     string // A, PTR or CNAME
	Name   string
	Stdout string
	Stderr string
	Err    error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("update %s %s failed: %v. Output: %q. Error: %q", e.Op, e.Name, e.Err, e.Stdout, e.Stderr)
}

// Unwrap exposes both ErrUpdateFailed and the underlying cause.
func (e *UpdateError) Unwrap() []error {
	return []error{ErrUpdateFailed, e.Err}
}

// recordTTL returns the record's TTL, falling back to types.DefaultTTL.
func recordTTL(r *types.DNSRecord) uint32 {
	if r.TTL == 0 {
		return types.DefaultTTL
	}
	return r.TTL
}

// splitServer splits "host:port" into host and port, defaulting the port
// to 53.
func splitServer(server string) (host, port string) {
	h, p, err := net.SplitHostPort(server)
	if err != nil {
		return server, "53"
	}
	return h, p
}

// serverAddr returns server as a dialable host:port.
func serverAddr(server string) string {
	host, port := splitServer(server)
	return net.JoinHostPort(host, port)
}
