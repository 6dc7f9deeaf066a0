// Package registry turns registration requests into stored records and
// tells the reconciliation loop that something new is waiting.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"jabberwocky238/jw238ddns/storage"
	"jabberwocky238/jw238ddns/types"
)

// Notifier is told about every successful registration.
type Notifier interface {
	MarkNewEntry()
}

// Service implements RegisterA, RegisterCNAME and ListAll on top of an
// EntryStore.
type Service struct {
	store    storage.EntryStore
	notifier Notifier
	strict   bool
}

// NewService creates a Service. With strict set, names must be valid
// domain names and A values must be IPv4 literals. notifier may be nil.
func NewService(store storage.EntryStore, notifier Notifier, strict bool) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		strict:   strict,
	}
}

// RegisterA binds fqdn to ip, replacing any existing record for fqdn.
func (s *Service) RegisterA(ctx context.Context, fqdn, ip string) (*types.DNSRecord, error) {
	if strings.TrimSpace(fqdn) == "" {
		return nil, fmt.Errorf("%w: empty fqdn", types.ErrInvalidName)
	}
	if strings.TrimSpace(ip) == "" {
		return nil, fmt.Errorf("%w: empty ip", types.ErrInvalidAddress)
	}
	return s.register(ctx, types.NewARecord(fqdn, ip))
}

// RegisterCNAME makes newFqdn an alias of existingFqdn, replacing any
// existing record for newFqdn.
func (s *Service) RegisterCNAME(ctx context.Context, existingFqdn, newFqdn string) (*types.DNSRecord, error) {
	if strings.TrimSpace(existingFqdn) == "" || strings.TrimSpace(newFqdn) == "" {
		return nil, fmt.Errorf("%w: empty fqdn", types.ErrInvalidName)
	}
	return s.register(ctx, types.NewCNAMERecord(newFqdn, existingFqdn))
}

// ListAll returns every stored record.
func (s *Service) ListAll(ctx context.Context) ([]*types.DNSRecord, error) {
	return s.store.List(ctx)
}

func (s *Service) register(ctx context.Context, record *types.DNSRecord) (*types.DNSRecord, error) {
	validate := record.Validate
	if s.strict {
		validate = record.ValidateStrict
	}
	if err := validate(); err != nil {
		return nil, err
	}

	if err := s.store.Put(ctx, record); err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.MarkNewEntry()
	}

	slog.Info("Registered record", "name", record.Name, "type", record.Type, "value", record.Value)
	return record, nil
}
