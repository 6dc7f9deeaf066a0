// Package storage provides the EntryStore interface and its file,
// memory and Kubernetes ConfigMap implementations.
//
// Every implementation keeps exactly one record per FQDN: Put replaces
// any existing record for the same name. There is no delete. Stores are
// safe for concurrent use within one process, but the file and ConfigMap
// backends assume a single writing process; concurrent writers from other
// processes can lose updates.
package storage

import (
	"context"
	"sort"

	"jabberwocky238/jw238ddns/types"
)

// EntryStore is the durable FQDN -> record mapping.
type EntryStore interface {
	// List returns every known record sorted by name.
	List(ctx context.Context) ([]*types.DNSRecord, error)

	// Put inserts or replaces the record keyed by its name.
	Put(ctx context.Context, record *types.DNSRecord) error
}

// SchemaVersion is the version tag written into persisted record sets.
const SchemaVersion = 1

// sortedRecords flattens a name-keyed map into a slice sorted by name.
// The returned records are copies so callers cannot mutate store state.
func sortedRecords(m map[string]*types.DNSRecord) []*types.DNSRecord {
	out := make([]*types.DNSRecord, 0, len(m))
	for _, r := range m {
		c := *r
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
