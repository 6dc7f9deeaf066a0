package storage

import (
	"jabberwocky238/jw238ddns/types"
)

// RecordChanges summarises how a reloaded record set differs from the
// snapshot it replaces.
type RecordChanges struct {
	Added   []string
	Updated []string
	Removed []string
}

// Empty reports whether nothing changed.
func (c RecordChanges) Empty() bool {
	return len(c.Added) == 0 && len(c.Updated) == 0 && len(c.Removed) == 0
}

// CalculateChanges compares two name-keyed snapshots. Removed entries can
// only appear when the backing file was edited by something other than
// this process.
func CalculateChanges(oldMap, newMap map[string]*types.DNSRecord) RecordChanges {
	var changes RecordChanges

	for name, newRec := range newMap {
		if oldRec, exists := oldMap[name]; exists {
			if !recordsEqual(oldRec, newRec) {
				changes.Updated = append(changes.Updated, name)
			}
		} else {
			changes.Added = append(changes.Added, name)
		}
	}

	for name := range oldMap {
		if _, exists := newMap[name]; !exists {
			changes.Removed = append(changes.Removed, name)
		}
	}

	return changes
}

// recordsEqual reports whether two records carry the same tag, TTL and value.
func recordsEqual(a, b *types.DNSRecord) bool {
	return a.Type == b.Type && a.TTL == b.TTL && a.Value == b.Value
}

// buildRecordMap indexes records by name; later duplicates win.
func buildRecordMap(records []*types.DNSRecord) map[string]*types.DNSRecord {
	m := make(map[string]*types.DNSRecord, len(records))
	for _, r := range records {
		m[r.Name] = r
	}
	return m
}
