package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"jabberwocky238/jw238ddns/types"
)

func TestJSONFileStore_List(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		create    bool
		wantCount int
		wantErr   error
	}{
		{
			name:      "valid single record",
			content:   `{"version":1,"records":[{"name":"a.com","type":"A","ttl":86400,"value":"1.2.3.4"}]}`,
			create:    true,
			wantCount: 1,
		},
		{
			name:      "valid A and CNAME",
			content:   `{"version":1,"records":[{"name":"a.com","type":"A","ttl":86400,"value":"1.2.3.4"},{"name":"b.com","type":"CNAME","ttl":86400,"value":"a.com"}]}`,
			create:    true,
			wantCount: 2,
		},
		{
			name:   "file not found returns empty",
			create: false,
		},
		{
			name:    "empty file",
			content: "",
			create:  true,
		},
		{
			name:    "invalid json",
			content: `{not valid json`,
			create:  true,
			wantErr: types.ErrStorageIO,
		},
		{
			name:    "legacy untagged schema",
			content: `{"dnsEntries":[{"fqdn":"a.com","ipAddress":"1.2.3.4"}]}`,
			create:  true,
			wantErr: types.ErrUnsupportedSchema,
		},
		{
			name:    "future schema version",
			content: `{"version":2,"records":[]}`,
			create:  true,
			wantErr: types.ErrUnsupportedSchema,
		},
		{
			name:    "unknown record type",
			content: `{"version":1,"records":[{"name":"a.com","type":"MX","ttl":1,"value":"x"}]}`,
			create:  true,
			wantErr: types.ErrInvalidRecordType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "records.json")
			if tt.create {
				if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
					t.Fatalf("write test file: %v", err)
				}
			}

			store := NewJSONFileStore(path)
			records, err := store.List(context.Background())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("List() error = %v, want %v", err, tt.wantErr)
				}
				if !errors.Is(err, types.ErrStorageIO) {
					t.Errorf("List() error = %v, should also match ErrStorageIO", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(records) != tt.wantCount {
				t.Errorf("List() returned %d records, want %d", len(records), tt.wantCount)
			}
		})
	}
}

func TestJSONFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	store := NewJSONFileStore(path)
	ctx := context.Background()

	if err := store.Put(ctx, types.NewARecord("host.example.com", "10.0.0.5")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	records, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("List() returned %d records, want 1", len(records))
	}
	if records[0].Name != "host.example.com" || records[0].Value != "10.0.0.5" {
		t.Errorf("List()[0] = %v, want host.example.com -> 10.0.0.5", records[0])
	}

	// A fresh store over the same file sees the record.
	reopened, err := NewJSONFileStore(path).List(ctx)
	if err != nil {
		t.Fatalf("reopened List() error = %v", err)
	}
	if len(reopened) != 1 || reopened[0].Value != "10.0.0.5" {
		t.Errorf("reopened List() = %v", reopened)
	}
}

func TestJSONFileStore_Overwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	store := NewJSONFileStore(path)
	ctx := context.Background()

	_ = store.Put(ctx, types.NewARecord("host.example.com", "10.0.0.5"))
	if err := store.Put(ctx, types.NewARecord("host.example.com", "10.0.0.6")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	records, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("List() returned %d records, want 1", len(records))
	}
	if records[0].Value != "10.0.0.6" {
		t.Errorf("value = %q, want 10.0.0.6", records[0].Value)
	}
}

func TestJSONFileStore_OverwriteChangesVariant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	store := NewJSONFileStore(path)
	ctx := context.Background()

	_ = store.Put(ctx, types.NewARecord("www.example.com", "10.0.0.5"))
	_ = store.Put(ctx, types.NewCNAMERecord("www.example.com", "host.example.com"))

	records, _ := store.List(ctx)
	if len(records) != 1 || records[0].Type != types.RecordTypeCNAME {
		t.Fatalf("List() = %v, want single CNAME", records)
	}
}

func TestJSONFileStore_FileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "records.json")
	store := NewJSONFileStore(path)
	ctx := context.Background()

	_ = store.Put(ctx, types.NewARecord("b.example.com", "10.0.0.2"))
	_ = store.Put(ctx, types.NewARecord("a.example.com", "10.0.0.1"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read store file: %v", err)
	}

	var f storeFile
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("unmarshal store file: %v", err)
	}
	if f.Version != SchemaVersion {
		t.Errorf("version = %d, want %d", f.Version, SchemaVersion)
	}
	if len(f.Records) != 2 || f.Records[0].Name != "a.example.com" {
		t.Errorf("records not sorted by name: %v", f.Records)
	}

	// No temp files left behind.
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want 1", len(entries))
	}
}

func TestJSONFileStore_ReloadsOnExternalChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	store := NewJSONFileStore(path)
	ctx := context.Background()

	_ = store.Put(ctx, types.NewARecord("a.example.com", "10.0.0.1"))

	// Another writer replaces the file; the size differs so the stamp moves
	// even on filesystems with coarse modification times.
	external := `{"version":1,"records":[{"name":"a.example.com","type":"A","ttl":86400,"value":"10.0.0.1"},{"name":"zz.example.com","type":"A","ttl":86400,"value":"10.0.0.99"}]}`
	if err := os.WriteFile(path, []byte(external), 0o644); err != nil {
		t.Fatalf("write external change: %v", err)
	}

	records, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("List() returned %d records after external change, want 2", len(records))
	}

	// Put after the reload keeps the externally added record.
	_ = store.Put(ctx, types.NewARecord("b.example.com", "10.0.0.2"))
	records, _ = NewJSONFileStore(path).List(ctx)
	if len(records) != 3 {
		t.Errorf("file holds %d records, want 3", len(records))
	}
}

func TestJSONFileStore_InvalidateForcesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	store := NewJSONFileStore(path)
	ctx := context.Background()

	_ = store.Put(ctx, types.NewARecord("a.example.com", "10.0.0.1"))

	// Same size, and the modification time is pinned back to what the
	// store saw, so only the invalidation flag can trigger a reload.
	fi, _ := os.Stat(path)
	data, _ := os.ReadFile(path)
	changed := bytes.Replace(data, []byte("10.0.0.1"), []byte("10.0.0.9"), 1)
	if len(changed) != len(data) {
		t.Fatalf("test setup: sizes differ %d != %d", len(changed), len(data))
	}
	if err := os.WriteFile(path, changed, 0o644); err != nil {
		t.Fatalf("rewrite file: %v", err)
	}
	if err := os.Chtimes(path, fi.ModTime(), fi.ModTime()); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	records, _ := store.List(ctx)
	if records[0].Value != "10.0.0.1" {
		t.Fatalf("unexpected reload without invalidation: %v", records[0])
	}

	store.invalid.Store(true)
	records, _ = store.List(ctx)
	if records[0].Value != "10.0.0.9" {
		t.Errorf("value = %q after invalidation, want 10.0.0.9", records[0].Value)
	}
}

func TestJSONFileStore_PutRejectsInvalid(t *testing.T) {
	store := NewJSONFileStore(filepath.Join(t.TempDir(), "records.json"))
	err := store.Put(context.Background(), &types.DNSRecord{Name: "a.com", Type: "TXT", Value: "x"})
	if !errors.Is(err, types.ErrInvalidRecordType) {
		t.Errorf("Put() error = %v, want ErrInvalidRecordType", err)
	}
}

func TestJSONFileStore_PutWriteFailure(t *testing.T) {
	dir := t.TempDir()
	// A directory where the file should be makes the rename fail.
	path := filepath.Join(dir, "records.json")
	if err := os.MkdirAll(filepath.Join(path, "blocker"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	store := NewJSONFileStore(path)
	err := store.Put(context.Background(), types.NewARecord("a.com", "1.2.3.4"))
	if !errors.Is(err, types.ErrStorageIO) {
		t.Errorf("Put() error = %v, want ErrStorageIO", err)
	}
}

func TestJSONFileStore_Watch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	store := NewJSONFileStore(path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- store.Watch(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(path, []byte(`{"version":1,"records":[]}`), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !store.invalid.Load() {
		if time.Now().After(deadline) {
			t.Fatal("watcher did not invalidate the snapshot")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Watch() returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch() did not return after cancel")
	}
}
