package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"jabberwocky238/jw238ddns/types"

	"github.com/fsnotify/fsnotify"
)

// storeFile is the JSON envelope persisted to disk.
type storeFile struct {
	Version int                `json:"version"`
	Records []*types.DNSRecord `json:"records"`
}

// fileStamp identifies one observed state of the backing file.
type fileStamp struct {
	exists  bool
	modTime time.Time
	size    int64
}

func (a fileStamp) equal(b fileStamp) bool {
	return a.exists == b.exists && a.size == b.size && a.modTime.Equal(b.modTime)
}

// JSONFileStore is an EntryStore mirrored to a single JSON file.
//
// The in-memory snapshot is reloaded in full whenever the file's
// modification time or size differs from what was seen at the last load,
// or when Watch has observed a change to the file. Every Put rewrites the
// whole file through a temp file and rename. Modification times can be
// coarser than back-to-back external writes, so deployments relying on
// external edits should run Watch as well.
type JSONFileStore struct {
	path string

	mu      sync.Mutex
	records map[string]*types.DNSRecord
	stamp   fileStamp
	loaded  bool

	invalid atomic.Bool // set by Watch, consumed by refreshLocked
}

// NewJSONFileStore creates a store for the given path. The file is not
// touched until the first List or Put; it is created on first Put.
func NewJSONFileStore(path string) *JSONFileStore {
	return &JSONFileStore{
		path:    path,
		records: make(map[string]*types.DNSRecord),
	}
}

// Path returns the backing file path.
func (s *JSONFileStore) Path() string {
	return s.path
}

// List returns every record, reloading from disk first if stale.
func (s *JSONFileStore) List(_ context.Context) ([]*types.DNSRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refreshLocked(); err != nil {
		return nil, err
	}
	return sortedRecords(s.records), nil
}

// Put reloads if stale, replaces the record for record.Name and rewrites
// the file. On a write failure the snapshot is invalidated, so the next
// access reloads whatever is actually on disk.
func (s *JSONFileStore) Put(_ context.Context, record *types.DNSRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refreshLocked(); err != nil {
		return err
	}

	c := *record
	s.records[record.Name] = &c

	if err := s.writeLocked(); err != nil {
		s.loaded = false
		return err
	}
	return nil
}

// refreshLocked reloads the snapshot if the file changed since the last
// load. Caller must hold s.mu.
func (s *JSONFileStore) refreshLocked() error {
	stamp, err := s.statFile()
	if err != nil {
		return err
	}

	invalid := s.invalid.Swap(false)
	if s.loaded && !invalid && stamp.equal(s.stamp) {
		return nil
	}

	records, err := s.readFile()
	if err != nil {
		return err
	}

	next := buildRecordMap(records)
	if s.loaded {
		if changes := CalculateChanges(s.records, next); !changes.Empty() {
			slog.Info("store file changed on disk",
				"path", s.path,
				"added", len(changes.Added),
				"updated", len(changes.Updated),
				"removed", len(changes.Removed),
			)
		}
	}

	s.records = next
	s.stamp = stamp
	s.loaded = true
	return nil
}

func (s *JSONFileStore) statFile() (fileStamp, error) {
	fi, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileStamp{}, nil
		}
		return fileStamp{}, fmt.Errorf("%w: stat %s: %w", types.ErrStorageIO, s.path, err)
	}
	return fileStamp{exists: true, modTime: fi.ModTime(), size: fi.Size()}, nil
}

// readFile parses the backing file. A missing or empty file is an empty
// record set.
func (s *JSONFileStore) readFile() ([]*types.DNSRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read %s: %w", types.ErrStorageIO, s.path, err)
	}

	records, err := decodeRecords(data)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", types.ErrStorageIO, s.path, err)
	}
	return records, nil
}

// decodeRecords parses a versioned record file.
func decodeRecords(data []byte) ([]*types.DNSRecord, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var f storeFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unmarshal json: %w", err)
	}
	if f.Version != SchemaVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", types.ErrUnsupportedSchema, f.Version, SchemaVersion)
	}
	for i, r := range f.Records {
		if r == nil {
			return nil, fmt.Errorf("record %d is null", i)
		}
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return f.Records, nil
}

// writeLocked persists the snapshot with an atomic write (temp file in the
// same directory, then rename). Caller must hold s.mu.
func (s *JSONFileStore) writeLocked() error {
	data, err := json.MarshalIndent(storeFile{
		Version: SchemaVersion,
		Records: sortedRecords(s.records),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal json: %w", types.ErrStorageIO, err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create directory: %w", types.ErrStorageIO, err)
	}

	tmp, err := os.CreateTemp(dir, ".jw238ddns-*.json.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %w", types.ErrStorageIO, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: write temp file: %w", types.ErrStorageIO, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close temp file: %w", types.ErrStorageIO, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: rename temp file: %w", types.ErrStorageIO, err)
	}

	stamp, err := s.statFile()
	if err != nil {
		return err
	}
	s.stamp = stamp

	slog.Debug("persisted records to json file", "path", s.path, "records", len(s.records))
	return nil
}

// Watch uses fsnotify to watch the file's directory and invalidates the
// snapshot whenever the file is written, created, renamed or removed. It
// blocks until the context is cancelled.
func (s *JSONFileStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so we catch atomic rename-based writes.
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch directory %s: %w", dir, err)
	}

	absPath, _ := filepath.Abs(s.path)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			absEvent, _ := filepath.Abs(event.Name)
			if absEvent != absPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			s.invalid.Store(true)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("fsnotify error", "err", err)
		}
	}
}
