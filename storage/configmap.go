package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"jabberwocky238/jw238ddns/types"

	"gopkg.in/yaml.v3"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// configYAML is the structure stored under the ConfigMap's data key.
type configYAML struct {
	Version int                `yaml:"version"`
	Records []*types.DNSRecord `yaml:"records"`
}

// cmStamp identifies one observed state of the ConfigMap.
type cmStamp struct {
	exists          bool
	resourceVersion string
}

// ConfigMapStore is an EntryStore kept in one key of a Kubernetes
// ConfigMap. It plays the same role as JSONFileStore with the ConfigMap's
// resourceVersion standing in for the file modification time: a changed
// resourceVersion triggers a full reload before any read or write.
type ConfigMapStore struct {
	client    kubernetes.Interface
	namespace string
	name      string
	dataKey   string

	mu      sync.Mutex
	records map[string]*types.DNSRecord
	stamp   cmStamp
	loaded  bool
}

// NewConfigMapStore creates a store for the named ConfigMap. The
// ConfigMap is created on first Put if it does not exist.
func NewConfigMapStore(client kubernetes.Interface, namespace, name, dataKey string) *ConfigMapStore {
	return &ConfigMapStore{
		client:    client,
		namespace: namespace,
		name:      name,
		dataKey:   dataKey,
		records:   make(map[string]*types.DNSRecord),
	}
}

// List returns every record, reloading from the ConfigMap if it changed.
func (s *ConfigMapStore) List(ctx context.Context) ([]*types.DNSRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.refreshLocked(ctx); err != nil {
		return nil, err
	}
	return sortedRecords(s.records), nil
}

// Put replaces the record for record.Name and writes the full set back to
// the ConfigMap.
func (s *ConfigMapStore) Put(ctx context.Context, record *types.DNSRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cm, err := s.refreshLocked(ctx)
	if err != nil {
		return err
	}

	c := *record
	s.records[record.Name] = &c

	if err := s.persistLocked(ctx, cm); err != nil {
		s.loaded = false
		return err
	}
	return nil
}

// refreshLocked fetches the ConfigMap and reloads the snapshot if its
// resourceVersion moved. It returns the fetched ConfigMap, or nil if it
// does not exist. Caller must hold s.mu.
func (s *ConfigMapStore) refreshLocked(ctx context.Context) (*corev1.ConfigMap, error) {
	cm, err := s.client.CoreV1().ConfigMaps(s.namespace).Get(ctx, s.name, metav1.GetOptions{})
	if err != nil {
		if !apierrors.IsNotFound(err) {
			return nil, fmt.Errorf("%w: get configmap %s/%s: %w", types.ErrStorageIO, s.namespace, s.name, err)
		}
		cm = nil
	}

	stamp := cmStamp{}
	if cm != nil {
		stamp = cmStamp{exists: true, resourceVersion: cm.ResourceVersion}
	}
	if s.loaded && stamp == s.stamp {
		return cm, nil
	}

	var records []*types.DNSRecord
	if cm != nil {
		records, err = parseConfigMap(cm, s.dataKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", types.ErrStorageIO, err)
		}
	}

	next := buildRecordMap(records)
	if s.loaded {
		if changes := CalculateChanges(s.records, next); !changes.Empty() {
			slog.Info("configmap changed externally",
				"namespace", s.namespace,
				"name", s.name,
				"added", len(changes.Added),
				"updated", len(changes.Updated),
				"removed", len(changes.Removed),
			)
		}
	}

	s.records = next
	s.stamp = stamp
	s.loaded = true
	return cm, nil
}

// persistLocked writes the snapshot into cm, creating the ConfigMap when
// cm is nil. Caller must hold s.mu.
func (s *ConfigMapStore) persistLocked(ctx context.Context, cm *corev1.ConfigMap) error {
	data, err := yaml.Marshal(&configYAML{Version: SchemaVersion, Records: sortedRecords(s.records)})
	if err != nil {
		return fmt.Errorf("%w: marshal yaml: %w", types.ErrStorageIO, err)
	}

	var saved *corev1.ConfigMap
	if cm == nil {
		saved, err = s.client.CoreV1().ConfigMaps(s.namespace).Create(ctx, &corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{Name: s.name, Namespace: s.namespace},
			Data:       map[string]string{s.dataKey: string(data)},
		}, metav1.CreateOptions{})
		if err != nil {
			return fmt.Errorf("%w: create configmap: %w", types.ErrStorageIO, err)
		}
	} else {
		cm = cm.DeepCopy()
		if cm.Data == nil {
			cm.Data = make(map[string]string)
		}
		cm.Data[s.dataKey] = string(data)
		saved, err = s.client.CoreV1().ConfigMaps(s.namespace).Update(ctx, cm, metav1.UpdateOptions{})
		if err != nil {
			return fmt.Errorf("%w: update configmap: %w", types.ErrStorageIO, err)
		}
	}

	s.stamp = cmStamp{exists: true, resourceVersion: saved.ResourceVersion}
	slog.Debug("persisted records to configmap", "namespace", s.namespace, "name", s.name, "records", len(s.records))
	return nil
}

// parseConfigMap extracts records from the given ConfigMap. A missing key
// is an empty record set so an operator can pre-create the ConfigMap.
func parseConfigMap(cm *corev1.ConfigMap, dataKey string) ([]*types.DNSRecord, error) {
	raw, ok := cm.Data[dataKey]
	if !ok || raw == "" {
		return nil, nil
	}

	var cfg configYAML
	if err := yaml.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml in configmap %s/%s: %w", cm.Namespace, cm.Name, err)
	}
	if cfg.Version != SchemaVersion {
		return nil, fmt.Errorf("%w: configmap %s/%s has version %d", types.ErrUnsupportedSchema, cm.Namespace, cm.Name, cfg.Version)
	}
	for i, r := range cfg.Records {
		if r == nil {
			return nil, fmt.Errorf("record %d is null", i)
		}
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return cfg.Records, nil
}
