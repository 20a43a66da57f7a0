// Package consul keeps mount records in HashiCorp Consul KV, so multiple
// hosts can observe which images are mounted where. Records are JSON values
// under a configurable key prefix.
package consul

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/consul/api"

	"github.com/mwantia/cim/registry"
)

type Store struct {
	mu sync.Mutex
	kv *api.KV

	prefix string
}

// Config contains connection options for the Consul-backed registry.
type Config struct {
	// Address of the Consul server (default: "127.0.0.1:8500")
	Address string

	// Token for Consul ACL authentication (optional)
	Token string

	// Datacenter to use (optional)
	Datacenter string

	// Prefix for all registry keys (default: "cim/mounts")
	Prefix string
}

// NewStore creates a Consul-backed mount registry.
func NewStore(config *Config) (*Store, error) {
	if config == nil {
		config = &Config{}
	}

	clientConfig := api.DefaultConfig()
	if config.Address != "" {
		clientConfig.Address = config.Address
	}
	if config.Token != "" {
		clientConfig.Token = config.Token
	}
	if config.Datacenter != "" {
		clientConfig.Datacenter = config.Datacenter
	}

	client, err := api.NewClient(clientConfig)
	if err != nil {
		return nil, err
	}

	prefix := config.Prefix
	if prefix == "" {
		prefix = "cim/mounts"
	}

	return &Store{
		kv:     client.KV(),
		prefix: strings.TrimSuffix(prefix, "/"),
	}, nil
}

type record struct {
	VolumeID  string `json:"volume_id"`
	RefCount  int    `json:"ref_count"`
	MountedAt int64  `json:"mounted_at"`
}

// key escapes the image path so separators and drive prefixes survive as a
// single KV path segment.
func (s *Store) key(imagePath string) string {
	return s.prefix + "/" + url.PathEscape(imagePath)
}

func (s *Store) Record(ctx context.Context, imagePath, volumeID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, _, err := s.get(ctx, imagePath)
	if err != nil && !errors.Is(err, registry.ErrNotRecorded) {
		return 0, err
	}

	if rec == nil {
		rec = &record{VolumeID: volumeID, MountedAt: time.Now().Unix()}
	}
	rec.RefCount++

	if err := s.put(ctx, imagePath, rec); err != nil {
		return 0, err
	}
	return rec.RefCount, nil
}

func (s *Store) Release(ctx context.Context, imagePath string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, _, err := s.get(ctx, imagePath)
	if err != nil {
		return 0, err
	}

	rec.RefCount--
	if rec.RefCount <= 0 {
		opts := (&api.WriteOptions{}).WithContext(ctx)
		if _, err := s.kv.Delete(s.key(imagePath), opts); err != nil {
			return 0, err
		}
		return 0, nil
	}

	if err := s.put(ctx, imagePath, rec); err != nil {
		return 0, err
	}
	return rec.RefCount, nil
}

func (s *Store) Lookup(ctx context.Context, imagePath string) (*registry.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, _, err := s.get(ctx, imagePath)
	if err != nil {
		return nil, err
	}
	return toRegistryRecord(imagePath, rec), nil
}

func (s *Store) List(ctx context.Context) ([]*registry.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	opts := (&api.QueryOptions{}).WithContext(ctx)
	pairs, _, err := s.kv.List(s.prefix+"/", opts)
	if err != nil {
		return nil, err
	}

	records := make([]*registry.Record, 0, len(pairs))
	for _, pair := range pairs {
		var rec record
		if err := json.Unmarshal(pair.Value, &rec); err != nil {
			return nil, err
		}

		imagePath, err := url.PathUnescape(strings.TrimPrefix(pair.Key, s.prefix+"/"))
		if err != nil {
			return nil, err
		}
		records = append(records, toRegistryRecord(imagePath, &rec))
	}
	return records, nil
}

func (s *Store) Close(ctx context.Context) error {
	// The Consul client is stateless; nothing to clean up.
	return nil
}

func (s *Store) get(ctx context.Context, imagePath string) (*record, uint64, error) {
	opts := (&api.QueryOptions{}).WithContext(ctx)
	pair, _, err := s.kv.Get(s.key(imagePath), opts)
	if err != nil {
		return nil, 0, err
	}
	if pair == nil {
		return nil, 0, registry.ErrNotRecorded
	}

	var rec record
	if err := json.Unmarshal(pair.Value, &rec); err != nil {
		return nil, 0, err
	}
	return &rec, pair.ModifyIndex, nil
}

func (s *Store) put(ctx context.Context, imagePath string, rec *record) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	opts := (&api.WriteOptions{}).WithContext(ctx)
	_, err = s.kv.Put(&api.KVPair{Key: s.key(imagePath), Value: value}, opts)
	return err
}

func toRegistryRecord(imagePath string, rec *record) *registry.Record {
	return &registry.Record{
		ImagePath: imagePath,
		VolumeID:  rec.VolumeID,
		RefCount:  rec.RefCount,
		MountedAt: time.Unix(rec.MountedAt, 0),
	}
}
