// Package consul stores mount configurations in HashiCorp Consul KV.
//
// Each mount is one JSON-encoded KV entry under a configurable prefix,
// so several gateway processes can share one mount set. The KV
// ModifyIndex doubles as a cheap change signal feeding the mounts
// version counter.
package consul

import (
	"context"
	"encoding/json"
	"path"

	"github.com/hashicorp/consul/api"
	"github.com/mwantia/vgate/data"
)

// ConsulStoreConfig contains configuration options for the Consul store.
type ConsulStoreConfig struct {
	// Address of the Consul server (default: "127.0.0.1:8500")
	Address string

	// Token for Consul ACL authentication (optional)
	Token string

	// Datacenter to use (optional)
	Datacenter string

	// Prefix for all keys in Consul KV (default: "vgate/mounts")
	Prefix string
}

// ConsulStore persists mount configurations in Consul KV.
type ConsulStore struct {
	client *api.Client
	kv     *api.KV
	config *ConsulStoreConfig
}

// NewConsulStore creates a new Consul-backed mount store.
func NewConsulStore(config *ConsulStoreConfig) (*ConsulStore, error) {
	if config == nil {
		config = &ConsulStoreConfig{}
	}

	// Set defaults
	if config.Address == "" {
		config.Address = "127.0.0.1:8500"
	}
	if config.Prefix == "" {
		config.Prefix = "vgate/mounts"
	}

	clientConfig := api.DefaultConfig()
	clientConfig.Address = config.Address
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

	return &ConsulStore{
		client: client,
		kv:     client.KV(),
		config: config,
	}, nil
}

func (cs *ConsulStore) key(id string) string {
	return path.Join(cs.config.Prefix, id)
}

func (cs *ConsulStore) Load(ctx context.Context) ([]*data.Mount, error) {
	pairs, _, err := cs.kv.List(cs.config.Prefix, (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, err
	}

	mounts := make([]*data.Mount, 0, len(pairs))
	for _, pair := range pairs {
		var mnt data.Mount
		if err := json.Unmarshal(pair.Value, &mnt); err != nil {
			return nil, err
		}

		mounts = append(mounts, &mnt)
	}

	return mounts, nil
}

func (cs *ConsulStore) Get(ctx context.Context, id string) (*data.Mount, error) {
	pair, _, err := cs.kv.Get(cs.key(id), (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, err
	}
	if pair == nil {
		return nil, data.ErrNotExist
	}

	var mnt data.Mount
	if err := json.Unmarshal(pair.Value, &mnt); err != nil {
		return nil, err
	}

	return &mnt, nil
}

func (cs *ConsulStore) Save(ctx context.Context, mount *data.Mount) error {
	if mount.ID == "" || mount.Prefix == "" {
		return data.ErrInvalid
	}

	dup := mount.Clone()
	dup.Prefix = data.NormalizePath(dup.Prefix)

	value, err := json.Marshal(dup)
	if err != nil {
		return err
	}

	_, err = cs.kv.Put(&api.KVPair{
		Key:   cs.key(dup.ID),
		Value: value,
	}, (&api.WriteOptions{}).WithContext(ctx))

	return err
}

func (cs *ConsulStore) Delete(ctx context.Context, id string) error {
	_, err := cs.kv.Delete(cs.key(id), (&api.WriteOptions{}).WithContext(ctx))
	return err
}

// Changed reports whether the mount set changed since lastIndex and
// returns the new index. Callers poll this to decide when to bump the
// gateway's mounts version.
func (cs *ConsulStore) Changed(ctx context.Context, lastIndex uint64) (bool, uint64, error) {
	_, meta, err := cs.kv.List(cs.config.Prefix, (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return false, lastIndex, err
	}

	return meta.LastIndex != lastIndex, meta.LastIndex, nil
}
