package data

import "time"

// Mount binds a virtual path prefix to one backend configuration.
type Mount struct {
	// ID uniquely identifies the mount. Invalidation events are always
	// scoped by mount ID.
	ID string `json:"id"`

	// Prefix is the virtual path prefix, normalized to a leading slash
	// and no trailing slash (root is "/").
	Prefix string `json:"prefix"`

	// Type selects the driver implementation ("memory", "local", "s3", ...).
	Type string `json:"type"`

	// Config holds driver-specific settings.
	Config map[string]string `json:"config,omitempty"`

	// CacheTTL is how long directory listings for this mount stay cached.
	// Zero or negative disables listing caching entirely.
	CacheTTL time.Duration `json:"cache_ttl"`

	// ForceProxy makes link resolution always return the proxy URL,
	// even when the driver could hand out a direct link.
	ForceProxy bool `json:"force_proxy"`

	// StorageConfigID groups mounts sharing one backend credential set.
	// Invalidation events carrying a storage config ID fan out to every
	// mount with the same value.
	StorageConfigID string `json:"storage_config_id,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Clone returns a deep copy of the mount.
func (m *Mount) Clone() *Mount {
	if m == nil {
		return nil
	}

	dup := *m
	if m.Config != nil {
		dup.Config = make(map[string]string, len(m.Config))
		for k, v := range m.Config {
			dup.Config[k] = v
		}
	}

	return &dup
}
