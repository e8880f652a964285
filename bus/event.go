package bus

// Target selects which subscriber family an event is aimed at.
type Target string

const (
	// TargetFS events concern filesystem listings and derived state.
	TargetFS Target = "fs"

	// TargetPreview events concern preview/thumbnail style caches.
	TargetPreview Target = "preview"
)

// Event is a single logical cache invalidation, fanned out to every
// registered subscriber. Ephemeral; consumed at most once per
// subscriber.
type Event struct {
	Target Target `json:"target"`

	// MountID scopes the event to one mount. Empty together with
	// StorageConfigID only for InvalidateAll / version bump events.
	MountID string `json:"mount_id,omitempty"`

	// Paths are object paths whose own cached state (links, search
	// entries, parent listing) is stale.
	Paths []string `json:"paths,omitempty"`

	// DirPaths are directory paths whose entire cached subtree is
	// stale (delete, move, rename of a directory).
	DirPaths []string `json:"dir_paths,omitempty"`

	// StorageConfigID fans the event out to every mount bound to the
	// same backend credential set.
	StorageConfigID string `json:"storage_config_id,omitempty"`

	// InvalidateAll drops everything in every subscribing cache.
	InvalidateAll bool `json:"invalidate_all,omitempty"`

	// BumpMountsVersion signals resolvers to refresh their mount view.
	BumpMountsVersion bool `json:"bump_mounts_version,omitempty"`

	// Reason is a free-form tag for logging ("rename", "upload", ...).
	Reason string `json:"reason"`
}
