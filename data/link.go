package data

import "time"

// LinkType tags how a resolved link reaches the object.
type LinkType string

const (
	// LinkTypeDirect is a backend-native URL the client fetches directly.
	LinkTypeDirect LinkType = "direct"

	// LinkTypeSigned is a pre-signed URL with an embedded expiry.
	LinkTypeSigned LinkType = "signed"

	// LinkTypeProxy routes the transfer through the gateway host.
	LinkTypeProxy LinkType = "proxy"
)

// Link is the result of link resolution for a virtual path.
type Link struct {
	URL       string        `json:"url"`
	Type      LinkType      `json:"type"`
	ExpiresIn time.Duration `json:"expires_in,omitempty"`
}

// LinkArgs carries per-request link resolution flags.
type LinkArgs struct {
	// ForceDownload requests a content-disposition download link where
	// the driver distinguishes inline and attachment URLs.
	ForceDownload bool

	// ForceProxy requests the proxy URL regardless of driver support
	// for direct links. The mount-level ForceProxy flag has the same
	// effect for every request against that mount.
	ForceProxy bool
}
