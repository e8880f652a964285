package driver

import (
	"context"

	"github.com/mwantia/vgate/data"
)

// DirectLinker is the DIRECT_LINK capability: the driver can hand out a
// backend-native or pre-signed URL that bypasses the gateway host.
type DirectLinker interface {
	Driver

	// DirectLink generates a direct or pre-signed download URL.
	DirectLink(ctx context.Context, subPath string, args data.LinkArgs) (*data.Link, error)
}

// Proxier generates URLs routed through the gateway host. Usable
// independently of DIRECT_LINK; drivers without any native URL scheme
// usually support only this.
type Proxier interface {
	Driver

	// ProxyLink generates a server-proxied download URL.
	ProxyLink(ctx context.Context, subPath string, args data.LinkArgs) (*data.Link, error)
}
