// Package driver defines the backend contract consumed by the gateway.
// Every backend implements Driver plus a subset of the capability
// interfaces; callers must check capabilities with Has before invoking
// gated methods.
package driver

import "context"

// Driver is the lifecycle entrypoint every backend implements.
type Driver interface {
	// Type returns the backend type identifier ("memory", "local", "s3", ...).
	Type() string

	// Open is called once before the driver serves requests.
	Open(ctx context.Context) error

	// Close releases backend resources.
	Close(ctx context.Context) error

	// Capabilities returns the set of capabilities this driver declares.
	Capabilities() Capabilities
}
