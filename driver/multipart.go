package driver

import (
	"context"
	"time"

	"github.com/mwantia/vgate/data"
)

// MultipartStrategy determines who is authoritative for "which parts
// exist" within an upload session.
type MultipartStrategy string

const (
	// StrategyServerCanList defers to the backend's native part listing.
	StrategyServerCanList MultipartStrategy = "server_can_list"

	// StrategyClientKeeps requires the caller to submit its own part
	// manifest at completion; the ledger alone is not authoritative.
	StrategyClientKeeps MultipartStrategy = "client_keeps"

	// StrategyServerRecords defers entirely to the parts ledger.
	StrategyServerRecords MultipartStrategy = "server_records"
)

// InitMultipartArgs describes a new multipart upload.
type InitMultipartArgs struct {
	SubPath   string
	FileName  string
	FileSize  int64
	PartSize  int64
	PartCount int
	Options   map[string]string
}

// MultipartState is the driver-owned state of one upload session.
type MultipartState struct {
	// ProviderUploadID is the backend's identifier for the upload.
	ProviderUploadID string

	// Strategy announces who can enumerate received parts.
	Strategy MultipartStrategy

	// ProviderMeta carries backend-specific state needed to sign,
	// complete or abort later. Opaque to the gateway.
	ProviderMeta map[string]string
}

// PartInstruction tells the uploader how to transfer one part.
type PartInstruction struct {
	PartNo    int               `json:"part_no"`
	URL       string            `json:"url,omitempty"`
	Method    string            `json:"method,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	ExpiresIn time.Duration     `json:"expires_in,omitempty"`
}

// ProviderPart is a part as reported by the backend itself.
type ProviderPart struct {
	PartNo         int       `json:"part_no"`
	Size           int64     `json:"size"`
	ProviderPartID string    `json:"provider_part_id,omitempty"`
	ModTime        time.Time `json:"mod_time,omitempty"`
}

// CompletePart identifies one finished part at completion time.
type CompletePart struct {
	PartNo         int    `json:"part_no"`
	ProviderPartID string `json:"provider_part_id,omitempty"`
	Checksum       string `json:"checksum,omitempty"`
}

// Multiparter is the MULTIPART capability.
type Multiparter interface {
	Driver

	// InitMultipart starts a new upload session; may pre-allocate
	// remote state.
	InitMultipart(ctx context.Context, args InitMultipartArgs) (*MultipartState, error)

	// SignParts produces upload instructions for the given part
	// numbers. Safe to call repeatedly, including for parts whose
	// earlier signature expired.
	SignParts(ctx context.Context, state *MultipartState, subPath string, partNumbers []int) ([]*PartInstruction, error)

	// ListParts enumerates received parts. Only meaningful for
	// drivers announcing StrategyServerCanList.
	ListParts(ctx context.Context, state *MultipartState, subPath string) ([]*ProviderPart, error)

	// CompleteMultipart finalizes the remote object.
	CompleteMultipart(ctx context.Context, state *MultipartState, subPath string, parts []CompletePart) (*data.ObjectInfo, error)

	// AbortMultipart releases remote resources for the session.
	AbortMultipart(ctx context.Context, state *MultipartState, subPath string) error
}
