// Package multipart coordinates multi-step uploads over drivers whose
// native multipart semantics differ. Session and part state lives in
// the ledger so uploads survive client reconnects and gateway restarts.
package multipart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mwantia/vgate/bus"
	"github.com/mwantia/vgate/data"
	"github.com/mwantia/vgate/data/errors"
	"github.com/mwantia/vgate/driver"
	"github.com/mwantia/vgate/ledger"
	"github.com/mwantia/vgate/log"
)

// Resolver maps a virtual path to its driver, mount and sub-path.
// Implemented by the gateway.
type Resolver interface {
	Resolve(ctx context.Context, path string) (driver.Driver, *data.Mount, string, error)
}

// Coordinator runs the uniform multipart protocol: initialize, sign,
// acknowledge, complete, abort, resume. All driver calls are gated
// behind the MULTIPART capability.
type Coordinator struct {
	resolver Resolver
	store    ledger.Store
	events   *bus.Bus
	logger   *log.Logger
}

func NewCoordinator(resolver Resolver, store ledger.Store, events *bus.Bus, logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = log.Discard()
	}

	return &Coordinator{
		resolver: resolver,
		store:    store,
		events:   events,
		logger:   logger.Named("multipart"),
	}
}

// InitializeArgs describes a new upload session.
type InitializeArgs struct {
	Path      string
	FileName  string
	FileSize  int64
	PartSize  int64
	PartCount int
	Options   map[string]string
}

// Initialize starts a new multipart upload session against the path's
// driver and persists the session descriptor.
func (c *Coordinator) Initialize(ctx context.Context, args InitializeArgs) (*ledger.Session, error) {
	if args.FileName == "" {
		return nil, errors.Validation("file name must not be empty")
	}
	if args.PartCount <= 0 || args.PartSize <= 0 {
		return nil, errors.Validation("part size and part count must be positive")
	}

	drv, mnt, subPath, err := c.resolver.Resolve(ctx, args.Path)
	if err != nil {
		return nil, err
	}

	mp, err := multiparter(drv)
	if err != nil {
		return nil, err
	}

	state, err := mp.InitMultipart(ctx, driver.InitMultipartArgs{
		SubPath:   subPath,
		FileName:  args.FileName,
		FileSize:  args.FileSize,
		PartSize:  args.PartSize,
		PartCount: args.PartCount,
		Options:   args.Options,
	})
	if err != nil {
		return nil, err
	}

	meta, err := encodeMeta(state.ProviderMeta)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := &ledger.Session{
		ID:      uuid.Must(uuid.NewV7()).String(),
		MountID: mnt.ID,
		Path:    data.NormalizePath(args.Path),

		FileName:  args.FileName,
		FileSize:  args.FileSize,
		PartSize:  args.PartSize,
		PartCount: args.PartCount,

		StorageType:      drv.Type(),
		Strategy:         string(state.Strategy),
		ProviderUploadID: state.ProviderUploadID,
		ProviderMeta:     meta,

		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := c.store.CreateSession(ctx, session); err != nil {
		// The remote upload was already opened; release it rather
		// than leaking provider state nothing will ever reference.
		if abortErr := mp.AbortMultipart(ctx, state, subPath); abortErr != nil {
			c.logger.Warn("Failed to abort orphaned upload '%s': %v", state.ProviderUploadID, abortErr)
		}
		return nil, err
	}

	c.logger.Debug("Initialized upload session '%s' for '%s' (%d parts)", session.ID, session.Path, session.PartCount)
	return session, nil
}

// SignParts produces upload instructions for the given part numbers.
// Idempotent from the caller's perspective; re-signing parts whose
// earlier signature expired is always safe.
func (c *Coordinator) SignParts(ctx context.Context, sessionID string, partNumbers []int) ([]*driver.PartInstruction, error) {
	if len(partNumbers) == 0 {
		return nil, errors.Validation("no part numbers given")
	}

	session, mp, state, subPath, err := c.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	instructions, err := mp.SignParts(ctx, state, subPath, partNumbers)
	if err != nil {
		return nil, err
	}

	if err := c.store.TouchSession(ctx, session.ID, time.Now()); err != nil {
		c.logger.Warn("Failed to touch session '%s': %v", session.ID, err)
	}

	return instructions, nil
}

// PartAck reports one completed part transfer.
type PartAck struct {
	PartNo         int
	ByteStart      int64
	ByteEnd        int64
	Size           int64
	Checksum       string
	ChecksumAlgo   string
	ProviderPartID string
	ProviderMeta   string
}

// AckPart upserts the part record for a finished transfer. A resend of
// the same part number overwrites the prior record. Ledger failures
// propagate: the caller must know that resume state may be unreliable.
func (c *Coordinator) AckPart(ctx context.Context, sessionID string, ack PartAck) error {
	session, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	if ack.PartNo <= 0 {
		return errors.Validation("part number must be positive, got %d", ack.PartNo)
	}

	err = c.store.UpsertPart(ctx, &ledger.Part{
		UploadID: session.ID,
		PartNo:   ack.PartNo,

		ByteStart: ack.ByteStart,
		ByteEnd:   ack.ByteEnd,
		Size:      ack.Size,

		Checksum:     ack.Checksum,
		ChecksumAlgo: ack.ChecksumAlgo,

		StorageType:    session.StorageType,
		ProviderPartID: ack.ProviderPartID,
		ProviderMeta:   ack.ProviderMeta,

		Status: ledger.PartStatusUploaded,
	})
	if err != nil {
		return err
	}

	if err := c.store.TouchSession(ctx, session.ID, time.Now()); err != nil {
		c.logger.Warn("Failed to touch session '%s': %v", session.ID, err)
	}

	return nil
}

// MarkPartError records a failed part without touching prior successful
// parts, so the client can retry only the failed part numbers.
func (c *Coordinator) MarkPartError(ctx context.Context, sessionID string, partNo int, errorCode, errorMessage string) error {
	session, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	return c.store.UpsertPart(ctx, &ledger.Part{
		UploadID:     session.ID,
		PartNo:       partNo,
		StorageType:  session.StorageType,
		Status:       ledger.PartStatusError,
		ErrorCode:    errorCode,
		ErrorMessage: errorMessage,
	})
}

// ListParts returns the session's received parts. Which source is
// authoritative depends on the strategy: server_can_list defers to the
// backend, server_records to the ledger. For client_keeps the ledger is
// returned as a best-effort view; only the client's own manifest counts
// at completion time.
func (c *Coordinator) ListParts(ctx context.Context, sessionID string) ([]*ledger.Part, error) {
	session, mp, state, subPath, err := c.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if state.Strategy == driver.StrategyServerCanList {
		provider, err := mp.ListParts(ctx, state, subPath)
		if err != nil {
			return nil, err
		}

		parts := make([]*ledger.Part, 0, len(provider))
		for _, pp := range provider {
			parts = append(parts, &ledger.Part{
				UploadID:       session.ID,
				PartNo:         pp.PartNo,
				Size:           pp.Size,
				StorageType:    session.StorageType,
				ProviderPartID: pp.ProviderPartID,
				Status:         ledger.PartStatusUploaded,
				UpdatedAt:      pp.ModTime,
			})
		}

		return parts, nil
	}

	return c.store.ListParts(ctx, session.ID)
}

// ListPartNumbers returns the uploaded part numbers of the session.
func (c *Coordinator) ListPartNumbers(ctx context.Context, sessionID string) ([]int, error) {
	parts, err := c.ListParts(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	numbers := make([]int, 0, len(parts))
	for _, part := range parts {
		if part.Status == ledger.PartStatusUploaded {
			numbers = append(numbers, part.PartNo)
		}
	}

	return numbers, nil
}

// Complete finalizes the remote object. The parts argument is required
// for client_keeps sessions; for the other strategies it may be nil, in
// which case the authoritative source fills it in. On success the
// session's ledger rows are deleted and an invalidation event for the
// target path is published.
func (c *Coordinator) Complete(ctx context.Context, sessionID string, parts []driver.CompletePart) (*data.ObjectInfo, error) {
	session, mp, state, subPath, err := c.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if len(parts) == 0 {
		if state.Strategy == driver.StrategyClientKeeps {
			return nil, errors.Validation("session '%s' requires the client part manifest to complete", session.ID)
		}

		recorded, err := c.ListParts(ctx, sessionID)
		if err != nil {
			return nil, err
		}

		for _, part := range recorded {
			if part.Status != ledger.PartStatusUploaded {
				continue
			}

			parts = append(parts, driver.CompletePart{
				PartNo:         part.PartNo,
				ProviderPartID: part.ProviderPartID,
				Checksum:       part.Checksum,
			})
		}
	}

	if len(parts) == 0 {
		return nil, errors.Validation("session '%s' has no uploaded parts", session.ID)
	}

	info, err := mp.CompleteMultipart(ctx, state, subPath, parts)
	if err != nil {
		return nil, err
	}

	// Ledger entries are working state, not an audit log.
	if err := c.store.DeleteSessions(ctx, []string{session.ID}); err != nil {
		c.logger.Warn("Failed to clean up session '%s': %v", session.ID, err)
	}

	c.publish(session, "multipart-complete")
	return info, nil
}

// Abort releases remote resources if the driver can, deletes the
// session's ledger rows and invalidates the target path's caches so a
// retried upload never sees a half-finished object.
func (c *Coordinator) Abort(ctx context.Context, sessionID string) error {
	session, mp, state, subPath, err := c.load(ctx, sessionID)
	if err != nil {
		return err
	}

	if err := mp.AbortMultipart(ctx, state, subPath); err != nil {
		c.logger.Warn("Driver abort for session '%s' failed: %v", session.ID, err)
	}

	if err := c.store.DeleteSessions(ctx, []string{session.ID}); err != nil {
		return err
	}

	c.publish(session, "multipart-abort")
	return nil
}

// OpenSessions lists all sessions still open for the target path, each
// annotated with the durably recorded parts, so a reconnecting client
// can pick the best match or discard and restart.
func (c *Coordinator) OpenSessions(ctx context.Context, path string) ([]*SessionStatus, error) {
	_, mnt, _, err := c.resolver.Resolve(ctx, path)
	if err != nil {
		return nil, err
	}

	sessions, err := c.store.ListSessionsByPath(ctx, mnt.ID, path)
	if err != nil {
		return nil, err
	}

	statuses := make([]*SessionStatus, 0, len(sessions))
	for _, session := range sessions {
		status := &SessionStatus{Session: session}

		parts, err := c.store.ListParts(ctx, session.ID)
		if err != nil {
			c.logger.Warn("Failed to list parts for session '%s': %v", session.ID, err)
			statuses = append(statuses, status)
			continue
		}

		for _, part := range parts {
			switch part.Status {
			case ledger.PartStatusUploaded:
				status.PartsUploaded++
				status.PartNumbers = append(status.PartNumbers, part.PartNo)
			case ledger.PartStatusError:
				status.PartsFailed++
			}
		}

		statuses = append(statuses, status)
	}

	return statuses, nil
}

// GC reclaims sessions not updated since the cutoff. An actively
// uploading client renews UpdatedAt on every sign and acknowledge, so
// the cutoff acts as an implicit lease.
func (c *Coordinator) GC(ctx context.Context, cutoff time.Time) (int, error) {
	reclaimed, err := c.store.SweepExpired(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	if reclaimed > 0 {
		c.logger.Info("Reclaimed %d abandoned upload sessions", reclaimed)
	}

	return reclaimed, nil
}

func (c *Coordinator) load(ctx context.Context, sessionID string) (*ledger.Session, driver.Multiparter, *driver.MultipartState, string, error) {
	session, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, nil, "", err
	}

	drv, _, subPath, err := c.resolver.Resolve(ctx, session.Path)
	if err != nil {
		return nil, nil, nil, "", err
	}

	mp, err := multiparter(drv)
	if err != nil {
		return nil, nil, nil, "", err
	}

	state, err := driverState(session)
	if err != nil {
		return nil, nil, nil, "", err
	}

	return session, mp, state, subPath, nil
}

func (c *Coordinator) publish(session *ledger.Session, reason string) {
	if c.events == nil {
		return
	}

	c.events.PublishAsync(bus.Event{
		Target:  bus.TargetFS,
		MountID: session.MountID,
		Paths:   []string{session.Path},
		Reason:  reason,
	})
}

func multiparter(drv driver.Driver) (driver.Multiparter, error) {
	if !driver.Has(drv, driver.CapMultipart) {
		return nil, errors.DriverNotImplemented(drv.Type(), string(driver.CapMultipart))
	}

	return drv.(driver.Multiparter), nil
}
