package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mwantia/vgate/data"
	"github.com/mwantia/vgate/ledger"
)

func (ps *PostgresStore) CreateSession(ctx context.Context, session *ledger.Session) error {
	if session.ID == "" {
		session.ID = uuid.Must(uuid.NewV7()).String()
	}

	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = now
	}

	_, err := ps.pool.Exec(ctx, `
		INSERT INTO vgate_sessions (id, mount_id, path, file_name, file_size, part_size, part_count,
			storage_type, strategy, provider_upload_id, provider_meta, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, session.ID, session.MountID, data.NormalizePath(session.Path), session.FileName,
		session.FileSize, session.PartSize, session.PartCount,
		session.StorageType, session.Strategy,
		session.ProviderUploadID, session.ProviderMeta,
		session.CreatedAt.Unix(), session.UpdatedAt.Unix())

	return err
}

func (ps *PostgresStore) GetSession(ctx context.Context, id string) (*ledger.Session, error) {
	row := ps.pool.QueryRow(ctx, `
		SELECT id, mount_id, path, file_name, file_size, part_size, part_count,
			storage_type, strategy, provider_upload_id, provider_meta, created_at, updated_at
		FROM vgate_sessions WHERE id = $1
	`, id)

	session, err := scanSession(row)
	if err == pgx.ErrNoRows {
		return nil, data.ErrSessionNotFound
	}

	return session, err
}

func (ps *PostgresStore) TouchSession(ctx context.Context, id string, at time.Time) error {
	tag, err := ps.pool.Exec(ctx, `
		UPDATE vgate_sessions SET updated_at = $1 WHERE id = $2
	`, at.Unix(), id)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return data.ErrSessionNotFound
	}

	return nil
}

func (ps *PostgresStore) ListSessionsByPath(ctx context.Context, mountID, path string) ([]*ledger.Session, error) {
	rows, err := ps.pool.Query(ctx, `
		SELECT id, mount_id, path, file_name, file_size, part_size, part_count,
			storage_type, strategy, provider_upload_id, provider_meta, created_at, updated_at
		FROM vgate_sessions WHERE mount_id = $1 AND path = $2
		ORDER BY updated_at DESC
	`, mountID, data.NormalizePath(path))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*ledger.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	return sessions, rows.Err()
}

func (ps *PostgresStore) DeleteSessions(ctx context.Context, ids []string) error {
	for _, chunk := range ledger.Chunk(ids) {
		if _, err := ps.pool.Exec(ctx,
			`DELETE FROM vgate_parts WHERE upload_id = ANY($1)`, chunk); err != nil {
			return err
		}
		if _, err := ps.pool.Exec(ctx,
			`DELETE FROM vgate_sessions WHERE id = ANY($1)`, chunk); err != nil {
			return err
		}
	}

	return nil
}

func (ps *PostgresStore) UpsertPart(ctx context.Context, part *ledger.Part) error {
	if part.ID == "" {
		part.ID = uuid.Must(uuid.NewV7()).String()
	}

	now := time.Now()
	if part.CreatedAt.IsZero() {
		part.CreatedAt = now
	}
	part.UpdatedAt = now

	_, err := ps.pool.Exec(ctx, `
		INSERT INTO vgate_parts (id, upload_id, part_no, byte_start, byte_end, size,
			checksum, checksum_algo, storage_type, provider_part_id, provider_meta,
			status, error_code, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (upload_id, part_no) DO UPDATE SET
			byte_start = EXCLUDED.byte_start,
			byte_end = EXCLUDED.byte_end,
			size = EXCLUDED.size,
			checksum = EXCLUDED.checksum,
			checksum_algo = EXCLUDED.checksum_algo,
			storage_type = EXCLUDED.storage_type,
			provider_part_id = EXCLUDED.provider_part_id,
			provider_meta = EXCLUDED.provider_meta,
			status = EXCLUDED.status,
			error_code = EXCLUDED.error_code,
			error_message = EXCLUDED.error_message,
			updated_at = EXCLUDED.updated_at
	`, part.ID, part.UploadID, part.PartNo, part.ByteStart, part.ByteEnd, part.Size,
		part.Checksum, part.ChecksumAlgo, part.StorageType,
		part.ProviderPartID, part.ProviderMeta,
		string(part.Status), part.ErrorCode, part.ErrorMessage,
		part.CreatedAt.Unix(), part.UpdatedAt.Unix())

	return err
}

func (ps *PostgresStore) ListParts(ctx context.Context, uploadID string) ([]*ledger.Part, error) {
	rows, err := ps.pool.Query(ctx, `
		SELECT id, upload_id, part_no, byte_start, byte_end, size,
			checksum, checksum_algo, storage_type, provider_part_id, provider_meta,
			status, error_code, error_message, created_at, updated_at
		FROM vgate_parts WHERE upload_id = $1
		ORDER BY part_no ASC
	`, uploadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var parts []*ledger.Part
	for rows.Next() {
		part, err := scanPart(rows)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}

	return parts, rows.Err()
}

func (ps *PostgresStore) DeleteParts(ctx context.Context, uploadIDs []string) error {
	for _, chunk := range ledger.Chunk(uploadIDs) {
		if _, err := ps.pool.Exec(ctx,
			`DELETE FROM vgate_parts WHERE upload_id = ANY($1)`, chunk); err != nil {
			return err
		}
	}

	return nil
}

func (ps *PostgresStore) SweepExpired(ctx context.Context, cutoff time.Time) (int, error) {
	rows, err := ps.pool.Query(ctx, `
		SELECT id FROM vgate_sessions WHERE updated_at < $1
	`, cutoff.Unix())
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var expired []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
		expired = append(expired, id)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	if err := ps.DeleteSessions(ctx, expired); err != nil {
		return 0, err
	}

	return len(expired), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*ledger.Session, error) {
	var session ledger.Session
	var providerUploadID, providerMeta *string
	var createdAt, updatedAt int64

	err := row.Scan(&session.ID, &session.MountID, &session.Path, &session.FileName,
		&session.FileSize, &session.PartSize, &session.PartCount,
		&session.StorageType, &session.Strategy,
		&providerUploadID, &providerMeta, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if providerUploadID != nil {
		session.ProviderUploadID = *providerUploadID
	}
	if providerMeta != nil {
		session.ProviderMeta = *providerMeta
	}
	session.CreatedAt = time.Unix(createdAt, 0)
	session.UpdatedAt = time.Unix(updatedAt, 0)

	return &session, nil
}

func scanPart(row scanner) (*ledger.Part, error) {
	var part ledger.Part
	var checksum, checksumAlgo, providerPartID, providerMeta, errorCode, errorMessage *string
	var status string
	var createdAt, updatedAt int64

	err := row.Scan(&part.ID, &part.UploadID, &part.PartNo,
		&part.ByteStart, &part.ByteEnd, &part.Size,
		&checksum, &checksumAlgo, &part.StorageType, &providerPartID, &providerMeta,
		&status, &errorCode, &errorMessage, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	assign := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	assign(&part.Checksum, checksum)
	assign(&part.ChecksumAlgo, checksumAlgo)
	assign(&part.ProviderPartID, providerPartID)
	assign(&part.ProviderMeta, providerMeta)
	assign(&part.ErrorCode, errorCode)
	assign(&part.ErrorMessage, errorMessage)

	part.Status = ledger.PartStatus(status)
	part.CreatedAt = time.Unix(createdAt, 0)
	part.UpdatedAt = time.Unix(updatedAt, 0)

	return &part, nil
}
