package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mwantia/vgate/data"
	"github.com/mwantia/vgate/ledger"
)

func (ss *SQLiteStore) CreateSession(ctx context.Context, session *ledger.Session) error {
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

	_, err := ss.db.ExecContext(ctx, `
		INSERT INTO vgate_sessions (id, mount_id, path, file_name, file_size, part_size, part_count,
			storage_type, strategy, provider_upload_id, provider_meta, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, session.ID, session.MountID, data.NormalizePath(session.Path), session.FileName,
		session.FileSize, session.PartSize, session.PartCount,
		session.StorageType, session.Strategy,
		nullString(session.ProviderUploadID), nullString(session.ProviderMeta),
		session.CreatedAt.Unix(), session.UpdatedAt.Unix())

	return err
}

func (ss *SQLiteStore) GetSession(ctx context.Context, id string) (*ledger.Session, error) {
	row := ss.db.QueryRowContext(ctx, `
		SELECT id, mount_id, path, file_name, file_size, part_size, part_count,
			storage_type, strategy, provider_upload_id, provider_meta, created_at, updated_at
		FROM vgate_sessions WHERE id = ?
	`, id)

	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, data.ErrSessionNotFound
	}

	return session, err
}

func (ss *SQLiteStore) TouchSession(ctx context.Context, id string, at time.Time) error {
	result, err := ss.db.ExecContext(ctx, `
		UPDATE vgate_sessions SET updated_at = ? WHERE id = ?
	`, at.Unix(), id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return data.ErrSessionNotFound
	}

	return nil
}

func (ss *SQLiteStore) ListSessionsByPath(ctx context.Context, mountID, path string) ([]*ledger.Session, error) {
	rows, err := ss.db.QueryContext(ctx, `
		SELECT id, mount_id, path, file_name, file_size, part_size, part_count,
			storage_type, strategy, provider_upload_id, provider_meta, created_at, updated_at
		FROM vgate_sessions WHERE mount_id = ? AND path = ?
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

func (ss *SQLiteStore) DeleteSessions(ctx context.Context, ids []string) error {
	for _, chunk := range ledger.Chunk(ids) {
		placeholders, args := placeholderList(chunk)

		if _, err := ss.db.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM vgate_parts WHERE upload_id IN (%s)`, placeholders), args...); err != nil {
			return err
		}
		if _, err := ss.db.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM vgate_sessions WHERE id IN (%s)`, placeholders), args...); err != nil {
			return err
		}
	}

	return nil
}

func (ss *SQLiteStore) UpsertPart(ctx context.Context, part *ledger.Part) error {
	if part.ID == "" {
		part.ID = uuid.Must(uuid.NewV7()).String()
	}

	now := time.Now()
	if part.CreatedAt.IsZero() {
		part.CreatedAt = now
	}
	part.UpdatedAt = now

	// Last write wins on the (upload_id, part_no) unique key; the
	// original row id and created_at survive the conflict.
	_, err := ss.db.ExecContext(ctx, `
		INSERT INTO vgate_parts (id, upload_id, part_no, byte_start, byte_end, size,
			checksum, checksum_algo, storage_type, provider_part_id, provider_meta,
			status, error_code, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(upload_id, part_no) DO UPDATE SET
			byte_start = excluded.byte_start,
			byte_end = excluded.byte_end,
			size = excluded.size,
			checksum = excluded.checksum,
			checksum_algo = excluded.checksum_algo,
			storage_type = excluded.storage_type,
			provider_part_id = excluded.provider_part_id,
			provider_meta = excluded.provider_meta,
			status = excluded.status,
			error_code = excluded.error_code,
			error_message = excluded.error_message,
			updated_at = excluded.updated_at
	`, part.ID, part.UploadID, part.PartNo, part.ByteStart, part.ByteEnd, part.Size,
		nullString(part.Checksum), nullString(part.ChecksumAlgo), part.StorageType,
		nullString(part.ProviderPartID), nullString(part.ProviderMeta),
		string(part.Status), nullString(part.ErrorCode), nullString(part.ErrorMessage),
		part.CreatedAt.Unix(), part.UpdatedAt.Unix())

	return err
}

func (ss *SQLiteStore) ListParts(ctx context.Context, uploadID string) ([]*ledger.Part, error) {
	rows, err := ss.db.QueryContext(ctx, `
		SELECT id, upload_id, part_no, byte_start, byte_end, size,
			checksum, checksum_algo, storage_type, provider_part_id, provider_meta,
			status, error_code, error_message, created_at, updated_at
		FROM vgate_parts WHERE upload_id = ?
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

func (ss *SQLiteStore) DeleteParts(ctx context.Context, uploadIDs []string) error {
	for _, chunk := range ledger.Chunk(uploadIDs) {
		placeholders, args := placeholderList(chunk)

		if _, err := ss.db.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM vgate_parts WHERE upload_id IN (%s)`, placeholders), args...); err != nil {
			return err
		}
	}

	return nil
}

func (ss *SQLiteStore) SweepExpired(ctx context.Context, cutoff time.Time) (int, error) {
	rows, err := ss.db.QueryContext(ctx, `
		SELECT id FROM vgate_sessions WHERE updated_at < ?
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

	if err := ss.DeleteSessions(ctx, expired); err != nil {
		return 0, err
	}

	return len(expired), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*ledger.Session, error) {
	var session ledger.Session
	var providerUploadID, providerMeta sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(&session.ID, &session.MountID, &session.Path, &session.FileName,
		&session.FileSize, &session.PartSize, &session.PartCount,
		&session.StorageType, &session.Strategy,
		&providerUploadID, &providerMeta, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	session.ProviderUploadID = providerUploadID.String
	session.ProviderMeta = providerMeta.String
	session.CreatedAt = time.Unix(createdAt, 0)
	session.UpdatedAt = time.Unix(updatedAt, 0)

	return &session, nil
}

func scanPart(row scanner) (*ledger.Part, error) {
	var part ledger.Part
	var checksum, checksumAlgo, providerPartID, providerMeta, errorCode, errorMessage sql.NullString
	var status string
	var createdAt, updatedAt int64

	err := row.Scan(&part.ID, &part.UploadID, &part.PartNo,
		&part.ByteStart, &part.ByteEnd, &part.Size,
		&checksum, &checksumAlgo, &part.StorageType, &providerPartID, &providerMeta,
		&status, &errorCode, &errorMessage, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	part.Checksum = checksum.String
	part.ChecksumAlgo = checksumAlgo.String
	part.ProviderPartID = providerPartID.String
	part.ProviderMeta = providerMeta.String
	part.Status = ledger.PartStatus(status)
	part.ErrorCode = errorCode.String
	part.ErrorMessage = errorMessage.String
	part.CreatedAt = time.Unix(createdAt, 0)
	part.UpdatedAt = time.Unix(updatedAt, 0)

	return &part, nil
}

func placeholderList(ids []string) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	return strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", "), args
}
