package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/docvault/docvault/interfaces"
)

const createTableStmt = `
CREATE TABLE IF NOT EXISTS documents (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	file_type       TEXT NOT NULL,
	file_size       BIGINT NOT NULL,
	locators        JSONB NOT NULL DEFAULT '[]',
	ledger_ref      TEXT NOT NULL DEFAULT '',
	owner           TEXT NOT NULL,
	version         INTEGER NOT NULL DEFAULT 1,
	status          TEXT NOT NULL,
	tags            JSONB NOT NULL DEFAULT '[]',
	signature_count BIGINT NOT NULL DEFAULT 0,
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
)`

// PostgresStore persists document records in a single documents table.
// Open the handle with the pgx stdlib driver, e.g.
// sql.Open("pgx", dsn).
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps an open database handle and ensures the schema
// exists.
func NewPostgresStore(ctx context.Context, db *sql.DB) (*PostgresStore, error) {
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database unreachable: %w", err)
	}
	if _, err := db.ExecContext(ctx, createTableStmt); err != nil {
		return nil, fmt.Errorf("ensuring documents table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Save(ctx context.Context, record *interfaces.DocumentRecord) error {
	locators, err := json.Marshal(record.StorageLocators)
	if err != nil {
		return fmt.Errorf("encoding locators: %w", err)
	}
	tags, err := json.Marshal(record.Tags)
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (
			id, name, description, file_type, file_size, locators,
			ledger_ref, owner, version, status, tags, signature_count,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			locators = EXCLUDED.locators,
			ledger_ref = EXCLUDED.ledger_ref,
			version = EXCLUDED.version,
			status = EXCLUDED.status,
			tags = EXCLUDED.tags,
			signature_count = EXCLUDED.signature_count,
			updated_at = EXCLUDED.updated_at`,
		record.ID.String(), record.Name, record.Description, record.FileType,
		record.FileSize, locators, refString(record.LedgerRecordRef),
		record.Owner.String(), record.Version, string(record.Status), tags,
		record.SignatureCount, record.CreatedAt, record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving document %s: %w", record.ID, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id interfaces.ContentID) (*interfaces.DocumentRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, file_type, file_size, locators,
		       ledger_ref, owner, version, status, tags, signature_count,
		       created_at, updated_at
		FROM documents WHERE id = $1`, id.String())

	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading document %s: %w", id, err)
	}
	return record, nil
}

func (s *PostgresStore) Rekey(ctx context.Context, oldID interfaces.ContentID, record *interfaces.DocumentRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting rekey transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, oldID.String())
	if err != nil {
		return fmt.Errorf("removing superseded document %s: %w", oldID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return interfaces.ErrDocumentNotFound
	}

	locators, err := json.Marshal(record.StorageLocators)
	if err != nil {
		return fmt.Errorf("encoding locators: %w", err)
	}
	tags, err := json.Marshal(record.Tags)
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (
			id, name, description, file_type, file_size, locators,
			ledger_ref, owner, version, status, tags, signature_count,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		record.ID.String(), record.Name, record.Description, record.FileType,
		record.FileSize, locators, refString(record.LedgerRecordRef),
		record.Owner.String(), record.Version, string(record.Status), tags,
		record.SignatureCount, record.CreatedAt, record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving rekeyed document %s: %w", record.ID, err)
	}

	return tx.Commit()
}

func (s *PostgresStore) List(ctx context.Context, owner interfaces.Identity, limit, offset int) ([]interfaces.DocumentRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, file_type, file_size, locators,
		       ledger_ref, owner, version, status, tags, signature_count,
		       created_at, updated_at
		FROM documents WHERE owner = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, owner.String(), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing documents for %s: %w", owner, err)
	}
	defer rows.Close()

	records := make([]interfaces.DocumentRecord, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*interfaces.DocumentRecord, error) {
	var (
		record            interfaces.DocumentRecord
		idHex, ownerHex   string
		refHex, status    string
		locators, tagsRaw []byte
	)

	err := row.Scan(&idHex, &record.Name, &record.Description, &record.FileType,
		&record.FileSize, &locators, &refHex, &ownerHex, &record.Version,
		&status, &tagsRaw, &record.SignatureCount, &record.CreatedAt,
		&record.UpdatedAt)
	if err != nil {
		return nil, err
	}

	record.ID, err = interfaces.NewContentIDFromHex(idHex)
	if err != nil {
		return nil, fmt.Errorf("invalid stored id %q: %w", idHex, err)
	}
	record.Owner, err = interfaces.NewIdentityFromHex(ownerHex)
	if err != nil {
		return nil, fmt.Errorf("invalid stored owner %q: %w", ownerHex, err)
	}
	if refHex != "" {
		ref, err := interfaces.NewContentIDFromHex(refHex)
		if err != nil {
			return nil, fmt.Errorf("invalid stored ledger ref %q: %w", refHex, err)
		}
		record.LedgerRecordRef = interfaces.RecordRef(ref)
	}
	record.Status = interfaces.DocumentStatus(status)

	if err := json.Unmarshal(locators, &record.StorageLocators); err != nil {
		return nil, fmt.Errorf("decoding locators: %w", err)
	}
	if len(tagsRaw) > 0 {
		if err := json.Unmarshal(tagsRaw, &record.Tags); err != nil {
			return nil, fmt.Errorf("decoding tags: %w", err)
		}
	}
	return &record, nil
}

func refString(ref interfaces.RecordRef) string {
	if ref.IsZero() {
		return ""
	}
	return interfaces.ContentID(ref).String()
}
