// Package storage persists one versioned ledger document per user in
// SQLite. Load never fails the user: a missing or corrupt payload
// degrades to a default document. Save is optimistic; a version
// mismatch returns ErrVersionConflict so the caller can reload and
// reapply.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"caixa/internal/core"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrVersionConflict is returned by Save when the row changed since the
// document was loaded.
var ErrVersionConflict = errors.New("ledger version conflict")

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := applySchema(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare schema: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// applySchema brings the ledgers table up to date from the embedded
// migration files. It uses its own connection so the migration lock
// never touches the repository's pool.
func applySchema(dbPath string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("read embedded migrations: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open schema connection: %w", err)
	}
	defer conn.Close()

	driver, err := sqlite.WithInstance(conn, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("wrap sqlite connection: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("build migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Load returns the user's document and its row version. New users get a
// default document with version 0; Save then inserts it.
func (r *SQLiteRepository) Load(ctx context.Context, userID string) (*core.LedgerDocument, int64, error) {
	var (
		version int64
		payload string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT version, document FROM ledgers WHERE user_id = ?`, userID).
		Scan(&version, &payload)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return core.DefaultDocument(), 0, nil
	case err != nil:
		return nil, 0, fmt.Errorf("load ledger: %w", err)
	}

	doc, err := decodeDocument([]byte(payload))
	if err != nil {
		// Corrupt payload is not fatal: start fresh but keep the row
		// version so the next save replaces it.
		slog.WarnContext(ctx, "Ledger document corrupt, falling back to defaults",
			"user_id", userID, "error", err)
		return core.DefaultDocument(), version, nil
	}
	return doc, version, nil
}

// Save writes the document, expecting the row to still be at version.
// Version 0 means the user has no row yet. On success the stored
// version is version+1.
func (r *SQLiteRepository) Save(ctx context.Context, userID string, doc *core.LedgerDocument, version int64) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	if version == 0 {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO ledgers (user_id, version, document, updated_at)
			 VALUES (?, 1, ?, CURRENT_TIMESTAMP)`,
			userID, string(payload))
		if err != nil {
			// A concurrent first save already inserted the row.
			if isUniqueViolation(err) {
				return ErrVersionConflict
			}
			return fmt.Errorf("insert ledger: %w", err)
		}
		return nil
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE ledgers SET version = version + 1, document = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE user_id = ? AND version = ?`,
		string(payload), userID, version)
	if err != nil {
		return fmt.Errorf("update ledger: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrVersionConflict
	}
	return nil
}

// ListUsers returns every user id with a stored ledger. Used by the
// reminder scheduler.
func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id FROM ledgers ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

// decodeDocument unmarshals a stored payload and migrates it to the
// current schema. This is the single place where missing fields get
// their defaults.
func decodeDocument(payload []byte) (*core.LedgerDocument, error) {
	var doc core.LedgerDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, err
	}
	migrateDocument(&doc)
	return &doc, nil
}

// migrateDocument upgrades documents written by older builds. Older
// payloads predate the goals and notifications blocks and the schema
// version field.
func migrateDocument(doc *core.LedgerDocument) {
	if doc.SchemaVersion >= core.SchemaVersion {
		return
	}
	if doc.Transactions == nil {
		doc.Transactions = []core.Transaction{}
	}
	if doc.Closings == nil {
		doc.Closings = []core.ClosingRecord{}
	}
	def := core.DefaultDocument()
	if len(doc.CategoriesEntry) == 0 {
		doc.CategoriesEntry = def.CategoriesEntry
	}
	if len(doc.CategoriesExit) == 0 {
		doc.CategoriesExit = def.CategoriesExit
	}
	ensureFallback(&doc.CategoriesEntry)
	ensureFallback(&doc.CategoriesExit)
	doc.SchemaVersion = core.SchemaVersion
}

func ensureFallback(names *[]string) {
	for _, c := range *names {
		if c == core.FallbackCategory {
			return
		}
	}
	*names = append(*names, core.FallbackCategory)
}

func isUniqueViolation(err error) bool {
	// modernc.org/sqlite surfaces constraint failures in the error text;
	// there is no typed error to unwrap for SQLITE_CONSTRAINT.
	return err != nil && strings.Contains(err.Error(), "constraint")
}
