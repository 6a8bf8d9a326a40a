package temporal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/agenthands/chronicle/internal/core/common"
	"github.com/agenthands/chronicle/internal/core/errs"
	"github.com/agenthands/chronicle/internal/core/model"
)

const sqlSchema = `
CREATE TABLE IF NOT EXISTS temporal_records (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL UNIQUE,
	ledger      TEXT NOT NULL,
	scope_id    TEXT NOT NULL,
	subject     TEXT NOT NULL,
	object      TEXT NOT NULL DEFAULT '',
	kind        TEXT NOT NULL,
	item_key    TEXT NOT NULL DEFAULT '',
	payload     TEXT NOT NULL,
	valid_from  REAL NOT NULL,
	inserted_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_temporal_subject
	ON temporal_records (ledger, scope_id, subject, kind, item_key, valid_from);
CREATE INDEX IF NOT EXISTS idx_temporal_object
	ON temporal_records (ledger, scope_id, object);
`

const selectColumns = `seq, id, scope_id, subject, object, kind, item_key, payload, valid_from, inserted_at`

// OpenSQLite opens (or creates) a SQLite database for the SQL stores. A single
// connection is used so that ":memory:" databases are shared by every query.
func OpenSQLite(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); path != ":memory:" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create sqlite directory %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach sqlite database %s: %w", path, err)
	}
	return db, nil
}

// SQLStore is a durable Store. Several ledgers can share one database; rows
// are partitioned by the ledger name.
type SQLStore[P any] struct {
	db     *sql.DB
	ledger string
}

func NewSQLStore[P any](ctx context.Context, db *sql.DB, ledger string) (*SQLStore[P], error) {
	if _, err := db.ExecContext(ctx, sqlSchema); err != nil {
		return nil, fmt.Errorf("failed to create temporal schema: %w", err)
	}
	return &SQLStore[P]{db: db, ledger: ledger}, nil
}

func (s *SQLStore[P]) Insert(ctx context.Context, rec model.Record[P]) (model.Record[P], error) {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return model.Record[P]{}, errs.Validation("payload is not JSON-encodable: %v", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO temporal_records (id, ledger, scope_id, subject, object, kind, item_key, payload, valid_from, inserted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, s.ledger, rec.ScopeID,
		rec.Subject.Subject, rec.Subject.Object, rec.Subject.Kind, rec.Subject.Key,
		string(payload), float64(rec.ValidFrom), rec.InsertedAt.UnixNano(),
	)
	if err != nil {
		return model.Record[P]{}, fmt.Errorf("failed to insert record: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return model.Record[P]{}, fmt.Errorf("failed to read record sequence: %w", err)
	}
	rec.Seq = uint64(seq)
	return rec, nil
}

func (s *SQLStore[P]) Get(ctx context.Context, id string) (model.Record[P], error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM temporal_records WHERE ledger = ? AND id = ?`, s.ledger, id)

	rec, err := scanRecord[P](row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Record[P]{}, errs.NotFound("record %q", id)
	}
	return rec, err
}

func (s *SQLStore[P]) Scan(ctx context.Context, scopeID string, filter Filter) ([]model.Record[P], error) {
	where := []string{"ledger = ?", "scope_id = ?"}
	args := []any{s.ledger, scopeID}

	eq := func(column, value string) {
		if value != "" {
			where = append(where, column+" = ?")
			args = append(args, value)
		}
	}
	eq("subject", filter.Subject)
	eq("object", filter.Object)
	eq("kind", filter.Kind)
	eq("item_key", filter.Key)
	if filter.Involving != "" {
		where = append(where, "(subject = ? OR object = ?)")
		args = append(args, filter.Involving, filter.Involving)
	}
	if filter.AsOf != nil {
		where = append(where, "valid_from <= ?")
		args = append(args, float64(*filter.AsOf))
	}

	query := `SELECT ` + selectColumns + ` FROM temporal_records WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY valid_from, inserted_at, seq`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var out []model.Record[P]
	for rows.Next() {
		rec, err := scanRecord[P](rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord[P any](row rowScanner) (model.Record[P], error) {
	var (
		rec        model.Record[P]
		seq        int64
		payload    string
		validFrom  float64
		insertedAt int64
	)
	err := row.Scan(&seq, &rec.ID, &rec.ScopeID,
		&rec.Subject.Subject, &rec.Subject.Object, &rec.Subject.Kind, &rec.Subject.Key,
		&payload, &validFrom, &insertedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("failed to scan record: %w", err)
	}

	decoded, err := common.DecodeJSON[P]([]byte(payload))
	if err != nil {
		return rec, fmt.Errorf("record %s: %w", rec.ID, err)
	}

	rec.Payload = decoded
	rec.Seq = uint64(seq)
	rec.ValidFrom = model.Timestamp(validFrom)
	rec.InsertedAt = time.Unix(0, insertedAt).UTC()
	return rec, nil
}
