package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/civica-research/arenactl/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Intended for
// single-node deployments and local development; Postgres is the primary
// driver.
type SQLiteStore struct {
	db *sql.DB
}

// sqliteTimeLayout is fixed-width so stored UTC timestamps compare
// lexicographically, which MIN/MAX and range predicates rely on.
const sqliteTimeLayout = "2006-01-02 15:04:05.000000000"

func fmtTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(sqliteTimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "sqlite: parse time %q", s)
	}
	return t, nil
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	// One writer at a time keeps the ledger's check-then-insert serial.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS credit_allocations (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	amount     REAL NOT NULL,
	granted_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_credit_allocations_user ON credit_allocations(user_id);

CREATE TABLE IF NOT EXISTS credit_transactions (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	run_id      TEXT NOT NULL,
	arena       TEXT NOT NULL,
	platform    TEXT NOT NULL,
	tier        TEXT NOT NULL,
	amount      REAL NOT NULL,
	kind        TEXT NOT NULL CHECK (kind IN ('reservation', 'settlement', 'refund')),
	description TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_credit_transactions_user ON credit_transactions(user_id);
CREATE INDEX IF NOT EXISTS idx_credit_transactions_triple ON credit_transactions(run_id, arena, platform);

CREATE TABLE IF NOT EXISTS collection_attempts (
	id               TEXT PRIMARY KEY,
	platform         TEXT NOT NULL,
	input_type       TEXT NOT NULL,
	input_value      TEXT NOT NULL DEFAULT '',
	range_from       TEXT NOT NULL,
	range_to         TEXT NOT NULL,
	records_returned INTEGER NOT NULL DEFAULT 0,
	is_valid         INTEGER NOT NULL DEFAULT 1,
	attempted_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_collection_attempts_input ON collection_attempts(platform, input_type, input_value);

CREATE TABLE IF NOT EXISTS content_records (
	id              TEXT PRIMARY KEY,
	platform        TEXT NOT NULL,
	arena           TEXT NOT NULL,
	url             TEXT NOT NULL DEFAULT '',
	content_hash    TEXT NOT NULL DEFAULT '',
	published_at    TEXT,
	run_id          TEXT NOT NULL DEFAULT '',
	query_design_id TEXT NOT NULL DEFAULT '',
	metadata        TEXT NOT NULL DEFAULT '{}'
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_content_records_platform_hash
	ON content_records(platform, content_hash)
	WHERE content_hash <> '';
CREATE INDEX IF NOT EXISTS idx_content_records_run ON content_records(run_id);
CREATE INDEX IF NOT EXISTS idx_content_records_design ON content_records(query_design_id);
CREATE INDEX IF NOT EXISTS idx_content_records_published ON content_records(platform, published_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Credit ledger

func (s *SQLiteStore) CreateAllocation(ctx context.Context, userID string, amount float64) (*model.CreditAllocation, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credit_allocations (id, user_id, amount, granted_at) VALUES (?, ?, ?, ?)`,
		id, userID, amount, fmtTime(now),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert allocation for %s", userID)
	}

	return &model.CreditAllocation{
		ID:        id,
		UserID:    userID,
		Amount:    amount,
		GrantedAt: now,
	}, nil
}

const sqliteBalanceQuery = `
SELECT
	COALESCE((SELECT SUM(amount) FROM credit_allocations WHERE user_id = ?), 0),
	COALESCE(SUM(CASE WHEN kind = 'reservation' THEN amount END), 0),
	COALESCE(SUM(CASE WHEN kind = 'settlement' THEN amount END), 0),
	COALESCE(SUM(CASE WHEN kind = 'refund' THEN amount END), 0)
FROM credit_transactions WHERE user_id = ?`

type sqliteQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func sqliteBalance(ctx context.Context, q sqliteQuerier, userID string) (*model.Balance, error) {
	b := model.Balance{UserID: userID}
	err := q.QueryRowContext(ctx, sqliteBalanceQuery, userID, userID).
		Scan(&b.Allocated, &b.Reserved, &b.Settled, &b.Refunded)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: balance for %s", userID)
	}
	b.Available = b.Allocated - b.Reserved - b.Settled + b.Refunded
	return &b, nil
}

func (s *SQLiteStore) GetBalance(ctx context.Context, userID string) (*model.Balance, error) {
	return sqliteBalance(ctx, s.db, userID)
}

// ReserveCredits runs the balance check and insert in one transaction.
// SQLite transactions are serializable, so no explicit isolation level or
// conflict retry is needed here.
func (s *SQLiteStore) ReserveCredits(ctx context.Context, tx model.CreditTransaction) (string, error) {
	tx.ID = uuid.New().String()
	tx.Kind = model.TxReservation
	tx.CreatedAt = time.Now().UTC()

	if tx.Amount == 0 {
		return sqliteAppendTx(ctx, s.db, tx)
	}

	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: begin reserve tx")
	}
	defer dbtx.Rollback() //nolint:errcheck

	balance, err := sqliteBalance(ctx, dbtx, tx.UserID)
	if err != nil {
		return "", err
	}
	if tx.Amount > balance.Available {
		return "", &model.InsufficientCreditError{
			UserID:    tx.UserID,
			Required:  tx.Amount,
			Available: balance.Available,
		}
	}

	if _, err := sqliteAppendTx(ctx, dbtx, tx); err != nil {
		return "", err
	}
	if err := dbtx.Commit(); err != nil {
		return "", eris.Wrap(err, "sqlite: commit reserve tx")
	}
	return tx.ID, nil
}

const sqliteReservedForTripleQuery = `
SELECT COALESCE(SUM(CASE WHEN kind = 'reservation' THEN amount ELSE -amount END), 0)
FROM credit_transactions WHERE run_id = ? AND arena = ? AND platform = ?`

func (s *SQLiteStore) SettleCredits(ctx context.Context, tx model.CreditTransaction) (*SettleResult, error) {
	now := time.Now().UTC()

	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin settle tx")
	}
	defer dbtx.Rollback() //nolint:errcheck

	var reserved float64
	err = dbtx.QueryRowContext(ctx, sqliteReservedForTripleQuery, tx.RunID, tx.Arena, tx.Platform).
		Scan(&reserved)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: reserved total for run %s", tx.RunID)
	}

	result := &SettleResult{}

	settlement := tx
	settlement.ID = uuid.New().String()
	settlement.Kind = model.TxSettlement
	settlement.CreatedAt = now
	if _, err := sqliteAppendTx(ctx, dbtx, settlement); err != nil {
		return nil, err
	}
	result.SettlementID = settlement.ID

	switch {
	case tx.Amount < reserved:
		refund := tx
		refund.ID = uuid.New().String()
		refund.Kind = model.TxRefund
		refund.Amount = reserved - tx.Amount
		refund.Description = "automatic refund of unused reservation"
		refund.CreatedAt = now
		if _, err := sqliteAppendTx(ctx, dbtx, refund); err != nil {
			return nil, err
		}
		result.RefundID = refund.ID
	case tx.Amount > reserved:
		result.Overrun = tx.Amount - reserved
	}

	if err := dbtx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit settle tx")
	}
	return result, nil
}

func (s *SQLiteStore) AppendTransaction(ctx context.Context, tx model.CreditTransaction) (string, error) {
	tx.ID = uuid.New().String()
	tx.CreatedAt = time.Now().UTC()
	return sqliteAppendTx(ctx, s.db, tx)
}

func sqliteAppendTx(ctx context.Context, q sqliteQuerier, tx model.CreditTransaction) (string, error) {
	_, err := q.ExecContext(ctx,
		`INSERT INTO credit_transactions (id, user_id, run_id, arena, platform, tier, amount, kind, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.UserID, tx.RunID, tx.Arena, tx.Platform, string(tx.Tier),
		tx.Amount, string(tx.Kind), tx.Description, fmtTime(tx.CreatedAt),
	)
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: insert %s transaction", tx.Kind)
	}
	return tx.ID, nil
}

func (s *SQLiteStore) ListTransactions(ctx context.Context, filter TransactionFilter) ([]model.CreditTransaction, error) {
	query := `SELECT id, user_id, run_id, arena, platform, tier, amount, kind, description, created_at
	          FROM credit_transactions WHERE 1=1`
	var args []any

	if filter.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, filter.UserID)
	}
	if filter.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, filter.RunID)
	}
	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(filter.Kind))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list transactions")
	}
	defer rows.Close()

	var txs []model.CreditTransaction
	for rows.Next() {
		var t model.CreditTransaction
		var createdAt string
		if err := rows.Scan(&t.ID, &t.UserID, &t.RunID, &t.Arena, &t.Platform,
			&t.Tier, &t.Amount, &t.Kind, &t.Description, &createdAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan transaction")
		}
		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, eris.Wrap(rows.Err(), "sqlite: list transactions iterate")
}

func (s *SQLiteStore) OutstandingReservations(ctx context.Context, olderThan time.Time) ([]OutstandingReservation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, run_id, arena, platform, MIN(tier),
		        SUM(CASE WHEN kind = 'reservation' THEN amount ELSE -amount END) AS outstanding,
		        MIN(CASE WHEN kind = 'reservation' THEN created_at END) AS oldest
		 FROM credit_transactions
		 GROUP BY user_id, run_id, arena, platform
		 HAVING outstanding > 0 AND oldest < ?
		 ORDER BY oldest`,
		fmtTime(olderThan),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: outstanding reservations")
	}
	defer rows.Close()

	var out []OutstandingReservation
	for rows.Next() {
		var r OutstandingReservation
		var oldest string
		if err := rows.Scan(&r.UserID, &r.RunID, &r.Arena, &r.Platform,
			&r.Tier, &r.Outstanding, &oldest); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan outstanding reservation")
		}
		if r.OldestAt, err = parseTime(oldest); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: outstanding reservations iterate")
}

// Coverage metadata

func (s *SQLiteStore) CoverageEnvelope(ctx context.Context, q CoverageQuery) (*Envelope, error) {
	query := `SELECT MIN(range_from), MAX(range_to) FROM collection_attempts
	          WHERE platform = ? AND records_returned > 0 AND is_valid = 1
	            AND attempted_at > ? AND range_from <= ? AND range_to >= ?`
	args := []any{q.Platform, fmtTime(q.Since), fmtTime(q.To), fmtTime(q.From)}

	if q.InputValue != "" {
		query += ` AND input_type = ? AND input_value = ?`
		args = append(args, string(q.InputType), q.InputValue)
	}

	return s.scanEnvelope(ctx, query, args, "coverage envelope")
}

func (s *SQLiteStore) ContentEnvelope(ctx context.Context, q CoverageQuery) (*Envelope, error) {
	query := `SELECT MIN(published_at), MAX(published_at) FROM content_records
	          WHERE platform = ? AND published_at >= ? AND published_at <= ?`
	args := []any{q.Platform, fmtTime(q.From), fmtTime(q.To)}

	if q.InputValue != "" {
		key := "$.term"
		if q.InputType == model.InputActor {
			key = "$.actor_id"
		}
		query += ` AND json_extract(metadata, ?) = ?`
		args = append(args, key, q.InputValue)
	}

	return s.scanEnvelope(ctx, query, args, "content envelope")
}

func (s *SQLiteStore) scanEnvelope(ctx context.Context, query string, args []any, op string) (*Envelope, error) {
	var from, to sql.NullString
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&from, &to); err != nil {
		return nil, eris.Wrapf(err, "sqlite: %s", op)
	}
	if !from.Valid || !to.Valid {
		return nil, nil
	}

	f, err := parseTime(from.String)
	if err != nil {
		return nil, err
	}
	t, err := parseTime(to.String)
	if err != nil {
		return nil, err
	}
	return &Envelope{From: f, To: t}, nil
}

func (s *SQLiteStore) RecordAttempt(ctx context.Context, a model.CollectionAttempt) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.AttemptedAt.IsZero() {
		a.AttemptedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO collection_attempts (id, platform, input_type, input_value, range_from, range_to, records_returned, is_valid, attempted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Platform, string(a.InputType), a.InputValue,
		fmtTime(a.RangeFrom), fmtTime(a.RangeTo), a.RecordsReturned, a.IsValid, fmtTime(a.AttemptedAt),
	)
	return eris.Wrapf(err, "sqlite: insert attempt for %s", a.Platform)
}

func (s *SQLiteStore) CountStaleAttempts(ctx context.Context, olderThan time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM collection_attempts
		 WHERE attempted_at < ? OR is_valid = 0 OR records_returned = 0`,
		fmtTime(olderThan),
	).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count stale attempts")
}

// Content records

func (s *SQLiteStore) InsertContentRecords(ctx context.Context, records []model.ContentRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin insert records tx")
	}
	defer dbtx.Rollback() //nolint:errcheck

	stmt, err := dbtx.PrepareContext(ctx,
		`INSERT INTO content_records (id, platform, arena, url, content_hash, published_at, run_id, query_design_id, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert record")
	}
	defer stmt.Close()

	var inserted int64
	for _, r := range records {
		metaJSON, err := json.Marshal(r.Metadata)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: marshal metadata for %s", r.ID)
		}
		if r.Metadata == nil {
			metaJSON = []byte(`{}`)
		}

		var published any
		if !r.PublishedAt.IsZero() {
			published = fmtTime(r.PublishedAt)
		}

		if _, err := stmt.ExecContext(ctx,
			r.ID, r.Platform, string(r.Arena), r.URL, r.ContentHash,
			published, r.RunID, r.QueryDesignID, string(metaJSON),
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert record %s", r.ID)
		}
		inserted++
	}

	if err := dbtx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit insert records tx")
	}
	return inserted, nil
}

func (s *SQLiteStore) GetRecord(ctx context.Context, id string) (*model.ContentRecord, error) {
	var r model.ContentRecord
	var published sql.NullString
	var metaJSON string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, platform, arena, url, content_hash, published_at, run_id, query_design_id, metadata
		 FROM content_records WHERE id = ?`,
		id,
	).Scan(&r.ID, &r.Platform, &r.Arena, &r.URL, &r.ContentHash, &published, &r.RunID, &r.QueryDesignID, &metaJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get record %s", id)
	}

	if published.Valid {
		if r.PublishedAt, err = parseTime(published.String); err != nil {
			return nil, err
		}
	}
	if metaJSON != "" {
		if err := json.Unmarshal([]byte(metaJSON), &r.Metadata); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal record metadata")
		}
	}
	return &r, nil
}

func (s *SQLiteStore) ListRecordsWithURL(ctx context.Context, scope RecordScope) ([]model.ContentRecord, error) {
	return s.listRecords(ctx, `url <> ''`, scope)
}

func (s *SQLiteStore) ListRecordsWithHash(ctx context.Context, scope RecordScope) ([]model.ContentRecord, error) {
	return s.listRecords(ctx, `content_hash <> ''`, scope)
}

func (s *SQLiteStore) listRecords(ctx context.Context, predicate string, scope RecordScope) ([]model.ContentRecord, error) {
	query := `SELECT id, platform, arena, url, content_hash, run_id, query_design_id
	          FROM content_records WHERE ` + predicate
	var args []any

	if scope.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, scope.RunID)
	}
	if scope.QueryDesignID != "" {
		query += ` AND query_design_id = ?`
		args = append(args, scope.QueryDesignID)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}
	defer rows.Close()

	var records []model.ContentRecord
	for rows.Next() {
		var r model.ContentRecord
		if err := rows.Scan(&r.ID, &r.Platform, &r.Arena, &r.URL, &r.ContentHash,
			&r.RunID, &r.QueryDesignID); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list records iterate")
}

func (s *SQLiteStore) MarkDuplicateGroups(ctx context.Context, groups []DuplicateGroup) (int64, error) {
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin mark duplicates tx")
	}
	defer dbtx.Rollback() //nolint:errcheck

	var marked int64
	for _, g := range groups {
		if len(g.DuplicateIDs) == 0 {
			continue
		}

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(g.DuplicateIDs)), ",")
		args := []any{g.CanonicalID}
		for _, id := range g.DuplicateIDs {
			args = append(args, id)
		}
		args = append(args, g.CanonicalID, g.CanonicalID)

		res, err := dbtx.ExecContext(ctx,
			`UPDATE content_records
			 SET metadata = json_set(metadata, '$.duplicate_of', ?)
			 WHERE id IN (`+placeholders+`) AND id <> ?
			   AND COALESCE(json_extract(metadata, '$.duplicate_of'), '') <> ?`,
			args...,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: mark duplicates of %s", g.CanonicalID)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: mark duplicates rows affected")
		}
		marked += n
	}

	if err := dbtx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit mark duplicates tx")
	}
	return marked, nil
}

func (s *SQLiteStore) CountDuplicates(ctx context.Context, scope RecordScope) (int, error) {
	query := `SELECT COUNT(*) FROM content_records WHERE json_extract(metadata, '$.duplicate_of') IS NOT NULL`
	var args []any

	if scope.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, scope.RunID)
	}
	if scope.QueryDesignID != "" {
		query += ` AND query_design_id = ?`
		args = append(args, scope.QueryDesignID)
	}

	var count int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count duplicates")
}
