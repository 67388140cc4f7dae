package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/civica-research/arenactl/internal/db"
	"github.com/civica-research/arenactl/internal/model"
	"github.com/civica-research/arenactl/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	retry   resilience.RetryConfig
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest control-plane operations.
var preparedStatements = map[string]string{
	"insert_transaction": `INSERT INTO credit_transactions (id, user_id, run_id, arena, platform, tier, amount, kind, description, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
	"insert_attempt":     `INSERT INTO collection_attempts (id, platform, input_type, input_value, range_from, range_to, records_returned, is_valid, attempted_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
	"get_record":         `SELECT id, platform, arena, url, content_hash, published_at, run_id, query_design_id, metadata FROM content_records WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{
		pool:    pool,
		retry:   serializableRetryConfig(),
		closeFn: pool.Close,
	}, nil
}

// serializableRetryConfig retries only serialization failures; domain
// errors such as an insufficient balance must surface immediately.
func serializableRetryConfig() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.ShouldRetry = db.IsSerializationFailure
	cfg.OnRetry = resilience.RetryLogger("store", "serializable_tx")
	return cfg
}

// Pool returns the underlying database pool for subsystems that need
// direct query access (e.g., bulk record import).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS credit_allocations (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id    TEXT NOT NULL,
	amount     DOUBLE PRECISION NOT NULL,
	granted_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_credit_allocations_user ON credit_allocations(user_id);

CREATE TABLE IF NOT EXISTS credit_transactions (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	run_id      TEXT NOT NULL,
	arena       TEXT NOT NULL,
	platform    TEXT NOT NULL,
	tier        TEXT NOT NULL,
	amount      DOUBLE PRECISION NOT NULL,
	kind        TEXT NOT NULL CHECK (kind IN ('reservation', 'settlement', 'refund')),
	description TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_credit_transactions_user ON credit_transactions(user_id);
CREATE INDEX IF NOT EXISTS idx_credit_transactions_triple ON credit_transactions(run_id, arena, platform);
CREATE INDEX IF NOT EXISTS idx_credit_transactions_created ON credit_transactions(created_at);

CREATE TABLE IF NOT EXISTS collection_attempts (
	id               TEXT PRIMARY KEY,
	platform         TEXT NOT NULL,
	input_type       TEXT NOT NULL,
	input_value      TEXT NOT NULL DEFAULT '',
	range_from       TIMESTAMPTZ NOT NULL,
	range_to         TIMESTAMPTZ NOT NULL,
	records_returned INTEGER NOT NULL DEFAULT 0,
	is_valid         BOOLEAN NOT NULL DEFAULT true,
	attempted_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_collection_attempts_input ON collection_attempts(platform, input_type, input_value);
CREATE INDEX IF NOT EXISTS idx_collection_attempts_attempted ON collection_attempts(attempted_at);

CREATE TABLE IF NOT EXISTS content_records (
	id              TEXT PRIMARY KEY,
	platform        TEXT NOT NULL,
	arena           TEXT NOT NULL,
	url             TEXT,
	content_hash    TEXT,
	published_at    TIMESTAMPTZ,
	run_id          TEXT,
	query_design_id TEXT,
	metadata        JSONB NOT NULL DEFAULT '{}'::jsonb
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_content_records_platform_hash
	ON content_records(platform, content_hash)
	WHERE content_hash IS NOT NULL AND content_hash <> '';
CREATE INDEX IF NOT EXISTS idx_content_records_run ON content_records(run_id);
CREATE INDEX IF NOT EXISTS idx_content_records_design ON content_records(query_design_id);
CREATE INDEX IF NOT EXISTS idx_content_records_published ON content_records(platform, published_at);
CREATE INDEX IF NOT EXISTS idx_content_records_hash ON content_records(content_hash);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Credit ledger

func (s *PostgresStore) CreateAllocation(ctx context.Context, userID string, amount float64) (*model.CreditAllocation, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO credit_allocations (id, user_id, amount, granted_at) VALUES ($1, $2, $3, $4)`,
		id, userID, amount, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert allocation for %s", userID)
	}

	return &model.CreditAllocation{
		ID:        id,
		UserID:    userID,
		Amount:    amount,
		GrantedAt: now,
	}, nil
}

const balanceQuery = `
SELECT
	COALESCE((SELECT SUM(amount) FROM credit_allocations WHERE user_id = $1), 0),
	COALESCE(SUM(amount) FILTER (WHERE kind = 'reservation'), 0),
	COALESCE(SUM(amount) FILTER (WHERE kind = 'settlement'), 0),
	COALESCE(SUM(amount) FILTER (WHERE kind = 'refund'), 0)
FROM credit_transactions WHERE user_id = $1`

// rowQuerier lets balance computation run against the pool or inside an
// open transaction.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func queryBalance(ctx context.Context, q rowQuerier, userID string) (*model.Balance, error) {
	b := model.Balance{UserID: userID}
	err := q.QueryRow(ctx, balanceQuery, userID).
		Scan(&b.Allocated, &b.Reserved, &b.Settled, &b.Refunded)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: balance for %s", userID)
	}
	b.Available = b.Allocated - b.Reserved - b.Settled + b.Refunded
	return &b, nil
}

func (s *PostgresStore) GetBalance(ctx context.Context, userID string) (*model.Balance, error) {
	return queryBalance(ctx, s.pool, userID)
}

// ReserveCredits checks the balance and appends the reservation inside one
// SERIALIZABLE transaction, retrying on serialization conflicts. Two
// concurrent reservations can therefore never both pass a balance check
// that only covers one of them.
func (s *PostgresStore) ReserveCredits(ctx context.Context, tx model.CreditTransaction) (string, error) {
	tx.ID = uuid.New().String()
	tx.Kind = model.TxReservation
	tx.CreatedAt = time.Now().UTC()

	// Zero-amount reservations always succeed; free tiers still get an
	// auditable row but need no balance check.
	if tx.Amount == 0 {
		return s.appendTx(ctx, s.pool, tx)
	}

	return resilience.DoVal(ctx, s.retry, func(ctx context.Context) (string, error) {
		err := db.Serializable(ctx, s.pool, func(dbtx pgx.Tx) error {
			balance, err := queryBalance(ctx, dbtx, tx.UserID)
			if err != nil {
				return err
			}
			if tx.Amount > balance.Available {
				return &model.InsufficientCreditError{
					UserID:    tx.UserID,
					Required:  tx.Amount,
					Available: balance.Available,
				}
			}
			_, err = s.appendTx(ctx, dbtx, tx)
			return err
		})
		if err != nil {
			return "", err
		}
		return tx.ID, nil
	})
}

const reservedForTripleQuery = `
SELECT COALESCE(SUM(CASE WHEN kind = 'reservation' THEN amount ELSE -amount END), 0)
FROM credit_transactions WHERE run_id = $1 AND arena = $2 AND platform = $3`

// SettleCredits appends the settlement and, when the actual cost came in
// under the reservation, an automatic refund for the surplus. Both rows
// commit atomically. An overrun is recorded as-is and reported to the
// caller via SettleResult.Overrun.
func (s *PostgresStore) SettleCredits(ctx context.Context, tx model.CreditTransaction) (*SettleResult, error) {
	now := time.Now().UTC()

	return resilience.DoVal(ctx, s.retry, func(ctx context.Context) (*SettleResult, error) {
		result := &SettleResult{}
		err := db.Serializable(ctx, s.pool, func(dbtx pgx.Tx) error {
			var reserved float64
			err := dbtx.QueryRow(ctx, reservedForTripleQuery, tx.RunID, tx.Arena, tx.Platform).
				Scan(&reserved)
			if err != nil {
				return eris.Wrapf(err, "postgres: reserved total for run %s", tx.RunID)
			}

			settlement := tx
			settlement.ID = uuid.New().String()
			settlement.Kind = model.TxSettlement
			settlement.CreatedAt = now
			if _, err := s.appendTx(ctx, dbtx, settlement); err != nil {
				return err
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
				if _, err := s.appendTx(ctx, dbtx, refund); err != nil {
					return err
				}
				result.RefundID = refund.ID
			case tx.Amount > reserved:
				result.Overrun = tx.Amount - reserved
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return result, nil
	})
}

func (s *PostgresStore) AppendTransaction(ctx context.Context, tx model.CreditTransaction) (string, error) {
	tx.ID = uuid.New().String()
	tx.CreatedAt = time.Now().UTC()
	return s.appendTx(ctx, s.pool, tx)
}

// execer covers both a pool and an open pgx transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (s *PostgresStore) appendTx(ctx context.Context, e execer, tx model.CreditTransaction) (string, error) {
	_, err := e.Exec(ctx,
		`INSERT INTO credit_transactions (id, user_id, run_id, arena, platform, tier, amount, kind, description, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		tx.ID, tx.UserID, tx.RunID, tx.Arena, tx.Platform, string(tx.Tier),
		tx.Amount, string(tx.Kind), tx.Description, tx.CreatedAt,
	)
	if err != nil {
		return "", eris.Wrapf(err, "postgres: insert %s transaction", tx.Kind)
	}
	return tx.ID, nil
}

func (s *PostgresStore) ListTransactions(ctx context.Context, filter TransactionFilter) ([]model.CreditTransaction, error) {
	query := `SELECT id, user_id, run_id, arena, platform, tier, amount, kind, COALESCE(description, ''), created_at
	          FROM credit_transactions WHERE true`
	args := []any{}
	argIdx := 1

	if filter.UserID != "" {
		query += fmt.Sprintf(` AND user_id = $%d`, argIdx)
		args = append(args, filter.UserID)
		argIdx++
	}
	if filter.RunID != "" {
		query += fmt.Sprintf(` AND run_id = $%d`, argIdx)
		args = append(args, filter.RunID)
		argIdx++
	}
	if filter.Kind != "" {
		query += fmt.Sprintf(` AND kind = $%d`, argIdx)
		args = append(args, string(filter.Kind))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list transactions")
	}
	defer rows.Close()

	var txs []model.CreditTransaction
	for rows.Next() {
		var t model.CreditTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.RunID, &t.Arena, &t.Platform,
			&t.Tier, &t.Amount, &t.Kind, &t.Description, &t.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan transaction")
		}
		txs = append(txs, t)
	}
	return txs, eris.Wrap(rows.Err(), "postgres: list transactions iterate")
}

func (s *PostgresStore) OutstandingReservations(ctx context.Context, olderThan time.Time) ([]OutstandingReservation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, run_id, arena, platform, MIN(tier),
		        SUM(CASE WHEN kind = 'reservation' THEN amount ELSE -amount END) AS outstanding,
		        MIN(created_at) FILTER (WHERE kind = 'reservation') AS oldest
		 FROM credit_transactions
		 GROUP BY user_id, run_id, arena, platform
		 HAVING SUM(CASE WHEN kind = 'reservation' THEN amount ELSE -amount END) > 0
		    AND MIN(created_at) FILTER (WHERE kind = 'reservation') < $1
		 ORDER BY oldest`,
		olderThan,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: outstanding reservations")
	}
	defer rows.Close()

	var out []OutstandingReservation
	for rows.Next() {
		var r OutstandingReservation
		if err := rows.Scan(&r.UserID, &r.RunID, &r.Arena, &r.Platform,
			&r.Tier, &r.Outstanding, &r.OldestAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan outstanding reservation")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: outstanding reservations iterate")
}

// Coverage metadata

func (s *PostgresStore) CoverageEnvelope(ctx context.Context, q CoverageQuery) (*Envelope, error) {
	query := `SELECT MIN(range_from), MAX(range_to) FROM collection_attempts
	          WHERE platform = $1 AND records_returned > 0 AND is_valid
	            AND attempted_at > $2 AND range_from <= $3 AND range_to >= $4`
	args := []any{q.Platform, q.Since, q.To, q.From}
	argIdx := 5

	if q.InputValue != "" {
		query += fmt.Sprintf(` AND input_type = $%d AND input_value = $%d`, argIdx, argIdx+1)
		args = append(args, string(q.InputType), q.InputValue)
	}

	var from, to *time.Time
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&from, &to); err != nil {
		return nil, eris.Wrap(err, "postgres: coverage envelope")
	}
	if from == nil || to == nil {
		return nil, nil
	}
	return &Envelope{From: from.UTC(), To: to.UTC()}, nil
}

func (s *PostgresStore) ContentEnvelope(ctx context.Context, q CoverageQuery) (*Envelope, error) {
	query := `SELECT MIN(published_at), MAX(published_at) FROM content_records
	          WHERE platform = $1 AND published_at >= $2 AND published_at <= $3`
	args := []any{q.Platform, q.From, q.To}
	argIdx := 4

	if q.InputValue != "" {
		key := "term"
		if q.InputType == model.InputActor {
			key = "actor_id"
		}
		query += fmt.Sprintf(` AND metadata->>'%s' = $%d`, key, argIdx)
		args = append(args, q.InputValue)
	}

	var from, to *time.Time
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&from, &to); err != nil {
		return nil, eris.Wrap(err, "postgres: content envelope")
	}
	if from == nil || to == nil {
		return nil, nil
	}
	return &Envelope{From: from.UTC(), To: to.UTC()}, nil
}

func (s *PostgresStore) RecordAttempt(ctx context.Context, a model.CollectionAttempt) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.AttemptedAt.IsZero() {
		a.AttemptedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO collection_attempts (id, platform, input_type, input_value, range_from, range_to, records_returned, is_valid, attempted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.Platform, string(a.InputType), a.InputValue,
		a.RangeFrom, a.RangeTo, a.RecordsReturned, a.IsValid, a.AttemptedAt,
	)
	return eris.Wrapf(err, "postgres: insert attempt for %s", a.Platform)
}

func (s *PostgresStore) CountStaleAttempts(ctx context.Context, olderThan time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM collection_attempts
		 WHERE attempted_at < $1 OR is_valid = false OR records_returned = 0`,
		olderThan,
	).Scan(&count)
	return count, eris.Wrap(err, "postgres: count stale attempts")
}

// Content records

var contentRecordColumns = []string{
	"id", "platform", "arena", "url", "content_hash",
	"published_at", "run_id", "query_design_id", "metadata",
}

func (s *PostgresStore) InsertContentRecords(ctx context.Context, records []model.ContentRecord) (int64, error) {
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		metaJSON, err := json.Marshal(r.Metadata)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: marshal metadata for %s", r.ID)
		}
		if r.Metadata == nil {
			metaJSON = []byte(`{}`)
		}

		var url, hash *string
		if r.URL != "" {
			url = &r.URL
		}
		if r.ContentHash != "" {
			hash = &r.ContentHash
		}
		var published *time.Time
		if !r.PublishedAt.IsZero() {
			t := r.PublishedAt.UTC()
			published = &t
		}

		rows = append(rows, []any{
			r.ID, r.Platform, string(r.Arena), url, hash,
			published, nullable(r.RunID), nullable(r.QueryDesignID), metaJSON,
		})
	}

	return db.CopyFrom(ctx, s.pool, "content_records", contentRecordColumns, rows)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *PostgresStore) GetRecord(ctx context.Context, id string) (*model.ContentRecord, error) {
	var r model.ContentRecord
	var url, hash, runID, designID *string
	var published *time.Time
	var metaJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, platform, arena, url, content_hash, published_at, run_id, query_design_id, metadata
		 FROM content_records WHERE id = $1`,
		id,
	).Scan(&r.ID, &r.Platform, &r.Arena, &url, &hash, &published, &runID, &designID, &metaJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get record %s", id)
	}

	if url != nil {
		r.URL = *url
	}
	if hash != nil {
		r.ContentHash = *hash
	}
	if published != nil {
		r.PublishedAt = published.UTC()
	}
	if runID != nil {
		r.RunID = *runID
	}
	if designID != nil {
		r.QueryDesignID = *designID
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &r.Metadata); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal record metadata")
		}
	}
	return &r, nil
}

func (s *PostgresStore) ListRecordsWithURL(ctx context.Context, scope RecordScope) ([]model.ContentRecord, error) {
	return s.listRecords(ctx, `url IS NOT NULL AND url <> ''`, scope)
}

func (s *PostgresStore) ListRecordsWithHash(ctx context.Context, scope RecordScope) ([]model.ContentRecord, error) {
	return s.listRecords(ctx, `content_hash IS NOT NULL AND content_hash <> ''`, scope)
}

func (s *PostgresStore) listRecords(ctx context.Context, predicate string, scope RecordScope) ([]model.ContentRecord, error) {
	query := `SELECT id, platform, arena, COALESCE(url, ''), COALESCE(content_hash, ''),
	                 COALESCE(run_id, ''), COALESCE(query_design_id, '')
	          FROM content_records WHERE ` + predicate
	args := []any{}
	argIdx := 1

	if scope.RunID != "" {
		query += fmt.Sprintf(` AND run_id = $%d`, argIdx)
		args = append(args, scope.RunID)
		argIdx++
	}
	if scope.QueryDesignID != "" {
		query += fmt.Sprintf(` AND query_design_id = $%d`, argIdx)
		args = append(args, scope.QueryDesignID)
	}
	query += ` ORDER BY id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list records")
	}
	defer rows.Close()

	var records []model.ContentRecord
	for rows.Next() {
		var r model.ContentRecord
		if err := rows.Scan(&r.ID, &r.Platform, &r.Arena, &r.URL, &r.ContentHash,
			&r.RunID, &r.QueryDesignID); err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list records iterate")
}

// MarkDuplicateGroups stamps every duplicate with its canonical id via a
// JSONB merge, leaving all other metadata keys intact. The guarded WHERE
// makes re-runs no-ops. All groups from a dedup pass commit together.
func (s *PostgresStore) MarkDuplicateGroups(ctx context.Context, groups []DuplicateGroup) (int64, error) {
	var marked int64
	err := db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		for _, g := range groups {
			if len(g.DuplicateIDs) == 0 {
				continue
			}
			tag, err := tx.Exec(ctx,
				`UPDATE content_records
				 SET metadata = metadata || jsonb_build_object('duplicate_of', $1::text)
				 WHERE id = ANY($2) AND id <> $1
				   AND metadata->>'duplicate_of' IS DISTINCT FROM $1`,
				g.CanonicalID, g.DuplicateIDs,
			)
			if err != nil {
				return eris.Wrapf(err, "postgres: mark duplicates of %s", g.CanonicalID)
			}
			marked += tag.RowsAffected()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return marked, nil
}

func (s *PostgresStore) CountDuplicates(ctx context.Context, scope RecordScope) (int, error) {
	query := `SELECT COUNT(*) FROM content_records WHERE metadata ? 'duplicate_of'`
	args := []any{}
	argIdx := 1

	if scope.RunID != "" {
		query += fmt.Sprintf(` AND run_id = $%d`, argIdx)
		args = append(args, scope.RunID)
		argIdx++
	}
	if scope.QueryDesignID != "" {
		query += fmt.Sprintf(` AND query_design_id = $%d`, argIdx)
		args = append(args, scope.QueryDesignID)
	}

	var count int
	err := s.pool.QueryRow(ctx, query, args...).Scan(&count)
	return count, eris.Wrap(err, "postgres: count duplicates")
}
