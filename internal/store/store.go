package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Checker-Finance/price-finder/pkg/model"
)

// ErrDuplicateRecord is returned by AppendHistory when the session already
// holds a record with the same id.
var ErrDuplicateRecord = errors.New("store: duplicate history record")

// ErrPostgresUnavailable is returned by search-log reads when no database is configured.
var ErrPostgresUnavailable = errors.New("postgres unavailable")

const maxAppendAttempts = 5

// Store defines the contract for session history and the search log.
type Store interface {
	ListHistory(ctx context.Context, sessionID string) ([]model.HistoryRecord, error)
	AppendHistory(ctx context.Context, sessionID string, rec model.HistoryRecord) error
	ClearHistory(ctx context.Context, sessionID string) error
	RecordSearch(ctx context.Context, entry model.SearchLogEntry) error
	SearchStats(ctx context.Context) (*model.SearchStats, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

// HybridStore keeps session history in Redis and the search log in Postgres.
type HybridStore struct {
	redis      *redis.Client
	PG         *pgxpool.Pool
	logger     *zap.Logger
	capacity   int
	sessionTTL time.Duration
}

type PGPoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// Options configures NewHybrid.
type Options struct {
	RedisAddr       string
	RedisDB         int
	RedisPass       string
	PGURL           string // empty disables the search log
	PGPool          PGPoolConfig
	HistoryCapacity int
	SessionTTL      time.Duration
}

// NewHybrid creates a Redis-backed history store with an optional Postgres search log.
func NewHybrid(opts Options, logger *zap.Logger) (*HybridStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.RedisAddr,
		DB:       opts.RedisDB,
		Password: opts.RedisPass,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	var pgPool *pgxpool.Pool
	if opts.PGURL != "" {
		cfg, err := pgxpool.ParseConfig(opts.PGURL)
		if err != nil {
			return nil, fmt.Errorf("invalid pg config: %w", err)
		}
		pc := opts.PGPool
		if pc.MaxConns > 0 {
			cfg.MaxConns = pc.MaxConns
		}
		if pc.MinConns > 0 {
			cfg.MinConns = pc.MinConns
		}
		if pc.MaxConnLifetime > 0 {
			cfg.MaxConnLifetime = pc.MaxConnLifetime
		}
		if pc.MaxConnIdleTime > 0 {
			cfg.MaxConnIdleTime = pc.MaxConnIdleTime
		}
		if pc.HealthCheckPeriod > 0 {
			cfg.HealthCheckPeriod = pc.HealthCheckPeriod
		}
		pgPool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
	}

	return newHybrid(rdb, pgPool, logger, opts.HistoryCapacity, opts.SessionTTL), nil
}

func newHybrid(rdb *redis.Client, pg *pgxpool.Pool, logger *zap.Logger, capacity int, ttl time.Duration) *HybridStore {
	if capacity <= 0 {
		capacity = 20
	}
	return &HybridStore{redis: rdb, PG: pg, logger: logger, capacity: capacity, sessionTTL: ttl}
}

func historyKey(sessionID string) string {
	return "history:" + sessionID
}

// ListHistory returns the session's records, most recent first. Entries that
// fail to decode are skipped.
func (s *HybridStore) ListHistory(ctx context.Context, sessionID string) ([]model.HistoryRecord, error) {
	raw, err := s.redis.LRange(ctx, historyKey(sessionID), 0, int64(s.capacity-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	out := make([]model.HistoryRecord, 0, len(raw))
	for _, item := range raw {
		var rec model.HistoryRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			s.logger.Warn("store.redis.history_decode_failed",
				zap.String("session", sessionID), zap.Error(err))
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// AppendHistory prepends rec to the session list and trims it to capacity.
// The duplicate check and the write run in one optimistic transaction.
func (s *HybridStore) AppendHistory(ctx context.Context, sessionID string, rec model.HistoryRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode history record: %w", err)
	}
	key := historyKey(sessionID)

	txf := func(tx *redis.Tx) error {
		existing, err := tx.LRange(ctx, key, 0, -1).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		for _, item := range existing {
			var r struct {
				ID string `json:"id"`
			}
			if json.Unmarshal([]byte(item), &r) == nil && r.ID == rec.ID {
				return ErrDuplicateRecord
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.LPush(ctx, key, data)
			pipe.LTrim(ctx, key, 0, int64(s.capacity-1))
			if s.sessionTTL > 0 {
				pipe.Expire(ctx, key, s.sessionTTL)
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxAppendAttempts; attempt++ {
		err = s.redis.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil && !errors.Is(err, ErrDuplicateRecord) {
			s.logger.Error("store.redis.append_history_failed",
				zap.String("session", sessionID), zap.Error(err))
		}
		return err
	}
	return fmt.Errorf("append history: %w", err)
}

// ClearHistory deletes the session's list.
func (s *HybridStore) ClearHistory(ctx context.Context, sessionID string) error {
	if err := s.redis.Del(ctx, historyKey(sessionID)).Err(); err != nil {
		s.logger.Error("store.redis.clear_history_failed", zap.String("session", sessionID), zap.Error(err))
		return err
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS search_history (
	id            BIGSERIAL PRIMARY KEY,
	product_id    VARCHAR(50) NOT NULL,
	serial_number VARCHAR(50),
	searched_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	price_origin  NUMERIC,
	price_local   NUMERIC,
	product_url   TEXT,
	search_source VARCHAR(20) NOT NULL DEFAULT 'api',
	session_id    VARCHAR(100),
	result        VARCHAR(20) NOT NULL,
	is_successful BOOLEAN NOT NULL,
	error_message TEXT
);
CREATE INDEX IF NOT EXISTS idx_search_history_product ON search_history (product_id);
CREATE INDEX IF NOT EXISTS idx_search_history_searched_at ON search_history (searched_at);
`

// EnsureSchema creates the search log table when Postgres is configured.
func (s *HybridStore) EnsureSchema(ctx context.Context) error {
	if s.PG == nil {
		return nil
	}
	if _, err := s.PG.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// RecordSearch appends one row to the search log. Without Postgres it is a no-op.
func (s *HybridStore) RecordSearch(ctx context.Context, e model.SearchLogEntry) error {
	if s.PG == nil {
		return nil
	}
	searchedAt := e.SearchedAt
	if searchedAt.IsZero() {
		searchedAt = time.Now().UTC()
	}
	_, err := s.PG.Exec(ctx, `
		INSERT INTO search_history (
			product_id, serial_number, searched_at, price_origin, price_local,
			product_url, search_source, session_id, result, is_successful, error_message
		)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, NULLIF($6, ''), $7, NULLIF($8, ''), $9, $10, NULLIF($11, ''))
	`, e.ProductID, e.SerialNumber, searchedAt, e.PriceOrigin, e.PriceLocal,
		e.ProductURL, e.Source, e.SessionID, e.Result, e.Successful(), e.ErrorMessage)
	if err != nil {
		s.logger.Error("store.pg.insert_search_failed", zap.String("product_id", e.ProductID), zap.Error(err))
	}
	return err
}

// SearchStats summarizes the search log.
func (s *HybridStore) SearchStats(ctx context.Context) (*model.SearchStats, error) {
	if s.PG == nil {
		return nil, ErrPostgresUnavailable
	}
	var st model.SearchStats
	err := s.PG.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE is_successful),
			COUNT(*) FILTER (WHERE searched_at > NOW() - INTERVAL '24 hours')
		FROM search_history
	`).Scan(&st.TotalSearches, &st.SuccessfulSearches, &st.RecentSearches24h)
	if err != nil {
		return nil, fmt.Errorf("search stats: %w", err)
	}
	st.SuccessRate = successRate(st.SuccessfulSearches, st.TotalSearches)

	rows, err := s.PG.Query(ctx, `
		SELECT product_id, COUNT(*) AS search_count
		FROM search_history
		WHERE is_successful
		GROUP BY product_id
		ORDER BY search_count DESC, product_id
		LIMIT 10
	`)
	if err != nil {
		return nil, fmt.Errorf("popular products: %w", err)
	}
	defer rows.Close()

	st.PopularProducts = []model.ProductSearchCount{}
	for rows.Next() {
		var p model.ProductSearchCount
		if err := rows.Scan(&p.ProductID, &p.SearchCount); err != nil {
			return nil, err
		}
		st.PopularProducts = append(st.PopularProducts, p)
	}
	return &st, rows.Err()
}

// successRate is a percentage rounded to two decimals.
func successRate(successful, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(successful)/float64(total)*10000) / 100
}

func (s *HybridStore) HealthCheck(ctx context.Context) error {
	if s.redis == nil {
		return fmt.Errorf("redis not initialized")
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	if s.PG != nil {
		if err := s.PG.Ping(ctx); err != nil {
			return fmt.Errorf("postgres ping failed: %w", err)
		}
	}
	return nil
}

func (s *HybridStore) Close() error {
	if s.PG != nil {
		s.PG.Close()
	}
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}
