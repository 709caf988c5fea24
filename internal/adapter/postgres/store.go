// Package postgres stores trade datasets in PostgreSQL, one row per
// (trade, state) in insurance_map_data plus a trades row holding the WC
// class codes that name the wc_rate_1 and wc_rate_2 columns.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/insurance-maps/internal/adapter/postgres/migrations"
	"github.com/couchcryptid/insurance-maps/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"
)

// Store is a pgx-backed dataset store.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Migrate applies the embedded goose migrations to dsn.
func Migrate(ctx context.Context, dsn string) error {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("opening sql connection for migrations: %w", err)
	}
	defer sqlDB.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, sqlDB, "."); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Save replaces the trade's dataset in one transaction.
func (s *Store) Save(ctx context.Context, ds *domain.Dataset) error {
	if len(ds.ClassCodes) == 0 || len(ds.ClassCodes) > 2 {
		return fmt.Errorf("save %s: need 1 or 2 WC class codes, got %d", ds.Trade, len(ds.ClassCodes))
	}
	class1, class2 := ds.ClassCodes[0], ""
	if len(ds.ClassCodes) == 2 {
		class2 = ds.ClassCodes[1]
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save %s: %w", ds.Trade, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	updatedAt := ds.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = domain.Now()
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO trades (trade, wc_class_1, wc_class_2, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (trade) DO UPDATE SET
		  wc_class_1 = $2, wc_class_2 = $3, updated_at = $4`,
		string(ds.Trade), class1, nullable(class2), updatedAt,
	); err != nil {
		return fmt.Errorf("save trade %s: %w", ds.Trade, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM insurance_map_data WHERE trade = $1`, string(ds.Trade)); err != nil {
		return fmt.Errorf("clear rows for %s: %w", ds.Trade, err)
	}

	records := ds.Sorted()
	if len(records) > 0 {
		batch := &pgx.Batch{}
		for _, r := range records {
			batch.Queue(
				`INSERT INTO insurance_map_data
				 (trade, state_code, gl_premium_low, gl_premium_high, gl_savings,
				  gl_competitiveness, wc_rate_1, wc_rate_2)
				 VALUES ($1, $2, $3::text::numeric, $4::text::numeric, $5::text::numeric,
				  $6, $7::text::numeric, $8::text::numeric)`,
				string(ds.Trade), string(r.State),
				r.PremiumLow.String(), r.PremiumHigh.String(), r.Savings.String(),
				r.Competitiveness, rateText(r, class1), rateText(r, class2),
			)
		}
		br := tx.SendBatch(ctx, batch)
		for _, r := range records {
			if _, err := br.Exec(); err != nil {
				br.Close() //nolint:errcheck
				return fmt.Errorf("insert %s/%s: %w", ds.Trade, r.State, err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("close insert batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save %s: %w", ds.Trade, err)
	}
	return nil
}

// Get loads the trade's dataset.
func (s *Store) Get(ctx context.Context, trade domain.Trade) (*domain.Dataset, error) {
	var (
		class1    string
		class2    *string
		updatedAt time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT wc_class_1, wc_class_2, updated_at FROM trades WHERE trade = $1`, string(trade),
	).Scan(&class1, &class2, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", trade, domain.ErrTradeNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying trade %s: %w", trade, err)
	}

	codes := []string{class1}
	if class2 != nil {
		codes = append(codes, *class2)
	}
	ds := domain.NewDataset(trade, codes...)
	ds.UpdatedAt = updatedAt.UTC()

	rows, err := s.pool.Query(ctx,
		`SELECT state_code, gl_premium_low::text, gl_premium_high::text, gl_savings::text,
		        gl_competitiveness, wc_rate_1::text, wc_rate_2::text
		 FROM insurance_map_data
		 WHERE trade = $1
		 ORDER BY state_code`, string(trade))
	if err != nil {
		return nil, fmt.Errorf("querying rows for %s: %w", trade, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			state              string
			low, high, savings string
			comp               int
			rate1, rate2       *string
		)
		if err := rows.Scan(&state, &low, &high, &savings, &comp, &rate1, &rate2); err != nil {
			return nil, fmt.Errorf("scanning row for %s: %w", trade, err)
		}
		rec, err := toRecord(state, low, high, savings, comp)
		if err != nil {
			return nil, fmt.Errorf("decoding %s/%s: %w", trade, state, err)
		}
		for i, raw := range []*string{rate1, rate2} {
			if raw == nil || i >= len(codes) {
				continue
			}
			rate, err := decimal.NewFromString(*raw)
			if err != nil {
				return nil, fmt.Errorf("decoding %s/%s wc rate: %w", trade, state, err)
			}
			rec.WCRates[codes[i]] = rate
		}
		ds.Records[rec.State] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows for %s: %w", trade, err)
	}
	return ds, nil
}

// List summarizes every trade with its state count, sorted by name.
func (s *Store) List(ctx context.Context) ([]domain.TradeSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT t.trade, t.wc_class_1, t.wc_class_2, t.updated_at, COUNT(d.id)
		 FROM trades t
		 LEFT JOIN insurance_map_data d ON d.trade = t.trade
		 GROUP BY t.trade
		 ORDER BY t.trade ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing trades: %w", err)
	}
	defer rows.Close()

	out := make([]domain.TradeSummary, 0)
	for rows.Next() {
		var (
			sum    domain.TradeSummary
			trade  string
			class1 string
			class2 *string
		)
		if err := rows.Scan(&trade, &class1, &class2, &sum.UpdatedAt, &sum.States); err != nil {
			return nil, fmt.Errorf("scanning trade: %w", err)
		}
		sum.Trade = domain.Trade(trade)
		sum.UpdatedAt = sum.UpdatedAt.UTC()
		sum.ClassCodes = []string{class1}
		if class2 != nil {
			sum.ClassCodes = append(sum.ClassCodes, *class2)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Delete removes the trade and returns the number of state rows deleted.
func (s *Store) Delete(ctx context.Context, trade domain.Trade) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin delete %s: %w", trade, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, `DELETE FROM insurance_map_data WHERE trade = $1`, string(trade))
	if err != nil {
		return 0, fmt.Errorf("deleting rows for %s: %w", trade, err)
	}
	res, err := tx.Exec(ctx, `DELETE FROM trades WHERE trade = $1`, string(trade))
	if err != nil {
		return 0, fmt.Errorf("deleting trade %s: %w", trade, err)
	}
	if res.RowsAffected() == 0 {
		return 0, fmt.Errorf("%s: %w", trade, domain.ErrTradeNotFound)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit delete %s: %w", trade, err)
	}
	return int(tag.RowsAffected()), nil
}

func toRecord(state, low, high, savings string, comp int) (domain.StateRecord, error) {
	rec := domain.StateRecord{
		State:           domain.StateCode(state),
		Competitiveness: comp,
		WCRates:         make(map[string]decimal.Decimal, 2),
	}
	var err error
	if rec.PremiumLow, err = decimal.NewFromString(low); err != nil {
		return rec, err
	}
	if rec.PremiumHigh, err = decimal.NewFromString(high); err != nil {
		return rec, err
	}
	if rec.Savings, err = decimal.NewFromString(savings); err != nil {
		return rec, err
	}
	return rec, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// rateText returns the record's rate for code as text, or nil when the code
// or the rate is absent.
func rateText(r domain.StateRecord, code string) *string {
	rate, ok := r.WCRates[code]
	if code == "" || !ok {
		return nil
	}
	return nullable(rate.String())
}
