// Package sqlstore persists indicator rows in SQLite or PostgreSQL.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/saidmurad/cryptobot-sub000/internal/model"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

var schema = []string{`
	CREATE TABLE IF NOT EXISTS indicator_rows (
		instrument           TEXT             NOT NULL,
		timeframe            TEXT             NOT NULL,
		ts                   BIGINT           NOT NULL,
		close_price          DOUBLE PRECISION NOT NULL,
		sma                  DOUBLE PRECISION NOT NULL,
		sma_slope            DOUBLE PRECISION NOT NULL,
		trend_type           TEXT             NOT NULL,
		ema12                DOUBLE PRECISION NOT NULL,
		ema26                DOUBLE PRECISION NOT NULL,
		macd                 DOUBLE PRECISION NOT NULL,
		macd_signal          DOUBLE PRECISION NOT NULL,
		histogram            DOUBLE PRECISION NOT NULL,
		histogram_ema        DOUBLE PRECISION NOT NULL,
		histogram_trend_type TEXT             NOT NULL,
		PRIMARY KEY (instrument, timeframe, ts)
	)`,
}

// Store implements model.RowStore on top of sqlx.
type Store struct {
	db     *sqlx.DB
	driver string
}

// Open connects to the database and creates the schema.
// For sqlite3 the DSN is a file path or ":memory:".
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite:
		if dsn != ":memory:" && !strings.Contains(dsn, "?") {
			dsn += "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore open: %w", err)
	}
	if driver == DriverSQLite {
		// single writer; also keeps ":memory:" on one connection
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore ping: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlstore schema: %w", err)
		}
	}

	slog.Info("indicator store opened", "driver", driver)
	return &Store{db: db, driver: driver}, nil
}

// DB returns the underlying handle for health checks.
func (s *Store) DB() *sqlx.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Append inserts one row. An existing key yields model.ErrDuplicateRow.
func (s *Store) Append(ctx context.Context, row model.IndicatorRow) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO indicator_rows (
			instrument, timeframe, ts, close_price, sma, sma_slope, trend_type,
			ema12, ema26, macd, macd_signal, histogram, histogram_ema, histogram_trend_type
		) VALUES (
			:instrument, :timeframe, :ts, :close_price, :sma, :sma_slope, :trend_type,
			:ema12, :ema26, :macd, :macd_signal, :histogram, :histogram_ema, :histogram_trend_type
		)`, toRecord(row))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", row.Key(), model.ErrDuplicateRow)
		}
		return fmt.Errorf("sqlstore insert %s: %w", row.Key(), err)
	}
	return nil
}

// RecentRows returns up to limit newest rows of the series, oldest first.
func (s *Store) RecentRows(ctx context.Context, inst model.Instrument, tf model.Timeframe, limit int) ([]model.IndicatorRow, error) {
	if limit <= 0 {
		return nil, nil
	}
	var recs []record
	err := s.db.SelectContext(ctx, &recs, s.db.Rebind(`
		SELECT * FROM indicator_rows
		WHERE instrument = ? AND timeframe = ?
		ORDER BY ts DESC
		LIMIT ?`), string(inst), tf.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("sqlstore recent rows %s: %w", model.SeriesKey(inst, tf), err)
	}

	rows := make([]model.IndicatorRow, len(recs))
	for i, r := range recs {
		row, err := r.toRow()
		if err != nil {
			return nil, err
		}
		rows[len(recs)-1-i] = row
	}
	return rows, nil
}

// Count returns the number of persisted rows for a series.
func (s *Store) Count(ctx context.Context, inst model.Instrument, tf model.Timeframe) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, s.db.Rebind(
		`SELECT COUNT(*) FROM indicator_rows WHERE instrument = ? AND timeframe = ?`),
		string(inst), tf.String())
	return n, err
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
