package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/tastyware/tastytrade/src/helpers"
	"github.com/tastyware/tastytrade/src/interfaces"
	"github.com/tastyware/tastytrade/src/logger"
	"github.com/tastyware/tastytrade/src/models"
	"github.com/tastyware/tastytrade/src/utils"
)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) (*PostgresDB, error) {
	// Schema named after the executable so several deployments can share one
	// database.
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable name: %w", err)
	}
	name := filepath.Base(exe)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	return &PostgresDB{
		Config: cfg,
		Schema: name,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}

	// The server may still be coming up when the relay starts.
	err = helpers.RetryWithBackoff(context.Background(), d.Logger, "postgres ping", 5, time.Second, db.Ping)
	if err != nil {
		return err
	}

	d.DB = db

	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", d.Schema, err)
	}

	if err := d.ensureTables(); err != nil {
		return err
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) ensureTables() error {
	// Tables persist across restarts; retention cleanup trims them instead.
	queries := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS "%s"."quotes" (
				symbol TEXT NOT NULL,
				recorded_at BIGINT NOT NULL,
				bid_price DOUBLE PRECISION,
				ask_price DOUBLE PRECISION,
				bid_size DOUBLE PRECISION,
				ask_size DOUBLE PRECISION,
				bid_time BIGINT,
				ask_time BIGINT,
				bid_exchange TEXT,
				ask_exchange TEXT
			);`, d.Schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_quotes_symbol_time ON "%s"."quotes" (symbol, recorded_at);`, d.Schema),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS "%s"."trades" (
				symbol TEXT NOT NULL,
				time BIGINT NOT NULL,
				sequence BIGINT NOT NULL,
				price DOUBLE PRECISION,
				size DOUBLE PRECISION,
				day_volume DOUBLE PRECISION,
				day_turnover DOUBLE PRECISION,
				exchange_code TEXT,
				tick_direction TEXT,
				extended_hours BOOLEAN,
				PRIMARY KEY (symbol, time, sequence)
			);`, d.Schema),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS "%s"."candles" (
				symbol TEXT NOT NULL,
				time BIGINT NOT NULL,
				open DOUBLE PRECISION,
				high DOUBLE PRECISION,
				low DOUBLE PRECISION,
				close DOUBLE PRECISION,
				volume DOUBLE PRECISION,
				vwap DOUBLE PRECISION,
				bid_volume DOUBLE PRECISION,
				ask_volume DOUBLE PRECISION,
				imp_volatility DOUBLE PRECISION,
				open_interest DOUBLE PRECISION,
				count BIGINT,
				PRIMARY KEY (symbol, time)
			);`, d.Schema),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS "%s"."greeks" (
				symbol TEXT NOT NULL,
				time BIGINT NOT NULL,
				price DOUBLE PRECISION,
				volatility DOUBLE PRECISION,
				delta DOUBLE PRECISION,
				gamma DOUBLE PRECISION,
				theta DOUBLE PRECISION,
				rho DOUBLE PRECISION,
				vega DOUBLE PRECISION,
				PRIMARY KEY (symbol, time)
			);`, d.Schema),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS "%s"."candle_bars" (
				symbol TEXT NOT NULL,
				window_name TEXT NOT NULL,
				start_time BIGINT NOT NULL,
				end_time BIGINT,
				open DOUBLE PRECISION,
				high DOUBLE PRECISION,
				low DOUBLE PRECISION,
				close DOUBLE PRECISION,
				volume DOUBLE PRECISION,
				vwap DOUBLE PRECISION,
				volume_zscore DOUBLE PRECISION,
				trades INTEGER,
				PRIMARY KEY (symbol, window_name, start_time)
			);`, d.Schema),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS "%s"."subscriptions" (
				source_name TEXT NOT NULL,
				kind TEXT NOT NULL,
				symbol TEXT NOT NULL,
				from_time BIGINT,
				updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (source_name, kind, symbol)
			);`, d.Schema),
	}

	for _, query := range queries {
		if _, err := d.DB.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveEventsBulk(events []interfaces.IEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Statements are prepared lazily, only for kinds present in the batch.
	var quoteStmt, tradeStmt, candleStmt, greeksStmt *sql.Stmt
	defer func() {
		for _, stmt := range []*sql.Stmt{quoteStmt, tradeStmt, candleStmt, greeksStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}
	}()

	now := time.Now().UnixMilli()

	for _, event := range events {
		switch e := event.(type) {
		case models.MQuote:
			if quoteStmt == nil {
				quoteStmt, err = tx.Prepare(fmt.Sprintf(`
					INSERT INTO "%s"."quotes" (symbol, recorded_at, bid_price, ask_price, bid_size, ask_size, bid_time, ask_time, bid_exchange, ask_exchange)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
				`, d.Schema))
				if err != nil {
					return err
				}
			}
			recordedAt := e.EventTime
			if recordedAt == 0 {
				recordedAt = now
			}
			if _, err := quoteStmt.Exec(e.EventSymbol, recordedAt, e.BidPrice, e.AskPrice, e.BidSize, e.AskSize, e.BidTime, e.AskTime, e.BidExchangeCode, e.AskExchangeCode); err != nil {
				return err
			}

		case models.MTrade:
			if tradeStmt == nil {
				// Replays after a reconnect restate recent prints
				tradeStmt, err = tx.Prepare(fmt.Sprintf(`
					INSERT INTO "%s"."trades" (symbol, time, sequence, price, size, day_volume, day_turnover, exchange_code, tick_direction, extended_hours)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
					ON CONFLICT (symbol, time, sequence) DO NOTHING
				`, d.Schema))
				if err != nil {
					return err
				}
			}
			if _, err := tradeStmt.Exec(e.EventSymbol, e.Time, e.Sequence, e.Price, e.Size, e.DayVolume, e.DayTurnover, e.ExchangeCode, e.TickDirection, e.ExtendedTradingHours); err != nil {
				return err
			}

		case models.MCandle:
			if candleStmt == nil {
				// The feed restates the current bar as it forms
				candleStmt, err = tx.Prepare(fmt.Sprintf(`
					INSERT INTO "%s"."candles" (symbol, time, open, high, low, close, volume, vwap, bid_volume, ask_volume, imp_volatility, open_interest, count)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
					ON CONFLICT (symbol, time) DO UPDATE SET
						open = EXCLUDED.open,
						high = EXCLUDED.high,
						low = EXCLUDED.low,
						close = EXCLUDED.close,
						volume = EXCLUDED.volume,
						vwap = EXCLUDED.vwap,
						bid_volume = EXCLUDED.bid_volume,
						ask_volume = EXCLUDED.ask_volume,
						imp_volatility = EXCLUDED.imp_volatility,
						open_interest = EXCLUDED.open_interest,
						count = EXCLUDED.count
				`, d.Schema))
				if err != nil {
					return err
				}
			}
			if _, err := candleStmt.Exec(e.EventSymbol, e.Time, e.Open, e.High, e.Low, e.Close, e.Volume, e.VWAP, e.BidVolume, e.AskVolume, e.ImpVolatility, e.OpenInterest, e.Count); err != nil {
				return err
			}

		case models.MGreeks:
			if greeksStmt == nil {
				greeksStmt, err = tx.Prepare(fmt.Sprintf(`
					INSERT INTO "%s"."greeks" (symbol, time, price, volatility, delta, gamma, theta, rho, vega)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
					ON CONFLICT (symbol, time) DO UPDATE SET
						price = EXCLUDED.price,
						volatility = EXCLUDED.volatility,
						delta = EXCLUDED.delta,
						gamma = EXCLUDED.gamma,
						theta = EXCLUDED.theta,
						rho = EXCLUDED.rho,
						vega = EXCLUDED.vega
				`, d.Schema))
				if err != nil {
					return err
				}
			}
			if _, err := greeksStmt.Exec(e.EventSymbol, e.Time, e.Price, e.Volatility, e.Delta, e.Gamma, e.Theta, e.Rho, e.Vega); err != nil {
				return err
			}

		default:
			// Kinds without a backing table are not recorded
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveCandleBars(bars []models.MCandleBar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(fmt.Sprintf(`
		INSERT INTO "%s"."candle_bars" (symbol, window_name, start_time, end_time, open, high, low, close, volume, vwap, volume_zscore, trades)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (symbol, window_name, start_time) DO UPDATE SET
			end_time = EXCLUDED.end_time,
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume,
			vwap = EXCLUDED.vwap,
			volume_zscore = EXCLUDED.volume_zscore,
			trades = EXCLUDED.trades
	`, d.Schema))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, bar := range bars {
		_, err := stmt.Exec(bar.Symbol, bar.WindowName, bar.StartTime, bar.EndTime, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume, bar.VWAP, bar.VolumeZScore, bar.Trades)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) CleanupOldData() error {
	retentionDays := d.Config.Storage.RetentionDays
	if retentionDays <= 0 {
		retentionDays = utils.DefaultRetentionDays
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).UnixMilli()

	d.Logger.Info("Cleaning up data older than %d days (timestamp < %d)...", retentionDays, cutoff)

	cleanups := []struct {
		table  string
		column string
	}{
		{"quotes", "recorded_at"},
		{"trades", "time"},
		{"candles", "time"},
		{"greeks", "time"},
		{"candle_bars", "end_time"},
	}

	for _, c := range cleanups {
		query := fmt.Sprintf(`DELETE FROM "%s"."%s" WHERE %s < $1`, d.Schema, c.table, c.column)
		if _, err := d.DB.Exec(query, cutoff); err != nil {
			d.Logger.Error("Cleanup %s error: %v", c.table, err)
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
