package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tastyware/tastytrade/src/helpers"
	"github.com/tastyware/tastytrade/src/interfaces"
	"github.com/tastyware/tastytrade/src/logger"
	"github.com/tastyware/tastytrade/src/models"
	"github.com/tastyware/tastytrade/src/utils"
)

// -----------------------------------------------------------------------------

type SQLiteDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSQLiteDB(cfg *models.MConfig, log *logger.Logger) (*SQLiteDB, error) {
	return &SQLiteDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Initialize() error {
	dsn := d.Config.Storage.DBPath
	if dsn == "" {
		dsn = "tastytrade.db"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}

	// One connection: writes are serialized anyway and :memory: databases
	// exist per connection.
	db.SetMaxOpenConns(1)

	// The file can be briefly locked by a previous instance shutting down.
	err = helpers.RetryWithBackoff(context.Background(), d.Logger, "sqlite ping", 3, 500*time.Millisecond, db.Ping)
	if err != nil {
		return err
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.ensureTables()
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) ensureTables() error {
	// Tables persist across restarts; retention cleanup trims them instead.
	queries := []string{
		`CREATE TABLE IF NOT EXISTS quotes (
			symbol TEXT NOT NULL,
			recorded_at INTEGER NOT NULL,
			bid_price REAL,
			ask_price REAL,
			bid_size REAL,
			ask_size REAL,
			bid_time INTEGER,
			ask_time INTEGER,
			bid_exchange TEXT,
			ask_exchange TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_quotes_symbol_time ON quotes(symbol, recorded_at);`,
		`CREATE TABLE IF NOT EXISTS trades (
			symbol TEXT NOT NULL,
			time INTEGER NOT NULL,
			sequence INTEGER NOT NULL,
			price REAL,
			size REAL,
			day_volume REAL,
			day_turnover REAL,
			exchange_code TEXT,
			tick_direction TEXT,
			extended_hours INTEGER,
			PRIMARY KEY (symbol, time, sequence)
		);`,
		`CREATE TABLE IF NOT EXISTS candles (
			symbol TEXT NOT NULL,
			time INTEGER NOT NULL,
			open REAL,
			high REAL,
			low REAL,
			close REAL,
			volume REAL,
			vwap REAL,
			bid_volume REAL,
			ask_volume REAL,
			imp_volatility REAL,
			open_interest REAL,
			count INTEGER,
			PRIMARY KEY (symbol, time)
		);`,
		`CREATE TABLE IF NOT EXISTS greeks (
			symbol TEXT NOT NULL,
			time INTEGER NOT NULL,
			price REAL,
			volatility REAL,
			delta REAL,
			gamma REAL,
			theta REAL,
			rho REAL,
			vega REAL,
			PRIMARY KEY (symbol, time)
		);`,
		`CREATE TABLE IF NOT EXISTS candle_bars (
			symbol TEXT NOT NULL,
			window_name TEXT NOT NULL,
			start_time INTEGER NOT NULL,
			end_time INTEGER,
			open REAL,
			high REAL,
			low REAL,
			close REAL,
			volume REAL,
			vwap REAL,
			volume_zscore REAL,
			trades INTEGER,
			PRIMARY KEY (symbol, window_name, start_time)
		);`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
			source_name TEXT NOT NULL,
			kind TEXT NOT NULL,
			symbol TEXT NOT NULL,
			from_time INTEGER,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (source_name, kind, symbol)
		);`,
	}

	for _, query := range queries {
		if _, err := d.DB.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) SaveEventsBulk(events []interfaces.IEvent) error {
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
				quoteStmt, err = tx.Prepare(`
					INSERT INTO quotes (symbol, recorded_at, bid_price, ask_price, bid_size, ask_size, bid_time, ask_time, bid_exchange, ask_exchange)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				`)
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
				tradeStmt, err = tx.Prepare(`
					INSERT OR IGNORE INTO trades (symbol, time, sequence, price, size, day_volume, day_turnover, exchange_code, tick_direction, extended_hours)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				`)
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
				candleStmt, err = tx.Prepare(`
					INSERT INTO candles (symbol, time, open, high, low, close, volume, vwap, bid_volume, ask_volume, imp_volatility, open_interest, count)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
					ON CONFLICT (symbol, time) DO UPDATE SET
						open = excluded.open,
						high = excluded.high,
						low = excluded.low,
						close = excluded.close,
						volume = excluded.volume,
						vwap = excluded.vwap,
						bid_volume = excluded.bid_volume,
						ask_volume = excluded.ask_volume,
						imp_volatility = excluded.imp_volatility,
						open_interest = excluded.open_interest,
						count = excluded.count
				`)
				if err != nil {
					return err
				}
			}
			if _, err := candleStmt.Exec(e.EventSymbol, e.Time, e.Open, e.High, e.Low, e.Close, e.Volume, e.VWAP, e.BidVolume, e.AskVolume, e.ImpVolatility, e.OpenInterest, e.Count); err != nil {
				return err
			}

		case models.MGreeks:
			if greeksStmt == nil {
				greeksStmt, err = tx.Prepare(`
					INSERT INTO greeks (symbol, time, price, volatility, delta, gamma, theta, rho, vega)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
					ON CONFLICT (symbol, time) DO UPDATE SET
						price = excluded.price,
						volatility = excluded.volatility,
						delta = excluded.delta,
						gamma = excluded.gamma,
						theta = excluded.theta,
						rho = excluded.rho,
						vega = excluded.vega
				`)
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

func (d *SQLiteDB) SaveCandleBars(bars []models.MCandleBar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO candle_bars (symbol, window_name, start_time, end_time, open, high, low, close, volume, vwap, volume_zscore, trades)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol, window_name, start_time) DO UPDATE SET
			end_time = excluded.end_time,
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume,
			vwap = excluded.vwap,
			volume_zscore = excluded.volume_zscore,
			trades = excluded.trades
	`)
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

// SaveSubscriptions replaces the persisted subscription set for a source.
func (d *SQLiteDB) SaveSubscriptions(sourceName string, entries []models.MSubscriptionEntry) error {
	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM subscriptions WHERE source_name = ?", sourceName); err != nil {
		return err
	}

	if len(entries) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO subscriptions (source_name, kind, symbol, from_time, updated_at)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		now := time.Now().UTC()
		for _, entry := range entries {
			if _, err := stmt.Exec(sourceName, string(entry.Type), entry.Symbol, entry.FromTime, now); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) LoadSubscriptions(sourceName string) ([]models.MSubscriptionEntry, error) {
	rows, err := d.DB.Query(`
		SELECT kind, symbol, from_time FROM subscriptions
		WHERE source_name = ?
		ORDER BY kind, symbol
	`, sourceName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.MSubscriptionEntry
	for rows.Next() {
		var kind, symbol string
		var fromTime int64
		if err := rows.Scan(&kind, &symbol, &fromTime); err != nil {
			return nil, err
		}
		entries = append(entries, models.MSubscriptionEntry{
			Type:     models.MEventType(kind),
			Symbol:   symbol,
			FromTime: fromTime,
		})
	}

	return entries, rows.Err()
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) CleanupOldData() error {
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
		query := fmt.Sprintf("DELETE FROM %s WHERE %s < ?", c.table, c.column)
		if _, err := d.DB.Exec(query, cutoff); err != nil {
			d.Logger.Error("Cleanup %s error: %v", c.table, err)
		}
	}

	d.Logger.Info("Cleanup completed")
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
