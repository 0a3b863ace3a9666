package storage

import (
	"fmt"
	"time"

	"github.com/tastyware/tastytrade/src/models"
)

// Info: Separate file for subscription persistence specific to Postgres

// -----------------------------------------------------------------------------

// SaveSubscriptions replaces the persisted subscription set for a source.
func (d *PostgresDB) SaveSubscriptions(sourceName string, entries []models.MSubscriptionEntry) error {
	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	deleteQuery := fmt.Sprintf(`DELETE FROM "%s"."subscriptions" WHERE source_name = $1`, d.Schema)
	if _, err := tx.Exec(deleteQuery, sourceName); err != nil {
		return err
	}

	if len(entries) > 0 {
		query := fmt.Sprintf(`
			INSERT INTO "%s"."subscriptions" (source_name, kind, symbol, from_time, updated_at)
			VALUES ($1, $2, $3, $4, $5)
		`, d.Schema)

		stmt, err := tx.Prepare(query)
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

func (d *PostgresDB) LoadSubscriptions(sourceName string) ([]models.MSubscriptionEntry, error) {
	query := fmt.Sprintf(`
		SELECT kind, symbol, from_time FROM "%s"."subscriptions"
		WHERE source_name = $1
		ORDER BY kind, symbol
	`, d.Schema)

	rows, err := d.DB.Query(query, sourceName)
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
