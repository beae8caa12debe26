package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-runtime/internal/infrastructure/database"
)

// SQLiteBackend keeps the item set in the store_items table.
//
// The table is created by the store_items migration. Every save replaces
// all rows inside one transaction.
type SQLiteBackend struct {
	db *database.DB
}

// NewSQLiteBackend creates a backend on a migrated database.
func NewSQLiteBackend(db *database.DB) *SQLiteBackend {
	return &SQLiteBackend{db: db}
}

// Load reads every row in save order.
func (b *SQLiteBackend) Load(ctx context.Context) ([]Item, error) {
	rows, err := b.db.QueryContext(ctx,
		"SELECT item_type, config FROM store_items ORDER BY position",
	)
	if err != nil {
		return nil, fmt.Errorf("querying store items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var itemType, config string
		if err := rows.Scan(&itemType, &config); err != nil {
			return nil, fmt.Errorf("scanning store item: %w", err)
		}

		item, err := decodeItem(ItemType(itemType), json.RawMessage(config))
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating store items: %w", err)
	}
	return items, nil
}

// Save replaces all rows with items in a single transaction.
func (b *SQLiteBackend) Save(ctx context.Context, items []Item) error {
	return b.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM store_items"); err != nil {
			return fmt.Errorf("clearing store items: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			"INSERT INTO store_items (item_key, item_type, config, position, updated_at) VALUES (?, ?, ?, ?, ?)",
		)
		if err != nil {
			return fmt.Errorf("preparing store item insert: %w", err)
		}
		defer stmt.Close()

		now := time.Now().UTC().Format(time.RFC3339)
		for pos, item := range items {
			config, err := item.configJSON()
			if err != nil {
				return err
			}

			key := string(item.Type) + ":" + item.Key()
			if _, err := stmt.ExecContext(ctx, key, string(item.Type), string(config), pos, now); err != nil {
				return fmt.Errorf("inserting store item %s: %w", key, err)
			}
		}
		return nil
	})
}
