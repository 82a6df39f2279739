// Package inventory records every generated product in a SQLite database
// so runs can be listed and queried after the fact.
package inventory

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ChuLiYu/procsim/internal/product"
	"github.com/ChuLiYu/procsim/pkg/types"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Entry is one inventory row
type Entry struct {
	Name   string
	RunID  string
	Path   string
	Header product.Header
}

// Inventory wraps the products database
type Inventory struct {
	*sql.DB
}

// Open creates the database file if needed and applies the schema
func Open(path string) (*Inventory, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create inventory dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open inventory: %w", err)
	}
	// one connection keeps pragmas and writes on the same handle
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply inventory schema: %w", err)
	}
	return &Inventory{db}, nil
}

// Record inserts or replaces the row for a generated product
func (inv *Inventory) Record(ctx context.Context, runID, path string, h product.Header) error {
	query := `
		INSERT OR REPLACE INTO products (
			name, product_id, run_id, product_type, mission, baseline,
			sensing_start, sensing_stop, validity_start, validity_stop,
			absolute_orbit, cell_number, parent_cell, sequence_id, status,
			path, payload_size, payload_crc, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := inv.ExecContext(ctx, query,
		h.Name().String(), h.ID, runID, h.Type, h.Mission, h.Baseline,
		formatTime(h.SensingStart), formatTime(h.SensingStop),
		formatTime(h.ValidityStart), formatTime(h.ValidityStop),
		h.AbsoluteOrbit, h.CellNumber, h.ParentCell, h.SequenceID, string(h.Status),
		path, h.PayloadSize, int64(h.PayloadCRC), formatTime(h.Created),
	)
	if err != nil {
		return fmt.Errorf("failed to record product %s: %w", h.Name(), err)
	}
	return nil
}

// Filter narrows List; zero values match everything
type Filter struct {
	Type  string
	RunID string
	Limit int
}

// List returns products ordered by type then validity start
func (inv *Inventory) List(ctx context.Context, f Filter) ([]Entry, error) {
	query := `
		SELECT name, product_id, run_id, product_type, mission, baseline,
			sensing_start, sensing_stop, validity_start, validity_stop,
			absolute_orbit, cell_number, parent_cell, sequence_id, status,
			path, payload_size, payload_crc, created_at
		FROM products
		WHERE (? = '' OR product_type = ?) AND (? = '' OR run_id = ?)
		ORDER BY product_type, validity_start, name
	`
	args := []any{f.Type, f.Type, f.RunID, f.RunID}
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := inv.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                                  Entry
			h                                  = &e.Header
			sStart, sStop, vStart, vStop, crtd string
			status                             string
			crc                                int64
		)
		if err := rows.Scan(&e.Name, &h.ID, &e.RunID, &h.Type, &h.Mission, &h.Baseline,
			&sStart, &sStop, &vStart, &vStop,
			&h.AbsoluteOrbit, &h.CellNumber, &h.ParentCell, &h.SequenceID, &status,
			&e.Path, &h.PayloadSize, &crc, &crtd); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}

		h.Status = types.Status(status)
		h.PayloadCRC = uint32(crc)
		for _, p := range []struct {
			dst *time.Time
			src string
		}{{&h.SensingStart, sStart}, {&h.SensingStop, sStop}, {&h.ValidityStart, vStart}, {&h.ValidityStop, vStop}, {&h.Created, crtd}} {
			if *p.dst, err = time.Parse(types.TimeLayout, p.src); err != nil {
				return nil, fmt.Errorf("product %s: bad timestamp %q: %w", e.Name, p.src, err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of products, optionally of one type
func (inv *Inventory) Count(ctx context.Context, productType string) (int, error) {
	var n int
	err := inv.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products WHERE (? = '' OR product_type = ?)`,
		productType, productType,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return n, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(types.TimeLayout)
}
