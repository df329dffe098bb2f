package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type TreeSQLite struct {
	db  *sql.DB
	now func() time.Time
}

func NewTreeSQLite(db *sql.DB) *TreeSQLite {
	return &TreeSQLite{db: db, now: time.Now}
}

const (
	storeTreeRowID = 1

	upsertTreeSQL = `
		INSERT INTO store_tree (id, doc, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			doc=excluded.doc,
			updated_at=excluded.updated_at
	`

	selectTreeSQL = `SELECT doc FROM store_tree WHERE id=?`
)

// Save replaces the stored document (row id always 1).
func (r *TreeSQLite) Save(ctx context.Context, tree any) error {
	b, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("marshal store tree: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, upsertTreeSQL, storeTreeRowID, string(b), r.now().UTC()); err != nil {
		return fmt.Errorf("save store tree: %w", err)
	}
	return nil
}

// Load returns the stored document. ok is false when nothing was saved yet.
func (r *TreeSQLite) Load(ctx context.Context) (any, bool, error) {
	var doc string
	err := r.db.QueryRowContext(ctx, selectTreeSQL, storeTreeRowID).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load store tree: %w", err)
	}
	var tree any
	if err := json.Unmarshal([]byte(doc), &tree); err != nil {
		return nil, false, fmt.Errorf("decode store tree: %w", err)
	}
	return tree, tree != nil, nil
}
