package repository

import (
	"context"
	"database/sql"
	"time"

	"smart_aquarium/internal/models"
)

type Authorization interface {
	Create(ctx context.Context, username, hash string) (int, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// TreeRepo persists the whole store tree as one JSON document.
type TreeRepo interface {
	Save(ctx context.Context, tree any) error
	Load(ctx context.Context) (tree any, ok bool, err error)
}

type EventRepo interface {
	Append(ctx context.Context, e models.StoreEvent) error
	List(ctx context.Context, filter EventFilter) ([]models.StoreEvent, error)
}

// EventFilter narrows List. Zero fields do not filter.
type EventFilter struct {
	From       time.Time
	To         time.Time
	Type       string
	PathPrefix string
}

type Repository struct {
	TreeRepo  TreeRepo
	EventRepo EventRepo
	Auth      Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		TreeRepo:  NewTreeSQLite(db),
		EventRepo: NewEventSQLite(db),
		Auth:      NewOperatorSQLite(db),
	}
}
