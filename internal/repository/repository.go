package repository

import (
	"context"
	"database/sql"
	"time"

	"nightfall_dashboard/internal/models"
)

type Authorization interface {
	Create(ctx context.Context, username, hash string) (int, error)
	GetByUsername(ctx context.Context, username string) (*models.Operator, error)
}

type TelemetryRepo interface {
	Append(ctx context.Context, s models.TelemetrySample) (int64, error)
	Trim(ctx context.Context, keep int) (int64, error)
	List(ctx context.Context, limit int) ([]models.TelemetrySample, error)
}

type EventRepo interface {
	Append(ctx context.Context, e models.LinkEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.LinkEvent, error)
}

type Repository struct {
	TelemetryRepo TelemetryRepo
	EventRepo     EventRepo
	Auth          Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		TelemetryRepo: NewTelemetrySQLite(db),
		EventRepo:     NewEventSQLite(db),
		Auth:          NewOperatorRepository(db),
	}
}
