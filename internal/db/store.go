// Package db persists normalized sections and acts. Every engine upserts by
// citation key, so re-running a job never duplicates a record.
package db

import (
	"context"
	"fmt"

	"law_arch/internal/config"
	"law_arch/internal/models"
)

type Store interface {
	UpsertSection(ctx context.Context, rec models.SectionRecord) error
	// GetSection returns nil without error when the key is unknown.
	GetSection(ctx context.Context, key string) (*models.SectionRecord, error)
	// SectionsByAct returns the sections of an act in document order.
	SectionsByAct(ctx context.Context, actKey string) ([]models.SectionRecord, error)
	UpsertAct(ctx context.Context, rec models.ActRecord) error
	GetAct(ctx context.Context, key string) (*models.ActRecord, error)
	Stats(ctx context.Context, jurisdiction string) (Stats, error)
	Ping(ctx context.Context) error
	Close() error
}

type Stats struct {
	Sections int `bson:"sections" json:"sections"`
	Acts     int `bson:"acts" json:"acts"`
}

// Open connects the engine named by cfg.
func Open(ctx context.Context, cfg config.DBConfig) (Store, error) {
	switch cfg.Engine {
	case "memory":
		return NewMemoryStore(), nil
	case "mongo":
		return OpenMongo(ctx, cfg)
	case "sqlite":
		return OpenSQL(ctx, DialectSQLite, cfg.Connection)
	case "postgres":
		return OpenSQL(ctx, DialectPostgres, cfg.Connection)
	}
	return nil, fmt.Errorf("unknown storage engine %q", cfg.Engine)
}
