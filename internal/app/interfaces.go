package app

import (
	"context"

	"djladder/internal/catalog"
	"djladder/internal/state"
)

type Catalog interface {
	Load(ctx context.Context) ([]catalog.Song, error)
	Update(ctx context.Context) (int, error)
	Info() catalog.Info
}

type History interface {
	RecordAttempt(ctx context.Context, attempt state.Attempt) (int64, error)
	GetSummary(ctx context.Context) (state.Summary, error)
	Close() error
}

var (
	_ Catalog = (*catalog.Loader)(nil)
	_ History = (*state.SQLiteStore)(nil)
)
