package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/wrenchworks/cmms-api/internal/models"
	"github.com/wrenchworks/cmms-api/pkg/config"
	appErrors "github.com/wrenchworks/cmms-api/pkg/errors"
)

type sequenceStore interface {
	Ensure(ctx context.Context, exec sqlx.ExtContext, year int) error
	Next(ctx context.Context, exec sqlx.ExtContext, year, max int) (int, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// SequenceAllocator issues unique, year-scoped, monotonically increasing work
// order numbers of the form {prefix}{year}{sequence:05d}.
type SequenceAllocator struct {
	store  sequenceStore
	tx     txProvider
	prefix string
	loc    *time.Location
	logger *zap.Logger
}

// NewSequenceAllocator wires the allocator. The configured timezone fixes
// "today's year" so all callers agree on it regardless of server locale.
func NewSequenceAllocator(store sequenceStore, tx txProvider, cfg config.SequenceConfig, logger *zap.Logger) (*SequenceAllocator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	tz := cfg.Timezone
	if tz == "" {
		tz = "Asia/Shanghai"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load sequence timezone %q: %w", tz, err)
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "MO"
	}
	return &SequenceAllocator{
		store:  store,
		tx:     tx,
		prefix: prefix,
		loc:    loc,
		logger: logger,
	}, nil
}

// Generate allocates the next work order number for the current year. The
// increment happens inside one transaction as a storage-level "add 1", so N
// concurrent callers get N distinct, gapless numbers.
func (s *SequenceAllocator) Generate(ctx context.Context) (string, error) {
	year := time.Now().In(s.loc).Year()

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin sequence tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := s.store.Ensure(ctx, tx, year); err != nil {
		return "", err
	}

	seq, err := s.store.Next(ctx, tx, year, models.MaxYearlySequence)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// The guarded increment matched nothing: the counter is at cap.
			return "", appErrors.Clonef(appErrors.ErrSequenceOverflow,
				"work order number cap %d reached for year %d", models.MaxYearlySequence, year)
		}
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit sequence tx: %w", err)
	}

	return fmt.Sprintf("%s%d%05d", s.prefix, year, seq), nil
}
