// internal/service/journal.go
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"ecf-service/internal/model"
	"ecf-service/internal/repository"
)

const replayBatch = 100

// Journal writes completed fiscal operations to the database and spools them
// locally while the database is unreachable.
type Journal struct {
	repo   repository.JournalRepository
	spool  repository.Spool
	clock  clockwork.Clock
	logger *zap.Logger
}

// NewJournal creates a journal. spool may be nil, in which case failed inserts
// are only logged.
func NewJournal(repo repository.JournalRepository, spool repository.Spool, clock clockwork.Clock, logger *zap.Logger) *Journal {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Journal{
		repo:   repo,
		spool:  spool,
		clock:  clock,
		logger: logger.With(zap.String("component", "journal")),
	}
}

// Record stores op. It only fails when neither the database nor the spool
// accepted the entry.
func (j *Journal) Record(ctx context.Context, op *model.FiscalOperation) error {
	err := j.repo.Insert(ctx, op)
	if err == nil {
		return nil
	}
	if j.spool == nil {
		j.logger.Error("Journal entry lost", zap.String("operation_id", op.ID.String()), zap.Error(err))
		return err
	}
	if spoolErr := j.spool.Put(op); spoolErr != nil {
		j.logger.Error("Failed to spool journal entry",
			zap.String("operation_id", op.ID.String()),
			zap.NamedError("insert_error", err),
			zap.Error(spoolErr),
		)
		return fmt.Errorf("journal unavailable: %w", spoolErr)
	}
	j.logger.Warn("Journal entry spooled", zap.String("operation_id", op.ID.String()), zap.Error(err))
	return nil
}

// Replay pushes spooled entries to the database, oldest first, and stops at
// the first insert failure.
func (j *Journal) Replay(ctx context.Context) (int, error) {
	if j.spool == nil {
		return 0, nil
	}
	replayed := 0
	for {
		pending, err := j.spool.Pending(replayBatch)
		if err != nil {
			return replayed, err
		}
		if len(pending) == 0 {
			return replayed, nil
		}
		for _, op := range pending {
			if err := j.repo.Insert(ctx, op); err != nil {
				return replayed, err
			}
			if err := j.spool.Remove(op.ID); err != nil {
				return replayed, err
			}
			replayed++
		}
	}
}

// Run replays the spool every interval until ctx is done.
func (j *Journal) Run(ctx context.Context, interval time.Duration) error {
	if j.spool == nil || interval <= 0 {
		return nil
	}
	ticker := j.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			n, err := j.Replay(ctx)
			if n > 0 {
				j.logger.Info("Spooled journal entries replayed", zap.Int("count", n))
			}
			if err != nil {
				j.logger.Warn("Journal replay interrupted", zap.Error(err))
			}
		}
	}
}

// Pending reports how many entries wait in the spool.
func (j *Journal) Pending() int {
	if j.spool == nil {
		return 0
	}
	n, err := j.spool.Len()
	if err != nil {
		j.logger.Warn("Failed to count spool", zap.Error(err))
	}
	return n
}

func (j *Journal) Get(ctx context.Context, id uuid.UUID) (*model.FiscalOperation, error) {
	return j.repo.GetByID(ctx, id)
}

func (j *Journal) List(ctx context.Context, filter *model.JournalFilter) ([]*model.FiscalOperation, int, error) {
	return j.repo.List(ctx, filter)
}

func (j *Journal) Summary(ctx context.Context, deviceID uuid.UUID, since time.Time) (*repository.JournalSummary, error) {
	return j.repo.Summary(ctx, deviceID, since)
}
