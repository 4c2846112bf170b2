package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"ecf-service/internal/model"
)

func journalEntry(at time.Time) *model.FiscalOperation {
	op := &model.FiscalOperation{
		ID:            uuid.New(),
		DeviceID:      uuid.New(),
		OperationType: model.OperationTillAddCash,
		Request:       model.JSONObject{"value": "10"},
		StartedAt:     at,
	}
	op.Complete(at.Add(50*time.Millisecond), nil)
	return op
}

func TestJournalSpoolsWhileDatabaseIsDown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	journal := f.devices.Journal()
	base := f.clock.Now()

	f.journal.setFailing(true)
	first, second := journalEntry(base), journalEntry(base.Add(time.Second))
	require.NoError(t, journal.Record(ctx, first))
	require.NoError(t, journal.Record(ctx, second))
	assert.Empty(t, f.journal.entries())
	assert.Equal(t, 2, journal.Pending())

	n, err := journal.Replay(ctx)
	assert.ErrorIs(t, err, errDatabaseDown)
	assert.Zero(t, n)

	f.journal.setFailing(false)
	n, err = journal.Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Zero(t, journal.Pending())

	entries := f.journal.entries()
	require.Len(t, entries, 2)
	assert.Equal(t, first.ID, entries[0].ID)
	assert.Equal(t, second.ID, entries[1].ID)
}

func TestJournalWithoutSpoolReportsLoss(t *testing.T) {
	repo := &memJournalRepo{failing: true}
	journal := NewJournal(repo, nil, nil, zaptest.NewLogger(t))

	err := journal.Record(context.Background(), journalEntry(time.Now()))
	assert.ErrorIs(t, err, errDatabaseDown)
	n, err := journal.Replay(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, journal.Pending())
}

func TestJournalRunReplaysOnTick(t *testing.T) {
	f := newFixture(t)
	journal := f.devices.Journal()

	f.journal.setFailing(true)
	require.NoError(t, journal.Record(context.Background(), journalEntry(f.clock.Now())))
	f.journal.setFailing(false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- journal.Run(ctx, time.Minute) }()

	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))
	f.clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return len(f.journal.entries()) == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestOperationSurvivesJournalOutage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.connectVirtual(t, "caixa-01")

	f.journal.setFailing(true)
	res, err := f.coupons.Open(ctx, "caixa-01")
	require.NoError(t, err)
	assert.True(t, res.Coupon.IsOpen)

	pending, err := f.spool.Pending(0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, res.OperationID, pending[0].ID)
}
