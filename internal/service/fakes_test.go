package service

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"ecf-service/internal/config"
	drivers "ecf-service/internal/driver"
	"ecf-service/internal/model"
	"ecf-service/internal/repository"
)

var errDatabaseDown = errors.New("database down")

type memDeviceRepo struct {
	mu      sync.Mutex
	devices map[uuid.UUID]*model.Device
}

func newMemDeviceRepo() *memDeviceRepo {
	return &memDeviceRepo{devices: map[uuid.UUID]*model.Device{}}
}

func (r *memDeviceRepo) Create(_ context.Context, d *model.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.devices[d.ID] = &cp
	return nil
}

func (r *memDeviceRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *memDeviceRepo) GetByDeviceID(_ context.Context, deviceID string) (*model.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.devices {
		if d.DeviceID == deviceID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memDeviceRepo) Update(_ context.Context, d *model.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[d.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *d
	r.devices[d.ID] = &cp
	return nil
}

func (r *memDeviceRepo) UpdateStatus(_ context.Context, id uuid.UUID, status model.DeviceStatus, info model.JSONObject) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[id]
	if !ok {
		return repository.ErrNotFound
	}
	d.Status = status
	d.ErrorInfo = info
	return nil
}

func (r *memDeviceRepo) UpdateLastPing(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.devices[id]; ok {
		d.LastPing = &at
	}
	return nil
}

func (r *memDeviceRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.devices, id)
	return nil
}

func (r *memDeviceRepo) List(_ context.Context, _ *repository.DeviceFilter) ([]*model.Device, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Device, 0, len(r.devices))
	for _, d := range r.devices {
		cp := *d
		out = append(out, &cp)
	}
	return out, len(out), nil
}

type memJournalRepo struct {
	mu      sync.Mutex
	ops     []*model.FiscalOperation
	failing bool
}

func (r *memJournalRepo) setFailing(f bool) {
	r.mu.Lock()
	r.failing = f
	r.mu.Unlock()
}

func (r *memJournalRepo) entries() []*model.FiscalOperation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*model.FiscalOperation(nil), r.ops...)
}

func (r *memJournalRepo) Insert(_ context.Context, op *model.FiscalOperation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return errDatabaseDown
	}
	r.ops = append(r.ops, op)
	return nil
}

func (r *memJournalRepo) GetByID(_ context.Context, id uuid.UUID) (*model.FiscalOperation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, op := range r.ops {
		if op.ID == id {
			return op, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memJournalRepo) List(_ context.Context, f *model.JournalFilter) ([]*model.FiscalOperation, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.FiscalOperation
	for _, op := range r.ops {
		if f.DeviceID != nil && op.DeviceID != *f.DeviceID {
			continue
		}
		out = append(out, op)
	}
	return out, len(out), nil
}

func (r *memJournalRepo) LastCOO(_ context.Context, _ uuid.UUID) (int, bool, error) {
	return 0, false, nil
}

func (r *memJournalRepo) Summary(_ context.Context, deviceID uuid.UUID, since time.Time) (*repository.JournalSummary, error) {
	return &repository.JournalSummary{DeviceID: deviceID, Since: since, Amount: "0.00"}, nil
}

type recordedEvents struct {
	mu     sync.Mutex
	events []model.DeviceEvent
}

func (r *recordedEvents) Publish(e model.DeviceEvent) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recordedEvents) types() []model.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType
	}
	return out
}

type fixture struct {
	devices  *DeviceService
	coupons  *CouponService
	till     *TillService
	print    *PrintService
	repo     *memDeviceRepo
	journal  *memJournalRepo
	spool    repository.Spool
	events   *recordedEvents
	output   *bytes.Buffer
	virtuals *drivers.VirtualDevices
	clock    *clockwork.FakeClock
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 5, 10, 0, 0, 0, time.Local))

	out := &bytes.Buffer{}
	registry := drivers.NewRegistry(logger)
	virtuals := drivers.NewVirtualDevices()
	require.NoError(t, drivers.RegisterDefaultDrivers(registry, drivers.Options{
		Fs:              afero.NewMemMapFs(),
		VirtualStateDir: "/state",
		VirtualOutput:   out,
		Clock:           clock,
	}, virtuals, logger))

	spool, err := repository.OpenSpool(filepath.Join(t.TempDir(), "spool.db"), 100, logger)
	require.NoError(t, err)
	t.Cleanup(func() { spool.Close() })

	cfg := &config.Config{Device: config.DeviceConfig{
		OperationTimeout: 5 * time.Second,
		ReadTimeout:      time.Second,
		MaxEmptyReads:    3,
	}}

	repo := newMemDeviceRepo()
	journalRepo := &memJournalRepo{}
	events := &recordedEvents{}
	journal := NewJournal(journalRepo, spool, clock, logger)
	opts = append([]Option{WithClock(clock), WithEvents(events)}, opts...)
	devices := NewDeviceService(repo, journal, registry, cfg, logger, opts...)

	return &fixture{
		devices:  devices,
		coupons:  NewCouponService(devices, logger),
		till:     NewTillService(devices, logger),
		print:    NewPrintService(devices, logger),
		repo:     repo,
		journal:  journalRepo,
		spool:    spool,
		events:   events,
		output:   out,
		virtuals: virtuals,
		clock:    clock,
	}
}

// connectVirtual registers and connects a virtual printer named id.
func (f *fixture) connectVirtual(t *testing.T, id string) *model.Device {
	t.Helper()
	ctx := context.Background()
	_, err := f.devices.RegisterDevice(ctx, &RegisterDeviceRequest{
		DeviceID:       id,
		Brand:          model.BrandVirtual,
		Model:          "Simple",
		ConnectionType: model.ConnectionTypeVirtual,
	})
	require.NoError(t, err)
	device, err := f.devices.ConnectDevice(ctx, id)
	require.NoError(t, err)
	return device
}
