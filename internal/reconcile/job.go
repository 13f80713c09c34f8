// Package reconcile repairs the rooms.currentTenant links of the
// boarding-house database and re-propagates room numbers onto tenants.
//
// A run has three phases that execute strictly in order: link repair,
// verification and sync. Rooms are processed one at a time and every write is
// committed immediately, so an interrupted run leaves the store in a state
// that a fresh run repairs identically.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"roomsync/internal/model"
)

// Store is the read/write contract the job needs from the data store.
type Store interface {
	ListUsers(ctx context.Context) ([]model.User, error)
	ListTenants(ctx context.Context) ([]model.Tenant, error)
	// ListLinkedRooms returns rooms whose currentTenant exists and is not null.
	ListLinkedRooms(ctx context.Context) ([]model.Room, error)
	SetRoomTenant(ctx context.Context, id model.RoomID, user model.UserID) error
	// ClearRoomTenant sets currentTenant to null and occupancy.current to 0.
	ClearRoomTenant(ctx context.Context, id model.RoomID) error
	SetTenantRoomNumber(ctx context.Context, id model.TenantID, roomNumber string) error
}

type Options struct {
	// DryRun computes every decision without writing.
	DryRun bool
}

type Job struct {
	store Store
	log   *zap.Logger
	now   func() time.Time
}

func NewJob(store Store, log *zap.Logger) *Job {
	if log == nil {
		log = zap.NewNop()
	}
	return &Job{
		store: store,
		log:   log.Named("reconcile"),
		now:   time.Now,
	}
}

// Run executes link repair, verification and sync. Per-room failures are
// counted in the report; a failing query aborts the run with an error and
// whatever was written before it stays written.
func (j *Job) Run(ctx context.Context, opts Options) (*model.Report, error) {
	report := &model.Report{
		RunID:     uuid.New(),
		StartedAt: j.now(),
		DryRun:    opts.DryRun,
	}
	log := j.log.With(zap.String("run_id", report.RunID.String()), zap.Bool("dry_run", opts.DryRun))
	log.Info("reconciliation started")

	users, err := j.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	tenants, err := j.store.ListTenants(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	rooms, err := j.store.ListLinkedRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	log.Info("loaded collections",
		zap.Int("users", len(users)),
		zap.Int("tenants", len(tenants)),
		zap.Int("linked_rooms", len(rooms)))

	projected := j.repairLinks(ctx, log, opts, users, tenants, rooms, &report.Repair)

	linked, err := j.verify(ctx, log, opts, projected, &report.Verify)
	if err != nil {
		return nil, err
	}

	j.syncRoomNumbers(ctx, log, opts, linked, tenants, &report.Sync)

	report.FinishedAt = j.now()
	log.Info("reconciliation finished",
		zap.Int("rooms_fixed", report.Fixed()),
		zap.Int("rooms_remapped", report.Repair.Remapped),
		zap.Int("rooms_cleared", report.Repair.Cleared),
		zap.Int("rooms_kept", report.Repair.Kept),
		zap.Int("repair_errors", report.Repair.Errors),
		zap.Int("valid_links", report.Verify.Valid),
		zap.Int("linked_rooms", report.Verify.Linked),
		zap.Int("tenants_synced", report.Sync.Updated),
		zap.Duration("took", report.Duration()))
	return report, nil
}

func userSet(users []model.User) map[model.UserID]struct{} {
	set := make(map[model.UserID]struct{}, len(users))
	for _, u := range users {
		set[u.ID] = struct{}{}
	}
	return set
}
