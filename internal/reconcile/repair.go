package reconcile

import (
	"context"

	"go.uber.org/zap"

	"roomsync/internal/model"
)

// repairLinks classifies every room's currentTenant and rewrites it:
// a known user id is kept, a tenant id is remapped to its owner's user id,
// anything else is cleared together with occupancy.current.
//
// It returns the rooms that still carry a link afterwards, as the job
// believes they now are in the store; dry runs verify against this.
func (j *Job) repairLinks(
	ctx context.Context,
	log *zap.Logger,
	opts Options,
	users []model.User,
	tenants []model.Tenant,
	rooms []model.Room,
	res *model.RepairResult,
) []model.Room {
	known := userSet(users)
	owners := make(map[model.TenantID]model.UserID, len(tenants))
	for _, t := range tenants {
		owners[t.ID] = t.UserID
	}

	projected := make([]model.Room, 0, len(rooms))
	for _, room := range rooms {
		res.Scanned++
		d := decide(room, known, owners)

		if d.Action == model.ActionKept {
			res.Kept++
			res.Decisions = append(res.Decisions, d)
			projected = append(projected, room)
			continue
		}

		var err error
		if !opts.DryRun {
			if d.Action == model.ActionRemapped {
				err = j.store.SetRoomTenant(ctx, room.ID, model.UserID(d.After))
			} else {
				err = j.store.ClearRoomTenant(ctx, room.ID)
			}
		}

		fields := []zap.Field{
			zap.String("room_id", room.ID.String()),
			zap.String("room_number", room.RoomNumber),
			zap.String("before", d.Before.String()),
			zap.String("action", string(d.Action)),
		}
		if err != nil {
			res.Errors++
			d.Error = err.Error()
			res.Decisions = append(res.Decisions, d)
			log.Error("failed to repair room link", append(fields, zap.Error(err))...)
			projected = append(projected, room)
			continue
		}

		res.Decisions = append(res.Decisions, d)
		switch d.Action {
		case model.ActionRemapped:
			res.Remapped++
			log.Info("remapped tenant id to user id", append(fields, zap.String("after", d.After.String()))...)
			room.CurrentTenant = d.After
			projected = append(projected, room)
		case model.ActionCleared:
			res.Cleared++
			log.Info("cleared unresolvable tenant link", fields...)
		}
	}
	return projected
}

// decide is the per-room rule. It is stateless, so applying it to a room it
// already repaired yields ActionKept.
func decide(room model.Room, known map[model.UserID]struct{}, owners map[model.TenantID]model.UserID) model.Decision {
	d := model.Decision{
		RoomID:     room.ID,
		RoomNumber: room.RoomNumber,
		Before:     room.CurrentTenant,
	}

	if _, ok := known[model.UserID(room.CurrentTenant)]; ok {
		d.Action = model.ActionKept
		d.After = room.CurrentTenant
		return d
	}

	if owner, ok := owners[model.TenantID(room.CurrentTenant)]; ok {
		if _, valid := known[owner]; valid {
			d.Action = model.ActionRemapped
			d.After = model.RefToUser(owner)
			return d
		}
	}

	d.Action = model.ActionCleared
	return d
}
