package reconcile

import (
	"context"

	"go.uber.org/zap"

	"roomsync/internal/model"
)

// syncRoomNumbers copies each linked room's number onto the tenant owned by
// the room's user. tenants is the snapshot loaded before repair; a private
// copy tracks the values written so far.
func (j *Job) syncRoomNumbers(
	ctx context.Context,
	log *zap.Logger,
	opts Options,
	rooms []model.Room,
	tenants []model.Tenant,
	res *model.SyncResult,
) {
	tenants = append([]model.Tenant(nil), tenants...)
	byUser := make(map[model.UserID]*model.Tenant, len(tenants))
	for i := range tenants {
		if _, dup := byUser[tenants[i].UserID]; !dup {
			byUser[tenants[i].UserID] = &tenants[i]
		}
	}

	for _, room := range rooms {
		res.Scanned++

		tenant, ok := byUser[model.UserID(room.CurrentTenant)]
		if !ok {
			res.Skipped++
			log.Debug("no tenant owns room occupant",
				zap.String("room_id", room.ID.String()),
				zap.String("user_id", room.CurrentTenant.String()))
			continue
		}
		if tenant.RoomNumber == room.RoomNumber {
			continue
		}

		if !opts.DryRun {
			if err := j.store.SetTenantRoomNumber(ctx, tenant.ID, room.RoomNumber); err != nil {
				res.Errors++
				log.Error("failed to sync tenant room number",
					zap.String("tenant_id", tenant.ID.String()),
					zap.String("room_id", room.ID.String()),
					zap.Error(err))
				continue
			}
		}

		log.Info("synced tenant room number",
			zap.String("tenant_id", tenant.ID.String()),
			zap.String("tenant", tenant.FullName()),
			zap.String("from", tenant.RoomNumber),
			zap.String("to", room.RoomNumber))
		tenant.RoomNumber = room.RoomNumber
		res.Updated++
	}
}
