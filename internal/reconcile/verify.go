package reconcile

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"roomsync/internal/model"
)

// verify recounts, from a fresh read, how many linked rooms point at a real
// user. Dry runs count the projected rooms instead since nothing was written.
// The rooms it counted are returned for the sync phase.
func (j *Job) verify(
	ctx context.Context,
	log *zap.Logger,
	opts Options,
	projected []model.Room,
	res *model.VerifyResult,
) ([]model.Room, error) {
	users, err := j.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("verify: list users: %w", err)
	}

	rooms := projected
	if !opts.DryRun {
		rooms, err = j.store.ListLinkedRooms(ctx)
		if err != nil {
			return nil, fmt.Errorf("verify: list rooms: %w", err)
		}
	}

	known := userSet(users)
	res.Linked = len(rooms)
	for _, room := range rooms {
		if _, ok := known[model.UserID(room.CurrentTenant)]; ok {
			res.Valid++
		}
	}

	if res.Invalid() > 0 {
		log.Warn("rooms still linked to unknown users",
			zap.Int("linked_rooms", res.Linked),
			zap.Int("valid_links", res.Valid))
	} else {
		log.Info("verified room links",
			zap.Int("linked_rooms", res.Linked),
			zap.Int("valid_links", res.Valid))
	}
	return rooms, nil
}
