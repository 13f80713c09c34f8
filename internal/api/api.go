package api

import (
	"context"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"roomsync/internal/model"
	"roomsync/internal/reconcile"
)

// RunService is the part of manager.RunManager the API drives.
type RunService interface {
	Trigger(ctx context.Context, opts reconcile.Options) (*model.Report, error)
	LatestStored(ctx context.Context) (*model.Report, error)
	History(ctx context.Context, limit int) ([]model.Report, error)
}

type API struct {
	Routers *chi.Mux
	Runs    RunService
	logger  *zap.Logger
}

func NewAPI(runs RunService, logger *zap.Logger) *API {
	return &API{
		Routers: chi.NewRouter(),
		Runs:    runs,
		logger:  logger.Named("api"),
	}
}

// TriggerRequest is the body of POST /runs.
type TriggerRequest struct {
	DryRun bool `json:"dry_run"`
}
