package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"roomsync/internal/auth"
	"roomsync/internal/manager"
	"roomsync/internal/metrics"
	"roomsync/internal/reconcile"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

func (a *API) Router() http.Handler {
	a.Routers.Use(middleware.RequestID)
	a.Routers.Use(middleware.Recoverer)

	// Public
	a.Routers.Get("/healthz", a.Healthz)
	a.Routers.Handle("/metrics", metrics.Handler())

	// Secured
	a.Routers.Group(func(r chi.Router) {
		r.Use(auth.JWTAuthMiddleware)

		r.Post("/runs", a.TriggerRun)
		r.Get("/runs", a.ListRuns)
		r.Get("/runs/latest", a.LatestRun)
	})

	return a.Routers
}

// @Summary Liveness probe
// @Tags Health
// @Success 200 {object} map[string]string
// @Router /healthz [get]
func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// @Summary Start a reconciliation run
// @Tags Runs
// @Security ApiKeyAuth
// @Param body body TriggerRequest false "Run options"
// @Success 200 {object} model.Report
// @Failure 409 {string} string "run in progress"
// @Failure 503 {string} string "shutting down"
// @Router /runs [post]
func (a *API) TriggerRun(w http.ResponseWriter, r *http.Request) {
	var body TriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}

	operator := auth.GetOperator(r)
	a.logger.Info("run requested", zap.String("operator", operator), zap.Bool("dry_run", body.DryRun))

	report, err := a.Runs.Trigger(r.Context(), reconcile.Options{DryRun: body.DryRun})
	if errors.Is(err, manager.ErrRunInProgress) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if errors.Is(err, manager.ErrClosed) {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// @Summary Latest run report
// @Tags Runs
// @Security ApiKeyAuth
// @Success 200 {object} model.Report
// @Failure 404 {string} string "no runs yet"
// @Router /runs/latest [get]
func (a *API) LatestRun(w http.ResponseWriter, r *http.Request) {
	latest, err := a.Runs.LatestStored(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if latest == nil {
		http.Error(w, "no runs yet", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

// @Summary Run history, newest first
// @Tags Runs
// @Security ApiKeyAuth
// @Param limit query int false "Maximum runs returned"
// @Success 200 {object} map[string]interface{}
// @Router /runs [get]
func (a *API) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	runs, err := a.Runs.History(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":  runs,
		"count": len(runs),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
