package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"roomsync/internal/auth"
	"roomsync/internal/manager"
	"roomsync/internal/model"
	"roomsync/internal/reconcile"
)

type fakeRuns struct {
	latest    *model.Report
	latestErr error
	history   []model.Report
	err       error
	gotOpts   reconcile.Options
	limit     int
}

func (f *fakeRuns) Trigger(_ context.Context, opts reconcile.Options) (*model.Report, error) {
	f.gotOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return &model.Report{RunID: uuid.New(), DryRun: opts.DryRun, Repair: model.RepairResult{Remapped: 2}}, nil
}

func (f *fakeRuns) LatestStored(context.Context) (*model.Report, error) {
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	return f.latest, nil
}

func (f *fakeRuns) History(_ context.Context, limit int) ([]model.Report, error) {
	f.limit = limit
	if len(f.history) > limit {
		return f.history[:limit], nil
	}
	return f.history, nil
}

func setup(t *testing.T, runs *fakeRuns) (http.Handler, string) {
	t.Helper()
	auth.SetSecret("test-secret")
	token, err := auth.GenerateToken("ops")
	require.NoError(t, err)
	return NewAPI(runs, zap.NewNop()).Router(), "Bearer " + token
}

func do(h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthzIsPublic(t *testing.T) {
	h, _ := setup(t, &fakeRuns{})
	rec := do(h, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRunsRequireToken(t *testing.T) {
	h, _ := setup(t, &fakeRuns{})
	rec := do(h, http.MethodPost, "/runs", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTriggerRun(t *testing.T) {
	runs := &fakeRuns{}
	h, token := setup(t, runs)

	rec := do(h, http.MethodPost, "/runs", token, `{"dry_run":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, runs.gotOpts.DryRun)

	var got model.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.DryRun)
	assert.Equal(t, 2, got.Repair.Remapped)
}

func TestTriggerRun_EmptyBody(t *testing.T) {
	runs := &fakeRuns{}
	h, token := setup(t, runs)

	rec := do(h, http.MethodPost, "/runs", token, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, runs.gotOpts.DryRun)
}

func TestTriggerRun_BadBody(t *testing.T) {
	h, token := setup(t, &fakeRuns{})
	rec := do(h, http.MethodPost, "/runs", token, "{")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTriggerRun_Conflict(t *testing.T) {
	h, token := setup(t, &fakeRuns{err: manager.ErrRunInProgress})
	rec := do(h, http.MethodPost, "/runs", token, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLatestRun(t *testing.T) {
	h, token := setup(t, &fakeRuns{})
	rec := do(h, http.MethodGet, "/runs/latest", token, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	stored := &model.Report{RunID: uuid.New()}
	h, token = setup(t, &fakeRuns{latest: stored})
	rec = do(h, http.MethodGet, "/runs/latest", token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got model.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, stored.RunID, got.RunID)

	h, token = setup(t, &fakeRuns{latestErr: errors.New("postgres down")})
	rec = do(h, http.MethodGet, "/runs/latest", token, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestTriggerRun_ShuttingDown(t *testing.T) {
	h, token := setup(t, &fakeRuns{err: manager.ErrClosed})
	rec := do(h, http.MethodPost, "/runs", token, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListRuns(t *testing.T) {
	runs := &fakeRuns{history: []model.Report{{RunID: uuid.New()}, {RunID: uuid.New()}, {RunID: uuid.New()}}}
	h, token := setup(t, runs)

	rec := do(h, http.MethodGet, "/runs?limit=2", token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data  []model.Report `json:"data"`
		Count int            `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Len(t, body.Data, 2)

	rec = do(h, http.MethodGet, "/runs?limit=10000", token, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxHistoryLimit, runs.limit)

	rec = do(h, http.MethodGet, "/runs?limit=zero", token, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
