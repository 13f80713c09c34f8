package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomsync/internal/model"
)

func setupMockDB(t *testing.T) (*AuditStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &AuditStore{DB: db}, mock
}

func sampleReport() *model.Report {
	start := time.Date(2026, 10, 1, 3, 0, 0, 0, time.UTC)
	return &model.Report{
		RunID:      uuid.MustParse("5b1c3f0e-7a52-4f43-9d8e-6f4c1a2b3c4d"),
		StartedAt:  start,
		FinishedAt: start.Add(2 * time.Second),
		Repair: model.RepairResult{
			Scanned: 3, Kept: 1, Remapped: 1, Cleared: 1,
			Decisions: []model.Decision{
				{RoomID: "R1", RoomNumber: "101", Before: "T1", After: "U1", Action: model.ActionRemapped},
				{RoomID: "R2", RoomNumber: "102", Before: "garbage", Action: model.ActionCleared},
				{RoomID: "R3", RoomNumber: "103", Before: "U3", After: "U3", Action: model.ActionKept},
			},
		},
		Verify: model.VerifyResult{Linked: 2, Valid: 2},
		Sync:   model.SyncResult{Scanned: 2, Updated: 1, Skipped: 1},
	}
}

func TestEnsureSchema(t *testing.T) {
	store, mock := setupMockDB(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS reconcile_runs`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRun(t *testing.T) {
	store, mock := setupMockDB(t)
	r := sampleReport()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO reconcile_runs`).
		WithArgs(sqlmock.AnyArg(), r.StartedAt, r.FinishedAt, false, 2, 0, 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep := mock.ExpectPrepare(`INSERT INTO reconcile_decisions`)
	prep.ExpectExec().
		WithArgs(sqlmock.AnyArg(), "R1", "101", "T1", "U1", "remapped", "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().
		WithArgs(sqlmock.AnyArg(), "R2", "102", "garbage", "", "cleared", "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.SaveRun(context.Background(), r))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRun_RollsBackOnDecisionFailure(t *testing.T) {
	store, mock := setupMockDB(t)
	r := sampleReport()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO reconcile_runs`).WillReturnResult(sqlmock.NewResult(0, 1))
	prep := mock.ExpectPrepare(`INSERT INTO reconcile_decisions`)
	prep.ExpectExec().WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := store.SaveRun(context.Background(), r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "room R1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestRun(t *testing.T) {
	store, mock := setupMockDB(t)
	want := sampleReport()
	payload, err := json.Marshal(want)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT report FROM reconcile_runs`).
		WillReturnRows(sqlmock.NewRows([]string{"report"}).AddRow(payload))

	got, err := store.LatestRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want.RunID, got.RunID)
	assert.Equal(t, want.Repair.Remapped, got.Repair.Remapped)
	assert.Equal(t, want.Sync, got.Sync)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestRun_Empty(t *testing.T) {
	store, mock := setupMockDB(t)

	mock.ExpectQuery(`SELECT report FROM reconcile_runs`).
		WillReturnRows(sqlmock.NewRows([]string{"report"}))

	_, err := store.LatestRun(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRuns(t *testing.T) {
	store, mock := setupMockDB(t)
	a := sampleReport()
	b := sampleReport()
	b.RunID = uuid.New()
	b.DryRun = true
	pa, _ := json.Marshal(a)
	pb, _ := json.Marshal(b)

	mock.ExpectQuery(`SELECT report FROM reconcile_runs`).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"report"}).AddRow(pb).AddRow(pa))

	runs, err := store.ListRuns(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.True(t, runs[0].DryRun)
	assert.Equal(t, a.RunID, runs[1].RunID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
