package messaging

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomsync/internal/model"
)

func TestEncodeReport_DropsKeptDecisions(t *testing.T) {
	r := &model.Report{
		Repair: model.RepairResult{
			Kept: 1, Cleared: 1,
			Decisions: []model.Decision{
				{RoomID: "R1", Action: model.ActionKept, Before: "U1", After: "U1"},
				{RoomID: "R2", Action: model.ActionCleared, Before: "junk"},
			},
		},
	}

	body, err := EncodeReport(r)
	require.NoError(t, err)

	var got model.Report
	require.NoError(t, json.Unmarshal(body, &got))
	require.Len(t, got.Repair.Decisions, 1)
	assert.Equal(t, model.RoomID("R2"), got.Repair.Decisions[0].RoomID)
	assert.Equal(t, 1, got.Repair.Kept)
	assert.Len(t, r.Repair.Decisions, 2, "input report must not be modified")
}

func TestDecodeRunRequest(t *testing.T) {
	req, err := DecodeRunRequest([]byte(`{"dry_run":true,"requested_by":"ops"}`))
	require.NoError(t, err)
	assert.Equal(t, RunRequest{DryRun: true, RequestedBy: "ops"}, req)

	req, err = DecodeRunRequest(nil)
	require.NoError(t, err)
	assert.Equal(t, RunRequest{}, req)

	_, err = DecodeRunRequest([]byte(`{not json`))
	assert.Error(t, err)
}
