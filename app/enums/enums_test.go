package enums

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWorkStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    WorkStatus
		wantErr bool
	}{
		{"enqueued", WorkStatusEnqueued, false},
		{"RUNNING", WorkStatusRunning, false},
		{" succeeded ", WorkStatusSucceeded, false},
		{"failed", WorkStatusFailed, false},
		{"cancelled", WorkStatusCancelled, false},
		{"canceled", WorkStatus{}, true},
		{"", WorkStatus{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseWorkStatus(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Panics(t, func() { MustWorkStatus("bad") })
	assert.Equal(t, WorkStatusFailed, MustWorkStatus("failed"))
}

func TestWorkStatus_Transitions(t *testing.T) {
	allowed := map[[2]WorkStatus]bool{
		{WorkStatusEnqueued, WorkStatusRunning}:   true,
		{WorkStatusEnqueued, WorkStatusCancelled}: true,
		{WorkStatusRunning, WorkStatusSucceeded}:  true,
		{WorkStatusRunning, WorkStatusFailed}:     true,
		{WorkStatusRunning, WorkStatusCancelled}:  true,
	}
	for _, from := range WorkStatusValues {
		for _, to := range WorkStatusValues {
			assert.Equal(t, allowed[[2]WorkStatus{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}

	assert.False(t, CanTransition(WorkStatusRunning, WorkStatusEnqueued), "recovery only")
	assert.False(t, WorkStatusEnqueued.IsTerminal())
	assert.False(t, WorkStatusRunning.IsTerminal())
	assert.True(t, WorkStatusSucceeded.IsTerminal())
	assert.True(t, WorkStatusFailed.IsTerminal())
	assert.True(t, WorkStatusCancelled.IsTerminal())
}

func TestWorkStatus_ScanValue(t *testing.T) {
	v, err := WorkStatusRunning.Value()
	require.NoError(t, err)
	assert.Equal(t, "running", v)

	_, err = WorkStatus{}.Value()
	assert.Error(t, err)

	var st WorkStatus
	require.NoError(t, st.Scan("succeeded"))
	assert.Equal(t, WorkStatusSucceeded, st)
	require.NoError(t, st.Scan([]byte("failed")))
	assert.Equal(t, WorkStatusFailed, st)
	assert.Error(t, st.Scan(nil))
	assert.Error(t, st.Scan(42))
	assert.Error(t, st.Scan("unknown"))
}

func TestWorkStatus_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Status WorkStatus `json:"status"`
	}{Status: WorkStatusCancelled})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"cancelled"}`, string(data))

	var res struct {
		Status WorkStatus `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"status":"enqueued"}`), &res))
	assert.Equal(t, WorkStatusEnqueued, res.Status)
	assert.Error(t, json.Unmarshal([]byte(`{"status":"bad"}`), &res))
}

func TestWorkStatus_Index(t *testing.T) {
	for i, st := range WorkStatusValues {
		assert.Equal(t, i, st.Index(), st.String())
	}
	assert.Equal(t, int(workStatusCancelled), WorkStatusCancelled.Index())
}
