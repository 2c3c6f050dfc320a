package main

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vzahanych/view-guard-meta/portal/internal/aggregate"
	"github.com/vzahanych/view-guard-meta/portal/internal/backend"
	"github.com/vzahanych/view-guard-meta/portal/internal/backend/backendtest"
)

func setupTestBackend(t *testing.T) *backendtest.Server {
	t.Helper()
	srv := backendtest.New(t)
	srv.SeedCamera()
	srv.SeedActivity()
	return srv
}

func execute(t *testing.T, srv *backendtest.Server, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--backend-url", srv.URL}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCamerasCommand(t *testing.T) {
	srv := setupTestBackend(t)

	out, err := execute(t, srv, "cameras")
	require.NoError(t, err)

	assert.Contains(t, out, "ID")
	assert.Contains(t, out, backendtest.CameraID)
	assert.Contains(t, out, "192.168.1.10:554")
	assert.Contains(t, out, "ltd-lobby")
	assert.Contains(t, out, "Entrances")
	assert.Contains(t, out, "1280x720@5")
}

func TestCamerasCommand_JSON(t *testing.T) {
	srv := setupTestBackend(t)

	out, err := execute(t, srv, "--json", "cameras", backendtest.CameraID)
	require.NoError(t, err)

	var items []aggregate.CameraItem
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 1)
	assert.Equal(t, backendtest.CameraID, items[0].Camera.CameraID)
	assert.Equal(t, "id=cam-1", srv.LastQuery("GET", "/api/cameras"))
}

func TestCameraCommand_NotFound(t *testing.T) {
	srv := setupTestBackend(t)

	_, err := execute(t, srv, "camera", "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, aggregate.ErrNotFound)
}

func TestUpdatesCommand(t *testing.T) {
	srv := setupTestBackend(t)

	out, err := execute(t, srv, "updates", backendtest.CameraID, "--limit", "1")
	require.NoError(t, err)

	assert.Contains(t, out, "camera fps 5.0")
	assert.Contains(t, out, "detector coral")
	assert.Equal(t, "camera_id=cam-1&limit=1", srv.LastQuery("GET", "/api/events/object_tracking"))
}

func TestEventsCommand(t *testing.T) {
	srv := setupTestBackend(t)

	out, err := execute(t, srv, "events", backendtest.EventID)
	require.NoError(t, err)

	assert.Contains(t, out, backendtest.EventID)
	assert.Contains(t, out, "Alice")
}

func TestHistoryCommand(t *testing.T) {
	srv := setupTestBackend(t)

	out, err := execute(t, srv, "history", backendtest.PersonID)
	require.NoError(t, err)

	assert.Contains(t, out, "Alice (person-1)")
	assert.Contains(t, out, backendtest.EventID)
}

func TestPTZCommand(t *testing.T) {
	srv := setupTestBackend(t)

	out, err := execute(t, srv, "ptz", backendtest.CameraID, "up")
	require.NoError(t, err)
	assert.Equal(t, "Moved cam-1: pan 0, tilt 10\n", out)
	assert.Equal(t, []backend.RemoteControl{{CameraID: backendtest.CameraID, Tilt: 10}}, srv.RemoteControls())

	_, err = execute(t, srv, "ptz", backendtest.CameraID, "diagonal")
	assert.ErrorIs(t, err, aggregate.ErrInvalid)
	assert.Len(t, srv.RemoteControls(), 1)
}

func TestStreamCommand(t *testing.T) {
	srv := setupTestBackend(t)

	out, err := execute(t, srv, "stream", backendtest.CameraID, "off")
	require.NoError(t, err)
	assert.Equal(t, "Stream of cam-1 disabled\n", out)

	cam, ok := srv.Camera(backendtest.CameraID)
	require.True(t, ok)
	assert.False(t, cam.Enabled)
}

func TestHealthcheckCommand(t *testing.T) {
	srv := setupTestBackend(t)

	out, err := execute(t, srv, "healthcheck", backendtest.TranscoderID)
	require.NoError(t, err)
	assert.Equal(t, "ltd-1: ok\n", out)
}

func TestParseSwitch(t *testing.T) {
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{"on", true, false},
		{"off", false, false},
		{"true", true, false},
		{"0", false, false},
		{"sometimes", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseSwitch(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrintUpdatedInfo_NoEvents(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printUpdatedInfo(&out, &aggregate.UpdatedInfo{Events: []aggregate.Event{}}))
	assert.Equal(t, "No recent events.\n", out.String())
}
