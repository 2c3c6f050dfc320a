package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vzahanych/view-guard-meta/portal/internal/aggregate"
	"github.com/vzahanych/view-guard-meta/portal/internal/backend"
	"github.com/vzahanych/view-guard-meta/portal/internal/backend/backendtest"
	"github.com/vzahanych/view-guard-meta/portal/internal/live"
	"github.com/vzahanych/view-guard-meta/portal/internal/logger"
)

func TestHandleListCameras(t *testing.T) {
	server, srv := setupTestServer(t)

	w := doRequest(t, server.Handler(), http.MethodGet, "/api/views/cameras?id=cam-1,missing", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Cameras []aggregate.CameraItem `json:"cameras"`
		Count   int                    `json:"count"`
	}
	decode(t, w, &body)
	require.Equal(t, 1, body.Count)
	assert.Equal(t, backendtest.CameraID, body.Cameras[0].Camera.CameraID)
	require.NotNil(t, body.Cameras[0].Transcoder)
	assert.Equal(t, backendtest.TranscoderID, body.Cameras[0].Transcoder.DeviceID)
	assert.Equal(t, "id=cam-1%2Cmissing", srv.LastQuery("GET", "/api/cameras"))
}

func TestHandleCameraView(t *testing.T) {
	server, _ := setupTestServer(t)

	w := doRequest(t, server.Handler(), http.MethodGet, "/api/views/cameras/cam-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var view aggregate.CameraView
	decode(t, w, &view)
	assert.Equal(t, backendtest.CameraID, view.Camera.CameraID)
	require.NotNil(t, view.StreamInfo)
	assert.Equal(t, "rtsp", view.StreamInfo.Protocol)
}

func TestHandleCameraView_NotFound(t *testing.T) {
	server, _ := setupTestServer(t)

	w := doRequest(t, server.Handler(), http.MethodGet, "/api/views/cameras/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "camera not found", errorBody(t, w))
}

func TestHandleCameraView_BackendFailure(t *testing.T) {
	server, srv := setupTestServer(t)
	srv.Fail("GET", "/api/cameras", http.StatusInternalServerError)

	w := doRequest(t, server.Handler(), http.MethodGet, "/api/views/cameras/cam-1", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, errorBody(t, w), "500")
}

func TestHandleUpdatedInfo(t *testing.T) {
	server, srv := setupTestServer(t)

	w := doRequest(t, server.Handler(), http.MethodGet,
		"/api/views/cameras/cam-1/updates?camera_name=front_door&transcoder_id=ltd-1&limit=2&within=1h", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var info aggregate.UpdatedInfo
	decode(t, w, &info)
	assert.Len(t, info.Events, 2)
	require.NotNil(t, info.Stats)
	assert.Equal(t, backendtest.CameraName, info.Stats.CameraName)

	assert.Equal(t, "camera_id=cam-1&limit=2&within=1h0m0s", srv.LastQuery("GET", "/api/events/object_tracking"))
	assert.Zero(t, srv.Hits("GET", "/api/cameras"))
}

func TestHandleUpdatedInfo_BadQuery(t *testing.T) {
	server, srv := setupTestServer(t)

	tests := []struct {
		name  string
		query string
		field string
	}{
		{"limit not a number", "limit=ten", "limit"},
		{"negative limit", "limit=-1", "limit"},
		{"bad within", "within=soon", "within"},
		{"bad latest", "latest=maybe", "latest"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, server.Handler(), http.MethodGet, "/api/views/cameras/cam-1/updates?"+tt.query, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, errorBody(t, w), tt.field)
		})
	}
	assert.Zero(t, srv.TotalHits())
}

func TestHandleDeviceInfo(t *testing.T) {
	server, _ := setupTestServer(t)

	w := doRequest(t, server.Handler(), http.MethodGet, "/api/views/cameras/cam-1/device", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var info backend.DeviceInfo
	decode(t, w, &info)
	assert.Equal(t, "DS-2CD2143G2-I", info.Model)

	w = doRequest(t, server.Handler(), http.MethodGet, "/api/views/cameras/missing/device", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleListTranscoders(t *testing.T) {
	server, _ := setupTestServer(t)

	w := doRequest(t, server.Handler(), http.MethodGet, "/api/views/transcoders", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Transcoders []aggregate.TranscoderItem `json:"transcoders"`
		Count       int                        `json:"count"`
	}
	decode(t, w, &body)
	require.Equal(t, 1, body.Count)
	require.NotNil(t, body.Transcoders[0].Integration)
	assert.Equal(t, backendtest.OpenGateID, body.Transcoders[0].Integration.OpenGateID)
}

func TestHandlePeople(t *testing.T) {
	server, _ := setupTestServer(t)

	w := doRequest(t, server.Handler(), http.MethodGet, "/api/views/people", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		People []aggregate.PersonItem `json:"people"`
		Count  int                    `json:"count"`
	}
	decode(t, w, &list)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "Alice", list.People[0].Person.Name)

	w = doRequest(t, server.Handler(), http.MethodGet, "/api/views/people/person-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var info aggregate.PersonInfo
	decode(t, w, &info)
	assert.Equal(t, backendtest.PersonID, info.Person.PersonID)
	require.NotNil(t, info.Image)

	w = doRequest(t, server.Handler(), http.MethodGet, "/api/views/people/person-1/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history aggregate.PersonHistoryView
	decode(t, w, &history)
	require.Len(t, history.Entries, 1)
	assert.Equal(t, backendtest.EventID, history.Entries[0].Event.EventID)

	w = doRequest(t, server.Handler(), http.MethodGet, "/api/views/people/nobody", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "person not found", errorBody(t, w))
}

func TestHandleListEvents(t *testing.T) {
	server, srv := setupTestServer(t)

	w := doRequest(t, server.Handler(), http.MethodGet, "/api/views/events?id=evt-1&id=evt-2&limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Events []aggregate.SummarizedEvent `json:"events"`
		Count  int                         `json:"count"`
	}
	decode(t, w, &body)
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, "ids=evt-1%2Cevt-2&limit=5", srv.LastQuery("GET", "/api/events/object_tracking"))
}

func TestHandleListGroups_BackendClientError(t *testing.T) {
	server, srv := setupTestServer(t)

	w := doRequest(t, server.Handler(), http.MethodGet, "/api/views/groups", nil)
	require.Equal(t, http.StatusOK, w.Code)

	srv.Fail("GET", "/api/groups", http.StatusForbidden)
	w = doRequest(t, server.Handler(), http.MethodGet, "/api/views/groups", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHandleAddCamera(t *testing.T) {
	server, srv := setupTestServer(t)

	w := doRequest(t, server.Handler(), http.MethodPost, "/api/cameras", backend.AddCameraRequest{
		Name:         "Garage",
		IP:           "192.168.1.20",
		Port:         554,
		Username:     "admin",
		Password:     "secret",
		TranscoderID: backendtest.TranscoderID,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var body struct {
		CameraID string `json:"cameraId"`
	}
	decode(t, w, &body)
	cam, ok := srv.Camera(body.CameraID)
	require.True(t, ok)
	assert.Equal(t, "Garage", cam.Name)
}

func TestHandleAddCamera_Invalid(t *testing.T) {
	server, srv := setupTestServer(t)

	tests := []struct {
		name string
		body interface{}
	}{
		{"malformed json", `{"name":`},
		{"missing port", backend.AddCameraRequest{Name: "Garage", IP: "10.0.0.2", TranscoderID: "ltd-1"}},
		{"missing transcoder", backend.AddCameraRequest{Name: "Garage", IP: "10.0.0.2", Port: 554}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, server.Handler(), http.MethodPost, "/api/cameras", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
	assert.Zero(t, srv.Hits("POST", "/api/cameras"))
}

func TestHandleDeleteCamera(t *testing.T) {
	server, srv := setupTestServer(t)

	w := doRequest(t, server.Handler(), http.MethodDelete, "/api/cameras/cam-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	_, ok := srv.Camera(backendtest.CameraID)
	assert.False(t, ok)

	w = doRequest(t, server.Handler(), http.MethodDelete, "/api/cameras/cam-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleToggleStream(t *testing.T) {
	server, srv := setupTestServer(t)

	w := doRequest(t, server.Handler(), http.MethodPut, "/api/cameras/cam-1/streams?enabled=false", nil)
	require.Equal(t, http.StatusOK, w.Code)
	cam, _ := srv.Camera(backendtest.CameraID)
	assert.False(t, cam.Enabled)

	for _, q := range []string{"", "?enabled=sometimes"} {
		w = doRequest(t, server.Handler(), http.MethodPut, "/api/cameras/cam-1/streams"+q, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
	assert.Equal(t, 1, srv.Hits("PUT", "/api/cameras/:id/streams"))
}

func TestHandlePTZ(t *testing.T) {
	server, srv := setupTestServer(t)

	w := doRequest(t, server.Handler(), http.MethodPost, "/api/cameras/cam-1/ptz", gin.H{"direction": "Left"})
	require.Equal(t, http.StatusOK, w.Code)

	var rc backend.RemoteControl
	decode(t, w, &rc)
	assert.Equal(t, backend.RemoteControl{CameraID: backendtest.CameraID, Pan: -aggregate.DefaultPTZStep}, rc)
	assert.Equal(t, []backend.RemoteControl{rc}, srv.RemoteControls())

	w = doRequest(t, server.Handler(), http.MethodPost, "/api/cameras/cam-1/ptz", gin.H{"direction": "sideways"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, server.Handler(), http.MethodPost, "/api/cameras/missing/ptz", gin.H{"direction": "up"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Len(t, srv.RemoteControls(), 1)
}

func TestHandleUpdateTranscoder(t *testing.T) {
	server, srv := setupTestServer(t)

	w := doRequest(t, server.Handler(), http.MethodPut, "/api/transcoders/ltd-1", backend.UpdateTranscoderRequest{
		LogLevel:                 "debug",
		HardwareAccelerationType: "cpu",
	})
	require.Equal(t, http.StatusOK, w.Code)
	updates := srv.TranscoderUpdates()
	require.Len(t, updates, 1)
	assert.Equal(t, backendtest.TranscoderID, updates[0].ID)
	assert.Equal(t, "debug", updates[0].LogLevel)

	w = doRequest(t, server.Handler(), http.MethodPut, "/api/transcoders/ltd-1", backend.UpdateTranscoderRequest{LogLevel: "trace"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, server.Handler(), http.MethodPut, "/api/transcoders/ltd-1", backend.UpdateTranscoderRequest{ID: "ltd-2"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid id: does not match path", errorBody(t, w))

	assert.Len(t, srv.TranscoderUpdates(), 1)
}

func TestHandleHealthcheck(t *testing.T) {
	server, srv := setupTestServer(t)

	w := doRequest(t, server.Handler(), http.MethodPost, "/api/transcoders/ltd-1/healthcheck", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{backendtest.TranscoderID}, srv.Healthchecks())

	w = doRequest(t, server.Handler(), http.MethodPost, "/api/transcoders/nope/healthcheck", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlePeopleCommands(t *testing.T) {
	server, srv := setupTestServer(t)

	w := doRequest(t, server.Handler(), http.MethodPost, "/api/people", backend.AddPersonRequest{Name: "Bob", Age: "40"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, srv.Hits("POST", "/api/people"))

	w = doRequest(t, server.Handler(), http.MethodPost, "/api/people", backend.AddPersonRequest{Name: "Bob", Age: "40", Base64Image: "aGVsbG8="})
	require.Equal(t, http.StatusCreated, w.Code)
	var body struct {
		PersonID string `json:"personId"`
	}
	decode(t, w, &body)
	assert.NotEmpty(t, body.PersonID)

	w = doRequest(t, server.Handler(), http.MethodDelete, "/api/people/"+body.PersonID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = doRequest(t, server.Handler(), http.MethodDelete, "/api/people/"+body.PersonID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleLive_Unavailable(t *testing.T) {
	server, _ := setupTestServer(t)

	w := doRequest(t, server.Handler(), http.MethodGet, "/ws/cameras/cam-1", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandleLive(t *testing.T) {
	server, backendSrv := setupTestServer(t)
	hub := live.NewHub([]string{"*"}, logger.NewNopLogger())
	server.SetLiveHub(hub)

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(func() {
		hub.Close()
		ts.Close()
	})
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws/cameras/cam-1", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount("cam-1") == 1 }, time.Second, 10*time.Millisecond)
	target, ok := hub.Target("cam-1")
	require.True(t, ok)
	assert.Equal(t, backendtest.CameraName, target.CameraName)
	assert.Equal(t, backendtest.TranscoderID, target.TranscoderID)

	// Only the camera itself is read to resolve the target
	assert.Equal(t, 1, backendSrv.Hits("GET", "/api/cameras"))
	assert.Zero(t, backendSrv.Hits("GET", "/api/devices"))
	assert.Zero(t, backendSrv.Hits("GET", "/private/opengate/cameras"))
	assert.Zero(t, backendSrv.Hits("GET", "/api/groups"))

	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"/ws/cameras/missing", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	apiErr := func(code int) error {
		return fmt.Errorf("fetch: %w", &backend.APIError{Method: "GET", Path: "/api/cameras", StatusCode: code})
	}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &aggregate.ValidationError{Field: "direction", Reason: "unknown"}, http.StatusBadRequest},
		{"not found", &aggregate.NotFoundError{Entity: "camera", ID: "x"}, http.StatusNotFound},
		{"backend 404", apiErr(http.StatusNotFound), http.StatusNotFound},
		{"backend 409", apiErr(http.StatusConflict), http.StatusConflict},
		{"backend 500", apiErr(http.StatusInternalServerError), http.StatusBadGateway},
		{"transport", errors.New("connection refused"), http.StatusBadGateway},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestQueryIDs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/?id=a,%20b,,c&id=d", nil)

	assert.Equal(t, []string{"a", "b", "c", "d"}, queryIDs(c, "id"))
	assert.Nil(t, queryIDs(c, "missing"))
}

func TestQueryDuration(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name    string
		query   string
		want    time.Duration
		wantErr bool
	}{
		{name: "absent", query: "", want: 0},
		{name: "seconds", query: "within=90", want: 90 * time.Second},
		{name: "duration", query: "within=15m", want: 15 * time.Minute},
		{name: "negative duration", query: "within=-1h", wantErr: true},
		{name: "negative seconds", query: "within=-5", wantErr: true},
		{name: "garbage", query: "within=soon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)

			d, err := queryDuration(c, "within")
			if tt.wantErr {
				assert.ErrorIs(t, err, aggregate.ErrInvalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d)
		})
	}
}
