package aggregate_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vzahanych/view-guard-meta/portal/internal/aggregate"
	"github.com/vzahanych/view-guard-meta/portal/internal/backend"
	"github.com/vzahanych/view-guard-meta/portal/internal/backend/backendtest"
	"github.com/vzahanych/view-guard-meta/portal/internal/logger"
)

func setupTestAggregator(t *testing.T) (*backendtest.Server, *aggregate.Aggregator) {
	t.Helper()
	srv := backendtest.New(t)
	srv.SeedCamera()
	srv.SeedActivity()
	return srv, aggregate.New(srv.Client(), aggregate.Options{}, logger.NewNopLogger())
}

func TestCameraView(t *testing.T) {
	srv, agg := setupTestAggregator(t)

	view, err := agg.CameraView(context.Background(), backendtest.CameraID)
	require.NoError(t, err)

	assert.Equal(t, backendtest.CameraID, view.Camera.CameraID)
	assert.Equal(t, backendtest.TranscoderID, view.Transcoder.DeviceID)
	assert.Equal(t, backendtest.OpenGateID, view.Integration.OpenGateID)
	assert.Equal(t, "vaapi", view.Integration.HardwareAccelerationType)
	assert.Equal(t, backendtest.SettingsID, view.Settings.SettingsID)
	assert.Equal(t, "rtsp", view.StreamInfo.Protocol)
	assert.Equal(t, backendtest.StatusID, view.TranscoderStatus.StatusID)

	assert.Equal(t, 1, srv.Hits("GET", "/api/cameras"))
	assert.Equal(t, 1, srv.Hits("GET", "/api/devices"))
	assert.Equal(t, 1, srv.Hits("GET", "/api/opengate/:id"))
	assert.Equal(t, 1, srv.Hits("GET", "/private/opengate/cameras"))
	assert.Equal(t, 1, srv.Hits("GET", "/api/cameras/:id/streams"))
	assert.Equal(t, 1, srv.Hits("GET", "/api/devices/status"))
}

func TestCameraView_NotFoundStopsPipeline(t *testing.T) {
	srv, agg := setupTestAggregator(t)

	view, err := agg.CameraView(context.Background(), "missing")
	require.Error(t, err)
	assert.Nil(t, view)
	assert.True(t, errors.Is(err, aggregate.ErrNotFound))
	assert.Equal(t, "camera not found", err.Error())

	assert.Equal(t, 1, srv.TotalHits())
	assert.Equal(t, 1, srv.Hits("GET", "/api/cameras"))
}

func TestCameraView_EmptyID(t *testing.T) {
	srv, agg := setupTestAggregator(t)

	_, err := agg.CameraView(context.Background(), "")
	assert.True(t, errors.Is(err, aggregate.ErrNotFound))
	assert.Zero(t, srv.TotalHits())
}

// seedPartialCamera stores cam-2 on the seeded transcoder with every
// dependent except the one named by skip.
func seedPartialCamera(srv *backendtest.Server, skip string) {
	cam := backend.Camera{CameraID: "cam-2", Name: "Yard", TranscoderID: backendtest.TranscoderID, SettingsID: "set-2"}
	if skip == "transcoder" {
		cam.TranscoderID = "ltd-missing"
	}
	srv.AddCamera(cam)
	if skip != "settings" {
		srv.AddSettings(backend.OpenGateCameraSettings{SettingsID: "set-2", CameraID: "cam-2"})
	}
	if skip != "stream" {
		srv.SetStream("cam-2", backend.StreamInfo{Protocol: "rtsp", Enabled: true})
	}
	if skip != "status" {
		srv.AddStatus(backend.TranscoderStatus{StatusID: "status-2", TranscoderID: cam.TranscoderID, CameraID: "cam-2"})
	}
}

func TestCameraView_MissingDependent(t *testing.T) {
	tests := []struct {
		skip string
		want string
	}{
		{skip: "transcoder", want: "transcoder not found"},
		{skip: "settings", want: "camera settings not found"},
		{skip: "stream", want: "stream info not found"},
		{skip: "status", want: "transcoder status not found"},
	}

	for _, tt := range tests {
		t.Run(tt.skip, func(t *testing.T) {
			srv, agg := setupTestAggregator(t)
			seedPartialCamera(srv, tt.skip)

			view, err := agg.CameraView(context.Background(), "cam-2")
			require.Error(t, err)
			assert.Nil(t, view)
			assert.True(t, errors.Is(err, aggregate.ErrNotFound))
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestCameraView_MissingDependentIsStable(t *testing.T) {
	srv, agg := setupTestAggregator(t)
	seedPartialCamera(srv, "stream")

	for i := 0; i < 25; i++ {
		_, err := agg.CameraView(context.Background(), "cam-2")
		require.Error(t, err)
		require.Equal(t, "stream info not found", err.Error())
	}
}

func TestCameraView_BackendFailure(t *testing.T) {
	srv, agg := setupTestAggregator(t)
	srv.Fail("GET", "/api/cameras/:id/streams", http.StatusInternalServerError)

	_, err := agg.CameraView(context.Background(), backendtest.CameraID)
	require.Error(t, err)
	assert.False(t, errors.Is(err, aggregate.ErrNotFound))

	var apiErr *backend.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}

func TestCameraView_ContextDeadline(t *testing.T) {
	srv, agg := setupTestAggregator(t)
	srv.Delay("GET", "/api/cameras/:id/streams", 2*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := agg.CameraView(ctx, backendtest.CameraID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), time.Second)
}

func TestUpdatedInfo(t *testing.T) {
	srv, agg := setupTestAggregator(t)

	info, err := agg.UpdatedInfo(context.Background(), aggregate.UpdateQuery{
		CameraID:     backendtest.CameraID,
		CameraName:   backendtest.CameraName,
		TranscoderID: backendtest.TranscoderID,
		Limit:        10,
	})
	require.NoError(t, err)

	require.Len(t, info.Events, 3)
	assert.Equal(t, backendtest.EventID3, info.Events[0].Tracking.EventID)
	assert.Nil(t, info.Events[0].Snapshot)
	assert.Empty(t, info.Events[0].PresignedURL)

	assert.Equal(t, backendtest.EventID2, info.Events[1].Tracking.EventID)
	require.NotNil(t, info.Events[1].Snapshot)
	assert.Equal(t, backendtest.SnapshotID2, info.Events[1].Snapshot.SnapshotID)
	assert.Equal(t, "https://s3.local/snapshots/snap-2.jpg?sig=1", info.Events[1].PresignedURL)

	require.NotNil(t, info.Events[2].Snapshot)
	assert.Equal(t, backendtest.PersonID, info.Events[2].Snapshot.DetectedPerson())

	require.NotNil(t, info.Stats)
	require.NotNil(t, info.DetectorStats)
	assert.Equal(t, "cs-1", info.Stats.CameraStatID)
	assert.Equal(t, "coral", info.DetectorStats.DetectorName)

	// One batched snapshot fetch, and the camera was not re-read
	assert.Equal(t, 1, srv.Hits("GET", "/api/snapshots"))
	assert.Equal(t, "snapshot_id=snap-2%2Csnap-1", srv.LastQuery("GET", "/api/snapshots"))
	assert.Zero(t, srv.Hits("GET", "/api/cameras"))
	assert.Equal(t, "camera_id=cam-1&limit=10", srv.LastQuery("GET", "/api/events/object_tracking"))
}

func TestUpdatedInfo_ResolvesCamera(t *testing.T) {
	srv, agg := setupTestAggregator(t)

	info, err := agg.UpdatedInfo(context.Background(), aggregate.UpdateQuery{CameraID: backendtest.CameraID, Latest: true})
	require.NoError(t, err)
	require.Len(t, info.Events, 1)
	assert.Equal(t, backendtest.EventID3, info.Events[0].Tracking.EventID)
	assert.NotNil(t, info.Stats)
	assert.Equal(t, 1, srv.Hits("GET", "/api/cameras"))

	_, err = agg.UpdatedInfo(context.Background(), aggregate.UpdateQuery{CameraID: "missing"})
	assert.True(t, errors.Is(err, aggregate.ErrNotFound))
}

func TestUpdatedInfo_EmptyCameraID(t *testing.T) {
	srv, agg := setupTestAggregator(t)

	info, err := agg.UpdatedInfo(context.Background(), aggregate.UpdateQuery{
		CameraName:   backendtest.CameraName,
		TranscoderID: backendtest.TranscoderID,
	})
	require.Error(t, err)
	assert.Nil(t, info)
	assert.ErrorIs(t, err, aggregate.ErrNotFound)
	assert.Zero(t, srv.TotalHits())
}

func TestUpdatedInfo_NoEventsStillFetchesStats(t *testing.T) {
	srv := backendtest.New(t)
	srv.SeedCamera()
	agg := aggregate.New(srv.Client(), aggregate.Options{}, nil)

	info, err := agg.UpdatedInfo(context.Background(), aggregate.UpdateQuery{
		CameraID:     backendtest.CameraID,
		CameraName:   backendtest.CameraName,
		TranscoderID: backendtest.TranscoderID,
	})
	require.NoError(t, err)
	assert.NotNil(t, info.Events)
	assert.Empty(t, info.Events)
	assert.NotNil(t, info.Stats)
	assert.Equal(t, 1, srv.Hits("GET", "/api/stats"))
	assert.Zero(t, srv.Hits("GET", "/api/snapshots"))
}

func TestUpdatedInfo_MissingStats(t *testing.T) {
	_, agg := setupTestAggregator(t)

	info, err := agg.UpdatedInfo(context.Background(), aggregate.UpdateQuery{
		CameraID:     backendtest.CameraID,
		CameraName:   "unknown_camera",
		TranscoderID: backendtest.TranscoderID,
	})
	require.NoError(t, err)
	assert.Len(t, info.Events, 3)
	assert.Nil(t, info.Stats)
	assert.Nil(t, info.DetectorStats)
}

func TestListCameras(t *testing.T) {
	srv, agg := setupTestAggregator(t)
	srv.AddCamera(backend.Camera{CameraID: "cam-2", Name: "Yard", TranscoderID: "ltd-missing", GroupID: "grp-missing"})

	items, err := agg.ListCameras(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, items, 2)

	first := items[0]
	assert.Equal(t, backendtest.CameraID, first.Camera.CameraID)
	require.NotNil(t, first.Transcoder)
	assert.Equal(t, backendtest.TranscoderID, first.Transcoder.DeviceID)
	require.NotNil(t, first.Settings)
	assert.Equal(t, backendtest.SettingsID, first.Settings.SettingsID)
	require.NotNil(t, first.Group)
	assert.Equal(t, "Entrances", first.Group.Name)

	// Missing secondary matches keep the row
	second := items[1]
	assert.Equal(t, "cam-2", second.Camera.CameraID)
	assert.Nil(t, second.Transcoder)
	assert.Nil(t, second.Settings)
	assert.Nil(t, second.Group)

	assert.Equal(t, 1, srv.Hits("GET", "/api/devices"))
	assert.Equal(t, 1, srv.Hits("GET", "/private/opengate/cameras"))
	assert.Equal(t, 1, srv.Hits("GET", "/api/groups"))
}

func TestListCameras_Empty(t *testing.T) {
	srv := backendtest.New(t)
	agg := aggregate.New(srv.Client(), aggregate.Options{}, nil)

	items, err := agg.ListCameras(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
	assert.Equal(t, 1, srv.TotalHits())
}

func TestListTranscoders(t *testing.T) {
	srv, agg := setupTestAggregator(t)
	srv.AddTranscoder(backend.Transcoder{DeviceID: "ltd-2", OpenGateIntegrationID: "og-missing"})
	srv.AddTranscoder(backend.Transcoder{DeviceID: "ltd-3", OpenGateIntegrationID: backendtest.OpenGateID})
	srv.AddTranscoder(backend.Transcoder{DeviceID: "ltd-4"})

	items, err := agg.ListTranscoders(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, items, 4)

	require.NotNil(t, items[0].Integration)
	assert.Equal(t, backendtest.OpenGateID, items[0].Integration.OpenGateID)
	assert.Nil(t, items[1].Integration)
	require.NotNil(t, items[2].Integration)
	assert.Nil(t, items[3].Integration)

	// og-1 is shared, so two distinct integrations were fetched
	assert.Equal(t, 2, srv.Hits("GET", "/api/opengate/:id"))
}

func TestListPeople(t *testing.T) {
	srv, agg := setupTestAggregator(t)
	srv.AddPerson(backend.Person{PersonID: "person-2", Name: "Bob"}, "")

	items, err := agg.ListPeople(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, items, 2)

	alice := items[0]
	assert.Equal(t, "Alice", alice.Person.Name)
	require.NotNil(t, alice.Image)
	assert.Equal(t, "https://s3.local/people/alice.jpg?sig=1", alice.Image.PresignedURL)
	assert.Len(t, alice.History, 2)

	bob := items[1]
	assert.Nil(t, bob.Image)
	assert.NotNil(t, bob.History)
	assert.Empty(t, bob.History)

	assert.Equal(t, 1, srv.Hits("GET", "/api/people/history"))
	assert.Equal(t, 2, srv.Hits("GET", "/api/people/presigned"))
}

func TestListEvents(t *testing.T) {
	srv, agg := setupTestAggregator(t)

	items, err := agg.ListEvents(context.Background(), backend.EventQuery{Limit: 10})
	require.NoError(t, err)
	require.Len(t, items, 3)

	byID := make(map[string]aggregate.SummarizedEvent)
	for _, item := range items {
		byID[item.Event.EventID] = item
	}

	withPerson := byID[backendtest.EventID]
	require.NotNil(t, withPerson.Person)
	assert.Equal(t, "Alice", withPerson.Person.Name)
	assert.Equal(t, "https://s3.local/snapshots/snap-1.jpg?sig=1", withPerson.PresignedURL)

	assert.Nil(t, byID[backendtest.EventID2].Person)
	assert.NotNil(t, byID[backendtest.EventID2].Snapshot)
	assert.Nil(t, byID[backendtest.EventID3].Snapshot)

	assert.Equal(t, 1, srv.Hits("GET", "/api/people"))
	assert.Equal(t, "ids=person-1", srv.LastQuery("GET", "/api/people"))
}

func TestListEvents_NoDetectedPersonSkipsPeopleFetch(t *testing.T) {
	srv, agg := setupTestAggregator(t)

	items, err := agg.ListEvents(context.Background(), backend.EventQuery{IDs: []string{backendtest.EventID2, backendtest.EventID3}})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Zero(t, srv.Hits("GET", "/api/people"))
}

func TestPersonInfo(t *testing.T) {
	srv, agg := setupTestAggregator(t)

	info, err := agg.PersonInfo(context.Background(), backendtest.PersonID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", info.Person.Name)
	require.NotNil(t, info.Image)
	assert.Equal(t, 15*time.Minute, info.Image.Expires)
	assert.Len(t, info.History, 2)

	srv.ResetHits()
	_, err = agg.PersonInfo(context.Background(), "nobody")
	require.Error(t, err)
	assert.True(t, errors.Is(err, aggregate.ErrNotFound))
	assert.Equal(t, "person not found", err.Error())
	assert.Equal(t, 1, srv.TotalHits())
}

func TestPersonHistory(t *testing.T) {
	srv, agg := setupTestAggregator(t)

	view, err := agg.PersonHistory(context.Background(), backendtest.PersonID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", view.Person.Name)
	assert.Len(t, view.History, 2)

	// hist-2 points at an event the backend no longer has
	require.Len(t, view.Entries, 1)
	entry := view.Entries[0]
	assert.Equal(t, backendtest.HistoryID, entry.History.HistoryID)
	assert.Equal(t, backendtest.EventID, entry.Event.EventID)
	assert.Equal(t, backendtest.SnapshotID, entry.Snapshot.SnapshotID)
	assert.Equal(t, "https://s3.local/snapshots/snap-1.jpg?sig=1", entry.PresignedURL)

	assert.Equal(t, "ids=evt-1%2Cevt-gone", srv.LastQuery("GET", "/api/events/object_tracking"))
}

func TestPersonHistory_SkipsEventsWithoutSnapshot(t *testing.T) {
	srv, agg := setupTestAggregator(t)
	now := time.Now().UTC()
	srv.AddEvent(backend.ObjectTrackingEvent{
		EventID:    "evt-4",
		CameraID:   backendtest.CameraID,
		Label:      "person",
		StartTime:  now.Add(-30 * time.Second),
		SnapshotID: "snap-unknown",
	})
	srv.AddHistory(backend.PersonHistory{HistoryID: "hist-3", Timestamp: now, EventID: backendtest.EventID3, PersonID: backendtest.PersonID})
	srv.AddHistory(backend.PersonHistory{HistoryID: "hist-4", Timestamp: now, EventID: "evt-4", PersonID: backendtest.PersonID})

	view, err := agg.PersonHistory(context.Background(), backendtest.PersonID)
	require.NoError(t, err)
	assert.Len(t, view.History, 4)

	require.Len(t, view.Entries, 1)
	assert.Equal(t, backendtest.EventID, view.Entries[0].Event.EventID)
}

func TestListGroups(t *testing.T) {
	_, agg := setupTestAggregator(t)

	groups, err := agg.ListGroups(context.Background(), []string{backendtest.GroupID})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "Entrances", groups[0].Name)
}

// stubAPI serves a fixed camera and lets tests override single calls.
// It ignores context cancellation so every fetch reports its own result.
type stubAPI struct {
	settings    func() ([]backend.OpenGateCameraSettings, error)
	status      func() ([]backend.TranscoderStatus, error)
	integration func(id string) (*backend.OpenGateIntegration, error)
	transcoders []backend.Transcoder

	mu    sync.Mutex
	calls int
}

func (s *stubAPI) count() {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
}

func (s *stubAPI) GetCameras(ctx context.Context, ids []string) ([]backend.Camera, error) {
	s.count()
	return []backend.Camera{{CameraID: "cam-1", TranscoderID: "ltd-1", SettingsID: "set-1"}}, nil
}

func (s *stubAPI) GetCameraGroups(ctx context.Context, ids []string) ([]backend.CameraGroup, error) {
	s.count()
	return nil, nil
}

func (s *stubAPI) GetTranscoders(ctx context.Context, ids []string) ([]backend.Transcoder, error) {
	s.count()
	if s.transcoders != nil {
		return s.transcoders, nil
	}
	return []backend.Transcoder{{DeviceID: "ltd-1", OpenGateIntegrationID: "og-1"}}, nil
}

func (s *stubAPI) GetTranscoderStatus(ctx context.Context, transcoderIDs, cameraIDs []string) ([]backend.TranscoderStatus, error) {
	s.count()
	if s.status != nil {
		return s.status()
	}
	return []backend.TranscoderStatus{{TranscoderID: "ltd-1", CameraID: "cam-1"}}, nil
}

func (s *stubAPI) GetStats(ctx context.Context, transcoderID string, cameraNames []string) (*backend.Stats, error) {
	s.count()
	return &backend.Stats{}, nil
}

func (s *stubAPI) GetOpenGateIntegration(ctx context.Context, id string) (*backend.OpenGateIntegration, error) {
	s.count()
	if s.integration != nil {
		return s.integration(id)
	}
	return &backend.OpenGateIntegration{OpenGateID: id}, nil
}

func (s *stubAPI) GetOpenGateCameraSettings(ctx context.Context, cameraIDs []string) ([]backend.OpenGateCameraSettings, error) {
	s.count()
	if s.settings != nil {
		return s.settings()
	}
	return []backend.OpenGateCameraSettings{{SettingsID: "set-1", CameraID: "cam-1"}}, nil
}

func (s *stubAPI) GetStreamInfo(ctx context.Context, cameraID string) (*backend.StreamInfo, error) {
	s.count()
	return &backend.StreamInfo{Enabled: true}, nil
}

func (s *stubAPI) GetObjectTrackingEvents(ctx context.Context, q backend.EventQuery) ([]backend.ObjectTrackingEvent, error) {
	s.count()
	return nil, nil
}

func (s *stubAPI) GetSnapshots(ctx context.Context, ids []string) (*backend.SnapshotsResponse, error) {
	s.count()
	return &backend.SnapshotsResponse{}, nil
}

func (s *stubAPI) GetPeople(ctx context.Context, ids []string) ([]backend.Person, error) {
	s.count()
	return nil, nil
}

func (s *stubAPI) GetPersonImage(ctx context.Context, personID string) (*backend.PersonImage, error) {
	s.count()
	return nil, &backend.APIError{StatusCode: 404}
}

func (s *stubAPI) GetPersonHistory(ctx context.Context, personIDs []string) ([]backend.PersonHistory, error) {
	s.count()
	return nil, nil
}

func (s *stubAPI) RemoteControl(ctx context.Context, rc backend.RemoteControl) error {
	s.count()
	return nil
}

func TestCameraView_ReportsEarliestFailure(t *testing.T) {
	errSettings := errors.New("settings unavailable")
	errStatus := errors.New("status unavailable")

	api := &stubAPI{
		settings: func() ([]backend.OpenGateCameraSettings, error) {
			time.Sleep(50 * time.Millisecond)
			return nil, errSettings
		},
		status: func() ([]backend.TranscoderStatus, error) {
			time.Sleep(10 * time.Millisecond)
			return nil, errStatus
		},
	}
	agg := aggregate.New(api, aggregate.Options{}, nil)

	_, err := agg.CameraView(context.Background(), "cam-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, errSettings)
}

func TestListTranscoders_ConcurrencyLimit(t *testing.T) {
	const limit = 2
	var inFlight, peak atomic.Int32

	api := &stubAPI{
		integration: func(id string) (*backend.OpenGateIntegration, error) {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			return &backend.OpenGateIntegration{OpenGateID: id}, nil
		},
	}
	for i := 0; i < 8; i++ {
		api.transcoders = append(api.transcoders, backend.Transcoder{
			DeviceID:              fmt.Sprintf("ltd-%d", i),
			OpenGateIntegrationID: fmt.Sprintf("og-%d", i),
		})
	}
	agg := aggregate.New(api, aggregate.Options{MaxConcurrency: limit}, nil)

	items, err := agg.ListTranscoders(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, items, 8)
	for i, item := range items {
		require.NotNil(t, item.Integration)
		assert.Equal(t, fmt.Sprintf("og-%d", i), item.Integration.OpenGateID)
	}
	assert.LessOrEqual(t, peak.Load(), int32(limit))
	assert.Greater(t, peak.Load(), int32(0))
}
