package backendtest

import (
	"time"

	"github.com/vzahanych/view-guard-meta/portal/internal/backend"
)

// Identifiers used by the seed helpers
const (
	CameraID     = "cam-1"
	CameraName   = "front_door"
	GroupID      = "grp-1"
	TranscoderID = "ltd-1"
	OpenGateID   = "og-1"
	SettingsID   = "set-1"
	StatusID     = "status-1"

	PersonID    = "person-1"
	EventID     = "evt-1" // snapshot with a detected person
	EventID2    = "evt-2" // snapshot without a person
	EventID3    = "evt-3" // no snapshot
	SnapshotID  = "snap-1"
	SnapshotID2 = "snap-2"
	HistoryID   = "hist-1"
	HistoryID2  = "hist-2" // points at an unknown event
)

// SeedCamera stores one fully linked camera: group, transcoder, integration,
// settings, stream, status, stats and device info.
func (s *Server) SeedCamera() {
	s.AddGroup(backend.CameraGroup{GroupID: GroupID, Name: "Entrances", CreatedDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)})
	s.AddTranscoder(backend.Transcoder{DeviceID: TranscoderID, Name: "ltd-lobby", OpenGateIntegrationID: OpenGateID})
	s.AddIntegration(backend.OpenGateIntegration{
		OpenGateID:               OpenGateID,
		LogLevel:                 "info",
		SnapshotRetentionDays:    7,
		HardwareAccelerationType: "vaapi",
		WithEdgeTPU:              true,
		MQTTID:                   "mqtt-1",
		TranscoderID:             TranscoderID,
	})
	s.AddCamera(backend.Camera{
		CameraID:           CameraID,
		Name:               "Front door",
		IP:                 "192.168.1.10",
		Port:               554,
		Username:           "admin",
		Password:           "admin123",
		Enabled:            true,
		OpenGateCameraName: CameraName,
		GroupID:            GroupID,
		TranscoderID:       TranscoderID,
		SettingsID:         SettingsID,
	})
	s.AddSettings(backend.OpenGateCameraSettings{
		SettingsID:  SettingsID,
		Height:      720,
		Width:       1280,
		FPS:         5,
		MQTTEnabled: true,
		Timestamp:   true,
		BoundingBox: true,
		OpenGateID:  OpenGateID,
		CameraID:    CameraID,
	})
	s.SetStream(CameraID, backend.StreamInfo{
		StreamURL:      "rtsp://ltd-lobby:8554/front_door",
		Protocol:       "rtsp",
		TranscoderID:   TranscoderID,
		TranscoderName: "ltd-lobby",
		Enabled:        true,
	})
	s.AddStatus(backend.TranscoderStatus{
		StatusID:         StatusID,
		TranscoderID:     TranscoderID,
		CameraID:         CameraID,
		ObjectDetection:  true,
		Snapshots:        true,
		OpenGateStatus:   true,
		TranscoderStatus: true,
	})
	s.SetStats(TranscoderID, CameraName, backend.Stats{
		CameraStats: backend.CameraStats{
			CameraStatID: "cs-1",
			TranscoderID: TranscoderID,
			CameraName:   CameraName,
			CameraFPS:    5,
			DetectionFPS: 2.5,
		},
		DetectorStats: backend.DetectorStats{
			DetectorStatID: "ds-1",
			DetectorName:   "coral",
			TranscoderID:   TranscoderID,
			InferenceSpeed: 9.8,
		},
	})
	s.SetDeviceInfo(backend.DeviceInfo{
		CameraID:   CameraID,
		DeviceName: "IPCamera 01",
		Model:      "DS-2CD2143G2-I",
		Status:     backend.DeviceStatus{Status: "normal"},
	})
}

// SeedActivity stores events, snapshots, a person and their history for the seeded camera.
// Event start times are relative to now so recency filters behave.
func (s *Server) SeedActivity() {
	now := time.Now().UTC()
	personID := PersonID

	s.AddPerson(backend.Person{PersonID: PersonID, Name: "Alice", Age: "34", ImagePath: "people/alice.jpg"}, "https://s3.local/people/alice.jpg?sig=1")

	s.AddEvent(backend.ObjectTrackingEvent{
		EventID:         EventID,
		OpenGateEventID: "1700000000.1-abc",
		EventType:       "end",
		CameraID:        CameraID,
		CameraName:      CameraName,
		Label:           "person",
		TopScore:        0.91,
		Score:           0.88,
		HasSnapshot:     true,
		StartTime:       now.Add(-3 * time.Minute),
		SnapshotID:      SnapshotID,
	})
	s.AddEvent(backend.ObjectTrackingEvent{
		EventID:         EventID2,
		OpenGateEventID: "1700000000.2-def",
		EventType:       "end",
		CameraID:        CameraID,
		CameraName:      CameraName,
		Label:           "person",
		TopScore:        0.8,
		HasSnapshot:     true,
		StartTime:       now.Add(-2 * time.Minute),
		SnapshotID:      SnapshotID2,
	})
	s.AddEvent(backend.ObjectTrackingEvent{
		EventID:         EventID3,
		OpenGateEventID: "1700000000.3-ghi",
		EventType:       "new",
		CameraID:        CameraID,
		CameraName:      CameraName,
		Label:           "car",
		StartTime:       now.Add(-time.Minute),
	})

	s.AddSnapshot(backend.Snapshot{
		SnapshotID:       SnapshotID,
		Timestamp:        now.Add(-3 * time.Minute),
		TranscoderID:     TranscoderID,
		OpenGateEventID:  "1700000000.1-abc",
		DetectedPeopleID: &personID,
	}, "https://s3.local/snapshots/snap-1.jpg?sig=1")
	s.AddSnapshot(backend.Snapshot{
		SnapshotID:      SnapshotID2,
		Timestamp:       now.Add(-2 * time.Minute),
		TranscoderID:    TranscoderID,
		OpenGateEventID: "1700000000.2-def",
	}, "https://s3.local/snapshots/snap-2.jpg?sig=1")

	s.AddHistory(backend.PersonHistory{HistoryID: HistoryID, Timestamp: now.Add(-3 * time.Minute), EventID: EventID, PersonID: PersonID})
	s.AddHistory(backend.PersonHistory{HistoryID: HistoryID2, Timestamp: now.Add(-time.Hour), EventID: "evt-gone", PersonID: PersonID})
}
