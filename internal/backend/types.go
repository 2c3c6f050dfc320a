package backend

import (
	"encoding/json"
	"time"
)

// Camera is a network camera registered with the backend
type Camera struct {
	CameraID           string `json:"cameraId"`
	Name               string `json:"name"`
	IP                 string `json:"ip"`
	Port               int    `json:"port"`
	Username           string `json:"username"`
	Password           string `json:"password"`
	Enabled            bool   `json:"enabled"`
	OpenGateCameraName string `json:"openGateCameraName"`
	GroupID            string `json:"groupId"`
	TranscoderID       string `json:"transcoderId"`
	SettingsID         string `json:"settingsId"`
}

// AddCameraRequest registers a camera on a transcoder
type AddCameraRequest struct {
	Name         string `json:"name"`
	IP           string `json:"ip"`
	Port         int    `json:"port"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	TranscoderID string `json:"transcoderId"`
}

type AddCameraResponse struct {
	CameraID string `json:"cameraId"`
}

// CameraGroup groups cameras for event fan-out
type CameraGroup struct {
	GroupID     string    `json:"groupId"`
	Name        string    `json:"name"`
	CreatedDate time.Time `json:"createdDate"`
}

// Transcoder is an edge device (LTD) decoding camera feeds
type Transcoder struct {
	DeviceID              string `json:"deviceId"`
	Name                  string `json:"name"`
	OpenGateIntegrationID string `json:"openGateIntegrationId"`
}

// UpdateTranscoderRequest changes transcoder and OpenGate settings
type UpdateTranscoderRequest struct {
	ID                       string `json:"id"`
	Name                     string `json:"name,omitempty"`
	LogLevel                 string `json:"logLevel,omitempty"`
	HardwareAccelerationType string `json:"hardwareAccelerationType,omitempty"`
	EdgeTPUEnabled           bool   `json:"edgeTpuEnabled"`
}

// TranscoderStatus holds per-camera health flags reported by a transcoder
type TranscoderStatus struct {
	StatusID           string `json:"statusId"`
	TranscoderID       string `json:"transcoderId"`
	CameraID           string `json:"cameraId"`
	ObjectDetection    bool   `json:"objectDetection"`
	AudioDetection     bool   `json:"audioDetection"`
	OpenGateRecordings bool   `json:"openGateRecordings"`
	Snapshots          bool   `json:"snapshots"`
	MotionDetection    bool   `json:"motionDetection"`
	ImproveContrast    bool   `json:"improveContrast"`
	Autotracker        bool   `json:"autotracker"`
	BirdseyeView       bool   `json:"birdseyeView"`
	OpenGateStatus     bool   `json:"openGateStatus"`
	TranscoderStatus   bool   `json:"transcoderStatus"`
}

// CameraStats is the latest OpenGate capture report for one camera
type CameraStats struct {
	CameraStatID string    `json:"cameraStatId"`
	TranscoderID string    `json:"transcoderId"`
	CameraName   string    `json:"cameraName"`
	CameraFPS    float64   `json:"cameraFps"`
	DetectionFPS float64   `json:"detectionFps"`
	CapturePID   int       `json:"capturePid"`
	ProcessID    int       `json:"processId"`
	ProcessFPS   float64   `json:"processFps"`
	SkippedFPS   float64   `json:"skippedFps"`
	Timestamp    time.Time `json:"timestamp"`
}

// DetectorStats is the latest OpenGate detector report for a transcoder
type DetectorStats struct {
	DetectorStatID string    `json:"detectorStatId"`
	DetectorName   string    `json:"detectorName"`
	TranscoderID   string    `json:"transcoderId"`
	DetectorStart  float64   `json:"detectorStart"`
	InferenceSpeed float64   `json:"inferenceSpeed"`
	ProcessID      int       `json:"processId"`
	Timestamp      time.Time `json:"timestamp"`
}

type Stats struct {
	CameraStats   CameraStats   `json:"cameraStats"`
	DetectorStats DetectorStats `json:"detectorStats"`
}

// OpenGateIntegration is the detection engine configuration of a transcoder
type OpenGateIntegration struct {
	OpenGateID               string `json:"openGateId"`
	LogLevel                 string `json:"logLevel"`
	SnapshotRetentionDays    int    `json:"snapshotRetentionDays"`
	HardwareAccelerationType string `json:"hardwareAccelerationType"`
	WithEdgeTPU              bool   `json:"withEdgeTpu"`
	MQTTID                   string `json:"mqttId"`
	TranscoderID             string `json:"transcoderId"`
}

// OpenGateCameraSettings tunes detection for a single camera
type OpenGateCameraSettings struct {
	SettingsID  string `json:"settingsId"`
	Height      int    `json:"height"`
	Width       int    `json:"width"`
	FPS         int    `json:"fps"`
	MQTTEnabled bool   `json:"mqttEnabled"`
	Timestamp   bool   `json:"timestamp"`
	BoundingBox bool   `json:"boundingBox"`
	Crop        bool   `json:"crop"`
	OpenGateID  string `json:"openGateId"`
	CameraID    string `json:"cameraId"`
}

// StreamInfo describes a camera's live stream
type StreamInfo struct {
	StreamURL      string `json:"streamUrl"`
	Protocol       string `json:"protocol"`
	TranscoderID   string `json:"transcoderId"`
	TranscoderName string `json:"transcoderName"`
	Enabled        bool   `json:"enabled"`
}

// ObjectTrackingEvent is a detected object occurrence on a camera
type ObjectTrackingEvent struct {
	EventID         string     `json:"eventId"`
	OpenGateEventID string     `json:"openGateEventId"`
	EventType       string     `json:"eventType"`
	CameraID        string     `json:"cameraId"`
	CameraName      string     `json:"CameraName"`
	FrameTime       time.Time  `json:"frameTime"`
	Label           string     `json:"label"`
	TopScore        float64    `json:"topScore"`
	Score           float64    `json:"score"`
	HasSnapshot     bool       `json:"hasSnapshot"`
	HasClip         bool       `json:"hasClip"`
	Stationary      bool       `json:"stationary"`
	FalsePositive   bool       `json:"falsePositive"`
	StartTime       time.Time  `json:"startTime"`
	EndTime         *time.Time `json:"endTime,omitempty"`
	SnapshotID      string     `json:"snapshotId"`
}

// Snapshot is an image captured for an event
type Snapshot struct {
	SnapshotID       string    `json:"snapshotId"`
	Timestamp        time.Time `json:"timestamp"`
	TranscoderID     string    `json:"transcoderId"`
	OpenGateEventID  string    `json:"openGateEventId"`
	DetectedPeopleID *string   `json:"detectedPeopleId,omitempty"`
}

// DetectedPerson returns the linked person id, or "" when no person was recognised
func (s Snapshot) DetectedPerson() string {
	if s.DetectedPeopleID == nil {
		return ""
	}
	return *s.DetectedPeopleID
}

// SnapshotsResponse pairs snapshots with presigned URLs keyed by snapshot id
type SnapshotsResponse struct {
	Snapshots    []Snapshot        `json:"snapshot"`
	PresignedURL map[string]string `json:"presignedUrl"`
}

// Person is a known, detectable individual
type Person struct {
	PersonID  string `json:"personId"`
	Name      string `json:"name"`
	Age       string `json:"age"`
	ImagePath string `json:"imagePath"`
}

// PersonImage is a short lived URL for a person's reference image
type PersonImage struct {
	PresignedURL string        `json:"presignedUrl"`
	Expires      time.Duration `json:"expires"`
}

type AddPersonRequest struct {
	Name        string `json:"name"`
	Age         string `json:"age"`
	Base64Image string `json:"base64Image"`
}

// String omits the image payload
func (r AddPersonRequest) String() string {
	type req AddPersonRequest
	copied := req(r)
	copied.Base64Image = "LONG_STRING_OMITTED"
	b, _ := json.Marshal(copied)
	return string(b)
}

type AddPersonResponse struct {
	PersonID string `json:"personId"`
}

// PersonHistory links a person to an event occurrence
type PersonHistory struct {
	HistoryID string    `json:"historyId"`
	Timestamp time.Time `json:"timestamp"`
	EventID   string    `json:"eventId"`
	PersonID  string    `json:"personId"`
}

// RemoteControl is a pan/tilt command in degrees
type RemoteControl struct {
	CameraID string `json:"cameraId"`
	Pan      int    `json:"pan"`
	Tilt     int    `json:"tilt"`
}

// DeviceInfo is the ISAPI device report of a camera
type DeviceInfo struct {
	CameraID             string       `json:"cameraId"`
	DeviceName           string       `json:"deviceName"`
	DeviceLocation       string       `json:"deviceLocation"`
	Status               DeviceStatus `json:"deviceStatus"`
	Model                string       `json:"model"`
	SerialNumber         string       `json:"serialNumber"`
	FirmwareVersion      string       `json:"firmwareVersion"`
	FirmwareReleasedDate string       `json:"firmwareReleasedDate"`
	Capacity             int          `json:"capacity"`
	UsedCapacity         int          `json:"usedCapacity"`
}

type DeviceStatus struct {
	Status               string              `json:"status"`
	DetailAbnormalStatus DeviceAbnormalities `json:"detailAbnormalStatus"`
}

type DeviceAbnormalities struct {
	HardDiskFull         bool `json:"hardDiskFull"`
	HardDiskError        bool `json:"hardDiskError"`
	EthernetBroken       bool `json:"ethernetBroken"`
	IPAddrConflict       bool `json:"ipaddrConflict"`
	IllegalAccess        bool `json:"illegalAccess"`
	RecordError          bool `json:"recordError"`
	RAIDLogicDiskError   bool `json:"raidLogicDiskError"`
	SpareWorkDeviceError bool `json:"spareWorkDeviceError"`
}

type HealthcheckResponse struct {
	Status string `json:"status"`
}
