package aggregate

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/vzahanych/view-guard-meta/portal/internal/backend"
)

// DefaultPTZStep is the pan/tilt increment used when none is configured
const DefaultPTZStep = 10

// MaxDegrees bounds pan and tilt in either direction
const MaxDegrees = 360

// Direction is a PTZ movement
type Direction string

const (
	DirectionUp    Direction = "up"
	DirectionDown  Direction = "down"
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
)

// ParseDirection accepts up, down, left or right in any case
func ParseDirection(s string) (Direction, error) {
	d := Direction(strings.ToLower(strings.TrimSpace(s)))
	switch d {
	case DirectionUp, DirectionDown, DirectionLeft, DirectionRight:
		return d, nil
	}
	return "", &ValidationError{Field: "direction", Reason: fmt.Sprintf("%q is not one of up, down, left, right", s)}
}

// RemoteControlFor maps a direction to a command moving exactly one axis by step degrees
func RemoteControlFor(cameraID string, d Direction, step int) (backend.RemoteControl, error) {
	rc := backend.RemoteControl{CameraID: cameraID}
	if step <= 0 || step > MaxDegrees {
		return rc, &ValidationError{Field: "step", Reason: fmt.Sprintf("must be between 1 and %d, got %d", MaxDegrees, step)}
	}

	switch d {
	case DirectionUp:
		rc.Tilt = step
	case DirectionDown:
		rc.Tilt = -step
	case DirectionLeft:
		rc.Pan = -step
	case DirectionRight:
		rc.Pan = step
	default:
		return rc, &ValidationError{Field: "direction", Reason: fmt.Sprintf("%q is not one of up, down, left, right", d)}
	}
	return rc, nil
}

// PTZ moves a camera one step in direction d
func (a *Aggregator) PTZ(ctx context.Context, cameraID string, d Direction) (backend.RemoteControl, error) {
	if cameraID == "" {
		return backend.RemoteControl{}, &ValidationError{Field: "cameraId", Reason: "is required"}
	}
	rc, err := RemoteControlFor(cameraID, d, a.opts.PTZStep)
	if err != nil {
		return rc, err
	}
	if err := a.api.RemoteControl(ctx, rc); err != nil {
		if backend.IsNotFound(err) {
			return rc, &NotFoundError{Entity: "camera", ID: cameraID, Err: err}
		}
		return rc, fmt.Errorf("failed to send remote control: %w", err)
	}
	a.logger.Debug("PTZ command sent", "camera_id", cameraID, "direction", d, "pan", rc.Pan, "tilt", rc.Tilt)
	return rc, nil
}

var (
	validLogLevels      = []string{"debug", "info", "warning"}
	validHardwareAccels = []string{"cpu", "vaapi", "quicksync"}
)

// ValidateTranscoderUpdate checks an update against the values OpenGate accepts
func ValidateTranscoderUpdate(req backend.UpdateTranscoderRequest) error {
	if req.ID == "" {
		return &ValidationError{Field: "id", Reason: "is required"}
	}
	if req.LogLevel != "" && !slices.Contains(validLogLevels, req.LogLevel) {
		return &ValidationError{Field: "logLevel", Reason: fmt.Sprintf("must be one of %s", strings.Join(validLogLevels, ", "))}
	}
	if req.HardwareAccelerationType != "" && !slices.Contains(validHardwareAccels, req.HardwareAccelerationType) {
		return &ValidationError{Field: "hardwareAccelerationType", Reason: fmt.Sprintf("must be one of %s", strings.Join(validHardwareAccels, ", "))}
	}
	return nil
}

// ValidateAddCamera checks the fields the backend requires
func ValidateAddCamera(req backend.AddCameraRequest) error {
	switch {
	case strings.TrimSpace(req.Name) == "":
		return &ValidationError{Field: "name", Reason: "is required"}
	case strings.TrimSpace(req.IP) == "":
		return &ValidationError{Field: "ip", Reason: "is required"}
	case req.Port <= 0 || req.Port > 65535:
		return &ValidationError{Field: "port", Reason: fmt.Sprintf("must be between 1 and 65535, got %d", req.Port)}
	case req.TranscoderID == "":
		return &ValidationError{Field: "transcoderId", Reason: "is required"}
	}
	return nil
}

// ValidateAddPerson checks a person upload
func ValidateAddPerson(req backend.AddPersonRequest) error {
	switch {
	case strings.TrimSpace(req.Name) == "":
		return &ValidationError{Field: "name", Reason: "is required"}
	case req.Base64Image == "":
		return &ValidationError{Field: "base64Image", Reason: "is required"}
	}
	return nil
}
