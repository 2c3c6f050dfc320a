package aggregate

import (
	"context"
	"fmt"

	"github.com/vzahanych/view-guard-meta/portal/internal/backend"
)

// CameraView is everything the camera detail page shows
type CameraView struct {
	Camera           backend.Camera                 `json:"camera"`
	Transcoder       backend.Transcoder             `json:"transcoder"`
	Integration      backend.OpenGateIntegration    `json:"integration"`
	Settings         backend.OpenGateCameraSettings `json:"settings"`
	StreamInfo       backend.StreamInfo             `json:"streamInfo"`
	TranscoderStatus backend.TranscoderStatus       `json:"transcoderStatus"`
}

// CameraView loads a camera and, once it exists, its transcoder with the
// OpenGate integration, detection settings, stream info and status in parallel.
// Any missing piece fails the whole view.
func (a *Aggregator) CameraView(ctx context.Context, cameraID string) (*CameraView, error) {
	cam, err := a.camera(ctx, cameraID)
	if err != nil {
		return nil, err
	}

	view := &CameraView{Camera: *cam}
	err = a.stage(ctx,
		func(ctx context.Context) error {
			transcoder, integration, err := a.transcoderWithIntegration(ctx, cam.TranscoderID)
			if err != nil {
				return err
			}
			view.Transcoder = *transcoder
			view.Integration = *integration
			return nil
		},
		func(ctx context.Context) error {
			settings, err := a.api.GetOpenGateCameraSettings(ctx, []string{cam.CameraID})
			if err != nil {
				return fmt.Errorf("failed to get camera settings: %w", err)
			}
			s := pickSettings(settings, cam)
			if s == nil {
				return notFound("camera settings", cam.CameraID)
			}
			view.Settings = *s
			return nil
		},
		func(ctx context.Context) error {
			info, err := a.api.GetStreamInfo(ctx, cam.CameraID)
			if backend.IsNotFound(err) {
				return &NotFoundError{Entity: "stream info", ID: cam.CameraID, Err: err}
			}
			if err != nil {
				return fmt.Errorf("failed to get stream info: %w", err)
			}
			view.StreamInfo = *info
			return nil
		},
		func(ctx context.Context) error {
			if cam.TranscoderID == "" {
				return notFound("transcoder status", cam.CameraID)
			}
			statuses, err := a.api.GetTranscoderStatus(ctx, []string{cam.TranscoderID}, []string{cam.CameraID})
			if err != nil {
				return fmt.Errorf("failed to get transcoder status: %w", err)
			}
			for i := range statuses {
				if statuses[i].TranscoderID == cam.TranscoderID && statuses[i].CameraID == cam.CameraID {
					view.TranscoderStatus = statuses[i]
					return nil
				}
			}
			return notFound("transcoder status", cam.CameraID)
		},
	)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("Camera view assembled", "camera_id", cameraID)
	return view, nil
}

// Camera fetches a single camera without any of its dependents
func (a *Aggregator) Camera(ctx context.Context, cameraID string) (*backend.Camera, error) {
	return a.camera(ctx, cameraID)
}

// camera fetches exactly one camera or fails with a NotFoundError
func (a *Aggregator) camera(ctx context.Context, cameraID string) (*backend.Camera, error) {
	if cameraID == "" {
		return nil, notFound("camera", cameraID)
	}
	cameras, err := a.api.GetCameras(ctx, []string{cameraID})
	if err != nil {
		return nil, fmt.Errorf("failed to get camera: %w", err)
	}
	for i := range cameras {
		if cameras[i].CameraID == cameraID {
			return &cameras[i], nil
		}
	}
	return nil, notFound("camera", cameraID)
}

// transcoderWithIntegration resolves the transcoder then its OpenGate integration
func (a *Aggregator) transcoderWithIntegration(ctx context.Context, transcoderID string) (*backend.Transcoder, *backend.OpenGateIntegration, error) {
	if transcoderID == "" {
		return nil, nil, notFound("transcoder", transcoderID)
	}
	transcoders, err := a.api.GetTranscoders(ctx, []string{transcoderID})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get transcoder: %w", err)
	}
	var transcoder *backend.Transcoder
	for i := range transcoders {
		if transcoders[i].DeviceID == transcoderID {
			transcoder = &transcoders[i]
			break
		}
	}
	if transcoder == nil {
		return nil, nil, notFound("transcoder", transcoderID)
	}

	integrationID := transcoder.OpenGateIntegrationID
	if integrationID == "" {
		return nil, nil, notFound("opengate integration", integrationID)
	}
	integration, err := a.api.GetOpenGateIntegration(ctx, integrationID)
	if backend.IsNotFound(err) {
		return nil, nil, &NotFoundError{Entity: "opengate integration", ID: integrationID, Err: err}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get opengate integration: %w", err)
	}
	return transcoder, integration, nil
}

// pickSettings prefers the camera's settings id, then any settings for the camera
func pickSettings(settings []backend.OpenGateCameraSettings, cam *backend.Camera) *backend.OpenGateCameraSettings {
	var byCamera *backend.OpenGateCameraSettings
	for i := range settings {
		if cam.SettingsID != "" && settings[i].SettingsID == cam.SettingsID {
			return &settings[i]
		}
		if byCamera == nil && settings[i].CameraID == cam.CameraID {
			byCamera = &settings[i]
		}
	}
	return byCamera
}
