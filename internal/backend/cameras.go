package backend

import (
	"context"
	"net/http"
	"net/url"
)

// GetCameras lists cameras, all of them when ids is empty
func (c *Client) GetCameras(ctx context.Context, ids []string) ([]Camera, error) {
	var resp struct {
		Cameras []Camera `json:"cameras"`
	}
	if err := c.get(ctx, "/api/cameras", idsQuery("id", ids), &resp); err != nil {
		return nil, err
	}
	return orEmpty(resp.Cameras), nil
}

// AddCamera registers a camera and returns its server-assigned id
func (c *Client) AddCamera(ctx context.Context, req AddCameraRequest) (string, error) {
	var resp AddCameraResponse
	if err := c.do(ctx, request{method: http.MethodPost, path: "/api/cameras", body: req}, &resp); err != nil {
		return "", err
	}
	return resp.CameraID, nil
}

// DeleteCamera removes a camera
func (c *Client) DeleteCamera(ctx context.Context, id string) error {
	return c.do(ctx, request{
		method: http.MethodDelete,
		path:   "/api/cameras",
		query:  url.Values{"id": []string{id}},
	}, nil)
}

// GetCameraGroups lists camera groups, all of them when ids is empty
func (c *Client) GetCameraGroups(ctx context.Context, ids []string) ([]CameraGroup, error) {
	var resp struct {
		CameraGroups []CameraGroup `json:"cameraGroups"`
	}
	if err := c.get(ctx, "/api/groups", idsQuery("ids", ids), &resp); err != nil {
		return nil, err
	}
	return orEmpty(resp.CameraGroups), nil
}

// GetDeviceInfo queries the camera itself over ISAPI through the backend
func (c *Client) GetDeviceInfo(ctx context.Context, cameraID string) (*DeviceInfo, error) {
	var info DeviceInfo
	if err := c.get(ctx, "/api/cameras/info/"+url.PathEscape(cameraID), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetStreamInfo returns the live stream description of a camera
func (c *Client) GetStreamInfo(ctx context.Context, cameraID string) (*StreamInfo, error) {
	var info StreamInfo
	if err := c.get(ctx, "/api/cameras/"+url.PathEscape(cameraID)+"/streams", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ToggleStream enables or disables a camera stream
func (c *Client) ToggleStream(ctx context.Context, cameraID string, enabled bool) error {
	return c.do(ctx, request{
		method: http.MethodPut,
		path:   "/api/cameras/" + url.PathEscape(cameraID) + "/streams",
		query:  url.Values{"enabled": []string{boolString(enabled)}},
		body:   map[string]bool{"enabled": enabled},
	}, nil)
}

// RemoteControl sends a pan/tilt command
func (c *Client) RemoteControl(ctx context.Context, rc RemoteControl) error {
	return c.do(ctx, request{method: http.MethodPost, path: "/api/rc", body: rc}, nil)
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
