package backend

import (
	"context"
	"net/http"
	"net/url"
)

// GetOpenGateIntegration returns the detection engine configuration by id
func (c *Client) GetOpenGateIntegration(ctx context.Context, openGateID string) (*OpenGateIntegration, error) {
	var resp struct {
		OpenGateIntegration *OpenGateIntegration `json:"openGateIntegration"`
	}
	path := "/api/opengate/" + url.PathEscape(openGateID)
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.OpenGateIntegration == nil {
		return nil, &APIError{Method: http.MethodGet, Path: path, StatusCode: http.StatusNotFound, Message: "openGateIntegration missing from response"}
	}
	return resp.OpenGateIntegration, nil
}

// GetOpenGateCameraSettings lists per-camera detection settings from the private API.
// Empty cameraIDs means all cameras.
func (c *Client) GetOpenGateCameraSettings(ctx context.Context, cameraIDs []string) ([]OpenGateCameraSettings, error) {
	var resp struct {
		Settings []OpenGateCameraSettings `json:"openGateCameraSettings"`
	}
	req := request{
		method:  http.MethodGet,
		path:    "/private/opengate/cameras",
		query:   idsQuery("camera_id", cameraIDs),
		private: true,
	}
	if err := c.do(ctx, req, &resp); err != nil {
		return nil, err
	}
	return orEmpty(resp.Settings), nil
}
