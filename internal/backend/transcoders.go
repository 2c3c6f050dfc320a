package backend

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// GetTranscoders lists transcoders, all of them when ids is empty
func (c *Client) GetTranscoders(ctx context.Context, ids []string) ([]Transcoder, error) {
	var resp struct {
		Transcoders []Transcoder `json:"transcoders"`
	}
	if err := c.get(ctx, "/api/devices", idsQuery("id", ids), &resp); err != nil {
		return nil, err
	}
	return orEmpty(resp.Transcoders), nil
}

// UpdateTranscoder changes a transcoder's name and OpenGate settings
func (c *Client) UpdateTranscoder(ctx context.Context, req UpdateTranscoderRequest) error {
	return c.do(ctx, request{method: http.MethodPut, path: "/api/devices", body: req}, nil)
}

// GetTranscoderStatus lists status records filtered by transcoder and camera ids
func (c *Client) GetTranscoderStatus(ctx context.Context, transcoderIDs, cameraIDs []string) ([]TranscoderStatus, error) {
	query := url.Values{}
	if ids := compact(transcoderIDs); len(ids) > 0 {
		query.Set("transcoder_id", strings.Join(ids, ","))
	}
	if ids := compact(cameraIDs); len(ids) > 0 {
		query.Set("camera_id", strings.Join(ids, ","))
	}

	var resp struct {
		Status []TranscoderStatus `json:"status"`
	}
	if err := c.get(ctx, "/api/devices/status", query, &resp); err != nil {
		return nil, err
	}
	return orEmpty(resp.Status), nil
}

// Healthcheck asks a transcoder to report in
func (c *Client) Healthcheck(ctx context.Context, transcoderID string) (*HealthcheckResponse, error) {
	var resp HealthcheckResponse
	if err := c.get(ctx, "/api/devices/"+url.PathEscape(transcoderID)+"/healthcheck", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetStats returns the latest camera and detector stats for an OpenGate camera on a transcoder
func (c *Client) GetStats(ctx context.Context, transcoderID string, cameraNames []string) (*Stats, error) {
	query := url.Values{}
	query.Set("transcoder_id", transcoderID)
	if names := compact(cameraNames); len(names) > 0 {
		query.Set("camera_name", strings.Join(names, ","))
	}

	var stats Stats
	if err := c.get(ctx, "/api/stats", query, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
