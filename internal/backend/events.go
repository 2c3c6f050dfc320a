package backend

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// EventQuery filters object tracking events. Zero fields are not sent.
type EventQuery struct {
	IDs      []string
	CameraID string
	Limit    int
	Within   time.Duration
	Latest   bool
}

// Values encodes the query as ids, camera_id, limit, within and latest
func (q EventQuery) Values() url.Values {
	values := url.Values{}
	if ids := compact(q.IDs); len(ids) > 0 {
		values.Set("ids", strings.Join(ids, ","))
	}
	if q.CameraID != "" {
		values.Set("camera_id", q.CameraID)
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Within > 0 {
		values.Set("within", q.Within.String())
	}
	if q.Latest {
		values.Set("latest", "true")
	}
	return values
}

// GetObjectTrackingEvents lists tracking events matching q
func (c *Client) GetObjectTrackingEvents(ctx context.Context, q EventQuery) ([]ObjectTrackingEvent, error) {
	var resp struct {
		Events []ObjectTrackingEvent `json:"objectTrackingEvents"`
	}
	if err := c.get(ctx, "/api/events/object_tracking", q.Values(), &resp); err != nil {
		return nil, err
	}
	return orEmpty(resp.Events), nil
}

// GetSnapshots returns snapshots and their presigned URLs, all of them when ids is empty
func (c *Client) GetSnapshots(ctx context.Context, snapshotIDs []string) (*SnapshotsResponse, error) {
	var resp SnapshotsResponse
	if err := c.get(ctx, "/api/snapshots", idsQuery("snapshot_id", snapshotIDs), &resp); err != nil {
		return nil, err
	}
	resp.Snapshots = orEmpty(resp.Snapshots)
	if resp.PresignedURL == nil {
		resp.PresignedURL = map[string]string{}
	}
	return &resp, nil
}
