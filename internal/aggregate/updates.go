package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/vzahanych/view-guard-meta/portal/internal/backend"
)

// UpdateQuery selects the recent activity of one camera. CameraName and
// TranscoderID locate the stats; when either is empty they are read from the camera.
type UpdateQuery struct {
	CameraID     string
	CameraName   string
	TranscoderID string
	Limit        int
	Within       time.Duration
	Latest       bool
}

// Event is a tracking event joined with its snapshot
type Event struct {
	Tracking     backend.ObjectTrackingEvent `json:"tracking"`
	Snapshot     *backend.Snapshot           `json:"snapshot,omitempty"`
	PresignedURL string                      `json:"presignedUrl"`
}

// UpdatedInfo is the periodically refreshed part of the camera page
type UpdatedInfo struct {
	Events        []Event                `json:"events"`
	Stats         *backend.CameraStats   `json:"stats"`
	DetectorStats *backend.DetectorStats `json:"detectorStats"`
}

// UpdatedInfo fetches recent events with their snapshots and, concurrently,
// the camera and detector stats. Stats are fetched even when there are no events.
func (a *Aggregator) UpdatedInfo(ctx context.Context, q UpdateQuery) (*UpdatedInfo, error) {
	if q.CameraID == "" {
		return nil, notFound("camera", q.CameraID)
	}
	if q.CameraName == "" || q.TranscoderID == "" {
		cam, err := a.camera(ctx, q.CameraID)
		if err != nil {
			return nil, err
		}
		if q.CameraName == "" {
			q.CameraName = cam.OpenGateCameraName
		}
		if q.TranscoderID == "" {
			q.TranscoderID = cam.TranscoderID
		}
	}

	info := &UpdatedInfo{Events: []Event{}}
	err := a.stage(ctx,
		func(ctx context.Context) error {
			events, err := a.eventsWithSnapshots(ctx, backend.EventQuery{
				CameraID: q.CameraID,
				Limit:    q.Limit,
				Within:   q.Within,
				Latest:   q.Latest,
			})
			if err != nil {
				return err
			}
			info.Events = events
			return nil
		},
		func(ctx context.Context) error {
			stats, err := optional(a.api.GetStats(ctx, q.TranscoderID, []string{q.CameraName}))
			if err != nil {
				return fmt.Errorf("failed to get stats: %w", err)
			}
			if stats != nil {
				info.Stats = &stats.CameraStats
				info.DetectorStats = &stats.DetectorStats
			}
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	return info, nil
}

// eventsWithSnapshots loads events then their snapshots in one batch.
// Events whose snapshot is unknown keep a nil Snapshot and empty URL.
func (a *Aggregator) eventsWithSnapshots(ctx context.Context, q backend.EventQuery) ([]Event, error) {
	tracked, err := a.api.GetObjectTrackingEvents(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to get tracking events: %w", err)
	}
	snapshots, urls, err := a.snapshots(ctx, uniqueIDs(tracked, func(e backend.ObjectTrackingEvent) string { return e.SnapshotID }))
	if err != nil {
		return nil, err
	}

	events := make([]Event, len(tracked))
	for i, e := range tracked {
		events[i] = Event{
			Tracking:     e,
			Snapshot:     snapshots[e.SnapshotID],
			PresignedURL: urls[e.SnapshotID],
		}
	}
	return events, nil
}

// snapshots fetches a batch of snapshots indexed by id. No ids means no request.
func (a *Aggregator) snapshots(ctx context.Context, ids []string) (map[string]*backend.Snapshot, map[string]string, error) {
	if len(ids) == 0 {
		return map[string]*backend.Snapshot{}, map[string]string{}, nil
	}
	resp, err := a.api.GetSnapshots(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get snapshots: %w", err)
	}
	urls := resp.PresignedURL
	if urls == nil {
		urls = map[string]string{}
	}
	return indexBy(resp.Snapshots, func(s backend.Snapshot) string { return s.SnapshotID }), urls, nil
}
