// Package aggregate composes backend calls into view-ready models.
//
// Every operation is a one-shot pipeline: stage one loads the primary entity,
// stage two fetches its dependents concurrently. Results are joined by key
// through maps built for the call; nothing is cached between calls.
package aggregate

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/vzahanych/view-guard-meta/portal/internal/backend"
	"github.com/vzahanych/view-guard-meta/portal/internal/logger"
)

// API is the subset of the backend client the aggregator reads from
type API interface {
	GetCameras(ctx context.Context, ids []string) ([]backend.Camera, error)
	GetCameraGroups(ctx context.Context, ids []string) ([]backend.CameraGroup, error)
	GetTranscoders(ctx context.Context, ids []string) ([]backend.Transcoder, error)
	GetTranscoderStatus(ctx context.Context, transcoderIDs, cameraIDs []string) ([]backend.TranscoderStatus, error)
	GetStats(ctx context.Context, transcoderID string, cameraNames []string) (*backend.Stats, error)
	GetOpenGateIntegration(ctx context.Context, openGateID string) (*backend.OpenGateIntegration, error)
	GetOpenGateCameraSettings(ctx context.Context, cameraIDs []string) ([]backend.OpenGateCameraSettings, error)
	GetStreamInfo(ctx context.Context, cameraID string) (*backend.StreamInfo, error)
	GetObjectTrackingEvents(ctx context.Context, q backend.EventQuery) ([]backend.ObjectTrackingEvent, error)
	GetSnapshots(ctx context.Context, snapshotIDs []string) (*backend.SnapshotsResponse, error)
	GetPeople(ctx context.Context, ids []string) ([]backend.Person, error)
	GetPersonImage(ctx context.Context, personID string) (*backend.PersonImage, error)
	GetPersonHistory(ctx context.Context, personIDs []string) ([]backend.PersonHistory, error)
	RemoteControl(ctx context.Context, rc backend.RemoteControl) error
}

// Options tunes an Aggregator
type Options struct {
	// MaxConcurrency bounds the sub-fetches in flight for one call
	MaxConcurrency int
	// PTZStep is the pan/tilt increment in degrees
	PTZStep int
}

// Aggregator builds views. It is stateless and safe for concurrent use.
type Aggregator struct {
	api    API
	opts   Options
	logger *logger.Logger
}

// New creates an aggregator over api
func New(api API, opts Options, log *logger.Logger) *Aggregator {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 8
	}
	if opts.PTZStep <= 0 {
		opts.PTZStep = DefaultPTZStep
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Aggregator{api: api, opts: opts, logger: log}
}

// stage runs fetches concurrently under ctx, at most MaxConcurrency at a time.
// Siblings are not cancelled when one fails, so each reports its own result;
// the returned error is the first failure in argument order.
func (a *Aggregator) stage(ctx context.Context, fetches ...func(ctx context.Context) error) error {
	if len(fetches) == 0 {
		return nil
	}

	var g errgroup.Group
	g.SetLimit(a.opts.MaxConcurrency)

	errs := make([]error, len(fetches))
	for i, fetch := range fetches {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			errs[i] = fetch(ctx)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// optional turns a backend 404 into a nil result
func optional[T any](v *T, err error) (*T, error) {
	if backend.IsNotFound(err) {
		return nil, nil
	}
	return v, err
}

// uniqueIDs collects distinct, non-empty keys in first-seen order
func uniqueIDs[T any](items []T, key func(T) string) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		id := key(item)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// indexBy builds a lookup table; later duplicates do not replace earlier ones
func indexBy[T any](items []T, key func(T) string) map[string]*T {
	index := make(map[string]*T, len(items))
	for i := range items {
		k := key(items[i])
		if k == "" {
			continue
		}
		if _, ok := index[k]; !ok {
			index[k] = &items[i]
		}
	}
	return index
}
