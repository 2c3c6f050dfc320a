package live

import (
	"context"
	"sync"
	"time"

	"github.com/vzahanych/view-guard-meta/portal/internal/aggregate"
	"github.com/vzahanych/view-guard-meta/portal/internal/logger"
	"github.com/vzahanych/view-guard-meta/portal/internal/service"
)

// Updater builds the refreshed part of the camera page
type Updater interface {
	UpdatedInfo(ctx context.Context, q aggregate.UpdateQuery) (*aggregate.UpdatedInfo, error)
}

// RefresherConfig controls how often and how much is refreshed
type RefresherConfig struct {
	PollInterval time.Duration
	EventLimit   int
	Within       time.Duration
}

// refreshState serialises refreshes of one camera. A trigger that arrives
// while a refresh runs sets pending and is served by exactly one follow-up.
type refreshState struct {
	running bool
	pending bool
}

// Refresher re-runs the updated info view for watched cameras on a timer and
// whenever a tracking event for one of them arrives on the event bus.
type Refresher struct {
	*service.ServiceBase
	updater Updater
	hub     *Hub
	config  RefresherConfig

	mu     sync.Mutex
	states map[string]*refreshState
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewRefresher creates the live refresher service
func NewRefresher(updater Updater, hub *Hub, cfg RefresherConfig, log *logger.Logger) *Refresher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	r := &Refresher{
		ServiceBase: service.NewServiceBase("live", log),
		updater:     updater,
		hub:         hub,
		config:      cfg,
		states:      make(map[string]*refreshState),
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())
	return r
}

// Start begins polling and listening for tracking events
func (r *Refresher) Start(ctx context.Context) error {
	r.hub.OnSubscribe(func(t Target) {
		r.PublishEvent(service.EventTypeLiveSubscribed, map[string]interface{}{"camera_id": t.CameraID})
		r.Trigger(t.CameraID)
	})

	if bus := r.GetEventBus(); bus != nil {
		bus.SubscribeWithHandler(r.ctx, service.EventTypeTrackingEvent, r.handleTrackingEvent, func(err error) {
			r.LogError("Tracking event handler failed", err)
		})
	}

	r.wg.Add(1)
	go r.poll()

	r.LogInfo("Live refresher started", "poll_interval", r.config.PollInterval.String())
	return nil
}

// Stop cancels in-flight refreshes and waits for them to return
func (r *Refresher) Stop(ctx context.Context) error {
	r.hub.OnSubscribe(nil)
	r.mu.Lock()
	r.cancel()
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.hub.Close()
	r.LogInfo("Live refresher stopped")
	return nil
}

func (r *Refresher) poll() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, t := range r.hub.Targets() {
				r.Trigger(t.CameraID)
			}
		case <-r.ctx.Done():
			return
		}
	}
}

// handleTrackingEvent refreshes every watched camera whose OpenGate name or id matches the event
func (r *Refresher) handleTrackingEvent(ctx context.Context, event service.Event) error {
	camera := event.String("camera")
	if camera == "" {
		return nil
	}
	for _, t := range r.hub.Targets() {
		if t.CameraName == camera || t.CameraID == camera {
			r.LogDebug("Tracking event triggers refresh", "camera_id", t.CameraID, "event_id", event.String("event_id"))
			r.Trigger(t.CameraID)
		}
	}
	return nil
}

// Trigger schedules a refresh of cameraID. Concurrent triggers collapse
// into at most one extra refresh after the running one.
func (r *Refresher) Trigger(cameraID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ctx.Err() != nil {
		return
	}
	st, ok := r.states[cameraID]
	if !ok {
		st = &refreshState{}
		r.states[cameraID] = st
	}
	if st.running {
		st.pending = true
		return
	}
	st.running = true

	r.wg.Add(1)
	go r.run(cameraID, st)
}

func (r *Refresher) run(cameraID string, st *refreshState) {
	defer r.wg.Done()
	for {
		r.refresh(cameraID)

		r.mu.Lock()
		if st.pending && r.ctx.Err() == nil {
			st.pending = false
			r.mu.Unlock()
			continue
		}
		st.running = false
		st.pending = false
		delete(r.states, cameraID)
		r.mu.Unlock()
		return
	}
}

func (r *Refresher) refresh(cameraID string) {
	target, ok := r.hub.Target(cameraID)
	if !ok {
		return
	}

	info, err := r.updater.UpdatedInfo(r.ctx, aggregate.UpdateQuery{
		CameraID:     target.CameraID,
		CameraName:   target.CameraName,
		TranscoderID: target.TranscoderID,
		Limit:        r.config.EventLimit,
		Within:       r.config.Within,
	})
	if r.ctx.Err() != nil {
		return
	}
	if err != nil {
		r.LogWarn("Live refresh failed", "camera_id", cameraID, "error", err)
		r.hub.Broadcast(Message{Type: MessageError, CameraID: cameraID, Error: err.Error()})
		return
	}
	r.hub.Broadcast(Message{Type: MessageUpdatedInfo, CameraID: cameraID, Data: info})
}
