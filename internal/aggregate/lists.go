package aggregate

import (
	"context"
	"fmt"

	"github.com/vzahanych/view-guard-meta/portal/internal/backend"
)

// CameraItem is a camera list row. Unresolved references stay nil.
type CameraItem struct {
	Camera     backend.Camera                  `json:"camera"`
	Transcoder *backend.Transcoder             `json:"transcoder,omitempty"`
	Settings   *backend.OpenGateCameraSettings `json:"settings,omitempty"`
	Group      *backend.CameraGroup            `json:"group,omitempty"`
}

// ListCameras lists cameras enriched with transcoder, settings and group
func (a *Aggregator) ListCameras(ctx context.Context, ids []string) ([]CameraItem, error) {
	cameras, err := a.api.GetCameras(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get cameras: %w", err)
	}
	if len(cameras) == 0 {
		return []CameraItem{}, nil
	}

	var (
		transcoders []backend.Transcoder
		settings    []backend.OpenGateCameraSettings
		groups      []backend.CameraGroup
	)
	transcoderIDs := uniqueIDs(cameras, func(c backend.Camera) string { return c.TranscoderID })
	cameraIDs := uniqueIDs(cameras, func(c backend.Camera) string { return c.CameraID })
	groupIDs := uniqueIDs(cameras, func(c backend.Camera) string { return c.GroupID })

	var fetches []func(ctx context.Context) error
	if len(transcoderIDs) > 0 {
		fetches = append(fetches, func(ctx context.Context) error {
			var err error
			transcoders, err = a.api.GetTranscoders(ctx, transcoderIDs)
			if err != nil {
				return fmt.Errorf("failed to get transcoders: %w", err)
			}
			return nil
		})
	}
	if len(cameraIDs) > 0 {
		fetches = append(fetches, func(ctx context.Context) error {
			var err error
			settings, err = a.api.GetOpenGateCameraSettings(ctx, cameraIDs)
			if err != nil {
				return fmt.Errorf("failed to get camera settings: %w", err)
			}
			return nil
		})
	}
	if len(groupIDs) > 0 {
		fetches = append(fetches, func(ctx context.Context) error {
			var err error
			groups, err = a.api.GetCameraGroups(ctx, groupIDs)
			if err != nil {
				return fmt.Errorf("failed to get camera groups: %w", err)
			}
			return nil
		})
	}
	if err := a.stage(ctx, fetches...); err != nil {
		return nil, err
	}

	transcoderByID := indexBy(transcoders, func(t backend.Transcoder) string { return t.DeviceID })
	settingsByID := indexBy(settings, func(s backend.OpenGateCameraSettings) string { return s.SettingsID })
	settingsByCamera := indexBy(settings, func(s backend.OpenGateCameraSettings) string { return s.CameraID })
	groupByID := indexBy(groups, func(g backend.CameraGroup) string { return g.GroupID })

	items := make([]CameraItem, len(cameras))
	for i, cam := range cameras {
		item := CameraItem{
			Camera:     cam,
			Transcoder: transcoderByID[cam.TranscoderID],
			Settings:   settingsByID[cam.SettingsID],
			Group:      groupByID[cam.GroupID],
		}
		if item.Settings == nil {
			item.Settings = settingsByCamera[cam.CameraID]
		}
		items[i] = item
	}
	return items, nil
}

// TranscoderItem is a transcoder list row
type TranscoderItem struct {
	Transcoder  backend.Transcoder           `json:"transcoder"`
	Integration *backend.OpenGateIntegration `json:"integration,omitempty"`
}

// ListTranscoders lists transcoders with their OpenGate integration, fetched once per distinct id
func (a *Aggregator) ListTranscoders(ctx context.Context, ids []string) ([]TranscoderItem, error) {
	transcoders, err := a.api.GetTranscoders(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get transcoders: %w", err)
	}

	integrationIDs := uniqueIDs(transcoders, func(t backend.Transcoder) string { return t.OpenGateIntegrationID })
	integrations := make([]*backend.OpenGateIntegration, len(integrationIDs))
	fetches := make([]func(ctx context.Context) error, len(integrationIDs))
	for i, id := range integrationIDs {
		fetches[i] = func(ctx context.Context) error {
			integration, err := optional(a.api.GetOpenGateIntegration(ctx, id))
			if err != nil {
				return fmt.Errorf("failed to get opengate integration %s: %w", id, err)
			}
			integrations[i] = integration
			return nil
		}
	}
	if err := a.stage(ctx, fetches...); err != nil {
		return nil, err
	}

	integrationByID := make(map[string]*backend.OpenGateIntegration, len(integrationIDs))
	for i, id := range integrationIDs {
		integrationByID[id] = integrations[i]
	}

	items := make([]TranscoderItem, len(transcoders))
	for i, t := range transcoders {
		items[i] = TranscoderItem{Transcoder: t, Integration: integrationByID[t.OpenGateIntegrationID]}
	}
	return items, nil
}

// PersonItem is a people list row
type PersonItem struct {
	Person  backend.Person          `json:"person"`
	Image   *backend.PersonImage    `json:"image,omitempty"`
	History []backend.PersonHistory `json:"history"`
}

// ListPeople lists people with their image URL, fetched per person, and
// their history, fetched in one batch.
func (a *Aggregator) ListPeople(ctx context.Context, ids []string) ([]PersonItem, error) {
	people, err := a.api.GetPeople(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get people: %w", err)
	}
	if len(people) == 0 {
		return []PersonItem{}, nil
	}

	personIDs := uniqueIDs(people, func(p backend.Person) string { return p.PersonID })
	images := make([]*backend.PersonImage, len(people))
	var history []backend.PersonHistory

	fetches := make([]func(ctx context.Context) error, 0, len(people)+1)
	if len(personIDs) > 0 {
		fetches = append(fetches, func(ctx context.Context) error {
			var err error
			history, err = a.api.GetPersonHistory(ctx, personIDs)
			if err != nil {
				return fmt.Errorf("failed to get person history: %w", err)
			}
			return nil
		})
	}
	for i, p := range people {
		if p.PersonID == "" {
			continue
		}
		fetches = append(fetches, func(ctx context.Context) error {
			image, err := optional(a.api.GetPersonImage(ctx, p.PersonID))
			if err != nil {
				return fmt.Errorf("failed to get image of person %s: %w", p.PersonID, err)
			}
			images[i] = image
			return nil
		})
	}
	if err := a.stage(ctx, fetches...); err != nil {
		return nil, err
	}

	historyByPerson := groupHistory(history)
	items := make([]PersonItem, len(people))
	for i, p := range people {
		h := historyByPerson[p.PersonID]
		if h == nil {
			h = []backend.PersonHistory{}
		}
		items[i] = PersonItem{Person: p, Image: images[i], History: h}
	}
	return items, nil
}

func groupHistory(history []backend.PersonHistory) map[string][]backend.PersonHistory {
	byPerson := make(map[string][]backend.PersonHistory)
	for _, h := range history {
		byPerson[h.PersonID] = append(byPerson[h.PersonID], h)
	}
	return byPerson
}

// SummarizedEvent is an event list row
type SummarizedEvent struct {
	Event        backend.ObjectTrackingEvent `json:"event"`
	Snapshot     *backend.Snapshot           `json:"snapshot,omitempty"`
	PresignedURL string                      `json:"presignedUrl"`
	Person       *backend.Person             `json:"person,omitempty"`
}

// ListEvents lists events with their snapshot and, when a person was
// recognised on it, that person. People are fetched in one batch and only
// for snapshots that name one.
func (a *Aggregator) ListEvents(ctx context.Context, q backend.EventQuery) ([]SummarizedEvent, error) {
	events, err := a.eventsWithSnapshots(ctx, q)
	if err != nil {
		return nil, err
	}

	personIDs := uniqueIDs(events, func(e Event) string {
		if e.Snapshot == nil {
			return ""
		}
		return e.Snapshot.DetectedPerson()
	})
	var people []backend.Person
	if len(personIDs) > 0 {
		people, err = a.api.GetPeople(ctx, personIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to get people: %w", err)
		}
	}
	personByID := indexBy(people, func(p backend.Person) string { return p.PersonID })

	items := make([]SummarizedEvent, len(events))
	for i, e := range events {
		item := SummarizedEvent{Event: e.Tracking, Snapshot: e.Snapshot, PresignedURL: e.PresignedURL}
		if e.Snapshot != nil {
			item.Person = personByID[e.Snapshot.DetectedPerson()]
		}
		items[i] = item
	}
	return items, nil
}

// ListGroups lists camera groups
func (a *Aggregator) ListGroups(ctx context.Context, ids []string) ([]backend.CameraGroup, error) {
	groups, err := a.api.GetCameraGroups(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get camera groups: %w", err)
	}
	return groups, nil
}
