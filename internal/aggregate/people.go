package aggregate

import (
	"context"
	"fmt"

	"github.com/vzahanych/view-guard-meta/portal/internal/backend"
)

// PersonInfo is the person detail view
type PersonInfo struct {
	Person  backend.Person          `json:"person"`
	Image   *backend.PersonImage    `json:"image,omitempty"`
	History []backend.PersonHistory `json:"history"`
}

// SummarizedHistory is a history entry resolved to its event and snapshot
type SummarizedHistory struct {
	History      backend.PersonHistory       `json:"history"`
	Event        backend.ObjectTrackingEvent `json:"event"`
	Snapshot     backend.Snapshot            `json:"snapshot"`
	PresignedURL string                      `json:"presignedUrl"`
}

// PersonHistoryView is PersonInfo plus the resolvable history entries
type PersonHistoryView struct {
	PersonInfo
	Entries []SummarizedHistory `json:"entries"`
}

// PersonInfo loads a person, then their image and history in parallel
func (a *Aggregator) PersonInfo(ctx context.Context, personID string) (*PersonInfo, error) {
	if personID == "" {
		return nil, notFound("person", personID)
	}
	people, err := a.api.GetPeople(ctx, []string{personID})
	if err != nil {
		return nil, fmt.Errorf("failed to get person: %w", err)
	}
	var person *backend.Person
	for i := range people {
		if people[i].PersonID == personID {
			person = &people[i]
			break
		}
	}
	if person == nil {
		return nil, notFound("person", personID)
	}

	info := &PersonInfo{Person: *person, History: []backend.PersonHistory{}}
	err = a.stage(ctx,
		func(ctx context.Context) error {
			image, err := optional(a.api.GetPersonImage(ctx, personID))
			if err != nil {
				return fmt.Errorf("failed to get person image: %w", err)
			}
			info.Image = image
			return nil
		},
		func(ctx context.Context) error {
			history, err := a.api.GetPersonHistory(ctx, []string{personID})
			if err != nil {
				return fmt.Errorf("failed to get person history: %w", err)
			}
			for _, h := range history {
				if h.PersonID == personID {
					info.History = append(info.History, h)
				}
			}
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	return info, nil
}

// PersonHistory resolves each history entry to its event and that event's
// snapshot. Entries whose event or snapshot cannot be resolved are skipped.
func (a *Aggregator) PersonHistory(ctx context.Context, personID string) (*PersonHistoryView, error) {
	info, err := a.PersonInfo(ctx, personID)
	if err != nil {
		return nil, err
	}
	view := &PersonHistoryView{PersonInfo: *info, Entries: []SummarizedHistory{}}

	eventIDs := uniqueIDs(info.History, func(h backend.PersonHistory) string { return h.EventID })
	if len(eventIDs) == 0 {
		return view, nil
	}
	events, err := a.eventsWithSnapshots(ctx, backend.EventQuery{IDs: eventIDs})
	if err != nil {
		return nil, err
	}
	eventByID := indexBy(events, func(e Event) string { return e.Tracking.EventID })

	for _, h := range info.History {
		e, ok := eventByID[h.EventID]
		if !ok || e.Snapshot == nil {
			continue
		}
		view.Entries = append(view.Entries, SummarizedHistory{
			History:      h,
			Event:        e.Tracking,
			Snapshot:     *e.Snapshot,
			PresignedURL: e.PresignedURL,
		})
	}
	return view, nil
}
