package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/vzahanych/view-guard-meta/portal/internal/aggregate"
	"github.com/vzahanych/view-guard-meta/portal/internal/backend"
)

const timeLayout = "2006-01-02 15:04:05"

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// table writes tab separated rows aligned into columns
type table struct {
	tw *tabwriter.Writer
}

func newTable(w io.Writer, header ...string) *table {
	t := &table{tw: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
	t.row(header...)
	return t
}

func (t *table) row(cols ...string) {
	fmt.Fprintln(t.tw, strings.Join(cols, "\t"))
}

func (t *table) flush() error {
	return t.tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

func printCameras(w io.Writer, items []aggregate.CameraItem) error {
	t := newTable(w, "ID", "NAME", "ADDRESS", "ENABLED", "TRANSCODER", "GROUP", "RESOLUTION")
	for _, item := range items {
		transcoder, group, resolution := "-", "-", "-"
		if item.Transcoder != nil {
			transcoder = orDash(item.Transcoder.Name)
		}
		if item.Group != nil {
			group = orDash(item.Group.Name)
		}
		if item.Settings != nil {
			resolution = fmt.Sprintf("%dx%d@%d", item.Settings.Width, item.Settings.Height, item.Settings.FPS)
		}
		t.row(
			item.Camera.CameraID,
			item.Camera.Name,
			fmt.Sprintf("%s:%d", item.Camera.IP, item.Camera.Port),
			yesNo(item.Camera.Enabled),
			transcoder,
			group,
			resolution,
		)
	}
	return t.flush()
}

func printTranscoders(w io.Writer, items []aggregate.TranscoderItem) error {
	t := newTable(w, "ID", "NAME", "OPENGATE", "HWACCEL", "EDGE TPU", "LOG LEVEL")
	for _, item := range items {
		og, hw, tpu, level := "-", "-", "-", "-"
		if item.Integration != nil {
			og = item.Integration.OpenGateID
			hw = orDash(item.Integration.HardwareAccelerationType)
			tpu = yesNo(item.Integration.WithEdgeTPU)
			level = orDash(item.Integration.LogLevel)
		}
		t.row(item.Transcoder.DeviceID, item.Transcoder.Name, og, hw, tpu, level)
	}
	return t.flush()
}

func printPeople(w io.Writer, items []aggregate.PersonItem) error {
	t := newTable(w, "ID", "NAME", "AGE", "SIGHTINGS", "LAST SEEN")
	for _, item := range items {
		var last time.Time
		for _, h := range item.History {
			if h.Timestamp.After(last) {
				last = h.Timestamp
			}
		}
		t.row(item.Person.PersonID, item.Person.Name, orDash(item.Person.Age), fmt.Sprint(len(item.History)), formatTime(last))
	}
	return t.flush()
}

func printEvents(w io.Writer, items []aggregate.SummarizedEvent) error {
	t := newTable(w, "ID", "CAMERA", "LABEL", "SCORE", "STARTED", "PERSON")
	for _, item := range items {
		person := "-"
		if item.Person != nil {
			person = item.Person.Name
		}
		e := item.Event
		t.row(e.EventID, orDash(e.CameraName), e.Label, fmt.Sprintf("%.2f", e.TopScore), formatTime(e.StartTime), person)
	}
	return t.flush()
}

func printGroups(w io.Writer, groups []backend.CameraGroup) error {
	t := newTable(w, "ID", "NAME", "CREATED")
	for _, g := range groups {
		t.row(g.GroupID, g.Name, formatTime(g.CreatedDate))
	}
	return t.flush()
}

func printUpdatedInfo(w io.Writer, info *aggregate.UpdatedInfo) error {
	if info.Stats != nil {
		fmt.Fprintf(w, "camera fps %.1f, detection fps %.1f\n", info.Stats.CameraFPS, info.Stats.DetectionFPS)
	}
	if info.DetectorStats != nil {
		fmt.Fprintf(w, "detector %s, inference %.1f ms\n", info.DetectorStats.DetectorName, info.DetectorStats.InferenceSpeed)
	}
	if len(info.Events) == 0 {
		fmt.Fprintln(w, "No recent events.")
		return nil
	}

	t := newTable(w, "ID", "LABEL", "SCORE", "STARTED", "SNAPSHOT")
	for _, e := range info.Events {
		snapshot := "-"
		if e.PresignedURL != "" {
			snapshot = e.PresignedURL
		}
		t.row(e.Tracking.EventID, e.Tracking.Label, fmt.Sprintf("%.2f", e.Tracking.TopScore), formatTime(e.Tracking.StartTime), snapshot)
	}
	return t.flush()
}

func printHistory(w io.Writer, view *aggregate.PersonHistoryView) error {
	fmt.Fprintf(w, "%s (%s)\n", view.Person.Name, view.Person.PersonID)
	if len(view.Entries) == 0 {
		fmt.Fprintln(w, "No sightings.")
		return nil
	}

	t := newTable(w, "SEEN", "CAMERA", "EVENT", "SNAPSHOT")
	for _, e := range view.Entries {
		t.row(formatTime(e.History.Timestamp), orDash(e.Event.CameraName), e.Event.EventID, orDash(e.PresignedURL))
	}
	return t.flush()
}
