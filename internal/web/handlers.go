package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vzahanych/view-guard-meta/portal/internal/aggregate"
	"github.com/vzahanych/view-guard-meta/portal/internal/backend"
	"github.com/vzahanych/view-guard-meta/portal/internal/live"
	"github.com/vzahanych/view-guard-meta/portal/internal/service"
)

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "web-server",
	})
}

// handleStatus handles the system status endpoint
func (s *Server) handleStatus(c *gin.Context) {
	uptime := time.Since(s.startTime)

	health := "healthy"
	services := make(map[string]service.Snapshot)
	if s.statuses != nil {
		for name, st := range s.statuses.GetAllStatuses() {
			services[name] = st.Snapshot()
			if st.GetStatus() != service.StatusRunning {
				health = "degraded"
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         health,
		"uptime":         uptime.String(),
		"uptime_seconds": int64(uptime.Seconds()),
		"version":        s.version,
		"services":       services,
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleListCameras(c *gin.Context) {
	items, err := s.views.ListCameras(c.Request.Context(), queryIDs(c, "id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"cameras": items,
		"count":   len(items),
	})
}

func (s *Server) handleCameraView(c *gin.Context) {
	view, err := s.views.CameraView(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// handleUpdatedInfo serves the refreshed part of the camera page
func (s *Server) handleUpdatedInfo(c *gin.Context) {
	q := aggregate.UpdateQuery{
		CameraID:     c.Param("id"),
		CameraName:   c.Query("camera_name"),
		TranscoderID: c.Query("transcoder_id"),
	}

	var err error
	if q.Limit, err = queryInt(c, "limit"); err != nil {
		s.writeError(c, err)
		return
	}
	if q.Within, err = queryDuration(c, "within"); err != nil {
		s.writeError(c, err)
		return
	}
	if q.Latest, err = queryBool(c, "latest"); err != nil {
		s.writeError(c, err)
		return
	}

	info, err := s.views.UpdatedInfo(c.Request.Context(), q)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) handleDeviceInfo(c *gin.Context) {
	info, err := s.commands.GetDeviceInfo(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) handleListTranscoders(c *gin.Context) {
	items, err := s.views.ListTranscoders(c.Request.Context(), queryIDs(c, "id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transcoders": items,
		"count":       len(items),
	})
}

func (s *Server) handleListPeople(c *gin.Context) {
	items, err := s.views.ListPeople(c.Request.Context(), queryIDs(c, "id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"people": items,
		"count":  len(items),
	})
}

func (s *Server) handlePersonInfo(c *gin.Context) {
	info, err := s.views.PersonInfo(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) handlePersonHistory(c *gin.Context) {
	view, err := s.views.PersonHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// handleListEvents lists tracking events with their snapshot and detected person
func (s *Server) handleListEvents(c *gin.Context) {
	q := backend.EventQuery{
		IDs:      queryIDs(c, "id"),
		CameraID: c.Query("camera_id"),
	}

	var err error
	if q.Limit, err = queryInt(c, "limit"); err != nil {
		s.writeError(c, err)
		return
	}
	if q.Within, err = queryDuration(c, "within"); err != nil {
		s.writeError(c, err)
		return
	}
	if q.Latest, err = queryBool(c, "latest"); err != nil {
		s.writeError(c, err)
		return
	}

	items, err := s.views.ListEvents(c.Request.Context(), q)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"events": items,
		"count":  len(items),
	})
}

func (s *Server) handleListGroups(c *gin.Context) {
	groups, err := s.views.ListGroups(c.Request.Context(), queryIDs(c, "id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"groups": groups,
		"count":  len(groups),
	})
}

// handleAddCamera registers a camera on a transcoder
func (s *Server) handleAddCamera(c *gin.Context) {
	var req backend.AddCameraRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}
	if err := aggregate.ValidateAddCamera(req); err != nil {
		s.writeError(c, err)
		return
	}

	id, err := s.commands.AddCamera(c.Request.Context(), req)
	if err != nil {
		s.writeError(c, err)
		return
	}

	s.LogInfo("Camera added", "camera_id", id, "name", req.Name, "transcoder_id", req.TranscoderID)
	c.JSON(http.StatusCreated, gin.H{
		"message":  "Camera added",
		"cameraId": id,
	})
}

func (s *Server) handleDeleteCamera(c *gin.Context) {
	cameraID := c.Param("id")
	if err := s.commands.DeleteCamera(c.Request.Context(), cameraID); err != nil {
		s.writeError(c, err)
		return
	}

	s.LogInfo("Camera deleted", "camera_id", cameraID)
	c.JSON(http.StatusOK, gin.H{
		"message": "Camera deleted",
		"id":      cameraID,
	})
}

// handleToggleStream enables or disables the camera stream
func (s *Server) handleToggleStream(c *gin.Context) {
	raw := c.Query("enabled")
	if raw == "" {
		s.writeError(c, &aggregate.ValidationError{Field: "enabled", Reason: "required"})
		return
	}
	enabled, err := strconv.ParseBool(raw)
	if err != nil {
		s.writeError(c, &aggregate.ValidationError{Field: "enabled", Reason: "must be true or false"})
		return
	}

	cameraID := c.Param("id")
	if err := s.commands.ToggleStream(c.Request.Context(), cameraID, enabled); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":      cameraID,
		"enabled": enabled,
	})
}

// handlePTZ moves the camera one step in the requested direction
func (s *Server) handlePTZ(c *gin.Context) {
	var req struct {
		Direction string `json:"direction" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}
	direction, err := aggregate.ParseDirection(req.Direction)
	if err != nil {
		s.writeError(c, err)
		return
	}

	rc, err := s.views.PTZ(c.Request.Context(), c.Param("id"), direction)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rc)
}

// handleUpdateTranscoder changes transcoder and OpenGate settings
func (s *Server) handleUpdateTranscoder(c *gin.Context) {
	var req backend.UpdateTranscoderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	id := c.Param("id")
	if req.ID != "" && req.ID != id {
		s.writeError(c, &aggregate.ValidationError{Field: "id", Reason: "does not match path"})
		return
	}
	req.ID = id
	if err := aggregate.ValidateTranscoderUpdate(req); err != nil {
		s.writeError(c, err)
		return
	}

	if err := s.commands.UpdateTranscoder(c.Request.Context(), req); err != nil {
		s.writeError(c, err)
		return
	}

	s.LogInfo("Transcoder updated", "transcoder_id", id, "log_level", req.LogLevel, "hwaccel", req.HardwareAccelerationType)
	c.JSON(http.StatusOK, req)
}

func (s *Server) handleHealthcheck(c *gin.Context) {
	resp, err := s.commands.Healthcheck(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// handleAddPerson registers a known person with a reference image
func (s *Server) handleAddPerson(c *gin.Context) {
	var req backend.AddPersonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}
	if err := aggregate.ValidateAddPerson(req); err != nil {
		s.writeError(c, err)
		return
	}

	id, err := s.commands.AddPerson(c.Request.Context(), req)
	if err != nil {
		s.writeError(c, err)
		return
	}

	s.LogInfo("Person added", "person_id", id, "request", req.String())
	c.JSON(http.StatusCreated, gin.H{
		"message":  "Person added",
		"personId": id,
	})
}

func (s *Server) handleDeletePerson(c *gin.Context) {
	personID := c.Param("id")
	if err := s.commands.DeletePerson(c.Request.Context(), personID); err != nil {
		s.writeError(c, err)
		return
	}

	s.LogInfo("Person deleted", "person_id", personID)
	c.JSON(http.StatusOK, gin.H{
		"message": "Person deleted",
		"id":      personID,
	})
}

// handleLive upgrades to a WebSocket that receives updated info for one camera.
// The OpenGate name and transcoder are looked up when the client does not pass them.
func (s *Server) handleLive(c *gin.Context) {
	if s.hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Live updates not available",
		})
		return
	}

	target := live.Target{
		CameraID:     c.Param("id"),
		CameraName:   c.Query("camera_name"),
		TranscoderID: c.Query("transcoder_id"),
	}
	if target.CameraName == "" || target.TranscoderID == "" {
		cam, err := s.views.Camera(c.Request.Context(), target.CameraID)
		if err != nil {
			s.writeError(c, err)
			return
		}
		if target.CameraName == "" {
			target.CameraName = cam.OpenGateCameraName
		}
		if target.TranscoderID == "" {
			target.TranscoderID = cam.TranscoderID
		}
	}

	s.hub.ServeWS(c.Writer, c.Request, target)
}

// writeError maps err to a status code and writes {"error": message}
func (s *Server) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		s.LogWarn("Request failed", "path", c.FullPath(), "status", status, "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// statusFor translates aggregation and backend errors into HTTP statuses.
// Backend client errors pass through; anything else is a bad gateway.
func statusFor(err error) int {
	switch {
	case errors.Is(err, aggregate.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, aggregate.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	if code := backend.StatusCode(err); code >= 400 && code < 500 {
		return code
	}
	return http.StatusBadGateway
}

// queryIDs reads ids given as ?id=a,b or ?id=a&id=b
func queryIDs(c *gin.Context, key string) []string {
	var ids []string
	for _, v := range c.QueryArray(key) {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &aggregate.ValidationError{Field: key, Reason: "must be a non-negative integer"}
	}
	return n, nil
}

// queryDuration accepts Go durations ("90m") or plain seconds
func queryDuration(c *gin.Context, key string) (time.Duration, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, &aggregate.ValidationError{Field: key, Reason: "must be a duration"}
	}
	return d, nil
}

func queryBool(c *gin.Context, key string) (bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, &aggregate.ValidationError{Field: key, Reason: "must be true or false"}
	}
	return b, nil
}
