// Package backendtest provides an in-memory camera management backend for tests.
package backendtest

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vzahanych/view-guard-meta/portal/internal/backend"
	"github.com/vzahanych/view-guard-meta/portal/internal/logger"
)

// Server is a fake backend. Seed it with the Add*/Set* helpers, point a
// backend.Client at URL and inspect traffic with Hits.
type Server struct {
	*httptest.Server

	// Credentials required on the private API. Empty disables the check.
	Username string
	Password string

	mu           sync.Mutex
	cameras      []backend.Camera
	groups       []backend.CameraGroup
	transcoders  []backend.Transcoder
	integrations map[string]backend.OpenGateIntegration
	settings     []backend.OpenGateCameraSettings
	streams      map[string]backend.StreamInfo
	statuses     []backend.TranscoderStatus
	stats        map[string]backend.Stats
	devices      map[string]backend.DeviceInfo
	events       []backend.ObjectTrackingEvent
	snapshots    []backend.Snapshot
	snapshotURLs map[string]string
	people       []backend.Person
	personImages map[string]backend.PersonImage
	histories    []backend.PersonHistory

	remoteControls []backend.RemoteControl
	updates        []backend.UpdateTranscoderRequest
	healthchecks   []string

	hits     map[string]int
	queries  map[string]string
	headers  map[string]http.Header
	failures map[string]int
	delays   map[string]time.Duration
}

// New starts a fake backend that is closed when the test ends
func New(t testing.TB) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{
		integrations: make(map[string]backend.OpenGateIntegration),
		streams:      make(map[string]backend.StreamInfo),
		stats:        make(map[string]backend.Stats),
		devices:      make(map[string]backend.DeviceInfo),
		snapshotURLs: make(map[string]string),
		personImages: make(map[string]backend.PersonImage),
		hits:         make(map[string]int),
		queries:      make(map[string]string),
		headers:      make(map[string]http.Header),
		failures:     make(map[string]int),
		delays:       make(map[string]time.Duration),
	}
	s.Server = httptest.NewServer(s.router())
	t.Cleanup(s.Close)
	return s
}

// Client returns a backend client pointed at the server
func (s *Server) Client() *backend.Client {
	return backend.NewClient(backend.Config{
		BaseURL:         s.URL,
		PrivateUsername: s.Username,
		PrivatePassword: s.Password,
		Timeout:         5 * time.Second,
	}, logger.NewNopLogger())
}

func key(method, route string) string {
	return method + " " + route
}

// Hits returns how often a route pattern was requested, e.g. Hits("GET", "/api/cameras/:id/streams")
func (s *Server) Hits(method, route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[key(method, route)]
}

// TotalHits returns the number of requests served
func (s *Server) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.hits {
		total += n
	}
	return total
}

// ResetHits clears request counters
func (s *Server) ResetHits() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits = make(map[string]int)
}

// LastQuery returns the raw query of the latest request to a route
func (s *Server) LastQuery(method, route string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries[key(method, route)]
}

// LastHeader returns the headers of the latest request to a route
func (s *Server) LastHeader(method, route string) http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.headers[key(method, route)]
}

// Fail makes a route answer with status until cleared with Fail(method, route, 0)
func (s *Server) Fail(method, route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, key(method, route))
		return
	}
	s.failures[key(method, route)] = status
}

// Delay holds responses on a route for d
func (s *Server) Delay(method, route string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[key(method, route)] = d
}

func (s *Server) AddCamera(c backend.Camera) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cameras = append(s.cameras, c)
}

func (s *Server) AddGroup(g backend.CameraGroup) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups = append(s.groups, g)
}

func (s *Server) AddTranscoder(t backend.Transcoder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcoders = append(s.transcoders, t)
}

func (s *Server) AddIntegration(i backend.OpenGateIntegration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.integrations[i.OpenGateID] = i
}

func (s *Server) AddSettings(st backend.OpenGateCameraSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = append(s.settings, st)
}

func (s *Server) SetStream(cameraID string, info backend.StreamInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams[cameraID] = info
}

func (s *Server) AddStatus(st backend.TranscoderStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, st)
}

func (s *Server) SetStats(transcoderID, cameraName string, st backend.Stats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats[transcoderID+"/"+cameraName] = st
}

func (s *Server) SetDeviceInfo(info backend.DeviceInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[info.CameraID] = info
}

func (s *Server) AddEvent(e backend.ObjectTrackingEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

// AddSnapshot stores a snapshot and, when url is not empty, its presigned URL
func (s *Server) AddSnapshot(snap backend.Snapshot, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snap)
	if url != "" {
		s.snapshotURLs[snap.SnapshotID] = url
	}
}

// AddPerson stores a person and, when imageURL is not empty, a presigned image
func (s *Server) AddPerson(p backend.Person, imageURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.people = append(s.people, p)
	if imageURL != "" {
		s.personImages[p.PersonID] = backend.PersonImage{PresignedURL: imageURL, Expires: 15 * time.Minute}
	}
}

func (s *Server) AddHistory(h backend.PersonHistory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.histories = append(s.histories, h)
}

// RemoteControls returns the PTZ commands received so far
func (s *Server) RemoteControls() []backend.RemoteControl {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]backend.RemoteControl(nil), s.remoteControls...)
}

// TranscoderUpdates returns the update requests received so far
func (s *Server) TranscoderUpdates() []backend.UpdateTranscoderRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]backend.UpdateTranscoderRequest(nil), s.updates...)
}

// Healthchecks returns the transcoder ids that were health checked
func (s *Server) Healthchecks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.healthchecks...)
}

// Camera returns a stored camera by id
func (s *Server) Camera(id string) (backend.Camera, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.cameras {
		if c.CameraID == id {
			return c, true
		}
	}
	return backend.Camera{}, false
}

func (s *Server) router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.track())

	api := router.Group("/api")
	{
		api.GET("/cameras", s.getCameras)
		api.POST("/cameras", s.addCamera)
		api.DELETE("/cameras", s.deleteCamera)
		api.GET("/cameras/:id/streams", s.getStream)
		api.PUT("/cameras/:id/streams", s.toggleStream)
		api.GET("/cameras/info/:id", s.getDeviceInfo)
		api.GET("/groups", s.getGroups)
		api.GET("/devices", s.getTranscoders)
		api.PUT("/devices", s.updateTranscoder)
		api.GET("/devices/status", s.getStatus)
		api.GET("/devices/:id/healthcheck", s.healthcheck)
		api.GET("/stats", s.getStats)
		api.GET("/opengate/:id", s.getIntegration)
		api.GET("/people", s.getPeople)
		api.POST("/people", s.addPerson)
		api.DELETE("/people", s.deletePerson)
		api.GET("/people/presigned", s.getPersonImage)
		api.GET("/people/history", s.getHistory)
		api.GET("/events/object_tracking", s.getEvents)
		api.GET("/snapshots", s.getSnapshots)
		api.POST("/rc", s.remoteControl)
	}

	private := router.Group("/private")
	private.Use(s.basicAuth())
	private.GET("/opengate/cameras", s.getSettings)

	return router
}

// track counts hits per route and applies injected failures and delays
func (s *Server) track() gin.HandlerFunc {
	return func(c *gin.Context) {
		k := key(c.Request.Method, c.FullPath())

		s.mu.Lock()
		s.hits[k]++
		s.queries[k] = c.Request.URL.RawQuery
		s.headers[k] = c.Request.Header.Clone()
		status := s.failures[k]
		delay := s.delays[k]
		s.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-c.Request.Context().Done():
				c.Abort()
				return
			}
		}
		if status != 0 {
			c.AbortWithStatusJSON(status, gin.H{"message": http.StatusText(status)})
			return
		}
		c.Next()
	}
}

func (s *Server) basicAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.Username == "" {
			c.Next()
			return
		}
		user, pass, ok := c.Request.BasicAuth()
		if !ok || user != s.Username || pass != s.Password {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
			return
		}
		c.Next()
	}
}

// idSet parses a comma separated query value; nil means no filter
func idSet(c *gin.Context, name string) map[string]bool {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	set := make(map[string]bool)
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			set[id] = true
		}
	}
	return set
}

func match(set map[string]bool, id string) bool {
	return set == nil || set[id]
}

func notFound(c *gin.Context, what string) {
	c.JSON(http.StatusNotFound, gin.H{"message": what + " not found"})
}

func (s *Server) getCameras(c *gin.Context) {
	ids := idSet(c, "id")
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]backend.Camera, 0)
	for _, cam := range s.cameras {
		if match(ids, cam.CameraID) {
			out = append(out, cam)
		}
	}
	c.JSON(http.StatusOK, gin.H{"cameras": out})
}

func (s *Server) addCamera(c *gin.Context) {
	var req backend.AddCameraRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if req.Name == "" || req.IP == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "name and ip are required"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cam := backend.Camera{
		CameraID:     uuid.NewString(),
		Name:         req.Name,
		IP:           req.IP,
		Port:         req.Port,
		Username:     req.Username,
		Password:     req.Password,
		TranscoderID: req.TranscoderID,
	}
	s.cameras = append(s.cameras, cam)
	c.JSON(http.StatusCreated, backend.AddCameraResponse{CameraID: cam.CameraID})
}

func (s *Server) deleteCamera(c *gin.Context) {
	id := c.Query("id")
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, cam := range s.cameras {
		if cam.CameraID == id {
			s.cameras = append(s.cameras[:i], s.cameras[i+1:]...)
			delete(s.streams, id)
			c.Status(http.StatusOK)
			return
		}
	}
	notFound(c, "camera")
}

func (s *Server) getStream(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.streams[c.Param("id")]
	if !ok {
		notFound(c, "stream")
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) toggleStream(c *gin.Context) {
	id := c.Param("id")
	enabled, err := strconv.ParseBool(c.Query("enabled"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "enabled must be a boolean"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.cameras {
		if s.cameras[i].CameraID == id {
			s.cameras[i].Enabled = enabled
			info := s.streams[id]
			info.Enabled = enabled
			s.streams[id] = info
			c.Status(http.StatusOK)
			return
		}
	}
	notFound(c, "camera")
}

func (s *Server) getDeviceInfo(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.devices[c.Param("id")]
	if !ok {
		notFound(c, "device")
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) getGroups(c *gin.Context) {
	ids := idSet(c, "ids")
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]backend.CameraGroup, 0)
	for _, g := range s.groups {
		if match(ids, g.GroupID) {
			out = append(out, g)
		}
	}
	c.JSON(http.StatusOK, gin.H{"cameraGroups": out})
}

func (s *Server) getTranscoders(c *gin.Context) {
	ids := idSet(c, "id")
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]backend.Transcoder, 0)
	for _, t := range s.transcoders {
		if match(ids, t.DeviceID) {
			out = append(out, t)
		}
	}
	c.JSON(http.StatusOK, gin.H{"transcoders": out})
}

func (s *Server) updateTranscoder(c *gin.Context) {
	var req backend.UpdateTranscoderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.transcoders {
		if s.transcoders[i].DeviceID == req.ID {
			if req.Name != "" {
				s.transcoders[i].Name = req.Name
			}
			s.updates = append(s.updates, req)
			c.Status(http.StatusOK)
			return
		}
	}
	notFound(c, "transcoder")
}

func (s *Server) getStatus(c *gin.Context) {
	transcoders := idSet(c, "transcoder_id")
	cameras := idSet(c, "camera_id")
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]backend.TranscoderStatus, 0)
	for _, st := range s.statuses {
		if match(transcoders, st.TranscoderID) && match(cameras, st.CameraID) {
			out = append(out, st)
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": out})
}

func (s *Server) healthcheck(c *gin.Context) {
	id := c.Param("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.transcoders {
		if t.DeviceID == id {
			s.healthchecks = append(s.healthchecks, id)
			c.JSON(http.StatusOK, backend.HealthcheckResponse{Status: "ok"})
			return
		}
	}
	notFound(c, "transcoder")
}

func (s *Server) getStats(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stats[c.Query("transcoder_id")+"/"+c.Query("camera_name")]
	if !ok {
		notFound(c, "stats")
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) getIntegration(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	integration, ok := s.integrations[c.Param("id")]
	if !ok {
		notFound(c, "opengate integration")
		return
	}
	c.JSON(http.StatusOK, gin.H{"openGateIntegration": integration})
}

func (s *Server) getSettings(c *gin.Context) {
	ids := idSet(c, "camera_id")
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]backend.OpenGateCameraSettings, 0)
	for _, st := range s.settings {
		if match(ids, st.CameraID) {
			out = append(out, st)
		}
	}
	c.JSON(http.StatusOK, gin.H{"openGateCameraSettings": out})
}

func (s *Server) getPeople(c *gin.Context) {
	ids := idSet(c, "ids")
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]backend.Person, 0)
	for _, p := range s.people {
		if match(ids, p.PersonID) {
			out = append(out, p)
		}
	}
	c.JSON(http.StatusOK, gin.H{"people": out})
}

func (s *Server) addPerson(c *gin.Context) {
	var req backend.AddPersonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if req.Name == "" || req.Base64Image == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "name and base64Image are required"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p := backend.Person{
		PersonID:  uuid.NewString(),
		Name:      req.Name,
		Age:       req.Age,
		ImagePath: "people/" + req.Name,
	}
	s.people = append(s.people, p)
	c.JSON(http.StatusCreated, backend.AddPersonResponse{PersonID: p.PersonID})
}

func (s *Server) deletePerson(c *gin.Context) {
	id := c.Query("id")
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, p := range s.people {
		if p.PersonID == id {
			s.people = append(s.people[:i], s.people[i+1:]...)
			delete(s.personImages, id)
			c.Status(http.StatusOK)
			return
		}
	}
	notFound(c, "person")
}

func (s *Server) getPersonImage(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	image, ok := s.personImages[c.Query("id")]
	if !ok {
		notFound(c, "person image")
		return
	}
	c.JSON(http.StatusOK, image)
}

func (s *Server) getHistory(c *gin.Context) {
	ids := idSet(c, "person_id")
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]backend.PersonHistory, 0)
	for _, h := range s.histories {
		if match(ids, h.PersonID) {
			out = append(out, h)
		}
	}
	c.JSON(http.StatusOK, gin.H{"histories": out})
}

// getEvents filters by ids and camera, keeps events started within the window,
// returns newest first and applies latest/limit last.
func (s *Server) getEvents(c *gin.Context) {
	ids := idSet(c, "ids")
	cameraID := c.Query("camera_id")

	var within time.Duration
	if raw := c.Query("within"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "invalid within"})
			return
		}
		within = d
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "invalid limit"})
			return
		}
		limit = n
	}
	latest := c.Query("latest") == "true"

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]backend.ObjectTrackingEvent, 0)
	for _, e := range s.events {
		if !match(ids, e.EventID) {
			continue
		}
		if cameraID != "" && e.CameraID != cameraID {
			continue
		}
		if within > 0 && time.Since(e.StartTime) > within {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	if latest && len(out) > 1 {
		out = out[:1]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	c.JSON(http.StatusOK, gin.H{"objectTrackingEvents": out})
}

func (s *Server) getSnapshots(c *gin.Context) {
	ids := idSet(c, "snapshot_id")
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := backend.SnapshotsResponse{
		Snapshots:    make([]backend.Snapshot, 0),
		PresignedURL: make(map[string]string),
	}
	for _, snap := range s.snapshots {
		if !match(ids, snap.SnapshotID) {
			continue
		}
		resp.Snapshots = append(resp.Snapshots, snap)
		if url, ok := s.snapshotURLs[snap.SnapshotID]; ok {
			resp.PresignedURL[snap.SnapshotID] = url
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) remoteControl(c *gin.Context) {
	var rc backend.RemoteControl
	if err := c.ShouldBindJSON(&rc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cam := range s.cameras {
		if cam.CameraID == rc.CameraID {
			s.remoteControls = append(s.remoteControls, rc)
			c.Status(http.StatusOK)
			return
		}
	}
	notFound(c, "camera")
}
