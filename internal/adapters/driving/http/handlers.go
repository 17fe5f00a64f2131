package http

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string                `json:"version" example:"1.0.0"`
	Runtime *domain.RuntimeStatus `json:"runtime,omitempty"`
}

// UploadResponse is returned for an accepted device upload
// @Description Device upload result
type UploadResponse struct {
	Success bool `json:"success" example:"true"`
	domain.UploadResult
}

// TaskResponse is returned when an admin route enqueues work
// @Description Enqueued task reference
type TaskResponse struct {
	TaskID string          `json:"task_id" example:"0b6c6f7e-3d1a-4a55-9b4c-0f0e5d1c2a11"`
	Type   domain.TaskType `json:"type" example:"sync_provider"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings PostgreSQL and, when configured, Redis
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      503  {object}  ErrorResponse  "A dependency is unreachable"
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			s.logger.Warn("readiness: database ping failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	if s.redis != nil {
		if err := s.redis.Ping(r.Context()); err != nil {
			s.logger.Warn("readiness: redis ping failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "redis unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version and the selected backends
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	resp := VersionResponse{Version: s.version}
	if s.runtime != nil {
		status := s.runtime.Status()
		resp.Runtime = &status
	}
	writeJSON(w, http.StatusOK, resp)
}

// Device ingestion

// handleHealthKitUpload godoc
// @Summary      Upload HealthKit data
// @Description  Accepts a HealthKit export as a raw JSON body or a multipart "data" file
// @Tags         Ingestion
// @Accept       json
// @Accept       mpfd
// @Produce      json
// @Param        key        query     string  true  "Account key"
// @Param        user_uuid  query     string  true  "End-user identifier"
// @Success      200        {object}  UploadResponse
// @Failure      400        {object}  ErrorResponse  "Invalid payload or no connection for the user"
// @Failure      401        {object}  ErrorResponse  "Unknown account key"
// @Failure      500        {object}  ErrorResponse  "Internal server error"
// @Router       /v1/healthkit/upload [post]
func (s *Server) handleHealthKitUpload(w http.ResponseWriter, r *http.Request) {
	body, err := s.readUpload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := r.URL.Query()
	result, err := s.ingestion.UploadDeviceData(r.Context(), q.Get("key"), q.Get("user_uuid"), body)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusBadRequest, "no connection exists for this user")
		case errors.Is(err, domain.ErrUnauthorized):
			writeError(w, http.StatusUnauthorized, "invalid account key")
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "invalid upload payload")
		default:
			s.logger.Error("device upload failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to process upload")
		}
		return
	}

	writeJSON(w, http.StatusOK, UploadResponse{Success: true, UploadResult: *result})
}

// readUpload returns the multipart "data" file when present, the raw body otherwise
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, errors.New("failed to read request body")
		}
		return body, nil
	}

	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		return nil, errors.New("invalid multipart body")
	}
	file, _, err := r.FormFile("data")
	if err != nil {
		return nil, errors.New("missing data file")
	}
	defer file.Close()

	body, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.New("failed to read data file")
	}
	return body, nil
}

// Strava push

// handleStravaVerify godoc
// @Summary      Strava subscription handshake
// @Tags         Webhooks
// @Produce      json
// @Param        hub.mode          query     string  true  "Always subscribe"
// @Param        hub.verify_token  query     string  true  "Configured verify token"
// @Param        hub.challenge     query     string  true  "Challenge to echo"
// @Success      200               {object}  map[string]string
// @Failure      404               "Verify token mismatch"
// @Router       /v1/strava/webhook [get]
func (s *Server) handleStravaVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	challenge, err := s.ingestion.VerifyStravaSubscription(q.Get("hub.mode"), q.Get("hub.verify_token"), q.Get("hub.challenge"))
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"hub.challenge": challenge})
}

// handleStravaEvent godoc
// @Summary      Strava push event
// @Description  Deduplicates the event and enqueues a sync for activity changes
// @Tags         Webhooks
// @Accept       json
// @Success      200  "Event accepted"
// @Failure      400  {object}  ErrorResponse  "Malformed event"
// @Failure      500  {object}  ErrorResponse  "Internal server error"
// @Router       /v1/strava/webhook [post]
func (s *Server) handleStravaEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxUpload))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	if err := s.ingestion.HandleStravaEvent(r.Context(), body); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, "invalid event")
			return
		}
		s.logger.Error("strava event failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to process event")
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Fitbit push

// handleFitbitVerify godoc
// @Summary      Fitbit subscriber verification
// @Tags         Webhooks
// @Param        verify  query  string  true  "Verification code"
// @Success      204     "Code matches"
// @Failure      404     "Code mismatch"
// @Router       /v1/fitbit/webhook [get]
func (s *Server) handleFitbitVerify(w http.ResponseWriter, r *http.Request) {
	if s.ingestion.VerifyFitbitSubscriber(r.URL.Query().Get("verify")) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

// handleFitbitNotification godoc
// @Summary      Fitbit notification batch
// @Description  Verifies X-Fitbit-Signature and enqueues a sync per notified subscription
// @Tags         Webhooks
// @Accept       json
// @Param        X-Fitbit-Signature  header  string  true  "base64 HMAC-SHA1 of the body"
// @Success      204                 "Batch accepted"
// @Failure      400                 {object}  ErrorResponse  "Malformed batch"
// @Failure      404                 "Signature mismatch"
// @Router       /v1/fitbit/webhook [post]
func (s *Server) handleFitbitNotification(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxUpload))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	err = s.ingestion.HandleFitbitNotification(r.Context(), body, r.Header.Get("X-Fitbit-Signature"))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, domain.ErrInvalidSignature):
		// Fitbit flags the subscriber as misconfigured on 404
		w.WriteHeader(http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid notification batch")
	default:
		s.logger.Error("fitbit notification failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to process notifications")
	}
}

// Admin triggers

// handleTriggerProviderSync godoc
// @Summary      Sweep a provider
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Param        provider  path      string  true  "Provider type"
// @Success      202       {object}  TaskResponse
// @Failure      400       {object}  ErrorResponse  "Provider is not pulled"
// @Router       /v1/admin/sync/{provider} [post]
func (s *Server) handleTriggerProviderSync(w http.ResponseWriter, r *http.Request) {
	provider := domain.ProviderType(r.PathValue("provider"))
	if !provider.IsPulled() {
		writeError(w, http.StatusBadRequest, "provider is not synced by polling")
		return
	}
	s.enqueue(w, r, domain.NewSyncProviderTask(provider))
}

// handleTriggerLinkSync godoc
// @Summary      Sync one link
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Link ID"
// @Success      202  {object}  TaskResponse
// @Router       /v1/admin/links/{id}/sync [post]
func (s *Server) handleTriggerLinkSync(w http.ResponseWriter, r *http.Request) {
	s.enqueue(w, r, domain.NewSyncLinkTask(r.PathValue("id")))
}

// handleTriggerReplay godoc
// @Summary      Replay unprocessed chunks
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Success      202  {object}  TaskResponse
// @Router       /v1/admin/replay [post]
func (s *Server) handleTriggerReplay(w http.ResponseWriter, r *http.Request) {
	s.enqueue(w, r, domain.NewReplayTask())
}

// handleTriggerPurge godoc
// @Summary      Purge the idempotency log
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Success      202  {object}  TaskResponse
// @Router       /v1/admin/purge [post]
func (s *Server) handleTriggerPurge(w http.ResponseWriter, r *http.Request) {
	s.enqueue(w, r, domain.NewPurgeTask())
}

func (s *Server) enqueue(w http.ResponseWriter, r *http.Request, task *domain.Task) {
	if err := s.taskQueue.Enqueue(r.Context(), task); err != nil {
		s.logger.Error("failed to enqueue task", "type", task.Type, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to enqueue task")
		return
	}
	writeJSON(w, http.StatusAccepted, TaskResponse{TaskID: task.ID, Type: task.Type})
}

// handleQueueStats godoc
// @Summary      Task queue statistics
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  driven.QueueStats
// @Router       /v1/admin/queue [get]
func (s *Server) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.taskQueue.Stats(r.Context())
	if err != nil {
		s.logger.Error("failed to read queue stats", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read queue stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleGetTask godoc
// @Summary      Task status
// @Description  Looks up a task returned by one of the trigger endpoints
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  domain.Task
// @Failure      404  {object}  ErrorResponse  "Task not found"
// @Router       /v1/admin/tasks/{id} [get]
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.taskQueue.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err, "failed to get task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Admin link management

// handleConnect godoc
// @Summary      Connect a provider link
// @Description  Stores the tokens of a completed OAuth flow and runs the provider's connect hooks
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      domain.ConnectRequest  true  "Connection details"
// @Success      201      {object}  domain.LinkStatus
// @Failure      400      {object}  ErrorResponse  "Invalid request"
// @Failure      404      {object}  ErrorResponse  "Unknown account"
// @Router       /v1/admin/links [post]
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req domain.ConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	link, err := s.connections.Connect(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err, "failed to connect link")
		return
	}
	writeJSON(w, http.StatusCreated, link.Status())
}

// handleLinkStatus godoc
// @Summary      Link status
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Link ID"
// @Success      200  {object}  domain.LinkStatus
// @Failure      404  {object}  ErrorResponse  "Link not found"
// @Router       /v1/admin/links/{id} [get]
func (s *Server) handleLinkStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.connections.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err, "failed to get link status")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleDisconnect godoc
// @Summary      Disconnect a provider link
// @Tags         Admin
// @Security     BearerAuth
// @Param        id   path  string  true  "Link ID"
// @Success      204  "Link logged out"
// @Failure      404  {object}  ErrorResponse  "Link not found"
// @Router       /v1/admin/links/{id} [delete]
func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.connections.Disconnect(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, err, "failed to disconnect link")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeServiceError maps domain errors to status codes
func (s *Server) writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), domain.ErrInvalidInput.Error()+": "))
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrInvalidSignature):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	default:
		s.logger.Error(fallback, "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
