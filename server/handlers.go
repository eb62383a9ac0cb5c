// Package server exposes the video job service over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"storyreel/core/auth"
	"storyreel/core/background"
	"storyreel/core/jobs"
	"storyreel/core/pipeline"
	"storyreel/core/scraper"
	"storyreel/logger"
	"storyreel/model"
	"storyreel/repository"
)

const maxRequestBody = 1 << 20

// JobService is the part of jobs.Manager the API drives.
type JobService interface {
	Submit(ctx context.Context, req pipeline.Request) (*model.JobStatus, error)
	Status(ctx context.Context, jobID string) (*model.JobStatus, error)
	Recent(ctx context.Context, n int) ([]*model.JobStatus, error)
	Cancel(jobID string) bool
}

// Presigner hands out direct download links for stored videos.
type Presigner interface {
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Options are the collaborators of APIHandler. Jobs and Library are
// required; a nil optional collaborator disables the routes that need it.
type Options struct {
	Jobs      JobService
	Hub       *jobs.Hub
	Library   *background.Library
	Scraper   pipeline.Scraper
	Videos    repository.VideoRepository
	Presigner Presigner
	Shares    *auth.ShareTokens
	Keys      *auth.KeyChecker
	OutputDir string
}

// APIHandler 处理所有API请求
type APIHandler struct {
	opts Options

	bgMu    sync.Mutex
	bgCache []background.CategoryInfo
	bgValid bool
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(opts Options) *APIHandler {
	return &APIHandler{opts: opts}
}

// InvalidateBackgrounds drops the cached category listing. It is called
// from the library watcher.
func (h *APIHandler) InvalidateBackgrounds() {
	h.bgMu.Lock()
	h.bgValid = false
	h.bgCache = nil
	h.bgMu.Unlock()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to write response", logger.ErrorField(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// errorStatus maps the error taxonomy onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, model.ErrInput):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrResourceMissing), errors.Is(err, model.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrExternalTool):
		return http.StatusBadGateway
	case errors.Is(err, jobs.ErrQueueFull), errors.Is(err, jobs.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RequireAPIKey checks the X-API-Key header (or api_key query parameter)
// against the configured bcrypt hash.
func (h *APIHandler) RequireAPIKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if key == "" {
			key = r.URL.Query().Get("api_key")
		}
		if !h.opts.Keys.Allow(key) {
			writeError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	}
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CreateVideoRequest is the body of POST /api/videos.
type CreateVideoRequest struct {
	Text       string `json:"text"`
	RedditURL  string `json:"redditUrl"`
	NumPosts   int    `json:"numPosts"`
	Sort       string `json:"sort"`
	Title      string `json:"title"`
	Voice      string `json:"voice"`
	Background string `json:"background"`
}

func (req *CreateVideoRequest) toPipeline() (pipeline.Request, error) {
	text := strings.TrimSpace(req.Text)
	redditURL := strings.TrimSpace(req.RedditURL)
	if (text == "") == (redditURL == "") {
		return pipeline.Request{}, &model.InputError{Field: "text", Reason: "provide exactly one of text or redditUrl"}
	}
	if req.Sort != "" && !scraper.ValidSort(req.Sort) {
		return pipeline.Request{}, &model.InputError{Field: "sort", Reason: fmt.Sprintf("unknown sort %q", req.Sort)}
	}
	if err := background.ValidateCategory(req.Background); err != nil {
		return pipeline.Request{}, err
	}
	return pipeline.Request{
		Text:      req.Text,
		RedditURL: redditURL,
		NumPosts:  req.NumPosts,
		Sort:      req.Sort,
		Title:     req.Title,
		Voice:     model.ParseVoiceProfile(req.Voice),
		Category:  strings.TrimSpace(req.Background),
	}, nil
}

// CreateVideoHandler queues a new video job.
// URL: POST /api/videos
func (h *APIHandler) CreateVideoHandler(w http.ResponseWriter, r *http.Request) {
	var body CreateVideoRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req, err := body.toPipeline()
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	if req.RedditURL != "" && h.opts.Scraper == nil {
		writeError(w, http.StatusServiceUnavailable, "reddit scraping is not configured")
		return
	}

	status, err := h.opts.Jobs.Submit(r.Context(), req)
	if err != nil {
		logger.Warn("failed to submit job", logger.ErrorField(err))
		writeError(w, errorStatus(err), err.Error())
		return
	}
	w.Header().Set("Location", "/api/jobs/"+status.ID)
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"jobId":  status.ID,
		"status": status,
	})
}

func queryInt(r *http.Request, key string, fallback, max int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 0 {
		return fallback
	}
	if max > 0 && v > max {
		return max
	}
	return v
}

// ListJobsHandler lists recently submitted jobs.
// URL: GET /api/jobs?limit=n
func (h *APIHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.opts.Jobs.Recent(r.Context(), queryInt(r, "limit", 20, 200))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

// GetJobHandler returns one job's status.
// URL: GET /api/jobs/{id}
func (h *APIHandler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	status, err := h.opts.Jobs.Status(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// CancelJobHandler stops a running job.
// URL: DELETE /api/jobs/{id}
func (h *APIHandler) CancelJobHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !h.opts.Jobs.Cancel(id) {
		if _, err := h.opts.Jobs.Status(r.Context(), id); err != nil {
			writeError(w, errorStatus(err), err.Error())
			return
		}
		writeError(w, http.StatusConflict, "job is not running")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListVideosHandler pages through finished and failed videos.
// URL: GET /api/videos?limit=n&offset=m
func (h *APIHandler) ListVideosHandler(w http.ResponseWriter, r *http.Request) {
	if h.opts.Videos == nil {
		writeError(w, http.StatusServiceUnavailable, "video history is not configured")
		return
	}
	videos, total, err := h.opts.Videos.List(queryInt(r, "limit", 20, 100), queryInt(r, "offset", 0, 0))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"videos": videos,
		"total":  total,
	})
}

// ShareVideoHandler issues a time limited public link for a finished job.
// URL: GET /api/videos/{id}/share
func (h *APIHandler) ShareVideoHandler(w http.ResponseWriter, r *http.Request) {
	if h.opts.Shares == nil {
		writeError(w, http.StatusServiceUnavailable, "sharing is not configured")
		return
	}
	id := mux.Vars(r)["id"]
	status, err := h.opts.Jobs.Status(r.Context(), id)
	if err != nil && !errors.Is(err, model.ErrJobNotFound) {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	// an expired status may still have a recorded video
	if status != nil && status.State != model.JobCompleted {
		writeError(w, http.StatusConflict, "video is not ready")
		return
	}
	if status == nil {
		if _, err := h.locateVideo(r.Context(), id); err != nil {
			writeError(w, errorStatus(err), err.Error())
			return
		}
	}

	token, expires, err := h.opts.Shares.Issue(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":     token,
		"url":       "/share/" + token,
		"expiresAt": expires,
	})
}

// SharedVideoHandler serves the video a share token points at.
// URL: GET /share/{token}
func (h *APIHandler) SharedVideoHandler(w http.ResponseWriter, r *http.Request) {
	if h.opts.Shares == nil {
		writeError(w, http.StatusNotFound, "sharing is not configured")
		return
	}
	jobID, err := h.opts.Shares.Parse(mux.Vars(r)["token"])
	if err != nil {
		writeError(w, http.StatusForbidden, "invalid or expired link")
		return
	}
	h.serveVideo(w, r, jobID)
}

// JobVideoHandler serves a finished job's video.
// URL: GET /api/jobs/{id}/video
func (h *APIHandler) JobVideoHandler(w http.ResponseWriter, r *http.Request) {
	h.serveVideo(w, r, mux.Vars(r)["id"])
}

// videoLocation is where a finished video can be read from.
type videoLocation struct {
	ObjectKey string
	FilePath  string
}

// locateVideo finds a job's video from its record, falling back to the
// output directory naming convention.
func (h *APIHandler) locateVideo(ctx context.Context, jobID string) (*videoLocation, error) {
	if h.opts.Videos != nil {
		video, err := h.opts.Videos.GetByJobID(jobID)
		if err != nil {
			return nil, err
		}
		if video != nil && video.Status == model.JobCompleted {
			return &videoLocation{ObjectKey: video.ObjectKey, FilePath: video.FilePath}, nil
		}
	}
	if h.opts.OutputDir != "" && !strings.ContainsAny(jobID, `/\*?[`) {
		matches, err := filepath.Glob(filepath.Join(h.opts.OutputDir, "*_"+jobID+".mp4"))
		if err == nil && len(matches) > 0 {
			return &videoLocation{FilePath: matches[0]}, nil
		}
	}
	return nil, &model.ResourceMissingError{Kind: "video", Path: jobID}
}

func (h *APIHandler) serveVideo(w http.ResponseWriter, r *http.Request, jobID string) {
	loc, err := h.locateVideo(r.Context(), jobID)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	if loc.ObjectKey != "" && h.opts.Presigner != nil {
		u, err := h.opts.Presigner.PresignedURL(r.Context(), loc.ObjectKey, 15*time.Minute)
		if err == nil {
			http.Redirect(w, r, u, http.StatusFound)
			return
		}
		logger.Warn("failed to presign video, serving local copy",
			logger.String("jobId", jobID), logger.ErrorField(err))
	}
	if loc.FilePath == "" {
		writeError(w, http.StatusNotFound, "video file not available")
		return
	}
	if _, err := os.Stat(loc.FilePath); err != nil {
		writeError(w, http.StatusNotFound, "video file not available")
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", filepath.Base(loc.FilePath)))
	http.ServeFile(w, r, loc.FilePath)
}

// BackgroundsHandler lists background categories. The listing is cached
// until the library changes.
// URL: GET /api/backgrounds
func (h *APIHandler) BackgroundsHandler(w http.ResponseWriter, r *http.Request) {
	h.bgMu.Lock()
	defer h.bgMu.Unlock()
	if !h.bgValid {
		categories, err := h.opts.Library.Categories()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if categories == nil {
			categories = []background.CategoryInfo{}
		}
		h.bgCache, h.bgValid = categories, true
	}
	writeJSON(w, http.StatusOK, h.bgCache)
}

type voiceInfo struct {
	Name string `json:"name"`
	model.VoiceConfig
	Default bool `json:"default"`
}

// VoicesHandler lists the narration voices.
// URL: GET /api/voices
func (h *APIHandler) VoicesHandler(w http.ResponseWriter, r *http.Request) {
	profiles := model.VoiceProfiles()
	out := make([]voiceInfo, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, voiceInfo{Name: string(p), VoiceConfig: p.Config(), Default: p == model.DefaultVoice})
	}
	writeJSON(w, http.StatusOK, out)
}

// ScrapeRequest is the body of POST /api/scrape.
type ScrapeRequest struct {
	URL   string `json:"url"`
	Count int    `json:"count"`
	Sort  string `json:"sort"`
}

// ScrapeHandler previews the posts a reddit URL would produce.
// URL: POST /api/scrape
func (h *APIHandler) ScrapeHandler(w http.ResponseWriter, r *http.Request) {
	if h.opts.Scraper == nil {
		writeError(w, http.StatusServiceUnavailable, "reddit scraping is not configured")
		return
	}
	var body ScrapeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(body.URL) == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if body.Count <= 0 {
		body.Count = 1
	}
	if body.Sort == "" {
		body.Sort = "hot"
	}
	posts, err := h.opts.Scraper.Scrape(r.Context(), body.URL, body.Count, body.Sort)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, posts)
}
