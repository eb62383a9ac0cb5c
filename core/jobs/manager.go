// Package jobs queues video requests onto a bounded worker pool and tracks
// their status for the HTTP API.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storyreel/core/pipeline"
	"storyreel/model"
	"storyreel/repository"
	"storyreel/storage"
)

var (
	ErrQueueFull = errors.New("job queue is full")
	ErrClosed    = errors.New("job manager is shut down")
)

// Runner executes one video request.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request, sink pipeline.Sink) (*pipeline.Result, error)
}

// Uploader publishes a finished video. storage.VideoStore implements it.
type Uploader interface {
	Upload(ctx context.Context, localPath, key string) error
}

// Options configure a Manager. A nil Store keeps statuses in memory; the
// other collaborators are optional.
type Options struct {
	Workers   int
	QueueSize int
	Store     StatusStore
	Hub       *Hub
	Uploader  Uploader
	Videos    repository.VideoRepository
	Logger    *zap.Logger
}

// VideoPath is the API path that serves a finished job's video.
func VideoPath(jobID string) string {
	return "/api/jobs/" + jobID + "/video"
}

// Manager owns the job queue and its workers.
type Manager struct {
	runner Runner
	opts   Options
	log    *zap.Logger
	queue  chan pipeline.Request

	mu      sync.Mutex
	closed  bool
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager creates a Manager; call Start to launch workers.
func NewManager(runner Runner, opts Options) *Manager {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		runner:  runner,
		opts:    opts,
		log:     log,
		queue:   make(chan pipeline.Request, opts.QueueSize),
		cancels: make(map[string]context.CancelFunc),
	}
}

// Start launches the workers. They stop when ctx is done or Shutdown is
// called; running jobs see ctx's cancellation.
func (m *Manager) Start(ctx context.Context) {
	for i := 0; i < m.opts.Workers; i++ {
		m.wg.Add(1)
		go m.worker(ctx)
	}
	m.log.Info("job workers started", zap.Int("workers", m.opts.Workers))
}

// Submit queues req and returns its initial status. A missing JobID is
// generated.
func (m *Manager) Submit(ctx context.Context, req pipeline.Request) (*model.JobStatus, error) {
	if req.JobID == "" {
		req.JobID = uuid.NewString()
	}
	status := &model.JobStatus{
		ID:        req.JobID,
		State:     model.JobQueued,
		Message:   "Queued",
		UpdatedAt: time.Now(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if len(m.queue) == cap(m.queue) {
		return nil, ErrQueueFull
	}
	if err := m.opts.Store.Save(ctx, status); err != nil {
		return nil, fmt.Errorf("failed to record job: %w", err)
	}
	m.recordQueued(req)
	m.queue <- req

	m.log.Info("job queued", zap.String("jobId", req.JobID), zap.Int("queued", len(m.queue)))
	return status, nil
}

// Status returns the latest status of jobID.
func (m *Manager) Status(ctx context.Context, jobID string) (*model.JobStatus, error) {
	return m.opts.Store.Get(ctx, jobID)
}

// Recent lists up to n recently submitted jobs.
func (m *Manager) Recent(ctx context.Context, n int) ([]*model.JobStatus, error) {
	return m.opts.Store.Recent(ctx, n)
}

// Cancel stops a running job. It reports false when jobID is not running.
func (m *Manager) Cancel(jobID string) bool {
	m.mu.Lock()
	cancel, ok := m.cancels[jobID]
	m.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Shutdown stops accepting jobs and waits for queued ones to drain, or for
// ctx to end.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.queue)
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) worker(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-m.queue:
			if !ok {
				return
			}
			m.process(ctx, req)
		}
	}
}

func (m *Manager) process(parent context.Context, req pipeline.Request) {
	ctx, cancel := context.WithCancel(parent)
	m.mu.Lock()
	m.cancels[req.JobID] = cancel
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.cancels, req.JobID)
		m.mu.Unlock()
		cancel()
	}()

	log := m.log.With(zap.String("jobId", req.JobID))
	status := &model.JobStatus{ID: req.JobID, State: model.JobProcessing, Message: "Starting"}
	m.update(status)

	// status is owned by the async sink's goroutine until Close returns
	sink := pipeline.NewAsync(pipeline.FuncSink(func(p pipeline.Progress) {
		if p.Terminal() {
			return
		}
		status.Progress = p.Percent
		if p.Message != "" {
			status.Message = p.Message
		}
		m.update(status)
	}), 32)

	res, err := m.runner.Run(ctx, req, sink)
	sink.Close()
	if dropped := sink.Dropped(); dropped > 0 {
		log.Debug("progress updates dropped", zap.Int64("dropped", dropped))
	}

	var objectKey string
	if err == nil && m.opts.Uploader != nil {
		objectKey = storage.ObjectKey(req.JobID, res.OutputPath)
		if uerr := m.opts.Uploader.Upload(parent, res.OutputPath, objectKey); uerr != nil {
			err = model.InStage(model.StagePublish, uerr)
			objectKey = ""
		}
	}

	if err != nil {
		log.Error("job failed", zap.Error(err))
		status.State = model.JobFailed
		status.Message = "Failed"
		status.Error = err.Error()
	} else {
		log.Info("job completed", zap.String("output", res.OutputPath))
		status.State = model.JobCompleted
		status.Progress = pipeline.ProgressComplete
		status.Message = "Video generated"
		status.VideoURL = VideoPath(req.JobID)
	}
	m.update(status)
	m.recordFinished(req, res, objectKey, err)
}

// update stamps, stores and publishes status. Failures are logged only.
func (m *Manager) update(status *model.JobStatus) {
	status.UpdatedAt = time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.opts.Store.Save(ctx, status); err != nil {
		m.log.Warn("failed to save job status", zap.String("jobId", status.ID), zap.Error(err))
	}
	if m.opts.Hub != nil {
		snapshot := *status
		m.opts.Hub.Publish(&snapshot)
	}
}

func (m *Manager) recordQueued(req pipeline.Request) {
	if m.opts.Videos == nil {
		return
	}
	video := &model.Video{
		JobID:    req.JobID,
		Title:    req.Title,
		Voice:    string(req.Voice),
		Category: req.Category,
		Status:   model.JobQueued,
	}
	if err := m.opts.Videos.Create(video); err != nil {
		m.log.Warn("failed to record queued video", zap.String("jobId", req.JobID), zap.Error(err))
	}
}

func (m *Manager) recordFinished(req pipeline.Request, res *pipeline.Result, objectKey string, runErr error) {
	if m.opts.Videos == nil {
		return
	}
	video, err := m.opts.Videos.GetByJobID(req.JobID)
	if err != nil {
		m.log.Warn("failed to load video record", zap.String("jobId", req.JobID), zap.Error(err))
		return
	}
	if video == nil {
		video = &model.Video{JobID: req.JobID, Voice: string(req.Voice), Category: req.Category}
	}
	if runErr != nil {
		video.Status = model.JobFailed
		video.Error = runErr.Error()
	} else {
		video.Status = model.JobCompleted
		video.Title = res.Title
		video.Duration = res.Duration
		video.FilePath = res.OutputPath
		video.ObjectKey = objectKey
	}
	if err := m.opts.Videos.Save(video); err != nil {
		m.log.Warn("failed to record video", zap.String("jobId", req.JobID), zap.Error(err))
	}
}
