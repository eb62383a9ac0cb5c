package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyreel/core/auth"
	"storyreel/core/background"
	"storyreel/core/jobs"
	"storyreel/core/pipeline"
	"storyreel/model"
)

type fakeJobs struct {
	mu        sync.Mutex
	submitted []pipeline.Request
	statuses  map[string]*model.JobStatus
	running   map[string]bool
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{statuses: map[string]*model.JobStatus{}, running: map[string]bool{}}
}

func (f *fakeJobs) Submit(_ context.Context, req pipeline.Request) (*model.JobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, req)
	s := &model.JobStatus{ID: "job-1", State: model.JobQueued}
	f.statuses[s.ID] = s
	return s, nil
}

func (f *fakeJobs) Status(_ context.Context, id string) (*model.JobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.statuses[id]
	if !ok {
		return nil, model.ErrJobNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeJobs) Recent(_ context.Context, n int) ([]*model.JobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.JobStatus
	for _, s := range f.statuses {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeJobs) Cancel(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running[id]
}

type fakeScraper struct{}

func (fakeScraper) Scrape(_ context.Context, url string, count int, sort string) ([]model.Post, error) {
	if strings.Contains(url, "missing") {
		return nil, &model.ResourceMissingError{Kind: "reddit listing", Path: url}
	}
	return []model.Post{{ID: "p1", Title: "Title", Text: sort, Score: count}}, nil
}

type fakeVideos struct {
	byJob map[string]*model.Video
}

func (f *fakeVideos) Create(v *model.Video) error { return nil }
func (f *fakeVideos) Save(v *model.Video) error { return nil }
func (f *fakeVideos) GetByID(id int64) (*model.Video, error) { return nil, nil }
func (f *fakeVideos) GetByJobID(jobID string) (*model.Video, error) {
	return f.byJob[jobID], nil
}
func (f *fakeVideos) List(limit, offset int) ([]*model.Video, int64, error) {
	out := make([]*model.Video, 0, len(f.byJob))
	for _, v := range f.byJob {
		out = append(out, v)
	}
	return out, int64(len(out)), nil
}

type fakePresigner struct{}

func (fakePresigner) PresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://minio.local/storyreel/" + key + "?sig=1", nil
}

type fixture struct {
	jobs    *fakeJobs
	handler *APIHandler
	router  http.Handler
	bgRoot  string
	outDir  string
}

func newFixture(t *testing.T, mutate func(*Options)) *fixture {
	t.Helper()
	bgRoot := t.TempDir()
	outDir := t.TempDir()
	fj := newFakeJobs()
	opts := Options{
		Jobs:      fj,
		Library:   background.NewLibrary(bgRoot, nil),
		Scraper:   fakeScraper{},
		OutputDir: outDir,
	}
	if mutate != nil {
		mutate(&opts)
	}
	h := NewAPIHandler(opts)
	return &fixture{jobs: fj, handler: h, router: NewRouter(h), bgRoot: bgRoot, outDir: outDir}
}

func (f *fixture) do(method, path string, body interface{}, header http.Header) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestCreateVideo(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodPost, "/api/videos", CreateVideoRequest{
		Text: "My title\nThe body.", Voice: "DAVIS", Background: "minecraft",
	}, nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, "/api/jobs/job-1", rec.Header().Get("Location"))

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "job-1", resp["jobId"])

	require.Len(t, f.jobs.submitted, 1)
	req := f.jobs.submitted[0]
	assert.Equal(t, model.VoiceDavis, req.Voice)
	assert.Equal(t, "minecraft", req.Category)
	assert.Equal(t, "My title\nThe body.", req.Text)
}

func TestCreateVideoRejectsBadInput(t *testing.T) {
	f := newFixture(t, nil)
	cases := map[string]interface{}{
		"not json":     "{",
		"neither":      CreateVideoRequest{Background: "minecraft"},
		"both":         CreateVideoRequest{Text: "t", RedditURL: "https://reddit.com/r/x", Background: "minecraft"},
		"traversal":    CreateVideoRequest{Text: "t", Background: "../etc"},
		"no category":  CreateVideoRequest{Text: "t"},
		"unknown sort": CreateVideoRequest{RedditURL: "https://reddit.com/r/x", Sort: "best", Background: "minecraft"},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/api/videos", body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
	assert.Empty(t, f.jobs.submitted)
}

func TestAPIKeyRequired(t *testing.T) {
	hash, err := auth.HashAPIKey("letmein")
	require.NoError(t, err)
	f := newFixture(t, func(o *Options) { o.Keys = auth.NewKeyChecker(hash) })
	body := CreateVideoRequest{Text: "t\nb", Background: "minecraft"}

	rec := f.do(http.MethodPost, "/api/videos", body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodPost, "/api/videos", body, http.Header{"X-Api-Key": {"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodPost, "/api/videos", body, http.Header{"X-Api-Key": {"letmein"}})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	// reads stay open
	rec = f.do(http.MethodGet, "/api/voices", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetAndCancelJob(t *testing.T) {
	f := newFixture(t, nil)
	f.jobs.statuses["a"] = &model.JobStatus{ID: "a", State: model.JobProcessing, Progress: 30}
	f.jobs.statuses["b"] = &model.JobStatus{ID: "b", State: model.JobCompleted, Progress: 100}
	f.jobs.running["a"] = true

	rec := f.do(http.MethodGet, "/api/jobs/a", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status model.JobStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 30, status.Progress)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/jobs/zzz", nil, nil).Code)

	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/api/jobs/a", nil, nil).Code)
	assert.Equal(t, http.StatusConflict, f.do(http.MethodDelete, "/api/jobs/b", nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/api/jobs/zzz", nil, nil).Code)

	rec = f.do(http.MethodGet, "/api/jobs?limit=5", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []model.JobStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 2)
}

func TestBackgroundsCachedUntilInvalidated(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, os.MkdirAll(filepath.Join(f.bgRoot, "minecraft"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(f.bgRoot, "minecraft", "a.mp4"), []byte("x"), 0644))

	var got []background.CategoryInfo
	rec := f.do(http.MethodGet, "/api/backgrounds", nil, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []background.CategoryInfo{{Name: "minecraft", Clips: 1}}, got)

	require.NoError(t, os.WriteFile(filepath.Join(f.bgRoot, "minecraft", "b.mp4"), []byte("x"), 0644))
	rec = f.do(http.MethodGet, "/api/backgrounds", nil, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 1, got[0].Clips)

	f.handler.InvalidateBackgrounds()
	rec = f.do(http.MethodGet, "/api/backgrounds", nil, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 2, got[0].Clips)
}

func TestVoices(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(http.MethodGet, "/api/voices", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var voices []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &voices))
	require.Len(t, voices, 4)
	assert.Equal(t, "female", voices[0]["name"])
	assert.Equal(t, "en-US-AriaNeural", voices[0]["voice"])
	assert.Equal(t, true, voices[0]["default"])
}

func TestScrape(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(http.MethodPost, "/api/scrape", ScrapeRequest{URL: "https://reddit.com/r/tifu", Count: 2}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var posts []model.Post
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &posts))
	require.Len(t, posts, 1)
	assert.Equal(t, "hot", posts[0].Text)
	assert.Equal(t, 2, posts[0].Score)

	rec = f.do(http.MethodPost, "/api/scrape", ScrapeRequest{URL: "https://reddit.com/r/missing"}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodPost, "/api/scrape", ScrapeRequest{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestShareLinkServesLocalVideo(t *testing.T) {
	shares, err := auth.NewShareTokens("secret", time.Minute)
	require.NoError(t, err)
	f := newFixture(t, func(o *Options) { o.Shares = shares })
	f.jobs.statuses["job-9"] = &model.JobStatus{ID: "job-9", State: model.JobCompleted}
	f.jobs.statuses["job-busy"] = &model.JobStatus{ID: "job-busy", State: model.JobProcessing}
	require.NoError(t, os.WriteFile(filepath.Join(f.outDir, "my_story_job-9.mp4"), []byte("video-bytes"), 0644))

	assert.Equal(t, http.StatusConflict, f.do(http.MethodGet, "/api/videos/job-busy/share", nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/videos/nothing/share", nil, nil).Code)

	rec := f.do(http.MethodGet, "/api/videos/job-9/share", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Token string `json:"token"`
		URL   string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "/share/"+resp.Token, resp.URL)

	rec = f.do(http.MethodGet, resp.URL, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video-bytes", rec.Body.String())
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/share/forged", nil, nil).Code)
}

func TestJobVideoRedirectsToPresignedURL(t *testing.T) {
	videos := &fakeVideos{byJob: map[string]*model.Video{
		"job-7": {JobID: "job-7", Status: model.JobCompleted, ObjectKey: "videos/job-7/out.mp4"},
		"job-8": {JobID: "job-8", Status: model.JobFailed},
	}}
	f := newFixture(t, func(o *Options) {
		o.Videos = videos
		o.Presigner = fakePresigner{}
	})

	rec := f.do(http.MethodGet, "/api/jobs/job-7/video", nil, nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://minio.local/storyreel/videos/job-7/out.mp4?sig=1", rec.Header().Get("Location"))

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/jobs/job-8/video", nil, nil).Code)

	rec = f.do(http.MethodGet, "/api/videos", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":2`)
}

func TestListVideosWithoutHistory(t *testing.T) {
	f := newFixture(t, nil)
	assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodGet, "/api/videos", nil, nil).Code)
}

func TestJobProgressWebsocket(t *testing.T) {
	hub := jobs.NewHub()
	go hub.Run()
	defer hub.Stop()

	f := newFixture(t, func(o *Options) { o.Hub = hub })
	f.jobs.statuses["job-ws"] = &model.JobStatus{ID: "job-ws", State: model.JobProcessing, Progress: 15}

	srv := httptest.NewServer(f.router)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/jobs/job-ws/ws"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var msg jobs.WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, jobs.MsgTypeStatus, msg.Type)
	assert.Equal(t, 15, msg.Status.Progress)

	require.Eventually(t, func() bool { return hub.ClientCount("job-ws") == 1 }, time.Second, 5*time.Millisecond)
	hub.Publish(&model.JobStatus{ID: "job-ws", State: model.JobCompleted, Progress: 100})
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, model.JobCompleted, msg.Status.State)

	_, _, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/jobs/unknown/ws", nil)
	assert.Error(t, err)
}
