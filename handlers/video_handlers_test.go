package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/Yashaswini-V21/HuddleUp/internal/model"
	"github.com/Yashaswini-V21/HuddleUp/internal/queue"
)

type fakeVideoStore struct {
	videos map[string]*model.Video
}

func newFakeVideoStore() *fakeVideoStore {
	return &fakeVideoStore{videos: map[string]*model.Video{}}
}

func (f *fakeVideoStore) Create(ctx context.Context, v *model.Video) error {
	copied := *v
	f.videos[v.ID] = &copied
	return nil
}

func (f *fakeVideoStore) Get(ctx context.Context, id string) (*model.Video, error) {
	v, ok := f.videos[id]
	if !ok {
		// Wrapped so handlers matching via errors.Is are exercised.
		return nil, fmt.Errorf("video %s: %w", id, model.ErrNotFound)
	}
	copied := *v
	return &copied, nil
}

func (f *fakeVideoStore) List(ctx context.Context, postedBy string) ([]model.Video, error) {
	var out []model.Video
	for _, v := range f.videos {
		if postedBy == "" || v.PostedBy == postedBy {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (f *fakeVideoStore) Delete(ctx context.Context, id string) error {
	if _, ok := f.videos[id]; !ok {
		return model.ErrNotFound
	}
	delete(f.videos, id)
	return nil
}

func (f *fakeVideoStore) SetJob(ctx context.Context, id, jobID string) error {
	v, ok := f.videos[id]
	if !ok {
		return model.ErrNotFound
	}
	v.JobID = jobID
	v.ProcessingStatus = model.ProcessingActive
	return nil
}

type fakeJobQueue struct {
	enqueued []queue.Payload
	states   map[string]*queue.JobState
}

func newFakeJobQueue() *fakeJobQueue {
	return &fakeJobQueue{states: map[string]*queue.JobState{}}
}

func (f *fakeJobQueue) Enqueue(ctx context.Context, videoID, inputPath, submitterID string) (string, error) {
	f.enqueued = append(f.enqueued, queue.Payload{VideoID: videoID, InputPath: inputPath, SubmitterID: submitterID})
	return fmt.Sprintf("job-%d", len(f.enqueued)), nil
}

func (f *fakeJobQueue) State(ctx context.Context, jobID string) (*queue.JobState, error) {
	state, ok := f.states[jobID]
	if !ok {
		return nil, queue.ErrJobNotFound
	}
	return state, nil
}

type fakeAssetCleaner struct{}

func (f *fakeAssetCleaner) Delete(ctx context.Context, remoteID string) error { return nil }
func (f *fakeAssetCleaner) KeyFromURL(assetURL string) string                 { return "" }

func newTestApp(t *testing.T) (*fiber.App, *fakeVideoStore, *fakeJobQueue) {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	videos := newFakeVideoStore()
	jobQueue := newFakeJobQueue()
	h := NewApplicationHandler(videos, jobQueue, &fakeAssetCleaner{}, log, t.TempDir(), 10<<20)

	app := fiber.New()
	apiV1 := app.Group("/api/v1")
	apiV1.Post("/videos/upload", h.UploadVideo)
	apiV1.Get("/videos", h.ListVideos)
	apiV1.Get("/videos/:id", h.GetVideo)
	apiV1.Get("/videos/:id/status", h.GetVideoStatus)
	apiV1.Delete("/videos/:id", h.DeleteVideo)
	apiV1.Get("/jobs/:id", h.GetJobStatus)
	return app, videos, jobQueue
}

func uploadRequest(t *testing.T, userID, filename string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	_ = mw.WriteField("title", "Match highlights")
	_ = mw.WriteField("category", "sports")
	if filename != "" {
		fw, err := mw.CreateFormFile("video", filename)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write([]byte("fake video bytes"))
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/videos/upload", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	return req
}

func TestUploadVideoSuccess(t *testing.T) {
	app, videos, jobQueue := newTestApp(t)

	resp, err := app.Test(uploadRequest(t, "user-1", "clip.mp4"), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	if len(jobQueue.enqueued) != 1 {
		t.Fatalf("expected 1 enqueued job, got %d", len(jobQueue.enqueued))
	}
	payload := jobQueue.enqueued[0]
	if payload.SubmitterID != "user-1" {
		t.Errorf("submitter = %q, want user-1", payload.SubmitterID)
	}

	stored, err := videos.Get(context.Background(), payload.VideoID)
	if err != nil {
		t.Fatalf("video record not created: %v", err)
	}
	if stored.JobID == "" {
		t.Error("video record not linked to its job")
	}
	if stored.ProcessingStatus != model.ProcessingActive {
		t.Errorf("status = %q, want processing", stored.ProcessingStatus)
	}
}

func TestUploadVideoRejections(t *testing.T) {
	tests := []struct {
		name       string
		userID     string
		filename   string
		wantStatus int
	}{
		{name: "missing user header", userID: "", filename: "clip.mp4", wantStatus: fiber.StatusUnauthorized},
		{name: "missing file", userID: "user-1", filename: "", wantStatus: fiber.StatusBadRequest},
		{name: "unsupported extension", userID: "user-1", filename: "notes.txt", wantStatus: fiber.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, _, jobQueue := newTestApp(t)
			resp, err := app.Test(uploadRequest(t, tt.userID, tt.filename), -1)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if len(jobQueue.enqueued) != 0 {
				t.Error("rejected upload must not enqueue a job")
			}
		})
	}
}

func TestGetVideoStatus(t *testing.T) {
	app, videos, _ := newTestApp(t)
	_ = videos.Create(context.Background(), &model.Video{
		ID:                 "vid-1",
		ProcessingStatus:   model.ProcessingActive,
		ProcessingProgress: 50,
		JobID:              "job-1",
		PostedBy:           "user-1",
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/videos/vid-1/status", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Data struct {
			Status   string `json:"status"`
			Progress int    `json:"progress"`
			JobID    string `json:"jobId"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Data.Status != "processing" || body.Data.Progress != 50 || body.Data.JobID != "job-1" {
		t.Errorf("unexpected status payload: %+v", body.Data)
	}
}

func TestGetVideoStatusNotFound(t *testing.T) {
	app, _, _ := newTestApp(t)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/videos/nope/status", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestDeleteVideoOwnership(t *testing.T) {
	app, videos, _ := newTestApp(t)
	_ = videos.Create(context.Background(), &model.Video{ID: "vid-1", PostedBy: "user-1"})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/videos/vid-1", nil)
	req.Header.Set("X-User-ID", "someone-else")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/videos/vid-1", nil)
	req.Header.Set("X-User-ID", "user-1")
	resp, err = app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if _, err := videos.Get(context.Background(), "vid-1"); !errors.Is(err, model.ErrNotFound) {
		t.Error("record should be deleted")
	}
}

func TestGetJobStatus(t *testing.T) {
	app, _, jobQueue := newTestApp(t)
	jobQueue.states["job-1"] = &queue.JobState{
		ID:       "job-1",
		VideoID:  "vid-1",
		Status:   queue.StatusRetrying,
		Attempts: 2,
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/job-1", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/unknown", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("status = %d, want 404 for unknown job", resp.StatusCode)
	}
}
