package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Zelak312/flowarr/views"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiFixture struct {
	router *gin.Engine
	queue  *Queue
	store  *Sqlite
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	discardLogs(t)
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	store := newTestStore(t)
	queue := NewQueue(nil, nil)
	config := testConfig(t)
	config.Workers = 2
	pool, err := NewPoolWorker(ctx, queue, config, store, nil)
	require.NoError(t, err)

	router := gin.New()
	router.HTMLRender = &views.HTMLTemplRenderer{}
	NewAPI(queue, store, pool, nil).Register(router)
	return &apiFixture{router: router, queue: queue, store: store}
}

func (f *apiFixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestAPIPing(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"pong"}`, rec.Body.String())
}

func TestAPIAddJob(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodPost, "/queue", `{"path":"/in/a.mp4","outputPath":"/out/a.mp4","factor":3,"mode":"Linear"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var job Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.NotZero(t, job.ID)
	assert.Equal(t, "blend", job.Mode)
	assert.Equal(t, 1, f.queue.Len())

	stored, err := f.store.GetJobs()
	require.NoError(t, err)
	assert.Equal(t, []Job{job}, stored)

	rec = f.do(http.MethodGet, "/queue", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var queued []Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &queued))
	assert.Equal(t, []Job{job}, queued)
}

func TestAPIAddJobValidation(t *testing.T) {
	f := newAPIFixture(t)

	bodies := map[string]string{
		"missing path":    `{"outputPath":"/out/a.mp4"}`,
		"missing output":  `{"path":"/in/a.mp4"}`,
		"negative factor": `{"path":"/in/a.mp4","outputPath":"/out/a.mp4","factor":-1}`,
		"unknown mode":    `{"path":"/in/a.mp4","outputPath":"/out/a.mp4","mode":"dain"}`,
		"not json":        `{"path"`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/queue", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	assert.Zero(t, f.queue.Len())
}

func TestAPIDeleteJob(t *testing.T) {
	f := newAPIFixture(t)

	job := Job{Path: "/in/a.mp4", OutputPath: "/out/a.mp4"}
	_, err := f.store.InsertJob(&job)
	require.NoError(t, err)
	f.queue.Enqueue(job)

	path := fmt.Sprintf("/queue/%d", job.ID)
	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, path, "").Code)
	assert.Zero(t, f.queue.Len())

	stored, err := f.store.GetJobs()
	require.NoError(t, err)
	assert.Empty(t, stored)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, path, "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodDelete, "/queue/abc", "").Code)
}

func TestAPIWorkers(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodGet, "/workers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var infos []WorkerInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	require.Len(t, infos, 2)
	assert.Equal(t, 1, infos[1].ID)
	assert.False(t, infos[0].Active)

	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, "/workers/0/pause", "").Code)
	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, "/workers/1/stop", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, "/workers/5/pause", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/workers/0/rewind", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/workers/x/pause", "").Code)
}

func TestAPIFailedJobsAndResults(t *testing.T) {
	f := newAPIFixture(t)

	job := Job{Path: "/in/a.mp4", OutputPath: "/out/a.mp4"}
	_, err := f.store.InsertJob(&job)
	require.NoError(t, err)
	require.NoError(t, f.store.FailJob(&job, &JobResult{JobID: job.ID, Status: ResultNotFound, Error: "source video not found"}))

	rec := f.do(http.MethodGet, "/failed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var failed []FailedJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &failed))
	require.Len(t, failed, 1)
	assert.Equal(t, job.Path, failed[0].Job.Path)

	rec = f.do(http.MethodGet, fmt.Sprintf("/jobs/%d/results", job.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var results []JobResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, ResultNotFound, results[0].Status)

	rec = f.do(http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "/in/a.mp4")
	assert.Contains(t, rec.Body.String(), "source video not found")
}
