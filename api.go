package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Zelak312/flowarr/interp"
	"github.com/Zelak312/flowarr/views"
	"github.com/gin-gonic/gin"
)

type API struct {
	queue *Queue
	store *Sqlite
	pool  *PoolWorker
	hub   *Hub
}

func NewAPI(queue *Queue, store *Sqlite, pool *PoolWorker, hub *Hub) *API {
	return &API{queue: queue, store: store, pool: pool, hub: hub}
}

func (a *API) Register(r *gin.Engine) {
	r.GET("/", a.statusPage)
	r.GET("/ping", ping)
	r.GET("/queue", a.listJobQueue)
	r.POST("/queue", a.addJobToQueue)
	r.DELETE("/queue/:id", a.delJobFromQueue)
	r.GET("/jobs/:id/results", a.listJobResults)
	r.GET("/failed", a.listFailedJobs)
	r.GET("/workers", a.listWorkers)
	r.POST("/workers/:id/:action", a.controlWorker)
	if a.hub != nil {
		r.GET("/ws", a.hub.HandleConnections)
	}
}

func validateJob(job *Job) error {
	if job.Factor < 0 {
		return fmt.Errorf("%w: factor must be >= 1, got %d", interp.ErrInvalidParameter, job.Factor)
	}

	if job.Mode != "" {
		mode, err := interp.ParseMode(job.Mode)
		if err != nil {
			return err
		}
		job.Mode = string(mode)
	}

	return nil
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return 0, false
	}

	return id, true
}

func ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}

func (a *API) addJobToQueue(c *gin.Context) {
	var job Job
	if err := c.ShouldBindJSON(&job); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	if err := validateJob(&job); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	if _, err := a.store.InsertJob(&job); err != nil {
		c.Error(err)
		c.String(http.StatusInternalServerError, err.Error())
		return
	}

	a.queue.Enqueue(job)
	c.JSON(http.StatusOK, job)
}

func (a *API) delJobFromQueue(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if _, found := a.queue.RemoveByID(id); !found {
		c.String(http.StatusNotFound, "job not in queue")
		return
	}

	if err := a.store.DeleteJobByID(id); err != nil {
		c.Error(err)
		c.String(http.StatusInternalServerError, err.Error())
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) listJobQueue(c *gin.Context) {
	c.JSON(http.StatusOK, a.queue.GetJobs())
}

func (a *API) listJobResults(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	results, err := a.store.GetJobResults(id)
	if err != nil {
		c.Error(err)
		c.String(http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, results)
}

func (a *API) listFailedJobs(c *gin.Context) {
	failed, err := a.store.GetFailedJobs()
	if err != nil {
		c.Error(err)
		c.String(http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, failed)
}

func (a *API) listWorkers(c *gin.Context) {
	c.JSON(http.StatusOK, a.pool.GetWorkersInfo())
}

func (a *API) controlWorker(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	worker, ok := a.pool.GetWorker(id)
	if !ok {
		c.String(http.StatusNotFound, "unknown worker")
		return
	}

	switch c.Param("action") {
	case "pause":
		err = worker.Pause()
	case "resume":
		err = worker.Resume()
	case "stop":
		err = worker.Stop()
	default:
		c.String(http.StatusBadRequest, "unknown action, expected pause, resume or stop")
		return
	}

	if errors.Is(err, ErrNoActiveJob) {
		c.String(http.StatusConflict, err.Error())
		return
	}

	c.JSON(http.StatusOK, worker.GetInfo())
}

func (a *API) statusPage(c *gin.Context) {
	page := views.StatusPage{}
	for _, info := range a.pool.GetWorkersInfo() {
		row := views.WorkerRow{
			ID:        info.ID,
			Step:      info.Step,
			Progress:  info.Progress,
			FramesOut: info.FramesOut,
			Paused:    info.Paused,
		}
		if info.Job != nil {
			row.JobPath = info.Job.Path
		}
		page.Workers = append(page.Workers, row)
	}

	for _, job := range a.queue.GetJobs() {
		page.Queue = append(page.Queue, views.JobRow{
			ID:         job.ID,
			Path:       job.Path,
			OutputPath: job.OutputPath,
			Factor:     job.Factor,
			Mode:       job.Mode,
		})
	}

	failed, err := a.store.GetFailedJobs()
	if err != nil {
		c.Error(err)
	}
	for _, f := range failed {
		page.Failed = append(page.Failed, views.FailedRow{
			JobID:  f.Job.ID,
			Path:   f.Job.Path,
			Status: f.Status,
			Error:  f.Error,
		})
	}

	c.HTML(http.StatusOK, "status", views.Status(page))
}
