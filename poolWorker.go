package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var retryLimit int = 5

type PoolWorker struct {
	ctx         context.Context
	queue       *Queue
	config      *Config
	store       *Sqlite
	logger      *logrus.Entry
	workers     []*Worker
	workChannel chan Job
	idle        chan struct{}
	waitGroup   sync.WaitGroup
}

func NewPoolWorker(ctx context.Context, queue *Queue, config *Config, store *Sqlite, hub *Hub) (*PoolWorker, error) {
	logger, err := CreateLogger("pool")
	if err != nil {
		return nil, err
	}

	p := &PoolWorker{
		ctx:         ctx,
		queue:       queue,
		config:      config,
		store:       store,
		logger:      logger,
		workChannel: make(chan Job),
		idle:        make(chan struct{}),
	}

	for i := 0; i < config.Workers; i++ {
		workerLogger, err := CreateLogger(fmt.Sprintf("worker_%d", i))
		if err != nil {
			return nil, err
		}

		p.workers = append(p.workers, NewWorker(i, workerLogger, config, hub))
	}

	return p, nil
}

// RunDispatcher hands queued jobs to idle workers until the context is
// cancelled. A job only leaves the queue once a worker is ready for it, so
// deleting a queued job while every worker is busy keeps it from running.
func (p *PoolWorker) RunDispatcher() {
	for _, w := range p.workers {
		p.waitGroup.Add(1)
		go p.runWorker(w)
	}

	defer close(p.workChannel)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-p.idle:
		}

		job, ok := p.queue.Dequeue()
		for !ok {
			select {
			case <-p.ctx.Done():
				return
			case <-ticker.C:
			}

			job, ok = p.queue.Dequeue()
		}

		// the worker that sent the idle token is blocked on the receive
		p.workChannel <- job
	}
}

// Wait blocks until every worker returned, call it after cancelling the context.
func (p *PoolWorker) Wait() {
	p.waitGroup.Wait()
}

func (p *PoolWorker) GetWorker(id int) (*Worker, bool) {
	if id < 0 || id >= len(p.workers) {
		return nil, false
	}

	return p.workers[id], true
}

func (p *PoolWorker) GetWorkersInfo() []WorkerInfo {
	infos := make([]WorkerInfo, 0, len(p.workers))
	for _, w := range p.workers {
		infos = append(infos, w.GetInfo())
	}

	return infos
}

func (p *PoolWorker) runWorker(w *Worker) {
	defer p.waitGroup.Done()

	for {
		select {
		case p.idle <- struct{}{}:
		case <-p.ctx.Done():
			return
		}

		job, ok := <-p.workChannel
		if !ok {
			return
		}

		result, err := w.Process(p.ctx, &job)
		if p.ctx.Err() != nil {
			p.logger.Debug("Ctx error is: ", p.ctx.Err())
			// the job is still pending in the database and gets picked up on next start
			return
		}

		p.handleResult(&job, &result, err)
	}
}

func (p *PoolWorker) handleResult(job *Job, result *JobResult, processErr error) {
	logger := p.logger.WithFields(StructFields(job))

	switch {
	case processErr != nil:
		p.handleProcessError(job, result, processErr)

	case result.Status == ResultNotFound:
		logger.Info("Job failed, removing it from queue")
		if err := p.store.FailJob(job, result); err != nil {
			logger.Error("Failed to fail the job: ", err)
		}

	default:
		if err := p.store.InsertJobResult(result); err != nil {
			logger.Error("Failed to record job result: ", err)
		}

		if err := p.store.MarkJobAsDone(job); err != nil {
			logger.Error("Failed to mark job as done: ", err)
		}
	}
}

func (p *PoolWorker) handleProcessError(job *Job, result *JobResult, processErr error) {
	logger := p.logger.WithFields(StructFields(job))
	logger.Error("Error processing job: ", processErr)

	retries, err := p.store.GetJobRetries(job)
	if err != nil {
		logger.Error("Failed to get retries: ", err)
		return
	}

	if retries >= retryLimit {
		logger.Info("Job failed too many times, removing it from queue")
		if err := p.store.FailJob(job, result); err != nil {
			logger.Error("Failed to fail the job: ", err)
		}
		return
	}

	if err := p.store.InsertJobResult(result); err != nil {
		logger.Error("Failed to record job result: ", err)
	}

	retries++
	if err := p.store.UpdateJobRetries(job, retries); err != nil {
		logger.Error("Failed to update job retries: ", err)
		return
	}

	p.queue.Enqueue(*job)
	logger.Info("Requeue job (back of the queue and retrying)")
}
