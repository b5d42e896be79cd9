package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Zelak312/flowarr/interp"
	"github.com/sirupsen/logrus"
)

const (
	ResultCompleted       = string(interp.StatusCompleted)
	ResultStopped         = string(interp.StatusStopped)
	ResultFailed          = string(interp.StatusFailed)
	ResultSkipped         = "skipped"
	ResultNotFound        = "not_found"
	ResultTranscodeFailed = "transcode_failed"
)

var ErrNoActiveJob = errors.New("worker has no active job")

type JobResult struct {
	ID            int64  `json:"id"`
	JobID         int64  `json:"jobId"`
	Status        string `json:"status"`
	FramesIn      int64  `json:"framesIn"`
	FramesOut     int64  `json:"framesOut"`
	DegradedPairs []int  `json:"degradedPairs"`
	Error         string `json:"error"`
	// Output is the process output, or the path of a kept intermediate
	Output string `json:"output"`
}

type Worker struct {
	id     int
	logger *logrus.Entry
	config *Config
	hub    *Hub
	sync.RWMutex

	pipeline   *interp.Pipeline
	workerInfo WorkerInfo
}

type WorkerInfo struct {
	ID        int     `json:"id"`
	Active    bool    `json:"active"`
	Paused    bool    `json:"paused"`
	Step      string  `json:"step"`
	Progress  float64 `json:"progress"`
	FramesOut int64   `json:"framesOut"`
	Job       *Job    `json:"job"`
}

func NewWorker(id int, logger *logrus.Entry, config *Config, hub *Hub) *Worker {
	return &Worker{
		id:         id,
		logger:     logger,
		config:     config,
		hub:        hub,
		workerInfo: WorkerInfo{ID: id},
	}
}

func ShouldUseTempFile(job *Job, deleteOutputIfAlreadyExist bool) (bool, error) {
	samePath, err := IsSamePath(job.Path, job.OutputPath)
	if err != nil {
		return false, err
	}

	if samePath {
		return true, nil
	}

	outputExist, err := PathExist(job.OutputPath)
	if err != nil {
		return false, err
	}

	return outputExist && deleteOutputIfAlreadyExist, nil
}

// Process runs one job to the end. A non nil error means the run failed
// and may be retried, every other outcome is described by the result status.
func (w *Worker) Process(ctx context.Context, job *Job) (JobResult, error) {
	w.Lock()
	w.workerInfo.Active = true
	w.workerInfo.Job = job
	w.Unlock()

	defer func() {
		w.Lock()
		w.workerInfo = WorkerInfo{ID: w.id}
		w.pipeline = nil
		w.Unlock()
		w.sendUpdate()
	}()

	result := JobResult{JobID: job.ID}
	logger := w.logger.WithFields(StructFields(job))
	logger.Info("Processing job")

	w.updateStep("Checking paths")
	videoExist, err := PathExist(job.Path)
	if err != nil {
		return w.failed(result, err)
	}

	if !videoExist {
		logger.Error("Video to process wasn't found")
		result.Status = ResultNotFound
		result.Error = "source video not found"
		return result, nil
	}

	outputExist, err := PathExist(job.OutputPath)
	if err != nil {
		return w.failed(result, err)
	}

	samePath, err := IsSamePath(job.Path, job.OutputPath)
	if err != nil {
		return w.failed(result, err)
	}

	if outputExist && !samePath && !*w.config.DeleteOutputIfAlreadyExist {
		logger.Info("Output already exist, skipping")
		result.Status = ResultSkipped
		return result, nil
	}

	baseOutputPath := filepath.Dir(job.OutputPath)
	logger.WithField("baseOutputPath", baseOutputPath).Debug("Creating output folder if it doesn't exist")
	if err := os.MkdirAll(baseOutputPath, os.ModePerm); err != nil {
		return w.failed(result, err)
	}

	useTmpFile, err := ShouldUseTempFile(job, *w.config.DeleteOutputIfAlreadyExist)
	if err != nil {
		return w.failed(result, err)
	}

	target := job.OutputPath
	if useTmpFile {
		target = tmpPath(job.OutputPath)
		logger.Debug("Using tmp file: ", target)
	}

	workFolder := filepath.Join(w.config.ProcessFolder, fmt.Sprintf("worker_%d", w.id))
	if err := os.RemoveAll(workFolder); err != nil {
		return w.failed(result, err)
	}

	if err := os.MkdirAll(workFolder, os.ModePerm); err != nil {
		return w.failed(result, err)
	}
	defer os.RemoveAll(workFolder)

	backend, err := NewBackend(w.config)
	if err != nil {
		return w.failed(result, err)
	}

	sourceFPS := w.config.FramesFPS
	factor := job.Factor
	if factor == 0 {
		factor = w.config.Factor
	}

	if isAnimatedWebPInput(job.Path) {
		logger.Debug("Animated webp input")
		backend.Sources = NewWebPSource(w.config.WebP.FPS)
		sourceFPS = w.config.WebP.FPS
		if job.Factor == 0 {
			factor = w.config.WebP.Factor
		}
	}

	mode := job.Mode
	if mode == "" {
		mode = w.config.Mode
	}

	strategy, err := NewStrategy(mode, w.config.Flow)
	if err != nil {
		return w.failed(result, err)
	}

	transcode := *w.config.Transcode.Enabled
	pipelineOutput := target
	var intermediate Intermediate
	if transcode {
		intermediate = backend.Intermediate(workFolder, 0)
		pipelineOutput = intermediate.Path
	}

	lastPercent := -1.0
	pipeline, err := interp.New(interp.Config{
		Factor:   factor,
		Strategy: strategy,
		Workers:  w.config.PairWorkers,
		Logger:   logger,
		OnProgress: func(progress interp.Progress) {
			percent := math.Floor(progress.Percent)
			if percent == lastPercent {
				return
			}
			lastPercent = percent
			w.updateProgress(progress)
		},
		OnWarning: func(warning interp.Warning) {
			w.sendWarning(job, warning)
		},
	})
	if err != nil {
		return w.failed(result, err)
	}

	w.Lock()
	w.pipeline = pipeline
	w.Unlock()

	w.updateStep("Interpolating frames")
	logger.Infof("Interpolating with factor %d (%s, %s backend)", factor, strategy.Name(), backend.Name)
	report, runErr := pipeline.Run(ctx, backend.Sources, job.Path, backend.Sinks, pipelineOutput)
	result.Status = string(report.Status)
	result.FramesIn = report.FramesIn
	result.FramesOut = report.FramesOut
	result.DegradedPairs = report.DegradedPairs
	if report.Err != nil {
		result.Error = report.Err.Error()
	}

	if runErr != nil {
		if report.FramesOut == 0 {
			os.RemoveAll(pipelineOutput)
			return result, runErr
		}

		ext := filepath.Ext(job.OutputPath)
		if transcode {
			ext = filepath.Ext(intermediate.Path)
		}

		partial, moveErr := keepBeside(pipelineOutput, job, "partial", ext)
		if moveErr != nil {
			logger.Error("Failed to keep partial output: ", moveErr)
			os.RemoveAll(pipelineOutput)
		} else {
			logger.WithField("partial", partial).Warn("Kept partial output")
			result.Output = partial
		}
		return result, runErr
	}

	if report.FramesOut == 0 {
		logger.Warn("No frame was written")
		os.RemoveAll(pipelineOutput)
		return result, nil
	}

	if transcode {
		w.updateStep("Transcoding")
		if backend.Name == BackendFrames {
			intermediate.FPS = sourceFPS * float64(pipeline.Factor())
		}

		transcoder := NewTranscoder(w.config.Transcode)
		output, err := transcoder.Transcode(ctx, intermediate, target)
		if errors.Is(err, interp.ErrTranscode) {
			logger.Error("Transcode failed: ", err)
			result.Status = ResultTranscodeFailed
			result.Error = err.Error()
			result.Output = output
			if transcoder.KeepsIntermediateOnFailure() {
				kept, moveErr := keepBeside(intermediate.Path, job, "intermediate", filepath.Ext(intermediate.Path))
				if moveErr != nil {
					logger.Error("Failed to keep intermediate: ", moveErr)
				} else {
					result.Output = kept
				}
			}
			return result, nil
		}

		if err != nil {
			logger.Warn(err)
		}
	}

	if useTmpFile {
		logger.Debug("Replacing output with tmp file")
		if err := os.RemoveAll(job.OutputPath); err != nil {
			return w.failed(result, err)
		}

		if err := MoveFile(target, job.OutputPath); err != nil {
			return w.failed(result, err)
		}
	}

	logger.WithField("status", result.Status).Info("Finished processing job")
	return result, nil
}

// keepBeside moves a leftover of the run next to the requested output as
// <output>.<label><ext>, the work folder is wiped once the job is over.
func keepBeside(path string, job *Job, label string, ext string) (string, error) {
	dest := strings.TrimSuffix(job.OutputPath, filepath.Ext(job.OutputPath)) + "." + label + ext
	if err := os.RemoveAll(dest); err != nil {
		return "", err
	}

	if err := MoveFile(path, dest); err != nil {
		return "", err
	}

	return dest, nil
}

func (w *Worker) failed(result JobResult, err error) (JobResult, error) {
	result.Status = ResultFailed
	result.Error = err.Error()
	return result, err
}

func (w *Worker) Pause() error {
	return w.control(func(p *interp.Pipeline) {
		p.Pause()
		w.workerInfo.Paused = true
	})
}

func (w *Worker) Resume() error {
	return w.control(func(p *interp.Pipeline) {
		p.Resume()
		w.workerInfo.Paused = false
	})
}

func (w *Worker) Stop() error {
	return w.control(func(p *interp.Pipeline) {
		p.Stop()
		w.workerInfo.Paused = false
		w.workerInfo.Step = "Stopping"
	})
}

func (w *Worker) control(apply func(p *interp.Pipeline)) error {
	w.Lock()
	if w.pipeline == nil {
		w.Unlock()
		return ErrNoActiveJob
	}

	apply(w.pipeline)
	w.Unlock()
	w.sendUpdate()
	return nil
}

func (w *Worker) updateStep(step string) {
	w.Lock()
	w.workerInfo.Step = step
	w.workerInfo.Progress = 0
	w.Unlock()

	w.sendUpdate()
}

func (w *Worker) updateProgress(progress interp.Progress) {
	w.Lock()
	w.workerInfo.Progress = progress.Percent
	w.workerInfo.FramesOut = progress.FramesOut
	w.Unlock()

	w.sendUpdate()
}

func (w *Worker) sendWarning(job *Job, warning interp.Warning) {
	w.hub.BroadcastMessage(WsWorkerWarning{
		WsBaseMessage: WsBaseMessage{
			Type: "worker_warning",
		},
		WorkerID: w.id,
		JobID:    job.ID,
		Pair:     warning.Pair,
		Message:  warning.Err.Error(),
	})
}

func (w *Worker) sendUpdate() {
	w.hub.BroadcastMessage(WsWorkerProgress{
		WsBaseMessage: WsBaseMessage{
			Type: "worker_progress",
		},
		WorkerInfo: w.GetInfo(),
	})
}

func (w *Worker) GetInfo() WorkerInfo {
	w.RLock() // Shared lock for reading
	defer w.RUnlock()

	info := w.workerInfo
	if info.Job != nil {
		job := *info.Job
		info.Job = &job
	}
	return info
}
