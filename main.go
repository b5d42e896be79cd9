package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Zelak312/flowarr/interp"
	"github.com/Zelak312/flowarr/views"
)

type Job struct {
	ID         int64  `json:"id"`
	Path       string `json:"path" binding:"required"`
	OutputPath string `json:"outputPath" binding:"required"`
	Factor     int    `json:"factor"`
	Mode       string `json:"mode"`
}

const defaultConfigPath = "./config.yml"

func main() {
	// cli arguments
	configPath := flag.String("config_path", defaultConfigPath, "Path to the config yml file")
	input := flag.String("input", "", "Interpolate a single video and exit instead of serving")
	output := flag.String("output", "", "Output path, required with -input")
	factor := flag.Int("factor", 0, "Interpolation factor, 0 uses the config value")
	mode := flag.String("mode", "", "Interpolation mode (flow or blend), empty uses the config value")
	flag.Parse()

	config, err := GetConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load config:", err)
		os.Exit(1)
	}

	if err := InitLogFile(config.LogPath, config.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to init log file:", err)
		os.Exit(1)
	}

	logger, err := CreateLogger("main")
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to create logger:", err)
		os.Exit(1)
	}

	if !opencvSupport && config.Mode == string(interp.ModeFlow) {
		logger.Warn("Built without opencv, flow mode will degrade to blending")
	}

	if *input != "" {
		os.Exit(runSingle(logger, &config, Job{
			Path:       *input,
			OutputPath: *output,
			Factor:     *factor,
			Mode:       *mode,
		}))
	}

	if err := runServer(logger, &config); err != nil {
		logger.Fatal(err)
	}
}

var statusTitles = map[string]string{
	ResultCompleted:       "Completed",
	ResultStopped:         "Stopped",
	ResultFailed:          "Failed",
	ResultSkipped:         "Skipped",
	ResultNotFound:        "Failed",
	ResultTranscodeFailed: "Failed",
}

// runSingle processes one job in the foreground. The first interrupt stops
// the pipeline gracefully, the second one cancels it.
func runSingle(logger *logrus.Entry, config *Config, job Job) int {
	if err := validateJob(&job); err != nil {
		logger.Error(err)
		return 2
	}

	if job.OutputPath == "" {
		logger.Error("-output is required with -input")
		return 2
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker := NewWorker(0, logger, config, nil)
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)

	go func() {
		stopping := false
		for {
			select {
			case <-ctx.Done():
				return
			case <-signals:
				if stopping {
					logger.Warn("Aborting")
					cancel()
					return
				}

				stopping = true
				logger.Info("Stopping after the current frame pair, interrupt again to abort")
				if err := worker.Stop(); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	result, err := worker.Process(ctx, &job)
	if err != nil {
		logger.Error(err)
	}

	title, ok := statusTitles[result.Status]
	if !ok {
		title = result.Status
	}
	fmt.Printf("%s: %d frames written\n", title, result.FramesOut)

	switch result.Status {
	case ResultCompleted, ResultStopped, ResultSkipped:
		return 0
	}
	return 1
}

func runServer(logger *logrus.Entry, config *Config) error {
	store, err := NewSqlite(config.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.RunMigrations(); err != nil {
		return err
	}

	hub, err := NewHub()
	if err != nil {
		return err
	}

	jobs, err := store.GetJobs()
	if err != nil {
		return err
	}
	logger.Infof("Loaded %d pending jobs", len(jobs))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go hub.Run(ctx)
	queue := NewQueue(jobs, hub)
	pool, err := NewPoolWorker(ctx, queue, config, store, hub)
	if err != nil {
		return err
	}
	go pool.RunDispatcher()

	httpLogger, err := CreateLogger("http")
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), LoggerMiddleware(httpLogger))
	r.HTMLRender = &views.HTMLTemplRenderer{}
	NewAPI(queue, store, pool, hub).Register(r)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", config.BindAddress, config.Port),
		Handler: r,
	}

	go func() {
		logger.Info("Listening on ", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error: ", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server shutdown: ", err)
	}

	pool.Wait()
	return nil
}
