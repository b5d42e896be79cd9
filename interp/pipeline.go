package interp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

type State int32

const (
	StateIdle State = iota
	StateStreaming
	StatePaused
	StateDraining
	StateDone
	StateFailed
)

var stateNames = [...]string{"idle", "streaming", "paused", "draining", "done", "failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int32(s))
	}

	return stateNames[s]
}

var transitions = map[State][]State{
	StateIdle:      {StateStreaming, StateFailed},
	StateStreaming: {StatePaused, StateDraining, StateFailed},
	StatePaused:    {StateStreaming, StateDraining, StateFailed},
	StateDraining:  {StateDone, StateFailed},
}

type Status string

const (
	StatusCompleted Status = "completed"
	StatusStopped   Status = "stopped"
	StatusFailed    Status = "failed"
)

// Report is returned by Run whatever the outcome. Err is set for failed
// runs and for runs cut short by a decode error.
type Report struct {
	Status        Status
	FramesIn      int64
	FramesOut     int64
	Pairs         int64
	DegradedPairs []int
	Err           error
}

type Progress struct {
	FramesIn   int64   `json:"framesIn"`
	FramesOut  int64   `json:"framesOut"`
	Pairs      int64   `json:"pairs"`
	TotalPairs int64   `json:"totalPairs"`
	Percent    float64 `json:"percent"`
}

// Warning is reported for every pair that fell back to a cheaper method.
type Warning struct {
	Pair int
	Err  error
}

type Config struct {
	// Factor is K, the number of output frames per input frame interval.
	Factor   int
	Strategy Strategy
	// Workers bounds the pairs computed concurrently, and so the frames held
	// in memory. 0 means runtime.NumCPU(). It also bounds the reorder buffer:
	// up to Workers pairs past the next expected one can wait there, not
	// just one, so memory is O(Workers * Factor) frames.
	Workers    int
	Logger     Logger
	OnProgress func(Progress)
	OnWarning  func(Warning)
}

// Pipeline re-times one stream. A Pipeline runs once.
type Pipeline struct {
	cfg     Config
	control *Control
	started atomic.Bool

	mu    sync.Mutex
	state State

	framesIn   atomic.Int64
	framesOut  atomic.Int64
	pairs      atomic.Int64
	totalPairs atomic.Int64

	// only touched by the writer
	degraded []int
}

// streamEnd tells why decoding ended before the source was exhausted.
type streamEnd struct {
	decodeErr error
	stopped   bool
}

type pairJob struct {
	index int
	prev  *Frame
	next  *Frame
	final bool
}

type pairResult struct {
	index    int
	frames   []*Frame
	degraded error
	final    bool
}

func New(cfg Config) (*Pipeline, error) {
	if cfg.Factor < 1 {
		return nil, fmt.Errorf("%w: interpolation factor must be >= 1, got %d", ErrInvalidParameter, cfg.Factor)
	}

	if cfg.Factor > 1 && cfg.Strategy == nil {
		return nil, fmt.Errorf("%w: factor %d needs an interpolation strategy", ErrInvalidParameter, cfg.Factor)
	}

	if cfg.Workers < 0 {
		return nil, fmt.Errorf("%w: workers must be >= 0, got %d", ErrInvalidParameter, cfg.Workers)
	}

	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}

	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}

	return &Pipeline{
		cfg:     cfg,
		control: NewControl(),
		state:   StateIdle,
	}, nil
}

func (p *Pipeline) Factor() int { return p.cfg.Factor }
func (p *Pipeline) Pause()      { p.control.Pause() }
func (p *Pipeline) Resume()     { p.control.Resume() }
func (p *Pipeline) Stop()       { p.control.Stop() }

func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) Progress() Progress {
	pr := Progress{
		FramesIn:   p.framesIn.Load(),
		FramesOut:  p.framesOut.Load(),
		Pairs:      p.pairs.Load(),
		TotalPairs: p.totalPairs.Load(),
	}

	if pr.TotalPairs > 0 {
		pr.Percent = math.Min(100, float64(pr.Pairs)/float64(pr.TotalPairs)*100)
	}

	return pr
}

func (p *Pipeline) setState(to State) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, allowed := range transitions[p.state] {
		if allowed == to {
			p.state = to
			return true
		}
	}

	p.cfg.Logger.Debugf("ignoring state transition %s -> %s", p.state, to)
	return false
}

// Run opens the source and the sink, re-times the whole stream and closes
// both. The returned error is non nil only when the report status is failed.
func (p *Pipeline) Run(ctx context.Context, sources SourceOpener, inPath string, sinks SinkOpener, outPath string) (Report, error) {
	if !p.started.CompareAndSwap(false, true) {
		err := fmt.Errorf("%w: pipeline already ran", ErrInvalidParameter)
		return Report{Status: StatusFailed, Err: err}, err
	}

	p.setState(StateStreaming)
	src, err := sources.OpenSource(ctx, inPath)
	if err != nil {
		return p.fail(fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, inPath, err))
	}

	meta := src.Metadata()
	if err := meta.Validate(); err != nil {
		p.closeSource(src)
		return p.fail(fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, inPath, err))
	}

	if meta.FrameCount > 0 {
		p.totalPairs.Store(meta.FrameCount - 1)
	}

	fps := meta.OutputFrameRate(p.cfg.Factor)
	sink, err := sinks.OpenSink(ctx, outPath, meta.Width, meta.Height, fps)
	if err != nil {
		p.closeSource(src)
		return p.fail(fmt.Errorf("%w: %s: %w", ErrSinkUnavailable, outPath, err))
	}

	strategy := "none"
	if p.cfg.Strategy != nil {
		strategy = p.cfg.Strategy.Name()
	}
	p.cfg.Logger.Infof("re-timing %dx%d from %g to %g fps (factor %d, strategy %s, %d workers)",
		meta.Width, meta.Height, meta.FrameRate, fps, p.cfg.Factor, strategy, p.cfg.Workers)

	end, err := p.stream(ctx, src, sink, meta)
	p.closeSource(src)
	if closeErr := sink.Close(); closeErr != nil {
		if err == nil {
			err = fmt.Errorf("%w: closing sink: %w", ErrSinkWrite, closeErr)
		} else {
			p.cfg.Logger.Errorf("closing sink after failure: %v", closeErr)
		}
	}

	if err != nil {
		return p.fail(err)
	}

	report := p.report()
	p.setState(StateDone)
	switch {
	case end.decodeErr != nil:
		p.cfg.Logger.Warnf("stream ended early: %v", end.decodeErr)
		report.Status = StatusStopped
		report.Err = end.decodeErr
	case end.stopped:
		report.Status = StatusStopped
	default:
		report.Status = StatusCompleted
	}

	p.cfg.Logger.Infof("%s: %d frames in, %d frames out, %d degraded pairs",
		report.Status, report.FramesIn, report.FramesOut, len(report.DegradedPairs))
	return report, nil
}

func (p *Pipeline) fail(err error) (Report, error) {
	p.setState(StateFailed)
	p.cfg.Logger.Errorf("re-timing failed: %v", err)

	report := p.report()
	report.Status = StatusFailed
	report.Err = err
	return report, err
}

func (p *Pipeline) report() Report {
	return Report{
		FramesIn:      p.framesIn.Load(),
		FramesOut:     p.framesOut.Load(),
		Pairs:         p.pairs.Load(),
		DegradedPairs: append([]int(nil), p.degraded...),
	}
}

func (p *Pipeline) closeSource(src Source) {
	if err := src.Close(); err != nil {
		p.cfg.Logger.Debugf("closing source: %v", err)
	}
}

// stream wires decode -> workers -> reorder -> sink. Each in-flight pair
// holds one slot until its frames are written, which caps both the worker
// queue and the reorder buffer.
func (p *Pipeline) stream(ctx context.Context, src Source, sink Sink, meta StreamMetadata) (streamEnd, error) {
	workers := p.cfg.Workers
	jobs := make(chan pairJob)
	results := make(chan pairResult, workers)
	slots := make(chan struct{}, workers)

	var end streamEnd
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		var err error
		end, err = p.decode(gctx, src, meta, jobs, slots)
		return err
	})

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			defer wg.Done()
			return p.work(gctx, jobs, results)
		})
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	g.Go(func() error {
		return p.write(gctx, sink, results, slots)
	})

	err := g.Wait()
	return end, err
}

func (p *Pipeline) decode(ctx context.Context, src Source, meta StreamMetadata, jobs chan<- pairJob, slots chan struct{}) (streamEnd, error) {
	prev, err := src.Read(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return streamEnd{}, ctxErr
		}

		p.setState(StateDraining)
		if errors.Is(err, io.EOF) {
			p.cfg.Logger.Warnf("source has no frames")
			return streamEnd{}, nil
		}

		return streamEnd{decodeErr: fmt.Errorf("%w: first frame: %w", ErrDecode, err)}, nil
	}

	if err := checkFrame(prev, meta); err != nil {
		return streamEnd{}, err
	}
	p.framesIn.Add(1)

	var end streamEnd
	index := 0
	for {
		stop, err := p.control.Checkpoint(ctx, p.onPause)
		if err != nil {
			return streamEnd{}, err
		}

		if stop {
			p.cfg.Logger.Infof("stop requested after %d pairs", index)
			end.stopped = true
			break
		}

		if err := acquire(ctx, slots); err != nil {
			return streamEnd{}, err
		}

		next, err := src.Read(ctx)
		if err != nil {
			<-slots
			if ctxErr := ctx.Err(); ctxErr != nil {
				return streamEnd{}, ctxErr
			}

			if !errors.Is(err, io.EOF) {
				end.decodeErr = fmt.Errorf("%w: after frame %d: %w", ErrDecode, p.framesIn.Load(), err)
			}
			break
		}

		if err := checkFrame(next, meta); err != nil {
			<-slots
			return streamEnd{}, fmt.Errorf("frame %d: %w", p.framesIn.Load(), err)
		}
		p.framesIn.Add(1)

		if err := send(ctx, jobs, pairJob{index: index, prev: prev, next: next}); err != nil {
			return streamEnd{}, err
		}

		// the job owns prev now, only next is carried over
		prev = next
		index++
	}

	p.setState(StateDraining)
	if err := acquire(ctx, slots); err != nil {
		return streamEnd{}, err
	}

	if err := send(ctx, jobs, pairJob{index: index, prev: prev, final: true}); err != nil {
		return streamEnd{}, err
	}

	return end, nil
}

func (p *Pipeline) onPause(paused bool) {
	if paused {
		p.cfg.Logger.Infof("paused after %d pairs", p.pairs.Load())
		p.setState(StatePaused)
		return
	}

	p.cfg.Logger.Infof("resumed")
	p.setState(StateStreaming)
}

func (p *Pipeline) work(ctx context.Context, jobs <-chan pairJob, results chan<- pairResult) error {
	for job := range jobs {
		res, err := p.synthesize(ctx, job)
		if err != nil {
			return err
		}

		select {
		case results <- res:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

func (p *Pipeline) synthesize(ctx context.Context, job pairJob) (pairResult, error) {
	k := p.cfg.Factor
	res := pairResult{index: job.index, final: job.final, frames: make([]*Frame, 0, k)}
	res.frames = append(res.frames, job.prev)
	if job.final || k == 1 {
		return res, nil
	}

	pair, err := p.cfg.Strategy.Prepare(ctx, job.prev, job.next)
	if err != nil {
		return res, fmt.Errorf("pair %d: %w", job.index, err)
	}

	res.degraded = pair.Degraded()
	for i := 1; i < k; i++ {
		frame, err := pair.Synthesize(float64(i) / float64(k))
		if err != nil {
			return res, fmt.Errorf("pair %d at %d/%d: %w", job.index, i, k, err)
		}

		res.frames = append(res.frames, frame)
	}

	return res, nil
}

func (p *Pipeline) write(ctx context.Context, sink Sink, results <-chan pairResult, slots chan struct{}) error {
	reorder := newReorderBuffer()
	for res := range results {
		for _, ready := range reorder.push(res) {
			if err := ctx.Err(); err != nil {
				return err
			}

			if err := p.emit(sink, ready); err != nil {
				return err
			}

			<-slots
			if p.cfg.OnProgress != nil {
				p.cfg.OnProgress(p.Progress())
			}
		}
	}

	if n := reorder.len(); n > 0 && ctx.Err() == nil {
		return fmt.Errorf("%d pair results were never written", n)
	}

	return nil
}

func (p *Pipeline) emit(sink Sink, res pairResult) error {
	for _, frame := range res.frames {
		if err := sink.Write(frame); err != nil {
			return fmt.Errorf("%w: frame %d: %w", ErrSinkWrite, p.framesOut.Load(), err)
		}
		p.framesOut.Add(1)
	}

	if res.final {
		return nil
	}

	p.pairs.Add(1)
	if res.degraded != nil {
		p.degraded = append(p.degraded, res.index)
		p.cfg.Logger.Warnf("pair %d: %v", res.index, res.degraded)
		if p.cfg.OnWarning != nil {
			p.cfg.OnWarning(Warning{Pair: res.index, Err: res.degraded})
		}
	}

	return nil
}

func checkFrame(f *Frame, meta StreamMetadata) error {
	if f == nil {
		return fmt.Errorf("%w: source returned no frame", ErrDecode)
	}

	if f.Width != meta.Width || f.Height != meta.Height || len(f.Data) != f.Size() {
		return fmt.Errorf("%w: got %dx%d (%d bytes), stream is %dx%d", ErrShapeMismatch,
			f.Width, f.Height, len(f.Data), meta.Width, meta.Height)
	}

	return nil
}

func acquire(ctx context.Context, slots chan struct{}) error {
	select {
	case slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func send(ctx context.Context, jobs chan<- pairJob, job pairJob) error {
	select {
	case jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
