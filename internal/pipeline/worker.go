package pipeline

import (
	"context"
	"sync"

	"amv-gen/internal/model"
)

type job struct {
	ctx context.Context
	req model.PipelineRequest
	out chan model.PipelineResult
}

// Worker runs pipeline requests on a fixed number of goroutines so the
// submitting side never does encode work itself.
type Worker struct {
	pipeline Pipeline
	jobs     chan job
	wg       sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewWorker(p Pipeline, size int) *Worker {
	if size <= 0 {
		size = 1
	}
	w := &Worker{pipeline: p, jobs: make(chan job, size*4)}
	w.wg.Add(size)
	for i := 0; i < size; i++ {
		go w.loop()
	}
	return w
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for j := range w.jobs {
		if err := j.ctx.Err(); err != nil {
			j.out <- model.Failed("", model.StageAcquireAudio, err.Error())
		} else {
			j.out <- w.pipeline.Run(j.ctx, j.req)
		}
		close(j.out)
	}
}

// Submit queues req and returns a channel that yields exactly one result.
// It blocks while the queue is full unless ctx ends first.
func (w *Worker) Submit(ctx context.Context, req model.PipelineRequest) <-chan model.PipelineResult {
	out := make(chan model.PipelineResult, 1)

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		out <- model.Failed("", model.StageAcquireAudio, "worker is closed")
		close(out)
		return out
	}

	select {
	case w.jobs <- job{ctx: ctx, req: req, out: out}:
	case <-ctx.Done():
		out <- model.Failed("", model.StageAcquireAudio, ctx.Err().Error())
		close(out)
	}
	return out
}

// Close stops accepting work and waits for queued jobs to finish.
func (w *Worker) Close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.jobs)
	}
	w.mu.Unlock()
	w.wg.Wait()
}
