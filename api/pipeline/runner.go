package pipeline

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/classroom-tools/grader-pipeline/api/queue"
	"github.com/classroom-tools/grader-pipeline/config"
)

// GradingRunner services the request queue, running one grading batch at a
// time.  Batches run sequentially because every collaborator shares the same
// rate quotas.
type GradingRunner struct {
	config.Config
	queue    queue.RequestQueue
	pipeline *Pipeline

	done    chan bool
	running bool
	mutex   *sync.RWMutex

	runs      map[string]*BatchRun
	cancels   map[string]context.CancelFunc
	activeRun string
}

// NewGradingRunner creates a runner over the queue and pipeline.
func NewGradingRunner(cfg *config.Config, requestQueue queue.RequestQueue, p *Pipeline) *GradingRunner {
	return &GradingRunner{
		Config:   *cfg,
		queue:    requestQueue,
		pipeline: p,
		done:     make(chan bool, 1),
		mutex:    &sync.RWMutex{},
		runs:     map[string]*BatchRun{},
		cancels:  map[string]context.CancelFunc{},
	}
}

// Start initiates request queue servicing.
func (g *GradingRunner) Start() {
	g.mutex.Lock()
	if g.running {
		g.mutex.Unlock()
		return
	}
	g.running = true
	g.mutex.Unlock()

	// drop any stop signal left over from a previous shutdown
	select {
	case <-g.done:
	default:
	}

	// Read from the queue until we get shut down.
	go func() {
		for {
			select {
			case <-g.done:
				g.mutex.Lock()
				g.running = false
				g.mutex.Unlock()
				return
			default:
				g.service()
				time.Sleep(time.Duration(g.Environment.PollIntervalSec) * time.Second)
			}
		}
	}()
}

// Stop ends request servicing.  The active batch, if any, runs to
// completion; the stop signal is picked up on the loop's next pass.  The
// signal is queued outside the lock so a stop during an active batch never
// blocks the other runner accessors.
func (g *GradingRunner) Stop() {
	g.mutex.RLock()
	running := g.running
	g.mutex.RUnlock()
	if !running {
		return
	}
	select {
	case g.done <- true:
	default:
		// a stop signal is already pending
	}
}

// Running indicates whether the runner routine is servicing the queue.
func (g *GradingRunner) Running() bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.running
}

// service dequeues and runs the next grading request if one is waiting.
func (g *GradingRunner) service() {
	if g.queue.Size() == 0 {
		return
	}
	data, err := g.queue.Dequeue()
	if err != nil {
		g.Logger.Error(err)
		return
	}
	request, ok := data.(KeyedGradeRequest)
	if !ok {
		g.Logger.Error(errors.Errorf("unhandled request type %s", reflect.TypeOf(data)))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	g.mutex.Lock()
	g.cancels[request.RunID] = cancel
	g.activeRun = request.RunID
	g.mutex.Unlock()

	g.Logger.Infof("starting grading run %s for assignment %s", request.RunID, request.AssignmentID)
	batch, err := g.pipeline.Run(ctx, &request)
	if err != nil {
		g.Logger.Errorf("grading run %s terminated early: %v", request.RunID, err)
	} else {
		g.Logger.Infof("grading run %s finished: %d delivered, %d failed, %d skipped",
			request.RunID, batch.Delivered, batch.Failed, batch.Skipped)
	}

	g.mutex.Lock()
	g.runs[request.RunID] = batch
	g.activeRun = ""
	delete(g.cancels, request.RunID)
	g.mutex.Unlock()
	cancel()
}

// Abort cancels the named run.  In-flight collaborator calls finish or time
// out, but no further submissions are started.  Returns false when the run
// is not active.
func (g *GradingRunner) Abort(runID string) bool {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	cancel, ok := g.cancels[runID]
	if ok {
		cancel()
	}
	return ok
}

// Results returns the finished BatchRun for the given id.
func (g *GradingRunner) Results(runID string) (*BatchRun, bool) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	batch, ok := g.runs[runID]
	return batch, ok
}

// ActiveRun returns the id of the run currently being serviced, or empty.
func (g *GradingRunner) ActiveRun() string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.activeRun
}
