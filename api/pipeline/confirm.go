package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/classroom-tools/grader-pipeline/config"
)

// Decision is a human reviewer's verdict on generated feedback.
type Decision int

// Reviewer decisions.
const (
	DecisionReject Decision = iota
	DecisionApprove
)

// ConfirmationGate is the cooperative checkpoint between generation and
// delivery.  The pipeline never delivers a submission's feedback until the
// gate approves it; a rejection skips delivery for that submission.
type ConfirmationGate interface {
	Await(ctx context.Context, runID, submissionID string) (Decision, error)
}

// AutoGate approves everything without waiting.  Used when the operator has
// opted out of per-run review.
type AutoGate struct{}

// Await immediately approves.
func (AutoGate) Await(ctx context.Context, runID, submissionID string) (Decision, error) {
	return DecisionApprove, nil
}

// SignalGate blocks pipeline workers until a reviewer signal arrives over
// the control API.  In batch mode one signal covers the whole run; in
// submission mode each submission waits for its own.
type SignalGate struct {
	perSubmission bool
	timeout       time.Duration

	mutex     *sync.Mutex
	decisions map[string]Decision
	waiters   map[string][]chan Decision
}

// NewSignalGate builds a gate from the environment's confirmation settings.
func NewSignalGate(env *config.Environment) *SignalGate {
	return &SignalGate{
		perSubmission: env.ConfirmMode == config.ConfirmSubmission,
		timeout:       time.Duration(env.ConfirmTimeoutSec) * time.Second,
		mutex:         &sync.Mutex{},
		decisions:     map[string]Decision{},
		waiters:       map[string][]chan Decision{},
	}
}

func (g *SignalGate) key(runID, submissionID string) string {
	if g.perSubmission {
		return runID + "/" + submissionID
	}
	return runID
}

// Await blocks until the matching signal arrives, the timeout lapses, or the
// run is cancelled.  A lapsed timeout is an error so the caller can skip
// delivery with a reason instead of guessing.
func (g *SignalGate) Await(ctx context.Context, runID, submissionID string) (Decision, error) {
	key := g.key(runID, submissionID)

	g.mutex.Lock()
	if decision, ok := g.decisions[key]; ok {
		g.mutex.Unlock()
		return decision, nil
	}
	wait := make(chan Decision, 1)
	g.waiters[key] = append(g.waiters[key], wait)
	g.mutex.Unlock()

	select {
	case decision := <-wait:
		return decision, nil
	case <-time.After(g.timeout):
		g.removeWaiter(key, wait)
		return DecisionReject, errors.Errorf("no confirmation received for %s within %s", key, g.timeout)
	case <-ctx.Done():
		g.removeWaiter(key, wait)
		return DecisionReject, ctx.Err()
	}
}

// removeWaiter deregisters an abandoned waiter so timed-out or cancelled
// runs don't accumulate dead channels.
func (g *SignalGate) removeWaiter(key string, wait chan Decision) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	waiters := g.waiters[key]
	for i, registered := range waiters {
		if registered == wait {
			g.waiters[key] = append(waiters[:i], waiters[i+1:]...)
			break
		}
	}
	if len(g.waiters[key]) == 0 {
		delete(g.waiters, key)
	}
}

// Signal records a reviewer decision and wakes every waiter registered for
// it.  In batch mode submissionID is ignored.
func (g *SignalGate) Signal(runID, submissionID string, approve bool) {
	decision := DecisionReject
	if approve {
		decision = DecisionApprove
	}
	key := g.key(runID, submissionID)

	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.decisions[key] = decision
	for _, wait := range g.waiters[key] {
		wait <- decision
	}
	delete(g.waiters, key)
}

// Forget drops stored decisions and leftover waiter registrations for a
// finished run so run ids can never collide with stale state.
func (g *SignalGate) Forget(runID string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	for key := range g.decisions {
		if keyBelongsToRun(key, runID) {
			delete(g.decisions, key)
		}
	}
	for key := range g.waiters {
		if keyBelongsToRun(key, runID) {
			delete(g.waiters, key)
		}
	}
}

func keyBelongsToRun(key, runID string) bool {
	return key == runID || len(key) > len(runID) && key[:len(runID)+1] == runID+"/"
}

// PerSubmission reports the gate's granularity, used by the control API to
// validate confirm requests.
func (g *SignalGate) PerSubmission() bool {
	return g.perSubmission
}
