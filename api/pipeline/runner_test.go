package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classroom-tools/grader-pipeline/api/queue"
)

func testRunner(classroom *fakeClassroom) (*GradingRunner, queue.RequestQueue) {
	cfg := testConfig()
	source := &fakeSource{docs: map[string]string{"doc-1": "Turtles are reptiles."}}
	generation := &fakeGeneration{text: "Well researched."}
	p := NewPipeline(cfg, classroom, source, generation, &fakeMail{}, AutoGate{})

	requestQueue := queue.NewListFIFOQueue(10)
	return NewGradingRunner(cfg, requestQueue, p), requestQueue
}

func waitForResults(t *testing.T, runner *GradingRunner, runID string) *BatchRun {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if batch, ok := runner.Results(runID); ok {
			return batch
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("run %s never finished", runID)
	return nil
}

func TestRunnerServicesQueue(t *testing.T) {
	classroom := &fakeClassroom{
		submissions: []RawSubmission{
			docRawSubmission("sub-1", "student-1", "doc-1"),
		},
		profiles: map[string]*StudentProfile{
			"student-1": {ID: "student-1", Email: "alice@school.edu"},
		},
	}
	runner, requestQueue := testRunner(classroom)

	request := KeyedGradeRequest{
		GradeRequest: GradeRequest{CourseID: "course-1", AssignmentID: "hw-1"},
		RunID:        "run-1",
		EnqueuedAt:   time.Now(),
	}
	ok, err := requestQueue.Enqueue(request)
	require.NoError(t, err)
	require.True(t, ok)

	runner.Start()
	defer runner.Stop()
	assert.True(t, runner.Running())

	batch := waitForResults(t, runner, "run-1")
	assert.Equal(t, 1, batch.Delivered)
	assert.Equal(t, 0, requestQueue.Size())
	assert.Equal(t, "", runner.ActiveRun())
}

func TestRunnerStartStop(t *testing.T) {
	runner, _ := testRunner(&fakeClassroom{})

	runner.Start()
	assert.True(t, runner.Running())

	// double start is a no-op
	runner.Start()
	assert.True(t, runner.Running())

	runner.Stop()
	deadline := time.Now().Add(2 * time.Second)
	for runner.Running() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.False(t, runner.Running())
}

func TestRunnerStopDuringActiveRun(t *testing.T) {
	gate := make(chan struct{})
	classroom := &fakeClassroom{
		listGate: gate,
		submissions: []RawSubmission{
			docRawSubmission("sub-1", "student-1", "doc-1"),
		},
		profiles: map[string]*StudentProfile{
			"student-1": {ID: "student-1", Email: "alice@school.edu"},
		},
	}
	runner, requestQueue := testRunner(classroom)

	request := KeyedGradeRequest{
		GradeRequest: GradeRequest{CourseID: "course-1", AssignmentID: "hw-1"},
		RunID:        "run-1",
	}
	ok, err := requestQueue.Enqueue(request)
	require.NoError(t, err)
	require.True(t, ok)

	runner.Start()

	// wait until the run is in flight, parked inside ListSubmissions
	deadline := time.Now().Add(2 * time.Second)
	for runner.ActiveRun() != "run-1" && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, "run-1", runner.ActiveRun())

	// a stop during an active run queues the signal and returns; it must not
	// wedge the runner accessors behind a pending write lock
	stopped := make(chan struct{})
	go func() {
		runner.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked while a run was active")
	}
	assert.True(t, runner.Running())
	assert.Equal(t, "run-1", runner.ActiveRun())

	// release the run; the loop finishes the batch and drains the stop
	close(gate)
	batch := waitForResults(t, runner, "run-1")
	assert.Equal(t, 1, batch.Delivered)

	deadline = time.Now().Add(3 * time.Second)
	for runner.Running() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.False(t, runner.Running())
}

func TestRunnerAbortUnknownRun(t *testing.T) {
	runner, _ := testRunner(&fakeClassroom{})
	assert.False(t, runner.Abort("run-404"))
}

func TestRunnerResultsUnknownRun(t *testing.T) {
	runner, _ := testRunner(&fakeClassroom{})
	_, ok := runner.Results("run-404")
	assert.False(t, ok)
}
