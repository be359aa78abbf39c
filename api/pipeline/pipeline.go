package pipeline

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/classroom-tools/grader-pipeline/config"
)

// Submission states the classroom platform reports that are worth grading.
// Anything else (returned, reclaimed, new drafts) is skipped up front.
var processableStates = map[string]bool{
	"TURNED_IN": true,
	"CREATED":   true,
}

// Pipeline drives one batch run: classify, extract, generate, confirm and
// deliver every submission of an assignment.  Per-submission failures are
// strictly local; only an authorization failure aborts the batch.
type Pipeline struct {
	config.Config
	classroom  ClassroomClient
	extractor  *Extractor
	generator  *FeedbackGenerator
	dispatcher *DeliveryDispatcher
	gate       ConfirmationGate
	retry      RetryPolicy
	workers    int
}

// NewPipeline wires the pipeline over its collaborators.
func NewPipeline(
	cfg *config.Config,
	classroom ClassroomClient,
	source ContentSource,
	generation GenerationClient,
	mail MailClient,
	gate ConfirmationGate,
) *Pipeline {
	workers := cfg.Environment.PipelineWorkers
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		Config:     *cfg,
		classroom:  classroom,
		extractor:  NewExtractor(cfg, source),
		generator:  NewFeedbackGenerator(cfg, generation),
		dispatcher: NewDeliveryDispatcher(cfg, classroom, mail),
		gate:       gate,
		retry:      NewRetryPolicy(cfg.Environment),
		workers:    workers,
	}
}

// Run processes every submission of the requested assignment and returns the
// accumulated BatchRun.  The returned error is non-nil only for batch-fatal
// conditions (authorization failure, or the submission list being
// unobtainable); the partial BatchRun is returned alongside it either way.
func (p *Pipeline) Run(ctx context.Context, request *KeyedGradeRequest) (*BatchRun, error) {
	batch := NewBatchRun(request.RunID, request.CourseID, request.AssignmentID)
	defer batch.Finish()

	// drop stored reviewer decisions once the run is over so a recycled run
	// id can never pick up stale state
	if forgetter, ok := p.gate.(interface{ Forget(runID string) }); ok {
		defer forgetter.Forget(request.RunID)
	}

	assignment, err := p.fetchAssignment(ctx, request)
	if err != nil {
		if IsAuthorization(err) {
			batch.Abort(err.Error())
			return batch, err
		}
		// the assignment context enriches prompts but isn't required for them
		p.Logger.Warnf("could not fetch assignment %s: %v", request.AssignmentID, err)
	}

	submissions, err := p.listSubmissions(ctx, request)
	if err != nil {
		batch.Abort(err.Error())
		return batch, err
	}
	p.Logger.Infof("run %s: %d submissions to process", request.RunID, len(submissions))

	channels := request.Channels(p.Environment.PostComments, p.Environment.SendEmails)

	// Workers pull independent submissions off a shared feed.  The run
	// context is cancelled on abort so no further submissions are started;
	// submissions already in flight finish and record their own result.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var abortErr error
	var abortOnce sync.Once
	abort := func(err error) {
		abortOnce.Do(func() {
			abortErr = err
			batch.Abort(err.Error())
			cancel()
		})
	}

	feed := make(chan RawSubmission)
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for raw := range feed {
				// a submission already handed over when the abort landed is
				// drained, not started
				if runCtx.Err() != nil {
					continue
				}
				result, err := p.process(runCtx, request, assignment, raw, channels)
				if result != nil {
					batch.Record(*result)
				}
				if err != nil {
					abort(err)
				}
			}
		}()
	}

feedLoop:
	for _, raw := range submissions {
		select {
		case <-runCtx.Done():
			break feedLoop
		case feed <- raw:
		}
	}
	close(feed)
	wg.Wait()

	if abortErr != nil {
		return batch, abortErr
	}
	if err := ctx.Err(); err != nil {
		batch.Abort("run cancelled")
		return batch, err
	}
	return batch, nil
}

// process advances one submission through the stage machine and returns its
// terminal result.  The error return is non-nil only for batch-fatal
// failures; everything else is folded into the result.
func (p *Pipeline) process(
	ctx context.Context,
	request *KeyedGradeRequest,
	assignment *Assignment,
	raw RawSubmission,
	channels DeliveryChannels,
) (*ProcessingResult, error) {
	result := &ProcessingResult{SubmissionID: raw.ID, StudentID: raw.UserID}

	if !processableStates[raw.State] {
		result.Outcome = OutcomeSkipped
		result.StageReached = StageClassify
		result.ErrorDetail = "submission state " + raw.State + " is not processable"
		return result, nil
	}

	sub, err := Classify(raw)
	if err != nil {
		result.Outcome = OutcomeSkipped
		result.StageReached = StageClassify
		result.ErrorDetail = err.Error()
		return result, nil
	}

	// the student profile feeds forms matching and email delivery; losing it
	// degrades those paths but doesn't fail the submission
	student, err := p.fetchStudent(ctx, raw.UserID)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.StageReached = StageExtract
		result.ErrorDetail = err.Error()
		return result, err
	}
	var studentEmail string
	if student != nil {
		studentEmail = student.Email
	}

	content, err := p.extractor.Extract(ctx, sub, studentEmail)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.StageReached = StageExtract
		result.ErrorDetail = err.Error()
		if IsAuthorization(err) {
			return result, err
		}
		return result, nil
	}

	feedback, err := p.generator.Generate(ctx, assignment, sub, content)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.StageReached = StageGenerate
		result.ErrorDetail = err.Error()
		if IsAuthorization(err) {
			return result, err
		}
		return result, nil
	}

	decision, err := p.gate.Await(ctx, request.RunID, sub.ID())
	if decision != DecisionApprove {
		result.Outcome = OutcomeSkipped
		result.StageReached = StageConfirm
		if err != nil {
			result.ErrorDetail = err.Error()
		} else {
			result.ErrorDetail = "feedback rejected by reviewer"
		}
		return result, nil
	}

	if channels.None() {
		result.Outcome = OutcomeSkipped
		result.StageReached = StageConfirm
		result.ErrorDetail = "no delivery channel requested"
		return result, nil
	}

	failures := p.dispatcher.Deliver(ctx, request.CourseID, request.AssignmentID, sub, student, assignment, feedback, channels)
	if len(failures) > 0 {
		names := make([]string, len(failures))
		details := make([]string, len(failures))
		for i, failure := range failures {
			names[i] = failure.Channel
			details[i] = failure.Error()
		}
		result.Outcome = OutcomeFailed
		result.StageReached = StageDeliver
		result.ErrorDetail = "failed channels [" + strings.Join(names, ", ") + "]: " + strings.Join(details, "; ")
		for _, failure := range failures {
			if IsAuthorization(failure) {
				return result, failure
			}
		}
		return result, nil
	}

	result.Outcome = OutcomeDelivered
	result.StageReached = StageDeliver
	return result, nil
}

func (p *Pipeline) fetchAssignment(ctx context.Context, request *KeyedGradeRequest) (*Assignment, error) {
	var assignment *Assignment
	err := p.retry.Run(ctx, func(ctx context.Context) error {
		var callErr error
		assignment, callErr = p.classroom.GetAssignment(ctx, request.CourseID, request.AssignmentID)
		return callErr
	}, ClassifyError)
	return assignment, err
}

func (p *Pipeline) listSubmissions(ctx context.Context, request *KeyedGradeRequest) ([]RawSubmission, error) {
	var submissions []RawSubmission
	err := p.retry.Run(ctx, func(ctx context.Context) error {
		var callErr error
		submissions, callErr = p.classroom.ListSubmissions(ctx, request.CourseID, request.AssignmentID)
		return callErr
	}, ClassifyError)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list submissions for assignment %s", request.AssignmentID)
	}
	return submissions, nil
}

// fetchStudent resolves the submitting student's profile.  Ordinary lookup
// failures are tolerated (the profile only enriches later stages) but an
// authorization failure is surfaced so the batch can abort.
func (p *Pipeline) fetchStudent(ctx context.Context, userID string) (*StudentProfile, error) {
	var student *StudentProfile
	err := p.retry.Run(ctx, func(ctx context.Context) error {
		var callErr error
		student, callErr = p.classroom.GetStudentProfile(ctx, userID)
		return callErr
	}, ClassifyError)
	if err != nil {
		if IsAuthorization(err) {
			return nil, err
		}
		p.Logger.Warnf("could not fetch profile for student %s: %v", userID, err)
		return nil, nil
	}
	return student, nil
}
