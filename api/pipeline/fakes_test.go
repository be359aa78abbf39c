package pipeline

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/classroom-tools/grader-pipeline/config"
)

// testConfig builds a config with fast retry timing so tests don't sit in
// backoff sleeps.
func testConfig() *config.Config {
	return &config.Config{
		Logger: zap.NewNop().Sugar(),
		Environment: &config.Environment{
			RetryMaxAttempts:     3,
			RetryInitialDelayMs:  1,
			RetryMaxDelayMs:      5,
			RetryBackoffFactor:   2.0,
			RetryJitter:          0,
			GenerationInputLimit: 30000,
			PipelineWorkers:      2,
			PostComments:         true,
			SendEmails:           false,
			ConfirmMode:          config.ConfirmBatch,
			ConfirmTimeoutSec:    1,
			PollIntervalSec:      1,
		},
	}
}

func transient(msg string) error {
	return &TransientError{Err: errors.New(msg)}
}

func authFailure(service string) error {
	return &AuthorizationError{Service: service, Err: errors.New("token expired")}
}

type fakeClassroom struct {
	mutex sync.Mutex

	assignment    *Assignment
	assignmentErr error
	submissions   []RawSubmission
	listErr       error
	// listGate, when set, parks ListSubmissions until the channel is closed
	listGate chan struct{}
	profiles      map[string]*StudentProfile
	profileErr    error
	commentErr    error

	comments []string
}

func (f *fakeClassroom) GetAssignment(ctx context.Context, courseID, assignmentID string) (*Assignment, error) {
	if f.assignmentErr != nil {
		return nil, f.assignmentErr
	}
	return f.assignment, nil
}

func (f *fakeClassroom) ListSubmissions(ctx context.Context, courseID, assignmentID string) ([]RawSubmission, error) {
	if f.listGate != nil {
		<-f.listGate
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.submissions, nil
}

func (f *fakeClassroom) GetStudentProfile(ctx context.Context, userID string) (*StudentProfile, error) {
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	if profile, ok := f.profiles[userID]; ok {
		return profile, nil
	}
	return nil, errors.Errorf("unknown student %s", userID)
}

func (f *fakeClassroom) PostPrivateComment(ctx context.Context, courseID, assignmentID, submissionID, text string) error {
	if f.commentErr != nil {
		return f.commentErr
	}
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.comments = append(f.comments, text)
	return nil
}

func (f *fakeClassroom) commentCount() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return len(f.comments)
}

type fakeSource struct {
	mutex sync.Mutex

	docs      map[string]string
	files     map[string]string
	responses map[string][]FormResponse

	// failuresLeft injects that many transient failures before calls start
	// succeeding
	failuresLeft int
	exportErr    error
	calls        int

	// export mime types requested through ExportDocument, in call order
	docFormats []string
}

func (f *fakeSource) fail() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.calls++
	if f.exportErr != nil {
		return f.exportErr
	}
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return transient("service unavailable")
	}
	return nil
}

func (f *fakeSource) callCount() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.calls
}

func (f *fakeSource) ExportDocument(ctx context.Context, docID, mimeType string) (string, error) {
	f.mutex.Lock()
	f.docFormats = append(f.docFormats, mimeType)
	f.mutex.Unlock()
	if err := f.fail(); err != nil {
		return "", err
	}
	text, ok := f.docs[docID]
	if !ok {
		return "", errors.Errorf("unknown document %s", docID)
	}
	return text, nil
}

func (f *fakeSource) ExportDriveFile(ctx context.Context, fileID, mimeType string) (string, error) {
	if err := f.fail(); err != nil {
		return "", err
	}
	text, ok := f.files[fileID]
	if !ok {
		return "", errors.Errorf("unknown file %s", fileID)
	}
	return text, nil
}

func (f *fakeSource) ListFormResponses(ctx context.Context, formID string) ([]FormResponse, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.responses[formID], nil
}

type fakeGeneration struct {
	mutex sync.Mutex

	text  string
	err   error
	calls int
}

func (f *fakeGeneration) GenerateFeedback(ctx context.Context, prompt string) (string, error) {
	f.mutex.Lock()
	f.calls++
	f.mutex.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func (f *fakeGeneration) callCount() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.calls
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type fakeMail struct {
	mutex sync.Mutex

	err  error
	sent []sentMail
}

func (f *fakeMail) SendMessage(ctx context.Context, to, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.sent = append(f.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (f *fakeMail) sentCount() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return len(f.sent)
}
