package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// Environment contains the imported environment variables.
type Environment struct {
	// Debug vs Deploy
	Mode string `default:"dev"`
	// Port to listen on
	Addr string `default:":4060"`

	// Classroom API base address
	ClassroomAddr string `default:"https://classroom.googleapis.com/v1" split_words:"true"`
	// Drive/Docs/Forms content source base address
	ContentSourceAddr string `default:"https://www.googleapis.com" split_words:"true"`
	// Forms API base address
	FormsAddr string `default:"https://forms.googleapis.com/v1" split_words:"true"`
	// Feedback generation service base address
	GenerationAddr string `default:"https://generativelanguage.googleapis.com/v1beta" split_words:"true"`
	// Mail service base address
	MailAddr string `default:"https://gmail.googleapis.com/gmail/v1" split_words:"true"`
	// Bearer token for the classroom/drive/mail surface, minted by the auth tooling
	APIToken string `split_words:"true"`
	// API key for the generation service
	GenerationKey string `split_words:"true"`
	// Generation model identifier
	GenerationModel string `default:"gemini-1.5-flash-latest" split_words:"true"`
	// Upper bound on submission content handed to the generation service, in runes
	GenerationInputLimit int `default:"30000" split_words:"true"`

	// Per-call timeout for all collaborator requests
	CallTimeoutSec int `default:"30" split_words:"true"`
	// Page size for classroom list calls
	PageSize int `default:"50" split_words:"true"`

	// Retry tuning for transient collaborator failures
	RetryMaxAttempts    int     `default:"3" split_words:"true"`
	RetryInitialDelayMs int     `default:"1000" split_words:"true"`
	RetryMaxDelayMs     int     `default:"30000" split_words:"true"`
	RetryBackoffFactor  float64 `default:"2.0" split_words:"true"`
	RetryJitter         float64 `default:"0.1" split_words:"true"`

	// Number of submissions processed concurrently within one run
	PipelineWorkers int `default:"2" split_words:"true"`
	// Feedback delivery channels
	PostComments bool `default:"true" split_words:"true"`
	SendEmails   bool `default:"false" split_words:"true"`
	// Confirmation mode: auto, batch or submission
	ConfirmMode string `default:"batch" split_words:"true"`
	// How long a run waits on a confirmation signal before skipping delivery
	ConfirmTimeoutSec int `default:"3600" split_words:"true"`

	// Queue polling interval for the runner
	PollIntervalSec int `default:"2" split_words:"true"`
	// Grading queue request size
	QueueSize int `default:"100" split_words:"true"`
	// Enable idempotency checks when enqueuing
	QueueIdempotencyChecks bool `default:"true" split_words:"true"`
	// Use persisted queue or default (memory only) queue.
	PersistedQueue bool `default:"true" split_words:"true"`
	// Directory to store the queue data in when persisted queue is used.
	QueueDir string `default:"./" split_words:"true"`
	// Name of queue when persisted queue is used.
	QueueName string `default:"grading_queue" split_words:"true"`
}

const (
	// ConfirmAuto approves every submission without waiting on a signal.
	ConfirmAuto = "auto"
	// ConfirmBatch waits for a single confirmation signal covering the whole run.
	ConfirmBatch = "batch"
	// ConfirmSubmission waits for one confirmation signal per submission.
	ConfirmSubmission = "submission"
)

func (e Environment) String() string {
	settings, err := json.MarshalIndent(e, "", "    ")
	if err != nil {
		return fmt.Errorf("Failed to marshal env: %v", err).Error()
	}
	return fmt.Sprintf("Environment Settings:\n%s\n", string(settings))
}

// Load imports the environment variables and returns them in an Environment.
func Load(envFile string) (*Environment, error) {
	testEnv := os.Getenv("GRADER_MODE")
	// if no env var in existing environment, load environment file from the .env file,
	// otherwise (in production) just check existing host environment
	if "" == testEnv {
		err := godotenv.Load(envFile)
		if err != nil {
			return nil, errors.Wrapf(err, "Error loading %s file", envFile)
		}
	}

	var env Environment
	err := envconfig.Process("grader", &env)
	if err != nil {
		return nil, errors.Wrap(err, "Error processing environment config")
	}
	return &env, err
}
