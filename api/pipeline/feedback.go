package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/classroom-tools/grader-pipeline/config"
)

// Prompt scaffold handed to the generation service.  Assignment context is
// prepended so the feedback references what was actually asked.
const promptTemplate = `You are a helpful teaching assistant providing feedback on a student's assignment submission.

Focus on being constructive, specific, and encouraging.

Assignment: %s
%s
Review the following submission content:

%s

Provide personalized feedback for the student:`

// Feedback is generated text tied to one submission.  Not final until the
// confirmation gate approves it.
type Feedback struct {
	SubmissionID string
	Text         string
	// FromTruncated records that the prompt content was cut to the input
	// limit, so reviewers know the feedback may not cover the full work.
	FromTruncated bool
}

// FeedbackGenerator composes generation prompts and obtains draft feedback
// through the retry policy.
type FeedbackGenerator struct {
	config.Config
	client GenerationClient
	retry  RetryPolicy
}

// NewFeedbackGenerator creates a generator bound to the generation
// collaborator.
func NewFeedbackGenerator(cfg *config.Config, client GenerationClient) *FeedbackGenerator {
	return &FeedbackGenerator{
		Config: *cfg,
		client: client,
		retry:  NewRetryPolicy(cfg.Environment),
	}
}

// Generate builds one prompt from the assignment context and the extracted
// content, then requests feedback.  Transient service faults are retried;
// empty or safety-blocked responses are permanent GenerationErrors.
func (g *FeedbackGenerator) Generate(ctx context.Context, assignment *Assignment, sub Submission, content *ExtractedContent) (*Feedback, error) {
	prompt := g.buildPrompt(assignment, content)

	var text string
	err := g.retry.Run(ctx, func(ctx context.Context) error {
		var callErr error
		text, callErr = g.client.GenerateFeedback(ctx, prompt)
		return callErr
	}, ClassifyError)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(text) == "" {
		return nil, &GenerationError{Reason: "response contained no usable text"}
	}

	return &Feedback{
		SubmissionID:  sub.ID(),
		Text:          text,
		FromTruncated: content.Truncated,
	}, nil
}

func (g *FeedbackGenerator) buildPrompt(assignment *Assignment, content *ExtractedContent) string {
	title := "(untitled)"
	instructions := ""
	if assignment != nil {
		if assignment.Title != "" {
			title = assignment.Title
		}
		if assignment.Instructions != "" {
			instructions = "Instructions: " + assignment.Instructions + "\n"
		}
	}
	return fmt.Sprintf(promptTemplate, title, instructions, content.Text)
}
