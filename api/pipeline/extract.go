package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/classroom-tools/grader-pipeline/config"
)

// Drive file mime types the content source can convert to plain text.
// Everything else (images, PDFs, archives, raw binaries) is unsupported.
var convertibleMimeTypes = map[string]bool{
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.oasis.opendocument.text":                                 true,
	"application/rtf": true,
}

// ExtractedContent is the normalized text pulled out of one submission.
// Discarded once the submission reaches a terminal state; never persisted.
type ExtractedContent struct {
	Text string
	// Source is the provenance tag of the variant that produced the text.
	Source string
	// Truncated is set when the text was cut down to the generation input
	// limit.  Surfaced to the caller, never silently dropped.
	Truncated bool
}

// Extractor turns classified submissions into plain text through the
// content-source collaborator.  Dispatch is polymorphic over the submission
// variants; each variant implements its own extract.
type Extractor struct {
	config.Config
	source     ContentSource
	retry      RetryPolicy
	inputLimit int
}

// NewExtractor creates an extractor bound to the given content source.
func NewExtractor(cfg *config.Config, source ContentSource) *Extractor {
	return &Extractor{
		Config:     *cfg,
		source:     source,
		retry:      NewRetryPolicy(cfg.Environment),
		inputLimit: cfg.Environment.GenerationInputLimit,
	}
}

// Extract produces the submission's normalized content, or an
// ExtractionError when the variant's source material cannot be turned into
// text.  Authorization failures pass through unwrapped so the batch can
// abort.  studentEmail feeds the forms respondent-matching heuristic and may
// be empty.
func (e *Extractor) Extract(ctx context.Context, sub Submission, studentEmail string) (*ExtractedContent, error) {
	text, err := sub.extract(ctx, e, studentEmail)
	if err != nil {
		if IsAuthorization(err) {
			return nil, err
		}
		return nil, &ExtractionError{SubmissionID: sub.ID(), Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return nil, &ExtractionError{
			SubmissionID: sub.ID(),
			Err:          errors.New("extracted content is empty"),
		}
	}

	content := &ExtractedContent{Text: text, Source: sub.Kind()}
	if runes := []rune(text); e.inputLimit > 0 && len(runes) > e.inputLimit {
		content.Text = string(runes[:e.inputLimit])
		content.Truncated = true
		e.Logger.Warnf("content for submission %s truncated from %d to %d runes", sub.ID(), len(runes), e.inputLimit)
	}
	return content, nil
}

func (s *DocSubmission) extract(ctx context.Context, ex *Extractor, _ string) (string, error) {
	var text string
	err := ex.retry.Run(ctx, func(ctx context.Context) error {
		var callErr error
		text, callErr = ex.source.ExportDocument(ctx, s.DocID, s.ExportFormat)
		return callErr
	}, ClassifyError)
	if err != nil {
		return "", errors.Wrapf(err, "failed to export document %s", s.DocID)
	}
	return text, nil
}

func (s *DriveFileSubmission) extract(ctx context.Context, ex *Extractor, _ string) (string, error) {
	if !strings.HasPrefix(s.MimeType, "text/") && !convertibleMimeTypes[s.MimeType] {
		return "", &UnsupportedFormatError{MimeType: s.MimeType}
	}

	var text string
	err := ex.retry.Run(ctx, func(ctx context.Context) error {
		var callErr error
		text, callErr = ex.source.ExportDriveFile(ctx, s.FileID, s.MimeType)
		return callErr
	}, ClassifyError)
	if err != nil {
		return "", errors.Wrapf(err, "failed to export drive file %s", s.FileID)
	}
	return text, nil
}

func (s *FormsSubmission) extract(ctx context.Context, ex *Extractor, studentEmail string) (string, error) {
	var responses []FormResponse
	err := ex.retry.Run(ctx, func(ctx context.Context) error {
		var callErr error
		responses, callErr = ex.source.ListFormResponses(ctx, s.FormID)
		return callErr
	}, ClassifyError)
	if err != nil {
		return "", errors.Wrapf(err, "failed to list responses for form %s", s.FormID)
	}

	match, err := s.matchResponse(responses, studentEmail)
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	for _, answer := range match.Answers {
		fmt.Fprintf(&builder, "Q: %s\nA: %s\n\n", answer.Question, answer.Answer)
	}
	return builder.String(), nil
}

// matchResponse locates the submitting student's response.  The linked
// response id is authoritative when the platform supplies one; otherwise the
// respondent email is compared against the student's profile email.  This
// fallback is a documented best-effort heuristic: when neither matches, the
// extraction fails rather than guessing.
func (s *FormsSubmission) matchResponse(responses []FormResponse, studentEmail string) (*FormResponse, error) {
	if s.ResponseID != "" {
		for i := range responses {
			if responses[i].ResponseID == s.ResponseID {
				return &responses[i], nil
			}
		}
		return nil, errors.Errorf("linked response %s not found in form %s", s.ResponseID, s.FormID)
	}

	if studentEmail != "" {
		for i := range responses {
			if strings.EqualFold(responses[i].RespondentEmail, studentEmail) {
				return &responses[i], nil
			}
		}
	}
	return nil, errors.Errorf("no response in form %s matches student %s", s.FormID, s.studentID)
}
