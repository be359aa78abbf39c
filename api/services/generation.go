package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/pkg/errors"

	"github.com/classroom-tools/grader-pipeline/api/pipeline"
	"github.com/classroom-tools/grader-pipeline/config"
)

// GenerationService implements pipeline.GenerationClient against the
// language-generation REST API.
type GenerationService struct {
	*restClient
	model string
}

// NewGenerationService creates a generation client from the environment.
func NewGenerationService(cfg *config.Config) *GenerationService {
	// the generation service authenticates by API key, not bearer token
	client := newRESTClient(cfg, "generation", cfg.Environment.GenerationAddr, "")
	client.apiKey = cfg.Environment.GenerationKey
	return &GenerationService{
		restClient: client,
		model:      cfg.Environment.GenerationModel,
	}
}

type generatePart struct {
	Text string `json:"text"`
}

type generateContent struct {
	Parts []generatePart `json:"parts"`
}

type generateRequest struct {
	Contents []generateContent `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content      generateContent `json:"content"`
		FinishReason string          `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// GenerateFeedback submits one prompt and returns the generated text.  A
// safety block or an empty candidate list is a permanent GenerationError;
// transport faults keep their transient classification from the shared
// client.
func (s *GenerationService) GenerateFeedback(ctx context.Context, prompt string) (string, error) {
	request := generateRequest{
		Contents: []generateContent{{Parts: []generatePart{{Text: prompt}}}},
	}

	body, err := json.Marshal(request)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal generation request")
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", s.baseURL, url.PathEscape(s.model))
	payload, err := s.do(ctx, "POST", endpoint, bytes.NewReader(body), "application/json")
	if err != nil {
		return "", err
	}

	var response generateResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		return "", errors.Wrap(err, "failed to unmarshal generation response")
	}

	if response.PromptFeedback.BlockReason != "" {
		return "", &pipeline.GenerationError{Reason: "prompt blocked: " + response.PromptFeedback.BlockReason}
	}
	if len(response.Candidates) == 0 {
		return "", &pipeline.GenerationError{Reason: "response contained no candidates"}
	}

	text := ""
	for _, part := range response.Candidates[0].Content.Parts {
		text += part.Text
	}
	if text == "" {
		return "", &pipeline.GenerationError{Reason: "candidate contained no text"}
	}
	return text, nil
}
