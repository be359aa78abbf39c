package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/classroom-tools/grader-pipeline/api/pipeline"
	"github.com/classroom-tools/grader-pipeline/config"
)

// SourceService implements pipeline.ContentSource over the drive and forms
// REST APIs.  Editor documents are exported through drive's export endpoint;
// plain files are downloaded directly; form answers come from the forms
// responses listing.
type SourceService struct {
	drive *restClient
	forms *restClient
}

// NewSourceService creates a content source client from the environment.
func NewSourceService(cfg *config.Config) *SourceService {
	base := cfg.Environment.ContentSourceAddr
	token := cfg.Environment.APIToken
	return &SourceService{
		drive: newRESTClient(cfg, "drive", base+"/drive/v3", token),
		forms: newRESTClient(cfg, "forms", cfg.Environment.FormsAddr, token),
	}
}

// ExportDocument exports an editor document's body as text.  The export
// mime type comes from the classifier's per-editor-type table: documents
// and slides export as text/plain, spreadsheets as text/csv.
func (s *SourceService) ExportDocument(ctx context.Context, docID, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = "text/plain"
	}
	endpoint := fmt.Sprintf("%s/files/%s/export?mimeType=%s",
		s.drive.baseURL, url.PathEscape(docID), url.QueryEscape(mimeType))
	payload, err := s.drive.do(ctx, "GET", endpoint, nil, "")
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

// ExportDriveFile downloads a drive file's content.  The caller has already
// gated on mime type; the bytes are decoded as utf-8 with a latin-1
// fallback for legacy text files.
func (s *SourceService) ExportDriveFile(ctx context.Context, fileID, mimeType string) (string, error) {
	endpoint := fmt.Sprintf("%s/files/%s?alt=media", s.drive.baseURL, url.PathEscape(fileID))
	payload, err := s.drive.do(ctx, "GET", endpoint, nil, "")
	if err != nil {
		return "", err
	}
	return decodeText(payload), nil
}

// decodeText interprets file bytes as utf-8, falling back to latin-1 when
// the payload isn't valid utf-8.  Latin-1 maps every byte to a rune, so the
// fallback always yields a string.
func decodeText(payload []byte) string {
	if utf8.Valid(payload) {
		return string(payload)
	}
	runes := make([]rune, len(payload))
	for i, b := range payload {
		runes[i] = rune(b)
	}
	return string(runes)
}

type formDefinition struct {
	Items []struct {
		Title        string `json:"title"`
		QuestionItem *struct {
			Question struct {
				QuestionID string `json:"questionId"`
			} `json:"question"`
		} `json:"questionItem"`
	} `json:"items"`
}

type formResponseList struct {
	Responses []struct {
		ResponseID        string `json:"responseId"`
		RespondentEmail   string `json:"respondentEmail"`
		Answers           map[string]formAnswer `json:"answers"`
		LastSubmittedTime string `json:"lastSubmittedTime"`
	} `json:"responses"`
}

type formAnswer struct {
	QuestionID  string `json:"questionId"`
	TextAnswers struct {
		Answers []struct {
			Value string `json:"value"`
		} `json:"answers"`
	} `json:"textAnswers"`
}

// ListFormResponses fetches a form's structure and all of its responses,
// pairing each answer with its question title.
func (s *SourceService) ListFormResponses(ctx context.Context, formID string) ([]pipeline.FormResponse, error) {
	formEndpoint := fmt.Sprintf("%s/forms/%s", s.forms.baseURL, url.PathEscape(formID))
	formPayload, err := s.forms.do(ctx, "GET", formEndpoint, nil, "")
	if err != nil {
		return nil, err
	}
	var definition formDefinition
	if err := json.Unmarshal(formPayload, &definition); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal form definition")
	}

	// answers get paired with questions in the form's own question order
	type formQuestion struct {
		id    string
		title string
	}
	var questions []formQuestion
	for _, item := range definition.Items {
		if item.QuestionItem != nil {
			questions = append(questions, formQuestion{
				id:    item.QuestionItem.Question.QuestionID,
				title: item.Title,
			})
		}
	}

	responsesEndpoint := fmt.Sprintf("%s/forms/%s/responses", s.forms.baseURL, url.PathEscape(formID))
	responsesPayload, err := s.forms.do(ctx, "GET", responsesEndpoint, nil, "")
	if err != nil {
		return nil, err
	}
	var list formResponseList
	if err := json.Unmarshal(responsesPayload, &list); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal form responses")
	}

	converted := make([]pipeline.FormResponse, 0, len(list.Responses))
	for _, resp := range list.Responses {
		response := pipeline.FormResponse{
			ResponseID:      resp.ResponseID,
			RespondentEmail: resp.RespondentEmail,
		}

		matched := map[string]bool{}
		for _, question := range questions {
			answer, ok := resp.Answers[question.id]
			if !ok {
				continue
			}
			matched[question.id] = true
			response.Answers = append(response.Answers, pipeline.FormAnswer{
				Question: question.title,
				Answer:   joinTextAnswers(answer),
			})
		}

		// answers to questions absent from the definition (deleted items)
		// trail in a stable id order
		var orphaned []string
		for questionID := range resp.Answers {
			if !matched[questionID] {
				orphaned = append(orphaned, questionID)
			}
		}
		sort.Strings(orphaned)
		for _, questionID := range orphaned {
			response.Answers = append(response.Answers, pipeline.FormAnswer{
				Question: questionID,
				Answer:   joinTextAnswers(resp.Answers[questionID]),
			})
		}

		converted = append(converted, response)
	}
	return converted, nil
}

func joinTextAnswers(answer formAnswer) string {
	text := ""
	for i, value := range answer.TextAnswers.Answers {
		if i > 0 {
			text += "; "
		}
		text += value.Value
	}
	return text
}
