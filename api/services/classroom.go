package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/classroom-tools/grader-pipeline/api/pipeline"
	"github.com/classroom-tools/grader-pipeline/config"
)

// ClassroomService implements pipeline.ClassroomClient against the classroom
// REST API.
type ClassroomService struct {
	*restClient
	pageSize int
}

// NewClassroomService creates a classroom client from the environment.
func NewClassroomService(cfg *config.Config) *ClassroomService {
	return &ClassroomService{
		restClient: newRESTClient(cfg, "classroom", cfg.Environment.ClassroomAddr, cfg.Environment.APIToken),
		pageSize:   cfg.Environment.PageSize,
	}
}

type courseWorkResponse struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	MaxPoints   float64 `json:"maxPoints"`
}

// GetAssignment fetches the course work record backing a grading run.
func (s *ClassroomService) GetAssignment(ctx context.Context, courseID, assignmentID string) (*pipeline.Assignment, error) {
	endpoint := fmt.Sprintf("%s/courses/%s/courseWork/%s", s.baseURL, url.PathEscape(courseID), url.PathEscape(assignmentID))
	payload, err := s.do(ctx, "GET", endpoint, nil, "")
	if err != nil {
		return nil, err
	}

	var work courseWorkResponse
	if err := json.Unmarshal(payload, &work); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal course work")
	}
	return &pipeline.Assignment{
		ID:           work.ID,
		Title:        work.Title,
		Instructions: work.Description,
		MaxPoints:    work.MaxPoints,
	}, nil
}

type studentSubmissionList struct {
	StudentSubmissions []studentSubmission `json:"studentSubmissions"`
	NextPageToken      string              `json:"nextPageToken"`
}

type studentSubmission struct {
	ID                   string   `json:"id"`
	UserID               string   `json:"userId"`
	State                string   `json:"state"`
	AssignedGrade        *float64 `json:"assignedGrade"`
	AssignmentSubmission struct {
		Attachments []struct {
			DriveFile *struct {
				ID       string `json:"id"`
				Title    string `json:"title"`
				MimeType string `json:"mimeType"`
			} `json:"driveFile"`
			Form *struct {
				FormURL     string `json:"formUrl"`
				ResponseURL string `json:"responseUrl"`
				Title       string `json:"title"`
			} `json:"form"`
			Link *struct {
				URL   string `json:"url"`
				Title string `json:"title"`
			} `json:"link"`
		} `json:"attachments"`
	} `json:"assignmentSubmission"`
}

// ListSubmissions fetches every student submission for the assignment,
// following pagination.
func (s *ClassroomService) ListSubmissions(ctx context.Context, courseID, assignmentID string) ([]pipeline.RawSubmission, error) {
	var submissions []pipeline.RawSubmission
	pageToken := ""

	for {
		endpoint := fmt.Sprintf("%s/courses/%s/courseWork/%s/studentSubmissions?pageSize=%s",
			s.baseURL, url.PathEscape(courseID), url.PathEscape(assignmentID), strconv.Itoa(s.pageSize))
		if pageToken != "" {
			endpoint += "&pageToken=" + url.QueryEscape(pageToken)
		}

		payload, err := s.do(ctx, "GET", endpoint, nil, "")
		if err != nil {
			return nil, err
		}

		var page studentSubmissionList
		if err := json.Unmarshal(payload, &page); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal submission list")
		}

		for _, sub := range page.StudentSubmissions {
			submissions = append(submissions, convertSubmission(sub))
		}

		if page.NextPageToken == "" {
			return submissions, nil
		}
		pageToken = page.NextPageToken
	}
}

func convertSubmission(sub studentSubmission) pipeline.RawSubmission {
	raw := pipeline.RawSubmission{
		ID:            sub.ID,
		UserID:        sub.UserID,
		State:         sub.State,
		AssignedGrade: sub.AssignedGrade,
	}
	for _, att := range sub.AssignmentSubmission.Attachments {
		converted := pipeline.Attachment{}
		switch {
		case att.DriveFile != nil:
			converted.DriveFile = &pipeline.DriveFileRef{
				ID:       att.DriveFile.ID,
				Title:    att.DriveFile.Title,
				MimeType: att.DriveFile.MimeType,
			}
		case att.Form != nil:
			converted.Form = &pipeline.FormRef{
				FormID:     formIDFromURL(att.Form.FormURL),
				ResponseID: responseIDFromURL(att.Form.ResponseURL),
				Title:      att.Form.Title,
			}
		case att.Link != nil:
			converted.Link = &pipeline.LinkRef{URL: att.Link.URL, Title: att.Link.Title}
		default:
			continue
		}
		raw.Attachments = append(raw.Attachments, converted)
	}
	return raw
}

// formIDFromURL pulls the form id out of a canonical form URL of the shape
// .../forms/d/<id>/... or .../d/e/<id>/....  Returns empty when the URL
// doesn't match.
func formIDFromURL(formURL string) string {
	parsed, err := url.Parse(formURL)
	if err != nil {
		return ""
	}
	segments := splitPath(parsed.Path)
	for i, segment := range segments {
		if segment == "d" && i+1 < len(segments) {
			candidate := segments[i+1]
			if candidate == "e" && i+2 < len(segments) {
				return segments[i+2]
			}
			return candidate
		}
	}
	return ""
}

// responseIDFromURL pulls the response id query parameter out of a
// viewresponse URL.  Returns empty when the platform didn't link a specific
// response.
func responseIDFromURL(responseURL string) string {
	parsed, err := url.Parse(responseURL)
	if err != nil {
		return ""
	}
	return parsed.Query().Get("id")
}

func splitPath(path string) []string {
	var segments []string
	for _, segment := range strings.Split(path, "/") {
		if segment != "" {
			segments = append(segments, segment)
		}
	}
	return segments
}

type studentProfile struct {
	ID           string `json:"id"`
	EmailAddress string `json:"emailAddress"`
	Name         struct {
		FullName  string `json:"fullName"`
		GivenName string `json:"givenName"`
	} `json:"name"`
}

// GetStudentProfile resolves a student's email and display name.
func (s *ClassroomService) GetStudentProfile(ctx context.Context, userID string) (*pipeline.StudentProfile, error) {
	endpoint := fmt.Sprintf("%s/userProfiles/%s", s.baseURL, url.PathEscape(userID))
	payload, err := s.do(ctx, "GET", endpoint, nil, "")
	if err != nil {
		return nil, err
	}

	var profile studentProfile
	if err := json.Unmarshal(payload, &profile); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal student profile")
	}

	name := profile.Name.FullName
	if name == "" {
		name = profile.Name.GivenName
	}
	return &pipeline.StudentProfile{
		ID:       profile.ID,
		Email:    profile.EmailAddress,
		FullName: name,
	}, nil
}

// PostPrivateComment attaches feedback to a submission as a private comment
// visible only to the student and teacher.
func (s *ClassroomService) PostPrivateComment(ctx context.Context, courseID, assignmentID, submissionID, text string) error {
	endpoint := fmt.Sprintf("%s/courses/%s/courseWork/%s/studentSubmissions/%s/addPrivateComment",
		s.baseURL, url.PathEscape(courseID), url.PathEscape(assignmentID), url.PathEscape(submissionID))

	body, err := json.Marshal(map[string]string{"comment": text})
	if err != nil {
		return errors.Wrap(err, "failed to marshal comment")
	}

	_, err = s.do(ctx, "POST", endpoint, bytes.NewReader(body), "application/json")
	return err
}
