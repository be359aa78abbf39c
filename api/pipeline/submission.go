package pipeline

import (
	"context"
	"strings"
)

// Submission kinds, used as provenance tags on extracted content.
const (
	KindDoc       = "doc"
	KindDriveFile = "drive_file"
	KindForms     = "forms"
)

// Editor document mime types that classify as DocSubmission rather than a
// plain drive file.  The value is the export format used for each.
var editorExportFormats = map[string]string{
	"application/vnd.google-apps.document":     "text/plain",
	"application/vnd.google-apps.spreadsheet":  "text/csv",
	"application/vnd.google-apps.presentation": "text/plain",
}

// Submission is the closed set of classified submission variants.  Each
// variant knows how to extract its own content; adding a source type means
// adding one variant and one extract implementation, nothing else.
type Submission interface {
	ID() string
	StudentID() string
	Kind() string
	extract(ctx context.Context, ex *Extractor, studentEmail string) (string, error)
}

type submissionBase struct {
	id        string
	studentID string
}

func (s submissionBase) ID() string        { return s.id }
func (s submissionBase) StudentID() string { return s.studentID }

// DocSubmission is an editor document (doc, sheet or slide deck) whose body
// the content source can export as text.
type DocSubmission struct {
	submissionBase
	DocID        string
	Title        string
	ExportFormat string
}

// Kind returns the provenance tag for editor documents.
func (s *DocSubmission) Kind() string { return KindDoc }

// DriveFileSubmission is any other attached file, extractable only when its
// mime type is a known text or office format.
type DriveFileSubmission struct {
	submissionBase
	FileID   string
	Title    string
	MimeType string
}

// Kind returns the provenance tag for drive files.
func (s *DriveFileSubmission) Kind() string { return KindDriveFile }

// FormsSubmission is a form-response linkage; the student's answers are the
// content.
type FormsSubmission struct {
	submissionBase
	FormID     string
	ResponseID string
}

// Kind returns the provenance tag for form responses.
func (s *FormsSubmission) Kind() string { return KindForms }

// Classify assigns a raw submission to exactly one variant.  Rules are
// evaluated first-match-wins in this order: a form-response linkage, an
// editor document reference, then any other attached file.  Submissions
// with nothing extractable (no attachments, or only links) yield a
// NoContentError.
func Classify(raw RawSubmission) (Submission, error) {
	base := submissionBase{id: raw.ID, studentID: raw.UserID}

	for _, att := range raw.Attachments {
		if att.Form != nil && att.Form.FormID != "" {
			return &FormsSubmission{
				submissionBase: base,
				FormID:         att.Form.FormID,
				ResponseID:     att.Form.ResponseID,
			}, nil
		}
	}

	for _, att := range raw.Attachments {
		if att.DriveFile == nil || att.DriveFile.ID == "" {
			continue
		}
		if format, ok := editorExportFormats[att.DriveFile.MimeType]; ok {
			return &DocSubmission{
				submissionBase: base,
				DocID:          att.DriveFile.ID,
				Title:          att.DriveFile.Title,
				ExportFormat:   format,
			}, nil
		}
	}

	for _, att := range raw.Attachments {
		if att.DriveFile == nil || att.DriveFile.ID == "" {
			continue
		}
		// unclassified editor mimes (drawings, sites, ...) have no export
		// path and are treated as plain drive files downstream
		return &DriveFileSubmission{
			submissionBase: base,
			FileID:         att.DriveFile.ID,
			Title:          att.DriveFile.Title,
			MimeType:       att.DriveFile.MimeType,
		}, nil
	}

	reason := "no attachments"
	if len(raw.Attachments) > 0 {
		titles := make([]string, 0, len(raw.Attachments))
		for _, att := range raw.Attachments {
			if att.Link != nil {
				titles = append(titles, att.Link.Title)
			}
		}
		if len(titles) > 0 {
			reason = "link attachments are not supported: " + strings.Join(titles, ", ")
		} else {
			reason = "no supported attachment type"
		}
	}
	return nil, &NoContentError{SubmissionID: raw.ID, Reason: reason}
}
