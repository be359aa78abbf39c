package pipeline

import "context"

// The pipeline consumes its external services through the narrow interfaces
// below.  Transport, auth and wire schema belong to the implementations in
// api/services; the pipeline only sees normalized records and the error
// taxonomy from errors.go.

// RawSubmission is one student submission as reported by the classroom
// collaborator, before classification.
type RawSubmission struct {
	ID            string
	UserID        string
	State         string
	AssignedGrade *float64
	Attachments   []Attachment
}

// Attachment references one artifact attached to a submission.  At most one
// of the fields is set.
type Attachment struct {
	DriveFile *DriveFileRef
	Form      *FormRef
	Link      *LinkRef
}

// DriveFileRef identifies a file stored in the drive service.
type DriveFileRef struct {
	ID       string
	Title    string
	MimeType string
}

// FormRef links a submission to a form and, when the platform provides it,
// the student's specific response.
type FormRef struct {
	FormID     string
	ResponseID string
	Title      string
}

// LinkRef is a bare URL attachment.  Links carry no extractable content.
type LinkRef struct {
	URL   string
	Title string
}

// Assignment carries the course work context fed into feedback prompts.
// Immutable for the duration of a run.
type Assignment struct {
	ID           string
	Title        string
	Instructions string
	MaxPoints    float64
}

// StudentProfile identifies the submitting student for email delivery and
// forms respondent matching.
type StudentProfile struct {
	ID       string
	Email    string
	FullName string
}

// FormResponse is one respondent's answer set for a form.
type FormResponse struct {
	ResponseID      string
	RespondentEmail string
	Answers         []FormAnswer
}

// FormAnswer pairs a form question with the respondent's answer text.
type FormAnswer struct {
	Question string
	Answer   string
}

// ClassroomClient is the classroom collaborator boundary.
type ClassroomClient interface {
	GetAssignment(ctx context.Context, courseID, assignmentID string) (*Assignment, error)
	ListSubmissions(ctx context.Context, courseID, assignmentID string) ([]RawSubmission, error)
	GetStudentProfile(ctx context.Context, userID string) (*StudentProfile, error)
	PostPrivateComment(ctx context.Context, courseID, assignmentID, submissionID, text string) error
}

// ContentSource is the drive/docs/forms collaborator boundary.
type ContentSource interface {
	ExportDocument(ctx context.Context, docID, mimeType string) (string, error)
	ExportDriveFile(ctx context.Context, fileID, mimeType string) (string, error)
	ListFormResponses(ctx context.Context, formID string) ([]FormResponse, error)
}

// GenerationClient is the feedback generation collaborator boundary.
type GenerationClient interface {
	GenerateFeedback(ctx context.Context, prompt string) (string, error)
}

// MailClient is the mail collaborator boundary.
type MailClient interface {
	SendMessage(ctx context.Context, to, subject, body string) error
}
