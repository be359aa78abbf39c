package pipeline

import "time"

// GradeRequest defines the fields upstream callers need to specify in order
// to run one grading batch over an assignment's submissions.  Channel flags
// left unset fall back to the environment defaults.
type GradeRequest struct {
	CourseID     string `json:"course_id"`
	AssignmentID string `json:"assignment_id"`
	PostComments *bool  `json:"post_comments,omitempty"`
	SendEmails   *bool  `json:"send_emails,omitempty"`
}

// KeyedGradeRequest adds an internally generated hash key to support checks
// for duplicate requests, plus the run id assigned at enqueue time.
type KeyedGradeRequest struct {
	GradeRequest
	RunID      string
	RequestKey int32
	EnqueuedAt time.Time
}

// Channels resolves the delivery channels for this request against the
// configured defaults.
func (r *GradeRequest) Channels(defaultComments, defaultEmails bool) DeliveryChannels {
	channels := DeliveryChannels{PostComment: defaultComments, SendEmail: defaultEmails}
	if r.PostComments != nil {
		channels.PostComment = *r.PostComments
	}
	if r.SendEmails != nil {
		channels.SendEmail = *r.SendEmails
	}
	return channels
}
