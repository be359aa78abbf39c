package pipeline

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/classroom-tools/grader-pipeline/config"
)

// Delivery channel names, used in per-channel error details.
const (
	ChannelComment = "comment"
	ChannelEmail   = "email"
)

// DeliveryChannels selects which channels a run delivers feedback through.
type DeliveryChannels struct {
	PostComment bool
	SendEmail   bool
}

// None reports whether no channel was requested.
func (c DeliveryChannels) None() bool {
	return !c.PostComment && !c.SendEmail
}

// DeliveryDispatcher posts confirmed feedback as a private comment and/or an
// email.  The channels are independent: each is retried on its own, and one
// channel failing never stops the other.
type DeliveryDispatcher struct {
	config.Config
	classroom ClassroomClient
	mail      MailClient
	retry     RetryPolicy
}

// NewDeliveryDispatcher creates a dispatcher over the classroom and mail
// collaborators.
func NewDeliveryDispatcher(cfg *config.Config, classroom ClassroomClient, mail MailClient) *DeliveryDispatcher {
	return &DeliveryDispatcher{
		Config:    *cfg,
		classroom: classroom,
		mail:      mail,
		retry:     NewRetryPolicy(cfg.Environment),
	}
}

// Deliver sends the feedback through every requested channel and returns one
// DeliveryError per channel that failed.  An empty slice means every
// requested channel succeeded.
func (d *DeliveryDispatcher) Deliver(
	ctx context.Context,
	courseID, assignmentID string,
	sub Submission,
	student *StudentProfile,
	assignment *Assignment,
	feedback *Feedback,
	channels DeliveryChannels,
) []*DeliveryError {
	var failures []*DeliveryError

	if channels.PostComment {
		if err := d.postComment(ctx, courseID, assignmentID, sub.ID(), feedback); err != nil {
			d.Logger.Errorf("comment delivery failed for submission %s: %v", sub.ID(), err)
			failures = append(failures, &DeliveryError{Channel: ChannelComment, Err: err})
		}
	}

	if channels.SendEmail {
		if err := d.sendEmail(ctx, student, assignment, feedback); err != nil {
			d.Logger.Errorf("email delivery failed for submission %s: %v", sub.ID(), err)
			failures = append(failures, &DeliveryError{Channel: ChannelEmail, Err: err})
		}
	}

	return failures
}

func (d *DeliveryDispatcher) postComment(ctx context.Context, courseID, assignmentID, submissionID string, feedback *Feedback) error {
	text := "[AI Generated Feedback]:\n\n" + feedback.Text
	return d.retry.Run(ctx, func(ctx context.Context) error {
		return d.classroom.PostPrivateComment(ctx, courseID, assignmentID, submissionID, text)
	}, ClassifyError)
}

func (d *DeliveryDispatcher) sendEmail(ctx context.Context, student *StudentProfile, assignment *Assignment, feedback *Feedback) error {
	if student == nil || student.Email == "" {
		return errors.New("student email address unavailable")
	}

	name := student.FullName
	if name == "" {
		name = "Student"
	}
	title := "Assignment"
	if assignment != nil && assignment.Title != "" {
		title = assignment.Title
	}

	subject := fmt.Sprintf("%s, your feedback for '%s'", name, title)
	body := fmt.Sprintf("Hello %s,\n\nHere is your personalized feedback for '%s':\n\n%s\n\nBest regards,\nYour Teacher (via AI Assistant)\n", name, title, feedback.Text)

	return d.retry.Run(ctx, func(ctx context.Context) error {
		return d.mail.SendMessage(ctx, student.Email, subject, body)
	}, ClassifyError)
}
