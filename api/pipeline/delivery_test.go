package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDispatcher(classroom *fakeClassroom, mail *fakeMail) *DeliveryDispatcher {
	return NewDeliveryDispatcher(testConfig(), classroom, mail)
}

func deliveryFixture() (Submission, *StudentProfile, *Assignment, *Feedback) {
	sub := &DocSubmission{submissionBase: submissionBase{id: "sub-1", studentID: "student-1"}}
	student := &StudentProfile{ID: "student-1", Email: "alice@school.edu", FullName: "Alice"}
	assignment := &Assignment{ID: "hw-1", Title: "Turtle Essay"}
	feedback := &Feedback{SubmissionID: "sub-1", Text: "Great work on structure."}
	return sub, student, assignment, feedback
}

func TestDeliverComment(t *testing.T) {
	classroom := &fakeClassroom{}
	mail := &fakeMail{}
	dispatcher := testDispatcher(classroom, mail)
	sub, student, assignment, feedback := deliveryFixture()

	failures := dispatcher.Deliver(context.Background(), "course-1", "hw-1", sub, student, assignment, feedback,
		DeliveryChannels{PostComment: true})

	assert.Empty(t, failures)
	require.Len(t, classroom.comments, 1)
	assert.True(t, strings.HasPrefix(classroom.comments[0], "[AI Generated Feedback]:"))
	assert.Contains(t, classroom.comments[0], "Great work on structure.")
	assert.Equal(t, 0, mail.sentCount())
}

func TestDeliverEmail(t *testing.T) {
	classroom := &fakeClassroom{}
	mail := &fakeMail{}
	dispatcher := testDispatcher(classroom, mail)
	sub, student, assignment, feedback := deliveryFixture()

	failures := dispatcher.Deliver(context.Background(), "course-1", "hw-1", sub, student, assignment, feedback,
		DeliveryChannels{SendEmail: true})

	assert.Empty(t, failures)
	require.Len(t, mail.sent, 1)
	assert.Equal(t, "alice@school.edu", mail.sent[0].To)
	assert.Equal(t, "Alice, your feedback for 'Turtle Essay'", mail.sent[0].Subject)
	assert.Contains(t, mail.sent[0].Body, "Great work on structure.")
	assert.Equal(t, 0, classroom.commentCount())
}

func TestDeliverChannelsAreIndependent(t *testing.T) {
	// a failing comment channel must not stop the email channel
	classroom := &fakeClassroom{commentErr: errors.New("comment rejected")}
	mail := &fakeMail{}
	dispatcher := testDispatcher(classroom, mail)
	sub, student, assignment, feedback := deliveryFixture()

	failures := dispatcher.Deliver(context.Background(), "course-1", "hw-1", sub, student, assignment, feedback,
		DeliveryChannels{PostComment: true, SendEmail: true})

	require.Len(t, failures, 1)
	assert.Equal(t, ChannelComment, failures[0].Channel)
	assert.Equal(t, 1, mail.sentCount())
}

func TestDeliverEmailWithoutAddressFails(t *testing.T) {
	classroom := &fakeClassroom{}
	mail := &fakeMail{}
	dispatcher := testDispatcher(classroom, mail)
	sub, _, assignment, feedback := deliveryFixture()

	failures := dispatcher.Deliver(context.Background(), "course-1", "hw-1", sub, nil, assignment, feedback,
		DeliveryChannels{SendEmail: true})

	require.Len(t, failures, 1)
	assert.Equal(t, ChannelEmail, failures[0].Channel)
	assert.Equal(t, 0, mail.sentCount())
}
