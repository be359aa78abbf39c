package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"github.com/classroom-tools/grader-pipeline/config"
)

// MailService implements pipeline.MailClient against the mail REST API.
type MailService struct {
	*restClient
}

// NewMailService creates a mail client from the environment.
func NewMailService(cfg *config.Config) *MailService {
	return &MailService{
		restClient: newRESTClient(cfg, "mail", cfg.Environment.MailAddr, cfg.Environment.APIToken),
	}
}

// SendMessage sends one plain-text message on behalf of the authenticated
// teacher account.
func (s *MailService) SendMessage(ctx context.Context, to, subject, body string) error {
	message := fmt.Sprintf("To: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n%s", to, subject, body)
	encoded := base64.URLEncoding.EncodeToString([]byte(message))

	payload, err := json.Marshal(map[string]string{"raw": encoded})
	if err != nil {
		return errors.Wrap(err, "failed to marshal mail message")
	}

	endpoint := s.baseURL + "/users/me/messages/send"
	_, err = s.do(ctx, "POST", endpoint, bytes.NewReader(payload), "application/json")
	return err
}
