package mailer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/feeflow/feeflow-api/pkg/config"
)

var (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// SendGrid delivers mail through the SendGrid v3 API.
type SendGrid struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
}

// NewSendGrid constructs the production transport.
func NewSendGrid(cfg config.MailConfig) *SendGrid {
	return &SendGrid{
		key:        cfg.APIKey,
		from:       sgmail.NewEmail(cfg.FromName, cfg.FromEmail),
		subjPrefix: cfg.SubjPrefix,
	}
}

// Send delivers a single plain-text message.
func (m *SendGrid) Send(ctx context.Context, msg Message) error {
	p := sgmail.NewPersonalization()
	p.Subject = m.subjPrefix + msg.Subject
	p.AddTos(sgmail.NewEmail(msg.ToName, msg.To))

	v3 := sgmail.NewV3Mail()
	v3.SetFrom(m.from)
	v3.AddPersonalizations(p)
	v3.AddContent(sgmail.NewContent("text/plain", msg.Body))

	req := sendgrid.GetRequest(m.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(v3)

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid rejected message: status %d", res.StatusCode)
	}
	return nil
}
