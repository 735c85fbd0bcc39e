package mailer

import (
	"context"

	"go.uber.org/zap"

	"github.com/feeflow/feeflow-api/pkg/config"
)

// Message is a single outbound plain-text email.
type Message struct {
	To      string
	ToName  string
	Subject string
	Body    string
}

// Mailer delivers messages synchronously; a nil error means the transport
// accepted the message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New selects a transport based on configuration. Unknown providers fall
// back to the console transport so development setups never hard-fail.
func New(cfg config.MailConfig, logger *zap.Logger) Mailer {
	switch cfg.Provider {
	case "sendgrid":
		return NewSendGrid(cfg)
	default:
		return NewConsole(cfg, logger)
	}
}

// Console writes messages to the log instead of delivering them.
type Console struct {
	cfg    config.MailConfig
	logger *zap.Logger
}

// NewConsole constructs the development transport.
func NewConsole(cfg config.MailConfig, logger *zap.Logger) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{cfg: cfg, logger: logger}
}

// Send logs the message and always succeeds.
func (m *Console) Send(_ context.Context, msg Message) error {
	m.logger.Info("outbound email",
		zap.String("to", msg.To),
		zap.String("subject", m.cfg.SubjPrefix+msg.Subject),
		zap.String("body", msg.Body),
	)
	return nil
}
