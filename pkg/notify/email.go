// Package notify delivers the end of run summary.
package notify

import (
	"context"
	"errors"
	"strings"

	"github.com/Nephrolytics-ai/sheetscribe/pkg/config"
	"github.com/Nephrolytics-ai/sheetscribe/pkg/logging"
	"github.com/Nephrolytics-ai/sheetscribe/pkg/model"
	"github.com/Nephrolytics-ai/sheetscribe/pkg/utils"
	"github.com/wneessen/go-mail"
)

const (
	implicitTLSPort = 465
	// Relays such as Gmail and Office 365 advertise LOGIN alongside STARTTLS.
	smtpAuthType = mail.SMTPAuthLogin
)

type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// EmailNotifier sends plain text mail through an authenticated SMTP relay.
type EmailNotifier struct {
	client     sender
	from       string
	recipients []string
}

// New returns an EmailNotifier when cfg is complete and a LogNotifier otherwise.
func New(cfg config.EmailConfig) (model.Notifier, error) {
	if !cfg.Complete() {
		return LogNotifier{}, nil
	}
	return NewEmailNotifier(cfg)
}

func NewEmailNotifier(cfg config.EmailConfig) (*EmailNotifier, error) {
	if !cfg.Complete() {
		return nil, utils.WrapIfNotNil(errors.New("email configuration is incomplete"))
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(smtpAuthType),
		mail.WithUsername(cfg.Sender),
		mail.WithPassword(cfg.Password),
	}
	if cfg.Port == implicitTLSPort {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}

	client, err := mail.NewClient(cfg.Server, opts...)
	if err != nil {
		return nil, utils.WrapIfNotNil(err, cfg.Server)
	}
	return newEmailNotifier(client, cfg.Sender, cfg.Recipients), nil
}

func newEmailNotifier(client sender, from string, recipients []string) *EmailNotifier {
	return &EmailNotifier{
		client:     client,
		from:       from,
		recipients: append([]string(nil), recipients...),
	}
}

func (n *EmailNotifier) Send(ctx context.Context, subject, body string) error {
	msg, err := n.message(subject, body)
	if err != nil {
		return utils.WrapIfNotNil(err)
	}

	logging.NewLogger(ctx).Infof("email_send recipients=%q subject=%q", strings.Join(n.recipients, ","), subject)
	if err := n.client.DialAndSendWithContext(ctx, msg); err != nil {
		return utils.WrapIfNotNil(err)
	}
	return nil
}

func (n *EmailNotifier) message(subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return nil, err
	}
	if err := msg.To(n.recipients...); err != nil {
		return nil, err
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

// LogNotifier writes the summary to the log instead of mailing it.
type LogNotifier struct{}

func (LogNotifier) Send(ctx context.Context, subject, body string) error {
	log := logging.NewLogger(ctx)
	log.Warn("Email configuration not found. Skipping email summary.")
	log.Infof("%s\n%s", subject, body)
	return nil
}

var (
	_ model.Notifier = (*EmailNotifier)(nil)
	_ model.Notifier = LogNotifier{}
)
