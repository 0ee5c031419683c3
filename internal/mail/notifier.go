package mail

import (
	"bytes"
	"fmt"
	"io"
	"net/smtp"
	"strings"
	"time"

	gomail "github.com/emersion/go-message/mail"

	"github.com/rohmanhakim/connector-etl/internal/config"
	"github.com/rohmanhakim/connector-etl/pkg/failure"
)

/*
Responsibilities

- Compose the run-outcome notification: subject
  "<connector> <crawlType> <Success|Failure>", body with the last error
  and the retained error queue items
- Transmit over SMTP to the configured recipient list

Composition uses go-message; transport is plain SMTP without
authentication, matching the operational setup the recipient list
assumes.
*/

// RunOutcome is everything the notification renders.
type RunOutcome struct {
	Connector  string
	CrawlType  string
	Success    bool
	LastError  string
	ErrorItems []string
}

// Subject renders the fixed notification subject.
func (o RunOutcome) Subject() string {
	status := "Failure"
	if o.Success {
		status = "Success"
	}
	return fmt.Sprintf("%s %s %s", o.Connector, o.CrawlType, status)
}

// Notifier sends run-outcome mail. The send function is injectable for
// tests; production uses smtp.SendMail.
type Notifier struct {
	cfg  config.MailConfig
	send func(addr, from string, to []string, msg []byte) error
}

// New builds a Notifier over the configured SMTP endpoint.
func New(cfg config.MailConfig) *Notifier {
	return &Notifier{
		cfg: cfg,
		send: func(addr, from string, to []string, msg []byte) error {
			return smtp.SendMail(addr, nil, from, to, msg)
		},
	}
}

// NewWithSender injects the transport, for tests.
func NewWithSender(cfg config.MailConfig, send func(addr, from string, to []string, msg []byte) error) *Notifier {
	return &Notifier{cfg: cfg, send: send}
}

// NotifyRunOutcome composes and sends the notification. With no
// recipients configured it returns ErrCauseNotConfigured so the caller
// can log-and-continue.
func (n *Notifier) NotifyRunOutcome(outcome RunOutcome) failure.ClassifiedError {
	if len(n.cfg.Recipients) == 0 || n.cfg.SMTPHost == "" {
		return &MailError{Cause: ErrCauseNotConfigured, Message: "no recipients or smtp host configured"}
	}

	msg, err := compose(n.cfg, outcome)
	if err != nil {
		return &MailError{Cause: ErrCauseComposeFailed, Message: err.Error()}
	}

	addr := fmt.Sprintf("%s:%d", n.cfg.SMTPHost, n.cfg.SMTPPort)
	if sendErr := n.send(addr, n.cfg.From, n.cfg.Recipients, msg); sendErr != nil {
		return &MailError{Cause: ErrCauseSendFailed, Message: sendErr.Error()}
	}
	return nil
}

func compose(cfg config.MailConfig, outcome RunOutcome) ([]byte, error) {
	var header gomail.Header
	header.SetDate(time.Now())
	header.SetSubject(outcome.Subject())
	header.SetAddressList("From", []*gomail.Address{{Address: cfg.From}})

	toList := make([]*gomail.Address, 0, len(cfg.Recipients))
	for _, rcpt := range cfg.Recipients {
		toList = append(toList, &gomail.Address{Address: rcpt})
	}
	header.SetAddressList("To", toList)

	var buf bytes.Buffer
	w, err := gomail.CreateSingleInlineWriter(&buf, header)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(w, body(outcome)); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func body(outcome RunOutcome) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Crawl type: %s\n", outcome.CrawlType)
	if outcome.LastError != "" {
		fmt.Fprintf(&sb, "Last error: %s\n", outcome.LastError)
	}
	if len(outcome.ErrorItems) > 0 {
		sb.WriteString("\nError queue items:\n")
		for _, item := range outcome.ErrorItems {
			fmt.Fprintf(&sb, "  %s\n", item)
		}
	}
	return sb.String()
}
