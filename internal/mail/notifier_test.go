package mail_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/connector-etl/internal/config"
	"github.com/rohmanhakim/connector-etl/internal/mail"
)

func mailCfg() config.MailConfig {
	return config.MailConfig{
		SMTPHost:   "smtp.corp.example",
		SMTPPort:   25,
		From:       "connector@corp.example",
		Recipients: []string{"ops@corp.example", "search@corp.example"},
		AppName:    "corp-connector",
	}
}

func TestSubjectFormat(t *testing.T) {
	success := mail.RunOutcome{Connector: "corp-connector", CrawlType: "Full", Success: true}
	assert.Equal(t, "corp-connector Full Success", success.Subject())

	fail := mail.RunOutcome{Connector: "corp-connector", CrawlType: "Incremental", Success: false}
	assert.Equal(t, "corp-connector Incremental Failure", fail.Subject())
}

func TestNotifySendsComposedMessage(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte

	notifier := mail.NewWithSender(mailCfg(), func(addr, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	})

	err := notifier.NotifyRunOutcome(mail.RunOutcome{
		Connector:  "corp-connector",
		CrawlType:  "Full",
		Success:    false,
		LastError:  "Aborted: index unavailable",
		ErrorItems: []string{"doc1|extract:10", "doc2|extract:12"},
	})
	require.Nil(t, err)

	assert.Equal(t, "smtp.corp.example:25", gotAddr)
	assert.Equal(t, "connector@corp.example", gotFrom)
	assert.Equal(t, []string{"ops@corp.example", "search@corp.example"}, gotTo)

	raw := string(gotMsg)
	assert.Contains(t, raw, "corp-connector Full Failure")
	assert.Contains(t, raw, "Last error: Aborted: index unavailable")
	assert.Contains(t, raw, "doc1|extract:10")
}

func TestNotifyWithoutRecipientsIsNotConfigured(t *testing.T) {
	cfg := mailCfg()
	cfg.Recipients = nil

	notifier := mail.NewWithSender(cfg, func(addr, from string, to []string, msg []byte) error {
		t.Fatal("send must not be called")
		return nil
	})

	err := notifier.NotifyRunOutcome(mail.RunOutcome{Connector: "c", CrawlType: "Full"})
	require.NotNil(t, err)

	var mailErr *mail.MailError
	require.ErrorAs(t, err, &mailErr)
	assert.Equal(t, mail.ErrCauseNotConfigured, mailErr.Cause)
}
