package emailsvc

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bigestdave/LCUPrep/core"
	appfs "github.com/Bigestdave/LCUPrep/fs"
)

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	conf := core.NewTestConfig()
	templates, err := core.ParseEmailTemplates(appfs.FS, conf)
	require.NoError(t, err)

	svc := NewConsoleServiceMock(conf, templates)
	ClearSentMessages()
	t.Cleanup(ClearSentMessages)

	svc.SendMessages(
		&core.EmailMessage{
			To:           []mail.Address{{Name: "Ada Obi", Address: "ada@lcuprep.test"}},
			Subject:      "Password Reset",
			TemplateName: "password_reset",
			TemplateData: map[string]string{"Name": "Ada", "ResetURL": "http://lcuprep.test/reset-password#uid=u&token=t"},
		},
		&core.EmailMessage{Subject: "no recipients", BodyStr: "dropped"},
		&core.EmailMessage{To: []mail.Address{{Address: "bob@lcuprep.test"}}, Subject: "plain", BodyStr: "hello"},
	)

	require.Len(t, SentMessages, 2)
	reset := SentMessages[0]
	assert.Contains(t, reset.TextContent, "Hi Ada,")
	assert.Contains(t, reset.TextContent, "http://lcuprep.test/reset-password#uid=u&token=t")
	assert.Contains(t, reset.TextContent, "The LCUPrep team")
	assert.NotEmpty(t, reset.HTMLContent)

	last, ok := LastSentMessage()
	require.True(t, ok)
	assert.Equal(t, "hello", last.TextContent)
	assert.Empty(t, last.HTMLContent)
}

func TestSendgridService_prepare(t *testing.T) {
	conf := core.NewTestConfig()
	svc := NewSendgridService(conf, nil, nil)

	m := svc.prepare(core.EmailMessage{
		To:          []mail.Address{{Name: "Ada", Address: "ada@lcuprep.test"}},
		Cc:          []mail.Address{{Address: "cc@lcuprep.test"}},
		Subject:     "Purchase Receipt",
		TextContent: "text",
	})

	require.Len(t, m.Personalizations, 1)
	assert.Equal(t, "[LCUPrep] Purchase Receipt", m.Personalizations[0].Subject)
	assert.Equal(t, "ada@lcuprep.test", m.Personalizations[0].To[0].Address)
	assert.Len(t, m.Personalizations[0].CC, 1)
	assert.Equal(t, "noreply@lcuprep.test", m.From.Address)
	require.Len(t, m.Content, 1)
	assert.Equal(t, "text/plain", m.Content[0].Type)
}
