package email

import (
	"context"
	"net/smtp"
	"strings"
	"testing"

	"github.com/merceton/merceton/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPSendComposesMessage(t *testing.T) {
	p := NewSMTP(Config{Host: "mail.test", Port: 2525, From: "Merceton <no-reply@merceton.com>", ReplyTo: "support@merceton.com"})

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	p.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	err := p.Send(context.Background(), Message{To: []string{"owner@chai.test"}, Subject: "New order", HTMLBody: "<p>hi</p>"})
	require.NoError(t, err)
	assert.Equal(t, "mail.test:2525", gotAddr)
	assert.Equal(t, "no-reply@merceton.com", gotFrom)
	assert.Equal(t, []string{"owner@chai.test"}, gotTo)

	body := string(gotMsg)
	assert.Contains(t, body, "Reply-To: support@merceton.com\r\n")
	assert.Contains(t, body, "Subject: New order\r\n")
	assert.True(t, strings.HasSuffix(body, "\r\n\r\n<p>hi</p>"))
}

func TestSMTPSendRequiresRecipients(t *testing.T) {
	p := NewSMTP(Config{Host: "mail.test", Port: 25})
	assert.Error(t, p.Send(context.Background(), Message{Subject: "x"}))
}

func TestNewFromConfigWithoutHost(t *testing.T) {
	assert.IsType(t, &NoOpProvider{}, NewFromConfig(config.Config{}))

	cfg := config.Config{Email: config.EmailConfig{SMTPHost: "mail.test", SMTPPort: 587}}
	assert.IsType(t, &SMTPProvider{}, NewFromConfig(cfg))
}

func TestRenderEscapes(t *testing.T) {
	out, err := Render("order_created", map[string]any{
		"MerchantName": "Chai Co",
		"OrderNumber":  "ORD-2025-001",
		"CustomerName": "<script>",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "ORD-2025-001")
	assert.Contains(t, out, "&lt;script&gt;")

	_, err = Render("missing", nil)
	assert.Error(t, err)
}
