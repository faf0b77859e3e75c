package webhook_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"wa-gateway/internal/webhook"
)

func TestNormalizeE164(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"strips whatsapp jid suffix", "15551234567@s.whatsapp.net", "+15551234567"},
		{"strips legacy c.us suffix", "15551234567@c.us", "+15551234567"},
		{"strips spaces and hyphens", "1 555-123-4567", "+15551234567"},
		{"already E164", "+15551234567", "+15551234567"},
		{"empty string passes through", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, webhook.NormalizeE164(tc.in))
		})
	}
}
