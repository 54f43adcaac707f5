package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanPhone(t *testing.T) {
	cases := map[string]string{
		"5511999887766@s.whatsapp.net":   "5511999887766",
		"  5511999887766@s.whatsapp.net ": "5511999887766",
		"120363025@g.us":                 "120363025",
		"5511999887766@c.us":             "5511999887766",
		"5511999887766":                  "5511999887766",
		"":                               "",
	}
	for in, want := range cases {
		assert.Equal(t, want, CleanPhone(in), "input %q", in)
	}
}

func TestConversationID_IgnoresDecoration(t *testing.T) {
	a := ConversationID("5511999887766@s.whatsapp.net", "2025-01-14")
	b := ConversationID(" 5511999887766 ", "2025-01-14")
	assert.Equal(t, "5511999887766_2025-01-14", a)
	assert.Equal(t, a, b)
}

func TestIdentifyParticipants(t *testing.T) {
	got := IdentifyParticipants(strPtr(leadRaw), secretaryRaw, DefaultSecretaryPhone)
	assert.Equal(t, Participants{
		LeadPhone:      "5511999887766",
		SecretaryPhone: "5511998681314",
		SenderType:     SenderLead,
	}, got)

	got = IdentifyParticipants(nil, leadRaw, DefaultSecretaryPhone)
	assert.Equal(t, Participants{
		LeadPhone:      "5511999887766",
		SecretaryPhone: DefaultSecretaryPhone,
		SenderType:     SenderSecretary,
	}, got)

	// blank sender is treated like a missing one
	got = IdentifyParticipants(strPtr("  "), leadRaw, "clinic")
	assert.Equal(t, SenderSecretary, got.SenderType)
	assert.Equal(t, "clinic", got.SecretaryPhone)
}
