package chat

import "strings"

// messaging suffixes added by the WhatsApp gateway
var phoneSuffixes = []string{"@s.whatsapp.net", "@g.us", "@c.us", "@lid"}

// CleanPhone strips gateway decorations and surrounding whitespace.
func CleanPhone(phone string) string {
	p := strings.TrimSpace(phone)
	for _, suf := range phoneSuffixes {
		p = strings.ReplaceAll(p, suf, "")
	}
	return strings.TrimSpace(p)
}

// ConversationID derives the id of the lead's conversation-day bucket.
func ConversationID(leadPhone, day string) string {
	return CleanPhone(leadPhone) + "_" + day
}

type Participants struct {
	LeadPhone      string
	SecretaryPhone string
	SenderType     SenderType
}

// IdentifyParticipants classifies a message. A missing sender means the
// clinic replied, so the receiver is the lead.
func IdentifyParticipants(sender *string, receiver, secretarySentinel string) Participants {
	var s string
	if sender != nil {
		s = CleanPhone(*sender)
	}
	r := CleanPhone(receiver)
	if s == "" {
		return Participants{
			LeadPhone:      r,
			SecretaryPhone: secretarySentinel,
			SenderType:     SenderSecretary,
		}
	}
	return Participants{
		LeadPhone:      s,
		SecretaryPhone: r,
		SenderType:     SenderLead,
	}
}
