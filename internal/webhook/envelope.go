package webhook

import "time"

// Envelope is the canonical payload POSTed to a tenant's webhook URL for
// every inbound message, per spec.md §4.F.
type Envelope struct {
	Type      string        `json:"type"`
	Timestamp string        `json:"timestamp"`
	Data      EnvelopeData  `json:"data"`
}

type EnvelopeData struct {
	From           string `json:"from"`
	To             string `json:"to"`
	Message        string `json:"message"`
	MessageID      string `json:"messageId"`
	MessageType    string `json:"messageType"`
	IsGroupMessage bool   `json:"isGroupMessage"`
	GroupJID       string `json:"groupJid,omitempty"`
}

// InboundMessage is what the Supervisor hands the Dispatcher for each
// inbound message - enough to build both the envelope and a Persistence
// saveMessage call.
type InboundMessage struct {
	MessageID      string
	From           string
	To             string
	Text           string
	MessageType    string
	IsGroupMessage bool
	GroupJID       string
	Timestamp      time.Time
}

// BuildEnvelope renders the canonical envelope, normalizing from/to to
// E.164.
func BuildEnvelope(msg InboundMessage) Envelope {
	return Envelope{
		Type:      "whatsapp_message",
		Timestamp: msg.Timestamp.UTC().Format(time.RFC3339),
		Data: EnvelopeData{
			From:           NormalizeE164(msg.From),
			To:             NormalizeE164(msg.To),
			Message:        msg.Text,
			MessageID:      msg.MessageID,
			MessageType:    msg.MessageType,
			IsGroupMessage: msg.IsGroupMessage,
			GroupJID:       msg.GroupJID,
		},
	}
}
