package supervisor

import (
	"context"

	"github.com/google/uuid"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types/events"

	"wa-gateway/internal/eventbus"
	"wa-gateway/internal/logger"
	"wa-gateway/internal/models"
	"wa-gateway/internal/waauth"
	"wa-gateway/internal/webhook"
)

// eventHandler dispatches a client's event stream via a type switch.
// whatsmeow serializes delivery per-client, so handlers for one session
// never run concurrently with each other - the single-threaded-per-session
// contract in spec.md §5 falls out of that guarantee rather than anything
// this package does itself.
func (s *Supervisor) eventHandler(sessionID string, orgID uuid.UUID) func(evt interface{}) {
	return func(evt interface{}) {
		ctx := context.Background()
		switch v := evt.(type) {
		case *events.QR:
			s.handleQR(ctx, sessionID, v)
		case *events.PairSuccess:
			s.handlePairSuccess(ctx, sessionID, v)
		case *events.Connected:
			s.handleConnected(ctx, sessionID)
		case *events.Disconnected:
			s.handleDisconnected(ctx, sessionID, false)
		case *events.LoggedOut:
			s.handleLoggedOut(ctx, sessionID)
		case *events.StreamReplaced:
			s.handleDisconnected(ctx, sessionID, false)
		case *events.ConnectFailure:
			s.handleDisconnected(ctx, sessionID, isRateLimited(v.Reason.String()))
		case *events.Message:
			s.handleMessage(ctx, sessionID, orgID, v)
		case *events.GroupInfo:
			s.handleGroupUpdate(ctx, sessionID, v)
		}
	}
}

// handleQR implements "QR emitted": persist QR string, publish to
// callbacks.onQR (the event bus's TopicQR subscribers).
func (s *Supervisor) handleQR(ctx context.Context, sessionID string, evt *events.QR) {
	if len(evt.Codes) == 0 {
		return
	}
	code := evt.Codes[0]
	if err := s.store.SaveQRCode(ctx, sessionID, code); err != nil {
		s.log.ErrorWithFields("supervisor: saving QR code failed", logger.Fields{
			"session_id": sessionID, "error": err.Error(),
		})
	}
	s.bus.PublishQR(sessionID, code)
}

// handlePairSuccess persists the credential snapshot the instant a device
// pairs, per "Credentials updated" - fire-and-forget with errors surfaced to
// logs rather than blocking the event consumer.
func (s *Supervisor) handlePairSuccess(ctx context.Context, sessionID string, evt *events.PairSuccess) {
	h, ok := s.registry.Get(sessionID)
	if !ok {
		return
	}
	client, ok := h.Client.(*whatsmeow.Client)
	if !ok || client == nil {
		return
	}
	s.persistAuthState(ctx, sessionID, client)
}

// persistAuthState builds an AuthStateSnapshot from the live client's device
// store and writes it through the Persistence Store, per "Credentials
// updated" in spec.md §4.C. Logged, never allowed to block the caller's
// event-processing loop for longer than one store round trip.
func (s *Supervisor) persistAuthState(ctx context.Context, sessionID string, client *whatsmeow.Client) {
	device := client.Store
	if device == nil || device.ID == nil {
		return
	}

	builder := waauth.NewBuilder().
		JID(device.ID.String()).
		RegistrationID(device.RegistrationID).
		DeviceMeta(device.Platform, device.PushName, device.BusinessName)

	if device.NoiseKey != nil {
		builder.NoiseKey(device.NoiseKey.Pub[:], device.NoiseKey.Priv[:])
	}
	if device.IdentityKey != nil {
		builder.IdentityKey(device.IdentityKey.Pub[:], device.IdentityKey.Priv[:])
	}
	if device.SignedPreKey != nil {
		builder.SignedPreKey(uint32(device.SignedPreKey.KeyID), device.SignedPreKey.Pub[:], device.SignedPreKey.Priv[:], device.SignedPreKey.Signature[:])
	}
	if device.AdvSecretKey != nil {
		builder.AdvSecretKey(device.AdvSecretKey)
	}

	blob, err := waauth.Encode(builder.Build())
	if err != nil {
		s.log.ErrorWithFields("supervisor: encoding auth state failed", logger.Fields{
			"session_id": sessionID, "error": err.Error(),
		})
		return
	}
	if err := s.store.SaveAuthState(ctx, sessionID, blob); err != nil {
		s.log.ErrorWithFields("supervisor: persisting auth state failed", logger.Fields{
			"session_id": sessionID, "error": err.Error(),
		})
	}
}

// handleConnected implements "Connection open": read phone number, set
// status=connected, reset reconnect counter, publish to callbacks.onConnected.
func (s *Supervisor) handleConnected(ctx context.Context, sessionID string) {
	h, ok := s.registry.Get(sessionID)
	if !ok {
		return
	}
	client, ok := h.Client.(*whatsmeow.Client)
	if !ok || client == nil || client.Store.ID == nil {
		return
	}

	phoneNumber := client.Store.ID.User
	h.SetConnected(phoneNumber)

	if err := s.store.UpdateSessionStatus(ctx, sessionID, models.SessionConnected, &phoneNumber, nil); err != nil {
		s.log.ErrorWithFields("supervisor: setting status=connected failed", logger.Fields{
			"session_id": sessionID, "error": err.Error(),
		})
	}
	if err := s.store.ResetReconnectAttempts(ctx, sessionID); err != nil {
		s.log.WarnWithFields("supervisor: resetting reconnect attempts failed", logger.Fields{
			"session_id": sessionID, "error": err.Error(),
		})
	}
	s.persistAuthState(ctx, sessionID, client)

	s.bus.PublishConnectionStatus(sessionID, eventbus.ConnectionStatusPayload{
		Status: string(models.SessionConnected), PhoneNumber: phoneNumber,
	})
}

// handleDisconnected implements "Connection close" for the non-logout
// branch: mark disconnected, keep the registry entry, hand off to the
// Reconnection Controller.
func (s *Supervisor) handleDisconnected(ctx context.Context, sessionID string, rateLimited bool) {
	if h, ok := s.registry.Get(sessionID); ok {
		h.SetStatus(models.SessionDisconnected)
	}
	if err := s.store.UpdateSessionStatus(ctx, sessionID, models.SessionDisconnected, nil, nil); err != nil {
		s.log.ErrorWithFields("supervisor: setting status=disconnected failed", logger.Fields{
			"session_id": sessionID, "error": err.Error(),
		})
	}
	s.bus.PublishConnectionStatus(sessionID, eventbus.ConnectionStatusPayload{Status: string(models.SessionDisconnected)})
	s.reconnect.OnDisconnect(ctx, sessionID, rateLimited)
}

// handleLoggedOut implements "Connection close" for the logged-out branch:
// mark disconnected, drop the registry entry, fire callbacks.onDisconnect,
// do NOT reconnect.
func (s *Supervisor) handleLoggedOut(ctx context.Context, sessionID string) {
	s.reconnect.Cancel(sessionID)
	s.registry.Deregister(sessionID)
	s.orgBySession.Delete(sessionID)

	if err := s.store.UpdateSessionStatus(ctx, sessionID, models.SessionDisconnected, nil, nil); err != nil {
		s.log.ErrorWithFields("supervisor: setting status=disconnected (logged out) failed", logger.Fields{
			"session_id": sessionID, "error": err.Error(),
		})
	}
	s.bus.PublishConnectionStatus(sessionID, eventbus.ConnectionStatusPayload{Status: "logged_out"})
}

// handleMessage implements "Incoming message batch, type=notify": publish to
// callbacks.onMessage and to the webhook pipeline via Persistence + Dispatcher.
// whatsmeow's events.Message already represents one message of a notify batch
// (history/append/replace batches surface through events.HistorySync instead,
// which this handler never receives), so every call here is forwarding-eligible.
func (s *Supervisor) handleMessage(ctx context.Context, sessionID string, orgID uuid.UUID, evt *events.Message) {
	text := extractText(evt.Message)
	msgType := messageType(evt.Message)
	from := evt.Info.Sender.User
	isGroup := evt.Info.Chat.Server == "g.us"
	var groupJID *string
	if isGroup {
		g := evt.Info.Chat.String()
		groupJID = &g
	}

	to := ""
	if h, ok := s.registry.Get(sessionID); ok {
		to = h.PhoneNumber()
	}

	s.bus.PublishMessage(sessionID, eventbus.MessagePayload{
		From: from, Message: text, Timestamp: evt.Info.Timestamp.Unix(),
	})

	msg, err := s.store.SaveMessage(ctx, models.MessageInput{
		SessionID:      sessionID,
		OrgID:          orgID,
		MessageID:      evt.Info.ID,
		Direction:      models.DirectionInbound,
		FromNumber:     webhook.NormalizeE164(from),
		ToNumber:       webhook.NormalizeE164(to),
		MessageType:    msgType,
		IsGroupMessage: isGroup,
		GroupJID:       groupJID,
		Content:        models.JSONMap{"text": text},
		Timestamp:      evt.Info.Timestamp,
	})
	if err != nil {
		s.log.WarnWithFields("supervisor: persisting inbound message failed", logger.Fields{
			"session_id": sessionID, "message_id": evt.Info.ID, "error": err.Error(),
		})
		return
	}
	s.meter.IncrementReceived(ctx, orgID)

	inbound := webhook.InboundMessage{
		MessageID: evt.Info.ID, From: from, To: to,
		Text: text, MessageType: msgType, IsGroupMessage: isGroup,
		Timestamp: evt.Info.Timestamp,
	}
	if groupJID != nil {
		inbound.GroupJID = *groupJID
	}
	go s.dispatcher.Dispatch(ctx, orgID, msg.ID, inbound)
}

// handleGroupUpdate implements "Group updates": propagate to
// callbacks.onGroupUpdate, best-effort upsert into Groups.
func (s *Supervisor) handleGroupUpdate(ctx context.Context, sessionID string, evt *events.GroupInfo) {
	s.bus.PublishGroupUpdate(sessionID, evt.JID.String())

	if err := s.store.UpsertGroup(ctx, &models.Group{
		SessionID: sessionID,
		GroupJID:  evt.JID.String(),
	}); err != nil {
		s.log.WarnWithFields("supervisor: upserting group failed", logger.Fields{
			"session_id": sessionID, "group_jid": evt.JID.String(), "error": err.Error(),
		})
	}
}

func textMessage(content string) *waE2E.Message {
	return &waE2E.Message{Conversation: &content}
}

// extractText pulls the text payload out of a message, favoring the plain
// conversation field and falling back to extended-text.
func extractText(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if msg.GetConversation() != "" {
		return msg.GetConversation()
	}
	if msg.GetExtendedTextMessage() != nil {
		return msg.GetExtendedTextMessage().GetText()
	}
	switch {
	case msg.GetImageMessage() != nil:
		return "[Image]"
	case msg.GetVideoMessage() != nil:
		return "[Video]"
	case msg.GetAudioMessage() != nil:
		return "[Audio]"
	case msg.GetDocumentMessage() != nil:
		return "[Document]"
	}
	return ""
}

// messageType classifies an inbound message by its payload kind for
// persistence and the webhook envelope.
func messageType(msg *waE2E.Message) string {
	if msg == nil {
		return "unknown"
	}
	switch {
	case msg.GetConversation() != "" || msg.GetExtendedTextMessage() != nil:
		return "text"
	case msg.GetImageMessage() != nil:
		return "image"
	case msg.GetVideoMessage() != nil:
		return "video"
	case msg.GetAudioMessage() != nil:
		return "audio"
	case msg.GetDocumentMessage() != nil:
		return "document"
	default:
		return "unknown"
	}
}

// isRateLimited recognizes whatsmeow's connect-failure reasons that the
// upstream service identifies as throttling, per spec.md §4.D's rate-limit
// variant.
func isRateLimited(reason string) bool {
	switch reason {
	case "ServiceUnavailable", "429", "RateLimited":
		return true
	default:
		return false
	}
}
