// Package supervisor is the Session Supervisor (spec.md §4.C): the single
// owner of every live WhatsApp client handle. It creates and tears down
// clients, wires their event streams to Persistence and the Event Bus, and
// exposes the narrow surfaces the Reconnection Controller and Outbound
// Queue drive it through. Uses an event type-switch dispatch for whatsmeow's
// event stream. Group rows are written on group creation and group-update
// events only; nothing syncs group metadata on connect.
package supervisor

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.mau.fi/whatsmeow"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"

	"wa-gateway/internal/apperrors"
	"wa-gateway/internal/eventbus"
	"wa-gateway/internal/logger"
	"wa-gateway/internal/models"
	"wa-gateway/internal/registry"
	"wa-gateway/internal/store"
	"wa-gateway/internal/usage"
	"wa-gateway/internal/waauth"
	"wa-gateway/internal/webhook"
)

// ClientName is the branding whatsmeow reports to WhatsApp's "linked
// devices" screen.
const ClientName = "WA Gateway"

// ReconnectNotifier is the subset of the Reconnection Controller the
// Supervisor drives on a non-logout disconnect.
type ReconnectNotifier interface {
	OnDisconnect(ctx context.Context, sessionID string, rateLimited bool)
	Cancel(sessionID string)
}

// Config holds the one piece of Supervisor-specific wiring that doesn't
// belong to any other component: how to reach whatsmeow's own signal
// protocol store.
type Config struct {
	// DatabaseURL backs whatsmeow's own sqlstore.Container (prekeys, signal
	// sessions, sender keys) - intentionally a second, whatsmeow-owned schema
	// inside the same Postgres database the Persistence Store uses, per
	// spec.md §6's note that the client library keeps its own protocol-level
	// session state distinct from the gateway's own authState envelope.
	DatabaseURL string
	WALogLevel  string
}

// Supervisor owns every live client handle, per spec.md §4.C.
type Supervisor struct {
	store      store.Store
	registry   *registry.Registry
	bus        *eventbus.Bus
	reconnect  ReconnectNotifier
	dispatcher *webhook.Dispatcher
	meter      *usage.Meter
	log        logger.Logger

	container   *sqlstore.Container
	containerMu sync.RWMutex
	dsn         string
	waLogLevel  string

	// orgBySession caches each live session's org binding so outboundqueue's
	// sessionID-keyed Send/IncrementSent calls can reach the orgID-keyed
	// Usage Meter without the queue needing to know about organizations.
	orgBySession sync.Map // sessionID string -> uuid.UUID
}

func New(cfg Config, st store.Store, reg *registry.Registry, bus *eventbus.Bus, reconnect ReconnectNotifier, dispatcher *webhook.Dispatcher, meter *usage.Meter, log logger.Logger) *Supervisor {
	return &Supervisor{
		store:      st,
		registry:   reg,
		bus:        bus,
		reconnect:  reconnect,
		dispatcher: dispatcher,
		meter:      meter,
		log:        log,
		dsn:        cfg.DatabaseURL,
		waLogLevel: cfg.WALogLevel,
	}
}

func (s *Supervisor) deviceContainer(ctx context.Context) (*sqlstore.Container, error) {
	s.containerMu.RLock()
	c := s.container
	s.containerMu.RUnlock()
	if c != nil {
		return c, nil
	}

	s.containerMu.Lock()
	defer s.containerMu.Unlock()
	if s.container != nil {
		return s.container, nil
	}

	dbLog := waLog.Stdout("Database", s.waLogLevel, true)
	c, err := sqlstore.New(ctx, "postgres", s.dsn, dbLog)
	if err != nil {
		return nil, apperrors.FatalWrap(err, "opening whatsmeow device store")
	}
	s.container = c
	return c, nil
}

// Create implements spec.md §4.C's Create: register in the Registry with
// status connecting, instantiate a client seeded from the given or loaded
// auth state, subscribe to its event streams.
func (s *Supervisor) Create(ctx context.Context, sessionID string, orgID uuid.UUID) error {
	s.orgBySession.Store(sessionID, orgID)

	device, err := s.loadOrNewDevice(ctx, sessionID)
	if err != nil {
		return err
	}

	clientLog := waLog.Stdout("Client", s.waLogLevel, true)
	client := whatsmeow.NewClient(device, clientLog)
	client.EnableAutoReconnect = false // the Reconnection Controller owns retry scheduling, not whatsmeow's own loop
	if client.Store.PushName == "" {
		client.Store.PushName = ClientName
	}

	if _, err := s.registry.Register(sessionID, orgID.String(), client); err != nil {
		return err
	}

	client.AddEventHandler(s.eventHandler(sessionID, orgID))

	if err := client.Connect(); err != nil {
		s.registry.Deregister(sessionID)
		return apperrors.TransientWrap(err, "connecting session %s", sessionID)
	}
	return nil
}

// Recreate satisfies reconnect.Creator: ask the Supervisor to re-Create a
// session from its persisted org/auth state after a scheduled backoff.
func (s *Supervisor) Recreate(ctx context.Context, sessionID string) error {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	return s.Create(ctx, sessionID, sess.OrgID)
}

// SetConnecting and SetError satisfy reconnect.StatusSetter.
func (s *Supervisor) SetConnecting(ctx context.Context, sessionID string) error {
	return s.store.UpdateSessionStatus(ctx, sessionID, models.SessionConnecting, nil, nil)
}

func (s *Supervisor) SetError(ctx context.Context, sessionID, reason string) error {
	return s.store.UpdateSessionStatus(ctx, sessionID, models.SessionError, nil, &reason)
}

// RestoreAll implements spec.md §4.C's Restore-all: on process start,
// re-Create every session the store reports as restorable. Failures are
// isolated per session - a single bad device blob never stops the others
// from coming up.
func (s *Supervisor) RestoreAll(ctx context.Context) {
	sessions, err := s.store.ListRestorableSessions(ctx)
	if err != nil {
		s.log.ErrorWithFields("supervisor: listing restorable sessions failed", logger.Fields{"error": err.Error()})
		return
	}

	s.log.InfoWithFields("supervisor: restoring sessions", logger.Fields{"count": len(sessions)})
	for _, rs := range sessions {
		if err := s.Create(ctx, rs.SessionID, rs.OrgID); err != nil {
			reason := err.Error()
			s.log.ErrorWithFields("supervisor: restoring session failed", logger.Fields{
				"session_id": rs.SessionID, "error": reason,
			})
			if uerr := s.store.UpdateSessionStatus(ctx, rs.SessionID, models.SessionError, nil, &reason); uerr != nil {
				s.log.ErrorWithFields("supervisor: marking restore failure failed", logger.Fields{
					"session_id": rs.SessionID, "error": uerr.Error(),
				})
			}
		}
	}
}

// Send implements spec.md §4.C's Send: requires a connected handle, builds
// the JID (bare digits, full JID, or group JID all pass through), and
// relays to the whatsmeow client. Satisfies outboundqueue.Sender.
func (s *Supervisor) Send(ctx context.Context, sessionID, jid, content, messageType string) error {
	client, err := s.connectedClient(sessionID)
	if err != nil {
		return err
	}

	recipient, err := toJID(jid)
	if err != nil {
		return apperrors.Validation("invalid recipient %q: %v", jid, err)
	}

	resp, err := client.SendMessage(ctx, recipient, textMessage(content))
	if err != nil {
		return apperrors.TransientWrap(err, "sending message on session %s", sessionID)
	}

	if orgID, ok := s.orgBySession.Load(sessionID); ok {
		if _, err := s.store.SaveMessage(ctx, models.MessageInput{
			SessionID:   sessionID,
			OrgID:       orgID.(uuid.UUID),
			MessageID:   resp.ID,
			Direction:   models.DirectionOutbound,
			ToNumber:    webhook.NormalizeE164(recipient.User),
			MessageType: "text",
			Timestamp:   resp.Timestamp,
		}); err != nil {
			s.log.WarnWithFields("supervisor: persisting outbound message failed", logger.Fields{
				"session_id": sessionID, "error": err.Error(),
			})
		}
	}
	return nil
}

// IncrementSent adapts outboundqueue.UsageIncrementer's sessionID-keyed call
// to the Usage Meter's orgID-keyed one, using the org binding recorded at Create.
func (s *Supervisor) IncrementSent(ctx context.Context, sessionID string) {
	if orgID, ok := s.orgBySession.Load(sessionID); ok {
		s.meter.IncrementSent(ctx, orgID.(uuid.UUID))
	}
}

// Destroy implements spec.md §4.C's Destroy: logout via the client
// (swallowing failures - an already-dead socket is fine), remove from the
// Registry, and delete the persisted session row.
func (s *Supervisor) Destroy(ctx context.Context, sessionID string) error {
	s.reconnect.Cancel(sessionID)

	if h, ok := s.registry.Get(sessionID); ok {
		if client, ok := h.Client.(*whatsmeow.Client); ok && client != nil {
			if err := client.Logout(ctx); err != nil {
				s.log.WarnWithFields("supervisor: logout failed, discarding handle anyway", logger.Fields{
					"session_id": sessionID, "error": err.Error(),
				})
			}
		}
		s.registry.Deregister(sessionID)
	}
	s.orgBySession.Delete(sessionID)

	return s.store.DeleteSession(ctx, sessionID)
}

// connectedClient resolves a session's live client, enforcing the Send
// precondition that group operations share per spec.md §4.C.
func (s *Supervisor) connectedClient(sessionID string) (*whatsmeow.Client, error) {
	h, ok := s.registry.Get(sessionID)
	if !ok || h.Status() != models.SessionConnected {
		return nil, apperrors.NotConnected(sessionID)
	}
	client, ok := h.Client.(*whatsmeow.Client)
	if !ok || client == nil {
		return nil, apperrors.NotConnected(sessionID)
	}
	return client, nil
}

// toJID produces `<digits>@s.whatsapp.net` for bare numbers and passes group
// JIDs (ending @g.us) or already-qualified JIDs through unchanged, per
// spec.md §4.C.
func toJID(raw string) (types.JID, error) {
	if strings.Contains(raw, "@") {
		return types.ParseJID(raw)
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if digits == "" {
		return types.JID{}, apperrors.Validation("no digits in recipient %q", raw)
	}
	return types.NewJID(digits, types.DefaultUserServer), nil
}

// loadOrNewDevice resolves the whatsmeow store.Device for a session: reuse
// the device already bound to this JID in whatsmeow's own signal-protocol
// store when the gateway's authState snapshot names one, otherwise hand out
// a fresh device for a new pairing.
func (s *Supervisor) loadOrNewDevice(ctx context.Context, sessionID string) (*wastore.Device, error) {
	container, err := s.deviceContainer(ctx)
	if err != nil {
		return nil, err
	}

	blob, err := s.store.LoadAuthState(ctx, sessionID)
	if err != nil && err != store.ErrNotFound {
		return nil, apperrors.TransientWrap(err, "loading auth state for session %s", sessionID)
	}

	snap, err := waauth.Decode(blob)
	if err != nil {
		s.log.WarnWithFields("supervisor: discarding unreadable auth state", logger.Fields{
			"session_id": sessionID, "error": err.Error(),
		})
		snap = nil
	}

	if snap != nil && snap.JID != "" {
		jid, err := types.ParseJID(snap.JID)
		if err == nil {
			if device, err := container.GetDevice(ctx, jid); err == nil && device != nil {
				return device, nil
			}
		}
	}

	return container.NewDevice(), nil
}
