package webhook

import (
	"context"
	"time"

	"github.com/google/uuid"

	"wa-gateway/internal/logger"
	"wa-gateway/internal/models"
	"wa-gateway/internal/store"
)

// Resyncer periodically rediscovers inbound messages that never reached a
// successful webhook delivery - the durable backfill source spec.md §5
// names as the recovery path for retries lost at process shutdown.
type Resyncer struct {
	store      store.Store
	dispatcher *Dispatcher
	orgLister  OrgIDLister
	interval   time.Duration
	batchSize  int
	log        logger.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

// OrgIDLister enumerates organizations to sweep; kept as a narrow
// interface so callers can supply a cached list instead of a full store
// query every tick.
type OrgIDLister interface {
	ListOrgIDs(ctx context.Context) ([]uuid.UUID, error)
}

func NewResyncer(st store.Store, dispatcher *Dispatcher, orgLister OrgIDLister, interval time.Duration, batchSize int, log logger.Logger) *Resyncer {
	return &Resyncer{
		store:      st,
		dispatcher: dispatcher,
		orgLister:  orgLister,
		interval:   interval,
		batchSize:  batchSize,
		log:        log,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

func (r *Resyncer) Start(ctx context.Context) {
	go r.loop(ctx)
}

func (r *Resyncer) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *Resyncer) loop(ctx context.Context) {
	defer close(r.doneCh)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Resyncer) sweep(ctx context.Context) {
	orgIDs, err := r.orgLister.ListOrgIDs(ctx)
	if err != nil {
		r.log.ErrorWithFields("resync: listing orgs failed", logger.Fields{"error": err.Error()})
		return
	}

	for _, orgID := range orgIDs {
		pending, err := r.store.ListPendingCrmSync(ctx, orgID, r.batchSize)
		if err != nil {
			r.log.ErrorWithFields("resync: listing pending messages failed", logger.Fields{
				"org_id": orgID.String(), "error": err.Error(),
			})
			continue
		}
		for _, msg := range pending {
			r.dispatcher.Dispatch(ctx, orgID, msg.ID, toInboundMessage(msg))
		}
	}
}

func toInboundMessage(msg models.Message) InboundMessage {
	text := ""
	if v, ok := msg.Content["text"].(string); ok {
		text = v
	}
	groupJID := ""
	if msg.GroupJID != nil {
		groupJID = *msg.GroupJID
	}
	return InboundMessage{
		MessageID:      msg.MessageID,
		From:           msg.FromNumber,
		To:             msg.ToNumber,
		Text:           text,
		MessageType:    msg.MessageType,
		IsGroupMessage: msg.IsGroupMessage,
		GroupJID:       groupJID,
		Timestamp:      msg.Timestamp,
	}
}
