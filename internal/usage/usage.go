// Package usage is the Usage Meter (spec.md §4.H): monotonic counters of
// messages per org per calendar month, upserted atomically on every
// message persist.
package usage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"wa-gateway/internal/logger"
	"wa-gateway/internal/models"
)

// Upserter is the narrow store surface the meter needs.
type Upserter interface {
	UpsertUsage(ctx context.Context, orgID uuid.UUID, periodStart time.Time, sentDelta, receivedDelta int64) error
}

type Meter struct {
	store Upserter
	log   logger.Logger
}

func New(store Upserter, log logger.Logger) *Meter {
	return &Meter{store: store, log: log}
}

// IncrementSent records one outbound message for the current month.
func (m *Meter) IncrementSent(ctx context.Context, orgID uuid.UUID) {
	m.increment(ctx, orgID, 1, 0)
}

// IncrementReceived records one inbound message for the current month.
func (m *Meter) IncrementReceived(ctx context.Context, orgID uuid.UUID) {
	m.increment(ctx, orgID, 0, 1)
}

func (m *Meter) increment(ctx context.Context, orgID uuid.UUID, sent, received int64) {
	period := models.CurrentPeriodStart(time.Now())
	if err := m.store.UpsertUsage(ctx, orgID, period, sent, received); err != nil {
		m.log.ErrorWithFields("usage: upsert failed", logger.Fields{
			"org_id": orgID.String(), "error": err.Error(),
		})
	}
}
