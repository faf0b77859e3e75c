package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"wa-gateway/internal/logger"
	"wa-gateway/internal/models"
	"wa-gateway/internal/store"
)

// Config holds the dispatcher's timing parameters, per spec.md §4.F's
// named defaults.
type Config struct {
	Timeout        time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		Timeout:        10 * time.Second,
		MaxRetries:     3,
		RetryBaseDelay: 2 * time.Second,
	}
}

// OrgLookup resolves the webhook destination and credentials for an org,
// decoupling the dispatcher from the full store.Store surface.
type OrgLookup interface {
	GetOrganization(ctx context.Context, orgID uuid.UUID) (*models.Organization, error)
}

// Dispatcher is the Webhook Dispatcher (spec.md §4.F): builds the
// canonical envelope, POSTs it with retries, and writes an append-only
// audit row for every attempt.
type Dispatcher struct {
	cfg    Config
	store  store.Store
	orgs   OrgLookup
	client *http.Client
	log    logger.Logger
	secret string
}

func New(cfg Config, st store.Store, orgs OrgLookup, secret string, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		cfg:    cfg,
		store:  st,
		orgs:   orgs,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log,
		secret: secret,
	}
}

// Dispatch delivers one inbound message's webhook, retrying in-process per
// the 2s/4s/8s backoff. It is meant to be called in its own goroutine by
// the Supervisor's inbound-message handler so it never blocks event
// consumption for the session.
func (d *Dispatcher) Dispatch(ctx context.Context, orgID uuid.UUID, messageID uuid.UUID, msg InboundMessage) {
	org, err := d.orgs.GetOrganization(ctx, orgID)
	if err != nil {
		d.log.ErrorWithFields("webhook: organization lookup failed", logger.Fields{
			"org_id": orgID.String(), "error": err.Error(),
		})
		return
	}
	if !org.HasWebhook() {
		return
	}

	envelope := BuildEnvelope(msg)
	payload, err := json.Marshal(envelope)
	if err != nil {
		d.log.ErrorWithFields("webhook: marshaling envelope failed", logger.Fields{"error": err.Error()})
		return
	}

	var payloadMap models.JSONMap
	_ = json.Unmarshal(payload, &payloadMap)

	retry := 0
	for {
		status, body, sendErr := d.post(ctx, *org.WebhookURL, payload, org)

		logEntry := &models.WebhookLog{
			OrgID:        orgID,
			MessageID:    messageID,
			URL:          *org.WebhookURL,
			Payload:      payloadMap,
			HTTPStatus:   status,
			ResponseBody: truncate(body, 2000),
			RetryCount:   retry,
		}

		if sendErr == nil && status >= 200 && status < 300 {
			logEntry.Status = models.WebhookSuccess
			if err := d.store.LogWebhook(ctx, logEntry); err != nil {
				d.log.ErrorWithFields("webhook: writing success log failed", logger.Fields{"error": err.Error()})
			}
			if err := d.store.MarkMessageSynced(ctx, messageID, ""); err != nil {
				d.log.ErrorWithFields("webhook: marking message synced failed", logger.Fields{"error": err.Error()})
			}
			return
		}

		errMsg := ""
		if sendErr != nil {
			errMsg = sendErr.Error()
		}
		logEntry.ErrorMessage = &errMsg
		logEntry.Status = models.WebhookFailed
		if err := d.store.LogWebhook(ctx, logEntry); err != nil {
			d.log.ErrorWithFields("webhook: writing failure log failed", logger.Fields{"error": err.Error()})
		}

		if retry >= d.cfg.MaxRetries {
			if err := d.store.MarkMessageFailed(ctx, messageID); err != nil {
				d.log.ErrorWithFields("webhook: marking message failed failed", logger.Fields{"error": err.Error()})
			}
			return
		}

		delay := d.cfg.RetryBaseDelay << uint(retry)
		retry++
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) post(ctx context.Context, url string, payload []byte, org *models.Organization) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if org.WebhookAPIKey != nil && *org.WebhookAPIKey != "" {
		req.Header.Set("Authorization", "Bearer "+*org.WebhookAPIKey)
	}
	if org.WebhookLocationID != nil && *org.WebhookLocationID != "" {
		req.Header.Set("X-Location-Id", *org.WebhookLocationID)
	}
	if d.secret != "" {
		req.Header.Set("X-Webhook-Signature", sign(d.secret, payload))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return resp.StatusCode, string(body), nil
}

// sign computes the hex-encoded HMAC-SHA256 of the raw request body, per
// the WEBHOOK_SECRET contract in spec.md §6.
func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
