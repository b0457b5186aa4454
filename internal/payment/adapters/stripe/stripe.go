package stripe

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/redress/internal/payment/adapters"
	paymentdomain "github.com/smallbiznis/redress/internal/payment/domain"
)

type Factory struct {
	now func() time.Time
}

func NewFactory() *Factory {
	return &Factory{now: time.Now}
}

func (f *Factory) Provider() string {
	return "stripe"
}

func (f *Factory) NewAdapter(cfg paymentdomain.AdapterConfig) (paymentdomain.PaymentAdapter, error) {
	secret, err := adapters.ReadSecret(cfg)
	if err != nil {
		return nil, err
	}
	now := f.now
	if now == nil {
		now = time.Now
	}
	return &Adapter{
		webhookSecret: secret,
		tolerance:     adapters.DefaultTolerance,
		now:           now,
	}, nil
}

type Adapter struct {
	webhookSecret string
	tolerance     time.Duration
	now           func() time.Time
}

func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	return adapters.VerifyTimestamped(a.webhookSecret, headers.Get("Stripe-Signature"), payload, a.now(), a.tolerance)
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.PaymentEvent, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	switch strings.TrimSpace(event.Type) {
	case "checkout.session.completed":
		return a.parseCheckoutSession(event, payload)
	default:
		return nil, paymentdomain.ErrEventIgnored
	}
}

type stripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type stripeCheckoutSession struct {
	ID                string            `json:"id"`
	ClientReferenceID string            `json:"client_reference_id"`
	PaymentStatus     string            `json:"payment_status"`
	Created           int64             `json:"created"`
	Metadata          map[string]string `json:"metadata"`
}

func (a *Adapter) parseCheckoutSession(event stripeEvent, payload []byte) (*paymentdomain.PaymentEvent, error) {
	var session stripeCheckoutSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(session.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}
	if status := strings.TrimSpace(session.PaymentStatus); status != "" && status != "paid" {
		return nil, paymentdomain.ErrEventIgnored
	}

	accountID, err := snowflake.ParseString(strings.TrimSpace(session.ClientReferenceID))
	if err != nil || accountID == 0 {
		return nil, paymentdomain.ErrInvalidAccount
	}
	priceID := strings.TrimSpace(session.Metadata["price_id"])
	if priceID == "" {
		return nil, paymentdomain.ErrUnknownPrice
	}

	return &paymentdomain.PaymentEvent{
		Provider:         "stripe",
		ProviderEventID:  event.ID,
		Type:             paymentdomain.EventTypeCheckoutCompleted,
		AccountID:        accountID,
		PriceID:          priceID,
		PaymentReference: session.ID,
		OccurredAt:       timestamp(session.Created, event.Created),
		RawPayload:       payload,
	}, nil
}

func timestamp(primary int64, fallback int64) time.Time {
	value := primary
	if value == 0 {
		value = fallback
	}
	if value == 0 {
		return time.Now().UTC()
	}
	return time.Unix(value, 0).UTC()
}
