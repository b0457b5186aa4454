package direct

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

// Factory builds adapters for the first-party confirmation payload
// {accountId, priceId, paymentReference} signed with X-Signature.
type Factory struct {
	now func() time.Time
}

func NewFactory() *Factory {
	return &Factory{now: time.Now}
}

func (f *Factory) Provider() string {
	return "direct"
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
	return &Adapter{webhookSecret: secret, tolerance: adapters.DefaultTolerance, now: now}, nil
}

type Adapter struct {
	webhookSecret string
	tolerance     time.Duration
	now           func() time.Time
}

func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	return adapters.VerifyTimestamped(a.webhookSecret, headers.Get("X-Signature"), payload, a.now(), a.tolerance)
}

type confirmation struct {
	EventID          string `json:"eventId"`
	AccountID        string `json:"accountId"`
	PriceID          string `json:"priceId"`
	PaymentReference string `json:"paymentReference"`
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.PaymentEvent, error) {
	var body confirmation
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	reference := strings.TrimSpace(body.PaymentReference)
	if reference == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}
	accountID, err := snowflake.ParseString(strings.TrimSpace(body.AccountID))
	if err != nil || accountID == 0 {
		return nil, paymentdomain.ErrInvalidAccount
	}
	priceID := strings.TrimSpace(body.PriceID)
	if priceID == "" {
		return nil, paymentdomain.ErrUnknownPrice
	}

	eventID := strings.TrimSpace(body.EventID)
	if eventID == "" {
		eventID = reference
	}
	return &paymentdomain.PaymentEvent{
		Provider:         "direct",
		ProviderEventID:  eventID,
		Type:             paymentdomain.EventTypeCheckoutCompleted,
		AccountID:        accountID,
		PriceID:          priceID,
		PaymentReference: reference,
		OccurredAt:       a.now().UTC(),
		RawPayload:       payload,
	}, nil
}
