// Package stripe adapts Stripe checkout-session webhooks to canonical
// payment events.
package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/webloom/entitled/internal/payment/domain"
	"github.com/webloom/entitled/internal/plan"
)

type Adapter struct {
	webhookSecret string
}

func New(webhookSecret string) (*Adapter, error) {
	webhookSecret = strings.TrimSpace(webhookSecret)
	if webhookSecret == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}
	return &Adapter{webhookSecret: webhookSecret}, nil
}

func (a *Adapter) Provider() string { return "stripe" }

func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	sigHeader := strings.TrimSpace(headers.Get("Stripe-Signature"))
	if sigHeader == "" {
		return paymentdomain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return paymentdomain.ErrInvalidSignature
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}
	return paymentdomain.ErrInvalidSignature
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.Event, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrMalformedEvent
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, paymentdomain.ErrMalformedEvent
	}

	var outcome paymentdomain.Outcome
	switch strings.TrimSpace(event.Type) {
	case "checkout.session.completed":
		outcome = paymentdomain.OutcomeCompleted
	case "checkout.session.expired":
		outcome = paymentdomain.OutcomeExpired
	case "checkout.session.async_payment_failed":
		outcome = paymentdomain.OutcomeFailed
	default:
		return nil, paymentdomain.ErrEventIgnored
	}

	var session checkoutSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return nil, paymentdomain.ErrMalformedEvent
	}

	accountID, err := parseAccountID(session)
	if err != nil {
		return nil, err
	}

	var targetPlan plan.Plan
	if outcome == paymentdomain.OutcomeCompleted {
		targetPlan, err = plan.Parse(session.Metadata["target_plan"])
		if err != nil {
			return nil, paymentdomain.ErrMalformedEvent
		}
	}

	return &paymentdomain.Event{
		Provider:       a.Provider(),
		IdempotencyKey: event.ID,
		Outcome:        outcome,
		AccountID:      accountID,
		TargetPlan:     targetPlan,
		OccurredAt:     timestamp(session.Created, event.Created),
		RawPayload:     payload,
	}, nil
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

type checkoutSession struct {
	ID                string            `json:"id"`
	Created           int64             `json:"created"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

func parseAccountID(session checkoutSession) (snowflake.ID, error) {
	raw := strings.TrimSpace(session.ClientReferenceID)
	if raw == "" {
		raw = strings.TrimSpace(session.Metadata["account_id"])
	}
	if raw == "" {
		return 0, paymentdomain.ErrMalformedEvent
	}
	id, err := snowflake.ParseString(raw)
	if err != nil || id == 0 {
		return 0, paymentdomain.ErrMalformedEvent
	}
	return id, nil
}

func parseSignatureHeader(header string) (string, []string, error) {
	var timestamp string
	signatures := []string{}
	for _, part := range strings.Split(header, ",") {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		switch key {
		case "t":
			timestamp = value
		case "v1":
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, paymentdomain.ErrInvalidSignature
	}
	return timestamp, signatures, nil
}

func timestamp(primary, fallback int64) time.Time {
	if primary > 0 {
		return time.Unix(primary, 0).UTC()
	}
	if fallback > 0 {
		return time.Unix(fallback, 0).UTC()
	}
	return time.Now().UTC()
}
