package webhook

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webloom/entitled/internal/payment/domain"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubAdapter struct {
	provider  string
	verifyErr error
	parseErr  error
	event     *domain.Event
}

func (a *stubAdapter) Provider() string { return a.provider }

func (a *stubAdapter) Verify(context.Context, []byte, http.Header) error { return a.verifyErr }

func (a *stubAdapter) Parse(context.Context, []byte) (*domain.Event, error) {
	if a.parseErr != nil {
		return nil, a.parseErr
	}
	return a.event, nil
}

type stubReconciler struct {
	result domain.Result
}

func (r *stubReconciler) Process(context.Context, *domain.Event) (domain.Result, error) {
	return r.result, nil
}

func TestHandleUnknownProvider(t *testing.T) {
	svc := NewService(Params{
		Log:        zap.NewNop(),
		Registry:   NewRegistry(),
		Reconciler: &stubReconciler{},
	})

	_, err := svc.Handle(context.Background(), "stripe", nil, http.Header{})
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)
}

func TestHandleMalformedParseLogsPayload(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	adapter := &stubAdapter{provider: "stripe", parseErr: domain.ErrMalformedEvent}
	svc := NewService(Params{
		Log:        zap.New(core),
		Registry:   NewRegistry(adapter),
		Reconciler: &stubReconciler{},
	})

	payload := []byte(`{"id":"evt_bad","type":"checkout.session.completed"}`)
	_, err := svc.Handle(context.Background(), "stripe", payload, http.Header{})
	require.ErrorIs(t, err, domain.ErrMalformedEvent)

	entries := logs.FilterMessage("malformed webhook payload rejected").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "stripe", fields["provider"])
	assert.Equal(t, string(payload), fields["raw_payload"])
}

func TestHandleIgnoredEventNotLogged(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	adapter := &stubAdapter{provider: "stripe", parseErr: domain.ErrEventIgnored}
	svc := NewService(Params{
		Log:        zap.New(core),
		Registry:   NewRegistry(adapter),
		Reconciler: &stubReconciler{},
	})

	_, err := svc.Handle(context.Background(), "stripe", []byte(`{"type":"invoice.paid"}`), http.Header{})
	require.ErrorIs(t, err, domain.ErrEventIgnored)
	assert.Empty(t, logs.All())
}
