package server

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	accountdomain "github.com/webloom/entitled/internal/account/domain"
	accountrepo "github.com/webloom/entitled/internal/account/repository"
	accountservice "github.com/webloom/entitled/internal/account/service"
	auditdomain "github.com/webloom/entitled/internal/audit/domain"
	auditrepo "github.com/webloom/entitled/internal/audit/repository"
	auditservice "github.com/webloom/entitled/internal/audit/service"
	"github.com/webloom/entitled/internal/clock"
	"github.com/webloom/entitled/internal/config"
	entitlementservice "github.com/webloom/entitled/internal/entitlement/service"
	"github.com/webloom/entitled/internal/observability"
	paymentdomain "github.com/webloom/entitled/internal/payment/domain"
	paymentrepo "github.com/webloom/entitled/internal/payment/repository"
	paymentservice "github.com/webloom/entitled/internal/payment/service"
	paymentwebhook "github.com/webloom/entitled/internal/payment/webhook"
	"github.com/webloom/entitled/internal/payment/webhook/stripe"
	"github.com/webloom/entitled/internal/plan"
	usagedomain "github.com/webloom/entitled/internal/usage/domain"
	usagerepo "github.com/webloom/entitled/internal/usage/repository"
	usageservice "github.com/webloom/entitled/internal/usage/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testWebhookSecret = "whsec_test"

func newTestServer(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&accountdomain.Account{},
		&paymentdomain.EventRecord{},
		&auditdomain.AuditLog{},
		&usagedomain.AllocationRecord{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()
	clk := clock.NewSystemClock()
	catalog := plan.NewCatalog(config.NewStaticPlansConfigHolder(config.DefaultPlansConfig()))

	auditSvc := auditservice.NewService(auditservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: auditrepo.Provide(),
	})
	accountSvc := accountservice.NewService(accountservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: accountrepo.Provide(), Audit: auditSvc,
	})
	entitlementSvc := entitlementservice.NewService(entitlementservice.Params{
		Log: log, Catalog: catalog, Accounts: accountSvc,
	})
	usageSvc := usageservice.NewService(usageservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Catalog: catalog,
		Accounts: accountrepo.Provide(), Repo: usagerepo.Provide(),
	})
	reconciler := paymentservice.NewService(paymentservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk,
		Accounts: accountrepo.Provide(), Audit: auditSvc, Repo: paymentrepo.Provide(),
	})
	adapter, err := stripe.New(testWebhookSecret)
	require.NoError(t, err)
	webhookSvc := paymentwebhook.NewService(paymentwebhook.Params{
		Log: log, Registry: paymentwebhook.NewRegistry(adapter), Reconciler: reconciler,
	})

	engine := NewEngine(observability.Config{}, log)
	srv := NewServer(ServerParams{
		Gin:            engine,
		Cfg:            config.Config{},
		Log:            log,
		AccountSvc:     accountSvc,
		EntitlementSvc: entitlementSvc,
		UsageSvc:       usageSvc,
		WebhookSvc:     webhookSvc,
		AuditSvc:       auditSvc,
	})
	registerRoutes(srv)
	return engine, db
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	return decoded
}

func createAccountID(t *testing.T, engine *gin.Engine, planName string) string {
	t.Helper()
	rec := doJSON(t, engine, http.MethodPost, "/v1/accounts", map[string]string{"plan": planName}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id, _ := decodeBody(t, rec)["id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestAccountLifecycle(t *testing.T) {
	engine, _ := newTestServer(t)

	id := createAccountID(t, engine, "basic")

	rec := doJSON(t, engine, http.MethodGet, "/v1/accounts/"+id, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "basic", decodeBody(t, rec)["plan"])

	rec = doJSON(t, engine, http.MethodPost, "/v1/accounts", map[string]string{"plan": "platinum"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, engine, http.MethodGet, "/v1/accounts/424242", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckAndCommitFlow(t *testing.T) {
	engine, _ := newTestServer(t)
	id := createAccountID(t, engine, "basic")

	check := func() map[string]any {
		rec := doJSON(t, engine, http.MethodPost, "/v1/entitlements/check", map[string]string{
			"account_id": id,
			"action":     "create_website",
		}, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		return decodeBody(t, rec)
	}
	commit := func() map[string]any {
		rec := doJSON(t, engine, http.MethodPost, "/v1/usage/commits", map[string]string{
			"account_id": id,
			"counter":    "websites_created",
		}, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		return decodeBody(t, rec)
	}

	assert.Equal(t, true, check()["allowed"])
	for i := 1; i <= 3; i++ {
		result := commit()
		assert.Equal(t, true, result["success"])
		assert.EqualValues(t, i, result["new_value"])
	}

	denied := check()
	assert.Equal(t, false, denied["allowed"])
	assert.Contains(t, denied["reason"], "pro")

	result := commit()
	assert.Equal(t, false, result["success"])
	assert.EqualValues(t, 3, result["new_value"])

	rec := doJSON(t, engine, http.MethodGet, "/v1/accounts/"+id+"/counters", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, decodeBody(t, rec)["websites_created"])
}

func signedWebhook(t *testing.T, engine *gin.Engine, event map[string]any, secret string) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	timestamp := time.Now().Unix()
	signed := fmt.Sprintf("%d.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(signed))
	header := fmt.Sprintf("t=%d,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))

	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/payments/stripe", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", header)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func checkoutEvent(id, eventType, accountID string, metadata map[string]string) map[string]any {
	return map[string]any{
		"id":      id,
		"type":    eventType,
		"created": time.Now().Unix(),
		"data": map[string]any{
			"object": map[string]any{
				"id":                  "cs_" + id,
				"client_reference_id": accountID,
				"metadata":            metadata,
			},
		},
	}
}

func TestPaymentWebhookFlow(t *testing.T) {
	engine, db := newTestServer(t)
	id := createAccountID(t, engine, "basic")

	event := checkoutEvent("evt_up", "checkout.session.completed", id, map[string]string{"target_plan": "pro"})

	rec := signedWebhook(t, engine, event, testWebhookSecret)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["applied"])
	assert.Equal(t, false, body["already_processed"])

	// provider retries are acknowledged without reapplying
	rec = signedWebhook(t, engine, event, testWebhookSecret)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, true, body["already_processed"])

	rec = doJSON(t, engine, http.MethodGet, "/v1/accounts/"+id, nil, nil)
	assert.Equal(t, "pro", decodeBody(t, rec)["plan"])

	var events int64
	require.NoError(t, db.Model(&paymentdomain.EventRecord{}).Count(&events).Error)
	assert.EqualValues(t, 1, events)

	// bad signature never reaches the reconciler
	rec = signedWebhook(t, engine, checkoutEvent("evt_bad", "checkout.session.completed", id, map[string]string{"target_plan": "enterprise"}), "wrong")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// unrelated event types are acknowledged
	rec = signedWebhook(t, engine, map[string]any{
		"id":   "evt_other",
		"type": "invoice.paid",
		"data": map[string]any{"object": map[string]any{}},
	}, testWebhookSecret)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ignored", decodeBody(t, rec)["status"])

	// malformed (completed without target plan) is rejected and not recorded
	rec = signedWebhook(t, engine, checkoutEvent("evt_np", "checkout.session.completed", id, nil), testWebhookSecret)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NoError(t, db.Model(&paymentdomain.EventRecord{}).Count(&events).Error)
	assert.EqualValues(t, 1, events)
}

func TestOverridePlanAudited(t *testing.T) {
	engine, db := newTestServer(t)
	id := createAccountID(t, engine, "pro")

	rec := doJSON(t, engine, http.MethodPut, "/v1/accounts/"+id+"/plan", map[string]string{"plan": "basic"},
		map[string]string{"X-Operator-Id": "ops-7"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "basic", decodeBody(t, rec)["plan"])

	var trail auditdomain.AuditLog
	require.NoError(t, db.Where("action = ?", auditdomain.ActionPlanChanged).First(&trail).Error)
	assert.Equal(t, "operator", trail.ActorType)
	assert.Equal(t, "ops-7", trail.ActorID)
	assert.Equal(t, "pro", trail.Before["plan"])
	assert.Equal(t, "basic", trail.After["plan"])

	rec = doJSON(t, engine, http.MethodGet, "/v1/audit-logs?account_id="+id, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data, _ := decodeBody(t, rec)["data"].([]any)
	assert.Len(t, data, 2) // account.created + plan.changed
}
