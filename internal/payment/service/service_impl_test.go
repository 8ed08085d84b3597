package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	accountdomain "github.com/webloom/entitled/internal/account/domain"
	accountrepo "github.com/webloom/entitled/internal/account/repository"
	auditdomain "github.com/webloom/entitled/internal/audit/domain"
	auditrepo "github.com/webloom/entitled/internal/audit/repository"
	auditservice "github.com/webloom/entitled/internal/audit/service"
	"github.com/webloom/entitled/internal/clock"
	"github.com/webloom/entitled/internal/payment/domain"
	paymentrepo "github.com/webloom/entitled/internal/payment/repository"
	"github.com/webloom/entitled/internal/plan"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

type testEnv struct {
	db  *gorm.DB
	svc domain.Service
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithLogger(t, zap.NewNop())
}

func newTestEnvWithLogger(t *testing.T, log *zap.Logger) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&accountdomain.Account{},
		&domain.EventRecord{},
		&auditdomain.AuditLog{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	audit := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  auditrepo.Provide(),
	})
	svc := NewService(Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    clk,
		Accounts: accountrepo.Provide(),
		Audit:    audit,
		Repo:     paymentrepo.Provide(),
	})
	return &testEnv{db: db, svc: svc}
}

func (e *testEnv) seedAccount(t *testing.T, id snowflake.ID, p plan.Plan) {
	t.Helper()
	require.NoError(t, e.db.Create(&accountdomain.Account{ID: id, Plan: p}).Error)
}

func completedEvent(accountID snowflake.ID, key string, target plan.Plan) *domain.Event {
	return &domain.Event{
		Provider:       "stripe",
		IdempotencyKey: key,
		Outcome:        domain.OutcomeCompleted,
		AccountID:      accountID,
		TargetPlan:     target,
		OccurredAt:     time.Date(2026, 3, 1, 11, 59, 0, 0, time.UTC),
	}
}

func TestProcessCompletedUpgradesPlan(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	accountID := snowflake.ID(9001)
	env.seedAccount(t, accountID, plan.Basic)

	result, err := env.svc.Process(ctx, completedEvent(accountID, "evt_1", plan.Pro))
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.False(t, result.AlreadyProcessed)
	assert.Equal(t, domain.OutcomeCompleted, result.Outcome)

	var account accountdomain.Account
	require.NoError(t, env.db.First(&account, "id = ?", accountID).Error)
	assert.Equal(t, plan.Pro, account.Plan)
	require.NotNil(t, account.PlanUpdatedAt)

	var trail auditdomain.AuditLog
	require.NoError(t, env.db.First(&trail, "account_id = ?", accountID).Error)
	assert.Equal(t, auditdomain.ActionPlanChanged, trail.Action)
	assert.Equal(t, "evt_1", trail.IdempotencyKey)
	assert.Equal(t, "basic", trail.Before["plan"])
	assert.Equal(t, "pro", trail.After["plan"])
}

func TestProcessDuplicateDelivery(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	accountID := snowflake.ID(9002)
	env.seedAccount(t, accountID, plan.Basic)

	first, err := env.svc.Process(ctx, completedEvent(accountID, "evt_dup", plan.Pro))
	require.NoError(t, err)
	require.True(t, first.Applied)

	// same key redelivered: acknowledged, nothing changes again
	second, err := env.svc.Process(ctx, completedEvent(accountID, "evt_dup", plan.Pro))
	require.NoError(t, err)
	assert.True(t, second.AlreadyProcessed)
	assert.True(t, second.Applied)
	assert.Equal(t, domain.OutcomeCompleted, second.Outcome)

	var events int64
	require.NoError(t, env.db.Model(&domain.EventRecord{}).Count(&events).Error)
	assert.EqualValues(t, 1, events)

	var trails int64
	require.NoError(t, env.db.Model(&auditdomain.AuditLog{}).Count(&trails).Error)
	assert.EqualValues(t, 1, trails)
}

func TestProcessExpiredAndFailedDoNotTouchPlan(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	accountID := snowflake.ID(9003)
	env.seedAccount(t, accountID, plan.Basic)

	for i, outcome := range []domain.Outcome{domain.OutcomeExpired, domain.OutcomeFailed} {
		result, err := env.svc.Process(ctx, &domain.Event{
			Provider:       "stripe",
			IdempotencyKey: fmt.Sprintf("evt_noop_%d", i),
			Outcome:        outcome,
			AccountID:      accountID,
		})
		require.NoError(t, err)
		assert.False(t, result.Applied)
		assert.False(t, result.AlreadyProcessed)
		assert.Equal(t, outcome, result.Outcome)
	}

	var account accountdomain.Account
	require.NoError(t, env.db.First(&account, "id = ?", accountID).Error)
	assert.Equal(t, plan.Basic, account.Plan)
	assert.Nil(t, account.PlanUpdatedAt)

	// recorded for idempotency even though nothing was applied
	var events int64
	require.NoError(t, env.db.Model(&domain.EventRecord{}).Count(&events).Error)
	assert.EqualValues(t, 2, events)
}

func TestProcessMalformedNotRecorded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	accountID := snowflake.ID(9004)
	env.seedAccount(t, accountID, plan.Basic)

	cases := []*domain.Event{
		nil,
		{Provider: "stripe", Outcome: domain.OutcomeCompleted, AccountID: accountID, TargetPlan: plan.Pro},   // no key
		{Provider: "stripe", IdempotencyKey: "evt_m1", Outcome: "refunded", AccountID: accountID},            // unknown outcome
		{Provider: "stripe", IdempotencyKey: "evt_m2", Outcome: domain.OutcomeCompleted, AccountID: accountID}, // completed without plan
		{Provider: "stripe", IdempotencyKey: "evt_m3", Outcome: domain.OutcomeCompleted, TargetPlan: plan.Pro}, // no account
	}
	for _, event := range cases {
		_, err := env.svc.Process(ctx, event)
		assert.ErrorIs(t, err, domain.ErrMalformedEvent)
	}

	var events int64
	require.NoError(t, env.db.Model(&domain.EventRecord{}).Count(&events).Error)
	assert.Zero(t, events)
}

func TestProcessMalformedLogsPayloadForReplay(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	env := newTestEnvWithLogger(t, zap.New(core))
	accountID := snowflake.ID(9005)
	env.seedAccount(t, accountID, plan.Basic)

	payload := []byte(`{"id":"evt_m4","type":"checkout.session.completed"}`)
	_, err := env.svc.Process(context.Background(), &domain.Event{
		Provider:       "stripe",
		IdempotencyKey: "evt_m4",
		Outcome:        "refunded",
		AccountID:      accountID,
		RawPayload:     payload,
	})
	require.ErrorIs(t, err, domain.ErrMalformedEvent)

	entries := logs.FilterMessage("malformed payment event rejected").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "stripe", fields["provider"])
	assert.Equal(t, "evt_m4", fields["idempotency_key"])
	assert.Equal(t, string(payload), fields["raw_payload"])
}

func TestProcessUnknownAccount(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Process(context.Background(), completedEvent(snowflake.ID(424242), "evt_ghost", plan.Pro))
	assert.ErrorIs(t, err, accountdomain.ErrAccountNotFound)

	var events int64
	require.NoError(t, env.db.Model(&domain.EventRecord{}).Count(&events).Error)
	assert.Zero(t, events)
}
