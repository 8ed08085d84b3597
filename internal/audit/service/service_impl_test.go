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
	"github.com/webloom/entitled/internal/actorcontext"
	auditdomain "github.com/webloom/entitled/internal/audit/domain"
	auditrepo "github.com/webloom/entitled/internal/audit/repository"
	"github.com/webloom/entitled/internal/clock"
	"github.com/webloom/entitled/pkg/db/pagination"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (auditdomain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&auditdomain.AuditLog{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  auditrepo.Provide(),
	})
	return svc, db, fake
}

func TestAppendResolvesActor(t *testing.T) {
	svc, db, _ := newTestService(t)
	accountID := snowflake.ID(7001)

	ctx := actorcontext.WithActor(context.Background(), actorcontext.Actor{
		Type: actorcontext.ActorTypeProvider,
		ID:   "stripe",
	})
	ctx = actorcontext.WithRequestID(ctx, "req-123")

	err := svc.Append(ctx, nil, auditdomain.Entry{
		Action:         auditdomain.ActionPlanChanged,
		AccountID:      accountID,
		Before:         map[string]any{"plan": "basic"},
		After:          map[string]any{"plan": "pro"},
		IdempotencyKey: "evt_1",
	})
	require.NoError(t, err)

	var row auditdomain.AuditLog
	require.NoError(t, db.First(&row, "account_id = ?", accountID).Error)
	assert.Equal(t, actorcontext.ActorTypeProvider, row.ActorType)
	assert.Equal(t, "stripe", row.ActorID)
	assert.Equal(t, "req-123", row.RequestID)
	assert.Equal(t, "evt_1", row.IdempotencyKey)
	assert.Equal(t, "basic", row.Before["plan"])
	assert.Equal(t, "pro", row.After["plan"])
}

func TestAppendDefaultsToSystemActor(t *testing.T) {
	svc, db, _ := newTestService(t)

	err := svc.Append(context.Background(), nil, auditdomain.Entry{
		Action:    auditdomain.ActionAccountCreated,
		AccountID: snowflake.ID(7002),
	})
	require.NoError(t, err)

	var row auditdomain.AuditLog
	require.NoError(t, db.First(&row, "account_id = ?", snowflake.ID(7002)).Error)
	assert.Equal(t, actorcontext.ActorTypeSystem, row.ActorType)
}

func TestAppendRejectsEmptyAction(t *testing.T) {
	svc, _, _ := newTestService(t)
	err := svc.Append(context.Background(), nil, auditdomain.Entry{AccountID: snowflake.ID(1)})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)
}

func TestListPaginates(t *testing.T) {
	svc, _, fake := newTestService(t)
	ctx := context.Background()
	accountID := snowflake.ID(7003)

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.Append(ctx, nil, auditdomain.Entry{
			Action:    auditdomain.ActionPlanChanged,
			AccountID: accountID,
			After:     map[string]any{"step": i},
		}))
		fake.Advance(time.Second)
	}

	first, err := svc.List(ctx, auditdomain.ListRequest{AccountID: accountID.String()})
	require.NoError(t, err)
	assert.Len(t, first.AuditLogs, 5)
	assert.False(t, first.HasMore)

	page, err := svc.List(ctx, auditdomain.ListRequest{
		Pagination: paginationOf(2),
		AccountID:  accountID.String(),
	})
	require.NoError(t, err)
	require.Len(t, page.AuditLogs, 2)
	assert.True(t, page.HasMore)
	require.NotEmpty(t, page.NextPageToken)

	rest, err := svc.List(ctx, auditdomain.ListRequest{
		Pagination: paginationWithToken(10, page.NextPageToken),
		AccountID:  accountID.String(),
	})
	require.NoError(t, err)
	assert.Len(t, rest.AuditLogs, 3)
	assert.False(t, rest.HasMore)

	// newest first, no overlap across pages
	seen := map[string]bool{}
	for _, row := range append(page.AuditLogs, rest.AuditLogs...) {
		assert.False(t, seen[row.ID.String()])
		seen[row.ID.String()] = true
	}
}

func paginationOf(size int32) pagination.Pagination {
	return pagination.Pagination{PageSize: size}
}

func paginationWithToken(size int32, token string) pagination.Pagination {
	return pagination.Pagination{PageSize: size, PageToken: token}
}

func TestListRejectsBadToken(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.List(context.Background(), auditdomain.ListRequest{
		Pagination: paginationWithToken(10, "not-a-cursor"),
	})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidPageToken)
}
