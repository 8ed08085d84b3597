package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/webloom/entitled/internal/account/domain"
	"github.com/webloom/entitled/internal/actorcontext"
	auditdomain "github.com/webloom/entitled/internal/audit/domain"
	"github.com/webloom/entitled/internal/clock"
	"github.com/webloom/entitled/internal/observability/metrics"
	"github.com/webloom/entitled/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    auditdomain.Repository
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    auditdomain.Repository
	metrics *metrics.Metrics
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("audit.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

func (s *Service) Append(ctx context.Context, db *gorm.DB, entry auditdomain.Entry) error {
	if strings.TrimSpace(string(entry.Action)) == "" {
		return auditdomain.ErrInvalidAction
	}
	if db == nil {
		db = s.db
	}

	actor, ok := actorcontext.ActorFromContext(ctx)
	if !ok {
		actor = actorcontext.Actor{Type: actorcontext.ActorTypeSystem}
	}

	row := auditdomain.AuditLog{
		ID:             s.genID.Generate(),
		ActorType:      actor.Type,
		ActorID:        actor.ID,
		Action:         entry.Action,
		AccountID:      entry.AccountID,
		Before:         datatypes.JSONMap(entry.Before),
		After:          datatypes.JSONMap(entry.After),
		IdempotencyKey: entry.IdempotencyKey,
		RequestID:      actorcontext.RequestIDFromContext(ctx),
		CreatedAt:      s.clock.Now(),
	}

	if err := s.repo.Insert(ctx, db, &row); err != nil {
		s.log.Error("audit append failed",
			zap.String("action", string(entry.Action)),
			zap.String("account_id", entry.AccountID.String()),
			zap.Error(err),
		)
		return err
	}
	s.metrics.RecordAuditWrite(ctx, string(entry.Action))
	return nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListRequest) (auditdomain.ListResponse, error) {
	filter := auditdomain.ListFilter{Action: req.Action}

	if raw := strings.TrimSpace(req.AccountID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil || id == 0 {
			return auditdomain.ListResponse{}, accountdomain.ErrInvalidAccount
		}
		filter.AccountID = id
	}

	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return auditdomain.ListResponse{}, auditdomain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		if err != nil {
			return auditdomain.ListResponse{}, auditdomain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return auditdomain.ListResponse{}, auditdomain.ErrInvalidPageToken
		}
		filter.Cursor = &auditdomain.AuditCursor{ID: id, CreatedAt: createdAt}
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}
	filter.Limit = int(pageSize)

	logs, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return auditdomain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(logs, pageSize, func(row *auditdomain.AuditLog) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        row.ID.String(),
			CreatedAt: row.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})

	if len(logs) > int(pageSize) {
		logs = logs[:pageSize]
	}
	return auditdomain.ListResponse{
		PageInfo:  *pageInfo,
		AuditLogs: logs,
	}, nil
}
