package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/invoicedesk/internal/audit/domain"
	"github.com/smallbiznis/invoicedesk/internal/audit/repository"
	"github.com/smallbiznis/invoicedesk/internal/clock"
	obscontext "github.com/smallbiznis/invoicedesk/internal/observability/context"
	"github.com/smallbiznis/invoicedesk/pkg/db/dbtest"
	"github.com/smallbiznis/invoicedesk/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (auditdomain.Service, *clock.FakeClock) {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC))
	return NewService(Params{
		DB:    dbtest.New(t, &auditdomain.AuditLog{}),
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
		Clock: fake,
	}), fake
}

func TestRecordTakesActorFromContext(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := obscontext.WithActor(context.Background(), auditdomain.ActorTypeUser, "u1")
	ctx = obscontext.WithRequestID(ctx, "req-1")

	require.NoError(t, svc.Record(ctx, auditdomain.Entry{
		Action:     "invoice.update",
		TargetType: "invoice",
		TargetID:   "42",
		Metadata:   map[string]any{"mode": "strict"},
	}))

	resp, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{TargetID: "42"})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)

	entry := resp.AuditLogs[0]
	assert.Equal(t, auditdomain.ActorTypeUser, entry.ActorType)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, "u1", *entry.ActorID)
	assert.Equal(t, "strict", entry.Metadata["mode"])
	assert.Equal(t, "req-1", entry.Metadata["request_id"])
	assert.Nil(t, entry.IPAddress)
}

func TestRecordRequiresAction(t *testing.T) {
	svc, _ := newTestService(t)
	assert.ErrorIs(t, svc.Record(context.Background(), auditdomain.Entry{}), auditdomain.ErrInvalidAction)
}

func TestListNewestFirstWithPaging(t *testing.T) {
	svc, fake := newTestService(t)
	ctx := context.Background()

	for _, action := range []string{"invoice.create", "invoice.update", "invoice.delete"} {
		require.NoError(t, svc.Record(ctx, auditdomain.Entry{Action: action, TargetType: "invoice"}))
		fake.Advance(time.Minute)
	}

	resp, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Pagination: pagination.Pagination{Page: 1, PageSize: 2}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), resp.TotalItems)
	assert.True(t, resp.HasMore)
	require.Len(t, resp.AuditLogs, 2)
	assert.Equal(t, "invoice.delete", resp.AuditLogs[0].Action)
	assert.Equal(t, auditdomain.ActorTypeSystem, resp.AuditLogs[0].ActorType)
}
