package entitlement

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"creditledger/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	db := testutil.NewTestDB(t, &AccountEntitlement{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return &Service{db: db, node: node}
}

func TestGrantCreatesEntitlement(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Grant(ctx, "acct-1", []string{"premium", "archive"}))

	tags, err := svc.List(ctx, "acct-1")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"premium", "archive"}, tags)
}

func TestGrantUnionsWithExistingTags(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Grant(ctx, "acct-1", []string{"basic"}))
	require.NoError(t, svc.Grant(ctx, "acct-1", []string{"premium", "basic"}))

	tags, err := svc.List(ctx, "acct-1")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"basic", "premium"}, tags)
}

func TestGrantIsIdempotent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Grant(ctx, "acct-1", []string{"premium"}))
	require.NoError(t, svc.Grant(ctx, "acct-1", []string{"premium"}))
	require.NoError(t, svc.Grant(ctx, "acct-1", []string{"premium"}))

	tags, err := svc.List(ctx, "acct-1")
	require.NoError(t, err)
	require.Equal(t, []string{"premium"}, tags)
}

func TestGrantEmptyTagsNoop(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Grant(ctx, "acct-1", nil))

	tags, err := svc.List(ctx, "acct-1")
	require.NoError(t, err)
	require.Empty(t, tags)
}

func TestListUnknownAccountEmpty(t *testing.T) {
	svc := newTestService(t)

	tags, err := svc.List(context.Background(), "nobody")
	require.NoError(t, err)
	require.Empty(t, tags)
}

func TestGrantRequiresAccountID(t *testing.T) {
	svc := newTestService(t)
	require.Error(t, svc.Grant(context.Background(), "", []string{"premium"}))
}
