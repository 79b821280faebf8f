package purchase

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"creditledger/services/testutil"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db := testutil.NewTestDB(t, &Purchase{}, &Product{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return &Service{db: db, node: node}
}

func TestCreateAndFindByReference(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "ref-abc", "acct-1", "prod-1", 990)
	require.NoError(t, err)
	require.Equal(t, "pending", created.Status)

	found, err := svc.FindByReference(ctx, "ref-abc")
	require.NoError(t, err)
	require.Equal(t, created.ID, found.ID)
	require.Equal(t, int64(990), found.AmountCents)
}

func TestFindByReferenceUnknown(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.FindByReference(context.Background(), "no-such-ref")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStatusReportsChange(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "ref-abc", "acct-1", "prod-1", 990)
	require.NoError(t, err)

	changed, err := svc.UpdateStatus(ctx, "ref-abc", "paid")
	require.NoError(t, err)
	require.True(t, changed)

	// same status again is a no-op
	changed, err = svc.UpdateStatus(ctx, "ref-abc", "paid")
	require.NoError(t, err)
	require.False(t, changed)

	found, err := svc.FindByReference(ctx, "ref-abc")
	require.NoError(t, err)
	require.Equal(t, "paid", found.Status)
}

func TestProductFor(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.db.Create(&Product{
		ID:         "prod-1",
		Name:       "Pro plan",
		AccessTags: datatypes.JSON(`["premium"]`),
	}).Error)

	p, err := svc.Create(ctx, "ref-abc", "acct-1", "prod-1", 990)
	require.NoError(t, err)

	product, err := svc.ProductFor(ctx, p)
	require.NoError(t, err)
	require.Equal(t, "Pro plan", product.Name)

	tags, err := product.Tags()
	require.NoError(t, err)
	require.Equal(t, []string{"premium"}, tags)
}
