package transaction_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"disputeflow/test/infra"
	"disputeflow/transaction"
)

func TestPG_ListByUserReturnsEveryRow(t *testing.T) {
	h := infra.Start(t)
	repo := transaction.NewRepository(h.Pool())
	svc := transaction.NewService(repo, repo, nil)
	ctx := t.Context()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	const rows = 520
	for i := range rows {
		_, err := repo.Insert(ctx, transaction.Record{
			ID:        uuid.NewString(),
			UserID:    "U1",
			Type:      "CARD_PURCHASE",
			Amount:    decimal.RequireFromString("10.00"),
			Currency:  transaction.DefaultCurrency,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	all, err := svc.ListByUser(ctx, "U1")
	require.NoError(t, err)
	require.Len(t, all, rows)
	assert.True(t, all[0].CreatedAt.After(all[rows-1].CreatedAt))

	bounded, err := repo.ListByUser(ctx, "U1", 5)
	require.NoError(t, err)
	assert.Len(t, bounded, 5)
}
