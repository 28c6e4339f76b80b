package items

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:items_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func seedItem(t *testing.T, db *gorm.DB, stock int) (models.Product, models.Item) {
	t.Helper()
	product := models.Product{Name: "Notebook"}
	require.NoError(t, db.Create(&product).Error)
	item := models.Item{
		ProductID: product.ID,
		Name:      "Notebook A5",
		Price:     decimal.RequireFromString("10.00"),
		Stock:     stock,
	}
	require.NoError(t, db.Create(&item).Error)
	return product, item
}

func reload(t *testing.T, db *gorm.DB, id uuid.UUID) models.Item {
	t.Helper()
	var item models.Item
	require.NoError(t, db.First(&item, "id = ?", id).Error)
	return item
}

func TestFindByIDMissingIsNotFound(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	_, err := repo.FindByID(context.Background(), uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestFindByIDsSkipsMissing(t *testing.T) {
	db := newTestDB(t)
	_, item := seedItem(t, db, 3)
	repo := NewRepository(db)

	found, err := repo.FindByIDs(context.Background(), []uuid.UUID{item.ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "Notebook A5", found[item.ID].Name)
	require.True(t, found[item.ID].Price.Equal(decimal.RequireFromString("10")))

	empty, err := repo.FindByIDs(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestDebitStockIsConditional(t *testing.T) {
	db := newTestDB(t)
	_, item := seedItem(t, db, 5)
	repo := NewRepository(db)
	ctx := context.Background()

	ok, err := repo.DebitStock(ctx, item.ID, 3)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.DebitStock(ctx, item.ID, 3)
	require.NoError(t, err)
	require.False(t, ok)

	got := reload(t, db, item.ID)
	require.Equal(t, 2, got.Stock)
	require.Equal(t, 3, got.Sales)

	_, err = repo.DebitStock(ctx, item.ID, 0)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestRestockReversesDebit(t *testing.T) {
	db := newTestDB(t)
	product, item := seedItem(t, db, 5)
	repo := NewRepository(db)
	ctx := context.Background()

	_, err := repo.DebitStock(ctx, item.ID, 2)
	require.NoError(t, err)
	require.NoError(t, repo.AdjustProductSales(ctx, product.ID, 2))

	require.NoError(t, repo.Restock(ctx, item.ID, 2))
	require.NoError(t, repo.AdjustProductSales(ctx, product.ID, -2))

	got := reload(t, db, item.ID)
	require.Equal(t, 5, got.Stock)
	require.Equal(t, 0, got.Sales)

	var p models.Product
	require.NoError(t, db.First(&p, "id = ?", product.ID).Error)
	require.Equal(t, 0, p.Sales)

	require.NoError(t, repo.AdjustProductSales(ctx, product.ID, -7))
	require.NoError(t, db.First(&p, "id = ?", product.ID).Error)
	require.Equal(t, 0, p.Sales, "sales never go negative")
}

func TestIncrementCommentCountInsideTx(t *testing.T) {
	db := newTestDB(t)
	_, item := seedItem(t, db, 1)
	repo := NewRepository(db)

	err := db.Transaction(func(tx *gorm.DB) error {
		return repo.WithTx(tx).IncrementCommentCount(context.Background(), item.ID)
	})
	require.NoError(t, err)
	require.Equal(t, 1, reload(t, db, item.ID).CommentCount)
}
