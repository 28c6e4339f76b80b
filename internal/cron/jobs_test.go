package cron

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/items"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

var jobNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newJobDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:cron_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(models.All()...))
	return conn
}

func seedStaleOrder(t *testing.T, conn *gorm.DB, status enums.OrderStatus, createdAt time.Time, item models.Item, qty int) models.Order {
	t.Helper()
	order := models.Order{
		UserID:      uuid.New(),
		AddressID:   uuid.New(),
		TotalCount:  qty,
		TotalAmount: item.Price.Mul(decimal.NewFromInt(int64(qty))),
		Freight:     decimal.Zero,
		PayMethod:   enums.PayMethodCard,
		Status:      status,
		CreatedAt:   createdAt,
	}
	require.NoError(t, conn.Omit("Lines").Create(&order).Error)
	line := models.OrderLine{OrderID: order.ID, ItemID: item.ID, Quantity: qty, UnitPrice: item.Price}
	require.NoError(t, conn.Omit("Item").Create(&line).Error)
	return order
}

func newOrderTTLJob(t *testing.T, conn *gorm.DB) *orderTTLJob {
	t.Helper()
	job, err := NewOrderTTLJob(OrderTTLJobParams{
		Logger:    logger.Nop(),
		DB:        db.NewFromConn(conn),
		Orders:    orders.NewRepository(conn),
		Items:     items.NewRepository(conn),
		Outbox:    outbox.NewService(outbox.NewRepository(conn), logger.Nop()),
		UnpaidTTL: 30 * time.Minute,
	})
	require.NoError(t, err)
	ttl := job.(*orderTTLJob)
	ttl.now = func() time.Time { return jobNow }
	return ttl
}

func TestOrderTTLJobCancelsAndRestocks(t *testing.T) {
	conn := newJobDB(t)
	product := models.Product{Name: "Mug"}
	require.NoError(t, conn.Create(&product).Error)
	item := models.Item{ProductID: product.ID, Name: "Mug", Price: decimal.RequireFromString("8.00"), Stock: 3}
	require.NoError(t, conn.Create(&item).Error)
	// state after checkout debited 2
	require.NoError(t, conn.Model(&item).Update("sales", 2).Error)
	require.NoError(t, conn.Model(&product).Update("sales", 2).Error)

	stale := seedStaleOrder(t, conn, enums.OrderStatusUnpaid, jobNow.Add(-time.Hour), item, 2)
	fresh := seedStaleOrder(t, conn, enums.OrderStatusUnpaid, jobNow.Add(-10*time.Minute), item, 1)
	paid := seedStaleOrder(t, conn, enums.OrderStatusUnsent, jobNow.Add(-time.Hour), item, 1)

	job := newOrderTTLJob(t, conn)
	require.NoError(t, job.Run(context.Background()))

	status := func(id uuid.UUID) enums.OrderStatus {
		var o models.Order
		require.NoError(t, conn.First(&o, "id = ?", id).Error)
		return o.Status
	}
	require.Equal(t, enums.OrderStatusCanceled, status(stale.ID))
	require.Equal(t, enums.OrderStatusUnpaid, status(fresh.ID))
	require.Equal(t, enums.OrderStatusUnsent, status(paid.ID))

	var reloaded models.Item
	require.NoError(t, conn.First(&reloaded, "id = ?", item.ID).Error)
	require.Equal(t, 5, reloaded.Stock)
	require.Equal(t, 0, reloaded.Sales)

	var reloadedProduct models.Product
	require.NoError(t, conn.First(&reloadedProduct, "id = ?", product.ID).Error)
	require.Equal(t, 0, reloadedProduct.Sales)

	var event models.OutboxEvent
	require.NoError(t, conn.First(&event, "aggregate_id = ?", stale.ID).Error)
	require.Equal(t, enums.EventOrderCanceled, event.EventType)

	// second pass finds nothing left to cancel
	require.NoError(t, job.Run(context.Background()))
	require.NoError(t, conn.First(&reloaded, "id = ?", item.ID).Error)
	require.Equal(t, 5, reloaded.Stock)
}

func TestOrderTTLJobRequiresDeps(t *testing.T) {
	_, err := NewOrderTTLJob(OrderTTLJobParams{Logger: logger.Nop()})
	require.Error(t, err)
}

func TestOutboxRetentionJobDeletesOnlyOldPublishedRows(t *testing.T) {
	conn := newJobDB(t)
	old := jobNow.Add(-40 * 24 * time.Hour)
	recent := jobNow.Add(-24 * time.Hour)
	rows := []models.OutboxEvent{
		{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: []byte(`{}`), PublishedAt: &old},
		{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: []byte(`{}`), PublishedAt: &recent},
		{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: []byte(`{}`)},
	}
	require.NoError(t, conn.Create(&rows).Error)

	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     logger.Nop(),
		Repository: outbox.NewRepository(conn),
		Retention:  30 * 24 * time.Hour,
	})
	require.NoError(t, err)
	job.(*outboxRetentionJob).now = func() time.Time { return jobNow }

	require.NoError(t, job.Run(context.Background()))

	var remaining int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&remaining).Error)
	require.EqualValues(t, 2, remaining)
}
