package adapters

import (
	"context"
	"testing"
	"time"

	"storefront/internal/features/orders/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

var fixtureTime = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func ns(mt *mtest.T) string {
	return mt.Coll.Database().Name() + "." + mt.Coll.Name()
}

func fixtureOrder(id, publicID string) *domain.Order {
	return &domain.Order{
		ID:       id,
		PublicID: publicID,
		OwnerID:  "user-1",
		LineItems: []domain.LineItem{
			{ProductID: "p1", Name: "Mug", UnitPrice: 100, Quantity: 2, LineTotal: 200},
		},
		ShippingAddress: domain.ShippingAddress{
			FullName: "Asha Rao", Phone: "9876543210", Street: "12 MG Road",
			City: "Bengaluru", State: "KA", PostalCode: "560001", Country: "India",
		},
		PaymentDetails: domain.PaymentDetails{Method: domain.PaymentMethodCOD, Status: domain.PaymentRecordPending},
		OrderStatus:    domain.OrderStatusPending,
		PaymentStatus:  domain.PaymentStatusPending,
		Subtotal:       200,
		Tax:            36,
		DeliveryCharge: 49,
		TotalAmount:    285,
		Timeline: []domain.TimelineEntry{
			{Status: domain.OrderStatusPending, Message: domain.OrderPlacedMessage, Timestamp: fixtureTime},
		},
		Version:   1,
		CreatedAt: fixtureTime,
		UpdatedAt: fixtureTime,
	}
}

func docOf(t *testing.T, o *domain.Order) bson.D {
	t.Helper()
	doc, err := toDocument(o)
	require.NoError(t, err)
	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	var d bson.D
	require.NoError(t, bson.Unmarshal(raw, &d))
	return d
}

func countResponse(mt *mtest.T, n int64) bson.D {
	return mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, bson.D{{Key: "_id", Value: 1}, {Key: "n", Value: n}})
}

func replaceResponse(matched int) bson.D {
	return mtest.CreateSuccessResponse(bson.E{Key: "n", Value: matched}, bson.E{Key: "nModified", Value: matched})
}

const (
	orderHexID   = "65f1a2b3c4d5e6f708192a3b"
	otherHexID   = "65f1a2b3c4d5e6f708192a3c"
	fixturePubID = "ORD-123456-001"
)

func TestMongoOrderRepository_Create(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("Success", func(mt *mtest.T) {
		repo := NewMongoOrderRepository(mt.Coll, 3)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		order := fixtureOrder("", fixturePubID)
		order.Version = 0
		require.NoError(mt, repo.Create(context.Background(), order))
		assert.Len(mt, order.ID, 24)
		assert.Equal(mt, int64(1), order.Version)
	})

	mt.Run("DuplicatePublicID", func(mt *mtest.T) {
		repo := NewMongoOrderRepository(mt.Coll, 3)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: orders index: publicId_unique",
		}))

		err := repo.Create(context.Background(), fixtureOrder("", fixturePubID))
		assert.ErrorIs(mt, err, domain.ErrDuplicatePublicID)
	})

	mt.Run("StoreFailure", func(mt *mtest.T) {
		repo := NewMongoOrderRepository(mt.Coll, 3)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    1,
			Message: "internal failure",
			Name:    "InternalError",
		}))

		err := repo.Create(context.Background(), fixtureOrder("", fixturePubID))
		require.Error(mt, err)
		assert.NotErrorIs(mt, err, domain.ErrDuplicatePublicID)
		assert.Contains(mt, err.Error(), "failed to insert order")
	})
}

func TestMongoOrderRepository_Find(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("FindByID", func(mt *mtest.T) {
		repo := NewMongoOrderRepository(mt.Coll, 3)
		want := fixtureOrder(orderHexID, fixturePubID)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, docOf(mt.T, want)))

		got, err := repo.FindByID(context.Background(), orderHexID)
		require.NoError(mt, err)
		assert.Equal(mt, want, got)
	})

	mt.Run("FindByIDInvalidHex", func(mt *mtest.T) {
		repo := NewMongoOrderRepository(mt.Coll, 3)

		got, err := repo.FindByID(context.Background(), "ORD-123456-001")
		assert.NoError(mt, err)
		assert.Nil(mt, got)
	})

	mt.Run("FindByPublicIDMissing", func(mt *mtest.T) {
		repo := NewMongoOrderRepository(mt.Coll, 3)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch))

		got, err := repo.FindByPublicID(context.Background(), fixturePubID, "user-9")
		assert.NoError(mt, err)
		assert.Nil(mt, got)
	})

	mt.Run("FindByPublicIDError", func(mt *mtest.T) {
		repo := NewMongoOrderRepository(mt.Coll, 3)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 1, Message: "boom", Name: "InternalError"}))

		_, err := repo.FindByPublicID(context.Background(), fixturePubID, "")
		assert.Error(mt, err)
	})
}

func TestMongoOrderRepository_List(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("FindByUser", func(mt *mtest.T) {
		repo := NewMongoOrderRepository(mt.Coll, 3)
		newer := fixtureOrder(otherHexID, "ORD-123457-002")
		older := fixtureOrder(orderHexID, fixturePubID)
		mt.AddMockResponses(
			countResponse(mt, 12),
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, docOf(mt.T, newer), docOf(mt.T, older)),
		)

		q := domain.ListQuery{Page: 2, Limit: 10}
		page, err := repo.FindByUser(context.Background(), "user-1", q)
		require.NoError(mt, err)
		require.Len(mt, page.Orders, 2)
		assert.Equal(mt, "ORD-123457-002", page.Orders[0].PublicID)
		assert.Equal(mt, domain.Pagination{Page: 2, Limit: 10, Total: 12, Pages: 2}, page.Pagination)
	})

	mt.Run("FindAllEmpty", func(mt *mtest.T) {
		repo := NewMongoOrderRepository(mt.Coll, 3)
		mt.AddMockResponses(
			countResponse(mt, 0),
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch),
		)

		page, err := repo.FindAll(context.Background(), domain.ListQuery{Page: 1, Limit: 20})
		require.NoError(mt, err)
		assert.Empty(mt, page.Orders)
		assert.Equal(mt, 0, page.Pagination.Pages)
	})

	mt.Run("Recent", func(mt *mtest.T) {
		repo := NewMongoOrderRepository(mt.Coll, 3)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, docOf(mt.T, fixtureOrder(orderHexID, fixturePubID))))

		orders, err := repo.Recent(context.Background(), 5)
		require.NoError(mt, err)
		require.Len(mt, orders, 1)
		assert.Equal(mt, orderHexID, orders[0].ID)
	})
}

func TestListFilter(t *testing.T) {
	from := fixtureTime
	to := fixtureTime.Add(24 * time.Hour)

	assert.Equal(t, bson.M{}, listFilter(domain.ListQuery{}))
	assert.Equal(t, bson.M{
		"ownerId":     "user-1",
		"orderStatus": "shipped",
		"createdAt":   bson.M{"$gte": from, "$lte": to},
	}, listFilter(domain.ListQuery{UserID: "user-1", Status: domain.OrderStatusShipped, From: &from, To: &to}))
	assert.Equal(t, bson.M{"createdAt": bson.M{"$gte": from}}, listFilter(domain.ListQuery{From: &from}))
}

func TestMongoOrderRepository_Update(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	confirm := func(o *domain.Order) error {
		return o.UpdateStatus(domain.OrderStatusConfirmed, "", fixtureTime.Add(time.Hour))
	}

	mt.Run("Success", func(mt *mtest.T) {
		repo := NewMongoOrderRepository(mt.Coll, 3)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, docOf(mt.T, fixtureOrder(orderHexID, fixturePubID))),
			replaceResponse(1),
		)

		got, err := repo.Update(context.Background(), orderHexID, confirm)
		require.NoError(mt, err)
		assert.Equal(mt, domain.OrderStatusConfirmed, got.OrderStatus)
		assert.Equal(mt, int64(2), got.Version)
		assert.Len(mt, got.Timeline, 2)
	})

	mt.Run("RetriesAfterLostRace", func(mt *mtest.T) {
		repo := NewMongoOrderRepository(mt.Coll, 3)
		moved := fixtureOrder(orderHexID, fixturePubID)
		moved.Version = 2
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, docOf(mt.T, fixtureOrder(orderHexID, fixturePubID))),
			replaceResponse(0),
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, docOf(mt.T, moved)),
			replaceResponse(1),
		)

		got, err := repo.Update(context.Background(), orderHexID, confirm)
		require.NoError(mt, err)
		assert.Equal(mt, int64(3), got.Version)
	})

	mt.Run("ConflictAfterAttempts", func(mt *mtest.T) {
		repo := NewMongoOrderRepository(mt.Coll, 2)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, docOf(mt.T, fixtureOrder(orderHexID, fixturePubID))),
			replaceResponse(0),
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, docOf(mt.T, fixtureOrder(orderHexID, fixturePubID))),
			replaceResponse(0),
		)

		_, err := repo.Update(context.Background(), orderHexID, confirm)
		assert.ErrorIs(mt, err, domain.ErrConflict)
	})

	mt.Run("MutationRejected", func(mt *mtest.T) {
		repo := NewMongoOrderRepository(mt.Coll, 3)
		delivered := fixtureOrder(orderHexID, fixturePubID)
		delivered.OrderStatus = domain.OrderStatusDelivered
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, docOf(mt.T, delivered)))

		_, err := repo.Update(context.Background(), orderHexID, func(o *domain.Order) error {
			return o.Cancel("", fixtureTime)
		})
		assert.ErrorIs(mt, err, domain.ErrInvalidState)
	})

	mt.Run("NotFound", func(mt *mtest.T) {
		repo := NewMongoOrderRepository(mt.Coll, 3)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch))

		_, err := repo.Update(context.Background(), orderHexID, confirm)
		assert.ErrorIs(mt, err, domain.ErrNotFound)
	})
}

func TestMongoOrderRepository_Stats(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("Global", func(mt *mtest.T) {
		repo := NewMongoOrderRepository(mt.Coll, 3)
		mt.AddMockResponses(
			countResponse(mt, 10),
			countResponse(mt, 3),
			countResponse(mt, 5),
			countResponse(mt, 2),
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, bson.D{{Key: "_id", Value: nil}, {Key: "total", Value: 4250.5}}),
		)

		stats, err := repo.Stats(context.Background(), "")
		require.NoError(mt, err)
		assert.Equal(mt, int64(10), stats.Total)
		assert.Equal(mt, int64(3), stats.Pending)
		assert.Equal(mt, int64(5), stats.Delivered)
		assert.Equal(mt, int64(2), stats.Cancelled)
		require.NotNil(mt, stats.Revenue)
		assert.Equal(mt, 4250.5, *stats.Revenue)
	})

	mt.Run("GlobalNoRevenue", func(mt *mtest.T) {
		repo := NewMongoOrderRepository(mt.Coll, 3)
		mt.AddMockResponses(
			countResponse(mt, 1),
			countResponse(mt, 1),
			countResponse(mt, 0),
			countResponse(mt, 0),
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch),
		)

		stats, err := repo.Stats(context.Background(), "")
		require.NoError(mt, err)
		require.NotNil(mt, stats.Revenue)
		assert.Zero(mt, *stats.Revenue)
	})

	mt.Run("UserScoped", func(mt *mtest.T) {
		repo := NewMongoOrderRepository(mt.Coll, 3)
		mt.AddMockResponses(
			countResponse(mt, 4),
			countResponse(mt, 1),
			countResponse(mt, 2),
			countResponse(mt, 1),
		)

		stats, err := repo.Stats(context.Background(), "user-1")
		require.NoError(mt, err)
		assert.Equal(mt, int64(4), stats.Total)
		assert.Nil(mt, stats.Revenue)
	})

	mt.Run("CountFails", func(mt *mtest.T) {
		repo := NewMongoOrderRepository(mt.Coll, 3)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 1, Message: "boom", Name: "InternalError"}))

		_, err := repo.Stats(context.Background(), "")
		assert.Error(mt, err)
	})
}

func TestMongoOrderRepository_Delete(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("Success", func(mt *mtest.T) {
		repo := NewMongoOrderRepository(mt.Coll, 3)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))
		assert.NoError(mt, repo.Delete(context.Background(), orderHexID))
	})

	mt.Run("Missing", func(mt *mtest.T) {
		repo := NewMongoOrderRepository(mt.Coll, 3)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))
		assert.ErrorIs(mt, repo.Delete(context.Background(), orderHexID), domain.ErrNotFound)
	})
}

func TestMongoOrderRepository_EnsureIndexes(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("Success", func(mt *mtest.T) {
		repo := NewMongoOrderRepository(mt.Coll, 3)
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		assert.NoError(mt, repo.EnsureIndexes(context.Background()))
	})

	mt.Run("Failure", func(mt *mtest.T) {
		repo := NewMongoOrderRepository(mt.Coll, 3)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 85, Message: "IndexOptionsConflict", Name: "IndexOptionsConflict"}))

		err := repo.EnsureIndexes(context.Background())
		require.Error(mt, err)
		assert.Contains(mt, err.Error(), "failed to create order indexes")
	})
}
