package adapters

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/core/logger"
	"storefront/internal/features/orders/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

var newestFirst = bson.D{{Key: "createdAt", Value: -1}}

// MongoOrderRepository implements ports.OrderRepository on a MongoDB collection.
type MongoOrderRepository struct {
	coll           *mongo.Collection
	updateAttempts int
}

// NewMongoOrderRepository creates a repository over coll. updateAttempts bounds
// how many times Update retries after losing a version race.
func NewMongoOrderRepository(coll *mongo.Collection, updateAttempts int) *MongoOrderRepository {
	if updateAttempts < 1 {
		updateAttempts = 1
	}
	return &MongoOrderRepository{
		coll:           coll,
		updateAttempts: updateAttempts,
	}
}

// EnsureIndexes creates the indexes the order queries rely on.
func (r *MongoOrderRepository) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "publicId", Value: 1}},
			Options: options.Index().SetName("publicId_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "ownerId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("ownerId_createdAt"),
		},
		{Keys: bson.D{{Key: "orderStatus", Value: 1}}, Options: options.Index().SetName("orderStatus")},
		{Keys: bson.D{{Key: "paymentStatus", Value: 1}}, Options: options.Index().SetName("paymentStatus")},
		{Keys: bson.D{{Key: "paymentDetails.method", Value: 1}}, Options: options.Index().SetName("paymentMethod")},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}, Options: options.Index().SetName("createdAt")},
		{
			Keys:    bson.D{{Key: "tracking.trackingNumber", Value: 1}},
			Options: options.Index().SetName("trackingNumber").SetSparse(true),
		},
	}

	names, err := r.coll.Indexes().CreateMany(ctx, models)
	if err != nil {
		return fmt.Errorf("mongo: failed to create order indexes: %w", err)
	}
	logger.FromContext(ctx).Info("Order indexes ensured", zap.Strings("indexes", names))
	return nil
}

// Create inserts a new order, assigning its ID and initial version.
func (r *MongoOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	doc, err := toDocument(order)
	if err != nil {
		return err
	}
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}
	doc.Version = 1

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", domain.ErrDuplicatePublicID, order.PublicID)
		}
		return fmt.Errorf("mongo: failed to insert order: %w", err)
	}

	order.ID = doc.ID.Hex()
	order.Version = doc.Version
	return nil
}

// FindByID returns the order with the given hex id.
func (r *MongoOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

// FindByPublicID returns the order with the given public id, optionally owned by ownerID.
func (r *MongoOrderRepository) FindByPublicID(ctx context.Context, publicID, ownerID string) (*domain.Order, error) {
	filter := bson.M{"publicId": publicID}
	if ownerID != "" {
		filter["ownerId"] = ownerID
	}
	return r.findOne(ctx, filter)
}

func (r *MongoOrderRepository) findOne(ctx context.Context, filter bson.M) (*domain.Order, error) {
	var doc orderDocument
	err := r.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongo: failed to find order: %w", err)
	}
	return doc.toDomain(), nil
}

// FindByUser lists the orders placed by userID, newest first.
func (r *MongoOrderRepository) FindByUser(ctx context.Context, userID string, q domain.ListQuery) (*domain.OrderPage, error) {
	q.UserID = userID
	return r.list(ctx, q)
}

// FindAll lists orders across users, newest first.
func (r *MongoOrderRepository) FindAll(ctx context.Context, q domain.ListQuery) (*domain.OrderPage, error) {
	return r.list(ctx, q)
}

func (r *MongoOrderRepository) list(ctx context.Context, q domain.ListQuery) (*domain.OrderPage, error) {
	filter := listFilter(q)

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("mongo: failed to count orders: %w", err)
	}

	opts := options.Find().
		SetSort(newestFirst).
		SetSkip(q.Skip()).
		SetLimit(int64(q.Limit))

	orders, err := r.find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	return &domain.OrderPage{
		Orders:     orders,
		Pagination: domain.NewPagination(q.Page, q.Limit, total),
	}, nil
}

func (r *MongoOrderRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domain.Order, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: failed to query orders: %w", err)
	}
	defer cur.Close(ctx)

	var docs []orderDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: failed to decode orders: %w", err)
	}

	orders := make([]*domain.Order, 0, len(docs))
	for i := range docs {
		orders = append(orders, docs[i].toDomain())
	}
	return orders, nil
}

// listFilter translates a ListQuery into a collection filter.
func listFilter(q domain.ListQuery) bson.M {
	filter := bson.M{}
	if q.UserID != "" {
		filter["ownerId"] = q.UserID
	}
	if q.Status != "" {
		filter["orderStatus"] = string(q.Status)
	}
	if q.From != nil || q.To != nil {
		created := bson.M{}
		if q.From != nil {
			created["$gte"] = *q.From
		}
		if q.To != nil {
			created["$lte"] = *q.To
		}
		filter["createdAt"] = created
	}
	return filter
}

// Update applies mutate to a fresh copy of the order and saves it with a
// compare-and-swap on version, reloading and retrying when the swap misses.
func (r *MongoOrderRepository) Update(ctx context.Context, id string, mutate func(*domain.Order) error) (*domain.Order, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.NewNotFoundError("Order not found")
	}

	for attempt := 1; attempt <= r.updateAttempts; attempt++ {
		current, err := r.findOne(ctx, bson.M{"_id": oid})
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, domain.NewNotFoundError("Order not found")
		}

		next := current.Clone()
		if err := mutate(next); err != nil {
			return nil, err
		}
		next.Version = current.Version + 1

		doc, err := toDocument(next)
		if err != nil {
			return nil, err
		}

		res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": oid, "version": current.Version}, doc)
		if err != nil {
			return nil, fmt.Errorf("mongo: failed to update order: %w", err)
		}
		if res.MatchedCount == 1 {
			return next, nil
		}

		logger.FromContext(ctx).Debug("Order version moved, retrying update",
			zap.String("order_id", id),
			zap.Int64("version", current.Version),
			zap.Int("attempt", attempt),
		)
	}

	return nil, domain.NewConflictError("Order was modified concurrently, please retry", nil)
}

// Stats counts orders by status. Revenue is only computed when userID is empty.
func (r *MongoOrderRepository) Stats(ctx context.Context, userID string) (*domain.Stats, error) {
	base := bson.M{}
	if userID != "" {
		base["ownerId"] = userID
	}

	count := func(status domain.OrderStatus) (int64, error) {
		filter := bson.M{}
		for k, v := range base {
			filter[k] = v
		}
		if status != "" {
			filter["orderStatus"] = string(status)
		}
		n, err := r.coll.CountDocuments(ctx, filter)
		if err != nil {
			return 0, fmt.Errorf("mongo: failed to count orders: %w", err)
		}
		return n, nil
	}

	var stats domain.Stats
	var err error
	if stats.Total, err = count(""); err != nil {
		return nil, err
	}
	if stats.Pending, err = count(domain.OrderStatusPending); err != nil {
		return nil, err
	}
	if stats.Delivered, err = count(domain.OrderStatusDelivered); err != nil {
		return nil, err
	}
	if stats.Cancelled, err = count(domain.OrderStatusCancelled); err != nil {
		return nil, err
	}

	if userID == "" {
		revenue, err := r.revenue(ctx)
		if err != nil {
			return nil, err
		}
		stats.Revenue = &revenue
	}

	return &stats, nil
}

func (r *MongoOrderRepository) revenue(ctx context.Context) (float64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"orderStatus":   string(domain.OrderStatusDelivered),
			"paymentStatus": string(domain.PaymentStatusPaid),
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": "$totalAmount"},
		}}},
	}

	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("mongo: failed to aggregate revenue: %w", err)
	}
	defer cur.Close(ctx)

	var rows []struct {
		Total float64 `bson:"total"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return 0, fmt.Errorf("mongo: failed to decode revenue: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Total, nil
}

// Recent returns the latest orders across users.
func (r *MongoOrderRepository) Recent(ctx context.Context, limit int) ([]*domain.Order, error) {
	return r.find(ctx, bson.M{}, options.Find().SetSort(newestFirst).SetLimit(int64(limit)))
}

// Delete removes an order permanently.
func (r *MongoOrderRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.NewNotFoundError("Order not found")
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("mongo: failed to delete order: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.NewNotFoundError("Order not found")
	}
	return nil
}
