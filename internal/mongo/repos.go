package mongo

import (
	"context"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dukerupert/mercato/internal/domain"
)

type userRepo struct{ s scope }

func (r *userRepo) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	const op = "mongo.FindUserByID"
	oid, err := objectID(id, op)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, op, bson.M{"_id": oid})
}

func (r *userRepo) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	pattern := primitive.Regex{Pattern: "^" + regexp.QuoteMeta(email) + "$", Options: "i"}
	return r.findOne(ctx, "mongo.FindUserByEmail", bson.M{"email": pattern})
}

func (r *userRepo) findOne(ctx context.Context, op string, filter bson.M) (*domain.User, error) {
	var doc userDoc
	err := r.s.coll(usersCollection).FindOne(r.s.ctx(ctx), filter).Decode(&doc)
	if err != nil {
		return nil, notFound(err, op, domain.ErrUserNotFound)
	}
	return doc.toDomain(), nil
}

type productRepo struct{ s scope }

func (r *productRepo) FindProductByID(ctx context.Context, id string) (*domain.Product, error) {
	const op = "mongo.FindProductByID"
	oid, err := objectID(id, op)
	if err != nil {
		return nil, err
	}

	var doc productDoc
	err = r.s.coll(productsCollection).FindOne(r.s.ctx(ctx), bson.M{"_id": oid}).Decode(&doc)
	if err != nil {
		return nil, notFound(err, op, domain.ErrProductNotFound)
	}
	return doc.toDomain(), nil
}

func (r *productRepo) FindProductsByIDs(ctx context.Context, ids []string) (map[string]*domain.Product, error) {
	const op = "mongo.FindProductsByIDs"

	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := objectID(id, op)
		if err != nil {
			return nil, err
		}
		oids = append(oids, oid)
	}

	cur, err := r.s.coll(productsCollection).Find(r.s.ctx(ctx), bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, mapError(err, op)
	}

	var docs []productDoc
	if err := cur.All(r.s.ctx(ctx), &docs); err != nil {
		return nil, mapError(err, op)
	}

	found := make(map[string]*domain.Product, len(docs))
	for i := range docs {
		p := docs[i].toDomain()
		found[p.ID] = p
	}
	return found, nil
}

// DebitStock applies one filtered $inc per line. The filter only matches
// while enough stock remains, so a concurrent debit cannot drive quantity
// below zero.
func (r *productRepo) DebitStock(ctx context.Context, lines []domain.StockLine) error {
	const op = "mongo.DebitStock"
	now := r.s.now()

	for _, line := range lines {
		oid, err := objectID(line.ProductID, op)
		if err != nil {
			return err
		}

		floor := line.Amount
		if floor < 1 {
			floor = 1
		}
		res, err := r.s.coll(productsCollection).UpdateOne(r.s.ctx(ctx),
			bson.M{"_id": oid, "quantity": bson.M{"$gte": floor}},
			bson.M{
				"$inc": bson.M{"quantity": -line.Amount, "quantitySold": line.Amount},
				"$set": bson.M{"updatedAt": now},
			},
		)
		if err != nil {
			return mapError(err, op)
		}
		if res.MatchedCount == 0 {
			return domain.InsufficientStock(op, line.Title)
		}
	}
	return nil
}

func (r *productRepo) RestockItems(ctx context.Context, lines []domain.StockLine) error {
	const op = "mongo.RestockItems"
	if len(lines) == 0 {
		return nil
	}

	now := r.s.now()
	models := make([]mongo.WriteModel, 0, len(lines))
	for _, line := range lines {
		oid, err := objectID(line.ProductID, op)
		if err != nil {
			return err
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": oid}).
			SetUpdate(bson.M{
				"$inc": bson.M{"quantity": line.Amount, "quantitySold": -line.Amount},
				"$set": bson.M{"updatedAt": now},
			}))
	}

	_, err := r.s.coll(productsCollection).BulkWrite(r.s.ctx(ctx), models, options.BulkWrite().SetOrdered(true))
	return mapError(err, op)
}

type cartRepo struct{ s scope }

func (r *cartRepo) FindCartByUser(ctx context.Context, userID string) (*domain.Cart, error) {
	const op = "mongo.FindCartByUser"
	oid, err := objectID(userID, op)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, op, bson.M{"user": oid})
}

func (r *cartRepo) FindCartByID(ctx context.Context, id string) (*domain.Cart, error) {
	const op = "mongo.FindCartByID"
	oid, err := objectID(id, op)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, op, bson.M{"_id": oid})
}

func (r *cartRepo) findOne(ctx context.Context, op string, filter bson.M) (*domain.Cart, error) {
	var doc cartDoc
	err := r.s.coll(cartsCollection).FindOne(r.s.ctx(ctx), filter).Decode(&doc)
	if err != nil {
		return nil, notFound(err, op, domain.ErrCartNotFound)
	}
	return doc.toDomain(), nil
}

func (r *cartRepo) SaveCart(ctx context.Context, cart *domain.Cart) error {
	const op = "mongo.SaveCart"

	userID, err := objectID(cart.UserID, op)
	if err != nil {
		return err
	}
	cart.Recount()

	items := make([]cartItemDoc, 0, len(cart.Items))
	for _, item := range cart.Items {
		productID, err := objectID(item.ProductID, op)
		if err != nil {
			return err
		}
		items = append(items, cartItemDoc{Product: productID, Quantity: item.Quantity})
	}

	now := r.s.now()
	if cart.ID == "" {
		doc := cartDoc{User: userID, CartItems: items, TotalQuantity: cart.TotalQuantity, CreatedAt: now, UpdatedAt: now}
		res, err := r.s.coll(cartsCollection).InsertOne(r.s.ctx(ctx), doc)
		if err != nil {
			return mapError(err, op)
		}
		cart.ID = res.InsertedID.(primitive.ObjectID).Hex()
		cart.CreatedAt = now
		cart.UpdatedAt = now
		return nil
	}

	oid, err := objectID(cart.ID, op)
	if err != nil {
		return err
	}
	res, err := r.s.coll(cartsCollection).UpdateOne(r.s.ctx(ctx), bson.M{"_id": oid}, bson.M{
		"$set": bson.M{"cartItems": items, "totalQuantity": cart.TotalQuantity, "updatedAt": now},
	})
	if err != nil {
		return mapError(err, op)
	}
	if res.MatchedCount == 0 {
		return domain.ErrCartNotFound
	}
	cart.UpdatedAt = now
	return nil
}

type orderRepo struct{ s scope }

func (r *orderRepo) CreateOrder(ctx context.Context, order *domain.Order) error {
	const op = "mongo.CreateOrder"

	now := r.s.now()
	order.ID = ""
	order.CreatedAt = now
	order.UpdatedAt = now

	doc, err := newOrderDoc(order, op)
	if err != nil {
		return err
	}

	res, err := r.s.coll(ordersCollection).InsertOne(r.s.ctx(ctx), doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicatePaymentRef
		}
		return mapError(err, op)
	}
	order.ID = res.InsertedID.(primitive.ObjectID).Hex()
	return nil
}

func (r *orderRepo) FindOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	const op = "mongo.FindOrderByID"
	oid, err := objectID(id, op)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, op, bson.M{"_id": oid})
}

func (r *orderRepo) FindOrderByPaymentRef(ctx context.Context, method domain.PaymentMethod, ref string) (*domain.Order, error) {
	return r.findOne(ctx, "mongo.FindOrderByPaymentRef", bson.M{"paymentMethod": method, "paymentRef": ref})
}

func (r *orderRepo) findOne(ctx context.Context, op string, filter bson.M) (*domain.Order, error) {
	var doc orderDoc
	err := r.s.coll(ordersCollection).FindOne(r.s.ctx(ctx), filter).Decode(&doc)
	if err != nil {
		return nil, notFound(err, op, domain.ErrOrderNotFound)
	}
	return doc.toDomain(), nil
}

func (r *orderRepo) UpdateOrder(ctx context.Context, order *domain.Order) error {
	const op = "mongo.UpdateOrder"

	order.UpdatedAt = r.s.now()
	doc, err := newOrderDoc(order, op)
	if err != nil {
		return err
	}

	res, err := r.s.coll(ordersCollection).ReplaceOne(r.s.ctx(ctx), bson.M{"_id": doc.ID}, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicatePaymentRef
		}
		return mapError(err, op)
	}
	if res.MatchedCount == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (r *orderRepo) DeleteOrder(ctx context.Context, id string) error {
	const op = "mongo.DeleteOrder"
	oid, err := objectID(id, op)
	if err != nil {
		return err
	}

	res, err := r.s.coll(ordersCollection).DeleteOne(r.s.ctx(ctx), bson.M{"_id": oid})
	if err != nil {
		return mapError(err, op)
	}
	if res.DeletedCount == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (r *orderRepo) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, int, error) {
	const op = "mongo.ListOrders"

	query, err := orderQuery(filter, op)
	if err != nil {
		return nil, 0, err
	}

	total, err := r.s.coll(ordersCollection).CountDocuments(r.s.ctx(ctx), query)
	if err != nil {
		return nil, 0, mapError(err, op)
	}

	opts := options.Find().SetSort(orderSort(filter.Sort))
	if filter.Limit > 0 {
		opts.SetSkip(int64(filter.Offset())).SetLimit(int64(filter.Limit))
	}

	cur, err := r.s.coll(ordersCollection).Find(r.s.ctx(ctx), query, opts)
	if err != nil {
		return nil, 0, mapError(err, op)
	}

	var docs []orderDoc
	if err := cur.All(r.s.ctx(ctx), &docs); err != nil {
		return nil, 0, mapError(err, op)
	}

	orders := make([]domain.Order, 0, len(docs))
	for i := range docs {
		orders = append(orders, *docs[i].toDomain())
	}
	return orders, int(total), nil
}

func orderQuery(filter domain.OrderFilter, op string) (bson.M, error) {
	query := bson.M{}
	if filter.UserID != "" {
		oid, err := objectID(filter.UserID, op)
		if err != nil {
			return nil, err
		}
		query["user"] = oid
	}
	if filter.PaymentMethod != "" {
		query["paymentMethod"] = filter.PaymentMethod
	}
	if filter.Search != "" {
		if _, err := filter.SearchPattern(); err != nil {
			return nil, err
		}
		pattern := primitive.Regex{Pattern: filter.Search, Options: "i"}
		query["$or"] = bson.A{
			bson.M{"shippingAddress.name": pattern},
			bson.M{"shippingAddress.phone": pattern},
		}
	}
	return query, nil
}

func orderSort(sort domain.OrderSort) bson.D {
	switch sort {
	case domain.SortOldest:
		return bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}
	case domain.SortNameAsc:
		return bson.D{{Key: "shippingAddress.name", Value: 1}, {Key: "createdAt", Value: -1}}
	case domain.SortNameDesc:
		return bson.D{{Key: "shippingAddress.name", Value: -1}, {Key: "createdAt", Value: -1}}
	default:
		return bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
	}
}
