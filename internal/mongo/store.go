// Package mongo implements domain.Store on MongoDB. Multi-document writes use
// session transactions, which require a replica set.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/dukerupert/mercato/internal/domain"
)

// Collection names.
const (
	usersCollection    = "users"
	productsCollection = "products"
	cartsCollection    = "carts"
	ordersCollection   = "orders"

	paymentRefIndex = "paymentMethod_1_paymentRef_1"
)

// Store is a MongoDB-backed domain.Store.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	now    func() time.Time
}

var _ domain.Store = (*Store)(nil)

// Connect opens a client, verifies it and returns a store on database.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping failed: %w", err)
	}
	return NewStore(client, database), nil
}

// NewStore wraps an existing client.
func NewStore(client *mongo.Client, database string) *Store {
	return &Store{
		client: client,
		db:     client.Database(database),
		now:    time.Now,
	}
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes the store relies on. Safe to call on
// every start.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(ordersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "paymentMethod", Value: 1}, {Key: "paymentRef", Value: 1}},
			Options: options.Index().
				SetName(paymentRefIndex).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"paymentRef": bson.M{"$exists": true}}),
		},
		{Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create order indexes: %w", err)
	}

	_, err = s.db.Collection(cartsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create cart indexes: %w", err)
	}
	return nil
}

// Ping implements domain.Store.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) scope(sess mongo.Session) scope {
	return scope{db: s.db, sess: sess, now: s.now}
}

func (s *Store) Users() domain.UserStore       { return &userRepo{s.scope(nil)} }
func (s *Store) Products() domain.ProductStore { return &productRepo{s.scope(nil)} }
func (s *Store) Carts() domain.CartStore       { return &cartRepo{s.scope(nil)} }
func (s *Store) Orders() domain.OrderStore     { return &orderRepo{s.scope(nil)} }

// WithTx implements domain.Store using a session transaction. The driver
// retries the callback on transient transaction errors, so fn must not have
// side effects outside the store.
func (s *Store) WithTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return domain.Internal(err, "mongo.WithTx", "failed to start session")
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(s.scope(sess))
	})
	if err != nil {
		var de *domain.Error
		if errors.As(err, &de) {
			return err
		}
		return mapError(err, "mongo.WithTx")
	}
	return nil
}

// scope binds repositories to an optional session.
type scope struct {
	db   *mongo.Database
	sess mongo.Session
	now  func() time.Time
}

func (s scope) Users() domain.UserStore       { return &userRepo{s} }
func (s scope) Products() domain.ProductStore { return &productRepo{s} }
func (s scope) Carts() domain.CartStore       { return &cartRepo{s} }
func (s scope) Orders() domain.OrderStore     { return &orderRepo{s} }

// ctx attaches the session, if any, so operations join the transaction.
func (s scope) ctx(ctx context.Context) context.Context {
	if s.sess == nil {
		return ctx
	}
	return mongo.NewSessionContext(ctx, s.sess)
}

func (s scope) coll(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// objectID parses a hex id. A malformed id is a client error, like a cast
// failure on the document store.
func objectID(id, op string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, domain.WrapError(err, domain.EINVALID, op, "Invalid id: "+id)
	}
	return oid, nil
}

func mapError(err error, op string) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return domain.WrapError(err, domain.EINVALID, op, "Duplicate key")
	}
	return domain.Internal(err, op, "database error")
}

func notFound(err error, op string, missing error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return missing
	}
	return mapError(err, op)
}
