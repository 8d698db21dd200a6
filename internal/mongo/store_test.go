package mongo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/dukerupert/mercato/internal/domain"
)

func TestObjectID(t *testing.T) {
	oid := primitive.NewObjectID()
	got, err := objectID(oid.Hex(), "test")
	require.NoError(t, err)
	assert.Equal(t, oid, got)

	_, err = objectID("not-an-id", "test")
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestMapError(t *testing.T) {
	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key"}}}
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(mapError(dup, "test")))
	assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(mapError(errors.New("socket closed"), "test")))
	assert.Nil(t, mapError(nil, "test"))
	assert.Equal(t, domain.ErrCartNotFound, notFound(mongo.ErrNoDocuments, "test", domain.ErrCartNotFound))
}

func TestOrderQuery(t *testing.T) {
	userID := primitive.NewObjectID()

	q, err := orderQuery(domain.OrderFilter{
		UserID:        userID.Hex(),
		PaymentMethod: domain.PaymentMomo,
		Search:        "0901.23",
	}, "test")
	require.NoError(t, err)

	assert.Equal(t, userID, q["user"])
	assert.Equal(t, domain.PaymentMomo, q["paymentMethod"])
	or, ok := q["$or"].(bson.A)
	require.True(t, ok)
	require.Len(t, or, 2)
	assert.Equal(t, bson.M{"shippingAddress.name": primitive.Regex{Pattern: "0901.23", Options: "i"}}, or[0])

	_, err = orderQuery(domain.OrderFilter{UserID: "bad"}, "test")
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

	_, err = orderQuery(domain.OrderFilter{Search: "(09"}, "test")
	assert.True(t, domain.IsValidationError(err))

	empty, err := orderQuery(domain.OrderFilter{}, "test")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestOrderSort(t *testing.T) {
	assert.Equal(t, bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}, orderSort(""))
	assert.Equal(t, "shippingAddress.name", orderSort(domain.SortNameAsc)[0].Key)
	assert.Equal(t, -1, orderSort(domain.SortNameDesc)[0].Value)
	assert.Equal(t, 1, orderSort(domain.SortOldest)[0].Value)
}

func TestOrderDocRoundTrip(t *testing.T) {
	userID := primitive.NewObjectID().Hex()
	productID := primitive.NewObjectID().Hex()

	order := &domain.Order{
		UserID: userID,
		Items:  []domain.OrderItem{{ProductID: productID, Title: "Toner", Amount: 2, Price: 80000}},
		ShippingAddress: domain.ShippingAddress{
			Name:    "Lan",
			Phone:   "0901",
			Address: domain.Address{Province: "01", ProvinceName: "Hà Nội", Address: "12 Hàng Bạc"},
		},
		PaymentMethod: domain.PaymentCOD,
		Status:        domain.StatusPending,
	}

	doc, err := newOrderDoc(order, "test")
	require.NoError(t, err)
	assert.Equal(t, "Hà Nội", doc.ShippingAddress.ProvinceName)
	assert.Empty(t, doc.PaymentRef)

	back := doc.toDomain()
	assert.Equal(t, order.Items, back.Items)
	assert.Equal(t, order.ShippingAddress, back.ShippingAddress)
	assert.Equal(t, userID, back.UserID)

	order.Items[0].ProductID = "bad"
	_, err = newOrderDoc(order, "test")
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}
