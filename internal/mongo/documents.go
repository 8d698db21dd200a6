package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dukerupert/mercato/internal/domain"
)

type userDoc struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	Name            string             `bson:"name"`
	Email           string             `bson:"email"`
	PhoneNumber     string             `bson:"phoneNumber"`
	ShippingAddress domain.Address     `bson:"shippingAddress"`
	IsAdmin         bool               `bson:"isAdmin"`
	CreatedAt       time.Time          `bson:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt"`
}

func (d *userDoc) toDomain() *domain.User {
	return &domain.User{
		ID:              d.ID.Hex(),
		Name:            d.Name,
		Email:           d.Email,
		PhoneNumber:     d.PhoneNumber,
		ShippingAddress: d.ShippingAddress,
		IsAdmin:         d.IsAdmin,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

type productDoc struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty"`
	Title         string              `bson:"title"`
	Slug          string              `bson:"slug"`
	Size          string              `bson:"size"`
	Price         int64               `bson:"price"`
	PriceDiscount int                 `bson:"priceDiscount"`
	Quantity      int                 `bson:"quantity"`
	QuantitySold  int                 `bson:"quantitySold"`
	MainImage     string              `bson:"mainImage"`
	IsDeleted     bool                `bson:"isDeleted"`
	Category      *primitive.ObjectID `bson:"category,omitempty"`
	CreatedAt     time.Time           `bson:"createdAt"`
	UpdatedAt     time.Time           `bson:"updatedAt"`
}

func (d *productDoc) toDomain() *domain.Product {
	p := &domain.Product{
		ID:            d.ID.Hex(),
		Title:         d.Title,
		Slug:          d.Slug,
		Size:          d.Size,
		Price:         d.Price,
		PriceDiscount: d.PriceDiscount,
		Quantity:      d.Quantity,
		QuantitySold:  d.QuantitySold,
		MainImage:     d.MainImage,
		IsDeleted:     d.IsDeleted,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
	if d.Category != nil {
		p.CategoryID = d.Category.Hex()
	}
	return p
}

type cartItemDoc struct {
	Product  primitive.ObjectID `bson:"product"`
	Quantity int                `bson:"quantity"`
}

type cartDoc struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	User          primitive.ObjectID `bson:"user"`
	CartItems     []cartItemDoc      `bson:"cartItems"`
	TotalQuantity int                `bson:"totalQuantity"`
	CreatedAt     time.Time          `bson:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt"`
}

func (d *cartDoc) toDomain() *domain.Cart {
	c := &domain.Cart{
		ID:            d.ID.Hex(),
		UserID:        d.User.Hex(),
		Items:         make([]domain.CartItem, 0, len(d.CartItems)),
		TotalQuantity: d.TotalQuantity,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
	for _, item := range d.CartItems {
		c.Items = append(c.Items, domain.CartItem{ProductID: item.Product.Hex(), Quantity: item.Quantity})
	}
	return c
}

// shippingDoc keeps the address flat, the way orders were always stored.
type shippingDoc struct {
	Name         string `bson:"name"`
	Email        string `bson:"email"`
	Phone        string `bson:"phone"`
	Province     string `bson:"province"`
	ProvinceName string `bson:"provinceName"`
	District     string `bson:"district"`
	DistrictName string `bson:"districtName"`
	Ward         string `bson:"ward"`
	WardName     string `bson:"wardName"`
	Address      string `bson:"address"`
}

type orderItemDoc struct {
	Product primitive.ObjectID `bson:"product"`
	Title   string             `bson:"title"`
	Size    string             `bson:"size"`
	Amount  int                `bson:"amount"`
	Image   string             `bson:"image"`
	Price   int64              `bson:"price"`
}

type orderDoc struct {
	ID              primitive.ObjectID   `bson:"_id,omitempty"`
	User            primitive.ObjectID   `bson:"user"`
	OrderItems      []orderItemDoc       `bson:"orderItems"`
	ShippingAddress shippingDoc          `bson:"shippingAddress"`
	PaymentMethod   domain.PaymentMethod `bson:"paymentMethod"`
	PaymentRef      string               `bson:"paymentRef,omitempty"`
	ShippingFee     int64                `bson:"shippingFee"`
	TotalPrice      int64                `bson:"totalPrice"`
	IsPaid          bool                 `bson:"isPaid"`
	PaidAt          *time.Time           `bson:"paidAt,omitempty"`
	IsDelivered     bool                 `bson:"isDelivered"`
	DeliveredAt     *time.Time           `bson:"deliveredAt,omitempty"`
	Status          domain.OrderStatus   `bson:"status"`
	CreatedAt       time.Time            `bson:"createdAt"`
	UpdatedAt       time.Time            `bson:"updatedAt"`
}

func newOrderDoc(o *domain.Order, op string) (*orderDoc, error) {
	userID, err := objectID(o.UserID, op)
	if err != nil {
		return nil, err
	}

	d := &orderDoc{
		User:       userID,
		OrderItems: make([]orderItemDoc, 0, len(o.Items)),
		ShippingAddress: shippingDoc{
			Name:         o.ShippingAddress.Name,
			Email:        o.ShippingAddress.Email,
			Phone:        o.ShippingAddress.Phone,
			Province:     o.ShippingAddress.Address.Province,
			ProvinceName: o.ShippingAddress.Address.ProvinceName,
			District:     o.ShippingAddress.Address.District,
			DistrictName: o.ShippingAddress.Address.DistrictName,
			Ward:         o.ShippingAddress.Address.Ward,
			WardName:     o.ShippingAddress.Address.WardName,
			Address:      o.ShippingAddress.Address.Address,
		},
		PaymentMethod: o.PaymentMethod,
		PaymentRef:    o.PaymentRef,
		ShippingFee:   o.ShippingFee,
		TotalPrice:    o.TotalPrice,
		IsPaid:        o.IsPaid,
		PaidAt:        o.PaidAt,
		IsDelivered:   o.IsDelivered,
		DeliveredAt:   o.DeliveredAt,
		Status:        o.Status,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	if o.ID != "" {
		if d.ID, err = objectID(o.ID, op); err != nil {
			return nil, err
		}
	}
	for _, item := range o.Items {
		productID, err := objectID(item.ProductID, op)
		if err != nil {
			return nil, err
		}
		d.OrderItems = append(d.OrderItems, orderItemDoc{
			Product: productID,
			Title:   item.Title,
			Size:    item.Size,
			Amount:  item.Amount,
			Image:   item.Image,
			Price:   item.Price,
		})
	}
	return d, nil
}

func (d *orderDoc) toDomain() *domain.Order {
	o := &domain.Order{
		ID:     d.ID.Hex(),
		UserID: d.User.Hex(),
		Items:  make([]domain.OrderItem, 0, len(d.OrderItems)),
		ShippingAddress: domain.ShippingAddress{
			Name:  d.ShippingAddress.Name,
			Email: d.ShippingAddress.Email,
			Phone: d.ShippingAddress.Phone,
			Address: domain.Address{
				Province:     d.ShippingAddress.Province,
				ProvinceName: d.ShippingAddress.ProvinceName,
				District:     d.ShippingAddress.District,
				DistrictName: d.ShippingAddress.DistrictName,
				Ward:         d.ShippingAddress.Ward,
				WardName:     d.ShippingAddress.WardName,
				Address:      d.ShippingAddress.Address,
			},
		},
		PaymentMethod: d.PaymentMethod,
		PaymentRef:    d.PaymentRef,
		ShippingFee:   d.ShippingFee,
		TotalPrice:    d.TotalPrice,
		IsPaid:        d.IsPaid,
		PaidAt:        d.PaidAt,
		IsDelivered:   d.IsDelivered,
		DeliveredAt:   d.DeliveredAt,
		Status:        d.Status,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
	for _, item := range d.OrderItems {
		o.Items = append(o.Items, domain.OrderItem{
			ProductID: item.Product.Hex(),
			Title:     item.Title,
			Size:      item.Size,
			Amount:    item.Amount,
			Image:     item.Image,
			Price:     item.Price,
		})
	}
	return o
}
