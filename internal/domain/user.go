package domain

import "time"

var (
	ErrUserNotFound = NotFound("", "User not found")
	ErrNotAdmin     = Forbidden("", "Not authorized to perform this action")
)

// Address is the delivery location kept on a user profile and snapshotted
// onto orders. Province, district and ward carry both the administrative code
// and its display name.
type Address struct {
	Province     string `json:"province" bson:"province"`
	ProvinceName string `json:"provinceName" bson:"provinceName"`
	District     string `json:"district" bson:"district"`
	DistrictName string `json:"districtName" bson:"districtName"`
	Ward         string `json:"ward" bson:"ward"`
	WardName     string `json:"wardName" bson:"wardName"`
	Address      string `json:"address" bson:"address"`
}

// User is the account record consumed by checkout. Profile editing lives
// outside this service.
type User struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	PhoneNumber     string    `json:"phoneNumber"`
	ShippingAddress Address   `json:"shippingAddress"`
	IsAdmin         bool      `json:"isAdmin"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// ShippingSnapshot copies the user's contact details and address into the
// immutable form stored on an order.
func (u *User) ShippingSnapshot() ShippingAddress {
	return ShippingAddress{
		Name:    u.Name,
		Email:   u.Email,
		Phone:   u.PhoneNumber,
		Address: u.ShippingAddress,
	}
}
