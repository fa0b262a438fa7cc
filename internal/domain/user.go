package domain

import "time"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// ParseRole accepts only the closed set of roles.
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleCustomer, RoleAdmin:
		return r, true
	}
	return "", false
}

// RecentViewLimit bounds the recently-viewed log kept per account.
const RecentViewLimit = 20

type Account struct {
	ID             string       `json:"id"`
	Username       string       `json:"username"`
	Email          string       `json:"email"`
	Hash           string       `json:"-"`
	Role           Role         `json:"role"`
	FirstName      string       `json:"first_name"`
	LastName       string       `json:"last_name"`
	Phone          string       `json:"phone"`
	Addresses      []Address    `json:"addresses"`
	Wishlist       []string     `json:"wishlist"`
	RecentlyViewed []RecentView `json:"recently_viewed,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

func (a *Account) IsAdmin() bool { return a != nil && a.Role == RoleAdmin }

// DefaultAddress returns the address flagged default, if any.
func (a *Account) DefaultAddress() (Address, bool) {
	for _, addr := range a.Addresses {
		if addr.IsDefault {
			return addr, true
		}
	}
	return Address{}, false
}

// Address finds a saved address by id.
func (a *Account) Address(id string) (Address, bool) {
	for _, addr := range a.Addresses {
		if addr.ID == id {
			return addr, true
		}
	}
	return Address{}, false
}

type Address struct {
	ID         string `json:"id,omitempty" bson:"id,omitempty"`
	Label      string `json:"label,omitempty" bson:"label,omitempty"`
	FullName   string `json:"full_name" bson:"full_name"`
	Street     string `json:"street" bson:"street"`
	City       string `json:"city" bson:"city"`
	State      string `json:"state,omitempty" bson:"state,omitempty"`
	PostalCode string `json:"postal_code" bson:"postal_code"`
	Country    string `json:"country" bson:"country"`
	Phone      string `json:"phone,omitempty" bson:"phone,omitempty"`
	IsDefault  bool   `json:"is_default" bson:"is_default"`
}

// NormalizeAddresses enforces "at most one default": the first flagged entry
// wins, and a non-empty list without a default gets its first entry promoted.
func NormalizeAddresses(list []Address) []Address {
	seen := false
	for i := range list {
		if list[i].IsDefault && !seen {
			seen = true
			continue
		}
		list[i].IsDefault = false
	}
	if !seen && len(list) > 0 {
		list[0].IsDefault = true
	}
	return list
}

type RecentView struct {
	ProductID string    `json:"product_id" bson:"product_id"`
	ViewedAt  time.Time `json:"viewed_at" bson:"viewed_at"`
}
