package domain

import "slices"

const (
	RoleCustomer  = "customer"
	RoleShopOwner = "shop_owner"
	RoleAdmin     = "admin"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID      string
	Role    string
	ShopIDs []int
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Owns reports whether the actor owns the shop, either by identity or by an
// assigned-shop claim.
func (a Actor) Owns(shop Shop) bool {
	if a.ID != "" && a.ID == shop.OwnerID {
		return true
	}
	return slices.Contains(a.ShopIDs, shop.ID)
}
