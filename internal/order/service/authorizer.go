package service

import (
	"context"
	"fmt"

	"bazaar/internal/domain"
	"bazaar/internal/errors"
)

type ShopLookup interface {
	FindByID(ctx context.Context, shopID int) (*domain.Shop, error)
}

type Authorizer struct {
	shops ShopLookup
}

func NewAuthorizer(shops ShopLookup) *Authorizer {
	return &Authorizer{shops: shops}
}

// RejectAdminMutation forbids admins before anything about the order is
// looked at. Admins may read orders but never change them.
func RejectAdminMutation(actor domain.Actor) error {
	if actor.IsAdmin() {
		return errors.NewForbiddenError("admins have read-only access to orders")
	}
	return nil
}

// AuthorizeShopMutation allows only the owner of the shop, by identity or
// by assigned-shop claim.
func (a *Authorizer) AuthorizeShopMutation(ctx context.Context, actor domain.Actor, shopID int) error {
	if err := RejectAdminMutation(actor); err != nil {
		return err
	}
	return a.requireOwner(ctx, actor, shopID)
}

func (a *Authorizer) AuthorizeShopRead(ctx context.Context, actor domain.Actor, shopID int) error {
	if actor.IsAdmin() {
		return nil
	}
	return a.requireOwner(ctx, actor, shopID)
}

// AuthorizeDelete allows the customer who placed the order or the owner of
// its shop.
func (a *Authorizer) AuthorizeDelete(ctx context.Context, actor domain.Actor, order domain.Order) error {
	if err := RejectAdminMutation(actor); err != nil {
		return err
	}
	if actor.ID != "" && actor.ID == order.CustomerID {
		return nil
	}
	return a.requireOwner(ctx, actor, order.ShopID)
}

func (a *Authorizer) requireOwner(ctx context.Context, actor domain.Actor, shopID int) error {
	if actor.ID == "" {
		return errors.NewForbiddenError("authentication required")
	}

	shop, err := a.shops.FindByID(ctx, shopID)
	if err != nil {
		return err
	}

	if !actor.Owns(*shop) {
		return errors.NewForbiddenError(fmt.Sprintf("actor %s does not own shop %d", actor.ID, shopID))
	}

	return nil
}
