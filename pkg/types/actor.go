package types

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
)

// Actor identifies who performs an operation and for which tenant. Services
// receive it explicitly; nothing is read from ambient state.
type Actor struct {
	TenantID uuid.UUID
	UserID   uuid.UUID
	ShopID   uuid.UUID
	Role     enums.ActorRole
}

// Validate checks the tenant is present.
func (a Actor) Validate() error {
	if a.TenantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "tenant context required")
	}
	return nil
}

// RequireShop checks the actor commits on behalf of a shop.
func (a Actor) RequireShop() error {
	if err := a.Validate(); err != nil {
		return err
	}
	if a.ShopID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeForbidden, "shop context required")
	}
	return nil
}
