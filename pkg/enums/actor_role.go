package enums

import "fmt"

// ActorRole is the role carried by an authenticated caller.
type ActorRole string

const (
	ActorRoleShopOwner   ActorRole = "shop_owner"
	ActorRoleShopStaff   ActorRole = "shop_staff"
	ActorRoleDriver      ActorRole = "driver"
	ActorRoleCoordinator ActorRole = "coordinator"
)

var validActorRoles = []ActorRole{
	ActorRoleShopOwner,
	ActorRoleShopStaff,
	ActorRoleDriver,
	ActorRoleCoordinator,
}

// String implements fmt.Stringer.
func (r ActorRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ActorRole.
func (r ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ActsForShop reports whether the role commits on behalf of a shop.
func (r ActorRole) ActsForShop() bool {
	return r == ActorRoleShopOwner || r == ActorRoleShopStaff
}

// ParseActorRole converts raw input into an ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	for _, candidate := range validActorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}
