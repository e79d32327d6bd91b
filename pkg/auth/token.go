package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/groupbuy-backend/pkg/config"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	"github.com/angelmondragon/groupbuy-backend/pkg/types"
)

var signingMethod = jwt.SigningMethodHS256

// claims is the token body. Shop-bound roles carry shop_id; coordinators
// and drivers do not.
type claims struct {
	TenantID uuid.UUID       `json:"tenant_id"`
	ShopID   *uuid.UUID      `json:"shop_id,omitempty"`
	Role     enums.ActorRole `json:"role"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies HS256 access tokens for one issuer.
type Tokens struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(cfg config.JWTConfig) (*Tokens, error) {
	switch {
	case cfg.Secret == "":
		return nil, errors.New("jwt secret is required")
	case cfg.Issuer == "":
		return nil, errors.New("jwt issuer is required")
	case cfg.ExpirationMinutes <= 0:
		return nil, errors.New("jwt expiration minutes must be positive")
	}
	return &Tokens{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    time.Duration(cfg.ExpirationMinutes) * time.Minute,
		now:    time.Now,
	}, nil
}

// Mint issues a token for actor. The user id becomes the subject.
func (t *Tokens) Mint(actor types.Actor) (string, error) {
	if err := checkIdentity(actor); err != nil {
		return "", err
	}
	now := t.now()
	c := claims{
		TenantID: actor.TenantID,
		Role:     actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   actor.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			ID:        uuid.NewString(),
		},
	}
	if actor.ShopID != uuid.Nil {
		shop := actor.ShopID
		c.ShopID = &shop
	}
	signed, err := jwt.NewWithClaims(signingMethod, c).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}

// Parse verifies signature, issuer and expiry and returns the caller.
func (t *Tokens) Parse(raw string) (types.Actor, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return types.Actor{}, err
	}
	userID, err := uuid.Parse(c.Subject)
	if err != nil {
		return types.Actor{}, fmt.Errorf("token subject: %w", err)
	}
	actor := types.Actor{TenantID: c.TenantID, UserID: userID, Role: c.Role}
	if c.ShopID != nil {
		actor.ShopID = *c.ShopID
	}
	if err := checkIdentity(actor); err != nil {
		return types.Actor{}, err
	}
	return actor, nil
}

func checkIdentity(a types.Actor) error {
	switch {
	case a.TenantID == uuid.Nil:
		return errors.New("tenant id is required")
	case a.UserID == uuid.Nil:
		return errors.New("user id is required")
	case !a.Role.IsValid():
		return fmt.Errorf("unknown actor role %q", a.Role)
	case a.Role.ActsForShop() && a.ShopID == uuid.Nil:
		return fmt.Errorf("role %q requires a shop id", a.Role)
	}
	return nil
}
