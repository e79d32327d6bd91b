package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/groupbuy-backend/pkg/auth"
	"github.com/angelmondragon/groupbuy-backend/pkg/config"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "groupbuy", ExpirationMinutes: 5}

func TestRunMintsParseableToken(t *testing.T) {
	tenant, shop := uuid.New(), uuid.New()
	var out bytes.Buffer
	err := run([]string{"-tenant", tenant.String(), "-shop", shop.String(), "-role", "shop_staff"}, &out, testJWT)
	require.NoError(t, err)

	tokens, err := auth.NewTokens(testJWT)
	require.NoError(t, err)
	actor, err := tokens.Parse(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	require.Equal(t, tenant, actor.TenantID)
	require.Equal(t, shop, actor.ShopID)
	require.Equal(t, enums.ActorRoleShopStaff, actor.Role)
	require.NotEqual(t, uuid.Nil, actor.UserID)
}

func TestRunRejectsBadInput(t *testing.T) {
	tenant := uuid.New().String()
	cases := map[string][]string{
		"missing tenant":     {"-role", "driver"},
		"bad tenant":         {"-tenant", "nope"},
		"unknown role":       {"-tenant", tenant, "-role", "admin"},
		"shop role, no shop": {"-tenant", tenant, "-role", "shop_owner"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			var out bytes.Buffer
			require.Error(t, run(args, &out, testJWT))
			require.Empty(t, strings.TrimSpace(out.String()))
		})
	}
}
