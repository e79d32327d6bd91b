// Command devtoken mints an access token for local requests against the API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/angelmondragon/groupbuy-backend/pkg/auth"
	"github.com/angelmondragon/groupbuy-backend/pkg/config"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
	"github.com/angelmondragon/groupbuy-backend/pkg/types"
)

func main() {
	_ = godotenv.Load()
	logg := logger.New(logger.Options{ServiceName: "devtoken"})
	ctx := context.Background()

	var cfg config.JWTConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logg.Error(ctx, "load jwt config", err)
		os.Exit(1)
	}
	if err := run(os.Args[1:], os.Stdout, cfg); err != nil {
		logg.Error(ctx, "mint token", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer, cfg config.JWTConfig) error {
	fs := flag.NewFlagSet("devtoken", flag.ContinueOnError)
	fs.SetOutput(out)
	tenant := fs.String("tenant", "", "tenant id (required)")
	user := fs.String("user", "", "user id, random when empty")
	shop := fs.String("shop", "", "shop id, required for shop roles")
	role := fs.String("role", string(enums.ActorRoleShopOwner), "shop_owner|shop_staff|driver|coordinator")
	if err := fs.Parse(args); err != nil {
		return err
	}

	actor, err := actorFromFlags(*tenant, *user, *shop, *role)
	if err != nil {
		return err
	}
	tokens, err := auth.NewTokens(cfg)
	if err != nil {
		return err
	}
	token, err := tokens.Mint(actor)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

func actorFromFlags(tenant, user, shop, role string) (types.Actor, error) {
	var actor types.Actor
	if tenant == "" {
		return actor, errors.New("-tenant is required")
	}
	var err error
	if actor.TenantID, err = uuid.Parse(tenant); err != nil {
		return actor, fmt.Errorf("tenant: %w", err)
	}
	if actor.Role, err = enums.ParseActorRole(role); err != nil {
		return actor, err
	}
	actor.UserID = uuid.New()
	if user != "" {
		if actor.UserID, err = uuid.Parse(user); err != nil {
			return actor, fmt.Errorf("user: %w", err)
		}
	}
	if shop != "" {
		if actor.ShopID, err = uuid.Parse(shop); err != nil {
			return actor, fmt.Errorf("shop: %w", err)
		}
	}
	return actor, nil
}
