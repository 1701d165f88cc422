package main

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	idstore "qrcall/internal/identity/store"
	jwttoken "qrcall/internal/jwt_token"
	txcontext "qrcall/pkg/platform/tx"
)

const (
	demoOwnerID       = "demo-owner"
	demoOwnerTokenTTL = 24 * time.Hour
)

// seedDemo links the demo QR to a device so a development instance can place
// calls end to end. With Postgres both rows are written in one transaction.
func seedDemo(ctx context.Context, db *sql.DB, saver idstore.Saver, tokens *jwttoken.JWTService, log *slog.Logger) error {
	seed := func(ctx context.Context) error {
		_, _, err := idstore.SeedDemo(ctx, saver, demoOwnerID)
		return err
	}
	var err error
	if db != nil {
		err = txcontext.Run(ctx, db, seed)
	} else {
		err = seed(ctx)
	}
	if err != nil {
		return err
	}

	token, err := tokens.GenerateOwnerToken(demoOwnerID, demoOwnerTokenTTL)
	if err != nil {
		return err
	}
	log.InfoContext(ctx, "demo data seeded", "qr_id", "DEMO-QR-1", "owner_id", demoOwnerID, "owner_token", token)
	return nil
}
