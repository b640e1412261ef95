package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"silvery-chat/internal/config"
	"silvery-chat/internal/db"
	"silvery-chat/internal/repository"
	"silvery-chat/internal/service"
)

// Herramienta administrativa: genera un lote de códigos de canje directo
// contra la base, sin pasar por la API.
func main() {
	count := flag.Int("n", 10, "cantidad de códigos a generar (máximo 100)")
	flag.Parse()

	ctx := context.Background()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := zap.NewExample()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	claimCodeRepo := repository.NewPgClaimCodeRepository(pool)
	entitlementRepo := repository.NewPgEntitlementRepository(pool)
	redeemSvc := service.NewRedeemService(claimCodeRepo, entitlementRepo, logger)

	codes, err := redeemSvc.GenerateCodes(ctx, *count)
	if err != nil {
		log.Fatalf("generate codes: %v", err)
	}

	for _, cc := range codes {
		fmt.Println(cc.Code)
	}
}
