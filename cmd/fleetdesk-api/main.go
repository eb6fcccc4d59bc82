// README: Entry point; loads config, wires the store and services, serves HTTP until SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"fleetdesk/internal/config"
	httptransport "fleetdesk/internal/http"
	"fleetdesk/internal/infra"
	"fleetdesk/internal/maps"
	"fleetdesk/internal/modules/audit"
	"fleetdesk/internal/modules/dispatch"
	"fleetdesk/internal/modules/driver"
	"fleetdesk/internal/modules/inventory"
	"fleetdesk/internal/modules/order"
	"fleetdesk/internal/modules/route"
	"fleetdesk/internal/modules/settings"
	"fleetdesk/internal/modules/wallet"
	"fleetdesk/internal/store"
	"fleetdesk/internal/store/memstore"
	"fleetdesk/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	log := infra.NewLogger(os.Stdout, cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("fleetdesk-api stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	firebase, err := infra.NewFirebase(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		return err
	}

	var st store.Store
	switch cfg.Store {
	case config.StoreMemory:
		log.Warn("using in-memory store; data is lost on exit")
		st = memstore.New()
	default:
		db, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		st = postgres.New(db)
	}

	var locator driver.Locator
	if cfg.Redis.Addr != "" {
		rdb, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			return err
		}
		defer rdb.Close()
		locator = driver.NewRedisLocator(rdb)
	}

	var optimizer route.Optimizer
	if cfg.Maps.APIKey != "" {
		rs, err := maps.NewRouteService(cfg.Maps.APIKey)
		if err != nil {
			return err
		}
		optimizer = rs
	} else {
		log.Info("GOOGLE_MAPS_API_KEY not set; route suggestions use nearest neighbour")
	}

	routeSvc := route.NewService(st, optimizer, firebase, log)
	handler := httptransport.NewRouter(httptransport.Deps{
		Order:     order.NewService(st, log),
		Inventory: inventory.NewService(st, cfg.Inventory.LowStockThreshold),
		Wallet:    wallet.NewService(st),
		Driver:    driver.NewService(st, locator, log, cfg.Drivers.NearbyRadiusKm),
		Dispatch:  dispatch.NewService(st, log),
		Route:     routeSvc,
		Audit:     audit.NewService(st),
		Settings:  settings.NewService(st),
		Verifier:  firebase,
		Log:       log,
	})

	log.Info("fleetdesk-api listening", "addr", cfg.HTTP.Addr, "store", cfg.Store)
	return httptransport.Run(ctx, httptransport.NewServer(cfg.HTTP.Addr, handler), log)
}
