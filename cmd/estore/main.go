package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"EStore/internal/api"
	"EStore/internal/auth"
	"EStore/internal/cart"
	"EStore/internal/catalog"
	"EStore/internal/config"
	"EStore/internal/filestore"
	"EStore/internal/order"
	"EStore/pkg/kit"
)

func main() {
	service := "estore"

	cfg, err := config.Load()
	if err != nil {
		kit.NewLogger(service, "info").Fatal("config", zap.Error(err))
	}

	log := kit.NewLogger(service, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	storeMetrics := kit.NewStoreMetrics(reg)
	storeOpts := []filestore.Option{
		filestore.WithLogger(log),
		filestore.WithObserver(storeMetrics),
	}

	var (
		users    *filestore.Store[auth.User]
		products *filestore.Store[catalog.Product]
		kits     *filestore.Store[catalog.Kit]
		orders   *filestore.Store[order.Order]
	)

	var g errgroup.Group
	g.Go(func() (err error) { users, err = open[auth.User](cfg, "users", storeOpts); return })
	g.Go(func() (err error) { products, err = open[catalog.Product](cfg, "products", storeOpts); return })
	g.Go(func() (err error) { kits, err = open[catalog.Kit](cfg, "kits", storeOpts); return })
	g.Go(func() (err error) { orders, err = open[order.Order](cfg, "orders", storeOpts); return })
	if err := g.Wait(); err != nil {
		log.Fatal("open data files", zap.Error(err), zap.String("data_dir", cfg.DataDir))
	}

	storeMetrics.TrackSize(users.Name(), users.Len)
	storeMetrics.TrackSize(products.Name(), products.Len)
	storeMetrics.TrackSize(kits.Name(), kits.Len)
	storeMetrics.TrackSize(orders.Name(), orders.Len)

	userStore := auth.NewStore(users)
	if cfg.AdminUsername != "" {
		admin, created, err := userStore.EnsureAdmin(cfg.AdminUsername, cfg.AdminPassword)
		if err != nil {
			log.Fatal("seed admin", zap.Error(err))
		}
		if created {
			log.Info("admin account created", zap.String("username", admin.Username))
		}
	}

	kitCatalog := catalog.New(kits)
	ledger := order.NewLedger(orders)

	h := api.NewHandler(api.Deps{
		Users:    userStore,
		Products: catalog.New(products),
		Kits:     kitCatalog,
		Ledger:   ledger,
		Cart: cart.NewManager(kitCatalog, ledger,
			cart.WithLogger(log),
			cart.WithMetrics(cart.NewMetrics(reg)),
		),
		JWT:      auth.NewTokenMaker(cfg.JWTSecret),
		TokenTTL: cfg.TokenTTL,
		Limits: auth.RateLimits{
			Login:    cfg.LoginLimit,
			Register: cfg.RegisterLimit,
		},
	}, api.HTTPDeps{
		Log:            log,
		Service:        service,
		Registry:       reg,
		MetricsEnabled: cfg.MetricsEnabled,
		MetricsToken:   cfg.MetricsToken,
	})

	if err := kit.RunHTTPServer(":"+cfg.Port, h, log, cfg.ShutdownTimeout); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}

func open[T filestore.Entity[T]](cfg config.Config, name string, opts []filestore.Option) (*filestore.Store[T], error) {
	path := cfg.DataFile(name)
	if cfg.DataBootstrap {
		if err := filestore.Bootstrap(path); err != nil {
			return nil, err
		}
	}
	return filestore.Open[T](name, path, opts...)
}
