package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-storefront-checkout/internal/cart"
	"github.com/ariefcatur/go-storefront-checkout/internal/config"
	"github.com/ariefcatur/go-storefront-checkout/internal/httpx"
	"github.com/ariefcatur/go-storefront-checkout/internal/inventory"
	kafkax "github.com/ariefcatur/go-storefront-checkout/internal/kafka"
	"github.com/ariefcatur/go-storefront-checkout/internal/memstore"
	"github.com/ariefcatur/go-storefront-checkout/internal/mongox"
	"github.com/ariefcatur/go-storefront-checkout/internal/notify"
	"github.com/ariefcatur/go-storefront-checkout/internal/orders"
	"github.com/ariefcatur/go-storefront-checkout/internal/port"
	"github.com/ariefcatur/go-storefront-checkout/internal/postgres"
	"github.com/ariefcatur/go-storefront-checkout/internal/redisx"
	"github.com/ariefcatur/go-storefront-checkout/internal/wishlist"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer closeStore()

	// Redis: cache + idempotency, skipped when unreachable
	var (
		cache *redisx.OrderCache
		idem  *redisx.Idempotency
	)
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("redis %s unavailable, running without order cache and idempotency: %v", cfg.RedisAddr, err)
	} else {
		cache = &redisx.OrderCache{RDB: rdb, TTL: cfg.OrderCacheTTL}
		idem = &redisx.Idempotency{RDB: rdb}
	}

	// Notifier
	notifier, prod, err := newNotifier(cfg)
	if err != nil {
		log.Fatalf("notifier: %v", err)
	}
	if prod != nil {
		prod.Start(ctx)
	}

	shipping := orders.DefaultShippingTable().With(cfg.ShippingRates)
	shipping.Default = cfg.ShippingDefaultFee

	coord := &orders.Coordinator{
		Store:    store,
		Shipping: shipping,
		Notifier: notifier,
		Timeout:  cfg.CheckoutTimeout,
	}
	orderSvc := &orders.Service{Store: store}
	if cache != nil {
		coord.Cache, orderSvc.Cache = cache, cache
	}
	if idem != nil {
		coord.Idempotency = idem
	}

	if cfg.JWTSecret == "" {
		log.Println("JWT_SECRET is empty; bearer tokens cannot be verified, only guest sessions work")
	}
	api := &httpx.API{
		Auth:      &httpx.Auth{Secret: []byte(cfg.JWTSecret)},
		Carts:     &cart.Service{Store: store},
		Merger:    &cart.Merger{Store: store},
		Wishlists: &wishlist.Service{Store: store},
		Checkout:  coord,
		Orders:    orderSvc,
		Catalog:   &inventory.Catalog{Store: store},
	}
	router := httpx.NewRouter()
	api.Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Printf("HTTP listening at %s (store=%s notify=%s)", cfg.HTTPAddr, cfg.StoreDriver, cfg.NotifyMode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	if prod != nil {
		prod.Close()
		prod.WaitClosed()
	}
}

func openStore(ctx context.Context, cfg config.Config) (port.Store, func(), error) {
	switch cfg.StoreDriver {
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("db connect: %w", err)
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return postgres.New(db), db.Close, nil
	case "mongo":
		client, err := mongox.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, fmt.Errorf("mongo connect: %w", err)
		}
		s := mongox.New(client, cfg.MongoDB)
		if err := s.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, fmt.Errorf("mongo indexes: %w", err)
		}
		return s, func() { _ = client.Disconnect(context.Background()) }, nil
	case "memory":
		log.Println("using in-memory store; data is lost on exit")
		return memstore.New(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
}

func newNotifier(cfg config.Config) (orders.Notifier, *kafkax.Producer, error) {
	switch cfg.NotifyMode {
	case "kafka":
		prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPlaced, 1024)
		return &notify.KafkaNotifier{Producer: prod, Service: cfg.ServiceName}, prod, nil
	case "direct":
		sender, err := notify.NewSender(cfg.MailProvider, cfg.PostmarkToken, cfg.SendgridAPIKey, cfg.MailFrom)
		if err != nil {
			return nil, nil, err
		}
		return &notify.MailNotifier{Sender: sender}, nil, nil
	case "none":
		return nil, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown NOTIFY_MODE %q", cfg.NotifyMode)
}
