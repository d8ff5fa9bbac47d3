package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bazaar/internal/auth"
	"bazaar/internal/cleanup"
	"bazaar/internal/commons"
	"bazaar/internal/config"
	"bazaar/internal/infrastructure/kafka"
	"bazaar/internal/infrastructure/logger"
	"bazaar/internal/infrastructure/mysql"
	"bazaar/internal/metrics"
	"bazaar/internal/notification"
	"bazaar/internal/order"
	orderrepo "bazaar/internal/order/repository"
	"bazaar/internal/product"
	productrepo "bazaar/internal/product/repository"
	"bazaar/internal/server"
	shoprepo "bazaar/internal/shop/repository"

	"go.uber.org/zap"
)

type stores struct {
	orders  order.OrderRepository
	stock   productStore
	shops   order.ShopRepository
	closeFn func() error
}

type productStore interface {
	product.Repository
	FindStock(ctx context.Context, shopID int, productID string) (int, error)
	DecrementIfAvailable(ctx context.Context, shopID int, productID string, qty int) (bool, error)
	Increment(ctx context.Context, shopID int, productID string, qty int) error
}

func main() {
	cfg, err := commons.LoadConfig("internal/config/config.yaml")
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	zapLogger, err := logger.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("creating logger: %v", err)
	}
	defer zapLogger.Sync()

	st, err := openStores(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("opening stores", zap.Error(err))
	}
	defer st.closeFn()

	dispatcher, closeDispatcher := newDispatcher(cfg.Kafka, zapLogger)
	defer closeDispatcher.Close()

	if cfg.Auth.JWTSecret == "" {
		zapLogger.Warn("JWT_SECRET is empty, tokens are signed with an empty key")
	}
	jwtService := auth.NewJWTService(cfg.Auth.JWTSecret, 24*time.Hour)

	registry := cleanup.NewRegistry(zapLogger)
	orderMetrics := metrics.NewOrderMetrics()
	notifier := notification.NewNotifier(dispatcher, zapLogger, 5*time.Second)

	orderModule := order.NewModule(order.Dependencies{
		Orders:   st.orders,
		Stock:    st.stock,
		Shops:    st.shops,
		Notifier: notifier,
		Cleanup:  registry,
		Metrics:  orderMetrics,
	}, cfg.Order, zapLogger)

	rehydrated, err := orderModule.Status.RehydrateCleanup(context.Background())
	if err != nil {
		zapLogger.Warn("rehydrating cancelled-order cleanup failed", zap.Error(err))
	} else {
		zapLogger.Info("cancelled-order cleanup rehydrated", zap.Int("found", rehydrated), zap.Int("scheduled", registry.Len()))
	}

	productCtrl := product.NewModule(st.stock, zapLogger)
	router := server.NewRouter(productCtrl, orderModule.Controller, jwtService, orderMetrics.Handler(), zapLogger)

	srv := server.New(cfg.Server.Port, router, zapLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		zapLogger.Error("server stopped with error", zap.Error(err))
	}

	orderModule.Ledger.Wait()
	notifier.Wait()
	// cancelled orders still pending are picked up again by the next rehydrate
	zapLogger.Info("stopping cleanup registry", zap.Int("pending", registry.Len()))
	registry.Stop()

	zapLogger.Info("server stopped gracefully")
}

func openStores(cfg *config.Config, zapLogger *zap.Logger) (*stores, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverMySQL:
		db, err := mysql.NewConnection(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		if err := mysql.EnsureSchema(context.Background(), db); err != nil {
			db.Close()
			return nil, fmt.Errorf("ensuring schema: %w", err)
		}
		zapLogger.Info("database connected", zap.String("host", cfg.Database.Host), zap.String("name", cfg.Database.Name))
		return mysqlStores(db), nil

	case config.StoreDriverFile:
		if err := os.MkdirAll(cfg.Store.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		orders, err := orderrepo.NewFileOrderRepository(cfg.Store.DataDir)
		if err != nil {
			return nil, err
		}
		stock, err := productrepo.NewFileStockRepository(cfg.Store.DataDir)
		if err != nil {
			return nil, err
		}
		shops, err := shoprepo.NewFileShopRepository(cfg.Store.DataDir)
		if err != nil {
			return nil, err
		}
		zapLogger.Info("using file store", zap.String("dataDir", cfg.Store.DataDir))
		return &stores{orders: orders, stock: stock, shops: shops, closeFn: func() error { return nil }}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func mysqlStores(db *sql.DB) *stores {
	return &stores{
		orders:  orderrepo.NewMySQLOrderRepository(db),
		stock:   productrepo.NewMySQLStockRepository(db),
		shops:   shoprepo.NewMySQLShopRepository(db),
		closeFn: db.Close,
	}
}

// newDispatcher publishes to Kafka when brokers are configured and only logs
// otherwise.
func newDispatcher(cfg config.KafkaConfig, zapLogger *zap.Logger) (notification.Dispatcher, io.Closer) {
	if !cfg.Enabled() {
		zapLogger.Info("kafka not configured, notifications are logged only")
		return notification.NewLogDispatcher(zapLogger), io.NopCloser(nil)
	}

	zapLogger.Info("publishing notifications to kafka", zap.Strings("brokers", cfg.Brokers), zap.String("topic", cfg.Topic))
	d := notification.NewKafkaDispatcher(kafka.NewWriter(cfg.Brokers, cfg.Topic))
	return d, d
}
