package order

import (
	"go.uber.org/zap"

	"bazaar/internal/cleanup"
	"bazaar/internal/config"
	"bazaar/internal/fingerprint"
	"bazaar/internal/inventory"
	"bazaar/internal/metrics"
	"bazaar/internal/order/controller"
	"bazaar/internal/order/service"
	"bazaar/internal/order/usecase"
)

// OrderRepository is satisfied by both the MySQL and the file order stores.
type OrderRepository interface {
	service.OrderStore
	usecase.OrderCreator
	usecase.OrderQueryRepository
	fingerprint.OrderFinder
}

type ShopRepository interface {
	service.ShopLookup
}

type Dependencies struct {
	Orders   OrderRepository
	Stock    inventory.StockStore
	Shops    ShopRepository
	Notifier service.Notifier
	Cleanup  *cleanup.Registry
	Metrics  *metrics.OrderMetrics
}

type Module struct {
	Controller *controller.OrderController
	Status     *service.StatusService
	Ledger     *service.PaymentLedger
}

func NewModule(deps Dependencies, cfg config.OrderConfig, logger *zap.Logger) *Module {
	authorizer := service.NewAuthorizer(deps.Shops)

	reservation := inventory.NewReservationService(deps.Stock, logger, cfg.ReservationMaxAttempts)
	guard := fingerprint.NewGuard(deps.Orders, logger)

	status := service.NewStatusService(
		deps.Orders,
		authorizer,
		deps.Notifier,
		deps.Cleanup,
		deps.Metrics,
		cfg.CancelledRetention,
		logger,
	)
	ledger := service.NewPaymentLedger(
		deps.Orders,
		authorizer,
		deps.Metrics,
		cfg.SiblingWindow,
		cfg.PropagationTimeout,
		logger,
	)

	createUC := usecase.NewCreateOrderUseCase(
		deps.Orders,
		deps.Shops,
		reservation,
		guard,
		deps.Notifier,
		deps.Metrics,
		cfg.DedupeWindow,
		cfg.TotalTolerance,
		logger,
	)
	orderUC := usecase.NewOrderUseCase(status, ledger, authorizer, deps.Orders, logger)

	return &Module{
		Controller: controller.NewOrderController(createUC, orderUC, logger),
		Status:     status,
		Ledger:     ledger,
	}
}
