package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bazaar/internal/auth"
	"bazaar/internal/domain"
	"bazaar/internal/dto"
	apperrors "bazaar/internal/errors"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CreateOrderUseCase interface {
	CreateOrder(ctx context.Context, req dto.CreateOrderRequest, actor domain.Actor) (*dto.CreateOrderResult, error)
}

type OrderUseCase interface {
	UpdateOrderStatus(ctx context.Context, orderID string, status string, actor domain.Actor) (*domain.Order, error)
	ConfirmPayment(ctx context.Context, orderID string, actor domain.Actor) (*domain.Order, error)
	DeleteOrder(ctx context.Context, orderID string, actor domain.Actor) error
	GetMyOrders(ctx context.Context, actor domain.Actor) ([]domain.Order, error)
	ListShopOrders(ctx context.Context, shopID int, filter dto.OrderFilter, page dto.Page, actor domain.Actor) ([]domain.Order, error)
	AdminListOrders(ctx context.Context, filter dto.OrderFilter, page dto.Page, actor domain.Actor) ([]domain.Order, int, error)
}

type OrderController struct {
	create CreateOrderUseCase
	orders OrderUseCase
	logger *zap.Logger
}

func NewOrderController(create CreateOrderUseCase, orders OrderUseCase, logger *zap.Logger) *OrderController {
	return &OrderController{
		create: create,
		orders: orders,
		logger: logger,
	}
}

func (c *OrderController) RegisterRoutes(r chi.Router) {
	r.Post("/orders", c.CreateOrder)
	r.Get("/orders/me", c.GetMyOrders)
	r.Patch("/orders/{orderId}/status", c.UpdateOrderStatus)
	r.Post("/orders/{orderId}/payment", c.ConfirmPayment)
	r.Delete("/orders/{orderId}", c.DeleteOrder)
	r.Get("/shops/{shopId}/orders", c.ListShopOrders)
	r.Get("/admin/orders", c.AdminListOrders)
}

func (c *OrderController) CreateOrder(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))

	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		c.writeUnauthorized(w, traceID)
		return
	}

	var req dto.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid JSON body", zap.Error(err))
		c.writeValidationError(w, traceID, "invalid JSON body", apperrors.ValidationDetail{
			Field:   "body",
			Message: "request body must be valid JSON",
		})
		return
	}

	result, err := c.create.CreateOrder(r.Context(), req, actor)
	if err != nil {
		c.handleUseCaseError(w, traceID, "", err, logger)
		return
	}

	statusCode := http.StatusCreated
	if result.Duplicate {
		statusCode = http.StatusOK
	}

	adjustments := result.Adjustments
	if adjustments == nil {
		adjustments = []dto.Adjustment{}
	}

	c.writeJSON(w, statusCode, dto.CreateOrderResponse{
		TraceID:     traceID,
		Order:       dto.NewOrderDTO(*result.Order),
		Adjustments: adjustments,
		Duplicate:   result.Duplicate,
		Timestamp:   time.Now().UTC(),
	})
}

func (c *OrderController) GetMyOrders(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))

	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		c.writeUnauthorized(w, traceID)
		return
	}

	orders, err := c.orders.GetMyOrders(r.Context(), actor)
	if err != nil {
		c.handleUseCaseError(w, traceID, "", err, logger)
		return
	}

	c.writeJSON(w, http.StatusOK, dto.OrderListResponse{
		TraceID: traceID,
		Orders:  dto.NewOrderDTOs(orders),
	})
}

func (c *OrderController) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	orderID := chi.URLParam(r, "orderId")
	logger := c.logger.With(zap.String("traceId", traceID), zap.String("orderId", orderID))

	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		c.writeUnauthorized(w, traceID)
		return
	}

	var req dto.UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid JSON body", zap.Error(err))
		c.writeValidationError(w, traceID, "invalid JSON body", apperrors.ValidationDetail{
			Field:   "body",
			Message: "request body must be valid JSON",
		})
		return
	}

	order, err := c.orders.UpdateOrderStatus(r.Context(), orderID, req.Status, actor)
	if err != nil {
		c.handleUseCaseError(w, traceID, orderID, err, logger)
		return
	}

	c.writeOrder(w, traceID, order)
}

func (c *OrderController) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	orderID := chi.URLParam(r, "orderId")
	logger := c.logger.With(zap.String("traceId", traceID), zap.String("orderId", orderID))

	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		c.writeUnauthorized(w, traceID)
		return
	}

	order, err := c.orders.ConfirmPayment(r.Context(), orderID, actor)
	if err != nil {
		c.handleUseCaseError(w, traceID, orderID, err, logger)
		return
	}

	c.writeOrder(w, traceID, order)
}

func (c *OrderController) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	orderID := chi.URLParam(r, "orderId")
	logger := c.logger.With(zap.String("traceId", traceID), zap.String("orderId", orderID))

	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		c.writeUnauthorized(w, traceID)
		return
	}

	if err := c.orders.DeleteOrder(r.Context(), orderID, actor); err != nil {
		c.handleUseCaseError(w, traceID, orderID, err, logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (c *OrderController) ListShopOrders(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))

	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		c.writeUnauthorized(w, traceID)
		return
	}

	shopID, err := strconv.Atoi(chi.URLParam(r, "shopId"))
	if err != nil || shopID <= 0 {
		c.writeValidationError(w, traceID, "invalid shopId", apperrors.ValidationDetail{
			Field:   "shopId",
			Message: "shopId must be a positive integer",
		})
		return
	}

	filter, page, verr := parseListQuery(r)
	if verr != nil {
		c.writeValidationError(w, traceID, verr.Message, verr.Details...)
		return
	}

	orders, err := c.orders.ListShopOrders(r.Context(), shopID, filter, page, actor)
	if err != nil {
		c.handleUseCaseError(w, traceID, "", err, logger)
		return
	}

	page = page.Normalize()
	c.writeJSON(w, http.StatusOK, dto.OrderListResponse{
		TraceID:  traceID,
		Orders:   dto.NewOrderDTOs(orders),
		Page:     page.Number,
		PageSize: page.Size,
	})
}

func (c *OrderController) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))

	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		c.writeUnauthorized(w, traceID)
		return
	}

	filter, page, verr := parseListQuery(r)
	if verr != nil {
		c.writeValidationError(w, traceID, verr.Message, verr.Details...)
		return
	}
	if raw := r.URL.Query().Get("shopId"); raw != "" {
		shopID, err := strconv.Atoi(raw)
		if err != nil || shopID <= 0 {
			c.writeValidationError(w, traceID, "invalid shopId", apperrors.ValidationDetail{
				Field:   "shopId",
				Message: "shopId must be a positive integer",
			})
			return
		}
		filter.ShopID = shopID
	}

	orders, total, err := c.orders.AdminListOrders(r.Context(), filter, page, actor)
	if err != nil {
		c.handleUseCaseError(w, traceID, "", err, logger)
		return
	}

	page = page.Normalize()
	c.writeJSON(w, http.StatusOK, dto.OrderListResponse{
		TraceID:  traceID,
		Orders:   dto.NewOrderDTOs(orders),
		Total:    total,
		Page:     page.Number,
		PageSize: page.Size,
	})
}

// parseListQuery reads status, from, to, search, page and pageSize.
// Dates accept RFC3339 or YYYY-MM-DD; a bare "to" date covers the whole day.
func parseListQuery(r *http.Request) (dto.OrderFilter, dto.Page, *apperrors.ValidationError) {
	q := r.URL.Query()
	var details []apperrors.ValidationDetail

	filter := dto.OrderFilter{
		Status: q.Get("status"),
		Search: strings.TrimSpace(q.Get("search")),
	}
	if filter.Status != "" && !domain.IsKnownStatus(domain.NormalizeStatus(filter.Status)) {
		details = append(details, apperrors.ValidationDetail{Field: "status", Message: "unknown status"})
	}

	if raw := q.Get("from"); raw != "" {
		t, _, err := parseDate(raw)
		if err != nil {
			details = append(details, apperrors.ValidationDetail{Field: "from", Message: "from must be RFC3339 or YYYY-MM-DD"})
		} else {
			filter.From = &t
		}
	}
	if raw := q.Get("to"); raw != "" {
		t, dateOnly, err := parseDate(raw)
		if err != nil {
			details = append(details, apperrors.ValidationDetail{Field: "to", Message: "to must be RFC3339 or YYYY-MM-DD"})
		} else {
			if dateOnly {
				t = t.Add(24*time.Hour - time.Nanosecond)
			}
			filter.To = &t
		}
	}

	var page dto.Page
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			details = append(details, apperrors.ValidationDetail{Field: "page", Message: "page must be a positive integer"})
		}
		page.Number = n
	}
	if raw := q.Get("pageSize"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > dto.MaxPageSize {
			details = append(details, apperrors.ValidationDetail{
				Field:   "pageSize",
				Message: "pageSize must be between 1 and " + strconv.Itoa(dto.MaxPageSize),
			})
		}
		page.Size = n
	}

	if len(details) > 0 {
		return filter, page, apperrors.NewValidationError("invalid query parameters", details...)
	}
	return filter, page, nil
}

func parseDate(raw string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), false, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return t.UTC(), true, nil
}

func (c *OrderController) handleUseCaseError(w http.ResponseWriter, traceID string, orderID string, err error, logger *zap.Logger) {
	if ve, ok := apperrors.IsValidationError(err); ok {
		c.writeValidationError(w, traceID, ve.Message, ve.Details...)
		return
	}

	if _, ok := apperrors.IsNotFoundError(err); ok {
		c.writeErrorResponse(w, traceID, orderID, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
		return
	}

	if _, ok := apperrors.IsForbiddenError(err); ok {
		c.writeErrorResponse(w, traceID, orderID, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
		return
	}

	if oe, ok := apperrors.IsOutOfStockError(err); ok {
		adjustments := make([]dto.Adjustment, len(oe.Adjustments))
		for i, a := range oe.Adjustments {
			adjustments[i] = dto.Adjustment{ProductID: a.ProductID, Requested: a.Requested, Available: a.Available}
		}
		c.writeErrorResponse(w, traceID, orderID, http.StatusUnprocessableEntity, "OUT_OF_STOCK", err.Error(), adjustments)
		return
	}

	if _, ok := apperrors.IsInvalidTransitionError(err); ok {
		c.writeErrorResponse(w, traceID, orderID, http.StatusConflict, "INVALID_TRANSITION", err.Error(), nil)
		return
	}

	if _, ok := apperrors.IsConcurrentStockConflictError(err); ok {
		c.writeErrorResponse(w, traceID, orderID, http.StatusConflict, "STOCK_CONFLICT", err.Error(), nil)
		return
	}

	if _, ok := apperrors.IsConflictError(err); ok {
		c.writeErrorResponse(w, traceID, orderID, http.StatusConflict, "CONFLICT", err.Error(), nil)
		return
	}

	if _, ok := apperrors.IsDeadlockError(err); ok {
		c.writeErrorResponse(w, traceID, orderID, http.StatusConflict, "DEADLOCK", err.Error(), nil)
		return
	}

	logger.Error("unexpected error", zap.Error(err))
	c.writeErrorResponse(w, traceID, orderID, http.StatusInternalServerError, "INTERNAL_ERROR", "an unexpected error occurred", nil)
}

func (c *OrderController) writeOrder(w http.ResponseWriter, traceID string, order *domain.Order) {
	c.writeJSON(w, http.StatusOK, dto.OrderResponse{
		TraceID:   traceID,
		Order:     dto.NewOrderDTO(*order),
		Timestamp: time.Now().UTC(),
	})
}

func (c *OrderController) writeUnauthorized(w http.ResponseWriter, traceID string) {
	c.writeErrorResponse(w, traceID, "", http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
}

func (c *OrderController) writeErrorResponse(w http.ResponseWriter, traceID string, orderID string, statusCode int, code string, message string, adjustments []dto.Adjustment) {
	response := dto.ErrorResponse{
		TraceID:     traceID,
		Status:      statusCode,
		Message:     message,
		Code:        code,
		OrderID:     orderID,
		Adjustments: adjustments,
		Timestamp:   time.Now().UTC(),
	}

	c.writeJSON(w, statusCode, response)
}

type validationErrorResponse struct {
	TraceID string                       `json:"traceId"`
	Error   string                       `json:"error"`
	Message string                       `json:"message"`
	Details []apperrors.ValidationDetail `json:"details"`
}

func (c *OrderController) writeValidationError(w http.ResponseWriter, traceID string, message string, details ...apperrors.ValidationDetail) {
	response := validationErrorResponse{
		TraceID: traceID,
		Error:   "VALIDATION_ERROR",
		Message: message,
		Details: details,
	}

	c.writeJSON(w, http.StatusBadRequest, response)
}

func (c *OrderController) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		c.logger.Error("failed to encode response", zap.Error(err))
	}
}
