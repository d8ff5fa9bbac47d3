package product

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	apperrors "bazaar/internal/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	maxLookupLines = 100
	maxLookupQty   = 10000
)

type Controller struct {
	useCase LookupUseCase
	logger  *zap.Logger
}

func NewController(useCase LookupUseCase, logger *zap.Logger) *Controller {
	return &Controller{
		useCase: useCase,
		logger:  logger,
	}
}

// HandleStockLookup reports current availability and, for cart lines with a
// quantity, what checkout would keep. The numbers are advisory; reservation
// re-checks at order time.
func (c *Controller) HandleStockLookup(w http.ResponseWriter, r *http.Request) {
	shopID, err := strconv.Atoi(chi.URLParam(r, "shopId"))
	if err != nil || shopID <= 0 {
		c.writeValidationError(w, "invalid shopId", apperrors.ValidationDetail{
			Field:   "shopId",
			Message: "shopId must be a positive integer",
		})
		return
	}

	var req StockLookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.writeValidationError(w, "invalid JSON body", apperrors.ValidationDetail{
			Field:   "body",
			Message: "request body must be valid JSON",
		})
		return
	}
	req.ShopID = shopID

	if err := c.validateLookupRequest(req); err != nil {
		ve, _ := apperrors.IsValidationError(err)
		c.writeValidationError(w, ve.Message, ve.Details...)
		return
	}

	resp, err := c.useCase.LookupStock(r.Context(), req)
	if err != nil {
		c.logger.Error("stock lookup failed", zap.Int("shopId", shopID), zap.Error(err))
		c.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "INTERNAL_ERROR",
			"message": "an unexpected error occurred",
		})
		return
	}

	c.writeJSON(w, http.StatusOK, resp)
}

func (c *Controller) validateLookupRequest(req StockLookupRequest) error {
	lines := req.Lines()
	if len(lines) == 0 {
		return apperrors.NewValidationError("productIds or items is required", apperrors.ValidationDetail{
			Field:   "productIds",
			Message: "productIds or items must not be empty",
		})
	}

	if len(lines) > maxLookupLines {
		msg := fmt.Sprintf("lookup exceeds maximum of %d products", maxLookupLines)
		return apperrors.NewValidationError(msg, apperrors.ValidationDetail{
			Field:   "productIds",
			Message: msg,
		})
	}

	var details []apperrors.ValidationDetail
	for i, id := range req.ProductIDs {
		if strings.TrimSpace(id) == "" {
			details = append(details, apperrors.ValidationDetail{
				Field:   "productIds[" + strconv.Itoa(i) + "]",
				Message: "productId must be non-empty",
			})
		}
	}
	for i, item := range req.Items {
		field := "items[" + strconv.Itoa(i) + "]"
		if strings.TrimSpace(item.ProductID) == "" {
			details = append(details, apperrors.ValidationDetail{Field: field + ".productId", Message: "productId must be non-empty"})
		}
		if item.Qty < 0 || item.Qty > maxLookupQty {
			details = append(details, apperrors.ValidationDetail{
				Field:   field + ".qty",
				Message: fmt.Sprintf("qty must be between 0 and %d", maxLookupQty),
			})
		}
	}

	if len(details) > 0 {
		return apperrors.NewValidationError("validation failed", details...)
	}
	return nil
}

type validationErrorResponse struct {
	Error   string                       `json:"error"`
	Message string                       `json:"message"`
	Details []apperrors.ValidationDetail `json:"details"`
}

func (c *Controller) writeValidationError(w http.ResponseWriter, message string, details ...apperrors.ValidationDetail) {
	c.writeJSON(w, http.StatusBadRequest, validationErrorResponse{
		Error:   "VALIDATION_ERROR",
		Message: message,
		Details: details,
	})
}

func (c *Controller) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		c.logger.Error("failed to encode response", zap.Error(err))
	}
}
