package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/apperrors"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/core/services"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/dto"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/utils/money"
)

// respondError maps service errors onto HTTP responses. Structured business
// failures (validation detail, PO overage figures, lock holders) keep their
// detail so the UI can render them; everything else collapses to a generic
// message with the cause logged server-side.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	var validationErr *services.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, dto.Notification{
			Type:    dto.NotifyError,
			Message: validationErr.Error(),
			Details: map[string]interface{}{
				"target": string(validationErr.Target),
				"fields": validationErr.Fields,
			},
		})
		return
	}

	var overageErr *services.POOverageError
	if errors.As(err, &overageErr) {
		c.JSON(http.StatusConflict, dto.Notification{
			Type:    dto.NotifyConflict,
			Message: overageErr.Error(),
			Details: map[string]interface{}{
				"code":          "PO_OVERAGE",
				"poID":          overageErr.POID,
				"poNumber":      overageErr.PONumber,
				"remaining":     money.FormatAmount(overageErr.Remaining),
				"invoiceAmount": money.FormatAmount(overageErr.InvoiceAmount),
				"overage":       money.FormatAmount(overageErr.Overage),
				"overridable":   true,
			},
		})
		return
	}

	var lockErr *services.LockHeldError
	if errors.As(err, &lockErr) {
		c.JSON(http.StatusLocked, dto.Notification{
			Type:    dto.NotifyConflict,
			Message: lockErr.Error(),
			Details: map[string]interface{}{
				"code":       "LOCKED",
				"holderID":   lockErr.HolderID,
				"holderName": lockErr.HolderName,
				"acquiredAt": lockErr.AcquiredAt,
			},
		})
		return
	}

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrVersionConflict):
		c.JSON(http.StatusConflict, dto.Notification{
			Type:    dto.NotifyConflict,
			Message: "This invoice was changed by someone else. Reload to pick up the latest version.",
			Details: map[string]interface{}{"code": "VERSION_CONFLICT"},
		})
	case errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrLocked):
		c.JSON(http.StatusLocked, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrForbidden):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		logger.Error("Unhandled service error", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
