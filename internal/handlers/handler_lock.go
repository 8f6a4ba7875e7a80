package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/core/domain"
	portssvc "github.com/jakeross838/Construction-Management-Software-sub001/internal/core/ports/services"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/middleware"
)

// lockHandler handles advisory edit lock acquisition and release.
type lockHandler struct {
	lockService portssvc.LockSvcFacade
}

func newLockHandler(lockService portssvc.LockSvcFacade) *lockHandler {
	return &lockHandler{lockService: lockService}
}

func registerLockRoutes(rg *gin.RouterGroup, lockService portssvc.LockSvcFacade) {
	h := newLockHandler(lockService)

	locks := rg.Group("/locks/:entityType/:entityID")
	{
		locks.POST("", h.acquire)
		locks.DELETE("", h.release)
		locks.GET("", h.holder)
	}
}

func parseEntityType(raw string) (domain.EntityType, bool) {
	switch domain.EntityType(raw) {
	case domain.EntityInvoice:
		return domain.EntityInvoice, true
	case domain.EntityDraw:
		return domain.EntityDraw, true
	}
	return "", false
}

func (h *lockHandler) acquire(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	entityType, ok := parseEntityType(c.Param("entityType"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown entity type"})
		return
	}
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	lock, err := h.lockService.Acquire(c.Request.Context(), entityType, c.Param("entityID"), userID)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, lock)
}

func (h *lockHandler) release(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	entityType, ok := parseEntityType(c.Param("entityType"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown entity type"})
		return
	}
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	if err := h.lockService.Release(c.Request.Context(), entityType, c.Param("entityID"), userID); err != nil {
		respondError(c, logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *lockHandler) holder(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	entityType, ok := parseEntityType(c.Param("entityType"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown entity type"})
		return
	}

	lock, err := h.lockService.Holder(c.Request.Context(), entityType, c.Param("entityID"))
	if err != nil {
		respondError(c, logger, err)
		return
	}
	if lock == nil {
		c.JSON(http.StatusOK, gin.H{"locked": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"locked": true, "lock": lock})
}
