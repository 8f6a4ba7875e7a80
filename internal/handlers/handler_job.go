package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	portssvc "github.com/jakeross838/Construction-Management-Software-sub001/internal/core/ports/services"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/dto"
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/middleware"
)

// jobHandler handles job-scoped reads and the reconciliation triggers.
type jobHandler struct {
	invoiceService portssvc.InvoiceSvcFacade
	fundingService portssvc.FundingSvcFacade
	reconService   portssvc.ReconciliationSvcFacade
}

func newJobHandler(invoiceService portssvc.InvoiceSvcFacade, fundingService portssvc.FundingSvcFacade, reconService portssvc.ReconciliationSvcFacade) *jobHandler {
	return &jobHandler{
		invoiceService: invoiceService,
		fundingService: fundingService,
		reconService:   reconService,
	}
}

func registerJobRoutes(rg *gin.RouterGroup, invoiceService portssvc.InvoiceSvcFacade, fundingService portssvc.FundingSvcFacade, reconService portssvc.ReconciliationSvcFacade) {
	h := newJobHandler(invoiceService, fundingService, reconService)

	jobs := rg.Group("/jobs")
	{
		jobs.GET("/:jobID/invoices", h.listInvoices)
		jobs.GET("/:jobID/funding-sources", h.listFundingSources)
		jobs.POST("/:jobID/reconcile", h.reconcileJob)
	}
	rg.POST("/reconcile", h.reconcileAll)
}

func (h *jobHandler) listInvoices(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	jobID := c.Param("jobID")

	invoices, err := h.invoiceService.ListInvoicesByJob(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, invoices)
}

// listFundingSources returns the job's POs and COs with remaining balances.
// The optional excludeInvoiceID query keeps a live edit from counting against
// itself.
func (h *jobHandler) listFundingSources(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	jobID := c.Param("jobID")
	excludeInvoiceID := c.Query("excludeInvoiceID")

	resp, err := h.fundingService.ListFundingSources(c.Request.Context(), jobID, excludeInvoiceID)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *jobHandler) reconcileJob(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	jobID := c.Param("jobID")

	var req dto.ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	report, err := h.reconService.ReconcileJob(c.Request.Context(), jobID, req.Write, userID)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *jobHandler) reconcileAll(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var req dto.ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	reports, err := h.reconService.ReconcileAll(c.Request.Context(), req.Write, userID)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, reports)
}
