package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"vendra-system/internal/gateway/middleware"
	"vendra-system/internal/lifecycle"
)

// ProcurementHTTPHandler is the thin JSON adapter over the lifecycle engine.
// All business rules live in the engine; this layer does parameter parsing
// and error-kind to HTTP-status mapping only.
type ProcurementHTTPHandler struct {
	engine *lifecycle.Engine
}

func NewProcurementHTTPHandler(engine *lifecycle.Engine) *ProcurementHTTPHandler {
	return &ProcurementHTTPHandler{engine: engine}
}

func respondErr(c *gin.Context, err error) {
	kind := lifecycle.KindOf(err)
	status := http.StatusInternalServerError
	message := "internal error"

	switch kind {
	case lifecycle.KindNotFound:
		status, message = http.StatusNotFound, err.Error()
	case lifecycle.KindUnauthorized:
		status, message = http.StatusForbidden, err.Error()
	case lifecycle.KindInvalidState, lifecycle.KindSequenceViolation, lifecycle.KindDuplicate:
		status, message = http.StatusConflict, err.Error()
	case lifecycle.KindValidation:
		status, message = http.StatusBadRequest, err.Error()
	}

	c.JSON(status, gin.H{
		"success": false,
		"message": message,
		"error":   kind.String(),
	})
}

func actor(c *gin.Context) (lifecycle.Actor, bool) {
	a, ok := middleware.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"message": "authentication required",
		})
	}
	return a, ok
}

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "invalid " + name,
		})
		return 0, false
	}
	return id, true
}

// -- RFQs --

type createRFQRequest struct {
	PartNumber  string `json:"part_number" binding:"required"`
	Description string `json:"description"`
	Quantity    int32  `json:"quantity" binding:"required"`
}

func (h *ProcurementHTTPHandler) CreateRFQ(c *gin.Context) {
	caller, ok := actor(c)
	if !ok {
		return
	}
	var req createRFQRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	rfq, err := h.engine.CreateRFQ(c.Request.Context(), lifecycle.RFQInput{
		PartNumber:  req.PartNumber,
		Description: req.Description,
		Quantity:    req.Quantity,
	}, caller)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "rfq": rfq})
}

func (h *ProcurementHTTPHandler) ListRFQs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	rfqs, err := h.engine.ListOpenRFQs(c.Request.Context(), limit, offset)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "rfqs": rfqs})
}

func (h *ProcurementHTTPHandler) GetRFQ(c *gin.Context) {
	rfqID, ok := idParam(c, "id")
	if !ok {
		return
	}
	rfq, err := h.engine.GetRFQ(c.Request.Context(), rfqID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "rfq": rfq})
}

// -- Quotes --

type submitQuoteRequest struct {
	Price        string `json:"price" binding:"required"`
	LeadTimeDays int32  `json:"lead_time_days" binding:"required"`
	Notes        string `json:"notes"`
}

func (h *ProcurementHTTPHandler) SubmitQuote(c *gin.Context) {
	caller, ok := actor(c)
	if !ok {
		return
	}
	rfqID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req submitQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	quote, err := h.engine.SubmitQuote(c.Request.Context(), lifecycle.QuoteInput{
		RFQID:        rfqID,
		Price:        req.Price,
		LeadTimeDays: req.LeadTimeDays,
		Notes:        req.Notes,
	}, caller)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "quote": quote})
}

func (h *ProcurementHTTPHandler) AcceptQuote(c *gin.Context) {
	caller, ok := actor(c)
	if !ok {
		return
	}
	quoteID, ok := idParam(c, "id")
	if !ok {
		return
	}

	po, err := h.engine.AcceptQuote(c.Request.Context(), quoteID, caller)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "purchase_order": po})
}

// -- Purchase orders --

func (h *ProcurementHTTPHandler) GetPurchaseOrder(c *gin.Context) {
	poID, ok := idParam(c, "id")
	if !ok {
		return
	}
	po, err := h.engine.GetPurchaseOrder(c.Request.Context(), poID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "purchase_order": po})
}

func (h *ProcurementHTTPHandler) GetPurchaseOrderEvents(c *gin.Context) {
	poID, ok := idParam(c, "id")
	if !ok {
		return
	}
	events, err := h.engine.Events(c.Request.Context(), poID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "events": events})
}

func (h *ProcurementHTTPHandler) AcceptPurchaseOrder(c *gin.Context) {
	caller, ok := actor(c)
	if !ok {
		return
	}
	poID, ok := idParam(c, "id")
	if !ok {
		return
	}

	if err := h.engine.AcceptPurchaseOrder(c.Request.Context(), poID, caller); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "purchase order accepted"})
}

// -- Milestones --

type completeMilestoneRequest struct {
	Evidence string `json:"evidence"`
	Remarks  string `json:"remarks"`
}

func (h *ProcurementHTTPHandler) CompleteMilestone(c *gin.Context) {
	caller, ok := actor(c)
	if !ok {
		return
	}
	poID, ok := idParam(c, "id")
	if !ok {
		return
	}
	milestoneID, ok := idParam(c, "milestoneId")
	if !ok {
		return
	}
	var req completeMilestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	if err := h.engine.CompleteMilestone(c.Request.Context(), poID, milestoneID, req.Evidence, req.Remarks, caller); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "milestone completed"})
}

type payMilestoneRequest struct {
	Amount string `json:"amount" binding:"required"`
}

func (h *ProcurementHTTPHandler) PayMilestone(c *gin.Context) {
	caller, ok := actor(c)
	if !ok {
		return
	}
	poID, ok := idParam(c, "id")
	if !ok {
		return
	}
	milestoneID, ok := idParam(c, "milestoneId")
	if !ok {
		return
	}
	var req payMilestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	if err := h.engine.PayMilestone(c.Request.Context(), poID, milestoneID, req.Amount, caller); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "payment recorded"})
}

// -- Disputes & administrative overrides --

type disputeRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *ProcurementHTTPHandler) RaiseDispute(c *gin.Context) {
	caller, ok := actor(c)
	if !ok {
		return
	}
	poID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req disputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	if err := h.engine.RaiseDispute(c.Request.Context(), poID, req.Reason, caller); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "dispute raised"})
}

type resolveDisputeRequest struct {
	Note string `json:"note"`
}

func (h *ProcurementHTTPHandler) ResolveDispute(c *gin.Context) {
	caller, ok := actor(c)
	if !ok {
		return
	}
	poID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req resolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	if err := h.engine.ResolveDispute(c.Request.Context(), poID, req.Note, caller); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "dispute resolved"})
}

type overrideRequest struct {
	Reason string `json:"reason"`
}

func (h *ProcurementHTTPHandler) ForceCancel(c *gin.Context) {
	caller, ok := actor(c)
	if !ok {
		return
	}
	poID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req overrideRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	if err := h.engine.ForceCancel(c.Request.Context(), poID, req.Reason, caller); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "purchase order cancelled"})
}

func (h *ProcurementHTTPHandler) ForceClose(c *gin.Context) {
	caller, ok := actor(c)
	if !ok {
		return
	}
	poID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req overrideRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	if err := h.engine.ForceClose(c.Request.Context(), poID, req.Reason, caller); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "purchase order closed"})
}
