package handlers

import (
	"net/http"
	"strconv"

	"swap-backend/internal/models"
	"swap-backend/internal/services"

	"github.com/gin-gonic/gin"
)

// SwapHandler handles swap API requests
type SwapHandler struct {
	swapService *services.SwapService
}

// NewSwapHandler creates a new SwapHandler instance
func NewSwapHandler(swapService *services.SwapService) *SwapHandler {
	return &SwapHandler{swapService: swapService}
}

// statusForCode maps the typed error taxonomy onto HTTP statuses
func statusForCode(code models.ErrorCode) int {
	switch code {
	case models.ErrCodeValidation, models.ErrCodeApprovalRequired, models.ErrCodeMissingCachedPayload:
		return http.StatusBadRequest
	case models.ErrCodeChainUnsupported, models.ErrCodeBackendNotFound:
		return http.StatusNotFound
	case models.ErrCodeNoLiquidity:
		return http.StatusUnprocessableEntity
	case models.ErrCodeRateLimitExceeded, models.ErrCodeSpamGuardActive:
		return http.StatusTooManyRequests
	case models.ErrCodeSimulationFailed, models.ErrCodeTxReverted, models.ErrCodeReceiptNotFound:
		return http.StatusConflict
	case models.ErrCodeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	code := models.CodeOf(err)
	c.JSON(statusForCode(code), gin.H{
		"error": err.Error(),
		"code":  string(code),
	})
}

// QuoteRequestBody is the quote endpoint's request body
type QuoteRequestBody struct {
	BackendID string             `json:"backendId" binding:"required"`
	Request   models.SwapRequest `json:"request" binding:"required"`
}

// GetQuoteHandler handles POST /api/swap/quote
func (h *SwapHandler) GetQuoteHandler(c *gin.Context) {
	var body QuoteRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	resp, err := h.swapService.GetQuote(c.Request.Context(), body.BackendID, &body.Request)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// BuildRequestBody is the build endpoint's request body
type BuildRequestBody struct {
	ExecutionID string             `json:"executionId" binding:"required"`
	BackendID   string             `json:"backendId" binding:"required"`
	Safe        string             `json:"safe"`
	Request     models.SwapRequest `json:"request" binding:"required"`
}

// BuildForSigningHandler handles POST /api/swap/build
// Composes the multisig payload, caches it, and opens a PENDING execution
func (h *SwapHandler) BuildForSigningHandler(c *gin.Context) {
	var body BuildRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	resp, err := h.swapService.BuildForSigning(c.Request.Context(), body.ExecutionID, body.BackendID, body.Safe, &body.Request)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ExecuteRequestBody is the execute endpoint's request body. Payload is
// optional: a copy of the signed payload the caller held on to, used only
// when the server-side cache entry has expired.
type ExecuteRequestBody struct {
	ExecutionID string              `json:"executionId" binding:"required"`
	Signatures  string              `json:"signatures" binding:"required"`
	Payload     *models.SafePayload `json:"payload,omitempty"`
}

// ExecuteHandler handles POST /api/swap/execute
func (h *SwapHandler) ExecuteHandler(c *gin.Context) {
	var body ExecuteRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	resp, err := h.swapService.ExecuteWithSignature(c.Request.Context(), body.ExecutionID, body.Signatures, body.Payload)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ReportTransactionBody carries a client-broadcast transaction hash
type ReportTransactionBody struct {
	TxHash string `json:"txHash" binding:"required"`
}

// ReportTransactionHandler handles POST /api/swap/executions/:id/transaction
// Used in client-submit mode to attach the broadcast hash to the ledger
func (h *SwapHandler) ReportTransactionHandler(c *gin.Context) {
	var body ReportTransactionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	execution, err := h.swapService.ReportClientSubmittedTransaction(c.Request.Context(), c.Param("id"), body.TxHash)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, execution)
}

// GetExecutionHandler handles GET /api/swap/executions/:id
func (h *SwapHandler) GetExecutionHandler(c *gin.Context) {
	execution, err := h.swapService.GetExecution(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, execution)
}

// ListExecutionsHandler handles GET /api/swap/executions?wallet=&limit=
func (h *SwapHandler) ListExecutionsHandler(c *gin.Context) {
	wallet := c.Query("wallet")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	executions, err := h.swapService.ListExecutions(c.Request.Context(), wallet, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"executions": executions})
}
