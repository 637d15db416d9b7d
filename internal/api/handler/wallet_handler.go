package handler

import (
	"net/http"

	"github.com/cuongbtq/labor-dispatch/internal/wallet"
	"github.com/gin-gonic/gin"
)

// WalletHandler handles earnings and payment approval requests
type WalletHandler struct {
	base
	ledger *wallet.Ledger
}

// NewWalletHandler creates a new WalletHandler instance
func NewWalletHandler(deps *Dependencies) *WalletHandler {
	return &WalletHandler{
		base:   newBase(deps),
		ledger: deps.Ledger,
	}
}

// GetWallet handles GET /api/v1/wallet/:laborer_id
func (h *WalletHandler) GetWallet(c *gin.Context) {
	summary, err := h.ledger.Summary(c.Request.Context(), c.Param("laborer_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// ApprovePayment handles POST /api/v1/admin/payments/:payment_id/approve
func (h *WalletHandler) ApprovePayment(c *gin.Context) {
	paymentID, ok := uuidParam(c, "payment_id")
	if !ok {
		return
	}

	payment, err := h.ledger.Approve(c.Request.Context(), paymentID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, payment)
}
