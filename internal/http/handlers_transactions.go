package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"moneytrack/internal/core"
	"moneytrack/internal/services"
)

// TransactionsHandler serves the /api/transactions routes.
type TransactionsHandler struct {
	ledger *services.LedgerService
}

func NewTransactionsHandler(ledger *services.LedgerService) *TransactionsHandler {
	return &TransactionsHandler{ledger: ledger}
}

type transactionResponse struct {
	ID          string    `json:"id"`
	Kind        string    `json:"type"`
	Category    string    `json:"category"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	Date        core.Date `json:"date"`
	Description string    `json:"description"`
}

// List handles GET /api/transactions
func (h *TransactionsHandler) List(c *gin.Context) {
	ownerID := OwnerID(c)
	if ownerID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	entries, err := h.ledger.List(c.Request.Context(), ownerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list transactions"})
		return
	}

	out := make([]transactionResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, transactionResponse{
			ID:          e.ID,
			Kind:        string(e.Kind),
			Category:    e.Category,
			Amount:      e.Amount.Units(),
			Currency:    e.Currency,
			Date:        e.Date,
			Description: e.Description,
		})
	}
	c.JSON(http.StatusOK, out)
}
