package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"moneytrack/internal/core"
	"moneytrack/internal/services"
	"moneytrack/internal/storage"
)

// ScheduledHandler serves the /api/scheduled routes.
type ScheduledHandler struct {
	rules *services.RuleService
}

func NewScheduledHandler(rules *services.RuleService) *ScheduledHandler {
	return &ScheduledHandler{rules: rules}
}

// decimalAmount accepts the amount as either a JSON number or a string, so
// "12,34" from European locales works too. Parsing to cents happens later.
type decimalAmount string

func (a *decimalAmount) UnmarshalJSON(b []byte) error {
	var s string
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	} else {
		s = string(b)
	}
	*a = decimalAmount(s)
	return nil
}

// scheduledRequest is the client payload for create and update.
type scheduledRequest struct {
	Title      string        `json:"title"`
	Kind       string        `json:"type"`
	Amount     decimalAmount `json:"amount"`
	Category   string        `json:"category"`
	Currency   string        `json:"currency"`
	Frequency  string        `json:"frequency"`
	DayOfMonth int           `json:"dayOfMonth"`
	Month      int           `json:"month"`
}

type scheduledResponse struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Kind       string    `json:"type"`
	Amount     float64   `json:"amount"`
	Category   string    `json:"category"`
	Currency   string    `json:"currency"`
	Frequency  string    `json:"frequency"`
	DayOfMonth int       `json:"dayOfMonth"`
	Month      int       `json:"month,omitempty"`
	NextRun    core.Date `json:"nextRun"`
}

func toScheduledResponse(r core.ScheduleRule) scheduledResponse {
	return scheduledResponse{
		ID:         r.ID,
		Title:      r.Title,
		Kind:       string(r.Kind),
		Amount:     r.Amount.Units(),
		Category:   r.Category,
		Currency:   r.Currency,
		Frequency:  string(r.Frequency),
		DayOfMonth: r.DayOfMonth,
		Month:      r.Month,
		NextRun:    r.NextRun,
	}
}

func (req scheduledRequest) toRule(ownerID string) (core.ScheduleRule, error) {
	cents, err := core.ParseDecimalToCents(string(req.Amount))
	if err != nil {
		return core.ScheduleRule{}, err
	}
	return core.ScheduleRule{
		OwnerID:    ownerID,
		Title:      req.Title,
		Kind:       core.Kind(req.Kind),
		Amount:     core.Money{Cents: cents},
		Category:   req.Category,
		Currency:   req.Currency,
		Frequency:  core.Frequency(req.Frequency),
		DayOfMonth: req.DayOfMonth,
		Month:      req.Month,
	}, nil
}

// Create handles POST /api/scheduled
func (h *ScheduledHandler) Create(c *gin.Context) {
	ownerID := OwnerID(c)
	if ownerID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req scheduledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	draft, err := req.toRule(ownerID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.rules.Create(c.Request.Context(), draft)
	if err != nil {
		status := http.StatusInternalServerError
		if isValidationError(err) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, toScheduledResponse(created))
}

// List handles GET /api/scheduled
func (h *ScheduledHandler) List(c *gin.Context) {
	ownerID := OwnerID(c)
	if ownerID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	rules, err := h.rules.List(c.Request.Context(), ownerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list scheduled transactions"})
		return
	}

	out := make([]scheduledResponse, 0, len(rules))
	for _, r := range rules {
		out = append(out, toScheduledResponse(r))
	}
	c.JSON(http.StatusOK, out)
}

// Update handles PUT /api/scheduled/:id
func (h *ScheduledHandler) Update(c *gin.Context) {
	ownerID := OwnerID(c)
	if ownerID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req scheduledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule, err := req.toRule(ownerID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rule.ID = c.Param("id")

	updated, err := h.rules.Update(c.Request.Context(), rule)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "scheduled transaction not found"})
		case isValidationError(err):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update scheduled transaction"})
		}
		return
	}

	c.JSON(http.StatusOK, toScheduledResponse(updated))
}

// Delete handles DELETE /api/scheduled/:id
func (h *ScheduledHandler) Delete(c *gin.Context) {
	ownerID := OwnerID(c)
	if ownerID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	err := h.rules.Delete(c.Request.Context(), ownerID, c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "scheduled transaction not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete scheduled transaction"})
		return
	}

	c.Status(http.StatusNoContent)
}

func isValidationError(err error) bool {
	for _, sentinel := range []error{
		core.ErrEmptyTitle,
		core.ErrTitleTooLong,
		core.ErrInvalidKind,
		core.ErrInvalidAmount,
		core.ErrInvalidCurrency,
		core.ErrInvalidFrequency,
		core.ErrInvalidDay,
		core.ErrInvalidMonth,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
