package handlers

import (
	"database/sql"
	"net/http"

	"moa-be/internal/models"
	"moa-be/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type PaymentHandler struct {
	db           *sql.DB
	orchestrator *services.PaymentOrchestrator
}

func NewPaymentHandler(db *sql.DB, orchestrator *services.PaymentOrchestrator) *PaymentHandler {
	return &PaymentHandler{db: db, orchestrator: orchestrator}
}

// HandleCallback is the provider's success redirect target. The same
// query parameters may arrive more than once; the orchestrator reconciles
// duplicates into the same navigation outcome without a second charge.
func (h *PaymentHandler) HandleCallback(c *gin.Context) {
	var params models.CallbackParams
	if err := c.ShouldBindQuery(&params); err != nil {
		respondDomainError(c, models.ErrMalformedCallback)
		return
	}

	result, err := h.orchestrator.HandleCallback(c.GetString("session_id"), params)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Payment processed",
		"result":  result,
	})
}

// HandleFailCallback is the provider's fail redirect target. The staged
// transaction is intentionally left in place so the user can retry.
func (h *PaymentHandler) HandleFailCallback(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Payment was not completed",
		"code":    c.Query("code"),
		"reason":  c.Query("message"),
		"retry":   true,
	})
}

// GetUserPayments lists the caller's settlement attempts, newest first.
func (h *PaymentHandler) GetUserPayments(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	rows, err := h.db.Query(`
		SELECT id, order_id, provider_payment_key, amount, method, party_id, purpose, status, created_at
		FROM payment_attempts
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch payments"})
		return
	}
	defer rows.Close()

	var attempts []models.PaymentAttempt
	for rows.Next() {
		var a models.PaymentAttempt
		err := rows.Scan(&a.ID, &a.OrderID, &a.ProviderPaymentKey, &a.Amount, &a.Method,
			&a.PartyID, &a.Purpose, &a.Status, &a.CreatedAt)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan payment"})
			return
		}
		a.UserID = userID.(uuid.UUID)
		attempts = append(attempts, a)
	}

	c.JSON(http.StatusOK, gin.H{"payments": attempts})
}
