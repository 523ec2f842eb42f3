package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"moa-be/internal/models"
	"moa-be/internal/service"
	"moa-be/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type BillingHandler struct {
	db       *sql.DB
	tossPay  *service.TossPayService
	billing  *services.BillingService
	partySvc *services.PartyService
}

func NewBillingHandler(db *sql.DB, tossPay *service.TossPayService, billing *services.BillingService, partySvc *services.PartyService) *BillingHandler {
	return &BillingHandler{db: db, tossPay: tossPay, billing: billing, partySvc: partySvc}
}

// RegisterBillingKey exchanges the auth key from the provider's card
// registration redirect for a billing key and saves it. One credential per
// user; registering again replaces the old one.
func (h *BillingHandler) RegisterBillingKey(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req models.BillingIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	issued, err := h.tossPay.IssueBillingKey(req.AuthKey, req.CustomerKey)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	now := time.Now()
	_, err = h.db.Exec(`
		INSERT INTO billing_credentials (id, user_id, billing_key, card_brand, card_number_masked, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			billing_key = EXCLUDED.billing_key,
			card_brand = EXCLUDED.card_brand,
			card_number_masked = EXCLUDED.card_number_masked,
			created_at = EXCLUDED.created_at
	`, uuid.New(), userID, issued.BillingKey, issued.CardBrand, issued.CardNumberMasked, now)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save billing credential"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Billing credential saved",
		"card": gin.H{
			"brand":  issued.CardBrand,
			"number": issued.CardNumberMasked,
		},
	})
}

// GetBillingCredential returns the caller's saved card, masked. The billing
// key itself never leaves the database.
func (h *BillingHandler) GetBillingCredential(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var cred models.BillingCredential
	err := h.db.QueryRow(`
		SELECT id, user_id, card_brand, card_number_masked, created_at
		FROM billing_credentials WHERE user_id = $1
	`, userID).Scan(&cred.ID, &cred.UserID, &cred.CardBrand, &cred.CardNumberMasked, &cred.CreatedAt)

	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "No billing credential on file"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch billing credential"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"credential": cred})
}

// DeleteBillingCredential removes the saved card. Future charges fall back
// to the register-new-credential redirect path.
func (h *BillingHandler) DeleteBillingCredential(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	result, err := h.db.Exec("DELETE FROM billing_credentials WHERE user_id = $1", userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete billing credential"})
		return
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No billing credential on file"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Billing credential deleted"})
}

// RunMonthlyBilling charges every active member of the party their monthly
// fee. Leader only.
func (h *BillingHandler) RunMonthlyBilling(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	partyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid party id"})
		return
	}

	party, err := h.partySvc.GetParty(partyID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if party.LeaderID != userID.(uuid.UUID) {
		respondDomainError(c, models.ErrInvalidRole)
		return
	}

	report, err := h.billing.RunMonthlyBilling(partyID)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Monthly billing completed",
		"report":  report,
	})
}
