package handlers

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	"moa-be/internal/models"
	"moa-be/internal/service"
	"moa-be/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type PartyHandler struct {
	db           *sql.DB
	partySvc     *services.PartyService
	orchestrator *services.PaymentOrchestrator
	emailSvc     *service.EmailService
}

func NewPartyHandler(db *sql.DB, partySvc *services.PartyService, orchestrator *services.PaymentOrchestrator, emailSvc *service.EmailService) *PartyHandler {
	return &PartyHandler{
		db:           db,
		partySvc:     partySvc,
		orchestrator: orchestrator,
		emailSvc:     emailSvc,
	}
}

// CreateParty creates a party and starts the leader's deposit + first
// charge. With a saved credential the charge completes in this request;
// otherwise the response carries the provider checkout handoff.
func (h *PartyHandler) CreateParty(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req models.PartyCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid start_date, expected YYYY-MM-DD"})
		return
	}
	endDate, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid end_date, expected YYYY-MM-DD"})
		return
	}
	if !endDate.After(startDate) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end_date must be after start_date"})
		return
	}

	payload := models.PartyCreatePayload{
		UserID:     userID.(uuid.UUID),
		Name:       req.Name,
		ProductID:  req.ProductID,
		MaxMembers: req.MaxMembers,
		StartDate:  startDate,
		EndDate:    endDate,
	}

	result, err := h.orchestrator.StartCreateParty(c.GetString("session_id"), payload)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Party created",
		"charge":  result,
	})
}

// JoinParty starts a member's deposit + first charge. Capacity, status and
// rejoin rules are enforced before any payment call.
func (h *PartyHandler) JoinParty(c *gin.Context) {
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

	result, err := h.orchestrator.StartJoinParty(c.GetString("session_id"), userID.(uuid.UUID), partyID)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	if result.Result != nil {
		h.notifyLeaderOfJoin(partyID, userID.(uuid.UUID))
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Join started",
		"charge":  result,
	})
}

// RetryDeposit re-attempts a failed leader deposit. Explicit user action;
// the party keeps pending_payment until a retry clears.
func (h *PartyHandler) RetryDeposit(c *gin.Context) {
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

	result, err := h.orchestrator.StartLeaderDepositRetry(c.GetString("session_id"), userID.(uuid.UUID), partyID)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Deposit retry started",
		"charge":  result,
	})
}

func (h *PartyHandler) LeaveParty(c *gin.Context) {
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

	if err := h.partySvc.LeaveParty(partyID, userID.(uuid.UUID)); err != nil {
		respondDomainError(c, err)
		return
	}

	// No refund on leave; surfaced here so clients don't have to guess.
	c.JSON(http.StatusOK, gin.H{"message": "Left party. Deposits and charges are not refunded."})
}

// ShareCredential stores the shared account credential; a recruiting party
// whose deposit cleared becomes active and members are notified.
func (h *PartyHandler) ShareCredential(c *gin.Context) {
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

	var req models.PartyCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	party, err := h.partySvc.ShareCredential(partyID, userID.(uuid.UUID), req.CredentialID, req.CredentialPW)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	if party.Status == models.PartyStatusActive {
		h.notifyMembersOfActivation(party)
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Credential shared",
		"party": gin.H{
			"id":     party.ID,
			"status": party.Status,
		},
	})
}

func (h *PartyHandler) CloseParty(c *gin.Context) {
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

	if err := h.partySvc.CloseParty(partyID, userID.(uuid.UUID)); err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Party closed"})
}

// GetPartyDetails returns the party with its product. The step query
// parameter round-trips untouched so a reloaded client can jump back to
// the right point of a multi-step flow.
func (h *PartyHandler) GetPartyDetails(c *gin.Context) {
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

	var product models.Product
	err = h.db.QueryRow(`
		SELECT id, name, monthly_price, max_members, is_active FROM products WHERE id = $1
	`, party.ProductID).Scan(&product.ID, &product.Name, &product.MonthlyPrice, &product.MaxMembers, &product.IsActive)
	if err == nil {
		party.Product = &product
	}

	response := gin.H{"party": toPartyResponse(party)}
	if step := c.Query("step"); step != "" {
		response["step"] = step
	}

	// The shared credential is only exposed to active members.
	if userID, exists := c.Get("user_id"); exists && party.Status == models.PartyStatusActive {
		member, err := h.partySvc.GetMember(partyID, userID.(uuid.UUID))
		if err == nil && member != nil && member.MemberStatus == models.MemberStatusActive {
			response["shared_credential"] = gin.H{
				"id":       party.SharedCredentialID,
				"password": party.SharedCredentialPW,
			}
		}
	}

	c.JSON(http.StatusOK, response)
}

func (h *PartyHandler) GetUserParties(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	rows, err := h.db.Query(`
		SELECT p.id, p.name, p.product_id, p.leader_id, p.status, p.max_members,
		       p.current_members, p.monthly_fee, p.deposit_amount, p.start_date, p.end_date, p.created_at
		FROM parties p
		JOIN party_members pm ON pm.party_id = p.id
		WHERE pm.user_id = $1 AND pm.member_status = $2
		ORDER BY p.created_at DESC
	`, userID, models.MemberStatusActive)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch parties"})
		return
	}
	defer rows.Close()

	var parties []models.PartyResponse
	for rows.Next() {
		var p models.PartyResponse
		err := rows.Scan(&p.ID, &p.Name, &p.ProductID, &p.LeaderID, &p.Status, &p.MaxMembers,
			&p.CurrentMembers, &p.MonthlyFee, &p.DepositAmount, &p.StartDate, &p.EndDate, &p.CreatedAt)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan party"})
			return
		}
		parties = append(parties, p)
	}

	c.JSON(http.StatusOK, gin.H{"parties": parties})
}

func (h *PartyHandler) GetPartyMembers(c *gin.Context) {
	partyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid party id"})
		return
	}

	rows, err := h.db.Query(`
		SELECT pm.id, pm.party_id, pm.user_id, pm.role, pm.member_status, pm.joined_at, pm.left_at,
		       u.email, u.full_name, u.created_at
		FROM party_members pm
		JOIN users u ON u.id = pm.user_id
		WHERE pm.party_id = $1
		ORDER BY pm.joined_at
	`, partyID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch members"})
		return
	}
	defer rows.Close()

	var members []models.PartyMember
	for rows.Next() {
		var m models.PartyMember
		err := rows.Scan(&m.ID, &m.PartyID, &m.UserID, &m.Role, &m.MemberStatus, &m.JoinedAt, &m.LeftAt,
			&m.User.Email, &m.User.FullName, &m.User.CreatedAt)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan member"})
			return
		}
		m.User.ID = m.UserID
		members = append(members, m)
	}

	c.JSON(http.StatusOK, gin.H{"members": members})
}

func (h *PartyHandler) notifyLeaderOfJoin(partyID, memberID uuid.UUID) {
	var leaderEmail, leaderName, memberName, partyName string
	err := h.db.QueryRow(`
		SELECT lu.email, lu.full_name, mu.full_name, p.name
		FROM parties p
		JOIN users lu ON lu.id = p.leader_id
		JOIN users mu ON mu.id = $2
		WHERE p.id = $1
	`, partyID, memberID).Scan(&leaderEmail, &leaderName, &memberName, &partyName)
	if err != nil {
		log.Printf("Failed to load join notification data: %v", err)
		return
	}
	go h.emailSvc.SendMemberJoined(context.Background(), leaderEmail, leaderName, memberName, partyName)
}

func (h *PartyHandler) notifyMembersOfActivation(party *models.Party) {
	rows, err := h.db.Query(`
		SELECT u.email, u.full_name
		FROM party_members pm
		JOIN users u ON u.id = pm.user_id
		WHERE pm.party_id = $1 AND pm.member_status = $2
	`, party.ID, models.MemberStatusActive)
	if err != nil {
		log.Printf("Failed to load activation notification data: %v", err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var email, name string
		if err := rows.Scan(&email, &name); err != nil {
			continue
		}
		go h.emailSvc.SendPartyActivated(context.Background(), email, name, party.Name)
	}
}

func toPartyResponse(p *models.Party) models.PartyResponse {
	return models.PartyResponse{
		ID:             p.ID,
		Name:           p.Name,
		ProductID:      p.ProductID,
		LeaderID:       p.LeaderID,
		Status:         p.Status,
		MaxMembers:     p.MaxMembers,
		CurrentMembers: p.CurrentMembers,
		MonthlyFee:     p.MonthlyFee,
		DepositAmount:  p.DepositAmount,
		StartDate:      p.StartDate,
		EndDate:        p.EndDate,
		CreatedAt:      p.CreatedAt,
		Product:        p.Product,
	}
}
