package services

import (
	"database/sql"
	"fmt"
	"time"

	"moa-be/internal/config"
	"moa-be/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PartyService applies lifecycle transitions against the database. Every
// mutating method runs in a transaction and rolls back on any rejection,
// so transitions are all-or-nothing.
type PartyService struct {
	db *sql.DB
}

func NewPartyService(db *sql.DB) *PartyService {
	return &PartyService{db: db}
}

func (s *PartyService) GetParty(partyID uuid.UUID) (*models.Party, error) {
	return scanParty(s.db.QueryRow(`
		SELECT id, name, product_id, leader_id, status, max_members, current_members,
		       monthly_fee, deposit_amount, start_date, end_date,
		       shared_credential_id, shared_credential_pw, created_at, updated_at
		FROM parties WHERE id = $1
	`, partyID))
}

func (s *PartyService) GetMember(partyID, userID uuid.UUID) (*models.PartyMember, error) {
	var m models.PartyMember
	err := s.db.QueryRow(`
		SELECT id, party_id, user_id, role, member_status, joined_at, left_at
		FROM party_members WHERE party_id = $1 AND user_id = $2
	`, partyID, userID).Scan(&m.ID, &m.PartyID, &m.UserID, &m.Role, &m.MemberStatus, &m.JoinedAt, &m.LeftAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateParty inserts a pending_payment party with the caller as leader.
// Callable again with the same payload to recreate a lost party; the new
// party gets a fresh id.
func (s *PartyService) CreateParty(payload models.PartyCreatePayload) (uuid.UUID, error) {
	var product models.Product
	err := s.db.QueryRow(`
		SELECT id, name, monthly_price, max_members FROM products
		WHERE id = $1 AND is_active = true
	`, payload.ProductID).Scan(&product.ID, &product.Name, &product.MonthlyPrice, &product.MaxMembers)
	if err != nil {
		return uuid.Nil, fmt.Errorf("product not found or not available: %v", err)
	}

	maxMembers := payload.MaxMembers
	if maxMembers == 0 || maxMembers > product.MaxMembers {
		maxMembers = product.MaxMembers
	}
	monthlyFee := product.MonthlyPrice / maxMembers
	depositAmount := config.GetConfig().Billing.DepositAmount

	tx, err := s.db.Begin()
	if err != nil {
		return uuid.Nil, err
	}
	defer tx.Rollback()

	partyID := uuid.New()
	now := time.Now()
	_, err = tx.Exec(`
		INSERT INTO parties (
			id, name, product_id, leader_id, status, max_members, current_members,
			monthly_fee, deposit_amount, start_date, end_date, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, partyID, payload.Name, payload.ProductID, payload.UserID, models.PartyStatusPendingPayment,
		maxMembers, 1, monthlyFee, depositAmount, payload.StartDate, payload.EndDate, now, now)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create party: %v", err)
	}

	_, err = tx.Exec(`
		INSERT INTO party_members (id, party_id, user_id, role, member_status, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.New(), partyID, payload.UserID, models.MemberRoleLeader, models.MemberStatusActive, now)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to add leader to party: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, err
	}
	return partyID, nil
}

// ConfirmLeaderDeposit records the settlement attempt and moves the party out
// of pending_payment. The unique constraint on (order_id, provider_payment_key)
// makes re-delivery of the same attempt report ErrAlreadyProcessed.
func (s *PartyService) ConfirmLeaderDeposit(partyID uuid.UUID, attempt models.PaymentAttempt) (*models.Party, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	party, err := scanParty(tx.QueryRow(`
		SELECT id, name, product_id, leader_id, status, max_members, current_members,
		       monthly_fee, deposit_amount, start_date, end_date,
		       shared_credential_id, shared_credential_pw, created_at, updated_at
		FROM parties WHERE id = $1 FOR UPDATE
	`, partyID))
	if err != nil {
		return nil, err
	}

	attempt.PartyID = &partyID
	attempt.Purpose = models.PurposeLeaderDeposit
	if err := insertAttempt(tx, attempt); err != nil {
		return party, err
	}

	next, err := NextOnDepositConfirmed(party)
	if err != nil {
		return party, err
	}

	_, err = tx.Exec(`
		UPDATE parties SET status = $1, updated_at = $2 WHERE id = $3
	`, next, time.Now(), partyID)
	if err != nil {
		return nil, fmt.Errorf("failed to update party status: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	party.Status = next
	return party, nil
}

// ConfirmMemberJoin records the member's combined deposit + first charge and
// adds them to the party. The attempt row is written first so a redelivered
// (order_id, provider_payment_key) reports ErrAlreadyProcessed instead of
// tripping the join checks against the already-applied membership. A rejected
// join rolls the attempt back and leaves no trace.
func (s *PartyService) ConfirmMemberJoin(partyID, userID uuid.UUID, attempt models.PaymentAttempt) (*models.Party, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	party, err := scanParty(tx.QueryRow(`
		SELECT id, name, product_id, leader_id, status, max_members, current_members,
		       monthly_fee, deposit_amount, start_date, end_date,
		       shared_credential_id, shared_credential_pw, created_at, updated_at
		FROM parties WHERE id = $1 FOR UPDATE
	`, partyID))
	if err != nil {
		return nil, err
	}

	attempt.PartyID = &partyID
	attempt.Purpose = models.PurposeMemberJoin
	if err := insertAttempt(tx, attempt); err != nil {
		return party, err
	}

	var prior *models.PartyMember
	var m models.PartyMember
	err = tx.QueryRow(`
		SELECT id, party_id, user_id, role, member_status, joined_at, left_at
		FROM party_members WHERE party_id = $1 AND user_id = $2
	`, partyID, userID).Scan(&m.ID, &m.PartyID, &m.UserID, &m.Role, &m.MemberStatus, &m.JoinedAt, &m.LeftAt)
	if err == nil {
		prior = &m
	} else if err != sql.ErrNoRows {
		return nil, err
	}

	if err := CheckJoin(party, prior); err != nil {
		return party, err
	}

	now := time.Now()
	_, err = tx.Exec(`
		INSERT INTO party_members (id, party_id, user_id, role, member_status, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.New(), partyID, userID, models.MemberRoleMember, models.MemberStatusActive, now)
	if err != nil {
		return nil, fmt.Errorf("failed to add member: %v", err)
	}

	_, err = tx.Exec(`
		UPDATE parties SET current_members = current_members + 1, updated_at = $1 WHERE id = $2
	`, now, partyID)
	if err != nil {
		return nil, fmt.Errorf("failed to update member count: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	party.CurrentMembers++
	return party, nil
}

// LeaveParty marks the membership inactive and decrements the member count.
// Inactive is terminal: the user can never rejoin this party.
func (s *PartyService) LeaveParty(partyID, userID uuid.UUID) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	party, err := scanParty(tx.QueryRow(`
		SELECT id, name, product_id, leader_id, status, max_members, current_members,
		       monthly_fee, deposit_amount, start_date, end_date,
		       shared_credential_id, shared_credential_pw, created_at, updated_at
		FROM parties WHERE id = $1 FOR UPDATE
	`, partyID))
	if err != nil {
		return err
	}

	var m models.PartyMember
	err = tx.QueryRow(`
		SELECT id, party_id, user_id, role, member_status, joined_at, left_at
		FROM party_members WHERE party_id = $1 AND user_id = $2
	`, partyID, userID).Scan(&m.ID, &m.PartyID, &m.UserID, &m.Role, &m.MemberStatus, &m.JoinedAt, &m.LeftAt)
	if err == sql.ErrNoRows {
		return models.ErrPartyNotFound
	}
	if err != nil {
		return err
	}

	if err := CheckLeave(party, &m); err != nil {
		return err
	}

	now := time.Now()
	_, err = tx.Exec(`
		UPDATE party_members SET member_status = $1, left_at = $2 WHERE id = $3
	`, models.MemberStatusInactive, now, m.ID)
	if err != nil {
		return fmt.Errorf("failed to update membership: %v", err)
	}

	_, err = tx.Exec(`
		UPDATE parties SET current_members = current_members - 1, updated_at = $1 WHERE id = $2
	`, now, partyID)
	if err != nil {
		return fmt.Errorf("failed to update member count: %v", err)
	}

	return tx.Commit()
}

// ShareCredential stores the shared account credential. A recruiting party
// whose deposit already cleared becomes active.
func (s *PartyService) ShareCredential(partyID, leaderID uuid.UUID, credentialID, credentialPW string) (*models.Party, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	party, err := scanParty(tx.QueryRow(`
		SELECT id, name, product_id, leader_id, status, max_members, current_members,
		       monthly_fee, deposit_amount, start_date, end_date,
		       shared_credential_id, shared_credential_pw, created_at, updated_at
		FROM parties WHERE id = $1 FOR UPDATE
	`, partyID))
	if err != nil {
		return nil, err
	}

	if party.LeaderID != leaderID {
		return nil, models.ErrInvalidRole
	}

	next, err := NextOnCredentialShared(party)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(`
		UPDATE parties
		SET shared_credential_id = $1, shared_credential_pw = $2, status = $3, updated_at = $4
		WHERE id = $5
	`, credentialID, credentialPW, next, time.Now(), partyID)
	if err != nil {
		return nil, fmt.Errorf("failed to store shared credential: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	party.Status = next
	party.SharedCredentialID = &credentialID
	return party, nil
}

// CloseParty is the terminal administrative/expiry transition.
func (s *PartyService) CloseParty(partyID, leaderID uuid.UUID) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	party, err := scanParty(tx.QueryRow(`
		SELECT id, name, product_id, leader_id, status, max_members, current_members,
		       monthly_fee, deposit_amount, start_date, end_date,
		       shared_credential_id, shared_credential_pw, created_at, updated_at
		FROM parties WHERE id = $1 FOR UPDATE
	`, partyID))
	if err != nil {
		return err
	}

	if party.LeaderID != leaderID {
		return models.ErrInvalidRole
	}
	next, err := NextOnClose(party)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		UPDATE parties SET status = $1, updated_at = $2 WHERE id = $3
	`, next, time.Now(), partyID)
	if err != nil {
		return fmt.Errorf("failed to close party: %v", err)
	}
	return tx.Commit()
}

// RecordAttempt inserts a settlement attempt outside a lifecycle transition
// (monthly billing). Duplicate delivery reports ErrAlreadyProcessed.
func (s *PartyService) RecordAttempt(attempt models.PaymentAttempt) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := insertAttempt(tx, attempt); err != nil {
		return err
	}
	return tx.Commit()
}

func insertAttempt(tx *sql.Tx, attempt models.PaymentAttempt) error {
	_, err := tx.Exec(`
		INSERT INTO payment_attempts (id, order_id, provider_payment_key, amount, method,
			party_id, user_id, purpose, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, uuid.New(), attempt.OrderID, attempt.ProviderPaymentKey, attempt.Amount, attempt.Method,
		attempt.PartyID, attempt.UserID, attempt.Purpose, models.AttemptStatusConfirmed, time.Now())
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return models.ErrAlreadyProcessed
		}
		return fmt.Errorf("failed to record payment attempt: %v", err)
	}
	return nil
}

func scanParty(row *sql.Row) (*models.Party, error) {
	var p models.Party
	err := row.Scan(&p.ID, &p.Name, &p.ProductID, &p.LeaderID, &p.Status, &p.MaxMembers,
		&p.CurrentMembers, &p.MonthlyFee, &p.DepositAmount, &p.StartDate, &p.EndDate,
		&p.SharedCredentialID, &p.SharedCredentialPW, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, models.ErrPartyNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
