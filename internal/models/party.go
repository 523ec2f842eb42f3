package models

import (
	"time"

	"github.com/google/uuid"
)

type Party struct {
	ID                 uuid.UUID     `json:"id" db:"id"`
	Name               string        `json:"name" db:"name"`
	ProductID          string        `json:"product_id" db:"product_id"`
	LeaderID           uuid.UUID     `json:"leader_id" db:"leader_id"`
	Status             string        `json:"status" db:"status"`
	MaxMembers         int           `json:"max_members" db:"max_members"`
	CurrentMembers     int           `json:"current_members" db:"current_members"`
	MonthlyFee         int           `json:"monthly_fee" db:"monthly_fee"`
	DepositAmount      int           `json:"deposit_amount" db:"deposit_amount"`
	StartDate          time.Time     `json:"start_date" db:"start_date"`
	EndDate            time.Time     `json:"end_date" db:"end_date"`
	SharedCredentialID *string       `json:"shared_credential_id,omitempty" db:"shared_credential_id"`
	SharedCredentialPW *string       `json:"-" db:"shared_credential_pw"`
	CreatedAt          time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at" db:"updated_at"`
	Members            []PartyMember `json:"members,omitempty"`
	Product            *Product      `json:"product,omitempty"`
}

type PartyMember struct {
	ID           uuid.UUID    `json:"id" db:"id"`
	PartyID      uuid.UUID    `json:"party_id" db:"party_id"`
	UserID       uuid.UUID    `json:"user_id" db:"user_id"`
	Role         string       `json:"role" db:"role"`
	MemberStatus string       `json:"member_status" db:"member_status"`
	JoinedAt     time.Time    `json:"joined_at" db:"joined_at"`
	LeftAt       *time.Time   `json:"left_at,omitempty" db:"left_at"`
	User         UserResponse `json:"user,omitempty"`
}

type PartyCreateRequest struct {
	Name       string `json:"name" binding:"required"`
	ProductID  string `json:"product_id" binding:"required"`
	MaxMembers int    `json:"max_members" binding:"min=2,max=10"`
	StartDate  string `json:"start_date" binding:"required"`
	EndDate    string `json:"end_date" binding:"required"`
}

type PartyCredentialRequest struct {
	CredentialID string `json:"credential_id" binding:"required"`
	CredentialPW string `json:"credential_pw" binding:"required"`
}

type PartyResponse struct {
	ID             uuid.UUID     `json:"id"`
	Name           string        `json:"name"`
	ProductID      string        `json:"product_id"`
	LeaderID       uuid.UUID     `json:"leader_id"`
	Status         string        `json:"status"`
	MaxMembers     int           `json:"max_members"`
	CurrentMembers int           `json:"current_members"`
	MonthlyFee     int           `json:"monthly_fee"`
	DepositAmount  int           `json:"deposit_amount"`
	StartDate      time.Time     `json:"start_date"`
	EndDate        time.Time     `json:"end_date"`
	CreatedAt      time.Time     `json:"created_at"`
	Members        []PartyMember `json:"members,omitempty"`
	Product        *Product      `json:"product,omitempty"`
}

// Party lifecycle constants
const (
	PartyStatusPendingPayment = "pending_payment"
	PartyStatusRecruiting     = "recruiting"
	PartyStatusActive         = "active"
	PartyStatusClosed         = "closed"

	MemberRoleLeader = "leader"
	MemberRoleMember = "member"

	MemberStatusActive   = "active"
	MemberStatusInactive = "inactive"
)
