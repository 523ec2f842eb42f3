package services

import (
	"database/sql"

	"moa-be/internal/models"

	"github.com/google/uuid"
)

// ChargePath is the credential selector's decision for one charge.
type ChargePath string

const (
	PathSaved       ChargePath = "SAVED"
	PathRegisterNew ChargePath = "REGISTER_NEW"
)

// CredentialStore looks up a user's saved billing credential.
type CredentialStore interface {
	GetCredential(userID uuid.UUID) (*models.BillingCredential, error)
}

// CredentialSelector decides between charging a saved billing key and
// sending the user through new-credential registration. It re-queries on
// every call — credential state can change between page loads, so a cached
// decision is never trusted.
type CredentialSelector struct {
	store CredentialStore
}

func NewCredentialSelector(store CredentialStore) *CredentialSelector {
	return &CredentialSelector{store: store}
}

func (s *CredentialSelector) Select(userID uuid.UUID) (ChargePath, *models.BillingCredential, error) {
	cred, err := s.store.GetCredential(userID)
	if err != nil {
		return "", nil, err
	}
	if cred == nil {
		return PathRegisterNew, nil, nil
	}
	return PathSaved, cred, nil
}

// PostgresCredentialStore reads billing_credentials.
type PostgresCredentialStore struct {
	db *sql.DB
}

func NewPostgresCredentialStore(db *sql.DB) *PostgresCredentialStore {
	return &PostgresCredentialStore{db: db}
}

func (s *PostgresCredentialStore) GetCredential(userID uuid.UUID) (*models.BillingCredential, error) {
	var cred models.BillingCredential
	err := s.db.QueryRow(`
		SELECT id, user_id, billing_key, card_brand, card_number_masked, created_at
		FROM billing_credentials WHERE user_id = $1
	`, userID).Scan(&cred.ID, &cred.UserID, &cred.BillingKey, &cred.CardBrand, &cred.CardNumberMasked, &cred.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}
