package services

import (
	"errors"
	"testing"

	"moa-be/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCredentialStore struct {
	cred *models.BillingCredential
	err  error
}

func (f *fakeCredentialStore) GetCredential(userID uuid.UUID) (*models.BillingCredential, error) {
	return f.cred, f.err
}

func TestSelectorSavedCredential(t *testing.T) {
	cred := &models.BillingCredential{BillingKey: "bk-1", CardBrand: "VISA"}
	s := NewCredentialSelector(&fakeCredentialStore{cred: cred})

	path, got, err := s.Select(uuid.New())
	require.NoError(t, err)
	assert.Equal(t, PathSaved, path)
	assert.Equal(t, "bk-1", got.BillingKey)
}

func TestSelectorNoCredential(t *testing.T) {
	s := NewCredentialSelector(&fakeCredentialStore{})

	path, got, err := s.Select(uuid.New())
	require.NoError(t, err)
	assert.Equal(t, PathRegisterNew, path)
	assert.Nil(t, got)
}

func TestSelectorStoreError(t *testing.T) {
	boom := errors.New("db down")
	s := NewCredentialSelector(&fakeCredentialStore{err: boom})

	_, _, err := s.Select(uuid.New())
	assert.ErrorIs(t, err, boom)
}
