package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"moa-be/internal/models"
)

// Stage persists the single in-flight redirect transaction for a session so
// the flow can be resumed after the provider hands control back. Staging a
// new record silently supersedes an unresolved one; Read never consumes;
// Clear is called exactly once per resolved transaction.
type Stage interface {
	Stage(rec models.PendingTransaction) error
	Read(sessionID string) (*models.PendingTransaction, error)
	Clear(sessionID string) error
}

// PostgresStage keeps staged transactions in the pending_transactions table,
// one row per session, so they survive process restarts and page reloads.
type PostgresStage struct {
	db *sql.DB
}

func NewPostgresStage(db *sql.DB) *PostgresStage {
	return &PostgresStage{db: db}
}

func (s *PostgresStage) Stage(rec models.PendingTransaction) error {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode staged payload: %v", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO pending_transactions (session_id, tx_type, party_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id)
		DO UPDATE SET tx_type = $2, party_id = $3, payload = $4, created_at = $5
	`, rec.SessionID, rec.TxType, rec.PartyID, payload, time.Now())
	if err != nil {
		return fmt.Errorf("failed to stage transaction: %v", err)
	}
	return nil
}

func (s *PostgresStage) Read(sessionID string) (*models.PendingTransaction, error) {
	var rec models.PendingTransaction
	var payload []byte
	err := s.db.QueryRow(`
		SELECT session_id, tx_type, party_id, payload, created_at
		FROM pending_transactions WHERE session_id = $1
	`, sessionID).Scan(&rec.SessionID, &rec.TxType, &rec.PartyID, &payload, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &rec.Payload); err != nil {
		return nil, fmt.Errorf("failed to decode staged payload: %v", err)
	}
	return &rec, nil
}

func (s *PostgresStage) Clear(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM pending_transactions WHERE session_id = $1`, sessionID)
	return err
}

// MemoryStage is an in-process Stage used by tests.
type MemoryStage struct {
	mu      sync.Mutex
	records map[string]models.PendingTransaction
}

func NewMemoryStage() *MemoryStage {
	return &MemoryStage{records: make(map[string]models.PendingTransaction)}
}

func (s *MemoryStage) Stage(rec models.PendingTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.CreatedAt = time.Now()
	s.records[rec.SessionID] = rec
	return nil
}

func (s *MemoryStage) Read(sessionID string) (*models.PendingTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[sessionID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *MemoryStage) Clear(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, sessionID)
	return nil
}
