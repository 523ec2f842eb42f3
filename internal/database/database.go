package database

import (
	"database/sql"
	"fmt"
	"log"

	"moa-be/internal/config"

	_ "github.com/lib/pq"
)

func InitDB() (*sql.DB, error) {
	host := config.GetEnv("DB_HOST", "localhost")
	port := config.GetEnv("DB_PORT", "5432")
	user := config.GetEnv("DB_USER", "moa_user")
	password := config.GetEnv("DB_PASSWORD", "moa_password")
	dbname := config.GetEnv("DB_NAME", "moa_db")
	sslmode := config.GetEnv("DB_SSLMODE", "disable")

	psqlInfo := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)

	db, err := sql.Open("postgres", psqlInfo)
	if err != nil {
		return nil, err
	}

	if err = db.Ping(); err != nil {
		return nil, err
	}

	log.Println("Database connected successfully")
	return db, nil
}

func RunMigrations(db *sql.DB) error {
	usersTable := `
	CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		email VARCHAR(255) UNIQUE NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		full_name VARCHAR(255) NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`

	productsTable := `
	CREATE TABLE IF NOT EXISTS products (
		id VARCHAR(255) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		monthly_price INTEGER NOT NULL,
		max_members INTEGER NOT NULL DEFAULT 4,
		is_active BOOLEAN DEFAULT TRUE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`

	partiesTable := `
	CREATE TABLE IF NOT EXISTS parties (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name VARCHAR(255) NOT NULL,
		product_id VARCHAR(255) NOT NULL REFERENCES products(id),
		leader_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		status VARCHAR(20) NOT NULL DEFAULT 'pending_payment'
			CHECK (status IN ('pending_payment', 'recruiting', 'active', 'closed')),
		max_members INTEGER NOT NULL DEFAULT 4,
		current_members INTEGER NOT NULL DEFAULT 1,
		monthly_fee INTEGER NOT NULL,
		deposit_amount INTEGER NOT NULL,
		start_date DATE NOT NULL,
		end_date DATE NOT NULL,
		shared_credential_id VARCHAR(255),
		shared_credential_pw VARCHAR(255),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT check_member_capacity CHECK (current_members <= max_members)
	);`

	partyMembersTable := `
	CREATE TABLE IF NOT EXISTS party_members (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		party_id UUID NOT NULL REFERENCES parties(id) ON DELETE CASCADE,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		role VARCHAR(20) NOT NULL DEFAULT 'member' CHECK (role IN ('leader', 'member')),
		member_status VARCHAR(20) NOT NULL DEFAULT 'active'
			CHECK (member_status IN ('active', 'inactive')),
		joined_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		left_at TIMESTAMP,
		UNIQUE(party_id, user_id)
	);`

	paymentAttemptsTable := `
	CREATE TABLE IF NOT EXISTS payment_attempts (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		order_id VARCHAR(255) NOT NULL,
		provider_payment_key VARCHAR(255) NOT NULL,
		amount INTEGER NOT NULL,
		method VARCHAR(50),
		party_id UUID REFERENCES parties(id) ON DELETE SET NULL,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		purpose VARCHAR(30) NOT NULL
			CHECK (purpose IN ('leader_deposit', 'member_join', 'monthly_fee')),
		status VARCHAR(20) NOT NULL DEFAULT 'confirmed'
			CHECK (status IN ('confirmed', 'failed')),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT unique_settlement_attempt UNIQUE (order_id, provider_payment_key)
	);`

	billingCredentialsTable := `
	CREATE TABLE IF NOT EXISTS billing_credentials (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
		billing_key VARCHAR(255) NOT NULL,
		card_brand VARCHAR(50),
		card_number_masked VARCHAR(50),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`

	pendingTransactionsTable := `
	CREATE TABLE IF NOT EXISTS pending_transactions (
		session_id VARCHAR(255) PRIMARY KEY,
		tx_type VARCHAR(30) NOT NULL
			CHECK (tx_type IN ('create_party', 'join_party', 'leader_deposit_retry')),
		party_id UUID,
		payload JSONB NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`

	tables := []string{
		usersTable,
		productsTable,
		partiesTable,
		partyMembersTable,
		paymentAttemptsTable,
		billingCredentialsTable,
		pendingTransactionsTable,
	}

	for _, table := range tables {
		if _, err := db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %v", err)
		}
	}

	log.Println("Database migrations completed successfully")
	return nil
}
