package models

import "time"

type Product struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	MonthlyPrice int       `json:"monthly_price" db:"monthly_price"`
	MaxMembers   int       `json:"max_members" db:"max_members"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
