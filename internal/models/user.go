package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a helpdesk user as seen through the user directory.
// Users own email accounts and belong to exactly one company.
type User struct {
	UserID    uuid.UUID
	CompanyID uuid.UUID
	Name      string
	Email     string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
