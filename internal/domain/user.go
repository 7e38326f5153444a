package domain

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID             uuid.UUID
	Email          string
	FirstName      string
	LastName       string
	TelegramUserID *int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (u User) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.Email
}
