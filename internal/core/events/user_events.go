package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeUserRegistered         = "user.registered"
	EventTypePasswordResetRequested = "user.password_reset_requested"
)

// UserRegisteredEvent asks for the confirmation mail. Token is the signed
// confirmation token and is kept out of Data.
type UserRegisteredEvent struct {
	BaseEvent
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Token  string `json:"-"`
}

func NewUserRegisteredEvent(userID int64, email, token string) *UserRegisteredEvent {
	return &UserRegisteredEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeUserRegistered,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id": userID,
				"email":   email,
			},
		},
		UserID: userID,
		Email:  email,
		Token:  token,
	}
}

type PasswordResetRequestedEvent struct {
	BaseEvent
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Token  string `json:"-"`
}

func NewPasswordResetRequestedEvent(userID int64, email, token string) *PasswordResetRequestedEvent {
	return &PasswordResetRequestedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePasswordResetRequested,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id": userID,
				"email":   email,
			},
		},
		UserID: userID,
		Email:  email,
		Token:  token,
	}
}
