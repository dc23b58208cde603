package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	KeyTypeEmail = "email"

	PixStatusCreated = "CREATED"
	DefaultProvider  = "fitbank"
)

// PaymentDetail is the PIX destination attached to a withdrawal.
type PaymentDetail struct {
	ID           uuid.UUID  `json:"id"`
	WithdrawalID uuid.UUID  `json:"withdrawalId"`
	AccountID    uuid.UUID  `json:"accountId"`
	Key          string     `json:"key"`
	Type         string     `json:"type"`
	Status       string     `json:"status"`
	Provider     string     `json:"provider"`
	ErrorCode    string     `json:"errorCode,omitempty"`
	ConfirmedAt  *time.Time `json:"confirmedAt,omitempty"`
}

type PixKey struct {
	Key      string
	Type     string
	Provider string
}
