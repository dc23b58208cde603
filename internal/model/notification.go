package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TemplateKind string

const (
	TemplateSuccess TemplateKind = "success"
	TemplateFailure TemplateKind = "failure"
)

type ResultMail struct {
	AccountID    uuid.UUID
	Amount       decimal.Decimal
	WithdrawalID uuid.UUID
	ErrorCode    ErrorCode
}
