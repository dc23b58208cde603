package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const MethodPix = "PIX"

type Status string

const (
	StatusPending   Status = "pending"
	StatusClaimed   Status = "claimed"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
	StatusScheduled Status = "scheduled"
)

type ErrorCode string

const (
	CodeAccountNotFound   ErrorCode = "ACCOUNT_NOT_FOUND"
	CodeInsufficientFunds ErrorCode = "INSUFFICIENT_FUNDS"
)

type Withdrawal struct {
	ID           uuid.UUID       `json:"id"`
	AccountID    uuid.UUID       `json:"accountId"`
	Method       string          `json:"method"`
	Amount       decimal.Decimal `json:"amount"`
	Version      int64           `json:"version"`
	ScheduledFor *time.Time      `json:"scheduledFor,omitempty"`
	QueuedAt     *time.Time      `json:"queuedAt,omitempty"`
	Done         bool            `json:"done"`
	Error        bool            `json:"error"`
	ErrorCode    ErrorCode       `json:"errorCode,omitempty"`
	RequestID    string          `json:"requestId,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// Status derives the lifecycle state from the persisted flags.
func (w Withdrawal) Status() Status {
	switch {
	case w.Done && w.Error:
		return StatusFailed
	case w.Done:
		return StatusDone
	case w.QueuedAt != nil:
		return StatusClaimed
	default:
		return StatusPending
	}
}

type NewWithdrawal struct {
	AccountID    uuid.UUID
	Method       string
	Amount       decimal.Decimal
	ScheduledFor *time.Time
	RequestID    string
}

// Outcome is the terminal state written by the settlement executor.
// Code is set iff Error is true.
type Outcome struct {
	Error bool
	Code  ErrorCode
}

func Succeeded() Outcome {
	return Outcome{}
}

func Failed(code ErrorCode) Outcome {
	return Outcome{Error: true, Code: code}
}

type WithdrawResult struct {
	WithdrawalID uuid.UUID `json:"withdraw_id"`
	Status       Status    `json:"status"`
	Error        ErrorCode `json:"error,omitempty"`
}

func ResultOf(w Withdrawal) WithdrawResult {
	status := w.Status()
	if status == StatusPending && w.ScheduledFor != nil {
		status = StatusScheduled
	}
	return WithdrawResult{WithdrawalID: w.ID, Status: status, Error: w.ErrorCode}
}

// WithdrawRequest is a request already checked by the HTTP layer.
type WithdrawRequest struct {
	AccountID      uuid.UUID
	Method         string
	Amount         decimal.Decimal
	Schedule       *time.Time
	Pix            *PixKey
	IdempotencyKey string
}

type DispatchMessage struct {
	WithdrawalID uuid.UUID `json:"withdrawal_id"`
}

type WithdrawalOutput struct {
	ID           uuid.UUID       `json:"withdraw_id"`
	AccountID    uuid.UUID       `json:"account_id"`
	Method       string          `json:"method"`
	Amount       decimal.Decimal `json:"amount"`
	Status       Status          `json:"status"`
	Error        ErrorCode       `json:"error,omitempty"`
	ScheduledFor *time.Time      `json:"scheduled_for,omitempty"`
	QueuedAt     *time.Time      `json:"queued_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func OutputOf(w Withdrawal) WithdrawalOutput {
	return WithdrawalOutput{
		ID:           w.ID,
		AccountID:    w.AccountID,
		Method:       w.Method,
		Amount:       w.Amount,
		Status:       w.Status(),
		Error:        w.ErrorCode,
		ScheduledFor: w.ScheduledFor,
		QueuedAt:     w.QueuedAt,
		CreatedAt:    w.CreatedAt,
		UpdatedAt:    w.UpdatedAt,
	}
}
