package internal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DrGermanius/withdraw/internal/model"
)

const maxVersionRetries = 3

type ISettler interface {
	Settle(context.Context, uuid.UUID) (model.WithdrawResult, error)
	SettleImmediate(context.Context, model.NewWithdrawal, *model.PaymentDetail) (model.WithdrawResult, error)
}

type notifyIntent int

const (
	notifyNone notifyIntent = iota
	notifySuccess
	notifyFailure
)

type settlement struct {
	result model.WithdrawResult
	intent notifyIntent
}

type Settler struct {
	store         IStore
	notifier      INotifier
	logger        *zap.SugaredLogger
	optimistic    bool
	notifyTimeout time.Duration

	wg sync.WaitGroup
}

func NewSettler(store IStore, notifier INotifier, optimistic bool, notifyTimeout time.Duration, logger *zap.SugaredLogger) *Settler {
	return &Settler{
		store:         store,
		notifier:      notifier,
		logger:        logger,
		optimistic:    optimistic,
		notifyTimeout: notifyTimeout,
	}
}

// Settle executes a queued withdrawal. A returned error is always transient:
// nothing was committed and a redelivery may call Settle again.
func (s *Settler) Settle(ctx context.Context, id uuid.UUID) (model.WithdrawResult, error) {
	var st settlement
	err := s.store.WithinTx(ctx, func(r IRepositories) error {
		var err error
		st, err = s.settleTx(ctx, r, id)
		return err
	})
	if err != nil {
		s.logger.Errorw("unexpected settlement error", "withdraw", id, "error", err)
		return model.WithdrawResult{}, transient("settle", err)
	}

	s.afterCommit(st)
	return st.result, nil
}

// SettleImmediate creates the withdrawal and settles it in the same transaction,
// so a request either leaves a terminal row or nothing at all.
func (s *Settler) SettleImmediate(ctx context.Context, w model.NewWithdrawal, pix *model.PaymentDetail) (model.WithdrawResult, error) {
	w.ScheduledFor = nil

	var st settlement
	err := s.store.WithinTx(ctx, func(r IRepositories) error {
		id, err := r.Withdrawals().CreatePending(ctx, w)
		if err != nil {
			return err
		}

		if pix != nil {
			p := *pix
			p.WithdrawalID = id
			if _, err = r.PaymentDetails().CreatePaymentDetail(ctx, p); err != nil {
				return err
			}
		}

		st, err = s.settleTx(ctx, r, id)
		return err
	})
	if err != nil {
		s.logger.Errorw("unexpected immediate settlement error", "account", w.AccountID, "error", err)
		return model.WithdrawResult{}, transient("settle immediate", err)
	}

	s.afterCommit(st)
	return st.result, nil
}

// Wait blocks until notifications started by earlier settlements return.
func (s *Settler) Wait() {
	s.wg.Wait()
}

func (s *Settler) settleTx(ctx context.Context, r IRepositories, id uuid.UUID) (settlement, error) {
	w, err := r.Withdrawals().LockForSettlement(ctx, id)
	if errors.Is(err, ErrWithdrawalNotFound) {
		s.logger.Warnw("withdrawal not found", "withdraw", id)
		return settlement{result: model.WithdrawResult{WithdrawalID: id}}, nil
	}
	if err != nil {
		return settlement{}, err
	}

	if w.Done {
		s.logger.Infow("withdrawal already done, skipping", "withdraw", id)
		return settlement{result: model.ResultOf(w)}, nil
	}

	acc, err := r.Accounts().Account(ctx, w.AccountID)
	if errors.Is(err, ErrAccountNotFound) {
		s.logger.Warnw("account not found", "withdraw", id, "account", w.AccountID)
		return s.fail(ctx, r, w, model.CodeAccountNotFound)
	}
	if err != nil {
		return settlement{}, err
	}

	ok, err := s.debit(ctx, r, acc, w)
	if err != nil {
		return settlement{}, err
	}
	s.logger.Infow("debit attempted", "withdraw", id, "account", w.AccountID, "amount", w.Amount.StringFixed(2), "applied", ok)
	if !ok {
		return s.fail(ctx, r, w, model.CodeInsufficientFunds)
	}

	if err = s.writeTerminal(ctx, r, w.ID, model.Succeeded()); err != nil {
		return settlement{}, err
	}

	s.logger.Infow("withdrawal processed", "withdraw", id, "account", w.AccountID)
	return settlement{
		result: model.WithdrawResult{WithdrawalID: w.ID, Status: model.StatusDone},
		intent: notifySuccess,
	}, nil
}

func (s *Settler) fail(ctx context.Context, r IRepositories, w model.Withdrawal, code model.ErrorCode) (settlement, error) {
	if err := s.writeTerminal(ctx, r, w.ID, model.Failed(code)); err != nil {
		return settlement{}, err
	}

	s.logger.Warnw("withdrawal failed", "withdraw", w.ID, "account", w.AccountID, "code", code)
	return settlement{
		result: model.WithdrawResult{WithdrawalID: w.ID, Status: model.StatusFailed, Error: code},
		intent: notifyFailure,
	}, nil
}

func (s *Settler) writeTerminal(ctx context.Context, r IRepositories, id uuid.UUID, o model.Outcome) error {
	written, err := r.Withdrawals().WriteTerminal(ctx, id, o)
	if err != nil {
		return err
	}
	// The row is locked and was not done, so a lost write means the lock did not hold.
	if !written {
		return ErrTerminalWriteLost
	}
	return nil
}

func (s *Settler) debit(ctx context.Context, r IRepositories, acc model.Account, w model.Withdrawal) (bool, error) {
	if !s.optimistic {
		return r.Accounts().ConditionalDebit(ctx, acc.ID, w.Amount)
	}

	for attempt := 1; attempt <= maxVersionRetries; attempt++ {
		if acc.Balance.LessThan(w.Amount) {
			return false, nil
		}

		ok, err := r.Accounts().ConditionalDebitVersion(ctx, acc.ID, w.Amount, acc.Version)
		if err != nil || ok {
			return ok, err
		}

		s.logger.Debugw("account version moved, re-reading", "withdraw", w.ID, "account", acc.ID, "attempt", attempt)
		if acc, err = r.Accounts().Account(ctx, acc.ID); err != nil {
			return false, err
		}
	}
	return false, ErrVersionConflict
}

// afterCommit runs only once the transaction is durable. The notifier re-reads
// the committed row itself, so it never sees uncommitted state.
func (s *Settler) afterCommit(st settlement) {
	var kind model.TemplateKind
	switch st.intent {
	case notifySuccess:
		kind = model.TemplateSuccess
	case notifyFailure:
		kind = model.TemplateFailure
	default:
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()
		s.notifier.Notify(ctx, st.result.WithdrawalID, kind)
	}()
}
