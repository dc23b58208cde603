package internal

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DrGermanius/withdraw/internal/model"
)

const maxCompleteAttempts = 3

//go:generate mockgen -destination=mock/mock_internal.go -package=mock_internal github.com/DrGermanius/withdraw/internal IDispatcher,IIdempotency,IMailer,INotifier,IPublisher,IService,ISettler

type IService interface {
	RequestWithdraw(context.Context, model.WithdrawRequest) (model.WithdrawResult, error)
	GetWithdrawal(ctx context.Context, accountID, id uuid.UUID) (model.Withdrawal, error)
}

type Service struct {
	store   IStore
	settler ISettler
	idem    IIdempotency
	logger  *zap.SugaredLogger
}

// NewService builds the request-facing service. idem may be nil, in which
// case Idempotency-Key values are only stored as request ids.
func NewService(store IStore, settler ISettler, idem IIdempotency, logger *zap.SugaredLogger) *Service {
	return &Service{store: store, settler: settler, idem: idem, logger: logger}
}

func (s *Service) RequestWithdraw(ctx context.Context, req model.WithdrawRequest) (model.WithdrawResult, error) {
	if req.IdempotencyKey == "" || s.idem == nil {
		return s.create(ctx, req)
	}

	cached, err := s.idem.Begin(ctx, req.AccountID, req.IdempotencyKey)
	if err != nil {
		if errors.Is(err, ErrRequestInProgress) {
			return model.WithdrawResult{}, err
		}
		return model.WithdrawResult{}, transient("reserve idempotency key", err)
	}
	if cached != nil {
		return *cached, nil
	}

	res, err := s.create(ctx, req)
	if err != nil {
		if aerr := s.idem.Abort(context.Background(), req.AccountID, req.IdempotencyKey); aerr != nil {
			s.logger.Errorw("cannot release idempotency key", "account", req.AccountID, "error", aerr)
		}
		return model.WithdrawResult{}, err
	}

	s.complete(req, res)
	return res, nil
}

// complete stores the result for replays. It runs detached from the request
// because the withdrawal is already terminal or scheduled by now.
func (s *Service) complete(req model.WithdrawRequest, res model.WithdrawResult) {
	var err error
	for attempt := 1; attempt <= maxCompleteAttempts; attempt++ {
		if err = s.idem.Complete(context.Background(), req.AccountID, req.IdempotencyKey, res); err == nil {
			return
		}
		s.logger.Warnw("cannot store idempotent result, retrying", "account", req.AccountID, "withdraw", res.WithdrawalID, "attempt", attempt, "error", err)
	}
	s.logger.Errorw("idempotent result not stored, key stays reserved until it expires",
		"account", req.AccountID, "withdraw", res.WithdrawalID, "error", err)
}

func (s *Service) create(ctx context.Context, req model.WithdrawRequest) (model.WithdrawResult, error) {
	nw := model.NewWithdrawal{
		AccountID:    req.AccountID,
		Method:       req.Method,
		Amount:       req.Amount,
		ScheduledFor: req.Schedule,
		RequestID:    req.IdempotencyKey,
	}

	var pix *model.PaymentDetail
	if req.Pix != nil {
		pix = &model.PaymentDetail{
			AccountID: req.AccountID,
			Key:       req.Pix.Key,
			Type:      req.Pix.Type,
			Provider:  req.Pix.Provider,
		}
	}

	if req.Schedule == nil {
		return s.settler.SettleImmediate(ctx, nw, pix)
	}

	var id uuid.UUID
	err := s.store.WithinTx(ctx, func(r IRepositories) error {
		var err error
		if id, err = r.Withdrawals().CreatePending(ctx, nw); err != nil {
			return err
		}
		if pix != nil {
			p := *pix
			p.WithdrawalID = id
			_, err = r.PaymentDetails().CreatePaymentDetail(ctx, p)
		}
		return err
	})
	if err != nil {
		s.logger.Errorw("cannot create scheduled withdrawal", "account", req.AccountID, "error", err)
		return model.WithdrawResult{}, transient("create scheduled withdrawal", err)
	}

	s.logger.Infow("withdrawal scheduled", "withdraw", id, "account", req.AccountID,
		"amount", req.Amount.StringFixed(2), "scheduled_for", req.Schedule.UTC())
	return model.WithdrawResult{WithdrawalID: id, Status: model.StatusScheduled}, nil
}

// GetWithdrawal hides withdrawals of other accounts behind ErrWithdrawalNotFound.
func (s *Service) GetWithdrawal(ctx context.Context, accountID, id uuid.UUID) (model.Withdrawal, error) {
	w, err := s.store.Withdrawals().Withdrawal(ctx, id)
	if err != nil {
		return model.Withdrawal{}, err
	}
	if w.AccountID != accountID {
		return model.Withdrawal{}, ErrWithdrawalNotFound
	}
	return w, nil
}
