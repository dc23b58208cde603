package internal

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DrGermanius/withdraw/internal/model"
)

type INotifier interface {
	// Notify never reports failure to the caller.
	Notify(context.Context, uuid.UUID, model.TemplateKind)
}

type IMailer interface {
	SendResult(ctx context.Context, to string, kind model.TemplateKind, mail model.ResultMail) error
}

type Notifier struct {
	repos    IRepositories
	mailer   IMailer
	validate *validator.Validate
	logger   *zap.SugaredLogger
}

func NewNotifier(repos IRepositories, mailer IMailer, logger *zap.SugaredLogger) *Notifier {
	return &Notifier{
		repos:    repos,
		mailer:   mailer,
		validate: validator.New(),
		logger:   logger,
	}
}

func (n *Notifier) Notify(ctx context.Context, id uuid.UUID, kind model.TemplateKind) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Errorw("notification panicked", "withdraw", id, "panic", r)
		}
	}()

	w, err := n.repos.Withdrawals().Withdrawal(ctx, id)
	if err != nil {
		n.logger.Errorw("mail error: cannot reload withdrawal", "withdraw", id, "error", err)
		return
	}

	if !matchesKind(w, kind) {
		n.logger.Warnw("committed state does not match notification, not sending",
			"withdraw", id, "kind", kind, "done", w.Done, "failed", w.Error)
		return
	}

	pix, err := n.repos.PaymentDetails().PaymentDetailByWithdrawal(ctx, id)
	if errors.Is(err, ErrPaymentDetailNotFound) {
		n.logger.Debugw("no payment detail, nothing to notify", "withdraw", id)
		return
	}
	if err != nil {
		n.logger.Errorw("mail error: cannot load payment detail", "withdraw", id, "error", err)
		return
	}

	to := pix.Key
	if err = n.validate.Var(to, "required,email"); err != nil {
		n.logger.Debugw("destination is not an email address, not sending", "withdraw", id)
		return
	}

	mail := model.ResultMail{
		AccountID:    w.AccountID,
		Amount:       w.Amount,
		WithdrawalID: w.ID,
		ErrorCode:    w.ErrorCode,
	}
	if err = n.mailer.SendResult(ctx, to, kind, mail); err != nil {
		n.logger.Errorw("mail error", "withdraw", id, "to", to, "error", err)
		return
	}

	n.logger.Infow("result email sent", "withdraw", id, "to", to, "kind", kind, "code", w.ErrorCode)
}

func matchesKind(w model.Withdrawal, kind model.TemplateKind) bool {
	switch kind {
	case model.TemplateSuccess:
		return w.Done && !w.Error
	case model.TemplateFailure:
		return w.Done && w.Error
	default:
		return false
	}
}
