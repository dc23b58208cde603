package internal_test

import (
	"context"
	"errors"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/DrGermanius/withdraw/internal"
	mock_internal "github.com/DrGermanius/withdraw/internal/mock"
	"github.com/DrGermanius/withdraw/internal/model"
)

var _ = Describe("Notifier", func() {
	var (
		ctx      context.Context
		ctrl     *gomock.Controller
		store    *memStore
		mailer   *mock_internal.MockIMailer
		notifier *internal.Notifier
		acc      uuid.UUID
	)
	BeforeEach(func() {
		ctx = context.Background()
		ctrl = gomock.NewController(GinkgoT())
		store = newMemStore()
		mailer = mock_internal.NewMockIMailer(ctrl)
		notifier = internal.NewNotifier(store, mailer, zap.NewNop().Sugar())
		acc = store.addAccount("500.00")
	})
	AfterEach(func() {
		ctrl.Finish()
	})
	terminal := func(id uuid.UUID, o model.Outcome) {
		written, err := store.Withdrawals().WriteTerminal(ctx, id, o)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(written).Should(BeTrue())
	}
	Context("Notify", func() {
		It("sends a success mail for a done withdrawal", func() {
			id := store.addWithdrawal(acc, "200.00", nil, "owner@example.com")
			terminal(id, model.Succeeded())

			mailer.EXPECT().SendResult(ctx, "owner@example.com", model.TemplateSuccess, model.ResultMail{
				AccountID:    acc,
				Amount:       decimal.RequireFromString("200.00"),
				WithdrawalID: id,
			}).Return(nil)

			notifier.Notify(ctx, id, model.TemplateSuccess)
		})
		It("sends a failure mail carrying the error code", func() {
			id := store.addWithdrawal(acc, "900.00", nil, "owner@example.com")
			terminal(id, model.Failed(model.CodeInsufficientFunds))

			mailer.EXPECT().SendResult(ctx, "owner@example.com", model.TemplateFailure, gomock.Any()).
				DoAndReturn(func(_ context.Context, _ string, _ model.TemplateKind, mail model.ResultMail) error {
					Expect(mail.ErrorCode).Should(Equal(model.CodeInsufficientFunds))
					return nil
				})

			notifier.Notify(ctx, id, model.TemplateFailure)
		})
		It("does not send when the committed state disagrees with the kind", func() {
			id := store.addWithdrawal(acc, "200.00", nil, "owner@example.com")
			terminal(id, model.Failed(model.CodeInsufficientFunds))

			notifier.Notify(ctx, id, model.TemplateSuccess)
		})
		It("does not send for a pending withdrawal", func() {
			id := store.addWithdrawal(acc, "200.00", nil, "owner@example.com")

			notifier.Notify(ctx, id, model.TemplateSuccess)
			notifier.Notify(ctx, id, model.TemplateFailure)
		})
		It("does not send without a payment detail", func() {
			id := store.addWithdrawal(acc, "200.00", nil, "")
			terminal(id, model.Succeeded())

			notifier.Notify(ctx, id, model.TemplateSuccess)
		})
		It("does not send to an invalid address", func() {
			id := store.addWithdrawal(acc, "200.00", nil, "not-an-email")
			terminal(id, model.Succeeded())

			notifier.Notify(ctx, id, model.TemplateSuccess)
		})
		It("swallows transport failures", func() {
			id := store.addWithdrawal(acc, "200.00", nil, "owner@example.com")
			terminal(id, model.Succeeded())
			before := store.withdrawal(id)

			mailer.EXPECT().SendResult(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("smtp: 421"))

			Expect(func() { notifier.Notify(ctx, id, model.TemplateSuccess) }).ShouldNot(Panic())
			Expect(store.withdrawal(id)).Should(Equal(before))
		})
		It("recovers from a panicking transport", func() {
			id := store.addWithdrawal(acc, "200.00", nil, "owner@example.com")
			terminal(id, model.Succeeded())

			mailer.EXPECT().SendResult(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
				DoAndReturn(func(context.Context, string, model.TemplateKind, model.ResultMail) error {
					panic("boom")
				})

			Expect(func() { notifier.Notify(ctx, id, model.TemplateSuccess) }).ShouldNot(Panic())
		})
		It("ignores an unknown withdrawal", func() {
			notifier.Notify(ctx, uuid.New(), model.TemplateSuccess)
		})
	})
	Context("Missing account", func() {
		It("notifies the failure only when a destination exists", func() {
			gone := store.addAccount("10.00")
			withMail := store.addWithdrawal(gone, "5.00", nil, "owner@example.com")
			withoutMail := store.addWithdrawal(gone, "5.00", nil, "")
			store.deleteAccount(gone)

			settler := internal.NewSettler(store, notifier, false, time.Second, zap.NewNop().Sugar())

			mailer.EXPECT().SendResult(gomock.Any(), "owner@example.com", model.TemplateFailure, gomock.Any()).
				DoAndReturn(func(_ context.Context, _ string, _ model.TemplateKind, mail model.ResultMail) error {
					Expect(mail.WithdrawalID).Should(Equal(withMail))
					Expect(mail.ErrorCode).Should(Equal(model.CodeAccountNotFound))
					return nil
				})

			for _, id := range []uuid.UUID{withMail, withoutMail} {
				res, err := settler.Settle(ctx, id)
				Expect(err).ShouldNot(HaveOccurred())
				Expect(res.Error).Should(Equal(model.CodeAccountNotFound))
			}
			settler.Wait()
		})
	})
})
