package internal_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/DrGermanius/withdraw/internal"
	"github.com/DrGermanius/withdraw/internal/model"
)

func immediate(accountID uuid.UUID, amount string) model.NewWithdrawal {
	return model.NewWithdrawal{
		AccountID: accountID,
		Method:    model.MethodPix,
		Amount:    decimal.RequireFromString(amount),
	}
}

func pixTo(email string) *model.PaymentDetail {
	return &model.PaymentDetail{Key: email, Type: model.KeyTypeEmail}
}

var _ = Describe("Settler", func() {
	var (
		ctx      context.Context
		store    *memStore
		notifier *recordingNotifier
		settler  *internal.Settler
	)
	BeforeEach(func() {
		ctx = context.Background()
		store = newMemStore()
		notifier = &recordingNotifier{}
		settler = internal.NewSettler(store, notifier, false, time.Second, zap.NewNop().Sugar())
	})
	Context("Immediate path", func() {
		It("debits the balance and notifies success", func() {
			acc := store.addAccount("500.00")

			res, err := settler.SettleImmediate(ctx, immediate(acc, "200.00"), pixTo("owner@example.com"))
			Expect(err).ShouldNot(HaveOccurred())
			settler.Wait()

			Expect(res.Status).Should(Equal(model.StatusDone))
			Expect(res.Error).Should(BeEmpty())
			Expect(store.balance(acc).Equal(decimal.RequireFromString("300.00"))).Should(BeTrue())
			Expect(notifier.count(model.TemplateSuccess)).Should(Equal(1))
			Expect(notifier.count(model.TemplateFailure)).Should(Equal(0))

			w := store.withdrawal(res.WithdrawalID)
			Expect(w.Done).Should(BeTrue())
			Expect(w.Error).Should(BeFalse())
			Expect(w.ScheduledFor).Should(BeNil())
		})
		It("lets exactly one of two concurrent withdrawals through", func() {
			acc := store.addAccount("500.00")
			// both transactions see 500.00 before either debits
			store.accountReads = newGate(2)

			results := make([]model.WithdrawResult, 2)
			var wg sync.WaitGroup
			for i := range results {
				wg.Add(1)
				go func(i int) {
					defer GinkgoRecover()
					defer wg.Done()
					res, err := settler.SettleImmediate(ctx, immediate(acc, "300.00"), pixTo("owner@example.com"))
					Expect(err).ShouldNot(HaveOccurred())
					results[i] = res
				}(i)
			}
			wg.Wait()
			settler.Wait()

			statuses := []model.Status{results[0].Status, results[1].Status}
			Expect(statuses).Should(ConsistOf(model.StatusDone, model.StatusFailed))
			for _, r := range results {
				if r.Status == model.StatusFailed {
					Expect(r.Error).Should(Equal(model.CodeInsufficientFunds))
				}
			}
			Expect(store.balance(acc).Equal(decimal.RequireFromString("200.00"))).Should(BeTrue())
			Expect(notifier.count(model.TemplateSuccess)).Should(Equal(1))
			Expect(notifier.count(model.TemplateFailure)).Should(Equal(1))
		})
		It("leaves nothing behind on a transient failure", func() {
			acc := store.addAccount("500.00")
			store.commitErr = errors.New("connection reset")

			_, err := settler.SettleImmediate(ctx, immediate(acc, "200.00"), pixTo("owner@example.com"))
			settler.Wait()

			Expect(err).Should(HaveOccurred())
			Expect(internal.IsTransient(err)).Should(BeTrue())
			Expect(store.balance(acc).Equal(decimal.RequireFromString("500.00"))).Should(BeTrue())
			Expect(store.data.withdrawals).Should(BeEmpty())
			Expect(notifier.calls).Should(BeEmpty())
		})
	})
	Context("Queued path", func() {
		It("is a no-op on an already terminal withdrawal", func() {
			acc := store.addAccount("500.00")
			id := store.addWithdrawal(acc, "200.00", nil, "owner@example.com")

			first, err := settler.Settle(ctx, id)
			Expect(err).ShouldNot(HaveOccurred())
			settler.Wait()
			before := store.withdrawal(id)

			second, err := settler.Settle(ctx, id)
			Expect(err).ShouldNot(HaveOccurred())
			settler.Wait()

			Expect(first.Status).Should(Equal(model.StatusDone))
			Expect(second.Status).Should(Equal(model.StatusDone))
			Expect(store.withdrawal(id)).Should(Equal(before))
			Expect(store.balance(acc).Equal(decimal.RequireFromString("300.00"))).Should(BeTrue())
			Expect(notifier.count(model.TemplateSuccess)).Should(Equal(1))
		})
		It("fails with ACCOUNT_NOT_FOUND when the account is gone", func() {
			acc := store.addAccount("500.00")
			id := store.addWithdrawal(acc, "200.00", nil, "owner@example.com")
			store.deleteAccount(acc)

			res, err := settler.Settle(ctx, id)
			Expect(err).ShouldNot(HaveOccurred())
			settler.Wait()

			Expect(res.Status).Should(Equal(model.StatusFailed))
			Expect(res.Error).Should(Equal(model.CodeAccountNotFound))

			w := store.withdrawal(id)
			Expect(w.Done).Should(BeTrue())
			Expect(w.Error).Should(BeTrue())
			Expect(w.ErrorCode).Should(Equal(model.CodeAccountNotFound))
			Expect(notifier.count(model.TemplateFailure)).Should(Equal(1))
		})
		It("fails with INSUFFICIENT_FUNDS without touching the balance", func() {
			acc := store.addAccount("100.00")
			id := store.addWithdrawal(acc, "100.01", nil, "")

			res, err := settler.Settle(ctx, id)
			Expect(err).ShouldNot(HaveOccurred())
			settler.Wait()

			Expect(res.Status).Should(Equal(model.StatusFailed))
			Expect(res.Error).Should(Equal(model.CodeInsufficientFunds))
			Expect(store.balance(acc).Equal(decimal.RequireFromString("100.00"))).Should(BeTrue())
		})
		It("returns quietly for an unknown withdrawal", func() {
			id := uuid.New()

			res, err := settler.Settle(ctx, id)
			Expect(err).ShouldNot(HaveOccurred())
			settler.Wait()

			Expect(res.WithdrawalID).Should(Equal(id))
			Expect(notifier.calls).Should(BeEmpty())
		})
		It("keeps the row untouched and silent on a transient failure", func() {
			acc := store.addAccount("500.00")
			id := store.addWithdrawal(acc, "200.00", nil, "owner@example.com")
			before := store.withdrawal(id)
			store.commitErr = errors.New("could not serialize access")

			_, err := settler.Settle(ctx, id)
			settler.Wait()

			Expect(internal.IsTransient(err)).Should(BeTrue())
			Expect(store.withdrawal(id)).Should(Equal(before))
			Expect(store.balance(acc).Equal(decimal.RequireFromString("500.00"))).Should(BeTrue())
			Expect(notifier.calls).Should(BeEmpty())

			store.commitErr = nil
			res, err := settler.Settle(ctx, id)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(res.Status).Should(Equal(model.StatusDone))
		})
		It("never overdraws under concurrent settlements", func() {
			acc := store.addAccount("1000.00")
			ids := make([]uuid.UUID, 25)
			for i := range ids {
				ids[i] = store.addWithdrawal(acc, "90.00", nil, "")
			}
			store.accountReads = newGate(len(ids))

			var wg sync.WaitGroup
			for _, id := range ids {
				wg.Add(1)
				go func(id uuid.UUID) {
					defer GinkgoRecover()
					defer wg.Done()
					_, err := settler.Settle(ctx, id)
					Expect(err).ShouldNot(HaveOccurred())
				}(id)
			}
			wg.Wait()
			settler.Wait()

			done := 0
			for _, id := range ids {
				w := store.withdrawal(id)
				Expect(w.Done).Should(BeTrue())
				if !w.Error {
					done++
				}
			}
			Expect(done).Should(Equal(11))
			Expect(store.balance(acc).Equal(decimal.RequireFromString("10.00"))).Should(BeTrue())
			Expect(store.balance(acc).IsNegative()).Should(BeFalse())
		})
	})
	Context("Optimistic debit", func() {
		BeforeEach(func() {
			settler = internal.NewSettler(store, notifier, true, time.Second, zap.NewNop().Sugar())
		})
		It("debits through the version check", func() {
			acc := store.addAccount("500.00")

			res, err := settler.SettleImmediate(ctx, immediate(acc, "500.00"), nil)
			Expect(err).ShouldNot(HaveOccurred())
			settler.Wait()

			Expect(res.Status).Should(Equal(model.StatusDone))
			Expect(store.balance(acc).IsZero()).Should(BeTrue())
			Expect(store.data.accounts[acc].Version).Should(Equal(int64(2)))
		})
		It("still refuses an overdraft", func() {
			acc := store.addAccount("10.00")

			res, err := settler.SettleImmediate(ctx, immediate(acc, "10.50"), nil)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(res.Error).Should(Equal(model.CodeInsufficientFunds))
		})
	})
})
