package internal_test

import (
	"context"
	"errors"
	"sync"
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

type collectingDispatcher struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (d *collectingDispatcher) Dispatch(_ context.Context, id uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids = append(d.ids, id)
	return nil
}

// cancellingStore cancels the caller's context right after a commit.
type cancellingStore struct {
	*memStore
	cancel context.CancelFunc
}

func (s *cancellingStore) WithinTx(ctx context.Context, fn func(internal.IRepositories) error) error {
	err := s.memStore.WithinTx(ctx, fn)
	s.cancel()
	return err
}

var _ = Describe("Scheduler", func() {
	var (
		ctx   context.Context
		ctrl  *gomock.Controller
		store *memStore
		now   time.Time
		acc   uuid.UUID
	)
	BeforeEach(func() {
		ctx = context.Background()
		ctrl = gomock.NewController(GinkgoT())
		store = newMemStore()
		now = time.Date(2025, 10, 7, 15, 0, 0, 0, time.UTC)
		store.now = func() time.Time { return now }
		acc = store.addAccount("10000.00")
	})
	AfterEach(func() {
		ctrl.Finish()
	})
	at := func(d time.Duration) *time.Time {
		t := now.Add(d)
		return &t
	}
	Context("Tick", func() {
		It("claims only due rows, oldest first", func() {
			late := store.addWithdrawal(acc, "1.00", at(-time.Hour), "")
			due := store.addWithdrawal(acc, "1.00", at(-time.Minute), "")
			store.addWithdrawal(acc, "1.00", at(time.Minute), "")
			store.addWithdrawal(acc, "1.00", nil, "")

			dispatcher := mock_internal.NewMockIDispatcher(ctrl)
			gomock.InOrder(
				dispatcher.EXPECT().Dispatch(gomock.Any(), late).Return(nil),
				dispatcher.EXPECT().Dispatch(gomock.Any(), due).Return(nil),
			)

			s := internal.NewScheduler(store, dispatcher, 10, 0, zap.NewNop().Sugar()).WithClock(func() time.Time { return now })
			n, err := s.Tick(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(n).Should(Equal(2))

			Expect(store.withdrawal(late).QueuedAt).ShouldNot(BeNil())
			Expect(store.withdrawal(due).QueuedAt.Equal(now)).Should(BeTrue())
		})
		It("respects the batch size", func() {
			for i := 0; i < 5; i++ {
				store.addWithdrawal(acc, "1.00", at(-time.Duration(i+1)*time.Minute), "")
			}
			dispatcher := &collectingDispatcher{}
			s := internal.NewScheduler(store, dispatcher, 3, 0, zap.NewNop().Sugar()).WithClock(func() time.Time { return now })

			n, err := s.Tick(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(n).Should(Equal(3))

			n, err = s.Tick(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(n).Should(Equal(2))

			n, err = s.Tick(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(n).Should(Equal(0))
		})
		It("claims each due row at most once across concurrent schedulers", func() {
			const rows = 60
			for i := 0; i < rows; i++ {
				store.addWithdrawal(acc, "1.00", at(-time.Duration(i+1)*time.Second), "")
			}
			dispatcher := &collectingDispatcher{}
			// the first tick of every scheduler selects the same rows
			store.claimSelects = newGate(8)

			var wg sync.WaitGroup
			for w := 0; w < 8; w++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					s := internal.NewScheduler(store, dispatcher, 7, 0, zap.NewNop().Sugar()).WithClock(func() time.Time { return now })
					for i := 0; i < 20; i++ {
						_, err := s.Tick(ctx)
						Expect(err).ShouldNot(HaveOccurred())
					}
				}()
			}
			wg.Wait()

			seen := map[uuid.UUID]bool{}
			for _, id := range dispatcher.ids {
				Expect(seen[id]).Should(BeFalse(), "withdrawal %s dispatched twice", id)
				seen[id] = true
			}
			Expect(seen).Should(HaveLen(rows))
		})
		It("leaves a row claimed when the dispatch fails", func() {
			id := store.addWithdrawal(acc, "1.00", at(-time.Minute), "")

			dispatcher := mock_internal.NewMockIDispatcher(ctrl)
			dispatcher.EXPECT().Dispatch(gomock.Any(), id).Return(errors.New("broker down"))

			s := internal.NewScheduler(store, dispatcher, 10, 0, zap.NewNop().Sugar()).WithClock(func() time.Time { return now })
			n, err := s.Tick(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(n).Should(Equal(0))

			w := store.withdrawal(id)
			Expect(w.QueuedAt).ShouldNot(BeNil())
			Expect(w.Done).Should(BeFalse())
			Expect(w.Status()).Should(Equal(model.StatusClaimed))

			n, err = s.Tick(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(n).Should(Equal(0))
		})
		It("dispatches committed claims even when the tick is cancelled", func() {
			id := store.addWithdrawal(acc, "1.00", at(-time.Minute), "")
			cctx, cancel := context.WithCancel(ctx)

			dispatcher := mock_internal.NewMockIDispatcher(ctrl)
			dispatcher.EXPECT().Dispatch(gomock.Any(), id).
				DoAndReturn(func(dctx context.Context, _ uuid.UUID) error {
					Expect(dctx.Err()).ShouldNot(HaveOccurred())
					_, hasDeadline := dctx.Deadline()
					Expect(hasDeadline).Should(BeTrue())
					return nil
				})

			s := internal.NewScheduler(&cancellingStore{memStore: store, cancel: cancel}, dispatcher, 10, 0, zap.NewNop().Sugar()).
				WithClock(func() time.Time { return now })
			n, err := s.Tick(cctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(n).Should(Equal(1))
			Expect(cctx.Err()).Should(HaveOccurred())
		})
		It("redispatches stale claims when reclaiming is enabled", func() {
			id := store.addWithdrawal(acc, "1.00", at(-time.Hour), "")

			dispatcher := mock_internal.NewMockIDispatcher(ctrl)
			dispatcher.EXPECT().Dispatch(gomock.Any(), id).Return(errors.New("broker down"))
			dispatcher.EXPECT().Dispatch(gomock.Any(), id).Return(nil)

			s := internal.NewScheduler(store, dispatcher, 10, 10*time.Minute, zap.NewNop().Sugar()).WithClock(func() time.Time { return now })
			_, err := s.Tick(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			now = now.Add(5 * time.Minute)
			n, err := s.Tick(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(n).Should(Equal(0))

			now = now.Add(10 * time.Minute)
			n, err = s.Tick(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(n).Should(Equal(1))
			Expect(store.withdrawal(id).QueuedAt.Equal(now)).Should(BeTrue())
		})
		It("reports a transient error when the claim cannot commit", func() {
			store.addWithdrawal(acc, "1.00", at(-time.Minute), "")
			store.commitErr = errors.New("connection refused")

			s := internal.NewScheduler(store, mock_internal.NewMockIDispatcher(ctrl), 10, 0, zap.NewNop().Sugar())
			_, err := s.Tick(ctx)
			Expect(internal.IsTransient(err)).Should(BeTrue())
		})
	})
	Context("Scheduled withdrawal end to end", func() {
		It("is claimed once and settled once despite redelivery", func() {
			id := store.addWithdrawal(acc, "250.00", at(-time.Minute), "owner@example.com")
			dispatcher := &collectingDispatcher{}
			notifier := &recordingNotifier{}
			settler := internal.NewSettler(store, notifier, false, time.Second, zap.NewNop().Sugar())
			s := internal.NewScheduler(store, dispatcher, 10, 0, zap.NewNop().Sugar()).WithClock(func() time.Time { return now })

			_, err := s.Tick(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			_, err = s.Tick(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(dispatcher.ids).Should(Equal([]uuid.UUID{id}))

			queuedAt := *store.withdrawal(id).QueuedAt
			for i := 0; i < 3; i++ {
				res, err := settler.Settle(ctx, dispatcher.ids[0])
				Expect(err).ShouldNot(HaveOccurred())
				Expect(res.Status).Should(Equal(model.StatusDone))
			}
			settler.Wait()

			Expect(store.withdrawal(id).QueuedAt.Equal(queuedAt)).Should(BeTrue())
			Expect(store.balance(acc).Equal(decimal.RequireFromString("9750.00"))).Should(BeTrue())
			Expect(notifier.count(model.TemplateSuccess)).Should(Equal(1))
		})
	})
})
