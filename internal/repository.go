package internal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/DrGermanius/withdraw/internal/model"
)

const (
	withdrawalFields = "id, account_id, method, amount, version, scheduled_for, queued_at, done, error, error_code, request_id, created_at, updated_at"
	pixFields        = "id, account_withdraw_id, account_id, key, type, status, provider, error_code, confirmed_at"

	maxTxAttempts = 3
)

type IAccounts interface {
	Account(context.Context, uuid.UUID) (model.Account, error)
	// ConditionalDebit decrements the balance only if it covers amount.
	// It reports false, not an error, when funds are insufficient.
	ConditionalDebit(context.Context, uuid.UUID, decimal.Decimal) (bool, error)
	ConditionalDebitVersion(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, expectedVersion int64) (bool, error)
}

type IWithdrawals interface {
	CreatePending(context.Context, model.NewWithdrawal) (uuid.UUID, error)
	ClaimDueBatch(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	ReclaimStale(ctx context.Context, now, claimedBefore time.Time, limit int) ([]uuid.UUID, error)
	LockForSettlement(context.Context, uuid.UUID) (model.Withdrawal, error)
	Withdrawal(context.Context, uuid.UUID) (model.Withdrawal, error)
	WriteTerminal(context.Context, uuid.UUID, model.Outcome) (bool, error)
}

type IPaymentDetails interface {
	CreatePaymentDetail(context.Context, model.PaymentDetail) (uuid.UUID, error)
	PaymentDetailByWithdrawal(context.Context, uuid.UUID) (model.PaymentDetail, error)
}

type IRepositories interface {
	Accounts() IAccounts
	Withdrawals() IWithdrawals
	PaymentDetails() IPaymentDetails
}

type IStore interface {
	IRepositories
	WithinTx(context.Context, func(IRepositories) error) error
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type Repository struct {
	q      querier
	logger *zap.SugaredLogger
	now    func() time.Time
}

func (r Repository) Accounts() IAccounts             { return r }
func (r Repository) Withdrawals() IWithdrawals       { return r }
func (r Repository) PaymentDetails() IPaymentDetails { return r }

type Store struct {
	Repository
	db *sql.DB
}

func NewStore(db *sql.DB, logger *zap.SugaredLogger) *Store {
	return &Store{
		Repository: Repository{q: db, logger: logger, now: time.Now},
		db:         db,
	}
}

// WithinTx runs fn in one transaction and commits if fn returns nil.
// Serialization failures and deadlocks rerun fn from the start.
func (s *Store) WithinTx(ctx context.Context, fn func(IRepositories) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.runTx(ctx, fn)
		if err == nil || !retryableTx(err) {
			return err
		}
		s.logger.Warnw("transaction aborted, retrying", "attempt", attempt, "error", err)
	}
	return err
}

func (s *Store) runTx(ctx context.Context, fn func(IRepositories) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}

	err = fn(Repository{q: tx, logger: s.logger, now: s.now})
	if err != nil {
		s.rollback(tx)
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	return nil
}

func (s *Store) rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		s.logger.Errorf("error rolling back transaction: %s", err.Error())
	}
}

func retryableTx(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	// serialization_failure, deadlock_detected
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

func (r Repository) Account(ctx context.Context, id uuid.UUID) (model.Account, error) {
	var a model.Account
	err := r.q.QueryRowContext(ctx, "SELECT id, balance, version, updated_at FROM accounts WHERE id = $1", id).
		Scan(&a.ID, &a.Balance, &a.Version, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, ErrAccountNotFound
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("error fetching account: %w", err)
	}
	return a, nil
}

func (r Repository) ConditionalDebit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		"UPDATE accounts SET balance = balance - $1, version = version + 1, updated_at = $2 WHERE id = $3 AND balance >= $1",
		amount, r.now().UTC(), accountID)
	if err != nil {
		return false, fmt.Errorf("error debiting account: %w", err)
	}
	return affectedOne(res)
}

func (r Repository) ConditionalDebitVersion(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, expectedVersion int64) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		"UPDATE accounts SET balance = balance - $1, version = version + 1, updated_at = $2 WHERE id = $3 AND version = $4 AND balance >= $1",
		amount, r.now().UTC(), accountID, expectedVersion)
	if err != nil {
		return false, fmt.Errorf("error debiting account with version: %w", err)
	}
	return affectedOne(res)
}

func (r Repository) CreatePending(ctx context.Context, w model.NewWithdrawal) (uuid.UUID, error) {
	id := uuid.New()
	now := r.now().UTC()

	var scheduledFor sql.NullTime
	if w.ScheduledFor != nil {
		scheduledFor = sql.NullTime{Time: w.ScheduledFor.UTC(), Valid: true}
	}

	_, err := r.q.ExecContext(ctx,
		"INSERT INTO account_withdraw (id, account_id, method, amount, version, scheduled_for, done, error, request_id, created_at, updated_at) VALUES ($1, $2, $3, $4, 1, $5, false, false, $6, $7, $7)",
		id, w.AccountID, w.Method, w.Amount, scheduledFor, nullString(w.RequestID), now)
	if err != nil {
		return uuid.Nil, fmt.Errorf("error creating withdrawal: %w", err)
	}
	return id, nil
}

// ClaimDueBatch must run inside WithinTx: the row lock taken by the select is
// what keeps concurrent schedulers from picking overlapping batches.
func (r Repository) ClaimDueBatch(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	now = now.UTC()
	ids, err := r.selectIDs(ctx,
		"SELECT id FROM account_withdraw WHERE done = false AND error = false AND queued_at IS NULL AND scheduled_for IS NOT NULL AND scheduled_for <= $1 ORDER BY scheduled_for ASC LIMIT $2 FOR UPDATE SKIP LOCKED",
		now, limit)
	if err != nil {
		return nil, fmt.Errorf("error selecting due withdrawals: %w", err)
	}

	claimed := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		res, err := r.q.ExecContext(ctx,
			"UPDATE account_withdraw SET queued_at = $1, updated_at = $1 WHERE id = $2 AND queued_at IS NULL",
			now, id)
		if err != nil {
			return nil, fmt.Errorf("error claiming withdrawal %s: %w", id, err)
		}
		ok, err := affectedOne(res)
		if err != nil {
			return nil, err
		}
		if !ok {
			r.logger.Warnw("withdrawal claimed elsewhere", "withdraw", id)
			continue
		}
		claimed = append(claimed, id)
	}
	return claimed, nil
}

func (r Repository) ReclaimStale(ctx context.Context, now, claimedBefore time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT id, queued_at FROM account_withdraw WHERE done = false AND queued_at IS NOT NULL AND queued_at <= $1 ORDER BY queued_at ASC LIMIT $2 FOR UPDATE SKIP LOCKED",
		claimedBefore.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("error selecting stale claims: %w", err)
	}

	type staleClaim struct {
		id       uuid.UUID
		queuedAt time.Time
	}
	var stale []staleClaim
	for rows.Next() {
		var c staleClaim
		if err = rows.Scan(&c.id, &c.queuedAt); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("error scanning stale claim: %w", err)
		}
		stale = append(stale, c)
	}
	if err = closeRows(rows); err != nil {
		return nil, err
	}

	reclaimed := make([]uuid.UUID, 0, len(stale))
	for _, c := range stale {
		res, err := r.q.ExecContext(ctx,
			"UPDATE account_withdraw SET queued_at = $1, updated_at = $1 WHERE id = $2 AND queued_at = $3 AND done = false",
			now.UTC(), c.id, c.queuedAt)
		if err != nil {
			return nil, fmt.Errorf("error reclaiming withdrawal %s: %w", c.id, err)
		}
		ok, err := affectedOne(res)
		if err != nil {
			return nil, err
		}
		if ok {
			reclaimed = append(reclaimed, c.id)
		}
	}
	return reclaimed, nil
}

func (r Repository) LockForSettlement(ctx context.Context, id uuid.UUID) (model.Withdrawal, error) {
	return r.scanWithdrawal(r.q.QueryRowContext(ctx, "SELECT "+withdrawalFields+" FROM account_withdraw WHERE id = $1 FOR UPDATE", id))
}

func (r Repository) Withdrawal(ctx context.Context, id uuid.UUID) (model.Withdrawal, error) {
	return r.scanWithdrawal(r.q.QueryRowContext(ctx, "SELECT "+withdrawalFields+" FROM account_withdraw WHERE id = $1", id))
}

// WriteTerminal reports false when the row was already terminal; the second
// call with the same outcome is a no-op.
func (r Repository) WriteTerminal(ctx context.Context, id uuid.UUID, o model.Outcome) (bool, error) {
	var code sql.NullString
	if o.Error {
		code = sql.NullString{String: string(o.Code), Valid: true}
	}

	res, err := r.q.ExecContext(ctx,
		"UPDATE account_withdraw SET done = true, error = $1, error_code = $2, version = version + 1, updated_at = $3 WHERE id = $4 AND done = false",
		o.Error, code, r.now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("error writing terminal state: %w", err)
	}
	return affectedOne(res)
}

func (r Repository) CreatePaymentDetail(ctx context.Context, p model.PaymentDetail) (uuid.UUID, error) {
	id := uuid.New()
	now := r.now().UTC()

	status := p.Status
	if status == "" {
		status = model.PixStatusCreated
	}
	provider := p.Provider
	if provider == "" {
		provider = model.DefaultProvider
	}

	_, err := r.q.ExecContext(ctx,
		"INSERT INTO account_withdraw_pix (id, account_withdraw_id, account_id, key, type, status, provider, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)",
		id, p.WithdrawalID, p.AccountID, p.Key, p.Type, status, provider, now)
	if err != nil {
		return uuid.Nil, fmt.Errorf("error creating payment detail: %w", err)
	}

	r.logger.Infow("pix stored", "pix", id, "withdraw", p.WithdrawalID)
	return id, nil
}

func (r Repository) PaymentDetailByWithdrawal(ctx context.Context, withdrawalID uuid.UUID) (model.PaymentDetail, error) {
	var (
		p           model.PaymentDetail
		accountID   uuid.NullUUID
		provider    sql.NullString
		errorCode   sql.NullString
		confirmedAt sql.NullTime
	)

	err := r.q.QueryRowContext(ctx, "SELECT "+pixFields+" FROM account_withdraw_pix WHERE account_withdraw_id = $1 LIMIT 1", withdrawalID).
		Scan(&p.ID, &p.WithdrawalID, &accountID, &p.Key, &p.Type, &p.Status, &provider, &errorCode, &confirmedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PaymentDetail{}, ErrPaymentDetailNotFound
	}
	if err != nil {
		return model.PaymentDetail{}, fmt.Errorf("error fetching payment detail: %w", err)
	}

	p.AccountID = accountID.UUID
	p.Provider = provider.String
	p.ErrorCode = errorCode.String
	if confirmedAt.Valid {
		t := confirmedAt.Time.UTC()
		p.ConfirmedAt = &t
	}
	return p, nil
}

func (r Repository) scanWithdrawal(row *sql.Row) (model.Withdrawal, error) {
	var (
		w            model.Withdrawal
		scheduledFor sql.NullTime
		queuedAt     sql.NullTime
		errorCode    sql.NullString
		requestID    sql.NullString
	)

	err := row.Scan(&w.ID, &w.AccountID, &w.Method, &w.Amount, &w.Version, &scheduledFor, &queuedAt,
		&w.Done, &w.Error, &errorCode, &requestID, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Withdrawal{}, ErrWithdrawalNotFound
	}
	if err != nil {
		return model.Withdrawal{}, fmt.Errorf("error fetching withdrawal: %w", err)
	}

	if scheduledFor.Valid {
		t := scheduledFor.Time.UTC()
		w.ScheduledFor = &t
	}
	if queuedAt.Valid {
		t := queuedAt.Time.UTC()
		w.QueuedAt = &t
	}
	w.ErrorCode = model.ErrorCode(errorCode.String)
	w.RequestID = requestID.String
	return w, nil
}

func (r Repository) selectIDs(ctx context.Context, query string, args ...interface{}) ([]uuid.UUID, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err = rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, closeRows(rows)
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("error iterating rows: %w", err)
	}
	return rows.Close()
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error checking rows affected: %w", err)
	}
	return n == 1, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
