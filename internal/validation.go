package internal

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/DrGermanius/withdraw/internal/model"
)

const (
	maxIdempotencyKey   = 64
	localScheduleLayout = "2006-01-02T15:04:05"
)

type WithdrawInput struct {
	Method   string          `json:"method" validate:"required,eq=pix"`
	Amount   decimal.Decimal `json:"amount"`
	Pix      *PixInput       `json:"pix" validate:"required"`
	Schedule *string         `json:"schedule"`
}

type PixInput struct {
	Type     string `json:"type" validate:"required,eq=email"`
	Key      string `json:"key" validate:"required,email,max=255"`
	Provider string `json:"provider" validate:"omitempty,max=64"`
}

type RequestValidator struct {
	validate *validator.Validate
	location *time.Location
	horizon  time.Duration
	now      func() time.Time
}

func NewRequestValidator(location *time.Location, horizon time.Duration) *RequestValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &RequestValidator{validate: v, location: location, horizon: horizon, now: time.Now}
}

func (v *RequestValidator) WithClock(now func() time.Time) *RequestValidator {
	v.now = now
	return v
}

// Build checks the input and turns it into a request the service accepts.
// Every rejection is a *ValidationError.
func (v *RequestValidator) Build(accountID uuid.UUID, in WithdrawInput, idempotencyKey string) (model.WithdrawRequest, error) {
	in.Method = strings.ToLower(strings.TrimSpace(in.Method))
	if in.Pix != nil {
		in.Pix.Type = strings.ToLower(strings.TrimSpace(in.Pix.Type))
		in.Pix.Key = strings.TrimSpace(in.Pix.Key)
	}

	fields := map[string]string{}
	if err := v.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return model.WithdrawRequest{}, err
		}
		for _, fe := range verrs {
			fields[fieldPath(fe.Namespace())] = fmt.Sprintf("failed on '%s'", fe.Tag())
		}
	}

	if !in.Amount.IsPositive() {
		fields["amount"] = "must be greater than zero"
	} else if !in.Amount.Equal(in.Amount.Truncate(2)) {
		fields["amount"] = "must have at most two decimal places"
	}

	if len(idempotencyKey) > maxIdempotencyKey {
		fields["idempotency_key"] = fmt.Sprintf("must be at most %d characters", maxIdempotencyKey)
	}

	var schedule *time.Time
	if in.Schedule != nil && strings.TrimSpace(*in.Schedule) != "" {
		t, msg := v.schedule(strings.TrimSpace(*in.Schedule))
		if msg != "" {
			fields["schedule"] = msg
		} else {
			schedule = &t
		}
	}

	if len(fields) > 0 {
		return model.WithdrawRequest{}, &ValidationError{Fields: fields}
	}

	req := model.WithdrawRequest{
		AccountID:      accountID,
		Method:         model.MethodPix,
		Amount:         in.Amount,
		Schedule:       schedule,
		IdempotencyKey: idempotencyKey,
		Pix: &model.PixKey{
			Key:      in.Pix.Key,
			Type:     model.KeyTypeEmail,
			Provider: in.Pix.Provider,
		},
	}
	if req.Pix.Provider == "" {
		req.Pix.Provider = model.DefaultProvider
	}
	return req, nil
}

// schedule accepts RFC3339 with an offset, or a bare local time read in the
// configured input timezone. The result is UTC.
func (v *RequestValidator) schedule(raw string) (time.Time, string) {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		t, err = time.ParseInLocation(localScheduleLayout, raw, v.location)
	}
	if err != nil {
		return time.Time{}, "invalid format, use ISO8601 e.g. 2025-10-07T12:00:00-03:00"
	}

	now := v.now()
	if !t.After(now) {
		return time.Time{}, "must be in the future"
	}
	if t.After(now.Add(v.horizon)) {
		return time.Time{}, fmt.Sprintf("must be within %s", v.horizon)
	}
	return t.UTC(), ""
}

// fieldPath drops the root struct name: "WithdrawInput.pix.key" -> "pix.key".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
