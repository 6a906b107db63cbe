package barcode

import (
	"context"
	"time"

	"classattend/internal/clock"
	"classattend/internal/schedule"
)

// DefaultRenewMargin is how close to expiry a token may get before a renewal
// fires on its own weekday.
const DefaultRenewMargin = time.Hour

// Renewer extends token expiries to cover the current calendar occurrence of
// their lecture.
type Renewer struct {
	store  Store
	clk    clock.Clock
	margin time.Duration
}

// NewRenewer creates a renewer. A non-positive margin falls back to the default.
func NewRenewer(store Store, clk clock.Clock, margin time.Duration) *Renewer {
	if clk == nil {
		clk = clock.System{}
	}
	if margin <= 0 {
		margin = DefaultRenewMargin
	}
	return &Renewer{store: store, clk: clk, margin: margin}
}

// RenewIfNeeded recomputes the expiry when the token's own weekday is today
// and the current expiry has lapsed or is inside the safety margin. It
// mutates the passed token on success and reports whether a renewal happened.
// Concurrent calls converge: the new expiry is a pure function of "now" and
// the lecture's end time, so last-write order does not matter.
func (r *Renewer) RenewIfNeeded(ctx context.Context, t *Token) (bool, error) {
	now := r.clk.Now()
	if schedule.FromTime(now.Weekday()) != t.Lecture.Day {
		return false, nil
	}
	if t.ExpiryTime.Sub(now) >= r.margin {
		return false, nil
	}
	next, err := NextExpiry(now, t.Lecture.Day, t.Lecture.EndTime)
	if err != nil {
		return false, err
	}
	if !next.After(t.ExpiryTime) {
		// Expiry already covers this occurrence; nothing to extend.
		return false, nil
	}
	if err := r.store.UpdateExpiry(ctx, t.ID, next); err != nil {
		return false, err
	}
	t.ExpiryTime = next
	return true, nil
}

// TokenError reports one failed token inside a sweep.
type TokenError struct {
	TokenID string `json:"token_id"`
	Message string `json:"message"`
}

// RenewReport summarizes a renewal sweep.
type RenewReport struct {
	Scanned int          `json:"scanned"`
	Renewed int          `json:"renewed"`
	Errors  []TokenError `json:"errors,omitempty"`
}

// RenewAllDueToday sweeps every active token on today's weekday. A failure on
// one token never aborts the batch.
func (r *Renewer) RenewAllDueToday(ctx context.Context) (RenewReport, error) {
	today := schedule.FromTime(r.clk.Now().Weekday())
	tokens, err := r.store.ListActiveByDay(ctx, today)
	if err != nil {
		return RenewReport{}, err
	}
	report := RenewReport{Scanned: len(tokens)}
	for i := range tokens {
		renewed, err := r.RenewIfNeeded(ctx, &tokens[i])
		if err != nil {
			report.Errors = append(report.Errors, TokenError{TokenID: tokens[i].ID, Message: err.Error()})
			continue
		}
		if renewed {
			report.Renewed++
		}
	}
	return report, nil
}
