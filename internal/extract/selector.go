package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"

	"PostsScanner/internal/ports"
)

// ErrNoMatch reports that every candidate selector was exhausted.
var ErrNoMatch = errors.New("no selector candidate matched")

// FindFirst tries each candidate expression in order against scope and returns
// the first single-element match plus the expression that matched.
func FindFirst(scope *goquery.Selection, candidates ...string) (*goquery.Selection, string, error) {
	for _, expr := range candidates {
		if sel := scope.Find(expr).First(); sel.Length() > 0 {
			return sel, expr, nil
		}
	}
	return nil, "", fmt.Errorf("%w: tried %d candidates", ErrNoMatch, len(candidates))
}

// FindAll is the node-set variant of FindFirst: the first candidate yielding a
// non-empty set wins.
func FindAll(scope *goquery.Selection, candidates ...string) (*goquery.Selection, string, error) {
	for _, expr := range candidates {
		if sel := scope.Find(expr); sel.Length() > 0 {
			return sel, expr, nil
		}
	}
	return nil, "", fmt.Errorf("%w: tried %d candidates", ErrNoMatch, len(candidates))
}

// Click tries each candidate in order; any failure falls through to the next.
// Exhaustion returns the aggregate of all encountered errors.
func Click(ctx context.Context, page ports.Page, candidates ...string) error {
	var errs []error
	for _, expr := range candidates {
		if err := page.Click(ctx, expr); err != nil {
			errs = append(errs, fmt.Errorf("click %q: %w", expr, err))
			continue
		}
		return nil
	}
	return errors.Join(append([]error{ErrNoMatch}, errs...)...)
}

// Fill tries each candidate in order with the same fallthrough semantics as
// Click.
func Fill(ctx context.Context, page ports.Page, value string, candidates ...string) error {
	var errs []error
	for _, expr := range candidates {
		if err := page.Fill(ctx, expr, value); err != nil {
			errs = append(errs, fmt.Errorf("fill %q: %w", expr, err))
			continue
		}
		return nil
	}
	return errors.Join(append([]error{ErrNoMatch}, errs...)...)
}

// Wait tries each candidate in order, but only a timeout-shaped failure falls
// through to the next candidate; any other failure propagates immediately.
func Wait(ctx context.Context, page ports.Page, timeout time.Duration, candidates ...string) (string, error) {
	var errs []error
	for _, expr := range candidates {
		err := page.WaitVisible(ctx, expr, timeout)
		if err == nil {
			return expr, nil
		}
		if !isTimeout(err) {
			return "", fmt.Errorf("wait %q: %w", expr, err)
		}
		errs = append(errs, fmt.Errorf("wait %q: %w", expr, err))
	}
	return "", errors.Join(append([]error{ErrNoMatch}, errs...)...)
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	if errors.As(err, &t) {
		return t.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}
