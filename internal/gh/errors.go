// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package gh

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	gogithub "github.com/google/go-github/v63/github"
)

var (
	// ErrNotFound denotes if the call returned a 404
	ErrNotFound = errors.New("not found")
	// ErrNotAuthenticated is returned when no usable credential is
	// available or GitHub rejected the one presented.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrInsufficientPermission is returned when the credential is valid
	// but lacks access to the resource.
	ErrInsufficientPermission = errors.New("insufficient permission")
)

// defaultRetryAfter is used when GitHub signals a rate limit without a
// usable Retry-After or X-RateLimit-Reset header.
const defaultRetryAfter = 60 * time.Second

// RateLimitError is returned when GitHub throttles the caller. RetryAfter
// is the duration to wait before the next attempt.
type RateLimitError struct {
	RetryAfter time.Duration
}

// Error implements the error interface
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited by GitHub, retry after %s", e.RetryAfter)
}

// AsRateLimit returns the RateLimitError in err's chain, if any.
func AsRateLimit(err error) (*RateLimitError, bool) {
	var rle *RateLimitError
	ok := errors.As(err, &rle)
	return rle, ok
}

// mapError translates a go-github call result into the package's error
// taxonomy. A rate limit is either HTTP 429 or HTTP 403 with
// X-RateLimit-Remaining exhausted.
func mapError(resp *gogithub.Response, err error) error {
	if err == nil {
		return nil
	}

	var abuseErr *gogithub.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		retryAfter := defaultRetryAfter
		if abuseErr.RetryAfter != nil {
			retryAfter = *abuseErr.RetryAfter
		}
		return &RateLimitError{RetryAfter: retryAfter}
	}

	var rateErr *gogithub.RateLimitError
	if errors.As(err, &rateErr) {
		return &RateLimitError{RetryAfter: untilReset(rateErr.Rate.Reset.Time)}
	}

	if resp == nil {
		return err
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	case http.StatusTooManyRequests:
		return &RateLimitError{RetryAfter: retryAfterFromHeaders(resp.Response)}
	case http.StatusForbidden:
		if resp.Header.Get("X-Ratelimit-Remaining") == "0" {
			return &RateLimitError{RetryAfter: retryAfterFromHeaders(resp.Response)}
		}
		return fmt.Errorf("%w: %v", ErrInsufficientPermission, err)
	}

	return err
}

func retryAfterFromHeaders(resp *http.Response) time.Duration {
	if resp == nil {
		return defaultRetryAfter
	}

	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.ParseInt(v, 10, 64); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}

	if v := resp.Header.Get("X-Ratelimit-Reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			return untilReset(time.Unix(epoch, 0))
		}
	}

	return defaultRetryAfter
}

func untilReset(reset time.Time) time.Duration {
	d := time.Until(reset)
	if d <= 0 {
		return defaultRetryAfter
	}
	return d
}
