package deeplink

import "errors"

var (
	// ErrDispatchFailure means the browser could not complete the deep-link
	// navigation. The attempt is over; start again with a fresh triple.
	ErrDispatchFailure = errors.New("deep-link dispatch failed")

	// ErrExchangeTimeout means every polling attempt passed without a token.
	ErrExchangeTimeout = errors.New("token exchange timed out")

	// ErrPollTransport covers network failures, non-2xx statuses and
	// unreadable bodies on a single poll. The loop recovers from it.
	ErrPollTransport = errors.New("poll transport error")

	// ErrPollPending is a well-formed response that carries no token yet.
	ErrPollPending = errors.New("authorization pending")

	// ErrSessionMismatch is a token response bound to another session.
	ErrSessionMismatch = errors.New("poll response bound to a different session")
)
