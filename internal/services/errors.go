// Package services implements the order-lifecycle automation engine, the
// referral commission settlement, and the chat handoff state machine.
// This file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

var (
	// ErrNotApplicable is returned by a rule whose firing condition turned
	// out not to hold once evaluated against live data (e.g. no products
	// crossed the popularity threshold today). The engine treats it as
	// "nothing to do": no ledger fact, no execution-log row, so a later
	// tick may still fire.
	ErrNotApplicable = errors.New("automation not applicable")

	// ErrSessionNotFound indicates that the requested chat session does not
	// exist.
	ErrSessionNotFound = errors.New("chat session not found")

	// ErrEmptyMessage is returned when an inbound chat message has no
	// content after trimming.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrInvalidTransition is returned when a chat handoff transition is
	// requested from a state that does not permit it.
	ErrInvalidTransition = errors.New("invalid session transition")

	// ErrOrderNotFound indicates that the referenced order does not exist.
	ErrOrderNotFound = errors.New("order not found")

	// ErrReferrerNotFound indicates that a pending referral points at a
	// referrer profile that no longer exists; settlement fails closed and
	// no partial credit is applied.
	ErrReferrerNotFound = errors.New("referrer not found")
)
