package model

import "errors"

var (
	// Authorization errors
	ErrNotAuthorized = errors.New("energytrade: caller is not authorized")

	// Input validation errors
	ErrInvalidAmount        = errors.New("energytrade: amount must be greater than zero")
	ErrInvalidCapacity      = errors.New("energytrade: capacity must be greater than zero")
	ErrInvalidIdentityProof = errors.New("energytrade: identity proof hash cannot be empty")

	// Entity state errors
	ErrNoSuchRequest  = errors.New("energytrade: no pending approval request for producer")
	ErrRequestPending = errors.New("energytrade: approval request already pending")
	ErrNoSuchListing  = errors.New("energytrade: listing does not exist or is inactive")

	// Quantity errors
	ErrInsufficientBalance       = errors.New("energytrade: insufficient balance")
	ErrInsufficientAllowance     = errors.New("energytrade: insufficient allowance")
	ErrInsufficientListingAmount = errors.New("energytrade: purchase amount exceeds remaining listing amount")

	// Settlement errors
	ErrIncorrectPayment = errors.New("energytrade: tendered payment does not match total cost")

	// Arithmetic errors
	ErrArithmeticOverflow = errors.New("energytrade: arithmetic overflow")
)
