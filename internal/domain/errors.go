package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrRateLimited      = errors.New("rate limited")
	ErrBusinessRule     = errors.New("business rule violation")
	ErrConcurrentUpdate = errors.New("order was modified concurrently")
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

type RuleReason string

const (
	ReasonAlreadyConfirmed RuleReason = "already_confirmed"
	ReasonExpired          RuleReason = "expired"
	ReasonWrongState       RuleReason = "wrong_state"
	ReasonTerminalState    RuleReason = "terminal_state"
)

type RuleViolation struct {
	Reason  RuleReason
	Message string
}

func (e *RuleViolation) Error() string {
	return e.Message
}

func (e *RuleViolation) Is(target error) bool {
	return target == ErrBusinessRule
}
