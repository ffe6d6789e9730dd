package types

import (
	"errors"
	"fmt"
	"strings"
)

type NotFoundError struct {
	DeclarationID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("declaration %s not found", e.DeclarationID)
}

func IsNotFound(err error) bool {
	_, ok := errors.AsType[*NotFoundError](err)
	return ok
}

type InvalidStateTransitionError struct {
	DeclarationID string
	From          DeclarationStatus
	To            DeclarationStatus
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("declaration %s cannot move from %s to %s", e.DeclarationID, e.From, e.To)
}

func IsInvalidStateTransition(err error) bool {
	_, ok := errors.AsType[*InvalidStateTransitionError](err)
	return ok
}

// RuleViolation identifies a failed intake rule for one participant.
type RuleViolation struct {
	ParticipantIndex int    `json:"participant_index"`
	RuleID           string `json:"rule_id"`
	Message          string `json:"message"`
}

type ValidationError struct {
	Violations []RuleViolation
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("declaration validation failed:")
	for _, v := range e.Violations {
		fmt.Fprintf(&b, " [%d:%s]", v.ParticipantIndex, v.RuleID)
	}
	return b.String()
}

func IsValidation(err error) bool {
	_, ok := errors.AsType[*ValidationError](err)
	return ok
}
