// Package httperr carries request-shaped failures across service boundaries
// so transport handlers can pick a status code without string matching.
package httperr

import "errors"

type BadRequestError struct {
	Msg string
}

func (e *BadRequestError) Error() string { return e.Msg }

func NewBadRequest(msg string) error {
	return &BadRequestError{Msg: msg}
}

func IsBadRequest(err error) bool {
	_, ok := errors.AsType[*BadRequestError](err)
	return ok
}

type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string { return e.Msg }

func NewNotFound(msg string) error {
	return &NotFoundError{Msg: msg}
}

func IsNotFound(err error) bool {
	_, ok := errors.AsType[*NotFoundError](err)
	return ok
}
