package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials  = errors.New("invalid password")
	ErrExhaustedPool       = errors.New("all names have been taken")
	ErrDrawConflict        = errors.New("this name was just taken by someone else, try again")
	ErrAlreadyDrawn        = errors.New("participant has already drawn")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrSelfAssignment      = errors.New("participant cannot draw themselves")
	ErrInvalidParticipant  = errors.New("invalid participant")
	ErrRevealAbandoned     = errors.New("reveal abandoned before commit")
)

// StoreError 包裝所有非預期的資料庫錯誤（網路、完整性等），不會自動重試
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}
