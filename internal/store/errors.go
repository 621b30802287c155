// Package store carries the failure classes shared by every repository-backed
// service. Callers test them with errors.Is; the underlying driver error stays
// wrapped for logging.
package store

import (
	"errors"
	"fmt"
)

var (
	ErrRead  = errors.New("store read failed")
	ErrWrite = errors.New("store write failed")
)

func ReadFailure(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrRead, err)
}

func WriteFailure(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrWrite, err)
}
