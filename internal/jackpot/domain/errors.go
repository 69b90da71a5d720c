package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("concurrent modification conflict")
	ErrInvalidInput = errors.New("invalid input")

	ErrJackpotNotFound    = fmt.Errorf("jackpot %w", ErrNotFound)
	ErrBetNotFound        = fmt.Errorf("bet %w", ErrNotFound)
	ErrRewardNotFound     = fmt.Errorf("reward %w", ErrNotFound)
	ErrEvaluationNotFound = fmt.Errorf("evaluation %w", ErrNotFound)
)

// Invalid marca um erro de validação mantendo errors.Is(err, ErrInvalidInput).
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
