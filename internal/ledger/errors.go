package ledger

import (
	"errors"
	"fmt"
)

// Messages shown to the user as-is.
const (
	configErrorMessage  = "API keys are not configured. Please set them in the settings."
	refreshErrorPrefix  = "Failed to fetch latest prices. "
	accountInUseMessage = "Cannot delete account as it still contains positions. Please move or close them first."
)

// Rule violations. Returned wrapped in a *DomainError.
var (
	ErrAccountInUse = errors.New(accountInUseMessage)
	ErrMultiLegRoll = errors.New("only single-leg strategies can be rolled")
	ErrUnknownLeg   = errors.New("leg does not belong to the strategy")
	ErrInvalidInput = errors.New("invalid input")
)

// Lookup failures.
var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrStrategyNotFound     = errors.New("strategy not found")
	ErrAlertNotFound        = errors.New("alert not found")
	ErrNotificationNotFound = errors.New("notification not found")
)

// ConfigError reports that the selected quote provider lacks credentials.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return configErrorMessage }

func (e *ConfigError) Unwrap() error { return e.Err }

// RefreshError wraps the provider failure that aborted a refresh.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string {
	if e.Err == nil {
		return refreshErrorPrefix + "An unknown error occurred."
	}
	return refreshErrorPrefix + e.Err.Error()
}

func (e *RefreshError) Unwrap() error { return e.Err }

// DomainError is a rejected mutation. Err is one of the rule sentinels;
// Detail says what was wrong with the request.
type DomainError struct {
	Err    error
	Detail string
}

func (e *DomainError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Err, e.Detail)
}

func (e *DomainError) Unwrap() error { return e.Err }

func invalid(err error) error {
	return &DomainError{Err: ErrInvalidInput, Detail: err.Error()}
}

func rejected(sentinel error, format string, args ...any) error {
	return &DomainError{Err: sentinel, Detail: fmt.Sprintf(format, args...)}
}
