package vault

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/pinvault/internal/common"
)

var (
	// ErrIncorrectPIN is the only error Unlock reports for a bad PIN,
	// whatever step rejected it.
	ErrIncorrectPIN       = errors.New("incorrect PIN")
	ErrAlreadyInitialized = errors.New("vault already initialized")
	ErrNotInitialized     = errors.New("vault not initialized")
	ErrInvalidPIN         = fmt.Errorf("%w: PIN must be %d-%d digits", common.ErrorValidation, MinPINLength, MaxPINLength)
	ErrLocked             = common.ErrorLocked
)
