package service

import "errors"

var (
	ErrUnknownSymbol      = errors.New("invalid symbol")
	ErrInsufficientFunds  = errors.New("can't afford")
	ErrMissingSymbol      = errors.New("missing symbol")
	ErrInvalidQuantity    = errors.New("invalid number of shares")
	ErrInsufficientShares = errors.New("too many shares")

	ErrMissingUsername    = errors.New("must provide username")
	ErrDuplicateUsername  = errors.New("username already exists")
	ErrWeakPassword       = errors.New("password must be 8 to 72 characters long")
	ErrPasswordMismatch   = errors.New("passwords don't match")
	ErrInvalidCredentials = errors.New("invalid username and/or password")
)

var userErrors = []error{
	ErrUnknownSymbol,
	ErrInsufficientFunds,
	ErrMissingSymbol,
	ErrInvalidQuantity,
	ErrInsufficientShares,
	ErrMissingUsername,
	ErrDuplicateUsername,
	ErrWeakPassword,
	ErrPasswordMismatch,
	ErrInvalidCredentials,
}

// IsUserError reports whether err is caused by user input and may be shown to the user as is.
func IsUserError(err error) bool {
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsCredentialsError reports whether err should be answered with 403.
func IsCredentialsError(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}
