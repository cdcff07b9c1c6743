package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsUserError(t *testing.T) {
	assert.True(t, IsUserError(ErrInsufficientFunds))
	assert.True(t, IsUserError(fmt.Errorf("buy: %w", ErrUnknownSymbol)))
	assert.False(t, IsUserError(errors.New("connection refused")))
	assert.False(t, IsUserError(nil))
}

func TestIsCredentialsError(t *testing.T) {
	assert.True(t, IsCredentialsError(fmt.Errorf("login: %w", ErrInvalidCredentials)))
	assert.False(t, IsCredentialsError(ErrWeakPassword))
}
