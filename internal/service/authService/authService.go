package authService

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/KotFed0t/finance_simulator/data/repository"
	"github.com/KotFed0t/finance_simulator/internal/model"
	"github.com/KotFed0t/finance_simulator/internal/service"
	"github.com/KotFed0t/finance_simulator/utils"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 8
	// bcrypt ignores everything after 72 bytes
	maxPasswordBytes = 72
)

type Repository interface {
	InsertUser(ctx context.Context, username, passwordHash string, startingCash decimal.Decimal) (userID int64, err error)
	GetUserByUsername(ctx context.Context, username string) (model.Account, error)
}

type AuthService struct {
	repo         Repository
	startingCash decimal.Decimal
	cost         int
}

func New(repo Repository, startingCash decimal.Decimal) *AuthService {
	return &AuthService{repo: repo, startingCash: startingCash, cost: bcrypt.DefaultCost}
}

// Register creates an account holding the configured starting cash.
func (s *AuthService) Register(ctx context.Context, username, password, confirmation string) (account model.Account, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "AuthService.Register"

	username = strings.TrimSpace(username)

	slog.Debug("Register start", slog.String("rqID", rqID), slog.String("op", op), slog.String("username", username))
	defer func() {
		switch {
		case err == nil:
			slog.Info("user registered", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", account.UserID))
		case service.IsUserError(err):
			slog.Info("Register rejected", slog.String("rqID", rqID), slog.String("op", op), slog.String("reason", err.Error()))
		default:
			slog.Error("Register failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	if username == "" {
		return model.Account{}, service.ErrMissingUsername
	}

	_, err = s.repo.GetUserByUsername(ctx, username)
	switch {
	case err == nil:
		return model.Account{}, service.ErrDuplicateUsername
	case !errors.Is(err, repository.ErrNotFound):
		return model.Account{}, fmt.Errorf("get user by username: %w", err)
	}

	if len(password) < minPasswordLength || len(password) > maxPasswordBytes {
		return model.Account{}, service.ErrWeakPassword
	}

	if password != confirmation {
		return model.Account{}, service.ErrPasswordMismatch
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return model.Account{}, fmt.Errorf("hash password: %w", err)
	}

	userID, err := s.repo.InsertUser(ctx, username, string(hash), s.startingCash)
	if err != nil {
		// lost a race with another registration of the same name
		if errors.Is(err, repository.ErrAlreadyExists) {
			return model.Account{}, service.ErrDuplicateUsername
		}
		return model.Account{}, fmt.Errorf("insert user: %w", err)
	}

	return model.Account{
		UserID:       userID,
		Username:     username,
		PasswordHash: string(hash),
		Cash:         s.startingCash,
		InitialCash:  s.startingCash,
	}, nil
}

// Authenticate checks the password against the stored hash.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (account model.Account, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "AuthService.Authenticate"

	username = strings.TrimSpace(username)

	slog.Debug("Authenticate start", slog.String("rqID", rqID), slog.String("op", op), slog.String("username", username))
	defer func() {
		if err != nil && !service.IsUserError(err) {
			slog.Error("Authenticate failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("Authenticate completed", slog.String("rqID", rqID), slog.String("op", op), slog.Bool("ok", err == nil))
		}
	}()

	if username == "" || password == "" {
		return model.Account{}, service.ErrInvalidCredentials
	}

	account, err = s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Account{}, service.ErrInvalidCredentials
		}
		return model.Account{}, fmt.Errorf("get user by username: %w", err)
	}

	if err = bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return model.Account{}, service.ErrInvalidCredentials
	}

	return account, nil
}
