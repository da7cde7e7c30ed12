package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/reloop/marketplace/internal/hash"
	"github.com/reloop/marketplace/internal/logging"
	"github.com/reloop/marketplace/internal/models"
	"github.com/reloop/marketplace/internal/token"
)

var (
	// ErrAccessDenied covers every authentication failure on the refresh
	// path: bad signature, expired, malformed, unknown subject, reused
	// token. Callers must not differentiate further.
	ErrAccessDenied = errors.New("access denied")

	// ErrInvalidCredentials is the single answer for both unknown email
	// and wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
)

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Authenticator issues token pairs, rotates refresh tokens on use and
// holds no state of its own: everything durable lives in the database.
type Authenticator struct {
	DB    *gorm.DB
	Codec *token.Codec
}

// IssueTokenPair mints an access/refresh pair sharing one random nonce and
// appends the refresh token (hashed) to the user's in-memory token list.
// It does not persist the user: the caller saves, so removal and
// re-addition of tokens can land in one write.
func (a *Authenticator) IssueTokenPair(user *models.User) (*TokenPair, error) {
	if !a.Codec.Configured() {
		return nil, token.ErrConfig
	}

	subject := strconv.FormatUint(uint64(user.ID), 10)
	nonce := NewNonce()

	accessToken, err := a.Codec.SignAccess(subject, nonce)
	if err != nil {
		return nil, err
	}
	refreshToken, err := a.Codec.SignRefresh(subject, nonce)
	if err != nil {
		return nil, err
	}

	refreshClaims, err := a.Codec.Verify(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("cannot read back refresh claims: %w", err)
	}

	user.RefreshTokens = append(user.RefreshTokens, models.RefreshToken{
		TokenHash: Sha256Hex(refreshToken),
		UserID:    user.ID,
		ExpiresAt: refreshClaims.ExpiresAt.Unix(),
	})

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Redeem consumes a refresh token. The membership check and the removal
// are one conditional delete, so two concurrent redeems of the same token
// cannot both succeed. A token that verifies but is no longer stored is
// treated as replayed: every session of that user is revoked.
func (a *Authenticator) Redeem(ctx context.Context, refreshToken string) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "session.redeem")

	if refreshToken == "" {
		return nil, ErrAccessDenied
	}

	claims, err := a.Codec.Verify(refreshToken)
	if err != nil {
		return nil, ErrAccessDenied
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return nil, ErrAccessDenied
	}

	var user models.User
	if err := a.DB.WithContext(ctx).First(&user, uint(userID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccessDenied
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	res := a.DB.WithContext(ctx).
		Where("token_hash = ? AND user_id = ?", Sha256Hex(refreshToken), user.ID).
		Delete(&models.RefreshToken{})
	if res.Error != nil {
		return nil, fmt.Errorf("consume refresh token: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		l.Warn("refresh_token_reuse_detected", "user_id", user.ID)
		if err := a.RevokeAll(ctx, user.ID); err != nil {
			return nil, err
		}
		return nil, ErrAccessDenied
	}

	return &user, nil
}

// RevokeAll drops every valid refresh token the user owns.
func (a *Authenticator) RevokeAll(ctx context.Context, userID uint) error {
	if err := a.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.RefreshToken{}).Error; err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	return nil
}

// Login resolves a user by email and checks the password unless the
// account is OAuth-linked. Unknown email and wrong password are
// indistinguishable to the caller.
func (a *Authenticator) Login(ctx context.Context, email, password string) (*models.User, *TokenPair, error) {
	var user models.User
	err := a.DB.WithContext(ctx).
		Where("email = ?", strings.ToLower(email)).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("load user: %w", err)
	}

	// OAuth-linked accounts are authenticated upstream.
	if user.GoogleID == nil {
		if !hash.CheckPassword(user.PasswordHash, password) {
			return nil, nil, ErrInvalidCredentials
		}
	}

	pair, err := a.IssueTokenPair(&user)
	if err != nil {
		return nil, nil, err
	}

	if err := a.DB.WithContext(ctx).Save(&user).Error; err != nil {
		return nil, nil, fmt.Errorf("save user: %w", err)
	}

	return &user, pair, nil
}
