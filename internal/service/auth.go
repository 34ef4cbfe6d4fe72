package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"satoshidaily/internal/auth"
	"satoshidaily/internal/models"
	"satoshidaily/internal/repository"
)

// CaptchaVerifier gates signup against bots.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}

// LoginTokenStore holds the one-time login tokens issued at signup.
// Tokens are stored hashed and redeemed at most once.
type LoginTokenStore interface {
	SaveToken(ctx context.Context, tokenHash, profileID string, ttl time.Duration) error
	RedeemToken(ctx context.Context, tokenHash string) (string, bool, error)
}

// AuthService handles the email-only identity flow: signup issues a
// one-time login token, redeeming it mints a session JWT.
type AuthService struct {
	Repo     repository.Repository
	Captcha  CaptchaVerifier
	Tokens   LoginTokenStore
	JWT      auth.JWT
	TokenTTL time.Duration
	Logger   *zap.Logger
	Now      func() time.Time
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// SignupResult is returned to the signup handler. Token is the raw
// one-time login token; it is never persisted and never shown again.
type SignupResult struct {
	ProfileID string
	Token     string
	Existing  bool
}

// Signup verifies the captcha, creates (or finds) the profile for the
// email and issues a one-time login token. Signing up twice with the
// same email is not an error; it just re-issues a token.
func (s *AuthService) Signup(ctx context.Context, email, captchaToken, remoteIP string, marketingConsent bool) (*SignupResult, error) {
	if s.Captcha != nil {
		ok, err := s.Captcha.Verify(ctx, captchaToken, remoteIP)
		if err != nil {
			return nil, fmt.Errorf("captcha verify: %w", err)
		}
		if !ok {
			return nil, newError(KindCaptchaFailed, "captcha verification failed")
		}
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		return nil, newError(KindInvalidEmail, "invalid email address")
	}

	profile := &models.Profile{
		ID:    uuid.NewString(),
		Email: email,
	}
	existing := false
	err := s.Repo.CreateProfile(ctx, profile)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		found, err := s.Repo.GetProfileByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		if found == nil {
			return nil, fmt.Errorf("profile for %s vanished after duplicate insert", email)
		}
		profile = found
		existing = true
	} else if err != nil {
		return nil, err
	}

	// Consent reflects the latest signup, both ways: a returning player
	// who unticks the box is downgraded and the stale timestamp cleared.
	var consentAt *time.Time
	if marketingConsent {
		now := s.now()
		consentAt = &now
	}
	if err := s.Repo.UpdateProfileConsent(ctx, profile.ID, marketingConsent, consentAt); err != nil {
		return nil, err
	}

	token, err := s.issueToken(ctx, profile.ID)
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("signup",
			zap.String("profile_id", profile.ID),
			zap.Bool("existing", existing),
		)
	}
	return &SignupResult{ProfileID: profile.ID, Token: token, Existing: existing}, nil
}

// Session is a minted login session.
type Session struct {
	ProfileID string
	Token     string
	ExpiresAt time.Time
}

// Redeem exchanges a one-time login token for a session JWT. The token
// is consumed on first use; a second redeem fails.
func (s *AuthService) Redeem(ctx context.Context, token string) (*Session, error) {
	if strings.TrimSpace(token) == "" {
		return nil, newError(KindInvalidToken, "login token required")
	}
	profileID, ok, err := s.Tokens.RedeemToken(ctx, hashToken(token))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, newError(KindInvalidToken, "login token invalid or already used")
	}
	signed, expiresAt, err := s.JWT.Sign(profileID)
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}
	return &Session{ProfileID: profileID, Token: signed, ExpiresAt: expiresAt}, nil
}

// Unsubscribe clears marketing consent. Unknown emails are a silent
// no-op so the endpoint does not leak which addresses exist.
func (s *AuthService) Unsubscribe(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	profile, err := s.Repo.GetProfileByEmail(ctx, email)
	if err != nil {
		return err
	}
	if profile == nil {
		return nil
	}
	return s.Repo.UpdateProfileConsent(ctx, profile.ID, false, nil)
}

func (s *AuthService) issueToken(ctx context.Context, profileID string) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate login token: %w", err)
	}
	token := hex.EncodeToString(raw)
	ttl := s.TokenTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if err := s.Tokens.SaveToken(ctx, hashToken(token), profileID, ttl); err != nil {
		return "", fmt.Errorf("save login token: %w", err)
	}
	return token, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
