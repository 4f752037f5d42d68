package usecase

import (
	"context"
	"fmt"

	log "github.com/carousell/ct-go/pkg/logger/log_context"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/velora/chat-core/internal/config"
	"github.com/velora/chat-core/internal/models"
	"github.com/velora/chat-core/internal/ratelimit"
	"github.com/velora/chat-core/internal/repo/mongodb"
)

// AuthUseCase resolves a connection's session token into a verified user.
// Tokens are issued by the external session provider; this side only
// validates them.
type AuthUseCase struct {
	userRepo  mongodb.UserRepository
	limits    *ratelimit.Bank
	jwtSecret string
}

func NewAuthUseCase(userRepo mongodb.UserRepository, limits *ratelimit.Bank, conf *config.Config) *AuthUseCase {
	return &AuthUseCase{
		userRepo:  userRepo,
		limits:    limits,
		jwtSecret: conf.Auth.JWTSecret,
	}
}

// Authenticate validates the handshake. The per-IP attempt limit is charged
// before any lookup so an attacker cannot probe the user directory. Failure
// is terminal for the attempt: no session state is created.
func (uc *AuthUseCase) Authenticate(ctx context.Context, token, ip string) (*models.User, error) {
	if ok, _ := uc.limits.Connect.Allow(ip); !ok {
		log.Warnw(ctx, "connection attempt rate limited", "ip", ip)
		return nil, models.ErrRateLimited
	}
	return uc.ValidateToken(ctx, token)
}

// ValidateToken resolves a token to its user without touching the connect
// limiter. The REST surface validates on every request and must not burn
// the handshake budget.
func (uc *AuthUseCase) ValidateToken(ctx context.Context, token string) (*models.User, error) {
	claims, err := uc.parseToken(token)
	if err != nil {
		return nil, fmt.Errorf("invalid session token: %w", models.ErrUnauthenticated)
	}

	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("malformed user id in token: %w", models.ErrUnauthenticated)
	}

	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user lookup failed: %w", models.ErrUnauthenticated)
	}
	if !user.IsActive {
		return nil, models.ErrUserDeactivated
	}

	return user, nil
}

func (uc *AuthUseCase) parseToken(token string) (*models.SessionClaims, error) {
	claims := &models.SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(uc.jwtSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("token claims invalid")
	}
	return claims, nil
}
