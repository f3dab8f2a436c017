package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/coaltail/rhythmlink-backend/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

const DefaultTokenTTL = 24 * time.Hour

var ErrInvalidToken = errors.New("invalid or expired token")

// TokenClaims is the session payload handed to clients.
type TokenClaims struct {
	UserID           uint              `json:"userId"`
	Username         string            `json:"username"`
	Address          string            `json:"address"`
	MainInstrument   models.Instrument `json:"mainInstrument"`
	GenresOfInterest []models.Genre    `json:"genresOfInterest"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
	MainImageURL     string            `json:"mainImageUrl,omitempty"`
	jwt.RegisteredClaims
}

// Token is a signed session with its expiry.
type Token struct {
	Token  string    `json:"token"`
	Expiry time.Time `json:"expiry"`
}

// TokenSigner issues and verifies HS256 session tokens.
type TokenSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenSigner(secret string, ttl time.Duration) *TokenSigner {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// ClaimsFor builds the claims for a user; the expiry is filled in by Sign.
func ClaimsFor(user *models.User) TokenClaims {
	genres := make([]models.Genre, len(user.GenresOfInterest))
	copy(genres, user.GenresOfInterest)
	return TokenClaims{
		UserID:           user.ID,
		Username:         user.Username,
		Address:          user.Address,
		MainInstrument:   user.MainInstrument,
		GenresOfInterest: genres,
		CreatedAt:        user.CreatedAt,
		UpdatedAt:        user.UpdatedAt,
		MainImageURL:     user.MainImageURL,
	}
}

func (s *TokenSigner) Sign(claims TokenClaims) (Token, error) {
	now := s.now()
	expiry := now.Add(s.ttl)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(claims.UserID), 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiry),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{Token: signed, Expiry: expiry}, nil
}

func (s *TokenSigner) Parse(tokenString string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method == nil || token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
