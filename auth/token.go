package auth

import (
	"fmt"
	"time"

	"sgchat/domain"
	apperrors "sgchat/errors"

	"github.com/golang-jwt/jwt/v5"
)

// jwtKey is the secret used to sign tokens.
// In a production environment, this should be loaded from an environment variable or a secret manager.
var jwtKey = []byte("my_strong_and_long_secret_key_2026")

// CustomClaims defines the structure of the data stored inside the JWT.
type CustomClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed JWT for a specific user.
func GenerateToken(identity domain.UserIdentity, tokenDuration time.Duration) (string, error) {
	expirationTime := time.Now().Add(tokenDuration)

	claims := &CustomClaims{
		UserID:   identity.ID.String(),
		Username: identity.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "sgchat",
		},
	}

	// HS256 (HMAC with SHA256), signed with the server's secret key.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtKey)
}

// ResolveIdentity verifies a token string and extracts the connection's
// identity. It is pure and stateless: every failure, whether a missing
// token, a bad signature or malformed claims, surfaces as
// ErrUnauthenticated. Callers cache the result for the life of one
// connection; identity never changes mid-connection.
func ResolveIdentity(tokenString string) (domain.UserIdentity, error) {
	if tokenString == "" {
		return domain.UserIdentity{}, fmt.Errorf("%w: missing token", apperrors.ErrUnauthenticated)
	}

	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return jwtKey, nil
	})
	if err != nil {
		return domain.UserIdentity{}, fmt.Errorf("%w: %v", apperrors.ErrUnauthenticated, err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return domain.UserIdentity{}, fmt.Errorf("%w: invalid claims", apperrors.ErrUnauthenticated)
	}

	userID, err := domain.ParseUserID(claims.UserID)
	if err != nil {
		return domain.UserIdentity{}, fmt.Errorf("%w: malformed user id claim", apperrors.ErrUnauthenticated)
	}
	if claims.Username == "" {
		return domain.UserIdentity{}, fmt.Errorf("%w: missing username claim", apperrors.ErrUnauthenticated)
	}

	return domain.UserIdentity{ID: userID, Username: claims.Username}, nil
}
