package auth

import (
	"strings"
	"testing"
	"time"

	"sgchat/domain"
	apperrors "sgchat/errors"

	"github.com/stretchr/testify/require"
)

func TestHashAndCompare(t *testing.T) {
	req := require.New(t)
	password := "MonMotDePasseTr0pSûr!"

	hash, err := HashPassword(password)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := ComparePassword(password, hash)
	req.NoError(err)
	req.True(match)

	// Negative comparison (wrong password)
	match, err = ComparePassword("MauvaisMDP", hash)
	req.NoError(err)
	req.False(match)
}

func TestRegistrationValidation(t *testing.T) {
	req := require.New(t)
	tests := []struct {
		name    string
		req     RegisterRequest
		wantErr bool
	}{
		{"Valid request", RegisterRequest{"alice42", "ComplexPass123!"}, false},
		{"Username too short", RegisterRequest{"al", "ComplexPass123!"}, true},
		{"Username not alphanumeric", RegisterRequest{"alice bob", "ComplexPass123!"}, true},
		{"Password too short", RegisterRequest{"alice42", "Short1!"}, true},
		{"Missing digit", RegisterRequest{"alice42", "NoDigitPassword!"}, true},
		{"Missing special char", RegisterRequest{"alice42", "NoSpecialChar123"}, true},
		{"Missing uppercase", RegisterRequest{"alice42", "nouppercase123!!"}, true},
		{"Password too long (edge case)", RegisterRequest{"alice42", strings.Repeat("a", 73)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegister(tt.req)
			if tt.wantErr {
				req.Error(err)
			} else {
				req.NoError(err)
			}
		})
	}
}

func TestTokenRoundTrip(t *testing.T) {
	req := require.New(t)
	identity := domain.UserIdentity{ID: domain.NewUserID(), Username: "alice"}

	token, err := GenerateToken(identity, time.Hour)
	req.NoError(err)
	req.NotEmpty(token)

	resolved, err := ResolveIdentity(token)
	req.NoError(err)
	req.Equal(identity, resolved)
}

func TestResolveIdentity_Failures(t *testing.T) {
	req := require.New(t)

	// Missing token
	_, err := ResolveIdentity("")
	req.ErrorIs(err, apperrors.ErrUnauthenticated)

	// Garbage token
	_, err = ResolveIdentity("not.a.jwt")
	req.ErrorIs(err, apperrors.ErrUnauthenticated)

	// Expired token
	identity := domain.UserIdentity{ID: domain.NewUserID(), Username: "alice"}
	expired, err := GenerateToken(identity, -time.Minute)
	req.NoError(err)
	_, err = ResolveIdentity(expired)
	req.ErrorIs(err, apperrors.ErrUnauthenticated)

	// Tampered token
	valid, err := GenerateToken(identity, time.Hour)
	req.NoError(err)
	_, err = ResolveIdentity(valid + "x")
	req.ErrorIs(err, apperrors.ErrUnauthenticated)
}

// BenchmarkHashPassword permet de mesurer l'impact CPU/RAM (Crucial pour K8s)
func BenchmarkHashPassword(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = HashPassword("A-very-long-and-complex-password-for-bench-123!")
	}
}
