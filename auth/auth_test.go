package auth

import (
	"strings"
	"testing"
	"time"

	"direct-chat/errors"

	"github.com/stretchr/testify/require"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	req := require.New(t)
	password := "CorrectHorse1!"

	hash, err := HashPassword(password)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))
	req.NotContains(hash, password)

	match, err := ComparePassword(password, hash)
	req.NoError(err)
	req.True(match)

	match, err = ComparePassword("WrongHorse1!", hash)
	req.NoError(err)
	req.False(match)
}

func TestHashPassword_SaltedHashesDiffer(t *testing.T) {
	req := require.New(t)

	first, err := HashPassword("CorrectHorse1!")
	req.NoError(err)
	second, err := HashPassword("CorrectHorse1!")
	req.NoError(err)

	req.NotEqual(first, second)
}

func TestTokenManager_RoundTrip(t *testing.T) {
	req := require.New(t)
	tokens := NewTokenManager("test-secret", time.Hour)

	token, err := tokens.Generate("alice", []string{"user"})
	req.NoError(err)
	req.NotEmpty(token)

	username, err := tokens.Validate(token)
	req.NoError(err)
	req.Equal("alice", username)
}

func TestTokenManager_RejectsForeignSignature(t *testing.T) {
	req := require.New(t)
	tokens := NewTokenManager("test-secret", time.Hour)
	foreign := NewTokenManager("other-secret", time.Hour)

	token, err := foreign.Generate("alice", []string{"user"})
	req.NoError(err)

	_, err = tokens.Validate(token)
	req.Error(err)
}

func TestTokenManager_RejectsExpiredToken(t *testing.T) {
	req := require.New(t)
	tokens := NewTokenManager("test-secret", -time.Minute)

	token, err := tokens.Generate("alice", []string{"user"})
	req.NoError(err)

	_, err = tokens.Validate(token)
	req.Error(err)
}

func TestValidateRegister(t *testing.T) {
	cases := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{"valid input", "alice", "ComplexPass123!", nil},
		{"username too short", "al", "ComplexPass123!", errors.ErrInvalidUsername},
		{"username with separator", "al_ice", "ComplexPass123!", errors.ErrInvalidUsername},
		{"username with spaces", "al ice", "ComplexPass123!", errors.ErrInvalidUsername},
		{"password too short", "alice", "Short1!", errors.ErrInvalidPassword},
		{"password without digits", "alice", "ComplexPassword!", errors.ErrInvalidPassword},
		{"password without specials", "alice", "ComplexPass1234", errors.ErrInvalidPassword},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			err := ValidateRegister(RegisterRequest{
				Username: tc.username,
				Password: tc.password,
			})
			if tc.wantErr == nil {
				req.NoError(err)
			} else {
				req.ErrorIs(err, tc.wantErr)
			}
		})
	}
}

func TestComparePassword_MalformedHash(t *testing.T) {
	cases := []struct {
		name string
		hash string
	}{
		{"not a hash at all", "plain-text"},
		{"garbled version section", "$argon2id$vv$m=65536,t=3,p=2$c2FsdA$aGFzaA"},
		{"garbled parameter section", "$argon2id$v=19$bogus$c2FsdA$aGFzaA"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			match, err := ComparePassword("AnyPassword123!", tc.hash)
			req.Error(err)
			req.False(match)
		})
	}
}

func TestIsPasswordComplex(t *testing.T) {
	req := require.New(t)

	req.True(isPasswordComplex("Aa1!"))
	req.False(isPasswordComplex("aaaaaaaa"))
	req.False(isPasswordComplex("AAAA1111"))
}
