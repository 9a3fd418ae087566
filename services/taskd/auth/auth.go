// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package auth provides password hashing and bearer-token issuance for
// taskd.
//
// Passwords are hashed with bcrypt. Tokens are HS256 JWTs whose signing
// secret is sealed in a memguard enclave so it never sits in plain heap
// memory between uses.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/awnumar/memguard"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidToken is returned by Verify for any token that fails
// signature, expiry, or shape checks. Callers respond 401 without
// distinguishing the cause.
var ErrInvalidToken = errors.New("invalid token")

const bcryptCost = 10

// DefaultTokenTTL is the 7-day session length.
const DefaultTokenTTL = 7 * 24 * time.Hour

// HashPassword bcrypt-hashes a plaintext password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored bcrypt hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// TokenKeeper issues and verifies bearer tokens. The signing secret lives
// in a sealed enclave and is only opened for the duration of a sign or
// verify call.
type TokenKeeper struct {
	secret *memguard.Enclave
	ttl    time.Duration
}

// NewTokenKeeper seals the signing secret. A zero ttl uses
// DefaultTokenTTL.
func NewTokenKeeper(secret string, ttl time.Duration) *TokenKeeper {
	if ttl == 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenKeeper{
		secret: memguard.NewEnclave([]byte(secret)),
		ttl:    ttl,
	}
}

// Issue signs a token whose subject is the user id.
func (k *TokenKeeper) Issue(userID string) (string, error) {
	buf, err := k.secret.Open()
	if err != nil {
		return "", fmt.Errorf("open signing secret: %w", err)
	}
	defer buf.Destroy()

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(k.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning the user id subject.
func (k *TokenKeeper) Verify(token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	buf, err := k.secret.Open()
	if err != nil {
		return "", fmt.Errorf("open signing secret: %w", err)
	}
	defer buf.Destroy()

	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return buf.Bytes(), nil
		})
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
