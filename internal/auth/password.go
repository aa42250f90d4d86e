// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package auth hashes and verifies login passwords with argon2id.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Params are the argon2id cost parameters.
type Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
	SaltLen uint32
}

// DefaultParams follows the OWASP second recommendation (m=19456, t=2, p=1).
var DefaultParams = Params{
	Time:    2,
	Memory:  19 * 1024,
	Threads: 1,
	KeyLen:  32,
	SaltLen: 16,
}

// ErrInvalidHash is returned for hashes that are not argon2id PHC strings.
var ErrInvalidHash = errors.New("invalid password hash")

// encoded is a parsed $argon2id$v=19$m=..,t=..,p=..$salt$hash string.
type encoded struct {
	params Params
	salt   []byte
	hash   []byte
}

func decode(s string) (encoded, error) {
	parts := strings.Split(s, "$")
	if len(parts) != 6 {
		return encoded{}, ErrInvalidHash
	}
	if parts[1] != "argon2id" {
		return encoded{}, fmt.Errorf("%w: unsupported type %s", ErrInvalidHash, parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return encoded{}, fmt.Errorf("parsing version: %w", err)
	}
	if version != argon2.Version {
		return encoded{}, fmt.Errorf("%w: version %d", ErrInvalidHash, version)
	}

	var e encoded
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &e.params.Memory, &e.params.Time, &e.params.Threads); err != nil {
		return encoded{}, fmt.Errorf("parsing parameters: %w", err)
	}

	var err error
	if e.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return encoded{}, fmt.Errorf("decoding salt: %w", err)
	}
	if e.hash, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return encoded{}, fmt.Errorf("decoding hash: %w", err)
	}
	e.params.SaltLen = uint32(len(e.salt))
	e.params.KeyLen = uint32(len(e.hash))

	return e, nil
}

// Hash creates an argon2id PHC string for password using p.
func (p Params) Hash(password string) (string, error) {
	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, p.KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Time, p.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

// HashPassword hashes with DefaultParams.
func HashPassword(password string) (string, error) {
	return DefaultParams.Hash(password)
}

// CheckPassword verifies password against an encoded hash in constant time.
func CheckPassword(password, encodedHash string) (bool, error) {
	e, err := decode(encodedHash)
	if err != nil {
		return false, err
	}

	key := argon2.IDKey([]byte(password), e.salt, e.params.Time, e.params.Memory, e.params.Threads, e.params.KeyLen)
	return subtle.ConstantTimeCompare(key, e.hash) == 1, nil
}

// NeedsRehash reports whether encodedHash was made with parameters other
// than DefaultParams.
func NeedsRehash(encodedHash string) bool {
	e, err := decode(encodedHash)
	if err != nil {
		return true
	}
	return e.params.Memory != DefaultParams.Memory ||
		e.params.Time != DefaultParams.Time ||
		e.params.Threads != DefaultParams.Threads
}
