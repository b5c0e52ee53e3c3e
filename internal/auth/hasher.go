// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ItemVault Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	argon2SaltLen = 16 // salt length in bytes
	argon2KeyLen  = 32 // output length in bytes

	// Upper bounds accepted when decoding a stored digest.
	maxArgon2Memory = 4 * 1024 * 1024 // 4 GiB in KiB
	maxArgon2Time   = 64
	maxArgon2KeyLen = 1024
)

// HasherParams are the argon2id cost parameters.
type HasherParams struct {
	Time      uint32 // iterations
	MemoryKiB uint32
	Threads   uint8 // parallelism
}

// DefaultHasherParams returns the OWASP-recommended argon2id parameters.
func DefaultHasherParams() HasherParams {
	return HasherParams{Time: 1, MemoryKiB: 64 * 1024, Threads: 4}
}

// Validate reports parameters argon2 cannot run with.
func (p HasherParams) Validate() error {
	switch {
	case p.Time == 0 || p.Time > maxArgon2Time:
		return oops.Code("HASHER_INVALID_PARAMS").With("time", p.Time).Errorf("time must be between 1 and %d", maxArgon2Time)
	case p.Threads == 0:
		return oops.Code("HASHER_INVALID_PARAMS").Errorf("threads must be positive")
	case p.MemoryKiB < 8*uint32(p.Threads) || p.MemoryKiB > maxArgon2Memory:
		return oops.Code("HASHER_INVALID_PARAMS").
			With("memory_kib", p.MemoryKiB).
			Errorf("memory must be between %d and %d KiB", 8*uint32(p.Threads), maxArgon2Memory)
	}
	return nil
}

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a salted digest of the password.
	Hash(password string) (string, error)

	// Verify reports whether the password matches the digest. A malformed
	// digest never matches.
	Verify(password, digest string) bool

	// NeedsUpgrade reports whether the digest should be replaced by a fresh
	// Hash of the same password.
	NeedsUpgrade(digest string) bool
}

// Argon2idHasher implements PasswordHasher using argon2id. It also verifies
// bcrypt digests left by earlier deployments.
type Argon2idHasher struct {
	params HasherParams
}

// NewArgon2idHasher creates a hasher with the given cost parameters.
func NewArgon2idHasher(params HasherParams) (*Argon2idHasher, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Argon2idHasher{params: params}, nil
}

// Hash produces an argon2id digest in PHC string format:
// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	p := h.params
	key := argon2.IDKey([]byte(password), salt, p.Time, p.MemoryKiB, p.Threads, argon2KeyLen)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		p.MemoryKiB,
		p.Time,
		p.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks the password against an argon2id or bcrypt digest in
// constant time.
func (h *Argon2idHasher) Verify(password, digest string) bool {
	if isBcrypt(digest) {
		return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
	}

	d, err := decodeArgon2id(digest)
	if err != nil {
		return false
	}
	computed := argon2.IDKey([]byte(password), d.salt, d.params.Time, d.params.MemoryKiB, d.params.Threads, uint32(len(d.key)))
	return subtle.ConstantTimeCompare(computed, d.key) == 1
}

// NeedsUpgrade returns true for non-argon2id digests and for argon2id digests
// weaker than the configured parameters.
func (h *Argon2idHasher) NeedsUpgrade(digest string) bool {
	d, err := decodeArgon2id(digest)
	if err != nil {
		return true
	}
	p := d.params
	return p.Time < h.params.Time || p.MemoryKiB < h.params.MemoryKiB || p.Threads < h.params.Threads
}

func isBcrypt(digest string) bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(digest, prefix) {
			return true
		}
	}
	return false
}

type argon2Digest struct {
	params HasherParams
	salt   []byte
	key    []byte
}

func decodeArgon2id(digest string) (*argon2Digest, error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash format")
	}
	if parts[1] != "argon2id" {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if version != argon2.Version {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported argon2 version: %d", version)
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	// Threads must fit in uint8 to prevent silent truncation.
	if threads > 255 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("threads value %d exceeds uint8 max", threads)
	}
	params := HasherParams{Time: time, MemoryKiB: memory, Threads: uint8(threads)}
	if err := params.Validate(); err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if len(key) == 0 || len(key) > maxArgon2KeyLen {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash key length: %d", len(key))
	}

	return &argon2Digest{params: params, salt: salt, key: key}, nil
}
