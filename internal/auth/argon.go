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

// Fixed Argon2id cost for a single-owner server; stored hashes carry
// their own parameters so these can change without invalidating them.
var hashParams = argonParams{
	memory:  64 * 1024,
	passes:  3,
	threads: 4,
	saltLen: 16,
	keyLen:  32,
}

// Hashing cost scales with input, so overly long passwords are refused.
const maxPasswordLen = 1024

type argonParams struct {
	memory  uint32
	passes  uint32
	threads uint8
	saltLen uint32
	keyLen  uint32
}

// HashPassword derives an Argon2id hash and returns it in the standard
// $argon2id$v=..$m=..,t=..,p=..$salt$hash encoding.
func HashPassword(password string) (string, error) {
	switch {
	case password == "":
		return "", errors.New("empty password")
	case len(password) > maxPasswordLen:
		return "", errors.New("password too long")
	}

	p := hashParams
	salt := make([]byte, p.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, p.passes, p.memory, p.threads, p.keyLen)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.memory, p.passes, p.threads,
		b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

// VerifyPassword reports whether password matches the encoded hash.
// Malformed hashes verify as false rather than surfacing why.
func VerifyPassword(encoded, password string) (bool, error) {
	if len(password) > maxPasswordLen {
		return false, nil
	}

	salt, want, p, err := parseHash(encoded)
	if err != nil {
		return false, nil
	}

	got := argon2.IDKey([]byte(password), salt, p.passes, p.memory, p.threads, p.keyLen)
	return subtle.ConstantTimeCompare(want, got) == 1, nil
}

func parseHash(encoded string) (salt, key []byte, p argonParams, err error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[1] != "argon2id" {
		return nil, nil, p, errors.New("not an argon2id hash")
	}

	var version int
	if _, err = fmt.Sscanf(fields[2], "v=%d", &version); err != nil {
		return nil, nil, p, fmt.Errorf("parse version: %w", err)
	}
	if version != argon2.Version {
		return nil, nil, p, fmt.Errorf("argon2 version %d not supported", version)
	}

	if _, err = fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &p.memory, &p.passes, &p.threads); err != nil {
		return nil, nil, p, fmt.Errorf("parse cost parameters: %w", err)
	}

	b64 := base64.RawStdEncoding
	if salt, err = b64.DecodeString(fields[4]); err != nil {
		return nil, nil, p, fmt.Errorf("decode salt: %w", err)
	}
	if key, err = b64.DecodeString(fields[5]); err != nil {
		return nil, nil, p, fmt.Errorf("decode key: %w", err)
	}
	p.keyLen = uint32(len(key))

	return salt, key, p, nil
}
