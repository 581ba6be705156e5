package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/argon2"
)

// argon2id parameters. Changing them invalidates stored hashes, so bump
// only alongside a rehash-on-login migration.
const (
	kdfTime    = 1
	kdfMemory  = 64 * 1024
	kdfThreads = 4
	kdfKeyLen  = 32
	kdfSaltLen = 16
)

var b64 = base64.RawStdEncoding

// PasswordHash is the stored form of a peppered argon2id digest.
type PasswordHash struct {
	Hash string
	Salt string
}

func derive(password, pepper string, salt []byte) []byte {
	secret := append([]byte(password), pepper...)
	return argon2.IDKey(secret, salt, kdfTime, kdfMemory, kdfThreads, kdfKeyLen)
}

func HashPassword(password, pepper string) (*PasswordHash, error) {
	salt := make([]byte, kdfSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return &PasswordHash{
		Hash: b64.EncodeToString(derive(password, pepper, salt)),
		Salt: b64.EncodeToString(salt),
	}, nil
}

func VerifyPassword(password, pepper string, stored *PasswordHash) (bool, error) {
	salt, err := b64.DecodeString(stored.Salt)
	if err != nil {
		return false, err
	}
	want, err := b64.DecodeString(stored.Hash)
	if err != nil {
		return false, err
	}
	got := derive(password, pepper, salt)
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

func MustHashPassword(password, pepper string) *PasswordHash {
	ph, err := HashPassword(password, pepper)
	if err != nil {
		panic(err)
	}
	return ph
}

func ParsePasswordHash(hash, salt string) (*PasswordHash, error) {
	if hash == "" || salt == "" {
		return nil, errors.New("empty hash or salt")
	}
	return &PasswordHash{Hash: hash, Salt: salt}, nil
}
