// internal/crypto/crypto.go (AES-256-GCM + PBKDF2 variant)
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// Version tags every envelope so the scheme can evolve.
	Version = "1.0"

	// OWASP 2023 floor for PBKDF2-SHA256. Redundant work when the key
	// material is a full random 256-bit value, but the same derivation
	// path must hold up when it is a human-chosen password.
	pbkdf2Iterations = 210000

	keyLength  = 32 // AES-256
	saltLength = 32
	ivLength   = 12 // GCM standard nonce size
	idLength   = 32

	minKeyMaterialChars = 32
)

const idCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ErrDecryptFailed is the only error Decrypt returns for bad keys or
// tampered input. Callers must not learn which field was at fault.
var ErrDecryptFailed = errors.New("decryption failed")

// Envelope is the output of Encrypt: everything the server may store.
// All byte fields are base64 encoded.
type Envelope struct {
	EncryptedData string `json:"encryptedData"`
	IV            string `json:"iv"`
	Salt          string `json:"salt"`
	Version       string `json:"version"`
}

// GenerateKeyMaterial returns 256 bits of secure randomness as a
// 64-character hex string, suitable for a share URL fragment.
func GenerateKeyMaterial() (string, error) {
	buf := make([]byte, keyLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("secure random source unavailable: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// GenerateID returns a 32-character alphanumeric drop identifier
// (~190 bits of entropy). Charset picks use rejection-free rand.Int so
// no character is favored.
func GenerateID() string {
	id := make([]byte, idLength)
	for i := range id {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(idCharset))))
		if err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		id[i] = idCharset[n.Int64()]
	}
	return string(id)
}

// DeriveKey stretches key material into an AES-256 key using
// PBKDF2-SHA256 over a per-record salt.
func DeriveKey(keyMaterial string, salt []byte) ([]byte, error) {
	if len(keyMaterial) < minKeyMaterialChars {
		return nil, errors.New("key material too short")
	}
	if len(salt) != saltLength {
		return nil, fmt.Errorf("salt must be exactly %d bytes", saltLength)
	}
	return pbkdf2.Key([]byte(keyMaterial), salt, pbkdf2Iterations, keyLength, sha256.New), nil
}

// Encrypt seals plaintext under a key derived from keyMaterial. Salt
// and IV are freshly generated on every call: GCM loses all guarantees
// if an IV repeats under the same key.
func Encrypt(plaintext []byte, keyMaterial string) (*Envelope, error) {
	if len(plaintext) == 0 {
		return nil, errors.New("cannot encrypt empty plaintext")
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("salt generation failed: %w", err)
	}
	iv := make([]byte, ivLength)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("iv generation failed: %w", err)
	}

	key, err := DeriveKey(keyMaterial, salt)
	if err != nil {
		return nil, err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	ciphertext := gcm.Seal(nil, iv, plaintext, nil)

	return &Envelope{
		EncryptedData: base64.StdEncoding.EncodeToString(ciphertext),
		IV:            base64.StdEncoding.EncodeToString(iv),
		Salt:          base64.StdEncoding.EncodeToString(salt),
		Version:       Version,
	}, nil
}

// Decrypt opens an envelope with the given key material. It fails
// closed: a wrong key or any bit flip in ciphertext, iv or salt yields
// ErrDecryptFailed with no partial plaintext and no hint of which field
// was invalid. Only a version mismatch is reported distinctly, since
// the version is not secret and the caller may need to upgrade.
func Decrypt(env *Envelope, keyMaterial string) ([]byte, error) {
	if env == nil || env.EncryptedData == "" || env.IV == "" || env.Salt == "" {
		return nil, ErrDecryptFailed
	}

	if env.Version != "" && env.Version != Version {
		return nil, fmt.Errorf("unsupported crypto version %q", env.Version)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(env.EncryptedData)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	iv, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil || len(iv) != ivLength {
		return nil, ErrDecryptFailed
	}
	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil || len(salt) != saltLength {
		return nil, ErrDecryptFailed
	}

	key, err := DeriveKey(keyMaterial, salt)
	if err != nil {
		return nil, ErrDecryptFailed
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, ErrDecryptFailed
	}

	plaintext, err := gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher creation failed: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("GCM creation failed: %w", err)
	}
	return gcm, nil
}
