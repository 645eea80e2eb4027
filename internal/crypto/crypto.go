// Package crypto implements the Encrypted Store's symmetric authenticated encryption: password-derived key material
// via Argon2id or PBKDF2, sealed with XChaCha20-Poly1305 or AES-256-GCM.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha1" //nolint:gosec // legacy decrypt-only profile, not used for new records
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"
)

// Algorithm identifies the AEAD cipher a Record was sealed with.
type Algorithm string

const (
	AlgorithmXChaCha20Poly1305 Algorithm = "xchacha20-poly1305"
	AlgorithmAES256GCM        Algorithm = "aes-256-gcm"
)

// KDF identifies the key-derivation family a Record was sealed with.
type KDF string

const (
	KDFArgon2  KDF = "argon2"
	KDFPBKDF2  KDF = "pbkdf2"
)

// Profile identifies the exact KDF parameter set. argon2_high additionally requires the deriving process to observe
// at least 2 GiB of system memory; pbkdf2_hmac_sha_1 is legacy-decrypt-only and always flagged outdated.
type Profile string

const (
	ProfileArgon2Low        Profile = "argon2_low"
	ProfileArgon2High       Profile = "argon2_high"
	ProfilePBKDF2HMACSHA256 Profile = "pbkdf2_hmac_sha_256"
	ProfilePBKDF2HMACSHA1   Profile = "pbkdf2_hmac_sha_1"
)

const (
	saltLength      = 16
	gcmNonceLength  = 12
	xchachaNonceLen = chacha20poly1305.NonceSizeX
	keyLength       = 32

	argon2LowMemory      = 64 * 1024 // KiB, ~64 MiB
	argon2LowIterations  = 3
	argon2LowParallelism = 2

	argon2HighMemory      = 256 * 1024 // KiB, ~256 MiB
	argon2HighIterations  = 4
	argon2HighParallelism = 4

	minRAMForArgon2High = 2 << 30 // 2 GiB
)

var (
	// ErrBadPassword is returned when authenticated decryption fails, meaning either the password was wrong or the
	// record was tampered with.
	ErrBadPassword = errors.New("crypto: bad password or corrupt record")
	// ErrUnsupportedAlgorithm is returned for a Record naming an algorithm or KDF this package does not implement.
	ErrUnsupportedAlgorithm = errors.New("crypto: unsupported algorithm or kdf")
	// ErrCorruptRecord is returned when a Record's byte-length invariants (salt/nonce sizing) are violated.
	ErrCorruptRecord = errors.New("crypto: corrupt record")
	// ErrArgon2HighUnavailable is returned when argon2_high is requested but the host does not have enough memory.
	ErrArgon2HighUnavailable = errors.New("crypto: argon2_high requires at least 2 GiB of system memory")
)

// Record is the at-rest representation of one encrypted blob. Every byte field is raw bytes here; the secrets
// package is responsible for base64 encoding them for JSON storage (§6.1).
type Record struct {
	Ciphertext []byte
	Tag        []byte
	Nonce      []byte
	Salt       []byte
	Algorithm  Algorithm
	KDF        KDF
	Profile    Profile
}

// Argon2HighAvailable reports whether the host has at least 2 GiB of addressable memory, best-effort via
// runtime.MemStats' Sys as a lower bound proxy when a precise host total isn't obtainable from within the Go
// runtime alone.
func Argon2HighAvailable() bool {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Sys >= minRAMForArgon2High || totalSystemMemory() >= minRAMForArgon2High
}

// Encrypt derives a key from password under the given KDF profile and seals plaintext with the given algorithm,
// producing a Record ready for JSON serialization by the caller. Key material is zeroed before returning.
func Encrypt(password string, plaintext []byte, algorithm Algorithm, profile Profile) (*Record, error) {
	if profile == ProfileArgon2High && !Argon2HighAvailable() {
		return nil, ErrArgon2HighUnavailable
	}
	if profile == ProfilePBKDF2HMACSHA1 {
		return nil, fmt.Errorf("%w: pbkdf2_hmac_sha_1 is legacy decrypt-only", ErrUnsupportedAlgorithm)
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	key, kdf, err := deriveKey(password, salt, profile)
	if err != nil {
		return nil, err
	}
	defer zero(key)

	aead, nonceLen, err := newAEAD(algorithm, key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, plaintext, nil)
	ciphertext, tag := splitTag(sealed, aead.Overhead())

	return &Record{
		Ciphertext: ciphertext,
		Tag:        tag,
		Nonce:      nonce,
		Salt:       salt,
		Algorithm:  algorithm,
		KDF:        kdf,
		Profile:    profile,
	}, nil
}

// Decrypt recovers the plaintext of rec under password. outdated reports whether rec used the legacy
// pbkdf2_hmac_sha_1 profile, signaling the caller should reencrypt under a current profile.
func Decrypt(password string, rec *Record) (plaintext []byte, outdated bool, err error) {
	if len(rec.Salt) != saltLength {
		return nil, false, fmt.Errorf("%w: salt must be %d bytes", ErrCorruptRecord, saltLength)
	}

	key, _, err := deriveKey(password, rec.Salt, rec.Profile)
	if err != nil {
		return nil, false, err
	}
	defer zero(key)

	aead, nonceLen, err := newAEAD(rec.Algorithm, key)
	if err != nil {
		return nil, false, err
	}
	if len(rec.Nonce) != nonceLen {
		return nil, false, fmt.Errorf("%w: nonce must be %d bytes for %s", ErrCorruptRecord, nonceLen, rec.Algorithm)
	}

	sealed := append(append([]byte{}, rec.Ciphertext...), rec.Tag...)
	plaintext, err = aead.Open(nil, rec.Nonce, sealed, nil)
	if err != nil {
		return nil, false, ErrBadPassword
	}

	return plaintext, rec.Profile == ProfilePBKDF2HMACSHA1, nil
}

func deriveKey(password string, salt []byte, profile Profile) ([]byte, KDF, error) {
	switch profile {
	case ProfileArgon2Low:
		return argon2.IDKey([]byte(password), salt, argon2LowIterations, argon2LowMemory, argon2LowParallelism, keyLength), KDFArgon2, nil
	case ProfileArgon2High:
		return argon2.IDKey([]byte(password), salt, argon2HighIterations, argon2HighMemory, argon2HighParallelism, keyLength), KDFArgon2, nil
	case ProfilePBKDF2HMACSHA256:
		return pbkdf2.Key([]byte(password), salt, 600_000, keyLength, sha256.New), KDFPBKDF2, nil
	case ProfilePBKDF2HMACSHA1:
		return pbkdf2.Key([]byte(password), salt, 600_000, keyLength, sha1.New), KDFPBKDF2, nil
	default:
		return nil, "", fmt.Errorf("%w: unknown kdf profile %q", ErrUnsupportedAlgorithm, profile)
	}
}

func newAEAD(algorithm Algorithm, key []byte) (cipher.AEAD, int, error) {
	switch algorithm {
	case AlgorithmXChaCha20Poly1305:
		aead, err := chacha20poly1305.NewX(key)
		if err != nil {
			return nil, 0, fmt.Errorf("create xchacha20-poly1305 cipher: %w", err)
		}
		return aead, xchachaNonceLen, nil
	case AlgorithmAES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, 0, fmt.Errorf("create aes cipher: %w", err)
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, 0, fmt.Errorf("create gcm: %w", err)
		}
		return aead, gcmNonceLength, nil
	default:
		return nil, 0, fmt.Errorf("%w: unknown algorithm %q", ErrUnsupportedAlgorithm, algorithm)
	}
}

// splitTag separates the tag golang's AEAD implementations append to the ciphertext, so the wire Record can carry
// them as distinct fields per §6.1.
func splitTag(sealed []byte, tagLen int) (ciphertext, tag []byte) {
	n := len(sealed) - tagLen
	return bytes.Clone(sealed[:n]), bytes.Clone(sealed[n:])
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// totalSystemMemory returns the host's total memory in bytes, read from /proc/meminfo where available. It returns 0
// (never an error) on platforms without that file, since this is only ever used as a lower bound alongside
// runtime.MemStats.Sys in Argon2HighAvailable.
func totalSystemMemory() uint64 {
	data, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return 0
	}
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "MemTotal:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0
		}
		kib, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0
		}
		return kib * 1024
	}
	return 0
}
