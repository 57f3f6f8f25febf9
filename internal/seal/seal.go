// Package seal encrypts short text messages under a password.
//
// A sealed blob is laid out as
//
//	salt[16] | nonce[8] | ciphertext[len(plaintext)]
//
// The key is PBKDF2-HMAC-SHA1(password, salt, 100000 iterations, 32 bytes) and the
// cipher is ChaCha20 with a 64-bit nonce. There is no authentication tag: a wrong
// password is only noticed when the recovered bytes are not valid UTF-8, which is a
// statistical check, not an integrity guarantee.
package seal

import (
	"crypto/sha1"
	"errors"
	"fmt"
	"io"
	"math"
	"runtime"
	"unicode/utf8"

	"github.com/tink-crypto/tink-go/v2/subtle/random"
	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/pbkdf2"
)

const (
	SaltLen    = 16
	NonceLen   = 8
	KeyLen     = 32
	HeaderLen  = SaltLen + NonceLen
	Iterations = 100_000
)

var (
	// ErrInvalidInput is returned for an empty password or an oversized message.
	ErrInvalidInput = errors.New("invalid input")
	// ErrMalformedInput is returned when a blob is shorter than its fixed header.
	ErrMalformedInput = errors.New("malformed input")
	// ErrDecryptionFailed is returned when the decrypted bytes are not UTF-8.
	ErrDecryptionFailed = errors.New("decryption failed")
)

// Sealer holds the key derivation cost and the source of salts and nonces.
// A Sealer has no mutable state and may be shared between goroutines.
type Sealer struct {
	iterations int
	rand       io.Reader
}

var defaultSealer = NewDefaultSealer()

// NewSealer returns a Sealer using the given PBKDF2 iteration count. A nil rand
// draws salts and nonces from the system random source.
func NewSealer(iterations int, rand io.Reader) (*Sealer, error) {
	if iterations < 1 {
		return nil, fmt.Errorf("%w: iterations must be at least 1, got %d", ErrInvalidInput, iterations)
	}
	return &Sealer{iterations: iterations, rand: rand}, nil
}

// NewDefaultSealer returns a Sealer with the standard iteration count and the
// system random source.
func NewDefaultSealer() *Sealer {
	return &Sealer{iterations: Iterations}
}

// Encrypt seals plaintext with the default parameters.
func Encrypt(plaintext, password string) ([]byte, error) {
	return defaultSealer.Encrypt(plaintext, password)
}

// Decrypt opens a blob produced by Encrypt.
func Decrypt(blob []byte, password string) (string, error) {
	return defaultSealer.Decrypt(blob, password)
}

// Encrypt returns salt | nonce | ciphertext for the UTF-8 bytes of plaintext.
func (s *Sealer) Encrypt(plaintext, password string) ([]byte, error) {
	if password == "" {
		return nil, fmt.Errorf("%w: password is required for encryption", ErrInvalidInput)
	}
	if uint64(len(plaintext)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: message of %d bytes is too long", ErrInvalidInput, len(plaintext))
	}

	salt, err := s.randomBytes(SaltLen)
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	nonce, err := s.randomBytes(NonceLen)
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	blob := make([]byte, HeaderLen+len(plaintext))
	copy(blob, salt)
	copy(blob[SaltLen:], nonce)
	copy(blob[HeaderLen:], plaintext)

	if err := s.xorKeyStream(blob[HeaderLen:], []byte(password), salt, nonce); err != nil {
		return nil, err
	}
	return blob, nil
}

// Decrypt splits blob at the fixed offsets, re-derives the key and returns the
// plaintext. Any blob of at least HeaderLen bytes decrypts to something; only
// invalid UTF-8 is reported as ErrDecryptionFailed.
func (s *Sealer) Decrypt(blob []byte, password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("%w: password is required for decryption", ErrInvalidInput)
	}
	if len(blob) < HeaderLen {
		return "", fmt.Errorf("%w: ciphertext of %d bytes is shorter than the %d byte header",
			ErrMalformedInput, len(blob), HeaderLen)
	}

	salt := blob[:SaltLen]
	nonce := blob[SaltLen:HeaderLen]
	plain := make([]byte, len(blob)-HeaderLen)
	copy(plain, blob[HeaderLen:])

	if err := s.xorKeyStream(plain, []byte(password), salt, nonce); err != nil {
		return "", err
	}
	if !utf8.Valid(plain) {
		return "", fmt.Errorf("%w: wrong password or not a sealed message", ErrDecryptionFailed)
	}
	return string(plain), nil
}

// xorKeyStream derives the key and applies the ChaCha20 keystream to buf in place.
func (s *Sealer) xorKeyStream(buf, password, salt, nonce []byte) error {
	key := DeriveKey(password, salt, s.iterations)
	defer Wipe(key)

	c, err := chacha20.NewUnauthenticatedCipher(key, ietfNonce(nonce))
	if err != nil {
		return fmt.Errorf("failed to create cipher: %w", err)
	}
	c.XORKeyStream(buf, buf)
	return nil
}

// DeriveKey derives a KeyLen byte key from a password using PBKDF2-HMAC-SHA1.
func DeriveKey(password, salt []byte, iterations int) []byte {
	return pbkdf2.Key(password, salt, iterations, KeyLen, sha1.New)
}

// ietfNonce widens a 64-bit nonce to the 96-bit form. With the high counter word
// fixed at zero the keystream matches the 64-bit-nonce ChaCha20 for the first
// 2^32 blocks, far beyond the largest message a 32-bit length can describe.
func ietfNonce(nonce []byte) []byte {
	n := make([]byte, chacha20.NonceSize)
	copy(n[chacha20.NonceSize-NonceLen:], nonce)
	return n
}

func (s *Sealer) randomBytes(n int) ([]byte, error) {
	if s.rand == nil {
		return random.GetRandomBytes(uint32(n)), nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(s.rand, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Wipe overwrites b with zeros. Callers use it on keys and passwords once
// they are no longer needed.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}
