package seal

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"golang.org/x/crypto/chacha20"
)

// fastSealer keeps the round-trip tests quick; the format does not depend on
// the iteration count.
func fastSealer(t *testing.T) *Sealer {
	t.Helper()
	s, err := NewSealer(10, nil)
	if err != nil {
		t.Fatalf("NewSealer failed: %v", err)
	}
	return s
}

func TestRoundTrip(t *testing.T) {
	s := fastSealer(t)

	tests := []struct {
		name     string
		message  string
		password string
	}{
		{"ASCII", "hello", "pw123"},
		{"Empty message", "", "pw"},
		{"Unicode", "Grüße, 世界 🌍", "pässwörd"},
		{"Multiline", "line one\nline two\r\n\ttabbed", "p"},
		{"Long", strings.Repeat("The quick brown fox. ", 500), "correct horse battery staple"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob, err := s.Encrypt(tt.message, tt.password)
			if err != nil {
				t.Fatalf("Encrypt failed: %v", err)
			}
			if len(blob) != HeaderLen+len(tt.message) {
				t.Fatalf("blob length = %d, want %d", len(blob), HeaderLen+len(tt.message))
			}

			got, err := s.Decrypt(blob, tt.password)
			if err != nil {
				t.Fatalf("Decrypt failed: %v", err)
			}
			if got != tt.message {
				t.Fatalf("round-trip mismatch: got %q, want %q", got, tt.message)
			}
		})
	}
}

func TestDefaultParameters(t *testing.T) {
	blob, err := Encrypt("hello", "pw123")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if len(blob) != 29 {
		t.Fatalf("blob length = %d, want 29", len(blob))
	}

	got, err := Decrypt(blob, "pw123")
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if got != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}

	// Five bytes of garbage still decode as UTF-8 a few percent of the time.
	got, err = Decrypt(blob, "wrong")
	if err == nil && got == "hello" {
		t.Fatal("wrong password recovered the message")
	}
	if err != nil && !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestWrongPassword(t *testing.T) {
	s := fastSealer(t)
	message := strings.Repeat("secret message ", 8)

	for i := 0; i < 5; i++ {
		blob, err := s.Encrypt(message, "right")
		if err != nil {
			t.Fatalf("Encrypt failed: %v", err)
		}
		if _, err := s.Decrypt(blob, "wrong"); !errors.Is(err, ErrDecryptionFailed) {
			t.Fatalf("expected ErrDecryptionFailed, got %v", err)
		}
	}
}

func TestFreshSaltAndNonce(t *testing.T) {
	s := fastSealer(t)

	a, err := s.Encrypt("same message", "same password")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	b, err := s.Encrypt("same message", "same password")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if bytes.Equal(a[:SaltLen], b[:SaltLen]) {
		t.Error("two encryptions reused a salt")
	}
	if bytes.Equal(a[SaltLen:HeaderLen], b[SaltLen:HeaderLen]) {
		t.Error("two encryptions reused a nonce")
	}
	if bytes.Equal(a[HeaderLen:], b[HeaderLen:]) {
		t.Error("two encryptions produced the same ciphertext")
	}
}

func TestBlobLayout(t *testing.T) {
	header := make([]byte, HeaderLen)
	for i := range header {
		header[i] = byte(i + 1)
	}
	s, err := NewSealer(7, bytes.NewReader(header))
	if err != nil {
		t.Fatalf("NewSealer failed: %v", err)
	}

	plain := "layout"
	blob, err := s.Encrypt(plain, "pw")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if !bytes.Equal(blob[:HeaderLen], header) {
		t.Fatalf("header = %x, want %x", blob[:HeaderLen], header)
	}

	key := DeriveKey([]byte("pw"), header[:SaltLen], 7)
	nonce := append(make([]byte, 4), header[SaltLen:]...)
	c, err := chacha20.NewUnauthenticatedCipher(key, nonce)
	if err != nil {
		t.Fatalf("NewUnauthenticatedCipher failed: %v", err)
	}
	want := make([]byte, len(plain))
	c.XORKeyStream(want, []byte(plain))
	if !bytes.Equal(blob[HeaderLen:], want) {
		t.Fatalf("ciphertext = %x, want %x", blob[HeaderLen:], want)
	}
}

func TestDeriveKeyVectors(t *testing.T) {
	// PBKDF2-HMAC-SHA1 vectors from RFC 6070; a longer output shares the prefix.
	tests := []struct {
		iterations int
		want       string
	}{
		{1, "0c60c80f961f0e71f3a9b524af6012062fe037a6"},
		{2, "ea6c014dc72d6f8ccd1ed92ace1d41f0d8de8957"},
		{4096, "4b007901b765489abead49d926f721d065a429c1"},
	}

	for _, tt := range tests {
		key := DeriveKey([]byte("password"), []byte("salt"), tt.iterations)
		if len(key) != KeyLen {
			t.Fatalf("key length = %d, want %d", len(key), KeyLen)
		}
		if got := hex.EncodeToString(key[:20]); got != tt.want {
			t.Errorf("iterations=%d: got %s, want %s", tt.iterations, got, tt.want)
		}
	}
}

func TestKeyStreamVectors(t *testing.T) {
	// 64-bit nonce ChaCha20 keystream vectors with an all-zero key.
	tests := []struct {
		nonce string
		want  string
	}{
		{"0000000000000000", "76b8e0ada0f13d90405d6ae55386bd28bdd219b8a08ded1aa836efcc8b770dc7"},
		{"0000000000000001", "de9cba7bf3d69ef5e786dc63973f653a0b49e015adbff7134fcb7df137821031"},
	}

	for _, tt := range tests {
		nonce, _ := hex.DecodeString(tt.nonce)
		c, err := chacha20.NewUnauthenticatedCipher(make([]byte, KeyLen), ietfNonce(nonce))
		if err != nil {
			t.Fatalf("NewUnauthenticatedCipher failed: %v", err)
		}
		stream := make([]byte, 32)
		c.XORKeyStream(stream, stream)
		if got := hex.EncodeToString(stream); got != tt.want {
			t.Errorf("nonce %s: got %s, want %s", tt.nonce, got, tt.want)
		}
	}
}

func TestInputErrors(t *testing.T) {
	s := fastSealer(t)

	if _, err := s.Encrypt("message", ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Encrypt with empty password: expected ErrInvalidInput, got %v", err)
	}
	if _, err := s.Decrypt(make([]byte, HeaderLen), ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Decrypt with empty password: expected ErrInvalidInput, got %v", err)
	}
	for _, n := range []int{0, 1, HeaderLen - 1} {
		if _, err := s.Decrypt(make([]byte, n), "pw"); !errors.Is(err, ErrMalformedInput) {
			t.Errorf("Decrypt of %d bytes: expected ErrMalformedInput, got %v", n, err)
		}
	}

	// A bare header is a valid encryption of the empty message under any password.
	got, err := s.Decrypt(make([]byte, HeaderLen), "pw")
	if err != nil || got != "" {
		t.Errorf("Decrypt of bare header = %q, %v; want empty message", got, err)
	}
}

func TestNewSealerValidation(t *testing.T) {
	for _, n := range []int{0, -1} {
		if _, err := NewSealer(n, nil); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("NewSealer(%d): expected ErrInvalidInput, got %v", n, err)
		}
	}
}

func TestRandomSourceFailure(t *testing.T) {
	s, err := NewSealer(1, bytes.NewReader(make([]byte, SaltLen)))
	if err != nil {
		t.Fatalf("NewSealer failed: %v", err)
	}
	if _, err := s.Encrypt("message", "pw"); err == nil {
		t.Fatal("expected an error when the random source runs dry")
	}
}

func TestWipe(t *testing.T) {
	b := []byte("secret key material")
	Wipe(b)
	if !bytes.Equal(b, make([]byte, len(b))) {
		t.Fatalf("Wipe left %q", b)
	}
	Wipe(nil)
}

func TestSharedSealerConcurrentUse(t *testing.T) {
	s := fastSealer(t)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			message := fmt.Sprintf("message %d from a concurrent caller", i)
			password := fmt.Sprintf("pw-%d", i)
			for j := 0; j < 20; j++ {
				blob, err := s.Encrypt(message, password)
				if err != nil {
					errs <- err
					return
				}
				got, err := s.Decrypt(blob, password)
				if err != nil {
					errs <- err
					return
				}
				if got != message {
					errs <- fmt.Errorf("worker %d got %q", i, got)
					return
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
