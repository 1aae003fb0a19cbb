package signature

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gravadigital/billetterie-api/internal/config"
	"github.com/gravadigital/billetterie-api/internal/logger"
)

// MaxLength is the length the base64 signature is cut to before stripping
const MaxLength = 64

// Signer turns content (a booker email) into an opaque, URL-safe token
type Signer interface {
	Sign(content string) (string, error)
}

// RSASigner signs with RS256. PKCS#1 v1.5 signatures are deterministic, so
// the same email always yields the same token.
type RSASigner struct {
	key *rsa.PrivateKey
}

// NewRSASigner parses a PEM encoded RSA private key (PKCS#1 or PKCS#8)
func NewRSASigner(pemKey []byte) (*RSASigner, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemKey)
	if err != nil {
		return nil, fmt.Errorf("parse rsa key: %w", err)
	}
	return &RSASigner{key: key}, nil
}

// NewEphemeralSigner generates a throwaway key. Tokens do not survive a restart.
func NewEphemeralSigner() (*RSASigner, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("generate rsa key: %w", err)
	}
	return &RSASigner{key: key}, nil
}

// FromConfig loads the key from APP_RSA_KEY, then APP_RSA_KEY_FILE, and falls
// back to an ephemeral key outside production.
func FromConfig(cfg *config.Config) (*RSASigner, error) {
	log := logger.Service("signature")

	switch {
	case cfg.Signature.RSAKey != "":
		// keys passed through env files often carry escaped newlines
		return NewRSASigner([]byte(strings.ReplaceAll(cfg.Signature.RSAKey, `\n`, "\n")))
	case cfg.Signature.RSAKeyFile != "":
		pemKey, err := os.ReadFile(cfg.Signature.RSAKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read rsa key file: %w", err)
		}
		return NewRSASigner(pemKey)
	case cfg.IsProduction():
		return nil, fmt.Errorf("APP_RSA_KEY or APP_RSA_KEY_FILE is required in production")
	default:
		log.Warn("No RSA key configured, using an ephemeral key; booking links will not survive a restart")
		return NewEphemeralSigner()
	}
}

// Sign signs content, keeps the first MaxLength base64 characters and drops
// everything that is not a letter or a digit.
func (s *RSASigner) Sign(content string) (string, error) {
	raw, err := jwt.SigningMethodRS256.Sign(content, s.key)
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}

	encoded := base64.StdEncoding.EncodeToString(raw)
	if len(encoded) > MaxLength {
		encoded = encoded[:MaxLength]
	}
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, encoded), nil
}
