package signer

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/veriford/trustcore/core"
	"github.com/veriford/trustcore/ports"
)

const AudienceSession = "trustcore:session"

// sealedPair is the credential material hidden inside the cookie.
type sealedPair struct {
	Access  core.Credential `json:"access"`
	Refresh core.Credential `json:"refresh"`
}

// SessionClaims are the JWT claims of the session cookie.
type SessionClaims struct {
	jwt.RegisteredClaims
	Sealed        string `json:"sealed"`
	TermsAccepted bool   `json:"terms_accepted"`
}

// JWTSigner implements the SessionSigner interface. The credential pair is
// AES-GCM sealed before it is embedded, so the cookie carries no token
// material in the clear even though JWT claims are only base64.
type JWTSigner struct {
	signKey []byte
	sealKey []byte
}

// NewJWTSigner derives fixed-size signing and sealing keys from the
// configured secrets.
func NewJWTSigner(signingSecret, sealSecret string) ports.SessionSigner {
	signKey := sha256.Sum256([]byte(signingSecret))
	sealKey := sha256.Sum256([]byte(sealSecret))
	return &JWTSigner{signKey: signKey[:], sealKey: sealKey[:]}
}

// Mint produces the signed session cookie value
func (s *JWTSigner) Mint(cookie *ports.SessionCookie) (string, error) {
	sealed, err := s.seal(&sealedPair{Access: cookie.Access, Refresh: cookie.Refresh})
	if err != nil {
		return "", fmt.Errorf("failed to seal credentials: %w", err)
	}

	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   cookie.UserID,
			ID:        cookie.SessionID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(cookie.Refresh.ExpiresAt()),
			Audience:  jwt.ClaimStrings{AudienceSession},
		},
		Sealed:        sealed,
		TermsAccepted: cookie.TermsAccepted,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedToken, err := token.SignedString(s.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign session cookie: %w", err)
	}

	return signedToken, nil
}

// Parse verifies the cookie signature and unseals the credential pair
func (s *JWTSigner) Parse(value string) (*ports.SessionCookie, error) {
	token, err := jwt.ParseWithClaims(value, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.signKey, nil
	}, jwt.WithAudience(AudienceSession))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidCookie, err)
	}

	if !token.Valid {
		return nil, core.ErrInvalidCookie
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok {
		return nil, core.ErrInvalidCookie
	}

	pair, err := s.unseal(claims.Sealed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidCookie, err)
	}

	return &ports.SessionCookie{
		SessionID:     claims.ID,
		UserID:        claims.Subject,
		Access:        pair.Access,
		Refresh:       pair.Refresh,
		TermsAccepted: claims.TermsAccepted,
	}, nil
}

func (s *JWTSigner) seal(pair *sealedPair) (string, error) {
	plaintext, err := json.Marshal(pair)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(s.sealKey)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(ciphertext), nil
}

func (s *JWTSigner) unseal(sealed string) (*sealedPair, error) {
	ciphertext, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(s.sealKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("sealed payload too short")
	}

	nonce, payload := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, payload, nil)
	if err != nil {
		return nil, err
	}

	var pair sealedPair
	if err := json.Unmarshal(plaintext, &pair); err != nil {
		return nil, err
	}
	return &pair, nil
}
