package binance

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// listenKeyExpiry is Binance's server-side listen key validity window, per
// the GLOSSARY ("Listen key"). The client refreshes well inside this.
const listenKeyExpiry = 60 * time.Minute

// listenKeyClaims wraps the opaque listen key string in a locally-signed
// JWT so its issuance time and expiry travel with it as ordinary claims,
// rather than the client tracking a bare time.Time alongside the key.
// The signing key is ephemeral and per-process: nothing downstream of
// this client ever verifies the token, it exists purely so this client's
// own expiry bookkeeping reuses jwt's claim-parsing instead of a
// hand-rolled deadline field.
type listenKeyClaims struct {
	ListenKey string `json:"listen_key"`
	jwt.RegisteredClaims
}

// listenKeySession tracks one issued listen key as a signed token,
// letting the refresh loop's Expired check reuse jwt's expiry parsing instead of a
// hand-rolled deadline field.
type listenKeySession struct {
	secret []byte
	token  string
}

func newListenKeySession(listenKey string) (*listenKeySession, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("binance: generating session signing key: %w", err)
	}

	now := time.Now()
	claims := listenKeyClaims{
		ListenKey: listenKey,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(listenKeyExpiry)),
			Issuer:    "xchg-binance",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return nil, fmt.Errorf("binance: signing listen key session: %w", err)
	}
	return &listenKeySession{secret: secret, token: signed}, nil
}

// ListenKey recovers the bare listen key string from the session token.
func (s *listenKeySession) ListenKey() (string, error) {
	claims, err := s.parse()
	if err != nil {
		return "", err
	}
	return claims.ListenKey, nil
}

// Expired reports whether the session token has passed its claimed
// expiry, used as a defensive check alongside the refresh ticker in case
// a refresh tick was missed (e.g. the process was suspended).
func (s *listenKeySession) Expired() bool {
	_, err := s.parse()
	return err != nil
}

func (s *listenKeySession) parse() (*listenKeyClaims, error) {
	claims := &listenKeyClaims{}
	_, err := jwt.ParseWithClaims(s.token, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("binance: unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("binance: parsing listen key session: %w", err)
	}
	return claims, nil
}
