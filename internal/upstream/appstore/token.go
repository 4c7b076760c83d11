package appstore

import (
	"encoding/base64"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"vanity/internal/upstreamerr"
)

// Apple caps token lifetime at 20 minutes. A cached token is reused until
// shortly before expiry so concurrent report fetches share one signature.
const (
	tokenLifetime     = 20 * time.Minute
	tokenExpiryBuffer = 60 * time.Second
	tokenAudience     = "appstoreconnect-v1"
)

type tokenSource struct {
	keyID    string
	issuerID string
	// base64-encoded PKCS#8 PEM
	privateKey string
	now        func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func newTokenSource(keyID, issuerID, privateKey string, now func() time.Time) *tokenSource {
	return &tokenSource{keyID: keyID, issuerID: issuerID, privateKey: privateKey, now: now}
}

func (t *tokenSource) bearer() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if t.token != "" && t.expiresAt.After(now.Add(tokenExpiryBuffer)) {
		return t.token, nil
	}

	pemKey, err := base64.StdEncoding.DecodeString(t.privateKey)
	if err != nil {
		return "", &upstreamerr.ConfigError{Var: "APP_STORE_CONNECT_PRIVATE_KEY", Reason: "not valid base64"}
	}
	key, err := jwt.ParseECPrivateKeyFromPEM(pemKey)
	if err != nil {
		return "", &upstreamerr.ConfigError{Var: "APP_STORE_CONNECT_PRIVATE_KEY", Reason: "not a valid EC private key"}
	}

	expiresAt := now.Add(tokenLifetime)
	claims := jwt.RegisteredClaims{
		Issuer:    t.issuerID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		Audience:  jwt.ClaimStrings{tokenAudience},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	tok.Header["kid"] = t.keyID

	signed, err := tok.SignedString(key)
	if err != nil {
		return "", &upstreamerr.ConfigError{Var: "APP_STORE_CONNECT_PRIVATE_KEY", Reason: "signing failed: " + err.Error()}
	}

	t.token = signed
	t.expiresAt = expiresAt
	return signed, nil
}
