package config

import (
	"sync"
	"time"
)

var (
	jwtSecretMu sync.RWMutex
	// JWTSecret is the raw secret the token signing key is derived from.
	// Empty means a random per-process secret is generated at startup.
	JWTSecret = []byte(GetEnvOrDefault("JWT_SECRET", ""))
)

// SetJWTSecret temporarily changes the JWT secret and returns a function to restore it
// This is primarily used for testing
func SetJWTSecret(secret []byte) func() {
	jwtSecretMu.Lock()
	previous := JWTSecret
	JWTSecret = secret
	jwtSecretMu.Unlock()

	return func() {
		jwtSecretMu.Lock()
		JWTSecret = previous
		jwtSecretMu.Unlock()
	}
}

// GetJWTSecret returns the current JWT secret in a thread-safe manner
func GetJWTSecret() []byte {
	jwtSecretMu.RLock()
	defer jwtSecretMu.RUnlock()
	return JWTSecret
}

// GetTokenTTL returns how long an issued token stays valid.
func GetTokenTTL() time.Duration {
	return parseEnvDuration("TOKEN_TTL", time.Hour)
}

// GetTokenIssuer returns the iss claim written into and required from every token.
func GetTokenIssuer() string {
	return GetEnvOrDefault("TOKEN_ISSUER", "sessiond")
}
