package notifly

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"notifly-go/internal/storage"
	"notifly-go/internal/syncer"
)

const authTokenKey = "notifly.auth_token"

// cachingCredentials persists the last good token in the kv store so a
// restarted host doesn't need a network round-trip before its first sync.
// Invalidate drops both the cached and the in-memory token.
type cachingCredentials struct {
	mu    sync.Mutex
	inner syncer.CredentialProvider
	kv    *storage.KV
	token string
}

func newCachingCredentials(inner syncer.CredentialProvider, kv *storage.KV) *cachingCredentials {
	return &cachingCredentials{inner: inner, kv: kv}
}

func (c *cachingCredentials) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return c.token, nil
	}
	if cached, ok, err := c.kv.GetString(authTokenKey); err == nil && ok {
		c.token = cached
		return cached, nil
	}
	if c.inner == nil {
		return "", nil
	}
	token, err := c.inner.Token(ctx)
	if err != nil {
		return "", err
	}
	c.token = token
	if err := c.kv.PutString(authTokenKey, token); err != nil {
		log.Warn().Err(err).Msg("failed to cache auth token")
	}
	return token, nil
}

func (c *cachingCredentials) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	if err := c.kv.Delete(authTokenKey); err != nil {
		log.Warn().Err(err).Msg("failed to drop cached auth token")
	}
	if c.inner != nil {
		c.inner.Invalidate()
	}
}
