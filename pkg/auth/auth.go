// Package auth acquires and caches the Minecraft credentials the proxy
// presents to the upstream server: Microsoft OAuth, Xbox Live, XSTS and
// finally the Minecraft services token and profile.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Credentials is everything a session needs to log into the upstream
// server on the operator's behalf.
type Credentials struct {
	AccessToken string    `json:"access_token"`
	UUID        string    `json:"uuid"` // without dashes
	Username    string    `json:"username"`
	GeneratedAt time.Time `json:"generated_at"`

	RefreshToken string `json:"refresh_token,omitempty"`
}

// Provider hands out valid credentials, refreshing them when stale.
type Provider interface {
	Credentials(ctx context.Context) (*Credentials, error)
}

// Tokens nominally live 86 400 s; refresh a little before that.
const tokenLifetime = 86_000 * time.Second

// CachedProvider wraps the Microsoft login cascade with a JSON cache file
// in the user cache directory. Cache corruption or absence just forces a
// fresh login.
type CachedProvider struct {
	path string
	msa  *msaClient
	log  *zap.SugaredLogger
}

// NewCachedProvider returns a provider caching under dir.
func NewCachedProvider(dir string) *CachedProvider {
	return &CachedProvider{
		path: filepath.Join(dir, "auth.json"),
		msa:  newMSAClient(),
		log:  zap.S().Named("auth"),
	}
}

// Credentials returns cached credentials if fresh, otherwise runs the
// login cascade (preferring a silent refresh-token exchange) and rewrites
// the cache.
func (p *CachedProvider) Credentials(ctx context.Context) (*Credentials, error) {
	cached := p.load()
	if cached != nil && time.Since(cached.GeneratedAt) < tokenLifetime {
		return cached, nil
	}

	var creds *Credentials
	var err error
	if cached != nil && cached.RefreshToken != "" {
		creds, err = p.msa.Refresh(ctx, cached.RefreshToken)
		if err != nil {
			p.log.Infow("Token refresh failed, falling back to interactive login", "error", err)
		}
	}
	if creds == nil {
		creds, err = p.msa.Login(ctx)
		if err != nil {
			return nil, fmt.Errorf("auth: login cascade: %w", err)
		}
	}

	creds.GeneratedAt = time.Now()
	if err := p.store(creds); err != nil {
		p.log.Warnw("Could not persist credentials", "error", err)
	}
	return creds, nil
}

func (p *CachedProvider) load() *Credentials {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		return nil
	}
	var creds Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		p.log.Debugw("Discarding corrupt credential cache", "path", p.path, "error", err)
		return nil
	}
	if creds.AccessToken == "" || creds.UUID == "" {
		return nil
	}
	return &creds
}

func (p *CachedProvider) store(creds *Credentials) error {
	raw, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(p.path, raw, 0o600)
}

// StaticProvider returns fixed credentials, mainly for tests and for
// operators supplying a token out of band.
type StaticProvider Credentials

func (p *StaticProvider) Credentials(context.Context) (*Credentials, error) {
	return (*Credentials)(p), nil
}
