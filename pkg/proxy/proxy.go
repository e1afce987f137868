// Package proxy implements the man-in-the-middle session engine: one
// accepted game client, one upstream connection, and the packet
// interception between them.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/hyproxy/hyproxy/pkg/auth"
	"github.com/hyproxy/hyproxy/pkg/config"
	"github.com/hyproxy/hyproxy/pkg/hypixel"
)

// Proxy accepts client connections and runs a Session for each.
type Proxy struct {
	cfg      *config.Config
	creds    auth.Provider
	http     *fasthttp.Client
	cacheDir string

	statusJSON     string
	sessionJoinURL string
	readTimeout    time.Duration
	writeTimeout   time.Duration

	mu       sync.Mutex
	ln       net.Listener
	sessions map[*Session]struct{}
	closed   bool
}

// New builds a Proxy from the validated config and a credential provider.
func New(cfg *config.Config, creds auth.Provider, cacheDir string) *Proxy {
	return &Proxy{
		cfg:            cfg,
		creds:          creds,
		http:           &fasthttp.Client{},
		cacheDir:       cacheDir,
		statusJSON:     statusListing(cfg.Motd, cfg.Favicon),
		sessionJoinURL: sessionJoinURL,
		readTimeout:    time.Duration(cfg.ReadTimeout) * time.Millisecond,
		writeTimeout:   time.Duration(cfg.ConnectionTimeout) * time.Millisecond,
		sessions:       map[*Session]struct{}{},
	}
}

// newStatsService builds the per-session statistics client. Returns nil
// when no API key is configured, which disables enrichment and /sc.
func (p *Proxy) newStatsService() hypixel.Service {
	if p.cfg.HypixelAPIKey == "" {
		return nil
	}
	return hypixel.NewClient(p.cfg.HypixelAPIKey, p.cacheDir)
}

// Run listens and serves until Shutdown. Per-session failures never
// escape their session; the accept loop logs and keeps going.
func (p *Proxy) Run() error {
	ln, err := net.Listen("tcp", p.cfg.Bind)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", p.cfg.Bind, err)
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = ln.Close()
		return errors.New("proxy already shut down")
	}
	p.ln = ln
	p.mu.Unlock()

	zap.S().Infof("Listening on %s, proxying to %s", p.cfg.Bind, p.cfg.Upstream)

	for {
		clientConn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			zap.L().Error("Accept failed", zap.Error(err))
			continue
		}
		go p.serve(clientConn)
	}
}

func (p *Proxy) serve(clientConn net.Conn) {
	log := zap.S().With("client", clientConn.RemoteAddr().String())
	log.Info("Client connected")

	creds, err := p.creds.Credentials(context.Background())
	if err != nil {
		log.Errorw("No credentials available", "error", err)
		_ = clientConn.Close()
		return
	}

	s := newSession(p, clientConn)
	s.creds = creds

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = clientConn.Close()
		return
	}
	p.sessions[s] = struct{}{}
	p.mu.Unlock()

	s.run()

	p.mu.Lock()
	delete(p.sessions, s)
	p.mu.Unlock()
}

// Shutdown stops accepting and tears down every live session.
func (p *Proxy) Shutdown() {
	p.mu.Lock()
	p.closed = true
	ln := p.ln
	live := make([]*Session, 0, len(p.sessions))
	for s := range p.sessions {
		live = append(live, s)
	}
	p.mu.Unlock()

	if ln != nil {
		_ = ln.Close()
	}
	for _, s := range live {
		s.cancel()
		_ = s.client.Close()
	}
}
