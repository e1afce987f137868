package proxy

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"net"
	"os"
	"strconv"

	"github.com/nfnt/resize"
	"go.uber.org/zap"

	"github.com/hyproxy/hyproxy/pkg/proto"
	"github.com/hyproxy/hyproxy/pkg/proto/codec"
)

// handleHandshake consumes the first frame of a connection and decides
// whether this is a server-list ping or a real login.
func (s *Session) handleHandshake(b *codec.Buffer, f *codec.Frame) error {
	// Degenerate ≤2-byte payloads are the tail of a server-list ping.
	if len(f.Payload) <= 2 {
		return nil
	}

	version, err := b.ReadVarInt()
	if err != nil {
		return err
	}
	if _, err := b.ReadString(); err != nil { // requested address, ignored
		return err
	}
	if _, err := b.ReadUnsignedShort(); err != nil { // requested port, ignored
		return err
	}
	next, err := b.ReadVarInt()
	if err != nil {
		return err
	}

	switch next {
	case 1:
		s.setState(proto.Status)
		return nil
	case 2:
		if version != proto.Version {
			return fmt.Errorf("unsupported protocol version %d", version)
		}
		s.setState(proto.Login)
		return s.connectUpstream()
	}
	return fmt.Errorf("handshake with invalid next state %d", next)
}

// connectUpstream dials the real server and replays the handshake with
// the upstream host so the session can proceed to login.
func (s *Session) connectUpstream() error {
	base, err := net.DialTimeout("tcp", s.proxy.cfg.Upstream, s.proxy.writeTimeout)
	if err != nil {
		return fmt.Errorf("dial upstream %s: %w", s.proxy.cfg.Upstream, err)
	}
	s.server = newConn(base, "server", s.proxy.readTimeout, s.proxy.writeTimeout)
	s.startServerLoop()
	s.log.Infow("Connected upstream", "upstream", s.proxy.cfg.Upstream)

	host, portStr, err := net.SplitHostPort(s.proxy.cfg.Upstream)
	if err != nil {
		return err
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return err
	}
	return s.server.WriteFrame(proto.IDHandshake,
		codec.PackVarInt(proto.Version),
		codec.PackString(host),
		codec.PackUnsignedShort(uint16(port)),
		codec.PackVarInt(2),
	)
}

// handleStatusRequest answers the server-list ping with our own listing.
func (s *Session) handleStatusRequest(*codec.Buffer, *codec.Frame) error {
	return s.client.WriteFrame(proto.IDStatusResponse,
		codec.PackString(s.proxy.statusJSON))
}

// handleStatusPing echoes the ping payload and ends the session.
func (s *Session) handleStatusPing(b *codec.Buffer, _ *codec.Frame) error {
	payload, err := b.ReadLong()
	if err != nil {
		return err
	}
	if err := s.client.WriteFrame(proto.IDStatusPong, codec.PackLong(payload)); err != nil {
		return err
	}
	s.cancel()
	return nil
}

// statusListing builds the server-list ping JSON once at startup.
func statusListing(motd, faviconPath string) string {
	listing := map[string]any{
		"version": map[string]any{
			"name":     proto.VersionName,
			"protocol": proto.Version,
		},
		"players": map[string]any{
			"max":    1,
			"online": 0,
		},
		"description": map[string]any{"text": motd},
	}
	if icon, err := loadFavicon(faviconPath); err == nil && icon != "" {
		listing["favicon"] = icon
	} else if err != nil {
		zap.S().Warnw("Could not load favicon", "path", faviconPath, "error", err)
	}
	raw, _ := json.Marshal(listing)
	return string(raw)
}

// loadFavicon reads a PNG and scales it to the 64x64 the client expects.
func loadFavicon(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	img = resize.Resize(64, 64, img, resize.Lanczos3)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
