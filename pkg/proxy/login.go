package proxy

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/hyproxy/hyproxy/pkg/proto"
	"github.com/hyproxy/hyproxy/pkg/proto/codec"
	"github.com/hyproxy/hyproxy/pkg/proto/crypto"
)

const sessionJoinURL = "https://sessionserver.mojang.com/session/minecraft/join"

// handleLoginStart records the player's username and forwards the login
// start upstream.
func (s *Session) handleLoginStart(b *codec.Buffer, f *codec.Frame) error {
	name, err := b.ReadString()
	if err != nil {
		return err
	}
	s.username = name
	s.log = s.log.With("username", name)
	return s.server.ForwardFrame(f)
}

// handleEncryptionRequest performs the whole online-mode dance: derive a
// shared secret, register the session with Mojang under the operator's
// credentials, answer with the encrypted secret and flip the upstream
// transport into encrypted mode.
//
// The client side never sees this exchange and stays unencrypted.
func (s *Session) handleEncryptionRequest(b *codec.Buffer, _ *codec.Frame) error {
	serverID, err := b.ReadString()
	if err != nil {
		return err
	}
	publicKeyDER, err := b.ReadByteArray()
	if err != nil {
		return err
	}
	verifyToken, err := b.ReadByteArray()
	if err != nil {
		return err
	}

	secret, err := crypto.NewSharedSecret()
	if err != nil {
		return err
	}
	digest := crypto.SessionDigest(serverID, secret, publicKeyDER)
	if err := s.joinSession(digest); err != nil {
		return err
	}

	publicKey, err := crypto.ParsePublicKey(publicKeyDER)
	if err != nil {
		return err
	}
	encryptedSecret, err := crypto.Encrypt(publicKey, secret)
	if err != nil {
		return err
	}
	encryptedToken, err := crypto.Encrypt(publicKey, verifyToken)
	if err != nil {
		return err
	}

	if err := s.server.WriteFrame(proto.IDEncryptionResponse,
		codec.PackByteArray(encryptedSecret),
		codec.PackByteArray(encryptedToken),
	); err != nil {
		return err
	}

	if err := s.server.EnableEncryption(secret); err != nil {
		return err
	}
	s.log.Info("Upstream encryption enabled")
	return nil
}

// joinSession registers the computed digest with the Mojang session
// server. Only a 204 means success; anything else is fatal to the session.
func (s *Session) joinSession(digest string) error {
	payload, err := json.Marshal(map[string]string{
		"accessToken":     s.creds.AccessToken,
		"selectedProfile": s.creds.UUID,
		"serverId":        digest,
	})
	if err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(s.proxy.sessionJoinURL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(payload)

	if err := s.proxy.http.DoTimeout(req, resp, 10*time.Second); err != nil {
		return fmt.Errorf("session join: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusNoContent {
		return fmt.Errorf("session join rejected: status %d %s",
			resp.StatusCode(), resp.Body())
	}
	return nil
}

// handleLoginSuccess moves the session into Play and hands the client its
// login success.
func (s *Session) handleLoginSuccess(_ *codec.Buffer, f *codec.Frame) error {
	s.setState(proto.Play)
	s.stats = s.proxy.newStatsService()
	return s.client.ForwardFrame(f)
}

// handleSetCompression installs the negotiated threshold on both
// transports and lets the client see the packet so its side compresses
// too.
func (s *Session) handleSetCompression(b *codec.Buffer, f *codec.Frame) error {
	threshold, err := b.ReadVarInt()
	if err != nil {
		return err
	}
	if err := s.client.ForwardFrame(f); err != nil {
		return err
	}
	s.client.SetCompressionThreshold(int(threshold))
	s.server.SetCompressionThreshold(int(threshold))
	return nil
}
