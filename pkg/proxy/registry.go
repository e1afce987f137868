package proxy

import (
	"github.com/hyproxy/hyproxy/pkg/proto"
	"github.com/hyproxy/hyproxy/pkg/proto/codec"
)

// handlerFunc processes one intercepted frame. A handler that wants the
// frame to reach the other side forwards it itself; returning without
// forwarding drops it.
type handlerFunc func(s *Session, b *codec.Buffer, f *codec.Frame) error

type registryKey struct {
	dir   proto.Direction
	id    int32
	state proto.State
}

type handlerEntry struct {
	fn handlerFunc
	// blocking handlers run on the reader loop; their world-model
	// mutations are visible before the next frame of that direction is
	// parsed. Non-blocking handlers run as their own goroutine.
	blocking bool
}

// registry maps (direction, packet id, state) to a handler. Built once at
// package init and immutable afterwards; unknown keys mean verbatim
// forwarding.
type registry map[registryKey]handlerEntry

var handlers registry

func init() {
	handlers = buildRegistry()
}

func buildRegistry() registry {
	r := registry{}
	client := func(id int32, state proto.State, blocking bool, fn handlerFunc) {
		r[registryKey{proto.ServerBound, id, state}] = handlerEntry{fn, blocking}
	}
	server := func(id int32, state proto.State, blocking bool, fn handlerFunc) {
		r[registryKey{proto.ClientBound, id, state}] = handlerEntry{fn, blocking}
	}

	client(proto.IDHandshake, proto.Handshaking, true, (*Session).handleHandshake)
	client(proto.IDStatusRequest, proto.Status, true, (*Session).handleStatusRequest)
	client(proto.IDStatusPing, proto.Status, true, (*Session).handleStatusPing)

	client(proto.IDLoginStart, proto.Login, true, (*Session).handleLoginStart)
	server(proto.IDEncryptionRequest, proto.Login, true, (*Session).handleEncryptionRequest)
	server(proto.IDLoginSuccess, proto.Login, true, (*Session).handleLoginSuccess)
	server(proto.IDSetCompression, proto.Login, true, (*Session).handleSetCompression)

	client(proto.IDChatServerbound, proto.Play, false, (*Session).handleClientChat)
	client(proto.IDPluginMessage, proto.Play, false, (*Session).handlePluginMessage)
	server(proto.IDJoinGame, proto.Play, true, (*Session).handleJoinGame)
	server(proto.IDChatClientbound, proto.Play, true, (*Session).handleServerChat)
	server(proto.IDPlayerListItem, proto.Play, true, (*Session).handlePlayerListItem)
	server(proto.IDTeams, proto.Play, true, (*Session).handleTeams)

	return r
}
