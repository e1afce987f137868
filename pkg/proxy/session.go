package proxy

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/gammazero/deque"
	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/hyproxy/hyproxy/pkg/auth"
	"github.com/hyproxy/hyproxy/pkg/game"
	"github.com/hyproxy/hyproxy/pkg/hypixel"
	"github.com/hyproxy/hyproxy/pkg/proto"
	"github.com/hyproxy/hyproxy/pkg/proto/codec"
	"github.com/hyproxy/hyproxy/pkg/util/sets"
)

// statEntry is a resolved stat lookup cached by player name. The display
// text is unwrapped; team prefix/suffix are applied at emission time.
type statEntry struct {
	uuid    uuid.UUID
	display string
	nicked  bool
}

// Session is one proxied client connection and its upstream counterpart.
// It owns both transports, the world model and every task it spawns.
type Session struct {
	proxy *Proxy
	log   *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc
	eg     *errgroup.Group

	client *conn
	server *conn // nil until the client enters Login

	state atomic.Int32

	creds    *auth.Credentials
	stats    hypixel.Service
	username string
	brand    string

	// mu guards the world model below. Handlers and enrichment tasks
	// lock it; nothing holds it across an HTTP wait, but synthetic
	// display-name frames are written to the client while it is held.
	mu               sync.Mutex
	game             game.Game
	rqGame           game.Game
	teams            game.Teams
	players          *game.PlayerList
	withStats        map[string]statEntry
	gettingStats     sets.String
	pending          deque.Deque[string]
	waitingForLocraw bool
	locrawAttempt    int
	autoboops        []string

	sf singleflight.Group
}

func newSession(p *Proxy, clientConn net.Conn) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	eg, ctx := errgroup.WithContext(ctx)
	s := &Session{
		proxy:        p,
		log:          zap.S().With("client", clientConn.RemoteAddr().String()),
		ctx:          ctx,
		cancel:       cancel,
		eg:           eg,
		client:       newConn(clientConn, "client", p.readTimeout, p.writeTimeout),
		players:      game.NewPlayerList(),
		withStats:    map[string]statEntry{},
		gettingStats: sets.NewString(),
	}
	s.state.Store(int32(proto.Handshaking))
	return s
}

// run drives the session until either transport dies, then tears down.
func (s *Session) run() {
	s.eg.Go(func() error {
		return s.readLoop(s.client, proto.ServerBound)
	})
	err := s.eg.Wait()
	s.teardown()
	if err != nil && !isDisconnect(err) {
		s.log.Errorw("Session ended with error", "error", err)
	} else {
		s.log.Info("Session closed")
	}
}

// startServerLoop begins reading the upstream once it is connected.
func (s *Session) startServerLoop() {
	s.eg.Go(func() error {
		return s.readLoop(s.server, proto.ClientBound)
	})
}

func (s *Session) readLoop(c *conn, dir proto.Direction) error {
	defer func() {
		// Closing this side makes the sibling reader observe EOF.
		s.cancel()
		_ = c.Close()
	}()
	for {
		select {
		case <-s.ctx.Done():
			return nil
		default:
		}
		f, err := c.ReadFrame()
		if err != nil {
			if isDisconnect(err) || s.ctx.Err() != nil {
				return nil
			}
			return err
		}
		s.dispatch(dir, f)
	}
}

// dispatch routes one frame: a registered handler for the current state
// consumes it, everything else is forwarded verbatim.
func (s *Session) dispatch(dir proto.Direction, f *codec.Frame) {
	key := registryKey{dir, f.ID, s.State()}
	entry, ok := handlers[key]
	if !ok {
		s.forward(dir, f)
		return
	}
	if entry.blocking {
		if err := entry.fn(s, codec.NewBuffer(f.Payload), f); err != nil {
			s.log.Warnw("Handler failed", "packet", f.ID, "state", s.State(), "error", err)
		}
		return
	}
	s.eg.Go(func() error {
		if err := entry.fn(s, codec.NewBuffer(f.Payload), f); err != nil {
			s.log.Warnw("Handler failed", "packet", f.ID, "state", s.State(), "error", err)
		}
		return nil
	})
}

// forward relays f to the opposite transport. Frames with no destination
// yet (or after close) are dropped.
func (s *Session) forward(dir proto.Direction, f *codec.Frame) {
	dest := s.destination(dir)
	if dest == nil || dest.Closed() {
		s.log.Debugw("Dropping frame without destination", "packet", f.ID, "direction", dir)
		return
	}
	if err := dest.ForwardFrame(f); err != nil && !isDisconnect(err) {
		s.log.Debugw("Forward failed", "packet", f.ID, "error", err)
	}
}

func (s *Session) destination(dir proto.Direction) *conn {
	if dir == proto.ServerBound {
		return s.server
	}
	return s.client
}

// State returns the connection phase.
func (s *Session) State() proto.State {
	return proto.State(s.state.Load())
}

// setState advances the phase. The phase never regresses.
func (s *Session) setState(next proto.State) {
	for {
		cur := s.state.Load()
		if int32(next) <= cur {
			return
		}
		if s.state.CompareAndSwap(cur, int32(next)) {
			return
		}
	}
}

// sendClientChat shows text in the player's chat box.
func (s *Session) sendClientChat(text string) error {
	return s.client.WriteFrame(proto.IDChatClientbound,
		codec.PackChat(text), codec.PackByte(0))
}

// sendUpstreamChat speaks text upstream as if the player typed it.
func (s *Session) sendUpstreamChat(text string) error {
	if s.server == nil {
		return ErrClosedConn
	}
	return s.server.WriteFrame(proto.IDChatServerbound, codec.PackString(text))
}

func (s *Session) teardown() {
	s.cancel()
	_ = s.client.Close()
	if s.server != nil {
		_ = s.server.Close()
	}
	if s.stats != nil {
		if err := s.stats.Close(); err != nil {
			s.log.Debugw("Stats client close", "error", err)
		}
	}
}

// isDisconnect reports whether err is one of the ordinary ways a peer
// goes away, as opposed to a protocol or codec failure.
func isDisconnect(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) ||
		errors.Is(err, ErrClosedConn) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr *net.OpError
	return errors.As(err, &netErr)
}
