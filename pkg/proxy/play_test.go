package proxy

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyproxy/hyproxy/pkg/auth"
	"github.com/hyproxy/hyproxy/pkg/game"
	"github.com/hyproxy/hyproxy/pkg/hypixel"
	"github.com/hyproxy/hyproxy/pkg/proto"
	"github.com/hyproxy/hyproxy/pkg/proto/codec"
	"github.com/hyproxy/hyproxy/pkg/util/sets"
)

// playSession builds a session already in the play state with pipes on
// both sides. The returned conns are the test's ends.
func playSession(t *testing.T) (*Session, net.Conn, net.Conn) {
	t.Helper()
	clientSide, proxyClient := net.Pipe()
	serverSide, proxyServer := net.Pipe()

	p := New(testConfig(), &auth.StaticProvider{}, "")
	s := newSession(p, proxyClient)
	s.creds = testCreds()
	s.username = "tester"
	s.server = newConn(proxyServer, "server", 0, 0)
	s.state.Store(int32(proto.Play))

	t.Cleanup(func() {
		s.teardown()
		_ = clientSide.Close()
		_ = serverSide.Close()
	})
	return s, clientSide, serverSide
}

// readFrame reads one frame with a deadline.
func readFrame(t *testing.T, c net.Conn, within time.Duration) *codec.Frame {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(within)))
	f, err := codec.NewDecoder(c).ReadFrame()
	require.NoError(t, err)
	return f
}

// expectSilence asserts no frame arrives on c for a little while.
func expectSilence(t *testing.T, c net.Conn) {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	buf := make([]byte, 1)
	_, err := c.Read(buf)
	assert.Error(t, err, "expected no traffic")
}

func chatText(t *testing.T, f *codec.Frame) string {
	t.Helper()
	require.Equal(t, proto.IDChatClientbound, f.ID)
	raw, err := codec.NewBuffer(f.Payload).ReadByteArray()
	require.NoError(t, err)
	var doc struct {
		Text string `json:"text"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	return doc.Text
}

func TestRequeueWithGame(t *testing.T) {
	s, clientSide, serverSide := playSession(t)
	s.game.Mode = "eight_one"

	done := make(chan bool, 1)
	go func() { done <- s.runCommand("/rq") }()

	f := readFrame(t, serverSide, time.Second)
	assert.Equal(t, proto.IDChatServerbound, f.ID)
	msg, err := codec.NewBuffer(f.Payload).ReadString()
	require.NoError(t, err)
	assert.Equal(t, "/play eight_one", msg)

	assert.True(t, <-done)
	expectSilence(t, clientSide)
}

func TestRequeueWithoutGame(t *testing.T) {
	s, clientSide, serverSide := playSession(t)

	done := make(chan bool, 1)
	go func() { done <- s.runCommand("/rq") }()

	f := readFrame(t, clientSide, time.Second)
	assert.Equal(t, "§9§l∎ §4No game to requeue!", chatText(t, f))
	assert.True(t, <-done)
	expectSilence(t, serverSide)
}

func TestUnknownCommandNotConsumed(t *testing.T) {
	s, _, _ := playSession(t)
	assert.False(t, s.runCommand("/unknown foo"))
}

func TestStatcheckUnknownGamemode(t *testing.T) {
	s, clientSide, _ := playSession(t)

	done := make(chan bool, 1)
	go func() { done <- s.runCommand("/sc me notagamemode") }()

	f := readFrame(t, clientSide, time.Second)
	assert.Contains(t, chatText(t, f), "§9§l∎ §4Unknown gamemode 'notagamemode'!")
	assert.True(t, <-done)
}

func TestGarlicBread(t *testing.T) {
	s, clientSide, _ := playSession(t)

	go s.runCommand("/garlicbread")
	f := readFrame(t, clientSide, time.Second)
	assert.Equal(t, "§eMmm, garlic bread.", chatText(t, f))
}

func TestDoubleSlashForwardsOutputUpstream(t *testing.T) {
	s, _, serverSide := playSession(t)

	go s.runCommand("//garlicbread")
	f := readFrame(t, serverSide, time.Second)
	require.Equal(t, proto.IDChatServerbound, f.ID)
	msg, err := codec.NewBuffer(f.Payload).ReadString()
	require.NoError(t, err)
	assert.Equal(t, "Mmm, garlic bread.", msg, "legacy codes are stripped upstream")
}

func TestAutoboopToggle(t *testing.T) {
	s, clientSide, _ := playSession(t)

	go s.runCommand("/autoboop Steve")
	f := readFrame(t, clientSide, time.Second)
	assert.Contains(t, chatText(t, f), "steve §3has been added to autoboop")

	go s.runCommand("/ab steve")
	f = readFrame(t, clientSide, time.Second)
	assert.Contains(t, chatText(t, f), "steve §3has been removed from autoboop")

	go s.runCommand("/ab")
	f = readFrame(t, clientSide, time.Second)
	assert.Equal(t, "§9§l∎ §4No one in autoboop list!", chatText(t, f))
}

func chatFrame(text string) *codec.Frame {
	payload := append(codec.PackChat(text), codec.PackByte(0)...)
	return &codec.Frame{ID: proto.IDChatClientbound, Payload: payload}
}

func TestLocrawResponseConsumed(t *testing.T) {
	s, clientSide, _ := playSession(t)
	s.waitingForLocraw = true

	locraw := `{"server":"mini121","gametype":"BEDWARS","mode":"EIGHT_ONE","map":"Lighthouse"}`
	f := chatFrame(locraw)
	require.NoError(t, s.handleServerChat(codec.NewBuffer(f.Payload), f))

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Equal(t, "bedwars", s.game.GameType)
	assert.Equal(t, "eight_one", s.game.Mode)
	assert.Equal(t, s.game, s.rqGame, "a mode-carrying update also arms requeue")
	assert.False(t, s.waitingForLocraw)
	expectSilence(t, clientSide)
}

func TestLocrawIdempotent(t *testing.T) {
	s, _, _ := playSession(t)
	locraw := `{"server":"mini121","gametype":"BEDWARS","mode":"EIGHT_ONE","map":"Lighthouse"}`

	s.waitingForLocraw = true
	f := chatFrame(locraw)
	require.NoError(t, s.handleServerChat(codec.NewBuffer(f.Payload), f))
	first := s.game

	s.waitingForLocraw = true
	f = chatFrame(locraw)
	require.NoError(t, s.handleServerChat(codec.NewBuffer(f.Payload), f))
	assert.Equal(t, first, s.game)
}

func TestLocrawLimboRetries(t *testing.T) {
	s, _, serverSide := playSession(t)
	s.waitingForLocraw = true

	f := chatFrame(`{"server":"limbo"}`)
	require.NoError(t, s.handleServerChat(codec.NewBuffer(f.Payload), f))

	// The retry fires after a settle delay.
	got := readFrame(t, serverSide, 2*time.Second)
	assert.Equal(t, proto.IDChatServerbound, got.ID)
	msg, err := codec.NewBuffer(got.Payload).ReadString()
	require.NoError(t, err)
	assert.Equal(t, "/locraw", msg)
	s.mu.Lock()
	assert.True(t, s.waitingForLocraw)
	s.mu.Unlock()
}

func TestOrdinaryChatPassesThrough(t *testing.T) {
	s, clientSide, _ := playSession(t)

	f := chatFrame("Hello there")
	go func() { _ = s.handleServerChat(codec.NewBuffer(f.Payload), f) }()
	got := readFrame(t, clientSide, time.Second)
	assert.Equal(t, f.Payload, got.Payload)
}

// fakeStats is a scriptable statistics service.
type fakeStats struct {
	mu     sync.Mutex
	calls  map[string]int
	player *hypixel.Player
	err    error
	gate   chan struct{} // lookups block here when non-nil
}

func (f *fakeStats) Player(ctx context.Context, name string) (*hypixel.Player, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[name]++
	f.mu.Unlock()
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.player, nil
}

func (f *fakeStats) Close() error { return nil }

func (f *fakeStats) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func addPlayerEntry(s *Session, id uuid.UUID, name string) {
	s.players.Players[id] = &game.PlayerEntry{UUID: id, Name: name}
	s.players.PlayersOld[id] = s.players.Players[id]
}

func TestEnrichmentDeduplicatesInflight(t *testing.T) {
	s, clientSide, _ := playSession(t)
	stats := &fakeStats{
		player: &hypixel.Player{Name: "Steve", BedwarsLevel: 100},
		gate:   make(chan struct{}),
	}
	s.stats = stats

	id := uuid.New()
	addPlayerEntry(s, id, "Steve")
	s.teams.Create(&game.Team{Name: "team1", Prefix: "§a", Players: sets.NewString("Steve")})

	s.scanForStats()
	s.scanForStats() // second scan while the first lookup is in flight

	close(stats.gate)
	f := readFrame(t, clientSide, 2*time.Second)
	require.Equal(t, proto.IDPlayerListItem, f.ID)
	assert.Equal(t, 1, stats.callCount("Steve"))

	b := codec.NewBuffer(f.Payload)
	action, err := b.ReadVarInt()
	require.NoError(t, err)
	assert.Equal(t, game.PlayerActionUpdateDisplay, action)
	count, err := b.ReadVarInt()
	require.NoError(t, err)
	assert.Equal(t, int32(1), count)
	gotID, err := b.ReadUUID()
	require.NoError(t, err)
	assert.Equal(t, id, gotID)

	// In-flight marker released after integration; the name is cached now.
	s.mu.Lock()
	defer s.mu.Unlock()
	assert.False(t, s.gettingStats.Has("Steve"))
	assert.Contains(t, s.withStats, "Steve")
}

func TestEnrichmentWrapsWithTeamPrefix(t *testing.T) {
	s, clientSide, _ := playSession(t)
	s.stats = &fakeStats{player: &hypixel.Player{Name: "Steve", BedwarsLevel: 1}}

	id := uuid.New()
	addPlayerEntry(s, id, "Steve")
	s.teams.Create(&game.Team{
		Name: "team1", Prefix: "§a", Suffix: " §7[TAG]",
		Players: sets.NewString("Steve"),
	})

	s.scanForStats()
	f := readFrame(t, clientSide, 2*time.Second)
	b := codec.NewBuffer(f.Payload)
	_, _ = b.ReadVarInt()
	_, _ = b.ReadVarInt()
	_, _ = b.ReadUUID()
	has, err := b.ReadBool()
	require.NoError(t, err)
	require.True(t, has)
	raw, err := b.ReadByteArray()
	require.NoError(t, err)

	var doc struct {
		Text string `json:"text"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Contains(t, doc.Text, "Steve")
	assert.True(t, len(doc.Text) > len("Steve"))
	assert.Equal(t, "§a", doc.Text[:len("§a")], "team prefix wraps the display name")
	assert.Contains(t, doc.Text, " §7[TAG]")
}

func TestEnrichmentNickFallback(t *testing.T) {
	s, clientSide, _ := playSession(t)
	s.stats = &fakeStats{err: hypixel.ErrPlayerNotFound}

	id := uuid.New()
	addPlayerEntry(s, id, "Disguised")
	s.teams.Create(&game.Team{Name: "t", Prefix: "§c", Players: sets.NewString("Disguised")})

	s.scanForStats()
	f := readFrame(t, clientSide, 2*time.Second)
	b := codec.NewBuffer(f.Payload)
	_, _ = b.ReadVarInt()
	_, _ = b.ReadVarInt()
	gotID, err := b.ReadUUID()
	require.NoError(t, err)
	assert.Equal(t, id, gotID, "uuid recovered from the old snapshot")
	has, _ := b.ReadBool()
	require.True(t, has)
	raw, _ := b.ReadByteArray()
	assert.Contains(t, string(raw), "[NICK] Disguised")
}

func TestEnrichmentErrorReleasesInflight(t *testing.T) {
	s, _, _ := playSession(t)
	s.stats = &fakeStats{err: hypixel.ErrRateLimited}

	addPlayerEntry(s, uuid.New(), "Steve")
	s.teams.Create(&game.Team{Name: "t", Prefix: "§a", Players: sets.NewString("Steve")})

	s.scanForStats()
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return !s.gettingStats.Has("Steve")
	}, 2*time.Second, 10*time.Millisecond)

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.NotContains(t, s.withStats, "Steve", "failed lookups are not cached")
}

func TestEnrichmentSkipsNonAsciiAndForeignTeams(t *testing.T) {
	s, _, _ := playSession(t)
	stats := &fakeStats{player: &hypixel.Player{Name: "x"}}
	s.stats = stats

	s.teams.Create(&game.Team{Name: "npc", Prefix: "§8", Players: sets.NewString("Shopkeeper")})
	s.teams.Create(&game.Team{Name: "t", Prefix: "§a", Players: sets.NewString("Sträy")})

	s.scanForStats()
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, stats.callCount("Shopkeeper"), "dark-gray (§8) teams are not real players")
	assert.Zero(t, stats.callCount("Sträy"), "non-ascii names are never looked up")
}

func TestJoinGameResetsModel(t *testing.T) {
	s, clientSide, serverSide := playSession(t)
	s.stats = &fakeStats{}

	addPlayerEntry(s, uuid.New(), "Old")
	s.withStats["Old"] = statEntry{}
	s.game.Mode = "eight_one"

	f := &codec.Frame{ID: proto.IDJoinGame, Payload: []byte{1, 0, 0}}
	go func() { _ = s.handleJoinGame(codec.NewBuffer(f.Payload), f) }()

	forwarded := readFrame(t, clientSide, time.Second)
	assert.Equal(t, proto.IDJoinGame, forwarded.ID)

	s.mu.Lock()
	assert.Empty(t, s.players.Players)
	assert.Empty(t, s.players.PlayersOld)
	assert.Empty(t, s.withStats)
	assert.Empty(t, s.game.Mode)
	s.mu.Unlock()

	// The probe follows after the settle delay.
	probe := readFrame(t, serverSide, 2*time.Second)
	assert.Equal(t, proto.IDChatServerbound, probe.ID)
}

func TestTeamsPacketRoundTripThroughHandler(t *testing.T) {
	s, clientSide, _ := playSession(t)

	create := append(codec.PackString("A"), 0x00)
	create = append(create, codec.PackString("A")...)  // display name
	create = append(create, codec.PackString("§a")...) // prefix
	create = append(create, codec.PackString("")...)   // suffix
	create = append(create, 0x00)                      // friendly fire
	create = append(create, codec.PackString("always")...)
	create = append(create, 0x00) // color
	create = append(create, codec.PackVarInt(2)...)
	create = append(create, codec.PackString("p1")...)
	create = append(create, codec.PackString("p2")...)

	remove := append(codec.PackString("A"), 0x04)
	remove = append(remove, codec.PackVarInt(1)...)
	remove = append(remove, codec.PackString("p2")...)

	add := append(codec.PackString("A"), 0x03)
	add = append(add, codec.PackVarInt(2)...)
	add = append(add, codec.PackString("p3")...)
	add = append(add, codec.PackString("p2")...)

	for _, payload := range [][]byte{create, remove, add} {
		payload := payload
		f := &codec.Frame{ID: proto.IDTeams, Payload: payload}
		go func() { _ = s.handleTeams(codec.NewBuffer(f.Payload), f) }()
		got := readFrame(t, clientSide, time.Second)
		assert.Equal(t, payload, got.Payload, "teams frames forward verbatim")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	team := s.teams.Get("A")
	require.NotNil(t, team)
	assert.ElementsMatch(t, []string{"p1", "p2", "p3"}, team.Players.UnsortedList())
}
