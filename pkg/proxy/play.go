package proxy

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/hyproxy/hyproxy/pkg/game"
	"github.com/hyproxy/hyproxy/pkg/proto/codec"
	"github.com/hyproxy/hyproxy/pkg/util/sets"
)

var (
	locrawPattern     = regexp.MustCompile(`^\{.*\}$`)
	friendJoinPattern = regexp.MustCompile(`^Friend >.* joined\.`)
)

const locrawMaxRetries = 3

// handleJoinGame resets the per-game model, forwards the frame and kicks
// off the locraw probe to learn where we landed.
func (s *Session) handleJoinGame(_ *codec.Buffer, f *codec.Frame) error {
	s.mu.Lock()
	s.players.Reset()
	s.withStats = map[string]statEntry{}
	s.gettingStats = sets.NewString()
	s.game = game.Game{}
	brand := s.brand
	s.mu.Unlock()

	if err := s.client.ForwardFrame(f); err != nil {
		return err
	}

	// Lunar clients send their own locraw on join; probing again would
	// double the response.
	if brand != "lunar" {
		s.eg.Go(func() error {
			s.probeLocraw(0)
			return nil
		})
	}
	return nil
}

// probeLocraw asks the server for the current game context. Landing in
// limbo retries a few times, then gives up silently.
func (s *Session) probeLocraw(attempt int) {
	if attempt >= locrawMaxRetries {
		return
	}
	// The response sometimes lags right after a join; give it a moment.
	select {
	case <-time.After(100 * time.Millisecond):
	case <-s.ctx.Done():
		return
	}
	s.mu.Lock()
	s.waitingForLocraw = true
	s.locrawAttempt = attempt
	s.mu.Unlock()
	if err := s.sendUpstreamChat("/locraw"); err != nil {
		s.log.Debugw("Locraw probe failed", "error", err)
	}
}

// handleServerChat watches for the locraw response and friend joins;
// everything else passes through unchanged.
func (s *Session) handleServerChat(b *codec.Buffer, f *codec.Frame) error {
	text, err := b.ReadChat()
	if err != nil {
		return err
	}

	s.mu.Lock()
	waiting := s.waitingForLocraw
	attempt := s.locrawAttempt
	s.mu.Unlock()

	if waiting && locrawPattern.MatchString(text) {
		s.consumeLocraw(text, attempt)
		return nil
	}

	if friendJoinPattern.MatchString(text) {
		if err := s.client.ForwardFrame(f); err != nil {
			return err
		}
		s.eg.Go(func() error {
			s.autoboopJoin(text)
			return nil
		})
		return nil
	}

	return s.client.ForwardFrame(f)
}

// consumeLocraw folds the probe response into the game model. The
// response never reaches the client.
func (s *Session) consumeLocraw(text string, attempt int) {
	if strings.Contains(text, "limbo") {
		s.eg.Go(func() error {
			s.probeLocraw(attempt + 1)
			return nil
		})
		return
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		s.log.Debugw("Unparseable locraw response", "text", text, "error", err)
		return
	}
	s.mu.Lock()
	s.game.Update(data)
	if s.game.Mode != "" {
		s.rqGame = s.game
	}
	s.waitingForLocraw = false
	s.mu.Unlock()
	s.log.Debugw("Game updated", "server", s.game.Server, "gametype", s.game.GameType, "mode", s.game.Mode)
}

// autoboopJoin boops friends on the list as they join.
func (s *Session) autoboopJoin(joinMessage string) {
	fields := strings.Fields(joinMessage)
	if len(fields) < 3 {
		return
	}
	name := strings.ToLower(fields[2])

	// Give the join a moment to settle before chatting at them.
	select {
	case <-time.After(100 * time.Millisecond):
	case <-s.ctx.Done():
		return
	}

	s.mu.Lock()
	listed := false
	for _, boop := range s.autoboops {
		if boop == name {
			listed = true
			break
		}
	}
	s.mu.Unlock()
	if listed {
		_ = s.sendUpstreamChat("/boop " + name)
	}
}

// handleClientChat intercepts slash commands; everything else, including
// commands we do not know, goes upstream untouched.
func (s *Session) handleClientChat(b *codec.Buffer, f *codec.Frame) error {
	message, err := b.ReadString()
	if err != nil {
		return err
	}
	if !strings.HasPrefix(message, "/") {
		return s.server.ForwardFrame(f)
	}
	if s.runCommand(message) {
		return nil
	}
	return s.server.ForwardFrame(f)
}

// handlePluginMessage forwards the frame and sniffs the client brand.
func (s *Session) handlePluginMessage(b *codec.Buffer, f *codec.Frame) error {
	if err := s.server.ForwardFrame(f); err != nil {
		return err
	}
	channel, err := b.ReadString()
	if err != nil {
		return err
	}
	if channel != "MC|Brand" {
		return nil
	}
	data := b.Remaining()
	s.mu.Lock()
	switch {
	case strings.Contains(string(data), "lunarclient"):
		s.brand = "lunar"
	case strings.Contains(string(data), "vanilla"):
		s.brand = "vanilla"
	}
	s.mu.Unlock()
	return nil
}

// handlePlayerListItem folds tab-list updates into the model, forwards
// the frame and looks for new names to enrich.
func (s *Session) handlePlayerListItem(b *codec.Buffer, f *codec.Frame) error {
	s.mu.Lock()
	err := s.players.Apply(b)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if err := s.client.ForwardFrame(f); err != nil {
		return err
	}
	s.scanForStats()
	return nil
}

// handleTeams applies a teams packet, forwards it verbatim and then
// re-emits cached display names, since prefixes may have moved under
// players.
func (s *Session) handleTeams(b *codec.Buffer, f *codec.Frame) error {
	name, err := b.ReadString()
	if err != nil {
		return err
	}
	mode, err := b.Reader.ReadByte()
	if err != nil {
		return err
	}

	s.mu.Lock()
	err = s.applyTeams(name, mode, b)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if err := s.client.ForwardFrame(f); err != nil {
		return err
	}
	s.emitCachedDisplayNames()
	s.scanForStats()
	return nil
}

// applyTeams mutates the team collection for one packet. Caller holds mu.
func (s *Session) applyTeams(name string, mode byte, b *codec.Buffer) error {
	switch mode {
	case 0:
		team := &game.Team{Name: name, Players: sets.NewString()}
		if err := readTeamInfo(b, team); err != nil {
			return err
		}
		players, err := readTeamPlayers(b)
		if err != nil {
			return err
		}
		team.Players.Insert(players...)
		s.teams.Create(team)
	case 1:
		s.teams.Delete(name)
	case 2:
		team := s.teams.Get(name)
		if team == nil {
			// Metadata for a team we never saw created; tolerated.
			return nil
		}
		return readTeamInfo(b, team)
	case 3, 4:
		players, err := readTeamPlayers(b)
		if err != nil {
			return err
		}
		if mode == 3 {
			s.teams.AddPlayers(name, players)
		} else {
			s.teams.RemovePlayers(name, players)
		}
	}
	return nil
}

func readTeamInfo(b *codec.Buffer, team *game.Team) (err error) {
	if team.DisplayName, err = b.ReadString(); err != nil {
		return err
	}
	if team.Prefix, err = b.ReadString(); err != nil {
		return err
	}
	if team.Suffix, err = b.ReadString(); err != nil {
		return err
	}
	if team.FriendlyFire, err = b.Reader.ReadByte(); err != nil {
		return err
	}
	if team.NameTagVisibility, err = b.ReadString(); err != nil {
		return err
	}
	team.Color, err = b.Reader.ReadByte()
	return err
}

func readTeamPlayers(b *codec.Buffer) ([]string, error) {
	count, err := b.ReadVarInt()
	if err != nil {
		return nil, err
	}
	players := make([]string, 0, count)
	for i := int32(0); i < count; i++ {
		name, err := b.ReadString()
		if err != nil {
			return nil, err
		}
		players = append(players, name)
	}
	return players, nil
}
