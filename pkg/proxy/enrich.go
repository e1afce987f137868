package proxy

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/hyproxy/hyproxy/pkg/game"
	"github.com/hyproxy/hyproxy/pkg/hypixel"
	"github.com/hyproxy/hyproxy/pkg/proto"
	"github.com/hyproxy/hyproxy/pkg/util/sets"
)

// realPlayerPrefixes are the team prefixes Hypixel gives live players in
// pregame lobbies. Teams with any other prefix hold NPCs and decoration.
var realPlayerPrefixes = sets.NewString("§a", "§b", "§6", "§c", "§2", "§d", "§7")

// scanForStats queues a lookup for every real-player team member we have
// not resolved yet. Duplicates are suppressed by the in-flight set before
// anything is spawned.
func (s *Session) scanForStats() {
	if s.stats == nil {
		return
	}

	s.mu.Lock()
	for _, team := range s.teams.All() {
		if !realPlayerPrefixes.Has(strings.TrimSpace(team.Prefix)) {
			continue
		}
		for name := range team.Players {
			if !isASCII(name) {
				continue
			}
			if _, done := s.withStats[name]; done {
				continue
			}
			if s.gettingStats.Has(name) {
				continue
			}
			s.gettingStats.Insert(name)
			s.pending.PushBack(name)
		}
	}
	var queued []string
	for s.pending.Len() > 0 {
		queued = append(queued, s.pending.PopFront())
	}
	s.mu.Unlock()

	for _, name := range queued {
		name := name
		s.eg.Go(func() error {
			s.resolveStats(name)
			return nil
		})
	}
}

// resolveStats runs one lookup and integrates the result. The in-flight
// marker is dropped no matter how the lookup ends.
func (s *Session) resolveStats(name string) {
	defer func() {
		s.mu.Lock()
		s.gettingStats.Delete(name)
		s.mu.Unlock()
	}()

	v, err, _ := s.sf.Do(strings.ToLower(name), func() (any, error) {
		return s.stats.Player(s.ctx, name)
	})

	switch {
	case err == nil:
		s.integrateStats(name, v.(*hypixel.Player))
	case errors.Is(err, hypixel.ErrPlayerNotFound):
		s.integrateNick(name)
	default:
		// Rate limits, bad keys and transport trouble: log and let a
		// later refresh retry.
		s.log.Warnw("Stat lookup failed", "player", name, "error", err)
	}
}

func (s *Session) integrateStats(name string, p *hypixel.Player) {
	s.mu.Lock()
	defer s.mu.Unlock()

	team := s.teamOf(name)
	if isDecoyTeam(team) && !strings.HasPrefix(hypixel.FormatRank(p), "§c") {
		return
	}

	id := s.uuidOf(name)
	if id == uuid.Nil {
		if parsed, err := uuid.Parse(p.UUID); err == nil {
			id = parsed
		} else {
			return
		}
	}

	entry := statEntry{uuid: id, display: hypixel.DisplayName(p, s.game.GameType)}
	s.withStats[name] = entry
	s.emitDisplayNameLocked(name, entry)
}

// integrateNick handles names with no profile: almost certainly nicked.
func (s *Session) integrateNick(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if isDecoyTeam(s.teamOf(name)) {
		return
	}
	old := s.players.OldByName(name)
	if old == nil {
		return
	}
	entry := statEntry{uuid: old.UUID, display: "§5[NICK] " + name, nicked: true}
	s.withStats[name] = entry
	s.emitDisplayNameLocked(name, entry)
}

// emitCachedDisplayNames re-sends every cached display name, picking up
// whatever prefix and suffix the player's current team dictates.
func (s *Session) emitCachedDisplayNames() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, entry := range s.withStats {
		s.emitDisplayNameLocked(name, entry)
	}
}

// emitDisplayNameLocked writes a synthetic player-list-item update.
// Caller holds mu; the write itself does not block on the model.
func (s *Session) emitDisplayNameLocked(name string, entry statEntry) {
	display := entry.display
	if team := s.teamOf(name); team != nil {
		display = team.Prefix + display + team.Suffix
	}
	raw, _ := json.Marshal(map[string]string{"text": display})
	payload := game.PackDisplayNameUpdate(entry.uuid, string(raw))
	if err := s.client.WriteFrame(proto.IDPlayerListItem, payload); err != nil && !isDisconnect(err) {
		s.log.Debugw("Display name emission failed", "player", name, "error", err)
	}
}

// teamOf returns the team whose player set holds name. Caller holds mu.
func (s *Session) teamOf(name string) *game.Team {
	for _, team := range s.teams.All() {
		if team.Players.Has(name) {
			return team
		}
	}
	return nil
}

// uuidOf resolves a name to a uuid through the live list, then the old
// snapshot. Caller holds mu.
func (s *Session) uuidOf(name string) uuid.UUID {
	if e := s.players.ByName(name); e != nil {
		return e.UUID
	}
	if e := s.players.OldByName(name); e != nil {
		return e.UUID
	}
	return uuid.Nil
}

// isDecoyTeam identifies the red no-nametag team Hypixel fills with fake
// entries. Legitimately red-ranked players may false-positive here.
func isDecoyTeam(team *game.Team) bool {
	return team != nil && strings.TrimSpace(team.Prefix) == "§c" &&
		team.NameTagVisibility == "never"
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > 127 {
			return false
		}
	}
	return true
}
