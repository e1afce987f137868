// Package game holds the per-session model of the current Hypixel
// lobby/game: the locraw-derived Game descriptor, the scoreboard teams
// and the tab-list player entries.
package game

import "strings"

// Game describes the lobby or match the player currently sits in, as
// reported by the server's locraw JSON. All strings are lowercased at set
// time; missing keys reset to empty.
type Game struct {
	Server    string
	GameType  string
	Mode      string
	Map       string
	LobbyName string
	Pregame   bool
}

// Update fully overwrites the descriptor from a decoded locraw document.
func (g *Game) Update(data map[string]any) {
	g.Server = lowered(data, "server")
	g.GameType = lowered(data, "gametype")
	g.Mode = lowered(data, "mode")
	g.Map = lowered(data, "map")
	g.LobbyName = lowered(data, "lobbyname")
	// A lobbyname means we are queueing, not playing.
	g.Pregame = g.LobbyName != "" && g.GameType != ""
}

func lowered(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return strings.ToLower(s)
}
