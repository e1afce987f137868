package command

import "strings"

// gamemodes maps the canonical gamemode to its accepted spellings.
var gamemodes = map[string][]string{
	"bedwars": {"bedwars", "bw"},
	"skywars": {"skywars", "sw", "s"},
}

// statistics maps gamemode -> canonical stat -> accepted spellings.
var statistics = map[string]map[string][]string{
	"bedwars": {
		"Finals": {"finals", "final", "fk", "fks"},
		"FKDR":   {"fkdr", "fk/d"},
		"Wins":   {"wins", "win", "w"},
		"WLR":    {"wlr", "w/l"},
	},
	"skywars": {
		"Kills": {"kills", "kill", "k"},
		"KDR":   {"kdr", "k/d"},
		"Wins":  {"wins", "win", "w"},
		"WLR":   {"wlr", "w/l"},
	},
}

// Gamemode resolves a player-typed gamemode to its canonical name.
// The empty result means the spelling is unknown.
func Gamemode(value string) string {
	value = strings.ToLower(value)
	for canonical, spellings := range gamemodes {
		for _, s := range spellings {
			if s == value {
				return canonical
			}
		}
	}
	return ""
}

// Statistic resolves a player-typed stat name for the given canonical
// gamemode. The empty result means the spelling is unknown.
func Statistic(stat, gamemode string) string {
	stat = strings.ToLower(stat)
	for canonical, spellings := range statistics[gamemode] {
		for _, s := range spellings {
			if s == stat {
				return canonical
			}
		}
	}
	return ""
}

// DefaultStats returns the stat columns shown when the player names none.
func DefaultStats(gamemode string) []string {
	switch gamemode {
	case "bedwars":
		return []string{"Finals", "FKDR", "Wins", "WLR"}
	case "skywars":
		return []string{"Kills", "KDR", "Wins", "WLR"}
	}
	return nil
}
