package hypixel

import (
	"fmt"
	"strconv"
	"strings"
)

// parseLevel extracts the digits of a formatted level string like "§b12⋆".
func parseLevel(formatted string) int {
	var digits strings.Builder
	for _, r := range formatted {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	n, _ := strconv.Atoi(digits.String())
	return n
}

// FormatRank renders the colored rank tag, including the trailing space
// that separates it from the name. Unranked players collapse to gray.
func FormatRank(p *Player) string {
	plus := p.PlusColor
	if plus == "" {
		plus = "§c"
	}
	switch p.Rank {
	case "VIP":
		return "§a[VIP] "
	case "VIP+":
		return "§a[VIP§6+§a] "
	case "MVP":
		return "§b[MVP] "
	case "MVP+":
		return fmt.Sprintf("§b[MVP%s+§b] ", plus)
	case "MVP++":
		return fmt.Sprintf("§6[MVP%s++§6] ", plus)
	case "ADMIN", "OWNER":
		return fmt.Sprintf("§c[%s] ", p.Rank)
	case "GAME_MASTER", "GAME MASTER":
		return "§2[GM] "
	case "YOUTUBER", "YOUTUBE":
		return "§c[§fYOUTUBE§c] "
	case "PIG+++":
		return "§d[PIG§b+++§d] "
	}
	return "§7"
}

func plusColorCode(apiColor string) string {
	code, ok := plusColors[apiColor]
	if !ok {
		return ""
	}
	return code
}

var plusColors = map[string]string{
	"BLACK":        "§0",
	"DARK_BLUE":    "§1",
	"DARK_GREEN":   "§2",
	"DARK_AQUA":    "§3",
	"DARK_RED":     "§4",
	"DARK_PURPLE":  "§5",
	"GOLD":         "§6",
	"GRAY":         "§7",
	"DARK_GRAY":    "§8",
	"BLUE":         "§9",
	"GREEN":        "§a",
	"AQUA":         "§b",
	"RED":          "§c",
	"LIGHT_PURPLE": "§d",
	"YELLOW":       "§e",
	"WHITE":        "§f",
}

// FormatBedwarsLevel renders the prestige-colored star.
func FormatBedwarsLevel(level int) string {
	color := "§7"
	switch {
	case level >= 1000:
		color = "§6"
	case level >= 900:
		color = "§5"
	case level >= 800:
		color = "§9"
	case level >= 700:
		color = "§d"
	case level >= 600:
		color = "§4"
	case level >= 500:
		color = "§3"
	case level >= 400:
		color = "§2"
	case level >= 300:
		color = "§b"
	case level >= 200:
		color = "§6"
	case level >= 100:
		color = "§f"
	}
	return fmt.Sprintf("%s[%d✫]", color, level)
}

// FormatSkywarsLevel renders the skywars star.
func FormatSkywarsLevel(level int) string {
	color := "§7"
	switch {
	case level >= 50:
		color = "§5"
	case level >= 40:
		color = "§c"
	case level >= 30:
		color = "§6"
	case level >= 20:
		color = "§b"
	case level >= 10:
		color = "§f"
	}
	return fmt.Sprintf("%s[%d✯]", color, level)
}

// FormatRatio colors a kill/death-style ratio by bracket.
func FormatRatio(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	switch {
	case v < 1:
		return "§7" + s
	case v < 2.5:
		return "§e" + s
	case v < 5:
		return "§2" + s
	case v < 10:
		return "§b" + s
	case v < 20:
		return "§4" + s
	case v < 50:
		return "§5" + s
	case v < 100:
		return "§c" + s
	case v < 300:
		return "§d" + s
	case v < 1000:
		return "§9" + s
	}
	return "§0" + s
}

// FormatCount colors a lifetime counter (finals, wins) by bracket.
func FormatCount(v int) string {
	s := strconv.Itoa(v)
	switch {
	case v < 1000:
		return "§7" + s
	case v < 4000:
		return "§e" + s
	case v < 10000:
		return "§2" + s
	case v < 25000:
		return "§b" + s
	case v < 50000:
		return "§4" + s
	case v < 100000:
		return "§5" + s
	}
	return "§d" + s
}

// DisplayName renders the enriched tab-list name for the active gametype:
// level star, rank, name and headline ratio.
func DisplayName(p *Player, gametype string) string {
	switch gametype {
	case "skywars":
		return fmt.Sprintf("%s %s%s §f| %s",
			FormatSkywarsLevel(p.SkywarsLevel), FormatRank(p), p.Name, FormatRatio(p.KDR()))
	default: // bedwars is the headline mode
		return fmt.Sprintf("%s %s%s §f| %s",
			FormatBedwarsLevel(p.BedwarsLevel), FormatRank(p), p.Name, FormatRatio(p.FKDR()))
	}
}

// FormatStats renders the /sc response line for the requested columns.
func FormatStats(p *Player, gamemode string, stats []string) string {
	var sb strings.Builder
	switch gamemode {
	case "skywars":
		sb.WriteString(FormatSkywarsLevel(p.SkywarsLevel))
	default:
		sb.WriteString(FormatBedwarsLevel(p.BedwarsLevel))
	}
	sb.WriteString(" ")
	sb.WriteString(FormatRank(p))
	sb.WriteString(p.Name)
	for _, stat := range stats {
		sb.WriteString(" §f| §7")
		sb.WriteString(stat)
		sb.WriteString(": ")
		sb.WriteString(statValue(p, gamemode, stat))
	}
	return sb.String()
}

func statValue(p *Player, gamemode, stat string) string {
	if gamemode == "skywars" {
		switch stat {
		case "Kills":
			return FormatCount(p.Skywars.Kills)
		case "KDR":
			return FormatRatio(p.KDR())
		case "Wins":
			return FormatCount(p.Skywars.Wins)
		case "WLR":
			return FormatRatio(p.SkywarsWLR())
		}
		return "§7?"
	}
	switch stat {
	case "Finals":
		return FormatCount(p.Bedwars.FinalKills)
	case "FKDR":
		return FormatRatio(p.FKDR())
	case "Wins":
		return FormatCount(p.Bedwars.Wins)
	case "WLR":
		return FormatRatio(p.BedwarsWLR())
	}
	return "§7?"
}
