package proxy

import (
	"errors"
	"strings"

	"github.com/hyproxy/hyproxy/pkg/command"
	"github.com/hyproxy/hyproxy/pkg/hypixel"
	"github.com/hyproxy/hyproxy/pkg/proto/codec"
)

// proxyCommand couples a schema with its handler. A handler returns the
// chat string to show (or forward) and signals user mistakes with
// *command.Error.
type proxyCommand struct {
	spec command.Spec
	run  func(s *Session, args []string) (string, error)
}

var commandTable = []proxyCommand{
	{
		spec: command.Spec{Name: "requeue", Aliases: []string{"rq"}},
		run:  (*Session).cmdRequeue,
	},
	{
		spec: command.Spec{
			Name:    "statcheck",
			Aliases: []string{"sc"},
			Params: []command.Parameter{
				{Name: "ign"},
				{Name: "mode"},
				{Name: "stats", Variadic: true},
			},
		},
		run: (*Session).cmdStatcheck,
	},
	{
		spec: command.Spec{
			Name:    "autoboop",
			Aliases: []string{"ab"},
			Params:  []command.Parameter{{Name: "name"}},
		},
		run: (*Session).cmdAutoboop,
	},
	{
		spec: command.Spec{Name: "garlicbread"},
		run: func(*Session, []string) (string, error) {
			return "§eMmm, garlic bread.", nil
		},
	},
}

// commandIndex resolves names and aliases; populated once, then immutable.
var commandIndex = func() map[string]*proxyCommand {
	index := map[string]*proxyCommand{}
	for i := range commandTable {
		cmd := &commandTable[i]
		for _, name := range cmd.spec.Names() {
			index[name] = cmd
		}
	}
	return index
}()

// runCommand interprets a chat message beginning with "/". It reports
// whether the message was consumed; unknown commands are left for the
// server. A double slash forwards the command's output upstream as chat
// instead of showing it.
func (s *Session) runCommand(message string) bool {
	fields := strings.Fields(message)
	if len(fields) == 0 {
		return false
	}
	token := fields[0]
	name := strings.TrimPrefix(token, "/")
	forwardOutput := false
	if strings.HasPrefix(name, "/") {
		name = strings.TrimPrefix(name, "/")
		forwardOutput = true
	}

	cmd, ok := commandIndex[strings.ToLower(name)]
	if !ok {
		return false
	}

	output, err := s.invoke(cmd, token, fields[1:])
	if err != nil {
		var cmdErr *command.Error
		if errors.As(err, &cmdErr) {
			if err := s.sendClientChat(cmdErr.Message); err != nil {
				s.log.Debugw("Command error delivery failed", "error", err)
			}
		} else {
			s.log.Warnw("Command failed", "command", name, "error", err)
		}
		return true
	}
	if output == "" {
		return true
	}

	if forwardOutput {
		_ = s.sendUpstreamChat(codec.StripLegacy(output))
	} else {
		_ = s.sendClientChat(output)
	}
	return true
}

func (s *Session) invoke(cmd *proxyCommand, token string, args []string) (string, error) {
	resolved, err := cmd.spec.ResolveArgs(token, args)
	if err != nil {
		return "", err
	}
	return cmd.run(s, resolved)
}

func (s *Session) cmdRequeue([]string) (string, error) {
	s.mu.Lock()
	mode := s.game.Mode
	s.mu.Unlock()
	if mode == "" {
		return "", command.Errorf("§9§l∎ §4No game to requeue!")
	}
	return "", s.sendUpstreamChat("/play " + mode)
}

func (s *Session) cmdStatcheck(args []string) (string, error) {
	s.mu.Lock()
	gametype := s.game.GameType
	s.mu.Unlock()

	ign := s.username
	if len(args) > 0 && args[0] != "" {
		ign = args[0]
	}

	gamemode := ""
	if len(args) > 1 {
		if gamemode = command.Gamemode(args[1]); gamemode == "" {
			return "", command.Errorf("§9§l∎ §4Unknown gamemode '%s'!", args[1])
		}
	} else if gamemode = command.Gamemode(gametype); gamemode == "" {
		gamemode = "bedwars"
	}

	stats := command.DefaultStats(gamemode)
	if len(args) > 2 {
		stats = stats[:0]
		for _, arg := range args[2:] {
			stat := command.Statistic(arg, gamemode)
			if stat == "" {
				return "", command.Errorf("§9§l∎ §4Unknown statistic '%s' for gamemode %s!",
					arg, gamemode)
			}
			stats = append(stats, stat)
		}
	}

	if s.stats == nil {
		return "", command.Errorf("§9§l∎ §4Hypixel API features are disabled!")
	}
	player, err := s.stats.Player(s.ctx, ign)
	switch {
	case err == nil:
	case errors.Is(err, hypixel.ErrPlayerNotFound):
		return "", command.Errorf("§9§l∎ §4Player '%s' not found!", ign)
	case errors.Is(err, hypixel.ErrInvalidKey):
		return "", command.Errorf("§9§l∎ §4Invalid API Key!")
	case errors.Is(err, hypixel.ErrRateLimited):
		return "", command.Errorf("§9§l∎ §4Your API key is being rate limited; please wait a little bit!")
	default:
		s.log.Warnw("Statcheck failed", "player", ign, "error", err)
		return "", command.Errorf("§9§l∎ §4An unknown error occurred while fetching player '%s'!", ign)
	}

	return hypixel.FormatStats(player, gamemode, stats), nil
}

func (s *Session) cmdAutoboop(args []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(args) == 0 {
		if len(s.autoboops) == 0 {
			return "", command.Errorf("§9§l∎ §4No one in autoboop list!")
		}
		return "§9§l∎ §3People in autoboop list: §c" +
			strings.Join(s.autoboops, "§3, §c"), nil
	}

	name := strings.ToLower(args[0])
	for i, boop := range s.autoboops {
		if boop == name {
			s.autoboops = append(s.autoboops[:i], s.autoboops[i+1:]...)
			return "§9§l∎ §c" + name + " §3has been removed from autoboop", nil
		}
	}
	s.autoboops = append(s.autoboops, name)
	return "§9§l∎ §c" + name + " §3has been added to autoboop", nil
}
