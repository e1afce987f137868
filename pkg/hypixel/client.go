// Package hypixel consumes the Hypixel and Mojang public APIs to resolve
// player identities and fetch per-gamemode statistics.
package hypixel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Failure classes of the statistics service. Callers branch on these with
// errors.Is; anything else is a transport failure.
var (
	ErrPlayerNotFound = errors.New("hypixel: player not found")
	ErrInvalidKey     = errors.New("hypixel: invalid api key")
	ErrRateLimited    = errors.New("hypixel: key is rate limited")
)

// Service is the abstract statistics backend the proxy consumes.
type Service interface {
	// Player resolves name to its profile and stats.
	Player(ctx context.Context, name string) (*Player, error)
	Close() error
}

// Player carries the subset of a Hypixel profile the proxy renders.
type Player struct {
	UUID      string `json:"uuid"`
	Name      string `json:"name"`
	Rank      string `json:"rank"`
	PlusColor string `json:"plus_color"`

	BedwarsLevel int          `json:"bedwars_level"`
	Bedwars      BedwarsStats `json:"bedwars"`
	SkywarsLevel int          `json:"skywars_level"`
	Skywars      SkywarsStats `json:"skywars"`
}

// BedwarsStats are overall bedwars counters.
type BedwarsStats struct {
	Kills       int `json:"kills"`
	Deaths      int `json:"deaths"`
	FinalKills  int `json:"final_kills"`
	FinalDeaths int `json:"final_deaths"`
	Wins        int `json:"wins"`
	Losses      int `json:"losses"`
}

// SkywarsStats are overall skywars counters.
type SkywarsStats struct {
	Kills  int `json:"kills"`
	Deaths int `json:"deaths"`
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
}

// FKDR is the final kill/death ratio, rounded to two decimals.
func (p *Player) FKDR() float64 { return ratio(p.Bedwars.FinalKills, p.Bedwars.FinalDeaths) }

// BedwarsWLR is the bedwars win/loss ratio.
func (p *Player) BedwarsWLR() float64 { return ratio(p.Bedwars.Wins, p.Bedwars.Losses) }

// KDR is the skywars kill/death ratio.
func (p *Player) KDR() float64 { return ratio(p.Skywars.Kills, p.Skywars.Deaths) }

// SkywarsWLR is the skywars win/loss ratio.
func (p *Player) SkywarsWLR() float64 { return ratio(p.Skywars.Wins, p.Skywars.Losses) }

func ratio(num, den int) float64 {
	if den == 0 {
		den = 1
	}
	return math.Round(float64(num)/float64(den)*100) / 100
}

// Client is the fasthttp-backed Service with an in-memory LRU and an
// on-disk cache in front of the API. The API key is treated as
// rate-limited; outbound calls go through a limiter.
type Client struct {
	apiKey  string
	http    *fasthttp.Client
	limiter *rate.Limiter
	cache   *playerCache
	log     *zap.SugaredLogger

	playerURL  string
	profileURL string
}

const (
	defaultPlayerURL  = "https://api.hypixel.net/v2/player"
	defaultProfileURL = "https://api.mojang.com/users/profiles/minecraft"
	requestTimeout    = 10 * time.Second
)

// NewClient returns a Client. cacheDir may be empty to disable the disk
// cache.
func NewClient(apiKey, cacheDir string) *Client {
	return &Client{
		apiKey:     apiKey,
		http:       &fasthttp.Client{ReadTimeout: requestTimeout, WriteTimeout: requestTimeout},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 2),
		cache:      newPlayerCache(cacheDir),
		log:        zap.S().Named("hypixel"),
		playerURL:  defaultPlayerURL,
		profileURL: defaultProfileURL,
	}
}

// Close flushes the disk cache.
func (c *Client) Close() error { return c.cache.flush() }

// Player implements Service. Results are cached by lowercased name for an
// hour; cache failures are tolerated.
func (c *Client) Player(ctx context.Context, name string) (*Player, error) {
	if p := c.cache.get(name); p != nil {
		return p, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	id, realName, err := c.resolveProfile(name)
	if err != nil {
		return nil, err
	}
	player, err := c.fetchPlayer(id)
	if err != nil {
		return nil, err
	}
	player.UUID = id
	player.Name = realName

	c.cache.put(name, player)
	return player, nil
}

// resolveProfile turns a name into (uuid-no-dashes, canonical name).
func (c *Client) resolveProfile(name string) (string, string, error) {
	status, body, err := c.get(c.profileURL + "/" + name)
	if err != nil {
		return "", "", fmt.Errorf("hypixel: profile lookup: %w", err)
	}
	switch status {
	case fasthttp.StatusOK:
	case fasthttp.StatusNoContent, fasthttp.StatusNotFound:
		return "", "", ErrPlayerNotFound
	case fasthttp.StatusTooManyRequests:
		return "", "", ErrRateLimited
	default:
		return "", "", fmt.Errorf("hypixel: profile lookup: unexpected status %d", status)
	}

	var profile struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &profile); err != nil {
		return "", "", fmt.Errorf("hypixel: profile lookup: %w", err)
	}
	return profile.ID, profile.Name, nil
}

func (c *Client) fetchPlayer(id string) (*Player, error) {
	status, body, err := c.get(c.playerURL + "?uuid=" + id)
	if err != nil {
		return nil, fmt.Errorf("hypixel: player fetch: %w", err)
	}
	switch status {
	case fasthttp.StatusOK:
	case fasthttp.StatusForbidden, fasthttp.StatusUnauthorized:
		return nil, ErrInvalidKey
	case fasthttp.StatusTooManyRequests:
		return nil, ErrRateLimited
	default:
		return nil, fmt.Errorf("hypixel: player fetch: unexpected status %d", status)
	}

	var raw apiPlayer
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("hypixel: player fetch: %w", err)
	}
	if !raw.Success || raw.Player == nil {
		return nil, ErrPlayerNotFound
	}
	return raw.toPlayer(), nil
}

func (c *Client) get(url string) (int, []byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	if c.apiKey != "" {
		req.Header.Set("API-Key", c.apiKey)
	}
	if err := c.http.DoTimeout(req, resp, requestTimeout); err != nil {
		return 0, nil, err
	}
	body := append([]byte(nil), resp.Body()...)
	return resp.StatusCode(), body, nil
}

// apiPlayer mirrors the slice of the Hypixel player document we read.
type apiPlayer struct {
	Success bool `json:"success"`
	Player  *struct {
		Displayname   string `json:"displayname"`
		Rank          string `json:"rank"`
		MonthlyRank   string `json:"monthlyPackageRank"`
		NewPackage    string `json:"newPackageRank"`
		RankPlusColor string `json:"rankPlusColor"`
		Achievements  struct {
			BedwarsLevel int `json:"bedwars_level"`
		} `json:"achievements"`
		Stats struct {
			Bedwars struct {
				Kills       int `json:"kills_bedwars"`
				Deaths      int `json:"deaths_bedwars"`
				FinalKills  int `json:"final_kills_bedwars"`
				FinalDeaths int `json:"final_deaths_bedwars"`
				Wins        int `json:"wins_bedwars"`
				Losses      int `json:"losses_bedwars"`
			} `json:"Bedwars"`
			Skywars struct {
				Kills          int    `json:"kills"`
				Deaths         int    `json:"deaths"`
				Wins           int    `json:"wins"`
				Losses         int    `json:"losses"`
				LevelFormatted string `json:"levelFormatted"`
			} `json:"SkyWars"`
		} `json:"stats"`
	} `json:"player"`
}

func (a *apiPlayer) toPlayer() *Player {
	p := a.Player
	rank := p.Rank
	if rank == "" || rank == "NORMAL" {
		switch {
		case p.MonthlyRank == "SUPERSTAR":
			rank = "MVP++"
		case p.NewPackage != "" && p.NewPackage != "NONE":
			rank = packageRank(p.NewPackage)
		}
	}
	return &Player{
		Name:         p.Displayname,
		Rank:         rank,
		PlusColor:    plusColorCode(p.RankPlusColor),
		BedwarsLevel: p.Achievements.BedwarsLevel,
		Bedwars: BedwarsStats{
			Kills:       p.Stats.Bedwars.Kills,
			Deaths:      p.Stats.Bedwars.Deaths,
			FinalKills:  p.Stats.Bedwars.FinalKills,
			FinalDeaths: p.Stats.Bedwars.FinalDeaths,
			Wins:        p.Stats.Bedwars.Wins,
			Losses:      p.Stats.Bedwars.Losses,
		},
		SkywarsLevel: parseLevel(p.Stats.Skywars.LevelFormatted),
		Skywars: SkywarsStats{
			Kills:  p.Stats.Skywars.Kills,
			Deaths: p.Stats.Skywars.Deaths,
			Wins:   p.Stats.Skywars.Wins,
			Losses: p.Stats.Skywars.Losses,
		},
	}
}

func packageRank(pkg string) string {
	switch pkg {
	case "VIP_PLUS":
		return "VIP+"
	case "MVP_PLUS":
		return "MVP+"
	case "VIP", "MVP":
		return pkg
	}
	return ""
}
