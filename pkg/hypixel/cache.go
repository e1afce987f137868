package hypixel

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
	"go.uber.org/zap"
)

// cacheTTL bounds how long a fetched profile may be served again.
const cacheTTL = time.Hour

const maxCachedPlayers = 512

// playerCache layers an LRU over a best-effort JSON file so stats survive
// process restarts. Keys are lowercased names. A corrupt or missing file
// rebuilds empty.
type playerCache struct {
	mu   sync.Mutex
	lru  *lru.Cache
	keys map[string]struct{} // lru.Cache cannot be iterated; flush needs the key set
	path string
}

type cachedPlayer struct {
	Player    *Player   `json:"player"`
	FetchedAt time.Time `json:"fetched_at"`
}

func newPlayerCache(dir string) *playerCache {
	c := &playerCache{lru: lru.New(maxCachedPlayers), keys: map[string]struct{}{}}
	c.lru.OnEvicted = func(key lru.Key, _ any) { delete(c.keys, key.(string)) }
	if dir == "" {
		return c
	}
	c.path = filepath.Join(dir, "players.json")
	c.load()
	return c
}

func (c *playerCache) get(name string) *Player {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lru.Get(lru.Key(strings.ToLower(name)))
	if !ok {
		return nil
	}
	entry := v.(*cachedPlayer)
	if time.Since(entry.FetchedAt) > cacheTTL {
		c.lru.Remove(lru.Key(strings.ToLower(name)))
		return nil
	}
	return entry.Player
}

func (c *playerCache) put(name string, p *Player) {
	key := strings.ToLower(name)
	c.mu.Lock()
	c.lru.Add(lru.Key(key), &cachedPlayer{Player: p, FetchedAt: time.Now()})
	c.keys[key] = struct{}{}
	c.mu.Unlock()
}

func (c *playerCache) load() {
	if c.path == "" {
		return
	}
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return
	}
	var entries map[string]*cachedPlayer
	if err := json.Unmarshal(raw, &entries); err != nil {
		zap.S().Named("hypixel").Debugw("Discarding corrupt player cache", "path", c.path, "error", err)
		return
	}
	now := time.Now()
	for name, entry := range entries {
		if entry.Player == nil || now.Sub(entry.FetchedAt) > cacheTTL {
			continue
		}
		c.lru.Add(lru.Key(name), entry)
		c.keys[name] = struct{}{}
	}
}

// flush persists the live entries. Failures are non-fatal.
func (c *playerCache) flush() error {
	if c.path == "" {
		return nil
	}
	c.mu.Lock()
	entries := map[string]*cachedPlayer{}
	for key := range c.keys {
		if v, ok := c.lru.Get(lru.Key(key)); ok {
			entries[key] = v.(*cachedPlayer)
		}
	}
	c.mu.Unlock()

	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(c.path, raw, 0o600)
}
