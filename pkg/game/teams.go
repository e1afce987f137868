package game

import "github.com/hyproxy/hyproxy/pkg/util/sets"

// Team mirrors one scoreboard team as maintained by the server's teams
// packets. The name is the stable key; everything else is mutable.
type Team struct {
	Name              string
	DisplayName       string
	Prefix            string
	Suffix            string
	FriendlyFire      byte
	NameTagVisibility string
	Color             byte
	Players           sets.String
}

// Teams is the ordered collection of live teams, keyed by name.
type Teams struct {
	list []*Team
}

// Get returns the sole team with the given name, or nil.
func (t *Teams) Get(name string) *Team {
	for _, team := range t.list {
		if team.Name == name {
			return team
		}
	}
	return nil
}

// All returns the teams in creation order. The slice is shared; callers
// only read it.
func (t *Teams) All() []*Team { return t.list }

// Create inserts team unless one with the same name already exists, in
// which case the packet is ignored. Joining players leave any previous team.
func (t *Teams) Create(team *Team) {
	if t.Get(team.Name) != nil {
		return
	}
	for name := range team.Players {
		t.removeEverywhere(name)
	}
	t.list = append(t.list, team)
}

// Delete removes the named team; deleting an unknown name is a no-op.
func (t *Teams) Delete(name string) {
	for i, team := range t.list {
		if team.Name == name {
			t.list = append(t.list[:i], t.list[i+1:]...)
			return
		}
	}
}

// AddPlayers moves the given names into the named team. Unknown team names
// are tolerated without effect.
func (t *Teams) AddPlayers(name string, players []string) {
	team := t.Get(name)
	if team == nil {
		return
	}
	for _, p := range players {
		t.removeEverywhere(p)
		team.Players.Insert(p)
	}
}

// RemovePlayers drops the given names from the named team. Removing a
// non-member is silently tolerated.
func (t *Teams) RemovePlayers(name string, players []string) {
	team := t.Get(name)
	if team == nil {
		return
	}
	for _, p := range players {
		team.Players.Delete(p)
	}
}

// Clear drops every team.
func (t *Teams) Clear() { t.list = nil }

func (t *Teams) removeEverywhere(player string) {
	for _, team := range t.list {
		team.Players.Delete(player)
	}
}
