package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyproxy/hyproxy/pkg/util/sets"
)

func team(name string, players ...string) *Team {
	return &Team{Name: name, Players: sets.NewString(players...)}
}

func TestTeamsAddRemoveRoundTrip(t *testing.T) {
	var teams Teams
	teams.Create(team("A", "p1", "p2"))
	teams.RemovePlayers("A", []string{"p2"})
	teams.AddPlayers("A", []string{"p3", "p2"})

	a := teams.Get("A")
	require.NotNil(t, a)
	assert.ElementsMatch(t, []string{"p1", "p2", "p3"}, a.Players.UnsortedList())
}

func TestCreateDuplicateNameIgnored(t *testing.T) {
	var teams Teams
	first := team("red", "p1")
	teams.Create(first)
	teams.Create(team("red", "p2"))

	assert.Len(t, teams.All(), 1)
	assert.Same(t, first, teams.Get("red"))
	assert.True(t, teams.Get("red").Players.Has("p1"))
}

func TestPlayerInAtMostOneTeam(t *testing.T) {
	var teams Teams
	teams.Create(team("red", "p1"))
	teams.Create(team("blue"))
	teams.AddPlayers("blue", []string{"p1"})

	assert.False(t, teams.Get("red").Players.Has("p1"))
	assert.True(t, teams.Get("blue").Players.Has("p1"))

	// Creating a team with an already-known member also moves them.
	teams.Create(team("green", "p1"))
	assert.False(t, teams.Get("blue").Players.Has("p1"))
	assert.True(t, teams.Get("green").Players.Has("p1"))
}

func TestDeleteTeam(t *testing.T) {
	var teams Teams
	teams.Create(team("red", "p1"))
	teams.Delete("red")
	assert.Nil(t, teams.Get("red"))
	teams.Delete("red") // deleting twice is fine
}

func TestRemoveNonMemberIsNoOp(t *testing.T) {
	var teams Teams
	teams.Create(team("red", "p1"))
	teams.RemovePlayers("red", []string{"stranger"})
	assert.ElementsMatch(t, []string{"p1"}, teams.Get("red").Players.UnsortedList())
}

func TestMutateUnknownTeamIsNoOp(t *testing.T) {
	var teams Teams
	teams.AddPlayers("ghost", []string{"p1"})
	teams.RemovePlayers("ghost", []string{"p1"})
	assert.Nil(t, teams.Get("ghost"))
	assert.Empty(t, teams.All())
}
