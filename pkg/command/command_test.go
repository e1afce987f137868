package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoArgumentsAllowed(t *testing.T) {
	spec := &Spec{Name: "requeue", Aliases: []string{"rq"}}
	_, err := spec.ResolveArgs("/rq", []string{"extra"})
	var cmdErr *Error
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, "§9§l∎ §4Command </rq> takes no arguments!", cmdErr.Message)

	got, err := spec.ResolveArgs("/rq", nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAtMostArguments(t *testing.T) {
	spec := &Spec{Name: "boop", Params: []Parameter{{Name: "who"}}}
	_, err := spec.ResolveArgs("/boop", []string{"a", "b"})
	var cmdErr *Error
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, "§9§l∎ §4Command </boop> takes at most 1 argument(s)!", cmdErr.Message)
}

func TestAtLeastArguments(t *testing.T) {
	spec := &Spec{Name: "msg", Params: []Parameter{
		{Name: "recipient", Required: true},
		{Name: "text", Required: true},
	}}
	_, err := spec.ResolveArgs("/msg", []string{"steve"})
	var cmdErr *Error
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t,
		"§9§l∎ §4Command </msg> needs at least 2 argument(s)! (recipient, text)",
		cmdErr.Message)
}

func TestLiteralOptions(t *testing.T) {
	spec := &Spec{Name: "toggle", Params: []Parameter{
		{Name: "state", Options: []string{"on", "off"}},
	}}

	_, err := spec.ResolveArgs("/toggle", []string{"maybe"})
	var cmdErr *Error
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t,
		"§9§l∎ §4Invalid option 'maybe'. Please choose a correct argument! (on, off)",
		cmdErr.Message)

	// Case-insensitive match passes.
	got, err := spec.ResolveArgs("/toggle", []string{"ON"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ON"}, got)
}

func TestVariadicTail(t *testing.T) {
	spec := &Spec{Name: "sc", Params: []Parameter{
		{Name: "ign"},
		{Name: "mode"},
		{Name: "stats", Variadic: true},
	}}
	got, err := spec.ResolveArgs("/sc", []string{"steve", "bw", "fkdr", "wins", "wlr"})
	require.NoError(t, err)
	assert.Equal(t, []string{"steve", "bw", "fkdr", "wins", "wlr"}, got)
}

func TestDefaultSubstitution(t *testing.T) {
	spec := &Spec{Name: "page", Params: []Parameter{
		{Name: "number", Default: "1"},
	}}
	got, err := spec.ResolveArgs("/page", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, got)
}

func TestNames(t *testing.T) {
	spec := &Spec{Name: "statcheck", Aliases: []string{"sc"}}
	assert.Equal(t, []string{"statcheck", "sc"}, spec.Names())
}

func TestGamemodeAliases(t *testing.T) {
	assert.Equal(t, "bedwars", Gamemode("bw"))
	assert.Equal(t, "bedwars", Gamemode("BEDWARS"))
	assert.Equal(t, "skywars", Gamemode("s"))
	assert.Empty(t, Gamemode("notagamemode"))
	assert.Empty(t, Gamemode(""))
}

func TestStatisticAliases(t *testing.T) {
	assert.Equal(t, "FKDR", Statistic("fk/d", "bedwars"))
	assert.Equal(t, "Finals", Statistic("FKS", "bedwars"))
	assert.Equal(t, "KDR", Statistic("kdr", "skywars"))
	assert.Empty(t, Statistic("fkdr", "skywars"))
	assert.Empty(t, Statistic("bogus", "bedwars"))
}

func TestDefaultStats(t *testing.T) {
	assert.Equal(t, []string{"Finals", "FKDR", "Wins", "WLR"}, DefaultStats("bedwars"))
	assert.Equal(t, []string{"Kills", "KDR", "Wins", "WLR"}, DefaultStats("skywars"))
	assert.Nil(t, DefaultStats("zombies"))
}
