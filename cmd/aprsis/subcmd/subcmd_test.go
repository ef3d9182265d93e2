package subcmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/aprsis/config"
	"github.com/temoto/aprsis/log2"
)

func TestParse(t *testing.T) {
	t.Parallel()
	nop := func(context.Context, *config.Config, []string) error { return nil }
	mods := []Mod{{Name: "client", Main: nop}, {Name: "ping", Main: nop}}

	m, err := Parse("ping", mods)
	require.NoError(t, err)
	assert.Equal(t, "ping", m.Name)

	_, err = Parse("", mods)
	assert.EqualError(t, err, "empty command")
	_, err = Parse("bogus", mods)
	assert.EqualError(t, err, "unknown command='bogus'")
}

func TestLog(t *testing.T) {
	t.Parallel()
	assert.NotNil(t, Log(context.Background()))
	log := log2.NewTest(t, log2.LDebug)
	ctx := context.WithValue(context.Background(), log2.ContextKey, log)
	assert.Equal(t, log, Log(ctx))
}
