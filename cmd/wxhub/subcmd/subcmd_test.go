package subcmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/wxrelay/internal/config"
	"github.com/temoto/wxrelay/log2"
)

func nop(context.Context, *log2.Log, *config.Config, []string) error { return nil }

func TestParse(t *testing.T) {
	t.Parallel()
	mods := []Mod{{Name: "serve", Usage: "run hub", Main: nop}, {Name: "cli", Usage: "client", Main: nop}}

	m, err := Parse("cli", mods)
	require.NoError(t, err)
	assert.Equal(t, "cli", m.Name)

	_, err = Parse("", mods)
	assert.EqualError(t, err, "empty command")
	_, err = Parse("fly", mods)
	assert.EqualError(t, err, "unknown command='fly'")

	assert.Panics(t, func() { _, _ = Parse("x", []Mod{{}}) })
	assert.Equal(t, "  serve    run hub\n  cli      client\n", Usage(mods))
}
