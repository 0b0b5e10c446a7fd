package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vmget/cli"
)

func TestCommandTree(t *testing.T) {
	var out, errOut bytes.Buffer
	root := cli.NewRootCmd(&out, &errOut)

	for _, name := range []string{"serve", "list", "get", "configs", "history"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}

	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
	assert.NotNil(t, root.PersistentFlags().Lookup("debug"))
}

func TestExecuteHelp(t *testing.T) {
	var out, errOut bytes.Buffer

	require.NoError(t, cli.Execute(&out, &errOut, []string{"get", "--help"}))
	assert.Contains(t, out.String(), "--release")
	assert.Empty(t, errOut.String())
}
