package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/smarthr/pkg/version"
)

func TestRootCmd_HasSubcommands(t *testing.T) {
	// Given: the root command
	cmd := NewRootCmd()

	// When: listing subcommands
	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	// Then: every surface is registered
	for _, want := range []string{"ingest", "index", "search", "ask", "serve", "config", "logs", "doctor", "eval", "watch", "setup", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	cmd := NewRootCmd()

	for _, name := range []string{"debug", "project", "no-color", "profile-cpu", "profile-mem", "profile-trace"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "missing flag %s", name)
	}
	assert.Equal(t, "C", cmd.PersistentFlags().Lookup("project").Shorthand)
}

func TestRootCmd_ShowsHelp(t *testing.T) {
	isolate(t)

	out, err := run(t, "--help")

	require.NoError(t, err)
	assert.Contains(t, out, "smarthr ingest")
	assert.Contains(t, out, "Available Commands")
}

func TestRootCmd_ShowsVersion(t *testing.T) {
	isolate(t)

	out, err := run(t, "--version")

	require.NoError(t, err)
	assert.Equal(t, "smarthr version "+version.Version, strings.TrimSpace(out))
}

func TestRootCmd_WritesProfiles(t *testing.T) {
	// Given: CPU and heap profiles requested for a build
	project := isolate(t)
	writePolicies(t, project)
	_, err := run(t, "--project", project, "ingest")
	require.NoError(t, err)
	dir := t.TempDir()
	cpu := filepath.Join(dir, "cpu.prof")
	heap := filepath.Join(dir, "heap.prof")

	// When
	_, err = run(t, "--project", project, "--profile-cpu", cpu, "--profile-mem", heap, "index", "build")

	// Then: both are flushed after the command
	require.NoError(t, err)
	for _, p := range []string{cpu, heap} {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
}

func TestRootCmd_UnknownCommand(t *testing.T) {
	isolate(t)

	_, err := run(t, "reindex")

	require.Error(t, err)
}

func TestServeCmd_RejectsUnknownTransport(t *testing.T) {
	// Given: an isolated project and HOME for the serve log file
	project := isolate(t)

	// When
	_, err := run(t, "--project", project, "serve", "--transport", "sse")

	// Then
	require.Error(t, err)
	assert.Contains(t, err.Error(), "supported: stdio")
}

func TestServeCmd_HasTransportFlag(t *testing.T) {
	cmd := newServeCmd(&rootOptions{})
	flag := cmd.Flags().Lookup("transport")
	require.NotNil(t, flag)
	assert.Equal(t, "", flag.DefValue)
}
