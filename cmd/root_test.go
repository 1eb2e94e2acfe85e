package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	// Collect subcommand names.
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	// Verify expected subcommands are registered.
	expected := []string{"ingest", "fetch", "tables", "status", "migrate", "risk", "analyze", "runs", "serve"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "floodrisk", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRiskCommand_HasSubcommands(t *testing.T) {
	cmds := riskCmd.Commands()
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	for _, name := range []string{"dams", "report"} {
		assert.True(t, names[name], "risk should have subcommand %q", name)
	}
}

func TestAnalyzeCommand_HasSubcommands(t *testing.T) {
	cmds := analyzeCmd.Commands()
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	for _, name := range []string{"near", "nearest", "summary", "export"} {
		assert.True(t, names[name], "analyze should have subcommand %q", name)
	}
}

func TestIngestCommand_Flags(t *testing.T) {
	for _, flagName := range []string{"table", "source-srid", "yes", "ddl-out"} {
		flag := ingestCmd.Flags().Lookup(flagName)
		assert.NotNil(t, flag, "ingest should have --%s flag", flagName)
	}
}

func TestRiskReportCommand_Flags(t *testing.T) {
	flag := riskReportCmd.Flags().Lookup("dam")
	require.NotNil(t, flag, "risk report should have --dam flag")
	assert.Equal(t, "", flag.DefValue)

	outFlag := riskReportCmd.Flags().Lookup("out")
	require.NotNil(t, outFlag, "risk report should have --out flag")
}

func TestRiskCommand_TableFlags(t *testing.T) {
	for _, flagName := range []string{"dams-table", "plants-table"} {
		flag := riskCmd.PersistentFlags().Lookup(flagName)
		assert.NotNil(t, flag, "risk should have persistent --%s flag", flagName)
	}
}

func TestAnalyzeNearCommand_RequiredFlags(t *testing.T) {
	lonFlag := analyzeNearCmd.Flags().Lookup("lon")
	require.NotNil(t, lonFlag, "analyze near should have --lon flag")

	latFlag := analyzeNearCmd.Flags().Lookup("lat")
	require.NotNil(t, latFlag, "analyze near should have --lat flag")

	radiusFlag := analyzeNearCmd.Flags().Lookup("radius-km")
	require.NotNil(t, radiusFlag, "analyze near should have --radius-km flag")
	assert.Equal(t, "50", radiusFlag.DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestRunsCommand_Flags(t *testing.T) {
	flag := runsCmd.Flags().Lookup("limit")
	require.NotNil(t, flag, "runs command should have --limit flag")
	assert.Equal(t, "20", flag.DefValue)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exactly-te", truncate("exactly-te", 10))
	assert.Equal(t, "this is...", truncate("this is far too long", 10))
}
