package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/beehive/config"
	"github.com/hupe1980/beehive/core"
	"github.com/hupe1980/beehive/memory"
	"github.com/hupe1980/beehive/model"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "beehive version dev\n", out.String())
}

func TestAllowList(t *testing.T) {
	tests := []struct {
		name    string
		changed bool
		agents  []string
		none    bool
		want    []string
	}{
		{name: "no flag", want: nil},
		{name: "no agents", none: true, want: []string{}},
		{name: "explicit", changed: true, agents: []string{"Researcher", " writer "}, want: []string{"Researcher", "writer"}},
		{name: "explicit empty", changed: true, agents: []string{""}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, allowList(tt.changed, tt.agents, tt.none))
		})
	}
}

func TestBuildModels(t *testing.T) {
	models, err := buildModels(config.LLMConfig{
		Roles: map[string]config.RoleConfig{
			"supervisor": {Provider: config.ProviderMock, ContextWindow: 2048},
			"default":    {Provider: config.ProviderOpenAI, Model: "gpt-4o-mini"},
			"writer":     {Provider: config.ProviderAnthropic},
		},
		RateLimit: model.RateLimitConfig{RequestsPerMinute: 60},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "supervisor", "writer"}, models.Roles())

	sup, err := models.Resolve("supervisor")
	require.NoError(t, err)
	assert.Equal(t, 2048, sup.Info().MaxTokens)
	assert.IsType(t, &model.BreakerModel{}, sup)

	_, err = buildModels(config.LLMConfig{Roles: map[string]config.RoleConfig{"x": {Provider: "llama"}}}, nil)
	assert.Error(t, err)
}

func TestBuildCounter(t *testing.T) {
	c, err := buildCounter("approx")
	require.NoError(t, err)
	assert.IsType(t, memory.ApproxCounter{}, c)

	c, err = buildCounter("")
	require.NoError(t, err)
	assert.IsType(t, memory.ApproxCounter{}, c)
}

func TestPrintAgents(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printAgents(&out, []core.AgentConfig{
		{AgentKind: core.KindOperator, AgentType: "researcher", MaxPoolSize: 10, Description: "Finds sources"},
	}))
	assert.Contains(t, out.String(), "TYPE")
	assert.Contains(t, out.String(), "researcher")
	assert.Contains(t, out.String(), "Finds sources")
}

func TestNewApp(t *testing.T) {
	dir := t.TempDir()
	fixtures := filepath.Join(dir, "agents.yaml")
	require.NoError(t, os.WriteFile(fixtures, []byte("agents:\n  - {agentKind: operator, agentType: writer, description: Writes}\n"), 0o600))
	cfgPath := filepath.Join(dir, "beehive.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
llm:
  roles:
    default:
      provider: mock
fixtures: `+fixtures+"\n"), 0o600))

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	a, err := newApp(context.Background(), cfg, io.Discard)
	require.NoError(t, err)
	defer func() { _ = a.Close(context.Background()) }()

	require.Len(t, a.fixtures, 1)
	assert.Equal(t, "writer", a.fixtures[0].AgentType)
	assert.False(t, a.platform.Connected())
	assert.Zero(t, a.engine.ActiveInvocations())
}
