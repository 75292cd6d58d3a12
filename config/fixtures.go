package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/beehive/core"
)

// Fixtures is the document format of a static agent config file:
//
//	agents:
//	  - agentKind: operator
//	    agentType: researcher
//	    description: Finds sources on the web
//	    maxPoolSize: 2
type Fixtures struct {
	Agents []core.AgentConfig `yaml:"agents"`
}

// LoadFixtures reads agent configs from a yaml file.
func LoadFixtures(path string) ([]core.AgentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixtures: %w", err)
	}
	cfgs, err := ParseFixtures(data)
	if err != nil {
		return nil, fmt.Errorf("fixtures %s: %w", path, err)
	}
	return cfgs, nil
}

// ParseFixtures decodes and validates agent configs. Unknown fields and
// duplicate agent types are rejected. An empty AgentID defaults to the
// agent type.
func ParseFixtures(data []byte) ([]core.AgentConfig, error) {
	var doc Fixtures
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding fixtures: %w", err)
	}

	seen := make(map[string]struct{}, len(doc.Agents))
	for i := range doc.Agents {
		c := &doc.Agents[i]
		if c.AgentID == "" {
			c.AgentID = c.AgentType
		}
		if c.Tools == nil {
			c.Tools = []string{}
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("agents[%d]: %w", i, err)
		}
		if _, dup := seen[c.AgentType]; dup {
			return nil, fmt.Errorf("agents[%d]: duplicate agent type %q", i, c.AgentType)
		}
		seen[c.AgentType] = struct{}{}
	}
	return doc.Agents, nil
}

// MarshalFixtures renders configs in the fixtures format.
func MarshalFixtures(cfgs []core.AgentConfig) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(Fixtures{Agents: cfgs}); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
