package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Gateway is the routing file: environment bindings and endpoint mappings.
type Gateway struct {
	Environments map[string]EnvironmentEntry `yaml:"environments"`
	Endpoints    map[string]EndpointEntry    `yaml:"endpoints"`
}

// EnvironmentEntry binds an environment name to a database.
type EnvironmentEntry struct {
	DisplayName      string `yaml:"display_name"`
	Driver           string `yaml:"driver"`
	ConnectionString string `yaml:"connection_string"`
}

// EndpointEntry maps a logical endpoint to a schema/object and allow-list.
type EndpointEntry struct {
	Schema     string   `yaml:"schema"`
	Object     string   `yaml:"object"`
	AllowedIDs []string `yaml:"allowed_ids"`
}

// LoadGateway reads and parses the routing file at path. A missing file yields
// an empty Gateway so the bootstrap endpoint stays usable before configuration
// exists. ${VAR} references in connection strings are expanded from the
// process environment.
func LoadGateway(path string) (*Gateway, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Gateway{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read gateway config %s: %w", path, err)
	}

	gw, err := ParseGateway(data)
	if err != nil {
		return nil, fmt.Errorf("parse gateway config %s: %w", path, err)
	}
	return gw, nil
}

// ParseGateway decodes a routing document. Unknown keys are rejected.
func ParseGateway(data []byte) (*Gateway, error) {
	var gw Gateway

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&gw); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	for name, env := range gw.Environments {
		env.ConnectionString = os.ExpandEnv(env.ConnectionString)
		env.Driver = strings.ToLower(strings.TrimSpace(env.Driver))
		gw.Environments[name] = env
	}

	return &gw, nil
}
