package topology

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileDoc is the on-disk shape of the topology document:
//
//	apps:
//	  orders:
//	    environments: [dev, staging, prod]
//	    zones:
//	      dev: ["east1,east2"]
//	      staging: ["east1,east2", "west1"]
//
// Each zones entry is an ordered list of comma-joined zone groups.
type fileDoc struct {
	Apps map[string]appDoc `yaml:"apps"`
}

type appDoc struct {
	Environments []string            `yaml:"environments"`
	Zones        map[string][]string `yaml:"zones"`
}

// FileService is a Service backed by a static YAML topology document.
type FileService struct {
	apps map[string]appDoc
}

// LoadFile reads and validates a topology document.
func LoadFile(path string) (*FileService, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading topology file: %w", err)
	}
	return ParseDocument(data)
}

// ParseDocument parses a topology document from raw YAML.
func ParseDocument(data []byte) (*FileService, error) {
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing topology document: %w", err)
	}
	if len(doc.Apps) == 0 {
		return nil, fmt.Errorf("topology document defines no apps")
	}
	for app, a := range doc.Apps {
		if len(a.Environments) == 0 {
			return nil, fmt.Errorf("app %s: empty environment chain", app)
		}
		seen := make(map[string]bool, len(a.Environments))
		for _, env := range a.Environments {
			if seen[env] {
				return nil, fmt.Errorf("app %s: duplicate environment %s in chain", app, env)
			}
			seen[env] = true
		}
		for env := range a.Zones {
			if !seen[env] {
				return nil, fmt.Errorf("app %s: zones declared for %s, which is not in the chain", app, env)
			}
		}
	}
	return &FileService{apps: doc.Apps}, nil
}

func (s *FileService) app(name string) (appDoc, error) {
	a, ok := s.apps[name]
	if !ok {
		return appDoc{}, fmt.Errorf("%w: %s", ErrUnknownApp, name)
	}
	return a, nil
}

func (s *FileService) envIndex(app, env string) (appDoc, int, error) {
	a, err := s.app(app)
	if err != nil {
		return appDoc{}, 0, err
	}
	for i, e := range a.Environments {
		if e == env {
			return a, i, nil
		}
	}
	return appDoc{}, 0, fmt.Errorf("%w: %s for app %s", ErrUnknownEnvironment, env, app)
}

// Chain returns a copy of the app's ordered environment chain.
func (s *FileService) Chain(ctx context.Context, app string) ([]string, error) {
	a, err := s.app(app)
	if err != nil {
		return nil, err
	}
	chain := make([]string, len(a.Environments))
	copy(chain, a.Environments)
	return chain, nil
}

// FirstEnv returns the chain's entry environment.
func (s *FileService) FirstEnv(ctx context.Context, app string) (string, error) {
	a, err := s.app(app)
	if err != nil {
		return "", err
	}
	return a.Environments[0], nil
}

// PrevEnv returns the environment before env.
func (s *FileService) PrevEnv(ctx context.Context, app, env string) (string, error) {
	a, i, err := s.envIndex(app, env)
	if err != nil {
		return "", err
	}
	if i == 0 {
		return "", fmt.Errorf("%w: %s is the entry point for app %s", ErrNoPreviousEnvironment, env, app)
	}
	return a.Environments[i-1], nil
}

// NextEnv returns the environment after env, or "" at the end of the chain.
func (s *FileService) NextEnv(ctx context.Context, app, env string) (string, error) {
	a, i, err := s.envIndex(app, env)
	if err != nil {
		return "", err
	}
	if i == len(a.Environments)-1 {
		return "", nil
	}
	return a.Environments[i+1], nil
}

// ZoneGroups returns env's zone groups in declaration order. An environment
// with no zones entry yields one group with a single unnamed zone, so the
// manifest generator still runs exactly once.
func (s *FileService) ZoneGroups(ctx context.Context, app, env string) ([]ZoneGroup, error) {
	a, _, err := s.envIndex(app, env)
	if err != nil {
		return nil, err
	}
	raw := a.Zones[env]
	if len(raw) == 0 {
		return []ZoneGroup{{""}}, nil
	}
	groups := make([]ZoneGroup, 0, len(raw))
	for _, g := range raw {
		parsed := ParseZoneGroup(g)
		if len(parsed) == 0 {
			return nil, fmt.Errorf("app %s: empty zone group for %s", app, env)
		}
		groups = append(groups, parsed)
	}
	return groups, nil
}
