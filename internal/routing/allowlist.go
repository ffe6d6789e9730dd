package routing

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Allowlist is the declared routing surface of a binary. Every path the
// router serves must appear here with its methods and route class; the
// classifier also uses it to label unknown paths in error envelopes.
type Allowlist struct {
	Version     int                   `yaml:"version"`
	Entrypoints map[string]Entrypoint `yaml:"entrypoints"`
}

type Entrypoint struct {
	Routes []Route `yaml:"routes"`
}

type Route struct {
	Path       string   `yaml:"path"`
	Methods    []string `yaml:"methods"`
	RouteClass string   `yaml:"route_class"`
}

const allowlistVersion = 1

func ParseAllowlistYAML(b []byte) (Allowlist, error) {
	var a Allowlist
	if err := yaml.Unmarshal(b, &a); err != nil {
		return Allowlist{}, fmt.Errorf("allowlist: %w", err)
	}
	if a.Version != allowlistVersion {
		return Allowlist{}, fmt.Errorf("allowlist: unsupported version %d", a.Version)
	}
	if len(a.Entrypoints) == 0 {
		return Allowlist{}, fmt.Errorf("allowlist: missing entrypoints")
	}
	for name, ep := range a.Entrypoints {
		for i, r := range ep.Routes {
			if err := r.validate(); err != nil {
				return Allowlist{}, fmt.Errorf("allowlist: entrypoint %s route %d: %w", name, i, err)
			}
		}
	}
	return a, nil
}

func LoadAllowlist(path string) (Allowlist, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Allowlist{}, err
	}
	return ParseAllowlistYAML(b)
}

func (r Route) validate() error {
	if r.Path == "" || !strings.HasPrefix(r.Path, "/") {
		return fmt.Errorf("bad path %q", r.Path)
	}
	if !knownRouteClass(RouteClass(r.RouteClass)) {
		return fmt.Errorf("unknown route class %q for %s", r.RouteClass, r.Path)
	}
	if len(r.Methods) == 0 {
		return fmt.Errorf("no methods for %s", r.Path)
	}
	return nil
}
