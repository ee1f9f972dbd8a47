package internal

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sunnychangai/ai-travel-agent-app-sub002/pkg/cache"
)

// ErrInvalidManifest indicates a namespace manifest that could not be
// parsed or describes an impossible configuration.
var ErrInvalidManifest = errors.New("assistant: invalid namespace manifest")

// manifest is the YAML document shape for declarative namespace
// configuration:
//
//	namespaces:
//	  - name: conversation
//	    ttl: 1h
//	    max_size: 50
//	    identity_scoped: true
//	    persistent: true
type manifest struct {
	Namespaces []namespaceManifest `yaml:"namespaces"`
}

type namespaceManifest struct {
	Name           string `yaml:"name"`
	TTL            string `yaml:"ttl"`
	MaxSize        int    `yaml:"max_size"`
	IdentityScoped bool   `yaml:"identity_scoped"`
	Persistent     bool   `yaml:"persistent"`
}

// LoadNamespaces parses a YAML namespace manifest from fsys. TTLs are
// duration strings ("90s", "24h"); an omitted or empty ttl means entries
// never expire.
func LoadNamespaces(fsys fs.FS, name string) ([]cache.Config, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("assistant: reading manifest %q: %w", name, err)
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: parsing %q: %s", ErrInvalidManifest, name, err)
	}

	configs := make([]cache.Config, 0, len(m.Namespaces))
	for _, ns := range m.Namespaces {
		if ns.Name == "" {
			return nil, fmt.Errorf("%w: namespace without a name in %q", ErrInvalidManifest, name)
		}

		cfg := cache.Config{
			Namespace:      ns.Name,
			MaxSize:        ns.MaxSize,
			IdentityScoped: ns.IdentityScoped,
			Persistent:     ns.Persistent,
		}
		if ns.TTL != "" {
			ttl, err := time.ParseDuration(ns.TTL)
			if err != nil {
				return nil, fmt.Errorf("%w: namespace %q ttl: %s", ErrInvalidManifest, ns.Name, err)
			}
			cfg.TTL = ttl
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}
