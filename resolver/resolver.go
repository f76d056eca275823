// Package resolver expands the configured include/add/disclude patterns into
// ordered, duplicate-free spec file sets.
package resolver

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/ethereum/go-ethereum/log"
)

// Config contains resolver configuration.
type Config struct {
	Log     log.Logger
	WorkDir string
	// Include patterns select spec files, one compiled unit each.
	Include []string
	// Add patterns select shared helper sources compiled into every unit.
	Add []string
	// Disclude regular expressions remove matching paths from the include
	// result. They never filter the add list.
	Disclude []string
}

// Resolver expands glob and regex patterns into file sets.
type Resolver struct {
	config   Config
	disclude []*regexp.Regexp
}

// NewResolver creates a resolver, compiling the disclude expressions up
// front so malformed patterns surface as a configuration error.
func NewResolver(cfg Config) (*Resolver, error) {
	if cfg.Log == nil {
		cfg.Log = log.Root()
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = "."
	}

	discludes := make([]*regexp.Regexp, 0, len(cfg.Disclude))
	for _, pattern := range cfg.Disclude {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to compile disclude pattern '%s': %w", pattern, err)
		}
		discludes = append(discludes, re)
	}

	return &Resolver{
		config:   cfg,
		disclude: discludes,
	}, nil
}

// SpecFiles expands the include patterns in pattern order, deduplicates
// preserving first occurrence and removes every path matching any disclude
// expression. An empty result is not an error; it simply means zero units.
func (r *Resolver) SpecFiles() ([]string, error) {
	matches, err := r.expand(r.config.Include)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, path := range matches {
		if _, dup := seen[path]; dup {
			continue
		}
		seen[path] = struct{}{}
		if r.excluded(path) {
			r.config.Log.Debug("Spec file discluded", "path", path)
			continue
		}
		out = append(out, path)
	}

	r.config.Log.Debug("Resolved spec files", "count", len(out))
	return out, nil
}

// AddFiles expands the add patterns in pattern order. Duplicates are harmless
// here and not removed; helpers are not test entries, so discludes do not
// apply either.
func (r *Resolver) AddFiles() ([]string, error) {
	return r.expand(r.config.Add)
}

// expand globs each pattern relative to the work dir, sorting matches within
// a pattern so results are stable across filesystems.
func (r *Resolver) expand(patterns []string) ([]string, error) {
	var out []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(filepath.Join(r.config.WorkDir, pattern))
		if err != nil {
			return nil, fmt.Errorf("failed to expand pattern '%s': %w", pattern, err)
		}
		sort.Strings(matches)
		out = append(out, matches...)
	}
	return out, nil
}

func (r *Resolver) excluded(path string) bool {
	for _, re := range r.disclude {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}
