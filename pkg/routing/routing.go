// Package routing classifies request paths so cross-cutting middleware can
// answer API and page requests differently.
package routing

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

type RouteClass string

const (
	RouteClassUI          RouteClass = "ui"
	RouteClassInternalAPI RouteClass = "internal_api"
	RouteClassOps         RouteClass = "ops"
	RouteClassStatic      RouteClass = "static"
)

var ErrAllowlistNotFound = errors.New("routing allowlist not found")

const defaultAllowlist = "config/routing/allowlist.yaml"

// module APIs live under /<module>/api
var internalAPIPrefixPattern = regexp.MustCompile(`^/[^/]+/api(?:/|$)`)

type AllowlistRule struct {
	Prefix string     `yaml:"prefix"`
	Class  RouteClass `yaml:"class"`
}

type allowlistFile struct {
	Version     int                        `yaml:"version"`
	Entrypoints map[string][]AllowlistRule `yaml:"entrypoints"`
}

func DefaultAllowlistPath() string {
	if p := strings.TrimSpace(os.Getenv("ROUTING_ALLOWLIST_PATH")); p != "" {
		return p
	}
	if wd, err := os.Getwd(); err == nil {
		for dir := wd; ; dir = filepath.Dir(dir) {
			if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
				abs := filepath.Join(dir, filepath.FromSlash(defaultAllowlist))
				if _, err := os.Stat(abs); err == nil {
					return abs
				}
				break
			}
			if filepath.Dir(dir) == dir {
				break
			}
		}
	}
	return filepath.FromSlash(defaultAllowlist)
}

func LoadAllowlist(path, entrypoint string) ([]AllowlistRule, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultAllowlistPath()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrAllowlistNotFound, path)
		}
		return nil, err
	}
	return ParseAllowlist(raw, entrypoint)
}

// ParseAllowlist decodes a version 1 allowlist document and returns the rules
// of entrypoint ("server" when empty).
func ParseAllowlist(raw []byte, entrypoint string) ([]AllowlistRule, error) {
	var file allowlistFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, err
	}
	if file.Version != 1 {
		return nil, fmt.Errorf("unsupported allowlist version: %d", file.Version)
	}
	if strings.TrimSpace(entrypoint) == "" {
		entrypoint = "server"
	}
	rules, ok := file.Entrypoints[entrypoint]
	if !ok {
		return nil, fmt.Errorf("entrypoint %q not found in allowlist", entrypoint)
	}
	for i := range rules {
		rules[i].Prefix = strings.TrimSpace(rules[i].Prefix)
		if !strings.HasPrefix(rules[i].Prefix, "/") {
			return nil, fmt.Errorf("allowlist rule[%d]: prefix must start with '/': %q", i, rules[i].Prefix)
		}
		switch rules[i].Class {
		case RouteClassUI, RouteClassInternalAPI, RouteClassOps, RouteClassStatic:
		default:
			return nil, fmt.Errorf("allowlist rule[%d]: unknown class: %q", i, rules[i].Class)
		}
	}
	return rules, nil
}

type Classifier struct {
	rules []AllowlistRule
}

// NewClassifier matches the longest prefix first.
func NewClassifier(rules []AllowlistRule) *Classifier {
	copied := append([]AllowlistRule(nil), rules...)
	sort.SliceStable(copied, func(i, j int) bool {
		return len(copied[i].Prefix) > len(copied[j].Prefix)
	})
	return &Classifier{rules: copied}
}

func (c *Classifier) ClassifyPath(path string) RouteClass {
	if rule, ok := c.MatchAllowlist(path); ok {
		return rule.Class
	}
	if internalAPIPrefixPattern.MatchString(path) {
		return RouteClassInternalAPI
	}
	return RouteClassUI
}

// MatchAllowlist returns the longest allowlist rule covering path.
func (c *Classifier) MatchAllowlist(path string) (AllowlistRule, bool) {
	if c == nil {
		return AllowlistRule{}, false
	}
	for _, rule := range c.rules {
		if HasPathPrefixOnBoundary(path, rule.Prefix) {
			return rule, true
		}
	}
	return AllowlistRule{}, false
}

// IsAPI reports whether errors on path should be answered with JSON.
func (c *Classifier) IsAPI(path string) bool {
	class := c.ClassifyPath(path)
	return class == RouteClassInternalAPI || class == RouteClassOps
}

func HasPathPrefixOnBoundary(path, prefix string) bool {
	switch {
	case prefix == "":
		return false
	case prefix == "/":
		return strings.HasPrefix(path, "/")
	case !strings.HasPrefix(path, prefix):
		return false
	case len(path) == len(prefix), strings.HasSuffix(prefix, "/"):
		return true
	}
	return path[len(prefix)] == '/'
}
