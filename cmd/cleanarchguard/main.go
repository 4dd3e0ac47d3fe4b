// Command cleanarchguard checks that module packages only depend inward:
// presentation on services, services on domain, and nothing on presentation.
package main

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/roblaszczak/go-cleanarch/cleanarch"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type config struct {
	Version           int      `yaml:"version"`
	Root              string   `yaml:"root"`
	IgnoreTests       bool     `yaml:"ignore_tests"`
	IgnorePackages    []string `yaml:"ignore_packages"`
	SharedModules     []string `yaml:"shared_modules"`
	AllowedViolations []string `yaml:"allow_violations"`
	Layers            struct {
		Domain         []string `yaml:"domain"`
		Application    []string `yaml:"application"`
		Interfaces     []string `yaml:"interfaces"`
		Infrastructure []string `yaml:"infrastructure"`
	} `yaml:"layers"`
}

var defaultLayers = map[cleanarch.Layer][]string{
	cleanarch.LayerDomain:         {"domain", "entities"},
	cleanarch.LayerApplication:    {"services"},
	cleanarch.LayerInterfaces:     {"presentation", "controllers"},
	cleanarch.LayerInfrastructure: {"infrastructure"},
}

func main() {
	configPath := flag.String("config", ".gocleanarch.yml", "path to the layering config")
	debug := flag.Bool("debug", false, "print go-cleanarch debug output")
	flag.Parse()

	log := logrus.New()
	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.WithError(err).Fatal("cleanarchguard: reading config failed")
	}
	if *debug {
		cleanarch.Log.SetOutput(os.Stderr)
	}

	violations, err := run(cfg)
	if err != nil {
		log.WithError(err).Fatal("cleanarchguard: validation failed to run")
	}
	for _, v := range violations {
		log.Error(v)
	}
	if len(violations) > 0 {
		log.WithField("violations", len(violations)).Error("cleanarchguard: layering check failed")
		os.Exit(1)
	}
	log.Info("cleanarchguard: layering check passed")
}

func run(cfg *config) ([]string, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, err
	}
	validator := cleanarch.NewValidator(layerAliases(cfg))
	ok, errs, err := validator.Validate(root, cfg.IgnoreTests, cfg.IgnorePackages)
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, nil
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return filterViolations(msgs, cfg), nil
}

func loadConfig(path string) (*config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Version != 1 {
		return nil, errors.New("unsupported config version")
	}
	if strings.TrimSpace(cfg.Root) == "" {
		cfg.Root = "."
	}
	return cfg, nil
}

func layerAliases(cfg *config) map[string]cleanarch.Layer {
	custom := map[cleanarch.Layer][]string{
		cleanarch.LayerDomain:         cfg.Layers.Domain,
		cleanarch.LayerApplication:    cfg.Layers.Application,
		cleanarch.LayerInterfaces:     cfg.Layers.Interfaces,
		cleanarch.LayerInfrastructure: cfg.Layers.Infrastructure,
	}
	out := map[string]cleanarch.Layer{}
	for layer, defaults := range defaultLayers {
		names := defaults
		if len(custom[layer]) > 0 {
			names = custom[layer]
		}
		for _, name := range names {
			if name = strings.TrimSpace(name); name != "" {
				out[name] = layer
			}
		}
	}
	return out
}

var crossModulePattern = regexp.MustCompile(`between ([\w-]+) and ([\w-]+) modules`)

// filterViolations drops violations that involve a shared module or match an
// allow_violations substring.
func filterViolations(msgs []string, cfg *config) []string {
	shared := make(map[string]struct{}, len(cfg.SharedModules))
	for _, m := range cfg.SharedModules {
		if m = strings.TrimSpace(m); m != "" {
			shared[m] = struct{}{}
		}
	}

	var out []string
	for _, msg := range msgs {
		if m := crossModulePattern.FindStringSubmatch(msg); len(m) == 3 {
			_, left := shared[m[1]]
			_, right := shared[m[2]]
			if left || right {
				continue
			}
		}
		if allowed(msg, cfg.AllowedViolations) {
			continue
		}
		out = append(out, msg)
	}
	return out
}

func allowed(msg string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
