// Tempo uses flags and a single YAML config file for configuration.
// The config file declares the cache rules (exact paths, globs, regexes, default) plus the serving
// address and the backend root; flags cover everything operational (logging, address overrides).

package config

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/nobletooth/tempo/pkg/policy"
	"gopkg.in/yaml.v3"
)

var configFile = flag.String("config_file", "config.yaml", "Path to the YAML configuration file.")

// ParamsConfig is the YAML form of one cache parameter record. Duration components mirror the
// policy span fields; all are optional.
type ParamsConfig struct {
	Seconds  int    `yaml:"seconds"`
	Minutes  int    `yaml:"minutes"`
	Hours    int    `yaml:"hours"`
	Days     int    `yaml:"days"`
	Weeks    int    `yaml:"weeks"`
	Months   int    `yaml:"months"`
	Years    int    `yaml:"years"`
	Capacity int    `yaml:"capacity"`
	Persist  string `yaml:"persist"`
}

// params converts the YAML record to a policy record.
func (p ParamsConfig) params() policy.Params {
	return policy.Params{
		Span: policy.Span{
			Seconds: p.Seconds, Minutes: p.Minutes, Hours: p.Hours, Days: p.Days,
			Weeks: p.Weeks, Months: p.Months, Years: p.Years,
		},
		Capacity: p.Capacity,
		Persist:  p.Persist,
	}
}

// RuleConfig is one pattern rule. Globs and regexes are declared as lists so their matching order is
// exactly the declared order.
type RuleConfig struct {
	Pattern      string `yaml:"pattern"`
	ParamsConfig `yaml:",inline"`
}

// CacheConfig is the YAML form of the declarative rule set.
type CacheConfig struct {
	Paths   map[string]ParamsConfig `yaml:"paths"`
	Globs   []RuleConfig            `yaml:"globs"`
	Regexes []RuleConfig            `yaml:"regexes"`
	Default *ParamsConfig           `yaml:"default"`
}

// Rules converts the YAML rule set into the policy package's form. Compilation (and therefore
// pattern validation) happens later, at resolver construction.
func (c CacheConfig) Rules() policy.Rules {
	rules := policy.Rules{Paths: make(map[string]policy.Params, len(c.Paths))}
	for path, params := range c.Paths {
		rules.Paths[path] = params.params()
	}
	for _, rule := range c.Globs {
		rules.Globs = append(rules.Globs, policy.GlobRule{Pattern: rule.Pattern, Params: rule.params()})
	}
	for _, rule := range c.Regexes {
		rules.Regexes = append(rules.Regexes, policy.RegexRule{Pattern: rule.Pattern, Params: rule.params()})
	}
	if c.Default != nil {
		defaultParams := c.Default.params()
		rules.Default = &defaultParams
	}
	return rules
}

// Config is the full config file contents.
type Config struct {
	Address string      `yaml:"address"` // ip:port the Redis-protocol port listens on.
	Root    string      `yaml:"root"`    // Local backend root directory.
	Cache   CacheConfig `yaml:"cache"`
}

// Load reads and strictly decodes the config file at the given path; unknown fields are errors.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer func() { _ = file.Close() }()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	var conf Config
	if err := decoder.Decode(&conf); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &conf, nil
}

// LoadFlagged loads the config file named by the -config_file flag. It should be called after
// flag.Parse(). A missing file is not an error; defaults apply and a warning is left to the caller.
func LoadFlagged() (*Config, error) {
	if *configFile == "" {
		return nil, errors.New("expected a non-empty --config_file flag")
	}
	if _, err := os.Stat(*configFile); errors.Is(err, os.ErrNotExist) {
		return &Config{}, nil
	}
	return Load(*configFile)
}
