// This module implements the policy resolver: given a key (typically a path), it returns the cache
// parameters declared for it. Rules are compiled once at construction; resolution is pure lookup and
// pattern matching with no state. Matching order, first match wins: exact path, glob patterns in
// declared order, regex patterns in declared order, then the default.
//
// Glob patterns use shell semantics (`*`, `?`, `[...]`) where `*` crosses path separators, so
// "*.parquet" matches "bucket/data.parquet". Regex patterns are unanchored searches.

package policy

import (
	"fmt"
	"regexp"

	"github.com/gobwas/glob"
)

// GlobRule maps a shell-glob pattern to cache parameters.
type GlobRule struct {
	Pattern string
	Params  Params
}

// RegexRule maps a regular expression to cache parameters.
type RegexRule struct {
	Pattern string
	Params  Params
}

// Rules is the declarative rule set consumed at resolver construction.
type Rules struct {
	Paths   map[string]Params // Exact key matches, checked first.
	Globs   []GlobRule        // Checked second, in declared order.
	Regexes []RegexRule       // Checked third, in declared order.
	Default *Params           // Fallback; nil means unmatched keys are not cached.
}

type compiledGlob struct {
	matcher glob.Glob
	params  Params
}

type compiledRegex struct {
	matcher *regexp.Regexp
	params  Params
}

// Resolver answers parameter lookups against a compiled rule set.
type Resolver struct {
	paths       map[string]Params
	globs       []compiledGlob
	regexes     []compiledRegex
	defaultRule *Params
}

// NewResolver compiles the rule set. Malformed patterns and invalid parameter records are
// configuration errors raised here, never at resolution time.
func NewResolver(rules Rules) (*Resolver, error) {
	r := &Resolver{paths: make(map[string]Params, len(rules.Paths))}
	for path, params := range rules.Paths {
		if err := params.validate(); err != nil {
			return nil, fmt.Errorf("invalid params for path %q: %w", path, err)
		}
		r.paths[path] = params
	}
	for _, rule := range rules.Globs {
		if err := rule.Params.validate(); err != nil {
			return nil, fmt.Errorf("invalid params for glob %q: %w", rule.Pattern, err)
		}
		matcher, err := glob.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", rule.Pattern, err)
		}
		r.globs = append(r.globs, compiledGlob{matcher: matcher, params: rule.Params})
	}
	for _, rule := range rules.Regexes {
		if err := rule.Params.validate(); err != nil {
			return nil, fmt.Errorf("invalid params for regex %q: %w", rule.Pattern, err)
		}
		matcher, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern %q: %w", rule.Pattern, err)
		}
		r.regexes = append(r.regexes, compiledRegex{matcher: matcher, params: rule.Params})
	}
	if rules.Default != nil {
		if err := rules.Default.validate(); err != nil {
			return nil, fmt.Errorf("invalid default params: %w", err)
		}
		defaultRule := *rules.Default
		r.defaultRule = &defaultRule
	}
	return r, nil
}

// Resolve returns the cache parameters for the given key. The second return value is false when no
// rule matches and no default is declared, or when the matched record is empty; either way the key
// must not be cached.
func (r *Resolver) Resolve(key string) (Params, bool /*cache*/) {
	if params, found := r.paths[key]; found {
		return params, !params.IsZero()
	}
	for _, rule := range r.globs {
		if rule.matcher.Match(key) {
			return rule.params, !rule.params.IsZero()
		}
	}
	for _, rule := range r.regexes {
		if rule.matcher.MatchString(key) {
			return rule.params, !rule.params.IsZero()
		}
	}
	if r.defaultRule != nil {
		return *r.defaultRule, !r.defaultRule.IsZero()
	}
	return Params{}, false
}
