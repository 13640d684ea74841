package urlfilter

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Filter decides which URLs are eligible for processing.
type Filter interface {
	Match(u *url.URL) bool
}

type Rules []Rule

// Rule matches a URL when all of its non-empty fields match.
type Rule struct {
	Path    string            `yaml:"path"`
	Prefix  string            `yaml:"prefix"`
	Pattern string            `yaml:"pattern"`
	Query   map[string]string `yaml:"query"`

	re *regexp.Regexp
}

// Exact returns rules matching exactly the given path.
func Exact(path string) Rules {
	return Rules{{Path: path}}
}

// List returns rules matching any of the given paths.
func List(paths ...string) Rules {
	rules := make(Rules, 0, len(paths))
	for _, path := range paths {
		rules = append(rules, Rule{Path: path})
	}
	return rules
}

// Prefix returns rules matching paths starting with the given prefix.
func Prefix(prefix string) Rules {
	return Rules{{Prefix: prefix}}
}

// Pattern returns rules matching paths against a regular expression.
func Pattern(expr string) (Rules, error) {
	rules := Rules{{Pattern: expr}}
	return rules, rules.Compile()
}

// Compile compiles the patterns of all rules.
func (r Rules) Compile() error {
	for i := range r {
		if r[i].Pattern == "" {
			continue
		}
		re, err := regexp.Compile(r[i].Pattern)
		if err != nil {
			return fmt.Errorf("Invalid filter pattern %q: %w", r[i].Pattern, err)
		}
		r[i].re = re
	}
	return nil
}

// Match reports whether any of the rules match the URL.
// Empty rules match nothing.
func (r Rules) Match(u *url.URL) bool {
	for _, rule := range r {
		if rule.match(u) {
			log.Trace().Str("path", u.Path).Msgf("URL matches filter rule %+v", rule)
			return true
		}
	}
	return false
}

func (rule Rule) match(u *url.URL) bool {
	if rule.Path != "" && rule.Path != u.Path {
		return false
	}
	if rule.Prefix != "" && !strings.HasPrefix(u.Path, rule.Prefix) {
		return false
	}
	if rule.Pattern != "" {
		re := rule.re
		if re == nil {
			var err error
			if re, err = regexp.Compile(rule.Pattern); err != nil {
				return false
			}
		}
		if !re.MatchString(u.Path) {
			return false
		}
	}
	if len(rule.Query) > 0 {
		qry := u.Query()
		for name, value := range rule.Query {
			if value == "" && !qry.Has(name) {
				return false
			} else if value != "" && qry.Get(name) != value {
				return false
			}
		}
	}
	return true
}

// UnmarshalYAML accepts a single path, a list of paths and/or rules, or a single rule.
//
//	filter: /index.html
//	filter: [/, /about.html]
//	filter: {pattern: "\\.html$"}
func (r *Rules) UnmarshalYAML(node *yaml.Node) error {
	var rules Rules
	switch node.Kind {
	case yaml.ScalarNode:
		rules = Exact(node.Value)
	case yaml.MappingNode:
		var rule Rule
		if err := node.Decode(&rule); err != nil {
			return err
		}
		rules = Rules{rule}
	case yaml.SequenceNode:
		for _, item := range node.Content {
			var sub Rules
			if err := sub.UnmarshalYAML(item); err != nil {
				return err
			}
			rules = append(rules, sub...)
		}
	default:
		return fmt.Errorf("Unsupported filter at line %d", node.Line)
	}
	if err := rules.Compile(); err != nil {
		return err
	}
	*r = rules
	return nil
}
