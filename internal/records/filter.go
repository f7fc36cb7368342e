package records

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/casetrail/casetrail/internal/model"
	"gopkg.in/yaml.v3"
)

// Mode selects how multiple include rules combine.
type Mode string

const (
	// ModeAny retains a record matching at least one include rule.
	ModeAny Mode = "any"
	// ModeAll retains a record only when every include rule matches.
	ModeAll Mode = "all"
)

// Rule is one ordered filter expression tested against the configured field.
type Rule struct {
	Pattern string `yaml:"pattern"`
	Exclude bool   `yaml:"exclude"`
}

// FilterConfig describes a complete rule set. Rule order is significant.
type FilterConfig struct {
	Field string `yaml:"field"`
	Mode  Mode   `yaml:"mode"`
	Rules []Rule `yaml:"rules"`
}

// LoadFilterConfig reads a rule set from a YAML file. An empty path yields
// an empty rule set (no filtering).
func LoadFilterConfig(path string) (FilterConfig, error) {
	var cfg FilterConfig
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("records: reading filter config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("records: parsing filter config: %w", err)
	}
	return cfg, nil
}

// Policy decides whether a record is retained.
type Policy func(*model.Record) bool

// Filter applies a retention policy in place over a record slice.
type Filter struct {
	retain Policy
}

// NewFilter compiles a rule set into a filter. A record is retained unless
// an exclude rule matches it; when include rules exist they additionally
// combine per the configured mode (any by default). An empty rule set
// retains everything.
func NewFilter(cfg FilterConfig) (*Filter, error) {
	field := cfg.Field
	if field == "" {
		field = model.FieldMessage
	}
	mode := cfg.Mode
	if mode == "" {
		mode = ModeAny
	}
	if mode != ModeAny && mode != ModeAll {
		return nil, fmt.Errorf("records: unknown filter mode %q", mode)
	}

	type compiled struct {
		re      *regexp.Regexp
		exclude bool
	}
	rules := make([]compiled, 0, len(cfg.Rules))
	includes := 0
	for _, r := range cfg.Rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("records: compiling filter pattern %q: %w", r.Pattern, err)
		}
		rules = append(rules, compiled{re: re, exclude: r.Exclude})
		if !r.Exclude {
			includes++
		}
	}

	retain := func(rec *model.Record) bool {
		text := rec.Get(field)
		matched := 0
		for _, rule := range rules {
			if !rule.re.MatchString(text) {
				continue
			}
			if rule.exclude {
				return false
			}
			matched++
		}
		if includes == 0 {
			return true
		}
		if mode == ModeAll {
			return matched == includes
		}
		return matched > 0
	}

	return &Filter{retain: retain}, nil
}

// NewFilterWithPolicy builds a filter around an externally supplied policy.
func NewFilterWithPolicy(retain Policy) *Filter {
	return &Filter{retain: retain}
}

// Apply removes non-retained records from the slice in place.
func (f *Filter) Apply(recs *[]*model.Record) {
	if f == nil || f.retain == nil || recs == nil {
		return
	}
	kept := (*recs)[:0]
	for _, rec := range *recs {
		if f.retain(rec) {
			kept = append(kept, rec)
		}
	}
	// Release references beyond the new length.
	for i := len(kept); i < len(*recs); i++ {
		(*recs)[i] = nil
	}
	*recs = kept
}
