package classify

import (
	"fmt"
	"regexp"

	"github.com/mtogate/mtogate/internal/config"
)

// Class is a resolved material class: the rule id plus the presentation and
// sourcing metadata the assembler uses for rows of this class.
type Class struct {
	ID          string
	DisplayName string
	SourceForm  string
	MTOField    string
	Columns     []string
}

type rule struct {
	re    *regexp.Regexp
	class Class
}

// Classifier maps a material code to its class by ordered prefix rules;
// the first matching rule wins. Classifiers are immutable after New, so a
// reload swaps in a fresh one.
type Classifier struct {
	rules []rule
}

// New compiles the configured rules in order.
func New(classes []config.MaterialClass) (*Classifier, error) {
	c := &Classifier{rules: make([]rule, 0, len(classes))}
	for _, mc := range classes {
		re, err := regexp.Compile(mc.Pattern)
		if err != nil {
			return nil, fmt.Errorf("material class %s: compile %q: %w", mc.ID, mc.Pattern, err)
		}
		c.rules = append(c.rules, rule{
			re: re,
			class: Class{
				ID:          mc.ID,
				DisplayName: mc.DisplayName,
				SourceForm:  mc.SourceForm,
				MTOField:    mc.MTOField,
				Columns:     mc.Columns,
			},
		})
	}
	return c, nil
}

// Classify returns the class for a material code, or ok=false when no rule
// matches. Unclassified codes are excluded from assembled results; that is
// policy, not an error.
func (c *Classifier) Classify(materialCode string) (Class, bool) {
	for _, r := range c.rules {
		if r.re.MatchString(materialCode) {
			return r.class, true
		}
	}
	return Class{}, false
}
