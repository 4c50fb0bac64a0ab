package dice

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownRuleSet indicates a roller was requested for an unregistered
// rule-set name.
var ErrUnknownRuleSet = errors.New("unknown dice rule-set")

// Factory builds rollers for registered rule-sets. It is constructed once at
// process start and passed down; there is no package-level registry.
type Factory struct {
	builders map[string]func() RuleSet
}

// NewFactory creates a factory with the built-in rule-sets registered.
func NewFactory() *Factory {
	f := &Factory{builders: make(map[string]func() RuleSet)}
	f.Register("d20", func() RuleSet { return D20{} })
	f.Register("exploding_d10", func() RuleSet { return ExplodingD10{} })
	f.Register("dice_pool", func() RuleSet { return DicePool{DefaultTarget: 6} })
	f.Register("wild_die", func() RuleSet { return WildDie{} })
	f.Register("fudge", func() RuleSet { return Fudge{} })
	return f
}

// Register adds a rule-set builder, replacing any previous one of that name.
func (f *Factory) Register(name string, builder func() RuleSet) {
	f.builders[name] = builder
}

// Roller builds a roller for the named rule-set.
func (f *Factory) Roller(name string, seed int64) (*Roller, error) {
	builder, ok := f.builders[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRuleSet, name)
	}
	return NewRoller(builder(), seed), nil
}

// Systems lists the registered rule-set names in sorted order.
func (f *Factory) Systems() []string {
	names := make([]string, 0, len(f.builders))
	for name := range f.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
