package rules

import (
	"context"
	"fmt"
	"strings"
)

// UpdateRule is a policy modifier on automatic updates of an add-on
type UpdateRule int

// The integer values are persisted in the database and must not change.
const (
	// RuleNone means "no specific rule". It is never stored.
	RuleNone UpdateRule = iota
	// RuleDisableAutoUpdate excludes the add-on from bulk updates
	RuleDisableAutoUpdate
	// RulePinVersion keeps the add-on at its installed version
	RulePinVersion
	// RulePinMajor restricts updates to the installed major version
	RulePinMajor
	// RulePinMinor restricts updates to the installed major.minor version
	RulePinMinor
)

var ruleNames = map[UpdateRule]string{
	RuleNone:              "none",
	RuleDisableAutoUpdate: "disable-auto-update",
	RulePinVersion:        "pin-version",
	RulePinMajor:          "pin-major",
	RulePinMinor:          "pin-minor",
}

// All returns every concrete rule, in declaration order
func All() []UpdateRule {
	return []UpdateRule{RuleDisableAutoUpdate, RulePinVersion, RulePinMajor, RulePinMinor}
}

// String returns the text form of r used by the CLI
func (r UpdateRule) String() string {
	if name, ok := ruleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("rule(%d)", int(r))
}

// Valid reports whether r is a concrete, storable rule
func (r UpdateRule) Valid() bool {
	return r > RuleNone && r <= RulePinMinor
}

// ParseRule parses the text form of a rule as printed by String
func ParseRule(s string) (UpdateRule, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for rule, name := range ruleNames {
		if name == s && rule != RuleNone {
			return rule, nil
		}
	}
	return RuleNone, fmt.Errorf("%w: %q", ErrInvalidRule, s)
}

// Repository persists update rules
type Repository interface {
	// GetAddonUpdateRules returns all stored rules keyed by add-on id,
	// each list in insertion order
	GetAddonUpdateRules(ctx context.Context) (map[string][]UpdateRule, error)

	// SetUpdateRuleForAddon stores one more rule for an add-on
	SetUpdateRuleForAddon(ctx context.Context, id string, rule UpdateRule) error

	// RemoveUpdateRuleForAddon removes one rule of an add-on
	RemoveUpdateRuleForAddon(ctx context.Context, id string, rule UpdateRule) error

	// RemoveAllUpdateRulesForAddon removes every rule of an add-on
	RemoveAllUpdateRulesForAddon(ctx context.Context, id string) error
}
