// Package engine holds the pure SLA computations: rule resolution and clock
// accounting. Nothing in this package touches a store; callers pass the
// catalog data in, which keeps both parts trivially testable and safe to run
// from any goroutine.
package engine

import (
	"sort"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// RuleSet is the active catalog for one tenant, loaded once per evaluation
// pass and shared across tickets.
type RuleSet struct {
	Definitions []domain.SlaDefinition
	Rules       []domain.SlaRule
	Policies    []domain.StatusTimeoutPolicy
}

// ResolvedSla is the winning rule with its parent definition and the
// definition's status policies keyed by status value.
type ResolvedSla struct {
	Definition domain.SlaDefinition
	Rule       domain.SlaRule
	Policies   map[string]domain.StatusTimeoutPolicy
}

// Resolve picks the SLA governing a ticket, or reports that none applies.
// A rule matches when the snapshot's value for rule.FieldName equals
// rule.FieldValue. Matches are ordered by (rule priority, definition level,
// rule id); the trailing id comparison makes the answer reproducible when
// priority and level tie. No match is a valid state, not an error.
func Resolve(snapshot domain.TicketSnapshot, set RuleSet) (*ResolvedSla, bool) {
	defsByID := make(map[string]domain.SlaDefinition, len(set.Definitions))
	for _, def := range set.Definitions {
		if def.IsActive {
			defsByID[def.ID] = def
		}
	}

	type candidate struct {
		rule domain.SlaRule
		def  domain.SlaDefinition
	}
	var matches []candidate
	for _, rule := range set.Rules {
		if !rule.IsActive {
			continue
		}
		def, ok := defsByID[rule.SlaDefinitionID]
		if !ok {
			continue
		}
		value, ok := snapshot.FieldValue(rule.FieldName)
		if !ok || value != rule.FieldValue {
			continue
		}
		matches = append(matches, candidate{rule: rule, def: def})
	}
	if len(matches) == 0 {
		return nil, false
	}

	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.rule.Priority != b.rule.Priority {
			return a.rule.Priority < b.rule.Priority
		}
		if a.def.Level != b.def.Level {
			return a.def.Level < b.def.Level
		}
		return a.rule.ID < b.rule.ID
	})

	winner := matches[0]
	resolved := &ResolvedSla{
		Definition: winner.def,
		Rule:       winner.rule,
		Policies:   make(map[string]domain.StatusTimeoutPolicy),
	}
	for _, policy := range set.Policies {
		if policy.IsActive && policy.SlaDefinitionID == winner.def.ID {
			resolved.Policies[policy.StatusValue] = policy
		}
	}
	return resolved, true
}

// MatchingRules returns every active rule matching the snapshot in
// precedence order, for diagnostics.
func MatchingRules(snapshot domain.TicketSnapshot, set RuleSet) []domain.SlaRule {
	defsByID := make(map[string]domain.SlaDefinition, len(set.Definitions))
	for _, def := range set.Definitions {
		if def.IsActive {
			defsByID[def.ID] = def
		}
	}
	var matches []domain.SlaRule
	for _, rule := range set.Rules {
		if !rule.IsActive {
			continue
		}
		if _, ok := defsByID[rule.SlaDefinitionID]; !ok {
			continue
		}
		if value, ok := snapshot.FieldValue(rule.FieldName); ok && value == rule.FieldValue {
			matches = append(matches, rule)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		la, lb := defsByID[a.SlaDefinitionID].Level, defsByID[b.SlaDefinitionID].Level
		if la != lb {
			return la < lb
		}
		return a.ID < b.ID
	})
	return matches
}
