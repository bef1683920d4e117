// Package rules tracks which add-ons are exempt from automatic updates.
//
// A Store keeps the rules of every add-on in memory and writes each change
// through to a Repository. Callers own the repository connection and pass it
// to every call that touches durable state.
package rules

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when removing rules of an add-on that has none
	ErrNotFound = errors.New("no update rules for add-on")
	// ErrInvalidRule is returned when a concrete rule is required but RuleNone
	// or an unknown value was given
	ErrInvalidRule = errors.New("invalid update rule")
)

// Store is the in-memory authority on add-on update rules
type Store struct {
	mu     sync.RWMutex
	rules  map[string][]UpdateRule
	logger *zap.Logger
}

// NewStore creates an empty store. Refresh must be called before the store
// reflects persisted rules.
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		rules:  make(map[string][]UpdateRule),
		logger: logger,
	}
}

// Refresh replaces all rules with the repository's current contents.
// On a read error the previous rules are kept. The lock is held across the
// read so a concurrent mutation is never lost from memory.
func (s *Store) Refresh(ctx context.Context, repo Repository) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, err := repo.GetAddonUpdateRules(ctx)
	if err != nil {
		return fmt.Errorf("failed to load update rules: %w", err)
	}

	fresh := make(map[string][]UpdateRule, len(snapshot))
	for id, list := range snapshot {
		var set []UpdateRule
		for _, rule := range list {
			if !rule.Valid() || slices.Contains(set, rule) {
				s.logger.Warn("ignoring stored update rule",
					zap.String("addon", id), zap.Stringer("rule", rule))
				continue
			}
			set = append(set, rule)
		}
		if len(set) > 0 {
			fresh[id] = set
		}
	}

	s.rules = fresh

	s.logger.Debug("update rules refreshed", zap.Int("addons", len(fresh)))
	return nil
}

// IsAutoUpdateable reports whether no rule at all applies to id
func (s *Store) IsAutoUpdateable(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.rules[id]
	return !ok
}

// IsUpdateableByRule reports whether rule is not yet recorded for id
func (s *Store) IsUpdateableByRule(id string, rule UpdateRule) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.updateableByRule(id, rule)
}

func (s *Store) updateableByRule(id string, rule UpdateRule) bool {
	return !slices.Contains(s.rules[id], rule)
}

// Rules returns a copy of the rules recorded for id, oldest first
func (s *Store) Rules(id string) []UpdateRule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.rules[id])
}

// Snapshot returns a copy of every recorded rule set
func (s *Store) Snapshot() map[string][]UpdateRule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]UpdateRule, len(s.rules))
	for id, set := range s.rules {
		out[id] = slices.Clone(set)
	}
	return out
}

// AddRule records rule for id and writes it through to repo. Adding a rule
// that is already recorded is a no-op. The in-memory change is kept even when
// the write fails.
func (s *Store) AddRule(ctx context.Context, repo Repository, id string, rule UpdateRule) error {
	if !rule.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidRule, rule)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.updateableByRule(id, rule) {
		return nil
	}

	s.rules[id] = append(s.rules[id], rule)

	if err := repo.SetUpdateRuleForAddon(ctx, id, rule); err != nil {
		s.logger.Error("failed to persist update rule",
			zap.String("addon", id), zap.Stringer("rule", rule), zap.Error(err))
		return fmt.Errorf("failed to persist rule %s for %s: %w", rule, id, err)
	}

	s.logger.Info("update rule added", zap.String("addon", id), zap.Stringer("rule", rule))
	return nil
}

// RemoveRule removes a single rule of id. RuleNone is rejected; use
// RemoveAllRules to clear everything. Removing a rule that is not recorded
// succeeds without touching repo.
func (s *Store) RemoveRule(ctx context.Context, repo Repository, id string, rule UpdateRule) error {
	if !rule.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidRule, rule)
	}
	return s.remove(ctx, repo, id, rule, false)
}

// RemoveAllRules clears every rule of id
func (s *Store) RemoveAllRules(ctx context.Context, repo Repository, id string) error {
	return s.remove(ctx, repo, id, RuleNone, true)
}

func (s *Store) remove(ctx context.Context, repo Repository, id string, rule UpdateRule, all bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.rules[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	// Dropping the last rule drops the entry, so no empty set is ever kept.
	if all || (len(set) == 1 && set[0] == rule) {
		delete(s.rules, id)
		if err := repo.RemoveAllUpdateRulesForAddon(ctx, id); err != nil {
			return fmt.Errorf("failed to remove rules for %s: %w", id, err)
		}
		s.logger.Info("update rules cleared", zap.String("addon", id))
		return nil
	}
	if len(set) == 1 {
		return fmt.Errorf("%w: %s has no rule %s", ErrNotFound, id, rule)
	}

	idx := slices.Index(set, rule)
	if idx < 0 {
		return nil
	}

	s.rules[id] = slices.Delete(set, idx, idx+1)
	if err := repo.RemoveUpdateRuleForAddon(ctx, id, rule); err != nil {
		return fmt.Errorf("failed to remove rule %s for %s: %w", rule, id, err)
	}

	s.logger.Info("update rule removed", zap.String("addon", id), zap.Stringer("rule", rule))
	return nil
}
