package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"

	"github.com/dikkadev/addonmgr/pkg/rules"
)

// LibSQL implements the Storage interface using libsql
type LibSQL struct {
	db *sql.DB
}

var _ Storage = (*LibSQL)(nil)

// NewLibSQL creates a new LibSQL storage
func NewLibSQL(url string) (*LibSQL, error) {
	db, err := sql.Open("libsql", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows one writer; concurrent updates queue on the pool instead
	// of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	return &LibSQL{db: db}, nil
}

// Initialize creates the database schema
func (s *LibSQL) Initialize(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS addons (
			owner TEXT NOT NULL,
			repo TEXT NOT NULL,
			version TEXT NOT NULL,
			install_path TEXT NOT NULL,
			binary_name TEXT NOT NULL,
			platform TEXT NOT NULL,
			installed_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (owner, repo)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create addons table: %w", err)
	}

	// The autoincrement id keeps rules in insertion order across reloads.
	_, err = s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS update_rules (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			addon_id TEXT NOT NULL,
			rule INTEGER NOT NULL,
			UNIQUE (addon_id, rule)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create update_rules table: %w", err)
	}

	return nil
}

// AddAddon adds a new add-on
func (s *LibSQL) AddAddon(ctx context.Context, addon *Addon) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO addons (
			owner, repo, version, install_path, binary_name, platform,
			installed_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		addon.Owner, addon.Repo, addon.Version, addon.InstallPath, addon.BinaryName, addon.Platform,
		now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert add-on: %w", err)
	}

	addon.InstalledAt = now
	addon.UpdatedAt = now
	return nil
}

// GetAddon gets an add-on by owner and repo
func (s *LibSQL) GetAddon(ctx context.Context, owner, repo string) (*Addon, error) {
	addon := &Addon{}
	err := s.db.QueryRowContext(ctx, `
		SELECT owner, repo, version, install_path, binary_name, platform,
			   installed_at, updated_at
		FROM addons
		WHERE owner = ? AND repo = ?
	`, owner, repo).Scan(
		&addon.Owner, &addon.Repo, &addon.Version, &addon.InstallPath, &addon.BinaryName, &addon.Platform,
		&addon.InstalledAt, &addon.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get add-on: %w", err)
	}

	return addon, nil
}

// ListAddons lists all installed add-ons
func (s *LibSQL) ListAddons(ctx context.Context) ([]*Addon, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT owner, repo, version, install_path, binary_name, platform,
			   installed_at, updated_at
		FROM addons
		ORDER BY owner, repo
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list add-ons: %w", err)
	}
	defer rows.Close()

	var addons []*Addon
	for rows.Next() {
		addon := &Addon{}
		err := rows.Scan(
			&addon.Owner, &addon.Repo, &addon.Version, &addon.InstallPath, &addon.BinaryName, &addon.Platform,
			&addon.InstalledAt, &addon.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan add-on: %w", err)
		}
		addons = append(addons, addon)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate add-ons: %w", err)
	}

	return addons, nil
}

// UpdateAddon updates an existing add-on
func (s *LibSQL) UpdateAddon(ctx context.Context, addon *Addon) error {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE addons
		SET version = ?, install_path = ?, binary_name = ?, platform = ?,
			updated_at = ?
		WHERE owner = ? AND repo = ?
	`,
		addon.Version, addon.InstallPath, addon.BinaryName, addon.Platform,
		now,
		addon.Owner, addon.Repo,
	)
	if err != nil {
		return fmt.Errorf("failed to update add-on: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("add-on not found: %s", addon.ID())
	}

	addon.UpdatedAt = now
	return nil
}

// DeleteAddon deletes an add-on. Its update rules are left to the rule store.
func (s *LibSQL) DeleteAddon(ctx context.Context, owner, repo string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM addons
		WHERE owner = ? AND repo = ?
	`, owner, repo)
	if err != nil {
		return fmt.Errorf("failed to delete add-on: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("add-on not found: %s/%s", owner, repo)
	}

	return nil
}

// GetAddonUpdateRules returns every stored rule grouped by add-on
func (s *LibSQL) GetAddonUpdateRules(ctx context.Context) (map[string][]rules.UpdateRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT addon_id, rule
		FROM update_rules
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list update rules: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]rules.UpdateRule)
	for rows.Next() {
		var (
			id   string
			rule int
		)
		if err := rows.Scan(&id, &rule); err != nil {
			return nil, fmt.Errorf("failed to scan update rule: %w", err)
		}
		out[id] = append(out[id], rules.UpdateRule(rule))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate update rules: %w", err)
	}

	return out, nil
}

// SetUpdateRuleForAddon stores a rule; storing an existing rule is a no-op
func (s *LibSQL) SetUpdateRuleForAddon(ctx context.Context, id string, rule rules.UpdateRule) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO update_rules (addon_id, rule) VALUES (?, ?)
	`, id, int(rule))
	if err != nil {
		return fmt.Errorf("failed to insert update rule: %w", err)
	}
	return nil
}

// RemoveUpdateRuleForAddon removes one rule of an add-on
func (s *LibSQL) RemoveUpdateRuleForAddon(ctx context.Context, id string, rule rules.UpdateRule) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM update_rules
		WHERE addon_id = ? AND rule = ?
	`, id, int(rule))
	if err != nil {
		return fmt.Errorf("failed to delete update rule: %w", err)
	}
	return nil
}

// RemoveAllUpdateRulesForAddon removes every rule of an add-on
func (s *LibSQL) RemoveAllUpdateRulesForAddon(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM update_rules
		WHERE addon_id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("failed to delete update rules: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *LibSQL) Close() error {
	return s.db.Close()
}
