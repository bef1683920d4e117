package storage

import (
	"context"
	"time"

	"github.com/dikkadev/addonmgr/pkg/rules"
)

// Addon represents an installed add-on
type Addon struct {
	Owner       string    // GitHub repository owner
	Repo        string    // GitHub repository name
	Version     string    // Installed version (tag name)
	InstallPath string    // Path of the binary in bin/actual
	BinaryName  string    // Name of the symlink in bin
	Platform    string    // Platform the add-on was installed for (e.g., linux-amd64)
	InstalledAt time.Time // When the add-on was installed
	UpdatedAt   time.Time // When the add-on was last updated
}

// ID returns the add-on identifier used for update rules
func (a *Addon) ID() string {
	return a.Owner + "/" + a.Repo
}

// Storage defines the interface for add-on and update rule storage
type Storage interface {
	rules.Repository

	// Initialize initializes the storage (e.g., creates tables)
	Initialize(ctx context.Context) error

	// AddAddon adds a new add-on
	AddAddon(ctx context.Context, addon *Addon) error

	// GetAddon gets an add-on by owner and repo, nil if it is not installed
	GetAddon(ctx context.Context, owner, repo string) (*Addon, error)

	// ListAddons lists all installed add-ons
	ListAddons(ctx context.Context) ([]*Addon, error)

	// UpdateAddon updates an existing add-on
	UpdateAddon(ctx context.Context, addon *Addon) error

	// DeleteAddon deletes an add-on
	DeleteAddon(ctx context.Context, owner, repo string) error

	// Close closes the storage
	Close() error
}
