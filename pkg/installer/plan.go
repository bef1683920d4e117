package installer

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/dikkadev/addonmgr/pkg/github"
	"github.com/dikkadev/addonmgr/pkg/rules"
)

var (
	// ErrPinned is returned when an add-on is pinned to its installed version
	ErrPinned = errors.New("add-on is pinned to its installed version")
	// ErrUnversioned is returned when a version pin applies to an add-on
	// whose installed tag is not a semantic version
	ErrUnversioned = errors.New("installed version is not a semantic version")
)

// canonical turns a release tag into the "vMAJOR.MINOR.PATCH" form semver
// expects, or "" if it is not a semantic version
func canonical(tag string) string {
	v := strings.TrimSpace(tag)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return semver.Canonical(v)
}

// PlanUpdate picks the release an add-on at version current should move to
// under ruleSet. It returns nil when the add-on is up to date. Drafts and
// pre-releases are never picked.
func PlanUpdate(current string, releases []*github.Release, ruleSet []rules.UpdateRule) (*github.Release, error) {
	if slices.Contains(ruleSet, rules.RulePinVersion) {
		return nil, ErrPinned
	}

	cur := canonical(current)

	// pin-minor is the stricter of the two pins
	var prefix func(string) string
	switch {
	case slices.Contains(ruleSet, rules.RulePinMinor):
		prefix = semver.MajorMinor
	case slices.Contains(ruleSet, rules.RulePinMajor):
		prefix = semver.Major
	}
	if prefix != nil && cur == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnversioned, current)
	}

	var (
		best     *github.Release
		bestVer  string
		fallback *github.Release
		sawValid bool
	)
	for _, release := range releases {
		if release == nil || release.Draft || release.Prerelease {
			continue
		}

		v := canonical(release.TagName)
		if v == "" {
			if fallback == nil {
				fallback = release
			}
			continue
		}
		sawValid = true

		if prefix != nil && prefix(v) != prefix(cur) {
			continue
		}
		if cur != "" && semver.Compare(v, cur) <= 0 {
			continue
		}
		if best == nil || semver.Compare(v, bestVer) > 0 {
			best, bestVer = release, v
		}
	}

	if best != nil {
		return best, nil
	}

	// Repositories that do not tag semantic versions: take the newest release
	if prefix == nil && !sawValid && fallback != nil && fallback.TagName != current {
		return fallback, nil
	}
	return nil, nil
}
