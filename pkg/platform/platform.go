package platform

import (
	"fmt"
	"runtime"
	"slices"
	"strings"

	"github.com/dikkadev/addonmgr/pkg/github"
)

// Platform represents a target platform
type Platform struct {
	OS   string
	Arch string
}

// Current returns the current platform
func Current() Platform {
	return Platform{
		OS:   runtime.GOOS,
		Arch: normalizeArch(runtime.GOARCH),
	}
}

// String returns a string representation of the platform
func (p Platform) String() string {
	return fmt.Sprintf("%s-%s", p.OS, p.Arch)
}

// Name fragments identifying an OS in asset names. "win" alone is left out
// because it is a substring of "darwin".
var osAliases = map[string][]string{
	"linux":   {"linux"},
	"darwin":  {"darwin", "macos", "osx"},
	"windows": {"windows", "win64", "win32", ".exe"},
}

// Whole words identifying an OS; as fragments they would match names such as
// "pineapple"
var osWords = map[string][]string{
	"darwin": {"apple"},
}

var archAliases = map[string][]string{
	"amd64": {"amd64", "x86_64", "x64"},
	"arm64": {"arm64", "aarch64"},
	"386":   {"386", "i686", "i386"},
	"arm":   {"armv7", "armv6", "armhf", "arm"},
}

// Assets that are never the binary itself
var skipMarkers = []string{".sha256", ".sha512", ".sig", ".asc", ".pem", ".sbom", "checksums", ".txt"}

// Whole words marking source archives
var skipWords = []string{"src", "source", "sources"}

var archiveSuffixes = []string{".tar.gz", ".tgz", ".tar.xz", ".zip"}

// SelectAsset selects the most appropriate asset for the platform. Assets
// built for another OS or architecture are never selected.
func (p Platform) SelectAsset(assets []github.Asset) (*github.Asset, error) {
	best := -1
	bestScore := 0

	for i, asset := range assets {
		score := matchScore(strings.ToLower(asset.Name), p)
		if score > bestScore {
			bestScore = score
			best = i
		}
	}

	if best < 0 {
		return nil, fmt.Errorf("no suitable asset found for platform %s", p)
	}
	return &assets[best], nil
}

// matchScore rates how well a lower-cased asset name fits p. Zero or less
// means the asset must not be used.
func matchScore(name string, p Platform) int {
	tokens := words(name)
	if containsAny(name, skipMarkers) || hasWord(tokens, skipWords) {
		return 0
	}

	osScore := 0
	for osName, aliases := range osAliases {
		if !containsAny(name, aliases) && !hasWord(tokens, osWords[osName]) {
			continue
		}
		if osName != p.OS {
			return 0
		}
		osScore = 10
	}
	if osScore == 0 && p.OS == "linux" && strings.Contains(name, "gnu") {
		osScore = 5
	}
	if osScore == 0 {
		return 0
	}

	score := osScore + archScore(name, p.Arch)
	if score < osScore {
		return 0
	}

	for _, suffix := range archiveSuffixes {
		if strings.HasSuffix(name, suffix) {
			score--
			break
		}
	}
	return score
}

// archScore is 5 for a matching architecture, 2 for a universal build, 0 when
// the name carries no architecture and negative for another architecture.
func archScore(name, arch string) int {
	if matchesArch(name, arch) {
		if arch == "arm" && strings.Contains(name, "armv") {
			return 4
		}
		return 5
	}
	for other := range archAliases {
		if other != arch && matchesArch(name, other) {
			return -100
		}
	}
	if strings.Contains(name, "universal") {
		return 2
	}
	return 0
}

func matchesArch(name, arch string) bool {
	switch arch {
	case "arm":
		// "arm" is a prefix of "arm64"
		return containsAny(strings.ReplaceAll(name, "arm64", ""), archAliases["arm"])
	case "386":
		return containsAny(name, archAliases["386"]) ||
			(strings.Contains(name, "x86") && !strings.Contains(name, "x86_64"))
	default:
		return containsAny(name, archAliases[arch])
	}
}

func containsAny(name string, fragments []string) bool {
	for _, f := range fragments {
		if strings.Contains(name, f) {
			return true
		}
	}
	return false
}

// words splits an asset name on the separators release tooling uses
func words(name string) []string {
	return strings.FieldsFunc(name, func(r rune) bool {
		return r == '-' || r == '_' || r == '.'
	})
}

func hasWord(tokens, candidates []string) bool {
	for _, c := range candidates {
		if slices.Contains(tokens, c) {
			return true
		}
	}
	return false
}

// normalizeArch normalizes architecture names
func normalizeArch(arch string) string {
	switch arch {
	case "x86_64":
		return "amd64"
	case "x86":
		return "386"
	case "aarch64":
		return "arm64"
	default:
		return arch
	}
}
