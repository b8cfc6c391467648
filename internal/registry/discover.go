package registry

import (
	"os"
	"path/filepath"

	"github.com/PhilosopherRex/snapper/internal/logging"
	"github.com/PhilosopherRex/snapper/internal/manifest"
)

// DiscoveredManifest pairs a successfully parsed manifest with the
// directory it came from.
type DiscoveredManifest struct {
	Dir      string
	Manifest *manifest.Manifest
	Warnings []string
}

// DiscoveryError records a failure encountered while scanning a
// directory that does have a snap.json (spec §4.1: a directory with no
// snap.json at all is silently skipped, never an error).
type DiscoveryError struct {
	Dir string
	Err error
}

// DiscoveryResult is the outcome of a Discover call.
type DiscoveryResult struct {
	Manifests []DiscoveredManifest
	Errors    []DiscoveryError
}

// Discover scans each first-level child directory of every directory in
// dirs for a readable snap.json. Directories that don't exist, or that
// exist but contain no snap.json, are skipped without error. Directories
// that do contain a snap.json but fail to read or parse it are recorded
// in Errors, keyed by directory path.
//
// Grounded on the teacher's plugin discovery walk (streamspace
// internal/plugins/discovery.go), which performs the same
// stat-then-read-then-parse-with-partial-failure-collection scan over a
// configured set of root directories.
func Discover(dirs ...string) DiscoveryResult {
	var result DiscoveryResult
	log := logging.Component("registry")

	for _, root := range dirs {
		entries, err := os.ReadDir(root)
		if err != nil {
			// A missing or unreadable root directory is silently
			// skipped, not an error (spec §4.1).
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			appDir := filepath.Join(root, entry.Name())
			manifestPath := filepath.Join(appDir, "snap.json")

			data, err := os.ReadFile(manifestPath)
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				result.Errors = append(result.Errors, DiscoveryError{Dir: appDir, Err: err})
				log.Warn().Str("dir", appDir).Err(err).Msg("failed to read snap.json")
				continue
			}

			m, warnings, err := manifest.Parse(data)
			if err != nil {
				result.Errors = append(result.Errors, DiscoveryError{Dir: appDir, Err: err})
				log.Warn().Str("dir", appDir).Err(err).Msg("failed to parse snap.json")
				continue
			}
			for _, w := range warnings {
				log.Warn().Str("dir", appDir).Str("snapp", m.ID).Msg(w)
			}
			result.Manifests = append(result.Manifests, DiscoveredManifest{
				Dir:      appDir,
				Manifest: m,
				Warnings: warnings,
			})
		}
	}

	return result
}
