package manifest

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/Masterminds/semver/v3"
	"github.com/PhilosopherRex/snapper/internal/apperr"
)

var idPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
var semverPrefix = regexp.MustCompile(`^\d+\.\d+\.\d+`)

// Parse decodes and validates raw snap.json bytes, returning the typed
// Manifest, a list of warnings (non-fatal, e.g. unknown permission tags or
// an over-length shortName), and an error if any required-field or
// malformed-value rule from spec §4.1 is violated.
//
// Validation is the only place the kernel inspects manifest contents;
// everything downstream trusts that an accepted Manifest is well-formed
// (spec §4.1, closing sentence).
func Parse(data []byte) (*Manifest, []string, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, apperr.Wrap(apperr.CodeInvalidManifest, "snap.json is not valid JSON", err)
	}
	return fromRaw(raw)
}

func fromRaw(raw map[string]interface{}) (*Manifest, []string, error) {
	var warnings []string

	for _, field := range []string{"id", "name", "entry", "permissions", "openclaw"} {
		if _, ok := raw[field]; !ok {
			return nil, nil, apperr.InvalidManifest(fmt.Sprintf("missing required field %q", field))
		}
	}

	id, ok := raw["id"].(string)
	if !ok {
		return nil, nil, apperr.InvalidManifest("field \"id\" must be a string")
	}
	if !idPattern.MatchString(id) {
		return nil, nil, apperr.InvalidManifest(fmt.Sprintf("id %q is not kebab-case", id))
	}

	if _, ok := raw["name"].(string); !ok {
		return nil, nil, apperr.InvalidManifest("field \"name\" must be a string")
	}

	if _, ok := raw["entry"].(string); !ok {
		return nil, nil, apperr.InvalidManifest("field \"entry\" must be a string")
	}

	permsRaw, isSeq := raw["permissions"].([]interface{})
	if !isSeq {
		return nil, nil, apperr.InvalidManifest("field \"permissions\" must be a sequence")
	}
	perms := make([]Permission, 0, len(permsRaw))
	for _, p := range permsRaw {
		ps, ok := p.(string)
		if !ok {
			return nil, nil, apperr.InvalidManifest("each permission must be a string")
		}
		perm := Permission(ps)
		if !IsKnownPermission(perm) {
			warnings = append(warnings, fmt.Sprintf("unknown permission %q", ps))
		}
		perms = append(perms, perm)
	}

	openclawRaw, ok := raw["openclaw"].(map[string]interface{})
	if !ok {
		return nil, nil, apperr.InvalidManifest("field \"openclaw\" must be an object")
	}
	minVersion, ok := openclawRaw["minVersion"].(string)
	if !ok || minVersion == "" {
		return nil, nil, apperr.InvalidManifest("missing required field \"openclaw.minVersion\"")
	}
	openclaw := OpenClaw{MinVersion: minVersion}
	if hooksRaw, ok := openclawRaw["hooks"].([]interface{}); ok {
		for _, h := range hooksRaw {
			if hs, ok := h.(string); ok {
				openclaw.Hooks = append(openclaw.Hooks, hs)
			}
		}
	}

	m := &Manifest{
		ID:          id,
		Name:        raw["name"].(string),
		Entry:       raw["entry"].(string),
		Permissions: perms,
		OpenClaw:    openclaw,
	}

	if v, ok := raw["version"]; ok {
		vs, ok := v.(string)
		if !ok {
			return nil, nil, apperr.InvalidManifest("field \"version\" must be a string")
		}
		if !semverPrefix.MatchString(vs) {
			return nil, nil, apperr.InvalidManifest(fmt.Sprintf("version %q must begin with MAJOR.MINOR.PATCH", vs))
		}
		if _, err := semver.NewVersion(vs); err != nil {
			return nil, nil, apperr.InvalidManifest(fmt.Sprintf("version %q is not a valid semantic version: %v", vs, err))
		}
		m.Version = vs
	}

	if sn, ok := raw["shortName"]; ok {
		sns, ok := sn.(string)
		if !ok {
			return nil, nil, apperr.InvalidManifest("field \"shortName\" must be a string")
		}
		if len(sns) > 5 {
			warnings = append(warnings, fmt.Sprintf("shortName %q is longer than 5 characters", sns))
		}
		m.ShortName = sns
	}

	if d, ok := raw["description"].(string); ok {
		m.Description = d
	}
	if icon, ok := raw["icon"].(string); ok {
		m.Icon = icon
	}
	if author, ok := raw["author"].(string); ok {
		m.Author = author
	}

	if cfgRaw, ok := raw["config"].(map[string]interface{}); ok {
		if schema, ok := cfgRaw["schema"].(map[string]interface{}); ok {
			m.Config.Schema = schema
		}
		if defaults, ok := cfgRaw["defaults"].(map[string]interface{}); ok {
			m.Config.Defaults = defaults
		}
		if err := validateConfigDefaults(m.Config); err != nil {
			return nil, nil, err
		}
	}

	return m, warnings, nil
}

// ValidateMinVersion compares a manifest's declared openclaw.minVersion
// against the running host version, using semver precedence. Hosts call
// this explicitly; the Registry itself does not reject on it (spec §4.1
// lists minVersion only as a presence check).
func ValidateMinVersion(m *Manifest, hostVersion string) (bool, error) {
	min, err := semver.NewVersion(m.OpenClaw.MinVersion)
	if err != nil {
		return false, apperr.InvalidManifest(fmt.Sprintf("openclaw.minVersion %q is not valid semver: %v", m.OpenClaw.MinVersion, err))
	}
	host, err := semver.NewVersion(hostVersion)
	if err != nil {
		return false, apperr.InvalidManifest(fmt.Sprintf("host version %q is not valid semver: %v", hostVersion, err))
	}
	return host.Compare(min) >= 0, nil
}
