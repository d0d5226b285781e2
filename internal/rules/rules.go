package rules

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strconv"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed versions.cue
var versionsCUE []byte

// Rules is the authorization rule set of one room version.
type Rules struct {
	Version     string `json:"version"`
	Disposition string `json:"disposition"`

	// Knocking enables the knock membership and join rule (v7+).
	Knocking bool `json:"knocking"`

	// RestrictedJoinRule enables the restricted join rule (v8+).
	RestrictedJoinRule bool `json:"restricted_join_rule"`

	// KnockRestrictedJoinRule enables knock_restricted (v10+).
	KnockRestrictedJoinRule bool `json:"knock_restricted_join_rule"`

	// IntegerPowerLevels rejects power levels written as strings (v10+).
	IntegerPowerLevels bool `json:"integer_power_levels"`

	// CreatorFromSender takes the room creator from the create event's
	// sender instead of its content (v11+).
	CreatorFromSender bool `json:"creator_from_sender"`
}

// Registry holds compiled rule sets keyed by version.
type Registry struct {
	byVersion map[string]*Rules
}

// ConfigError reports an invalid rule declaration with its CUE position.
type ConfigError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *ConfigError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var builtin = sync.OnceValues(func() (*Registry, error) {
	return compile(nil, "")
})

// Builtin returns the embedded rule sets. The result is shared and must not
// be modified.
func Builtin() (*Registry, error) {
	return builtin()
}

// Lookup returns the built-in rule set for a room version.
func Lookup(version string) (*Rules, error) {
	reg, err := Builtin()
	if err != nil {
		return nil, err
	}
	return reg.Lookup(version)
}

// LoadFile compiles a CUE file of additional versions on top of the built-in
// ones. Declarations conflicting with a built-in version are errors.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return compile(data, path)
}

// Lookup returns the rule set for a version.
func (r *Registry) Lookup(version string) (*Rules, error) {
	if version == "" {
		return nil, fmt.Errorf("room version is required")
	}
	rs, ok := r.byVersion[version]
	if !ok {
		return nil, fmt.Errorf("unsupported room version %q", version)
	}
	return rs, nil
}

// Versions lists known versions, numeric versions first in numeric order.
func (r *Registry) Versions() []string {
	versions := make([]string, 0, len(r.byVersion))
	for v := range r.byVersion {
		versions = append(versions, v)
	}
	slices.SortFunc(versions, compareVersions)
	return versions
}

func compareVersions(a, b string) int {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		return na - nb
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// compile builds a registry from the embedded declarations, optionally
// unified with an extra CUE document.
func compile(extra []byte, filename string) (*Registry, error) {
	ctx := cuecontext.New()

	v := ctx.CompileBytes(versionsCUE, cue.Filename("versions.cue"))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	if extra != nil {
		user := ctx.CompileBytes(extra, cue.Filename(filename))
		if err := user.Err(); err != nil {
			return nil, formatCUEError(err)
		}
		v = v.Unify(user)
	}

	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	versionsVal := v.LookupPath(cue.ParsePath("versions"))
	if !versionsVal.Exists() {
		return nil, &ConfigError{Field: "versions", Message: "versions is required", Pos: v.Pos()}
	}

	iter, err := versionsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	reg := &Registry{byVersion: make(map[string]*Rules)}
	for iter.Next() {
		var rs Rules
		if err := iter.Value().Decode(&rs); err != nil {
			return nil, formatCUEError(err)
		}
		if rs.Version == "" {
			return nil, &ConfigError{
				Field:   iter.Label(),
				Message: "version is required",
				Pos:     iter.Value().Pos(),
			}
		}
		reg.byVersion[rs.Version] = &rs
	}

	return reg, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	cfgErr := &ConfigError{Field: "cue", Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		cfgErr.Pos = positions[0]
	}
	return cfgErr
}
