package component

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// MaxMagnitude bounds every position and scale value. Payloads outside
// the bound are rejected, not clamped.
const MaxMagnitude = 1_000_000.0

var (
	scriptExts = map[string]bool{".lua": true}
	meshExts   = map[string]bool{".obj": true, ".stl": true}
)

// ValidationError reports a malformed or out-of-range payload field.
// Validation runs before any mutation, so a ValidationError guarantees
// the world is untouched.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// ValidateCoreProperties checks entity creation input and returns the
// canonical CoreProperties value. A nil tags slice defaults to empty.
func ValidateCoreProperties(name, targetScene string, tags []string) (CoreProperties, error) {
	if name == "" {
		return CoreProperties{}, invalid("name", "must be a non-empty string")
	}
	if targetScene == "" {
		return CoreProperties{}, invalid("targetScene", "must be a non-empty string")
	}
	if tags == nil {
		tags = []string{}
	}
	return CoreProperties{Name: name, Tags: tags, TargetScene: targetScene}, nil
}

// Parse validates a raw payload for the given kind and returns the
// typed component value. The payload contract is strict: it must
// contain exactly the declared field set for the kind, and unknown
// fields are an error rather than being ignored.
func Parse(kind Kind, data map[string]any) (any, error) {
	switch kind {
	case KindTransform:
		v, err := parseTransform(data)
		if err != nil {
			return nil, err
		}
		return v, nil
	case KindScript:
		v, err := parseScript(data)
		if err != nil {
			return nil, err
		}
		return v, nil
	case KindRenderer:
		v, err := parseRenderer(data)
		if err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, invalid("type", "unsupported component type %q", string(kind))
	}
}

func parseTransform(data map[string]any) (Transform, error) {
	if err := exactFields(data, "position", "scale"); err != nil {
		return Transform{}, err
	}
	pos, err := parseVec3("position", data["position"])
	if err != nil {
		return Transform{}, err
	}
	scale, err := parseVec3("scale", data["scale"])
	if err != nil {
		return Transform{}, err
	}
	for i := 0; i < 3; i++ {
		if scale[i] <= 0 {
			return Transform{}, invalid("scale", "components must be strictly positive")
		}
	}
	return Transform{Position: pos, Scale: scale}, nil
}

func parseScript(data map[string]any) (Script, error) {
	if err := exactFields(data, "scriptPath"); err != nil {
		return Script{}, err
	}
	path, ok := data["scriptPath"].(string)
	if !ok || path == "" {
		return Script{}, invalid("scriptPath", "must be a non-empty string")
	}
	if !filepath.IsAbs(path) {
		return Script{}, invalid("scriptPath", "must be an absolute path")
	}
	if err := checkFile("scriptPath", path, scriptExts); err != nil {
		return Script{}, err
	}
	return Script{ScriptPath: path}, nil
}

func parseRenderer(data map[string]any) (Renderer, error) {
	if err := exactFields(data, "filePath"); err != nil {
		return Renderer{}, err
	}
	path, ok := data["filePath"].(string)
	if !ok || path == "" {
		return Renderer{}, invalid("filePath", "must be a non-empty string")
	}
	if err := checkFile("filePath", path, meshExts); err != nil {
		return Renderer{}, err
	}
	return Renderer{FilePath: path}, nil
}

// exactFields rejects payloads whose key set differs from the declared
// field set in either direction.
func exactFields(data map[string]any, want ...string) error {
	if data == nil {
		return invalid("data", "must be an object")
	}
	wanted := make(map[string]bool, len(want))
	for _, f := range want {
		wanted[f] = true
		if _, ok := data[f]; !ok {
			return invalid(f, "field is required")
		}
	}
	var unknown []string
	for k := range data {
		if !wanted[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return invalid(strings.Join(unknown, ", "), "unknown field")
	}
	return nil
}

func parseVec3(field string, raw any) (mgl64.Vec3, error) {
	var out mgl64.Vec3
	arr, ok := raw.([]any)
	if !ok || len(arr) != 3 {
		return out, invalid(field, "must be an array of exactly 3 numbers")
	}
	for i, v := range arr {
		f, ok := toFloat(v)
		if !ok {
			return out, invalid(field, "must be an array of exactly 3 numbers")
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return out, invalid(field, "values must be finite")
		}
		if f < -MaxMagnitude || f > MaxMagnitude {
			return out, invalid(field, "values must be within ±%d", int(MaxMagnitude))
		}
		out[i] = f
	}
	return out, nil
}

// toFloat accepts the numeric representations produced by the JSON and
// YAML decoders at the boundary.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func checkFile(field, path string, exts map[string]bool) error {
	ext := strings.ToLower(filepath.Ext(path))
	if !exts[ext] {
		return invalid(field, "unrecognized extension %q", ext)
	}
	info, err := os.Stat(path)
	if err != nil {
		return invalid(field, "file does not exist")
	}
	if info.IsDir() {
		return invalid(field, "path is a directory")
	}
	return nil
}
