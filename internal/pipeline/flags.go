package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/flagspan/internal/model"
)

// flagsDocument is the object form of a flags file, as a detector response
type flagsDocument struct {
	Flags []model.FlagCandidate `json:"flags" yaml:"flags"`
}

// LoadFlags reads flag candidates from a JSON or YAML file.
// The file holds either a list of flags or an object with a "flags" list.
func LoadFlags(path string) ([]model.FlagCandidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read flags: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseFlagsYAML(data)
	default:
		return ParseFlagsJSON(data)
	}
}

// ParseFlagsJSON decodes a JSON list or {"flags": [...]} object
func ParseFlagsJSON(data []byte) ([]model.FlagCandidate, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("decode flags: empty input")
	}

	var flags []model.FlagCandidate
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &flags); err != nil {
			return nil, fmt.Errorf("decode flags: %w", err)
		}
		return normalizeFlags(flags), nil
	}

	var doc flagsDocument
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("decode flags: %w", err)
	}
	return normalizeFlags(doc.Flags), nil
}

// ParseFlagsYAML decodes a YAML sequence or a mapping with a flags key
func ParseFlagsYAML(data []byte) ([]model.FlagCandidate, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("decode flags: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, fmt.Errorf("decode flags: empty input")
	}

	var flags []model.FlagCandidate
	root := node.Content[0]
	if root.Kind == yaml.SequenceNode {
		if err := root.Decode(&flags); err != nil {
			return nil, fmt.Errorf("decode flags: %w", err)
		}
		return normalizeFlags(flags), nil
	}

	var doc flagsDocument
	if err := root.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode flags: %w", err)
	}
	return normalizeFlags(doc.Flags), nil
}

// normalizeFlags maps kinds and severities onto known values and clamps confidence
func normalizeFlags(flags []model.FlagCandidate) []model.FlagCandidate {
	out := make([]model.FlagCandidate, 0, len(flags))
	for _, f := range flags {
		f.Kind = model.ParseFlagKind(string(f.Kind))
		f.Severity = model.ParseSeverity(string(f.Severity))
		f.Confidence = max(0, min(100, f.Confidence))
		out = append(out, f)
	}
	return out
}
