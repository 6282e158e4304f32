// Package script implements the agent-script grammar: one or more
// `{key=value;key=value;...}[N]` blocks describing a batch of
// identically-configured agents.
//
// Grounded on original_source/TrainingEngineConsole/TrainingState.cpp's
// parse_script (balanced-brace extraction followed by an optional
// trailing repetition count, clones named "<base>-<clone_id>"), with
// the balanced-brace scan hand-written in Go since no dependency here
// carries a parsing library suited to this grammar — a single-level
// brace scanner is simple enough that reaching for a parser-combinator
// or PEG library would be disproportionate to the grammar (documented
// in DESIGN.md).
package script

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/exp/maps"

	"github.com/dragunovdenis/checkerstrainer/internal/trainerr"
)

// AgentSpec is one parsed agent configuration block, expanded to its
// full clone count by Parse.
type AgentSpec struct {
	Name          string
	Exploration   float64
	Lambda        float64
	Discount      float64
	LearningRate  float64
	NetDimensions []int
}

// defaults mirror TdLambdaAgent's defaults where a key is omitted from
// the script.
func defaultSpec() AgentSpec {
	return AgentSpec{
		Name: "base", Exploration: 0.1, Lambda: 0.0, Discount: 0.9, LearningRate: 0.1,
		NetDimensions: []int{32},
	}
}

var knownKeys = map[string]bool{
	"Name": true, "Exploration": true, "Lambda": true, "Discount": true,
	"LearningRate": true, "NetDimensions": true,
}

// Parse reads a sequence of `{...}[N]` blocks and returns one AgentSpec
// per clone, naming them "base-0, base-1, …" for N>1 (a single block
// just keeps the script's given Name).
func Parse(src string) ([]AgentSpec, error) {
	var out []AgentSpec
	rest := src

	for {
		rest = strings.TrimSpace(rest)
		if rest == "" {
			break
		}
		block, repeat, tail, err := parseOneBlock(rest)
		if err != nil {
			return nil, err
		}
		base, err := parseBlockBody(block)
		if err != nil {
			return nil, err
		}
		for i := 0; i < repeat; i++ {
			clone := base
			if repeat > 1 {
				clone.Name = fmt.Sprintf("%s-%d", base.Name, i)
			}
			out = append(out, clone)
		}
		rest = tail
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("script: empty agent script: %w", trainerr.ScriptParseError)
	}
	return out, nil
}

// parseOneBlock extracts the next `{...}` block (must start with '{'
// after leading whitespace has been trimmed by the caller) plus an
// optional immediately-following `[N]` repeat count, returning the
// block's inner content, the repeat count (default 1), and whatever
// text follows.
func parseOneBlock(s string) (body string, repeat int, tail string, err error) {
	if !strings.HasPrefix(s, "{") {
		return "", 0, "", fmt.Errorf("script: expected '{' at %q: %w", truncate(s), trainerr.ScriptParseError)
	}

	depth := 0
	end := -1
	for i, r := range s {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				end = i
			}
		}
		if end >= 0 {
			break
		}
	}
	if end < 0 {
		return "", 0, "", fmt.Errorf("script: unbalanced '{' in %q: %w", truncate(s), trainerr.ScriptParseError)
	}

	body = s[1:end]
	rest := s[end+1:]
	repeat = 1

	if strings.HasPrefix(rest, "[") {
		closeIdx := strings.Index(rest, "]")
		if closeIdx < 0 {
			return "", 0, "", fmt.Errorf("script: unbalanced '[' in %q: %w", truncate(rest), trainerr.ScriptParseError)
		}
		n, convErr := strconv.Atoi(strings.TrimSpace(rest[1:closeIdx]))
		if convErr != nil {
			return "", 0, "", fmt.Errorf("script: bad repeat count %q: %w", rest[1:closeIdx], trainerr.ScriptParseError)
		}
		repeat = n
		rest = rest[closeIdx+1:]
	}

	return body, repeat, rest, nil
}

func parseBlockBody(body string) (AgentSpec, error) {
	spec := defaultSpec()

	for _, field := range strings.Split(body, ";") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		kv := strings.SplitN(field, "=", 2)
		if len(kv) != 2 {
			return AgentSpec{}, fmt.Errorf("script: malformed field %q: %w", field, trainerr.ScriptParseError)
		}
		key := strings.TrimSpace(kv[0])
		value := strings.TrimSpace(kv[1])

		if !knownKeys[key] {
			return AgentSpec{}, fmt.Errorf("script: unknown key %q (valid keys: %s): %w",
				key, strings.Join(sortedKnownKeys(), ", "), trainerr.ScriptParseError)
		}

		var err error
		switch key {
		case "Name":
			spec.Name = value
		case "Exploration":
			spec.Exploration, err = strconv.ParseFloat(value, 64)
		case "Lambda":
			spec.Lambda, err = strconv.ParseFloat(value, 64)
		case "Discount":
			spec.Discount, err = strconv.ParseFloat(value, 64)
		case "LearningRate":
			spec.LearningRate, err = strconv.ParseFloat(value, 64)
		case "NetDimensions":
			spec.NetDimensions, err = parseDimensions(value)
		}
		if err != nil {
			return AgentSpec{}, fmt.Errorf("script: bad value %q for %s: %w", value, key, trainerr.ScriptParseError)
		}
	}

	return spec, nil
}

func parseDimensions(value string) ([]int, error) {
	parts := strings.Split(value, ",")
	dims := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		dims = append(dims, n)
	}
	return dims, nil
}

// sortedKnownKeys lists the valid script field names for error messages.
func sortedKnownKeys() []string {
	keys := maps.Keys(knownKeys)
	sort.Strings(keys)
	return keys
}

func truncate(s string) string {
	const max = 40
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
