package summarizer

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// ErrMalformedDigest matches every parse or validation failure of model output.
var ErrMalformedDigest = errors.New("summarizer: malformed digest")

// MalformedDigestError describes why model output was rejected. Raw holds the
// text after fence stripping, for logging only.
type MalformedDigestError struct {
	Reason string
	Raw    string
	Err    error
}

func (e *MalformedDigestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrMalformedDigest, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrMalformedDigest, e.Reason)
}

func (e *MalformedDigestError) Unwrap() error { return e.Err }

func (e *MalformedDigestError) Is(target error) bool { return target == ErrMalformedDigest }

var (
	schemaOnce sync.Once
	schemas    map[Variant]*jsonschema.Schema
	schemaErr  error
)

func schemaFile(v Variant) string {
	return fmt.Sprintf("schemas/digest_%s.json", v)
}

// DigestSchema returns the compiled JSON Schema for variant.
func DigestSchema(v Variant) (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiled := make(map[Variant]*jsonschema.Schema)
		for _, variant := range []Variant{VariantBasic, VariantExtended} {
			name := schemaFile(variant)
			data, err := schemaFS.ReadFile(name)
			if err != nil {
				schemaErr = fmt.Errorf("read %s: %w", name, err)
				return
			}
			compiler := jsonschema.NewCompiler()
			if err := compiler.AddResource(name, bytes.NewReader(data)); err != nil {
				schemaErr = fmt.Errorf("add schema resource %s: %w", name, err)
				return
			}
			s, err := compiler.Compile(name)
			if err != nil {
				schemaErr = fmt.Errorf("compile %s: %w", name, err)
				return
			}
			compiled[variant] = s
		}
		schemas = compiled
	})
	if schemaErr != nil {
		return nil, schemaErr
	}
	s, ok := schemas[v]
	if !ok {
		return nil, fmt.Errorf("summarizer: no schema for variant %q", v)
	}
	return s, nil
}

// stripCodeFence removes a leading ``` or ```json line and a trailing ```.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
			s = s[4:]
		}
	}
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ParseDigest decodes raw model output into a Digest and validates it
// against the schema for variant. Lists longer than MaxPoints are truncated
// and basic digests drop any feature fields the model added.
// Any failure is a *MalformedDigestError; no partial digest is returned.
func ParseDigest(raw string, variant Variant) (*Digest, error) {
	body := stripCodeFence(raw)
	if body == "" {
		return nil, &MalformedDigestError{Reason: "empty response"}
	}

	schema, err := DigestSchema(variant)
	if err != nil {
		return nil, &MalformedDigestError{Reason: "schema unavailable", Err: err}
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, &MalformedDigestError{Reason: "invalid JSON", Raw: body, Err: err}
	}
	if dec.More() {
		return nil, &MalformedDigestError{Reason: "trailing data after JSON object", Raw: body}
	}
	if err := schema.Validate(doc); err != nil {
		return nil, &MalformedDigestError{Reason: "schema validation failed", Raw: body, Err: err}
	}

	var d Digest
	if err := json.Unmarshal([]byte(body), &d); err != nil {
		return nil, &MalformedDigestError{Reason: "decode failed", Raw: body, Err: err}
	}

	d.PraisePoints = normalizePoints(d.PraisePoints)
	d.PainPoints = normalizePoints(d.PainPoints)
	if variant == VariantExtended {
		d.RequestedFeatures = normalizePoints(d.RequestedFeatures)
	} else {
		d.TopRequestedFeature = ""
		d.RequestedFeatures = nil
	}
	d.Variant = variant

	return &d, nil
}

func normalizePoints(ps []Point) []Point {
	if ps == nil {
		return []Point{}
	}
	if len(ps) > MaxPoints {
		return ps[:MaxPoints]
	}
	return ps
}
