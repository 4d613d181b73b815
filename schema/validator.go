// Package sourceschema validates the source registry file against the
// embedded JSON schema before the coordinator trusts it.
package sourceschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed sources.schema.json
var sourcesSchemaJSON string

// Source is one configured adapter entry.
type Source struct {
	Name              string            `json:"name"`
	Kind              string            `json:"kind"`
	Category          string            `json:"category"`
	URL               string            `json:"url"`
	CredibilityWeight float64           `json:"credibility_weight"`
	Enabled           *bool             `json:"enabled,omitempty"`
	ReportsCitations  bool              `json:"reports_citations"`
	FieldMapping      map[string]string `json:"field_mapping,omitempty"`
}

// IsEnabled defaults to true when the flag is omitted.
func (s Source) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

type registryFile struct {
	Sources []Source `json:"sources"`
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// LoadSources reads, validates, and decodes the registry file.
func LoadSources(path string) ([]Source, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}
	return ParseSources(payload)
}

// ParseSources validates and decodes a registry payload.
func ParseSources(payload []byte) ([]Source, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode sources JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize sources JSON: %w", err)
	}

	var file registryFile
	if err := json.Unmarshal(normalized, &file); err != nil {
		return nil, fmt.Errorf("unmarshal sources: %w", err)
	}

	if err := validateSemantics(file.Sources); err != nil {
		return nil, err
	}
	return file.Sources, nil
}

func validateSemantics(sources []Source) error {
	seen := make(map[string]struct{}, len(sources))
	for i, src := range sources {
		name := strings.ToLower(strings.TrimSpace(src.Name))
		if _, dup := seen[name]; dup {
			return fmt.Errorf("sources[%d]: duplicate source name %q", i, src.Name)
		}
		seen[name] = struct{}{}

		parsed, err := url.Parse(src.URL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("sources[%d] (%s): url %q is not absolute", i, src.Name, src.URL)
		}
	}
	return nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource("sources.schema.json", strings.NewReader(sourcesSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, compiledSchemaErr = compiler.Compile("sources.schema.json")
	})
	return compiledSchema, compiledSchemaErr
}

func decodeStrictJSON(payload []byte) (any, error) {
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	if err := ensureSingleDocument(decoder); err != nil {
		return nil, err
	}
	return value, nil
}

func ensureSingleDocument(decoder *json.Decoder) error {
	var extra any
	err := decoder.Decode(&extra)
	if err == nil {
		return fmt.Errorf("unexpected trailing JSON document")
	}
	if err == io.EOF {
		return nil
	}
	return err
}
