// Package checklist loads versioned checklist templates and caches them.
//
// Templates are YAML or JSON documents named <version>.yaml, <version>.yml or
// <version>.json. Every document is checked against an embedded JSON Schema
// before it is accepted.
package checklist

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/dukerupert/checkmate"
	"github.com/kaptinlin/jsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed templates/*.yaml
var builtin embed.FS

//go:embed schema.json
var schemaJSON []byte

// DefaultVersion is the built-in template version used for new inspections.
const DefaultVersion = "v1"

var extensions = []string{".yaml", ".yml", ".json"}

// Compile-time check that FSProvider implements checkmate.TemplateProvider.
var _ checkmate.TemplateProvider = (*FSProvider)(nil)

// FSProvider reads templates from a filesystem on every call. Wrap it in a
// Cache for repeated lookups.
type FSProvider struct {
	fsys    fs.FS
	current string
	schema  *jsonschema.Schema
}

// NewFSProvider creates a provider over fsys. current names the version
// returned by CurrentVersion.
func NewFSProvider(fsys fs.FS, current string) (*FSProvider, error) {
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile(schemaJSON)
	if err != nil {
		return nil, fmt.Errorf("compile template schema: %w", err)
	}
	return &FSProvider{fsys: fsys, current: current, schema: schema}, nil
}

// NewBuiltinProvider serves the templates embedded in the binary.
func NewBuiltinProvider() (*FSProvider, error) {
	sub, err := fs.Sub(builtin, "templates")
	if err != nil {
		return nil, err
	}
	return NewFSProvider(sub, DefaultVersion)
}

func (p *FSProvider) CurrentVersion(ctx context.Context) (string, error) {
	if p.current == "" {
		return "", checkmate.NotFound("No current template version configured")
	}
	return p.current, nil
}

func (p *FSProvider) Template(ctx context.Context, version string) (*checkmate.Template, error) {
	if !validVersion(version) {
		return nil, checkmate.NotFound("Template version %q not found", version)
	}

	for _, ext := range extensions {
		data, err := fs.ReadFile(p.fsys, version+ext)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, checkmate.Internal("Failed to read template", err)
		}
		return p.parse(version, data)
	}
	return nil, checkmate.NotFound("Template version %q not found", version)
}

// Versions lists every version available in the filesystem, sorted.
func (p *FSProvider) Versions(ctx context.Context) ([]string, error) {
	entries, err := fs.ReadDir(p.fsys, ".")
	if err != nil {
		return nil, checkmate.Internal("Failed to list templates", err)
	}
	var versions []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := path.Ext(e.Name())
		if !slices.Contains(extensions, ext) {
			continue
		}
		v := strings.TrimSuffix(e.Name(), ext)
		if !slices.Contains(versions, v) {
			versions = append(versions, v)
		}
	}
	slices.Sort(versions)
	return versions, nil
}

// parse decodes a YAML or JSON document, validates it against the schema and
// checks identifier uniqueness. JSON is a subset of YAML so one decoder
// handles both.
func (p *FSProvider) parse(version string, data []byte) (*checkmate.Template, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, checkmate.Internal(fmt.Sprintf("Template %s is not valid YAML", version), err)
	}
	normalized, err := json.Marshal(doc)
	if err != nil {
		return nil, checkmate.Internal(fmt.Sprintf("Template %s cannot be normalized", version), err)
	}

	result := p.schema.ValidateJSON(normalized)
	if !result.IsValid() {
		return nil, checkmate.Internal(fmt.Sprintf("Template %s failed schema validation", version),
			fmt.Errorf("%v", result.Errors))
	}

	var tmpl checkmate.Template
	if err := json.Unmarshal(normalized, &tmpl); err != nil {
		return nil, checkmate.Internal(fmt.Sprintf("Template %s cannot be decoded", version), err)
	}
	if tmpl.Version != version {
		return nil, checkmate.Internal(fmt.Sprintf("Template file %s declares version %q", version, tmpl.Version), nil)
	}
	if err := checkIdentifiers(&tmpl); err != nil {
		return nil, checkmate.Internal(fmt.Sprintf("Template %s is inconsistent", version), err)
	}
	return &tmpl, nil
}

func checkIdentifiers(t *checkmate.Template) error {
	sections := make(map[string]bool)
	items := make(map[string]bool)
	for _, sec := range t.Sections {
		if sections[sec.ID] {
			return fmt.Errorf("duplicate section id %q", sec.ID)
		}
		sections[sec.ID] = true
		for _, it := range sec.Items {
			if items[it.ID] {
				return fmt.Errorf("duplicate item id %q", it.ID)
			}
			items[it.ID] = true
		}
	}
	return nil
}

// validVersion rejects names that could escape the template directory.
func validVersion(v string) bool {
	return v != "" && !strings.ContainsAny(v, `/\`) && v != "." && v != ".."
}
