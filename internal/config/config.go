// Package config loads pipeline configuration: the pipeline rule set and the
// document types whose schemas may carry property annotations.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jacoelho/xprop"
)

// SchemaConfig declares one document type.
type SchemaConfig struct {
	Key       string `yaml:"key"`
	Root      string `yaml:"root"`
	Namespace string `yaml:"namespace,omitempty"`
	Path      string `yaml:"path"`
	Origin    string `yaml:"origin,omitempty"`
}

// File models the pipeline configuration file.
type File struct {
	// Precedence overrides the precedence attribute of Properties.
	Precedence *xprop.Precedence `yaml:"precedence,omitempty"`
	Properties string            `yaml:"properties,omitempty"`
	Schemas    []SchemaConfig    `yaml:"schemas,omitempty"`
}

// Pipeline is a loaded configuration.
type Pipeline struct {
	RuleSet *xprop.RuleSet
	types   map[string]xprop.DocumentType
	keys    []string
}

// DocumentType returns the document type declared under key.
func (p *Pipeline) DocumentType(key string) (xprop.DocumentType, bool) {
	d, ok := p.types[key]
	return d, ok
}

// Keys returns the document type keys in declaration order.
func (p *Pipeline) Keys() []string {
	return slices.Clone(p.keys)
}

// Load reads the configuration file name from fsys. Schema paths are relative
// to the directory of name.
func Load(fsys fs.FS, name string) (*Pipeline, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	p, err := Parse(fsys, path.Dir(name), data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", name, err)
	}
	return p, nil
}

// Parse builds a Pipeline from YAML data, resolving schema paths under dir.
func Parse(fsys fs.FS, dir string, data []byte) (*Pipeline, error) {
	var file File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := file.Validate(); err != nil {
		return nil, err
	}

	set, err := xprop.ParseRuleSet(file.Properties)
	if err != nil {
		return nil, fmt.Errorf("properties: %w", err)
	}
	if file.Precedence != nil && *file.Precedence != set.Precedence() {
		if set, err = xprop.NewRuleSet(*file.Precedence, set.Rules()...); err != nil {
			return nil, fmt.Errorf("properties: %w", err)
		}
	}

	p := &Pipeline{RuleSet: set, types: make(map[string]xprop.DocumentType, len(file.Schemas))}
	for _, s := range file.Schemas {
		origin, _ := xprop.ParseOrigin(s.Origin)
		p.types[s.Key] = &fileDocumentType{
			fsys:      fsys,
			path:      path.Join(dir, s.Path),
			key:       s.Key,
			root:      s.Root,
			namespace: s.Namespace,
			origin:    origin,
		}
		p.keys = append(p.keys, s.Key)
	}
	return p, nil
}

// Validate checks the schema declarations.
func (f *File) Validate() error {
	seen := make(map[string]bool, len(f.Schemas))
	for i, s := range f.Schemas {
		if strings.TrimSpace(s.Key) == "" {
			return fmt.Errorf("schemas[%d].key is required", i)
		}
		if seen[s.Key] {
			return fmt.Errorf("schemas[%d].key %q is declared multiple times", i, s.Key)
		}
		seen[s.Key] = true
		if s.Path == "" {
			return fmt.Errorf("schemas[%d].path is required", i)
		}
		if _, err := xprop.ParseOrigin(s.Origin); err != nil {
			return fmt.Errorf("schemas[%d].origin: %w", i, err)
		}
	}
	return nil
}

// fileDocumentType reads its schema from a file on every call; the locator
// memoizes what it derives from it.
type fileDocumentType struct {
	fsys      fs.FS
	path      string
	key       string
	root      string
	namespace string
	origin    xprop.Origin
}

func (d *fileDocumentType) RootElementName() string { return d.root }
func (d *fileDocumentType) TargetNamespace() string { return d.namespace }
func (d *fileDocumentType) Origin() xprop.Origin    { return d.origin }
func (d *fileDocumentType) Key() string             { return d.key }

func (d *fileDocumentType) SchemaContent() ([]byte, error) {
	data, err := fs.ReadFile(d.fsys, d.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	return data, nil
}
