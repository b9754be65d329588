// Package definition reads workflow definitions from a local directory.
//
// A definition is one JSON file holding one workflow document. Apart from the
// "name" and "nodes" fields the document is treated as opaque and is handed
// to the server byte for byte.
package definition

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultExtension is the extension of definition files.
const DefaultExtension = ".json"

// Sentinel errors for definition loading.
var (
	ErrInvalidJSON       = errors.New("invalid JSON")
	ErrInvalidDefinition = errors.New("invalid workflow definition")
)

// Definition is a workflow document loaded from a file.
type Definition struct {
	File string // base name of the source file
	Path string // full path of the source file
	Name string // workflow name, the correlation key on the server
	Raw  json.RawMessage
}

// Source is a directory of definition files.
type Source struct {
	Dir       string
	Extension string
}

// NewSource returns a source for dir using the default extension.
func NewSource(dir string) Source {
	return Source{Dir: dir, Extension: DefaultExtension}
}

func (s Source) extension() string {
	if s.Extension == "" {
		return DefaultExtension
	}
	return s.Extension
}

// Files returns the names of the definition files in ascending lexical order.
// An error means the directory itself could not be read.
func (s Source) Files() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read definitions directory %s: %w", s.Dir, err)
	}

	ext := s.extension()
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ext) {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	return files, nil
}

// Path returns the full path of a file in the source.
func (s Source) Path(file string) string {
	return filepath.Join(s.Dir, file)
}

// Load reads and checks one definition file.
func (s Source) Load(file string) (*Definition, error) {
	path := s.Path(file)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition file: %w", err)
	}

	def, err := Parse(data)
	if err != nil {
		return nil, err
	}
	def.File = file
	def.Path = path
	return def, nil
}

// Parse checks a definition document and extracts its name.
func Parse(data []byte) (*Definition, error) {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	if err := validateShape(doc); err != nil {
		return nil, err
	}

	obj := doc.(map[string]interface{})
	return &Definition{
		Name: obj["name"].(string),
		Raw:  json.RawMessage(data),
	}, nil
}
