package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dshills/n8nctl/pkg/n8n"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// ErrInvalidDocument is returned for a workflow whose body is not valid JSON.
var ErrInvalidDocument = errors.New("invalid JSON document")

// indentOptions keeps every array and object on its own lines.
var indentOptions = &pretty.Options{Indent: "  "}

// indent formats a JSON document with a two-space indent and no trailing newline.
func indent(doc []byte) []byte {
	return bytes.TrimSuffix(pretty.PrettyOptions(doc, indentOptions), []byte("\n"))
}

// Saved is one workflow written to disk.
type Saved struct {
	ID   string
	Name string
	File string // path relative to the snapshot directory
}

// writeWorkflows writes each workflow as an indented JSON file in dir.
func writeWorkflows(dir string, workflows []n8n.Workflow) ([]Saved, error) {
	names := newNamer()
	saved := make([]Saved, 0, len(workflows))

	for _, wf := range workflows {
		file := names.next(wf.Name)
		if !gjson.ValidBytes(wf.Raw) {
			return saved, fmt.Errorf("failed to format workflow %q: %w", wf.Name, ErrInvalidDocument)
		}
		if err := writeFile(filepath.Join(dir, file), indent(wf.Raw)); err != nil {
			return saved, err
		}
		saved = append(saved, Saved{ID: wf.ID, Name: wf.Name, File: file})
	}
	return saved, nil
}

// writeJSON writes v as indented JSON without escaping HTML characters.
func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	return writeFile(path, indent(buf.Bytes()))
}

// writeFile writes data through a temporary file and a rename so a reader
// never observes a partial file.
func writeFile(path string, data []byte) error {
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}
