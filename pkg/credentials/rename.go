package credentials

import (
	"fmt"
	"os"

	"github.com/dshills/n8nctl/pkg/definition"
)

// RenameResult describes what Rename did to one file.
type RenameResult struct {
	File    string
	Changed int   // number of references renamed
	Err     error // set when the file could not be loaded or written
}

// Rename rewrites credential reference names in every definition of src.
// Files without a matching reference are not written.
func Rename(src definition.Source, renames map[string]string) ([]RenameResult, error) {
	files, err := src.Files()
	if err != nil {
		return nil, err
	}

	results := make([]RenameResult, 0, len(files))
	for _, file := range files {
		n, err := renameFile(src, file, renames)
		results = append(results, RenameResult{File: file, Changed: n, Err: err})
	}
	return results, nil
}

func renameFile(src definition.Source, file string, renames map[string]string) (int, error) {
	def, err := src.Load(file)
	if err != nil {
		return 0, err
	}

	out, n, err := definition.RenameCredentials(def.Raw, renames)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}

	info, err := os.Stat(def.Path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat definition file: %w", err)
	}

	// Write to a temp file and rename so a failed write never truncates the original.
	tempPath := def.Path + ".tmp"
	if err := os.WriteFile(tempPath, out, info.Mode().Perm()); err != nil {
		return 0, fmt.Errorf("failed to write definition file: %w", err)
	}
	if err := os.Rename(tempPath, def.Path); err != nil {
		_ = os.Remove(tempPath)
		return 0, fmt.Errorf("failed to replace definition file: %w", err)
	}
	return n, nil
}
