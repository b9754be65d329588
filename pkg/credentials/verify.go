package credentials

import (
	"github.com/dshills/n8nctl/pkg/definition"
)

// FileReport lists the credential references of one definition file.
type FileReport struct {
	File       string
	Workflow   string
	References []definition.Reference
	Err        error // set when the file could not be loaded
}

// Hardcoded returns the references that pin a credential id.
func (f FileReport) Hardcoded() []definition.Reference {
	var out []definition.Reference
	for _, ref := range f.References {
		if ref.Hardcoded() {
			out = append(out, ref)
		}
	}
	return out
}

// VerifyReport is the result of Verify.
type VerifyReport struct {
	Files []FileReport
}

// HardcodedCount returns the number of hardcoded references across all files.
func (r *VerifyReport) HardcodedCount() int {
	n := 0
	for _, f := range r.Files {
		n += len(f.Hardcoded())
	}
	return n
}

// FailedCount returns the number of files that could not be loaded.
func (r *VerifyReport) FailedCount() int {
	n := 0
	for _, f := range r.Files {
		if f.Err != nil {
			n++
		}
	}
	return n
}

// Verify scans every definition in src for credential references.
// Only a failure to read the directory is returned as an error.
func Verify(src definition.Source) (*VerifyReport, error) {
	files, err := src.Files()
	if err != nil {
		return nil, err
	}

	report := &VerifyReport{Files: make([]FileReport, 0, len(files))}
	for _, file := range files {
		def, err := src.Load(file)
		if err != nil {
			report.Files = append(report.Files, FileReport{File: file, Err: err})
			continue
		}
		report.Files = append(report.Files, FileReport{
			File:       file,
			Workflow:   def.Name,
			References: definition.References(def.Raw),
		})
	}
	return report, nil
}
