package definition

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/tidwall/gjson"
)

type splice struct {
	start, end int
	value      []byte
}

// RenameCredentials replaces the name of every credential reference found in
// renames (old name → new name). Only the name values are rewritten; the rest
// of the document, including its formatting, is left as is.
//
// It returns the new document and the number of references changed.
func RenameCredentials(raw []byte, renames map[string]string) ([]byte, int, error) {
	var splices []splice

	for _, ref := range References(raw) {
		newName, ok := renames[ref.Name]
		if !ok || newName == ref.Name {
			continue
		}

		res := gjson.GetBytes(raw, ref.namePath)
		if !res.Exists() || res.Index <= 0 || res.Index+len(res.Raw) > len(raw) {
			return nil, 0, fmt.Errorf("cannot locate credential name in node %q", ref.Node)
		}

		encoded, err := encodeString(newName)
		if err != nil {
			return nil, 0, err
		}
		splices = append(splices, splice{start: res.Index, end: res.Index + len(res.Raw), value: encoded})
	}

	if len(splices) == 0 {
		return raw, 0, nil
	}

	// Apply from the end so earlier offsets stay valid.
	sort.Slice(splices, func(i, j int) bool { return splices[i].start > splices[j].start })

	out := append([]byte(nil), raw...)
	for _, s := range splices {
		tail := append([]byte(nil), out[s.end:]...)
		out = append(append(out[:s.start], s.value...), tail...)
	}

	if !gjson.ValidBytes(out) {
		return nil, 0, fmt.Errorf("renaming produced invalid JSON")
	}
	return out, len(splices), nil
}

func encodeString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("failed to encode credential name: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
