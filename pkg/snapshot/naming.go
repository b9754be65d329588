package snapshot

import (
	"strconv"
	"strings"
	"time"
)

// FileName returns the file name used for a workflow: every character
// outside [A-Za-z0-9] becomes an underscore and the result is lowercased.
func FileName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r < 128 && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return strings.ToLower(b.String()) + ".json"
}

// Timestamp formats t as a UTC ISO-8601 time with milliseconds, with ':'
// and '.' replaced by '-' so it can be used in a file name.
func Timestamp(t time.Time) string {
	return strings.NewReplacer(":", "-", ".", "-").Replace(isoTime(t))
}

// Date formats t as a UTC calendar date.
func Date(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

func isoTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// reservedNames are device names Windows refuses as file names, whatever
// the extension.
var reservedNames = []string{
	"con", "prn", "aux", "nul",
	"com1", "com2", "com3", "com4", "com5", "com6", "com7", "com8", "com9",
	"lpt1", "lpt2", "lpt3", "lpt4", "lpt5", "lpt6", "lpt7", "lpt8", "lpt9",
}

// namer hands out unique file names within one directory. A name already
// taken gets _2, _3, ... appended in the order it is requested. Reserved
// device names count as taken.
type namer struct {
	used map[string]bool
}

func newNamer() *namer {
	n := &namer{used: make(map[string]bool, len(reservedNames))}
	for _, name := range reservedNames {
		n.used[name+".json"] = true
	}
	return n
}

func (n *namer) next(workflowName string) string {
	file := FileName(workflowName)
	if !n.used[file] {
		n.used[file] = true
		return file
	}

	base := strings.TrimSuffix(file, ".json")
	for i := 2; ; i++ {
		candidate := base + "_" + strconv.Itoa(i) + ".json"
		if !n.used[candidate] {
			n.used[candidate] = true
			return candidate
		}
	}
}
