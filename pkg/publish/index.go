package publish

import "github.com/dshills/n8nctl/pkg/n8n"

// index maps workflow names to remote ids. When several remote workflows
// share a name the first one listed wins.
type index struct {
	ids map[string]string
	// stale is set when a create returned no id; the next lookup re-lists.
	stale bool
}

func newIndex(workflows []n8n.Workflow) *index {
	idx := &index{ids: make(map[string]string, len(workflows))}
	for _, wf := range workflows {
		if _, ok := idx.ids[wf.Name]; !ok && wf.ID != "" {
			idx.ids[wf.Name] = wf.ID
		}
	}
	return idx
}

func (i *index) lookup(name string) (string, bool) {
	id, ok := i.ids[name]
	return id, ok
}

func (i *index) add(name, id string) {
	if id == "" {
		i.stale = true
		return
	}
	if _, ok := i.ids[name]; !ok {
		i.ids[name] = id
	}
}
