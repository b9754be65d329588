package definition

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// Locations inside a node where credential references are found.
const (
	LocationParameters = "parameters.credentials"
	LocationNode       = "credentials"
)

// Reference is a credential reference inside a node.
type Reference struct {
	Node     string // name of the node holding the reference
	Key      string // credential type key, e.g. "odooApi"
	Name     string // credential name used for lookup on the server
	ID       string // hardcoded credential id, empty when null or absent
	Location string // LocationParameters or LocationNode

	hasID    bool
	namePath string
}

// Hardcoded reports whether the reference pins a credential id instead of
// resolving it by name.
func (r Reference) Hardcoded() bool {
	return r.hasID
}

// References returns every credential reference of the document in node order.
func References(raw []byte) []Reference {
	var refs []Reference

	nodes := gjson.GetBytes(raw, "nodes")
	for i, node := range nodes.Array() {
		nodeName := node.Get("name").String()

		for _, loc := range []string{LocationParameters, LocationNode} {
			creds := node.Get(loc)
			if !creds.IsObject() {
				continue
			}

			creds.ForEach(func(key, value gjson.Result) bool {
				base := fmt.Sprintf("nodes.%d.%s.%s", i, loc, gjson.Escape(key.String()))
				ref := Reference{Node: nodeName, Key: key.String(), Location: loc}

				switch {
				case value.IsObject():
					ref.Name = value.Get("name").String()
					id := value.Get("id")
					ref.hasID = id.Exists() && id.Type != gjson.Null
					if ref.hasID {
						ref.ID = id.String()
					}
					ref.namePath = base + ".name"
				case value.Type == gjson.String:
					ref.Name = value.String()
					ref.namePath = base
				default:
					return true
				}

				refs = append(refs, ref)
				return true
			})
		}
	}

	return refs
}
