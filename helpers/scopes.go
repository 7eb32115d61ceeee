package helpers

import (
	"strconv"

	"github.com/dave/dst"
)

// Names collects every identifier spelled inside node.
func Names(node dst.Node) map[string]bool {
	names := map[string]bool{}
	dst.Inspect(node, func(n dst.Node) bool {
		if id, ok := n.(*dst.Ident); ok {
			names[id.Name] = true
		}
		return true
	})
	return names
}

// UniqueName returns base, or base followed by the smallest positive number,
// such that taken reports false for it.
func UniqueName(base string, taken func(string) bool) string {
	if !taken(base) {
		return base
	}
	for i := 1; ; i++ {
		name := base + strconv.Itoa(i)
		if !taken(name) {
			return name
		}
	}
}
