package schema

import "strings"

// FullyQualifiedName returns the dotted path of id from the root. The root's
// name is empty, so every other node's name starts with a dot (".foo.Bar").
func (t *Tree) FullyQualifiedName(id NodeID) string {
	n := &t.nodes[id]
	if n.Parent == NoNode {
		return n.Name
	}
	return t.FullyQualifiedName(n.Parent) + "." + n.Name
}

// path returns the names from the first level below the root down to id.
func (t *Tree) path(id NodeID) []string {
	var parts []string
	for ptr := id; ptr != NoNode && t.nodes[ptr].Parent != NoNode; ptr = t.nodes[ptr].Parent {
		parts = append(parts, t.nodes[ptr].Name)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return parts
}

// QualifiedNameRelativeTo returns the shortest name for target that, looked up
// from scope, finds target again.
func (t *Tree) QualifiedNameRelativeTo(scope NodeID, target NodeID) string {
	parts := t.path(target)
	for n := 1; n <= len(parts); n++ {
		candidate := parts[len(parts)-n:]
		if t.lookup(scope, candidate) == target {
			return strings.Join(candidate, ".")
		}
	}
	return t.FullyQualifiedName(target)
}

// Lookup resolves a type reference the way protobuf scoping does: a leading dot
// makes it absolute, otherwise scope and then each enclosing scope is tried.
func (t *Tree) Lookup(scope NodeID, ref string) NodeID {
	if strings.HasPrefix(ref, ".") {
		return t.descend(t.Root(), strings.Split(ref[1:], "."))
	}
	return t.lookup(scope, strings.Split(ref, "."))
}

func (t *Tree) lookup(scope NodeID, parts []string) NodeID {
	for ptr := scope; ptr != NoNode; ptr = t.nodes[ptr].Parent {
		if found := t.descend(ptr, parts); found != NoNode {
			return found
		}
	}
	return NoNode
}

func (t *Tree) descend(from NodeID, parts []string) NodeID {
	ptr := from
	for _, part := range parts {
		if !t.nodes[ptr].Kind.IsType() {
			return NoNode
		}
		ptr = t.child(ptr, part)
		if ptr == NoNode {
			return NoNode
		}
	}
	return ptr
}
