// Package schema holds the resolved protobuf schema tree consumed by the
// declaration generators.
//
// Nodes are owned by a Tree and refer to each other by NodeID, so parent links
// never own their target.
package schema

import "strings"

// Kind is the variant of a node.
type Kind int

const (
	KindNamespace Kind = iota
	KindMessage
	KindField
	KindEnum
	KindEnumValue
)

func (k Kind) String() string {
	switch k {
	case KindNamespace:
		return "namespace"
	case KindMessage:
		return "message"
	case KindField:
		return "field"
	case KindEnum:
		return "enum"
	case KindEnumValue:
		return "enum value"
	}
	return "unknown"
}

// IsType reports whether nodes of this kind can be the target of a type reference
// or act as a lookup scope.
func (k Kind) IsType() bool {
	return k == KindNamespace || k == KindMessage || k == KindEnum
}

// NodeID indexes a node inside its Tree.
type NodeID int32

// NoNode is the zero reference: no parent, no resolved type.
const NoNode NodeID = -1

// Field carries the field-only attributes of a KindField node.
type Field struct {
	Required bool
	Repeated bool
	// Type is a primitive name (see IsPrimitive) or the reference text as written,
	// e.g. "Person" or ".foo.bar.Person". For map fields it is the value type.
	Type string
	// Map marks a map field; KeyType holds its scalar key type.
	Map     bool
	KeyType string
	// Resolved is the referenced message or enum, NoNode for primitives.
	Resolved NodeID
	// Extension marks fields contributed by an extend block.
	Extension bool
	// Scope is where Type is looked up from. Equal to the parent for regular
	// fields, the declaring scope for extensions.
	Scope NodeID
}

// Node is one element of the tree.
type Node struct {
	ID       NodeID
	Kind     Kind
	Name     string
	Parent   NodeID
	Children []NodeID

	// Options is only meaningful on namespaces.
	Options map[string]string
	// IsGroup marks a message declared by a proto2 group field.
	IsGroup bool
	// Field is set for KindField nodes.
	Field *Field
}

// Tree owns every node. The zero value is not usable, call NewTree.
type Tree struct {
	nodes    []Node
	resolved bool
}

// NewTree returns a tree with an empty root namespace.
func NewTree() *Tree {
	t := &Tree{}
	t.add(NoNode, KindNamespace, "")
	return t
}

// Root returns the root namespace.
func (t *Tree) Root() NodeID {
	return 0
}

// Node returns the node for id. It panics on an id that does not belong to the tree.
//
// Field attributes must not be edited through the returned node once the tree
// has been resolved; use SetFieldType so the next ResolveAll rebinds it.
func (t *Tree) Node(id NodeID) *Node {
	return &t.nodes[id]
}

// Len returns the number of nodes including the root.
func (t *Tree) Len() int {
	return len(t.nodes)
}

func (t *Tree) add(parent NodeID, kind Kind, name string) NodeID {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, Node{
		ID:     id,
		Kind:   kind,
		Name:   name,
		Parent: parent,
	})
	if parent != NoNode {
		t.nodes[parent].Children = append(t.nodes[parent].Children, id)
	}
	t.resolved = false
	return id
}

// AddNamespace appends a namespace under parent.
func (t *Tree) AddNamespace(parent NodeID, name string) NodeID {
	id := t.add(parent, KindNamespace, name)
	t.nodes[id].Options = map[string]string{}
	return id
}

// Namespace returns the namespace chain for a dotted package path below root,
// creating missing levels. An empty path returns the root.
func (t *Tree) Namespace(path string) NodeID {
	ptr := t.Root()
	if path == "" {
		return ptr
	}
	for _, part := range strings.Split(path, ".") {
		next := t.child(ptr, part)
		if next == NoNode || t.nodes[next].Kind != KindNamespace {
			next = t.AddNamespace(ptr, part)
		}
		ptr = next
	}
	return ptr
}

// AddMessage appends a message under parent.
func (t *Tree) AddMessage(parent NodeID, name string) NodeID {
	return t.add(parent, KindMessage, name)
}

// AddEnum appends an enum under parent.
func (t *Tree) AddEnum(parent NodeID, name string) NodeID {
	return t.add(parent, KindEnum, name)
}

// AddEnumValue appends a value to an enum.
func (t *Tree) AddEnumValue(enum NodeID, name string) NodeID {
	return t.add(enum, KindEnumValue, name)
}

// AddField appends a regular field to a message.
func (t *Tree) AddField(message NodeID, name string, f Field) NodeID {
	f.Extension = false
	f.Scope = message
	return t.addField(message, name, f)
}

// AddExtension appends an extension field to the extendee message. Its type is
// looked up from scope, the place the extend block was declared.
func (t *Tree) AddExtension(extendee NodeID, scope NodeID, name string, f Field) NodeID {
	f.Extension = true
	f.Scope = scope
	return t.addField(extendee, name, f)
}

func (t *Tree) addField(message NodeID, name string, f Field) NodeID {
	id := t.add(message, KindField, name)
	f.Resolved = NoNode
	t.nodes[id].Field = &f
	return id
}

// SetFieldType changes the type reference of a field and invalidates the
// resolution of the tree.
func (t *Tree) SetFieldType(id NodeID, typ string) {
	f := t.nodes[id].Field
	f.Type = typ
	f.Resolved = NoNode
	t.resolved = false
}

// Children returns the direct children of id whose kind is one of kinds, in
// insertion order. Without kinds every child is returned.
func (t *Tree) Children(id NodeID, kinds ...Kind) []NodeID {
	children := t.nodes[id].Children
	if len(kinds) == 0 {
		return children
	}
	var out []NodeID
	for _, c := range children {
		for _, k := range kinds {
			if t.nodes[c].Kind == k {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// child returns the first type-bearing child of scope called name.
func (t *Tree) child(scope NodeID, name string) NodeID {
	for _, c := range t.nodes[scope].Children {
		n := &t.nodes[c]
		if n.Name == name && n.Kind.IsType() {
			return c
		}
	}
	return NoNode
}
