// Package typescript renders a resolved schema tree as a TypeScript
// declaration module, to be used alongside a CommonJS runtime module.
package typescript

import (
	"log/slog"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/wham/pbts/pkg/schema"
)

// Description is shown by target listings.
const Description = "Runtime structures as TypeScript definition module, to be used alongside a commonjs module."

// fallbackModule names the wrapper module when the schema has no package.
const fallbackModule = "ProtoBuf"

// Options is reserved for generator settings. No key changes the output yet and
// unknown keys are ignored.
type Options map[string]any

type generator struct {
	tree *schema.Tree
	out  buffer
}

// Generate resolves every type reference in tree and returns the declaration
// module. A reference that cannot be resolved is returned as an error and
// nothing is generated. Generating twice from the same tree yields the same
// text.
func Generate(tree *schema.Tree, opts Options) (string, error) {
	if err := tree.ResolveAll(); err != nil {
		return "", errors.Wrap(err, "failed to resolve schema")
	}

	g := &generator{tree: tree}
	ptr := collapse(tree)

	pkg := strings.TrimPrefix(tree.FullyQualifiedName(ptr), ".")
	if pkg != "" {
		g.out.push("export module ", pkg, " {\n\n")
	} else {
		g.out.push("export module ", fallbackModule, " {\n\n")
	}
	g.buildHelperObjects("  ")
	g.buildNamespace(ptr, "  ")
	g.out.push("}\n")

	result := g.out.String()
	slog.Debug("Generated TypeScript declarations", "package", pkg, "bytes", len(result))
	return result, nil
}

// collapse descends from the root through namespaces that are the only child of
// their parent and carry no options.
func collapse(tree *schema.Tree) schema.NodeID {
	ptr := tree.Root()
	for {
		children := tree.Children(ptr)
		if len(children) != 1 {
			return ptr
		}
		child := tree.Node(children[0])
		if child.Kind != schema.KindNamespace || len(child.Options) > 0 {
			return ptr
		}
		ptr = child.ID
	}
}

func (g *generator) buildHelperObjects(indent string) {
	g.out.push(indent, "export class Buffer {\n")
	g.out.push(indent, "  toArrayBuffer(): ArrayBuffer;\n")
	g.out.push(indent, "}\n")
	g.out.push("\n")
}

// hasNamespaceChildren reports whether a message owns anything that needs its
// own module block.
func (g *generator) hasNamespaceChildren(id schema.NodeID) bool {
	for _, c := range g.tree.Children(id, schema.KindEnum, schema.KindMessage, schema.KindNamespace) {
		if n := g.tree.Node(c); n.Kind != schema.KindMessage || !n.IsGroup {
			return true
		}
	}
	return false
}

func (g *generator) buildNamespace(ns schema.NodeID, indent string) {
	for _, enum := range g.tree.Children(ns, schema.KindEnum) {
		g.buildEnum(enum, indent)
	}
	for _, msg := range g.tree.Children(ns, schema.KindMessage) {
		// Groups would be written inline where they are used; nothing does that yet.
		if g.tree.Node(msg).IsGroup {
			continue
		}
		g.buildMessageParameters(msg, indent)
		g.buildMessage(msg, indent)
	}
	for _, inner := range g.tree.Children(ns, schema.KindNamespace) {
		g.out.push(indent, "export module ", g.tree.Node(inner).Name, " {\n")
		g.buildNamespace(inner, indent+"  ")
		g.out.push(indent, "}\n")
	}
	g.out.collapseTrailingBlankLines()
}

// fields returns the fields of msg that are written out.
func (g *generator) fields(msg schema.NodeID) []schema.NodeID {
	var out []schema.NodeID
	for _, f := range g.tree.Children(msg, schema.KindField) {
		if g.tree.Node(f).Field.Extension {
			continue
		}
		out = append(out, f)
	}
	return out
}

func (g *generator) buildMessageParameters(msg schema.NodeID, indent string) {
	node := g.tree.Node(msg)
	if !node.IsGroup {
		g.out.push(indent, "export class ", node.Name, "Parameters")
	}
	g.out.push(" {\n")
	for _, fld := range g.fields(msg) {
		g.buildMessageField(msg, fld, indent+"  ", true)
	}
	g.out.push(indent, "}\n\n")
}

func (g *generator) buildMessage(msg schema.NodeID, indent string) {
	node := g.tree.Node(msg)
	if !node.IsGroup {
		g.out.push(indent, "export class ", node.Name)
	}
	g.out.push(" {\n")
	fields := g.fields(msg)
	for _, fld := range fields {
		g.buildMessageField(msg, fld, indent+"  ", false)
	}
	if len(fields) > 0 {
		g.out.push("\n")
	}

	g.out.push(indent, "  constructor(args?: ", node.Name, "Parameters);\n")
	g.out.push(indent, "  static decode(arr: ArrayBuffer): ", node.Name, ";\n")
	g.out.push(indent, "  encode(): Buffer;\n")
	g.out.push(indent, "}\n")

	if g.hasNamespaceChildren(msg) {
		g.out.push(indent, "export module ", node.Name, " {\n")
		g.buildNamespace(msg, indent+"  ")
		g.out.push(indent, "}\n")
	}

	g.out.push("\n")
}

func (g *generator) buildMessageField(msg, fld schema.NodeID, indent string, isParameters bool) {
	node := g.tree.Node(fld)
	f := node.Field

	g.out.push(indent, node.Name)
	if f.Required && !isParameters {
		g.out.push(": ")
	} else {
		g.out.push("?: ")
	}
	if f.Resolved != schema.NoNode {
		g.out.push(g.tree.QualifiedNameRelativeTo(g.tree.Node(msg).Parent, f.Resolved))
		if isParameters && g.tree.Node(f.Resolved).Kind == schema.KindMessage {
			g.out.push("Parameters")
		}
	} else {
		g.out.push(typeName(f.Type))
	}
	if f.Repeated {
		g.out.push("[]")
	}
	g.out.push(";\n")
}

func (g *generator) buildEnum(enum schema.NodeID, indent string) {
	g.out.push(indent, "enum ", g.tree.Node(enum).Name, " {\n")
	for _, val := range g.tree.Children(enum, schema.KindEnumValue) {
		g.out.push(indent, "  ", g.tree.Node(val).Name, ",\n")
	}
	g.out.push(indent, "}\n\n")
}
