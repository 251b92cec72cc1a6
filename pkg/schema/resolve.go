package schema

import "github.com/cockroachdb/errors"

// ErrUnresolvedType is returned by ResolveAll when a field references a type
// that does not exist or is not a message or enum.
var ErrUnresolvedType = errors.New("unresolvable type reference")

// ErrInvalidMapKey is returned by ResolveAll for a map field whose key is not
// an integral type, bool or string.
var ErrInvalidMapKey = errors.New("invalid map key type")

// ResolveAll binds the Resolved target of every non-primitive field. It stops at
// the first reference it cannot bind. Calling it again on a resolved tree is a
// no-op.
func (t *Tree) ResolveAll() error {
	if t.resolved {
		return nil
	}
	for i := range t.nodes {
		n := &t.nodes[i]
		if n.Kind != KindField {
			continue
		}
		if n.Field.Map && !IsMapKey(n.Field.KeyType) {
			return errors.Wrapf(ErrInvalidMapKey, "field %s: %q", t.FullyQualifiedName(n.ID), n.Field.KeyType)
		}
		if IsPrimitive(n.Field.Type) {
			n.Field.Resolved = NoNode
			continue
		}
		target := t.Lookup(n.Field.Scope, n.Field.Type)
		if target == NoNode {
			return errors.WithDetailf(
				errors.Wrapf(ErrUnresolvedType, "field %s", t.FullyQualifiedName(n.ID)),
				"reference %q not found from %s", n.Field.Type, t.FullyQualifiedName(n.Field.Scope))
		}
		if k := t.nodes[target].Kind; k != KindMessage && k != KindEnum {
			return errors.Wrapf(ErrUnresolvedType, "field %s: %q is a %s", t.FullyQualifiedName(n.ID), n.Field.Type, k)
		}
		n.Field.Resolved = target
	}
	t.resolved = true
	return nil
}

// Resolved reports whether ResolveAll has completed since the last change.
func (t *Tree) Resolved() bool {
	return t.resolved
}
