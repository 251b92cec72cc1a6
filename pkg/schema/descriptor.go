package schema

import (
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

// LoadDescriptorSetFile reads a binary FileDescriptorSet, as written by
// protoc --descriptor_set_out.
func LoadDescriptorSetFile(path string) (*descriptorpb.FileDescriptorSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read descriptor set %s", path)
	}
	set := &descriptorpb.FileDescriptorSet{}
	if err := proto.Unmarshal(data, set); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal descriptor set %s", path)
	}
	return set, nil
}

// FromFileDescriptorSet builds an unresolved tree from every file in the set.
func FromFileDescriptorSet(set *descriptorpb.FileDescriptorSet) *Tree {
	return FromFiles(set.GetFile())
}

type pendingExtension struct {
	scope NodeID
	field *descriptorpb.FieldDescriptorProto
}

type builder struct {
	tree       *Tree
	groups     map[string]bool
	mapEntries map[string]*descriptorpb.DescriptorProto
	extensions []pendingExtension
}

// FromFiles builds an unresolved tree. Files sharing a package share their
// namespaces; file options land on the innermost package namespace.
func FromFiles(files []*descriptorpb.FileDescriptorProto) *Tree {
	b := &builder{
		tree:       NewTree(),
		groups:     map[string]bool{},
		mapEntries: map[string]*descriptorpb.DescriptorProto{},
	}

	for _, file := range files {
		b.collect(file)
	}

	for _, file := range files {
		ns := b.tree.Namespace(file.GetPackage())
		if ns != b.tree.Root() {
			mergeOptions(b.tree.Node(ns).Options, file.GetOptions())
		}
		prefix := packagePrefix(file)
		for _, enum := range file.GetEnumType() {
			b.addEnum(ns, enum)
		}
		for _, msg := range file.GetMessageType() {
			b.addMessage(ns, prefix, msg)
		}
		for _, ext := range file.GetExtension() {
			b.extensions = append(b.extensions, pendingExtension{scope: ns, field: ext})
		}
	}

	// Extensions go last so the extendee exists whatever the file order was.
	for _, ext := range b.extensions {
		extendee := b.tree.Lookup(ext.scope, ext.field.GetExtendee())
		if extendee == NoNode || b.tree.Node(extendee).Kind != KindMessage {
			continue
		}
		b.tree.AddExtension(extendee, ext.scope, ext.field.GetName(), b.fieldFromDescriptor(ext.field))
	}

	return b.tree
}

// collect records the full names of messages declared through group fields
// and of the synthetic entry messages protoc generates for map fields.
func (b *builder) collect(file *descriptorpb.FileDescriptorProto) {
	var walk func(prefix string, msgs []*descriptorpb.DescriptorProto)
	walk = func(prefix string, msgs []*descriptorpb.DescriptorProto) {
		for _, msg := range msgs {
			fullName := prefix + "." + msg.GetName()
			if msg.GetOptions().GetMapEntry() {
				b.mapEntries[fullName] = msg
			}
			for _, field := range msg.GetField() {
				if field.GetType() == descriptorpb.FieldDescriptorProto_TYPE_GROUP {
					b.groups[field.GetTypeName()] = true
				}
			}
			walk(fullName, msg.GetNestedType())
		}
	}
	walk(packagePrefix(file), file.GetMessageType())
}

func packagePrefix(file *descriptorpb.FileDescriptorProto) string {
	if file.GetPackage() == "" {
		return ""
	}
	return "." + file.GetPackage()
}

func (b *builder) addEnum(parent NodeID, enum *descriptorpb.EnumDescriptorProto) {
	id := b.tree.AddEnum(parent, enum.GetName())
	for _, value := range enum.GetValue() {
		b.tree.AddEnumValue(id, value.GetName())
	}
}

func (b *builder) addMessage(parent NodeID, prefix string, msg *descriptorpb.DescriptorProto) {
	fullName := prefix + "." + msg.GetName()
	id := b.tree.AddMessage(parent, msg.GetName())
	b.tree.Node(id).IsGroup = b.groups[fullName]

	for _, field := range msg.GetField() {
		b.tree.AddField(id, field.GetName(), b.fieldFromDescriptor(field))
	}
	for _, enum := range msg.GetEnumType() {
		b.addEnum(id, enum)
	}
	for _, nested := range msg.GetNestedType() {
		// Map entries live on the map field itself.
		if nested.GetOptions().GetMapEntry() {
			continue
		}
		b.addMessage(id, fullName, nested)
	}
	for _, ext := range msg.GetExtension() {
		b.extensions = append(b.extensions, pendingExtension{scope: id, field: ext})
	}
}

// fieldFromDescriptor converts a field. A repeated field of a map entry type
// becomes a single map field typed by the entry's value.
func (b *builder) fieldFromDescriptor(field *descriptorpb.FieldDescriptorProto) Field {
	if entry, ok := b.mapEntries[field.GetTypeName()]; ok &&
		field.GetLabel() == descriptorpb.FieldDescriptorProto_LABEL_REPEATED {
		var key, value *descriptorpb.FieldDescriptorProto
		for _, f := range entry.GetField() {
			switch f.GetNumber() {
			case 1:
				key = f
			case 2:
				value = f
			}
		}
		if key != nil && value != nil {
			return Field{
				Map:     true,
				KeyType: typeOf(key),
				Type:    typeOf(value),
			}
		}
	}

	return Field{
		Required: field.GetLabel() == descriptorpb.FieldDescriptorProto_LABEL_REQUIRED,
		Repeated: field.GetLabel() == descriptorpb.FieldDescriptorProto_LABEL_REPEATED,
		Type:     typeOf(field),
	}
}

// typeOf returns the reference text of message, enum and group fields and the
// scalar name of everything else.
func typeOf(field *descriptorpb.FieldDescriptorProto) string {
	switch field.GetType() {
	case descriptorpb.FieldDescriptorProto_TYPE_MESSAGE,
		descriptorpb.FieldDescriptorProto_TYPE_ENUM,
		descriptorpb.FieldDescriptorProto_TYPE_GROUP:
		return field.GetTypeName()
	default:
		return scalarTypeName(field.GetType())
	}
}

func scalarTypeName(t descriptorpb.FieldDescriptorProto_Type) string {
	switch t {
	case descriptorpb.FieldDescriptorProto_TYPE_DOUBLE:
		return "double"
	case descriptorpb.FieldDescriptorProto_TYPE_FLOAT:
		return "float"
	case descriptorpb.FieldDescriptorProto_TYPE_INT64:
		return "int64"
	case descriptorpb.FieldDescriptorProto_TYPE_UINT64:
		return "uint64"
	case descriptorpb.FieldDescriptorProto_TYPE_INT32:
		return "int32"
	case descriptorpb.FieldDescriptorProto_TYPE_FIXED64:
		return "fixed64"
	case descriptorpb.FieldDescriptorProto_TYPE_FIXED32:
		return "fixed32"
	case descriptorpb.FieldDescriptorProto_TYPE_BOOL:
		return "bool"
	case descriptorpb.FieldDescriptorProto_TYPE_STRING:
		return "string"
	case descriptorpb.FieldDescriptorProto_TYPE_BYTES:
		return "bytes"
	case descriptorpb.FieldDescriptorProto_TYPE_UINT32:
		return "uint32"
	case descriptorpb.FieldDescriptorProto_TYPE_SFIXED32:
		return "sfixed32"
	case descriptorpb.FieldDescriptorProto_TYPE_SFIXED64:
		return "sfixed64"
	case descriptorpb.FieldDescriptorProto_TYPE_SINT32:
		return "sint32"
	case descriptorpb.FieldDescriptorProto_TYPE_SINT64:
		return "sint64"
	}
	return strings.ToLower(strings.TrimPrefix(t.String(), "TYPE_"))
}

// mergeOptions copies every populated option into dst. Known options are keyed
// by their field name; custom options that arrive as unknown fields are keyed
// by "(<field number>)".
func mergeOptions(dst map[string]string, opts *descriptorpb.FileOptions) {
	if opts == nil {
		return
	}
	m := opts.ProtoReflect()
	m.Range(func(fd protoreflect.FieldDescriptor, v protoreflect.Value) bool {
		name := string(fd.Name())
		if fd.IsExtension() {
			name = "(" + string(fd.FullName()) + ")"
		}
		dst[name] = v.String()
		return true
	})

	unknown := m.GetUnknown()
	for len(unknown) > 0 {
		num, _, n := protowire.ConsumeField(unknown)
		if n < 0 {
			return
		}
		dst[fmt.Sprintf("(%d)", num)] = fmt.Sprintf("%x", unknown[:n])
		unknown = unknown[n:]
	}
}
