package schema

// primitiveTypes lists the scalar protobuf types.
var primitiveTypes = map[string]struct{}{
	"double":   {},
	"float":    {},
	"int32":    {},
	"uint32":   {},
	"sint32":   {},
	"int64":    {},
	"uint64":   {},
	"sint64":   {},
	"fixed32":  {},
	"sfixed32": {},
	"fixed64":  {},
	"sfixed64": {},
	"bool":     {},
	"string":   {},
	"bytes":    {},
}

// mapKeyTypes lists the scalar types allowed as map keys: every integral
// type, bool and string.
var mapKeyTypes = map[string]struct{}{
	"int32":    {},
	"uint32":   {},
	"sint32":   {},
	"int64":    {},
	"uint64":   {},
	"sint64":   {},
	"fixed32":  {},
	"sfixed32": {},
	"fixed64":  {},
	"sfixed64": {},
	"bool":     {},
	"string":   {},
}

// IsPrimitive reports whether name is a scalar type rather than a reference.
func IsPrimitive(name string) bool {
	_, ok := primitiveTypes[name]
	return ok
}

// IsMapKey reports whether name may be used as the key type of a map field.
func IsMapKey(name string) bool {
	_, ok := mapKeyTypes[name]
	return ok
}
