package typescript

// primitiveTypeNames maps scalar protobuf types to the TypeScript type used for
// them. Scalars missing here keep their protobuf name.
var primitiveTypeNames = map[string]string{
	"int32":  "number",
	"int64":  "number",
	"uint32": "number",
	"uint64": "number",
	"float":  "number",
	"bool":   "boolean",
}

func typeName(protoType string) string {
	if name, ok := primitiveTypeNames[protoType]; ok {
		return name
	}
	return protoType
}
