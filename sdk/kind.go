package sdk

// Kind determines how a model field is written to and read from the wire.
//
// The kind of a field is fixed by the descriptor constructor that declares it:
//
//	Primitive      string, bool and numeric values
//	Object         any other value, sent as an escaped JSON string
//	Related        another model, sent as its id
//	PrimitiveArray slice of string, bool or numeric values
//	ObjectArray    slice of any other value (byte slices included)
//	RelatedArray   slice of models, sent as a list of ids
type Kind int

const (
	// KindPrimitive is a string, bool or numeric field
	KindPrimitive Kind = iota
	// KindObject is an opaque value serialized as a nested JSON document string
	KindObject
	// KindModel is a reference to another model
	KindModel
	// KindPrimitiveArray is a slice of primitives
	KindPrimitiveArray
	// KindObjectArray is a slice of opaque values
	KindObjectArray
	// KindModelArray is a slice of model references
	KindModelArray
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindObject:
		return "object"
	case KindModel:
		return "model"
	case KindPrimitiveArray:
		return "primitive_array"
	case KindObjectArray:
		return "object_array"
	case KindModelArray:
		return "model_array"
	default:
		return "unknown"
	}
}

// IsArray reports whether values of this kind are JSON arrays
func (k Kind) IsArray() bool {
	return k == KindPrimitiveArray || k == KindObjectArray || k == KindModelArray
}

// IsRelation reports whether the field references other models
func (k Kind) IsRelation() bool {
	return k == KindModel || k == KindModelArray
}
