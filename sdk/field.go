package sdk

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Scalar is the set of Go types sent as JSON primitives
type Scalar interface {
	~string | ~bool |
		~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// ModelPtr is satisfied by *R when *R implements Model
type ModelPtr[R any] interface {
	*R
	Model
}

// Field describes one persisted field of a model: its wire name, its kind
// and how to read and write the bound Go value. Fields are created with
// the constructors in this file and returned from Model.Fields.
type Field interface {
	Name() string
	Kind() Kind

	// encode returns the JSON-ready value. present is false when the field
	// should be left out of the document.
	encode() (value any, present bool, err error)
	decode(d *decoder, raw json.RawMessage) error
}

type fieldName string

func (n fieldName) Name() string { return string(n) }

// Primitive declares a string, bool or numeric field.
//
//	sdk.Primitive("score", &p.Score)
func Primitive[V Scalar](name string, ptr *V) Field {
	return &primitiveField[V]{fieldName: fieldName(name), ptr: ptr}
}

type primitiveField[V Scalar] struct {
	fieldName
	ptr *V
}

func (f *primitiveField[V]) Kind() Kind { return KindPrimitive }

func (f *primitiveField[V]) encode() (any, bool, error) {
	return *f.ptr, true, nil
}

func (f *primitiveField[V]) decode(_ *decoder, raw json.RawMessage) error {
	return json.Unmarshal(raw, f.ptr)
}

// Object declares an opaque field. Its JSON form is sent as an escaped
// string because the platform does not accept nested documents.
//
//	sdk.Object("settings", &g.Settings) // {"settings": "{\"mode\":\"hard\"}"}
//
// A model value cannot be declared as an Object; relations use Related.
func Object[V any](name string, ptr *V) Field {
	f := &objectField[V]{fieldName: fieldName(name), ptr: ptr}
	if isModelType[V]() {
		f.misuse = "a model must be declared with Related"
	}
	return f
}

type objectField[V any] struct {
	fieldName
	ptr    *V
	misuse string
}

func (f *objectField[V]) declarationError() string { return f.misuse }

func (f *objectField[V]) Kind() Kind { return KindObject }

func (f *objectField[V]) encode() (any, bool, error) {
	data, err := json.Marshal(*f.ptr)
	if err != nil {
		return nil, false, err
	}
	if isJSONNull(data) {
		return nil, false, nil
	}
	return string(data), true, nil
}

// decode accepts both the escaped string the platform stores and a
// nested document.
func (f *objectField[V]) decode(_ *decoder, raw json.RawMessage) error {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if err := json.Unmarshal([]byte(text), f.ptr); err == nil {
			return nil
		}
	}
	return json.Unmarshal(raw, f.ptr)
}

// PrimitiveArray declares a slice of primitives.
//
// A []byte declared this way classifies as KindObjectArray and is
// encoded by encoding/json as base64. Use Attachment for binary payloads.
func PrimitiveArray[V Scalar](name string, ptr *[]V) Field {
	kind := KindPrimitiveArray
	if _, isBytes := any(ptr).(*[]byte); isBytes {
		kind = KindObjectArray
	}
	return &sliceField[V]{fieldName: fieldName(name), ptr: ptr, kind: kind}
}

// ObjectArray declares a slice of opaque values. Elements are sent as
// structural JSON. Lists of models use RelatedArray.
func ObjectArray[V any](name string, ptr *[]V) Field {
	f := &sliceField[V]{fieldName: fieldName(name), ptr: ptr, kind: KindObjectArray}
	if isModelType[V]() {
		f.misuse = "a list of models must be declared with RelatedArray"
	}
	return f
}

type sliceField[V any] struct {
	fieldName
	ptr    *[]V
	kind   Kind
	misuse string
}

func (f *sliceField[V]) declarationError() string { return f.misuse }

func (f *sliceField[V]) Kind() Kind { return f.kind }

func (f *sliceField[V]) encode() (any, bool, error) {
	if *f.ptr == nil {
		return nil, false, nil
	}
	return *f.ptr, true, nil
}

func (f *sliceField[V]) decode(_ *decoder, raw json.RawMessage) error {
	return json.Unmarshal(raw, f.ptr)
}

// Related declares a reference to another model. Only the related id is
// sent; a nil reference is left out.
//
//	sdk.Related("owner", &g.Owner) // g.Owner is *Player
func Related[R any, PR ModelPtr[R]](name string, ptr *PR) Field {
	return &relatedField[R, PR]{fieldName: fieldName(name), ptr: ptr}
}

type relatedField[R any, PR ModelPtr[R]] struct {
	fieldName
	ptr *PR
}

func (f *relatedField[R, PR]) Kind() Kind { return KindModel }

func (f *relatedField[R, PR]) encode() (any, bool, error) {
	related := *f.ptr
	if (*R)(related) == nil {
		return nil, false, nil
	}
	id := related.ID()
	if id == "" {
		return nil, false, fmt.Errorf("%w: field %q", ErrUnsavedRelation, f.Name())
	}
	return id, true, nil
}

func (f *relatedField[R, PR]) decode(d *decoder, raw json.RawMessage) error {
	if isJSONNull(raw) {
		*f.ptr = nil
		return nil
	}
	related := PR(new(R))
	if err := d.model(related, raw); err != nil {
		return err
	}
	*f.ptr = related
	return nil
}

// RelatedArray declares a list of references to other models, sent as the
// list of their ids in order.
func RelatedArray[R any, PR ModelPtr[R]](name string, ptr *[]PR) Field {
	return &relatedArrayField[R, PR]{fieldName: fieldName(name), ptr: ptr}
}

type relatedArrayField[R any, PR ModelPtr[R]] struct {
	fieldName
	ptr *[]PR
}

func (f *relatedArrayField[R, PR]) Kind() Kind { return KindModelArray }

func (f *relatedArrayField[R, PR]) encode() (any, bool, error) {
	if *f.ptr == nil {
		return nil, false, nil
	}
	ids := make([]string, 0, len(*f.ptr))
	for i, related := range *f.ptr {
		if (*R)(related) == nil {
			continue
		}
		id := related.ID()
		if id == "" {
			return nil, false, fmt.Errorf("%w: field %q index %d", ErrUnsavedRelation, f.Name(), i)
		}
		ids = append(ids, id)
	}
	return ids, true, nil
}

func (f *relatedArrayField[R, PR]) decode(d *decoder, raw json.RawMessage) error {
	if isJSONNull(raw) {
		*f.ptr = nil
		return nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return err
	}
	out := make([]PR, 0, len(elems))
	for i, elem := range elems {
		related := PR(new(R))
		if err := d.model(related, elem); err != nil {
			return fmt.Errorf("index %d: %w", i, err)
		}
		out = append(out, related)
	}
	*f.ptr = out
	return nil
}

// Attachment declares a binary file field. On save the file is sent as a
// base64 MIME block (see FormatBinary); the platform answers with the URL
// of the stored file, which lands in BinaryFile.URL.
//
// Attachments are formatted before any other field is encoded and report
// KindPrimitive, the wire type of the formatted block.
func Attachment(name string, file *BinaryFile) Field {
	return &attachmentField{fieldName: fieldName(name), file: file}
}

type attachmentField struct {
	fieldName
	file *BinaryFile
}

func (f *attachmentField) Kind() Kind { return KindPrimitive }

// preformat returns the MIME block, or false when there is nothing to upload
func (f *attachmentField) preformat() (string, bool) {
	if f.file == nil || len(f.file.Data) == 0 {
		return "", false
	}
	return f.file.Format(), true
}

func (f *attachmentField) encode() (any, bool, error) {
	s, ok := f.preformat()
	return s, ok, nil
}

func (f *attachmentField) decode(_ *decoder, raw json.RawMessage) error {
	if f.file == nil || isJSONNull(raw) {
		return nil
	}
	return json.Unmarshal(raw, &f.file.URL)
}

// misdeclared is implemented by descriptors that can be built with a Go
// type their constructor does not serve. declarationError returns "" for
// a valid declaration.
type misdeclared interface {
	declarationError() string
}

// isModelType reports whether V or *V implements Model
func isModelType[V any]() bool {
	if _, ok := any(*new(V)).(Model); ok {
		return true
	}
	_, ok := any(new(V)).(Model)
	return ok
}

func isJSONNull(raw []byte) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}
