package sdk

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
)

const nameRule = "must be 3-25 alphanumeric characters"

var namePattern = regexp.MustCompile(`^[A-Za-z0-9]{3,25}$`)

func validName(name string) bool {
	return namePattern.MatchString(name)
}

// fieldInfo is the cached classification of one declared field
type fieldInfo struct {
	name string
	kind Kind
}

// schema is the classification table of one concrete model type
type schema struct {
	name    string
	idField string
	fields  []fieldInfo
	index   map[string]int
}

func (s *schema) lookup(field string) (fieldInfo, bool) {
	i, ok := s.index[field]
	if !ok {
		return fieldInfo{}, false
	}
	return s.fields[i], true
}

// schemas maps a model's dynamic type to its *schema. Entries are never
// invalidated; model types are fixed for the life of the process.
var schemas sync.Map

// schemaOf returns the classification of m's type, building and
// validating it on first use.
func schemaOf(m Model) (*schema, error) {
	if isNilModel(m) {
		return nil, &ConfigurationError{Subject: "model", Name: "<nil>", Reason: "model must not be nil"}
	}

	t := reflect.TypeOf(m)
	if cached, ok := schemas.Load(t); ok {
		return cached.(*schema), nil
	}

	s, err := buildSchema(t, m)
	if err != nil {
		return nil, err
	}

	// Two goroutines may build the same table; only the first is published.
	actual, _ := schemas.LoadOrStore(t, s)
	return actual.(*schema), nil
}

func buildSchema(t reflect.Type, m Model) (*schema, error) {
	name := typeName(t)
	if n, ok := m.(SchemaNamer); ok {
		name = n.SchemaName()
	}
	name = strings.ToLower(name)
	if !validName(name) {
		return nil, &ConfigurationError{Subject: "schema", Name: name, Reason: nameRule}
	}

	idField := name + "_id"
	if f, ok := m.(IDFielder); ok {
		idField = f.IDField()
	}

	s := &schema{
		name:    name,
		idField: idField,
		index:   make(map[string]int),
	}
	for _, f := range m.Fields() {
		fname := f.Name()
		if _, dup := s.index[fname]; dup {
			continue
		}
		if !validName(fname) {
			return nil, &ConfigurationError{Subject: "field", Schema: name, Name: fname, Reason: nameRule}
		}
		if md, ok := f.(misdeclared); ok {
			if reason := md.declarationError(); reason != "" {
				return nil, &ConfigurationError{Subject: "field", Schema: name, Name: fname, Reason: reason}
			}
		}
		s.index[fname] = len(s.fields)
		s.fields = append(s.fields, fieldInfo{name: fname, kind: f.Kind()})
	}
	return s, nil
}

func typeName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

func isNilModel(m Model) bool {
	if m == nil {
		return true
	}
	v := reflect.ValueOf(m)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

// Classify returns the kind of a declared field of m. The first call for a
// model type builds its classification table; later calls are map lookups.
//
// Example:
//
//	kind, err := sdk.Classify(&Game{}, "players")
//	// kind == sdk.KindModelArray
func Classify(m Model, field string) (Kind, error) {
	s, err := schemaOf(m)
	if err != nil {
		return 0, err
	}
	info, ok := s.lookup(field)
	if !ok {
		return 0, fmt.Errorf("%w: %q in schema %q", ErrUnknownField, field, s.name)
	}
	return info.kind, nil
}

// SchemaName returns the platform collection name of m
func SchemaName(m Model) (string, error) {
	s, err := schemaOf(m)
	if err != nil {
		return "", err
	}
	return s.name, nil
}

// IDField returns the name of m's identifier field
func IDField(m Model) (string, error) {
	s, err := schemaOf(m)
	if err != nil {
		return "", err
	}
	return s.idField, nil
}

// FieldNames lists m's persisted fields in declaration order, parent
// fields after the type's own
func FieldNames(m Model) ([]string, error) {
	s, err := schemaOf(m)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.name
	}
	return names, nil
}
