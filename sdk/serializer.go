package sdk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/sirupsen/logrus"
)

// preformatted fields produce their wire value outside the kind-driven pass
type preformatted interface {
	preformat() (string, bool)
}

// Serialize converts a model to the JSON document the platform stores.
//
// Related models are written as their ids and Object fields as escaped
// JSON strings. A saved model's id is written under its id field last,
// replacing any field of the same name.
//
// Invalid schema or field names fail with a *ConfigurationError before
// any field is encoded.
//
// Example:
//
//	game := &Game{Name: "chess", Owner: alice}
//	data, err := sdk.Serialize(game)
//	// data: {"name":"chess","owner":"<alice's id>"}
func Serialize(m Model) ([]byte, error) {
	doc, err := document(m)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize %T: %w", m, err)
	}
	return data, nil
}

// document builds the map form of Serialize
func document(m Model) (map[string]any, error) {
	s, err := schemaOf(m)
	if err != nil {
		return nil, err
	}

	fields := boundFields(m, s)
	doc := make(map[string]any, len(fields)+1)

	// Attachments first; the kind-driven pass never sees them.
	for _, f := range fields {
		if p, ok := f.(preformatted); ok {
			if v, present := p.preformat(); present {
				doc[f.Name()] = v
			}
		}
	}

	for _, f := range fields {
		if _, ok := f.(preformatted); ok {
			continue
		}
		v, present, err := f.encode()
		if err != nil {
			return nil, fmt.Errorf("failed to serialize %s.%s: %w", s.name, f.Name(), err)
		}
		if present {
			doc[f.Name()] = v
		}
	}

	if id := m.ID(); id != "" {
		doc[s.idField] = id
	}
	return doc, nil
}

// boundFields returns m's descriptors with shadowed duplicates removed
func boundFields(m Model, s *schema) []Field {
	all := m.Fields()
	out := make([]Field, 0, len(s.fields))
	seen := make(map[string]bool, len(s.fields))
	for _, f := range all {
		if seen[f.Name()] {
			continue
		}
		seen[f.Name()] = true
		out = append(out, f)
	}
	return out
}

// Deserialize populates a model from a platform response.
//
// A bare scalar (an unexpanded relation) sets only the id. An object sets
// the id, decodes every declared field, and marks the model as having data.
// Keys the model does not declare are logged at debug level and skipped.
//
// Example:
//
//	game := &Game{}
//	err := sdk.Deserialize(game, []byte(`{"game_id":"g1","name":"chess","owner":"p1"}`))
//	// game.ID() == "g1", game.Owner.ID() == "p1", game.Owner.HasData() == false
//
// Skipped keys are logged to logrus' standard logger. Use
// DeserializeWithLogger or Client.Deserialize to log elsewhere.
func Deserialize(m Model, data []byte) error {
	return DeserializeWithLogger(m, data, nil)
}

// DeserializeWithLogger is Deserialize logging to log. A nil log uses
// logrus' standard logger.
func DeserializeWithLogger(m Model, data []byte, log logrus.FieldLogger) error {
	if log == nil {
		log = logrus.StandardLogger()
	}
	d := &decoder{log: log}
	return d.model(m, data)
}

// decoder carries the state shared by one Deserialize call
type decoder struct {
	log logrus.FieldLogger
}

func (d *decoder) model(m Model, raw []byte) error {
	s, err := schemaOf(m)
	if err != nil {
		return err
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return fmt.Errorf("failed to deserialize %s: empty data", s.name)
	}
	if raw[0] != '{' {
		if isJSONNull(raw) {
			return nil
		}
		if !isJSONScalar(raw) {
			return fmt.Errorf("failed to deserialize %s: want an object or a scalar id, got %.32s", s.name, raw)
		}
		m.SetID(scalarString(raw))
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return fmt.Errorf("failed to deserialize %s: %w", s.name, err)
	}

	fields := boundFields(m, s)
	byName := make(map[string]Field, len(fields))
	for _, f := range fields {
		byName[f.Name()] = f
	}

	for key, value := range obj {
		if key == s.idField {
			m.SetID(scalarString(value))
			continue
		}
		f, ok := byName[key]
		if !ok {
			d.log.WithFields(logrus.Fields{
				"schema": s.name,
				"field":  key,
			}).Debug("Skipping field not declared by model")
			continue
		}
		if err := f.decode(d, value); err != nil {
			return fmt.Errorf("failed to deserialize %s.%s: %w", s.name, key, err)
		}
	}

	m.base().hasData = true
	return nil
}

// isJSONScalar reports whether raw is a single JSON string, number or boolean
func isJSONScalar(raw []byte) bool {
	switch c := raw[0]; {
	case c == '"', c == '-', c >= '0' && c <= '9', c == 't', c == 'f':
		return json.Valid(raw)
	}
	return false
}

// scalarString renders a JSON scalar as an id: strings unquoted, numbers
// and booleans as written
func scalarString(raw []byte) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}

// deserializeList decodes a JSON array of objects into new models
func deserializeList[T any, PT ModelPtr[T]](d *decoder, data []byte) ([]PT, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		var zero PT
		return nil, fmt.Errorf("failed to deserialize %s list: %w", typeName(reflect.TypeOf(zero)), err)
	}
	out := make([]PT, 0, len(elems))
	for _, elem := range elems {
		m := PT(new(T))
		if err := d.model(m, elem); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
