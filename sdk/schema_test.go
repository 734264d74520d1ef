package sdk

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		field string
		want  Kind
	}{
		{"name", KindPrimitive},
		{"score", KindPrimitive},
		{"active", KindPrimitive},
		{"settings", KindObject},
		{"tags", KindPrimitiveArray},
		{"moves", KindObjectArray},
		{"raw", KindObjectArray},
		{"owner", KindModel},
		{"players", KindModelArray},
		{"cover", KindPrimitive},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			kind, err := Classify(&Game{}, tt.field)
			require.NoError(t, err)
			assert.Equal(t, tt.want, kind, "kind of %s", tt.field)
		})
	}
}

func TestClassify_ModelsAreNotObjects(t *testing.T) {
	tests := []struct {
		name  string
		model Model
		field string
		hint  string
	}{
		{"model pointer as object", &OpaqueOwner{}, "owner", "Related"},
		{"model values as object array", &OpaquePlayers{}, "players", "RelatedArray"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Classify(tt.model, tt.field)
			require.Error(t, err)
			assert.True(t, IsConfigurationError(err))
			assert.Contains(t, err.Error(), tt.hint)

			_, err = Serialize(tt.model)
			assert.True(t, IsConfigurationError(err), "a related model is never embedded")
		})
	}
}

func TestClassify_UnknownField(t *testing.T) {
	_, err := Classify(&Game{}, "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownField))
}

func TestClassify_Cached(t *testing.T) {
	kind1, err := Classify(&Counted{}, "value")
	require.NoError(t, err)
	calls := countedFieldCalls.Load()

	kind2, err := Classify(&Counted{}, "value")
	require.NoError(t, err)

	assert.Equal(t, kind1, kind2)
	assert.Equal(t, calls, countedFieldCalls.Load(), "second classification must not rebuild the table")
}

func TestClassify_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			kind, err := Classify(&Player{}, "level")
			if err == nil && kind != KindPrimitive {
				err = errors.New("wrong kind")
			}
			if err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestSchemaName(t *testing.T) {
	t.Run("derived from type name", func(t *testing.T) {
		name, err := SchemaName(&Simple{})
		require.NoError(t, err)
		assert.Equal(t, "simple", name)

		id, err := IDField(&Simple{})
		require.NoError(t, err)
		assert.Equal(t, "simple_id", id)
	})

	t.Run("overridden", func(t *testing.T) {
		name, err := SchemaName(&Renamed{})
		require.NoError(t, err)
		assert.Equal(t, "things", name)

		id, err := IDField(&Renamed{})
		require.NoError(t, err)
		assert.Equal(t, "thing_key", id)
	})

	t.Run("invalid type name", func(t *testing.T) {
		_, err := SchemaName(&Bad_Schema_Name{})
		require.Error(t, err)

		var cfgErr *ConfigurationError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, "schema", cfgErr.Subject)
		assert.Equal(t, "bad_schema_name", cfgErr.Name)
		assert.True(t, errors.Is(err, ErrInvalidConfig))
	})

	t.Run("invalid field name", func(t *testing.T) {
		_, err := SchemaName(&BadField{})

		var cfgErr *ConfigurationError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, "field", cfgErr.Subject)
		assert.Equal(t, "badfield", cfgErr.Schema)
		assert.Equal(t, "bad_value", cfgErr.Name)
	})

	t.Run("nil model", func(t *testing.T) {
		var g *Game
		_, err := SchemaName(g)
		assert.True(t, IsConfigurationError(err))
	})
}

func TestValidName(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"abc", true},
		{"simple", true},
		{"Game2", true},
		{"ab", false},
		{"a_b_c", false},
		{"with space", false},
		{"abcdefghijklmnopqrstuvwxy", true},
		{"abcdefghijklmnopqrstuvwxyz", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.valid, validName(tt.name), "validName(%q)", tt.name)
	}
}

func TestFieldNames_Inheritance(t *testing.T) {
	names, err := FieldNames(&Player{})
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "level", "age"}, names, "parent fields follow own fields, duplicates dropped")
}
