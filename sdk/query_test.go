package sdk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuery_Comparisons(t *testing.T) {
	tests := []struct {
		name  string
		query *Query
		want  map[string]string
	}{
		{
			name:  "greater than or equal",
			query: Objects("game").FieldIsGreaterThanOrEqualTo("name", "sup"),
			want:  map[string]string{"name[gte]": "sup"},
		},
		{
			name:  "equality",
			query: Objects("game").FieldIsEqualTo("name", "chess"),
			want:  map[string]string{"name": "chess"},
		},
		{
			name: "all operators",
			query: Objects("game").
				FieldIsNotEqual("a", 1).
				FieldIsLessThan("b", 2).
				FieldIsLessThanOrEqualTo("c", 3.5).
				FieldIsGreaterThan("d", int64(4)).
				FieldIsNull("e").
				FieldIsNotNull("f"),
			want: map[string]string{
				"a[ne]":   "1",
				"b[lt]":   "2",
				"c[lte]":  "3.5",
				"d[gt]":   "4",
				"e[null]": "true",
				"f[null]": "false",
			},
		},
		{
			name:  "in",
			query: Objects("game").FieldIsIn("status", "open", "closed", 3),
			want:  map[string]string{"status[in]": "open,closed,3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.query.Args())
			assert.Empty(t, tt.query.Headers())
			assert.Equal(t, "game", tt.query.Collection())
		})
	}
}

func TestQuery_Geo(t *testing.T) {
	sf := GeoPoint{Lat: 37.77, Lon: -122.42}

	q := Objects("place").FieldIsNear("loc", sf)
	assert.Equal(t, "37.77,-122.42", q.Args()["loc[near]"])

	q = Objects("place").FieldIsNearWithinMi("loc", sf, 3956.6)
	assert.Equal(t, "37.77,-122.42,1", q.Args()["loc[near]"])

	q = Objects("place").FieldIsNearWithinKm("loc", sf, 6367.5*2)
	assert.Equal(t, "37.77,-122.42,2", q.Args()["loc[near]"])

	q = Objects("place").FieldIsWithinRadiusInMi("loc", sf, 3956.6/2)
	assert.Equal(t, "37.77,-122.42,0.5", q.Args()["loc[within]"])

	q = Objects("place").FieldIsWithinRadiusInKm("loc", sf, 6367.5)
	assert.Equal(t, "37.77,-122.42,1", q.Args()["loc[within]"])

	q = Objects("place").FieldIsWithinBox("loc", GeoPoint{Lat: 1, Lon: 2}, GeoPoint{Lat: 3, Lon: 4})
	assert.Equal(t, "1,2,3,4", q.Args()["loc[within]"])
}

func TestQuery_Headers(t *testing.T) {
	t.Run("order by keeps call order", func(t *testing.T) {
		q := Objects("game").
			FieldIsOrderedBy("score", Descending).
			FieldIsOrderedBy("name", Ascending)
		assert.Equal(t, "score:desc,name:asc", q.Headers()[HeaderOrderBy])
	})

	t.Run("range overwrites", func(t *testing.T) {
		q := Objects("game").IsInRange(0, 9)
		assert.Equal(t, "objects=0-9", q.Headers()[HeaderRange])

		q.IsInRangeFrom(10)
		assert.Equal(t, "objects=10-", q.Headers()[HeaderRange])
	})

	t.Run("expand and select overwrite", func(t *testing.T) {
		q := Objects("game").ExpandDepth(1).ExpandDepth(2).Select("a").Select("name", "score")
		assert.Equal(t, "2", q.Headers()[HeaderExpand])
		assert.Equal(t, "name,score", q.Headers()[HeaderSelect])
	})
}

func TestQuery_Add(t *testing.T) {
	base := Objects("game").
		FieldIsEqualTo("name", "chess").
		FieldIsGreaterThan("score", 1).
		IsInRange(0, 9)
	other := Objects("other").
		FieldIsEqualTo("name", "go").
		ExpandDepth(1).
		IsInRange(5, 6)

	merged := base.Add(other)
	assert.Same(t, base, merged)
	assert.Equal(t, "game", merged.Collection())
	assert.Equal(t, map[string]string{"name": "go", "score[gt]": "1"}, merged.Args())
	assert.Equal(t, map[string]string{HeaderRange: "objects=5-6", HeaderExpand: "1"}, merged.Headers())

	assert.Same(t, base, base.Add(nil))
}

func TestQuery_AccessorsCopy(t *testing.T) {
	q := Objects("game").FieldIsEqualTo("name", "chess")
	args := q.Args()
	args["name"] = "mutated"
	assert.Equal(t, "chess", q.Args()["name"])
}
