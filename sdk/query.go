package sdk

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
)

// Query header names
const (
	HeaderRange   = "Range"
	HeaderOrderBy = "X-StackMob-OrderBy"
	HeaderExpand  = "X-StackMob-Expand"
	HeaderSelect  = "X-StackMob-Select"
)

// Ordering is the direction of an order-by directive
type Ordering string

const (
	Ascending  Ordering = "asc"
	Descending Ordering = "desc"
)

// Query accumulates filter, sort, paging and selection directives for one
// collection. Every directive method returns the same *Query so calls chain:
//
//	q := sdk.Objects("game").
//	    FieldIsGreaterThanOrEqualTo("score", 100).
//	    FieldIsOrderedBy("score", sdk.Descending).
//	    IsInRange(0, 9)
//
// A Query must not be mutated from more than one goroutine.
type Query struct {
	collection string
	headers    map[string]string
	args       map[string]string
}

// Objects starts a query over a collection
func Objects(collection string) *Query {
	return &Query{
		collection: collection,
		headers:    make(map[string]string),
		args:       make(map[string]string),
	}
}

// Collection returns the queried collection name
func (q *Query) Collection() string { return q.collection }

// Headers returns a copy of the header directives
func (q *Query) Headers() map[string]string { return maps.Clone(q.headers) }

// Args returns a copy of the argument directives
func (q *Query) Args() map[string]string { return maps.Clone(q.args) }

func (q *Query) arg(field, op, value string) *Query {
	key := field
	if op != "" {
		key = field + "[" + op + "]"
	}
	q.args[key] = value
	return q
}

// FieldIsEqualTo matches objects whose field equals value
func (q *Query) FieldIsEqualTo(field string, value any) *Query {
	return q.arg(field, "", formatValue(value))
}

// FieldIsNotEqual matches objects whose field differs from value
func (q *Query) FieldIsNotEqual(field string, value any) *Query {
	return q.arg(field, "ne", formatValue(value))
}

// FieldIsLessThan adds field[lt]
func (q *Query) FieldIsLessThan(field string, value any) *Query {
	return q.arg(field, "lt", formatValue(value))
}

// FieldIsLessThanOrEqualTo adds field[lte]
func (q *Query) FieldIsLessThanOrEqualTo(field string, value any) *Query {
	return q.arg(field, "lte", formatValue(value))
}

// FieldIsGreaterThan adds field[gt]
func (q *Query) FieldIsGreaterThan(field string, value any) *Query {
	return q.arg(field, "gt", formatValue(value))
}

// FieldIsGreaterThanOrEqualTo adds field[gte]
func (q *Query) FieldIsGreaterThanOrEqualTo(field string, value any) *Query {
	return q.arg(field, "gte", formatValue(value))
}

// FieldIsIn matches objects whose field is one of values
func (q *Query) FieldIsIn(field string, values ...any) *Query {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = formatValue(v)
	}
	return q.arg(field, "in", strings.Join(parts, ","))
}

// FieldIsNull matches objects where field is unset
func (q *Query) FieldIsNull(field string) *Query {
	return q.arg(field, "null", "true")
}

// FieldIsNotNull matches objects where field is set
func (q *Query) FieldIsNotNull(field string) *Query {
	return q.arg(field, "null", "false")
}

// FieldIsNear sorts results by distance from point
func (q *Query) FieldIsNear(field string, point GeoPoint) *Query {
	return q.arg(field, "near", point.String())
}

// FieldIsNearWithinMi sorts by distance from point, keeping results within mi miles
func (q *Query) FieldIsNearWithinMi(field string, point GeoPoint, mi float64) *Query {
	return q.arg(field, "near", point.String()+","+formatFloat(MilesToRadians(mi)))
}

// FieldIsNearWithinKm sorts by distance from point, keeping results within km kilometers
func (q *Query) FieldIsNearWithinKm(field string, point GeoPoint, km float64) *Query {
	return q.arg(field, "near", point.String()+","+formatFloat(KilometersToRadians(km)))
}

// FieldIsWithinRadiusInMi matches points within mi miles, unsorted
func (q *Query) FieldIsWithinRadiusInMi(field string, point GeoPoint, mi float64) *Query {
	return q.arg(field, "within", point.String()+","+formatFloat(MilesToRadians(mi)))
}

// FieldIsWithinRadiusInKm matches points within km kilometers, unsorted
func (q *Query) FieldIsWithinRadiusInKm(field string, point GeoPoint, km float64) *Query {
	return q.arg(field, "within", point.String()+","+formatFloat(KilometersToRadians(km)))
}

// FieldIsWithinBox matches points inside the box spanned by the two corners
func (q *Query) FieldIsWithinBox(field string, lowerLeft, upperRight GeoPoint) *Query {
	return q.arg(field, "within", lowerLeft.String()+","+upperRight.String())
}

// FieldIsOrderedBy adds a sort key. The first call is the primary key.
func (q *Query) FieldIsOrderedBy(field string, order Ordering) *Query {
	directive := field + ":" + string(order)
	if cur, ok := q.headers[HeaderOrderBy]; ok && cur != "" {
		directive = cur + "," + directive
	}
	q.headers[HeaderOrderBy] = directive
	return q
}

// IsInRange limits results to the objects at positions start through end, inclusive
func (q *Query) IsInRange(start, end int) *Query {
	q.headers[HeaderRange] = fmt.Sprintf("objects=%d-%d", start, end)
	return q
}

// IsInRangeFrom skips the first start objects
func (q *Query) IsInRangeFrom(start int) *Query {
	q.headers[HeaderRange] = fmt.Sprintf("objects=%d-", start)
	return q
}

// ExpandDepth asks the platform to inline depth levels of related objects
func (q *Query) ExpandDepth(depth int) *Query {
	q.headers[HeaderExpand] = strconv.Itoa(depth)
	return q
}

// Select limits the returned fields
func (q *Query) Select(fields ...string) *Query {
	q.headers[HeaderSelect] = strings.Join(fields, ",")
	return q
}

// Add merges other's directives into q. Entries from other win on collision.
func (q *Query) Add(other *Query) *Query {
	if other == nil {
		return q
	}
	maps.Copy(q.headers, other.headers)
	maps.Copy(q.args, other.args)
	return q
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return formatFloat(val)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(v)
	}
}
