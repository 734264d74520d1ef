package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/birbparty/stackmob/sdk"
)

// comparison operators, longest first so ">=" wins over ">"
var operators = []string{">=", "<=", "!=", ">", "<", "=", "~"}

// applyWhere adds one --where clause to q. Supported forms:
//
//	name=chess         equality; "a|b|c" matches any of the values
//	name!=chess        inequality; name!=null requires the field to be set
//	name=null          field is unset
//	score>3  score>=3  score<3  score<=3
//	loc~37.77,-122.41          nearest first
//	loc~37.77,-122.41,10km     within 10 km (or "mi")
func applyWhere(q *sdk.Query, clause string) error {
	field, op, value, err := splitClause(clause)
	if err != nil {
		return err
	}

	switch op {
	case "=":
		switch {
		case value == "null":
			q.FieldIsNull(field)
		case strings.Contains(value, "|"):
			parts := strings.Split(value, "|")
			values := make([]any, len(parts))
			for i, p := range parts {
				values[i] = p
			}
			q.FieldIsIn(field, values...)
		default:
			q.FieldIsEqualTo(field, value)
		}
	case "!=":
		if value == "null" {
			q.FieldIsNotNull(field)
		} else {
			q.FieldIsNotEqual(field, value)
		}
	case ">":
		q.FieldIsGreaterThan(field, value)
	case ">=":
		q.FieldIsGreaterThanOrEqualTo(field, value)
	case "<":
		q.FieldIsLessThan(field, value)
	case "<=":
		q.FieldIsLessThanOrEqualTo(field, value)
	case "~":
		return applyNear(q, field, value)
	}
	return nil
}

func splitClause(clause string) (field, op, value string, err error) {
	at := -1
	for i := 0; i < len(clause) && at < 0; i++ {
		for _, candidate := range operators {
			if strings.HasPrefix(clause[i:], candidate) {
				at, op = i, candidate
				break
			}
		}
	}
	if at < 0 {
		return "", "", "", fmt.Errorf("invalid where clause %q: no operator", clause)
	}

	field = strings.TrimSpace(clause[:at])
	value = strings.TrimSpace(clause[at+len(op):])
	if field == "" {
		return "", "", "", fmt.Errorf("invalid where clause %q: missing field", clause)
	}
	if value == "" {
		return "", "", "", fmt.Errorf("invalid where clause %q: missing value", clause)
	}
	return field, op, value, nil
}

func applyNear(q *sdk.Query, field, value string) error {
	parts := strings.Split(value, ",")
	if len(parts) != 2 && len(parts) != 3 {
		return fmt.Errorf("invalid geo clause %q: want lat,lon[,distance]", value)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return fmt.Errorf("invalid latitude %q", parts[0])
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return fmt.Errorf("invalid longitude %q", parts[1])
	}
	point := sdk.GeoPoint{Lat: lat, Lon: lon}

	if len(parts) == 2 {
		q.FieldIsNear(field, point)
		return nil
	}

	distance := strings.TrimSpace(parts[2])
	var unit string
	switch {
	case strings.HasSuffix(distance, "km"):
		unit, distance = "km", strings.TrimSuffix(distance, "km")
	case strings.HasSuffix(distance, "mi"):
		unit, distance = "mi", strings.TrimSuffix(distance, "mi")
	default:
		return fmt.Errorf("invalid distance %q: want a km or mi suffix", parts[2])
	}
	d, err := strconv.ParseFloat(distance, 64)
	if err != nil || d <= 0 {
		return fmt.Errorf("invalid distance %q", parts[2])
	}

	if unit == "km" {
		q.FieldIsWithinRadiusInKm(field, point, d)
	} else {
		q.FieldIsWithinRadiusInMi(field, point, d)
	}
	return nil
}

// applyOrder adds "field" or "field:asc|desc" sort keys in order
func applyOrder(q *sdk.Query, keys []string) error {
	for _, key := range keys {
		field, dir, _ := strings.Cut(key, ":")
		order := sdk.Ascending
		switch strings.ToLower(dir) {
		case "", "asc":
		case "desc":
			order = sdk.Descending
		default:
			return fmt.Errorf("invalid order %q: want asc or desc", dir)
		}
		if field == "" {
			return fmt.Errorf("invalid order %q: missing field", key)
		}
		q.FieldIsOrderedBy(field, order)
	}
	return nil
}

// applyRange parses "start-end" or "start-"
func applyRange(q *sdk.Query, rng string) error {
	startStr, endStr, ok := strings.Cut(rng, "-")
	if !ok {
		return fmt.Errorf("invalid range %q: want start-end", rng)
	}
	start, err := strconv.Atoi(startStr)
	if err != nil || start < 0 {
		return fmt.Errorf("invalid range start %q", startStr)
	}
	if endStr == "" {
		q.IsInRangeFrom(start)
		return nil
	}
	end, err := strconv.Atoi(endStr)
	if err != nil || end < start {
		return fmt.Errorf("invalid range end %q", endStr)
	}
	q.IsInRange(start, end)
	return nil
}
