package crud

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/crudox/crudox"
	"github.com/crudox/crudox/dialect/sql"
	"github.com/crudox/crudox/metadata"
	"github.com/crudox/crudox/schema/field"
)

// Time layouts drivers hand back for time columns. sqlite stores text.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	timeArgLayout,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// timeArgLayout is the text form time values are bound with. sqlite has no
// native time type and stores the bound value verbatim, so writes must use a
// layout decodeValue can parse back.
const timeArgLayout = "2006-01-02 15:04:05.999999999-07:00"

// timeArg renders a time value as a driver argument.
func timeArg(t time.Time) string {
	return t.UTC().Format(timeArgLayout)
}

// scanRecords scans every row of the result set into records keyed by field
// name, converting driver values to the field's Go type.
func (s *Service) scanRecords(rows *sql.Rows) ([]Record, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	fields := make([]*metadata.Field, len(columns))
	for i, c := range columns {
		for _, f := range s.ent.Fields() {
			if f.Column == c {
				fields[i] = f
				break
			}
		}
	}
	var recs []Record
	for rows.Next() {
		values := make([]any, len(columns))
		for i := range values {
			values[i] = new(any)
		}
		if err := rows.Scan(values...); err != nil {
			return nil, err
		}
		rec := make(Record, len(columns))
		for i, f := range fields {
			raw := *values[i].(*any)
			if f == nil {
				rec[columns[i]] = raw
				continue
			}
			v, err := decodeValue(f, raw)
			if err != nil {
				return nil, err
			}
			rec[f.Name] = v
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// decodeValue converts a driver value to the field's Go type.
func decodeValue(f *metadata.Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch f.Type {
	case field.TypeString, field.TypeText, field.TypeEnum:
		return asString(v), nil
	case field.TypeBool:
		switch b := v.(type) {
		case bool:
			return b, nil
		case int64:
			return b != 0, nil
		}
	case field.TypeInt:
		switch n := v.(type) {
		case int64:
			return int(n), nil
		case int:
			return n, nil
		}
	case field.TypeInt64:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		}
	case field.TypeFloat64:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int64:
			return float64(n), nil
		case []byte, string:
			return strconv.ParseFloat(asString(v), 64)
		}
	case field.TypeDecimal:
		switch n := v.(type) {
		case float64:
			return decimal.NewFromFloat(n).Round(f.Precision), nil
		case int64:
			return decimal.NewFromInt(n), nil
		case []byte, string:
			d, err := decimal.NewFromString(asString(v))
			if err != nil {
				return nil, fmt.Errorf("crudox: field %s: %w", f.Name, err)
			}
			return d, nil
		}
	case field.TypeTime:
		switch t := v.(type) {
		case time.Time:
			return t, nil
		case []byte, string:
			raw := asString(v)
			for _, layout := range timeLayouts {
				if t, err := time.Parse(layout, raw); err == nil {
					return t, nil
				}
			}
			return nil, fmt.Errorf("crudox: field %s: cannot parse time %q", f.Name, raw)
		}
	case field.TypeUUID:
		switch u := v.(type) {
		case []byte, string:
			id, err := uuid.Parse(asString(v))
			if err != nil {
				return nil, fmt.Errorf("crudox: field %s: %w", f.Name, err)
			}
			return id, nil
		case [16]byte:
			return uuid.UUID(u), nil
		}
	}
	return nil, fmt.Errorf("crudox: field %s: unexpected driver value %T", f.Name, v)
}

// encodeValue converts a caller value to a driver argument for the field,
// validating that the value fits the field's type.
func encodeValue(f *metadata.Field, v any) (any, error) {
	if v == nil {
		if !f.Nillable {
			return nil, crudox.NewValidationErrorf(f.Name, "field is not nillable")
		}
		return nil, nil
	}
	switch f.Type {
	case field.TypeString, field.TypeText:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case field.TypeEnum:
		s, ok := v.(string)
		if !ok {
			break
		}
		for _, e := range f.Enums {
			if e == s {
				return s, nil
			}
		}
		return nil, crudox.NewValidationErrorf(f.Name, "value %q is not a declared enum value", s)
	case field.TypeBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case field.TypeInt, field.TypeInt64:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			// JSON numbers decode as float64.
			if n == float64(int64(n)) {
				return int64(n), nil
			}
		}
	case field.TypeFloat64:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		}
	case field.TypeDecimal:
		switch n := v.(type) {
		case decimal.Decimal:
			return n.Round(f.Precision), nil
		case string:
			d, err := decimal.NewFromString(n)
			if err != nil {
				return nil, crudox.NewValidationError(f.Name, err)
			}
			return d.Round(f.Precision), nil
		case float64:
			return decimal.NewFromFloat(n).Round(f.Precision), nil
		case int:
			return decimal.NewFromInt(int64(n)), nil
		case int64:
			return decimal.NewFromInt(n), nil
		}
	case field.TypeTime:
		switch t := v.(type) {
		case time.Time:
			return timeArg(t), nil
		case string:
			for _, layout := range timeLayouts {
				if parsed, err := time.Parse(layout, t); err == nil {
					return timeArg(parsed), nil
				}
			}
		}
	case field.TypeUUID:
		switch u := v.(type) {
		case uuid.UUID:
			return u, nil
		case string:
			id, err := uuid.Parse(u)
			if err != nil {
				return nil, crudox.NewValidationError(f.Name, err)
			}
			return id, nil
		}
	}
	return nil, crudox.NewValidationErrorf(f.Name, "value of type %T does not fit field type %s", v, f.Type)
}

// defaultValue materializes the field's declared default for a new record.
func defaultValue(f *metadata.Field) (any, bool) {
	switch d := f.Default.(type) {
	case nil:
		return nil, false
	case func() string:
		v := d()
		if f.Type == field.TypeUUID {
			if id, err := uuid.Parse(v); err == nil {
				return id, true
			}
		}
		return v, true
	case string:
		if f.Type == field.TypeTime && d == "now" {
			return time.Now().UTC(), true
		}
		return d, true
	default:
		return d, true
	}
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprint(s)
	}
}
