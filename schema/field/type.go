package field

// A Type represents a field semantic type.
type Type uint8

// List of field types.
const (
	TypeInvalid Type = iota
	TypeString
	TypeText
	TypeBool
	TypeInt
	TypeInt64
	TypeFloat64
	TypeDecimal
	TypeTime
	TypeUUID
	TypeEnum
	endTypes
)

var typeNames = [...]string{
	TypeInvalid: "invalid",
	TypeString:  "string",
	TypeText:    "text",
	TypeBool:    "bool",
	TypeInt:     "int",
	TypeInt64:   "int64",
	TypeFloat64: "float64",
	TypeDecimal: "decimal",
	TypeTime:    "time",
	TypeUUID:    "uuid",
	TypeEnum:    "enum",
}

// String returns the string representation of the type.
func (t Type) String() string {
	if t < endTypes {
		return typeNames[t]
	}
	return typeNames[TypeInvalid]
}

// Valid reports if the given type is a valid field type.
func (t Type) Valid() bool {
	return t > TypeInvalid && t < endTypes
}

// Scalar reports whether the type is a flat scalar type: a value the filter
// and grouping machinery can compare and aggregate directly. Types without
// discoverable comparison semantics are conservatively non-scalar.
func (t Type) Scalar() bool {
	switch t {
	case TypeString, TypeText, TypeBool, TypeInt, TypeInt64, TypeFloat64,
		TypeDecimal, TypeTime, TypeUUID, TypeEnum:
		return true
	default:
		return false
	}
}

// Numeric reports whether the type supports numeric aggregation (SUM/AVG).
func (t Type) Numeric() bool {
	switch t {
	case TypeInt, TypeInt64, TypeFloat64, TypeDecimal:
		return true
	default:
		return false
	}
}

// Comparable reports whether the type supports ordering comparisons
// (greater/less-than operators and range filters).
func (t Type) Comparable() bool {
	switch t {
	case TypeString, TypeText, TypeInt, TypeInt64, TypeFloat64, TypeDecimal, TypeTime:
		return true
	default:
		return false
	}
}

// Textual reports whether the type supports substring operators.
func (t Type) Textual() bool {
	return t == TypeString || t == TypeText
}

// TypeByName resolves a type from its string name. Used by the YAML schema
// loader.
func TypeByName(name string) (Type, bool) {
	for t := TypeInvalid + 1; t < endTypes; t++ {
		if typeNames[t] == name {
			return t, true
		}
	}
	return TypeInvalid, false
}
