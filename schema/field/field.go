// Package field provides the builders for declaring entity fields. Builders
// accumulate options and expose the final Descriptor consumed by the
// metadata registry; no validation happens until registration, so a single
// definition error surfaces once, at bootstrap.
package field

import (
	"fmt"
)

// Descriptor holds the declared options of a single field.
type Descriptor struct {
	Name       string         // Field name as exposed in query inputs.
	Type       Type           // Semantic type.
	Column     string         // Column name override (derived when empty).
	Unique     bool           // Unique index on the column.
	Nillable   bool           // Value may be NULL.
	Optional   bool           // May be omitted on create.
	Immutable  bool           // Rejected on update.
	PrimaryKey bool           // Marks the entity primary key.
	Sensitive  bool           // Excluded from generated query inputs.
	Default    any            // Static default or func() value.
	Enums      []string       // Allowed values for TypeEnum.
	Precision  int32          // Decimal exponent (digits after the point).
	Comment    string         // Description surfaced in generated schemas.
	Err        error          // Deferred construction error.
}

// builder is the shared base of all field builders.
type builder struct {
	desc *Descriptor
}

// Descriptor returns the descriptor of the field.
func (b *builder) Descriptor() *Descriptor {
	return b.desc
}

func newBuilder(name string, t Type) *builder {
	return &builder{desc: &Descriptor{Name: name, Type: t}}
}

// StringBuilder builds string fields.
type StringBuilder struct{ builder }

// String returns a new string field builder.
func String(name string) *StringBuilder {
	return &StringBuilder{*newBuilder(name, TypeString)}
}

// Text returns a new unbounded text field builder.
func Text(name string) *StringBuilder {
	return &StringBuilder{*newBuilder(name, TypeText)}
}

// Unique makes the field unique.
func (b *StringBuilder) Unique() *StringBuilder { b.desc.Unique = true; return b }

// Nillable allows NULL values in the column.
func (b *StringBuilder) Nillable() *StringBuilder { b.desc.Nillable = true; return b }

// Optional allows the field to be omitted on create.
func (b *StringBuilder) Optional() *StringBuilder { b.desc.Optional = true; return b }

// Immutable rejects the field on update.
func (b *StringBuilder) Immutable() *StringBuilder { b.desc.Immutable = true; return b }

// Sensitive excludes the field from generated query inputs.
func (b *StringBuilder) Sensitive() *StringBuilder { b.desc.Sensitive = true; return b }

// Default sets the default value of the field.
func (b *StringBuilder) Default(v string) *StringBuilder { b.desc.Default = v; return b }

// DefaultFunc sets a function computing the default value of the field.
func (b *StringBuilder) DefaultFunc(fn func() string) *StringBuilder {
	b.desc.Default = fn
	return b
}

// StorageKey overrides the column name of the field.
func (b *StringBuilder) StorageKey(column string) *StringBuilder { b.desc.Column = column; return b }

// Comment sets the field description.
func (b *StringBuilder) Comment(c string) *StringBuilder { b.desc.Comment = c; return b }

// IntBuilder builds integer fields.
type IntBuilder struct{ builder }

// Int returns a new int field builder.
func Int(name string) *IntBuilder {
	return &IntBuilder{*newBuilder(name, TypeInt)}
}

// Int64 returns a new int64 field builder.
func Int64(name string) *IntBuilder {
	return &IntBuilder{*newBuilder(name, TypeInt64)}
}

// Unique makes the field unique.
func (b *IntBuilder) Unique() *IntBuilder { b.desc.Unique = true; return b }

// Nillable allows NULL values in the column.
func (b *IntBuilder) Nillable() *IntBuilder { b.desc.Nillable = true; return b }

// Optional allows the field to be omitted on create.
func (b *IntBuilder) Optional() *IntBuilder { b.desc.Optional = true; return b }

// Immutable rejects the field on update.
func (b *IntBuilder) Immutable() *IntBuilder { b.desc.Immutable = true; return b }

// PrimaryKey marks the field as the entity primary key.
func (b *IntBuilder) PrimaryKey() *IntBuilder { b.desc.PrimaryKey = true; return b }

// Default sets the default value of the field.
func (b *IntBuilder) Default(v int64) *IntBuilder { b.desc.Default = v; return b }

// StorageKey overrides the column name of the field.
func (b *IntBuilder) StorageKey(column string) *IntBuilder { b.desc.Column = column; return b }

// Comment sets the field description.
func (b *IntBuilder) Comment(c string) *IntBuilder { b.desc.Comment = c; return b }

// FloatBuilder builds float fields.
type FloatBuilder struct{ builder }

// Float returns a new float64 field builder.
func Float(name string) *FloatBuilder {
	return &FloatBuilder{*newBuilder(name, TypeFloat64)}
}

// Nillable allows NULL values in the column.
func (b *FloatBuilder) Nillable() *FloatBuilder { b.desc.Nillable = true; return b }

// Optional allows the field to be omitted on create.
func (b *FloatBuilder) Optional() *FloatBuilder { b.desc.Optional = true; return b }

// Default sets the default value of the field.
func (b *FloatBuilder) Default(v float64) *FloatBuilder { b.desc.Default = v; return b }

// StorageKey overrides the column name of the field.
func (b *FloatBuilder) StorageKey(column string) *FloatBuilder { b.desc.Column = column; return b }

// Comment sets the field description.
func (b *FloatBuilder) Comment(c string) *FloatBuilder { b.desc.Comment = c; return b }

// DecimalBuilder builds fixed-precision decimal fields. Aggregations over a
// decimal field are computed with the declared precision.
type DecimalBuilder struct{ builder }

// Decimal returns a new decimal field builder with the given number of
// digits after the decimal point.
func Decimal(name string, precision int32) *DecimalBuilder {
	b := &DecimalBuilder{*newBuilder(name, TypeDecimal)}
	b.desc.Precision = precision
	return b
}

// Nillable allows NULL values in the column.
func (b *DecimalBuilder) Nillable() *DecimalBuilder { b.desc.Nillable = true; return b }

// Optional allows the field to be omitted on create.
func (b *DecimalBuilder) Optional() *DecimalBuilder { b.desc.Optional = true; return b }

// Default sets the default value of the field from its string form.
func (b *DecimalBuilder) Default(v string) *DecimalBuilder { b.desc.Default = v; return b }

// StorageKey overrides the column name of the field.
func (b *DecimalBuilder) StorageKey(column string) *DecimalBuilder { b.desc.Column = column; return b }

// Comment sets the field description.
func (b *DecimalBuilder) Comment(c string) *DecimalBuilder { b.desc.Comment = c; return b }

// BoolBuilder builds boolean fields.
type BoolBuilder struct{ builder }

// Bool returns a new bool field builder.
func Bool(name string) *BoolBuilder {
	return &BoolBuilder{*newBuilder(name, TypeBool)}
}

// Nillable allows NULL values in the column.
func (b *BoolBuilder) Nillable() *BoolBuilder { b.desc.Nillable = true; return b }

// Optional allows the field to be omitted on create.
func (b *BoolBuilder) Optional() *BoolBuilder { b.desc.Optional = true; return b }

// Default sets the default value of the field.
func (b *BoolBuilder) Default(v bool) *BoolBuilder { b.desc.Default = v; return b }

// StorageKey overrides the column name of the field.
func (b *BoolBuilder) StorageKey(column string) *BoolBuilder { b.desc.Column = column; return b }

// Comment sets the field description.
func (b *BoolBuilder) Comment(c string) *BoolBuilder { b.desc.Comment = c; return b }

// TimeBuilder builds time fields.
type TimeBuilder struct{ builder }

// Time returns a new time field builder.
func Time(name string) *TimeBuilder {
	return &TimeBuilder{*newBuilder(name, TypeTime)}
}

// Nillable allows NULL values in the column.
func (b *TimeBuilder) Nillable() *TimeBuilder { b.desc.Nillable = true; return b }

// Optional allows the field to be omitted on create.
func (b *TimeBuilder) Optional() *TimeBuilder { b.desc.Optional = true; return b }

// Immutable rejects the field on update.
func (b *TimeBuilder) Immutable() *TimeBuilder { b.desc.Immutable = true; return b }

// DefaultNow defaults the field to the current time on create.
func (b *TimeBuilder) DefaultNow() *TimeBuilder { b.desc.Default = "now"; return b }

// StorageKey overrides the column name of the field.
func (b *TimeBuilder) StorageKey(column string) *TimeBuilder { b.desc.Column = column; return b }

// Comment sets the field description.
func (b *TimeBuilder) Comment(c string) *TimeBuilder { b.desc.Comment = c; return b }

// UUIDBuilder builds UUID fields.
type UUIDBuilder struct{ builder }

// UUID returns a new UUID field builder.
func UUID(name string) *UUIDBuilder {
	return &UUIDBuilder{*newBuilder(name, TypeUUID)}
}

// Unique makes the field unique.
func (b *UUIDBuilder) Unique() *UUIDBuilder { b.desc.Unique = true; return b }

// Nillable allows NULL values in the column.
func (b *UUIDBuilder) Nillable() *UUIDBuilder { b.desc.Nillable = true; return b }

// Optional allows the field to be omitted on create.
func (b *UUIDBuilder) Optional() *UUIDBuilder { b.desc.Optional = true; return b }

// Immutable rejects the field on update.
func (b *UUIDBuilder) Immutable() *UUIDBuilder { b.desc.Immutable = true; return b }

// PrimaryKey marks the field as the entity primary key.
func (b *UUIDBuilder) PrimaryKey() *UUIDBuilder { b.desc.PrimaryKey = true; return b }

// DefaultFunc sets a function computing the default value of the field.
func (b *UUIDBuilder) DefaultFunc(fn func() string) *UUIDBuilder { b.desc.Default = fn; return b }

// StorageKey overrides the column name of the field.
func (b *UUIDBuilder) StorageKey(column string) *UUIDBuilder { b.desc.Column = column; return b }

// Comment sets the field description.
func (b *UUIDBuilder) Comment(c string) *UUIDBuilder { b.desc.Comment = c; return b }

// EnumBuilder builds enum fields.
type EnumBuilder struct{ builder }

// Enum returns a new enum field builder.
func Enum(name string) *EnumBuilder {
	return &EnumBuilder{*newBuilder(name, TypeEnum)}
}

// Values sets the allowed values of the enum.
func (b *EnumBuilder) Values(values ...string) *EnumBuilder { b.desc.Enums = values; return b }

// Nillable allows NULL values in the column.
func (b *EnumBuilder) Nillable() *EnumBuilder { b.desc.Nillable = true; return b }

// Optional allows the field to be omitted on create.
func (b *EnumBuilder) Optional() *EnumBuilder { b.desc.Optional = true; return b }

// Default sets the default value of the field. The value must be one of the
// declared enum values.
func (b *EnumBuilder) Default(v string) *EnumBuilder {
	b.desc.Default = v
	return b
}

// StorageKey overrides the column name of the field.
func (b *EnumBuilder) StorageKey(column string) *EnumBuilder { b.desc.Column = column; return b }

// Comment sets the field description.
func (b *EnumBuilder) Comment(c string) *EnumBuilder { b.desc.Comment = c; return b }

// Validate reports descriptor-level construction errors. Called by the
// metadata registry during Resolve.
func (d *Descriptor) Validate() error {
	if d.Err != nil {
		return d.Err
	}
	if d.Name == "" {
		return fmt.Errorf("field: missing name")
	}
	if !d.Type.Valid() {
		return fmt.Errorf("field %q: invalid type", d.Name)
	}
	if d.Type == TypeEnum && len(d.Enums) == 0 {
		return fmt.Errorf("field %q: enum without values", d.Name)
	}
	if v, ok := d.Default.(string); ok && d.Type == TypeEnum {
		for _, e := range d.Enums {
			if e == v {
				return nil
			}
		}
		return fmt.Errorf("field %q: default %q is not a declared enum value", d.Name, v)
	}
	return nil
}
