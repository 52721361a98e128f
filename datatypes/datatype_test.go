package datatypes

import (
	"testing"

	"github.com/bawdo/goshawk/internal/testutil"
)

func TestDataTypeString(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		dt   DataType
		want string
	}{
		{"null", Null, "null"},
		{"boolean", Boolean, "boolean"},
		{"int64", Int64, "int64"},
		{"uint32", UInt32, "uint32"},
		{"float64", Float64, "float64"},
		{"non-nullable", Int64.AsNonNullable(), "!int64"},
		{"decimal", Decimal(9, 2), "decimal(9, 2)"},
		{"naive timestamp", Timestamp(""), "timestamp"},
		{"zoned timestamp", Timestamp("UTC"), "timestamp('UTC')"},
		{"interval", Interval("s"), "interval('s')"},
		{"array", Array(Int64), "array<int64>"},
		{"array of non-nullable", Array(String.AsNonNullable()), "array<!string>"},
		{"map", Map(String, Int64), "map<string, int64>"},
		{"struct", Struct(Field{"a", Int64}, Field{"b", String}), "struct<a: int64, b: string>"},
		{
			"nested",
			Array(Struct(Field{"xs", Map(String, Array(Float64))})),
			"array<struct<xs: map<string, array<float64>>>>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.AssertEqual(t, tt.dt.String(), tt.want)
		})
	}
}

func TestStringParseRoundTrip(t *testing.T) {
	t.Parallel()
	types := []DataType{
		Null,
		Boolean,
		Int8, Int16, Int32, Int64,
		UInt8, UInt16, UInt32, UInt64,
		Float32, Float64,
		String, Binary, Date, Time,
		Int32.AsNonNullable(),
		Decimal(38, 10),
		Timestamp(""),
		Timestamp("America/New_York"),
		Interval("ms"),
		Array(Array(Int64.AsNonNullable())),
		Map(String.AsNonNullable(), Decimal(12, 4)),
		Struct(Field{"id", Int64.AsNonNullable()}, Field{"tags", Array(String)}),
	}
	for _, dt := range types {
		t.Run(dt.String(), func(t *testing.T) {
			parsed, err := Parse(dt.String())
			testutil.AssertNoError(t, err)
			if !parsed.Equal(dt) {
				t.Errorf("round trip of %s produced %s", dt, parsed)
			}
		})
	}
}

func TestEqual(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		a, b DataType
		want bool
	}{
		{"same singleton", Int64, Int64, true},
		{"different kinds", Int64, Int32, false},
		{"nullability differs", Int64, Int64.AsNonNullable(), false},
		{"decimal params equal", Decimal(9, 2), Decimal(9, 2), true},
		{"decimal params differ", Decimal(9, 2), Decimal(9, 3), false},
		{"timezone differs", Timestamp("UTC"), Timestamp(""), false},
		{"interval unit differs", Interval("s"), Interval("m"), false},
		{"array elem equal", Array(Int64), Array(Int64), true},
		{"array elem differs", Array(Int64), Array(Int32), false},
		{"struct field order matters", Struct(Field{"a", Int64}, Field{"b", String}), Struct(Field{"b", String}, Field{"a", Int64}), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.AssertEqual(t, tt.a.Equal(tt.b), tt.want)
		})
	}
}

func TestPredicates(t *testing.T) {
	t.Parallel()
	testutil.AssertEqual(t, Int8.IsInteger(), true)
	testutil.AssertEqual(t, UInt64.IsInteger(), true)
	testutil.AssertEqual(t, UInt64.IsSignedInteger(), false)
	testutil.AssertEqual(t, UInt64.IsUnsignedInteger(), true)
	testutil.AssertEqual(t, Float32.IsFloating(), true)
	testutil.AssertEqual(t, Decimal(9, 0).IsNumeric(), true)
	testutil.AssertEqual(t, String.IsNumeric(), false)
	testutil.AssertEqual(t, Date.IsTemporal(), true)
	testutil.AssertEqual(t, Interval("D").IsTemporal(), true)
	testutil.AssertEqual(t, Array(Int64).IsComposite(), true)
	testutil.AssertEqual(t, Null.IsNull(), true)
	testutil.AssertEqual(t, Null.Nullable(), true)
}

func TestStructAccessors(t *testing.T) {
	t.Parallel()
	dt := Struct(Field{"a", Int64}, Field{"b", String})
	ft, ok := dt.FieldType("b")
	testutil.AssertEqual(t, ok, true)
	testutil.AssertEqual(t, ft.Kind(), KindString)
	_, ok = dt.FieldType("missing")
	testutil.AssertEqual(t, ok, false)
}

func TestConstructorPanics(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		fn   func()
	}{
		{"zero precision", func() { Decimal(0, 0) }},
		{"negative scale", func() { Decimal(9, -1) }},
		{"scale exceeds precision", func() { Decimal(2, 3) }},
		{"bad interval unit", func() { Interval("fortnight") }},
		{"duplicate struct field", func() { Struct(Field{"a", Int64}, Field{"a", String}) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatal("expected a panic")
				}
			}()
			tt.fn()
		})
	}
}
