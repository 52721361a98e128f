package datatypes

import (
	"bytes"
	"testing"

	"github.com/linkedin/goavro/v2"

	"github.com/bawdo/goshawk/internal/testutil"
)

const flightsAvroSchema = `{
	"type": "record",
	"name": "flights",
	"fields": [
		{"name": "year", "type": "int"},
		{"name": "carrier", "type": {"type": "enum", "name": "carrier_code", "symbols": ["AA", "UA"]}},
		{"name": "arrdelay", "type": ["null", "double"]},
		{"name": "fare", "type": {"type": "bytes", "logicalType": "decimal", "precision": 12, "scale": 2}},
		{"name": "departed_at", "type": {"type": "long", "logicalType": "timestamp-millis"}},
		{"name": "flight_date", "type": {"type": "int", "logicalType": "date"}},
		{"name": "tags", "type": {"type": "array", "items": "string"}},
		{"name": "metrics", "type": {"type": "map", "values": "double"}},
		{"name": "origin", "type": {"type": "record", "name": "airport", "fields": [
			{"name": "code", "type": "string"},
			{"name": "elevation", "type": ["null", "int"]}
		]}}
	]
}`

func TestSchemaFromAvro(t *testing.T) {
	t.Parallel()
	s, err := SchemaFromAvro(flightsAvroSchema)
	testutil.AssertNoError(t, err)

	want := MustSchema(
		Field{"year", Int32.AsNonNullable()},
		Field{"carrier", String.AsNonNullable()},
		Field{"arrdelay", Float64},
		Field{"fare", Decimal(12, 2).AsNonNullable()},
		Field{"departed_at", Timestamp("UTC").AsNonNullable()},
		Field{"flight_date", Date.AsNonNullable()},
		Field{"tags", Array(String.AsNonNullable()).AsNonNullable()},
		Field{"metrics", Map(String.AsNonNullable(), Float64.AsNonNullable()).AsNonNullable()},
		Field{"origin", Struct(
			Field{"code", String.AsNonNullable()},
			Field{"elevation", Int32},
		).AsNonNullable()},
	)
	if !s.Equal(want) {
		t.Errorf("schema mismatch:\n got %s\nwant %s", s, want)
	}
}

func TestSchemaFromAvroErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		schema string
	}{
		{"invalid json", `{"type": "record"`},
		{"non-record root", `{"type": "array", "items": "long"}`},
		{"wide union", `{
			"type": "record", "name": "r",
			"fields": [{"name": "v", "type": ["null", "string", "long"]}]
		}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SchemaFromAvro(tt.schema)
			testutil.AssertError(t, err)
		})
	}
}

func TestSchemaFromAvroOCF(t *testing.T) {
	t.Parallel()
	const schema = `{
		"type": "record",
		"name": "flight",
		"fields": [
			{"name": "carrier", "type": "string"},
			{"name": "delay", "type": ["null", "double"]}
		]
	}`
	buf := &bytes.Buffer{}
	w, err := goavro.NewOCFWriter(goavro.OCFConfig{W: buf, Schema: schema})
	testutil.AssertNoError(t, err)
	err = w.Append([]any{map[string]any{
		"carrier": "AA",
		"delay":   map[string]any{"double": 12.5},
	}})
	testutil.AssertNoError(t, err)

	s, err := SchemaFromAvroOCF(bytes.NewReader(buf.Bytes()))
	testutil.AssertNoError(t, err)

	want := MustSchema(
		Field{"carrier", String.AsNonNullable()},
		Field{"delay", Float64},
	)
	if !s.Equal(want) {
		t.Errorf("schema mismatch:\n got %s\nwant %s", s, want)
	}
}
