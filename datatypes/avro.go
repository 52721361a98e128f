package datatypes

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/linkedin/goavro/v2"
)

// SchemaFromAvroOCF reads the embedded schema of an Avro object container
// file and converts its top-level record into a Schema.
func SchemaFromAvroOCF(r io.Reader) (Schema, error) {
	ocfr, err := goavro.NewOCFReader(r)
	if err != nil {
		return Schema{}, fmt.Errorf("open avro container: %w", err)
	}
	return SchemaFromAvro(ocfr.Codec().Schema())
}

// SchemaFromAvro converts an Avro record schema, given as JSON, into a
// Schema. Fields declared as ["null", T] unions become nullable columns;
// all other fields are non-nullable. Logical types map onto their natural
// counterparts: decimal, date, time-*, and timestamp-* annotations become
// decimal, date, time, and timestamp columns.
func SchemaFromAvro(schemaJSON string) (Schema, error) {
	codec, err := goavro.NewCodec(schemaJSON)
	if err != nil {
		return Schema{}, fmt.Errorf("invalid avro schema: %w", err)
	}
	var root struct {
		Type   string `json:"type"`
		Fields []struct {
			Name string          `json:"name"`
			Type json.RawMessage `json:"type"`
		} `json:"fields"`
	}
	if err := json.Unmarshal([]byte(codec.Schema()), &root); err != nil {
		return Schema{}, fmt.Errorf("decode avro schema: %w", err)
	}
	if root.Type != "record" {
		return Schema{}, fmt.Errorf("avro schema root must be a record, got %q", root.Type)
	}
	conv := &avroConverter{named: make(map[string]DataType)}
	fields := make([]Field, 0, len(root.Fields))
	for _, f := range root.Fields {
		dt, err := conv.convertRaw(f.Type)
		if err != nil {
			return Schema{}, fmt.Errorf("avro field %q: %w", f.Name, err)
		}
		fields = append(fields, Field{Name: f.Name, Type: dt})
	}
	return NewSchema(fields...)
}

type avroConverter struct {
	named map[string]DataType
}

func (c *avroConverter) convertRaw(raw json.RawMessage) (DataType, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return DataType{}, err
	}
	return c.convert(v)
}

func (c *avroConverter) convert(v any) (DataType, error) {
	switch t := v.(type) {
	case string:
		return c.convertName(t)
	case []any:
		return c.convertUnion(t)
	case map[string]any:
		return c.convertComplex(t)
	}
	return DataType{}, fmt.Errorf("unsupported avro type %v", v)
}

func (c *avroConverter) convertName(name string) (DataType, error) {
	switch name {
	case "null":
		return Null, nil
	case "boolean":
		return Boolean.AsNonNullable(), nil
	case "int":
		return Int32.AsNonNullable(), nil
	case "long":
		return Int64.AsNonNullable(), nil
	case "float":
		return Float32.AsNonNullable(), nil
	case "double":
		return Float64.AsNonNullable(), nil
	case "bytes":
		return Binary.AsNonNullable(), nil
	case "string":
		return String.AsNonNullable(), nil
	}
	if dt, ok := c.named[name]; ok {
		return dt, nil
	}
	return DataType{}, fmt.Errorf("unknown avro type %q", name)
}

// convertUnion handles ["null", T] and [T, "null"], the only union shapes
// that map onto a column type.
func (c *avroConverter) convertUnion(branches []any) (DataType, error) {
	if len(branches) != 2 {
		return DataType{}, fmt.Errorf("unsupported avro union of %d branches", len(branches))
	}
	var nonNull any
	sawNull := false
	for _, b := range branches {
		if s, ok := b.(string); ok && s == "null" {
			sawNull = true
			continue
		}
		nonNull = b
	}
	if !sawNull || nonNull == nil {
		return DataType{}, fmt.Errorf("unsupported avro union without a null branch")
	}
	dt, err := c.convert(nonNull)
	if err != nil {
		return DataType{}, err
	}
	return dt.AsNullable(), nil
}

func (c *avroConverter) convertComplex(m map[string]any) (DataType, error) {
	typeName, _ := m["type"].(string)
	if logical, ok := m["logicalType"].(string); ok {
		switch logical {
		case "decimal":
			precision := intAttr(m, "precision", 0)
			scale := intAttr(m, "scale", 0)
			if precision <= 0 || scale < 0 || scale > precision {
				return DataType{}, fmt.Errorf("invalid avro decimal(%d, %d)", precision, scale)
			}
			return Decimal(precision, scale).AsNonNullable(), nil
		case "date":
			return Date.AsNonNullable(), nil
		case "time-millis", "time-micros":
			return Time.AsNonNullable(), nil
		case "timestamp-millis", "timestamp-micros":
			return Timestamp("UTC").AsNonNullable(), nil
		case "local-timestamp-millis", "local-timestamp-micros":
			return Timestamp("").AsNonNullable(), nil
		case "uuid":
			return String.AsNonNullable(), nil
		}
	}
	switch typeName {
	case "array":
		elem, err := c.convert(m["items"])
		if err != nil {
			return DataType{}, err
		}
		return Array(elem).AsNonNullable(), nil
	case "map":
		value, err := c.convert(m["values"])
		if err != nil {
			return DataType{}, err
		}
		return Map(String.AsNonNullable(), value).AsNonNullable(), nil
	case "record":
		name, _ := m["name"].(string)
		rawFields, _ := m["fields"].([]any)
		fields := make([]Field, 0, len(rawFields))
		seen := make(map[string]struct{}, len(rawFields))
		for _, rf := range rawFields {
			fm, ok := rf.(map[string]any)
			if !ok {
				return DataType{}, fmt.Errorf("malformed avro record field in %q", name)
			}
			fname, _ := fm["name"].(string)
			if _, dup := seen[fname]; dup {
				return DataType{}, fmt.Errorf("%w: %q", ErrDuplicateField, fname)
			}
			seen[fname] = struct{}{}
			ft, err := c.convert(fm["type"])
			if err != nil {
				return DataType{}, fmt.Errorf("avro field %q: %w", fname, err)
			}
			fields = append(fields, Field{Name: fname, Type: ft})
		}
		dt := Struct(fields...).AsNonNullable()
		if name != "" {
			c.named[name] = dt
		}
		return dt, nil
	case "enum":
		if name, _ := m["name"].(string); name != "" {
			c.named[name] = String.AsNonNullable()
		}
		return String.AsNonNullable(), nil
	case "fixed":
		if name, _ := m["name"].(string); name != "" {
			c.named[name] = Binary.AsNonNullable()
		}
		return Binary.AsNonNullable(), nil
	case "":
		return DataType{}, fmt.Errorf("avro type missing %q attribute", "type")
	}
	return c.convert(m["type"])
}

func intAttr(m map[string]any, key string, fallback int) int {
	if f, ok := m[key].(float64); ok {
		return int(f)
	}
	return fallback
}
