package datatypes

import (
	"errors"
	"fmt"
)

// ErrTypeMismatch is wrapped by every error arising from incompatible types:
// failed promotion, invalid casts, and operator operands that cannot be
// reconciled.
var ErrTypeMismatch = errors.New("type mismatch")

func mismatch(a, b DataType) error {
	return fmt.Errorf("%w: no common type for %s and %s", ErrTypeMismatch, a, b)
}

// Promote computes the least common supertype of two types under the numeric
// order int8 < int16 < int32 < int64 < decimal < float64 (the unsigned ladder
// promotes the same way; signed and unsigned never mix implicitly). The result
// is nullable when either input is. Promote is commutative and idempotent:
// Promote(a, b) == Promote(b, a) and Promote(a, a) == a.
func Promote(a, b DataType) (DataType, error) {
	out, err := promote(a, b)
	if err != nil {
		return DataType{}, err
	}
	return out.WithNullable(a.Nullable() || b.Nullable()), nil
}

func promote(a, b DataType) (DataType, error) {
	// Null yields to anything; nullability is restored by the caller.
	if a.kind == KindNull {
		return b, nil
	}
	if b.kind == KindNull {
		return a, nil
	}
	if a.EqualIgnoringNullability(b) {
		return a, nil
	}

	if a.IsNumeric() && b.IsNumeric() {
		return promoteNumeric(a, b)
	}

	switch {
	case a.kind == KindDate && b.kind == KindTimestamp:
		return b, nil
	case a.kind == KindTimestamp && b.kind == KindDate:
		return a, nil
	case a.kind == KindArray && b.kind == KindArray:
		elem, err := Promote(a.Elem(), b.Elem())
		if err != nil {
			return DataType{}, mismatch(a, b)
		}
		return Array(elem), nil
	case a.kind == KindMap && b.kind == KindMap:
		key, err := Promote(a.Key(), b.Key())
		if err != nil {
			return DataType{}, mismatch(a, b)
		}
		value, err := Promote(a.Value(), b.Value())
		if err != nil {
			return DataType{}, mismatch(a, b)
		}
		return Map(key, value), nil
	case a.kind == KindStruct && b.kind == KindStruct:
		if len(a.fields) != len(b.fields) {
			return DataType{}, mismatch(a, b)
		}
		fields := make([]Field, len(a.fields))
		for i, fa := range a.fields {
			fb := b.fields[i]
			if fa.Name != fb.Name {
				return DataType{}, mismatch(a, b)
			}
			ft, err := Promote(fa.Type, fb.Type)
			if err != nil {
				return DataType{}, mismatch(a, b)
			}
			fields[i] = Field{Name: fa.Name, Type: ft}
		}
		return Struct(fields...), nil
	}
	return DataType{}, mismatch(a, b)
}

func promoteNumeric(a, b DataType) (DataType, error) {
	switch {
	case a.IsInteger() && b.IsInteger():
		if a.IsSignedInteger() != b.IsSignedInteger() {
			return DataType{}, mismatch(a, b)
		}
		if a.bytes() >= b.bytes() {
			return a, nil
		}
		return b, nil
	case a.kind == KindDecimal && b.IsInteger():
		return a, nil
	case a.IsInteger() && b.kind == KindDecimal:
		return b, nil
	case a.IsFloating() && b.IsInteger(), a.IsInteger() && b.IsFloating():
		if a.IsFloating() {
			return a, nil
		}
		return b, nil
	case a.IsFloating() && b.IsFloating():
		if a.bytes() >= b.bytes() {
			return a, nil
		}
		return b, nil
	case a.kind == KindDecimal && b.IsFloating(), a.IsFloating() && b.kind == KindDecimal:
		// Decimal sits below float64 in the order; float64 is the only
		// floating type wide enough to absorb an arbitrary decimal.
		return Float64, nil
	case a.kind == KindDecimal && b.kind == KindDecimal:
		intDigits := a.precision - a.scale
		if d := b.precision - b.scale; d > intDigits {
			intDigits = d
		}
		scale := a.scale
		if b.scale > scale {
			scale = b.scale
		}
		precision := intDigits + scale
		if precision > 38 {
			precision = 38
		}
		return Decimal(precision, scale), nil
	}
	return DataType{}, mismatch(a, b)
}

// PromoteAll folds Promote over a non-empty list of types.
func PromoteAll(types ...DataType) (DataType, error) {
	if len(types) == 0 {
		return DataType{}, fmt.Errorf("%w: no types to promote", ErrTypeMismatch)
	}
	out := types[0]
	for _, t := range types[1:] {
		var err error
		out, err = Promote(out, t)
		if err != nil {
			return DataType{}, err
		}
	}
	return out, nil
}

// Castable reports whether a value of type from can be cast to type to. The
// relation is static: casts whose validity depends on the runtime value, such
// as string to timestamp or int64 to int32, are not castable here and must go
// through an explicit parse or truncation operator on the target engine.
//
// The rules: null casts to any nullable type; widening within one integer
// signedness; any integer to any floating or decimal; floating to wider
// floating, any floating to decimal; decimal to decimal when precision and
// scale both widen; decimal to floating; date and timestamp cast to each
// other; intervals cast only within their unit; composites cast elementwise.
func Castable(from, to DataType) bool {
	if from.kind == KindNull {
		return to.Nullable()
	}
	if from.EqualIgnoringNullability(to) {
		return true
	}
	switch {
	case from.IsInteger() && to.IsInteger():
		return from.IsSignedInteger() == to.IsSignedInteger() && to.bytes() >= from.bytes()
	case from.IsInteger() && (to.IsFloating() || to.kind == KindDecimal):
		return true
	case from.IsSignedInteger() && to.kind == KindInterval:
		return true
	case from.IsFloating() && to.IsFloating():
		return to.bytes() >= from.bytes()
	case from.IsFloating() && to.kind == KindDecimal:
		return true
	case from.kind == KindDecimal && to.kind == KindDecimal:
		return to.precision >= from.precision && to.scale >= from.scale
	case from.kind == KindDecimal && to.IsFloating():
		return to.kind == KindFloat64
	case from.kind == KindDate && to.kind == KindTimestamp:
		return true
	case from.kind == KindTimestamp && to.kind == KindDate:
		return true
	case from.kind == KindTimestamp && to.kind == KindTimestamp:
		return true
	case from.kind == KindInterval && to.kind == KindInterval:
		return from.unit == to.unit
	case from.kind == KindArray && to.kind == KindArray:
		return Castable(from.Elem(), to.Elem())
	case from.kind == KindMap && to.kind == KindMap:
		return Castable(from.Key(), to.Key()) && Castable(from.Value(), to.Value())
	case from.kind == KindStruct && to.kind == KindStruct:
		if len(from.fields) != len(to.fields) {
			return false
		}
		for i, f := range from.fields {
			if f.Name != to.fields[i].Name || !Castable(f.Type, to.fields[i].Type) {
				return false
			}
		}
		return true
	}
	return false
}
