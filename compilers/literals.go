package compilers

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/bawdo/goshawk/datatypes"
	"github.com/bawdo/goshawk/internal/quoting"
)

// LiteralTable drives literal rendering for one dialect. Entries left at
// their zero value mean the dialect has no spelling for that class of
// value: empty NaN/PosInf/NegInf and a nil Interval make Encode fail, while
// empty temporal keywords render the bare quoted string.
type LiteralTable struct {
	True  string
	False string

	// QuoteString quotes and escapes a string literal; Binary renders a
	// byte-string literal.
	QuoteString func(string) string
	Binary      func([]byte) string

	// Keyword prefixes for temporal literals, as in DATE '2024-01-02'.
	Date        string
	Time        string
	Timestamp   string
	TimestampTZ string

	// Spellings for float specials.
	NaN    string
	PosInf string
	NegInf string

	// Interval renders an interval literal from a count and one of the
	// datatypes.IntervalUnits tokens.
	Interval func(count int64, unit string) (string, error)
}

// Encode spells one literal value. Values arrive in the canonical carrier
// types the arena stores: nil, bool, int64, uint64, float64, string, and
// []byte, with temporal and decimal values as their canonical strings.
func (t LiteralTable) Encode(value any, dtype datatypes.DataType) (string, error) {
	if value == nil {
		return "NULL", nil
	}
	switch dtype.Kind() {
	case datatypes.KindBoolean:
		if value.(bool) {
			return t.True, nil
		}
		return t.False, nil
	case datatypes.KindDecimal:
		return value.(string), nil
	case datatypes.KindString:
		return t.QuoteString(value.(string)), nil
	case datatypes.KindBinary:
		return t.Binary(value.([]byte)), nil
	case datatypes.KindDate:
		return t.prefixed(t.Date, value.(string)), nil
	case datatypes.KindTime:
		return t.prefixed(t.Time, value.(string)), nil
	case datatypes.KindTimestamp:
		if dtype.Timezone() != "" {
			if t.TimestampTZ == "" {
				return "", fmt.Errorf("%w: timestamp with time zone literal", ErrUnsupportedOperator)
			}
			return t.prefixed(t.TimestampTZ, value.(string)), nil
		}
		return t.prefixed(t.Timestamp, value.(string)), nil
	case datatypes.KindInterval:
		if t.Interval == nil {
			return "", fmt.Errorf("%w: interval literal", ErrUnsupportedOperator)
		}
		return t.Interval(value.(int64), dtype.Unit())
	}
	switch v := value.(type) {
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float64:
		return t.float(v)
	}
	return "", fmt.Errorf("%w: cannot spell a %T literal", ErrUnsupportedOperator, value)
}

func (t LiteralTable) prefixed(keyword, body string) string {
	quoted := quoting.LiteralQuote(body)
	if keyword == "" {
		return quoted
	}
	return keyword + " " + quoted
}

func (t LiteralTable) float(v float64) (string, error) {
	switch {
	case math.IsNaN(v):
		if t.NaN == "" {
			return "", fmt.Errorf("%w: NaN literal", ErrUnsupportedOperator)
		}
		return t.NaN, nil
	case math.IsInf(v, 1):
		if t.PosInf == "" {
			return "", fmt.Errorf("%w: +Inf literal", ErrUnsupportedOperator)
		}
		return t.PosInf, nil
	case math.IsInf(v, -1):
		if t.NegInf == "" {
			return "", fmt.Errorf("%w: -Inf literal", ErrUnsupportedOperator)
		}
		return t.NegInf, nil
	}
	s := strconv.FormatFloat(v, 'g', -1, 64)
	// Keep floats recognizable as floats; "3" would read back as an integer.
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s, nil
}

func ansiBinary(b []byte) string {
	return "X'" + hex.EncodeToString(b) + "'"
}
