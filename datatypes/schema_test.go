package datatypes

import (
	"strings"
	"testing"

	"github.com/bawdo/goshawk/internal/testutil"
)

func TestNewSchema(t *testing.T) {
	t.Parallel()
	s, err := NewSchema(
		Field{"id", Int64.AsNonNullable()},
		Field{"name", String},
		Field{"balance", Decimal(12, 2)},
	)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, s.Len(), 3)

	i, ok := s.IndexOf("name")
	testutil.AssertEqual(t, ok, true)
	testutil.AssertEqual(t, i, 1)

	dt, ok := s.TypeOf("balance")
	testutil.AssertEqual(t, ok, true)
	testutil.AssertEqual(t, dt.String(), "decimal(12, 2)")

	testutil.AssertEqual(t, s.Has("missing"), false)
	testutil.AssertEqual(t, strings.Join(s.Names(), ","), "id,name,balance")
}

func TestNewSchemaRejectsDuplicates(t *testing.T) {
	t.Parallel()
	_, err := NewSchema(Field{"a", Int64}, Field{"a", String})
	testutil.AssertErrorIs(t, err, ErrDuplicateField)
}

func TestNewSchemaRejectsEmptyNames(t *testing.T) {
	t.Parallel()
	_, err := NewSchema(Field{"", Int64})
	testutil.AssertError(t, err)
}

func TestSchemaEqual(t *testing.T) {
	t.Parallel()
	a := MustSchema(Field{"x", Int64}, Field{"y", String})
	b := MustSchema(Field{"x", Int64}, Field{"y", String})
	c := MustSchema(Field{"y", String}, Field{"x", Int64})
	testutil.AssertEqual(t, a.Equal(b), true)
	testutil.AssertEqual(t, a.Equal(c), false)
	testutil.AssertEqual(t, a.Equal(Schema{}), false)
}

func TestSchemaString(t *testing.T) {
	t.Parallel()
	s := MustSchema(Field{"id", Int64.AsNonNullable()}, Field{"carrier", String})
	want := "schema {\n  id       !int64\n  carrier  string\n}"
	testutil.AssertEqual(t, s.String(), want)

	testutil.AssertEqual(t, Schema{}.String(), "schema {}")
}

func TestSchemaAsStruct(t *testing.T) {
	t.Parallel()
	s := MustSchema(Field{"a", Int64}, Field{"b", String})
	testutil.AssertEqual(t, s.AsStruct().String(), "struct<a: int64, b: string>")
}
