package fmtt_test

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/edirooss/slowdog/pkg/fmtt"
	"github.com/stretchr/testify/require"
)

type panicky struct{}

func (*panicky) String() string { panic("boom") }

type valueStringer struct{ n int }

func (v valueStringer) String() string { return "vs" }

type multiline struct{}

func (multiline) String() string { return "a\nb\r\nc" }

func TestRepr_basic(t *testing.T) {
	t.Parallel()

	require.Equal(t, "nil", fmtt.Repr(nil))
	require.Equal(t, `"hello"`, fmtt.Repr("hello"))
	require.Equal(t, `"raw"`, fmtt.Repr([]byte("raw")))
	require.Equal(t, "42", fmtt.Repr(42))
	require.Equal(t, "oops", fmtt.Repr(errors.New("oops")))
	require.Equal(t, "vs", fmtt.Repr(valueStringer{}))
}

func TestRepr_struct(t *testing.T) {
	t.Parallel()

	type user struct {
		Name string
		Age  int
	}
	s := fmtt.Repr(user{Name: "ann", Age: 3})
	require.Contains(t, s, "Name:")
	require.Contains(t, s, "ann")
	require.Contains(t, s, "Age:3")
}

func TestRepr_badRepresentation(t *testing.T) {
	t.Parallel()

	s := fmtt.Repr(&panicky{})
	require.True(t, strings.HasPrefix(s, "<*fmtt_test.panicky at 0x"), s)
	require.True(t, strings.HasSuffix(s, " (bad representation)>"), s)

	// Value-receiver String on a nil pointer panics inside the method.
	var nilStringer *valueStringer
	s = fmtt.Repr(nilStringer)
	require.True(t, strings.HasSuffix(s, " (bad representation)>"), s)
}

func TestRepr_tooLong(t *testing.T) {
	t.Parallel()

	s := fmtt.Repr(strings.Repeat("x", 300))
	require.Equal(t, "<string value (representation too long)>", s)

	long := make([]int, 200)
	s = fmtt.Repr(long)
	require.True(t, strings.HasPrefix(s, "<[]int at 0x"), s)
	require.True(t, strings.HasSuffix(s, " (representation too long)>"), s)
}

func TestRepr_exactlyAtLimit(t *testing.T) {
	t.Parallel()

	// Quoting adds two bytes.
	v := strings.Repeat("y", fmtt.MaxReprLen-2)
	require.Equal(t, `"`+v+`"`, fmtt.Repr(v))
}

func TestRepr_collapsesNewlines(t *testing.T) {
	t.Parallel()

	require.Equal(t, "abc", fmtt.Repr(multiline{}))
}

func TestRepr_bounded(t *testing.T) {
	t.Parallel()

	inputs := []any{
		strings.Repeat("z", 10_000),
		map[string]string{"k": strings.Repeat("v", 1000)},
		&panicky{},
		make(chan int),
		func() {},
		struct{ A, B, C string }{"a", "b", strings.Repeat("c", 400)},
	}
	for _, in := range inputs {
		s := fmtt.Repr(in)
		require.LessOrEqual(t, len(s), fmtt.MaxReprLen+80, s)
		require.NotContains(t, s, "\n")
	}
}

func TestRepr_limitCountsCharacters(t *testing.T) {
	t.Parallel()

	// 200 two-byte runes: over the limit in bytes, under it in characters.
	v := strings.Repeat("é", 200)
	require.Equal(t, strconv.Quote(v), fmtt.Repr(v))

	s := fmtt.Repr(strings.Repeat("é", fmtt.MaxReprLen+1))
	require.True(t, strings.HasSuffix(s, " (representation too long)>"), s)
}

func TestRepr_hugeBytesNotQuoted(t *testing.T) {
	t.Parallel()

	s := fmtt.Repr(make([]byte, 1<<20))
	require.True(t, strings.HasPrefix(s, "<[]uint8 at 0x"), s)
	require.True(t, strings.HasSuffix(s, " (representation too long)>"), s)
}
