// Package fmtt renders arbitrary values into short, single-line text that is
// safe to embed in diagnostic reports.
package fmtt

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/davecgh/go-spew/spew"
)

// MaxReprLen is the longest representation Repr returns verbatim.
const MaxReprLen = 250

var reprConfig = spew.ConfigState{
	Indent:                  " ",
	MaxDepth:                1,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

var newlines = strings.NewReplacer("\r\n", "", "\n", "", "\r", "")

// Repr returns a bounded, one-line representation of v.
//
// Repr never panics. If v's own String/Error method (or the formatter) fails,
// the result is an identity marker tagged "(bad representation)"; results
// longer than MaxReprLen characters are replaced with one tagged
// "(representation too long)".
func Repr(v any) string {
	if oversized(v) {
		return identity(v) + " (representation too long)>"
	}

	s, ok := tryRepr(v)
	if !ok {
		return identity(v) + " (bad representation)>"
	}

	s = newlines.Replace(s)
	if utf8.RuneCountInString(s) > MaxReprLen {
		return identity(v) + " (representation too long)>"
	}
	return s
}

// oversized reports strings and byte slices whose quoted form is certain to
// exceed the limit, so they are never copied.
func oversized(v any) bool {
	switch x := v.(type) {
	case string:
		return len(x) > MaxReprLen && utf8.RuneCountInString(x) > MaxReprLen
	case []byte:
		return len(x) > MaxReprLen && utf8.RuneCount(x) > MaxReprLen
	}
	return false
}

func tryRepr(v any) (s string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s, ok = "", false
		}
	}()

	switch x := v.(type) {
	case nil:
		return "nil", true
	case string:
		return strconv.Quote(x), true
	case []byte:
		return strconv.Quote(string(x)), true
	case error:
		return x.Error(), true
	case fmt.Stringer:
		return x.String(), true
	}
	return reprConfig.Sprintf("%+v", v), true
}

// identity is the opening of an identity marker; callers append the tag and
// the closing bracket.
func identity(v any) string {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return fmt.Sprintf("<%T at %#x", v, rv.Pointer())
	}
	return fmt.Sprintf("<%T value", v)
}
