package ir

import (
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Equal reports whether two values are the same IR value.
//
// Numbers compare by magnitude (IRInt(2) equals IRFloat(2.0)); strings
// compare after NFC normalization. A string never equals a number: answers
// typed as text are not coerced for equality, only for ordering.
func Equal(a, b IRValue) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}

	if an, ok := numeric(a); ok {
		bn, ok := numeric(b)
		return ok && an == bn
	}

	switch av := a.(type) {
	case IRString:
		bv, ok := b.(IRString)
		return ok && norm.NFC.String(string(av)) == norm.NFC.String(string(bv))
	case IRBool:
		bv, ok := b.(IRBool)
		return ok && av == bv
	case IRArray:
		bv, ok := b.(IRArray)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case IRObject:
		bv, ok := b.(IRObject)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, exists := bv[k]
			if !exists || !Equal(v, other) {
				return false
			}
		}
		return true
	}
	return false
}

// numeric returns the magnitude of strictly numeric values.
func numeric(v IRValue) (float64, bool) {
	switch n := v.(type) {
	case IRInt:
		return float64(n), true
	case IRFloat:
		return float64(n), true
	}
	return 0, false
}

// Number extracts a number for ordering comparisons. Numeric strings
// ("2", " 3.5 ") qualify because simulation exports and open answers carry
// numbers as text.
func Number(v IRValue) (float64, bool) {
	if n, ok := numeric(v); ok {
		return n, true
	}
	s, ok := v.(IRString)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(string(s)), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Contains reports whether any element of values equals v.
func Contains(values []IRValue, v IRValue) bool {
	for _, candidate := range values {
		if Equal(candidate, v) {
			return true
		}
	}
	return false
}

// Display renders a value for human-readable output and error messages.
func Display(v IRValue) string {
	if s, ok := v.(IRString); ok {
		return string(s)
	}
	data, err := MarshalIRValue(v)
	if err != nil {
		return "<invalid>"
	}
	return string(data)
}
