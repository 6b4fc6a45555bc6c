package ir

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Enum is implemented by enumerated Go types (YesNo, heat pump styles, ...)
// whose canonical IR form is their string value. Programs built in Go may
// use enum constants and raw strings interchangeably; both collapse to the
// same IRString when converted.
type Enum interface {
	EnumValue() string
}

// FromGo converts a Go value into its canonical IRValue.
//
// Strings are NFC normalized, enums collapse to their string value, named
// scalar types (type Style string) convert by kind, pointers are followed and
// nil becomes IRNull. Structs are not values; they are subject nodes and are
// rejected here.
func FromGo(v any) (IRValue, error) {
	switch val := v.(type) {
	case nil:
		return IRNull{}, nil
	case IRString:
		return IRString(norm.NFC.String(string(val))), nil
	case IRFloat:
		return checkFloat(float64(val))
	case IRArray:
		out := make(IRArray, len(val))
		for i, elem := range val {
			c, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = c
		}
		return out, nil
	case IRObject:
		out := make(IRObject, len(val))
		for k, elem := range val {
			c, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			out[norm.NFC.String(k)] = c
		}
		return out, nil
	case IRValue:
		return val, nil
	case Enum:
		return IRString(norm.NFC.String(val.EnumValue())), nil
	case string:
		return IRString(norm.NFC.String(val)), nil
	case bool:
		return IRBool(val), nil
	case int:
		return IRInt(val), nil
	case int64:
		return IRInt(val), nil
	case float64:
		return checkFloat(val)
	case json.Number:
		return numberToIR(val)
	case time.Time:
		return IRString(val.Format(time.RFC3339)), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return IRNull{}, nil
		}
		return FromGo(rv.Elem().Interface())
	case reflect.String:
		return IRString(norm.NFC.String(rv.String())), nil
	case reflect.Bool:
		return IRBool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return IRInt(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, fmt.Errorf("unsigned value %d overflows int64", u)
		}
		return IRInt(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		return checkFloat(rv.Float())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return IRNull{}, nil
		}
		out := make(IRArray, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			c, err := FromGo(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = c
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("map key type %s is not a string", rv.Type().Key())
		}
		if rv.IsNil() {
			return IRNull{}, nil
		}
		out := make(IRObject, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			c, err := FromGo(iter.Value().Interface())
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", iter.Key().String(), err)
			}
			out[norm.NFC.String(iter.Key().String())] = c
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported type for IR conversion: %T", v)
	}
}

// MustFromGo is like FromGo but panics on error.
// Use only in tests or for literals known to be valid.
func MustFromGo(v any) IRValue {
	c, err := FromGo(v)
	if err != nil {
		panic(err)
	}
	return c
}

func checkFloat(f float64) (IRValue, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite float %v", f)
	}
	return IRFloat(f), nil
}
