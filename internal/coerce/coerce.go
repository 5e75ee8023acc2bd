// Package coerce normalizes loosely typed call arguments into the shapes the
// node's JSON-RPC procedures expect on the wire.
package coerce

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"bitcoindrpc/internal/rpcerror"
)

// TypeTag selects the converter applied to one positional argument
type TypeTag int

const (
	// String is also the fallback for unrecognized tags
	String TypeTag = iota
	Integer
	Float
	Boolean
	Object
)

// Func converts a single raw argument into its wire value
type Func func(arg any) (any, error)

var tagNames = map[TypeTag]string{
	String:  "str",
	Integer: "int",
	Float:   "float",
	Boolean: "bool",
	Object:  "obj",
}

var tagSpellings = map[string]TypeTag{
	"str":     String,
	"string":  String,
	"int":     Integer,
	"integer": Integer,
	"float":   Float,
	"bool":    Boolean,
	"boolean": Boolean,
	"obj":     Object,
	"object":  Object,
}

var converters = map[TypeTag]Func{
	String:  toString,
	Integer: toNumber,
	Float:   toNumber,
	Boolean: toBool,
	Object:  toObject,
}

// String returns the short tag spelling used in procedure tables
func (t TypeTag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return tagNames[String]
}

// ParseTag resolves a tag spelling. Unknown spellings resolve to String with
// known=false.
func ParseTag(s string) (tag TypeTag, known bool) {
	tag, known = tagSpellings[strings.ToLower(s)]
	if !known {
		return String, false
	}
	return tag, true
}

// For returns the converter bound to a tag
func For(tag TypeTag) Func {
	if fn, ok := converters[tag]; ok {
		return fn
	}
	return toString
}

// Coerce applies the converter for tag to arg
func Coerce(tag TypeTag, arg any) (any, error) {
	return For(tag)(arg)
}

func toString(arg any) (any, error) {
	switch v := arg.(type) {
	case nil:
		return nil, rpcerror.NewCoercion("cannot convert null to string")
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case fmt.Stringer:
		return v.String(), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case []byte:
		return string(v), nil
	default:
		return fmt.Sprint(v), nil
	}
}

// toNumber accepts numbers and strings starting with a decimal literal;
// anything that does not yield a finite number fails
func toNumber(arg any) (any, error) {
	var f float64
	switch v := arg.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int8:
		f = float64(v)
	case int16:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint:
		f = float64(v)
	case uint8:
		f = float64(v)
	case uint16:
		f = float64(v)
	case uint32:
		f = float64(v)
	case uint64:
		f = float64(v)
	case json.Number:
		return parseNumber(v.String())
	case string:
		return parseNumber(v)
	case fmt.Stringer:
		return parseNumber(v.String())
	default:
		return nil, rpcerror.NewCoercion(fmt.Sprintf("cannot convert %T to number", arg))
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, rpcerror.NewCoercion(fmt.Sprintf("%v is not a finite number", f))
	}
	return f, nil
}

// numberPrefix matches the longest leading decimal literal, so "3.5btc"
// yields 3.5 and "1e" yields 1
var numberPrefix = regexp.MustCompile(`^[+-]?(?:[0-9]+\.?[0-9]*|\.[0-9]+)(?:[eE][+-]?[0-9]+)?`)

func parseNumber(s string) (any, error) {
	lit := numberPrefix.FindString(strings.TrimLeftFunc(s, unicode.IsSpace))
	if lit == "" {
		return nil, rpcerror.NewCoercion(fmt.Sprintf("%q is not a number", s))
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, rpcerror.NewCoercion(fmt.Sprintf("%q is not a finite number", s))
	}
	return f, nil
}

func toBool(arg any) (any, error) {
	switch v := arg.(type) {
	case bool:
		return v, nil
	case string:
		return v == "1" || strings.EqualFold(v, "true"), nil
	case json.Number:
		return v.String() == "1", nil
	case int:
		return v == 1, nil
	case int64:
		return v == 1, nil
	case float64:
		return v == 1, nil
	default:
		return false, nil
	}
}

func toObject(arg any) (any, error) {
	var raw []byte
	switch v := arg.(type) {
	case string:
		raw = []byte(v)
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		return arg, nil
	}

	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, rpcerror.WrapCoercion("invalid JSON object argument", err)
	}
	return out, nil
}
