// Package procedure compiles a declarative table of remote procedure names and
// parameter types into immutable, callable procedure descriptors.
//
// A table entry is written as a name and a space separated signature:
//
//	getBlock: "str bool"
//	sendToAddress: "str float str str"
//
// Each compiled Procedure is reachable under its declared name and under its
// all-lowercase form; both keys resolve to the same *Procedure.
package procedure

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"bitcoindrpc/internal/coerce"
	"bitcoindrpc/internal/rpcerror"
)

var (
	nameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	tagRe  = regexp.MustCompile(`^[A-Za-z]+$`)
)

// Spec declares one remote procedure
type Spec struct {
	Name   string
	Params []coerce.TypeTag
}

// Procedure is a compiled Spec
type Procedure struct {
	name     string
	wireName string
	params   []coerce.TypeTag
	funcs    []coerce.Func
}

// Name returns the declared name
func (p *Procedure) Name() string {
	return p.name
}

// WireName returns the lowercase name sent to the daemon
func (p *Procedure) WireName() string {
	return p.wireName
}

// Params returns a copy of the declared parameter tags
func (p *Procedure) Params() []coerce.TypeTag {
	out := make([]coerce.TypeTag, len(p.params))
	copy(out, p.params)
	return out
}

// Arity returns the number of declared parameters
func (p *Procedure) Arity() int {
	return len(p.params)
}

// CoerceArgs coerces the leading min(Arity, len(args)) arguments. Trailing
// arguments are copied through unchanged. args itself is never modified.
func (p *Procedure) CoerceArgs(args []any) ([]any, error) {
	out := make([]any, len(args))
	copy(out, args)

	limit := min(len(p.funcs), len(args))
	for i := 0; i < limit; i++ {
		v, err := p.funcs[i](args[i])
		if err != nil {
			return nil, rpcerror.AtArgument(err, p.name, i)
		}
		out[i] = v
	}

	for i := limit; i < len(out); i++ {
		if !serializable(out[i]) {
			return nil, rpcerror.AtArgument(
				rpcerror.NewCoercion(fmt.Sprintf("%T cannot be sent as a parameter", out[i])), p.name, i)
		}
	}
	return out, nil
}

func serializable(v any) bool {
	if v == nil {
		return true
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
		return false
	}
	return true
}

// Table is an immutable set of compiled procedures
type Table struct {
	byName   map[string]*Procedure
	declared []string
}

// Lookup resolves a declared or lowercase procedure name
func (t *Table) Lookup(name string) (*Procedure, bool) {
	p, ok := t.byName[name]
	return p, ok
}

// Names returns the declared names, sorted
func (t *Table) Names() []string {
	out := make([]string, len(t.declared))
	copy(out, t.declared)
	return out
}

// Len returns the number of procedures
func (t *Table) Len() int {
	return len(t.declared)
}

// Procedures returns the compiled procedures in declared-name order
func (t *Table) Procedures() []*Procedure {
	out := make([]*Procedure, 0, len(t.declared))
	for _, name := range t.declared {
		out = append(out, t.byName[name])
	}
	return out
}

// ParseSignature splits a space separated tag list. Unknown tags fall back
// to string coercion; tokens that are not plain words are rejected.
func ParseSignature(sig string) ([]coerce.TypeTag, error) {
	fields := strings.Fields(sig)
	tags := make([]coerce.TypeTag, 0, len(fields))
	for _, f := range fields {
		if !tagRe.MatchString(f) {
			return nil, fmt.Errorf("invalid type tag %q", f)
		}
		tag, _ := coerce.ParseTag(f)
		tags = append(tags, tag)
	}
	return tags, nil
}

// MustParseSignature is ParseSignature that panics on error
func MustParseSignature(sig string) []coerce.TypeTag {
	tags, err := ParseSignature(sig)
	if err != nil {
		panic(err)
	}
	return tags
}

// Compile builds a Table from specs
func Compile(specs []Spec) (*Table, error) {
	t := &Table{
		byName:   make(map[string]*Procedure, len(specs)*2),
		declared: make([]string, 0, len(specs)),
	}
	seen := make(map[string]string, len(specs))

	for i, s := range specs {
		if !nameRe.MatchString(s.Name) {
			return nil, fmt.Errorf("procedure[%d]: invalid name %q", i, s.Name)
		}
		lower := strings.ToLower(s.Name)
		if prev, ok := seen[lower]; ok {
			return nil, fmt.Errorf("procedure[%d]: %q duplicates %q", i, s.Name, prev)
		}
		seen[lower] = s.Name

		p := &Procedure{
			name:     s.Name,
			wireName: lower,
			params:   make([]coerce.TypeTag, len(s.Params)),
			funcs:    make([]coerce.Func, len(s.Params)),
		}
		copy(p.params, s.Params)
		for j, tag := range s.Params {
			p.funcs[j] = coerce.For(tag)
		}

		t.byName[s.Name] = p
		t.byName[lower] = p
		t.declared = append(t.declared, s.Name)
	}

	sort.Strings(t.declared)
	return t, nil
}

// MustCompile is Compile that panics on error. A malformed table is a
// programming error.
func MustCompile(specs []Spec) *Table {
	t, err := Compile(specs)
	if err != nil {
		panic(fmt.Sprintf("procedure: %v", err))
	}
	return t
}

// ErrEmptyTable is returned when a table file declares no procedures
var ErrEmptyTable = errors.New("procedure table is empty")

// FromSignatures builds specs from a name -> signature mapping
func FromSignatures(m map[string]string) ([]Spec, error) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	specs := make([]Spec, 0, len(m))
	for _, name := range names {
		tags, err := ParseSignature(m[name])
		if err != nil {
			return nil, fmt.Errorf("procedure %q: %w", name, err)
		}
		specs = append(specs, Spec{Name: name, Params: tags})
	}
	return specs, nil
}
