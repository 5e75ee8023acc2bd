// Package gen renders typed Go wrappers for a procedure table.
//
// The generated file declares a Procedures type with one method per
// procedure. Each method takes the declared parameters with Go types
// derived from their type tags and forwards to a Caller, which
// *client.Client satisfies.
package gen

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/dave/jennifer/jen"

	"bitcoindrpc/internal/coerce"
	"bitcoindrpc/internal/procedure"
)

// DefaultPackage is used when no package name is given
const DefaultPackage = "bitcoind"

// Options control code generation
type Options struct {
	Package string
	// Generator is named in the generated-code header
	Generator string
}

// Generate renders the wrappers for every procedure in table
func Generate(table *procedure.Table, opts Options) ([]byte, error) {
	if table == nil || table.Len() == 0 {
		return nil, errors.New("gen: empty procedure table")
	}
	if opts.Package == "" {
		opts.Package = DefaultPackage
	}
	if opts.Generator == "" {
		opts.Generator = "bitcoindrpc-gen"
	}

	f := jen.NewFile(opts.Package)
	f.HeaderComment(fmt.Sprintf("Code generated by %s. DO NOT EDIT.", opts.Generator))

	f.Comment("Caller invokes a procedure by name and decodes its result")
	f.Type().Id("Caller").Interface(
		jen.Id("CallResult").Params(
			jen.Id("ctx").Qual("context", "Context"),
			jen.Id("name").String(),
			jen.Id("result").Interface(),
			jen.Id("args").Op("...").Interface(),
		).Error(),
	)
	f.Line()

	f.Comment("Procedures exposes one typed method per remote procedure")
	f.Type().Id("Procedures").Struct(
		jen.Id("c").Id("Caller"),
	)
	f.Line()

	f.Comment("NewProcedures binds the typed wrappers to c")
	f.Func().Id("NewProcedures").Params(jen.Id("c").Id("Caller")).Op("*").Id("Procedures").Block(
		jen.Return(jen.Op("&").Id("Procedures").Values(jen.Dict{
			jen.Id("c"): jen.Id("c"),
		})),
	)

	for _, p := range table.Procedures() {
		f.Line()
		method(f, p)
	}

	buf := &bytes.Buffer{}
	if err := f.Render(buf); err != nil {
		return nil, fmt.Errorf("gen: render: %w", err)
	}
	return buf.Bytes(), nil
}

func method(f *jen.File, p *procedure.Procedure) {
	params := []jen.Code{
		jen.Id("ctx").Qual("context", "Context"),
		jen.Id("result").Interface(),
	}
	args := []jen.Code{
		jen.Id("ctx"),
		jen.Lit(p.Name()),
		jen.Id("result"),
	}
	for i, tag := range p.Params() {
		name := fmt.Sprintf("a%d", i)
		params = append(params, jen.Id(name).Add(goType(tag)))
		args = append(args, jen.Id(name))
	}

	f.Commentf("%s calls %s(%s)", exportedName(p.Name()), p.WireName(), signature(p))
	f.Func().Params(jen.Id("p").Op("*").Id("Procedures")).Id(exportedName(p.Name())).
		Params(params...).Error().
		Block(
			jen.Return(jen.Id("p").Dot("c").Dot("CallResult").Call(args...)),
		)
}

// goType maps a type tag onto the Go type accepted by the wrapper
func goType(tag coerce.TypeTag) *jen.Statement {
	switch tag {
	case coerce.Integer:
		return jen.Int64()
	case coerce.Float:
		return jen.Float64()
	case coerce.Boolean:
		return jen.Bool()
	case coerce.Object:
		return jen.Interface()
	default:
		return jen.String()
	}
}

func exportedName(name string) string {
	r := []rune(name)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func signature(p *procedure.Procedure) string {
	tags := p.Params()
	parts := make([]string, len(tags))
	for i, tag := range tags {
		parts[i] = tag.String()
	}
	return strings.Join(parts, ", ")
}
