// Package atm implements annotated types: the type trees handed around during
// constraint generation, where every position carries qualifier annotations.
//
// During inference each position carries exactly one annotation, either a slot marker
// (VarAnnot etc.) or the real qualifier of a constant slot.
package atm

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/cottand/qinfer/inference/model"
	"github.com/cottand/qinfer/inference/program"
)

type TypeKind int

const (
	KindDeclared TypeKind = iota
	KindArray
	KindWildcard
	KindTypeVariable
	KindPrimitive
	KindNull
	KindExecutable
	KindNoType
)

func (k TypeKind) String() string {
	switch k {
	case KindDeclared:
		return "DECLARED"
	case KindArray:
		return "ARRAY"
	case KindWildcard:
		return "WILDCARD"
	case KindTypeVariable:
		return "TYPEVAR"
	case KindPrimitive:
		return "PRIMITIVE"
	case KindNull:
		return "NULL"
	case KindExecutable:
		return "EXECUTABLE"
	case KindNoType:
		return "NONE"
	}
	return fmt.Sprintf("TypeKind(%d)", int(k))
}

// AnnotatedType is implemented by the pointer types of this package only
type AnnotatedType interface {
	Kind() TypeKind
	Annotations() []Annotation
	AddAnnotation(Annotation)
	// ReplaceAnnotation clears every annotation and adds anno
	ReplaceAnnotation(anno Annotation)
	ClearAnnotations()
	fmt.Stringer
	slog.LogValuer

	annotations() *annotated
}

var (
	_ AnnotatedType = (*Declared)(nil)
	_ AnnotatedType = (*Array)(nil)
	_ AnnotatedType = (*Wildcard)(nil)
	_ AnnotatedType = (*TypeVariable)(nil)
	_ AnnotatedType = (*Primitive)(nil)
	_ AnnotatedType = (*Null)(nil)
	_ AnnotatedType = (*Executable)(nil)
	_ AnnotatedType = (*NoType)(nil)
)

type annotated struct {
	annos []Annotation
}

func (a *annotated) Annotations() []Annotation { return slices.Clone(a.annos) }
func (a *annotated) ClearAnnotations()         { a.annos = nil }
func (a *annotated) annotations() *annotated   { return a }

func (a *annotated) AddAnnotation(anno Annotation) {
	if !slices.Contains(a.annos, anno) {
		a.annos = append(a.annos, anno)
	}
}

func (a *annotated) ReplaceAnnotation(anno Annotation) {
	a.annos = []Annotation{anno}
}

func (a *annotated) prefix() string {
	if len(a.annos) == 0 {
		return ""
	}
	strs := make([]string, 0, len(a.annos))
	for _, anno := range a.annos {
		strs = append(strs, anno.String())
	}
	return strings.Join(strs, " ") + " "
}

// Declared is a class or interface type, possibly with type arguments
type Declared struct {
	annotated
	Name     string
	TypeArgs []AnnotatedType
	// Element is the declaring class, when the host knows it
	Element program.Element
}

func NewDeclared(name string, args ...AnnotatedType) *Declared {
	return &Declared{Name: name, TypeArgs: args}
}

func (*Declared) Kind() TypeKind { return KindDeclared }
func (t *Declared) String() string {
	if len(t.TypeArgs) == 0 {
		return t.prefix() + t.Name
	}
	args := make([]string, 0, len(t.TypeArgs))
	for _, arg := range t.TypeArgs {
		args = append(args, arg.String())
	}
	return fmt.Sprintf("%s%s<%s>", t.prefix(), t.Name, strings.Join(args, ", "))
}
func (t *Declared) LogValue() slog.Value { return slog.StringValue(t.String()) }

type Array struct {
	annotated
	Component AnnotatedType
}

func NewArray(component AnnotatedType) *Array { return &Array{Component: component} }

func (*Array) Kind() TypeKind         { return KindArray }
func (t *Array) String() string       { return fmt.Sprintf("%s[]%s", t.prefix(), t.Component) }
func (t *Array) LogValue() slog.Value { return slog.StringValue(t.String()) }

// Wildcard is `? extends ExtendsBound super SuperBound`; either bound may be nil
type Wildcard struct {
	annotated
	ExtendsBound AnnotatedType
	SuperBound   AnnotatedType
}

func NewWildcard(extends, super AnnotatedType) *Wildcard {
	return &Wildcard{ExtendsBound: extends, SuperBound: super}
}

func (*Wildcard) Kind() TypeKind { return KindWildcard }
func (t *Wildcard) String() string {
	sb := &strings.Builder{}
	sb.WriteString(t.prefix())
	sb.WriteString("?")
	if t.ExtendsBound != nil {
		sb.WriteString(" extends ")
		sb.WriteString(t.ExtendsBound.String())
	}
	if t.SuperBound != nil {
		sb.WriteString(" super ")
		sb.WriteString(t.SuperBound.String())
	}
	return sb.String()
}
func (t *Wildcard) LogValue() slog.Value { return slog.StringValue(t.String()) }

// TypeVariable is a use of a type parameter. Bounds are not rendered by String,
// since they may refer back to the variable
type TypeVariable struct {
	annotated
	// Decl is the type parameter element this is a use of
	Decl       program.Element
	UpperBound AnnotatedType
	LowerBound AnnotatedType
}

func NewTypeVariable(decl program.Element, upper, lower AnnotatedType) *TypeVariable {
	return &TypeVariable{Decl: decl, UpperBound: upper, LowerBound: lower}
}

func (*TypeVariable) Kind() TypeKind { return KindTypeVariable }
func (t *TypeVariable) String() string {
	name := "<anonymous>"
	if t.Decl != nil {
		name = t.Decl.Name()
	}
	return t.prefix() + name
}
func (t *TypeVariable) LogValue() slog.Value { return slog.StringValue(t.String()) }

type Primitive struct {
	annotated
	Name string
}

func NewPrimitive(name string) *Primitive { return &Primitive{Name: name} }

func (*Primitive) Kind() TypeKind         { return KindPrimitive }
func (t *Primitive) String() string       { return t.prefix() + t.Name }
func (t *Primitive) LogValue() slog.Value { return slog.StringValue(t.String()) }

// Null is the type of the null literal
type Null struct {
	annotated
}

func NewNull() *Null { return &Null{} }

func (*Null) Kind() TypeKind         { return KindNull }
func (t *Null) String() string       { return t.prefix() + "null" }
func (t *Null) LogValue() slog.Value { return slog.StringValue(t.String()) }

// Executable is the type of a method or constructor. It carries no annotation itself
type Executable struct {
	annotated
	Element  program.Element
	Receiver AnnotatedType // may be nil
	Params   []AnnotatedType
	Return   AnnotatedType
	TypeVars []*TypeVariable
}

func (*Executable) Kind() TypeKind { return KindExecutable }
func (t *Executable) String() string {
	sb := &strings.Builder{}
	if len(t.TypeVars) > 0 {
		names := make([]string, 0, len(t.TypeVars))
		for _, tv := range t.TypeVars {
			names = append(names, tv.String())
		}
		_, _ = fmt.Fprintf(sb, "<%s> ", strings.Join(names, ", "))
	}
	if t.Receiver != nil {
		_, _ = fmt.Fprintf(sb, "(%s) ", t.Receiver)
	}
	params := make([]string, 0, len(t.Params))
	for _, p := range t.Params {
		params = append(params, p.String())
	}
	_, _ = fmt.Fprintf(sb, "(%s) -> %v", strings.Join(params, ", "), t.Return)
	return sb.String()
}
func (t *Executable) LogValue() slog.Value { return slog.StringValue(t.String()) }

// NoType is void, or the absence of a type
type NoType struct {
	annotated
	Name string
}

func NewNoType() *NoType { return &NoType{Name: "void"} }

func (*NoType) Kind() TypeKind         { return KindNoType }
func (t *NoType) String() string       { return t.prefix() + t.Name }
func (t *NoType) LogValue() slog.Value { return slog.StringValue(t.String()) }

// SlotOf is a convenience for annotations built from a slot id
func SlotOf(name string, id model.SlotID) Annotation {
	return Annotation{Name: name, Slot: id}
}
