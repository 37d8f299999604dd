package macros

import (
	"fmt"
	"slices"
	"strings"

	"macroexp/internal/ast"
)

const (
	// UnimplementedClass and UnimplementedMethod identify the binding of a
	// macro whose right-hand side is the ??? marker.
	UnimplementedClass  = "Predef$"
	UnimplementedMethod = "???"
)

// Identity names an implementation for the Invoker.
type Identity struct {
	IsBundle   bool
	ClassName  string
	MethodName string
}

func (id Identity) String() string {
	if id.IsBundle {
		return id.ClassName + "#" + id.MethodName
	}
	return id.ClassName + "." + id.MethodName
}

// Binding links a macro definition to its implementation. It is produced
// once, when the definition is checked, and never changes afterwards.
type Binding struct {
	IsBundle   bool
	ClassName  string
	MethodName string
	// Signature mirrors the implementation's parameter lists.
	Signature [][]Fingerprint
	// Targs are the type arguments of the implementation reference, as written.
	Targs []ast.TreeID
}

func (b *Binding) Identity() Identity {
	return Identity{IsBundle: b.IsBundle, ClassName: b.ClassName, MethodName: b.MethodName}
}

// IsUnimplemented reports whether the binding was produced from the ??? marker.
func (b *Binding) IsUnimplemented() bool {
	return b.ClassName == UnimplementedClass && b.MethodName == UnimplementedMethod
}

// ValueSignature drops the context list of non-bundle implementations;
// bundles receive their context through the bundle itself.
func (b *Binding) ValueSignature() [][]Fingerprint {
	if b.IsBundle || len(b.Signature) == 0 {
		return b.Signature
	}
	return b.Signature[1:]
}

// Tags returns every Tag fingerprint of the signature in declaration order.
func (b *Binding) Tags() []Fingerprint {
	var out []Fingerprint
	for _, list := range b.ValueSignature() {
		for _, fp := range list {
			if fp.IsTag() {
				out = append(out, fp)
			}
		}
	}
	return out
}

// SameShape compares everything except the type argument trees.
func (b *Binding) SameShape(o *Binding) bool {
	return b.IsBundle == o.IsBundle &&
		b.ClassName == o.ClassName &&
		b.MethodName == o.MethodName &&
		slices.EqualFunc(b.Signature, o.Signature, slices.Equal[[]Fingerprint])
}

func (b *Binding) String() string {
	var sb strings.Builder
	sb.WriteString(b.Identity().String())
	sb.WriteByte('(')
	for i, list := range b.Signature {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%v", list)
	}
	sb.WriteByte(')')
	return sb.String()
}
