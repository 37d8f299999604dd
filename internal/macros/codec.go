package macros

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"macroexp/internal/ast"
	"macroexp/internal/symbols"
	"macroexp/internal/types"
)

// VersionFormat is the payload format understood by Decode.
// Bump it whenever the meaning of a payload key changes.
const VersionFormat = 1.0

const (
	keyVersionFormat = "versionFormat"
	keyIsBundle      = "isBundle"
	keyClassName     = "className"
	keyMethodName    = "methodName"
	keySignature     = "signature"
)

// BindingFor computes the binding of a macro definition whose right-hand
// side is the implementation reference rhs, e.g. Impl.assertImpl[T].
func BindingFor(tab *symbols.Table, trees *ast.Trees, rhs ast.TreeID) (Binding, error) {
	app := trees.DissectApplied(rhs)
	if len(app.Argss) > 0 {
		return Binding{}, fmt.Errorf("macro implementation reference must not be applied: %s", trees.Show(rhs, tab.TypeString))
	}
	implID := trees.Sym(app.Core)
	impl := tab.Get(implID)
	if impl == nil || impl.Kind != symbols.SymbolMethod {
		return Binding{}, fmt.Errorf("macro implementation reference does not name a method: %s", trees.Show(rhs, tab.TypeString))
	}
	owner := tab.Get(impl.Owner)

	sig := make([][]Fingerprint, len(impl.ParamLists))
	for i, list := range impl.ParamLists {
		sig[i] = make([]Fingerprint, len(list))
		for j, param := range list {
			sig[i][j] = fingerprintOf(tab, implID, tab.Get(param).Type)
		}
	}
	targs := make([]ast.TreeID, len(app.Targs))
	for i, targ := range app.Targs {
		targs[i] = trees.Duplicate(targ)
	}
	return Binding{
		IsBundle:   owner.Has(symbols.FlagBundle),
		ClassName:  className(tab, impl.Owner),
		MethodName: norm.NFC.String(tab.Name(implID)),
		Signature:  sig,
		Targs:      targs,
	}, nil
}

func fingerprintOf(tab *symbols.Table, impl symbols.SymbolID, tp types.TypeID) Fingerprint {
	tt, ok := tab.Types.Lookup(tp)
	if !ok {
		return Other
	}
	switch tt.Kind {
	case types.KindWitness:
		if sym, ok := tab.Types.Symbol(tt.Elem); ok && tab.Types.Kind(tt.Elem) == types.KindParam {
			if idx := tab.TypeParamIndex(impl, symbols.SymbolID(sym)); idx >= 0 {
				return Tag(idx)
			}
		}
		return Other
	case types.KindRepeated:
		return fingerprintOf(tab, impl, tt.Elem)
	case types.KindExpr:
		return Lifted
	default:
		return Other
	}
}

// className renders the loader name of the implementation's owner:
// top-level owners use their full name, nested ones join the owner chain
// with '$' except right after a module, whose name already ends in '$'.
func className(tab *symbols.Table, owner symbols.SymbolID) string {
	var loop func(id symbols.SymbolID) string
	loop = func(id symbols.SymbolID) string {
		sym := tab.Get(id)
		suffix := ""
		if sym.Kind == symbols.SymbolModule {
			suffix = "$"
		}
		if tab.IsTopLevel(id) {
			return tab.FullName(id) + suffix
		}
		sep := "$"
		if o := tab.Get(sym.Owner); o != nil && o.Kind == symbols.SymbolModule {
			sep = ""
		}
		return loop(sym.Owner) + sep + tab.Name(id) + suffix
	}
	return norm.NFC.String(loop(owner))
}

// PickleOf encodes b. The payload refers to the implementation only
// through precomputed names and fingerprints.
func PickleOf(b Binding) Pickle {
	sig := make(ListAtom, len(b.Signature))
	for i, list := range b.Signature {
		inner := make(ListAtom, len(list))
		for j, fp := range list {
			inner[j] = FingerprintAtom(fp)
		}
		sig[i] = inner
	}
	return Pickle{
		Targs: b.Targs,
		Payload: Payload{
			{Key: keyVersionFormat, Value: FloatAtom(VersionFormat)},
			{Key: keyIsBundle, Value: BoolAtom(b.IsBundle)},
			{Key: keyClassName, Value: StringAtom(b.ClassName)},
			{Key: keyMethodName, Value: StringAtom(b.MethodName)},
			{Key: keySignature, Value: sig},
		},
	}
}

// Encode computes and pickles the binding for rhs.
func Encode(tab *symbols.Table, trees *ast.Trees, rhs ast.TreeID) (Pickle, error) {
	b, err := BindingFor(tab, trees, rhs)
	if err != nil {
		return Pickle{}, err
	}
	return PickleOf(b), nil
}

// Decode restores a binding. It fails on the first missing or mistyped
// field and whenever the format version differs from VersionFormat.
func Decode(p Pickle) (Binding, error) {
	version, err := field[FloatAtom](p.Payload, keyVersionFormat, AtomFloat)
	if err != nil {
		return Binding{}, err
	}
	if float64(version) != VersionFormat {
		return Binding{}, &BindingDecodeError{
			Failure:  VersionMismatch,
			Field:    keyVersionFormat,
			Expected: formatVersion(VersionFormat),
			Actual:   formatVersion(float64(version)),
		}
	}
	isBundle, err := field[BoolAtom](p.Payload, keyIsBundle, AtomBool)
	if err != nil {
		return Binding{}, err
	}
	class, err := field[StringAtom](p.Payload, keyClassName, AtomString)
	if err != nil {
		return Binding{}, err
	}
	method, err := field[StringAtom](p.Payload, keyMethodName, AtomString)
	if err != nil {
		return Binding{}, err
	}
	raw, err := field[ListAtom](p.Payload, keySignature, AtomList)
	if err != nil {
		return Binding{}, err
	}
	sig := make([][]Fingerprint, len(raw))
	for i, item := range raw {
		list, ok := item.(ListAtom)
		if !ok {
			return Binding{}, wrongKind(keySignature, "list of fingerprint lists", item)
		}
		sig[i] = make([]Fingerprint, len(list))
		for j, x := range list {
			fp, ok := x.(FingerprintAtom)
			if !ok {
				return Binding{}, wrongKind(keySignature, "list of fingerprint lists", x)
			}
			sig[i][j] = Fingerprint(fp)
		}
	}
	return Binding{
		IsBundle:   bool(isBundle),
		ClassName:  string(class),
		MethodName: string(method),
		Signature:  sig,
		Targs:      p.Targs,
	}, nil
}

func field[T Atom](payload Payload, key string, kind AtomKind) (T, error) {
	var zero T
	a, ok := payload.Get(key)
	if !ok {
		return zero, &BindingDecodeError{Failure: MissingField, Field: key}
	}
	v, ok := a.(T)
	if !ok {
		return zero, wrongKind(key, kind.String(), a)
	}
	return v, nil
}

func wrongKind(key, expected string, found Atom) *BindingDecodeError {
	return &BindingDecodeError{Failure: WrongKind, Field: key, Expected: expected, Actual: found.Kind().String()}
}

func formatVersion(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s
}
