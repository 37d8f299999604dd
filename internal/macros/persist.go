package macros

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"

	"macroexp/internal/ast"
	"macroexp/internal/source"
	"macroexp/internal/symbols"
	"macroexp/internal/types"
)

// Current schema of the msgpack envelope - increment when pickleFile changes.
const pickleSchema uint16 = 1

// pickleFile is the on-disk form of a Pickle. Type arguments are stored as
// symbol paths so they can be re-materialised in a different run.
type pickleFile struct {
	Schema  uint16      `msgpack:"schema"`
	Payload []entryWire `msgpack:"payload"`
	Targs   []typeWire  `msgpack:"targs"`
}

type entryWire struct {
	Key   string   `msgpack:"k"`
	Value atomWire `msgpack:"v"`
}

// atomWire writes atoms with their native msgpack codes so the payload
// stays self-describing: str, float64, bool, int, array.
type atomWire struct {
	Atom Atom
}

var (
	_ msgpack.CustomEncoder = atomWire{}
	_ msgpack.CustomDecoder = (*atomWire)(nil)
)

func (w atomWire) EncodeMsgpack(enc *msgpack.Encoder) error {
	return encodeAtom(enc, w.Atom)
}

func (w *atomWire) DecodeMsgpack(dec *msgpack.Decoder) error {
	a, err := decodeAtom(dec)
	if err != nil {
		return err
	}
	w.Atom = a
	return nil
}

func encodeAtom(enc *msgpack.Encoder, a Atom) error {
	switch v := a.(type) {
	case StringAtom:
		return enc.EncodeString(string(v))
	case FloatAtom:
		return enc.EncodeFloat64(float64(v))
	case BoolAtom:
		return enc.EncodeBool(bool(v))
	case FingerprintAtom:
		return enc.EncodeInt(Fingerprint(v).Int())
	case ListAtom:
		if err := enc.EncodeArrayLen(len(v)); err != nil {
			return err
		}
		for _, x := range v {
			if err := encodeAtom(enc, x); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("cannot encode atom %T", a)
	}
}

func decodeAtom(dec *msgpack.Decoder) (Atom, error) {
	c, err := dec.PeekCode()
	if err != nil {
		return nil, err
	}
	switch {
	case msgpcode.IsString(c):
		s, err := dec.DecodeString()
		return StringAtom(s), err
	case c == msgpcode.Float || c == msgpcode.Double:
		f, err := dec.DecodeFloat64()
		return FloatAtom(f), err
	case c == msgpcode.True || c == msgpcode.False:
		b, err := dec.DecodeBool()
		return BoolAtom(b), err
	case msgpcode.IsFixedNum(c) || isIntCode(c):
		n, err := dec.DecodeInt64()
		if err != nil {
			return nil, err
		}
		fp, err := FingerprintFromInt(n)
		if err != nil {
			return nil, err
		}
		return FingerprintAtom(fp), nil
	case msgpcode.IsFixedArray(c) || c == msgpcode.Array16 || c == msgpcode.Array32:
		n, err := dec.DecodeArrayLen()
		if err != nil {
			return nil, err
		}
		list := make(ListAtom, 0, max(n, 0))
		for range n {
			x, err := decodeAtom(dec)
			if err != nil {
				return nil, err
			}
			list = append(list, x)
		}
		return list, nil
	default:
		return nil, fmt.Errorf("unexpected msgpack code 0x%x in binding payload", c)
	}
}

func isIntCode(c byte) bool {
	switch c {
	case msgpcode.Uint8, msgpcode.Uint16, msgpcode.Uint32, msgpcode.Uint64,
		msgpcode.Int8, msgpcode.Int16, msgpcode.Int32, msgpcode.Int64:
		return true
	}
	return false
}

// typeWire is a path-based type reference.
type typeWire struct {
	Kind string     `msgpack:"kind"`
	Path string     `msgpack:"path,omitempty"`
	Args []typeWire `msgpack:"args,omitempty"`
}

const (
	wireNamed    = "named"
	wireParam    = "param"
	wireRepeated = "repeated"
	wireExpr     = "expr"
	wireWitness  = "witness"
)

func typeToWire(tab *symbols.Table, id types.TypeID) (typeWire, error) {
	tt, ok := tab.Types.Lookup(id)
	if !ok {
		return typeWire{}, fmt.Errorf("cannot persist invalid type %d", id)
	}
	switch tt.Kind {
	case types.KindNamed:
		w := typeWire{Kind: wireNamed, Path: tab.FullName(symbols.SymbolID(tt.Sym))}
		for _, a := range tab.Types.Args(id) {
			aw, err := typeToWire(tab, a)
			if err != nil {
				return typeWire{}, err
			}
			w.Args = append(w.Args, aw)
		}
		return w, nil
	case types.KindParam:
		return typeWire{Kind: wireParam, Path: tab.FullName(symbols.SymbolID(tt.Sym))}, nil
	case types.KindRepeated, types.KindExpr, types.KindWitness:
		elem, err := typeToWire(tab, tt.Elem)
		if err != nil {
			return typeWire{}, err
		}
		kind := wireWitness
		switch tt.Kind {
		case types.KindRepeated:
			kind = wireRepeated
		case types.KindExpr:
			kind = wireExpr
		}
		return typeWire{Kind: kind, Args: []typeWire{elem}}, nil
	default:
		if tt.Kind.IsBuiltin() {
			return typeWire{Kind: tt.Kind.String()}, nil
		}
		return typeWire{}, fmt.Errorf("cannot persist type of kind %s", tt.Kind)
	}
}

func typeFromWire(tab *symbols.Table, w typeWire) (types.TypeID, error) {
	lookup := func() (symbols.SymbolID, error) {
		sym, ok := tab.Lookup(w.Path)
		if !ok {
			return symbols.NoSymbolID, fmt.Errorf("type %q is not defined", w.Path)
		}
		return sym, nil
	}
	elem := func() (types.TypeID, error) {
		if len(w.Args) != 1 {
			return types.NoTypeID, fmt.Errorf("%s type expects 1 argument, got %d", w.Kind, len(w.Args))
		}
		return typeFromWire(tab, w.Args[0])
	}
	switch w.Kind {
	case wireNamed:
		sym, err := lookup()
		if err != nil {
			return types.NoTypeID, err
		}
		args := make([]types.TypeID, len(w.Args))
		for i, a := range w.Args {
			if args[i], err = typeFromWire(tab, a); err != nil {
				return types.NoTypeID, err
			}
		}
		return tab.Types.Named(uint32(sym), args...), nil
	case wireParam:
		sym, err := lookup()
		if err != nil {
			return types.NoTypeID, err
		}
		return tab.ParamType(sym), nil
	case wireRepeated, wireExpr, wireWitness:
		e, err := elem()
		if err != nil {
			return types.NoTypeID, err
		}
		switch w.Kind {
		case wireRepeated:
			return tab.Types.Repeated(e), nil
		case wireExpr:
			return tab.Types.Expr(e), nil
		default:
			return tab.Types.Witness(e), nil
		}
	default:
		kind, ok := types.BuiltinByName(w.Kind)
		if !ok {
			return types.NoTypeID, fmt.Errorf("unknown type kind %q", w.Kind)
		}
		return tab.Types.Builtin(kind), nil
	}
}

// MarshalPickle serialises p. Every type argument must be a type tree.
func MarshalPickle(tab *symbols.Table, trees *ast.Trees, p Pickle) ([]byte, error) {
	file := pickleFile{Schema: pickleSchema}
	for _, e := range p.Payload {
		file.Payload = append(file.Payload, entryWire{Key: e.Key, Value: atomWire{Atom: e.Value}})
	}
	for i, targ := range p.Targs {
		if !trees.IsType(targ) {
			return nil, fmt.Errorf("type argument %d is not a type tree", i)
		}
		w, err := typeToWire(tab, trees.Get(targ).Type)
		if err != nil {
			return nil, fmt.Errorf("type argument %d: %w", i, err)
		}
		file.Targs = append(file.Targs, w)
	}
	var buf bytes.Buffer
	if err := msgpack.NewEncoder(&buf).Encode(&file); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalPickle restores a Pickle, re-creating its type argument trees in
// trees. Unknown envelope schemas are rejected.
func UnmarshalPickle(tab *symbols.Table, trees *ast.Trees, data []byte) (Pickle, error) {
	var file pickleFile
	if err := msgpack.NewDecoder(bytes.NewReader(data)).Decode(&file); err != nil {
		return Pickle{}, fmt.Errorf("macro impl binding: %w", err)
	}
	if file.Schema != pickleSchema {
		return Pickle{}, &BindingDecodeError{
			Failure:  BadSchema,
			Expected: strconv.Itoa(int(pickleSchema)),
			Actual:   strconv.Itoa(int(file.Schema)),
		}
	}
	p := Pickle{Payload: make(Payload, 0, len(file.Payload))}
	for _, e := range file.Payload {
		p.Payload = append(p.Payload, Entry{Key: e.Key, Value: e.Value.Atom})
	}
	for i, w := range file.Targs {
		tp, err := typeFromWire(tab, w)
		if err != nil {
			return Pickle{}, fmt.Errorf("macro impl binding: type argument %d: %w", i, err)
		}
		p.Targs = append(p.Targs, trees.NewTypeRef(source.NoSpan, tp))
	}
	return p, nil
}

// LoadBinding decodes the binding persisted on a macro definition.
func LoadBinding(tab *symbols.Table, trees *ast.Trees, macroDef symbols.SymbolID) (Binding, error) {
	sym := tab.Get(macroDef)
	if sym == nil || len(sym.MacroImpl) == 0 {
		return Binding{}, &BindingDecodeError{Failure: MissingField, Field: "macroImpl"}
	}
	p, err := UnmarshalPickle(tab, trees, sym.MacroImpl)
	if err != nil {
		return Binding{}, err
	}
	return Decode(p)
}

// StoreBinding encodes the implementation reference rhs and attaches the
// persisted bytes to macroDef, marking it as a macro.
func StoreBinding(tab *symbols.Table, trees *ast.Trees, macroDef symbols.SymbolID, rhs ast.TreeID) (Binding, error) {
	sym := tab.Get(macroDef)
	if sym == nil {
		return Binding{}, fmt.Errorf("unknown macro definition %d", macroDef)
	}
	b, err := BindingFor(tab, trees, rhs)
	if err != nil {
		return Binding{}, err
	}
	data, err := MarshalPickle(tab, trees, PickleOf(b))
	if err != nil {
		return Binding{}, err
	}
	sym.MacroImpl = data
	sym.Flags |= symbols.FlagMacro
	return b, nil
}
