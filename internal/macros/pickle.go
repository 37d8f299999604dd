package macros

import (
	"strconv"
	"strings"

	"macroexp/internal/ast"
)

// AtomKind names the shapes a payload value may take.
type AtomKind uint8

const (
	AtomString AtomKind = iota + 1
	AtomFloat
	AtomBool
	AtomFingerprint
	AtomList
)

func (k AtomKind) String() string {
	switch k {
	case AtomString:
		return "string"
	case AtomFloat:
		return "float"
	case AtomBool:
		return "bool"
	case AtomFingerprint:
		return "fingerprint"
	case AtomList:
		return "list"
	default:
		return "unknown"
	}
}

// Atom is a payload value. The set of implementations is closed.
type Atom interface {
	Kind() AtomKind
	String() string
	atom()
}

type (
	StringAtom      string
	FloatAtom       float64
	BoolAtom        bool
	FingerprintAtom Fingerprint
	ListAtom        []Atom
)

func (StringAtom) Kind() AtomKind      { return AtomString }
func (FloatAtom) Kind() AtomKind       { return AtomFloat }
func (BoolAtom) Kind() AtomKind        { return AtomBool }
func (FingerprintAtom) Kind() AtomKind { return AtomFingerprint }
func (ListAtom) Kind() AtomKind        { return AtomList }

func (StringAtom) atom()      {}
func (FloatAtom) atom()       {}
func (BoolAtom) atom()        {}
func (FingerprintAtom) atom() {}
func (ListAtom) atom()        {}

func (a StringAtom) String() string      { return strconv.Quote(string(a)) }
func (a FloatAtom) String() string       { return strconv.FormatFloat(float64(a), 'f', -1, 64) }
func (a BoolAtom) String() string        { return strconv.FormatBool(bool(a)) }
func (a FingerprintAtom) String() string { return strconv.FormatInt(Fingerprint(a).Int(), 10) }

func (a ListAtom) String() string {
	parts := make([]string, len(a))
	for i, x := range a {
		parts[i] = x.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Entry is one key of a payload.
type Entry struct {
	Key   string
	Value Atom
}

// Payload is an ordered key/value mapping.
type Payload []Entry

// Get returns the value stored under key.
func (p Payload) Get(key string) (Atom, bool) {
	for _, e := range p {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func (p Payload) String() string {
	parts := make([]string, len(p))
	for i, e := range p {
		parts[i] = e.Key + " -> " + e.Value.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Pickle is the persisted form of a Binding: the scalar payload plus the
// type argument trees of the implementation reference.
type Pickle struct {
	Targs   []ast.TreeID
	Payload Payload
}
