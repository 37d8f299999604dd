package symbols

import (
	"strings"

	"macroexp/internal/source"
	"macroexp/internal/types"
)

// Table owns every symbol of a compilation run together with the name and
// type interners the symbols refer to.
type Table struct {
	Strings *source.Interner
	Types   *types.Interner
	Symbols *Symbols
	Root    SymbolID

	byFullName map[string]SymbolID
}

// NewTable creates a table with an empty root package.
func NewTable(strs *source.Interner, tys *types.Interner) *Table {
	if strs == nil {
		strs = source.NewInterner()
	}
	if tys == nil {
		tys = types.NewInterner()
	}
	t := &Table{
		Strings:    strs,
		Types:      tys,
		Symbols:    NewSymbols(0),
		byFullName: make(map[string]SymbolID),
	}
	t.Root = t.Symbols.New(&Symbol{Name: strs.Intern("<root>"), Kind: SymbolPackage})
	return t
}

// Get returns the symbol for id or nil.
func (t *Table) Get(id SymbolID) *Symbol {
	return t.Symbols.Get(id)
}

// Name returns the simple name of a symbol.
func (t *Table) Name(id SymbolID) string {
	sym := t.Get(id)
	if sym == nil {
		return "<none>"
	}
	return t.Strings.MustLookup(sym.Name)
}

// Declare adds sym to the table and indexes its full name.
// The first declaration of a full name wins the index.
func (t *Table) Declare(sym *Symbol) SymbolID {
	id := t.Symbols.New(sym)
	full := t.FullName(id)
	if _, exists := t.byFullName[full]; !exists {
		t.byFullName[full] = id
	}
	return id
}

// NewPackage declares a package under owner (NoSymbolID means root).
func (t *Table) NewPackage(owner SymbolID, name string) SymbolID {
	return t.Declare(&Symbol{Name: t.Strings.Intern(name), Kind: SymbolPackage, Owner: t.ownerOrRoot(owner)})
}

// NewClass declares a class with the given type parameter names.
func (t *Table) NewClass(owner SymbolID, name string, tparams ...string) SymbolID {
	id := t.Declare(&Symbol{Name: t.Strings.Intern(name), Kind: SymbolClass, Owner: t.ownerOrRoot(owner)})
	t.AddTypeParams(id, tparams...)
	return id
}

// NewModule declares a singleton container.
func (t *Table) NewModule(owner SymbolID, name string) SymbolID {
	return t.Declare(&Symbol{Name: t.Strings.Intern(name), Kind: SymbolModule, Owner: t.ownerOrRoot(owner)})
}

// NewMethod declares a method; params and type params are added separately.
func (t *Table) NewMethod(owner SymbolID, name string, result types.TypeID) SymbolID {
	return t.Declare(&Symbol{Name: t.Strings.Intern(name), Kind: SymbolMethod, Owner: t.ownerOrRoot(owner), Type: result})
}

// NewValue declares a term value of the given type.
func (t *Table) NewValue(owner SymbolID, name string, tpe types.TypeID) SymbolID {
	return t.Declare(&Symbol{Name: t.Strings.Intern(name), Kind: SymbolValue, Owner: t.ownerOrRoot(owner), Type: tpe})
}

// AddTypeParams appends type parameters to owner and returns their ids.
func (t *Table) AddTypeParams(owner SymbolID, names ...string) []SymbolID {
	ids := make([]SymbolID, 0, len(names))
	for _, n := range names {
		id := t.Declare(&Symbol{Name: t.Strings.Intern(n), Kind: SymbolTypeParam, Owner: owner})
		ids = append(ids, id)
	}
	if sym := t.Get(owner); sym != nil {
		sym.TypeParams = append(sym.TypeParams, ids...)
	}
	return ids
}

// Param describes one parameter for AddParamList.
type Param struct {
	Name  string
	Type  types.TypeID
	Flags SymbolFlags
}

// AddParamList appends a parameter list to a method and returns the param ids.
func (t *Table) AddParamList(method SymbolID, params ...Param) []SymbolID {
	ids := make([]SymbolID, 0, len(params))
	for _, p := range params {
		id := t.Declare(&Symbol{Name: t.Strings.Intern(p.Name), Kind: SymbolParam, Owner: method, Type: p.Type, Flags: p.Flags})
		ids = append(ids, id)
	}
	if sym := t.Get(method); sym != nil {
		sym.ParamLists = append(sym.ParamLists, ids)
	}
	return ids
}

func (t *Table) ownerOrRoot(owner SymbolID) SymbolID {
	if owner.IsValid() {
		return owner
	}
	return t.Root
}

// FullName joins the owner chain with dots, excluding the root package.
func (t *Table) FullName(id SymbolID) string {
	var parts []string
	for cur := id; cur.IsValid() && cur != t.Root; {
		sym := t.Get(cur)
		if sym == nil {
			break
		}
		parts = append(parts, t.Strings.MustLookup(sym.Name))
		cur = sym.Owner
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ".")
}

// Lookup finds a symbol by its full name.
func (t *Table) Lookup(fullName string) (SymbolID, bool) {
	id, ok := t.byFullName[fullName]
	return id, ok
}

// IsTopLevel reports whether the symbol is owned directly by a package.
func (t *Table) IsTopLevel(id SymbolID) bool {
	sym := t.Get(id)
	if sym == nil {
		return false
	}
	owner := t.Get(sym.Owner)
	return owner != nil && owner.Kind == SymbolPackage
}

// IsErroneous reports whether the symbol or its declared type is erroneous.
func (t *Table) IsErroneous(id SymbolID) bool {
	sym := t.Get(id)
	if sym == nil {
		return false
	}
	if sym.Has(FlagErroneous) {
		return true
	}
	return sym.Type != types.NoTypeID && t.Types.IsErroneous(sym.Type)
}

// TypeParamIndex returns the position of tparam among owner's type params.
func (t *Table) TypeParamIndex(owner, tparam SymbolID) int {
	sym := t.Get(owner)
	if sym == nil {
		return -1
	}
	for i, tp := range sym.TypeParams {
		if tp == tparam {
			return i
		}
	}
	return -1
}

// ParamType returns the reference type of a type parameter symbol.
func (t *Table) ParamType(tparam SymbolID) types.TypeID {
	return t.Types.Param(uint32(tparam))
}

// ThisType returns clazz applied to its own type parameters.
func (t *Table) ThisType(clazz SymbolID) types.TypeID {
	sym := t.Get(clazz)
	if sym == nil {
		return types.NoTypeID
	}
	args := make([]types.TypeID, len(sym.TypeParams))
	for i, tp := range sym.TypeParams {
		args[i] = t.ParamType(tp)
	}
	return t.Types.Named(uint32(clazz), args...)
}

// TypeString renders a type using symbol names.
func (t *Table) TypeString(id types.TypeID) string {
	return t.Types.Format(id, func(sym uint32) string { return t.Name(SymbolID(sym)) })
}
