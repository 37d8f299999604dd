package symbols

import (
	"fmt"

	"fortio.org/safecast"
)

// Symbols is the backing store of a Table. Slot 0 stays empty so that the
// zero SymbolID never resolves.
type Symbols struct {
	data []Symbol
}

func NewSymbols(capacity uint32) *Symbols {
	if capacity == 0 {
		capacity = 64
	}
	data := make([]Symbol, 1, capacity+1)
	return &Symbols{data: data}
}

// New copies sym into the store.
func (s *Symbols) New(sym *Symbol) SymbolID {
	if sym == nil {
		panic("symbols: New with nil symbol")
	}
	n, err := safecast.Conv[uint32](len(s.data))
	if err != nil {
		panic(fmt.Errorf("symbols: too many symbols: %w", err))
	}
	s.data = append(s.data, *sym)
	return SymbolID(n)
}

func (s *Symbols) Get(id SymbolID) *Symbol {
	if !id.IsValid() || int(id) >= len(s.data) {
		return nil
	}
	return &s.data[id]
}

func (s *Symbols) Len() int { return len(s.data) - 1 }

// Bound reports whether id is a macro definition carrying persisted
// binding bytes. The bytes are not decoded.
func (s *Symbols) Bound(id SymbolID) bool {
	sym := s.Get(id)
	return sym.IsMacro() && len(sym.MacroImpl) > 0
}

// NextOverridden returns the nearest member id overrides, or NoSymbolID.
func (s *Symbols) NextOverridden(id SymbolID) SymbolID {
	sym := s.Get(id)
	if sym == nil || len(sym.Overridden) == 0 {
		return NoSymbolID
	}
	return sym.Overridden[0]
}

// MacroDefs lists macro definitions in declaration order.
func (s *Symbols) MacroDefs() []SymbolID {
	var out []SymbolID
	for i := 1; i < len(s.data); i++ {
		if s.data[i].IsMacro() {
			out = append(out, SymbolID(i)) //nolint:gosec // i < len(data), bounded by New
		}
	}
	return out
}
