package macros

// ContextStack holds the contexts of the expansions in progress.
type ContextStack struct {
	items  []*Context
	pushes int
	pops   int
}

// Push makes ctx the innermost expansion; ctx is linked to the previous top.
func (s *ContextStack) Push(ctx *Context) {
	ctx.enclosing = s.Top()
	s.items = append(s.items, ctx)
	s.pushes++
}

// Pop removes the innermost context. Popping an empty stack is a bug.
func (s *ContextStack) Pop() *Context {
	if len(s.items) == 0 {
		panic("macros: pop from empty context stack")
	}
	top := s.items[len(s.items)-1]
	s.items[len(s.items)-1] = nil
	s.items = s.items[:len(s.items)-1]
	s.pops++
	return top
}

// Top returns the innermost context or nil.
func (s *ContextStack) Top() *Context {
	if len(s.items) == 0 {
		return nil
	}
	return s.items[len(s.items)-1]
}

// Current lists active contexts, most recent first.
func (s *ContextStack) Current() []*Context {
	out := make([]*Context, len(s.items))
	for i, c := range s.items {
		out[len(s.items)-1-i] = c
	}
	return out
}

func (s *ContextStack) Len() int { return len(s.items) }

// Counts returns how many pushes and pops happened so far.
func (s *ContextStack) Counts() (pushes, pops int) { return s.pushes, s.pops }
