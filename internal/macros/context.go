package macros

import (
	"macroexp/internal/ast"
	"macroexp/internal/diag"
	"macroexp/internal/source"
	"macroexp/internal/symbols"
	"macroexp/internal/types"
)

// Context is what an implementation sees of the compiler while it runs.
// One is created per attempted expansion of a call site.
type Context struct {
	Table *symbols.Table
	Trees *ast.Trees
	// Macro is the macro definition being expanded.
	Macro    symbols.SymbolID
	Expandee ast.TreeID
	// Prefix is the receiver of the call, NoTreeID for unqualified calls.
	Prefix ast.TreeID

	enclosing *Context
	engine    *Engine
}

// Pos is the position of the call site.
func (c *Context) Pos() source.Span {
	return c.Trees.Span(c.Expandee)
}

// Enclosing returns the context of the expansion this one is nested in.
func (c *Context) Enclosing() *Context { return c.enclosing }

// Depth counts the enclosing expansions, excluding c itself.
func (c *Context) Depth() int {
	n := 0
	for e := c.enclosing; e != nil; e = e.enclosing {
		n++
	}
	return n
}

// EnclosingMacros lists c followed by its enclosing contexts, innermost first.
func (c *Context) EnclosingMacros() []*Context {
	out := make([]*Context, 0, c.Depth()+1)
	for e := c; e != nil; e = e.enclosing {
		out = append(out, e)
	}
	return out
}

// EnclosingPosition returns the position of the innermost call site that
// has one.
func (c *Context) EnclosingPosition() source.Span {
	for _, e := range c.EnclosingMacros() {
		if sp := e.Pos(); sp.IsValid() {
			return sp
		}
	}
	return source.NoSpan
}

// Abort builds the error an implementation returns to stop expansion with
// a message at pos.
func (c *Context) Abort(pos source.Span, msg string) error {
	return &AbortError{Pos: pos, Msg: msg}
}

// Error reports a diagnostic. Any error reported this way fails the expansion.
func (c *Context) Error(pos source.Span, msg string) {
	diag.ReportError(c.engine.reporter, diag.MacroUserMessage, pos, msg).Emit()
}

func (c *Context) Warning(pos source.Span, msg string) {
	diag.ReportWarning(c.engine.reporter, diag.MacroUserMessage, pos, msg).Emit()
}

func (c *Context) Info(pos source.Span, msg string) {
	diag.ReportInfo(c.engine.reporter, diag.MacroUserMessage, pos, msg).Emit()
}

// Typecheck checks tree against pt with the run's type checker. Macro
// applications inside tree are expanded, nested in this expansion.
func (c *Context) Typecheck(tree ast.TreeID, pt types.TypeID) (ast.TreeID, error) {
	if c.engine.typer == nil {
		return tree, nil
	}
	out, err := c.engine.typer.Typecheck(tree, ModeExpr, pt)
	if err != nil {
		return out, err
	}
	if c.Trees.IsErroneous(out) {
		return out, &TypeError{Pos: c.Trees.Span(tree), Msg: "typecheck failed: " + c.Trees.Show(tree, c.Table.TypeString)}
	}
	return out, nil
}

// Expr wraps tree as a syntax handle result.
func (c *Context) Expr(tree ast.TreeID) ExprValue {
	v := ExprValue{Tree: tree}
	if tr := c.Trees.Get(tree); tr != nil {
		v.Type = tr.Type
	}
	return v
}

// Literal builds a literal tree positioned at the call site.
func (c *Context) Literal(v ast.Constant) ast.TreeID {
	return c.Trees.NewLiteral(c.Pos().Focus(), v)
}
