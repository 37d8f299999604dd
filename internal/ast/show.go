package ast

import (
	"strconv"
	"strings"

	"macroexp/internal/types"
)

// Show renders id as source-like text. typeName formats TypeRef trees;
// when nil, types print as "?".
func (t *Trees) Show(id TreeID, typeName func(types.TypeID) string) string {
	var sb strings.Builder
	t.show(&sb, id, typeName)
	return sb.String()
}

func (t *Trees) show(sb *strings.Builder, id TreeID, typeName func(types.TypeID) string) {
	tr := t.Get(id)
	if tr == nil {
		sb.WriteString("<empty>")
		return
	}
	switch tr.Kind {
	case TreeIdent:
		sb.WriteString(t.Name(id))
	case TreeSelect:
		d, _ := t.Select(id)
		t.show(sb, d.Qual, typeName)
		sb.WriteByte('.')
		sb.WriteString(t.Name(id))
	case TreeApply, TreeTypeApply:
		d, _ := t.Apply(id)
		t.show(sb, d.Fun, typeName)
		open, closing := byte('('), byte(')')
		if tr.Kind == TreeTypeApply {
			open, closing = '[', ']'
		}
		sb.WriteByte(open)
		for i, a := range d.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			t.show(sb, a, typeName)
		}
		sb.WriteByte(closing)
	case TreeLiteral:
		c, _ := t.Literal(id)
		sb.WriteString(c.String())
	case TreeTypeRef:
		if typeName == nil {
			sb.WriteByte('?')
		} else {
			sb.WriteString(typeName(tr.Type))
		}
	case TreeTyped:
		d, _ := t.Typed(id)
		sb.WriteByte('(')
		t.show(sb, d.Expr, typeName)
		sb.WriteString(": ")
		t.show(sb, d.Tpt, typeName)
		sb.WriteByte(')')
	case TreeBlock:
		d, _ := t.Block(id)
		sb.WriteString("{ ")
		for _, s := range d.Stmts {
			t.show(sb, s, typeName)
			sb.WriteString("; ")
		}
		t.show(sb, d.Expr, typeName)
		sb.WriteString(" }")
	default:
		sb.WriteString("<invalid>")
	}
}

func (c Constant) String() string {
	switch c.Kind {
	case ConstBool:
		return strconv.FormatBool(c.Bool)
	case ConstInt:
		return strconv.FormatInt(c.Int, 10)
	case ConstFloat:
		return strconv.FormatFloat(c.Float, 'g', -1, 64)
	case ConstString:
		return strconv.Quote(c.Str)
	default:
		return "()"
	}
}
