package plan

import (
	"fmt"
	"strings"
)

// String renders one node's operator-specific detail (no input), modeled
// on Sneller's plan.Op String() convention (other_examples
// SnellerInc-sneller/plan/plan.go), where every operator formats itself
// independent of tree position and Explain handles indentation.
func (p *LogicalPlan) String() string {
	switch p.Kind {
	case SourceInMemory:
		return fmt.Sprintf("InMemory(len=%d)", p.Arbor.Len())
	case SourceStored:
		return fmt.Sprintf("Stored(%q)", p.Name)
	case OpFilter:
		return fmt.Sprintf("Filter(%s)", p.Predicate)
	case OpHead:
		return fmt.Sprintf("Head(%d)", p.N)
	case OpTail:
		return fmt.Sprintf("Tail(%d)", p.N)
	case OpTake:
		return fmt.Sprintf("Take(%d)", p.N)
	case OpSample:
		return fmt.Sprintf("Sample(%d, seed=%d)", p.N, p.Seed)
	case OpShuffle:
		return fmt.Sprintf("Shuffle(seed=%d)", p.Seed)
	case OpSort:
		return fmt.Sprintf("Sort(%s)", formatKeys(p.Keys))
	case OpTopK:
		return fmt.Sprintf("TopK(%d, %s)", p.N, formatKeys(p.Keys))
	case OpSelect:
		return fmt.Sprintf("Select(%s)", strings.Join(p.Fields, ", "))
	case OpAddFields:
		return fmt.Sprintf("AddFields(%s = %s)", p.FieldName, p.FieldExpr)
	case OpUniqueBy:
		return fmt.Sprintf("UniqueBy(%s)", p.KeyExpr)
	case OpAggregate:
		return fmt.Sprintf("Aggregate(%s)", formatAggs(p.Aggs))
	case OpGroupBy:
		return fmt.Sprintf("GroupBy(%s)", p.KeyExpr)
	case OpIndexBy:
		return fmt.Sprintf("IndexBy(%s)", p.KeyExpr)
	default:
		return "?"
	}
}

func formatKeys(keys []SortKey) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		if k.Desc {
			parts[i] = k.Path + " desc"
		} else {
			parts[i] = k.Path
		}
	}
	return strings.Join(parts, ", ")
}

func formatAggs(aggs []AggExpr) string {
	parts := make([]string, len(aggs))
	for i, a := range aggs {
		if a.Arg == nil {
			parts[i] = fmt.Sprintf("%s as %s", a.Func, a.Name)
		} else {
			parts[i] = fmt.Sprintf("%s(%s) as %s", a.Func, a.Arg, a.Name)
		}
	}
	return strings.Join(parts, ", ")
}

// Explain renders p's full operator tree as indented text, one line per
// node, root first, following Sneller's String()-per-node convention but
// adding indentation here since LogicalPlan nodes don't carry tree depth.
func Explain(p *LogicalPlan) string {
	var b strings.Builder
	explainNode(&b, p, 0)
	return b.String()
}

func explainNode(b *strings.Builder, p *LogicalPlan, depth int) {
	if p == nil {
		return
	}
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(p.String())
	b.WriteByte('\n')
	explainNode(b, p.Input, depth+1)
}
