package ast

// VisitDirection tells a Visitor whether Walk is entering or leaving a node.
type VisitDirection int

const (
	VisitEnter VisitDirection = iota
	VisitExit
)

// Visitor is called by Walk for each node of a tree. Returning nil from the
// VisitEnter call skips the children of the node as well as its VisitExit
// call.
type Visitor interface {
	Visit(n Node, dir VisitDirection) (w Visitor)
}

// Walk visits node and its descendants in source order with v.
func Walk(v Visitor, node Node) {
	if v = v.Visit(node, VisitEnter); v == nil {
		return
	}
	node.Walk(v)
	v.Visit(node, VisitExit)
}

// Inspect calls fn for node and its descendants in source order. The
// children of a node are skipped if fn returns false for it.
func Inspect(node Node, fn func(Node) bool) {
	Walk(inspector(fn), node)
}

type inspector func(Node) bool

func (f inspector) Visit(n Node, dir VisitDirection) Visitor {
	if dir == VisitEnter && f(n) {
		return f
	}
	return nil
}
