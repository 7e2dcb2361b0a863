package opt

// none is the null arena index: absent predecessor, end of route, empty head.
const none = -1

// Action is one half of a task: its pickup or its delivery.
type Action struct {
	Task   int // index into Problem.Tasks
	Pickup bool
}

type node struct {
	Action
	next int
}

// Route is the ordered action sequence of one vehicle. Nodes live in a
// growable arena and link to their successor by index; released slots are
// recycled through a free list.
type Route struct {
	nodes []node
	free  []int
	head  int
	count int
}

func newRoute() Route { return Route{head: none} }

// Len returns the number of actions on the route.
func (r *Route) Len() int { return r.count }

// Actions returns the route in visiting order.
func (r *Route) Actions() []Action {
	out := make([]Action, 0, r.count)
	for i := r.head; i != none; i = r.nodes[i].next {
		out = append(out, r.nodes[i].Action)
	}
	return out
}

// at walks to position pos. A position past the end is a normal miss.
func (r *Route) at(pos int) (int, bool) {
	if pos < 0 || pos >= r.count {
		return none, false
	}
	i := r.head
	for ; pos > 0; pos-- {
		i = r.nodes[i].next
	}
	return i, true
}

// successor returns the node following ref, or the head when ref is none.
func (r *Route) successor(ref int) int {
	if ref == none {
		return r.head
	}
	return r.nodes[ref].next
}

func (r *Route) action(idx int) *Action {
	if idx == none {
		return nil
	}
	return &r.nodes[idx].Action
}

func (r *Route) alloc(a Action) int {
	n := node{Action: a, next: none}
	if k := len(r.free); k > 0 {
		idx := r.free[k-1]
		r.free = r.free[:k-1]
		r.nodes[idx] = n
		return idx
	}
	r.nodes = append(r.nodes, n)
	return len(r.nodes) - 1
}

// insertAfter links a new node holding a directly after ref, or at the head
// when ref is none, and returns its index.
func (r *Route) insertAfter(ref int, a Action) int {
	idx := r.alloc(a)
	if ref == none {
		r.nodes[idx].next = r.head
		r.head = idx
	} else {
		r.nodes[idx].next = r.nodes[ref].next
		r.nodes[ref].next = idx
	}
	r.count++
	return idx
}

// remove unlinks the node at idx and releases its slot. It returns the
// predecessor index (none for the head) and the detached action.
func (r *Route) remove(idx int) (int, Action, error) {
	prev := none
	i := r.head
	for i != none && i != idx {
		prev = i
		i = r.nodes[i].next
	}
	if i == none {
		return none, Action{}, structural("remove", "node %d is not linked", idx)
	}
	if prev == none {
		r.head = r.nodes[idx].next
	} else {
		r.nodes[prev].next = r.nodes[idx].next
	}
	a := r.nodes[idx].Action
	r.nodes[idx].next = none
	r.free = append(r.free, idx)
	r.count--
	return prev, a, nil
}

// find returns the node holding the given half of task.
func (r *Route) find(task int, pickup bool) (int, bool) {
	for i := r.head; i != none; i = r.nodes[i].next {
		if a := r.nodes[i].Action; a.Task == task && a.Pickup == pickup {
			return i, true
		}
	}
	return none, false
}

func (r *Route) clone() Route {
	c := Route{head: r.head, count: r.count}
	c.nodes = append([]node(nil), r.nodes...)
	if len(r.free) > 0 {
		c.free = append([]int(nil), r.free...)
	}
	return c
}
