package asyncload

import "container/heap"

// requestQueue orders pending requests by priority, highest first, then by
// submission order.
type requestQueue []*request

func (q requestQueue) Len() int { return len(q) }

func (q requestQueue) Less(i, j int) bool {
	if q[i].handle.priority != q[j].handle.priority {
		return q[i].handle.priority > q[j].handle.priority
	}
	return q[i].seq < q[j].seq
}

func (q requestQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *requestQueue) Push(x any) { *q = append(*q, x.(*request)) }

func (q *requestQueue) Pop() any {
	old := *q
	n := len(old)
	r := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return r
}

func (q *requestQueue) push(r *request) { heap.Push(q, r) }
func (q *requestQueue) pop() *request   { return heap.Pop(q).(*request) }
