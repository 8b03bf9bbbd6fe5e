package pathfind

import "github.com/OCAP2/warcore/pkg/core"

type pathNode struct {
	coord core.Coordinate
	g     int
	f     int
	seq   uint64 // push order, breaks f ties
	index int    // heap index
}

// openList is a min-heap on (f, seq). Equal f pops in push order, which
// keeps searches reproducible.
type openList []*pathNode

func (ol openList) Len() int { return len(ol) }
func (ol openList) Less(i, j int) bool {
	if ol[i].f != ol[j].f {
		return ol[i].f < ol[j].f
	}
	return ol[i].seq < ol[j].seq
}
func (ol openList) Swap(i, j int) { ol[i], ol[j] = ol[j], ol[i]; ol[i].index = i; ol[j].index = j }
func (ol *openList) Push(x any)   { n := x.(*pathNode); n.index = len(*ol); *ol = append(*ol, n) }
func (ol *openList) Pop() any {
	old := *ol
	n := old[len(old)-1]
	old[len(old)-1] = nil
	*ol = old[:len(old)-1]
	return n
}
