package matcher

import (
	"errors"
	"fmt"
	"math"
)

// Solver computes the earth mover's distance between two histograms over
// the same bins, with cost[i][j] the price of moving one unit of mass from
// bin i of supply to bin j of demand.
type Solver interface {
	EMD(supply, demand []float64, cost [][]float64) (float64, error)
}

// SolverFunc adapts a function to [Solver].
type SolverFunc func(supply, demand []float64, cost [][]float64) (float64, error)

// EMD implements [Solver].
func (f SolverFunc) EMD(supply, demand []float64, cost [][]float64) (float64, error) {
	return f(supply, demand, cost)
}

const flowEpsilon = 1e-12

// MinCostFlowSolver solves the transportation problem exactly with
// successive shortest augmenting paths. It moves min(Σsupply, Σdemand) units
// of mass and returns the total transport cost. Its cost grows quickly with
// the number of bins, which is fine for sentence-sized vocabularies.
type MinCostFlowSolver struct{}

var _ Solver = MinCostFlowSolver{}

type flowEdge struct {
	to, rev   int
	cap, cost float64
}

// EMD implements [Solver].
func (MinCostFlowSolver) EMD(supply, demand []float64, cost [][]float64) (float64, error) {
	n, m := len(supply), len(demand)
	if len(cost) != n {
		return 0, fmt.Errorf("matcher: emd: cost has %d rows, want %d", len(cost), n)
	}
	var totalSupply, totalDemand float64
	for _, v := range supply {
		if v < 0 {
			return 0, errors.New("matcher: emd: negative supply")
		}
		totalSupply += v
	}
	for _, v := range demand {
		if v < 0 {
			return 0, errors.New("matcher: emd: negative demand")
		}
		totalDemand += v
	}

	// Nodes: 0 = source, 1..n = supply bins, n+1..n+m = demand bins, n+m+1 = sink.
	src, sink := 0, n+m+1
	graph := make([][]flowEdge, n+m+2)
	addEdge := func(from, to int, capacity, c float64) {
		graph[from] = append(graph[from], flowEdge{to: to, rev: len(graph[to]), cap: capacity, cost: c})
		graph[to] = append(graph[to], flowEdge{to: from, rev: len(graph[from]) - 1, cap: 0, cost: -c})
	}
	for i, v := range supply {
		if v > flowEpsilon {
			addEdge(src, 1+i, v, 0)
		}
	}
	for j, v := range demand {
		if v > flowEpsilon {
			addEdge(1+n+j, sink, v, 0)
		}
	}
	for i := range n {
		if supply[i] <= flowEpsilon {
			continue
		}
		if len(cost[i]) != m {
			return 0, fmt.Errorf("matcher: emd: cost row %d has %d columns, want %d", i, len(cost[i]), m)
		}
		for j := range m {
			if demand[j] > flowEpsilon {
				addEdge(1+i, 1+n+j, math.Inf(1), cost[i][j])
			}
		}
	}

	remaining := math.Min(totalSupply, totalDemand)
	total := 0.0
	dist := make([]float64, len(graph))
	prevNode := make([]int, len(graph))
	prevEdge := make([]int, len(graph))
	for remaining > flowEpsilon {
		// Bellman-Ford: residual edges may carry negative costs.
		for v := range dist {
			dist[v] = math.Inf(1)
			prevNode[v] = -1
		}
		dist[src] = 0
		for range len(graph) - 1 {
			changed := false
			for u := range graph {
				if math.IsInf(dist[u], 1) {
					continue
				}
				for k, e := range graph[u] {
					if e.cap <= flowEpsilon {
						continue
					}
					if d := dist[u] + e.cost; d < dist[e.to]-flowEpsilon {
						dist[e.to] = d
						prevNode[e.to] = u
						prevEdge[e.to] = k
						changed = true
					}
				}
			}
			if !changed {
				break
			}
		}
		if prevNode[sink] < 0 {
			break
		}

		push := remaining
		for v := sink; v != src; v = prevNode[v] {
			push = math.Min(push, graph[prevNode[v]][prevEdge[v]].cap)
		}
		for v := sink; v != src; v = prevNode[v] {
			e := &graph[prevNode[v]][prevEdge[v]]
			e.cap -= push
			graph[v][e.rev].cap += push
		}
		total += push * dist[sink]
		remaining -= push
	}
	return total, nil
}
