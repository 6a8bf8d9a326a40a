// Package community groups characters into factions from the strength of
// their pairwise ties.
package community

import "sort"

// Link is an undirected weighted tie between two members.
type Link struct {
	A, B   string
	Weight float64
}

// Detector returns groups of at least two members. Members inside a group
// are sorted and groups are ordered by their first member.
type Detector interface {
	Detect(members []string, links []Link) ([][]string, error)
}

// SimpleDetector groups members by connected component.
type SimpleDetector struct{}

func NewSimpleDetector() *SimpleDetector {
	return &SimpleDetector{}
}

func (d *SimpleDetector) Detect(members []string, links []Link) ([][]string, error) {
	adj := adjacency(members, links)

	visited := make(map[string]bool)
	var groups [][]string
	for _, m := range members {
		if visited[m] {
			continue
		}
		var component []string
		d.dfs(m, adj, visited, &component)
		if len(component) >= 2 {
			groups = append(groups, component)
		}
	}
	return normalize(groups), nil
}

func (d *SimpleDetector) dfs(u string, adj map[string]map[string]float64, visited map[string]bool, component *[]string) {
	visited[u] = true
	*component = append(*component, u)
	for _, v := range sortedNeighbors(adj[u]) {
		if !visited[v] {
			d.dfs(v, adj, visited, component)
		}
	}
}

// adjacency drops links to unknown members, self-links and links without
// positive weight. Parallel links add up.
func adjacency(members []string, links []Link) map[string]map[string]float64 {
	adj := make(map[string]map[string]float64, len(members))
	for _, m := range members {
		adj[m] = make(map[string]float64)
	}
	for _, l := range links {
		if l.A == l.B || l.Weight <= 0 {
			continue
		}
		if _, ok := adj[l.A]; !ok {
			continue
		}
		if _, ok := adj[l.B]; !ok {
			continue
		}
		adj[l.A][l.B] += l.Weight
		adj[l.B][l.A] += l.Weight
	}
	return adj
}

func sortedNeighbors(nb map[string]float64) []string {
	out := make([]string, 0, len(nb))
	for v := range nb {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func normalize(groups [][]string) [][]string {
	for _, g := range groups {
		sort.Strings(g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })
	return groups
}
