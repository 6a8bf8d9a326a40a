package community

import "sort"

// LabelPropagationDetector implements community detection using the Label
// Propagation Algorithm over weighted links. Members are visited in the order
// given and ties go to the current label, then to the largest label, so the
// result is deterministic.
type LabelPropagationDetector struct {
	MaxIterations int
}

func NewLabelPropagationDetector() *LabelPropagationDetector {
	return &LabelPropagationDetector{
		MaxIterations: 20,
	}
}

func (d *LabelPropagationDetector) Detect(members []string, links []Link) ([][]string, error) {
	if len(members) == 0 {
		return nil, nil
	}
	adj := adjacency(members, links)

	labels := make(map[string]string, len(members))
	for _, m := range members {
		labels[m] = m
	}

	for iter := 0; iter < d.MaxIterations; iter++ {
		changed := 0
		for _, u := range members {
			neighbors := adj[u]
			if len(neighbors) == 0 {
				continue
			}

			weights := make(map[string]float64)
			best := 0.0
			for _, v := range sortedNeighbors(neighbors) {
				label := labels[v]
				weights[label] += neighbors[v]
				if weights[label] > best {
					best = weights[label]
				}
			}

			var candidates []string
			for label, w := range weights {
				if w == best {
					candidates = append(candidates, label)
				}
			}
			sort.Strings(candidates)

			next := candidates[len(candidates)-1]
			for _, c := range candidates {
				if c == labels[u] {
					next = c
					break
				}
			}
			if labels[u] != next {
				labels[u] = next
				changed++
			}
		}
		if changed == 0 {
			break
		}
	}

	clusters := make(map[string][]string)
	for _, m := range members {
		clusters[labels[m]] = append(clusters[labels[m]], m)
	}
	var groups [][]string
	for _, c := range clusters {
		if len(c) >= 2 {
			groups = append(groups, c)
		}
	}
	return normalize(groups), nil
}
