package expand

// unionFind is a disjoint set over connector paths with path compression.  keys keeps
// insertion order so grouping is deterministic before sorting.
type unionFind struct {
	parent map[string]string
	rank   map[string]int
	keys   []string
}

func newUnionFind() *unionFind {
	return &unionFind{parent: map[string]string{}, rank: map[string]int{}}
}

func (u *unionFind) add(key string) {
	if _, ok := u.parent[key]; ok {
		return
	}
	u.parent[key] = key
	u.keys = append(u.keys, key)
}

func (u *unionFind) find(key string) string {
	root := key
	for u.parent[root] != root {
		root = u.parent[root]
	}
	for key != root {
		next := u.parent[key]
		u.parent[key] = root
		key = next
	}
	return root
}

func (u *unionFind) union(a, b string) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	switch {
	case u.rank[ra] < u.rank[rb]:
		u.parent[ra] = rb
	case u.rank[ra] > u.rank[rb]:
		u.parent[rb] = ra
	default:
		u.parent[rb] = ra
		u.rank[ra]++
	}
}
