package jmt

// memReader is an in-memory TreeReader backed by a map, standing in for the
// jmt column family during tests. It also collects every NodeBatch applied
// to it via apply, mimicking how pkg/kvdb would persist one after a commit.
type memReader struct {
	nodes map[NodeKey]Node
}

func newMemReader() *memReader {
	return &memReader{nodes: make(map[NodeKey]Node)}
}

func (m *memReader) GetNode(key NodeKey) (Node, bool, error) {
	n, ok := m.nodes[key]
	return n, ok, nil
}

func (m *memReader) apply(batch *NodeBatch) {
	for k, n := range batch.Nodes {
		m.nodes[k] = n
	}
}
