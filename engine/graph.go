package engine

import "strings"

// Graph índice de un flujo por id y por parentId. El flujo es un bosque de
// punteros al padre; los hijos se materializan como multimap en orden de
// documento.
type Graph struct {
	FlowID   string
	nodes    map[string]*FlowNode
	children map[string][]*FlowNode
	roots    []*FlowNode
}

// NewGraph construye el índice a partir de los nodos del flujo
func NewGraph(flow *Flow) *Graph {
	g := &Graph{
		FlowID:   flow.ID.String(),
		nodes:    make(map[string]*FlowNode, len(flow.Nodes)),
		children: make(map[string][]*FlowNode),
	}

	for i := range flow.Nodes {
		node := &flow.Nodes[i]
		g.nodes[node.ID] = node
		if node.IsRoot() {
			g.roots = append(g.roots, node)
			continue
		}
		g.children[node.ParentID] = append(g.children[node.ParentID], node)
	}

	return g
}

func (g *Graph) Node(id string) (*FlowNode, bool) {
	node, ok := g.nodes[id]
	return node, ok
}

// Children hijos directos en orden de documento
func (g *Graph) Children(id string) []*FlowNode {
	return g.children[id]
}

func (g *Graph) FirstChild(id string) (*FlowNode, bool) {
	kids := g.children[id]
	if len(kids) == 0 {
		return nil, false
	}
	return kids[0], true
}

// ChildByHandle hijo etiquetado con handle (success / failure)
func (g *Graph) ChildByHandle(id, handle string) (*FlowNode, bool) {
	for _, child := range g.children[id] {
		if child.Handle == handle {
			return child, true
		}
	}
	return nil, false
}

// StartNode primer nodo raíz en orden de documento
func (g *Graph) StartNode() (*FlowNode, bool) {
	if len(g.roots) == 0 {
		return nil, false
	}
	return g.roots[0], true
}

// Resolve sigue los brazos (branch / button) hasta un nodo ejecutable.
// Devuelve false si un brazo no tiene hijo.
func (g *Graph) Resolve(id string) (*FlowNode, bool) {
	node, ok := g.nodes[id]
	seen := map[string]bool{}
	for ok && node.Type.IsArm() {
		if seen[node.ID] {
			return nil, false
		}
		seen[node.ID] = true
		node, ok = g.FirstChild(node.ID)
	}
	return node, ok
}

// AncestorIDs ids de los ancestros, del padre hacia arriba. Nunca incluye
// nodos cuyo padre es el sentinel raíz.
func (g *Graph) AncestorIDs(id string) []string {
	var ids []string
	node, ok := g.nodes[id]
	seen := map[string]bool{id: true}
	for ok && !node.IsRoot() {
		parent, found := g.nodes[node.ParentID]
		if !found || parent.IsRoot() || seen[parent.ID] {
			break
		}
		seen[parent.ID] = true
		ids = append(ids, parent.ID)
		node = parent
	}
	return ids
}

// Signature clave estable de un nodo más su camino de ancestros
func (g *Graph) Signature(id string) string {
	ancestors := g.AncestorIDs(id)
	if len(ancestors) == 0 {
		return id
	}
	return id + "|" + strings.Join(ancestors, ">")
}

// NearestAncestorOfType primer ancestro (incluyendo raíces) del tipo dado
func (g *Graph) NearestAncestorOfType(id string, t NodeType) (*FlowNode, bool) {
	node, ok := g.nodes[id]
	seen := map[string]bool{}
	for ok && !seen[node.ID] {
		seen[node.ID] = true
		parent, found := g.nodes[node.ParentID]
		if !found {
			return nil, false
		}
		if parent.Type == t {
			return parent, true
		}
		node = parent
	}
	return nil, false
}

// Len cantidad de nodos indexados
func (g *Graph) Len() int {
	return len(g.nodes)
}
