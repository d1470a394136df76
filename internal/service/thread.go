package service

import "modhub/internal/models"

// BuildTree arranges a flat, creation-ordered comment list into display
// threads in linear time. Every input comment appears exactly once in the
// result. A comment whose parent is missing from the list, or which sits on a
// parent cycle, is promoted to the top level.
func BuildTree(flat []*models.Comment) []*models.CommentNode {
	index := make(map[uint]int, len(flat))
	nodes := make([]*models.CommentNode, 0, len(flat))
	for _, c := range flat {
		if c == nil {
			continue
		}
		if _, dup := index[c.ID]; dup {
			continue
		}
		index[c.ID] = len(nodes)
		nodes = append(nodes, &models.CommentNode{Comment: c, Replies: []*models.CommentNode{}})
	}

	// parent[i] is the position of node i's parent, or -1 at the top level.
	parent := make([]int, len(nodes))
	for i, n := range nodes {
		parent[i] = -1
		if n.ParentID == nil {
			continue
		}
		if p, ok := index[*n.ParentID]; ok && p != i {
			parent[i] = p
		}
	}
	detachCycles(parent)

	roots := make([]*models.CommentNode, 0, len(nodes))
	for i, n := range nodes {
		if parent[i] < 0 {
			roots = append(roots, n)
			continue
		}
		p := nodes[parent[i]]
		p.Replies = append(p.Replies, n)
	}
	return roots
}

// detachCycles clears the parent link of every node on a parent cycle. Each
// node is walked at most once.
func detachCycles(parent []int) {
	const (
		unseen = iota
		onPath
		done
	)
	state := make([]uint8, len(parent))
	var path []int
	for start := range parent {
		path = path[:0]
		i := start
		for i >= 0 && state[i] == unseen {
			state[i] = onPath
			path = append(path, i)
			i = parent[i]
		}
		if i >= 0 && state[i] == onPath {
			// The path from i to its end loops back to i.
			for j := len(path) - 1; j >= 0; j-- {
				member := path[j]
				parent[member] = -1
				if member == i {
					break
				}
			}
		}
		for _, j := range path {
			state[j] = done
		}
	}
}

// FlattenRoots returns the top-level comments with no nested replies.
func FlattenRoots(flat []*models.Comment) []*models.CommentNode {
	roots := make([]*models.CommentNode, 0, len(flat))
	for _, c := range flat {
		if c == nil || c.ParentID != nil {
			continue
		}
		roots = append(roots, &models.CommentNode{Comment: c, Replies: []*models.CommentNode{}})
	}
	return roots
}
