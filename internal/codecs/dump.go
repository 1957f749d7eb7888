package codecs

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Node is one box (or descriptor) of an inspector dump.
type Node struct {
	Name     string
	Fields   map[string]string
	Children []*Node

	indent int
}

// Field returns the named field and whether it was present.
func (n *Node) Field(key string) (string, bool) {
	v, ok := n.Fields[key]
	return v, ok
}

// Find returns the first descendant (depth-first, document order) named
// name, or nil.
func (n *Node) Find(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
		if found := c.Find(name); found != nil {
			return found
		}
	}
	return nil
}

// FindField returns the first value of key in n or any descendant.
func (n *Node) FindField(key string) (string, bool) {
	if v, ok := n.Fields[key]; ok {
		return v, true
	}
	for _, c := range n.Children {
		if v, ok := c.FindField(key); ok {
			return v, true
		}
	}
	return "", false
}

// Walk calls fn for every descendant of n in document order.
func (n *Node) Walk(fn func(*Node)) {
	for _, c := range n.Children {
		fn(c)
		c.Walk(fn)
	}
}

// ParseDump reads an mp4dump text tree. Lines of the form "[name] ..."
// open a box; "key = value" lines attach to the innermost box indented
// less than them. The returned root is synthetic and has no name.
func ParseDump(r io.Reader) (*Node, error) {
	root := &Node{Fields: map[string]string{}, indent: -1}
	stack := []*Node{root}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		raw := strings.TrimRight(sc.Text(), " \t\r")
		line := strings.TrimLeft(raw, " \t")
		if line == "" {
			continue
		}
		indent := len(raw) - len(line)

		for len(stack) > 1 && stack[len(stack)-1].indent >= indent {
			stack = stack[:len(stack)-1]
		}
		parent := stack[len(stack)-1]

		if strings.HasPrefix(line, "[") {
			end := strings.IndexByte(line, ']')
			if end < 0 {
				return nil, fmt.Errorf("dump line %d: unterminated box header %q", lineNo, line)
			}
			n := &Node{Name: line[1:end], Fields: map[string]string{}, indent: indent}
			parent.Children = append(parent.Children, n)
			stack = append(stack, n)
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			// continuation of a wrapped value, nothing we read
			continue
		}
		parent.Fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read dump: %w", err)
	}
	return root, nil
}
