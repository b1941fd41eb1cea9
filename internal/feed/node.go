// Package feed turns Coast Guard navigation-center XML documents into
// normalized points. The notice feed has a fixed layout; the weekly
// light-list feeds describe their own field names in an embedded XSD.
package feed

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/sells-group/navaids/internal/fetcher"
	"github.com/sells-group/navaids/internal/model"
)

// Extractor converts one fetched document into points.
type Extractor interface {
	Extract(r io.Reader) ([]model.Point, error)
}

// Node is a generic XML element for documents whose shape is only known at
// runtime. Names are matched on their local part, ignoring namespaces.
type Node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []Node     `xml:",any"`
}

// ParseNode decodes a whole document into a Node tree.
func ParseNode(r io.Reader) (*Node, error) {
	var n Node
	if err := fetcher.DecodeXML(r, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// Attr returns the value of the attribute with the given local name.
func (n *Node) Attr(local string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attrs {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// Child returns the first child element with the given local name, or nil.
func (n *Node) Child(local string) *Node {
	if n == nil {
		return nil
	}
	for i := range n.Children {
		if n.Children[i].XMLName.Local == local {
			return &n.Children[i]
		}
	}
	return nil
}

// All returns every child element with the given local name in document order.
func (n *Node) All(local string) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for i := range n.Children {
		if n.Children[i].XMLName.Local == local {
			out = append(out, &n.Children[i])
		}
	}
	return out
}

// Path follows a chain of first-match children.
func (n *Node) Path(locals ...string) *Node {
	cur := n
	for _, l := range locals {
		cur = cur.Child(l)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// Value returns the trimmed text of the named child, or "" when the child is
// absent. An empty name always yields "".
func (n *Node) Value(local string) string {
	if local == "" {
		return ""
	}
	c := n.Child(local)
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.Text)
}
