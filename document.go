package converter

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Document is a parsed markup tree. It is never modified after ParseDocument
// returns.
type Document struct {
	Root *Node
}

// Node is one element of a parsed document.
type Node struct {
	Space    string // Resolved namespace URL (or the raw prefix if undeclared)
	Local    string
	Attrs    []xml.Attr
	Children []*Node
	Text     string // Character data directly inside this element
}

// ParseDocument parses raw markup into a Document. Input that is not
// well-formed XML yields a *MalformedDocumentError.
func ParseDocument(data []byte) (*Document, error) {
	utf16 := hasUTF16BOM(data)
	r := transform.NewReader(bytes.NewReader(data), unicode.BOMOverride(transform.Nop))

	dec := xml.NewDecoder(r)
	dec.Strict = true
	dec.CharsetReader = func(label string, input io.Reader) (io.Reader, error) {
		// BOMOverride has already transcoded UTF-16 input to UTF-8.
		if utf16 && strings.HasPrefix(strings.ToLower(label), "utf-16") {
			return input, nil
		}
		return charset.NewReaderLabel(label, input)
	}

	var (
		root  *Node
		stack []*Node
		texts []*strings.Builder
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, malformed(err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{
				Space: t.Name.Space,
				Local: t.Name.Local,
				Attrs: append([]xml.Attr(nil), t.Attr...),
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, &MalformedDocumentError{Line: lineOf(dec), Err: errors.New("multiple root elements")}
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			}
			stack = append(stack, n)
			texts = append(texts, &strings.Builder{})

		case xml.EndElement:
			top := len(stack) - 1
			stack[top].Text = texts[top].String()
			stack = stack[:top]
			texts = texts[:top]

		case xml.CharData:
			if len(stack) == 0 {
				if len(bytes.TrimSpace(t)) > 0 {
					return nil, &MalformedDocumentError{Line: lineOf(dec), Err: errors.New("character data outside root element")}
				}
				continue
			}
			texts[len(texts)-1].Write(t)
		}
	}

	if root == nil {
		return nil, &MalformedDocumentError{Err: errors.New("no root element")}
	}

	return &Document{Root: root}, nil
}

func malformed(err error) error {
	var syntaxErr *xml.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &MalformedDocumentError{Line: syntaxErr.Line, Err: err}
	}
	return &MalformedDocumentError{Err: err}
}

func lineOf(dec *xml.Decoder) int {
	line, _ := dec.InputPos()
	return line
}

func hasUTF16BOM(data []byte) bool {
	return bytes.HasPrefix(data, []byte{0xFE, 0xFF}) || bytes.HasPrefix(data, []byte{0xFF, 0xFE})
}

// Child returns the first direct child with the given local name.
func (n *Node) Child(local string) *Node {
	for _, c := range n.Children {
		if c.Local == local {
			return c
		}
	}
	return nil
}

// ChildFold is Child with case-insensitive name matching.
func (n *Node) ChildFold(local string) *Node {
	for _, c := range n.Children {
		if strings.EqualFold(c.Local, local) {
			return c
		}
	}
	return nil
}

// Find returns the first descendant of n (excluding n) matching fn, in
// document order.
func (n *Node) Find(fn func(*Node) bool) *Node {
	for _, c := range n.Children {
		if fn(c) {
			return c
		}
		if found := c.Find(fn); found != nil {
			return found
		}
	}
	return nil
}

// Walk visits n and its descendants in document order. Returning false from
// fn skips the node's subtree.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// TextContent returns the trimmed character data of n and all descendants.
func (n *Node) TextContent() string {
	if len(n.Children) == 0 {
		return strings.TrimSpace(n.Text)
	}
	var b strings.Builder
	n.collectText(&b)
	return strings.TrimSpace(b.String())
}

func (n *Node) collectText(b *strings.Builder) {
	b.WriteString(n.Text)
	for _, c := range n.Children {
		c.collectText(b)
	}
}
