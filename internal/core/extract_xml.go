package core

import (
	"bufio"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/prodcheck/internal/logging"
	"github.com/JonMunkholm/prodcheck/internal/schema"
	"golang.org/x/text/encoding/charmap"
)

// ErrEmptyXML is returned for a document without a root element.
var ErrEmptyXML = errors.New("xml document has no root element")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// XMLExtractor reads product elements from supplier XML feeds.
type XMLExtractor struct {
	tags schema.AliasTable
}

// NewXMLExtractor returns an extractor using the XML tag table.
func NewXMLExtractor() *XMLExtractor {
	return &XMLExtractor{tags: schema.XMLTags}
}

func init() {
	RegisterExtractor(FileTypeXML, NewXMLExtractor())
}

// Extract parses the document at path and returns one record per product
// element that carries both a code and a description.
func (e *XMLExtractor) Extract(ctx context.Context, path string) ([]ProductRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open xml: %w", err)
	}
	defer f.Close()

	root, err := parseXMLTree(f)
	if err != nil {
		return nil, err
	}

	log := logging.WithFields(ctx, "file", filepath.Base(path))
	elements := productElements(root)

	records := make([]ProductRecord, 0, len(elements))
	for i, el := range elements {
		if i%ContextCheckInterval == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var rec ProductRecord
		for _, field := range schema.Fields {
			v, ok := el.lookup(e.tags.Names(field))
			setField(&rec, field, v, ok)
		}

		if rec.ProductCode == "" || rec.Description == "" {
			log.Warn("element skipped: code and description are required",
				"element", i+1, "tag", el.name, "code", rec.ProductCode)
			continue
		}
		rec.Raw = el.snapshot()
		records = append(records, rec)
	}

	log.Info("xml extracted", "root", root.name, "elements", len(elements), "records", len(records))
	return records, nil
}

// xmlNode is a minimal element tree; names are local (namespace-free).
type xmlNode struct {
	name     string
	attrs    map[string]string
	text     string // character data before the first child element
	children []*xmlNode
}

func parseXMLTree(r io.Reader) (*xmlNode, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	dec := xml.NewDecoder(br)
	dec.CharsetReader = charsetReader

	var root *xmlNode
	var stack []*xmlNode
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &xmlNode{name: t.Name.Local}
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
					continue
				}
				if n.attrs == nil {
					n.attrs = make(map[string]string, len(t.Attr))
				}
				n.attrs[a.Name.Local] = a.Value
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			} else if root == nil {
				root = n
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				top := stack[len(stack)-1]
				if len(top.children) == 0 {
					top.text += string(t)
				}
			}
		}
	}

	if root == nil {
		return nil, ErrEmptyXML
	}
	return root, nil
}

// charsetReader decodes the single-byte encodings Brazilian ERPs still emit.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "utf-8", "utf8", "":
		return input, nil
	case "iso-8859-1", "iso8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	default:
		return nil, fmt.Errorf("unsupported xml encoding %q", label)
	}
}

// productElements returns the first non-empty descendant collection matching
// schema.ProductElements, or the root's children when none match.
func productElements(root *xmlNode) []*xmlNode {
	for _, tag := range schema.ProductElements {
		var found []*xmlNode
		var walk func(nodes []*xmlNode)
		walk = func(nodes []*xmlNode) {
			for _, n := range nodes {
				if n.name == tag {
					found = append(found, n)
				}
				walk(n.children)
			}
		}
		walk(root.children)
		if len(found) > 0 {
			return found
		}
	}
	return root.children
}

// lookup resolves a field value from the candidate tags: exact child element
// text, then attribute, then a case-insensitive child scan.
func (n *xmlNode) lookup(tags []string) (string, bool) {
	for _, tag := range tags {
		for _, c := range n.children {
			if c.name == tag {
				if v := strings.TrimSpace(c.text); v != "" {
					return v, true
				}
				break
			}
		}
		if v, ok := n.attrs[tag]; ok {
			return strings.TrimSpace(v), true
		}
	}

	for _, tag := range tags {
		for _, c := range n.children {
			if strings.EqualFold(c.name, tag) {
				if v := strings.TrimSpace(c.text); v != "" {
					return v, true
				}
			}
		}
	}
	return "", false
}

// snapshot maps each immediate child tag to its text; later duplicates win.
func (n *xmlNode) snapshot() map[string]any {
	snap := make(map[string]any, len(n.children))
	for _, c := range n.children {
		if v := strings.TrimSpace(c.text); v != "" {
			snap[c.name] = v
		} else {
			snap[c.name] = nil
		}
	}
	return snap
}
