// ABOUTME: ARXML text output for files and subtrees
// ABOUTME: Two-space indentation, inline character data and mixed content

package arxml

import (
	"strings"

	"github.com/nainya/arxmlstore/pkg/spec"
)

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "\"", "&quot;")
)

const indentUnit = "  "

// Serialize renders the element and its subtree without an XML declaration
func (e Element) Serialize() (string, error) {
	if _, err := e.live(); err != nil {
		return "", err
	}
	var sb strings.Builder
	e.model.writeElement(&sb, e.id, 0, nil, false)
	return strings.TrimSuffix(sb.String(), "\n"), nil
}

// serializeFile renders the elements that belong to f as a complete document
func (m *Model) serializeFile(f *File) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="utf-8"`)
	if standalone, ok := f.XMLStandalone(); ok {
		if standalone {
			sb.WriteString(` standalone="yes"`)
		} else {
			sb.WriteString(` standalone="no"`)
		}
	}
	sb.WriteString("?>\n")
	m.writeElement(&sb, m.root, 0, f, false)
	return sb.String()
}

func (m *Model) writeElement(sb *strings.Builder, id nodeID, depth int, f *File, inline bool) {
	n := m.node(id)
	indent := strings.Repeat(indentUnit, depth)

	if n.comment != nil {
		if !inline {
			sb.WriteString(indent)
		}
		sb.WriteString("<!--")
		sb.WriteString(*n.comment)
		sb.WriteString("-->")
		if !inline {
			sb.WriteByte('\n')
		}
	}
	if !inline {
		sb.WriteString(indent)
	}
	sb.WriteByte('<')
	sb.WriteString(n.name)
	for _, a := range n.attrs {
		value := a.value.Format()
		if f != nil && id == m.root && a.name == "xsi:schemaLocation" {
			value = f.version.SchemaLocation()
		}
		sb.WriteByte(' ')
		sb.WriteString(a.name)
		sb.WriteString(`="`)
		attrEscaper.WriteString(sb, value)
		sb.WriteByte('"')
	}

	items := n.content
	if f != nil {
		items = make([]contentItem, 0, len(n.content))
		for _, item := range n.content {
			if item.isText || containsFile(m.effectiveFiles(item.child), f) {
				items = append(items, item)
			}
		}
	}

	if len(items) == 0 {
		sb.WriteString("/>")
		if !inline {
			sb.WriteByte('\n')
		}
		return
	}

	mode := n.etype.ContentMode()
	if inline || mode == spec.Characters || mode == spec.Mixed {
		sb.WriteByte('>')
		for _, item := range items {
			if item.isText {
				textEscaper.WriteString(sb, item.text.Format())
			} else {
				m.writeElement(sb, item.child, depth+1, f, true)
			}
		}
	} else {
		sb.WriteString(">\n")
		for _, item := range items {
			m.writeElement(sb, item.child, depth+1, f, false)
		}
		sb.WriteString(indent)
	}
	sb.WriteString("</")
	sb.WriteString(n.name)
	sb.WriteByte('>')
	if !inline {
		sb.WriteByte('\n')
	}
}
