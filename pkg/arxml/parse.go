// ABOUTME: ARXML reader: XML tokens to a schema-checked detached tree
// ABOUTME: Deviations from the schema are handled by a per-kind warning policy

package arxml

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nainya/arxmlstore/pkg/chardata"
	"github.com/nainya/arxmlstore/pkg/spec"
	"github.com/nainya/arxmlstore/pkg/version"
)

// WarningKind classifies a tolerated deviation found while loading
type WarningKind int

const (
	WarnElementVersion WarningKind = iota + 1
	WarnUnknownElement
	WarnUnknownAttribute
	WarnAttributeVersion
	WarnInvalidAttributeValue
	WarnInvalidCharacterData
	WarnCardinality
)

var warningKindNames = map[WarningKind]string{
	WarnElementVersion:        "element-version",
	WarnUnknownElement:        "unknown-element",
	WarnUnknownAttribute:      "unknown-attribute",
	WarnAttributeVersion:      "attribute-version",
	WarnInvalidAttributeValue: "invalid-attribute-value",
	WarnInvalidCharacterData:  "invalid-character-data",
	WarnCardinality:           "cardinality",
}

func (k WarningKind) String() string {
	if name, ok := warningKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("WarningKind(%d)", int(k))
}

// ParseWarningKind converts a name such as "unknown-element" to a WarningKind
func ParseWarningKind(s string) (WarningKind, error) {
	for k, name := range warningKindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown warning kind %q", s)
}

// WarningKinds lists every warning kind
func WarningKinds() []WarningKind {
	return []WarningKind{
		WarnElementVersion, WarnUnknownElement, WarnUnknownAttribute, WarnAttributeVersion,
		WarnInvalidAttributeValue, WarnInvalidCharacterData, WarnCardinality,
	}
}

// Action decides what happens to a deviation
type Action int

const (
	// ActionWarn keeps the item when the tree can hold it and records a warning
	ActionWarn Action = iota + 1
	// ActionSkip drops the item and records a warning
	ActionSkip
	// ActionFail aborts the load
	ActionFail
)

func (a Action) String() string {
	switch a {
	case ActionWarn:
		return "warn"
	case ActionSkip:
		return "skip"
	case ActionFail:
		return "fail"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// ParseAction converts "warn", "skip" or "fail" to an Action
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(s) {
	case "warn":
		return ActionWarn, nil
	case "skip":
		return ActionSkip, nil
	case "fail":
		return ActionFail, nil
	}
	return 0, fmt.Errorf("unknown action %q", s)
}

// DefaultPolicy is used for kinds missing from ParseOptions.Policy
var DefaultPolicy = map[WarningKind]Action{
	WarnElementVersion:        ActionWarn,
	WarnUnknownElement:        ActionSkip,
	WarnUnknownAttribute:      ActionSkip,
	WarnAttributeVersion:      ActionWarn,
	WarnInvalidAttributeValue: ActionSkip,
	WarnInvalidCharacterData:  ActionWarn,
	WarnCardinality:           ActionWarn,
}

// ParseOptions controls how strictly a buffer is checked against the schema
type ParseOptions struct {
	// Strict turns every deviation into a load error
	Strict bool
	Policy map[WarningKind]Action
}

func (o ParseOptions) action(k WarningKind) Action {
	if o.Strict {
		return ActionFail
	}
	if a, ok := o.Policy[k]; ok {
		return a
	}
	return DefaultPolicy[k]
}

// Warning is a deviation that was tolerated during a load
type Warning struct {
	Kind     WarningKind
	Filename string
	Line     int
	Path     string
	Msg      string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s:%d: %s (%s)", w.Filename, w.Line, w.Msg, w.Path)
}

// LoadBuffer parses buf and merges it into the model as a new file
func (m *Model) LoadBuffer(buf []byte, filename string, strict bool) (*File, []Warning, error) {
	return m.LoadBufferWithOptions(buf, filename, ParseOptions{Strict: strict})
}

type parser struct {
	dec        *xml.Decoder
	filename   string
	opts       ParseOptions
	version    version.Version
	standalone *bool
	warnings   []Warning
}

// parsedFile is the detached result of reading one buffer
type parsedFile struct {
	root       *snapshot
	version    version.Version
	standalone *bool
	warnings   []Warning
}

func parseBuffer(buf []byte, filename string, opts ParseOptions) (*parsedFile, error) {
	p := &parser{
		dec:      xml.NewDecoder(bytes.NewReader(buf)),
		filename: filename,
		opts:     opts,
	}
	root, err := p.parseDocument()
	if err != nil {
		return nil, err
	}
	return &parsedFile{root: root, version: p.version, standalone: p.standalone, warnings: p.warnings}, nil
}

func (p *parser) line() int {
	line, _ := p.dec.InputPos()
	return line
}

func (p *parser) fail(line int, path string, format string, args ...any) error {
	return &Error{
		Kind:    KindParse,
		Msg:     fmt.Sprintf("%s:%d: %s", p.filename, line, fmt.Sprintf(format, args...)),
		Element: path,
	}
}

// deviation applies the policy for kind and reports whether the item is kept
func (p *parser) deviation(kind WarningKind, line int, path, msg string) (bool, error) {
	switch p.opts.action(kind) {
	case ActionFail:
		return false, p.fail(line, path, "%s", msg)
	case ActionSkip:
		p.warnings = append(p.warnings, Warning{Kind: kind, Filename: p.filename, Line: line, Path: path, Msg: msg})
		return false, nil
	default:
		p.warnings = append(p.warnings, Warning{Kind: kind, Filename: p.filename, Line: line, Path: path, Msg: msg})
		return true, nil
	}
}

func (p *parser) token() (xml.Token, error) {
	tok, err := p.dec.RawToken()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		var syntaxErr *xml.SyntaxError
		if errors.As(err, &syntaxErr) {
			return nil, p.fail(syntaxErr.Line, "", "%s", syntaxErr.Msg)
		}
		return nil, p.fail(p.line(), "", "%v", err)
	}
	return tok, nil
}

func qualified(name xml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	return name.Space + ":" + name.Local
}

func (p *parser) parseDocument() (*snapshot, error) {
	var comment *string
	for {
		tok, err := p.token()
		if err == io.EOF {
			return nil, p.fail(p.line(), "", "no AUTOSAR root element")
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.ProcInst:
			if t.Target == "xml" {
				p.readDeclaration(string(t.Inst))
			}
		case xml.Comment:
			c := string(t)
			comment = &c
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return nil, p.fail(p.line(), "", "text outside of the root element")
			}
		case xml.StartElement:
			root, err := p.parseRoot(t)
			if err != nil {
				return nil, err
			}
			root.comment = comment
			return root, p.parseTrailer()
		case xml.EndElement:
			return nil, p.fail(p.line(), "", "unexpected end tag %s", qualified(t.Name))
		}
	}
}

// readDeclaration records the standalone flag of the XML declaration
func (p *parser) readDeclaration(inst string) {
	idx := strings.Index(inst, "standalone=")
	if idx < 0 {
		return
	}
	rest := inst[idx+len("standalone="):]
	if len(rest) < 2 {
		return
	}
	quote := rest[0]
	end := strings.IndexByte(rest[1:], quote)
	if end < 0 {
		return
	}
	value := rest[1 : end+1] == "yes"
	p.standalone = &value
}

func (p *parser) parseTrailer() error {
	for {
		tok, err := p.token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return p.fail(p.line(), "", "text after the root element")
			}
		case xml.StartElement:
			return p.fail(p.line(), "", "second root element %s", qualified(t.Name))
		case xml.EndElement:
			return p.fail(p.line(), "", "unexpected end tag %s", qualified(t.Name))
		}
	}
}

func (p *parser) parseRoot(start xml.StartElement) (*snapshot, error) {
	line := p.line()
	name := qualified(start.Name)
	if name != "AUTOSAR" {
		return nil, p.fail(line, "/"+name, "root element must be AUTOSAR, found %s", name)
	}
	location := ""
	for _, a := range start.Attr {
		if qualified(a.Name) == "xsi:schemaLocation" {
			location = a.Value
		}
	}
	if location == "" {
		return nil, p.fail(line, "/AUTOSAR", "missing xsi:schemaLocation")
	}
	v, err := version.FromSchemaLocation(location)
	if err != nil {
		return nil, p.fail(line, "/AUTOSAR", "unsupported schema %q", location)
	}
	p.version = v
	return p.parseElement(start, spec.Root(), "/AUTOSAR", line)
}

// parseElement reads the attributes and content of an element whose start
// tag was just consumed
func (p *parser) parseElement(start xml.StartElement, etype spec.ElementType, path string, line int) (*snapshot, error) {
	s := &snapshot{name: qualified(start.Name), etype: etype}
	if err := p.parseAttributes(s, start, path, line); err != nil {
		return nil, err
	}

	mode := etype.ContentMode()
	var text strings.Builder
	sawText := false
	var comment *string
	counts := make(map[string]int)

	for {
		tok, err := p.token()
		if err == io.EOF {
			return nil, p.fail(p.line(), path, "unexpected end of file inside %s", s.name)
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			childLine := p.line()
			child, err := p.parseChild(s, t, path, childLine, counts)
			if err != nil {
				return nil, err
			}
			if child == nil {
				continue
			}
			if comment != nil {
				child.comment, comment = comment, nil
			}
			s.content = append(s.content, snapshotItem{child: child})

		case xml.EndElement:
			if qualified(t.Name) != s.name {
				return nil, p.fail(p.line(), path, "end tag %s does not match %s", qualified(t.Name), s.name)
			}
			if mode == spec.Characters && sawText {
				if err := p.setCharacterData(s, text.String(), path, line); err != nil {
					return nil, err
				}
			}
			if etype.IsNamed() && s.itemName() == "" {
				return nil, p.fail(line, path, "identifiable element %s has no SHORT-NAME", s.name)
			}
			return s, nil

		case xml.CharData:
			switch mode {
			case spec.Characters:
				text.Write(t)
				sawText = true
			case spec.Mixed:
				s.content = append(s.content, snapshotItem{text: chardata.NewString(string(t)), isText: true})
			default:
				if len(bytes.TrimSpace(t)) > 0 {
					if _, err := p.deviation(WarnInvalidCharacterData, p.line(), path,
						fmt.Sprintf("%s does not allow character data", s.name)); err != nil {
						return nil, err
					}
				}
			}

		case xml.Comment:
			if mode != spec.Characters {
				c := string(t)
				comment = &c
			}
		}
	}
}

func (p *parser) parseAttributes(s *snapshot, start xml.StartElement, path string, line int) error {
	for _, a := range start.Attr {
		name := qualified(a.Name)
		as, ok := s.etype.FindAttributeSpec(name)
		if !ok {
			if _, err := p.deviation(WarnUnknownAttribute, line, path,
				fmt.Sprintf("unknown attribute %s on %s", name, s.name)); err != nil {
				return err
			}
			continue
		}
		if !as.Versions.Contains(p.version) {
			keep, err := p.deviation(WarnAttributeVersion, line, path,
				fmt.Sprintf("attribute %s is not valid in %s", name, p.version))
			if err != nil {
				return err
			}
			if !keep {
				continue
			}
		}
		value, err := chardata.Parse(as.Spec, a.Value)
		if err != nil {
			keep, ferr := p.deviation(WarnInvalidAttributeValue, line, path,
				fmt.Sprintf("invalid value %q for attribute %s", a.Value, name))
			if ferr != nil {
				return ferr
			}
			if !keep {
				continue
			}
			value = chardata.NewString(a.Value)
		}
		s.attrs = putAttr(s.etype, s.attrs, name, value)
	}
	return nil
}

func (p *parser) setCharacterData(s *snapshot, text, path string, line int) error {
	value, err := chardata.Parse(s.etype.ChardataSpec(), text)
	if err != nil {
		keep, ferr := p.deviation(WarnInvalidCharacterData, line, path,
			fmt.Sprintf("invalid character data %q in %s", text, s.name))
		if ferr != nil {
			return ferr
		}
		if !keep {
			return nil
		}
		value = chardata.NewString(text)
	}
	s.content = []snapshotItem{{text: value, isText: true}}
	return nil
}

// parseChild resolves a child start tag against the parent's schema and
// parses it. A nil result means the child was dropped.
func (p *parser) parseChild(parent *snapshot, start xml.StartElement, parentPath string, line int, counts map[string]int) (*snapshot, error) {
	name := qualified(start.Name)
	path := parentPath + "/" + name

	sub, ok := parent.etype.FindSubElement(name, p.version.Mask())
	if !ok {
		other, known := parent.etype.FindSubElementAnyVersion(name)
		if !known {
			if _, err := p.deviation(WarnUnknownElement, line, path,
				fmt.Sprintf("unknown element %s in %s", name, parent.name)); err != nil {
				return nil, err
			}
			return nil, p.skip()
		}
		keep, err := p.deviation(WarnElementVersion, line, path,
			fmt.Sprintf("element %s is not valid in %s", name, p.version))
		if err != nil {
			return nil, err
		}
		if !keep {
			return nil, p.skip()
		}
		sub = other
	}

	if msg := p.cardinality(parent, sub, counts); msg != "" {
		keep, err := p.deviation(WarnCardinality, line, path, msg)
		if err != nil {
			return nil, err
		}
		if !keep {
			return nil, p.skip()
		}
	}
	counts[name]++
	return p.parseElement(start, sub.Type, path, line)
}

func (p *parser) cardinality(parent *snapshot, sub spec.SubElementSpec, counts map[string]int) string {
	if sub.Max > 0 && counts[sub.Name] >= sub.Max {
		return fmt.Sprintf("%s may occur at most %d times in %s", sub.Name, sub.Max, parent.name)
	}
	if parent.etype.ContentMode() == spec.Choice {
		for other, n := range counts {
			if other != sub.Name && n > 0 {
				return fmt.Sprintf("%s cannot be combined with %s in %s", sub.Name, other, parent.name)
			}
		}
	}
	return ""
}

// skip consumes the rest of the element whose start tag was just read
func (p *parser) skip() error {
	depth := 1
	for depth > 0 {
		tok, err := p.token()
		if err == io.EOF {
			return p.fail(p.line(), "", "unexpected end of file")
		}
		if err != nil {
			return err
		}
		switch tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		}
	}
	return nil
}
