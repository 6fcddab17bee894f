package extract

import (
	"strings"
)

// Type is a parsed annotation expression. The resolver renders it and
// records what the rendering will need to import.
type Type interface {
	isType()
}

// None and Any are the two fixed annotation values. Compare with
// IsNone/IsAny rather than ==; members of parsed unions carry them too.
var (
	None Type = noneType{}
	Any  Type = anyType{}
)

type noneType struct{}
type anyType struct{}

type (
	// Named is a bare identifier: resolution happens at render time via
	// the symbol index.
	Named struct {
		Name string
	}
	// Dotted is a dotted path with no brackets or spaces: "a.B",
	// "pkg.sub.C".
	Dotted struct {
		Path string
	}
	// Quoted is a string-literal forward reference; Text is the inner
	// text without quotes.
	Quoted struct {
		Text string
	}
	// Resolved is an index-resolved class reference — the static
	// analog of holding the class itself.
	Resolved struct {
		Name   string
		Module string
	}
	// Subscript is a subscripted generic: Origin is the raw origin
	// expression text.
	Subscript struct {
		Origin string
		Args   []Type
	}
	// Union covers both Union[...] and PEP 604 pipes, members in
	// declared order. Optional[X] parses as Union{X, None}.
	Union struct {
		Members []Type
	}
	// Complex is an expression the parser does not model; it renders
	// verbatim and its embedded names are registered by scanning.
	Complex struct {
		Raw string
	}
)

func (noneType) isType()  {}
func (anyType) isType()   {}
func (Named) isType()     {}
func (Dotted) isType()    {}
func (Quoted) isType()    {}
func (Resolved) isType()  {}
func (Subscript) isType() {}
func (Union) isType()     {}
func (Complex) isType()   {}

// IsNone reports whether t is the None annotation.
func IsNone(t Type) bool {
	_, ok := t.(noneType)
	return ok
}

// IsAny reports whether t is the Any annotation.
func IsAny(t Type) bool {
	_, ok := t.(anyType)
	return ok
}

// ParseAnnotation parses raw annotation text into the Type model.
// Anything outside the modeled grammar degrades: bracketed expressions
// to Complex (verbatim), everything else to a quoted forward reference.
// It never fails.
func ParseAnnotation(text string) Type {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Any
	}
	p := &annParser{src: trimmed}
	p.next()
	t, err := p.parseUnion()
	if err == nil && p.tok.kind == tokEOF {
		return t
	}
	if strings.ContainsRune(trimmed, '[') && strings.ContainsRune(trimmed, ']') {
		return Complex{Raw: trimmed}
	}
	return Quoted{Text: strings.Trim(trimmed, `'"`)}
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokName        // identifier path, possibly dotted
	tokString      // quoted literal, value without quotes
	tokLBracket
	tokRBracket
	tokComma
	tokPipe
	tokBad
)

type annToken struct {
	kind  tokKind
	value string
}

// annParser is a recursive-descent parser over annotation text:
//
//	union   := element ( '|' element )*
//	element := STRING | NAME [ '[' union (',' union)* ']' ]
type annParser struct {
	src string
	pos int
	tok annToken
}

type parseErr struct{}

func (parseErr) Error() string { return "unsupported annotation syntax" }

func (p *annParser) next() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
	if p.pos >= len(p.src) {
		p.tok = annToken{kind: tokEOF}
		return
	}
	c := p.src[p.pos]
	switch {
	case c == '[':
		p.pos++
		p.tok = annToken{kind: tokLBracket}
	case c == ']':
		p.pos++
		p.tok = annToken{kind: tokRBracket}
	case c == ',':
		p.pos++
		p.tok = annToken{kind: tokComma}
	case c == '|':
		p.pos++
		p.tok = annToken{kind: tokPipe}
	case c == '\'' || c == '"':
		quote := c
		start := p.pos + 1
		i := start
		for i < len(p.src) && p.src[i] != quote {
			i++
		}
		if i >= len(p.src) {
			p.tok = annToken{kind: tokBad}
			return
		}
		p.tok = annToken{kind: tokString, value: p.src[start:i]}
		p.pos = i + 1
	case isNameStart(c):
		start := p.pos
		i := p.pos
		for i < len(p.src) && (isNameChar(p.src[i]) || p.src[i] == '.') {
			// A dot must be followed by a name character, otherwise it
			// is ellipsis or malformed.
			if p.src[i] == '.' && (i+1 >= len(p.src) || !isNameStart(p.src[i+1])) {
				p.tok = annToken{kind: tokBad}
				return
			}
			i++
		}
		p.tok = annToken{kind: tokName, value: p.src[start:i]}
		p.pos = i
	default:
		p.tok = annToken{kind: tokBad}
	}
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameChar(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9')
}

func (p *annParser) parseUnion() (Type, error) {
	first, err := p.parseElement()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokPipe {
		return first, nil
	}
	members := []Type{first}
	for p.tok.kind == tokPipe {
		p.next()
		m, err := p.parseElement()
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return Union{Members: members}, nil
}

func (p *annParser) parseElement() (Type, error) {
	switch p.tok.kind {
	case tokString:
		t := Quoted{Text: p.tok.value}
		p.next()
		return t, nil
	case tokName:
		name := p.tok.value
		p.next()
		if p.tok.kind != tokLBracket {
			return namedOrSpecial(name), nil
		}
		// Literal and Annotated arguments are values, not types; keep
		// the whole expression verbatim.
		switch trailingName(name) {
		case "Literal", "Annotated":
			return nil, parseErr{}
		}
		p.next()
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		return subscriptOf(name, args)
	default:
		return nil, parseErr{}
	}
}

func (p *annParser) parseArgs() ([]Type, error) {
	var args []Type
	for {
		arg, err := p.parseUnion()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		switch p.tok.kind {
		case tokComma:
			p.next()
		case tokRBracket:
			p.next()
			return args, nil
		default:
			return nil, parseErr{}
		}
	}
}

func namedOrSpecial(name string) Type {
	switch name {
	case "None":
		return None
	case "Any":
		return Any
	}
	if strings.Contains(name, ".") {
		return Dotted{Path: name}
	}
	return Named{Name: name}
}

func subscriptOf(origin string, args []Type) (Type, error) {
	switch trailingName(origin) {
	case "Optional":
		if len(args) != 1 {
			return nil, parseErr{}
		}
		return Union{Members: []Type{args[0], None}}, nil
	case "Union":
		return Union{Members: args}, nil
	}
	return Subscript{Origin: origin, Args: args}, nil
}

// trailingName returns the last dotted component of an expression.
func trailingName(path string) string {
	if idx := strings.LastIndex(path, "."); idx >= 0 {
		return path[idx+1:]
	}
	return path
}
