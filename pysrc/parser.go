package pysrc

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/stubzen/stubzen/errors"
	"github.com/stubzen/stubzen/logger"
)

const (
	// DefaultMaxFileSize is the largest source file the parser accepts.
	DefaultMaxFileSize = 10 * 1024 * 1024
	// warnFileSize triggers a log line for unusually large sources.
	warnFileSize = 1024 * 1024
)

var (
	// ErrFileTooLarge is returned when a source exceeds the size limit.
	ErrFileTooLarge = errors.New("file exceeds maximum size")
	// ErrInvalidContent is returned for non-UTF-8 input.
	ErrInvalidContent = errors.New("content is not valid UTF-8")
)

// Option configures a Parser.
type Option func(*Parser)

// WithMaxFileSize overrides the file size limit.
func WithMaxFileSize(bytes int64) Option {
	return func(p *Parser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// Parser turns Python sources into Modules. Each Parse call creates its
// own tree-sitter parser, so a Parser is safe for concurrent use.
type Parser struct {
	maxFileSize int64
}

// NewParser returns a Parser with default limits.
func NewParser(opts ...Option) *Parser {
	p := &Parser{maxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseFile reads and parses one Python source file.
func (p *Parser) ParseFile(ctx context.Context, path string) (*Module, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return p.Parse(ctx, content, path)
}

// Parse parses Python source bytes into a Module. Syntax errors do not
// abort the parse; the module carries whatever tree-sitter recovered,
// with HasSyntaxErrors set.
func (p *Parser) Parse(ctx context.Context, content []byte, path string) (*Module, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if int64(len(content)) > p.maxFileSize {
		return nil, errors.Wrapf(ErrFileTooLarge, "%s: %d bytes", path, len(content))
	}
	if !utf8.Valid(content) {
		return nil, errors.Wrapf(ErrInvalidContent, "%s", path)
	}
	if len(content) > warnFileSize {
		logger.Warnw("parsing large file", "file", path, "size_bytes", len(content))
	}

	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrParseFailed, "%s: %v", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, errors.Wrapf(errors.ErrParseFailed, "%s: no root node", path)
	}

	mod := &Module{
		FilePath:  path,
		IsPackage: filepath.Base(path) == "__init__.py",
	}
	if root.HasError() {
		mod.HasSyntaxErrors = true
		logger.Debugw("source contains syntax errors", "file", path)
	}

	mod.Docstring = blockDocstring(root, content)
	p.parseStatements(root, content, mod, false)

	return mod, nil
}

// parseStatements walks the direct statements of a module root or an
// `if TYPE_CHECKING:` block (typeChecking marks the latter's imports).
func (p *Parser) parseStatements(node *sitter.Node, content []byte, mod *Module, typeChecking bool) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "import_statement":
			mod.Imports = append(mod.Imports, parsePlainImport(child, content, typeChecking)...)
		case "import_from_statement":
			if imp, ok := parseFromImport(child, content, typeChecking); ok {
				mod.Imports = append(mod.Imports, imp)
			}
		case "if_statement":
			if cond := child.ChildByFieldName("condition"); cond != nil && isTypeCheckingGuard(text(cond, content)) {
				if body := child.ChildByFieldName("consequence"); body != nil {
					p.parseStatements(body, content, mod, true)
				}
			}
		case "class_definition":
			if cls := parseClass(child, content, nil); cls != nil {
				mod.Classes = append(mod.Classes, cls)
			}
		case "function_definition":
			if fn := parseFunction(child, content, nil); fn != nil {
				mod.Functions = append(mod.Functions, fn)
			}
		case "decorated_definition":
			decorators := parseDecorators(child, content)
			for j := 0; j < int(child.ChildCount()); j++ {
				def := child.Child(j)
				switch def.Type() {
				case "class_definition":
					if cls := parseClass(def, content, decorators); cls != nil {
						mod.Classes = append(mod.Classes, cls)
					}
				case "function_definition":
					if fn := parseFunction(def, content, decorators); fn != nil {
						mod.Functions = append(mod.Functions, fn)
					}
				}
			}
		case "expression_statement":
			for j := 0; j < int(child.ChildCount()); j++ {
				expr := child.Child(j)
				if expr.Type() != "assignment" {
					continue
				}
				assign := parseAssignment(expr, content)
				if assign == nil {
					continue
				}
				mod.Assignments = append(mod.Assignments, assign)
				if tv, ok := parseTypeVar(expr, assign.Name, content); ok {
					mod.TypeVars = append(mod.TypeVars, tv)
				}
			}
		}
	}
}

// isTypeCheckingGuard matches the conventional typing.TYPE_CHECKING
// condition spellings.
func isTypeCheckingGuard(cond string) bool {
	cond = strings.TrimSpace(cond)
	return cond == "TYPE_CHECKING" || strings.HasSuffix(cond, ".TYPE_CHECKING")
}

// parsePlainImport handles `import a.b, c as d`. One statement can bind
// several modules, so it returns a slice.
func parsePlainImport(node *sitter.Node, content []byte, typeChecking bool) []Import {
	var imports []Import
	line := int(node.StartPoint().Row + 1)

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "dotted_name":
			imports = append(imports, Import{
				Module:       text(child, content),
				TypeChecking: typeChecking,
				Line:         line,
			})
		case "aliased_import":
			var module, alias string
			for j := 0; j < int(child.ChildCount()); j++ {
				gc := child.Child(j)
				switch gc.Type() {
				case "dotted_name":
					module = text(gc, content)
				case "identifier":
					alias = text(gc, content)
				}
			}
			if module != "" {
				imports = append(imports, Import{
					Module:       module,
					Alias:        alias,
					TypeChecking: typeChecking,
					Line:         line,
				})
			}
		}
	}
	return imports
}

// parseFromImport handles `from x import y as z, w` including relative
// and wildcard forms.
func parseFromImport(node *sitter.Node, content []byte, typeChecking bool) (Import, bool) {
	imp := Import{
		TypeChecking: typeChecking,
		Line:         int(node.StartPoint().Row + 1),
	}
	sawImport := false

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "import":
			sawImport = true
		case "relative_import":
			imp.Relative = true
			var prefix, name string
			for j := 0; j < int(child.ChildCount()); j++ {
				gc := child.Child(j)
				switch gc.Type() {
				case "import_prefix":
					prefix = text(gc, content)
				case "dotted_name":
					name = text(gc, content)
				}
			}
			imp.Module = prefix + name
		case "dotted_name":
			if !sawImport {
				imp.Module = text(child, content)
			} else {
				imp.Names = append(imp.Names, ImportedName{Name: text(child, content)})
			}
		case "identifier":
			if sawImport {
				imp.Names = append(imp.Names, ImportedName{Name: text(child, content)})
			}
		case "aliased_import":
			var name, alias string
			for j := 0; j < int(child.ChildCount()); j++ {
				gc := child.Child(j)
				switch gc.Type() {
				case "dotted_name":
					if name == "" {
						name = text(gc, content)
					}
				case "identifier":
					if name == "" {
						name = text(gc, content)
					} else {
						alias = text(gc, content)
					}
				}
			}
			if name != "" {
				imp.Names = append(imp.Names, ImportedName{Name: name, Alias: alias})
			}
		case "wildcard_import":
			imp.Wildcard = true
		}
	}

	if imp.Module == "" && !imp.Relative {
		return Import{}, false
	}
	if imp.Module == "" {
		imp.Module = "."
	}
	return imp, true
}

// parseClass builds a Class from a class_definition node.
func parseClass(node *sitter.Node, content []byte, decorators []string) *Class {
	name := node.ChildByFieldName("name")
	if name == nil {
		return nil
	}

	cls := &Class{
		Name:       text(name, content),
		Decorators: decorators,
		Line:       int(node.StartPoint().Row + 1),
	}

	if supers := node.ChildByFieldName("superclasses"); supers != nil {
		parseBases(supers, content, cls)
	}

	body := node.ChildByFieldName("body")
	if body == nil {
		return cls
	}
	cls.Docstring = blockDocstring(body, content)

	for i := 0; i < int(body.ChildCount()); i++ {
		child := body.Child(i)
		switch child.Type() {
		case "function_definition":
			if fn := parseFunction(child, content, nil); fn != nil {
				cls.Methods = append(cls.Methods, fn)
			}
		case "decorated_definition":
			methodDecorators := parseDecorators(child, content)
			for j := 0; j < int(child.ChildCount()); j++ {
				def := child.Child(j)
				switch def.Type() {
				case "function_definition":
					if fn := parseFunction(def, content, methodDecorators); fn != nil {
						cls.Methods = append(cls.Methods, fn)
					}
				case "class_definition":
					if nested := parseClass(def, content, methodDecorators); nested != nil {
						cls.Nested = append(cls.Nested, nested)
					}
				}
			}
		case "class_definition":
			if nested := parseClass(child, content, nil); nested != nil {
				cls.Nested = append(cls.Nested, nested)
			}
		case "expression_statement":
			for j := 0; j < int(child.ChildCount()); j++ {
				expr := child.Child(j)
				if expr.Type() == "assignment" {
					if assign := parseAssignment(expr, content); assign != nil {
						cls.ClassVars = append(cls.ClassVars, assign)
					}
				}
			}
		}
	}
	return cls
}

// parseBases fills a class's base list and metaclass from its
// argument_list node.
func parseBases(node *sitter.Node, content []byte, cls *Class) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "identifier", "attribute":
			raw := text(child, content)
			cls.Bases = append(cls.Bases, BaseRef{Raw: raw, Name: trailingName(raw)})
		case "subscript":
			cls.Bases = append(cls.Bases, parseSubscriptBase(child, content))
		case "keyword_argument":
			key, value := parseKeywordArgument(child, content)
			if key == "metaclass" {
				cls.Metaclass = value
			}
		case "string":
			// Quoted forward-reference base.
			raw := strings.Trim(text(child, content), `"'`)
			cls.Bases = append(cls.Bases, BaseRef{Raw: raw, Name: trailingName(raw)})
		}
	}
}

// parseSubscriptBase splits a generic base like Generic[T] or
// Mapping[str, V] into origin and raw args. The origin expression is
// always the subscript's first child.
func parseSubscriptBase(node *sitter.Node, content []byte) BaseRef {
	base := BaseRef{Raw: text(node, content)}
	if value := node.ChildByFieldName("value"); value != nil {
		base.Name = trailingName(text(value, content))
	}
	for i := 1; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "[", "]", ",":
		default:
			base.Args = append(base.Args, text(child, content))
		}
	}
	return base
}

// parseKeywordArgument splits `key=value` into raw text pieces.
func parseKeywordArgument(node *sitter.Node, content []byte) (string, string) {
	name := node.ChildByFieldName("name")
	value := node.ChildByFieldName("value")
	if name == nil || value == nil {
		return "", ""
	}
	return text(name, content), text(value, content)
}

// parseFunction builds a Function from a function_definition node.
func parseFunction(node *sitter.Node, content []byte, decorators []string) *Function {
	name := node.ChildByFieldName("name")
	if name == nil {
		return nil
	}

	fn := &Function{
		Name:       text(name, content),
		Decorators: decorators,
		Line:       int(node.StartPoint().Row + 1),
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		if node.Child(i).Type() == "async" {
			fn.Async = true
			break
		}
	}

	if params := node.ChildByFieldName("parameters"); params != nil {
		fn.Params = parseParams(params, content)
	}
	if ret := node.ChildByFieldName("return_type"); ret != nil {
		fn.Returns = strings.TrimSpace(text(ret, content))
	}
	if body := node.ChildByFieldName("body"); body != nil {
		fn.Docstring = blockDocstring(body, content)
		fn.SelfAssigns = collectSelfAssigns(body, content)
	}
	return fn
}

// parseParams walks a parameters node. Bare `*` and `/` separators are
// dropped; splat parameters keep their kind so rendering can restore the
// stars.
func parseParams(node *sitter.Node, content []byte) []Param {
	var params []Param

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "identifier":
			params = append(params, Param{Name: text(child, content)})

		case "typed_parameter":
			p := Param{}
			for j := 0; j < int(child.ChildCount()); j++ {
				gc := child.Child(j)
				switch gc.Type() {
				case "identifier":
					p.Name = text(gc, content)
				case "list_splat_pattern":
					p.Name = splatName(gc, content)
					p.Kind = ParamStar
				case "dictionary_splat_pattern":
					p.Name = splatName(gc, content)
					p.Kind = ParamDoubleStar
				case "type":
					p.Annotation = strings.TrimSpace(text(gc, content))
				}
			}
			if p.Name != "" {
				params = append(params, p)
			}

		case "default_parameter":
			p := Param{}
			if n := child.ChildByFieldName("name"); n != nil {
				p.Name = text(n, content)
			}
			if v := child.ChildByFieldName("value"); v != nil {
				p.Default = text(v, content)
				p.DefaultKind = literalKind(v)
			}
			if p.Name != "" {
				params = append(params, p)
			}

		case "typed_default_parameter":
			p := Param{}
			if n := child.ChildByFieldName("name"); n != nil {
				p.Name = text(n, content)
			}
			if t := child.ChildByFieldName("type"); t != nil {
				p.Annotation = strings.TrimSpace(text(t, content))
			}
			if v := child.ChildByFieldName("value"); v != nil {
				p.Default = text(v, content)
				p.DefaultKind = literalKind(v)
			}
			if p.Name != "" {
				params = append(params, p)
			}

		case "list_splat_pattern":
			if name := splatName(child, content); name != "" {
				params = append(params, Param{Name: name, Kind: ParamStar})
			}
		case "dictionary_splat_pattern":
			if name := splatName(child, content); name != "" {
				params = append(params, Param{Name: name, Kind: ParamDoubleStar})
			}
		}
	}
	return params
}

// splatName extracts the identifier from a *args / **kwargs pattern.
func splatName(node *sitter.Node, content []byte) string {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "identifier" {
			return text(child, content)
		}
	}
	return ""
}

// collectSelfAssigns walks a method body (nested blocks included) for
// `self.<name>[: <annot>] = <expr>` statements.
func collectSelfAssigns(body *sitter.Node, content []byte) []*Assignment {
	var assigns []*Assignment

	var walk func(node *sitter.Node)
	walk = func(node *sitter.Node) {
		if node == nil {
			return
		}
		if node.Type() == "assignment" {
			if assign := parseSelfAssignment(node, content); assign != nil {
				assigns = append(assigns, assign)
			}
			return
		}
		// Skip nested defs: their self refers to another receiver.
		if node.Type() == "function_definition" || node.Type() == "class_definition" {
			return
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			walk(node.Child(i))
		}
	}
	walk(body)
	return assigns
}

// parseSelfAssignment returns the attribute record for a `self.x`
// assignment, or nil when the target is anything else.
func parseSelfAssignment(node *sitter.Node, content []byte) *Assignment {
	left := node.ChildByFieldName("left")
	if left == nil || left.Type() != "attribute" {
		return nil
	}
	object := left.ChildByFieldName("object")
	attr := left.ChildByFieldName("attribute")
	if object == nil || attr == nil {
		return nil
	}
	if object.Type() != "identifier" || text(object, content) != "self" {
		return nil
	}

	assign := &Assignment{
		Name: text(attr, content),
		Line: int(node.StartPoint().Row + 1),
	}
	if t := node.ChildByFieldName("type"); t != nil {
		assign.Annotation = strings.TrimSpace(text(t, content))
	}
	if right := node.ChildByFieldName("right"); right != nil {
		assign.Value = text(right, content)
		assign.ValueKind = literalKind(right)
	}
	return assign
}

// parseAssignment returns the record for a simple `name[: annot][= value]`
// binding, or nil for tuple targets and attribute targets.
func parseAssignment(node *sitter.Node, content []byte) *Assignment {
	left := node.ChildByFieldName("left")
	if left == nil || left.Type() != "identifier" {
		return nil
	}

	assign := &Assignment{
		Name: text(left, content),
		Line: int(node.StartPoint().Row + 1),
	}
	if t := node.ChildByFieldName("type"); t != nil {
		assign.Annotation = strings.TrimSpace(text(t, content))
	}
	if right := node.ChildByFieldName("right"); right != nil {
		assign.Value = text(right, content)
		assign.ValueKind = literalKind(right)
	}
	return assign
}

// parseTypeVar recognizes `X = TypeVar("X", ..., bound=Y)` assignments.
func parseTypeVar(node *sitter.Node, lhsName string, content []byte) (TypeVarDecl, bool) {
	right := node.ChildByFieldName("right")
	if right == nil || right.Type() != "call" {
		return TypeVarDecl{}, false
	}
	fn := right.ChildByFieldName("function")
	if fn == nil {
		return TypeVarDecl{}, false
	}
	fnText := text(fn, content)
	if fnText != "TypeVar" && !strings.HasSuffix(fnText, ".TypeVar") {
		return TypeVarDecl{}, false
	}

	decl := TypeVarDecl{
		Name: lhsName,
		Line: int(node.StartPoint().Row + 1),
	}

	args := right.ChildByFieldName("arguments")
	if args == nil {
		return decl, true
	}
	sawName := false
	for i := 0; i < int(args.ChildCount()); i++ {
		child := args.Child(i)
		switch child.Type() {
		case "string":
			if !sawName {
				sawName = true
				continue
			}
			decl.Constraints = append(decl.Constraints, strings.Trim(text(child, content), `"'`))
		case "keyword_argument":
			key, value := parseKeywordArgument(child, content)
			if key == "bound" {
				decl.Bound = strings.Trim(value, `"'`)
			}
		case "(", ")", ",":
		default:
			if sawName {
				decl.Constraints = append(decl.Constraints, text(child, content))
			}
		}
	}
	return decl, true
}

// parseDecorators extracts decorator expressions from a
// decorated_definition node, keeping dotted names and call targets.
func parseDecorators(node *sitter.Node, content []byte) []string {
	var decorators []string

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != "decorator" {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			gc := child.Child(j)
			switch gc.Type() {
			case "identifier", "attribute":
				decorators = append(decorators, text(gc, content))
			case "call":
				if fn := gc.ChildByFieldName("function"); fn != nil {
					decorators = append(decorators, text(fn, content))
				}
			}
		}
	}
	return decorators
}

// blockDocstring returns the docstring when the block's first statement
// is a bare string literal.
func blockDocstring(block *sitter.Node, content []byte) string {
	for i := 0; i < int(block.ChildCount()); i++ {
		child := block.Child(i)
		if child.Type() == "comment" {
			continue
		}
		if child.Type() != "expression_statement" || child.ChildCount() == 0 {
			return ""
		}
		str := child.Child(0)
		if str.Type() != "string" {
			return ""
		}
		return strings.Trim(text(str, content), `"'`)
	}
	return ""
}

// literalKind classifies a value node for default rendering.
func literalKind(node *sitter.Node) LiteralKind {
	switch node.Type() {
	case "none":
		return LiteralNone
	case "string", "concatenated_string":
		return LiteralString
	case "integer":
		return LiteralInt
	case "float":
		return LiteralFloat
	case "true", "false":
		return LiteralBool
	case "unary_operator":
		// Negative numeric literals: -1, -2.5.
		for i := 0; i < int(node.ChildCount()); i++ {
			switch node.Child(i).Type() {
			case "integer":
				return LiteralInt
			case "float":
				return LiteralFloat
			}
		}
		return LiteralOther
	default:
		return LiteralOther
	}
}

// trailingName returns the last dotted component of an expression.
func trailingName(expr string) string {
	if idx := strings.LastIndex(expr, "."); idx >= 0 {
		return expr[idx+1:]
	}
	return expr
}

func text(node *sitter.Node, content []byte) string {
	return string(content[node.StartByte():node.EndByte()])
}
