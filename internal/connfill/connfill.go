// Package connfill rewrites data-access functions that take an optional
// connection into functions that fall back to a resolver when the caller
// supplies none.
//
// A template file is excluded from normal builds with //go:build connfill.
// Each function to rewrite carries a doc directive naming the resolver:
//
//	//connfill:resolve r.conns
//	func (r *TaskRepository) Get(ctx context.Context, db dbconn.Optional[Querier], id string) (*domain.Task, error) {
//		row := db.QueryRow(ctx, selectTask, id)
//		...
//	}
//
// Inside the template body the optional parameter is used as the connection
// itself. The generated function runs the body with the supplied connection
// when present and otherwise borrows one through the resolver's Acquire
// method, returning its error before any body statement runs.
//
// A second directive adds an entry log with the function's parameters,
// excluding the context and the connection:
//
//	//connfill:log r.logger debug
package connfill

import (
	"errors"
	"fmt"
	"go/ast"
	"go/build/constraint"
	"go/parser"
	"go/token"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/tools/imports"
)

const (
	// BuildTag keeps templates out of normal builds.
	BuildTag = "connfill"
	// Directive marks a function for rewriting and is followed by the
	// resolver expression.
	Directive = "//connfill:resolve"
	// LogDirective is followed by a *zap.Logger expression and an optional
	// level (debug, info, warn or error; debug when omitted).
	LogDirective = "//connfill:log"
	// Header opens every generated file.
	Header = "// Code generated by connfill. DO NOT EDIT."

	dbconnPackage = "dbconn"
	optionalName  = "Optional"
	zapPath       = "go.uber.org/zap"
)

var logLevels = map[string]string{
	"debug": "Debug",
	"info":  "Info",
	"warn":  "Warn",
	"error": "Error",
}

// Diagnostic is a build-time rejection of a template or one of its functions.
type Diagnostic struct {
	Pos  token.Position
	Func string
	Msg  string
}

func (d *Diagnostic) Error() string {
	if d.Func == "" {
		return fmt.Sprintf("%s: connfill: %s", d.Pos, d.Msg)
	}
	return fmt.Sprintf("%s: connfill: function %s: %s", d.Pos, d.Func, d.Msg)
}

// OutputName derives the generated file name from a template name:
// task_repo.conn.go becomes task_repo_conn.gen.go.
func OutputName(template string) string {
	if base, ok := strings.CutSuffix(template, ".conn.go"); ok {
		return base + "_conn.gen.go"
	}
	return strings.TrimSuffix(template, ".go") + "_gen.go"
}

// Generate rewrites the template src and returns the formatted output. All
// diagnostics are collected and returned joined.
func Generate(filename string, src []byte) ([]byte, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("connfill: parse %s: %w", filename, err)
	}

	g := newGenerator(fset, src, file)
	edits, diags := g.run()
	if len(diags) > 0 {
		return nil, errors.Join(diags...)
	}

	out := Header + "\n\n" + applyEdits(src, edits)
	formatted, err := imports.Process(OutputName(filename), []byte(out), &imports.Options{
		Comments:  true,
		TabIndent: true,
		TabWidth:  8,
	})
	if err != nil {
		return nil, fmt.Errorf("connfill: format %s: %w", filename, err)
	}
	return formatted, nil
}

type edit struct {
	start, end int
	text       string
}

func applyEdits(src []byte, edits []edit) string {
	sort.Slice(edits, func(i, j int) bool { return edits[i].start < edits[j].start })
	var b strings.Builder
	last := 0
	for _, e := range edits {
		b.Write(src[last:e.start])
		b.WriteString(e.text)
		last = e.end
	}
	b.Write(src[last:])
	return b.String()
}

type generator struct {
	fset *token.FileSet
	src  []byte
	file *ast.File

	// qualifier is the local name of the dbconn import; local is set when
	// the template itself belongs to package dbconn.
	qualifier string
	local     bool
	context   string
	// zap is the local name of the zap import, empty when the template does
	// not import it.
	zap string
}

type entryLog struct {
	logger string
	method string
}

func newGenerator(fset *token.FileSet, src []byte, file *ast.File) *generator {
	g := &generator{fset: fset, src: src, file: file}
	g.local = file.Name.Name == dbconnPackage
	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		name := path[strings.LastIndex(path, "/")+1:]
		if imp.Name != nil {
			name = imp.Name.Name
		}
		switch {
		case path == "context":
			g.context = name
		case strings.HasSuffix(path, "/"+dbconnPackage):
			g.qualifier = name
		case path == zapPath && name != "_" && name != ".":
			g.zap = name
		}
	}
	if g.context == "" {
		g.context = "context"
	}
	return g
}

func (g *generator) offset(p token.Pos) int {
	return g.fset.Position(p).Offset
}

func (g *generator) text(from, to token.Pos) string {
	return string(g.src[g.offset(from):g.offset(to)])
}

func (g *generator) diag(p token.Pos, fn, format string, args ...interface{}) error {
	return &Diagnostic{Pos: g.fset.Position(p), Func: fn, Msg: fmt.Sprintf(format, args...)}
}

func (g *generator) run() ([]edit, []error) {
	var (
		edits   []edit
		diags   []error
		needZap bool
	)

	constraintEdits, err := g.buildConstraint()
	if err != nil {
		diags = append(diags, err)
	}
	edits = append(edits, constraintEdits...)

	rewritten := 0
	for _, decl := range g.file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok {
			continue
		}
		resolver, found, err := g.directive(fn)
		if err != nil {
			diags = append(diags, err)
			continue
		}
		logged, err := g.logDirective(fn)
		if err != nil {
			diags = append(diags, err)
			continue
		}
		if !found {
			if logged != nil {
				diags = append(diags, g.diag(fn.Name.Pos(), funcName(fn), "%s requires %s", LogDirective, Directive))
			}
			continue
		}
		e, errs := g.rewrite(fn, resolver, logged)
		if len(errs) > 0 {
			diags = append(diags, errs...)
			continue
		}
		edits = append(edits, e)
		rewritten++
		needZap = needZap || logged != nil
	}

	if rewritten == 0 && len(diags) == 0 {
		diags = append(diags, g.diag(g.file.Package, "", "no function carries %s", Directive))
	}
	if needZap && g.zap == "" {
		edits = append(edits, g.zapImport())
	}
	return edits, diags
}

// zapImport returns the edit adding the zap import. It joins the first group
// of non-standard imports, or gets a group of its own.
func (g *generator) zapImport() edit {
	path := strconv.Quote(zapPath)
	for _, decl := range g.file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.IMPORT || !gen.Lparen.IsValid() {
			continue
		}
		for _, spec := range gen.Specs {
			imp := spec.(*ast.ImportSpec)
			if strings.Contains(imp.Path.Value, ".") {
				at := g.offset(imp.Pos())
				return edit{start: at, end: at, text: path + "\n"}
			}
		}
		at := g.offset(gen.Rparen)
		return edit{start: at, end: at, text: "\n" + path + "\n"}
	}
	at := g.offset(g.file.Name.End())
	return edit{start: at, end: at, text: "\n\nimport " + path}
}

func (g *generator) zapName() string {
	if g.zap == "" {
		return "zap"
	}
	return g.zap
}

// buildConstraint returns the edits removing the connfill constraint lines.
func (g *generator) buildConstraint() ([]edit, error) {
	var (
		edits []edit
		found bool
	)
	for _, cg := range g.file.Comments {
		if cg.Pos() >= g.file.Package {
			break
		}
		for _, c := range cg.List {
			if !constraint.IsGoBuild(c.Text) && !constraint.IsPlusBuild(c.Text) {
				continue
			}
			expr, err := constraint.Parse(c.Text)
			if err != nil || !mentionsTag(expr, BuildTag) {
				continue
			}
			if constraint.IsGoBuild(c.Text) {
				tag, ok := expr.(*constraint.TagExpr)
				if !ok || tag.Tag != BuildTag {
					return nil, g.diag(c.Pos(), "", "build constraint must be exactly //go:build %s", BuildTag)
				}
				found = true
			}
			start, end := g.offset(c.Pos()), g.offset(c.End())
			if end < len(g.src) && g.src[end] == '\n' {
				end++
			}
			edits = append(edits, edit{start: start, end: end})
		}
	}
	if !found {
		return nil, g.diag(g.file.Package, "", "template is missing the //go:build %s constraint", BuildTag)
	}
	return edits, nil
}

func mentionsTag(expr constraint.Expr, tag string) bool {
	switch x := expr.(type) {
	case *constraint.TagExpr:
		return x.Tag == tag
	case *constraint.NotExpr:
		return mentionsTag(x.X, tag)
	case *constraint.AndExpr:
		return mentionsTag(x.X, tag) || mentionsTag(x.Y, tag)
	case *constraint.OrExpr:
		return mentionsTag(x.X, tag) || mentionsTag(x.Y, tag)
	}
	return false
}

func hasDirective(text, directive string) bool {
	if !strings.HasPrefix(text, directive) {
		return false
	}
	rest := text[len(directive):]
	return rest == "" || rest[0] == ' ' || rest[0] == '\t'
}

// directive returns the resolver expression of fn's directive, if any.
func (g *generator) directive(fn *ast.FuncDecl) (string, bool, error) {
	if fn.Doc == nil {
		return "", false, nil
	}
	var (
		resolver string
		found    bool
	)
	for _, c := range fn.Doc.List {
		if !hasDirective(c.Text, Directive) {
			continue
		}
		if found {
			return "", true, g.diag(c.Pos(), funcName(fn), "duplicate %s directive", Directive)
		}
		found = true
		resolver = strings.TrimSpace(c.Text[len(Directive):])
		if resolver == "" {
			return "", true, g.diag(c.Pos(), funcName(fn), "%s needs a resolver expression", Directive)
		}
		if _, err := parser.ParseExpr(resolver); err != nil {
			return "", true, g.diag(c.Pos(), funcName(fn), "resolver %q is not an expression: %v", resolver, err)
		}
	}
	return resolver, found, nil
}

// logDirective returns the entry log requested in fn's doc, if any.
func (g *generator) logDirective(fn *ast.FuncDecl) (*entryLog, error) {
	if fn.Doc == nil {
		return nil, nil
	}
	var spec *entryLog
	for _, c := range fn.Doc.List {
		if !hasDirective(c.Text, LogDirective) {
			continue
		}
		if spec != nil {
			return nil, g.diag(c.Pos(), funcName(fn), "duplicate %s directive", LogDirective)
		}
		args := strings.Fields(c.Text[len(LogDirective):])
		if len(args) == 0 || len(args) > 2 {
			return nil, g.diag(c.Pos(), funcName(fn), "%s takes a logger expression and an optional level", LogDirective)
		}
		if _, err := parser.ParseExpr(args[0]); err != nil {
			return nil, g.diag(c.Pos(), funcName(fn), "logger %q is not an expression: %v", args[0], err)
		}
		level := "debug"
		if len(args) == 2 {
			level = args[1]
		}
		method, ok := logLevels[level]
		if !ok {
			return nil, g.diag(c.Pos(), funcName(fn), "unknown log level %q", level)
		}
		spec = &entryLog{logger: args[0], method: method}
	}
	return spec, nil
}

func funcName(fn *ast.FuncDecl) string {
	if fn.Recv == nil || len(fn.Recv.List) == 0 {
		return fn.Name.Name
	}
	typ := fn.Recv.List[0].Type
	for {
		switch t := typ.(type) {
		case *ast.StarExpr:
			typ = t.X
			continue
		case *ast.IndexExpr:
			typ = t.X
			continue
		case *ast.IndexListExpr:
			typ = t.X
			continue
		case *ast.Ident:
			return t.Name + "." + fn.Name.Name
		}
		return fn.Name.Name
	}
}

func (g *generator) isOptional(expr ast.Expr) bool {
	idx, ok := expr.(*ast.IndexExpr)
	if !ok {
		return false
	}
	switch x := idx.X.(type) {
	case *ast.SelectorExpr:
		pkg, ok := x.X.(*ast.Ident)
		return ok && g.qualifier != "" && pkg.Name == g.qualifier && x.Sel.Name == optionalName
	case *ast.Ident:
		return g.local && x.Name == optionalName
	}
	return false
}

func (g *generator) isContext(expr ast.Expr) bool {
	sel, ok := expr.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	pkg, ok := sel.X.(*ast.Ident)
	return ok && pkg.Name == g.context && sel.Sel.Name == "Context"
}

func (g *generator) rewrite(fn *ast.FuncDecl, resolver string, log *entryLog) (edit, []error) {
	name := funcName(fn)
	var diags []error
	fail := func(p token.Pos, format string, args ...interface{}) {
		diags = append(diags, g.diag(p, name, format, args...))
	}

	// The connection parameter.
	var (
		conn     *ast.Ident
		optCount int
		ctxExpr  string
	)
	for _, field := range fn.Type.Params.List {
		if g.isOptional(field.Type) {
			optCount += max(len(field.Names), 1)
			switch {
			case len(field.Names) != 1:
				fail(field.Pos(), "the %s.%s parameter must be declared on its own", dbconnPackage, optionalName)
			case field.Names[0].Name == "_":
				fail(field.Pos(), "the %s.%s parameter needs a name", dbconnPackage, optionalName)
			default:
				conn = field.Names[0]
			}
			continue
		}
		if ctxExpr == "" && g.isContext(field.Type) {
			for _, n := range field.Names {
				if n.Name != "_" {
					ctxExpr = n.Name
					break
				}
			}
		}
	}
	switch {
	case optCount == 0:
		fail(fn.Name.Pos(), "no parameter of type %s.%s[C]", dbconnPackage, optionalName)
	case optCount > 1:
		fail(fn.Name.Pos(), "more than one %s.%s parameter", dbconnPackage, optionalName)
	}

	// Results: the last one must be error.
	var resultTypes []string
	if fn.Type.Results != nil {
		for _, field := range fn.Type.Results.List {
			typ := g.text(field.Type.Pos(), field.Type.End())
			for i := 0; i < max(len(field.Names), 1); i++ {
				resultTypes = append(resultTypes, typ)
			}
		}
	}
	if len(resultTypes) == 0 {
		fail(fn.Name.Pos(), "must return error as its last result")
	} else if last := fn.Type.Results.List[len(fn.Type.Results.List)-1]; !isErrorType(last.Type) {
		fail(last.Type.Pos(), "last result must be error, found %s", resultTypes[len(resultTypes)-1])
	}

	// Body shape.
	switch {
	case fn.Body == nil || len(fn.Body.List) == 0:
		fail(fn.Name.Pos(), "body is empty")
	default:
		if _, ok := fn.Body.List[len(fn.Body.List)-1].(*ast.ReturnStmt); !ok {
			fail(fn.Body.Rbrace, "body must end in a return statement")
		}
		ast.Inspect(fn.Body, func(n ast.Node) bool {
			if l, ok := n.(*ast.LabeledStmt); ok {
				fail(l.Pos(), "labeled statement %s cannot appear in both branches", l.Label.Name)
			}
			return true
		})
		if conn != nil && !usesIdent(fn.Body, conn.Name) {
			fail(conn.Pos(), "connection parameter %s is never used in the body", conn.Name)
		}
	}

	names := collectIdents(fn, resolver)
	if log != nil && g.zap == "" && names["zap"] {
		fail(fn.Name.Pos(), "identifier zap would shadow the zap import needed by %s", LogDirective)
	}

	if len(diags) > 0 {
		return edit{}, diags
	}

	ok := names.fresh("ok")
	resolved := names.fresh("resolved")
	release := names.fresh("release")
	resolveErr := names.fresh("resolveErr")
	zeros := make([]string, len(resultTypes)-1)
	for i := range zeros {
		zeros[i] = names.fresh("r" + strconv.Itoa(i))
	}
	if ctxExpr == "" {
		ctxExpr = g.context + ".Background()"
	}

	body := g.text(fn.Body.Lbrace+1, fn.Body.Rbrace)
	db := conn.Name

	var b strings.Builder
	if fn.Doc != nil {
		var doc []string
		for _, c := range fn.Doc.List {
			if !hasDirective(c.Text, Directive) && !hasDirective(c.Text, LogDirective) {
				doc = append(doc, c.Text)
			}
		}
		// Drop the blank comment line that separated the directive.
		for len(doc) > 0 && doc[len(doc)-1] == "//" {
			doc = doc[:len(doc)-1]
		}
		for _, line := range doc {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	b.WriteString(g.text(fn.Pos(), fn.Body.Lbrace))
	b.WriteString("{\n")
	if log != nil {
		fmt.Fprintf(&b, "%s.%s(%s)\n", log.logger, log.method, strings.Join(g.logFields(fn, name), ", "))
	}
	fmt.Fprintf(&b, "if %s, %s := %s.Get(); %s {%s}\n", db, ok, db, ok, body)
	fmt.Fprintf(&b, "%s, %s, %s := %s.Acquire(%s)\n", resolved, release, resolveErr, resolver, ctxExpr)
	fmt.Fprintf(&b, "if %s != nil {\n", resolveErr)
	for i, z := range zeros {
		fmt.Fprintf(&b, "var %s %s\n", z, resultTypes[i])
	}
	fmt.Fprintf(&b, "return %s\n}\n", strings.Join(append(zeros, resolveErr), ", "))
	fmt.Fprintf(&b, "defer %s()\n", release)
	fmt.Fprintf(&b, "{\n%s := %s\n%s}\n}", db, resolved, strings.TrimLeft(body, "\r\n"))

	start := fn.Pos()
	if fn.Doc != nil {
		start = fn.Doc.Pos()
	}
	return edit{start: g.offset(start), end: g.offset(fn.End()), text: b.String()}, nil
}

// logFields returns the message and one zap field per named parameter other
// than the context and the connection.
func (g *generator) logFields(fn *ast.FuncDecl, name string) []string {
	fields := []string{strconv.Quote(name)}
	for _, field := range fn.Type.Params.List {
		if g.isOptional(field.Type) || g.isContext(field.Type) {
			continue
		}
		for _, n := range field.Names {
			if n.Name != "_" {
				fields = append(fields, fmt.Sprintf("%s.Any(%q, %s)", g.zapName(), n.Name, n.Name))
			}
		}
	}
	return fields
}

func isErrorType(expr ast.Expr) bool {
	id, ok := expr.(*ast.Ident)
	return ok && id.Name == "error"
}

// usesIdent reports whether name is referenced as a value under node. Field
// selectors and keys of non-map composite literals name fields, not
// variables, and do not count.
func usesIdent(node ast.Node, name string) bool {
	used := false
	var visit func(n ast.Node) bool
	visit = func(n ast.Node) bool {
		if used {
			return false
		}
		switch x := n.(type) {
		case *ast.Ident:
			used = x.Name == name
		case *ast.SelectorExpr:
			ast.Inspect(x.X, visit)
			return false
		case *ast.CompositeLit:
			if x.Type != nil {
				ast.Inspect(x.Type, visit)
			}
			_, isMap := x.Type.(*ast.MapType)
			for _, elt := range x.Elts {
				if kv, ok := elt.(*ast.KeyValueExpr); ok && !isMap {
					ast.Inspect(kv.Value, visit)
					continue
				}
				ast.Inspect(elt, visit)
			}
			return false
		}
		return !used
	}
	ast.Inspect(node, visit)
	return used
}

type nameSet map[string]bool

func collectIdents(fn *ast.FuncDecl, resolver string) nameSet {
	names := nameSet{}
	visit := func(n ast.Node) bool {
		if id, ok := n.(*ast.Ident); ok {
			names[id.Name] = true
		}
		return true
	}
	ast.Inspect(fn, visit)
	if expr, err := parser.ParseExpr(resolver); err == nil {
		ast.Inspect(expr, visit)
	}
	return names
}

// fresh returns base, or base followed by the smallest suffix that does not
// collide, and reserves it.
func (s nameSet) fresh(base string) string {
	sep := ""
	if last := base[len(base)-1]; last >= '0' && last <= '9' {
		sep = "_"
	}
	name := base
	for i := 2; s[name]; i++ {
		name = base + sep + strconv.Itoa(i)
	}
	s[name] = true
	return name
}
