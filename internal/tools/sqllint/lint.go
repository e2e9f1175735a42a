package main

import (
	"go/ast"
	"go/parser"
	"go/token"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var sqlStatementPattern = regexp.MustCompile(`(?is)^\s*(select|insert|update|delete|with|create|alter|drop)\b`)

// validMarker accepts "--sql " followed by a lowercase canonical uuid.
func validMarker(marker string) bool {
	id, ok := strings.CutPrefix(marker, "--sql ")
	if !ok || len(id) != 36 {
		return false
	}
	parsed, err := uuid.Parse(id)
	return err == nil && parsed.String() == id
}

type violation struct {
	file    string
	name    string
	line    int
	message string
}

type linter struct {
	seen       map[string]string
	violations []violation
}

func newLinter() *linter {
	return &linter{seen: make(map[string]string)}
}

func (l *linter) lintFile(path string) error {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
	if err != nil {
		return err
	}
	l.lintAST(fset, path, file)
	return nil
}

func (l *linter) lintAST(fset *token.FileSet, path string, file *ast.File) {
	ast.Inspect(file, func(n ast.Node) bool {
		vs, ok := n.(*ast.ValueSpec)
		if !ok {
			return true
		}
		for i, value := range vs.Values {
			bl, ok := value.(*ast.BasicLit)
			if !ok || bl.Kind != token.STRING {
				continue
			}
			raw, err := unquote(bl.Value)
			if err != nil {
				continue
			}
			name := ""
			if i < len(vs.Names) && vs.Names[i] != nil {
				name = vs.Names[i].Name
			}
			l.check(fset.Position(bl.Pos()), path, name, raw)
		}
		return true
	})
}

// check flags a literal that reads as SQL, either directly or after its
// first line, and has no valid or a duplicated marker.
func (l *linter) check(pos token.Position, path, name, raw string) {
	marker := firstLine(raw)
	body := strings.TrimPrefix(strings.TrimLeft(raw, "\n\r \t"), marker)
	hasMarkerShape := strings.HasPrefix(marker, "--sql")
	if !hasMarkerShape && !sqlStatementPattern.MatchString(raw) {
		return
	}
	if hasMarkerShape && !sqlStatementPattern.MatchString(body) {
		return
	}
	if !validMarker(marker) {
		l.report(pos, path, name, "missing or invalid --sql <uuid> marker")
		return
	}
	if prev, dup := l.seen[marker]; dup {
		l.report(pos, path, name, "marker already used by "+prev)
		return
	}
	l.seen[marker] = name
}

func (l *linter) report(pos token.Position, path, name, msg string) {
	l.violations = append(l.violations, violation{file: path, line: pos.Line, name: name, message: msg})
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, "\n\r \t")
	if idx := strings.IndexAny(s, "\n\r"); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}

func unquote(v string) (string, error) {
	if len(v) == 0 {
		return v, nil
	}
	if v[0] == '`' {
		return v[1 : len(v)-1], nil
	}
	return strconv.Unquote(v)
}
