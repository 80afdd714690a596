/*
Copyright 2026 The HLQL Compiler Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package memfrontend is a small, in-memory stand-in for the four
// external collaborators internal/frontend declares: it classifies
// statements by their leading keyword rather than running a real
// grammar, and compiles queries by pattern-matching their text rather
// than resolving a real schema. It exists to make internal/compiler
// testable and demoable without a real parser or query planner.
package memfrontend

import (
	"strings"

	"github.com/dbplatform/hlqlcompiler/internal/ast"
	"github.com/dbplatform/hlqlcompiler/internal/frontend"
	"github.com/dbplatform/hlqlcompiler/internal/vterrors"
)

// Parser is a keyword-prefix statement classifier.
type Parser struct{}

var _ frontend.Parser = Parser{}

// ParseBlock splits source on top-level semicolons and classifies each
// statement into the closed ast.Node set.
func (Parser) ParseBlock(source string) ([]ast.Node, error) {
	var nodes []ast.Node
	line := 1
	for _, stmt := range splitStatements(source) {
		trimmed := strings.TrimSpace(stmt.text)
		if trimmed == "" {
			line += strings.Count(stmt.text, "\n")
			continue
		}
		ctx := ast.SourceContext{Line: line, Text: trimmed}
		node, err := classify(trimmed, ctx)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
		line += strings.Count(stmt.text, "\n") + 1
	}
	return nodes, nil
}

type rawStatement struct{ text string }

// splitStatements performs a brace-depth-aware split on ';': a
// semicolon inside {...} (a migration or SDL body) does not end the
// statement. It does not understand string or dollar-quoting, which
// is acceptable for a stand-in whose callers control the input.
func splitStatements(source string) []rawStatement {
	var out []rawStatement
	depth := 0
	start := 0
	for i, r := range source {
		switch r {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		case ';':
			if depth == 0 {
				out = append(out, rawStatement{text: source[start:i]})
				start = i + 1
			}
		}
	}
	if start < len(source) {
		out = append(out, rawStatement{text: source[start:]})
	}
	return out
}

func upperFields(s string) []string {
	return strings.Fields(strings.ToUpper(s))
}

func hasPrefixWords(s string, words ...string) bool {
	f := upperFields(s)
	if len(f) < len(words) {
		return false
	}
	for i, w := range words {
		if f[i] != w {
			return false
		}
	}
	return true
}

func classify(text string, ctx ast.SourceContext) (ast.Node, error) {
	switch {
	case hasPrefixWords(text, "START", "TRANSACTION"), hasPrefixWords(text, "BEGIN"):
		cmd := &ast.TxControlCommand{Ctx: ctx, Action: ast.TxStart}
		upper := strings.ToUpper(text)
		switch {
		case strings.Contains(upper, "ISOLATION SERIALIZABLE"):
			cmd.Isolation = ast.IsolationSerializable
		case strings.Contains(upper, "ISOLATION REPEATABLE READ"):
			cmd.Isolation = ast.IsolationRepeatableRead
		}
		cmd.ReadOnly = strings.Contains(upper, "READ ONLY")
		cmd.Deferrable = strings.Contains(upper, "DEFERRABLE") && !strings.Contains(upper, "NOT DEFERRABLE")
		return cmd, nil

	case hasPrefixWords(text, "COMMIT", "MIGRATION"):
		return &ast.MigrationCommand{Ctx: ctx, Action: ast.MigrationCommit}, nil
	case hasPrefixWords(text, "COMMIT"):
		return &ast.TxControlCommand{Ctx: ctx, Action: ast.TxCommit}, nil

	case hasPrefixWords(text, "ROLLBACK", "TO", "SAVEPOINT"):
		return &ast.TxControlCommand{Ctx: ctx, Action: ast.TxRollbackToSavepoint, SavepointName: lastWord(text)}, nil
	case hasPrefixWords(text, "ROLLBACK"):
		return &ast.TxControlCommand{Ctx: ctx, Action: ast.TxRollback}, nil

	case hasPrefixWords(text, "DECLARE", "SAVEPOINT"):
		return &ast.TxControlCommand{Ctx: ctx, Action: ast.TxDeclareSavepoint, SavepointName: lastWord(text)}, nil
	case hasPrefixWords(text, "RELEASE", "SAVEPOINT"):
		return &ast.TxControlCommand{Ctx: ctx, Action: ast.TxReleaseSavepoint, SavepointName: lastWord(text)}, nil

	case hasPrefixWords(text, "SET", "MODULE"):
		return &ast.SessionSetCommand{Ctx: ctx, Action: ast.SessionSetModule, ModuleName: lastWord(text)}, nil
	case hasPrefixWords(text, "SET", "ALIAS"):
		return parseSetAlias(text, ctx)
	case hasPrefixWords(text, "RESET", "MODULE"):
		return &ast.SessionSetCommand{Ctx: ctx, Action: ast.SessionResetModule}, nil
	case hasPrefixWords(text, "RESET", "ALIAS"):
		return &ast.SessionSetCommand{Ctx: ctx, Action: ast.SessionResetAlias, AliasName: lastWord(text)}, nil

	case hasPrefixWords(text, "CONFIGURE"):
		return parseConfigure(text, ctx)

	case hasPrefixWords(text, "START", "MIGRATION", "TO"):
		return &ast.MigrationCommand{Ctx: ctx, Action: ast.MigrationStart, TargetSDL: sdlBody(text)}, nil
	case hasPrefixWords(text, "START", "MIGRATION", "REWRITE"):
		return &ast.MigrationCommand{Ctx: ctx, Action: ast.MigrationStartRewrite}, nil
	case hasPrefixWords(text, "POPULATE", "MIGRATION"):
		return &ast.MigrationCommand{Ctx: ctx, Action: ast.MigrationPopulate}, nil
	case hasPrefixWords(text, "DESCRIBE", "CURRENT", "MIGRATION", "AS", "DDL"):
		return &ast.MigrationCommand{Ctx: ctx, Action: ast.MigrationDescribeDDL}, nil
	case hasPrefixWords(text, "DESCRIBE", "CURRENT", "MIGRATION", "AS", "JSON"):
		return &ast.MigrationCommand{Ctx: ctx, Action: ast.MigrationDescribeJSON}, nil
	case hasPrefixWords(text, "ALTER", "CURRENT", "MIGRATION", "REJECT", "PROPOSED"):
		return &ast.MigrationCommand{Ctx: ctx, Action: ast.MigrationAlterRejectProposed}, nil
	case hasPrefixWords(text, "ABORT", "MIGRATION"):
		return &ast.MigrationCommand{Ctx: ctx, Action: ast.MigrationAbort}, nil
	case hasPrefixWords(text, "CREATE", "MIGRATION"):
		return &ast.MigrationCommand{Ctx: ctx, Action: ast.MigrationCreateDirect, TargetSDL: sdlBody(text)}, nil
	case hasPrefixWords(text, "DROP", "MIGRATION"):
		return &ast.MigrationCommand{Ctx: ctx, Action: ast.MigrationDrop, MigrationID: lastWord(text)}, nil

	case hasPrefixWords(text, "CREATE", "DATABASE"):
		return &ast.DDLCommand{Ctx: ctx, Action: ast.DDLCreateDatabase, Text: text}, nil
	case hasPrefixWords(text, "DROP", "DATABASE"):
		return &ast.DDLCommand{Ctx: ctx, Action: ast.DDLDropDatabase, Text: text}, nil
	case hasPrefixWords(text, "CREATE", "ROLE"), hasPrefixWords(text, "CREATE", "SUPERUSER", "ROLE"):
		return &ast.DDLCommand{Ctx: ctx, Action: ast.DDLCreateRole, Text: text}, nil
	case hasPrefixWords(text, "ALTER", "ROLE"):
		return &ast.DDLCommand{Ctx: ctx, Action: ast.DDLAlterRole, Text: text}, nil
	case hasPrefixWords(text, "DROP", "ROLE"):
		return &ast.DDLCommand{Ctx: ctx, Action: ast.DDLDropRole, Text: text}, nil
	case hasPrefixWords(text, "CREATE"):
		return &ast.DDLCommand{Ctx: ctx, Action: ast.DDLCreate, Text: text}, nil
	case hasPrefixWords(text, "ALTER"):
		return &ast.DDLCommand{Ctx: ctx, Action: ast.DDLAlter, Text: text}, nil
	case hasPrefixWords(text, "DROP"):
		return &ast.DDLCommand{Ctx: ctx, Action: ast.DDLDrop, Text: text}, nil

	default:
		q := &ast.Query{Ctx: ctx, Text: text}
		if strings.Contains(strings.ToUpper(text), "LIMIT 1") {
			q.ExpectedOne = true
		}
		return q, nil
	}
}

func lastWord(text string) string {
	f := strings.Fields(text)
	if len(f) == 0 {
		return ""
	}
	return strings.Trim(f[len(f)-1], "\"'")
}

func parseSetAlias(text string, ctx ast.SourceContext) (ast.Node, error) {
	// SET ALIAS <name> AS MODULE <module>
	f := strings.Fields(text)
	if len(f) < 5 {
		return nil, vterrors.QueryErrorAt(vterrors.Context{Line: ctx.Line, Text: ctx.Text}, "malformed SET ALIAS statement")
	}
	return &ast.SessionSetCommand{Ctx: ctx, Action: ast.SessionSetAlias, AliasName: f[2], ModuleName: f[len(f)-1]}, nil
}

func parseConfigure(text string, ctx ast.SourceContext) (ast.Node, error) {
	f := strings.Fields(text)
	if len(f) < 4 {
		return nil, vterrors.QueryErrorAt(vterrors.Context{Line: ctx.Line, Text: ctx.Text}, "malformed CONFIGURE statement")
	}
	cmd := &ast.ConfigureCommand{Ctx: ctx}
	switch strings.ToUpper(f[1]) {
	case "SESSION":
		cmd.Scope = ast.ConfigureSession
	case "DATABASE":
		cmd.Scope = ast.ConfigureDatabase
	case "SYSTEM":
		cmd.Scope = ast.ConfigureSystem
	case "GLOBAL":
		cmd.Scope = ast.ConfigureGlobal
	default:
		return nil, vterrors.QueryErrorAt(vterrors.Context{Line: ctx.Line, Text: ctx.Text}, "unknown CONFIGURE scope %q", f[1])
	}
	switch strings.ToUpper(f[2]) {
	case "SET":
		cmd.Action = ast.ConfigureSet
		cmd.Setting = f[3]
		if idx := strings.Index(text, ":="); idx >= 0 {
			cmd.ValueText = strings.TrimSpace(text[idx+2:])
		}
	case "RESET":
		cmd.Action = ast.ConfigureReset
		cmd.Setting = f[3]
	case "INSERT":
		cmd.Action = ast.ConfigureInsert
		cmd.Setting = f[3]
		if idx := strings.Index(text, ":="); idx >= 0 {
			cmd.ValueText = strings.TrimSpace(text[idx+2:])
		}
	default:
		return nil, vterrors.QueryErrorAt(vterrors.Context{Line: ctx.Line, Text: ctx.Text}, "unknown CONFIGURE action %q", f[2])
	}
	return cmd, nil
}

// sdlBody extracts the text between the first '{' and the last '}' in
// text, used for START MIGRATION TO {...} and CREATE MIGRATION {...}.
func sdlBody(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < 0 || end <= start {
		return ""
	}
	return strings.TrimSpace(text[start+1 : end])
}
