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

package memfrontend

import (
	"fmt"
	"strings"

	"github.com/dbplatform/hlqlcompiler/internal/ast"
	"github.com/dbplatform/hlqlcompiler/internal/frontend"
	"github.com/dbplatform/hlqlcompiler/internal/schema"
	"github.com/dbplatform/hlqlcompiler/internal/vterrors"
)

// SchemaAdapter implements frontend.SchemaAdapter entirely in terms of
// the memschema.Snapshot operations, plus a keyword-token reading of
// DDL text in place of a real DDL compiler (the schema engine itself
// lives outside this module).
type SchemaAdapter struct{}

var _ frontend.SchemaAdapter = SchemaAdapter{}

// ApplyDelta implements frontend.SchemaAdapter.
func (SchemaAdapter) ApplyDelta(base schema.Snapshot, delta *schema.Delta) (schema.Snapshot, error) {
	return base.Apply(delta)
}

// Diff implements frontend.SchemaAdapter.
func (SchemaAdapter) Diff(src, tgt schema.Snapshot, guidance *schema.Guidance) (*schema.Delta, error) {
	return src.Diff(tgt, guidance)
}

// DDLFromDelta implements frontend.SchemaAdapter: it renders a
// human-readable (not necessarily re-parseable) summary of the delta,
// the form DESCRIBE CURRENT MIGRATION AS DDL returns.
func (SchemaAdapter) DDLFromDelta(src, tgt schema.Snapshot, delta *schema.Delta) (string, error) {
	var b strings.Builder
	for _, op := range delta.Ops {
		switch op.Action {
		case schema.ActionCreate:
			fmt.Fprintf(&b, "CREATE %s %s;\n", op.Kind, op.QualifiedName())
		case schema.ActionAlter:
			if op.RenameTo != "" {
				fmt.Fprintf(&b, "ALTER %s %s RENAME TO %s;\n", op.Kind, op.QualifiedName(), op.RenameTo)
			} else {
				fmt.Fprintf(&b, "ALTER %s %s;\n", op.Kind, op.QualifiedName())
			}
		case schema.ActionDrop:
			fmt.Fprintf(&b, "DROP %s %s;\n", op.Kind, op.QualifiedName())
		}
	}
	return b.String(), nil
}

// StatementsFromDelta implements frontend.SchemaAdapter: every op
// becomes a high-confidence proposed step with no required user input,
// except a create of a non-optional-looking field (heuristically, any
// property create without a "default" field), which is flagged as
// needing one.
func (SchemaAdapter) StatementsFromDelta(src, tgt schema.Snapshot, delta *schema.Delta) ([]frontend.ProposedStatement, error) {
	out := make([]frontend.ProposedStatement, 0, len(delta.Ops))
	for _, op := range delta.Ops {
		ps := frontend.ProposedStatement{
			Op:         op,
			Confidence: 1.0,
			DataSafe:   op.Action != schema.ActionDrop,
		}
		switch op.Action {
		case schema.ActionCreate:
			ps.Prompt = fmt.Sprintf("create %s %s?", op.Kind, op.QualifiedName())
			if _, hasDefault := op.Fields["default"]; op.Kind == schema.KindProperty && !hasDefault {
				ps.RequiredUserInput = [][2]string{{"default", fmt.Sprintf("please specify a default value for %s", op.QualifiedName())}}
			}
		case schema.ActionAlter:
			ps.Prompt = fmt.Sprintf("alter %s %s?", op.Kind, op.QualifiedName())
		case schema.ActionDrop:
			ps.Prompt = fmt.Sprintf("drop %s %s?", op.Kind, op.QualifiedName())
			ps.Confidence = 0.5
		}
		out = append(out, ps)
	}
	return out, nil
}

// ApplySDL implements frontend.SchemaAdapter: it reads the SDL body as
// a newline-separated list of "module::name[:field=value,...]"
// declarations and creates any object not already present.
func (SchemaAdapter) ApplySDL(base schema.Snapshot, sdl string) (schema.Snapshot, error) {
	delta := &schema.Delta{}
	for _, line := range strings.Split(sdl, "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line), ";"))
		if line == "" {
			continue
		}
		name := line
		fields := map[string]string{}
		// The field list starts at the first ':' after the "::" separator.
		sep := 0
		if q := strings.Index(line, "::"); q >= 0 {
			sep = q + 2
		}
		if idx := strings.Index(line[sep:], ":"); idx >= 0 {
			idx += sep
			name = line[:idx]
			for _, kv := range strings.Split(line[idx+1:], ",") {
				parts := strings.SplitN(kv, "=", 2)
				if len(parts) == 2 {
					fields[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
				}
			}
		}
		module, objName, err := splitQualifiedName(name)
		if err != nil {
			return nil, err
		}
		if _, exists := base.LookupByQualifiedName(module + "::" + objName); exists {
			continue
		}
		delta.Ops = append(delta.Ops, schema.DeltaOp{
			Action: schema.ActionCreate, Kind: schema.KindObjectType,
			ModuleName: module, Name: objName, Fields: fields,
		})
	}
	return base.Apply(delta)
}

// WriteReflection implements frontend.SchemaAdapter: every op becomes
// one canonical reflection fragment (shared per object kind and
// action, so repeated DDL of the same shape reuses one helper) with
// the op's identity as its arguments.
func (SchemaAdapter) WriteReflection(delta *schema.Delta, snap schema.Snapshot) ([]frontend.ReflectionWrite, error) {
	out := make([]frontend.ReflectionWrite, 0, len(delta.Ops))
	for _, op := range delta.Ops {
		text := fmt.Sprintf(
			"UPDATE schema::Object FILTER .kind = <str>$kind AND .name = <str>$name SET { action := %q }",
			op.Action.String(),
		)
		out = append(out, frontend.ReflectionWrite{
			Text: text,
			Args: []frontend.ReflectionArg{
				{Name: "kind", Value: op.Kind.String()},
				{Name: "name", Value: op.QualifiedName()},
			},
		})
	}
	return out, nil
}

// BuildDeltaFromDDL implements frontend.SchemaAdapter by reading the
// DDL statement's keyword tokens well enough to identify its target
// object kind and qualified name — standing in for a real DDL
// compiler, which lives outside this module.
func (SchemaAdapter) BuildDeltaFromDDL(cmd *ast.DDLCommand, current schema.Snapshot, modaliases map[string]string) (*schema.Delta, error) {
	kind, name, err := parseDDLTarget(cmd)
	if err != nil {
		return nil, err
	}
	module, objName, err := splitQualifiedName(name)
	if err != nil {
		return nil, err
	}
	if alias, ok := modaliases[module]; ok {
		module = alias
	}

	op := schema.DeltaOp{ModuleName: module, Name: objName, Kind: kind}
	switch cmd.Action {
	case ast.DDLCreate, ast.DDLCreateDatabase, ast.DDLCreateRole:
		op.Action = schema.ActionCreate
	case ast.DDLAlter, ast.DDLAlterRole:
		op.Action = schema.ActionAlter
	case ast.DDLDrop, ast.DDLDropDatabase, ast.DDLDropRole:
		op.Action = schema.ActionDrop
	}
	return &schema.Delta{Ops: []schema.DeltaOp{op}}, nil
}

// ReflectionGenerationTag implements frontend.SchemaAdapter: the
// number of objects in the snapshot is a cheap, if imprecise, stand-in
// for a real content hash of the schema's generation.
func (SchemaAdapter) ReflectionGenerationTag(snap schema.Snapshot) string {
	count := 0
	for k := schema.KindModule; k <= schema.KindScalarType; k++ {
		count += len(snap.EnumerateByKind(k))
	}
	return fmt.Sprintf("gen-%d", count)
}

func splitQualifiedName(name string) (module, objName string, err error) {
	parts := strings.SplitN(name, "::", 2)
	if len(parts) != 2 {
		return "default", name, nil
	}
	return parts[0], parts[1], nil
}

func parseDDLTarget(cmd *ast.DDLCommand) (schema.ObjectKind, string, error) {
	f := strings.Fields(cmd.Text)
	switch cmd.Action {
	case ast.DDLCreateDatabase, ast.DDLDropDatabase:
		if len(f) < 3 {
			return 0, "", vterrors.QueryErrorAt(vterrors.Context{Line: cmd.Ctx.Line, Text: cmd.Ctx.Text}, "malformed DATABASE statement")
		}
		return schema.KindDatabase, f[2], nil
	case ast.DDLCreateRole, ast.DDLAlterRole, ast.DDLDropRole:
		if len(f) < 3 {
			return 0, "", vterrors.QueryErrorAt(vterrors.Context{Line: cmd.Ctx.Line, Text: cmd.Ctx.Text}, "malformed ROLE statement")
		}
		return schema.KindRole, f[2], nil
	default:
		// CREATE|ALTER|DROP [ABSTRACT] TYPE|SCALAR TYPE|FUNCTION|MODULE <name> ...
		i := 1
		for i < len(f) && strings.EqualFold(f[i], "ABSTRACT") {
			i++
		}
		if i >= len(f) {
			return 0, "", vterrors.QueryErrorAt(vterrors.Context{Line: cmd.Ctx.Line, Text: cmd.Ctx.Text}, "malformed DDL statement")
		}
		kind := schema.KindObjectType
		switch strings.ToUpper(f[i]) {
		case "SCALAR":
			kind = schema.KindScalarType
			i += 2 // "SCALAR TYPE"
		case "TYPE":
			kind = schema.KindObjectType
			i++
		case "FUNCTION":
			kind = schema.KindFunction
			i++
		case "MODULE":
			kind = schema.KindModule
			i++
		default:
			i++
		}
		if i >= len(f) {
			return 0, "", vterrors.QueryErrorAt(vterrors.Context{Line: cmd.Ctx.Line, Text: cmd.Ctx.Text}, "malformed DDL statement: missing target name")
		}
		return kind, strings.TrimSuffix(f[i], "{"), nil
	}
}
