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

package compiler

import (
	"fmt"

	"github.com/dbplatform/hlqlcompiler/internal/ast"
	"github.com/dbplatform/hlqlcompiler/internal/config"
	"github.com/dbplatform/hlqlcompiler/internal/dbstate"
	"github.com/dbplatform/hlqlcompiler/internal/enums"
	"github.com/dbplatform/hlqlcompiler/internal/queryunit"
	"github.com/dbplatform/hlqlcompiler/internal/schema"
	"github.com/dbplatform/hlqlcompiler/internal/vterrors"
)

// sessionStateTable is the backend table that persists per-connection
// aliases and session config across reconnects, keyed by (name, type).
const sessionStateTable = "_edgecon_state"

// compileSessionSet handles SET/RESET MODULE/ALIAS: it validates the
// module against the current schema, mutates the transaction's
// Modaliases, and emits the matching upsert/delete against the session
// state table so the setting survives a reconnect.
func compileSessionSet(ctx *Context, cmd *ast.SessionSetCommand) (*Result, error) {
	tx := ctx.ConnState.CurrentTx()
	aliases := tx.Current().Modaliases

	var sql []byte
	switch cmd.Action {
	case ast.SessionSetModule:
		if err := validateModule(ctx, cmd, cmd.ModuleName); err != nil {
			return nil, err
		}
		aliases = aliases.Set("", cmd.ModuleName)
		sql = aliasUpsert("", cmd.ModuleName)
	case ast.SessionSetAlias:
		if cmd.AliasName == "" {
			return nil, vterrors.QueryErrorAt(vterrors.Context{Line: cmd.Ctx.Line, Text: cmd.Ctx.Text}, "SET ALIAS requires a name")
		}
		if err := validateModule(ctx, cmd, cmd.ModuleName); err != nil {
			return nil, err
		}
		aliases = aliases.Set(cmd.AliasName, cmd.ModuleName)
		sql = aliasUpsert(cmd.AliasName, cmd.ModuleName)
	case ast.SessionResetModule:
		aliases = aliases.Delete("")
		sql = aliasDelete("")
	case ast.SessionResetAlias:
		aliases = aliases.Delete(cmd.AliasName)
		sql = aliasDelete(cmd.AliasName)
	default:
		return nil, vterrors.InternalErrorf("unknown session set action %d", cmd.Action)
	}

	ctx.ConnState.SetCurrentTx(tx.UpdateModaliases(aliases))

	unit := queryunit.New()
	unit.Capabilities = enums.CapSessionConfig
	if ctx.Bootstrap {
		// The state table doesn't exist yet while the server is
		// bootstrapping; the modalias change is compiler-local.
		unit.SQL = [][]byte{[]byte("-- session modalias change (bootstrap)")}
	} else {
		unit.SQL = [][]byte{sql}
	}
	unit.Modaliases = map[string]string{}
	aliases.ForEach(func(k, v string) bool { unit.Modaliases[k] = v; return true })

	return &Result{Kind: ResultSessionState, SessionState: &SessionStateResult{ModaliasesChanged: true}, Unit: unit}, nil
}

func validateModule(ctx *Context, cmd *ast.SessionSetCommand, module string) error {
	snap := ctx.ConnState.CurrentTx().Current().UserSchema
	for _, o := range snap.EnumerateByKind(schema.KindModule) {
		if o.Name == module {
			return nil
		}
	}
	return vterrors.QueryErrorAt(vterrors.Context{Line: cmd.Ctx.Line, Text: cmd.Ctx.Text}, "module %q does not exist", module)
}

func aliasUpsert(alias, module string) []byte {
	return []byte(fmt.Sprintf(
		"INSERT INTO %s (name, type, value) VALUES (%s, 'A', %s) ON CONFLICT (name, type) DO UPDATE SET value = excluded.value",
		sessionStateTable, quoteLiteral(alias), quoteLiteral(module),
	))
}

func aliasDelete(alias string) []byte {
	return []byte(fmt.Sprintf(
		"DELETE FROM %s WHERE name = %s AND type = 'A'",
		sessionStateTable, quoteLiteral(alias),
	))
}

// compileConfigure handles CONFIGURE statements: it looks the setting
// up in the registry, applies the operation to the appropriate scope's
// ConfigMap (SESSION is compiler-local state; DATABASE/SYSTEM/GLOBAL
// are recorded as a config.Operation the backend must persist), and
// rejects an unknown setting or a system-only setting configured at a
// lower scope. CONFIGURE SYSTEM cannot run inside an explicit
// transaction: its backend effects are not transactional.
func compileConfigure(ctx *Context, cmd *ast.ConfigureCommand) (*Result, error) {
	spec, ok := ctx.Registry.Lookup(cmd.Setting)
	if !ok {
		return nil, vterrors.QueryErrorAt(vterrors.Context{Line: cmd.Ctx.Line, Text: cmd.Ctx.Text}, "unknown configuration setting %q", cmd.Setting)
	}
	if spec.System && cmd.Scope == ast.ConfigureSession {
		return nil, vterrors.QueryErrorAt(vterrors.Context{Line: cmd.Ctx.Line, Text: cmd.Ctx.Text}, "%q is a system-only setting and cannot be configured at session scope", cmd.Setting)
	}
	if cmd.Scope == ast.ConfigureSystem && !ctx.ConnState.CurrentTx().IsImplicit() {
		return nil, vterrors.QueryErrorAt(vterrors.Context{Line: cmd.Ctx.Line, Text: cmd.Ctx.Text}, "CONFIGURE SYSTEM cannot be executed in a transaction block")
	}

	scope := configScope(cmd.Scope)
	kind := configOpKind(cmd.Action)
	op := config.Operation{Scope: scope, Kind: kind, Setting: cmd.Setting, Value: cmd.ValueText}

	unit := queryunit.New()
	unit.Capabilities = enums.CapSessionConfig

	switch cmd.Scope {
	case ast.ConfigureSession:
		tx := ctx.ConnState.CurrentTx()
		sessionCfg := applyConfigOp(tx.Current().SessionConfig, op)
		ctx.ConnState.SetCurrentTx(tx.UpdateSessionConfig(sessionCfg))
		unit.ConfigOps = append(unit.ConfigOps, op)
		unit.SQL = [][]byte{[]byte("-- session config change, no backend statement")}

	case ast.ConfigureDatabase:
		unit.Capabilities |= enums.CapPersistentConfig
		unit.DatabaseConfig = true
		unit.ConfigOps = append(unit.ConfigOps, op)
		unit.SQL = [][]byte{[]byte(fmt.Sprintf("-- persist database config %s", cmd.Setting))}

	case ast.ConfigureSystem:
		unit.Capabilities |= enums.CapPersistentConfig
		unit.SystemConfig = true
		unit.ConfigOps = append(unit.ConfigOps, op)
		if spec.RequiresRestart {
			unit.ConfigRequiresRestart = true
		}
		if spec.BackendSetting != "" {
			unit.BackendConfig = true
			unit.SQL = [][]byte{[]byte(fmt.Sprintf("ALTER SYSTEM SET %s = %s", spec.BackendSetting, quoteLiteral(cmd.ValueText)))}
		} else {
			unit.SQL = [][]byte{[]byte(fmt.Sprintf("-- persist system config %s", cmd.Setting))}
		}

	case ast.ConfigureGlobal:
		unit.Capabilities |= enums.CapPersistentConfig
		unit.ConfigOps = append(unit.ConfigOps, op)
		unit.SQL = [][]byte{[]byte(fmt.Sprintf("-- persist global config %s", cmd.Setting))}
	}

	return &Result{Kind: ResultSessionState, SessionState: &SessionStateResult{ConfigChanged: true}, Unit: unit}, nil
}

func configScope(s ast.ConfigureScope) config.Scope {
	switch s {
	case ast.ConfigureDatabase:
		return config.ScopeDatabase
	case ast.ConfigureSystem:
		return config.ScopeSystem
	case ast.ConfigureGlobal:
		return config.ScopeGlobal
	default:
		return config.ScopeSession
	}
}

func configOpKind(a ast.ConfigureAction) config.OpKind {
	switch a {
	case ast.ConfigureReset:
		return config.OpReset
	case ast.ConfigureInsert:
		return config.OpAddValueToSet
	case ast.ConfigureRemove:
		return config.OpRemoveValueFromSet
	default:
		return config.OpSet
	}
}

func applyConfigOp(m dbstate.ConfigMap, op config.Operation) dbstate.ConfigMap {
	switch op.Kind {
	case config.OpReset:
		return m.Reset(op.Setting)
	case config.OpAddValueToSet:
		existing, _ := m.Get(op.Setting)
		set, _ := existing.([]string)
		return m.Set(op.Setting, append(set, fmt.Sprint(op.Value)))
	case config.OpRemoveValueFromSet:
		existing, _ := m.Get(op.Setting)
		set, _ := existing.([]string)
		out := make([]string, 0, len(set))
		for _, v := range set {
			if v != fmt.Sprint(op.Value) {
				out = append(out, v)
			}
		}
		return m.Set(op.Setting, out)
	default:
		return m.Set(op.Setting, op.Value)
	}
}
