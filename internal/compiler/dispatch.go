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
	"github.com/dbplatform/hlqlcompiler/internal/ast"
	"github.com/dbplatform/hlqlcompiler/internal/vterrors"
)

// Dispatch routes node to the compiler path for its kind.
func Dispatch(ctx *Context, node ast.Node) (*Result, error) {
	switch n := node.(type) {
	case *ast.Query:
		return compileQuery(ctx, n)
	case *ast.DDLCommand:
		return compileDDL(ctx, n)
	case *ast.TxControlCommand:
		return compileTxControl(ctx, n)
	case *ast.SessionSetCommand:
		return compileSessionSet(ctx, n)
	case *ast.ConfigureCommand:
		return compileConfigure(ctx, n)
	case *ast.MigrationCommand:
		return compileMigration(ctx, n)
	default:
		return nil, vterrors.InternalErrorf("unhandled ast node kind %v", node.Kind())
	}
}
