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
	"github.com/dbplatform/hlqlcompiler/internal/enums"
	"github.com/dbplatform/hlqlcompiler/internal/frontend"
	"github.com/dbplatform/hlqlcompiler/internal/schema"
	"github.com/dbplatform/hlqlcompiler/internal/sertypes"
)

// IRCompiler pattern-matches a query's leading keyword to decide its
// DML-ness and guesses its output shape as a bare std::str, since the
// real type inference engine lives outside this module. It exists so
// internal/compiler's query path has something real to call.
type IRCompiler struct{}

var _ frontend.IRCompiler = IRCompiler{}

var dmlPrefixes = []string{"INSERT", "UPDATE", "DELETE", "FOR"}

// CompileQuery implements frontend.IRCompiler.
func (IRCompiler) CompileQuery(q *ast.Query, snap schema.Snapshot, opts frontend.IROptions) (*frontend.IR, error) {
	upper := strings.ToUpper(strings.TrimSpace(q.Text))
	hasDML := false
	for _, p := range dmlPrefixes {
		if strings.HasPrefix(upper, p) {
			hasDML = true
			break
		}
	}

	// An INSERT yields exactly the inserted object; a SELECT of one
	// literal expression is single-valued. Everything else is a set.
	card := enums.CardinalityMany
	switch {
	case strings.HasPrefix(upper, "INSERT"):
		card = enums.CardinalityOne
	case strings.HasPrefix(upper, "SELECT ") && len(strings.Fields(upper)) == 2:
		card = enums.CardinalityOne
	}
	if q.ExpectedOne {
		card = enums.CardinalityAtMostOne
	}

	caps := enums.Capability(0)
	if hasDML {
		caps |= enums.CapModifications
	}

	return &frontend.IR{
		Cardinality:  card,
		HasDML:       hasDML,
		StmtCount:    1,
		OutType:      &sertypes.Scalar{ID: sertypes.StrTypeID, Name: "std::str"},
		Capabilities: caps,
	}, nil
}

// SQLGenerator renders an IR's origin text back out as a single
// pass-through SQL statement. Real SQL generation is out of scope
// here; this exists to give the unit assembler something to put in
// QueryUnit.SQL.
type SQLGenerator struct{}

var _ frontend.SQLGenerator = SQLGenerator{}

// CompileIRToSQL implements frontend.SQLGenerator.
func (SQLGenerator) CompileIRToSQL(ir *frontend.IR, pretty bool) ([][]byte, error) {
	stmt := fmt.Sprintf("-- compiled statement (cardinality=%s, dml=%t)", ir.Cardinality, ir.HasDML)
	return [][]byte{[]byte(stmt)}, nil
}
