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

package command

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dbplatform/hlqlcompiler/internal/compiler"
	"github.com/dbplatform/hlqlcompiler/internal/config"
	"github.com/dbplatform/hlqlcompiler/internal/dbstate"
	"github.com/dbplatform/hlqlcompiler/internal/enums"
	"github.com/dbplatform/hlqlcompiler/internal/frontend/memfrontend"
	"github.com/dbplatform/hlqlcompiler/internal/queryunit"
	"github.com/dbplatform/hlqlcompiler/internal/schema/memschema"
	"github.com/dbplatform/hlqlcompiler/internal/sertypes"
)

var (
	compileFile string
	compileMode string
	compileCaps []string
)

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile an HLQL script into its assembled QueryUnits",
	Long: `compile feeds a script (from --file, or stdin when --file is
omitted) through a fresh connection state seeded with the bootstrap
schema, dispatches every statement, assembles the results into
QueryUnits, and prints one JSON object per unit.

This is the same path exercised by the compiler package's tests; it is
a convenience for manual inspection, not a replacement for them.`,
	RunE: runCompile,
}

func init() {
	compileCmd.Flags().StringVarP(&compileFile, "file", "f", "", "path to an HLQL script (default: read stdin)")
	compileCmd.Flags().StringVar(&compileMode, "mode", "all", "statement mode: all, single, or skip-first")
	compileCmd.Flags().StringSliceVar(&compileCaps, "allow", []string{"modifications", "session-config", "transaction", "ddl", "persistent-config"},
		"capability bits the caller authorizes (comma-separated)")
}

func runCompile(cmd *cobra.Command, args []string) error {
	source, err := readSource(compileFile)
	if err != nil {
		return fmt.Errorf("reading source: %w", err)
	}

	mode, err := parseStatementMode(compileMode)
	if err != nil {
		return err
	}

	allowed, err := parseCapabilities(compileCaps)
	if err != nil {
		return err
	}

	ctx := newCLIContext()
	units, err := compiler.Compile(ctx, source, mode, allowed)
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	for i, u := range units {
		if err := enc.Encode(unitView(i, u)); err != nil {
			return err
		}
	}
	return nil
}

func readSource(path string) (string, error) {
	if path == "" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	return string(b), err
}

func parseStatementMode(s string) (compiler.StatementMode, error) {
	switch strings.ToLower(s) {
	case "all", "":
		return compiler.ModeAll, nil
	case "single":
		return compiler.ModeSingle, nil
	case "skip-first":
		return compiler.ModeSkipFirst, nil
	default:
		return 0, fmt.Errorf("unknown --mode %q: want all, single, or skip-first", s)
	}
}

func parseCapabilities(names []string) (enums.Capability, error) {
	var caps enums.Capability
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "modifications":
			caps |= enums.CapModifications
		case "session-config":
			caps |= enums.CapSessionConfig
		case "transaction":
			caps |= enums.CapTransaction
		case "ddl":
			caps |= enums.CapDDL
		case "persistent-config":
			caps |= enums.CapPersistentConfig
		case "":
			// ignore trailing empty split
		default:
			return 0, fmt.Errorf("unknown --allow capability %q", n)
		}
	}
	return caps, nil
}

// newCLIContext builds a fresh Context against the in-memory frontend
// stand-in, the same one the compiler package's tests use: the
// frontend/schema-engine contracts are backed by memfrontend and
// memschema for test and demo purposes.
func newCLIContext() *compiler.Context {
	conn := dbstate.New(dbstate.TransactionState{
		UserSchema:     memschema.Bootstrap(),
		Modaliases:     dbstate.NewStringMap().Set("", "default"),
		SessionConfig:  dbstate.NewConfigMap(),
		DatabaseConfig: dbstate.NewConfigMap(),
	})
	return compiler.NewContext(
		memfrontend.Parser{}, memfrontend.IRCompiler{}, memfrontend.SQLGenerator{}, memfrontend.SchemaAdapter{},
		conn, config.DefaultRegistry, sertypes.ProtocolVersion{Major: 2, Minor: 0},
	)
}

// unitJSON is a display-friendly projection of queryunit.QueryUnit:
// byte strings are rendered as UTF-8 where they are SQL text and
// base64 where they are opaque wire payloads, mirroring how a real
// front end would log a compiled unit.
type unitJSON struct {
	Index           int      `json:"index"`
	SQL             []string `json:"sql"`
	Status          string   `json:"status"`
	Cardinality     string   `json:"cardinality"`
	Cacheable       bool     `json:"cacheable"`
	IsTransactional bool     `json:"is_transactional"`
	Capabilities    []string `json:"capabilities"`
	SQLHash         string   `json:"sql_hash,omitempty"`
	TxCommit        bool     `json:"tx_commit,omitempty"`
	TxRollback      bool     `json:"tx_rollback,omitempty"`
	OutTypeID       string   `json:"out_type_id"`
	InTypeID        string   `json:"in_type_id"`
}

func unitView(i int, u *queryunit.QueryUnit) unitJSON {
	sql := make([]string, len(u.SQL))
	for j, s := range u.SQL {
		sql[j] = string(s)
	}
	var caps []string
	for _, c := range []enums.Capability{enums.CapModifications, enums.CapSessionConfig, enums.CapTransaction, enums.CapDDL, enums.CapPersistentConfig} {
		if u.Capabilities.Has(c) {
			caps = append(caps, capabilityName(c))
		}
	}
	return unitJSON{
		Index:           i,
		SQL:             sql,
		Status:          string(u.Status),
		Cardinality:     u.Cardinality.String(),
		Cacheable:       u.Cacheable,
		IsTransactional: u.IsTransactional,
		Capabilities:    caps,
		SQLHash:         base64.StdEncoding.EncodeToString(u.SQLHash),
		TxCommit:        u.TxCommit,
		TxRollback:      u.TxRollback,
		OutTypeID:       u.OutTypeID.String(),
		InTypeID:        u.InTypeID.String(),
	}
}

func capabilityName(c enums.Capability) string {
	switch c {
	case enums.CapModifications:
		return "modifications"
	case enums.CapSessionConfig:
		return "session-config"
	case enums.CapTransaction:
		return "transaction"
	case enums.CapDDL:
		return "ddl"
	case enums.CapPersistentConfig:
		return "persistent-config"
	default:
		return "unknown"
	}
}
