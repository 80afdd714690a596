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

package dbstate

import (
	"github.com/dbplatform/hlqlcompiler/internal/schema"
)

// MigrationState is the data an open START MIGRATION block
// accumulates between START and COMMIT/ABORT.
type MigrationState struct {
	// StartSchema is the schema snapshot as it stood immediately
	// before this migration block opened.
	StartSchema schema.Snapshot

	// ParentMigration names the last migration recorded in the schema
	// when the block opened, "" for an initial migration.
	ParentMigration string

	// InitialSavepoint is the savepoint auto-declared when the block
	// opened inside an already-explicit transaction; "" when the block
	// opened its own transaction instead. COMMIT/ABORT MIGRATION use it
	// to close the bracket the same way it was opened.
	InitialSavepoint string

	// TargetSchema is the schema the migration is driving towards. It
	// is computed when the block opens (from the SDL body of START
	// MIGRATION or CREATE MIGRATION, or the current schema for START
	// MIGRATION REWRITE); POPULATE does not change it.
	TargetSchema schema.Snapshot

	// AcceptedOps is every DeltaOp the user has confirmed so far: steps
	// accepted by POPULATE and the ops of DDL issued inside the block.
	AcceptedOps []schema.DeltaOp

	// Guidance is the accumulated banned-operation set built up as the
	// user rejects proposed steps.
	Guidance *schema.Guidance

	// Proposed is the step currently awaiting accept/reject, nil if
	// POPULATE hasn't been run yet or the migration is already
	// complete.
	Proposed *ProposedMigrationStep
}

// ProposedMigrationStep is one step of an interactive migration's
// proposal/accept loop.
type ProposedMigrationStep struct {
	Op         schema.DeltaOp
	Confidence float64
	Prompt     string
	DataSafe   bool

	// RequiredUserInput lists (placeholder, prompt) pairs the step
	// needs answered before it can be applied, e.g. a default value
	// for a new required property with no default.
	RequiredUserInput [][2]string

	Complete bool
}

// NewMigrationState opens a migration block with startSchema as the
// schema immediately before the block and targetSchema as the schema
// the migration drives towards (nil for an interactive/DDL migration
// still being populated statement by statement).
func NewMigrationState(startSchema, targetSchema schema.Snapshot) *MigrationState {
	return &MigrationState{
		StartSchema:  startSchema,
		TargetSchema: targetSchema,
		Guidance:     schema.NewGuidance(),
	}
}

// WithAcceptedOp returns a copy of m with op appended to AcceptedOps
// and Proposed cleared.
func (m *MigrationState) WithAcceptedOp(op schema.DeltaOp) *MigrationState {
	next := *m
	next.AcceptedOps = append(append([]schema.DeltaOp{}, m.AcceptedOps...), op)
	next.Proposed = nil
	return &next
}

// WithProposed returns a copy of m with its Proposed step replaced.
func (m *MigrationState) WithProposed(p *ProposedMigrationStep) *MigrationState {
	next := *m
	next.Proposed = p
	return &next
}

// WithRejection records the rejected op in Guidance's banned sets and
// clears Proposed, so the next POPULATE proposes around the rejected
// CREATE, ALTER, or DROP.
func (m *MigrationState) WithRejection() *MigrationState {
	next := *m
	g := *m.Guidance
	g.BannedCreations = copyCreate(m.Guidance.BannedCreations)
	g.BannedAlters = copyAlter(m.Guidance.BannedAlters)
	g.BannedDeletions = copyDrop(m.Guidance.BannedDeletions)
	if m.Proposed != nil {
		op := m.Proposed.Op
		key := schema.GuidanceKey{Kind: op.Kind, Name: op.QualifiedName()}
		switch op.Action {
		case schema.ActionCreate:
			g.BannedCreations[key] = struct{}{}
		case schema.ActionAlter:
			g.BannedAlters[key] = op.RenameTo
		case schema.ActionDrop:
			g.BannedDeletions[key] = struct{}{}
		}
	}
	next.Guidance = &g
	next.Proposed = nil
	return &next
}

func copyCreate(m map[schema.GuidanceKey]struct{}) map[schema.GuidanceKey]struct{} {
	next := make(map[schema.GuidanceKey]struct{}, len(m))
	for k, v := range m {
		next[k] = v
	}
	return next
}

func copyAlter(m map[schema.GuidanceKey]string) map[schema.GuidanceKey]string {
	next := make(map[schema.GuidanceKey]string, len(m))
	for k, v := range m {
		next[k] = v
	}
	return next
}

func copyDrop(m map[schema.GuidanceKey]struct{}) map[schema.GuidanceKey]struct{} {
	next := make(map[schema.GuidanceKey]struct{}, len(m))
	for k, v := range m {
		next[k] = v
	}
	return next
}

// Complete reports whether every accepted op needed to reach
// TargetSchema (when known) has been folded in and nothing remains
// proposed — the gate COMMIT MIGRATION checks before allowing the
// block to close.
func (m *MigrationState) Complete(remaining *schema.Delta) bool {
	return m.Proposed == nil && remaining.Empty()
}
