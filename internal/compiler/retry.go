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
	"github.com/dbplatform/hlqlcompiler/internal/enums"
	"github.com/dbplatform/hlqlcompiler/internal/frontend"
	"github.com/dbplatform/hlqlcompiler/internal/queryunit"
	"github.com/dbplatform/hlqlcompiler/internal/vterrors"
)

// CompileSource compiles the normalized form of src, falling back once
// to the original, non-normalized text when the normalized form fails
// with a syntax error. Constant extraction should never change whether
// a query parses, so if the original text then compiles cleanly the
// normalizer itself is broken and the failure is reported as the
// compiler's own, not the user's.
func CompileSource(ctx *Context, src *frontend.Source, mode StatementMode, allowed enums.Capability) ([]*queryunit.QueryUnit, error) {
	units, err := Compile(ctx, src.Text(), mode, allowed)
	if err == nil {
		return units, nil
	}
	if !vterrors.IsSyntaxError(err) || src.OriginalText() == src.Text() {
		return nil, err
	}

	if _, retryErr := Compile(ctx, src.OriginalText(), mode, allowed); retryErr != nil {
		// Both forms fail: the user's text is at fault, and the
		// normalized form's error is the one the cache keyed on.
		return nil, err
	}
	return nil, vterrors.InternalErrorf("normalized query is broken while original is valid")
}
