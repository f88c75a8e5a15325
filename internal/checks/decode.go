package checks

import (
	"context"
	"encoding/json"

	"github.com/lscobe16/SimpleCodeTester/internal/compiler"
	"github.com/lscobe16/SimpleCodeTester/internal/wire"
	"github.com/lscobe16/SimpleCodeTester/pkg/errors"
)

// importCheckPayload is the wire shape of an IMPORT CheckSpec's payload.
type importCheckPayload struct {
	Name             string   `json:"name"`
	ForbiddenImports []string `json:"forbiddenImports"`
}

// sourceCodeCheckPayload is the wire shape of a SOURCE_CODE CheckSpec's
// payload.
type sourceCodeCheckPayload struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

// Decode resolves one wire.CheckSpec into its Check implementation.
// SOURCE_CODE checks are compiled immediately, since compilation errors in
// a check itself (as opposed to the submission) are fatal to the slave per
// spec.md §7's UnknownCheckKind/Unexpected disposition.
func Decode(ctx context.Context, spec wire.CheckSpec, comp compiler.Compiler) (Check, error) {
	switch spec.Type {
	case wire.CheckTypeImport:
		var p importCheckPayload
		if err := json.Unmarshal(spec.Payload, &p); err != nil {
			return nil, errors.Wrapf(err, errors.SlaveMalformedMessage, "decode IMPORT check: %v", err)
		}
		return NewImportCheck(p.Name, p.ForbiddenImports), nil

	case wire.CheckTypeIO:
		io, err := wire.DecodeIOCheckPayload(spec.Payload)
		if err != nil {
			return nil, err
		}
		return NewIOCheck(io.Name, io.Input, io.ExpectedOutput), nil

	case wire.CheckTypeSourceCode:
		var p sourceCodeCheckPayload
		if err := json.Unmarshal(spec.Payload, &p); err != nil {
			return nil, errors.Wrapf(err, errors.SlaveMalformedMessage, "decode SOURCE_CODE check: %v", err)
		}
		return NewSourceCheck(ctx, p.Name, p.Source, comp)

	default:
		return nil, errors.Newf(errors.SlaveUnknownCheckKind, "unknown check type %q", spec.Type)
	}
}

// DecodeAll resolves every CheckSpec in order, preserving declaration order
// for the runner's ordering guarantee (spec.md §4.8).
func DecodeAll(ctx context.Context, specs []wire.CheckSpec, comp compiler.Compiler) ([]Check, error) {
	out := make([]Check, 0, len(specs))
	for _, spec := range specs {
		c, err := Decode(ctx, spec, comp)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
