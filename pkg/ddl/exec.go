// SPDX-License-Identifier: Apache-2.0

package ddl

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// Section names the two DDL phases the archive records, mirroring
// pg_dump's own pre-data/post-data split.
type Section string

const (
	PreData  Section = "pre-data"
	PostData Section = "post-data"
)

// Emitter invokes an external DDL-emitting tool (out of scope in detail)
// and returns its output split into individual statements.
type Emitter struct {
	// Command is the external tool's executable name or path.
	Command string
	// Args is extended with "--section", string(section) for each call.
	Args []string
}

// Emit runs the configured tool for the given section and returns its
// output split into statements.
func (e *Emitter) Emit(ctx context.Context, section Section) ([]string, error) {
	args := append(append([]string(nil), e.Args...), "--section", string(section))
	cmd := exec.CommandContext(ctx, e.Command, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("running %s for %s: %w: %s", e.Command, section, err, stderr.String())
	}

	return ParseStatements(stdout.String())
}
