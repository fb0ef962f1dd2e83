// SPDX-License-Identifier: Apache-2.0

package traversal

import (
	"context"
	"fmt"
	"io"

	"github.com/pgslice/pgslice/pkg/ddl"
)

// emitDDL invokes the configured DDL emitter for both sections and writes
// each returned statement as its own archive entry, recording the section
// counts in the manifest.
func (e *Engine) emitDDL(ctx context.Context) error {
	preData, err := e.opts.DDL.Emit(ctx, ddl.PreData)
	if err != nil {
		return fmt.Errorf("emitting pre-data DDL: %w", err)
	}
	for i, stmt := range preData {
		if err := e.writeDDLEntry(e.archive.OpenPreData, i+1, stmt); err != nil {
			return err
		}
	}

	postData, err := e.opts.DDL.Emit(ctx, ddl.PostData)
	if err != nil {
		return fmt.Errorf("emitting post-data DDL: %w", err)
	}
	for i, stmt := range postData {
		if err := e.writeDDLEntry(e.archive.OpenPostData, i+1, stmt); err != nil {
			return err
		}
	}

	e.manifest.SetSections(len(preData), len(postData))
	return nil
}

func (e *Engine) writeDDLEntry(open func(int) (io.WriteCloser, error), index int, stmt string) error {
	w, err := open(index)
	if err != nil {
		return fmt.Errorf("opening DDL entry %d: %w", index, err)
	}
	defer w.Close()

	_, err = w.Write([]byte(stmt))
	return err
}
