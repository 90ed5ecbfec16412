package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/opsdesk/deskmate/internal/app"
	"github.com/opsdesk/deskmate/internal/config"
	"github.com/opsdesk/deskmate/internal/department"
	"github.com/opsdesk/deskmate/internal/knowledge"
)

// chunkSpec is the on-disk format for ingest files: a JSON array of
// objects carrying an id, the chunk text, and an optional department
// tag. Untagged chunks land in the general pool.
type chunkSpec struct {
	ID         string `json:"id"`
	Content    string `json:"content"`
	Department string `json:"department"`
}

// runIngest loads knowledge chunks from a JSON file into the store.
func runIngest(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: deskmate ingest <file>")
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open ingest file: %w", err)
	}
	defer f.Close()

	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer a.Close()

	chunks, err := parseChunks(f, a.Departments)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		fmt.Fprintln(os.Stdout, "nothing to ingest")
		return nil
	}

	stored, err := a.Knowledge.AddBatch(ctx, chunks)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	fmt.Fprintf(os.Stdout, "stored %d of %d chunk(s)\n", stored, len(chunks))
	return nil
}

// parseChunks decodes and validates an ingest file. Unknown department
// tags are an error so typos do not silently create unreachable chunks.
func parseChunks(r io.Reader, set *department.Set) ([]knowledge.Chunk, error) {
	var specs []chunkSpec
	if err := json.NewDecoder(r).Decode(&specs); err != nil {
		return nil, fmt.Errorf("failed to parse ingest file: %w", err)
	}

	chunks := make([]knowledge.Chunk, 0, len(specs))
	for i, spec := range specs {
		if spec.ID == "" {
			return nil, fmt.Errorf("chunk %d: missing id", i)
		}
		if spec.Content == "" {
			return nil, fmt.Errorf("chunk %q: missing content", spec.ID)
		}

		dept := department.General
		if spec.Department != "" {
			d := department.Department(spec.Department)
			if _, ok := set.Lookup(d); !ok && !d.IsGeneral() {
				return nil, fmt.Errorf("chunk %q: unknown department %q", spec.ID, spec.Department)
			}
			dept = d
		}

		chunks = append(chunks, knowledge.Chunk{
			ID:         spec.ID,
			Content:    spec.Content,
			Department: dept,
		})
	}

	return chunks, nil
}
