package transform

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/haasonsaas/graphloom/pkg/models"
)

// ChunkedConfig bounds one unbounded generation run.
type ChunkedConfig struct {
	// ChunkSize is the target item count per chunk. Default: 100.
	ChunkSize int

	// MaxChunks bounds the number of chunks. Default: 10.
	MaxChunks int

	// UnderflowThreshold stops the run when a chunk returns strictly
	// fewer than UnderflowThreshold * ChunkSize items. Default: 0.5.
	UnderflowThreshold float64

	// OverlapContext is how many trailing items from the previous chunk
	// are attached to the continuation prompt. Default: 3.
	OverlapContext int
}

func sanitizeChunkedConfig(cfg ChunkedConfig) ChunkedConfig {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 100
	}
	if cfg.MaxChunks <= 0 {
		cfg.MaxChunks = 10
	}
	if cfg.UnderflowThreshold <= 0 || cfg.UnderflowThreshold > 1 {
		cfg.UnderflowThreshold = 0.5
	}
	if cfg.OverlapContext <= 0 {
		cfg.OverlapContext = 3
	}
	return cfg
}

// RunChunked produces outputs too large for one context window by driving
// the orchestrator once per chunk with continuation prompts and merging
// the validated chunks. The output format is forced to jsonl and learning
// is disabled.
func (t *Transformer) RunChunked(ctx context.Context, req Request, chunkCfg ChunkedConfig) (*models.TransformRun, error) {
	start := t.nowFunc()
	chunkCfg = sanitizeChunkedConfig(chunkCfg)

	cfg := req.Config
	cfg.Format = models.FormatJSONL
	cfg.Learn = false

	parentID := t.newRunID()
	emitter := NewEmitter(parentID, req.Sink)

	parent := cfg.WorkDir
	owned := false
	if parent == "" {
		var err error
		parent, err = os.MkdirTemp("", "graphloom-chunks-")
		if err != nil {
			return nil, t.fail(emitter, "sandbox", &SandboxError{Op: "create chunk parent dir", Err: err})
		}
		owned = true
	}
	defer func() {
		if owned {
			os.RemoveAll(parent)
		}
	}()

	emitter.Emit(models.Event{
		Kind:        models.EventChunkedStart,
		TotalChunks: chunkCfg.MaxChunks,
		Message:     fmt.Sprintf("chunked generation, up to %d chunks of %d items", chunkCfg.MaxChunks, chunkCfg.ChunkSize),
	})

	var (
		allItems    []map[string]any
		totalItems  int
		totalChunks int
		overlap     string
	)

	for chunk := 1; chunk <= chunkCfg.MaxChunks; chunk++ {
		emitter.Emit(models.Event{Kind: models.EventChunkStart, Chunk: chunk})

		instruction := firstChunkPrompt(req.Instruction, chunkCfg.ChunkSize)
		if chunk > 1 {
			instruction = continuationChunkPrompt(req.Instruction, totalItems, chunkCfg.ChunkSize, overlap)
		}

		chunkReq := req
		chunkReq.Instruction = instruction
		chunkReq.Config = cfg
		chunkReq.Config.WorkDir = filepath.Join(parent, fmt.Sprintf("chunk_%d", chunk))
		// Domain gating runs once over the merged output, not per chunk.
		chunkReq.DomainValidator = nil

		run, err := t.Run(ctx, chunkReq)
		if err != nil {
			if chunk == 1 {
				return nil, err
			}
			t.logger.Warn("chunk failed, stopping with accumulated items",
				"run_id", parentID, "chunk", chunk, "error", err)
			break
		}

		items, err := ParseItems(run.Manifest.ArtifactPath, models.FormatJSONL)
		if err != nil {
			return nil, t.fail(emitter, "validation", &AgentProtocolError{Reason: "parse chunk artifact", Err: err})
		}

		count := run.Manifest.ItemCount
		totalChunks = chunk
		totalItems += count
		allItems = append(allItems, items...)

		emitter.Emit(models.Event{
			Kind:       models.EventChunkComplete,
			Chunk:      chunk,
			ChunkItems: count,
			TotalItems: totalItems,
		})

		if count == 0 {
			emitter.Emit(models.Event{Kind: models.EventChunkEmpty, Chunk: chunk})
			break
		}
		if float64(count) < chunkCfg.UnderflowThreshold*float64(chunkCfg.ChunkSize) {
			emitter.Emit(models.Event{
				Kind:       models.EventChunkUnderflow,
				Chunk:      chunk,
				ChunkItems: count,
				Message:    fmt.Sprintf("chunk %d returned %d items, below %.0f%% of chunk size", chunk, count, chunkCfg.UnderflowThreshold*100),
			})
			break
		}

		overlap = renderOverlap(items, chunkCfg.OverlapContext)
	}

	artifact, err := writeMergedArtifact(parent, allItems)
	if err != nil {
		return nil, t.fail(emitter, "sandbox", &SandboxError{Op: "write merged artifact", Err: err})
	}

	schemaHash, err := req.Model.Hash()
	if err != nil {
		return nil, t.fail(emitter, "config", &ConfigError{Field: "output_model", Reason: err.Error()})
	}

	run := &models.TransformRun{
		Manifest: &models.TransformManifest{
			ArtifactPath:     artifact,
			ArtifactFormat:   models.FormatJSONL,
			ItemCount:        totalItems,
			SchemaHash:       schemaHash,
			ValidationPassed: true,
			RunID:            parentID,
			CreatedAt:        t.nowFunc(),
		},
		// Chunked callers get the merged items directly; the merged
		// artifact lives in the parent dir, which may be scoped.
		Items: allItems,
		Debug: map[string]any{
			"chunks":     totalChunks,
			"elapsed_ms": t.nowFunc().Sub(start).Milliseconds(),
			"mode":       string(cfg.Mode),
			"format":     string(models.FormatJSONL),
		},
	}

	emitter.Emit(models.Event{
		Kind:        models.EventChunkedComplete,
		TotalChunks: totalChunks,
		TotalItems:  totalItems,
		Manifest:    run.Manifest,
	})
	return run, nil
}

// renderOverlap serialises the last n items as JSON lines for the
// continuation prompt.
func renderOverlap(items []map[string]any, n int) string {
	if len(items) > n {
		items = items[len(items)-n:]
	}
	var b strings.Builder
	for _, item := range items {
		line, err := json.Marshal(item)
		if err != nil {
			continue
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}

func writeMergedArtifact(dir string, items []map[string]any) (string, error) {
	path := filepath.Join(dir, "output.jsonl")
	file, err := os.Create(path)
	if err != nil {
		return "", err
	}
	for _, item := range items {
		line, err := json.Marshal(item)
		if err != nil {
			file.Close()
			return "", err
		}
		if _, err := file.Write(append(line, '\n')); err != nil {
			file.Close()
			return "", err
		}
	}
	return path, file.Close()
}
