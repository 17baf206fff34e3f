package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Checkpoint records batch-collection progress so long runs can resume
type Checkpoint struct {
	ProcessedSkins      int      `json:"processed_skins"`
	ProcessedVariants   int      `json:"processed_variants"`
	LastProcessedSkinID string   `json:"last_processed_skin_id,omitempty"`
	FailedItems         []string `json:"failed_items,omitempty"`
	LastUpdate          string   `json:"last_update,omitempty"`
}

// LoadCheckpoint reads a checkpoint file, returning an empty checkpoint when
// the file is missing or unreadable.
func LoadCheckpoint(path string) *Checkpoint {
	raw, err := os.ReadFile(path)
	if err != nil {
		return &Checkpoint{}
	}

	var checkpoint Checkpoint
	if err := json.Unmarshal(raw, &checkpoint); err != nil {
		return &Checkpoint{}
	}
	return &checkpoint
}

// Save writes the checkpoint, stamping the update time
func (checkpoint *Checkpoint) Save(path string) error {
	checkpoint.LastUpdate = time.Now().Format(time.RFC3339)

	raw, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}
