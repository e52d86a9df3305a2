// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/opencity/sandbox/pkg/core"
)

const resultsFile = "mission_results.json"

// cloneSave deep-copies a save through its JSON form so callers never share
// maps with the stored value.
func cloneSave(s *core.SaveGame) (core.SaveGame, error) {
	var out core.SaveGame
	data, err := json.Marshal(s)
	if err != nil {
		return out, fmt.Errorf("marshal save %q: %w", s.Slot, err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("unmarshal save %q: %w", s.Slot, err)
	}
	return out, nil
}

// slotFileName maps a slot to a file name safe on every platform.
func slotFileName(slot string, compress bool) string {
	name := strings.ReplaceAll(slot, " ", "_")
	name = strings.ReplaceAll(name, ":", "_")
	name = strings.ReplaceAll(name, string(filepath.Separator), "_")
	if compress {
		return name + ".json.gz"
	}
	return name + ".json"
}

// exportSave writes one save to the output directory.
func (b *Backend) exportSave(s core.SaveGame) error {
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(b.cfg.OutputDir, slotFileName(s.Slot, b.cfg.CompressOutput))
	if b.cfg.CompressOutput {
		return writeGzipJSON(path, s)
	}
	return writeJSON(path, s)
}

func (b *Backend) exportResults() error {
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return writeJSON(filepath.Join(b.cfg.OutputDir, resultsFile), b.results)
}

// importSaves reads every exported save in dir. A missing directory is not
// an error.
func importSaves(dir string) ([]core.SaveGame, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	var saves []core.SaveGame
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == resultsFile {
			continue
		}
		if !strings.HasSuffix(name, ".json") && !strings.HasSuffix(name, ".json.gz") {
			continue
		}

		s, err := readSave(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		if s.Slot == "" {
			continue
		}
		saves = append(saves, s)
	}
	return saves, nil
}

func readSave(path string) (core.SaveGame, error) {
	var s core.SaveGame

	f, err := os.Open(path)
	if err != nil {
		return s, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return s, fmt.Errorf("failed to open gzip %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return s, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return s, nil
}

func writeJSON(path string, data any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func writeGzipJSON(path string, data any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	defer gzWriter.Close()

	encoder := json.NewEncoder(gzWriter)
	return encoder.Encode(data)
}
