package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/MikeSquared-Agency/Habitat/internal/scoring"
)

// WriteCSV writes the dataset header followed by one row per vector and returns
// the number of rows written.
func WriteCSV(w io.Writer, vectors []scoring.ScoreVector) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(scoring.Columns()); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}
	for i, v := range vectors {
		if err := cw.Write(v.Row()); err != nil {
			return i, fmt.Errorf("write row %d (%s): %w", i, v.HabitatID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return len(vectors), fmt.Errorf("flush csv: %w", err)
	}
	return len(vectors), nil
}

// WriteCSVFile writes vectors to path, creating parent directories. The file is
// written under a temporary name and renamed so readers never see a partial dataset.
func WriteCSVFile(path string, vectors []scoring.ScoreVector) (int, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := WriteCSV(tmp, vectors)
	if err != nil {
		tmp.Close()
		return n, err
	}
	if err := tmp.Close(); err != nil {
		return n, fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return n, fmt.Errorf("rename to %s: %w", path, err)
	}
	return n, nil
}
