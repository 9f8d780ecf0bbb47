package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Habitat/internal/config"
	"github.com/MikeSquared-Agency/Habitat/internal/layout"
	"github.com/MikeSquared-Agency/Habitat/internal/scoring"
)

func testConfig() *config.Config {
	return &config.Config{
		Labeler: config.LabelerConfig{Workers: 2},
		Scoring: config.ScoringConfig{Profile: scoring.ProfileDefault},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func document(id string) layout.Document {
	doc := layout.Document{
		Layout:  layout.Layout{ID: id},
		Context: layout.MissionContext{CrewSize: 1, StructuralMaterial: "composite", RadiationResistance: 5},
	}
	for i, t := range layout.AllModuleTypes() {
		doc.Layout.Cells = append(doc.Layout.Cells, layout.Cell{
			X: 2 + 4*i, Y: 10, Type: t,
			Props: layout.Props{Mass: 500, Cleanliness: 0.5, Permanence: 1},
		})
	}
	return doc
}

func TestRunLabelsInputFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "layouts.json")
	raw, err := json.Marshal([]layout.Document{document("a"), document("b")})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(in, raw, 0o600))

	opts := options{in: in, out: filepath.Join(dir, "labels.csv"), weighted: true}
	require.NoError(t, run(context.Background(), testConfig(), opts, discardLogger()))

	f, err := os.Open(opts.out)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "a", records[1][0])
	assert.Equal(t, "b", records[2][0])
	assert.NotEmpty(t, records[1][len(records[1])-2], "weighted run fills the aggregate column")
}

func TestRunFromStoreNeedsDatabase(t *testing.T) {
	opts := options{fromStore: true, rated: true, out: filepath.Join(t.TempDir(), "labels.csv")}
	err := run(context.Background(), testConfig(), opts, discardLogger())
	assert.ErrorContains(t, err, "database.url")
	assert.NoFileExists(t, opts.out)
}

func TestRunUploadNeedsStorage(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "layouts.json")
	raw, err := json.Marshal([]layout.Document{document("a")})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(in, raw, 0o600))

	opts := options{in: in, out: filepath.Join(dir, "labels.csv"), upload: true}
	assert.ErrorContains(t, run(context.Background(), testConfig(), opts, discardLogger()), "storage.endpoint")
}
