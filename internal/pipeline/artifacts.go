package pipeline

import (
	"path/filepath"

	"github.com/jnsofini/auto-scorecard/internal/artifact"
	"github.com/jnsofini/auto-scorecard/internal/config"
	"github.com/jnsofini/auto-scorecard/internal/scorecard"
)

// Artifact file names under the output directory.
const (
	ModelFile     = "model.json"
	IVFile        = "auto-iv-table.csv"
	ClusterFile   = "cluster-iv-table.csv"
	ScorecardFile = "scorecard-table.csv"
	DetailFile    = "binning-detail.csv"
	WorkbookFile  = "scorecard.xlsx"
)

// WriteArtifacts writes the model and its tables under out.Dir and returns
// the written paths. The first failure aborts.
func WriteArtifacts(out config.OutputConfig, red *Reduction, m *scorecard.Model) ([]string, error) {
	var paths []string
	join := func(name string) string {
		p := filepath.Join(out.Dir, name)
		paths = append(paths, p)
		return p
	}

	if err := m.Save(join(ModelFile)); err != nil {
		return nil, err
	}

	tables := []struct {
		file  string
		table artifact.Table
	}{
		{IVFile, artifact.IVTable(red.IVTable)},
		{ClusterFile, artifact.ClusterTable(red.Clusters)},
		{ScorecardFile, artifact.ScorecardTable(m.Table())},
		{DetailFile, artifact.BinTable(red.Binning.Detail())},
	}
	for _, t := range tables {
		if err := artifact.WriteCSV(join(t.file), t.table); err != nil {
			return nil, err
		}
	}

	if out.XLSX {
		sheets := make([]artifact.Table, len(tables))
		for i, t := range tables {
			sheets[i] = t.table
		}
		if err := artifact.WriteWorkbook(join(WorkbookFile), sheets...); err != nil {
			return nil, err
		}
	}
	return paths, nil
}
