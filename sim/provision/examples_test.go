package provision

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidelink-sim/ore-engine/internal/fsutil"
	"github.com/sidelink-sim/ore-engine/sim"
)

// TestExampleConfigs_Load verifies that every shipped example config parses,
// validates and provisions a complete table set.
func TestExampleConfigs_Load(t *testing.T) {
	tests := []struct {
		file   string
		policy string
		alpha  float64
	}{
		{"ore.yaml", sim.PolicyOpportunistic, 0.5},
		{"ore-persistent.yaml", sim.PolicyPersistent, 1},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			// GIVEN the example config
			path := filepath.Join("..", "..", "examples", tt.file)
			cfg, err := LoadEngineConfig(fsutil.OSFileSystem{}, path)
			require.NoError(t, err)

			// THEN validation passes
			require.NoError(t, cfg.Validate())
			assert.Equal(t, tt.policy, cfg.Selection.Policy)
			assert.Equal(t, tt.alpha, cfg.Estimator.OccupancyAlpha)

			// AND the tables it names load
			tables, err := LoadTables(fsutil.OSFileSystem{}, cfg.Tables)
			require.NoError(t, err)
			assert.Equal(t, []sim.ResourceConfig{1, 2, 3, 4}, tables.Configs())

			// AND an engine can be built from both
			_, err = sim.NewEngine(*cfg, tables, nil, nil)
			require.NoError(t, err)
		})
	}
}
