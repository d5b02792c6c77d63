package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WessleyAI/vaarweggraph/engine/domain"
)

func TestWriteCSV(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "output", "2024-05-01-10-00-00")
	records := []domain.Record{
		{"Id": float64(1), "Name": "Brug Zaandam", "RouteKmBegin": 12.5},
		{"Id": float64(2), "CanOpen": true, "Geometry": map[string]any{"type": "Point"}},
	}
	path, err := WriteCSV(prefix, domain.ObjectBridge, records)
	require.NoError(t, err)
	assert.Equal(t, prefix+"_bridge.csv", path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, []string{"CanOpen", "Geometry", "Id", "Name", "RouteKmBegin"}, rows[0])
	assert.Equal(t, []string{"", "", "1", "Brug Zaandam", "12.5"}, rows[1])
	assert.Equal(t, []string{"true", `{"type":"Point"}`, "2", "", ""}, rows[2])
}

func TestWriteCSV_Empty(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "out")
	path, err := WriteCSV(prefix, domain.ObjectLock, nil)
	require.NoError(t, err)
	assert.Empty(t, path)
	_, err = os.Stat(Path(prefix, domain.ObjectLock))
	assert.True(t, os.IsNotExist(err))
}

func TestWriteAll(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "run")
	paths, err := WriteAll(prefix, domain.Dataset{
		domain.ObjectRoute:          {{"Id": float64(1)}},
		domain.ObjectOperatingTimes: {{"Id": float64(9)}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{prefix + "_route.csv", prefix + "_operatingtimes.csv"}, paths)
}
