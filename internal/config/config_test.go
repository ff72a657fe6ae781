package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(PathEnv, "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, int64(32<<20), cfg.MaxUploadBytes())
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loadprofile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http_addr: ":9090"
tenant_id: plant-a
source:
  workbook_header_row: 3
  encoding: shift_jis
export:
  template_path: /srv/template.xlsx
  grid:
    sheet: 集計
`), 0o600))

	t.Setenv(PathEnv, path)
	t.Setenv("LOADPROFILE_TENANT_ID", "plant-b")
	t.Setenv("LOADPROFILE_SOURCE_LABEL_CONVENTION", "end")
	t.Setenv("LOADPROFILE_EXPORT_RAW_SHEETS", "false")
	t.Setenv("LOADPROFILE_SHUTDOWN_TIMEOUT", "3s")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "plant-b", cfg.TenantID)
	assert.Equal(t, 3, cfg.Source.WorkbookHeaderRow)
	assert.Equal(t, 1, cfg.Source.CSVHeaderRow)
	assert.Equal(t, "shift_jis", cfg.Source.Encoding)
	assert.Equal(t, "end", cfg.Source.LabelConvention)
	assert.Equal(t, "/srv/template.xlsx", cfg.Export.TemplatePath)
	assert.False(t, cfg.Export.RawSheets)
	assert.Equal(t, "集計", cfg.Export.Grid.Sheet)
	assert.Equal(t, 17, cfg.Export.Grid.HolidayStartCol)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv(PathEnv, "")
	t.Setenv("LOADPROFILE_SOURCE_ENCODING", "latin1")
	_, err := Load("")
	assert.ErrorContains(t, err, "Encoding")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadBadEnvValue(t *testing.T) {
	t.Setenv(PathEnv, "")
	t.Setenv("LOADPROFILE_MAX_UPLOAD_MB", "lots")
	_, err := Load("")
	assert.Error(t, err)
}
