package holiday

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	usage "loadprofile/internal/usage/domain"
)

const sampleYAML = `
holidays:
  - date: "2024-07-15"
    name: Marine Day
  - date: "2024-04-29"
    name: Showa Day
`

func TestDecode(t *testing.T) {
	cal, err := Decode(strings.NewReader(sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, 2, cal.Len())
	assert.True(t, cal.IsHoliday(time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC)))
	assert.True(t, cal.IsHoliday(time.Date(2024, 7, 15, 18, 30, 0, 0, time.UTC)))
	assert.False(t, cal.IsHoliday(time.Date(2024, 7, 16, 0, 0, 0, 0, time.UTC)))

	name, ok := cal.Name(time.Date(2024, 4, 29, 0, 0, 0, 0, time.UTC))
	assert.True(t, ok)
	assert.Equal(t, "Showa Day", name)

	entries := cal.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "Showa Day", entries[0].Name)
}

func TestDecodeInvalidDate(t *testing.T) {
	_, err := Decode(strings.NewReader("holidays:\n  - date: tomorrow\n"))
	assert.Error(t, err)
}

func TestDecodeEmptyDocument(t *testing.T) {
	cal, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, 0, cal.Len())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "holidays.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))
	cal, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cal.Len())

	empty, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestCalendarDrivesClassifier(t *testing.T) {
	cal := NewCalendar(Entry{Date: time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC), Name: "Marine Day"})
	c := usage.NewClassifier(cal)
	month, dayType, err := c.Classify(time.Date(2024, 7, 15, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, usage.FiscalMonth(7), month)
	assert.Equal(t, usage.Holiday, dayType)
}

func TestDynamicSnapshotIsFixed(t *testing.T) {
	day := time.Date(2024, 11, 4, 0, 0, 0, 0, time.UTC)
	d := NewDynamic(nil)
	before := d.Snapshot()
	assert.False(t, before.IsHoliday(day))

	d.Set(NewCalendar(Entry{Date: day, Name: "Culture Day (observed)"}))
	assert.False(t, before.IsHoliday(day))
	assert.True(t, d.Snapshot().IsHoliday(day))
	assert.Equal(t, 1, d.Current().Len())
}
