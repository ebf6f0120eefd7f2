package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournal(t *testing.T) {
	pdb, err := NewPersistentDB(t.TempDir())
	require.NoError(t, err)
	defer pdb.Close()

	var version string
	require.NoError(t, pdb.GetEntry(DB_INTERNAL_TABLENAME, "missing", &version))

	journal := NewJournal(pdb)
	entries, err := journal.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, entries)

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, op := range []string{"backup", "restore", "delete"} {
		require.NoError(t, journal.Record(JournalEntry{
			Time:      base.Add(time.Duration(i) * time.Minute),
			TitleID:   alphaID,
			TitleName: "Alpha",
			Mode:      ModeSave.String(),
			Operation: op,
			Folder:    "/3ds/Checkpoint/saves/0x00123 Alpha/20240301-100000",
			Success:   i != 2,
			Code:      uint32(i),
		}))
	}

	entries, err = journal.Recent(2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "delete", entries[0].Operation)
	assert.False(t, entries[0].Success)
	assert.Equal(t, uint32(2), entries[0].Code)
	assert.Equal(t, "restore", entries[1].Operation)
	assert.True(t, entries[1].Time.Equal(base.Add(time.Minute)))

	all, err := journal.Recent(0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, journal.Clear())
	require.NoError(t, journal.Clear())
	entries, err = journal.Recent(0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLastBuild(t *testing.T) {
	pdb, err := NewPersistentDB(t.TempDir())
	require.NoError(t, err)
	defer pdb.Close()
	journal := NewJournal(pdb)

	_, ok, err := journal.LastBuild()
	require.NoError(t, err)
	assert.False(t, ok)

	at := time.Date(2024, 3, 1, 10, 15, 0, 0, time.UTC)
	require.NoError(t, journal.RecordBuild(BuildReport{Saves: 3, Extdata: 1, Skipped: 2, Duration: time.Second}, at))
	require.NoError(t, journal.RecordBuild(BuildReport{CacheHit: true, Saves: 4, Duration: time.Millisecond}, at.Add(time.Hour)))

	record, ok, err := journal.LastBuild()
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, record.Time.Equal(at.Add(time.Hour)))
	assert.True(t, record.CacheHit)
	assert.Equal(t, 4, record.Saves)
	assert.Equal(t, 0, record.Skipped)
	assert.Equal(t, time.Millisecond, record.Duration)
}
