package db

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/giwty/save-backup-manager/emulator"
	"github.com/giwty/save-backup-manager/fileio"
	"github.com/giwty/save-backup-manager/titlefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	alphaID   = 0x0004000000012300
	bravoID   = 0x0004000000045600
	charlieID = 0x0004000000078900
	systemID  = 0x0004001000022400
)

func newConsole(t *testing.T) *emulator.Console {
	console, err := emulator.New(t.TempDir())
	require.NoError(t, err)
	return console
}

func install(t *testing.T, console *emulator.Console, spec emulator.TitleSpec) {
	require.NoError(t, console.InstallTitle(spec))
}

func installDefaults(t *testing.T, console *emulator.Console) {
	install(t, console, emulator.TitleSpec{
		Medium: fileio.MediumSD, ID: bravoID, ShortDescription: "Bravo", ProductCode: "CTR-P-BRVO",
		Save: map[string][]byte{"main": {2}},
	})
	install(t, console, emulator.TitleSpec{
		Medium: fileio.MediumSD, ID: alphaID, ShortDescription: "Alpha", ProductCode: "CTR-P-ALPH",
		ExtdataID: 0x123,
		Save:      map[string][]byte{"main": {1}},
		Extdata:   map[string][]byte{"data": {1}},
	})
	install(t, console, emulator.TitleSpec{
		Medium: fileio.MediumSD, ID: charlieID, ShortDescription: "Charlie",
		ExtdataID: 0x789,
		Extdata:   map[string][]byte{"data": {3}},
	})
}

func newCatalog(console *emulator.Console, opts CatalogOptions) *TitleCatalog {
	return NewTitleCatalog(console, opts, zap.NewNop().Sugar())
}

func checkpointPath(console *emulator.Console, parts ...string) string {
	return filepath.Join(append([]string{console.SDMCDir(), "3ds", "Checkpoint"}, parts...)...)
}

func names(titles []*Title) []string {
	result := []string{}
	for _, title := range titles {
		result = append(result, title.ShortDescription)
	}
	return result
}

func TestBuildListsSavesAndExtdata(t *testing.T) {
	console := newConsole(t)
	installDefaults(t, console)
	catalog := newCatalog(console, CatalogOptions{})

	report, err := catalog.Build(false)
	require.NoError(t, err)
	assert.False(t, report.CacheHit)
	assert.Equal(t, 2, report.Saves)
	assert.Equal(t, 2, report.Extdata)

	snapshot := catalog.Snapshot()
	assert.Equal(t, []string{"Alpha", "Bravo"}, names(snapshot.Saves))
	assert.Equal(t, []string{"Alpha", "Charlie"}, names(snapshot.Extdata))
	assert.Same(t, snapshot.Saves[0], snapshot.Extdata[0])

	alpha := catalog.Find(ModeSave, fileio.MediumSD, alphaID)
	require.NotNil(t, alpha)
	assert.Equal(t, "0x00123", alpha.UniqueIDText())
	assert.Equal(t, "CTR-P-ALPH", alpha.ProductCode)
	assert.Equal(t, uint32(0x123), alpha.ExtdataID)
	assert.Equal(t, "/3ds/Checkpoint/saves/0x00123 Alpha", alpha.SavePath)
	assert.Equal(t, "/3ds/Checkpoint/extdata/0x00123 Alpha", alpha.ExtdataPath)
	assert.Equal(t, []Backup{{Name: NewBackupName}}, alpha.Backups(ModeSave))
	assert.DirExists(t, checkpointPath(console, "saves", "0x00123 Alpha"))
	assert.DirExists(t, checkpointPath(console, "extdata", "0x00123 Alpha"))
	assert.NoDirExists(t, checkpointPath(console, "extdata", "0x00456 Bravo"))

	assert.Nil(t, catalog.Find(ModeExtdata, fileio.MediumSD, bravoID))
}

func TestBuildSkipsUpdatesAndSystemTitles(t *testing.T) {
	console := newConsole(t)
	installDefaults(t, console)
	install(t, console, emulator.TitleSpec{
		Medium: fileio.MediumSD, ID: 0x0004000E00012300, ShortDescription: "Alpha Update",
		Save: map[string][]byte{"main": {1}},
	})
	install(t, console, emulator.TitleSpec{
		Medium: fileio.MediumNand, ID: 0x0004001000021A00, ShortDescription: "System Settings",
		Save: map[string][]byte{"main": {1}},
	})
	install(t, console, emulator.TitleSpec{
		Medium: fileio.MediumNand, ID: systemID, ShortDescription: "Nand Game",
		Save: map[string][]byte{"main": {1}},
	})

	report, err := newCatalog(console, CatalogOptions{}).Build(false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Saves)

	catalog := newCatalog(console, CatalogOptions{NandSaves: true, Filter: []uint64{bravoID}})
	_, err = catalog.Build(true)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "Nand Game"}, names(catalog.Snapshot().Saves))
	assert.Equal(t, []string{"Alpha", "Charlie"}, names(catalog.Snapshot().Extdata))
}

func TestBuildIsolatesBrokenTitles(t *testing.T) {
	console := newConsole(t)
	installDefaults(t, console)
	descriptor := filepath.Join(console.Root(), "titles", fileio.MediumSD.String(), fmt.Sprintf("%016x", bravoID), "smdh.bin")
	require.NoError(t, os.WriteFile(descriptor, []byte("junk"), 0644))

	catalog := newCatalog(console, CatalogOptions{})
	report, err := catalog.Build(false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, []string{"Alpha"}, names(catalog.Snapshot().Saves))
	assert.Equal(t, []string{"Alpha", "Charlie"}, names(catalog.Snapshot().Extdata))
	assert.Nil(t, catalog.Find(ModeSave, fileio.MediumSD, bravoID))
}

func TestBuildToleratesUnlistableBackupRoot(t *testing.T) {
	console := newConsole(t)
	installDefaults(t, console)
	require.NoError(t, os.MkdirAll(checkpointPath(console, "saves"), os.ModePerm))
	require.NoError(t, os.WriteFile(checkpointPath(console, "saves", "0x00123 Alpha"), []byte("not a folder"), 0644))

	catalog := newCatalog(console, CatalogOptions{})
	report, err := catalog.Build(false)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, []string{"Alpha", "Bravo"}, names(catalog.Snapshot().Saves))

	alpha := catalog.Find(ModeSave, fileio.MediumSD, alphaID)
	require.NotNil(t, alpha)
	assert.Equal(t, []Backup{{Name: NewBackupName}}, alpha.Backups(ModeSave))
	assert.FileExists(t, checkpointPath(console, "saves", "0x00123 Alpha"))
}

func TestBuildReportsProgress(t *testing.T) {
	console := newConsole(t)
	installDefaults(t, console)
	install(t, console, emulator.TitleSpec{
		Medium: fileio.MediumSD, ID: 0x0004000E00012300, ShortDescription: "Alpha Update",
		Save: map[string][]byte{"main": {1}},
	})

	var seen []int
	progress := fileio.ProgressFunc(func(curr int, total int, message string) {
		assert.Equal(t, 4, total)
		seen = append(seen, curr)
	})
	_, err := newCatalog(console, CatalogOptions{Progress: progress}).Build(false)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, seen)

	seen = nil
	catalog := newCatalog(console, CatalogOptions{Progress: progress})
	loaded, limit := catalog.Progress()
	assert.Equal(t, 0, loaded)
	assert.Equal(t, 0, limit)
	report, err := catalog.Build(false)
	require.NoError(t, err)
	require.True(t, report.CacheHit)
	assert.Equal(t, []int{4}, seen)
	loaded, limit = catalog.Progress()
	assert.Equal(t, 4, loaded)
	assert.Equal(t, 4, limit)
}

func TestBuildUsesCache(t *testing.T) {
	console := newConsole(t)
	installDefaults(t, console)
	catalog := newCatalog(console, CatalogOptions{})

	_, err := catalog.Build(false)
	require.NoError(t, err)
	first := catalog.Snapshot()

	report, err := catalog.Build(false)
	require.NoError(t, err)
	assert.True(t, report.CacheHit)
	second := catalog.Snapshot()
	assert.NotSame(t, first, second)
	require.Len(t, second.Saves, len(first.Saves))
	for i := range first.Saves {
		assert.Equal(t, first.Saves[i].ID, second.Saves[i].ID)
		assert.Equal(t, first.Saves[i].ShortDescription, second.Saves[i].ShortDescription)
		assert.Equal(t, first.Saves[i].SavePath, second.Saves[i].SavePath)
		assert.Equal(t, first.Saves[i].ExtdataID, second.Saves[i].ExtdataID)
		assert.Equal(t, first.Saves[i].Icon, second.Saves[i].Icon)
	}
	assert.Same(t, second.Saves[0], second.Extdata[0])
	assert.Equal(t, []string{"Alpha", "Bravo"}, names(first.Saves))

	install(t, console, emulator.TitleSpec{
		Medium: fileio.MediumSD, ID: 0x0004000000099900, ShortDescription: "Delta",
		Save: map[string][]byte{"main": {4}},
	})
	report, err = catalog.Build(false)
	require.NoError(t, err)
	assert.False(t, report.CacheHit)
	assert.Equal(t, 3, report.Saves)
}

func TestForcedBuildsWriteIdenticalCaches(t *testing.T) {
	console := newConsole(t)
	installDefaults(t, console)
	catalog := newCatalog(console, CatalogOptions{})

	_, err := catalog.Build(true)
	require.NoError(t, err)
	saves, err := os.ReadFile(checkpointPath(console, SAVE_CACHE_FILENAME))
	require.NoError(t, err)
	extdata, err := os.ReadFile(checkpointPath(console, EXTDATA_CACHE_FILENAME))
	require.NoError(t, err)

	report, err := catalog.Build(true)
	require.NoError(t, err)
	assert.False(t, report.CacheHit)
	savesAgain, err := os.ReadFile(checkpointPath(console, SAVE_CACHE_FILENAME))
	require.NoError(t, err)
	extdataAgain, err := os.ReadFile(checkpointPath(console, EXTDATA_CACHE_FILENAME))
	require.NoError(t, err)
	assert.Equal(t, saves, savesAgain)
	assert.Equal(t, extdata, extdataAgain)
	assert.Len(t, saves, cacheHeaderSize+2*cacheRecordSize)
}

func TestCorruptCacheFallsBackToScan(t *testing.T) {
	console := newConsole(t)
	installDefaults(t, console)
	catalog := newCatalog(console, CatalogOptions{})

	_, err := catalog.Build(false)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(checkpointPath(console, SAVE_CACHE_FILENAME), []byte("garbage"), 0644))

	report, err := catalog.Build(false)
	require.NoError(t, err)
	assert.False(t, report.CacheHit)
	assert.Equal(t, []string{"Alpha", "Bravo"}, names(catalog.Snapshot().Saves))

	report, err = catalog.Build(false)
	require.NoError(t, err)
	assert.True(t, report.CacheHit)
}

func TestFavoritesComeFirst(t *testing.T) {
	console := newConsole(t)
	installDefaults(t, console)
	catalog := newCatalog(console, CatalogOptions{Favorites: []uint64{charlieID, bravoID}})

	_, err := catalog.Build(false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bravo", "Alpha"}, names(catalog.Snapshot().Saves))
	assert.Equal(t, []string{"Charlie", "Alpha"}, names(catalog.Snapshot().Extdata))
}

func TestBackupListing(t *testing.T) {
	console := newConsole(t)
	installDefaults(t, console)
	root := checkpointPath(console, "saves", "0x00123 Alpha")
	for _, name := range []string{"20240101-000000", "20240301-000000", NewBackupName} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, name), os.ModePerm))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray.bin"), []byte{1}, 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(console.SDMCDir(), "more", "20240201-000000"), os.ModePerm))

	catalog := newCatalog(console, CatalogOptions{
		AdditionalSaveFolders: map[uint64][]string{alphaID: {"/more"}},
	})
	_, err := catalog.Build(false)
	require.NoError(t, err)

	alpha := catalog.Find(ModeSave, fileio.MediumSD, alphaID)
	require.NotNil(t, alpha)
	backups := alpha.Backups(ModeSave)
	assert.Equal(t, []Backup{
		{Name: NewBackupName},
		{Name: "20240301-000000", Root: "/3ds/Checkpoint/saves/0x00123 Alpha"},
		{Name: "20240201-000000", Root: "/more"},
		{Name: "20240101-000000", Root: "/3ds/Checkpoint/saves/0x00123 Alpha"},
	}, backups)
	assert.True(t, backups[0].IsNew())
	assert.Equal(t, "/more/20240201-000000", backups[2].Path())
	assert.Equal(t, []Backup{{Name: NewBackupName}}, alpha.Backups(ModeExtdata))
}

func TestTWLCardIsPrependedAndNotCached(t *testing.T) {
	console := newConsole(t)
	installDefaults(t, console)
	require.NoError(t, console.InsertTWLCard(&titlefs.LegacyHeader{Title: "POKEMON D", GameCode: "ADAE"}, fileio.ChipFlash512KB1, nil))
	catalog := newCatalog(console, CatalogOptions{ScanCart: true})

	report, err := catalog.Build(false)
	require.NoError(t, err)
	assert.True(t, report.Card)

	saves := catalog.Snapshot().Saves
	require.Len(t, saves, 3)
	card := saves[0]
	assert.True(t, card.IsRawCard())
	assert.Equal(t, uint64(0), card.ID)
	assert.Equal(t, "ADAE", card.UniqueIDText())
	assert.Equal(t, fileio.ChipFlash512KB1, card.ChipType)
	assert.Equal(t, "/3ds/Checkpoint/saves/ADAE POKEMON D", card.SavePath)
	assert.DirExists(t, checkpointPath(console, "saves", "ADAE POKEMON D"))
	assert.Equal(t, []string{"Alpha", "Charlie"}, names(catalog.Snapshot().Extdata))

	raw, err := os.ReadFile(checkpointPath(console, SAVE_CACHE_FILENAME))
	require.NoError(t, err)
	cached, err := decodeTitles(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "Bravo"}, names(cached))

	report, err = catalog.Build(false)
	require.NoError(t, err)
	assert.True(t, report.CacheHit)
	assert.True(t, catalog.Snapshot().Saves[0].IsRawCard())

	require.NoError(t, console.EjectCard())
	_, err = catalog.Build(false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "Bravo"}, names(catalog.Snapshot().Saves))
}

func TestCTRCardIsPrepended(t *testing.T) {
	console := newConsole(t)
	installDefaults(t, console)
	require.NoError(t, console.InsertCTRCard())
	install(t, console, emulator.TitleSpec{
		Medium: fileio.MediumGameCard, ID: 0x0004000000033500, ShortDescription: "Zulu",
		Save: map[string][]byte{"main": {5}},
	})

	catalog := newCatalog(console, CatalogOptions{ScanCart: true})
	_, err := catalog.Build(false)
	require.NoError(t, err)
	saves := catalog.Snapshot().Saves
	assert.Equal(t, []string{"Zulu", "Alpha", "Bravo"}, names(saves))
	assert.Equal(t, fileio.MediumGameCard, saves[0].Medium)
	assert.False(t, saves[0].IsRawCard())
}

func TestBuildInProgress(t *testing.T) {
	console := newConsole(t)
	installDefaults(t, console)
	catalog := newCatalog(console, CatalogOptions{})

	catalog.building.Store(true)
	assert.True(t, catalog.Building())
	assert.False(t, catalog.BuildAsync(false, nil))
	_, err := catalog.Build(false)
	assert.ErrorIs(t, err, ErrBuildInProgress)
	assert.Empty(t, catalog.Snapshot().Saves)
	catalog.building.Store(false)

	done := make(chan BuildReport, 1)
	require.True(t, catalog.BuildAsync(false, func(report BuildReport, err error) {
		assert.NoError(t, err)
		done <- report
	}))
	report := <-done
	assert.Equal(t, 2, report.Saves)
	assert.Len(t, catalog.Snapshot().Saves, 2)
	loaded, limit := catalog.Progress()
	assert.Equal(t, 3, loaded)
	assert.Equal(t, 3, limit)
}

func TestIsValidTitle(t *testing.T) {
	assert.True(t, isValidTitle(alphaID, nil))
	assert.False(t, isValidTitle(0x0004000E00012300, nil))
	assert.False(t, isValidTitle(0x0004001000021A00, nil))
	assert.False(t, isValidTitle(0x0004003020008802, nil))
	assert.False(t, isValidTitle(alphaID, map[uint64]struct{}{alphaID: {}}))
}
