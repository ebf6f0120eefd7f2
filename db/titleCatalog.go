package db

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"sort"
	"sync/atomic"
	"time"

	"github.com/giwty/save-backup-manager/fileio"
	"github.com/giwty/save-backup-manager/settings"
	"github.com/giwty/save-backup-manager/titlefs"
	"go.uber.org/zap"
)

const (
	SAVES_FOLDER           = "saves"
	EXTDATA_FOLDER         = "extdata"
	SAVE_CACHE_FILENAME    = "fullsavecache"
	EXTDATA_CACHE_FILENAME = "fullextdatacache"
	HASH_FILENAME          = "titles.sha"
)

var ErrBuildInProgress = errors.New("a catalog build is already running")

// CatalogOptions configures which titles a catalog holds and where their
// backups live.
type CatalogOptions struct {
	CheckpointDir            string
	NandSaves                bool
	ScanCart                 bool
	Filter                   []uint64
	Favorites                []uint64
	AdditionalSaveFolders    map[uint64][]string
	AdditionalExtdataFolders map[uint64][]string
	ExtdataTable             settings.ExtdataTable
	RomajiFolderNames        bool
	Progress                 fileio.ProgressUpdater
}

// Snapshot is one generation of the catalog. It is never modified after
// being published; a title present in both lists is the same *Title.
type Snapshot struct {
	Saves   []*Title
	Extdata []*Title
	BuiltAt time.Time
}

func (s *Snapshot) Titles(mode Mode) []*Title {
	if mode == ModeExtdata {
		return s.Extdata
	}
	return s.Saves
}

// Find returns the title with the given medium and id, or nil.
func (s *Snapshot) Find(mode Mode, medium fileio.Medium, id uint64) *Title {
	for _, title := range s.Titles(mode) {
		if title.ID == id && title.Medium == medium {
			return title
		}
	}
	return nil
}

// BuildReport summarizes a catalog build.
type BuildReport struct {
	CacheHit bool
	Saves    int
	Extdata  int
	Skipped  int
	Card     bool
	Duration time.Duration
}

type titleRef struct {
	medium fileio.Medium
	id     uint64
}

// TitleCatalog discovers the installed titles and keeps the current
// snapshot. Builds run one at a time and publish a new snapshot only once
// complete.
type TitleCatalog struct {
	platform fileio.Platform
	opts     CatalogOptions
	logger   *zap.SugaredLogger

	current  atomic.Pointer[Snapshot]
	building atomic.Bool
	loaded   atomic.Int32
	limit    atomic.Int32
}

func NewTitleCatalog(platform fileio.Platform, opts CatalogOptions, logger *zap.SugaredLogger) *TitleCatalog {
	if opts.CheckpointDir == "" {
		opts.CheckpointDir = settings.DEFAULT_CHECKPOINT_DIR
	}
	if opts.ExtdataTable == nil {
		opts.ExtdataTable = settings.DefaultExtdataTable()
	}
	c := &TitleCatalog{platform: platform, opts: opts, logger: logger}
	c.current.Store(&Snapshot{Saves: []*Title{}, Extdata: []*Title{}})
	return c
}

// Snapshot returns the last published catalog.
func (c *TitleCatalog) Snapshot() *Snapshot {
	return c.current.Load()
}

// Find looks a title up in the last published catalog.
func (c *TitleCatalog) Find(mode Mode, medium fileio.Medium, id uint64) *Title {
	return c.Snapshot().Find(mode, medium, id)
}

func (c *TitleCatalog) Building() bool {
	return c.building.Load()
}

// Progress returns how many titles of the running build were processed.
func (c *TitleCatalog) Progress() (int, int) {
	return int(c.loaded.Load()), int(c.limit.Load())
}

func (c *TitleCatalog) BackupsDir(mode Mode) string {
	if mode == ModeExtdata {
		return path.Join(c.opts.CheckpointDir, EXTDATA_FOLDER)
	}
	return path.Join(c.opts.CheckpointDir, SAVES_FOLDER)
}

// Build runs a build on the calling goroutine. forceRefresh skips the
// cache.
func (c *TitleCatalog) Build(forceRefresh bool) (BuildReport, error) {
	if !c.building.CompareAndSwap(false, true) {
		return BuildReport{}, ErrBuildInProgress
	}
	defer c.building.Store(false)
	return c.build(forceRefresh)
}

// BuildAsync starts a build on a new goroutine and reports false, without
// doing anything, when a build is already running. done may be nil.
func (c *TitleCatalog) BuildAsync(forceRefresh bool, done func(BuildReport, error)) bool {
	if !c.building.CompareAndSwap(false, true) {
		return false
	}
	go func() {
		defer c.building.Store(false)
		report, err := c.build(forceRefresh)
		if err != nil {
			c.logger.Errorf("catalog build failed - %v", err)
		}
		if done != nil {
			done(report, err)
		}
	}()
	return true
}

func (c *TitleCatalog) build(forceRefresh bool) (BuildReport, error) {
	start := time.Now()
	report := BuildReport{}

	sd, err := c.platform.OpenSDMC()
	if err != nil {
		return report, fmt.Errorf("failed to open the SD card: %w", err)
	}
	defer sd.Close()

	for _, dir := range []string{c.BackupsDir(ModeSave), c.BackupsDir(ModeExtdata)} {
		if err := fileio.CreateDirectories(sd, dir); err != nil {
			return report, fmt.Errorf("failed to create %v: %w", dir, err)
		}
	}

	refs, err := c.enumerate()
	if err != nil {
		return report, err
	}
	ids := make([]uint64, len(refs))
	for i, ref := range refs {
		ids[i] = ref.id
	}
	hash := hashTitleIDs(ids)
	c.limit.Store(int32(len(refs)))
	c.loaded.Store(0)

	var saves, extdata []*Title
	if !forceRefresh && c.cacheFresh(sd, hash[:]) {
		saves, extdata, err = c.loadCache(sd)
		if err != nil {
			c.logger.Warnf("ignoring title cache - %v", err)
		} else {
			report.CacheHit = true
			c.advance(len(refs), len(refs), "")
		}
	}

	if !report.CacheHit {
		saves, extdata, report.Skipped = c.scan(sd, refs)
		c.sortTitles(saves)
		c.sortTitles(extdata)
		if err := c.storeCache(sd, saves, extdata, hash[:]); err != nil {
			c.logger.Warnf("failed to write the title cache - %v", err)
		}
	} else {
		c.sortTitles(saves)
		c.sortTitles(extdata)
	}

	if c.opts.ScanCart {
		card, err := c.scanCard(sd)
		if err != nil {
			c.logger.Warnf("failed to read the inserted cartridge - %v", err)
		}
		if card != nil {
			report.Card = true
			if card.AccessibleSave {
				saves = append([]*Title{card}, saves...)
			}
			if card.AccessibleExtdata {
				extdata = append([]*Title{card}, extdata...)
			}
		}
	}

	report.Saves = len(saves)
	report.Extdata = len(extdata)
	report.Duration = time.Since(start)
	c.current.Store(&Snapshot{Saves: saves, Extdata: extdata, BuiltAt: time.Now()})
	c.logger.Infof("catalog built: %d saves, %d extdata, cache hit: %v, took %v", report.Saves, report.Extdata, report.CacheHit, report.Duration)
	return report, nil
}

func (c *TitleCatalog) enumerate() ([]titleRef, error) {
	media := []fileio.Medium{fileio.MediumSD}
	if c.opts.NandSaves {
		media = append(media, fileio.MediumNand)
	}
	refs := []titleRef{}
	for _, medium := range media {
		ids, err := c.platform.TitleIDs(medium)
		if err != nil {
			return nil, fmt.Errorf("failed to list %v titles: %w", medium, err)
		}
		for _, id := range ids {
			refs = append(refs, titleRef{medium: medium, id: id})
		}
	}
	return refs, nil
}

func (c *TitleCatalog) cachePath(name string) string {
	return path.Join(c.opts.CheckpointDir, name)
}

func (c *TitleCatalog) cacheFresh(sd fileio.Archive, hash []byte) bool {
	stored, err := fileio.ReadFile(sd, c.cachePath(HASH_FILENAME))
	if err != nil || !bytes.Equal(stored, hash) {
		return false
	}
	return fileio.FileExists(sd, c.cachePath(SAVE_CACHE_FILENAME)) &&
		fileio.FileExists(sd, c.cachePath(EXTDATA_CACHE_FILENAME))
}

func (c *TitleCatalog) loadCache(sd fileio.Archive) ([]*Title, []*Title, error) {
	raw, err := fileio.ReadFile(sd, c.cachePath(SAVE_CACHE_FILENAME))
	if err != nil {
		return nil, nil, err
	}
	saves, err := decodeTitles(raw)
	if err != nil {
		return nil, nil, err
	}
	raw, err = fileio.ReadFile(sd, c.cachePath(EXTDATA_CACHE_FILENAME))
	if err != nil {
		return nil, nil, err
	}
	extdata, err := decodeTitles(raw)
	if err != nil {
		return nil, nil, err
	}

	byRef := map[titleRef]*Title{}
	for _, title := range saves {
		c.configure(title)
		byRef[titleRef{medium: title.Medium, id: title.ID}] = title
	}
	for i, title := range extdata {
		if shared, ok := byRef[titleRef{medium: title.Medium, id: title.ID}]; ok {
			extdata[i] = shared
			continue
		}
		c.configure(title)
	}

	for _, title := range saves {
		title.RefreshDirectories(sd, c.logger)
	}
	for _, title := range extdata {
		if !title.AccessibleSave {
			title.RefreshDirectories(sd, c.logger)
		}
	}
	return saves, extdata, nil
}

func (c *TitleCatalog) storeCache(sd fileio.Archive, saves []*Title, extdata []*Title, hash []byte) error {
	if err := fileio.WriteFile(sd, c.cachePath(SAVE_CACHE_FILENAME), encodeTitles(saves)); err != nil {
		return err
	}
	if err := fileio.WriteFile(sd, c.cachePath(EXTDATA_CACHE_FILENAME), encodeTitles(extdata)); err != nil {
		return err
	}
	return fileio.WriteFile(sd, c.cachePath(HASH_FILENAME), hash)
}

func (c *TitleCatalog) scan(sd fileio.Archive, refs []titleRef) ([]*Title, []*Title, int) {
	filter := map[uint64]struct{}{}
	for _, id := range c.opts.Filter {
		filter[id] = struct{}{}
	}

	saves := []*Title{}
	extdata := []*Title{}
	skipped := 0
	for i, ref := range refs {
		c.advance(i+1, len(refs), formatTitleID(ref.id))
		if !isValidTitle(ref.id, filter) {
			skipped++
			continue
		}
		title, err := c.loadTitle(sd, ref.medium, ref.id)
		if err != nil {
			c.logger.Warnf("skipping title %v on %v - %v", formatTitleID(ref.id), ref.medium, err)
			skipped++
			continue
		}
		if !title.AccessibleSave && !title.AccessibleExtdata {
			c.logger.Debugf("skipping %v, no accessible storage", title)
			skipped++
			continue
		}
		if title.AccessibleSave {
			saves = append(saves, title)
		}
		if title.AccessibleExtdata {
			extdata = append(extdata, title)
		}
	}
	return saves, extdata, skipped
}

func (c *TitleCatalog) advance(loaded int, total int, message string) {
	c.loaded.Store(int32(loaded))
	if c.opts.Progress != nil {
		c.opts.Progress.UpdateProgress(loaded, total, message)
	}
}

// loadTitle reads the descriptor of a title, probes its containers and
// lists its backups.
func (c *TitleCatalog) loadTitle(sd fileio.Archive, medium fileio.Medium, id uint64) (*Title, error) {
	raw, err := c.platform.Descriptor(medium, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load descriptor: %w", err)
	}
	smdh, err := titlefs.ParseSMDH(raw)
	if err != nil {
		return nil, err
	}
	names := smdh.Title(titlefs.English)

	productCode, err := c.platform.ProductCode(medium, id)
	if err != nil {
		c.logger.Debugf("no product code for %v - %v", formatTitleID(id), err)
	}

	title := &Title{
		ID:               id,
		Medium:           medium,
		CardType:         fileio.CardCTR,
		ChipType:         fileio.ChipNone,
		ProductCode:      productCode,
		ShortDescription: fileio.SafeName(names.ShortDescription, false),
		LongDescription:  fileio.SafeName(names.LongDescription, false),
		Icon:             smdh.LargeIcon,
	}
	if title.ShortDescription == "" {
		title.ShortDescription = title.UniqueIDText()
	}
	c.configure(title)

	folder := title.UniqueIDText()
	if name := fileio.SafeName(names.ShortDescription, c.opts.RomajiFolderNames); name != "" {
		folder += " " + name
	}
	title.SavePath = path.Join(c.BackupsDir(ModeSave), folder)
	title.ExtdataPath = path.Join(c.BackupsDir(ModeExtdata), folder)

	if archive, err := c.platform.OpenSave(medium, title.LowID(), title.HighID()); err == nil {
		archive.Close()
		title.AccessibleSave = true
	}
	if medium != fileio.MediumNand {
		if archive, err := c.platform.OpenExtdata(title.ExtdataID); err == nil {
			archive.Close()
			title.AccessibleExtdata = true
		}
	}

	if title.AccessibleSave {
		if err := fileio.CreateDirectories(sd, title.SavePath); err != nil {
			c.logger.Warnf("failed to create %v - %v", title.SavePath, err)
		}
	}
	if title.AccessibleExtdata {
		if err := fileio.CreateDirectories(sd, title.ExtdataPath); err != nil {
			c.logger.Warnf("failed to create %v - %v", title.ExtdataPath, err)
		}
	}
	title.RefreshDirectories(sd, c.logger)
	return title, nil
}

// scanCard returns the title of the inserted cartridge, or nil when the slot
// is empty.
func (c *TitleCatalog) scanCard(sd fileio.Archive) (*Title, error) {
	cardType, err := c.platform.CardType()
	if errors.Is(err, fileio.ErrNoCard) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if cardType == fileio.CardCTR {
		ids, err := c.platform.TitleIDs(fileio.MediumGameCard)
		if err != nil || len(ids) == 0 {
			return nil, err
		}
		if !isValidTitle(ids[0], nil) {
			return nil, nil
		}
		return c.loadTitle(sd, fileio.MediumGameCard, ids[0])
	}

	raw, err := c.platform.LegacyHeader()
	if err != nil {
		return nil, err
	}
	header, err := titlefs.ParseLegacyHeader(raw)
	if err != nil {
		return nil, err
	}
	chip, err := c.platform.Chip()
	if err != nil {
		return nil, err
	}
	if !chip.Type().Valid() {
		return nil, fmt.Errorf("unsupported save chip on %v", header.GameCode)
	}

	title := &Title{
		Medium:           fileio.MediumGameCard,
		CardType:         fileio.CardTWL,
		ChipType:         chip.Type(),
		ProductCode:      header.GameCode,
		ShortDescription: fileio.SafeName(header.Title, false),
		LongDescription:  fileio.SafeName(header.Title, false),
		AccessibleSave:   true,
	}
	folder := header.GameCode
	if name := fileio.SafeName(header.Title, c.opts.RomajiFolderNames); name != "" {
		folder += " " + name
	}
	title.SavePath = path.Join(c.BackupsDir(ModeSave), folder)
	if err := fileio.CreateDirectories(sd, title.SavePath); err != nil {
		c.logger.Warnf("failed to create %v - %v", title.SavePath, err)
	}
	title.RefreshDirectories(sd, c.logger)
	return title, nil
}

// configure applies the settings that are not part of the cache.
func (c *TitleCatalog) configure(title *Title) {
	title.ExtdataID = c.opts.ExtdataTable.ExtdataID(title.LowID())
	title.saveFolders = append([]string(nil), c.opts.AdditionalSaveFolders[title.ID]...)
	title.extdataFolders = append([]string(nil), c.opts.AdditionalExtdataFolders[title.ID]...)
}

// sortTitles puts favorites first, then orders by name.
func (c *TitleCatalog) sortTitles(titles []*Title) {
	favorites := map[uint64]struct{}{}
	for _, id := range c.opts.Favorites {
		favorites[id] = struct{}{}
	}
	sort.SliceStable(titles, func(i, j int) bool {
		_, fi := favorites[titles[i].ID]
		_, fj := favorites[titles[j].ID]
		if fi != fj {
			return fi
		}
		return titles[i].ShortDescription < titles[j].ShortDescription
	})
}
