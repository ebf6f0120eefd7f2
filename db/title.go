package db

import (
	"fmt"
	"path"
	"sort"
	"sync"

	"github.com/giwty/save-backup-manager/fileio"
	"go.uber.org/zap"
)

// NewBackupName is the name of the synthetic first entry of every backup
// listing, selecting it creates a new backup.
const NewBackupName = "New..."

type Mode int

const (
	ModeSave Mode = iota
	ModeExtdata
)

func (m Mode) String() string {
	if m == ModeExtdata {
		return "extdata"
	}
	return "save"
}

// Backup is one entry of a title's backup listing. Root is the folder the
// backup lives in, empty for the sentinel.
type Backup struct {
	Name string
	Root string
}

func (b Backup) Path() string {
	return path.Join(b.Root, b.Name)
}

func (b Backup) IsNew() bool {
	return b.Root == "" && b.Name == NewBackupName
}

// Title is one installed application with its containers and backups.
type Title struct {
	ID                uint64
	Medium            fileio.Medium
	CardType          fileio.CardType
	ChipType          fileio.ChipType
	ProductCode       string
	ShortDescription  string
	LongDescription   string
	SavePath          string
	ExtdataPath       string
	AccessibleSave    bool
	AccessibleExtdata bool
	ExtdataID         uint32
	// Icon is the 48x48 RGB565 tiled bitmap of the title.
	Icon []byte

	// extra backup roots configured for this title
	saveFolders    []string
	extdataFolders []string

	mu      sync.RWMutex
	saves   []Backup
	extdata []Backup
}

func (t *Title) LowID() uint32 {
	low, _ := splitTitleID(t.ID)
	return low
}

func (t *Title) HighID() uint32 {
	_, high := splitTitleID(t.ID)
	return high
}

func (t *Title) UniqueID() uint32 {
	return uniqueID(t.ID)
}

// UniqueIDText prefixes backup folders. Raw DS cartridges have no title id
// and use their game code instead.
func (t *Title) UniqueIDText() string {
	if t.IsRawCard() {
		return t.ProductCode
	}
	return fmt.Sprintf("0x%05X", t.UniqueID())
}

// IsRawCard reports whether the title is a DS cartridge whose save lives on
// a chip instead of a container.
func (t *Title) IsRawCard() bool {
	return t.Medium == fileio.MediumGameCard && t.CardType == fileio.CardTWL
}

func (t *Title) Accessible(mode Mode) bool {
	if mode == ModeExtdata {
		return t.AccessibleExtdata
	}
	return t.AccessibleSave
}

// BackupRoot is the folder new backups of mode are created in.
func (t *Title) BackupRoot(mode Mode) string {
	if mode == ModeExtdata {
		return t.ExtdataPath
	}
	return t.SavePath
}

// Backups returns a copy of the backup listing of mode, sentinel first.
func (t *Title) Backups(mode Mode) []Backup {
	t.mu.RLock()
	defer t.mu.RUnlock()
	list := t.saves
	if mode == ModeExtdata {
		list = t.extdata
	}
	if len(list) == 0 {
		return []Backup{{Name: NewBackupName}}
	}
	return append([]Backup(nil), list...)
}

// RefreshDirectories lists the backups of the title from the SD card,
// newest first. Unreadable folders are logged and skipped.
func (t *Title) RefreshDirectories(sd fileio.Archive, logger *zap.SugaredLogger) {
	var saves, extdata []Backup
	if t.AccessibleSave {
		saves = listBackups(sd, append([]string{t.SavePath}, t.saveFolders...), logger)
	}
	if t.AccessibleExtdata {
		extdata = listBackups(sd, append([]string{t.ExtdataPath}, t.extdataFolders...), logger)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.saves = saves
	t.extdata = extdata
}

func listBackups(sd fileio.Archive, roots []string, logger *zap.SugaredLogger) []Backup {
	backups := []Backup{}
	for _, root := range roots {
		if root == "" {
			continue
		}
		entries, err := fileio.ListDirectory(sd, root)
		if err != nil {
			logger.Debugf("failed to list backups in %v - %v", root, err)
			continue
		}
		for _, entry := range entries {
			if entry.IsFolder && entry.Name != NewBackupName {
				backups = append(backups, Backup{Name: entry.Name, Root: root})
			}
		}
	}
	sort.SliceStable(backups, func(i, j int) bool {
		return backups[i].Name > backups[j].Name
	})
	return append([]Backup{{Name: NewBackupName}}, backups...)
}

func (t *Title) String() string {
	return fmt.Sprintf("%v [%v]", t.ShortDescription, formatTitleID(t.ID))
}
