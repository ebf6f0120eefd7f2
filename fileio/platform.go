package fileio

// Medium is the storage location a title is installed on.
type Medium uint8

const (
	MediumNand Medium = iota
	MediumSD
	MediumGameCard
)

func (m Medium) String() string {
	switch m {
	case MediumNand:
		return "nand"
	case MediumSD:
		return "sd"
	case MediumGameCard:
		return "card"
	}
	return "unknown"
}

// CardType is the kind of cartridge inserted in the card slot.
type CardType uint8

const (
	CardCTR CardType = iota
	CardTWL
)

func (c CardType) String() string {
	if c == CardTWL {
		return "TWL"
	}
	return "CTR"
}

// ChipType is the save memory chip of a raw DS cartridge.
type ChipType int8

const (
	ChipNone ChipType = iota - 1
	ChipEEPROM512B
	ChipEEPROM8KB
	ChipEEPROM64KB
	ChipEEPROM128KB
	ChipFlash256KB1
	ChipFlash256KB2
	ChipFlash512KB1
	ChipFlash512KB2
	ChipFlash1MB
	ChipFlash8MB
	ChipFlash512KBInfrared
	ChipFlash256KBInfrared
)

var chipCapacityShift = [...]uint{9, 13, 16, 17, 18, 18, 19, 19, 20, 23, 19, 19}

var chipNames = [...]string{
	"EEPROM_512B",
	"EEPROM_8KB",
	"EEPROM_64KB",
	"EEPROM_128KB",
	"FLASH_256KB_1",
	"FLASH_256KB_2",
	"FLASH_512KB_1",
	"FLASH_512KB_2",
	"FLASH_1MB",
	"FLASH_8MB",
	"FLASH_512KB_INFRARED",
	"FLASH_256KB_INFRARED",
}

func (c ChipType) Valid() bool {
	return c > ChipNone && int(c) < len(chipCapacityShift)
}

// Capacity is the save size of the chip in bytes.
func (c ChipType) Capacity() int64 {
	if !c.Valid() {
		return 0
	}
	return 1 << chipCapacityShift[c]
}

// PageSize is the write granularity of the chip.
func (c ChipType) PageSize() int {
	switch c {
	case ChipEEPROM512B:
		return 16
	case ChipEEPROM8KB:
		return 32
	case ChipEEPROM64KB:
		return 128
	case ChipEEPROM128KB:
		return 256
	}
	return 256
}

func (c ChipType) String() string {
	if !c.Valid() {
		return "NO_CHIP"
	}
	return chipNames[c]
}

// ParseChipType maps a chip name as printed by String back to its type.
func ParseChipType(name string) ChipType {
	for i, n := range chipNames {
		if n == name {
			return ChipType(i)
		}
	}
	return ChipNone
}

type OpenFlag int

const (
	OpenModeRead OpenFlag = iota
	OpenModeWrite
)

// Entry is a single directory entry.
type Entry struct {
	Name     string
	IsFolder bool
}

type DirHandle interface {
	// Read fills entries and returns how many were read; zero means the
	// directory is exhausted.
	Read(entries []Entry) (int, error)
	Close() error
}

type FileHandle interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Size() (int64, error)
	Close() error
}

// Archive is an opened storage container. Paths are slash separated and
// rooted at "/".
type Archive interface {
	OpenDirectory(p string) (DirHandle, error)
	OpenFile(p string, flag OpenFlag) (FileHandle, error)
	CreateFile(p string, size int64) error
	CreateDirectory(p string) error
	DeleteFile(p string) error
	// DeleteDirectoryRecursively removes p and everything below it. For
	// the archive root only the contents are removed.
	DeleteDirectoryRecursively(p string) error
	Close() error
}

// SaveArchive is a save data container, which needs a commit after writes.
type SaveArchive interface {
	Archive
	Commit() error
}

// Backend opens the console storage containers.
type Backend interface {
	OpenSDMC() (Archive, error)
	OpenSave(medium Medium, lowID uint32, highID uint32) (SaveArchive, error)
	OpenExtdata(extdataID uint32) (Archive, error)
	FixSecureValue(medium Medium, uniqueID uint32) error
}

// Chip is the raw save memory of a DS cartridge.
type Chip interface {
	Type() ChipType
	ReadSaveData(off int64, p []byte) error
	WriteSaveData(off int64, p []byte) error
}

// TitleDatabase answers queries about installed titles.
type TitleDatabase interface {
	TitleIDs(medium Medium) ([]uint64, error)
	// Descriptor returns the raw SMDH metadata block of a title.
	Descriptor(medium Medium, id uint64) ([]byte, error)
	ProductCode(medium Medium, id uint64) (string, error)
	// CardType returns ErrNoCard when the slot is empty.
	CardType() (CardType, error)
	// LegacyHeader returns the header of an inserted DS cartridge.
	LegacyHeader() ([]byte, error)
	Chip() (Chip, error)
}

type Platform interface {
	Backend
	TitleDatabase
}
