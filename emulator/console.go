// Package emulator implements the console storage services on top of a host
// directory tree, laid out as follows:
//
//	<root>/sdmc/                          SD card
//	<root>/titles/<medium>/<id>/smdh.bin  title descriptors
//	<root>/titles/<medium>/<id>/product_code
//	<root>/savedata/<medium>/<id>/        save containers
//	<root>/savedata/nand/<system save id>/
//	<root>/extdata/<extdata id>/          extdata containers
//	<root>/secure/<unique id>             secure values
//	<root>/card/                          inserted cartridge
//
// Title ids are written as 16 hex digits, container ids as 8.
package emulator

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/giwty/save-backup-manager/fileio"
)

const (
	secureValueSlotSD = 0x1000
	systemSaveBase    = 0x00020000
)

// Console is a fileio.Platform backed by a directory tree.
type Console struct {
	root    string
	options []fileio.DirArchiveOption

	mu        sync.Mutex
	commits   map[uint64]int
	commitErr error
	secureErr error
}

func New(root string, options ...fileio.DirArchiveOption) (*Console, error) {
	for _, dir := range []string{"sdmc", "titles", "savedata", "extdata", "secure"} {
		if err := os.MkdirAll(filepath.Join(root, dir), os.ModePerm); err != nil {
			return nil, err
		}
	}
	return &Console{root: root, options: options, commits: map[uint64]int{}}, nil
}

func (c *Console) Root() string {
	return c.root
}

func (c *Console) titleDir(medium fileio.Medium, id uint64) string {
	return filepath.Join(c.root, "titles", medium.String(), fmt.Sprintf("%016x", id))
}

func (c *Console) saveDir(medium fileio.Medium, id uint64) string {
	if medium == fileio.MediumNand {
		uniqueID := uint32(id) >> 8
		return filepath.Join(c.root, "savedata", medium.String(), fmt.Sprintf("%08x", systemSaveBase|uniqueID))
	}
	return filepath.Join(c.root, "savedata", medium.String(), fmt.Sprintf("%016x", id))
}

func (c *Console) extdataDir(extdataID uint32) string {
	return filepath.Join(c.root, "extdata", fmt.Sprintf("%08x", extdataID))
}

func (c *Console) cardPath(name string) string {
	return filepath.Join(c.root, "card", name)
}

func isDir(name string) bool {
	info, err := os.Stat(name)
	return err == nil && info.IsDir()
}

func (c *Console) OpenSDMC() (fileio.Archive, error) {
	return fileio.NewDirArchive(filepath.Join(c.root, "sdmc"), c.options...), nil
}

func (c *Console) OpenSave(medium fileio.Medium, lowID uint32, highID uint32) (fileio.SaveArchive, error) {
	id := uint64(highID)<<32 | uint64(lowID)
	dir := c.saveDir(medium, id)
	if !isDir(dir) {
		return nil, &fileio.Error{Op: "open save", Path: fmt.Sprintf("%v/%016x", medium, id), Code: fileio.ResultNotFound, Kind: fileio.ErrStorageUnavailable}
	}
	return &saveArchive{DirArchive: fileio.NewDirArchive(dir, c.options...), console: c, id: id}, nil
}

func (c *Console) OpenExtdata(extdataID uint32) (fileio.Archive, error) {
	dir := c.extdataDir(extdataID)
	if !isDir(dir) {
		return nil, &fileio.Error{Op: "open extdata", Path: fmt.Sprintf("%08x", extdataID), Code: fileio.ResultNotFound, Kind: fileio.ErrStorageUnavailable}
	}
	return fileio.NewDirArchive(dir, c.options...), nil
}

func (c *Console) FixSecureValue(medium fileio.Medium, uniqueID uint32) error {
	c.mu.Lock()
	err := c.secureErr
	c.mu.Unlock()
	if err != nil {
		return err
	}

	value := make([]byte, 8)
	binary.LittleEndian.PutUint64(value, uint64(secureValueSlotSD)<<32|uint64(uniqueID)<<8)
	return os.WriteFile(filepath.Join(c.root, "secure", fmt.Sprintf("%08x", uniqueID)), value, 0644)
}

// SecureValue returns the secure value last written for a title.
func (c *Console) SecureValue(uniqueID uint32) (uint64, bool) {
	data, err := os.ReadFile(filepath.Join(c.root, "secure", fmt.Sprintf("%08x", uniqueID)))
	if err != nil || len(data) != 8 {
		return 0, false
	}
	return binary.LittleEndian.Uint64(data), true
}

// Commits returns how many times the save container of id was committed.
func (c *Console) Commits(id uint64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commits[id]
}

// SetCommitError makes every following commit fail with err.
func (c *Console) SetCommitError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commitErr = err
}

// SetSecureValueError makes every following secure value fix fail with err.
func (c *Console) SetSecureValueError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.secureErr = err
}

func (c *Console) TitleIDs(medium fileio.Medium) ([]uint64, error) {
	entries, err := os.ReadDir(filepath.Join(c.root, "titles", medium.String()))
	if err != nil {
		if os.IsNotExist(err) {
			return []uint64{}, nil
		}
		return nil, err
	}
	ids := make([]uint64, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id, err := strconv.ParseUint(entry.Name(), 16, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *Console) Descriptor(medium fileio.Medium, id uint64) ([]byte, error) {
	return os.ReadFile(filepath.Join(c.titleDir(medium, id), "smdh.bin"))
}

func (c *Console) ProductCode(medium fileio.Medium, id uint64) (string, error) {
	data, err := os.ReadFile(filepath.Join(c.titleDir(medium, id), "product_code"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (c *Console) CardType() (fileio.CardType, error) {
	data, err := os.ReadFile(c.cardPath("type"))
	if err != nil {
		if os.IsNotExist(err) {
			return fileio.CardCTR, fileio.ErrNoCard
		}
		return fileio.CardCTR, err
	}
	switch strings.TrimSpace(string(data)) {
	case fileio.CardCTR.String():
		return fileio.CardCTR, nil
	case fileio.CardTWL.String():
		return fileio.CardTWL, nil
	}
	return fileio.CardCTR, errors.New("unknown card type " + string(data))
}

func (c *Console) LegacyHeader() ([]byte, error) {
	return os.ReadFile(c.cardPath("header.bin"))
}

func (c *Console) Chip() (fileio.Chip, error) {
	data, err := os.ReadFile(c.cardPath("chip"))
	if err != nil {
		return nil, err
	}
	return &fileChip{name: c.cardPath("save.bin"), chipType: fileio.ParseChipType(strings.TrimSpace(string(data)))}, nil
}

type saveArchive struct {
	*fileio.DirArchive
	console *Console
	id      uint64
}

func (s *saveArchive) Commit() error {
	s.console.mu.Lock()
	defer s.console.mu.Unlock()
	if s.console.commitErr != nil {
		return s.console.commitErr
	}
	s.console.commits[s.id]++
	return nil
}

// fileChip keeps the chip content in a file of the chip capacity. Missing
// bytes read as erased flash.
type fileChip struct {
	name     string
	chipType fileio.ChipType
}

func (f *fileChip) Type() fileio.ChipType {
	return f.chipType
}

func (f *fileChip) ReadSaveData(off int64, p []byte) error {
	file, err := os.Open(f.name)
	if err != nil {
		return err
	}
	defer file.Close()
	n, err := file.ReadAt(p, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	for i := n; i < len(p); i++ {
		p[i] = 0xFF
	}
	return nil
}

func (f *fileChip) WriteSaveData(off int64, p []byte) error {
	if len(p) > f.chipType.PageSize() {
		return fmt.Errorf("write of %d bytes exceeds the %d bytes page", len(p), f.chipType.PageSize())
	}
	file, err := os.OpenFile(f.name, os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = file.WriteAt(p, off)
	return err
}
