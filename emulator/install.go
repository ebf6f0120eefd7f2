package emulator

import (
	"os"
	"path/filepath"

	"github.com/giwty/save-backup-manager/fileio"
	"github.com/giwty/save-backup-manager/titlefs"
)

// TitleSpec describes a title to install. Save and Extdata hold container
// files keyed by slash separated path; a nil map means the title has no such
// container.
type TitleSpec struct {
	Medium           fileio.Medium
	ID               uint64
	ShortDescription string
	LongDescription  string
	Publisher        string
	ProductCode      string
	Icon             []byte
	ExtdataID        uint32
	Save             map[string][]byte
	Extdata          map[string][]byte
}

// InstallTitle writes the descriptor and containers of a title.
func (c *Console) InstallTitle(spec TitleSpec) error {
	smdh := &titlefs.SMDH{LargeIcon: spec.Icon}
	smdh.Titles[titlefs.English] = titlefs.ApplicationTitle{
		ShortDescription: spec.ShortDescription,
		LongDescription:  spec.LongDescription,
		Publisher:        spec.Publisher,
	}
	data, err := titlefs.EncodeSMDH(smdh)
	if err != nil {
		return err
	}

	dir := c.titleDir(spec.Medium, spec.ID)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "smdh.bin"), data, 0644); err != nil {
		return err
	}
	if spec.ProductCode != "" {
		if err := os.WriteFile(filepath.Join(dir, "product_code"), []byte(spec.ProductCode), 0644); err != nil {
			return err
		}
	}

	if spec.Save != nil {
		if err := writeTree(c.saveDir(spec.Medium, spec.ID), spec.Save); err != nil {
			return err
		}
	}
	if spec.Extdata != nil {
		if err := writeTree(c.extdataDir(spec.ExtdataID), spec.Extdata); err != nil {
			return err
		}
	}
	return nil
}

// UninstallTitle removes the descriptor of a title, keeping its containers.
func (c *Console) UninstallTitle(medium fileio.Medium, id uint64) error {
	return os.RemoveAll(c.titleDir(medium, id))
}

// SaveDir is the host directory backing the save container of a title.
func (c *Console) SaveDir(medium fileio.Medium, id uint64) string {
	return c.saveDir(medium, id)
}

// ExtdataDir is the host directory backing an extdata container.
func (c *Console) ExtdataDir(extdataID uint32) string {
	return c.extdataDir(extdataID)
}

// SDMCDir is the host directory backing the SD card.
func (c *Console) SDMCDir() string {
	return filepath.Join(c.root, "sdmc")
}

// InsertCTRCard inserts a 3DS cartridge; its titles are installed with
// InstallTitle on fileio.MediumGameCard.
func (c *Console) InsertCTRCard() error {
	if err := os.MkdirAll(c.cardPath(""), os.ModePerm); err != nil {
		return err
	}
	return os.WriteFile(c.cardPath("type"), []byte(fileio.CardCTR.String()), 0644)
}

// InsertTWLCard inserts a DS cartridge with the given save chip content.
func (c *Console) InsertTWLCard(header *titlefs.LegacyHeader, chip fileio.ChipType, save []byte) error {
	if err := os.MkdirAll(c.cardPath(""), os.ModePerm); err != nil {
		return err
	}
	if err := os.WriteFile(c.cardPath("type"), []byte(fileio.CardTWL.String()), 0644); err != nil {
		return err
	}
	if err := os.WriteFile(c.cardPath("header.bin"), titlefs.EncodeLegacyHeader(header), 0644); err != nil {
		return err
	}
	if err := os.WriteFile(c.cardPath("chip"), []byte(chip.String()), 0644); err != nil {
		return err
	}
	data := make([]byte, chip.Capacity())
	for i := range data {
		data[i] = 0xFF
	}
	copy(data, save)
	return os.WriteFile(c.cardPath("save.bin"), data, 0644)
}

// CardSave returns the raw save memory of the inserted DS cartridge.
func (c *Console) CardSave() ([]byte, error) {
	return os.ReadFile(c.cardPath("save.bin"))
}

// EjectCard removes the inserted cartridge and the titles it carried.
func (c *Console) EjectCard() error {
	if err := os.RemoveAll(c.cardPath("")); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(c.root, "titles", fileio.MediumGameCard.String())); err != nil {
		return err
	}
	return os.RemoveAll(filepath.Join(c.root, "savedata", fileio.MediumGameCard.String()))
}

func writeTree(root string, files map[string][]byte) error {
	if err := os.MkdirAll(root, os.ModePerm); err != nil {
		return err
	}
	for name, data := range files {
		target := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(target), os.ModePerm); err != nil {
			return err
		}
		if err := os.WriteFile(target, data, 0644); err != nil {
			return err
		}
	}
	return nil
}
