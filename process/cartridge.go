package process

import (
	"fmt"
	"path"
	"strings"

	"github.com/giwty/save-backup-manager/db"
	"github.com/giwty/save-backup-manager/fileio"
)

// cardSaveName is the file holding the raw save memory of a DS cartridge
// inside a backup folder.
func cardSaveName(title *db.Title) string {
	return title.ShortDescription + ".sav"
}

// backupCard dumps the whole save memory of the inserted cartridge, one
// sector per read.
func backupCard(chip *fileio.ChipArchive, sd fileio.Archive, title *db.Title, folder string, opts fileio.CopyOptions) error {
	opts.BufferSize = chip.SectorSize()
	return fileio.CopyFile(chip, sd, fileio.ChipSaveFile, path.Join(folder, cardSaveName(title)), opts)
}

// restoreCard writes a save file back to the cartridge one page at a time.
// A file larger than the chip is truncated to its capacity.
func restoreCard(platform fileio.Platform, sd fileio.Archive, title *db.Title, folder string) error {
	if title.ChipType == fileio.ChipFlash8MB {
		return &OperationError{
			Code:    fileio.ResultNotSupported,
			Message: fmt.Sprintf("Restoring saves on %v chips is not supported.", title.ChipType),
			Err:     fileio.ErrNotSupported,
		}
	}

	source, err := findCardSave(sd, title, folder)
	if err != nil {
		return newOperationError("Failed to read save file backup.", err)
	}

	chip, err := platform.Chip()
	if err != nil {
		return newOperationError("Failed to open save archive.", err)
	}
	archive := fileio.NewChipArchive(chip)
	defer archive.Close()

	opts := fileio.CopyOptions{BufferSize: archive.PageSize(), Stage: OP_RESTORE, Limit: title.ChipType.Capacity()}
	if err := fileio.CopyFile(sd, archive, source, fileio.ChipSaveFile, opts); err != nil {
		return newOperationError("Failed to restore save.", err)
	}
	return nil
}

// findCardSave prefers the file named after the title and falls back to the
// first .sav file of the folder.
func findCardSave(sd fileio.Archive, title *db.Title, folder string) (string, error) {
	preferred := path.Join(folder, cardSaveName(title))
	if fileio.FileExists(sd, preferred) {
		return preferred, nil
	}
	entries, err := fileio.ListDirectory(sd, folder)
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		if !entry.IsFolder && strings.HasSuffix(strings.ToLower(entry.Name), ".sav") {
			return path.Join(folder, entry.Name), nil
		}
	}
	return "", &fileio.Error{Op: "open file", Path: preferred, Code: fileio.ResultNotFound, Kind: fileio.ErrNotFound}
}
