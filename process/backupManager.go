package process

import (
	"errors"
	"path"
	"time"

	"github.com/giwty/save-backup-manager/db"
	"github.com/giwty/save-backup-manager/fileio"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// TIMESTAMP_FORMAT names new backups.
const TIMESTAMP_FORMAT = "20060102-150405"

const (
	OP_BACKUP  = "backup"
	OP_RESTORE = "restore"
	OP_DELETE  = "delete"
)

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(message string) bool
}

// Namer lets the user edit the name of a new backup. ok is false when the
// user backed out.
type Namer interface {
	Name(suggestion string) (name string, ok bool)
}

// Request selects a title of the current catalog and one entry of its
// backup listing. Index 0 is the "New..." entry. Batch requests skip every
// prompt.
type Request struct {
	Mode    db.Mode
	TitleID uint64
	Medium  fileio.Medium
	Index   int
	Batch   bool
}

type Options struct {
	BufferSize int
	// MaxBackups keeps that many timestamped backups per title, 0 keeps all.
	MaxBackups int
	Romaji     bool
	Progress   fileio.ProgressUpdater
	Clock      func() time.Time
}

// BackupManager runs backup, restore and delete requests against the titles
// of a catalog.
type BackupManager struct {
	platform  fileio.Platform
	catalog   *db.TitleCatalog
	journal   *db.Journal
	confirmer Confirmer
	namer     Namer
	opts      Options
	logger    *zap.SugaredLogger
}

func NewBackupManager(platform fileio.Platform, catalog *db.TitleCatalog, journal *db.Journal,
	confirmer Confirmer, namer Namer, opts Options, logger *zap.SugaredLogger) *BackupManager {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &BackupManager{
		platform:  platform,
		catalog:   catalog,
		journal:   journal,
		confirmer: confirmer,
		namer:     namer,
		opts:      opts,
		logger:    logger,
	}
}

func (m *BackupManager) resolve(req Request) (*db.Title, []db.Backup, error) {
	title := m.catalog.Find(req.Mode, req.Medium, req.TitleID)
	if title == nil {
		return nil, nil, ErrTitleNotFound
	}
	backups := title.Backups(req.Mode)
	if req.Index < 0 || req.Index >= len(backups) {
		return nil, nil, ErrInvalidIndex
	}
	return title, backups, nil
}

func (m *BackupManager) confirm(req Request, message string) bool {
	if req.Batch || m.confirmer == nil {
		return true
	}
	return m.confirmer.Confirm(message)
}

func (m *BackupManager) copyOptions(stage string) fileio.CopyOptions {
	return fileio.CopyOptions{BufferSize: m.opts.BufferSize, Stage: stage, Progress: m.opts.Progress}
}

func (m *BackupManager) openContainer(title *db.Title, mode db.Mode) (fileio.Archive, error) {
	if mode == db.ModeExtdata {
		return m.platform.OpenExtdata(title.ExtdataID)
	}
	return m.platform.OpenSave(title.Medium, title.LowID(), title.HighID())
}

func (m *BackupManager) record(title *db.Title, mode db.Mode, op string, folder string, message string, err error) {
	if m.journal == nil {
		return
	}
	entry := db.JournalEntry{
		Time:      m.opts.Clock(),
		TitleID:   title.ID,
		TitleName: title.ShortDescription,
		Mode:      mode.String(),
		Operation: op,
		Folder:    folder,
		Message:   message,
		Success:   err == nil,
	}
	if err != nil {
		entry.Code = fileio.ResultCode(err)
		var opErr *OperationError
		if errors.As(err, &opErr) {
			entry.Code = opErr.Code
			entry.Message = opErr.Message
		}
	}
	if jErr := m.journal.Record(entry); jErr != nil {
		m.logger.Warnf("failed to record %v of %v in the journal - %v", op, title, jErr)
	}
}

// Backup copies the container of the selected title into a backup folder.
// Index 0 creates a new folder named after the current time (or whatever
// the Namer returns); any other index overwrites that backup.
func (m *BackupManager) Backup(req Request) (string, error) {
	title, backups, err := m.resolve(req)
	if err != nil {
		return "", err
	}

	isNewFolder := req.Index == 0
	question := "Backup selected title?"
	if !isNewFolder {
		question = "Overwrite " + backups[req.Index].Name + "?"
	}
	if !m.confirm(req, question) {
		return "", ErrUserCancelled
	}

	var folder string
	if isNewFolder {
		suggestion := m.opts.Clock().Format(TIMESTAMP_FORMAT)
		name := suggestion
		if !req.Batch && m.namer != nil {
			entered, ok := m.namer.Name(suggestion)
			if !ok {
				return "", ErrUserCancelled
			}
			name = entered
		}
		name = fileio.SafeName(name, m.opts.Romaji)
		if name == "" {
			name = suggestion
		}
		folder = path.Join(title.BackupRoot(req.Mode), name)
	} else {
		folder = backups[req.Index].Path()
	}

	m.logger.Infof("Started backup of %v to %v", title, folder)
	message, err := m.backup(title, req.Mode, folder)
	if err != nil {
		m.logger.Errorf("backup of %v failed - %v", title, err)
	} else {
		m.logger.Info("Backup succeeded.")
	}
	m.record(title, req.Mode, OP_BACKUP, folder, message, err)
	return message, err
}

func (m *BackupManager) backup(title *db.Title, mode db.Mode, folder string) (string, error) {
	if !title.Accessible(mode) {
		return "", &OperationError{Code: fileio.ResultNotFound, Message: "Failed to open save archive.", Err: fileio.ErrStorageUnavailable}
	}

	sd, err := m.platform.OpenSDMC()
	if err != nil {
		return "", newOperationError("Failed to open the SD card.", err)
	}
	defer sd.Close()

	var source fileio.Archive
	if title.IsRawCard() {
		chip, err := m.platform.Chip()
		if err != nil {
			return "", newOperationError("Failed to open save archive.", err)
		}
		source = fileio.NewChipArchive(chip)
	} else {
		source, err = m.openContainer(title, mode)
		if err != nil {
			return "", newOperationError("Failed to open save archive.", err)
		}
	}
	defer source.Close()

	if fileio.DirectoryExists(sd, folder) {
		if err := sd.DeleteDirectoryRecursively(folder); err != nil {
			return "", newOperationError("Failed to delete the existing backup directory recursively.", err)
		}
	}
	if err := fileio.CreateDirectories(sd, folder); err != nil {
		return "", newOperationError("Failed to create destination directory.", err)
	}

	if title.IsRawCard() {
		err = backupCard(source.(*fileio.ChipArchive), sd, title, folder, m.copyOptions(OP_BACKUP))
	} else {
		err = fileio.CopyTree(source, sd, "/", folder, m.copyOptions(OP_BACKUP))
	}
	if err != nil {
		err = multierr.Append(err, sd.DeleteDirectoryRecursively(folder))
		if mode == db.ModeExtdata {
			return "", newOperationError("Failed to backup extdata.", err)
		}
		return "", newOperationError("Failed to backup save.", err)
	}

	if m.opts.MaxBackups > 0 {
		pruned, err := PruneBackups(sd, title.BackupRoot(mode), m.opts.MaxBackups)
		if err != nil {
			m.logger.Warnf("failed to prune backups of %v - %v", title, err)
		}
		for _, name := range pruned {
			m.logger.Infof("--> [Delete] Old backup: %v", path.Join(title.BackupRoot(mode), name))
		}
	}
	title.RefreshDirectories(sd, m.logger)
	return "Progress correctly saved to disk.", nil
}

// Restore replaces the container content of the selected title with the
// selected backup. For saves the container is then committed and its secure
// value reset; a failure at that point leaves the copied data in place.
func (m *BackupManager) Restore(req Request) (string, error) {
	title, backups, err := m.resolve(req)
	if err != nil {
		return "", err
	}
	if req.Index == 0 {
		return "", ErrSentinelSelected
	}
	backup := backups[req.Index]
	if !m.confirm(req, "Restore "+backup.Name+"?") {
		return "", ErrUserCancelled
	}

	m.logger.Infof("Started restore of %v from %v", title, backup.Path())
	message, err := m.restore(title, req.Mode, backup)
	if err != nil {
		m.logger.Errorf("restore of %v failed - %v", title, err)
	} else {
		m.logger.Info("Restore succeeded.")
	}
	m.record(title, req.Mode, OP_RESTORE, backup.Path(), message, err)
	return message, err
}

func (m *BackupManager) restore(title *db.Title, mode db.Mode, backup db.Backup) (string, error) {
	sd, err := m.platform.OpenSDMC()
	if err != nil {
		return "", newOperationError("Failed to open the SD card.", err)
	}
	defer sd.Close()

	if title.IsRawCard() {
		if err := restoreCard(m.platform, sd, title, backup.Path()); err != nil {
			return "", err
		}
		return backup.Name + "\nhas been restored successfully.", nil
	}

	if !title.Accessible(mode) {
		return "", &OperationError{Code: fileio.ResultNotFound, Message: "Failed to open save archive.", Err: fileio.ErrStorageUnavailable}
	}
	archive, err := m.openContainer(title, mode)
	if err != nil {
		return "", newOperationError("Failed to open save archive.", err)
	}
	defer archive.Close()

	failure := "Failed to restore save."
	if mode == db.ModeExtdata {
		failure = "Failed to restore extdata."
	}
	if err := fileio.ClearDirectory(archive, "/"); err != nil {
		return "", newOperationError(failure, err)
	}
	if err := fileio.CopyTree(sd, archive, backup.Path(), "/", m.copyOptions(OP_RESTORE)); err != nil {
		return "", newOperationError(failure, err)
	}

	if save, ok := archive.(fileio.SaveArchive); ok && mode == db.ModeSave {
		if err := save.Commit(); err != nil {
			return "", newOperationError("Failed to commit save data.", err)
		}
		if err := m.platform.FixSecureValue(title.Medium, title.UniqueID()); err != nil {
			return "", newOperationError("Failed to fix secure value.", err)
		}
	}
	return backup.Name + "\nhas been restored successfully.", nil
}

// Delete removes the selected backup folder.
func (m *BackupManager) Delete(req Request) (string, error) {
	title, backups, err := m.resolve(req)
	if err != nil {
		return "", err
	}
	if req.Index == 0 {
		return "", ErrSentinelSelected
	}
	backup := backups[req.Index]
	if !m.confirm(req, "Delete "+backup.Name+"?") {
		return "", ErrUserCancelled
	}

	sd, err := m.platform.OpenSDMC()
	if err != nil {
		err = newOperationError("Failed to open the SD card.", err)
		m.record(title, req.Mode, OP_DELETE, backup.Path(), "", err)
		return "", err
	}
	defer sd.Close()

	m.logger.Infof("--> [Delete] Backup folder: %v", backup.Path())
	if err := sd.DeleteDirectoryRecursively(backup.Path()); err != nil {
		m.logger.Errorf("Failed to delete backup folder %v - %v", backup.Path(), err)
		err = newOperationError("Failed to delete backup folder.", err)
		m.record(title, req.Mode, OP_DELETE, backup.Path(), "", err)
		return "", err
	}
	title.RefreshDirectories(sd, m.logger)

	message := backup.Name + "\nhas been deleted."
	m.record(title, req.Mode, OP_DELETE, backup.Path(), message, nil)
	return message, nil
}

// BackupAll creates a new backup for every accessible title of mode, or
// only for the given ids when selection is not empty. It keeps going after
// a failure and returns the number of successful backups together with all
// the failures.
func (m *BackupManager) BackupAll(mode db.Mode, selection []uint64) (int, error) {
	selected := map[uint64]struct{}{}
	for _, id := range selection {
		selected[id] = struct{}{}
	}

	titles := m.catalog.Snapshot().Titles(mode)
	succeeded := 0
	var errs error
	for i, title := range titles {
		if len(selected) > 0 {
			if _, ok := selected[title.ID]; !ok {
				continue
			}
		}
		if !title.Accessible(mode) {
			continue
		}
		if m.opts.Progress != nil {
			m.opts.Progress.UpdateProgress(i+1, len(titles), title.ShortDescription)
		}
		_, err := m.Backup(Request{Mode: mode, TitleID: title.ID, Medium: title.Medium, Batch: true})
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		succeeded++
	}
	return succeeded, errs
}
