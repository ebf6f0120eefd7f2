package process

import (
	"path"
	"sort"
	"time"

	"github.com/giwty/save-backup-manager/fileio"
)

// PruneBackups deletes the oldest timestamped backups under root until at
// most keep of them remain. Folders with a custom name are never touched.
// It returns the names of the deleted folders.
func PruneBackups(sd fileio.Archive, root string, keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}
	entries, err := fileio.ListDirectory(sd, root)
	if err != nil {
		return nil, err
	}

	timestamps := []string{}
	for _, entry := range entries {
		if !entry.IsFolder {
			continue
		}
		if _, err := time.Parse(TIMESTAMP_FORMAT, entry.Name); err == nil {
			timestamps = append(timestamps, entry.Name)
		}
	}
	if len(timestamps) <= keep {
		return nil, nil
	}
	sort.Strings(timestamps)

	deleted := []string{}
	for _, name := range timestamps[:len(timestamps)-keep] {
		if err := sd.DeleteDirectoryRecursively(path.Join(root, name)); err != nil {
			return deleted, err
		}
		deleted = append(deleted, name)
	}
	return deleted, nil
}
