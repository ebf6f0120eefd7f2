package process

import (
	"sort"
	"time"

	"github.com/giwty/save-backup-manager/db"
)

type MissingBackup struct {
	Title *db.Title
	// LastBackup is the newest timestamped backup, zero when there is none.
	LastBackup time.Time
	Age        time.Duration
}

func (m MissingBackup) Never() bool {
	return m.LastBackup.IsZero()
}

// ScanForMissingBackups reports the accessible titles whose newest
// timestamped backup is older than maxAge, or that have none at all. A
// maxAge of 0 only reports titles that were never backed up.
func ScanForMissingBackups(titles []*db.Title, mode db.Mode, now time.Time, maxAge time.Duration) []MissingBackup {
	result := []MissingBackup{}
	for _, title := range titles {
		if !title.Accessible(mode) {
			continue
		}

		var newest time.Time
		for _, backup := range title.Backups(mode) {
			if backup.IsNew() {
				continue
			}
			//custom names carry no date
			stamp, err := time.ParseInLocation(TIMESTAMP_FORMAT, backup.Name, now.Location())
			if err != nil {
				continue
			}
			if stamp.After(newest) {
				newest = stamp
			}
		}

		missing := MissingBackup{Title: title, LastBackup: newest}
		if newest.IsZero() {
			result = append(result, missing)
			continue
		}
		missing.Age = now.Sub(newest)
		if maxAge > 0 && missing.Age > maxAge {
			result = append(result, missing)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Never() != result[j].Never() {
			return result[i].Never()
		}
		return result[i].Age > result[j].Age
	})
	return result
}
