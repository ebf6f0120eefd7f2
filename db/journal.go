package db

import (
	"time"
)

const (
	JOURNAL_TABLENAME = "journal"
	LAST_BUILD_KEY    = "last_build"
)

// JournalEntry records the outcome of one backup operation.
type JournalEntry struct {
	Time      time.Time
	TitleID   uint64
	TitleName string
	Mode      string
	Operation string
	Folder    string
	Code      uint32
	Message   string
	Success   bool
}

// Journal is the operation history kept in the persistent DB.
type Journal struct {
	db *PersistentDB
}

func NewJournal(db *PersistentDB) *Journal {
	return &Journal{db: db}
}

func (j *Journal) Record(entry JournalEntry) error {
	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}
	_, err := j.db.AppendEntry(JOURNAL_TABLENAME, entry)
	return err
}

// Recent returns up to n entries, newest first. n <= 0 returns all of them.
func (j *Journal) Recent(n int) ([]JournalEntry, error) {
	entries := []JournalEntry{}
	err := j.db.ForEachEntry(JOURNAL_TABLENAME, func(key string, decode func(interface{}) error) error {
		var entry JournalEntry
		if err := decode(&entry); err != nil {
			return err
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}

// BuildRecord is the outcome of the last catalog build.
type BuildRecord struct {
	Time time.Time
	BuildReport
}

func (j *Journal) RecordBuild(report BuildReport, at time.Time) error {
	return j.db.AddEntry(DB_INTERNAL_TABLENAME, LAST_BUILD_KEY, BuildRecord{Time: at, BuildReport: report})
}

// LastBuild returns the last recorded build, ok is false when no build was
// recorded yet.
func (j *Journal) LastBuild() (BuildRecord, bool, error) {
	var record BuildRecord
	if err := j.db.GetEntry(DB_INTERNAL_TABLENAME, LAST_BUILD_KEY, &record); err != nil {
		return record, false, err
	}
	return record, !record.Time.IsZero(), nil
}

func (j *Journal) Clear() error {
	return j.db.ClearTable(JOURNAL_TABLENAME)
}
