package fileio

import (
	"path"
	"strings"
)

// ListDirectory reads every entry of p in the order the archive yields them.
// When the directory cannot be opened it returns an empty slice and an error
// matching ErrDirectoryUnreadable.
func ListDirectory(archive Archive, p string) ([]Entry, error) {
	dir, err := archive.OpenDirectory(p)
	if err != nil {
		return []Entry{}, newError("list directory", p, ErrDirectoryUnreadable, err)
	}
	defer dir.Close()

	entries := []Entry{}
	buf := make([]Entry, 1)
	for {
		n, err := dir.Read(buf)
		if err != nil {
			return entries, newError("list directory", p, ErrDirectoryUnreadable, err)
		}
		if n == 0 {
			break
		}
		entries = append(entries, buf[0])
	}
	return entries, nil
}

// DirectoryExists reports whether p can be opened as a directory.
func DirectoryExists(archive Archive, p string) bool {
	dir, err := archive.OpenDirectory(p)
	if err != nil {
		return false
	}
	dir.Close()
	return true
}

// FileExists reports whether p can be opened as a file for reading.
func FileExists(archive Archive, p string) bool {
	file, err := archive.OpenFile(p, OpenModeRead)
	if err != nil {
		return false
	}
	file.Close()
	return true
}

// CreateDirectories creates p and every missing parent, tolerating the ones
// that already exist.
func CreateDirectories(archive Archive, p string) error {
	current := "/"
	for _, part := range strings.Split(strings.Trim(p, "/"), "/") {
		if part == "" {
			continue
		}
		current = path.Join(current, part)
		if err := archive.CreateDirectory(current); err != nil && !IsAlreadyExists(err) {
			return err
		}
	}
	return nil
}

// ClearDirectory deletes every entry below p while keeping p itself.
func ClearDirectory(archive Archive, p string) error {
	entries, err := ListDirectory(archive, p)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		child := path.Join(p, entry.Name)
		if entry.IsFolder {
			err = archive.DeleteDirectoryRecursively(child)
		} else {
			err = archive.DeleteFile(child)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
