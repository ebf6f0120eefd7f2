package fileio

// ProgressUpdater receives progress of long running copies and scans.
type ProgressUpdater interface {
	UpdateProgress(curr int, total int, message string)
}

// ProgressFunc adapts a plain function to ProgressUpdater.
type ProgressFunc func(curr int, total int, message string)

func (f ProgressFunc) UpdateProgress(curr int, total int, message string) {
	f(curr, total, message)
}
