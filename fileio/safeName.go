package fileio

import (
	"regexp"
	"strings"

	"robpike.io/nihongo"
)

var (
	folderIllegalCharsRegex = regexp.MustCompile(`[.,!\\/:?*"<>|]`)
)

// SafeName replaces characters the SD card filesystem rejects with spaces
// and trims trailing whitespace. With romaji set, Japanese kana are
// transliterated first.
func SafeName(name string, romaji bool) string {
	if romaji {
		name = nihongo.RomajiString(name)
	}
	name = folderIllegalCharsRegex.ReplaceAllString(name, " ")
	return strings.TrimRight(name, " \t\r\n")
}
