package db

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/giwty/save-backup-manager/fileio"
)

var ErrCacheCorrupt = errors.New("title cache is corrupt")

const (
	cacheMagic         = "CKPC"
	cacheSchemaVersion = 1
	cacheHeaderSize    = 16
	cacheRecordSize    = 5341
	cacheIconSize      = 0x1200
)

// Record layout, all integers little endian.
const (
	recID                = 0
	recProductCode       = 8
	recAccessibleSave    = 24
	recAccessibleExtdata = 25
	recShortDescription  = 26
	recLongDescription   = 90
	recSavePath          = 218
	recExtdataPath       = 474
	recMedium            = 730
	recCardType          = 731
	recChipType          = 732
	recIcon              = 733
)

// encodeTitles serializes titles into the binary cache format: a 16 bytes
// header followed by one fixed size record per title.
func encodeTitles(titles []*Title) []byte {
	data := make([]byte, cacheHeaderSize+len(titles)*cacheRecordSize)
	copy(data[0:4], cacheMagic)
	binary.LittleEndian.PutUint16(data[4:6], cacheSchemaVersion)
	binary.LittleEndian.PutUint32(data[8:12], cacheRecordSize)
	binary.LittleEndian.PutUint32(data[12:16], uint32(len(titles)))

	for i, title := range titles {
		rec := data[cacheHeaderSize+i*cacheRecordSize : cacheHeaderSize+(i+1)*cacheRecordSize]
		binary.LittleEndian.PutUint64(rec[recID:], title.ID)
		putString(rec[recProductCode:recAccessibleSave], title.ProductCode)
		rec[recAccessibleSave] = boolByte(title.AccessibleSave)
		rec[recAccessibleExtdata] = boolByte(title.AccessibleExtdata)
		putString(rec[recShortDescription:recLongDescription], title.ShortDescription)
		putString(rec[recLongDescription:recSavePath], title.LongDescription)
		putString(rec[recSavePath:recExtdataPath], title.SavePath)
		putString(rec[recExtdataPath:recMedium], title.ExtdataPath)
		rec[recMedium] = byte(title.Medium)
		rec[recCardType] = byte(title.CardType)
		rec[recChipType] = byte(title.ChipType)
		copy(rec[recIcon:recIcon+cacheIconSize], title.Icon)
	}
	return data
}

// decodeTitles parses a cache produced by encodeTitles. Any mismatch in the
// header or the size returns ErrCacheCorrupt.
func decodeTitles(data []byte) ([]*Title, error) {
	if len(data) < cacheHeaderSize {
		return nil, fmt.Errorf("%w: short header", ErrCacheCorrupt)
	}
	if string(data[0:4]) != cacheMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrCacheCorrupt)
	}
	if v := binary.LittleEndian.Uint16(data[4:6]); v != cacheSchemaVersion {
		return nil, fmt.Errorf("%w: schema version %d", ErrCacheCorrupt, v)
	}
	if size := binary.LittleEndian.Uint32(data[8:12]); size != cacheRecordSize {
		return nil, fmt.Errorf("%w: record size %d", ErrCacheCorrupt, size)
	}
	count := int(binary.LittleEndian.Uint32(data[12:16]))
	if len(data)-cacheHeaderSize != count*cacheRecordSize {
		return nil, fmt.Errorf("%w: %d bytes for %d records", ErrCacheCorrupt, len(data)-cacheHeaderSize, count)
	}

	titles := make([]*Title, 0, count)
	for i := 0; i < count; i++ {
		rec := data[cacheHeaderSize+i*cacheRecordSize : cacheHeaderSize+(i+1)*cacheRecordSize]
		titles = append(titles, &Title{
			ID:                binary.LittleEndian.Uint64(rec[recID:]),
			ProductCode:       getString(rec[recProductCode:recAccessibleSave]),
			AccessibleSave:    rec[recAccessibleSave] != 0,
			AccessibleExtdata: rec[recAccessibleExtdata] != 0,
			ShortDescription:  getString(rec[recShortDescription:recLongDescription]),
			LongDescription:   getString(rec[recLongDescription:recSavePath]),
			SavePath:          getString(rec[recSavePath:recExtdataPath]),
			ExtdataPath:       getString(rec[recExtdataPath:recMedium]),
			Medium:            fileio.Medium(rec[recMedium]),
			CardType:          fileio.CardType(rec[recCardType]),
			ChipType:          fileio.ChipType(int8(rec[recChipType])),
			Icon:              append([]byte(nil), rec[recIcon:recIcon+cacheIconSize]...),
		})
	}
	return titles, nil
}

// putString writes s NUL padded, truncated on a rune boundary so at least
// one terminating NUL remains.
func putString(field []byte, s string) {
	if limit := len(field) - 1; len(s) > limit {
		for limit > 0 && !utf8.RuneStart(s[limit]) {
			limit--
		}
		s = s[:limit]
	}
	copy(field, s)
	for i := len(s); i < len(field); i++ {
		field[i] = 0
	}
}

func getString(field []byte) string {
	if i := bytes.IndexByte(field, 0); i >= 0 {
		return string(field[:i])
	}
	return string(field)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
