package db

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/giwty/save-backup-manager/fileio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTitleCacheRoundTrip(t *testing.T) {
	icon := make([]byte, cacheIconSize)
	for i := range icon {
		icon[i] = byte(i)
	}
	titles := []*Title{
		{
			ID:                alphaID,
			Medium:            fileio.MediumSD,
			CardType:          fileio.CardCTR,
			ChipType:          fileio.ChipNone,
			ProductCode:       "CTR-P-ALPH",
			ShortDescription:  "Alpha",
			LongDescription:   "Alpha: the long name",
			SavePath:          "/3ds/Checkpoint/saves/0x00123 Alpha",
			ExtdataPath:       "/3ds/Checkpoint/extdata/0x00123 Alpha",
			AccessibleSave:    true,
			AccessibleExtdata: true,
			Icon:              icon,
		},
		{
			ID:               systemID,
			Medium:           fileio.MediumNand,
			ChipType:         fileio.ChipFlash8MB,
			ShortDescription: "ポケモン",
			AccessibleSave:   true,
			Icon:             make([]byte, cacheIconSize),
		},
	}

	data := encodeTitles(titles)
	assert.Equal(t, "CKPC", string(data[:4]))
	decoded, err := decodeTitles(data)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	for i, title := range titles {
		assert.Equal(t, title.ID, decoded[i].ID)
		assert.Equal(t, title.Medium, decoded[i].Medium)
		assert.Equal(t, title.CardType, decoded[i].CardType)
		assert.Equal(t, title.ChipType, decoded[i].ChipType)
		assert.Equal(t, title.ProductCode, decoded[i].ProductCode)
		assert.Equal(t, title.ShortDescription, decoded[i].ShortDescription)
		assert.Equal(t, title.LongDescription, decoded[i].LongDescription)
		assert.Equal(t, title.SavePath, decoded[i].SavePath)
		assert.Equal(t, title.ExtdataPath, decoded[i].ExtdataPath)
		assert.Equal(t, title.AccessibleSave, decoded[i].AccessibleSave)
		assert.Equal(t, title.AccessibleExtdata, decoded[i].AccessibleExtdata)
		assert.Equal(t, title.Icon, decoded[i].Icon)
	}

	empty, err := decodeTitles(encodeTitles(nil))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestTitleCacheTruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("é", 40)
	decoded, err := decodeTitles(encodeTitles([]*Title{{ShortDescription: long, ProductCode: strings.Repeat("X", 30)}}))
	require.NoError(t, err)

	short := decoded[0].ShortDescription
	assert.True(t, utf8.ValidString(short))
	assert.Equal(t, strings.Repeat("é", 31), short)
	assert.Equal(t, strings.Repeat("X", 15), decoded[0].ProductCode)
}

func TestTitleCacheRejectsCorruptData(t *testing.T) {
	valid := encodeTitles([]*Title{{ID: alphaID}})

	for name, data := range map[string][]byte{
		"short":     valid[:10],
		"magic":     append([]byte("XXXX"), valid[4:]...),
		"truncated": valid[:len(valid)-1],
		"version":   func() []byte { d := append([]byte(nil), valid...); d[4] = 9; return d }(),
	} {
		_, err := decodeTitles(data)
		assert.True(t, errors.Is(err, ErrCacheCorrupt), name)
	}
}
