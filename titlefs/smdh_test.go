package titlefs

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMDHRoundTrip(t *testing.T) {
	smdh := &SMDH{Version: 3, RegionLockout: 0x7FFFFFFF}
	smdh.Titles[English] = ApplicationTitle{
		ShortDescription: "Pokémon Moon",
		LongDescription:  "Pokémon Moon\nSpecial Edition",
		Publisher:        "Nintendo",
	}
	smdh.Titles[Japanese] = ApplicationTitle{ShortDescription: "ポケットモンスター ムーン"}
	smdh.LargeIcon = bytes.Repeat([]byte{0xAB}, LargeIconSize)
	smdh.SmallIcon = bytes.Repeat([]byte{0xCD}, SmallIconSize)

	data, err := EncodeSMDH(smdh)
	require.NoError(t, err)
	assert.Len(t, data, SMDHSize)

	decoded, err := ParseSMDH(data)
	require.NoError(t, err)
	assert.Equal(t, smdh.Version, decoded.Version)
	assert.Equal(t, smdh.RegionLockout, decoded.RegionLockout)
	assert.Equal(t, smdh.Titles[English], decoded.Title(English))
	assert.Equal(t, "ポケットモンスター ムーン", decoded.Title(Japanese).ShortDescription)
	assert.Equal(t, smdh.LargeIcon, decoded.LargeIcon)
	assert.Equal(t, smdh.SmallIcon, decoded.SmallIcon)
}

func TestSMDHFallsBackToEnglish(t *testing.T) {
	smdh := &SMDH{}
	smdh.Titles[English] = ApplicationTitle{ShortDescription: "Zelda"}
	data, err := EncodeSMDH(smdh)
	require.NoError(t, err)

	decoded, err := ParseSMDH(data)
	require.NoError(t, err)
	assert.Equal(t, "Zelda", decoded.Title(German).ShortDescription)
}

func TestLanguageString(t *testing.T) {
	assert.Equal(t, "English", English.String())
	assert.Equal(t, "TraditionalChinese", TraditionalChinese.String())
	assert.Equal(t, "Unknown", Language(16).String())
	assert.Equal(t, "Unknown", Language(-1).String())
}

func TestSMDHTruncatesLongNames(t *testing.T) {
	smdh := &SMDH{}
	smdh.Titles[English] = ApplicationTitle{ShortDescription: strings.Repeat("x", 100)}
	data, err := EncodeSMDH(smdh)
	require.NoError(t, err)

	decoded, err := ParseSMDH(data)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", shortDescSize/2-1), decoded.Title(English).ShortDescription)
}

func TestParseSMDHRejectsGarbage(t *testing.T) {
	_, err := ParseSMDH([]byte("SMDH"))
	assert.Error(t, err)

	data := make([]byte, SMDHSize)
	copy(data, "NOPE")
	_, err = ParseSMDH(data)
	assert.Error(t, err)
}

func TestLegacyHeader(t *testing.T) {
	data := EncodeLegacyHeader(&LegacyHeader{Title: "POKEMON D", GameCode: "ADAE", MakerCode: "01"})
	header, err := ParseLegacyHeader(data)
	require.NoError(t, err)
	assert.Equal(t, "POKEMON D", header.Title)
	assert.Equal(t, "ADAE", header.GameCode)
	assert.Equal(t, "01", header.MakerCode)

	_, err = ParseLegacyHeader(make([]byte, LegacyHeaderSize))
	assert.Error(t, err)
	_, err = ParseLegacyHeader([]byte{1, 2})
	assert.Error(t, err)
}
