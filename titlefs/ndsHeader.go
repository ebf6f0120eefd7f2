package titlefs

import (
	"errors"
	"strings"
)

const (
	LegacyHeaderSize = 0x200

	legacyTitleSize = 12
	gameCodeOffset  = 0x0C
	gameCodeSize    = 4
	makerCodeOffset = 0x10
	makerCodeSize   = 2
)

// LegacyHeader is the part of a DS cartridge header used to name its save.
type LegacyHeader struct {
	Title     string
	GameCode  string
	MakerCode string
}

/*https://problemkaputt.de/gbatek.htm#dscartridgeheader*/
func ParseLegacyHeader(data []byte) (*LegacyHeader, error) {
	if len(data) < makerCodeOffset+makerCodeSize {
		return nil, errors.New("cartridge header is too short")
	}
	header := &LegacyHeader{
		Title:     strings.TrimSpace(string(readBytesUntilZero(data[:legacyTitleSize]))),
		GameCode:  string(readBytesUntilZero(data[gameCodeOffset : gameCodeOffset+gameCodeSize])),
		MakerCode: string(readBytesUntilZero(data[makerCodeOffset : makerCodeOffset+makerCodeSize])),
	}
	if header.GameCode == "" {
		return nil, errors.New("cartridge header has no game code")
	}
	return header, nil
}

// EncodeLegacyHeader lays out a header the way the cartridge stores it.
func EncodeLegacyHeader(header *LegacyHeader) []byte {
	data := make([]byte, LegacyHeaderSize)
	copy(data[:legacyTitleSize], header.Title)
	copy(data[gameCodeOffset:gameCodeOffset+gameCodeSize], header.GameCode)
	copy(data[makerCodeOffset:makerCodeOffset+makerCodeSize], header.MakerCode)
	return data
}
