package titlefs

import (
	"encoding/binary"
	"errors"

	"golang.org/x/text/encoding/unicode"
)

type Language int

const (
	Japanese Language = iota
	English
	French
	German
	Italian
	Spanish
	SimplifiedChinese
	Korean
	Dutch
	Portuguese
	Russian
	TraditionalChinese
)

var languageNames = [...]string{
	"Japanese",
	"English",
	"French",
	"German",
	"Italian",
	"Spanish",
	"SimplifiedChinese",
	"Korean",
	"Dutch",
	"Portuguese",
	"Russian",
	"TraditionalChinese",
	"Reserved",
	"Reserved",
	"Reserved",
	"Reserved",
}

func (l Language) String() string {
	if l < 0 || int(l) >= len(languageNames) {
		return "Unknown"
	}
	return languageNames[l]
}

const (
	SMDHMagic     = "SMDH"
	SMDHSize      = 0x36C0
	SmallIconSize = 0x480
	LargeIconSize = 0x1200

	titleEntries      = 16
	titleEntrySize    = 0x200
	titlesOffset      = 0x8
	shortDescSize     = 0x80
	longDescSize      = 0x100
	publisherSize     = 0x80
	regionOffset      = 0x2018
	smallIconOffset   = 0x2040
	largeIconOffset   = 0x24C0
	shortDescPosition = 0
	longDescPosition  = shortDescSize
	publisherPosition = shortDescSize + longDescSize
)

type ApplicationTitle struct {
	ShortDescription string
	LongDescription  string
	Publisher        string
}

/*https://www.3dbrew.org/wiki/SMDH*/
type SMDH struct {
	Version       uint16
	Titles        [titleEntries]ApplicationTitle
	RegionLockout uint32
	SmallIcon     []byte
	LargeIcon     []byte
}

// Title returns the names in the given language, falling back to English
// when the entry is empty.
func (s *SMDH) Title(lang Language) ApplicationTitle {
	if lang >= 0 && int(lang) < titleEntries && s.Titles[lang].ShortDescription != "" {
		return s.Titles[lang]
	}
	return s.Titles[English]
}

func ParseSMDH(data []byte) (*SMDH, error) {
	if len(data) < SMDHSize {
		return nil, errors.New("smdh is too short")
	}
	if string(data[:4]) != SMDHMagic {
		return nil, errors.New("invalid smdh magic")
	}

	smdh := &SMDH{Version: binary.LittleEndian.Uint16(data[4:6])}
	for i := 0; i < titleEntries; i++ {
		entry := data[titlesOffset+i*titleEntrySize : titlesOffset+(i+1)*titleEntrySize]
		short, err := decodeUTF16(entry[shortDescPosition : shortDescPosition+shortDescSize])
		if err != nil {
			return nil, err
		}
		long, err := decodeUTF16(entry[longDescPosition : longDescPosition+longDescSize])
		if err != nil {
			return nil, err
		}
		publisher, err := decodeUTF16(entry[publisherPosition : publisherPosition+publisherSize])
		if err != nil {
			return nil, err
		}
		smdh.Titles[i] = ApplicationTitle{ShortDescription: short, LongDescription: long, Publisher: publisher}
	}
	smdh.RegionLockout = binary.LittleEndian.Uint32(data[regionOffset : regionOffset+4])
	smdh.SmallIcon = append([]byte(nil), data[smallIconOffset:smallIconOffset+SmallIconSize]...)
	smdh.LargeIcon = append([]byte(nil), data[largeIconOffset:largeIconOffset+LargeIconSize]...)
	return smdh, nil
}

// EncodeSMDH builds the binary descriptor. Strings longer than their field
// are truncated.
func EncodeSMDH(smdh *SMDH) ([]byte, error) {
	data := make([]byte, SMDHSize)
	copy(data, SMDHMagic)
	binary.LittleEndian.PutUint16(data[4:6], smdh.Version)
	for i, title := range smdh.Titles {
		entry := data[titlesOffset+i*titleEntrySize : titlesOffset+(i+1)*titleEntrySize]
		if err := encodeUTF16(entry[shortDescPosition:shortDescPosition+shortDescSize], title.ShortDescription); err != nil {
			return nil, err
		}
		if err := encodeUTF16(entry[longDescPosition:longDescPosition+longDescSize], title.LongDescription); err != nil {
			return nil, err
		}
		if err := encodeUTF16(entry[publisherPosition:publisherPosition+publisherSize], title.Publisher); err != nil {
			return nil, err
		}
	}
	binary.LittleEndian.PutUint32(data[regionOffset:regionOffset+4], smdh.RegionLockout)
	copy(data[smallIconOffset:smallIconOffset+SmallIconSize], smdh.SmallIcon)
	copy(data[largeIconOffset:largeIconOffset+LargeIconSize], smdh.LargeIcon)
	return data, nil
}

func decodeUTF16(field []byte) (string, error) {
	decoder := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	out, err := decoder.Bytes(readUint16UntilZero(field))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func encodeUTF16(field []byte, s string) error {
	encoder := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()
	out, err := encoder.Bytes([]byte(s))
	if err != nil {
		return err
	}
	// keep room for the terminating zero and never split a surrogate pair
	limit := len(field) - 2
	if len(out) > limit {
		out = out[:limit]
		if last := binary.LittleEndian.Uint16(out[len(out)-2:]); last >= 0xD800 && last < 0xDC00 {
			out = out[:len(out)-2]
		}
	}
	copy(field, out)
	return nil
}
