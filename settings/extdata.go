package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/magiconair/properties"
)

// Titles whose extdata container id is not derived from their unique id.
var defaultExtdataTable = map[uint32]uint32{
	0x00055E00: 0x0000055D, // Pokémon Y
	0x0011C400: 0x000011C5, // Pokémon Omega Ruby
	0x00175E00: 0x00001648, // Pokémon Moon
	0x00179600: 0x00001794, // Fire Emblem Conquest SE NA
	0x00179800: 0x00001794,
	0x00179700: 0x00001795, // Fire Emblem Conquest SE EU
	0x0017A800: 0x00001795,
	0x0012DD00: 0x000012DC, // Fire Emblem If JP
	0x0012DE00: 0x000012DC,
	0x001B5100: 0x00001B50, // Pokémon Ultra Moon
}

// ExtdataTable maps the low 32 bits of a title id to its extdata id.
type ExtdataTable map[uint32]uint32

// DefaultExtdataTable returns a copy of the built-in table.
func DefaultExtdataTable() ExtdataTable {
	table := ExtdataTable{}
	for k, v := range defaultExtdataTable {
		table[k] = v
	}
	return table
}

// LoadExtdataTable returns the built-in table, with entries from
// extdata.properties in baseFolder added on top when the file exists.
// Keys and values are hex numbers, e.g. 0x00055E00 = 0x055D.
func LoadExtdataTable(baseFolder string) (ExtdataTable, error) {
	table := DefaultExtdataTable()

	filePath := filepath.Join(baseFolder, EXTDATA_TABLE_FILENAME)
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return table, nil
	}

	p, err := properties.LoadFile(filePath, properties.UTF8)
	if err != nil {
		return table, err
	}
	for _, key := range p.Keys() {
		value, _ := p.Get(key)
		low, err := strconv.ParseUint(key, 0, 32)
		if err != nil {
			return table, fmt.Errorf("invalid title id [%v] in %v - %w", key, EXTDATA_TABLE_FILENAME, err)
		}
		extdataID, err := strconv.ParseUint(value, 0, 32)
		if err != nil {
			return table, fmt.Errorf("invalid extdata id [%v] in %v - %w", value, EXTDATA_TABLE_FILENAME, err)
		}
		table[uint32(low)] = uint32(extdataID)
	}
	return table, nil
}

// ExtdataID returns the extdata container id of a title.
func (t ExtdataTable) ExtdataID(lowID uint32) uint32 {
	if id, ok := t[lowID]; ok {
		return id
	}
	return lowID >> 8
}
