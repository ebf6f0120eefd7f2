package db

// System applets and built-in applications that own a save but are not
// games.
var titleDenylist = map[uint32]struct{}{
	0x00008602: {}, 0x00009202: {}, 0x00009B02: {}, 0x0000A402: {}, 0x0000AC02: {}, 0x0000B402: {},
	0x00008802: {}, 0x00009402: {}, 0x00009D02: {}, 0x0000A602: {}, 0x0000AE02: {}, 0x0000B602: {},
	0x20008802: {}, 0x20009402: {}, 0x20009D02: {}, 0x2000AE02: {},
	0x00021A00: {},
}

// isValidTitle reports whether id may take part in a catalog.
func isValidTitle(id uint64, filter map[uint64]struct{}) bool {
	low, high := splitTitleID(id)
	if high == TITLE_TYPE_UPDATE {
		return false
	}
	if _, ok := titleDenylist[low]; ok {
		return false
	}
	if _, ok := filter[id]; ok {
		return false
	}
	return true
}
