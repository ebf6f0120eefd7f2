package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mcuadros/go-version"
	"go.uber.org/zap"
)

const (
	SETTINGS_FILENAME      = "settings.json"
	EXTDATA_TABLE_FILENAME = "extdata.properties"
	JOURNAL_DB_FILENAME    = "sbm.db"
	SBM_VERSION            = "1.2.0"
	DEFAULT_CHECKPOINT_DIR = "/3ds/Checkpoint"
	DEFAULT_SCHEDULE       = "0 3 * * *"
)

// Setting of the application
type AppSettings struct {
	// Extra internal settings
	// `json:"-"` to ignore when marshalling
	baseFolder string `json:"-"`
	// Unmarshalled from the JSON file
	Version                  string              `json:"version"`
	ConsoleRoot              string              `json:"console_root"`
	CheckpointDir            string              `json:"checkpoint_dir"`
	NandSaves                bool                `json:"nand_saves"`
	ScanCart                 bool                `json:"scan_cart"`
	Filter                   []string            `json:"filter"`
	Favorites                []string            `json:"favorites"`
	AdditionalSaveFolders    map[string][]string `json:"additional_save_folders"`
	AdditionalExtdataFolders map[string][]string `json:"additional_extdata_folders"`
	CopyBufferSize           int                 `json:"copy_buffer_size"`
	RomajiFolderNames        bool                `json:"romaji_folder_names"`
	MaxBackups               int                 `json:"max_backups"`
	Schedule                 string              `json:"schedule"`
	Debug                    bool                `json:"debug"`
}

// Read the settings stored in baseFolder, creating the file with defaults
// when it is missing or corrupted.
func ReadSettings(baseFolder string) *AppSettings {
	a := &AppSettings{baseFolder: baseFolder}
	a.read()
	return a
}

// Get the settings file path
func (a *AppSettings) getPath() string {
	return filepath.Join(a.baseFolder, SETTINGS_FILENAME)
}

func (a *AppSettings) BaseFolder() string {
	return a.baseFolder
}

// Read the file
func (a *AppSettings) read() {
	buf, bufErr := os.ReadFile(a.getPath())

	// If error fill with defaults
	if bufErr != nil {
		zap.S().Warnf("Missing or corrupted config file, creating a new one.")
		a.defaults()
		a.Save()
		return
	}

	a.defaults()
	a.Version = ""
	if jsonErr := a.Load(buf); jsonErr != nil {
		zap.S().Warnf("Missing or corrupted config file, creating a new one.")
		*a = AppSettings{baseFolder: a.baseFolder}
		a.defaults()
		a.Save()
		return
	}

	if a.migrate() {
		a.Save()
	}
}

// Fill the structure with default values
func (a *AppSettings) defaults() {
	a.Version = SBM_VERSION
	a.CheckpointDir = DEFAULT_CHECKPOINT_DIR
	a.ScanCart = true
	a.Filter = []string{}
	a.Favorites = []string{}
	a.AdditionalSaveFolders = map[string][]string{}
	a.AdditionalExtdataFolders = map[string][]string{}
	a.CopyBufferSize = 0x50000
	a.Schedule = DEFAULT_SCHEDULE
}

// migrate upgrades settings written by an older release. It reports whether
// anything changed.
func (a *AppSettings) migrate() bool {
	if a.Version != "" && version.CompareSimple(a.Version, SBM_VERSION) >= 0 {
		return false
	}
	zap.S().Infof("Upgrading settings from version [%v] to [%v]", a.Version, SBM_VERSION)

	// copy_buffer_size and max_backups were added in 1.1.0
	if a.Version == "" || version.CompareSimple(a.Version, "1.1.0") < 0 {
		if a.CopyBufferSize <= 0 {
			a.CopyBufferSize = 0x50000
		}
		if a.MaxBackups < 0 {
			a.MaxBackups = 0
		}
	}
	if a.CheckpointDir == "" {
		a.CheckpointDir = DEFAULT_CHECKPOINT_DIR
	}
	if a.Schedule == "" {
		a.Schedule = DEFAULT_SCHEDULE
	}
	a.Version = SBM_VERSION
	return true
}

// Save to file (ignore errors)
func (a *AppSettings) Save() {
	jsonBytes, jsonErr := json.MarshalIndent(a, "", "  ")
	if jsonErr == nil {
		if err := os.WriteFile(a.getPath(), jsonBytes, 0644); err != nil {
			zap.S().Warnf("failed to save settings - %v", err)
		}
	}
}

// Return setting as JSON
func (a *AppSettings) ToJSON() string {
	jsonBytes, jsonErr := json.MarshalIndent(a, "", "  ")
	if jsonErr != nil {
		return ""
	}

	return string(jsonBytes)
}

// Load a JSON payload
func (a *AppSettings) Load(payload []byte) error {
	return json.Unmarshal(payload, a)
}

// ParseTitleID parses a title id written as hex, with or without 0x prefix.
func ParseTitleID(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return strconv.ParseUint(s, 16, 64)
}

// TitleIDs parses a list of hex title ids, skipping malformed entries.
func TitleIDs(values []string) []uint64 {
	ids := make([]uint64, 0, len(values))
	for _, value := range values {
		id, err := ParseTitleID(value)
		if err != nil {
			zap.S().Warnf("ignoring malformed title id [%v] - %v", value, err)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// TitleFolders converts a folder map keyed by hex title id.
func TitleFolders(values map[string][]string) map[uint64][]string {
	folders := map[uint64][]string{}
	for key, list := range values {
		id, err := ParseTitleID(key)
		if err != nil {
			zap.S().Warnf("ignoring folders of malformed title id [%v] - %v", key, err)
			continue
		}
		folders[id] = append(folders[id], list...)
	}
	return folders
}
