package settings

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const WORKING_FOLDER_ENV = "SBM_HOME"

// GetWorkingFolder returns the executable path and the folder holding the
// settings, journal and log file. SBM_HOME overrides the executable folder.
func GetWorkingFolder() (string, string, error) {
	exePath, exeErr := os.Executable()
	if exeErr != nil {
		return "", "", exeErr
	}

	if home := os.Getenv(WORKING_FOLDER_ENV); home != "" {
		if err := os.MkdirAll(home, os.ModePerm); err != nil {
			return "", "", err
		}
		return exePath, home, nil
	}

	workingFolder := filepath.Dir(exePath)

	// Adjust for MacOS
	if runtime.GOOS == "darwin" && strings.Contains(workingFolder, ".app") {
		appIndex := strings.Index(workingFolder, ".app")
		sepIndex := strings.LastIndex(workingFolder[:appIndex], string(os.PathSeparator))
		workingFolder = workingFolder[:sepIndex]
	}

	return exePath, workingFolder, nil
}
