package main

import (
	"fmt"
	"os"

	"github.com/giwty/save-backup-manager/logger"
	"github.com/giwty/save-backup-manager/settings"
)

func main() {
	exePath, workingFolder, err := settings.GetWorkingFolder()
	if err != nil {
		fmt.Printf("failed to get executable directory, please ensure app has sufficient permissions. aborting\n %v", err)
		os.Exit(1)
	}

	appSettings := settings.ReadSettings(workingFolder)
	sugar := logger.GetSugar(workingFolder, appSettings.Debug)

	sugar.Info("[Executable: " + exePath + "]")
	sugar.Info("[Working directory: " + workingFolder + "]")
	sugar.Infof("[Version: %v]", settings.SBM_VERSION)

	code := CreateConsole(workingFolder, sugar).Start()
	logger.Defer()
	os.Exit(code)
}
