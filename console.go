package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/giwty/save-backup-manager/db"
	"github.com/giwty/save-backup-manager/emulator"
	"github.com/giwty/save-backup-manager/fileio"
	"github.com/giwty/save-backup-manager/logger"
	"github.com/giwty/save-backup-manager/process"
	"github.com/giwty/save-backup-manager/settings"
	"github.com/jedib0t/go-pretty/table"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	consoleRoot = flag.String("c", "", "path to the console root (overrides console_root in settings.json)")
	mode        = flag.String("m", "save", "storage to operate on: save / extdata")
	titleArg    = flag.String("t", "", "title id (hex), product code or name")
	index       = flag.Int("i", 0, "backup index as printed by 'backups', 0 creates a new backup")
	assumeYes   = flag.Bool("y", false, "answer yes to every question")
	forceScan   = flag.Bool("f", false, "ignore the title cache")
	maxAge      = flag.Duration("age", 7*24*time.Hour, "report titles whose newest backup is older than this")
	historySize = flag.Int("n", 20, "number of history entries to show")
	progressBar *progressbar.ProgressBar
	titleCaser  = cases.Title(language.English)
)

const usage = `usage: save-backup-manager [flags] command

commands:
  list        list the titles that have a save (or extdata with -m extdata)
  backups     list the backups of the title selected with -t
  backup      back up the title selected with -t (-i selects a backup to overwrite)
  backup-all  back up every title
  restore     restore backup -i of the title selected with -t
  delete      delete backup -i of the title selected with -t
  refresh     rescan the titles ignoring the cache
  history     show the last operations
  clear-history  forget every recorded operation
  missing     list titles without a recent backup
  schedule    run backup-all on the schedule from settings.json until interrupted

flags:
`

type Console struct {
	baseFolder  string
	sugarLogger *zap.SugaredLogger
	settings    *settings.AppSettings
	mode        db.Mode
	catalog     *db.TitleCatalog
	journal     *db.Journal
	manager     *process.BackupManager
}

func CreateConsole(baseFolder string, sugarLogger *zap.SugaredLogger) *Console {
	return &Console{baseFolder: baseFolder, sugarLogger: sugarLogger}
}

// Start runs the command given on the command line and returns the process
// exit code.
func (c *Console) Start() int {
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	c.settings = settings.ReadSettings(c.baseFolder)
	switch strings.ToLower(*mode) {
	case "save", "saves", "s":
		c.mode = db.ModeSave
	case "extdata", "e":
		c.mode = db.ModeExtdata
	default:
		fmt.Printf("unknown mode [%v], use save or extdata\n", *mode)
		return 2
	}

	root := c.settings.ConsoleRoot
	if *consoleRoot != "" {
		root = *consoleRoot
	}
	if root == "" {
		fmt.Printf("\nNo console root was defined, please edit settings.json or use -c\n")
		return 1
	}
	platform, err := emulator.New(root)
	if err != nil {
		fmt.Printf("failed to open console root %v - %v\n", root, err)
		return 1
	}

	extdataTable, err := settings.LoadExtdataTable(c.baseFolder)
	if err != nil {
		c.sugarLogger.Warnf("failed to load %v, using the built-in table - %v", settings.EXTDATA_TABLE_FILENAME, err)
		extdataTable = settings.DefaultExtdataTable()
	}

	persistentDB, err := db.NewPersistentDB(c.baseFolder)
	if err != nil {
		fmt.Printf("failed to open the journal - %v\n", err)
		return 1
	}
	defer persistentDB.Close()
	c.journal = db.NewJournal(persistentDB)

	c.catalog = db.NewTitleCatalog(platform, db.CatalogOptions{
		CheckpointDir:            c.settings.CheckpointDir,
		NandSaves:                c.settings.NandSaves,
		ScanCart:                 c.settings.ScanCart,
		Filter:                   settings.TitleIDs(c.settings.Filter),
		Favorites:                settings.TitleIDs(c.settings.Favorites),
		AdditionalSaveFolders:    settings.TitleFolders(c.settings.AdditionalSaveFolders),
		AdditionalExtdataFolders: settings.TitleFolders(c.settings.AdditionalExtdataFolders),
		ExtdataTable:             extdataTable,
		RomajiFolderNames:        c.settings.RomajiFolderNames,
		Progress:                 c,
	}, logger.Named("catalog"))

	prompt := NewPrompt(*assumeYes)
	c.manager = process.NewBackupManager(platform, c.catalog, c.journal, prompt, prompt, process.Options{
		BufferSize: c.settings.CopyBufferSize,
		MaxBackups: c.settings.MaxBackups,
		Romaji:     c.settings.RomajiFolderNames,
		Progress:   c,
	}, logger.Named("backup"))

	command := flag.Arg(0)
	if command == "" {
		command = "list"
	}

	switch command {
	case "history":
		return c.processHistory()
	case "clear-history":
		return c.processClearHistory()
	}
	if command == "schedule" {
		return c.processSchedule()
	}

	if err := c.scan(command == "refresh" || *forceScan); err != nil {
		fmt.Printf("\nfailed to scan titles\n %v\n", err)
		return 1
	}

	switch command {
	case "list", "refresh":
		c.processTitles()
	case "backups":
		return c.processBackups()
	case "backup", "restore", "delete":
		return c.processOperation(command)
	case "backup-all":
		return c.processBackupAll()
	case "missing":
		c.processMissing()
	default:
		fmt.Printf("unknown command [%v]\n\n", command)
		flag.Usage()
		return 2
	}
	return 0
}

func (c *Console) scan(force bool) error {
	fmt.Printf("Scanning titles\n")
	progressBar = progressbar.New(1)
	report, err := c.catalog.Build(force)
	progressBar.Finish()
	fmt.Println()
	if err != nil {
		return err
	}
	c.sugarLogger.Infof("scan finished (cache hit: %v, skipped: %v)", report.CacheHit, report.Skipped)
	if err := c.journal.RecordBuild(report, time.Now()); err != nil {
		c.sugarLogger.Warnf("failed to record the scan - %v", err)
	}
	return nil
}

func (c *Console) modeName() string {
	return titleCaser.String(c.mode.String())
}

// findTitle resolves the -t argument against the current catalog.
func (c *Console) findTitle() (*db.Title, error) {
	if *titleArg == "" {
		return nil, errors.New("no title was selected, use -t")
	}
	titles := c.catalog.Snapshot().Titles(c.mode)
	if id, err := settings.ParseTitleID(*titleArg); err == nil {
		for _, title := range titles {
			if title.ID == id && !title.IsRawCard() {
				return title, nil
			}
		}
	}
	for _, title := range titles {
		if strings.EqualFold(title.ProductCode, *titleArg) ||
			strings.EqualFold(title.UniqueIDText(), *titleArg) ||
			strings.EqualFold(title.ShortDescription, *titleArg) {
			return title, nil
		}
	}
	return nil, fmt.Errorf("title [%v] was not found in the %v list", *titleArg, c.mode)
}

func (c *Console) processTitles() {
	titles := c.catalog.Snapshot().Titles(c.mode)
	if len(titles) == 0 {
		fmt.Printf("\nNo titles with %v data were found\n", c.mode)
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleColoredBright)
	t.AppendHeader(table.Row{"#", "Title", "TitleId", "Product code", "Medium", c.modeName() + " backups"})
	for i, title := range titles {
		id := fmt.Sprintf("%016X", title.ID)
		if title.IsRawCard() {
			id = title.ChipType.String()
		}
		t.AppendRow(table.Row{i, title.ShortDescription, id, title.ProductCode, title.Medium, len(title.Backups(c.mode)) - 1})
	}
	t.AppendFooter(table.Row{"", "", "", "", "Total", len(titles)})
	t.Render()
}

func (c *Console) processBackups() int {
	title, err := c.findTitle()
	if err != nil {
		fmt.Println(err)
		return 1
	}
	fmt.Printf("\n%v - %v backups:\n\n", title.ShortDescription, c.modeName())
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleColoredBright)
	t.AppendHeader(table.Row{"#", "Backup", "Folder"})
	for i, backup := range title.Backups(c.mode) {
		t.AppendRow(table.Row{i, backup.Name, backup.Root})
	}
	t.Render()
	return 0
}

func (c *Console) processOperation(command string) int {
	title, err := c.findTitle()
	if err != nil {
		fmt.Println(err)
		return 1
	}
	req := process.Request{Mode: c.mode, TitleID: title.ID, Medium: title.Medium, Index: *index}

	progressBar = progressbar.New(1)
	var message string
	switch command {
	case "backup":
		message, err = c.manager.Backup(req)
	case "restore":
		message, err = c.manager.Restore(req)
	case "delete":
		message, err = c.manager.Delete(req)
	}
	progressBar.Finish()
	fmt.Println()
	return c.report(message, err)
}

func (c *Console) report(message string, err error) int {
	var opErr *process.OperationError
	switch {
	case err == nil:
		fmt.Printf("%v\n", message)
		return 0
	case errors.Is(err, process.ErrUserCancelled):
		fmt.Printf("Cancelled\n")
		return 0
	case errors.As(err, &opErr):
		fmt.Printf("%v\nResult code: 0x%08X\n", opErr.Message, opErr.Code)
	default:
		fmt.Printf("%v\n", err)
	}
	return 1
}

func (c *Console) processBackupAll() int {
	fmt.Printf("Backing up every %v\n", c.mode)
	progressBar = progressbar.New(1)
	count, err := c.manager.BackupAll(c.mode, nil)
	progressBar.Finish()
	fmt.Printf("\n%v %v backups created\n", count, c.mode)
	if err != nil {
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleColoredBright)
		t.AppendHeader(table.Row{"#", "Failure"})
		for i, failure := range multierr.Errors(err) {
			t.AppendRow(table.Row{i, failure.Error()})
		}
		t.Render()
		return 1
	}
	return 0
}

func (c *Console) processHistory() int {
	if last, ok, err := c.journal.LastBuild(); err != nil {
		c.sugarLogger.Warnf("failed to read the last scan - %v", err)
	} else if ok {
		fmt.Printf("\nLast scan: %v, %v saves, %v extdata, %v skipped (cache hit: %v, took %v)\n",
			last.Time.Format(time.DateTime), last.Saves, last.Extdata, last.Skipped, last.CacheHit, last.Duration.Round(time.Millisecond))
	}
	entries, err := c.journal.Recent(*historySize)
	if err != nil {
		fmt.Printf("failed to read the journal - %v\n", err)
		return 1
	}
	if len(entries) == 0 {
		fmt.Print("\nNo operations recorded yet\n\n")
		return 0
	}
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleColoredBright)
	t.AppendHeader(table.Row{"Time", "Title", "Mode", "Operation", "Folder", "Result"})
	for _, entry := range entries {
		result := "OK"
		if !entry.Success {
			result = fmt.Sprintf("%v [0x%08X]", entry.Message, entry.Code)
		}
		t.AppendRow(table.Row{entry.Time.Format(time.DateTime), entry.TitleName, titleCaser.String(entry.Mode), titleCaser.String(entry.Operation), entry.Folder, result})
	}
	t.AppendFooter(table.Row{"", "", "", "", "Total", len(entries)})
	t.Render()
	return 0
}

func (c *Console) processClearHistory() int {
	if !NewPrompt(*assumeYes).Confirm("Forget every recorded operation?") {
		fmt.Printf("Cancelled\n")
		return 0
	}
	if err := c.journal.Clear(); err != nil {
		fmt.Printf("failed to clear the journal - %v\n", err)
		return 1
	}
	fmt.Printf("History cleared\n")
	return 0
}

func (c *Console) processMissing() {
	missing := process.ScanForMissingBackups(c.catalog.Snapshot().Titles(c.mode), c.mode, time.Now(), *maxAge)
	if len(missing) == 0 {
		fmt.Printf("\nAll titles have a %v backup newer than %v\n\n", c.mode, *maxAge)
		return
	}
	fmt.Print("\nTitles without a recent backup:\n\n")
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleColoredBright)
	t.AppendHeader(table.Row{"#", "Title", "Last backup", "Age"})
	for i, v := range missing {
		last, age := "never", ""
		if !v.Never() {
			last = v.LastBackup.Format(process.TIMESTAMP_FORMAT)
			age = v.Age.Round(time.Hour).String()
		}
		t.AppendRow(table.Row{i, v.Title.ShortDescription, last, age})
	}
	t.AppendFooter(table.Row{"", "", "Total", len(missing)})
	t.Render()
}

func (c *Console) UpdateProgress(curr int, total int, message string) {
	if progressBar == nil {
		return
	}
	progressBar.ChangeMax(total)
	progressBar.Set(curr)
}

var _ fileio.ProgressUpdater = (*Console)(nil)
