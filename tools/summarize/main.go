package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"loadprofile/internal/config"
	"loadprofile/internal/usage/application"
	usage "loadprofile/internal/usage/domain"
	"loadprofile/internal/usage/infrastructure/holiday"
	"loadprofile/internal/usage/infrastructure/source"
	"loadprofile/internal/usage/interfaces/export"
)

type options struct {
	configPath string
	out        string
	template   string
	holidays   string
	headerRow  int
	encoding   string
	convention string
	rawSheets  bool
	inputs     []string
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	logger := log.New(os.Stderr, "", log.LstdFlags)
	if err := run(context.Background(), opts, logger); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options
	flag.StringVar(&opts.configPath, "config", os.Getenv(config.PathEnv), "YAML config file (optional)")
	flag.StringVar(&opts.out, "out", "", "output workbook path")
	flag.StringVar(&opts.template, "template", "", "destination template workbook (overrides config)")
	flag.StringVar(&opts.holidays, "holidays", "", "holiday YAML file (overrides config)")
	flag.IntVar(&opts.headerRow, "header-row", 0, "1-based header row of xlsx sheets (overrides config)")
	flag.StringVar(&opts.encoding, "encoding", "", "csv encoding: auto, utf-8 or shift_jis (overrides config)")
	flag.StringVar(&opts.convention, "convention", "", "time label convention: start or end (overrides config)")
	flag.BoolVar(&opts.rawSheets, "raw-sheets", true, "copy each selected batch into a YYYYMM sheet")
	flag.Parse()

	opts.inputs = flag.Args()
	if opts.out == "" {
		return opts, fmt.Errorf("missing -out: %w", export.ErrNoOutputTarget)
	}
	if len(opts.inputs) == 0 {
		return opts, fmt.Errorf("missing input files: %w", usage.ErrNoBatches)
	}
	return opts, nil
}

func run(ctx context.Context, opts options, logger *log.Logger) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	applyOverrides(&cfg, opts)

	convention, err := usage.ParseLabelConvention(cfg.Source.LabelConvention)
	if err != nil {
		return err
	}
	encoding, err := source.ParseEncoding(cfg.Source.Encoding)
	if err != nil {
		return err
	}
	calendar, err := holiday.LoadFile(cfg.HolidayFile)
	if err != nil {
		return err
	}

	engine, err := usage.NewEngine(usage.NewClassifier(calendar))
	if err != nil {
		return err
	}
	service, err := application.NewSummaryService(
		usage.NewNormalizer(usage.WithLabelConvention(convention)), engine,
		application.WithLogger(logger))
	if err != nil {
		return err
	}

	loader := source.NewLoader(source.Options{
		WorkbookHeaderRow: cfg.Source.WorkbookHeaderRow,
		CSVHeaderRow:      cfg.Source.CSVHeaderRow,
		Encoding:          encoding,
	})
	var batches []usage.Batch
	for _, path := range opts.inputs {
		read, err := loadFile(loader, path)
		if err != nil {
			return err
		}
		batches = append(batches, read...)
	}

	res, err := service.Run(ctx, batches)
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %v\n", w)
	}

	writer, err := export.NewTemplateWriter(export.GridLayout{
		Sheet:           cfg.Export.Grid.Sheet,
		WeekdayStartCol: cfg.Export.Grid.WeekdayStartCol,
		HolidayStartCol: cfg.Export.Grid.HolidayStartCol,
		FirstSlotRow:    cfg.Export.Grid.FirstSlotRow,
		DayCountRow:     cfg.Export.Grid.DayCountRow,
	}, export.WithTemplate(cfg.Export.TemplatePath), export.WithRawSheets(cfg.Export.RawSheets))
	if err != nil {
		return err
	}
	if err := writer.WriteFile(res, opts.out); err != nil {
		return err
	}

	fmt.Printf("wrote %s: batches=%d selected=%d superseded=%d rejected=%d total=%s\n",
		opts.out, res.Stats.Batches, res.Stats.Selected, res.Stats.Superseded, res.Stats.Rejected,
		res.Matrix.Total().String())
	if res.Stats.Selected == 0 {
		fmt.Fprintln(os.Stderr, "warning: no batch contributed data, every cell is zero")
	}
	return nil
}

func applyOverrides(cfg *config.Config, opts options) {
	if opts.template != "" {
		cfg.Export.TemplatePath = opts.template
	}
	if opts.holidays != "" {
		cfg.HolidayFile = opts.holidays
	}
	if opts.headerRow > 0 {
		cfg.Source.WorkbookHeaderRow = opts.headerRow
	}
	if opts.encoding != "" {
		cfg.Source.Encoding = opts.encoding
	}
	if opts.convention != "" {
		cfg.Source.LabelConvention = opts.convention
	}
	if !opts.rawSheets {
		cfg.Export.RawSheets = false
	}
}

func loadFile(loader *source.Loader, path string) ([]usage.Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return loader.Load(filepath.Base(path), f)
}
