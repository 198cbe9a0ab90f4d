// Package pipeline runs the split clean-up end to end: load, report
// duplicates, drop known bad records, normalize options, write and publish.
// Stages run strictly in that order and the first failure stops the run.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	charmlog "github.com/charmbracelet/log"

	"github.com/BegaDeveloper/medqa/internal/dataset"
	"github.com/BegaDeveloper/medqa/internal/dedupe"
	"github.com/BegaDeveloper/medqa/internal/jsonl"
	"github.com/BegaDeveloper/medqa/internal/logging"
	"github.com/BegaDeveloper/medqa/internal/options"
	"github.com/BegaDeveloper/medqa/internal/prune"
	"github.com/BegaDeveloper/medqa/internal/publish"
	"github.com/BegaDeveloper/medqa/internal/report"
	"github.com/BegaDeveloper/medqa/internal/runlock"
)

// Config selects the directories, the optional stages and the publish
// target of a run.
type Config struct {
	DataDir          string
	OutputDir        string
	Splits           []dataset.Split
	Policy           prune.Policy
	ReportDuplicates bool
	DropRecords      bool
	Target           publish.Target
}

// Result summarizes a completed run.
type Result struct {
	Collection *dataset.Collection
	Duplicates dedupe.Report
	Dropped    map[string]int
	OptionKeys []string
	Sizes      []report.SizeRow
	Outputs    map[string]string
	Published  bool
}

// MissingFilesError lists every expected input file that does not exist.
type MissingFilesError struct {
	Paths []string
}

func (missingError *MissingFilesError) Error() string {
	return "missing data files:\n  - " + strings.Join(missingError.Paths, "\n  - ") +
		"\nRun ./run.sh to download them first."
}

// Pipeline executes one run. A nil publisher skips publishing.
type Pipeline struct {
	config    Config
	publisher publish.Publisher
	logger    *charmlog.Logger
	output    io.Writer
}

func New(config Config, publisher publish.Publisher, logger *charmlog.Logger, output io.Writer) *Pipeline {
	if len(config.Splits) == 0 {
		config.Splits = dataset.Catalogue
	}
	if config.Policy == nil {
		config.Policy = prune.DefaultPolicy()
	}
	if output == nil {
		output = io.Discard
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Pipeline{config: config, publisher: publisher, logger: logger, output: output}
}

// CheckInputs verifies that every split file exists under dataDir.
func CheckInputs(dataDir string, splits []dataset.Split) error {
	missing := make([]string, 0)
	for _, split := range splits {
		path := filepath.Join(dataDir, split.File)
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				missing = append(missing, path)
				continue
			}
			return fmt.Errorf("stat %s: %w", path, err)
		}
	}
	if len(missing) > 0 {
		return &MissingFilesError{Paths: missing}
	}
	return nil
}

// LoadAll reads every split in order and returns the loaded record counts.
func LoadAll(dataDir string, splits []dataset.Split, logger *charmlog.Logger) (*dataset.Collection, map[string]int, error) {
	collection := dataset.NewCollection()
	loaded := map[string]int{}
	for _, split := range splits {
		records, err := jsonl.Load(filepath.Join(dataDir, split.File))
		if err != nil {
			return nil, nil, fmt.Errorf("load split %s: %w", split.Name, err)
		}
		logger.Debug("loaded split", "split", split.Name, "records", len(records))
		collection.Put(split.Name, records)
		loaded[split.Name] = len(records)
	}
	return collection, loaded, nil
}

// Run executes every stage. Nothing is written, and the output directory is
// not created, unless all splits load.
func (pipeline *Pipeline) Run(ctx context.Context) (Result, error) {
	config := pipeline.config
	if pipeline.publisher != nil {
		if err := config.Target.Validate(); err != nil {
			return Result{}, fmt.Errorf("publish target: %w", err)
		}
	}
	if err := CheckInputs(config.DataDir, config.Splits); err != nil {
		return Result{}, err
	}

	collection, loaded, err := LoadAll(config.DataDir, config.Splits, pipeline.logger)
	if err != nil {
		return Result{}, err
	}
	pipeline.logger.Info("loaded splits", "splits", len(config.Splits), "records", collection.Total())
	result := Result{Collection: collection, Dropped: map[string]int{}, Outputs: map[string]string{}}

	if config.ReportDuplicates {
		result.Duplicates = dedupe.Scan(collection)
		pipeline.logger.Info("scanned duplicate questions", "pairs", result.Duplicates.Count())
		if err := pipeline.printf("\n"); err != nil {
			return result, err
		}
		if err := report.WriteDuplicates(pipeline.output, result.Duplicates); err != nil {
			return result, fmt.Errorf("write duplicate report: %w", err)
		}
	}

	if config.DropRecords {
		result.Dropped = prune.Apply(collection, config.Policy)
		for _, name := range collection.Names() {
			if result.Dropped[name] > 0 {
				pipeline.logger.Info("dropped records", "split", name, "dropped", result.Dropped[name],
					"requested", config.Policy.For(name).Sorted())
			}
		}
	}

	result.Sizes = report.Sizes(collection, loaded, result.Dropped)
	if err := pipeline.printf("\nDataset sizes (post-filter):\n"); err != nil {
		return result, err
	}
	if err := report.WriteSizes(pipeline.output, result.Sizes); err != nil {
		return result, fmt.Errorf("write size table: %w", err)
	}

	result.OptionKeys = options.Apply(collection)
	pipeline.logger.Info("normalized options", "keys", strings.Join(result.OptionKeys, ","))

	// The output directory is only created once every split has loaded.
	lock, err := runlock.Acquire(config.OutputDir)
	if err != nil {
		return result, err
	}
	defer func() {
		if releaseErr := lock.Release(); releaseErr != nil {
			pipeline.logger.Warn("release run lock failed", "err", releaseErr)
		}
	}()

	for _, split := range config.Splits {
		path := filepath.Join(config.OutputDir, split.File)
		if err := jsonl.Write(path, collection.Get(split.Name)); err != nil {
			return result, fmt.Errorf("write split %s: %w", split.Name, err)
		}
		result.Outputs[split.Name] = path
		pipeline.logger.Debug("wrote split", "split", split.Name, "path", path)
	}
	pipeline.logger.Info("wrote splits", "dir", config.OutputDir)

	if pipeline.publisher == nil {
		return result, nil
	}
	if err := pipeline.publishAll(ctx, collection); err != nil {
		return result, err
	}
	result.Published = true
	return result, nil
}

func (pipeline *Pipeline) publishAll(ctx context.Context, collection *dataset.Collection) error {
	target := pipeline.config.Target
	pipeline.logger.Info("publishing dataset", "repo", target.ID(), "private", target.Private)
	if err := pipeline.publisher.EnsureRepo(ctx, target); err != nil {
		return err
	}
	for _, split := range pipeline.config.Splits {
		if err := ctx.Err(); err != nil {
			return err
		}
		records := collection.Get(split.Name)
		pipeline.logger.Info("pushing split", "split", split.Name, "records", len(records))
		if err := pipeline.publisher.PublishSplit(ctx, target, split.Name, records); err != nil {
			return err
		}
	}
	return nil
}

func (pipeline *Pipeline) printf(format string, args ...any) error {
	_, err := fmt.Fprintf(pipeline.output, format, args...)
	return err
}
