package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/custodia-labs/ragmem/internal/adapters/driven/ai"
	"github.com/custodia-labs/ragmem/internal/adapters/driven/config/env"
	"github.com/custodia-labs/ragmem/internal/adapters/driven/config/file"
	"github.com/custodia-labs/ragmem/internal/adapters/driven/storage/layout"
	"github.com/custodia-labs/ragmem/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ragmem/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/ragmem/internal/adapters/driven/storage/staging"
	"github.com/custodia-labs/ragmem/internal/adapters/driven/storage/vectorfs"
	"github.com/custodia-labs/ragmem/internal/adapters/driving/cli"
	"github.com/custodia-labs/ragmem/internal/core/domain"
	"github.com/custodia-labs/ragmem/internal/core/ports/driven"
	"github.com/custodia-labs/ragmem/internal/core/services"
	"github.com/custodia-labs/ragmem/internal/logger"
	"github.com/custodia-labs/ragmem/internal/normalisers"
	"github.com/custodia-labs/ragmem/internal/postprocessors"
)

// lookupEnv is replaced in tests.
var lookupEnv = os.LookupEnv

// resolveRoot picks the memory directory: the --memory flag, then
// RAGMEM_STORAGE_ROOT, then the default.
func resolveRoot(flag string) string {
	if flag != "" {
		return flag
	}
	if root, ok := lookupEnv(env.Prefix + "_STORAGE_ROOT"); ok && root != "" {
		return root
	}
	return domain.DefaultAppSettings().Storage.Root
}

// cleanup collects release functions and runs them in reverse order.
type cleanup []func() error

func (c *cleanup) add(fn func() error) { *c = append(*c, fn) }

func (c cleanup) run() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		errs = append(errs, c[i]())
	}
	return errors.Join(errs...)
}

// open builds the runtime a command asks for. It is the cli.Opener.
func open(ctx context.Context, opts cli.OpenOptions) (rt *cli.Runtime, err error) {
	root := resolveRoot(opts.Root)
	lay := layout.New(root)

	var closers cleanup
	defer func() {
		if err != nil {
			_ = closers.run()
		}
	}()

	settingsService, err := newSettingsService(lay, opts.Ephemeral)
	if err != nil {
		return nil, err
	}
	if opts.Access == cli.AccessSettings {
		return &cli.Runtime{Settings: settingsService}, nil
	}

	settings, err := settingsService.Get()
	if err != nil {
		return nil, err
	}
	settings.Storage.Root = root
	if opts.Configure != nil {
		opts.Configure(settings)
	}

	write := opts.Access == cli.AccessWrite
	if write && !opts.Ephemeral {
		if err := lay.Ensure(); err != nil {
			return nil, err
		}
		lock, err := lay.AcquireLock(ctx, settings.Storage.LockTimeout)
		if err != nil {
			return nil, err
		}
		closers.add(lock.Release)
	} else if !opts.Ephemeral && !layout.Exists(root) {
		logger.Debug("No memory at %s yet", root)
	}

	st, err := openStorage(lay, settings, opts.Ephemeral)
	if err != nil {
		return nil, err
	}
	closers = append(closers, st.closers...)

	svcs, err := ai.Build(ctx, settings, false)
	if err != nil {
		return nil, err
	}
	for _, w := range svcs.Warnings {
		logger.Warn("%s", w)
	}

	prompts, err := file.NewPromptStore(st.promptsDir)
	if err != nil {
		svcs.Close()
		return nil, err
	}

	mem, err := newMemory(st, svcs, prompts, settings)
	if err != nil {
		svcs.Close()
		return nil, err
	}
	// Memory.Close releases the AI services and the vector index.
	closers.add(mem.Close)

	if write {
		err = mem.Open(ctx)
	} else {
		err = mem.Load(ctx)
	}
	if err != nil {
		return nil, err
	}

	return &cli.Runtime{
		Memory:   mem,
		Settings: settingsService,
		Close:    closers.run,
	}, nil
}

func newSettingsService(lay layout.Layout, ephemeral bool) (*services.SettingsService, error) {
	overlay := env.New(env.WithLookup(lookupEnv))
	if ephemeral {
		return services.NewSettingsService(memory.NewConfigStore(), overlay).WithValidator(ai.Validator{}), nil
	}
	store, err := file.NewConfigStore(lay.ConfigPath())
	if err != nil {
		return nil, fmt.Errorf("open settings: %w", err)
	}
	return services.NewSettingsService(store, overlay).WithValidator(ai.Validator{}), nil
}

// storage is the persistence side of a memory.
type storage struct {
	docs       driven.DocumentStore
	jobs       driven.JobStore
	staging    driven.StagingArea
	index      *vectorfs.Index
	promptsDir string
	closers    cleanup
}

func openStorage(lay layout.Layout, settings *domain.AppSettings, ephemeral bool) (*storage, error) {
	model := vectorfs.WithModel(settings.Embedding.Model)

	if ephemeral {
		dir, err := os.MkdirTemp("", "ragmem-")
		if err != nil {
			return nil, fmt.Errorf("create ephemeral memory: %w", err)
		}
		tmp := layout.New(dir)
		st := &storage{
			docs:       memory.NewDocumentStore(),
			jobs:       memory.NewJobStore(),
			staging:    memory.NewStagingArea(),
			index:      vectorfs.New(tmp.VectorsDir(), model),
			promptsDir: tmp.PromptsDir(),
		}
		st.closers.add(func() error { return os.RemoveAll(dir) })
		return st, nil
	}

	db, err := sqlite.NewStore(lay.DocstoreDir())
	if err != nil {
		return nil, fmt.Errorf("open document store: %w", err)
	}
	area, err := staging.New(lay.StagingDir())
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	st := &storage{
		docs:       db.DocumentStore(),
		jobs:       db.JobStore(),
		staging:    area,
		index:      vectorfs.New(lay.VectorsDir(), model),
		promptsDir: lay.PromptsDir(),
	}
	st.closers.add(db.Close)
	return st, nil
}

func newMemory(st *storage, svcs *ai.Services, prompts driven.PromptStore,
	settings *domain.AppSettings) (*services.Memory, error) {
	extractors := normalisers.NewRegistry()
	normalisers.RegisterDefaults(extractors)

	processors := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(processors, postprocessors.Dependencies{
		Generator: svcs.Generation,
		Prompts:   prompts,
	})

	partitioner, err := processors.Build(domain.StepPartition, *settings)
	if err != nil {
		return nil, err
	}
	var summariser driven.PostProcessor
	if processors.Has(domain.StepSummarize) {
		if summariser, err = processors.Build(domain.StepSummarize, *settings); err != nil {
			return nil, err
		}
	}

	// Preview runs the configured steps that produce chunks and are available.
	var preview driven.PostProcessorPipeline
	pipeline, err := processors.Pipeline(settings.Ingest.Steps, *settings)
	if err != nil {
		return nil, err
	}
	if pipeline != nil {
		preview = pipeline
	}

	return services.NewMemory(services.MemoryDeps{
		DocStore:    st.docs,
		JobStore:    st.jobs,
		Staging:     st.staging,
		VectorIndex: st.index,
		Embedder:    svcs.Embedding,
		Generator:   svcs.Generation,
		Normalisers: extractors,
		Partitioner: partitioner,
		Summariser:  summariser,
		Preview:     preview,
		Prompts:     prompts,
		Settings:    *settings,
		DetectMIME:  normalisers.DetectMIMEType,
	}), nil
}
