// Package assemble copies the built app tree into an output tree, passing
// files through an ordered list of per-extension stages on the way. The
// dist and deploy tasks are both assemblers with different exclusions and
// stages.
package assemble

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/viant/afs"
	"golang.org/x/sync/errgroup"

	"github.com/sitepipe/sitepipe/internal/config"
	pipelineerrors "github.com/sitepipe/sitepipe/internal/errors"
	"github.com/sitepipe/sitepipe/internal/fileset"
	"github.com/sitepipe/sitepipe/internal/logging"
)

// Task names.
const (
	DistTask   = "dist-folder"
	DeployTask = "deploy-folder"
)

// Assembler selects files from the project, runs them through its stages
// and writes them under OutDir.
type Assembler struct {
	Name    string
	Root    string
	Sources []string
	Exclude []string
	OutDir  string
	Stages  []Stage

	fs     afs.Service
	logger logging.Logger
}

// New creates an assembler.
func New(name, root string, sources, exclude []string, outDir string, logger logging.Logger, stages ...Stage) *Assembler {
	return &Assembler{
		Name:    name,
		Root:    root,
		Sources: sources,
		Exclude: exclude,
		OutDir:  outDir,
		Stages:  stages,
		fs:      afs.New(),
		logger:  logger.WithComponent(name),
	}
}

// NewDist creates the dist-folder assembler.
func NewDist(root string, cfg *config.Config, logger logging.Logger) *Assembler {
	stages := make([]Stage, 0, len(cfg.Dist.Replace))
	for _, r := range cfg.Dist.Replace {
		stages = append(stages, Replace(r.Files, r.Old, r.New))
	}
	return New(DistTask, root, cfg.Dist.Sources, cfg.Dist.Exclude, cfg.Paths.Dist, logger, stages...)
}

// NewDeploy creates the deploy-folder assembler. The analytics placeholder
// is replaced before build blocks are rewritten, and both happen before
// minification.
func NewDeploy(root string, cfg *config.Config, logger logging.Logger) (*Assembler, error) {
	d := cfg.Deploy
	var stages []Stage
	if d.AnalyticsPlaceholder != "" {
		stages = append(stages, Replace("*.html", d.AnalyticsPlaceholder, d.AnalyticsID))
	}
	for _, r := range d.Replace {
		stages = append(stages, Replace(r.Files, r.Old, r.New))
	}
	if d.UseRef {
		stages = append(stages, UseRef(filepath.Join(root, filepath.FromSlash(cfg.Paths.App))))
	}
	if d.Minify {
		m, err := NewMinifier(d.CSSTarget)
		if err != nil {
			return nil, pipelineerrors.ConfigurationError("deploy.css_target", err.Error())
		}
		stages = append(stages, m.Stages()...)
	}
	return New(DeployTask, root, d.Sources, d.Exclude, cfg.Paths.Deploy, logger, stages...), nil
}

// Collect selects the source files.
func (a *Assembler) Collect() ([]*Asset, error) {
	files, err := fileset.Select(a.Root, a.Sources, a.Exclude)
	if err != nil {
		return nil, err
	}
	assets := make([]*Asset, 0, len(files))
	for _, f := range files {
		assets = append(assets, &Asset{Rel: f.Rel, Src: f.OSPath(a.Root)})
	}
	return assets, nil
}

// Process runs assets through every stage in order. When two assets end up
// with the same output path, a generated asset wins over a copied one and
// otherwise the later one wins.
func (a *Assembler) Process(ctx context.Context, assets []*Asset) ([]*Asset, error) {
	for _, stage := range a.Stages {
		next := make([]*Asset, 0, len(assets))
		for _, asset := range assets {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			next = append(next, asset)
			if !stage.Matches(asset.Rel) {
				continue
			}
			emitted, err := stage.Apply(ctx, asset)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", stage.Name, err)
			}
			next = append(next, emitted...)
		}
		assets = next
	}
	return dedupe(assets), nil
}

// Run assembles the output tree.
func (a *Assembler) Run(ctx context.Context) error {
	assets, err := a.Collect()
	if err != nil {
		return err
	}
	assets, err = a.Process(ctx, assets)
	if err != nil {
		return err
	}

	outRoot, err := filepath.Abs(filepath.Join(a.Root, filepath.FromSlash(a.OutDir)))
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for _, asset := range assets {
		g.Go(func() error {
			return a.write(gctx, outRoot, asset)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	a.logger.Info(ctx, "Assembled output", "dir", a.OutDir, "files", len(assets))
	return nil
}

func (a *Assembler) write(ctx context.Context, outRoot string, asset *Asset) error {
	dst := filepath.Join(outRoot, filepath.FromSlash(asset.Rel))

	var r io.Reader
	if asset.Loaded() {
		b, _ := asset.Content()
		r = bytes.NewReader(b)
	} else {
		f, err := os.Open(asset.Src)
		if err != nil {
			return pipelineerrors.FileOperationError(a.Name, asset.Src, "opening source", err)
		}
		defer f.Close()
		r = f
	}

	if err := a.fs.Upload(ctx, dst, 0644, r); err != nil {
		return pipelineerrors.FileOperationError(a.Name, asset.Rel, "writing output", err)
	}
	return nil
}

func dedupe(assets []*Asset) []*Asset {
	index := make(map[string]int, len(assets))
	out := make([]*Asset, 0, len(assets))
	for _, asset := range assets {
		if i, ok := index[asset.Rel]; ok {
			if asset.Src != "" && out[i].Src == "" {
				continue
			}
			out[i] = asset
			continue
		}
		index[asset.Rel] = len(out)
		out = append(out, asset)
	}
	return out
}
