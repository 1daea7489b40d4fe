// Package convert drives the document pipeline: it locates page
// transcriptions in a file, directory or archive, normalizes them into one
// continuous tree and emits the requested output renditions.
package convert

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/maruel/natural"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"folio/archive"
	"folio/book"
	"folio/config"
	"folio/convert/htmlout"
	"folio/convert/tei"
	"folio/state"
)

func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("convert")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	src, err = filepath.Abs(src)
	if err != nil {
		return err
	}

	dst := cmd.Args().Get(1)
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	format, err := config.ParseOutputFmt(cmd.String("to"))
	if err != nil {
		log.Warn("Unknown output format requested, switching to html", zap.Error(err))
		format = config.OutputFmtHTML
	}

	env.NoDirs, env.Overwrite, env.Reflow = cmd.Bool("nodirs"), cmd.Bool("overwrite"), cmd.Bool("reflow")

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst), zap.Stringer("format", format))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return process(ctx, src, dst, format, log)
}

// process determines the input type and assembles the per-page fragment
// sequence for a single document. A directory or an archive path is one
// document, its page files taken in natural name order; a single file carries
// its own page boundaries inside.
func process(ctx context.Context, src, dst string, format config.OutputFmt, log *zap.Logger) error {
	var head, tail string
	for head = src; len(head) != 0; head, tail = filepath.Split(head) {
		if err := ctx.Err(); err != nil {
			return err
		}

		head = strings.TrimSuffix(head, string(filepath.Separator))

		fi, err := os.Stat(head)
		if err != nil {
			// does not exists - probably path in archive
			continue
		}

		if fi.Mode().IsDir() {
			if len(tail) != 0 {
				// directory cannot have tail - it would be simple file
				return fmt.Errorf("input source was not found (%s) => (%s)", head, strings.TrimPrefix(src, head))
			}
			if err := processDir(ctx, head, dst, format, log); err != nil {
				return fmt.Errorf("unable to process directory: %w", err)
			}
			break
		}

		if !fi.Mode().IsRegular() {
			return fmt.Errorf("unexpected path mode for (%s) => (%s)", head, strings.TrimPrefix(src, head))
		}

		if isArchivePath(head) {
			// we need to look inside to see if path makes sense
			tail = strings.TrimPrefix(strings.TrimPrefix(src, head), string(filepath.Separator))
			if err := processArchive(ctx, head, filepath.ToSlash(tail), dst, format, log); err != nil {
				return fmt.Errorf("unable to process archive: %w", err)
			}
			break
		}

		if isPagePath(head) && len(tail) == 0 {
			file, err := os.Open(head)
			if err != nil {
				return fmt.Errorf("unable to open input (%s): %w", head, err)
			}
			defer file.Close()

			frags, err := book.ParseFragments(log, file, filepath.Base(head))
			if err != nil {
				return err
			}
			return processDocument(ctx, frags, filepath.Base(head), dst, format, log)
		}
		return fmt.Errorf("input was not recognized as page transcription (%s)", head)
	}
	if len(head) == 0 {
		return fmt.Errorf("input source was not found (%s)", src)
	}
	return nil
}

// processDir treats the directory as one document: every page file under it,
// in natural name order, becomes a fragment run.
func processDir(ctx context.Context, dir, dst string, format config.OutputFmt, log *zap.Logger) error {
	var paths []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err != nil {
			log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !info.Mode().IsRegular() || !isPagePath(path) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		log.Debug("Nothing to process", zap.String("dir", dir))
		return nil
	}
	sort.Sort(natural.StringSlice(paths))

	var frags []book.Fragment
	for _, path := range paths {
		file, err := os.Open(path)
		if err != nil {
			log.Error("Unable to read page file", zap.String("file", path), zap.Error(err))
			continue
		}
		pages, err := book.ParseFragments(log, file, filepath.Base(path))
		file.Close()
		if err != nil {
			log.Error("Unable to parse page file", zap.String("file", path), zap.Error(err))
			continue
		}
		frags = append(frags, pages...)
	}
	renumber(frags)

	return processDocument(ctx, frags, filepath.Base(dir), dst, format, log)
}

// processArchive treats the archive (or a subtree inside it) as one document.
func processArchive(ctx context.Context, path, pathIn, dst string, format config.OutputFmt, log *zap.Logger) error {
	var frags []book.Fragment

	err := archive.Walk(path, pathIn, func(arc string, f *zip.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !isPagePath(f.FileHeader.Name) {
			log.Debug("Skipping file, not recognized as page transcription",
				zap.String("archive", arc), zap.String("file", f.FileHeader.Name))
			return nil
		}
		r, err := f.Open()
		if err != nil {
			log.Error("Unable to read file in archive",
				zap.String("archive", arc), zap.String("file", f.FileHeader.Name), zap.Error(err))
			return nil
		}
		defer r.Close()

		pages, err := book.ParseFragments(log, r, filepath.Base(f.FileHeader.Name))
		if err != nil {
			log.Error("Unable to parse file in archive",
				zap.String("archive", arc), zap.String("file", f.FileHeader.Name), zap.Error(err))
			return nil
		}
		frags = append(frags, pages...)
		return nil
	})
	if err != nil {
		return err
	}
	renumber(frags)

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return processDocument(ctx, frags, name, dst, format, log)
}

// renumber makes fragment order document-wide after concatenating per-file
// runs.
func renumber(frags []book.Fragment) {
	for i := range frags {
		frags[i].Order = i
	}
}

// processDocument runs the pipeline for one document and emits the requested
// renditions. "name" is the bare document name used for output naming and
// report entries.
func processDocument(ctx context.Context, frags []book.Fragment, name, dst string, format config.OutputFmt, log *zap.Logger) (rerr error) {
	env := state.EnvFromContext(ctx)

	log.Info("Conversion starting", zap.String("document", name), zap.Int("pages", len(frags)))
	defer func(start time.Time) {
		if r := recover(); r != nil {
			log.Error("Conversion ended with panic",
				zap.Any("panic", r), zap.Duration("elapsed", time.Since(start)), zap.ByteString("stack", debug.Stack()))
			rerr = fmt.Errorf("conversion panic: %v", r)
		} else {
			log.Info("Conversion completed", zap.Duration("elapsed", time.Since(start)))
		}
	}(time.Now())

	d, err := book.Normalize(log, frags, &env.Cfg.Document)
	if err != nil {
		return fmt.Errorf("unable to normalize %s: %w", name, err)
	}
	if d, err = book.ResolveFootnotes(log, d, &env.Cfg.Document.Footnotes); err != nil {
		return fmt.Errorf("unable to resolve footnotes in %s: %w", name, err)
	}
	if d, err = book.LinkCitations(log, d, &env.Cfg.Document.Register); err != nil {
		return fmt.Errorf("unable to link citations in %s: %w", name, err)
	}

	if report := d.Report(); report != "" {
		log.Info("Document has non-fatal issues", zap.String("document", name), zap.Int("count", len(d.Issues)))
		env.Rpt.StoreData(fmt.Sprintf("issues/%s.txt", name), []byte(report))
	}
	if env.Rpt != nil {
		env.Rpt.StoreData(fmt.Sprintf("trees/%s.txt", name), []byte(d.Dump()))
	}

	// render-time view; the canonical tree stays intact for both outputs
	view := book.NewView(d)
	if env.Reflow {
		view.SetMarkersVisible(false)
	}
	out := view.Document()

	if format == config.OutputFmtHTML || format == config.OutputFmtAll {
		if err := emitOne(ctx, out, name, dst, config.OutputFmtHTML, log); err != nil {
			return err
		}
	}
	if format == config.OutputFmtTEI || format == config.OutputFmtAll {
		if err := emitOne(ctx, out, name, dst, config.OutputFmtTEI, log); err != nil {
			return err
		}
	}
	return nil
}

func emitOne(ctx context.Context, d *book.Document, name, dst string, format config.OutputFmt, log *zap.Logger) error {
	env := state.EnvFromContext(ctx)

	outputName := buildOutputPath(name, dst, format, env)

	if _, err := os.Stat(outputName); err == nil {
		if !env.Overwrite {
			return fmt.Errorf("output file already exists: %s", outputName)
		}
		log.Warn("Overwriting existing file", zap.String("file", outputName))
		if err = os.Remove(outputName); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return err
	} else if err := os.MkdirAll(filepath.Dir(outputName), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}

	switch format {
	case config.OutputFmtHTML:
		if err := htmlout.Generate(ctx, d, outputName, &env.Cfg.Document, log); err != nil {
			return fmt.Errorf("unable to generate output: %w", err)
		}
	case config.OutputFmtTEI:
		hdr := &tei.Header{Title: d.Title, Source: name}
		if err := tei.Generate(ctx, d, outputName, hdr, log); err != nil {
			return fmt.Errorf("unable to generate output: %w", err)
		}
	}

	if env.Rpt != nil {
		env.Rpt.Store(fmt.Sprintf("result-%s%s", filepath.Base(name), format.Ext()), outputName)
	}
	return nil
}

func isArchivePath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".zip")
}

// isPagePath recognizes page transcription files by extension.
func isPagePath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm", ".xhtml":
		return true
	}
	return false
}
