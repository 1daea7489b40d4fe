package convert

import (
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"

	"folio/config"
	"folio/state"
)

// buildOutputPath constructs the output file path for one rendition of a
// document. The document name keeps its relative position under the
// destination unless flat output was requested, and is optionally
// transliterated to a slug.
func buildOutputPath(name, dst string, format config.OutputFmt, env *state.LocalEnv) string {
	outDir := dst
	if !env.NoDirs {
		if dir := filepath.Dir(name); dir != "." {
			outDir = filepath.Join(dst, dir)
		}
	}

	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if env.Cfg.Document.SlugFileName {
		base = slug.Make(base)
	}
	return filepath.Join(outDir, config.CleanFileName(base)+format.Ext())
}
