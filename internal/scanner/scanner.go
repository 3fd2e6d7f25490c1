// Package scanner finds org files below a directory.
package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"
)

var log = commonlog.GetLogger("orgls.scanner")

// Ext is the extension of the files the scanner picks up.
const Ext = ".org"

// IgnoreDir reports whether the walk should skip the directory at path.
// Hidden directories are skipped, the root itself never is.
func IgnoreDir(path string) bool {
	name := filepath.Base(path)
	return name != "." && name != ".." && strings.HasPrefix(name, ".")
}

// IsOrg reports whether path names an org file.
func IsOrg(path string) bool {
	return strings.EqualFold(filepath.Ext(path), Ext)
}

// Scan walks the subtree under root and calls callback with the contents
// of every org file that skip does not reject. Files are read by up to
// limit goroutines, so callback must be safe for concurrent use. Scan
// returns once all callbacks have completed, with the first callback
// error.
func Scan(
	ctx context.Context,
	root string,
	limit int,
	skip func(path string, info fs.FileInfo) bool,
	callback func(path string, document []byte) error,
) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(limit, 1))

	log.Debugf("starting walk at %q", root)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warningf("walk error: %v", err)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if path != root && IgnoreDir(path) {
				log.Debugf("skipping %q", path)
				return fs.SkipDir
			}
			return nil
		}
		if !IsOrg(path) {
			return nil
		}
		if skip != nil {
			info, err := d.Info()
			if err != nil || skip(path, info) {
				return nil
			}
		}

		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				log.Warningf("read error %s: %v", path, err)
				return nil
			}
			return callback(path, data)
		})
		return nil
	})
	if werr := g.Wait(); werr != nil {
		return werr
	}
	return err
}

// Files expands args into a list of files. Directories are replaced by
// the org files below them in lexical order; other arguments are kept as
// given.
func Files(ctx context.Context, args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != arg && IgnoreDir(path) {
					return fs.SkipDir
				}
				return ctx.Err()
			}
			if IsOrg(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}
