// Package archive relocates consumed batch files and uploaded images into
// their done directories.
//
// Every move is a single rename, so a file is always in exactly one of its
// source or done directory. Nothing is ever copied and then deleted.
package archive

import (
	"errors"

	"photoferry/internal/fileutil"
	"photoferry/internal/services"
)

// FinalizeBatch moves a fully processed batch file into doneDir and returns
// its new path.
func FinalizeBatch(path, doneDir string) (string, error) {
	target, err := fileutil.MoveInto(path, doneDir)
	if err != nil {
		return "", services.Wrap(services.ErrWrite, "archive", "finalize batch", path, err)
	}
	return target, nil
}

// ArchiveUploaded moves each uploaded image into doneDir. Every path is
// attempted; the returned slice holds the new locations of the ones that
// moved and the error joins any failures.
func ArchiveUploaded(paths []string, doneDir string) ([]string, error) {
	moved := make([]string, 0, len(paths))
	var errs []error
	for _, path := range paths {
		target, err := fileutil.MoveInto(path, doneDir)
		if err != nil {
			errs = append(errs, services.Wrap(services.ErrWrite, "archive", "archive image", path, err))
			continue
		}
		moved = append(moved, target)
	}
	return moved, errors.Join(errs...)
}
