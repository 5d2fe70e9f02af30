package apkbuilder

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
)

// stageTemplate copies the template into the build directory so the rest of
// the build never touches the original, and checks that it is a readable
// archive with a manifest.
func stageTemplate(src, dst string) error {
	if src == "" {
		return fmt.Errorf("no template configured")
	}

	if err := copyFile(src, dst, 0o644); err != nil {
		return err
	}

	zr, err := zip.OpenReader(dst)
	if err != nil {
		return fmt.Errorf("open template: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name == manifestEntryName {
			return nil
		}
	}

	return fmt.Errorf("template has no %s", manifestEntryName)
}

func copyFile(src, dst string, mode os.FileMode) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return err
	}

	return dstFile.Close()
}
