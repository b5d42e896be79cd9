package main

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

func CopyFile(src string, dest string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer destFile.Close()

	_, err = io.Copy(destFile, sourceFile)
	if err != nil {
		return err
	}

	return destFile.Sync()
}

// MoveFile renames src to dest, falling back to copy and delete when they
// are not on the same filesystem.
func MoveFile(src string, dest string) error {
	err := os.Rename(src, dest)
	if err == nil {
		return nil
	}

	if !errors.Is(err, syscall.EXDEV) {
		return err
	}

	info, statErr := os.Stat(src)
	if statErr != nil {
		return err
	}

	// directories (frames backend) can only be renamed
	if info.IsDir() {
		return err
	}

	if err := CopyFile(src, dest); err != nil {
		return err
	}

	return os.Remove(src)
}

func IsSamePath(p1 string, p2 string) (bool, error) {
	absPath1, err := filepath.Abs(p1)
	if err != nil {
		return false, err
	}

	absPath2, err := filepath.Abs(p2)
	if err != nil {
		return false, err
	}

	// Compare the absolute paths
	return absPath1 == absPath2, nil
}

func PathExist(p string) (bool, error) {
	_, err := os.Stat(p)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return true, nil
}
