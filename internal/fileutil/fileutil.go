// Package fileutil provides file copy helpers with integrity verification.
package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CopyFileVerified copies src to dst, creating parent directories as needed,
// and confirms the destination's SHA-256 digest matches the source before
// returning.
func CopyFileVerified(src, dst string) error {
	return copyFile(src, dst, true)
}

func copyFile(src, dst string, verify bool) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat source %s: %w", src, err)
	}
	mode := info.Mode().Perm()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	tmp := dst + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create destination %s: %w", tmp, err)
	}

	srcHash := sha256.New()
	writer := io.Writer(out)
	if verify {
		writer = io.MultiWriter(out, srcHash)
	}

	if _, err := io.Copy(writer, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync destination: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close destination: %w", err)
	}

	if verify {
		dstDigest, err := HashFile(tmp)
		if err != nil {
			os.Remove(tmp)
			return err
		}
		srcDigest := hex.EncodeToString(srcHash.Sum(nil))
		if dstDigest != srcDigest {
			os.Remove(tmp)
			return fmt.Errorf("copy verification failed for %s: digest mismatch", dst)
		}
	}

	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("finalize %s: %w", dst, err)
	}
	return nil
}

// HashFile returns the hex SHA-256 digest of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
