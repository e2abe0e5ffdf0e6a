// Package filex collects local files for upload.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// File is a file read into memory.
type File struct {
	Name string
	Data []byte
}

// ReadFiles reads every path. A directory contributes its regular,
// non-hidden files (not recursively) in name order. Empty files are skipped.
func ReadFiles(paths []string, maxBytes int64) ([]File, error) {
	var out []File
	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !fi.IsDir() {
			f, err := readOne(p, maxBytes)
			if err != nil {
				return nil, err
			}
			if f != nil {
				out = append(out, *f)
			}
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("read dir %s: %w", p, err)
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
		for _, e := range entries {
			if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			f, err := readOne(filepath.Join(p, e.Name()), maxBytes)
			if err != nil {
				return nil, err
			}
			if f != nil {
				out = append(out, *f)
			}
		}
	}
	return out, nil
}

func readOne(path string, maxBytes int64) (*File, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if maxBytes > 0 && fi.Size() > maxBytes {
		return nil, fmt.Errorf("%s is %d bytes, limit is %d", path, fi.Size(), maxBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return &File{Name: filepath.Base(path), Data: data}, nil
}
