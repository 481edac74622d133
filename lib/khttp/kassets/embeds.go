package kassets

import (
	"embed"
	"fmt"
	"io/fs"
)

// FSToMap converts a fs.FS to a map of file paths to their contents.
func FSToMap(fsys fs.FS) (map[string][]byte, error) {
	data := make(map[string][]byte)
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		fileData, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		data[path] = fileData
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// EmbedFSToMap converts an embed.FS to a map of file paths to their contents.
//
// Example usage, in your assets.go file:
//
//	//go:embed templates/*.html
//	var embedded embed.FS
//
//	func Data() map[string][]byte {
//		return kassets.EmbedFSToMapOrPanic(embedded)
//	}
func EmbedFSToMap(embedded embed.FS) (map[string][]byte, error) {
	return FSToMap(embedded)
}

// EmbedFSToMapOrPanic is like EmbedFSToMap but panics on error.
func EmbedFSToMapOrPanic(embedded embed.FS) map[string][]byte {
	data, err := EmbedFSToMap(embedded)
	if err != nil {
		panic(fmt.Sprintf("Parsing embedded file system failed: %v", err))
	}
	return data
}

// EmbedSubdirToMapOrPanic returns the files under dir, with paths relative to dir.
func EmbedSubdirToMapOrPanic(embedded embed.FS, dir string) map[string][]byte {
	sub, err := fs.Sub(embedded, dir)
	if err != nil {
		panic(fmt.Sprintf("Opening embedded directory %s failed: %v", dir, err))
	}
	data, err := FSToMap(sub)
	if err != nil {
		panic(fmt.Sprintf("Parsing embedded directory %s failed: %v", dir, err))
	}
	return data
}
