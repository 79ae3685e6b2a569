package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// A FileCache is a LocationCache backed by a small JSON file. Writes
// go through a temp file and rename so a crash mid-write never leaves
// a torn cache.
type FileCache struct {
	mu   sync.Mutex
	path string
}

func NewFileCache(path string) *FileCache {
	return &FileCache{path: path}
}

func (c *FileCache) Put(fix Fix) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(fix)
	if err != nil {
		return err
	}

	tmp := c.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(c.path), 0700); err != nil {
		return fmt.Errorf("cache: %s", err)
	}
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("cache: %s", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("cache: %s", err)
	}
	return nil
}

func (c *FileCache) Last() (*Fix, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache: %s", err)
	}

	fix := &Fix{}
	if err := json.Unmarshal(data, fix); err != nil {
		return nil, fmt.Errorf("cache: %s", err)
	}
	return fix, nil
}
