package session

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

type fileContent struct {
	Entries map[string]string `toml:"entries"`
}

// FileStorage keeps the session entries in a TOML file. Writes go to a temp
// file which is then renamed over the session file, so readers in other
// processes never see a partial file.
type FileStorage struct {
	mu   sync.Mutex
	path string
}

func NewFileStorage(path string) (*FileStorage, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("session file path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o700); err != nil {
		return nil, fmt.Errorf("create session file dir: %w", err)
	}
	return &FileStorage{
		path: absPath,
	}, nil
}

func (fs *FileStorage) Path() string {
	return fs.path
}

func (fs *FileStorage) Get(_ context.Context, key string) (string, bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	entries, err := fs.read()
	if err != nil {
		return "", false, err
	}
	val, ok := entries[key]
	return val, ok, nil
}

func (fs *FileStorage) Set(_ context.Context, key, value string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	entries, err := fs.read()
	if err != nil {
		return err
	}
	entries[key] = value
	return fs.write(entries)
}

func (fs *FileStorage) Delete(_ context.Context, keys ...string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	entries, err := fs.read()
	if err != nil {
		return err
	}

	changed := false
	for _, k := range keys {
		if _, ok := entries[k]; ok {
			delete(entries, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}

	return fs.write(entries)
}

func (fs *FileStorage) read() (map[string]string, error) {
	contentBytes, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("read session file: %w", err)
	}

	var content fileContent
	if _, err := toml.Decode(string(contentBytes), &content); err != nil {
		return nil, fmt.Errorf("decode session file: %w", err)
	}
	if content.Entries == nil {
		content.Entries = make(map[string]string)
	}

	return content.Entries, nil
}

func (fs *FileStorage) write(entries map[string]string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(fileContent{Entries: entries}); err != nil {
		return fmt.Errorf("encode session file: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(fs.path), ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		// no-op after a successful rename
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(buf.Bytes()); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write temp session file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp session file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return fmt.Errorf("chmod temp session file: %w", err)
	}

	return os.Rename(tmpPath, fs.path)
}

func (fs *FileStorage) Changes(ctx context.Context) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("new fs watcher: %w", err)
	}
	// watch the dir, the session file itself is replaced on every write
	if err := watcher.Add(filepath.Dir(fs.path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch session dir: %w", err)
	}

	changes := make(chan struct{}, 1)
	go func() {
		defer close(changes)
		defer func() {
			if err := watcher.Close(); err != nil {
				log.Errorf("file session storage, close watcher: %s", err)
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != fs.path {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				log.Tracef("file session storage, %s: %s", event.Op, event.Name)
				notify(changes)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Errorf("file session storage, watcher: %s", err)
			}
		}
	}()

	return changes, nil
}
