package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/joshua-takyi/humanfolio/internal/models"
)

// FileStore keeps the identity as JSON in dir/humanfolio_current_user.json.
// Writes go through a temp file and a rename, so readers never see a
// partial file.
type FileStore struct {
	dir      string
	path     string
	logger   *slog.Logger
	debounce time.Duration
}

func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config dir: %w", err)
		}
		dir = filepath.Join(base, "humanfolio")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create session dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{
		dir:      dir,
		path:     filepath.Join(dir, Key+".json"),
		logger:   logger.With("component", "session", "backend", "file"),
		debounce: 50 * time.Millisecond,
	}, nil
}

func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Load(ctx context.Context) (*models.User, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	return decode(data)
}

func (f *FileStore) Save(ctx context.Context, user *models.User) error {
	data, err := encode(user)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.dir, Key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

func (f *FileStore) Clear(ctx context.Context) error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// Watch follows the session file. Bursts of events are collapsed and the
// file is re-read once the burst settles.
func (f *FileStore) Watch(ctx context.Context, onChange func(*models.User)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	// the directory, since saves replace the file
	if err := watcher.Add(f.dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", f.dir, err)
	}

	stopCh := make(chan struct{})
	doneCh := make(chan struct{})

	go func() {
		defer close(doneCh)
		var settle <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case <-stopCh:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != f.path {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				settle = time.After(f.debounce)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				f.logger.Error("session watcher error", "error", err)
			case <-settle:
				settle = nil
				u, err := f.Load(ctx)
				if err != nil {
					f.logger.Warn("failed to reload session file", "error", err)
					continue
				}
				onChange(u)
			}
		}
	}()

	var stopped bool
	return func() {
		if stopped {
			return
		}
		stopped = true
		close(stopCh)
		<-doneCh
		if err := watcher.Close(); err != nil {
			f.logger.Error("error closing session watcher", "error", err)
		}
	}, nil
}
