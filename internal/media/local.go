package media

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"path"

	"github.com/spf13/afero"
)

// LocalStorage keeps media on a filesystem rooted at the media folder.
type LocalStorage struct {
	fs afero.Fs
}

func NewLocalStorage(folder string) *LocalStorage {
	return NewLocalStorageFs(afero.NewBasePathFs(afero.NewOsFs(), folder))
}

func NewLocalStorageFs(fs afero.Fs) *LocalStorage {
	return &LocalStorage{fs: fs}
}

func (s *LocalStorage) Put(_ context.Context, key string, r io.Reader) error {
	if err := s.fs.MkdirAll(path.Dir(key), 0o755); err != nil {
		return err
	}
	return afero.WriteReader(s.fs, key, r)
}

func (s *LocalStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := s.fs.Open(key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	return f, nil
}

func (s *LocalStorage) Remove(_ context.Context, key string) error {
	err := s.fs.Remove(key)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (s *LocalStorage) List(_ context.Context, dir string) ([]string, error) {
	infos, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	keys := make([]string, 0, len(infos))
	for _, info := range infos {
		if !info.IsDir() {
			keys = append(keys, path.Join(dir, info.Name()))
		}
	}
	return keys, nil
}

// FileServer serves the stored files over HTTP.
func (s *LocalStorage) FileServer() http.Handler {
	return http.FileServer(afero.NewHttpFs(s.fs))
}
