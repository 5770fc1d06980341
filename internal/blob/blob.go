// Package blob хранит файлы выгрузок (листы отгрузки) в памяти, на диске или в S3.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// Driver определяет реализацию хранилища.
type Driver string

const (
	DriverMemory     Driver = "memory"
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
)

var (
	// ErrNotFound — объекта с таким ключом нет.
	ErrNotFound = errors.New("blob not found")
	// ErrExists — объект с таким ключом уже записан; перезапись не поддерживается.
	ErrExists = errors.New("blob already exists")
	// ErrInvalidKey — пустой, абсолютный ключ или ключ с "..".
	ErrInvalidKey = errors.New("invalid blob key")
)

// PutOptions — необязательные параметры записи.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// Info описывает сохранённый объект.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
}

// Store — минимальный S3-подобный интерфейс.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Head(ctx context.Context, key string) (Info, error)
	Delete(ctx context.Context, key string) (bool, error)
	// List возвращает объекты с префиксом, отсортированные по ключу.
	List(ctx context.Context, prefix string) ([]Info, error)
	Driver() Driver
}

// Config выбирает и настраивает драйвер.
type Config struct {
	Driver Driver
	// Root — каталог для драйвера fs.
	Root string
	S3   S3Config
}

// Open создаёт хранилище по конфигурации. Пустой драйвер означает memory.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverMemory:
		return NewMemory(), nil
	case DriverFilesystem:
		return NewFilesystem(cfg.Root)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}

func sanitizeKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return path.Clean(key), nil
}

func cloneMetadata(md map[string]string) map[string]string {
	if len(md) == 0 {
		return nil
	}
	out := make(map[string]string, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}
