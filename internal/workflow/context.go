package workflow

import (
	"fmt"
	"path/filepath"

	"github.com/yairfalse/ferry/internal/config"
)

// RunContext carries everything one run needs. It is built once and passed to every step.
// QueueURL is filled in by the notify step unless it was known up front.
type RunContext struct {
	FilePath  string
	Bucket    string
	Key       string
	QueueName string
	QueueURL  string

	PublicRead   bool
	CreateBucket bool
	CreateQueue  bool
}

// ObjectKey derives the object key for a local file: its base name.
func ObjectKey(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty file path")
	}
	key := filepath.Base(path)
	switch key {
	case ".", "..", string(filepath.Separator):
		return "", fmt.Errorf("no file name in path %q", path)
	}
	return key, nil
}

// NewRunContext builds the run context for uploading path under cfg.
func NewRunContext(path string, cfg *config.Config) (*RunContext, error) {
	key, err := ObjectKey(path)
	if err != nil {
		return nil, err
	}
	return &RunContext{
		FilePath:     path,
		Bucket:       cfg.Storage.Bucket,
		Key:          key,
		QueueName:    cfg.Queue.Name,
		PublicRead:   cfg.Storage.PublicRead,
		CreateBucket: cfg.Storage.Create,
		CreateQueue:  cfg.Queue.Create,
	}, nil
}
