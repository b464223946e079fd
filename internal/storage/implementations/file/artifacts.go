package file

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/modelreg/modelreg/pkg/errors"
)

// FileArtifactStore keeps model artifact bytes on the local filesystem under
// <directory>/models/<version>/<name>. The returned location is the file path.
type FileArtifactStore struct {
	directory string
	logger    *logrus.Logger
}

// NewFileArtifactStore creates a filesystem-backed artifact store
func NewFileArtifactStore(directory string, logger *logrus.Logger) (*FileArtifactStore, error) {
	if directory == "" {
		return nil, errors.NewStorageError("INVALID_CONFIG", "artifact store requires a directory")
	}
	if logger == nil {
		logger = logrus.New()
	}

	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to create artifact directory")
	}

	return &FileArtifactStore{
		directory: directory,
		logger:    logger,
	}, nil
}

// Store writes artifact bytes and returns their path
func (s *FileArtifactStore) Store(ctx context.Context, version, name string, artifact io.Reader) (string, error) {
	dir := filepath.Join(s.directory, "models", version)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to create artifact directory")
	}

	location := filepath.Join(dir, name)
	f, err := os.Create(location)
	if err != nil {
		return "", errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to create artifact file")
	}
	defer f.Close()

	if _, err := io.Copy(f, artifact); err != nil {
		os.Remove(location)
		return "", errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to write artifact")
	}

	s.logger.WithFields(logrus.Fields{
		"version":  version,
		"location": location,
	}).Info("Stored model artifact")

	return location, nil
}

// Retrieve opens the artifact at location
func (s *FileArtifactStore) Retrieve(ctx context.Context, location string) (io.ReadCloser, error) {
	f, err := os.Open(location)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewStorageError("ARTIFACT_NOT_FOUND", "no artifact at "+location)
		}
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to open artifact")
	}
	return f, nil
}

// Delete removes the artifact at location
func (s *FileArtifactStore) Delete(ctx context.Context, location string) error {
	if err := os.Remove(location); err != nil && !os.IsNotExist(err) {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to delete artifact")
	}
	return nil
}

// Exists reports whether an artifact file is present at location
func (s *FileArtifactStore) Exists(ctx context.Context, location string) (bool, error) {
	_, err := os.Stat(location)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
		"failed to check artifact")
}
