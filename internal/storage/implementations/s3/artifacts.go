package s3

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/sirupsen/logrus"

	"github.com/modelreg/modelreg/pkg/errors"
)

// S3Config holds configuration for the S3 artifact store
type S3Config struct {
	Region          string        `json:"region"`
	Bucket          string        `json:"bucket"`
	AccessKeyID     string        `json:"access_key_id"`
	SecretAccessKey string        `json:"secret_access_key"`
	Endpoint        string        `json:"endpoint,omitempty"`
	ForcePathStyle  bool          `json:"force_path_style"`
	DisableSSL      bool          `json:"disable_ssl"`
	Prefix          string        `json:"prefix"`
	Timeout         time.Duration `json:"timeout"`
	MaxRetries      int           `json:"max_retries"`
}

// S3ArtifactStore implements the ArtifactStore interface on AWS S3. The
// location string it returns is the object key; the registry treats it as
// opaque.
type S3ArtifactStore struct {
	config     *S3Config
	s3Client   *s3.S3
	uploader   *s3manager.Uploader
	downloader *s3manager.Downloader
	logger     *logrus.Logger
}

// NewS3ArtifactStore creates an S3-backed artifact store
func NewS3ArtifactStore(config *S3Config, logger *logrus.Logger) (*S3ArtifactStore, error) {
	if config == nil {
		return nil, errors.NewStorageError("INVALID_CONFIG", "S3 config cannot be nil")
	}
	if config.Bucket == "" {
		return nil, errors.NewStorageError("INVALID_CONFIG", "S3 bucket is required")
	}
	if logger == nil {
		logger = logrus.New()
	}

	awsConfig := &aws.Config{
		Region:           aws.String(config.Region),
		MaxRetries:       aws.Int(config.MaxRetries),
		S3ForcePathStyle: aws.Bool(config.ForcePathStyle),
		DisableSSL:       aws.Bool(config.DisableSSL),
	}
	if config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.Endpoint)
	}
	if config.AccessKeyID != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(
			config.AccessKeyID, config.SecretAccessKey, "")
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to create AWS session")
	}

	logger.WithFields(logrus.Fields{
		"bucket": config.Bucket,
		"region": config.Region,
	}).Info("S3 artifact store ready")

	return &S3ArtifactStore{
		config:     config,
		s3Client:   s3.New(sess),
		uploader:   s3manager.NewUploader(sess),
		downloader: s3manager.NewDownloader(sess),
		logger:     logger,
	}, nil
}

// Store uploads artifact bytes and returns the object key
func (s *S3ArtifactStore) Store(ctx context.Context, version, name string, artifact io.Reader) (string, error) {
	key := s.objectKey(version, name)

	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
		Body:   artifact,
	})
	if err != nil {
		return "", errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to upload artifact")
	}

	s.logger.WithFields(logrus.Fields{
		"version": version,
		"key":     key,
	}).Info("Stored model artifact")

	return key, nil
}

// Retrieve downloads artifact bytes by object key
func (s *S3ArtifactStore) Retrieve(ctx context.Context, location string) (io.ReadCloser, error) {
	out, err := s.s3Client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(location),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, errors.NewStorageError("ARTIFACT_NOT_FOUND", "no artifact at "+location)
		}
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to download artifact")
	}
	return out.Body, nil
}

// Delete removes the artifact at the given key
func (s *S3ArtifactStore) Delete(ctx context.Context, location string) error {
	_, err := s.s3Client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(location),
	})
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to delete artifact")
	}
	return nil
}

// Exists reports whether an object is stored at the given key
func (s *S3ArtifactStore) Exists(ctx context.Context, location string) (bool, error) {
	_, err := s.s3Client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(location),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok {
			switch aerr.Code() {
			case s3.ErrCodeNoSuchKey, "NotFound":
				return false, nil
			}
		}
		return false, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to check artifact")
	}
	return true, nil
}

func (s *S3ArtifactStore) objectKey(version, name string) string {
	parts := []string{strings.TrimSuffix(s.config.Prefix, "/"), "models", version, name}
	if parts[0] == "" {
		parts = parts[1:]
	}
	return path.Join(parts...)
}

// String describes the store for logs
func (s *S3ArtifactStore) String() string {
	return fmt.Sprintf("s3://%s/%s", s.config.Bucket, s.config.Prefix)
}
