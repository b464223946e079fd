package importer

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"path"
	"strings"

	"github.com/modelreg/modelreg/pkg/constants"
	"github.com/modelreg/modelreg/pkg/errors"
	"github.com/modelreg/modelreg/pkg/interfaces"
	"github.com/modelreg/modelreg/pkg/models"
)

// maxMemberSize bounds a single decompressed archive member
const maxMemberSize = 256 << 20

// ArchiveExtractor unpacks zip and tar.gz model bundles into the structured
// package layout the importer validates.
type ArchiveExtractor struct{}

// NewArchiveExtractor creates the default package extractor
func NewArchiveExtractor() *ArchiveExtractor {
	return &ArchiveExtractor{}
}

// Extract implements interfaces.PackageExtractor
func (e *ArchiveExtractor) Extract(ctx context.Context, bundleName string, bundleBytes []byte) (*interfaces.ExtractedPackage, error) {
	var members map[string][]byte
	var err error

	switch {
	case strings.HasSuffix(bundleName, ".zip"):
		members, err = extractZip(bundleBytes)
	case strings.HasSuffix(bundleName, ".tar.gz"), strings.HasSuffix(bundleName, ".tgz"):
		members, err = extractTarGz(bundleBytes)
	default:
		return nil, errors.NewMalformedPackageError("unsupported archive format: " + bundleName)
	}
	if err != nil {
		return nil, err
	}

	pkg := &interfaces.ExtractedPackage{}
	for name := range members {
		pkg.Members = append(pkg.Members, name)
	}

	for name, data := range members {
		switch {
		case name == constants.MemberMetadata:
			var metadata models.ModelMetadata
			if err := json.Unmarshal(data, &metadata); err != nil {
				return nil, errors.NewMalformedPackageError("metadata document is not valid JSON: " + err.Error())
			}
			metadata.ApplyDefaults()
			pkg.Metadata = metadata
		case name == constants.MemberManifest:
			if !json.Valid(data) {
				return nil, errors.NewMalformedPackageError("deployment manifest is not valid JSON")
			}
			pkg.ManifestJSON = data
		case isModelArtifact(name):
			if pkg.ArtifactName != "" {
				return nil, errors.NewMalformedPackageError("package contains more than one model artifact")
			}
			pkg.ArtifactName = name
			pkg.ArtifactBytes = data
		}
	}

	return pkg, nil
}

func isModelArtifact(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, allowed := range constants.ModelArtifactExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func extractZip(data []byte) (map[string][]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.NewMalformedPackageError("bundle is not a readable zip archive: " + err.Error())
	}

	members := make(map[string][]byte)
	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name, ok := safeMemberName(f.Name)
		if !ok {
			return nil, errors.NewMalformedPackageError("archive member escapes the package root: " + f.Name)
		}

		rc, err := f.Open()
		if err != nil {
			return nil, errors.NewMalformedPackageError("failed to open archive member " + name + ": " + err.Error())
		}
		content, err := io.ReadAll(io.LimitReader(rc, maxMemberSize))
		rc.Close()
		if err != nil {
			return nil, errors.NewMalformedPackageError("failed to read archive member " + name + ": " + err.Error())
		}
		members[name] = content
	}

	return members, nil
}

func extractTarGz(data []byte) (map[string][]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.NewMalformedPackageError("bundle is not gzip-compressed: " + err.Error())
	}
	defer gz.Close()

	members := make(map[string][]byte)
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewMalformedPackageError("bundle is not a readable tar archive: " + err.Error())
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		name, ok := safeMemberName(hdr.Name)
		if !ok {
			return nil, errors.NewMalformedPackageError("archive member escapes the package root: " + hdr.Name)
		}

		content, err := io.ReadAll(io.LimitReader(tr, maxMemberSize))
		if err != nil {
			return nil, errors.NewMalformedPackageError("failed to read archive member " + name + ": " + err.Error())
		}
		members[name] = content
	}

	return members, nil
}

// safeMemberName flattens archive paths to their base name and rejects
// traversal attempts
func safeMemberName(raw string) (string, bool) {
	cleaned := path.Clean(strings.ReplaceAll(raw, "\\", "/"))
	if strings.HasPrefix(cleaned, "..") || path.IsAbs(cleaned) {
		return "", false
	}
	return path.Base(cleaned), true
}
