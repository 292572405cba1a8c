package utils

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	// MaxFileSize is 10MB in bytes
	MaxFileSize = 10 * 1024 * 1024
)

// Upload sub-folders, one per owning entity
const (
	FolderCategories     = "categories"
	FolderProducts       = "produits"
	FolderSellerProducts = "vendeur-produits"
)

// PublicPrefix is the URL prefix under which uploads are served
const PublicPrefix = "/uploads"

var allowedImageTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// FileUploadError represents a file upload validation error
type FileUploadError struct {
	Code    string
	Message string
}

func (e *FileUploadError) Error() string {
	return e.Message
}

// ValidateImageFile checks the size and extension of an uploaded image
func ValidateImageFile(fileHeader *multipart.FileHeader) error {
	if fileHeader.Size > MaxFileSize {
		return &FileUploadError{
			Code:    "FILE_TOO_LARGE",
			Message: fmt.Sprintf("La taille du fichier dépasse %d Mo", MaxFileSize/(1024*1024)),
		}
	}

	if _, ok := allowedImageTypes[strings.ToLower(filepath.Ext(fileHeader.Filename))]; !ok {
		return &FileUploadError{
			Code:    "INVALID_FILE_FORMAT",
			Message: "Seuls les fichiers png, jpg, jpeg, gif et webp sont acceptés",
		}
	}

	return nil
}

// ContentType returns the MIME type of an accepted image name
func ContentType(filename string) string {
	if ct, ok := allowedImageTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// ValidFolder reports whether folder is one of the upload sub-folders
func ValidFolder(folder string) bool {
	switch folder {
	case FolderCategories, FolderProducts, FolderSellerProducts:
		return true
	}
	return false
}

// UniqueName keeps the extension of the uploaded name and replaces the rest
// with a random identifier
func UniqueName(original string) string {
	return uuid.NewString() + strings.ToLower(filepath.Ext(original))
}

// SaveUploadedFile stores the upload under uploadDir/folder with a unique
// name and returns that name
func SaveUploadedFile(fileHeader *multipart.FileHeader, uploadDir, folder string) (filename string, err error) {
	dir := filepath.Join(uploadDir, folder)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	filename = UniqueName(fileHeader.Filename)

	src, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer func() {
		_ = src.Close()
	}()

	dst, err := os.Create(filepath.Join(dir, filename))
	if err != nil {
		return "", fmt.Errorf("failed to create destination file: %w", err)
	}
	defer func() {
		if closeErr := dst.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close destination file: %w", closeErr)
		}
	}()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}

	return filename, nil
}

// PublicPath is the URL path of a stored upload
func PublicPath(folder, filename string) string {
	if filename == "" {
		return ""
	}
	return path.Join(PublicPrefix, folder, filename)
}

// SplitPublicPath reverses PublicPath. ok is false for anything outside the
// upload tree.
func SplitPublicPath(p string) (folder, filename string, ok bool) {
	rest, found := strings.CutPrefix(p, PublicPrefix+"/")
	if !found {
		return "", "", false
	}
	folder, filename, found = strings.Cut(rest, "/")
	if !found || !ValidFolder(folder) || filename == "" || strings.ContainsAny(filename, `/\`) || strings.Contains(filename, "..") {
		return "", "", false
	}
	return folder, filename, true
}
