package services

import (
	"context"
	"fmt"
	"log"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/kendall-kelly/gestion-ventes-api/utils"
)

// ImageStore keeps the images of categories, products and listings. Stored
// images are referenced by their public /uploads/<folder>/<name> path.
type ImageStore interface {
	// Save validates and stores an image, returning its public path
	Save(ctx context.Context, folder string, fileHeader *multipart.FileHeader) (string, error)

	// URL resolves a public path to a fetchable URL
	URL(ctx context.Context, publicPath string) (string, error)

	// Delete removes a stored image; unknown paths are ignored
	Delete(ctx context.Context, publicPath string) error
}

func checkImage(folder string, fileHeader *multipart.FileHeader) error {
	if !utils.ValidFolder(folder) {
		return fmt.Errorf("unknown upload folder %q", folder)
	}
	if err := utils.ValidateImageFile(fileHeader); err != nil {
		return NewValidation("%s", err.Error())
	}
	return nil
}

// LocalImageStore writes images under a directory served as /uploads
type LocalImageStore struct {
	dir string
}

// NewLocalImageStore creates the upload tree under dir
func NewLocalImageStore(dir string) (*LocalImageStore, error) {
	for _, folder := range []string{utils.FolderCategories, utils.FolderProducts, utils.FolderSellerProducts} {
		if err := os.MkdirAll(filepath.Join(dir, folder), 0755); err != nil {
			return nil, fmt.Errorf("failed to create upload directory: %w", err)
		}
	}
	return &LocalImageStore{dir: dir}, nil
}

// Dir is the root of the upload tree
func (s *LocalImageStore) Dir() string {
	return s.dir
}

// Save stores the image on disk
func (s *LocalImageStore) Save(_ context.Context, folder string, fileHeader *multipart.FileHeader) (string, error) {
	if err := checkImage(folder, fileHeader); err != nil {
		return "", err
	}
	name, err := utils.SaveUploadedFile(fileHeader, s.dir, folder)
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	return utils.PublicPath(folder, name), nil
}

// URL is the public path itself; the router serves the directory
func (s *LocalImageStore) URL(_ context.Context, publicPath string) (string, error) {
	return publicPath, nil
}

// Delete removes the file behind a public path
func (s *LocalImageStore) Delete(_ context.Context, publicPath string) error {
	folder, name, ok := utils.SplitPublicPath(publicPath)
	if !ok {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, folder, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}

// S3ImageStore keeps images in an object store under the same layout
type S3ImageStore struct {
	objects ObjectStore
}

// NewS3ImageStore creates an image store backed by objects
func NewS3ImageStore(objects ObjectStore) *S3ImageStore {
	return &S3ImageStore{objects: objects}
}

func objectKey(folder, name string) string {
	return "uploads/" + folder + "/" + name
}

// Save uploads the image
func (s *S3ImageStore) Save(ctx context.Context, folder string, fileHeader *multipart.FileHeader) (string, error) {
	if err := checkImage(folder, fileHeader); err != nil {
		return "", err
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			log.Printf("warning: failed to close file: %v", closeErr)
		}
	}()

	name := utils.UniqueName(fileHeader.Filename)
	if err := s.objects.Put(ctx, objectKey(folder, name), file, utils.ContentType(name)); err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	return utils.PublicPath(folder, name), nil
}

// URL presigns a GET on the object behind a public path
func (s *S3ImageStore) URL(ctx context.Context, publicPath string) (string, error) {
	folder, name, ok := utils.SplitPublicPath(publicPath)
	if !ok {
		return "", NewNotFound("Image non trouvée")
	}
	url, err := s.objects.PresignedURL(ctx, objectKey(folder, name))
	if err != nil {
		return "", fmt.Errorf("failed to generate image URL: %w", err)
	}
	return url, nil
}

// Delete removes the object behind a public path
func (s *S3ImageStore) Delete(ctx context.Context, publicPath string) error {
	folder, name, ok := utils.SplitPublicPath(publicPath)
	if !ok {
		return nil
	}
	if err := s.objects.Delete(ctx, objectKey(folder, name)); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}
