package gcs

import (
	"context"
	"fmt"
	"net/url"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

const downloadBase = "https://firebasestorage.googleapis.com/v0/b"

// Store uploads attachments to a Cloud Storage bucket (the bucket behind
// Firebase Storage) and returns token-protected download URLs.
type Store struct {
	client *storage.Client
	bucket string
	token  func() string
}

func NewStore(ctx context.Context, bucket string) (*Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket is required for attachment store")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return NewStoreWithClient(client, bucket), nil
}

func NewStoreWithClient(client *storage.Client, bucket string) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		token:  func() string { return uuid.NewString() },
	}
}

func (s *Store) Close() error {
	return s.client.Close()
}

// Store writes blob to name and returns its download URL. The object is only
// readable through the URL once the writer has been closed successfully.
func (s *Store) Store(ctx context.Context, name string, blob []byte, contentType string) (string, error) {
	token := s.token()

	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{
		"firebaseStorageDownloadTokens": token,
	}

	if _, err := w.Write(blob); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcs upload %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs finalize %s: %w", name, err)
	}

	return DownloadURL(s.bucket, name, token), nil
}

// DownloadURL builds the same URL getDownloadURL returns for a Firebase
// Storage object.
func DownloadURL(bucket, name, token string) string {
	return fmt.Sprintf("%s/%s/o/%s?alt=media&token=%s",
		downloadBase, bucket, url.PathEscape(name), url.QueryEscape(token))
}
