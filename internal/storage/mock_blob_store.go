package storage

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
)

// MockBlobStore is a testify mock of BlobStore. It drains the reader so
// expectations can match on the uploaded body.
type MockBlobStore struct {
	mock.Mock
}

// PutObject records the call with the uploaded bytes as a string.
func (m *MockBlobStore) PutObject(ctx context.Context, objectPath, contentType string, metadata map[string]string, r io.Reader) (string, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return "", err //nolint:wrapcheck
	}
	args := m.Called(ctx, objectPath, contentType, metadata, string(body))
	return args.String(0), args.Error(1) //nolint:wrapcheck
}
