package storage

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/ruteri/snippet-provisioning-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 keeps objects in memory and implements the subset of S3API used by S3Backend.
type fakeS3 struct {
	s3iface.S3API
	objects map[string][]byte
}

func (f *fakeS3) GetObjectWithContext(ctx aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.StringValue(in.Key)]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "not found", nil)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObjectWithContext(ctx aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.StringValue(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadBucketWithContext(ctx aws.Context, in *s3.HeadBucketInput, _ ...request.Option) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) ListObjectsV2PagesWithContext(ctx aws.Context, in *s3.ListObjectsV2Input, fn func(*s3.ListObjectsV2Output, bool) bool, _ ...request.Option) error {
	prefix := aws.StringValue(in.Prefix)
	delimiter := aws.StringValue(in.Delimiter)

	out := &s3.ListObjectsV2Output{}
	seen := map[string]bool{}
	for key := range f.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := strings.TrimPrefix(key, prefix)
		if delimiter != "" {
			if idx := strings.Index(rest, delimiter); idx >= 0 {
				cp := prefix + rest[:idx+1]
				if !seen[cp] {
					seen[cp] = true
					out.CommonPrefixes = append(out.CommonPrefixes, &s3.CommonPrefix{Prefix: aws.String(cp)})
				}
				continue
			}
		}
		out.Contents = append(out.Contents, &s3.Object{Key: aws.String(key)})
	}
	fn(out, true)
	return nil
}

func TestS3Backend(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := &fakeS3{objects: map[string][]byte{
		"catalog/gold/metadata.yaml":    []byte("name: gold\n"),
		"catalog/gold/states/push.json": []byte("{}"),
		"catalog/silver/metadata.yaml":  []byte("name: silver\n"),
		"other/ignored/metadata.yaml":   []byte("name: ignored\n"),
		"catalog/README.md":             []byte("top-level object"),
	}}

	backend := NewS3BackendWithClient(client, "bucket", "/catalog/", "s3://bucket/catalog", true, logger)

	bundles, err := backend.ListBundles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"gold", "silver"}, bundles)

	data, err := backend.ReadFile(ctx, "gold", "metadata.yaml")
	require.NoError(t, err)
	assert.Equal(t, "name: gold\n", string(data))

	files, err := backend.ListFiles(ctx, "gold")
	require.NoError(t, err)
	assert.Equal(t, []string{"metadata.yaml", "states/push.json"}, files)

	_, err = backend.ReadFile(ctx, "gold", "missing.json")
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)

	require.NoError(t, backend.WriteFile(ctx, "bronze", "metadata.yaml", []byte("name: bronze\n")))
	assert.Equal(t, []byte("name: bronze\n"), client.objects["catalog/bronze/metadata.yaml"])
	assert.True(t, backend.Available(ctx))
}
