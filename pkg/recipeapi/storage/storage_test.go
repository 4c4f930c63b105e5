package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skrskr/recipe-app-api/pkg/recipeapi/config"
)

func stubUUID(t *testing.T, id string) {
	t.Helper()
	orig := newUUID
	newUUID = func() string { return id }
	t.Cleanup(func() { newUUID = orig })
}

func TestRecipeImagePath(t *testing.T) {
	stubUUID(t, "test-uuid")

	tests := []struct {
		filename string
		want     string
	}{
		{"myimage.jpg", "uploads/recipe/test-uuid.jpg"},
		{"archive.tar.gz", "uploads/recipe/test-uuid.gz"},
		{"photo.PNG", "uploads/recipe/test-uuid.PNG"},
		{"noextension", "uploads/recipe/test-uuid"},
		{"trailingdot.", "uploads/recipe/test-uuid"},
		{"../../etc/passwd.jpg", "uploads/recipe/test-uuid.jpg"},
		{`C:\Users\me\pic.jpeg`, "uploads/recipe/test-uuid.jpeg"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, RecipeImagePath(tt.filename))
		})
	}
}

func TestRecipeImagePath_Unique(t *testing.T) {
	assert.NotEqual(t, RecipeImagePath("a.jpg"), RecipeImagePath("a.jpg"))
}

func TestLocalStorage(t *testing.T) {
	root := t.TempDir()
	s := NewLocalStorage(root, "/media")
	ctx := context.Background()
	key := "uploads/recipe/abc.jpg"

	require.NoError(t, s.Save(ctx, key, strings.NewReader("image-bytes"), "image/jpeg"))

	data, err := os.ReadFile(filepath.Join(root, "uploads", "recipe", "abc.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(data))
	assert.Equal(t, "/media/uploads/recipe/abc.jpg", s.URL(key))
	assert.Equal(t, "local", s.Backend())

	require.NoError(t, s.Delete(ctx, key))
	_, err = os.Stat(filepath.Join(root, "uploads", "recipe", "abc.jpg"))
	assert.True(t, os.IsNotExist(err))

	// Deleting twice is fine
	assert.NoError(t, s.Delete(ctx, key))
}

func TestLocalStorage_RejectsTraversal(t *testing.T) {
	s := NewLocalStorage(t.TempDir(), "/media/")
	for _, key := range []string{"../escape.jpg", "uploads/../../escape.jpg", "", "/abs.jpg"} {
		assert.Error(t, s.Save(context.Background(), key, strings.NewReader("x"), ""), key)
	}
}

type fakeS3 struct {
	puts    map[string]string
	types   map[string]string
	deletes []string
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.puts[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = string(body)
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deletes = append(f.deletes, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Storage(t *testing.T) {
	fake := &fakeS3{puts: map[string]string{}, types: map[string]string{}}
	s := &S3Storage{client: fake, bucket: "recipes", publicURL: "https://cdn.example.com"}
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "uploads/recipe/a.png", strings.NewReader("png"), "image/png"))
	assert.Equal(t, "png", fake.puts["recipes/uploads/recipe/a.png"])
	assert.Equal(t, "image/png", fake.types["uploads/recipe/a.png"])

	require.NoError(t, s.Delete(ctx, "uploads/recipe/a.png"))
	assert.Equal(t, []string{"recipes/uploads/recipe/a.png"}, fake.deletes)

	assert.Equal(t, "https://cdn.example.com/uploads/recipe/a.png", s.URL("uploads/recipe/a.png"))
	assert.Equal(t, "s3", s.Backend())
}

func TestPublicURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.S3Config
		want string
	}{
		{"explicit", config.S3Config{Bucket: "b", PublicURL: "https://cdn.example.com/"}, "https://cdn.example.com"},
		{"minio endpoint", config.S3Config{Bucket: "b", Endpoint: "http://localhost:9000"}, "http://localhost:9000/b"},
		{"aws", config.S3Config{Bucket: "b", Region: "eu-west-1"}, "https://b.s3.eu-west-1.amazonaws.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, publicURL(tt.cfg))
		})
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	s, err := New(ctx, config.StorageConfig{Backend: "local", MediaRoot: t.TempDir(), MediaURL: "/media/"})
	require.NoError(t, err)
	assert.Equal(t, "local", s.Backend())

	s, err = New(ctx, config.StorageConfig{Backend: "s3", S3: config.S3Config{
		Bucket:    "recipes",
		Region:    "us-east-1",
		Endpoint:  "http://localhost:9000",
		AccessKey: "minio",
		SecretKey: "minio123",
	}})
	require.NoError(t, err)
	assert.Equal(t, "s3", s.Backend())

	_, err = New(ctx, config.StorageConfig{Backend: "ftp"})
	assert.Error(t, err)
}
