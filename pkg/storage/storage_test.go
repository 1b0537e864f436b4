package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/shipcost/shipcost/pkg/dataset"
)

func writeLocal(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "shipping_price_model.pkl")
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestFilesystemStoreUploadExistsDownload(t *testing.T) {
	ctx := context.Background()
	store, err := NewFilesystemStore(filepath.Join(t.TempDir(), "buckets"))
	require.NoError(t, err)

	ok, err := store.Exists(ctx, "models", "shipping")
	require.NoError(t, err)
	assert.False(t, ok, "missing bucket has no keys")

	local := writeLocal(t, "model-bytes")
	require.NoError(t, store.Upload(ctx, local, "prod/shipping_price_model.pkl", "models", false))
	_, err = os.Stat(local)
	assert.NoError(t, err, "local file kept when removeLocal is false")

	ok, err = store.Exists(ctx, "models", "prod/shipping")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.Exists(ctx, "models", "staging/")
	require.NoError(t, err)
	assert.False(t, ok)

	data, err := store.Download(ctx, "models", "prod/shipping_price_model.pkl")
	require.NoError(t, err)
	assert.Equal(t, "model-bytes", string(data))

	_, err = store.Download(ctx, "models", "nope.pkl")
	assert.True(t, errors.Is(err, ErrObjectNotFound))

	assert.NoError(t, store.HealthCheck())
}

func TestFilesystemStoreRemoveLocalAndEscape(t *testing.T) {
	ctx := context.Background()
	store, err := NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	local := writeLocal(t, "x")
	require.NoError(t, store.Upload(ctx, local, "m.pkl", "b", true))
	_, err = os.Stat(local)
	assert.True(t, errors.Is(err, os.ErrNotExist), "local file removed after upload")

	err = store.Upload(ctx, writeLocal(t, "y"), "../../etc/passwd", "b", false)
	assert.Error(t, err)

	err = store.Upload(ctx, filepath.Join(t.TempDir(), "missing.pkl"), "m.pkl", "b", false)
	assert.Error(t, err)
}

func TestMemoryDocumentStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDocumentStore()

	_, err := store.FetchTable(ctx, "shipmentdata", "ship")
	assert.True(t, errors.Is(err, ErrEmptyCollection))

	first := dataset.MustTable([]string{"Height", "Cost"}, [][]string{{"1", "10"}})
	second := dataset.MustTable([]string{"Cost", "Height"}, [][]string{{"20", "2"}})
	require.NoError(t, store.InsertTable(ctx, first, "shipmentdata", "ship"))
	require.NoError(t, store.InsertTable(ctx, second, "shipmentdata", "ship"))

	got, err := store.FetchTable(ctx, "shipmentdata", "ship")
	require.NoError(t, err)
	assert.Equal(t, []string{"Height", "Cost"}, got.Columns)
	assert.Equal(t, [][]string{{"1", "10"}, {"2", "20"}}, got.Rows)

	got.Rows[0][0] = "changed"
	again, _ := store.FetchTable(ctx, "shipmentdata", "ship")
	assert.Equal(t, "1", again.Rows[0][0], "fetch returns a copy")

	bad := dataset.MustTable([]string{"Other"}, [][]string{{"x"}})
	assert.Error(t, store.InsertTable(ctx, bad, "shipmentdata", "ship"))
}

func TestDocsToTable(t *testing.T) {
	oid := primitive.NewObjectID()
	docs := []bson.D{
		{{Key: "_id", Value: oid}, {Key: "Height", Value: 12.5}, {Key: "Material", Value: "Brass"}, {Key: "International", Value: true}},
		{{Key: "Material", Value: "Clay"}, {Key: "Height", Value: int32(7)}, {Key: "Cost", Value: nil}},
	}

	tbl, err := docsToTable(docs)
	require.NoError(t, err)
	assert.Equal(t, []string{"Height", "Material", "International", "Cost"}, tbl.Columns)
	assert.Equal(t, []string{"12.5", "Brass", "True", ""}, tbl.Rows[0])
	assert.Equal(t, []string{"7", "Clay", "", ""}, tbl.Rows[1])
}

func TestTableToDocs(t *testing.T) {
	tbl := dataset.MustTable(
		[]string{"Customer Id", "Height", "Material", "Weight"},
		[][]string{
			{"00123", "12.5", "Brass", ""},
			{"Inf", "Inf", "1e3", "7"},
		})
	numeric := map[string]bool{"Height": true, "Weight": true}
	docs := tableToDocs(tbl, numeric)
	require.Len(t, docs, 2)

	d := docs[0].(bson.D)
	assert.Equal(t, bson.E{Key: "Customer Id", Value: "00123"}, d[0], "identifiers keep leading zeros")
	assert.Equal(t, bson.E{Key: "Height", Value: 12.5}, d[1])
	assert.Equal(t, bson.E{Key: "Material", Value: "Brass"}, d[2])
	assert.Equal(t, bson.E{Key: "Weight", Value: nil}, d[3])

	d = docs[1].(bson.D)
	assert.Equal(t, "Inf", d[0].Value)
	assert.Equal(t, "Inf", d[1].Value, "infinities stay strings")
	assert.Equal(t, "1e3", d[2].Value)
	assert.Equal(t, 7.0, d[3].Value)

	for _, e := range tableToDocs(tbl, nil)[0].(bson.D) {
		if e.Value != nil {
			assert.IsType(t, "", e.Value)
		}
	}
}

type fakeS3 struct {
	objects map[string][]byte
	putErr  error
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out := &s3.ListObjectsV2Output{}
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Prefix)) {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
			break
		}
	}
	return out, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestS3Store(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string][]byte{}}
	store := &S3Store{client: fake}

	ok, err := store.Exists(ctx, "bucket", "shipping")
	require.NoError(t, err)
	assert.False(t, ok)

	local := writeLocal(t, "weights")
	require.NoError(t, store.Upload(ctx, local, "shipping_price_model.pkl", "bucket", true))
	_, err = os.Stat(local)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	ok, err = store.Exists(ctx, "bucket", "shipping")
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := store.Download(ctx, "bucket", "shipping_price_model.pkl")
	require.NoError(t, err)
	assert.Equal(t, "weights", string(data))

	_, err = store.Download(ctx, "bucket", "other.pkl")
	assert.True(t, errors.Is(err, ErrObjectNotFound))
}

func TestS3StoreUploadFailureKeepsLocal(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}, putErr: errors.New("access denied")}
	store := &S3Store{client: fake}

	local := writeLocal(t, "weights")
	err := store.Upload(context.Background(), local, "k", "b", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
	_, statErr := os.Stat(local)
	assert.NoError(t, statErr)
}
