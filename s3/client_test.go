package s3

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
)

const testDoc = "capturedAt: 2026-08-31T10:00:00Z\nrecords: []\n"

func TestClient_UploadSnapshot(t *testing.T) {
	testBucket := "testBucket"
	testKey := "snapshot.yaml"

	mock := &mockS3API{
		t:          t,
		testBucket: testBucket,
		testKey:    testKey,
	}
	client := &Client{
		s3:         mock,
		bucketName: testBucket,
	}

	err := client.UploadSnapshot(context.Background(), testKey, []byte(testDoc))
	if err != nil {
		t.Fatal(err)
	}
	if mock.uploaded != testDoc {
		t.Errorf("expect uploaded body %q, got %q", testDoc, mock.uploaded)
	}
}

func TestClient_DownloadSnapshot(t *testing.T) {
	testBucket := "testBucket"
	testKey := "snapshot.yaml"

	client := &Client{
		s3: &mockS3API{
			t:          t,
			testBucket: testBucket,
			testKey:    testKey,
		},
		bucketName: testBucket,
	}

	doc, found, err := client.DownloadSnapshot(context.Background(), testKey)
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Error("expected the archive to have the snapshot")
	}
	if string(doc) != testDoc {
		t.Errorf("expect doc %q, got %q", testDoc, string(doc))
	}
}

func TestClient_DownloadSnapshotMissingKey(t *testing.T) {
	client := &Client{
		s3: &mockS3API{
			t:          t,
			testBucket: "testBucket",
			testKey:    "snapshot.yaml",
			missing:    true,
		},
		bucketName: "testBucket",
	}

	_, found, err := client.DownloadSnapshot(context.Background(), "snapshot.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("a missing key must not be reported as found")
	}
}

type mockS3API struct {
	t          *testing.T
	testBucket string
	testKey    string
	missing    bool
	uploaded   string
}

func (m *mockS3API) PutObjectWithContext(ctx aws.Context, input *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error) {
	m.t.Helper()
	if input.Bucket == nil {
		m.t.Fatal("expect bucket to not be nil")
	}
	if e, a := m.testBucket, *input.Bucket; e != a {
		m.t.Errorf("expect bucket %v, got %v", e, a)
	}
	if input.Key == nil {
		m.t.Fatal("expect key to not be nil")
	}
	if e, a := m.testKey, *input.Key; e != a {
		m.t.Errorf("expect key %v, got %v", e, a)
	}

	body, err := io.ReadAll(input.Body)
	if err != nil {
		m.t.Fatal(err)
	}
	m.uploaded = string(body)
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3API) GetObjectWithContext(ctx aws.Context, input *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error) {
	m.t.Helper()
	if e, a := m.testBucket, *input.Bucket; e != a {
		m.t.Errorf("expect bucket %v, got %v", e, a)
	}
	if e, a := m.testKey, *input.Key; e != a {
		m.t.Errorf("expect key %v, got %v", e, a)
	}
	if m.missing {
		return nil, awserr.New("NoSuchKey", "The specified key does not exist.", nil)
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(strings.NewReader(testDoc)),
	}, nil
}
