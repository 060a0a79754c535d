package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	log "github.com/sirupsen/logrus"
)

// Client keeps off-site copies of snapshot documents in an S3 bucket.
type Client struct {
	s3         s3API
	bucketName string
}

type s3API interface {
	PutObjectWithContext(ctx aws.Context, input *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error)
	GetObjectWithContext(ctx aws.Context, input *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error)
}

func NewClient(bucketName string, awsRegion string) (*Client, error) {
	hc := http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          20,
			IdleConnTimeout:       90 * time.Second,
			MaxIdleConnsPerHost:   20,
			TLSHandshakeTimeout:   3 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
	sess, err := session.NewSession(
		&aws.Config{
			Region:     aws.String(awsRegion),
			MaxRetries: aws.Int(1),
			HTTPClient: &hc,
		})
	if err != nil {
		log.WithError(err).Error("Unable to create an S3 client")
		return &Client{}, err
	}

	credValues, err := sess.Config.Credentials.Get()
	if err != nil {
		return &Client{}, fmt.Errorf("failed to obtain AWS credentials for values with error: %w, while creating s3 client", err)
	}
	log.Infof("Obtaining AWS credentials by using [%s] as provider for s3 client", credValues.ProviderName)

	client := s3.New(sess)

	return &Client{
		s3:         client,
		bucketName: bucketName,
	}, err
}

// UploadSnapshot archives one snapshot document under the given key.
func (c *Client) UploadSnapshot(ctx context.Context, key string, doc []byte) error {
	putObjectParams := &s3.PutObjectInput{
		Bucket:      aws.String(c.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(doc),
		ContentType: aws.String("application/yaml"),
	}
	if _, err := c.s3.PutObjectWithContext(ctx, putObjectParams); err != nil {
		log.WithError(err).WithField("key", key).Error("Error archiving snapshot to S3")
		return fmt.Errorf("archiving snapshot %q: %w", key, err)
	}
	return nil
}

// DownloadSnapshot retrieves an archived snapshot document. A missing key
// is not an error; the second return value reports presence.
func (c *Client) DownloadSnapshot(ctx context.Context, key string) ([]byte, bool, error) {
	getObjectParams := &s3.GetObjectInput{
		Bucket: aws.String(c.bucketName),
		Key:    aws.String(key),
	}
	resp, err := c.s3.GetObjectWithContext(ctx, getObjectParams)
	if err != nil {
		e, ok := err.(awserr.Error)
		if ok && e.Code() == "NoSuchKey" {
			return nil, false, nil
		}
		log.WithError(err).WithField("key", key).Error("Error retrieving snapshot from S3")
		return nil, false, fmt.Errorf("retrieving snapshot %q: %w", key, err)
	}
	defer resp.Body.Close()

	doc, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("reading snapshot %q: %w", key, err)
	}
	return doc, true, nil
}
