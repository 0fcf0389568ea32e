package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Fetcher opens the raw export of a source.
type Fetcher interface {
	Open(ctx context.Context, src Source) (io.ReadCloser, error)
}

// ObjectGetter is the subset of the S3 client used to read exports.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Fetcher reads exports dropped into the report bucket.
type S3Fetcher struct {
	Client ObjectGetter
	Bucket string
}

// Open implements Fetcher.
func (f S3Fetcher) Open(ctx context.Context, src Source) (io.ReadCloser, error) {
	out, err := f.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.Bucket),
		Key:    aws.String(src.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("ingest: get s3://%s/%s: %w", f.Bucket, src.Key, err)
	}
	return out.Body, nil
}

// HTTPFetcher downloads published spreadsheets.
type HTTPFetcher struct {
	Client *http.Client
}

// Open implements Fetcher.
func (f HTTPFetcher) Open(ctx context.Context, src Source) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.Key, nil)
	if err != nil {
		return nil, fmt.Errorf("ingest: %s: %w", src.Table, err)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ingest: download %s: %w", src.Table, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("ingest: download %s: status %d", src.Table, resp.StatusCode)
	}
	return resp.Body, nil
}

// Fetchers dispatches on the source origin.
type Fetchers map[string]Fetcher

// Open implements Fetcher.
func (f Fetchers) Open(ctx context.Context, src Source) (io.ReadCloser, error) {
	fetcher, ok := f[src.Origin]
	if !ok {
		return nil, fmt.Errorf("ingest: %s: no fetcher for origin %q", src.Table, src.Origin)
	}
	return fetcher.Open(ctx, src)
}
