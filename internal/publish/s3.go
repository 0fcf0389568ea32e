package publish

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/shopspring/decimal"
)

// ObjectPutter is the subset of the S3 client used for exports.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3CSV writes each dataset as {prefix}/{dataset}.csv.
type S3CSV struct {
	client ObjectPutter
	bucket string
	prefix string
}

// NewS3CSV builds the export sink.
func NewS3CSV(client ObjectPutter, bucket, prefix string) *S3CSV {
	return &S3CSV{client: client, bucket: bucket, prefix: prefix}
}

// Name implements Sink.
func (s *S3CSV) Name() string { return "s3" }

// Key returns the object key for dataset.
func (s *S3CSV) Key(dataset string) string {
	return path.Join(s.prefix, dataset+".csv")
}

// Replace implements Sink by overwriting the object.
func (s *S3CSV) Replace(ctx context.Context, dataset string, rows []Row) error {
	if dataset == "" {
		return ErrDataset
	}
	body, err := EncodeCSV(rows)
	if err != nil {
		return fmt.Errorf("publish: encode %s: %w", dataset, err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.Key(dataset)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return fmt.Errorf("publish: put s3://%s/%s: %w", s.bucket, s.Key(dataset), err)
	}
	return nil
}

// EncodeCSV renders rows with a header of the sorted column union.
func EncodeCSV(rows []Row) ([]byte, error) {
	cols := Columns(rows)
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(cols); err != nil {
		return nil, err
	}
	record := make([]string, len(cols))
	for _, r := range rows {
		for i, c := range cols {
			record[i] = formatCell(r[c])
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func formatCell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case decimal.Decimal:
		return t.String()
	case *decimal.Decimal:
		if t == nil {
			return ""
		}
		return t.String()
	case *string:
		if t == nil {
			return ""
		}
		return *t
	case time.Time:
		return FormatDate(t)
	default:
		return fmt.Sprint(t)
	}
}
