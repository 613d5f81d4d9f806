package quota

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/fluentup-app/fluentup/internal/identity"
)

// s3Repository is the durable backend: one JSON object per user under
// <prefix>/<safeId>.json.
type s3Repository struct {
	client s3iface.S3API
	bucket string
	prefix string
}

// NewS3Repository returns a repository backed by the given bucket. The
// client is an interface so tests can substitute an in-memory fake.
func NewS3Repository(client s3iface.S3API, bucket, prefix string) Repository {
	return &s3Repository{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

func (r *s3Repository) key(safeID string) string {
	return r.prefix + "/" + safeID + ".json"
}

func (r *s3Repository) Load(ctx context.Context, userID string) (*Record, error) {
	safeID := identity.Sanitize(userID)

	out, err := r.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key(safeID)),
	})
	if err != nil {
		if isNotFound(err) {
			// First access: seed a zeroed record so later reads and the
			// admin listing see it.
			return r.Save(ctx, NewRecord(userID, safeID))
		}
		return nil, err
	}
	defer out.Body.Close()

	rec, err := decodeRecord(out.Body)
	if err != nil {
		return nil, fmt.Errorf("decoding record %s: %w", safeID, err)
	}
	if rec.ID == "" {
		rec.ID = userID
	}
	rec.SafeID = safeID
	return rec.Normalize(), nil
}

func (r *s3Repository) Save(ctx context.Context, rec *Record) (*Record, error) {
	cp := rec.Clone().Normalize()
	if cp.SafeID == "" {
		cp.SafeID = identity.Sanitize(cp.ID)
	}

	body, err := json.Marshal(cp)
	if err != nil {
		return nil, fmt.Errorf("encoding record %s: %w", cp.SafeID, err)
	}

	_, err = r.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(r.key(cp.SafeID)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, err
	}
	return cp, nil
}

func (r *s3Repository) Delete(ctx context.Context, userID string) error {
	safeID := identity.Sanitize(userID)
	// S3 DeleteObject succeeds for missing keys, which keeps delete
	// idempotent for free.
	_, err := r.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key(safeID)),
	})
	return err
}

func (r *s3Repository) ListAll(ctx context.Context) ([]*Record, error) {
	var keys []string
	err := r.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(r.bucket),
		Prefix: aws.String(r.prefix + "/"),
	}, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range page.Contents {
			keys = append(keys, aws.StringValue(obj.Key))
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	records := make([]*Record, 0, len(keys))
	for _, key := range keys {
		out, err := r.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
			Bucket: aws.String(r.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			if isNotFound(err) {
				// Deleted between list and get; skip.
				continue
			}
			return nil, err
		}
		rec, err := decodeRecord(out.Body)
		out.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decoding record at %s: %w", key, err)
		}
		records = append(records, rec.Normalize())
	}
	return records, nil
}

func decodeRecord(body io.Reader) (*Record, error) {
	var rec Record
	if err := json.NewDecoder(body).Decode(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func isNotFound(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		return aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound"
	}
	return false
}

// isAccessDenied classifies S3 errors that mean the process will never be
// able to use the bucket (bad credentials, revoked policy). These trigger
// the one-way failover to the in-memory backend; everything else is a
// transient storage error and propagates.
func isAccessDenied(err error) bool {
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) && reqErr.StatusCode() == 403 {
		return true
	}
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case "AccessDenied", "AllAccessDisabled", "InvalidAccessKeyId", "SignatureDoesNotMatch", "AccountProblem":
			return true
		}
	}
	return false
}
