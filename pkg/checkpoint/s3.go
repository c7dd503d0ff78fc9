package checkpoint

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/Nephrolytics-ai/sheetscribe/pkg/awsutil"
	"github.com/Nephrolytics-ai/sheetscribe/pkg/model"
	"github.com/Nephrolytics-ai/sheetscribe/pkg/utils"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type objectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store keeps the checkpoint in an S3 object, for hosts whose local disk
// does not survive between runs.
type S3Store struct {
	client objectAPI
	bucket string
	key    string
}

func NewS3Store(client objectAPI, bucket, key string) (*S3Store, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, utils.WrapIfNotNil(errors.New("checkpoint bucket is required"))
	}
	if strings.TrimSpace(key) == "" {
		return nil, utils.WrapIfNotNil(errors.New("checkpoint key is required"))
	}
	return &S3Store{client: client, bucket: bucket, key: key}, nil
}

func (s *S3Store) Load(ctx context.Context) (int, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		if awsutil.IsNotFound(err) {
			return model.DefaultCheckpoint, nil
		}
		return 0, utils.WrapIfNotNil(err, "s3://"+s.bucket+"/"+s.key)
	}
	defer func() {
		_ = out.Body.Close()
	}()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return 0, utils.WrapIfNotNil(err)
	}
	row, err := decode(data)
	if err != nil {
		return 0, utils.WrapIfNotNil(err, "s3://"+s.bucket+"/"+s.key)
	}
	return row, nil
}

func (s *S3Store) Save(ctx context.Context, row int) error {
	data, err := encode(row)
	if err != nil {
		return utils.WrapIfNotNil(err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	return utils.WrapIfNotNil(err, "s3://"+s.bucket+"/"+s.key)
}

var _ model.CheckpointStore = (*S3Store)(nil)
