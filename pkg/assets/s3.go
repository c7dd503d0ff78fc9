package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Nephrolytics-ai/sheetscribe/pkg/awsutil"
	"github.com/Nephrolytics-ai/sheetscribe/pkg/logging"
	"github.com/Nephrolytics-ai/sheetscribe/pkg/model"
	"github.com/Nephrolytics-ai/sheetscribe/pkg/utils"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store resolves an asset id to the object at prefix+id.
type S3Store struct {
	client objectGetter
	bucket string
	prefix string
}

func NewS3Store(client objectGetter, bucket, prefix string) (*S3Store, error) {
	if client == nil {
		return nil, utils.WrapIfNotNil(errors.New("s3 client is required"))
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, utils.WrapIfNotNil(errors.New("asset bucket is required"))
	}
	return &S3Store{client: client, bucket: bucket, prefix: prefix}, nil
}

func (s *S3Store) FetchBytes(ctx context.Context, assetID string) ([]byte, error) {
	if strings.TrimSpace(assetID) == "" {
		return nil, utils.WrapIfNotNil(errors.New("asset id is required"))
	}
	key := s.prefix + assetID
	logging.NewLogger(ctx).Infof("s3_download bucket=%q key=%q", s.bucket, key)

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, utils.WrapIfNotNil(classifyS3Error(err), key)
	}
	defer func() {
		_ = out.Body.Close()
	}()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, utils.WrapIfNotNil(err, key)
	}
	return data, nil
}

func classifyS3Error(err error) error {
	switch {
	case awsutil.IsNotFound(err):
		return fmt.Errorf("%w: %v", model.ErrAssetNotFound, err)
	case awsutil.IsAccessDenied(err):
		return fmt.Errorf("%w: %v", model.ErrAssetAuth, err)
	}
	return err
}

var _ model.AssetStore = (*S3Store)(nil)
