package awsutil

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/suite"
)

type AWSUtilSuite struct {
	suite.Suite
}

func TestAWSUtilSuite(t *testing.T) {
	suite.Run(t, new(AWSUtilSuite))
}

func (s *AWSUtilSuite) TestLoadConfigRequiresBothStaticKeys() {
	_, err := LoadConfig(context.Background(), Options{AccessKeyID: "AKIA"})

	s.Require().Error(err)
	s.Contains(err.Error(), "both AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY")
}

func (s *AWSUtilSuite) TestLoadConfigUsesStaticCredentials() {
	cfg, err := LoadConfig(context.Background(), Options{
		Region:          "eu-west-1",
		AccessKeyID:     "AKIA",
		SecretAccessKey: "secret",
	})
	s.Require().NoError(err)
	s.Equal("eu-west-1", cfg.Region)

	creds, err := cfg.Credentials.Retrieve(context.Background())
	s.Require().NoError(err)
	s.Equal("AKIA", creds.AccessKeyID)
	s.Equal("secret", creds.SecretAccessKey)
}

func (s *AWSUtilSuite) TestLoadConfigDefaultsRegion() {
	cfg, err := LoadConfig(context.Background(), Options{AccessKeyID: "AKIA", SecretAccessKey: "secret"})
	s.Require().NoError(err)
	s.Equal(defaultRegion, cfg.Region)
}

func (s *AWSUtilSuite) TestNewS3ClientUsesPathStyleForCustomEndpoint() {
	client, err := NewS3Client(context.Background(), Options{
		AccessKeyID:     "AKIA",
		SecretAccessKey: "secret",
		Endpoint:        "http://localhost:9000",
	})
	s.Require().NoError(err)

	opts := client.Options()
	s.Require().NotNil(opts.BaseEndpoint)
	s.Equal("http://localhost:9000", *opts.BaseEndpoint)
	s.True(opts.UsePathStyle)
}

func (s *AWSUtilSuite) TestErrorClassification() {
	s.True(IsNotFound(&types.NoSuchKey{}))
	s.True(IsNotFound(fmt.Errorf("wrapped: %w", &smithy.GenericAPIError{Code: "NoSuchBucket"})))
	s.False(IsNotFound(errors.New("connection reset")))

	s.True(IsAccessDenied(&smithy.GenericAPIError{Code: "AccessDenied"}))
	s.False(IsAccessDenied(&types.NoSuchKey{}))
}
