package objectclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/dsa-galaxy/internal/config"
)

func TestNewS3Client_RequiresSettings(t *testing.T) {
	_, err := NewS3Client(context.Background(), &config.Config{AwsRegion: "us-east-2", BucketName: "b"})
	assert.EqualError(t, err, "AWS credentials not set")

	_, err = NewS3Client(context.Background(), &config.Config{AwsAccessKey: "a", AwsSecretKey: "s", AwsRegion: "us-east-2"})
	assert.EqualError(t, err, "S3 bucket name not set")
}

func TestS3Client_ObjectURL(t *testing.T) {
	c, err := NewS3Client(context.Background(), &config.Config{
		AwsAccessKey: "a", AwsSecretKey: "s", AwsRegion: "us-east-2", BucketName: "galaxy-transcripts",
	})
	require.NoError(t, err)
	assert.Equal(t,
		"https://galaxy-transcripts.s3.us-east-2.amazonaws.com/transcripts/u/s.md",
		c.ObjectURL("transcripts/u/s.md"))
}
