package aws_s3

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"

	"github.com/CaitMS/Web-Exploration-Engine/config"
	"github.com/CaitMS/Web-Exploration-Engine/internal/model"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfg "github.com/aws/aws-sdk-go-v2/config"
	crd "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ReportStorage keeps completed scrape results. WriteReport returns the report link, or an
// empty string when the upload failed.
type ReportStorage interface {
	WriteReport(ctx context.Context, task model.Task, result *model.ScrapeResult) string
}

type S3BucketClient struct {
	client *s3.Client
	cfg    *config.S3Config
	log    *slog.Logger
}

func NewS3BucketClient(cfg *config.S3Config, log *slog.Logger) *S3BucketClient {
	log.Info("connecting to s3...")
	ctx := context.Background()

	s3Config, err := awsCfg.LoadDefaultConfig(ctx,
		awsCfg.WithCredentialsProvider(crd.NewStaticCredentialsProvider(cfg.AwsAccessKey, cfg.AwsSecretKey, "")),
		awsCfg.WithRegion(cfg.Region),
		awsCfg.WithBaseEndpoint(cfg.AwsBaseEndpoint))
	if err != nil {
		log.Error("failed to load s3 config.", slog.String("err", err.Error()))
		os.Exit(1)
	}

	// LocalStack does not support `virtual host addressing style` that uses s3 by default.
	// For test purposes use configuration with disabled 'virtual hosted bucket addressing'.
	var s3client *s3.Client
	if cfg.AwsAccessKey == "test" {
		log.Warn("test configuration for s3")
		s3client = s3.NewFromConfig(s3Config, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	} else {
		s3client = s3.NewFromConfig(s3Config)
	}
	log.Info("connected to s3")

	return &S3BucketClient{
		client: s3client,
		cfg:    cfg,
		log:    log,
	}
}

func (bc *S3BucketClient) WriteReport(ctx context.Context, task model.Task, result *model.ScrapeResult) string {
	s3Key := ReportKey(bc.cfg.KeyPrefix, task)
	body, err := model.Marshal(result)
	if err != nil {
		bc.log.Error("marshaling failed.", slog.String("err", err.Error()))
		return ""
	}

	_, err = bc.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &bc.cfg.BucketName,
		Key:         &s3Key,
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		bc.log.Error("failed to save report to s3.", slog.String("err", err.Error()))
		return ""
	}
	bc.log.Debug("report saved to s3.", slog.String("key", s3Key))

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bc.cfg.BucketName, bc.cfg.Region, s3Key)
}

// ReportKey is <prefix>/<sha256 of url>/<task type>.json.
func ReportKey(prefix string, task model.Task) string {
	hash := sha256.New()
	hash.Write([]byte(task.URL))
	hashUrl := hex.EncodeToString(hash.Sum(nil))

	return fmt.Sprintf("%s/%s/%s.json", prefix, hashUrl, task.Type)
}
