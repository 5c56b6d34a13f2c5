package writer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	appconfig "ofiflow/config"
	"ofiflow/logger"
	"ofiflow/models"
	"ofiflow/processor"
)

// ResultWriter persists a pipeline run: one parquet file per instrument
// under output_dir/signals/ and one cross-impact table under
// output_dir/crossimpact/. When S3 storage is enabled every produced file
// is also uploaded under a partitioned key.
type ResultWriter struct {
	config   *appconfig.Config
	s3Client *s3.Client
	log      *logger.Log
}

func NewResultWriter(cfg *appconfig.Config) (*ResultWriter, error) {
	log := logger.GetLogger()

	w := &ResultWriter{
		config: cfg,
		log:    log,
	}

	if cfg.Storage.S3.Enabled {
		client, err := newS3Client(cfg)
		if err != nil {
			return nil, err
		}
		w.s3Client = client
		log.WithComponent("result_writer").WithFields(logger.Fields{
			"bucket":     cfg.Storage.S3.Bucket,
			"region":     cfg.Storage.S3.Region,
			"endpoint":   cfg.Storage.S3.Endpoint,
			"path_style": cfg.Storage.S3.PathStyle,
		}).Info("s3 upload enabled")
	}

	return w, nil
}

func newS3Client(cfg *appconfig.Config) (*s3.Client, error) {
	ctx := context.Background()

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Storage.S3.Region),
	}
	if cfg.Storage.S3.AccessKeyID != "" && cfg.Storage.S3.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.Storage.S3.AccessKeyID,
				cfg.Storage.S3.SecretAccessKey,
				"",
			),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	creds, err := awsCfg.Credentials.Retrieve(ctx)
	if err != nil || !creds.HasKeys() {
		return nil, fmt.Errorf("aws credentials not found")
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.S3.Endpoint)
		}
		o.UsePathStyle = cfg.Storage.S3.PathStyle
	}), nil
}

// WriteAll persists every surviving instrument's signal file and the
// cross-impact table. A failure on one instrument's file does not stop the
// others; the first error is returned after everything was attempted.
func (w *ResultWriter) WriteAll(ctx context.Context, res *processor.Result) error {
	log := w.log.WithComponent("result_writer").WithFields(logger.Fields{"operation": "write_all"})

	var firstErr error
	for _, ir := range res.Instruments {
		if _, err := w.WriteSignals(ctx, ir); err != nil {
			log.WithError(err).WithFields(logger.Fields{"instrument": ir.Instrument}).Error("failed to write signal file")
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if len(res.CrossImpact) > 0 {
		if _, err := w.WriteCrossImpact(ctx, res.CrossImpact); err != nil {
			log.WithError(err).Error("failed to write cross-impact table")
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// WriteSignals writes one instrument's per-step signal rows and returns the
// local file path.
func (w *ResultWriter) WriteSignals(ctx context.Context, ir *processor.InstrumentResult) (string, error) {
	records := SignalRecords(ir)

	rows := make([]interface{}, len(records))
	for i := range records {
		rows[i] = records[i]
	}
	data, err := buildParquet(new(models.SignalRecord), rows, w.config.Writer.Formats.Parquet.Compression)
	if err != nil {
		return "", err
	}

	filename := fmt.Sprintf("%s_signals_%s.parquet", ir.Instrument, uuid.New().String())
	path, err := w.writeLocal(filepath.Join("signals", filename), data)
	if err != nil {
		return "", err
	}

	w.log.WithComponent("result_writer").WithFields(logger.Fields{
		"instrument": ir.Instrument,
		"rows":       len(records),
		"file_size":  len(data),
		"path":       path,
	}).Info("signal file written")

	if w.s3Client != nil {
		key := w.s3Key(ir.Instrument, lastTimestamp(ir.Signal.Timestamps), filename)
		if err := w.uploadToS3(ctx, key, data); err != nil {
			return path, err
		}
	}

	return path, nil
}

// WriteCrossImpact writes the long-form cross-impact table and returns the
// local file path.
func (w *ResultWriter) WriteCrossImpact(ctx context.Context, results map[string]models.CrossImpactResult) (string, error) {
	records := CrossImpactRecords(results)

	rows := make([]interface{}, len(records))
	for i := range records {
		rows[i] = records[i]
	}
	data, err := buildParquet(new(models.CrossImpactRecord), rows, w.config.Writer.Formats.Parquet.Compression)
	if err != nil {
		return "", err
	}

	filename := fmt.Sprintf("crossimpact_%s.parquet", uuid.New().String())
	path, err := w.writeLocal(filepath.Join("crossimpact", filename), data)
	if err != nil {
		return "", err
	}

	w.log.WithComponent("result_writer").WithFields(logger.Fields{
		"rows":      len(records),
		"file_size": len(data),
		"path":      path,
	}).Info("cross-impact table written")

	if w.s3Client != nil {
		key := filepath.ToSlash(filepath.Join(
			"crossimpact",
			fmt.Sprintf("date=%s", time.Now().UTC().Format("2006-01-02")),
			filename,
		))
		if err := w.uploadToS3(ctx, key, data); err != nil {
			return path, err
		}
	}

	return path, nil
}

// SignalRecords converts one instrument result into persisted rows, one per
// time step.
func SignalRecords(ir *processor.InstrumentResult) []models.SignalRecord {
	records := make([]models.SignalRecord, len(ir.Signal.Values))
	for t := range ir.Signal.Values {
		records[t] = models.SignalRecord{
			Instrument:    ir.Instrument,
			Timestamp:     ir.Signal.Timestamps[t],
			BestOFI:       ir.Series.Best[t],
			IntegratedOFI: ir.Signal.Values[t],
		}
	}
	return records
}

// CrossImpactRecords flattens the per-target regressions into long-form
// rows, ordered by target then source for stable output.
func CrossImpactRecords(results map[string]models.CrossImpactResult) []models.CrossImpactRecord {
	targets := make([]string, 0, len(results))
	for target := range results {
		targets = append(targets, target)
	}
	sort.Strings(targets)

	var records []models.CrossImpactRecord
	for _, target := range targets {
		res := results[target]
		for i, source := range res.Sources {
			records = append(records, models.CrossImpactRecord{
				Target:      target,
				Source:      source,
				Coefficient: res.Coefficients[i],
				RSquared:    res.RSquared,
			})
		}
	}
	return records
}

func (w *ResultWriter) writeLocal(rel string, data []byte) (string, error) {
	path := filepath.Join(w.config.Writer.OutputDir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write output file: %w", err)
	}
	logger.IncrementFileWritten(int64(len(data)))
	return path, nil
}

// s3Key builds the partitioned object key for one instrument file. The date
// partition comes from the last covered timestamp, not the wall clock, so
// reprocessing a window lands in the same partition.
func (w *ResultWriter) s3Key(instrument string, lastTs int64, filename string) string {
	date := time.Unix(0, lastTs).UTC().Format("2006-01-02")
	return filepath.ToSlash(filepath.Join(
		"signals",
		fmt.Sprintf("instrument=%s", instrument),
		fmt.Sprintf("date=%s", date),
		filename,
	))
}

func lastTimestamp(timestamps []int64) int64 {
	if len(timestamps) == 0 {
		return 0
	}
	return timestamps[len(timestamps)-1]
}

func (w *ResultWriter) uploadToS3(ctx context.Context, key string, data []byte) error {
	log := w.log.WithComponent("result_writer").WithFields(logger.Fields{
		"operation": "upload_to_s3",
		"s3_key":    key,
		"data_size": len(data),
	})

	input := &s3.PutObjectInput{
		Bucket:      aws.String(w.config.Storage.S3.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]string{
			"content-type":    "parquet",
			"compression":     w.config.Writer.Formats.Parquet.Compression,
			"ofiflow-version": w.config.Ofiflow.Version,
		},
	}

	if _, err := w.s3Client.PutObject(ctx, input); err != nil {
		log.WithError(err).
			WithEnv("S3_BUCKET").
			WithFields(logger.Fields{"bucket": w.config.Storage.S3.Bucket}).
			Error("failed to upload to S3")
		return fmt.Errorf("failed to upload to S3 bucket %s: %w", w.config.Storage.S3.Bucket, err)
	}

	log.Info("successfully uploaded to S3")
	return nil
}
