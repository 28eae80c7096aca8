package sink

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"fintrac/internal/model"
	"fintrac/logger"
)

// S3Config carries the explicit parameters for the parquet exporter.
type S3Config struct {
	Bucket          string
	Region          string
	Prefix          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// ParquetRecord is the long-format row layout of an exported snapshot: one
// row per (timestamp, series) cell. Value is optional so explicit nulls in
// the aligned table survive the export.
type ParquetRecord struct {
	Snapshot  string   `parquet:"name=snapshot, type=BYTE_ARRAY, convertedtype=UTF8"`
	Timestamp int64    `parquet:"name=timestamp, type=INT64"`
	Series    string   `parquet:"name=series, type=BYTE_ARRAY, convertedtype=UTF8"`
	Value     *float64 `parquet:"name=value, type=DOUBLE, repetitiontype=OPTIONAL"`
}

// memoryFileWriter implements the ParquetFile interface over a byte buffer
// so the file can be built without touching disk.
type memoryFileWriter struct {
	buffer *bytes.Buffer
}

func newMemoryFileWriter() *memoryFileWriter {
	return &memoryFileWriter{buffer: &bytes.Buffer{}}
}

func (mfw *memoryFileWriter) Create(name string) (source.ParquetFile, error) { return mfw, nil }
func (mfw *memoryFileWriter) Open(name string) (source.ParquetFile, error)   { return mfw, nil }

func (mfw *memoryFileWriter) Seek(offset int64, whence int) (int64, error) {
	return int64(mfw.buffer.Len()), nil
}

func (mfw *memoryFileWriter) Read(b []byte) (int, error)  { return mfw.buffer.Read(b) }
func (mfw *memoryFileWriter) Write(b []byte) (int, error) { return mfw.buffer.Write(b) }
func (mfw *memoryFileWriter) Close() error                { return nil }

// S3Exporter writes each snapshot as a single parquet object under a fixed
// key per snapshot name. S3 object replacement is atomic, which gives the
// exporter the same all-or-nothing contract as the SQLite sink.
type S3Exporter struct {
	client *s3.Client
	bucket string
	prefix string
	log    *logger.Log
}

// NewS3Exporter configures the AWS SDK and validates credentials.
func NewS3Exporter(ctx context.Context, cfg S3Config) (*S3Exporter, error) {
	log := logger.GetLogger()

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
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

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	log.WithComponent("s3_exporter").WithFields(logger.Fields{
		"bucket": cfg.Bucket,
		"region": cfg.Region,
		"prefix": cfg.Prefix,
	}).Info("s3 exporter initialized")

	return &S3Exporter{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, log: log}, nil
}

// ReplaceSnapshot encodes the table as parquet and uploads it, overwriting
// the previous object for the same snapshot name.
func (e *S3Exporter) ReplaceSnapshot(ctx context.Context, name string, table model.AlignedTable) error {
	log := e.log.WithComponent("s3_exporter").WithFields(logger.Fields{
		"snapshot": name,
		"rows":     table.Rows(),
		"columns":  len(table.Columns),
	})

	data, err := encodeSnapshotParquet(name, table)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	key := fmt.Sprintf("%s/%s.parquet", e.prefix, name)
	if e.prefix == "" {
		key = fmt.Sprintf("%s.parquet", name)
	}

	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]string{
			"run-id":      uuid.New().String(),
			"exported-at": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return fmt.Errorf("%w: put object: %v", ErrWriteFailed, err)
	}

	logger.IncrementSnapshotWritten()
	logger.AddRowsWritten(table.Rows())
	log.WithFields(logger.Fields{"s3_key": key, "file_size": len(data)}).Info("snapshot exported")

	return nil
}

// encodeSnapshotParquet renders the table as a long-format parquet file: one
// record per (timestamp, series) cell.
func encodeSnapshotParquet(name string, table model.AlignedTable) ([]byte, error) {
	fw := newMemoryFileWriter()

	pw, err := writer.NewParquetWriter(fw, new(ParquetRecord), 4)
	if err != nil {
		return nil, fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i, ts := range table.Timestamps {
		for j, col := range table.Columns {
			record := ParquetRecord{
				Snapshot:  name,
				Timestamp: ts.UnixMilli(),
				Series:    col.Name,
				Value:     table.Values[i][j],
			}
			if err := pw.Write(record); err != nil {
				pw.WriteStop()
				return nil, fmt.Errorf("write parquet record: %w", err)
			}
		}
	}

	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("finalize parquet file: %w", err)
	}

	return fw.buffer.Bytes(), nil
}
