// Package export writes pending_review reports to object storage for audit
// and model training. It only reads reports; nothing is mutated or deleted.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"cropradar/internal/outbreak"
	"cropradar/internal/types"
)

// ObjectPutter abstracts the S3 PutObject operation for testability.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Recorder receives the number of reports exported per crop.
type Recorder interface {
	RecordReviewExport(ctx context.Context, crop types.Crop, count int)
}

// Object describes one uploaded export file.
type Object struct {
	Crop    types.Crop `json:"crop"`
	Key     string     `json:"key"`
	Reports int        `json:"reports"`
	Bytes   int        `json:"bytes"`
}

// Result summarizes one export run.
type Result struct {
	Date    string   `json:"date"`
	Objects []Object `json:"objects"`
}

// Reports returns the number of reports exported across all crops.
func (r *Result) Reports() int {
	n := 0
	for _, o := range r.Objects {
		n += o.Reports
	}
	return n
}

// ReviewExporter uploads one zstd-compressed NDJSON file per crop and UTC day:
//
//	s3://{bucket}/review/{crop}/{YYYY-MM-DD}/{uuid}.ndjson.zst
type ReviewExporter struct {
	reader   outbreak.ReviewReader
	client   ObjectPutter
	bucket   string
	recorder Recorder
	newID    func() string
	logger   *slog.Logger
}

// NewReviewExporter creates an exporter. recorder may be nil.
func NewReviewExporter(reader outbreak.ReviewReader, client ObjectPutter, bucket string, recorder Recorder, logger *slog.Logger) *ReviewExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReviewExporter{
		reader:   reader,
		client:   client,
		bucket:   bucket,
		recorder: recorder,
		newID:    uuid.NewString,
		logger:   logger,
	}
}

// ExportDay exports the pending_review reports created on the UTC day
// containing day. Crops without reports produce no object. A missing bucket
// makes the export a logged no-op.
func (e *ReviewExporter) ExportDay(ctx context.Context, day time.Time) (*Result, error) {
	from := day.UTC().Truncate(24 * time.Hour)
	to := from.Add(24 * time.Hour)
	result := &Result{Date: from.Format(time.DateOnly), Objects: []Object{}}

	if e.bucket == "" {
		e.logger.WarnContext(ctx, "review export bucket not configured, skipping", "date", result.Date)
		return result, nil
	}

	reports, err := e.reader.ListReportsByStatus(ctx, types.StatusPendingReview, from, to)
	if err != nil {
		return nil, fmt.Errorf("listing pending_review reports for %s: %w", result.Date, err)
	}

	byCrop := make(map[types.Crop][]types.OutbreakReport, len(types.AllCrops))
	for _, rep := range reports {
		byCrop[rep.Crop] = append(byCrop[rep.Crop], rep)
	}

	for _, crop := range types.AllCrops {
		batch := byCrop[crop]
		if len(batch) == 0 {
			continue
		}

		body, err := encodeNDJSON(batch)
		if err != nil {
			return result, fmt.Errorf("encoding %s review export: %w", crop, err)
		}

		key := fmt.Sprintf("review/%s/%s/%s.ndjson.zst", crop, result.Date, e.newID())
		_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:          aws.String(e.bucket),
			Key:             aws.String(key),
			Body:            bytes.NewReader(body),
			ContentType:     aws.String("application/x-ndjson"),
			ContentEncoding: aws.String("zstd"),
			Metadata: map[string]string{
				"crop":    string(crop),
				"reports": fmt.Sprint(len(batch)),
			},
		})
		if err != nil {
			return result, types.NewAppError(types.ErrCodeUpstreamStorage, "failed to upload review export "+key, err)
		}

		result.Objects = append(result.Objects, Object{Crop: crop, Key: key, Reports: len(batch), Bytes: len(body)})
		if e.recorder != nil {
			e.recorder.RecordReviewExport(ctx, crop, len(batch))
		}
		e.logger.InfoContext(ctx, "review export uploaded",
			"crop", string(crop),
			"date", result.Date,
			"reports", len(batch),
			"s3_key", key,
		)
	}

	return result, nil
}

func encodeNDJSON(reports []types.OutbreakReport) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	enc := json.NewEncoder(zw)
	for i := range reports {
		if err := enc.Encode(&reports[i]); err != nil {
			zw.Close()
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
