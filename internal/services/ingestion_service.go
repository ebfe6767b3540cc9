package services

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"outbreak-platform/internal/models"
	"outbreak-platform/internal/repository"
	"outbreak-platform/pkg/logging"
	"outbreak-platform/pkg/metrics"
)

// IngestionService loads canonical surveillance exports into the store.
// It consumes already-canonical JSONL files only; fetching and reshaping
// agency feeds happens upstream.
type IngestionService struct {
	repo    repository.SurveillanceRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// IngestionResult contains ingestion statistics
type IngestionResult struct {
	TotalFiles        int
	TotalRecords      int
	SuccessfulRecords int
	FailedRecords     int
	SamplesIngested   int
	FlowsIngested     int
	Duration          time.Duration
	Errors            []string
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(repo repository.SurveillanceRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *IngestionService {
	return &IngestionService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// IngestDirectory ingests every canonical export file from a directory.
// Files named samples*.jsonl hold one RawSampleRecord per line, files
// named flows*.jsonl one RawFlowRecord per line; anything else is skipped.
func (s *IngestionService) IngestDirectory(ctx context.Context, dataDir string, batchSize int) (*IngestionResult, error) {
	startTime := time.Now()

	s.logger.Info(ctx, "[INGEST_START] Starting data ingestion", logging.Fields{
		"data_dir":   dataDir,
		"batch_size": batchSize,
		"stage":      "INITIALIZATION",
	})

	result := &IngestionResult{
		Errors: make([]string, 0),
	}

	files, err := filepath.Glob(filepath.Join(dataDir, "*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no data files found in %s", dataDir)
	}

	result.TotalFiles = len(files)

	s.logger.Info(ctx, "[INGEST_FILES] Found data files", logging.Fields{
		"file_count": len(files),
		"stage":      "FILE_DISCOVERY",
	})

	for _, filePath := range files {
		fileResult, err := s.ingestFile(ctx, filePath, batchSize)
		if err != nil {
			errMsg := fmt.Sprintf("failed to ingest %s: %v", filePath, err)
			result.Errors = append(result.Errors, errMsg)
			s.logger.Error(ctx, "[INGEST_FILE_ERROR] File ingestion failed", logging.Fields{
				"file_path": filePath,
				"stage":     "FILE_PROCESSING",
			}, err)
			s.metrics.RecordIngestionError("file_error")
			continue
		}

		result.TotalRecords += fileResult.TotalRecords
		result.SuccessfulRecords += fileResult.SuccessfulRecords
		result.FailedRecords += fileResult.FailedRecords
		result.SamplesIngested += fileResult.SamplesIngested
		result.FlowsIngested += fileResult.FlowsIngested

		s.logger.Info(ctx, "[INGEST_FILE_SUCCESS] File ingested successfully", logging.Fields{
			"file_path":          filePath,
			"total_records":      fileResult.TotalRecords,
			"successful_records": fileResult.SuccessfulRecords,
			"failed_records":     fileResult.FailedRecords,
			"stage":              "FILE_COMPLETE",
		})
	}

	result.Duration = time.Since(startTime)
	s.metrics.IngestionDuration.Observe(result.Duration.Seconds())

	s.logger.Info(ctx, "[INGEST_COMPLETE] Data ingestion completed", logging.Fields{
		"total_files":        result.TotalFiles,
		"total_records":      result.TotalRecords,
		"successful_records": result.SuccessfulRecords,
		"failed_records":     result.FailedRecords,
		"samples_ingested":   result.SamplesIngested,
		"flows_ingested":     result.FlowsIngested,
		"duration_seconds":   result.Duration.Seconds(),
		"error_count":        len(result.Errors),
		"stage":              "COMPLETE",
	})

	return result, nil
}

// FileIngestionResult contains per-file ingestion statistics
type FileIngestionResult struct {
	TotalRecords      int
	SuccessfulRecords int
	FailedRecords     int
	SamplesIngested   int
	FlowsIngested     int
}

// ingestFile dispatches one export file by its name prefix.
func (s *IngestionService) ingestFile(ctx context.Context, filePath string, batchSize int) (*FileIngestionResult, error) {
	fileName := filepath.Base(filePath)

	switch {
	case strings.HasPrefix(fileName, "samples"):
		return s.ingestSampleFile(ctx, filePath, batchSize)
	case strings.HasPrefix(fileName, "flows"):
		return s.ingestFlowFile(ctx, filePath, batchSize)
	default:
		s.logger.Warn(ctx, "[INGEST_FILE_SKIPPED] Unrecognized file name, skipping", logging.Fields{
			"file_path": filePath,
		})
		return &FileIngestionResult{}, nil
	}
}

// ingestSampleFile ingests one surveillance sample export file.
// Records arriving without an event ID get one assigned here so the
// upsert key is stable before the row reaches the store.
func (s *IngestionService) ingestSampleFile(ctx context.Context, filePath string, batchSize int) (*FileIngestionResult, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	result := &FileIngestionResult{}
	batch := make([]*models.SurveillanceSample, 0, batchSize)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		result.TotalRecords++

		var record models.RawSampleRecord
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			result.FailedRecords++
			s.metrics.RecordIngestionError("parse_error")
			continue
		}

		sample, err := record.ToSample()
		if err != nil {
			result.FailedRecords++
			s.metrics.RecordIngestionError("validation_error")
			continue
		}

		if sample.EventID == "" {
			sample.EventID = uuid.NewString()
		}

		batch = append(batch, sample)

		if len(batch) >= batchSize {
			if err := s.repo.CreateSamplesBatch(ctx, batch); err != nil {
				return nil, fmt.Errorf("failed to insert batch: %w", err)
			}
			result.SuccessfulRecords += len(batch)
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		if err := s.repo.CreateSamplesBatch(ctx, batch); err != nil {
			return nil, fmt.Errorf("failed to insert final batch: %w", err)
		}
		result.SuccessfulRecords += len(batch)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	result.SamplesIngested = result.SuccessfulRecords
	return result, nil
}

// ingestFlowFile ingests one travel flow export file.
func (s *IngestionService) ingestFlowFile(ctx context.Context, filePath string, batchSize int) (*FileIngestionResult, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	result := &FileIngestionResult{}
	batch := make([]*models.FlowRecord, 0, batchSize)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		result.TotalRecords++

		var record models.RawFlowRecord
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			result.FailedRecords++
			s.metrics.RecordIngestionError("parse_error")
			continue
		}

		flow, err := record.ToFlow()
		if err != nil {
			result.FailedRecords++
			s.metrics.RecordIngestionError("validation_error")
			continue
		}

		batch = append(batch, flow)

		if len(batch) >= batchSize {
			if err := s.repo.CreateFlowsBatch(ctx, batch); err != nil {
				return nil, fmt.Errorf("failed to insert batch: %w", err)
			}
			result.SuccessfulRecords += len(batch)
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		if err := s.repo.CreateFlowsBatch(ctx, batch); err != nil {
			return nil, fmt.Errorf("failed to insert final batch: %w", err)
		}
		result.SuccessfulRecords += len(batch)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	result.FlowsIngested = result.SuccessfulRecords
	return result, nil
}
