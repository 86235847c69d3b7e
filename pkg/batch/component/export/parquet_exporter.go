// Package export writes the completed records of a master job to Parquet
// files in a blob store, one file per Hive-style "dt=" partition.
package export

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/tigerroll/datagen/pkg/batch/adapter/storage"
	config "github.com/tigerroll/datagen/pkg/batch/core/config"
	model "github.com/tigerroll/datagen/pkg/batch/core/domain/model"
	"github.com/tigerroll/datagen/pkg/batch/core/domain/repository"
	"github.com/tigerroll/datagen/pkg/batch/support/util/exception"
	"github.com/tigerroll/datagen/pkg/batch/support/util/logger"
)

const module = "export"

// Row is the Parquet schema of one exported record.
type Row struct {
	RecordID    string `parquet:"name=record_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	MasterJobID string `parquet:"name=master_job_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	JobID       string `parquet:"name=job_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	ItemIndex   int32  `parquet:"name=item_index, type=INT32"`
	CreateTime  int64  `parquet:"name=create_time, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	// Payload is the JSON encoding of the output item.
	Payload string `parquet:"name=payload, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// Result describes the files written by one export.
type Result struct {
	// Objects lists the uploaded object names in partition order.
	Objects []string
	// Rows is the number of records exported.
	Rows int
}

// ParquetExporter exports completed records from a Storage.
type ParquetExporter struct {
	cfg      config.ExportConfig
	codec    parquet.CompressionCodec
	store    repository.Storage
	resolver storage.StorageConnectionResolver
	now      func() time.Time
}

// DecodeExportConfig decodes loosely typed properties (for example a parsed
// YAML block) over the defaults.
func DecodeExportConfig(properties map[string]interface{}) (config.ExportConfig, error) {
	cfg := config.NewConfig().Datagen.Export
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return cfg, err
	}
	if err := decoder.Decode(properties); err != nil {
		return cfg, exception.NewConfigurationError(module, "failed to decode export properties: %v", err)
	}
	return cfg, nil
}

// NewParquetExporter validates cfg and creates an exporter.
func NewParquetExporter(cfg config.ExportConfig, store repository.Storage, resolver storage.StorageConnectionResolver) (*ParquetExporter, error) {
	if store == nil || resolver == nil {
		return nil, exception.NewConfigurationError(module, "storage and blob resolver are required")
	}
	if cfg.BlobRef == "" {
		return nil, exception.NewConfigurationError(module, "export.blob_ref is required")
	}
	if cfg.PartitionFormat == "" {
		cfg.PartitionFormat = "2006-01-02"
	}
	codec, err := compressionCodec(cfg.CompressionType)
	if err != nil {
		return nil, exception.NewConfigurationError(module, "%v", err)
	}
	return &ParquetExporter{cfg: cfg, codec: codec, store: store, resolver: resolver, now: time.Now}, nil
}

// Export writes every completed record of masterJobID. A master job without
// completed records produces no files.
func (e *ParquetExporter) Export(ctx context.Context, masterJobID string) (*Result, error) {
	records, err := e.store.ListRecordMetadata(ctx, masterJobID, "")
	if err != nil {
		return nil, exception.NewStorageError(module, fmt.Sprintf("failed to list records of master job %s", masterJobID), err)
	}

	partitions := make(map[string][]Row)
	rows := 0
	for _, rec := range records {
		if rec.Status != model.RecordStatusCompleted || rec.OutputRef == "" {
			continue
		}
		payload, err := e.store.GetRecordData(ctx, rec.OutputRef)
		if err != nil {
			return nil, exception.NewStorageError(module, fmt.Sprintf("failed to load payload of record %s", rec.ID), err)
		}
		key := "dt=" + rec.CreateTime.Format(e.cfg.PartitionFormat)
		partitions[key] = append(partitions[key], Row{
			RecordID:    rec.ID,
			MasterJobID: rec.MasterJobID,
			JobID:       rec.JobID,
			ItemIndex:   int32(rec.Index),
			CreateTime:  rec.CreateTime.UnixMilli(),
			Payload:     string(payload),
		})
		rows++
	}

	res := &Result{Rows: rows}
	if rows == 0 {
		logger.Infof("Export of master job %s: no completed records, nothing written.", masterJobID)
		return res, nil
	}

	conn, err := e.resolver.ResolveStorageConnection(ctx, e.cfg.BlobRef)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(partitions))
	for k := range partitions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs error
	stamp := e.now().Format("20060102150405")
	for _, key := range keys {
		buf, err := e.encode(partitions[key])
		if err != nil {
			errs = multierror.Append(errs, exception.NewBatchErrorf(module, "failed to encode partition '%s'", key, err))
			continue
		}
		objectName := path.Join(e.cfg.OutputBaseDir, masterJobID, key,
			fmt.Sprintf("data_%s_%s.parquet", stamp, model.NewID()[:8]))
		if err := conn.Upload(ctx, objectName, buf, "application/octet-stream"); err != nil {
			errs = multierror.Append(errs, exception.NewStorageError(module, fmt.Sprintf("failed to upload %s", objectName), err))
			continue
		}
		logger.Infof("Export of master job %s: wrote %d rows to %s.", masterJobID, len(partitions[key]), objectName)
		res.Objects = append(res.Objects, objectName)
	}
	return res, errs
}

func (e *ParquetExporter) encode(rows []Row) (buf *bytes.Buffer, err error) {
	buf = new(bytes.Buffer)
	pw, err := writer.NewParquetWriterFromWriter(buf, new(Row), 1)
	if err != nil {
		return nil, err
	}
	pw.CompressionType = e.codec
	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			return nil, err
		}
	}
	// WriteStop panics on some malformed schemas.
	defer func() {
		if r := recover(); r != nil {
			buf, err = nil, fmt.Errorf("parquet writer panicked: %v", r)
		}
	}()
	if err := pw.WriteStop(); err != nil {
		return nil, err
	}
	return buf, nil
}

func compressionCodec(compressionType string) (parquet.CompressionCodec, error) {
	switch strings.ToUpper(compressionType) {
	case "SNAPPY":
		return parquet.CompressionCodec_SNAPPY, nil
	case "GZIP":
		return parquet.CompressionCodec_GZIP, nil
	case "NONE", "":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	default:
		return 0, fmt.Errorf("unsupported compression type: %s", compressionType)
	}
}
