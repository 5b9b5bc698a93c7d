package database

import (
	"context"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/flarco/g"
	"github.com/samber/lo"
	"github.com/segmentio/ksuid"
	"github.com/slingdata-io/rscopy/core/dbio"
	"github.com/slingdata-io/rscopy/core/dbio/iop"
	"github.com/slingdata-io/rscopy/core/env"
	"github.com/spf13/cast"
)

// StageToS3 writes the table as compressed CSV files into the temp
// bucket and returns the key prefix shared by the files, suitable as
// the key of a COPY statement. The given keys override the instance
// keys. If an upload fails, the key is returned with the error so the
// files already uploaded can be cleaned up.
func (rct *RedshiftCopyTable) StageToS3(ctx context.Context, table iop.Table, accessKeyID, secretAccessKey string) (key string, err error) {
	if rct.S3TempBucket == "" {
		return "", &MissingConfigurationError{Setting: "S3_TEMP_BUCKET"}
	}

	accessKeyID = lo.Ternary(accessKeyID != "", accessKeyID, rct.AwsAccessKeyID)
	secretAccessKey = lo.Ternary(secretAccessKey != "", secretAccessKey, rct.AwsSecretAccessKey)

	store, err := rct.openStore(ctx, accessKeyID, secretAccessKey)
	if err != nil {
		return "", err
	}
	rct.store = store

	compressor := iop.NewCompressor(rct.compression())
	key = g.F("%s/%s.csv%s", rct.keyPrefix(), ksuid.New().String(), compressor.Suffix())

	filePath, err := table.WriteCsvFile(rct.tempFolder(), compressor.Type())
	if err != nil {
		return "", g.Error(err, "could not write table to csv")
	}
	defer env.RemoveLocalTempFile(filePath)

	tables, err := rct.splitTable(table, filePath)
	if err != nil {
		return "", err
	}

	g.Debug("staging %d file(s) to %s", len(tables), g.F("s3://%s/%s", rct.S3TempBucket, key))

	for idx, tbl := range tables {
		localPath := filePath
		if len(tables) > 1 {
			localPath, err = tbl.WriteCsvFile(rct.tempFolder(), compressor.Type())
			if err != nil {
				return key, g.Error(err, "could not write chunk %d to csv", idx)
			}
		}

		err = store.Put(ctx, rct.S3TempBucket, g.F("%s.%d", key, idx), localPath)
		if localPath != filePath {
			env.RemoveLocalTempFile(localPath)
		}
		if err != nil {
			return key, g.Error(err, "could not upload chunk %d of %d", idx+1, len(tables))
		}
	}

	return key, nil
}

// CleanupStaged deletes every file under the key prefix in the temp
// bucket. All files are attempted; the errors are returned together.
func (rct *RedshiftCopyTable) CleanupStaged(ctx context.Context, key string) (err error) {
	if rct.S3TempBucket == "" {
		return &MissingConfigurationError{Setting: "S3_TEMP_BUCKET"}
	} else if key == "" {
		return g.Error("refusing to clean up the whole temp bucket, a key prefix is required")
	}

	store := rct.store
	if store == nil {
		store, err = rct.openStore(ctx, rct.AwsAccessKeyID, rct.AwsSecretAccessKey)
		if err != nil {
			return err
		}
		rct.store = store
	}

	keys, err := store.ListKeys(ctx, rct.S3TempBucket, key)
	if err != nil {
		return g.Error(err, "could not list staged files")
	}

	eG := g.ErrorGroup{}
	for _, k := range keys {
		if err := store.Delete(ctx, rct.S3TempBucket, k); err != nil {
			eG.Capture(err)
		}
	}

	g.Debug("deleted %d of %d staged file(s) under s3://%s/%s", len(keys)-len(eG.Errors), len(keys), rct.S3TempBucket, key)

	return eG.Err()
}

// StageAndCopyStatement stages the table and returns the COPY statement
// loading the staged files into tableName, along with the staged key.
// The file layout options (delimiter, header, null value, compression)
// are set from the staged files, overriding opts.
func (rct *RedshiftCopyTable) StageAndCopyStatement(ctx context.Context, tableName string, table iop.Table, opts CopyOptions, accessKeyID, secretAccessKey string) (sql, key string, err error) {
	if err = opts.validateDataType(); err != nil {
		return "", "", err
	}

	opts = rct.matchStagedFiles(opts, table.CsvFormat())

	key, err = rct.StageToS3(ctx, table, accessKeyID, secretAccessKey)
	if err != nil {
		return "", key, err
	}

	sql, err = rct.CopyStatement(tableName, rct.S3TempBucket, key, opts, accessKeyID, secretAccessKey)
	if err != nil {
		return "", key, err
	}

	g.Trace("%s COPY for staged files:\n%s", dbio.TypeDbRedshift.NameLong(), rct.CleanSQL(sql, accessKeyID, secretAccessKey))

	return sql, key, nil
}

// matchStagedFiles sets the options describing the staged files
func (rct *RedshiftCopyTable) matchStagedFiles(opts CopyOptions, format iop.CsvFormat) CopyOptions {
	ignoreHeader := lo.Ternary(format.Header, 1, 0)

	if (opts.CsvDelimiter != "" && opts.CsvDelimiter != format.Delimiter) || opts.IgnoreHeader != ignoreHeader || opts.NullAs != format.NullAs {
		g.Warn(
			"staged files are written with delimiter %q, null value %q and header %t, ignoring the options given",
			format.Delimiter, format.NullAs, format.Header,
		)
	}

	opts.DataType = "csv"
	opts.CsvDelimiter = format.Delimiter
	opts.IgnoreHeader = ignoreHeader
	opts.NullAs = format.NullAs
	opts.Compression = rct.compression().String()
	opts.Manifest = false

	return opts
}

// splitTable splits the table into ClusterSlices chunks when its
// serialized file reaches SplitThreshold
func (rct *RedshiftCopyTable) splitTable(table iop.Table, filePath string) (tables []iop.Table, err error) {
	stat, err := os.Stat(filePath)
	if err != nil {
		return nil, g.Error(err, "could not stat %s", filePath)
	}

	threshold := lo.Ternary(rct.SplitThreshold > 0, rct.SplitThreshold, MinimumFileSplit)
	if stat.Size() < threshold {
		g.Debug("no split needed (%s)", humanize.Bytes(cast.ToUint64(stat.Size())))
		return []iop.Table{table}, nil
	}

	slices := lo.Ternary(rct.ClusterSlices > 0, rct.ClusterSlices, ClusterSlices)
	rowsPerChunk := lo.Max([]int{table.Count() / slices, 1})
	tables = table.Chunk(rowsPerChunk)

	g.Debug("splitting %s into %d files of %d rows", humanize.Bytes(cast.ToUint64(stat.Size())), len(tables), rowsPerChunk)

	return tables, nil
}

func (rct *RedshiftCopyTable) openStore(ctx context.Context, accessKeyID, secretAccessKey string) (ObjectStore, error) {
	newStore := rct.NewStore
	if newStore == nil {
		newStore = NewS3Store
	}
	return newStore(ctx, accessKeyID, secretAccessKey)
}

func (rct *RedshiftCopyTable) compression() iop.CompressorType {
	if rct.Compression == "" {
		return iop.GzipCompressorType
	}
	return iop.NewCompressor(rct.Compression).Type()
}

func (rct *RedshiftCopyTable) keyPrefix() string {
	if rct.S3TempKeyPrefix == "" {
		return S3TempKeyPrefix
	}
	return rct.S3TempKeyPrefix
}

func (rct *RedshiftCopyTable) tempFolder() string {
	if rct.TempFolder == "" {
		return env.GetTempFolder()
	}
	return rct.TempFolder
}
