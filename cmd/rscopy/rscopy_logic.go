package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/flarco/g"
	"github.com/integrii/flaggy"
	"github.com/slingdata-io/rscopy/core/dbio"
	"github.com/slingdata-io/rscopy/core/dbio/database"
	"github.com/slingdata-io/rscopy/core/dbio/filesys"
	"github.com/slingdata-io/rscopy/core/dbio/iop"
	"github.com/slingdata-io/rscopy/core/env"
	"github.com/spf13/cast"
)

// stdout receives the statements and keys printed by the commands
var stdout io.Writer = os.Stdout

func setLogLevel(c *g.CliSC) {
	if cast.ToBool(c.Vals["trace"]) {
		os.Setenv("DEBUG", "TRACE")
		env.InitLogger()
	} else if cast.ToBool(c.Vals["debug"]) {
		os.Setenv("DEBUG", "LOW")
		env.InitLogger()
	}
}

// newCopyTable configures a RedshiftCopyTable from the env vars and
// the command flags. Flags win.
func newCopyTable(c *g.CliSC) *database.RedshiftCopyTable {
	vars := env.Vars()

	rct := database.NewRedshiftCopyTable()
	rct.IamRole = vars["REDSHIFT_IAM_ROLE"]
	rct.S3TempBucket = vars["S3_TEMP_BUCKET"]
	rct.TempFolder = env.GetTempFolder()
	if val := cast.ToInt(vars["RSCOPY_CLUSTER_SLICES"]); val > 0 {
		rct.ClusterSlices = val
	}
	if val := cast.ToInt64(vars["RSCOPY_SPLIT_THRESHOLD"]); val > 0 {
		rct.SplitThreshold = val
	}
	if val := vars["RSCOPY_COMPRESSION"]; val != "" {
		rct.Compression = iop.CompressorType(val)
	}

	for k, v := range c.Vals {
		val := cast.ToString(v)
		if val == "" {
			continue
		}

		switch k {
		case "iam-role":
			rct.IamRole = val
		case "temp-bucket":
			rct.S3TempBucket = val
		case "compression":
			rct.Compression = iop.CompressorType(val)
		case "local":
			rct.NewStore = func(ctx context.Context, accessKeyID, secretAccessKey string) (database.ObjectStore, error) {
				return filesys.NewFileSysClientContext(ctx, dbio.TypeFileLocal, "root="+val)
			}
		}
	}

	return rct
}

// loadCopyOptions parses the `options` flag, an inline document or
// the path of one
func loadCopyOptions(c *g.CliSC) (opts database.CopyOptions, err error) {
	body := cast.ToString(c.Vals["options"])
	if body != "" && g.PathExists(body) {
		bytes, err := os.ReadFile(body)
		if err != nil {
			return opts, g.Error(err, "could not read options file %s", body)
		}
		body = string(bytes)
	}

	return database.ParseCopyOptions(body)
}

func processStatement(c *g.CliSC) (ok bool, err error) {
	ok = true
	setLogLevel(c)

	table := cast.ToString(c.Vals["table"])
	bucket := cast.ToString(c.Vals["bucket"])
	key := cast.ToString(c.Vals["key"])
	if url := cast.ToString(c.Vals["url"]); url != "" {
		bucket, key, err = filesys.ParseURL(url)
		if err != nil {
			return ok, err
		}
	}
	if table == "" || bucket == "" || key == "" {
		flaggy.ShowHelp("need to provide `--table`, `--bucket` and `--key`")
		return ok, nil
	}

	opts, err := loadCopyOptions(c)
	if err != nil {
		return ok, err
	}

	accessKeyID := cast.ToString(c.Vals["access-key-id"])
	secretAccessKey := cast.ToString(c.Vals["secret-access-key"])

	rct := newCopyTable(c)
	sql, err := rct.CopyStatement(table, bucket, key, opts, accessKeyID, secretAccessKey)
	if err != nil {
		return ok, g.Error(err, "could not build COPY statement")
	}

	fmt.Fprintln(stdout, sql)
	return ok, nil
}

func processStage(c *g.CliSC) (ok bool, err error) {
	ok = true
	setLogLevel(c)

	filePath := cast.ToString(c.Vals["file"])
	if filePath == "" {
		flaggy.ShowHelp("need to provide `--file`")
		return ok, nil
	}

	data, err := iop.ReadCsv(filePath)
	if err != nil {
		return ok, g.Error(err, "could not read %s", filePath)
	}
	g.Debug("read %d rows from %s", data.Count(), filePath)

	accessKeyID := cast.ToString(c.Vals["access-key-id"])
	secretAccessKey := cast.ToString(c.Vals["secret-access-key"])

	rct := newCopyTable(c)

	table := cast.ToString(c.Vals["table"])
	if table == "" {
		key, err := rct.StageToS3(ctx, &data, accessKeyID, secretAccessKey)
		if err != nil {
			return ok, stageError(rct, key, err)
		}
		g.Info("staged %d rows into %s", data.Count(), env.GreenString(dbio.TypeFileS3.URIPrefix()+rct.S3TempBucket+"/"+key))
		g.Info("once loaded, delete the staged files with %s", color.HiBlueString(cleanupCommand(rct, key)))
		fmt.Fprintln(stdout, key)
		return ok, nil
	}

	opts, err := loadCopyOptions(c)
	if err != nil {
		return ok, err
	}

	sql, key, err := rct.StageAndCopyStatement(ctx, table, &data, opts, accessKeyID, secretAccessKey)
	if err != nil {
		return ok, stageError(rct, key, err)
	}
	g.Info("staged %d rows into %s", data.Count(), env.GreenString(dbio.TypeFileS3.URIPrefix()+rct.S3TempBucket+"/"+key))
	g.Info("once loaded, delete the staged files with %s", color.HiBlueString(cleanupCommand(rct, key)))

	fmt.Fprintln(stdout, key)
	fmt.Fprintln(stdout, sql)
	return ok, nil
}

// stageError reports a failed staging, with the cleanup command when
// files may have been uploaded
func stageError(rct *database.RedshiftCopyTable, key string, err error) error {
	if key == "" {
		return g.Error(err, "could not stage data")
	}

	return g.Error(err, "could not stage data, some files may remain. To delete them: %s", cleanupCommand(rct, key))
}

func cleanupCommand(rct *database.RedshiftCopyTable, key string) string {
	return strings.Join([]string{"rscopy cleanup", "--key", key, "--temp-bucket", rct.S3TempBucket}, " ")
}

func processCleanup(c *g.CliSC) (ok bool, err error) {
	ok = true
	setLogLevel(c)

	key := cast.ToString(c.Vals["key"])
	if key == "" {
		flaggy.ShowHelp("need to provide `--key`")
		return ok, nil
	}

	rct := newCopyTable(c)
	if err = rct.CleanupStaged(ctx, key); err != nil {
		return ok, g.Error(err, "could not clean up %s", key)
	}

	g.Info("deleted staged files under %s", env.CyanString(dbio.TypeFileS3.URIPrefix()+rct.S3TempBucket+"/"+key))
	return ok, nil
}
