package database

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/flarco/g"
	"github.com/slingdata-io/rscopy/core/dbio"
	"github.com/slingdata-io/rscopy/core/dbio/filesys"
	"github.com/slingdata-io/rscopy/core/dbio/iop"
	"github.com/slingdata-io/rscopy/core/env"
)

const (
	// S3TempKeyPrefix is the key prefix of the files staged for a COPY
	S3TempKeyPrefix = "RedshiftCopyTable"

	// ClusterSlices is the number of files a large table is split into,
	// matching the parallel ingest slices of the cluster
	ClusterSlices = 10

	// MinimumFileSplit is the compressed file size (in bytes) from which
	// a table is split before staging
	MinimumFileSplit int64 = 100000000000
)

// ObjectStore is where tables are staged before a COPY
type ObjectStore interface {
	Put(ctx context.Context, bucket, key, localPath string) error
	ListKeys(ctx context.Context, bucket, prefix string) ([]string, error)
	Delete(ctx context.Context, bucket, key string) error
}

// RedshiftCopyTable builds COPY statements loading S3 files into
// Redshift, and stages tables into a temporary S3 bucket.
type RedshiftCopyTable struct {
	AwsAccessKeyID     string
	AwsSecretAccessKey string
	IamRole            string
	S3TempBucket       string
	S3TempKeyPrefix    string

	ClusterSlices  int
	SplitThreshold int64
	Compression    iop.CompressorType
	TempFolder     string

	// LookupEnv reads the process environment, os.LookupEnv by default
	LookupEnv func(key string) (string, bool)

	// Session supplies the ambient AWS credentials, tried last
	Session filesys.CredentialsProvider

	// NewStore opens the object store used for staging. Opens an
	// S3 client by default.
	NewStore func(ctx context.Context, accessKeyID, secretAccessKey string) (ObjectStore, error)

	store ObjectStore
}

// NewRedshiftCopyTable returns a RedshiftCopyTable with the defaults set
func NewRedshiftCopyTable() *RedshiftCopyTable {
	return &RedshiftCopyTable{
		S3TempKeyPrefix: S3TempKeyPrefix,
		ClusterSlices:   ClusterSlices,
		SplitThreshold:  MinimumFileSplit,
		Compression:     iop.GzipCompressorType,
		LookupEnv:       os.LookupEnv,
		Session:         &s3Session{},
		NewStore:        NewS3Store,
	}
}

// s3Session supplies the default AWS credential chain, through an
// S3 client opened on first use
type s3Session struct {
	client filesys.CredentialsProvider
	mux    sync.Mutex
}

func (s *s3Session) Credentials() (creds credentials.Value, err error) {
	s.mux.Lock()
	defer s.mux.Unlock()

	if s.client == nil {
		fs, err := filesys.NewFileSysClient(dbio.TypeFileS3, "silent=true")
		if err != nil {
			return creds, g.Error(err, "Unable to create S3 Client")
		}
		s.client = fs.(*filesys.S3FileSysClient)
	}

	return s.client.Credentials()
}

// NewS3Store opens an S3 client. Empty keys fall back to the
// default AWS credential chain.
func NewS3Store(ctx context.Context, accessKeyID, secretAccessKey string) (ObjectStore, error) {
	props := []string{}
	if accessKeyID != "" && secretAccessKey != "" {
		props = append(props, "ACCESS_KEY_ID="+accessKeyID, "SECRET_ACCESS_KEY="+secretAccessKey)
	}

	fs, err := filesys.NewFileSysClientContext(ctx, dbio.TypeFileS3, props...)
	if err != nil {
		return nil, g.Error(err, "Unable to create S3 Client")
	}
	return fs, nil
}

// CopyStatement generates the COPY statement loading s3://bucket/key
// into tableName. The table, bucket and key are not escaped.
func (rct *RedshiftCopyTable) CopyStatement(tableName, bucket, key string, opts CopyOptions, accessKeyID, secretAccessKey string) (sql string, err error) {
	if err = opts.validateDataType(); err != nil {
		return "", err
	}

	// column list for mapping, or if there are fewer columns in the source file
	colList := ""
	if len(opts.SpecifyCols) > 0 {
		colList = g.F("(%s)", strings.Join(opts.SpecifyCols, ", "))
	}

	creds, err := rct.GetCreds(accessKeyID, secretAccessKey)
	if err != nil {
		return "", err
	}

	sb := strings.Builder{}
	sb.WriteString(g.F("copy %s%s \nfrom 's3://%s/%s' \n", tableName, colList, bucket, key))
	sb.WriteString(creds)

	if opts.Manifest {
		sb.WriteString("manifest \n")
	}
	sb.WriteString(g.F("maxerror %d \n", opts.MaxErrors))
	if opts.StatUpdate {
		sb.WriteString("statupdate on\n")
	}
	if opts.CompUpdate {
		sb.WriteString("compupdate on \n")
	} else {
		sb.WriteString("compupdate off \n")
	}
	if opts.IgnoreHeader > 0 {
		sb.WriteString(g.F("ignoreheader %d \n", opts.IgnoreHeader))
	}
	if opts.AcceptAnyDate {
		sb.WriteString("acceptanydate \n")
	}
	sb.WriteString(g.F("dateformat '%s' \n", orAuto(opts.DateFormat)))
	sb.WriteString(g.F("timeformat '%s' \n", orAuto(opts.TimeFormat)))
	if opts.EmptyAsNull {
		sb.WriteString("emptyasnull \n")
	}
	if opts.BlanksAsNull {
		sb.WriteString("blanksasnull \n")
	}
	if opts.NullAs != "" {
		sb.WriteString(g.F("null as '%s' \n", opts.NullAs))
	}
	if opts.AcceptInvChars {
		sb.WriteString("acceptinvchars \n")
	}
	if opts.TruncateColumns {
		sb.WriteString("truncatecolumns \n")
	}

	delimiter := opts.CsvDelimiter
	if delimiter == "" {
		delimiter = ","
	}
	sb.WriteString(g.F("csv delimiter '%s' \n", delimiter))

	if codec := compressionClause(opts.Compression); codec != "" {
		sb.WriteString(codec + " \n")
	}

	sb.WriteString(";")

	return sb.String(), nil
}

// GetCreds renders the credentials clause. The first source
// available wins: the given keys, the IAM role, the instance keys,
// the AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY env vars, and
// finally the session credentials.
func (rct *RedshiftCopyTable) GetCreds(accessKeyID, secretAccessKey string) (string, error) {
	switch {
	case accessKeyID != "" && secretAccessKey != "":
		g.Trace("using provided AWS keys for COPY credentials")
	case rct.IamRole != "":
		return g.F("credentials 'aws_iam_role=%s'\n", rct.IamRole), nil
	case rct.AwsAccessKeyID != "" && rct.AwsSecretAccessKey != "":
		accessKeyID = rct.AwsAccessKeyID
		secretAccessKey = rct.AwsSecretAccessKey
	default:
		lookupEnv := rct.LookupEnv
		if lookupEnv == nil {
			lookupEnv = os.LookupEnv
		}

		envKeyID, okKeyID := lookupEnv("AWS_ACCESS_KEY_ID")
		envSecret, okSecret := lookupEnv("AWS_SECRET_ACCESS_KEY")
		if okKeyID && okSecret {
			accessKeyID = envKeyID
			secretAccessKey = envSecret
			break
		}

		if rct.Session == nil {
			return "", &CredentialsUnavailableError{}
		}

		creds, err := rct.Session.Credentials()
		if err != nil {
			return "", err
		}
		accessKeyID = creds.AccessKeyID
		secretAccessKey = creds.SecretAccessKey
	}

	return g.F(
		"credentials 'aws_access_key_id=%s;aws_secret_access_key=%s'\n",
		accessKeyID,
		secretAccessKey,
	), nil
}

// CleanSQL masks the known secrets in a statement, for logging
func (rct *RedshiftCopyTable) CleanSQL(sql string, secrets ...string) string {
	secrets = append(secrets, rct.AwsAccessKeyID, rct.AwsSecretAccessKey)
	if rct.LookupEnv != nil {
		for _, key := range []string{"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY"} {
			if val, ok := rct.LookupEnv(key); ok {
				secrets = append(secrets, val)
			}
		}
	}
	return env.Clean(sql, secrets...)
}

func orAuto(format string) string {
	if format == "" {
		return "auto"
	}
	return format
}

// compressionClause returns the COPY keyword for the codecs
// Redshift can read from S3, or an empty string
func compressionClause(compression string) string {
	switch codec := strings.ToLower(strings.TrimSpace(compression)); codec {
	case "gzip", "zstd", "bzip2", "lzop":
		return codec
	}
	return ""
}
