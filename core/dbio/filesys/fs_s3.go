package filesys

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/credentials/stscreds"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/dustin/go-humanize"
	"github.com/flarco/g"
	"github.com/spf13/cast"
)

// S3FileSysClient is a file system client to write file to Amazon's S3 file sys.
type S3FileSysClient struct {
	BaseFileSysClient
	session   *session.Session
	RegionMap map[string]string
	mux       sync.Mutex
}

const defaultRegion = "us-east-1"

// Init initializes the fs client
func (fs *S3FileSysClient) Init(ctx context.Context) (err error) {
	var instance FileSysClient
	instance = fs
	fs.BaseFileSysClient.instance = &instance

	for _, key := range g.ArrStr("ACCESS_KEY_ID", "SECRET_ACCESS_KEY", "REGION", "DEFAULT_REGION", "SESSION_TOKEN", "ENDPOINT", "ROLE_ARN", "PROFILE") {
		if fs.GetProp(key) == "" {
			fs.SetProp(key, fs.GetProp("AWS_"+key))
		}
	}

	fs.RegionMap = map[string]string{}

	return fs.Connect()
}

// Connect initiates the S3 session
func (fs *S3FileSysClient) Connect() (err error) {
	region := fs.GetProp("REGION", "DEFAULT_REGION")
	if region == "" {
		region = defaultRegion
	}

	// https://docs.aws.amazon.com/sdk-for-go/api/service/s3/
	awsConfig := &aws.Config{
		Region:                         aws.String(region),
		S3ForcePathStyle:               aws.Bool(true),
		DisableRestProtocolURICleaning: aws.Bool(true),
	}
	if endpoint := fs.GetProp("ENDPOINT"); endpoint != "" {
		awsConfig.Endpoint = aws.String(endpoint)
	}

	if fs.GetProp("ACCESS_KEY_ID") != "" && fs.GetProp("SECRET_ACCESS_KEY") != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(
			fs.GetProp("ACCESS_KEY_ID"),
			fs.GetProp("SECRET_ACCESS_KEY"),
			fs.GetProp("SESSION_TOKEN"),
		)
	} else if profile := fs.GetProp("PROFILE"); profile != "" {
		creds := credentials.NewSharedCredentials("", profile)
		if _, err := creds.Get(); err != nil {
			return g.Error(err, "Failed to load credentials for profile '%s'. Please check if profile exists in ~/.aws/credentials", profile)
		}
		awsConfig.Credentials = creds
	} else {
		// default chain: environment, shared file, instance role
		g.Debug("using default AWS credential chain")
	}

	fs.session, err = session.NewSession(awsConfig)
	if err != nil {
		err = g.Error(err, "Could not create AWS session (did not provide ACCESS_KEY_ID/SECRET_ACCESS_KEY or default AWS profile).")
		return
	}

	if role := fs.GetProp("ROLE_ARN"); role != "" {
		fs.session.Config.Credentials = stscreds.NewCredentials(fs.session, role)
	}

	return
}

// Credentials returns the credentials held by the session
func (fs *S3FileSysClient) Credentials() (creds credentials.Value, err error) {
	if fs.session == nil {
		return creds, g.Error("S3 session is not initialized")
	}

	creds, err = fs.session.Config.Credentials.Get()
	if err != nil {
		return creds, g.Error(err, "could not get credentials from AWS session")
	}
	return creds, nil
}

// getSession returns the session with the region set for the bucket
func (fs *S3FileSysClient) getSession(ctx context.Context, bucket string) (sess *session.Session) {
	fs.mux.Lock()
	defer fs.mux.Unlock()
	endpoint := fs.GetProp("ENDPOINT")
	region := fs.GetProp("REGION")

	if bucket == "" {
		return fs.session
	} else if region != "" {
		fs.RegionMap[bucket] = region
	} else if strings.HasSuffix(endpoint, ".cloudflarestorage.com") {
		fs.RegionMap[bucket] = "auto"
	} else if endpoint == "" && fs.RegionMap[bucket] == "" {
		region, err := s3manager.GetBucketRegion(ctx, fs.session, bucket, defaultRegion)
		if err != nil {
			if aerr, ok := err.(awserr.Error); ok && aerr.Code() == "NotFound" {
				g.Debug("unable to find bucket %s's region", bucket)
			} else {
				g.Debug(g.Error(err, "Error getting Region for "+bucket).Error())
			}
		} else {
			fs.RegionMap[bucket] = region
		}
	}

	sess = fs.session.Copy()
	sess.Config.Region = aws.String(fs.RegionMap[bucket])
	if fs.RegionMap[bucket] == "" {
		sess.Config.Region = aws.String(defaultRegion)
	}

	return sess
}

// getEncryptionParams returns the encryption params if specified
func (fs *S3FileSysClient) getEncryptionParams() (sse, kmsKeyId *string) {
	if val := fs.GetProp("encryption_algorithm"); val != "" {
		if g.In(val, "AES256", "aws:kms", "aws:kms:dsse") {
			sse = aws.String(val)
		}
	}

	if val := fs.GetProp("encryption_kms_key"); val != "" {
		if sse != nil && g.In(*sse, "aws:kms", "aws:kms:dsse") {
			kmsKeyId = aws.String(val)
		}
	}

	return
}

// Put uploads the local file to the bucket under key
func (fs *S3FileSysClient) Put(ctx context.Context, bucket, key, localPath string) (err error) {
	size, err := fileSize(localPath)
	if err != nil {
		return err
	}

	file, err := os.Open(localPath)
	if err != nil {
		return g.Error(err, "could not open %s", localPath)
	}
	defer file.Close()

	uploader := s3manager.NewUploader(fs.getSession(ctx, bucket))
	if conc := cast.ToInt(fs.GetProp("CONCURRENCY")); conc > 0 {
		uploader.Concurrency = conc
	}

	ServerSideEncryption, SSEKMSKeyId := fs.getEncryptionParams()
	_, err = uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:               aws.String(bucket),
		Key:                  aws.String(key),
		Body:                 file,
		ServerSideEncryption: ServerSideEncryption,
		SSEKMSKeyId:          SSEKMSKeyId,
	})
	if err != nil {
		return g.Error(err, "failed to upload file: "+key)
	}

	g.Debug("uploaded %s to %s", humanize.Bytes(cast.ToUint64(size)), fs.Prefix(bucket, "/", key))

	return
}

// ListKeys lists the keys in the bucket starting with prefix
func (fs *S3FileSysClient) ListKeys(ctx context.Context, bucket, prefix string) (keys []string, err error) {
	svc := s3.New(fs.getSession(ctx, bucket))

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}

	err = svc.ListObjectsV2PagesWithContext(ctx, input, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			if obj == nil || obj.Key == nil {
				continue
			}
			keys = append(keys, *obj.Key)
		}
		return true
	})
	if err != nil {
		return nil, g.Error(err, "Error with ListObjectsV2 for: %s", fs.Prefix(bucket, "/", prefix))
	}

	g.Trace("listed %d keys under %s", len(keys), fs.Prefix(bucket, "/", prefix))

	return keys, nil
}

// Delete deletes the object at key
func (fs *S3FileSysClient) Delete(ctx context.Context, bucket, key string) (err error) {
	svc := s3.New(fs.getSession(ctx, bucket))

	_, err = svc.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return g.Error(err, "Unable to delete S3 object: %s", fs.Prefix(bucket, "/", key))
	}

	return
}
