package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flarco/g"
	"github.com/google/uuid"
	"github.com/integrii/flaggy"
	"github.com/slingdata-io/rscopy/core"
	"github.com/slingdata-io/rscopy/core/env"
)

var ctx, cancel = context.WithCancel(context.Background())

var debugFlags = []g.Flag{
	{
		Name:        "debug",
		ShortName:   "d",
		Type:        "bool",
		Description: "Set logging level to DEBUG.",
	},
	{
		Name:        "trace",
		ShortName:   "",
		Type:        "bool",
		Description: "Set logging level to TRACE (do not use in production).",
	},
}

var credsFlags = []g.Flag{
	{
		Name:        "access-key-id",
		ShortName:   "",
		Type:        "string",
		Description: "The AWS access key id. Defaults to AWS_ACCESS_KEY_ID or the AWS session.",
	},
	{
		Name:        "secret-access-key",
		ShortName:   "",
		Type:        "string",
		Description: "The AWS secret access key. Defaults to AWS_SECRET_ACCESS_KEY or the AWS session.",
	},
	{
		Name:        "iam-role",
		ShortName:   "",
		Type:        "string",
		Description: "The IAM role Redshift assumes to read the files. Defaults to REDSHIFT_IAM_ROLE.",
	},
	{
		Name:        "options",
		ShortName:   "o",
		Type:        "string",
		Description: "The COPY options to use (JSON or YAML string or file).\n",
	},
}

var stageFlags = []g.Flag{
	{
		Name:        "temp-bucket",
		ShortName:   "",
		Type:        "string",
		Description: "The bucket to stage files into. Defaults to S3_TEMP_BUCKET.",
	},
	{
		Name:        "local",
		ShortName:   "",
		Type:        "string",
		Description: "Stage into a local folder instead of S3 (buckets are sub-folders).\n",
	},
}

var cliStatement = &g.CliSC{
	Name:        "statement",
	Description: "Print the COPY statement loading S3 files into a Redshift table",
	Flags: append(append([]g.Flag{
		{
			Name:        "table",
			ShortName:   "t",
			Type:        "string",
			Description: "The target table (schema.table).",
		},
		{
			Name:        "bucket",
			ShortName:   "b",
			Type:        "string",
			Description: "The S3 bucket holding the files.",
		},
		{
			Name:        "key",
			ShortName:   "k",
			Type:        "string",
			Description: "The S3 key (or key prefix) of the files.",
		},
		{
			Name:        "url",
			ShortName:   "u",
			Type:        "string",
			Description: "The S3 URL of the files (s3://bucket/key), instead of `--bucket` and `--key`.\n",
		},
	}, credsFlags...), debugFlags...),
	ExecProcess: processStatement,
}

var cliStage = &g.CliSC{
	Name:        "stage",
	Description: "Stage a local CSV file into the temp bucket",
	Flags: append(append(append([]g.Flag{
		{
			Name:        "file",
			ShortName:   "f",
			Type:        "string",
			Description: "The local CSV file to stage (may be gzip or zstd compressed).",
		},
		{
			Name:        "table",
			ShortName:   "t",
			Type:        "string",
			Description: "The target table (schema.table). If provided, the COPY statement is printed.",
		},
		{
			Name:        "compression",
			ShortName:   "",
			Type:        "string",
			Description: "The compression of staged files: gzip, zstd or none. Default is gzip.\n",
		},
	}, stageFlags...), credsFlags...), debugFlags...),
	ExecProcess: processStage,
}

var cliCleanup = &g.CliSC{
	Name:        "cleanup",
	Description: "Delete the staged files under a key prefix",
	Flags: append(append([]g.Flag{
		{
			Name:        "key",
			ShortName:   "k",
			Type:        "string",
			Description: "The key prefix printed by `rscopy stage`.\n",
		},
	}, stageFlags...), debugFlags...),
	ExecProcess: processCleanup,
}

func init() {
	cliStatement.Make().Add()
	cliStage.Make().Add()
	cliCleanup.Make().Add()
}

func main() {

	exitCode := 11
	done := make(chan struct{})
	interrupt := make(chan os.Signal, 1)
	kill := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	signal.Notify(kill, syscall.SIGTERM)

	go func() {
		defer close(done)
		exitCode = cliInit()
	}()

	select {
	case <-done:
		os.Exit(exitCode)
	case <-kill:
		println("\nkilling process...")
		os.Exit(111)
	case <-interrupt:
		if cliStage.Sc.Used || cliCleanup.Sc.Used {
			println("\ninterrupting...")
			cancel()
			select {
			case <-done:
			case <-time.After(5 * time.Second):
			}
		}
		os.Exit(exitCode)
		return
	}
}

func cliInit() int {
	env.InitLogger()

	if err := env.LoadRscopyEnvFile(); err != nil {
		g.Warn("could not load env file: %s", err.Error())
	}

	flaggy.SetName("rscopy")
	flaggy.SetDescription("A Redshift COPY helper.")
	flaggy.DefaultParser.ShowHelpOnUnexpected = true
	flaggy.DefaultParser.AdditionalHelpPrepend = "Builds Redshift COPY statements and stages data into S3.\nVersion " + core.Version

	flaggy.SetVersion(core.Version)
	for _, cli := range g.CliArr {
		flaggy.AttachSubcommand(cli.Sc, 1)
	}

	flaggy.Parse()

	g.Trace("rscopy %s, exec id %s", core.Version, uuid.New().String())

	ok, err := g.CliProcess()
	if ok {
		g.LogFatal(err)
	} else {
		flaggy.ShowHelp("")
	}
	return 0
}
