package env

import (
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/flarco/g"
	"github.com/rs/zerolog"
	"github.com/spf13/cast"
)

var (
	HomeDir        = os.Getenv("RSCOPY_HOME_DIR")
	HomeDirEnvFile = ""
	Env            = &EnvFile{}
	NoColor        = g.In(os.Getenv("RSCOPY_LOGGING"), "NO_COLOR", "JSON")
	LogSink        func(text string, args ...interface{})
	HomeDirs       = map[string]string{}
	envMux         = sync.Mutex{}
)

// keys picked up from the environment, in addition to the env file
var configKeys = []string{
	"AWS_ACCESS_KEY_ID",
	"AWS_SECRET_ACCESS_KEY",
	"AWS_SESSION_TOKEN",
	"AWS_REGION",
	"AWS_DEFAULT_REGION",
	"AWS_ENDPOINT",
	"AWS_PROFILE",
	"AWS_ROLE_ARN",
	"S3_TEMP_BUCKET",
	"REDSHIFT_IAM_ROLE",
	"RSCOPY_CLUSTER_SLICES",
	"RSCOPY_SPLIT_THRESHOLD",
	"RSCOPY_COMPRESSION",
}

func init() {
	HomeDir = SetHomeDir("rscopy")
	HomeDirEnvFile = GetEnvFilePath(HomeDir)
}

func SetLogger() {
	g.SetZeroLogLevel(zerolog.InfoLevel)
	g.DisableColor = !cast.ToBool(os.Getenv("RSCOPY_LOGGING_COLOR"))

	if os.Getenv("DEBUG") == "TRACE" {
		g.SetZeroLogLevel(zerolog.TraceLevel)
		g.SetLogLevel(g.TraceLevel)
	} else if os.Getenv("DEBUG") != "" {
		g.SetZeroLogLevel(zerolog.DebugLevel)
		g.SetLogLevel(g.DebugLevel)
		if os.Getenv("DEBUG") == "LOW" {
			g.SetLogLevel(g.LowDebugLevel)
		}
	}

	outputErr := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05"}
	outputErr.FormatErrFieldValue = func(i interface{}) string {
		return fmt.Sprintf("%s", i)
	}

	switch os.Getenv("RSCOPY_LOGGING") {
	case "NO_COLOR":
		NoColor = true
		outputErr.NoColor = true
		g.ZLogOut = zerolog.New(outputErr).With().Timestamp().Logger()
		g.ZLogErr = zerolog.New(outputErr).With().Timestamp().Logger()
	case "JSON":
		NoColor = true
		zerolog.LevelFieldName = "lvl"
		zerolog.MessageFieldName = "msg"
		g.ZLogOut = zerolog.New(os.Stderr).With().Timestamp().Logger()
		g.ZLogErr = zerolog.New(os.Stderr).With().Timestamp().Logger()
	default:
		if !g.IsDebugLow() {
			outputErr.TimeFormat = "3:04PM"
		}
		g.ZLogOut = zerolog.New(outputErr).With().Timestamp().Logger()
		g.ZLogErr = zerolog.New(outputErr).With().Timestamp().Logger()
	}
}

// InitLogger initializes the g Logger
func InitLogger() {
	g.SetLogHook(
		g.NewLogHook(
			g.DebugLevel,
			func(text string, args ...interface{}) { processLogEntry(text, args...) },
		),
	)

	SetLogger()
}

func processLogEntry(text string, args ...interface{}) {
	if LogSink != nil {
		LogSink(text, args...)
	}
}

// Vars returns the configuration variables. Values from the process
// environment take precedence over the env file.
func Vars() (vars map[string]string) {
	vars = map[string]string{}

	envMux.Lock()
	for k, v := range Env.Env {
		vars[strings.ToUpper(k)] = cast.ToString(v)
	}
	envMux.Unlock()

	for _, key := range configKeys {
		if val, ok := os.LookupEnv(key); ok {
			vars[key] = val
		}
	}

	return
}

func GreenString(text string) string {
	if NoColor {
		return text
	}
	return g.Colorize(g.ColorGreen, text)
}

func CyanString(text string) string {
	if NoColor {
		return text
	}
	return g.Colorize(g.ColorCyan, text)
}

func GetTempFolder() string {
	tempDir := os.TempDir()
	if val := os.Getenv("RSCOPY_TEMP_DIR"); val != "" {
		tempDir = val
	}
	tempDir = strings.TrimRight(strings.TrimRight(tempDir, "/"), "\\")
	return CleanWindowsPath(tempDir)
}

func CleanWindowsPath(path string) string {
	return strings.ReplaceAll(path, `\`, `/`)
}

// RemoveLocalTempFile deletes the local file
func RemoveLocalTempFile(localPath string) {
	if !cast.ToBool(os.Getenv("RSCOPY_KEEP_TEMP")) {
		os.Remove(localPath)
	}
}

// GetEnvFilePath returns the env file path within a home dir
func GetEnvFilePath(dir string) string {
	return path.Join(dir, "env.yaml")
}

// Clean removes creds from a log line. Longer secrets are masked first.
func Clean(line string, secrets ...string) string {
	secrets = append([]string{}, secrets...)
	sort.SliceStable(secrets, func(i, j int) bool { return len(secrets[i]) > len(secrets[j]) })
	for _, secret := range secrets {
		if strings.TrimSpace(secret) == "" {
			continue
		}
		line = strings.ReplaceAll(line, secret, "***")
	}
	return line
}
