package env

import (
	"os"
	"path"
	"strings"

	"github.com/flarco/g"
	"gopkg.in/yaml.v3"
)

// EnvFile is the yaml file holding default settings, for example:
//
//	env:
//	  S3_TEMP_BUCKET: my-bucket
//	  REDSHIFT_IAM_ROLE: arn:aws:iam::123456789012:role/loader
type EnvFile struct {
	Env map[string]any `json:"env,omitempty" yaml:"env,omitempty"`

	Path string `json:"-" yaml:"-"`
	Body string `json:"-" yaml:"-"`
}

func SetHomeDir(name string) string {
	envKey := strings.ToUpper(name) + "_HOME_DIR"
	dir := os.Getenv(envKey)
	if dir == "" {
		dir = path.Join(g.UserHomeDir(), "."+name)
	}
	envMux.Lock()
	HomeDirs[name] = dir
	envMux.Unlock()
	return dir
}

// LoadEnvFile reads the env file at the given path. A missing
// file yields an empty EnvFile.
func LoadEnvFile(path string) (ef EnvFile, err error) {
	ef = EnvFile{Env: map[string]any{}, Path: path}
	if !g.PathExists(path) {
		return ef, nil
	}

	bytes, err := os.ReadFile(path)
	if err != nil {
		return ef, g.Error(err, "could not read env file: %s", path)
	}
	ef.Body = string(bytes)

	if err = yaml.Unmarshal(bytes, &ef); err != nil {
		return ef, g.Error(err, "could not parse env file: %s", path)
	}
	if ef.Env == nil {
		ef.Env = map[string]any{}
	}

	return ef, nil
}

// LoadRscopyEnvFile loads the env file from the home dir into Env
func LoadRscopyEnvFile() (err error) {
	ef, err := LoadEnvFile(HomeDirEnvFile)
	if err != nil {
		return err
	}
	envMux.Lock()
	Env = &ef
	envMux.Unlock()
	return nil
}
