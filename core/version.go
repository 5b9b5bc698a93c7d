package core

import (
	"strings"

	"github.com/flarco/g"
	"github.com/spf13/cast"
)

// Version is the version number
var Version = "dev"

func init() {
	// dev build version is in format => 1.2.2.dev/2024-08-20
	parts := strings.Split(Version, "/")
	if len(parts) != 2 {
		return
	}

	if date := cast.ToTime(parts[1]); !date.IsZero() {
		Version = g.F("%s (%s)", parts[0], date.Format("2006-01-02"))
		return
	}
	Version = parts[0]
}
