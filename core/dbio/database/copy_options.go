package database

import (
	"strings"

	"github.com/flarco/g"
	"github.com/samber/lo"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// CopyOptions configures the generated COPY statement.
// Start from DefaultCopyOptions, since the zero value turns off
// the flags that are on by default.
type CopyOptions struct {
	Manifest        bool     `json:"manifest" yaml:"manifest"`
	DataType        string   `json:"data_type" yaml:"data_type"`
	CsvDelimiter    string   `json:"csv_delimiter" yaml:"csv_delimiter"`
	MaxErrors       int      `json:"max_errors" yaml:"max_errors"`
	StatUpdate      bool     `json:"statupdate" yaml:"statupdate"`
	CompUpdate      bool     `json:"compupdate" yaml:"compupdate"`
	IgnoreHeader    int      `json:"ignoreheader" yaml:"ignoreheader"`
	AcceptAnyDate   bool     `json:"acceptanydate" yaml:"acceptanydate"`
	DateFormat      string   `json:"dateformat" yaml:"dateformat"`
	TimeFormat      string   `json:"timeformat" yaml:"timeformat"`
	EmptyAsNull     bool     `json:"emptyasnull" yaml:"emptyasnull"`
	BlanksAsNull    bool     `json:"blanksasnull" yaml:"blanksasnull"`
	NullAs          string   `json:"null_as" yaml:"null_as"`
	AcceptInvChars  bool     `json:"acceptinvchars" yaml:"acceptinvchars"`
	TruncateColumns bool     `json:"truncatecolumns" yaml:"truncatecolumns"`
	SpecifyCols     []string `json:"specifycols" yaml:"specifycols"`
	Compression     string   `json:"compression" yaml:"compression"`
}

// DefaultCopyOptions returns the default COPY options
func DefaultCopyOptions() CopyOptions {
	return CopyOptions{
		DataType:       "csv",
		CsvDelimiter:   ",",
		StatUpdate:     true,
		CompUpdate:     true,
		IgnoreHeader:   1,
		AcceptAnyDate:  true,
		DateFormat:     "auto",
		TimeFormat:     "auto",
		EmptyAsNull:    true,
		BlanksAsNull:   true,
		AcceptInvChars: true,
	}
}

// validateDataType checks the data format can be loaded. Only csv
// is supported, empty means csv.
func (opts CopyOptions) validateDataType() error {
	dataType := strings.ToLower(strings.TrimSpace(opts.DataType))
	if dataType != "" && dataType != "csv" {
		return &UnsupportedFormatError{Format: opts.DataType}
	}
	return nil
}

// ParseCopyOptions reads a YAML or JSON document on top of the
// defaults. Keys missing from the document keep their default.
func ParseCopyOptions(body string) (opts CopyOptions, err error) {
	opts = DefaultCopyOptions()
	if strings.TrimSpace(body) == "" {
		return opts, nil
	}

	var doc yaml.Node
	if err = yaml.Unmarshal([]byte(body), &doc); err != nil {
		return opts, g.Error(err, "could not parse copy options")
	}
	if err = doc.Decode(&opts); err != nil {
		return opts, g.Error(err, "could not parse copy options")
	}

	// an unquoted `NULL` sentinel is a yaml null, keep its text
	if len(doc.Content) > 0 && doc.Content[0].Kind == yaml.MappingNode {
		mapping := doc.Content[0].Content
		for i := 0; i+1 < len(mapping); i += 2 {
			key, val := mapping[i], mapping[i+1]
			if !g.In(key.Value, "null_as", "nullas") || val.Kind != yaml.ScalarNode || val.Tag != "!!null" {
				continue
			}
			if !g.In(val.Value, "", "~", "null") {
				opts.NullAs = val.Value
			}
		}
	}

	return opts, nil
}

// CopyOptionsFromProps applies `key=value` properties on top of the
// defaults, such as `max_errors=10` or `specifycols=id,name`.
func CopyOptionsFromProps(props map[string]string) (opts CopyOptions, err error) {
	opts = DefaultCopyOptions()

	setBool := func(target *bool, key, val string) error {
		b, err := cast.ToBoolE(val)
		if err != nil {
			return g.Error(err, "invalid value for %s: %s", key, val)
		}
		*target = b
		return nil
	}

	setInt := func(target *int, key, val string) error {
		i, err := cast.ToIntE(val)
		if err != nil {
			return g.Error(err, "invalid value for %s: %s", key, val)
		}
		*target = i
		return nil
	}

	for key, val := range props {
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "manifest":
			err = setBool(&opts.Manifest, key, val)
		case "data_type", "format":
			opts.DataType = val
		case "csv_delimiter", "delimiter":
			opts.CsvDelimiter = val
		case "max_errors", "maxerror":
			err = setInt(&opts.MaxErrors, key, val)
		case "statupdate":
			err = setBool(&opts.StatUpdate, key, val)
		case "compupdate":
			err = setBool(&opts.CompUpdate, key, val)
		case "ignoreheader":
			err = setInt(&opts.IgnoreHeader, key, val)
		case "acceptanydate":
			err = setBool(&opts.AcceptAnyDate, key, val)
		case "dateformat":
			opts.DateFormat = val
		case "timeformat":
			opts.TimeFormat = val
		case "emptyasnull":
			err = setBool(&opts.EmptyAsNull, key, val)
		case "blanksasnull":
			err = setBool(&opts.BlanksAsNull, key, val)
		case "null_as", "nullas":
			opts.NullAs = val
		case "acceptinvchars":
			err = setBool(&opts.AcceptInvChars, key, val)
		case "truncatecolumns":
			err = setBool(&opts.TruncateColumns, key, val)
		case "specifycols", "columns":
			cols := lo.Map(strings.Split(val, ","), func(c string, i int) string { return strings.TrimSpace(c) })
			opts.SpecifyCols = lo.Filter(cols, func(c string, i int) bool { return c != "" })
		case "compression":
			opts.Compression = val
		default:
			g.Warn("unrecognized copy option: %s", key)
		}
		if err != nil {
			return opts, err
		}
	}

	return opts, nil
}
