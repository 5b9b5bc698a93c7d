package dbio

import (
	"github.com/flarco/g"
)

// Kind is the connection kind
type Kind string

const (
	// KindDatabase for databases
	KindDatabase Kind = "database"
	// KindFile for files (cloud, local)
	KindFile Kind = "file"
	// KindUnknown for unknown
	KindUnknown Kind = ""
)

// Type is the connection type
type Type string

const (
	TypeUnknown Type = ""

	TypeFileLocal Type = "file"
	TypeFileS3    Type = "s3"

	TypeDbRedshift Type = "redshift"
)

// String returns string instance
func (t Type) String() string {
	return string(t)
}

// Kind returns the kind of connection
func (t Type) Kind() Kind {
	switch t {
	case TypeDbRedshift:
		return KindDatabase
	case TypeFileLocal, TypeFileS3:
		return KindFile
	}
	return KindUnknown
}

// IsDb returns true if database connection
func (t Type) IsDb() bool {
	return t.Kind() == KindDatabase
}

// IsFile returns true if file connection
func (t Type) IsFile() bool {
	return t.Kind() == KindFile
}

// NameLong return the type long name
func (t Type) NameLong() string {
	mapping := map[Type]string{
		TypeFileLocal:  "FileSys - Local",
		TypeFileS3:     "FileSys - S3",
		TypeDbRedshift: "DB - Redshift",
	}
	return mapping[t]
}

// URIPrefix returns the scheme prefix used in URIs, such as `s3://`
func (t Type) URIPrefix() string {
	if !t.IsFile() {
		return ""
	}
	return g.F("%s://", t.String())
}
