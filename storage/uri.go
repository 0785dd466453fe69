package storage

import (
	"fmt"
	"net/url"
	"strings"

	apperrors "github.com/kbukum/etlflow/errors"
)

// URI schemes per provider.
const (
	SchemeGCS   = "gs"
	SchemeS3    = "s3"
	SchemeLocal = "file"
)

// Scheme returns the URI scheme used for objects of the given provider.
func Scheme(provider string) string {
	switch provider {
	case ProviderGCS:
		return SchemeGCS
	case ProviderS3:
		return SchemeS3
	default:
		return SchemeLocal
	}
}

// ObjectURI returns the warehouse-facing URI of an object, e.g.
// gs://my-airflow-etl-bucket/products_cleaned.csv.
func ObjectURI(provider, bucket, name string) string {
	return fmt.Sprintf("%s://%s/%s", Scheme(provider), bucket, strings.TrimPrefix(name, "/"))
}

// ObjectRef identifies an object by scheme, bucket and name.
type ObjectRef struct {
	Scheme string
	Bucket string
	Name   string
}

// String returns the ref in URI form.
func (r ObjectRef) String() string {
	return fmt.Sprintf("%s://%s/%s", r.Scheme, r.Bucket, r.Name)
}

// ParseObjectURI splits a gs://, s3:// or file:// object URI.
func ParseObjectURI(uri string) (ObjectRef, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return ObjectRef{}, apperrors.InvalidInput("uri", err.Error())
	}
	switch u.Scheme {
	case SchemeGCS, SchemeS3, SchemeLocal:
	default:
		return ObjectRef{}, apperrors.InvalidInput("uri", fmt.Sprintf("unsupported scheme %q in %s", u.Scheme, uri))
	}
	name := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || name == "" {
		return ObjectRef{}, apperrors.InvalidInput("uri", fmt.Sprintf("%s: bucket and object name are required", uri))
	}
	return ObjectRef{Scheme: u.Scheme, Bucket: u.Host, Name: name}, nil
}
