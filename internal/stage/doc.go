// Package stage owns the staging area between the news fetch and the
// warehouse: the Parquet row layout of a staged batch and the object stores
// (S3-compatible buckets, or memory) it is written to.
package stage
