package s3

// Placeholder for an S3 backed ArtifactService implementation.
//
// Intent: a durable store implementing core.ArtifactService on AWS S3 or a
// compatible API, mapping (appName, userID, sessionID, filename, version) to
// object keys. The file stays a stub so the in-memory default does not pull
// an AWS dependency into minimal builds; an implementation should keep the
// dependency surface narrow and make bucket, prefix and encryption explicit
// via a small Options struct.
