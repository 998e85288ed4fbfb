package models

const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// FileRef points at a deliverable file without saying how it is served.
// ID is a path relative to the upload root for local files and an object
// key for S3.
type FileRef struct {
	ID          string `bson:"fileId" json:"fileId" binding:"required"`
	Name        string `bson:"fileName" json:"fileName" binding:"required"`
	Storage     string `bson:"storage" json:"storage" binding:"omitempty,oneof=local s3"`
	ContentType string `bson:"contentType,omitempty" json:"contentType,omitempty"`
}
