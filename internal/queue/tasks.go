package queue

const (
	TypeArtifactRelease = "artifact:release"
)

const (
	ReleaseKindArtifact  = "artifact"
	ReleaseKindStoreFile = "store_file"
)

// ArtifactReleasePayload describes one provider resource whose deletion
// failed and should be retried.
type ArtifactReleasePayload struct {
	Kind          string `json:"kind"`
	FileID        string `json:"file_id"`
	VectorStoreID string `json:"vector_store_id,omitempty"`
}
