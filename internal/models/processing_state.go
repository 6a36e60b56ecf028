package models

import "time"

// ProcessingStage is a step in the document processing pipeline.
type ProcessingStage string

const (
	StageUploaded  ProcessingStage = "uploaded"
	StageExtracted ProcessingStage = "extracted"
	StageChunked   ProcessingStage = "chunked"
	StageEmbedded  ProcessingStage = "embedded"
	StageStored    ProcessingStage = "stored"
	StageFailed    ProcessingStage = "failed"
)

// ArtifactKind names a stored artifact for one content hash.
type ArtifactKind string

const (
	ArtifactRaw       ArtifactKind = "raw"
	ArtifactExtracted ArtifactKind = "extracted"
	ArtifactChunks    ArtifactKind = "chunks"
)

// CanTransitionTo reports whether the stage may advance to target.
// StageStored and StageFailed are terminal.
func (s ProcessingStage) CanTransitionTo(target ProcessingStage) bool {
	switch s {
	case StageUploaded:
		return target == StageExtracted || target == StageFailed
	case StageExtracted:
		return target == StageChunked || target == StageFailed
	case StageChunked:
		return target == StageEmbedded || target == StageFailed
	case StageEmbedded:
		return target == StageStored || target == StageFailed
	case StageStored, StageFailed:
		return false
	default:
		return false
	}
}

// Terminal reports whether no further transitions are permitted.
func (s ProcessingStage) Terminal() bool {
	return s == StageStored || s == StageFailed
}

// ProcessingState is the durable record of one document's pipeline run,
// keyed by the content hash of its raw bytes.
type ProcessingState struct {
	FileHash      string            `json:"file_hash"`
	Filename      string            `json:"filename"`
	Stage         ProcessingStage   `json:"stage"`
	ArtifactPaths map[string]string `json:"artifact_paths"`
	ErrorMessage  string            `json:"error_message,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// ArtifactPath returns the stored location for the given artifact kind.
func (p *ProcessingState) ArtifactPath(kind ArtifactKind) (string, bool) {
	path, ok := p.ArtifactPaths[string(kind)]
	return path, ok
}

// SetArtifactPath records the location of an artifact kind.
func (p *ProcessingState) SetArtifactPath(kind ArtifactKind, path string) {
	if p.ArtifactPaths == nil {
		p.ArtifactPaths = make(map[string]string)
	}
	p.ArtifactPaths[string(kind)] = path
}
