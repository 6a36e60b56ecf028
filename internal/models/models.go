package models

// BoundingBox locates a piece of extracted text on its source page.
type BoundingBox struct {
	Left        *float64 `json:"l,omitempty"`
	Top         *float64 `json:"t,omitempty"`
	Right       *float64 `json:"r,omitempty"`
	Bottom      *float64 `json:"b,omitempty"`
	CoordOrigin string   `json:"coord_origin,omitempty"`
}

// DocumentMetadata describes where a piece of document content came from.
type DocumentMetadata struct {
	Source       string       `json:"source,omitempty"`        // full path or URI of the original file
	Filename     string       `json:"filename,omitempty"`      // name of the original file
	PageNo       int          `json:"page_no,omitempty"`       // page number of the extracted text
	ContentLayer string       `json:"content_layer,omitempty"` // layer of document content (e.g. body, header)
	Mimetype     string       `json:"mimetype,omitempty"`      // MIME type of the source file
	BinaryHash   string       `json:"binary_hash,omitempty"`   // content hash of the source file
	BBox         *BoundingBox `json:"bbox,omitempty"`
}

// Document is a content+metadata pair flowing between extraction, chunking
// and vector storage. It is immutable once produced by a stage.
type Document struct {
	Content  string            `json:"content"`
	Metadata *DocumentMetadata `json:"metadata,omitempty"`
}

// DocumentResponse is the payload returned by the document endpoints.
type DocumentResponse struct {
	Status   string `json:"status"`
	FileName string `json:"file_name"`
	Message  string `json:"message,omitempty"`
}
