package model

import "time"

// MimeOctetStream is stored when the extension is not in the lookup table.
const MimeOctetStream = "application/octet-stream"

// FileRecord is the metadata of one finalized upload.
// ID doubles as the name of the raw bytes under the storage root.
// The four image fields stay nil unless IsImage is set and introspection succeeded.
type FileRecord struct {
	ID         string    `db:"id" json:"id"`
	Filename   string    `db:"filename" json:"filename"`
	Size       int64     `db:"size" json:"size"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	MimeType   string    `db:"mime_type" json:"mime_type"`
	IsImage    bool      `db:"is_image" json:"is_image"`
	Width      *int      `db:"width" json:"width"`
	Height     *int      `db:"height" json:"height"`
	ColorSpace *string   `db:"color_space" json:"color_space"`
	Channels   *int      `db:"channels" json:"channels"`
}
