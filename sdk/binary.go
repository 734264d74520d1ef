package sdk

import (
	"encoding/base64"
	"fmt"
)

// BinaryFile is a file stored in a model field declared with Attachment.
// Set ContentType, Filename and Data to upload; after a save or fetch the
// platform's URL for the stored file is in URL.
type BinaryFile struct {
	ContentType string
	Filename    string
	Data        []byte

	// URL is where the platform stores the file. It is set by the server.
	URL string
}

// Format returns the MIME block sent for the file
func (f *BinaryFile) Format() string {
	return FormatBinary(f.ContentType, f.Filename, f.Data)
}

// FormatBinary encodes a file the way the platform expects binary field
// values:
//
//	Content-Type: image/png
//	Content-Disposition: attachment; filename=avatar.png
//	Content-Transfer-Encoding: base64
//
//	iVBORw0KGgo...
func FormatBinary(contentType, filename string, data []byte) string {
	return fmt.Sprintf("Content-Type: %s\nContent-Disposition: attachment; filename=%s\nContent-Transfer-Encoding: base64\n\n%s",
		contentType, filename, base64.StdEncoding.EncodeToString(data))
}
