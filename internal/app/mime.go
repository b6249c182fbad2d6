package app

import (
	"log"
	"mime"

	"github.com/vic4or/sistemaMype-sub000/internal/platform/httpx"
)

func init() {
	ensureMimeType(".xlsx", httpx.ContentTypeXLSX)
}

func ensureMimeType(ext, typ string) {
	if mime.TypeByExtension(ext) != "" {
		return
	}
	if err := mime.AddExtensionType(ext, typ); err != nil {
		log.Printf("app: failed to register MIME type for %s: %v", ext, err)
	}
}
