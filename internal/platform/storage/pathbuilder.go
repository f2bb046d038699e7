package storage

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UploadKind distinguishes the two document classes users attach to drafts.
type UploadKind string

const (
	KindInvoice      UploadKind = "invoice"
	KindProductImage UploadKind = "product-image"
)

var allowedExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"webp": {},
	"pdf":  {},
}

// UploadKey composes the object key for a client upload. Keys are
// date-partitioned and carry a fresh UUID plus the sanitised upload
// timestamp, so concurrent uploads of identically named files never collide:
//
//	uploads/2026/08/28/3f1c...-2026-08-28T101530Z.pdf
func UploadKey(kind UploadKind, fileName string, at time.Time) (string, error) {
	switch kind {
	case KindInvoice, KindProductImage:
	default:
		return "", fmt.Errorf("storage: unsupported upload kind %q", kind)
	}

	ext, err := extensionOf(fileName)
	if err != nil {
		return "", err
	}

	at = at.UTC()
	stamp := sanitiseTimestamp(at)
	return fmt.Sprintf("uploads/%04d/%02d/%02d/%s-%s.%s",
		at.Year(), int(at.Month()), at.Day(), uuid.NewString(), stamp, ext), nil
}

func extensionOf(fileName string) (string, error) {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return "", fmt.Errorf("storage: fileName is required")
	}
	if strings.ContainsAny(fileName, "/\\") || strings.Contains(fileName, "..") {
		return "", fmt.Errorf("storage: fileName contains invalid path characters")
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(fileName), "."))
	if ext == "" {
		return "", fmt.Errorf("storage: fileName has no extension")
	}
	if _, ok := allowedExtensions[ext]; !ok {
		return "", fmt.Errorf("storage: extension %q not allowed", ext)
	}
	return ext, nil
}

// sanitiseTimestamp strips the characters of an RFC3339 timestamp that are
// unsafe or noisy in object keys, keeping it sortable.
func sanitiseTimestamp(at time.Time) string {
	stamp := at.Format("2006-01-02T150405Z")
	return strings.ReplaceAll(stamp, ":", "")
}

// ContentTypeFor maps an upload kind to the content types accepted for it.
func ContentTypeFor(kind UploadKind) []string {
	switch kind {
	case KindInvoice:
		return []string{"application/pdf", "image/*"}
	case KindProductImage:
		return []string{"image/*"}
	default:
		return nil
	}
}
