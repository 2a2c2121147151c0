// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package inscriptions

import (
	"bytes"
	"errors"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gabriel-vasile/mimetype"
)

// ErrCompressionRoundTrip defines that compressed body does not decompress back to the original.
var ErrCompressionRoundTrip = errors.New("compression round trip failed")

// brotliContentEncoding defines content-encoding value for brotli compressed bodies.
const brotliContentEncoding string = "br"

// brotli compression parameters, chosen for maximum density since
// reveal script size directly translates into fees.
const (
	brotliQuality int = 11
	brotliLGWin   int = 24
)

// contentTypeForExtension maps lowercase file extensions to inscription content types.
var contentTypeForExtension = map[string]string{
	".apng":  "image/apng",
	".avif":  "image/avif",
	".bin":   "application/octet-stream",
	".bmp":   "image/bmp",
	".cbor":  "application/cbor",
	".css":   "text/css",
	".flac":  "audio/flac",
	".gif":   "image/gif",
	".glb":   "model/gltf-binary",
	".gltf":  "model/gltf+json",
	".html":  "text/html;charset=utf-8",
	".jpeg":  "image/jpeg",
	".jpg":   "image/jpeg",
	".js":    "text/javascript",
	".json":  "application/json",
	".md":    "text/markdown;charset=utf-8",
	".mp3":   "audio/mpeg",
	".mp4":   "video/mp4",
	".otf":   "font/otf",
	".pdf":   "application/pdf",
	".png":   "image/png",
	".stl":   "model/stl",
	".svg":   "image/svg+xml",
	".ttf":   "font/ttf",
	".txt":   "text/plain;charset=utf-8",
	".wav":   "audio/wav",
	".webm":  "video/webm",
	".webp":  "image/webp",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".yaml":  "application/yaml",
	".yml":   "application/yaml",
}

// FromFileParams describes parameters to build Inscription from a file.
type FromFileParams struct {
	Path         string
	Compress     bool
	Metadata     []byte
	Metaprotocol []byte
	Delegate     *ID
	Parents      []*ID
	Pointer      *big.Int
}

// FromFile reads the file at params.Path and builds Inscription with content
// type detected from the file extension, falling back to content sniffing.
// With params.Compress the body is brotli compressed when that makes it smaller.
func FromFile(params FromFileParams) (*Inscription, error) {
	body, err := os.ReadFile(params.Path)
	if err != nil {
		return nil, err
	}

	inscription := &Inscription{
		Body:         body,
		ContentType:  ContentTypeForPath(params.Path, body),
		Metadata:     params.Metadata,
		Metaprotocol: params.Metaprotocol,
		Delegate:     params.Delegate,
		Parents:      params.Parents,
		Pointer:      params.Pointer,
	}

	if params.Compress {
		if err = inscription.CompressBody(); err != nil {
			return nil, err
		}
	}

	return inscription, nil
}

// ContentTypeForPath returns content type for the file by its extension,
// falling back to detection by content for unknown extensions.
func ContentTypeForPath(path string, body []byte) string {
	if contentType, ok := contentTypeForExtension[strings.ToLower(filepath.Ext(path))]; ok {
		return contentType
	}

	return mimetype.Detect(body).String()
}

// CompressBody compresses Inscription body with brotli and keeps the result
// only if it is strictly smaller than the original, setting content encoding.
// Compressing an already encoded body is a no-op.
func (i *Inscription) CompressBody() error {
	if len(i.ContentEncoding) != 0 || len(i.Body) == 0 {
		return nil
	}

	var buf bytes.Buffer
	writer := brotli.NewWriterOptions(&buf, brotli.WriterOptions{Quality: brotliQuality, LGWin: brotliLGWin})
	if _, err := writer.Write(i.Body); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	decompressed, err := io.ReadAll(brotli.NewReader(bytes.NewReader(buf.Bytes())))
	if err != nil {
		return err
	}
	if !bytes.Equal(decompressed, i.Body) {
		return ErrCompressionRoundTrip
	}

	if buf.Len() < len(i.Body) {
		i.Body = buf.Bytes()
		i.ContentEncoding = brotliContentEncoding
	}

	return nil
}

// DecompressedBody returns Inscription body with content encoding undone.
func (i *Inscription) DecompressedBody() ([]byte, error) {
	if i.ContentEncoding != brotliContentEncoding {
		return i.Body, nil
	}

	return io.ReadAll(brotli.NewReader(bytes.NewReader(i.Body)))
}
