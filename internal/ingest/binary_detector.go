package ingest

import (
	"bytes"
	"path/filepath"
	"strings"
)

// binaryExtensions short-circuits the content sniff for well-known
// binary formats so the Loader never needs to read their bytes.
var binaryExtensions = map[string]bool{
	".woff": true, ".woff2": true, ".ttf": true, ".otf": true, ".eot": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true,
	".ico": true, ".webp": true, ".tiff": true, ".tif": true,
	".zip": true, ".tar": true, ".gz": true, ".bz2": true, ".xz": true,
	".7z": true, ".rar": true, ".jar": true, ".war": true, ".ear": true,
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".a": true,
	".o": true, ".obj": true, ".bin": true,
	".mp3": true, ".mp4": true, ".avi": true, ".mov": true, ".wmv": true,
	".flv": true, ".wav": true, ".flac": true, ".ogg": true,
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".ppt": true, ".pptx": true,
	".db": true, ".sqlite": true, ".sqlite3": true,
}

var magicNumbers = [][]byte{
	{0x1F, 0x8B}, // gzip
	{0x50, 0x4B, 0x03, 0x04}, {0x50, 0x4B, 0x05, 0x06}, // zip
	{0x89, 0x50, 0x4E, 0x47}, // png
	{0xFF, 0xD8, 0xFF},       // jpeg
	{0x47, 0x49, 0x46, 0x38}, // gif
	{0x25, 0x50, 0x44, 0x46}, // pdf
	{0x7F, 0x45, 0x4C, 0x46}, // elf
	{0x4D, 0x5A},             // dos/windows exe
	{0xCA, 0xFE, 0xBA, 0xBE}, // mach-o
	{0x77, 0x4F, 0x46, 0x46}, {0x77, 0x4F, 0x46, 0x32}, // woff/woff2
}

// isBinaryByExtension is the fast path: no content read needed.
func isBinaryByExtension(path string) bool {
	if strings.HasSuffix(path, ".min.js") || strings.HasSuffix(path, ".min.css") {
		return false
	}
	return binaryExtensions[strings.ToLower(filepath.Ext(path))]
}

// isBinaryContent applies magic-number sniffing, then the NUL-byte /
// non-printable-ratio heuristic over the first 512 bytes.
func isBinaryContent(content []byte) bool {
	if len(content) == 0 {
		return false
	}
	n := 512
	if len(content) < n {
		n = len(content)
	}
	sample := content[:n]

	for _, magic := range magicNumbers {
		if bytes.HasPrefix(sample, magic) {
			return true
		}
	}

	var nullBytes, nonPrintable int
	for _, b := range sample {
		if b == 0 {
			nullBytes++
		}
		if b < 0x20 && b != 0x09 && b != 0x0A && b != 0x0D {
			nonPrintable++
		}
	}
	if nullBytes > len(sample)/100 {
		return true
	}
	if nonPrintable > len(sample)*30/100 {
		return true
	}
	return false
}

func isBinary(path string, content []byte) bool {
	if isBinaryByExtension(path) {
		return true
	}
	return isBinaryContent(content)
}
