// ABOUTME: Files pack: read-only access to documents under a configured root directory.
// ABOUTME: Every path is resolved inside the root; escapes are reported as not found.

package builtins

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/uavcrew/compliance-gateway/internal/packs"
	"github.com/uavcrew/compliance-gateway/internal/store"
)

// FilesPackID is the pack ID of the file tools.
const FilesPackID = "builtin:files"

// DefaultMaxReadBytes caps read_file when no limit is configured (10MB).
const DefaultMaxReadBytes = 10 << 20

var binaryExtensions = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true, ".ppt": true, ".pptx": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true, ".tiff": true, ".tif": true,
	".zip": true, ".tar": true, ".gz": true, ".7z": true, ".rar": true,
	".bin": true, ".exe": true, ".dll": true, ".so": true,
	".mp3": true, ".mp4": true, ".avi": true, ".mov": true, ".wav": true,
	".ulg": true, ".tlog": true,
}

var contentEncodings = map[string]string{
	".gz":  "gzip",
	".bz2": "bzip2",
	".xz":  "xz",
	".br":  "br",
}

// FilesPack creates the file access pack rooted at root, which must be an
// existing directory. maxReadBytes <= 0 selects DefaultMaxReadBytes.
func FilesPack(root string, maxReadBytes int64) (*packs.BuiltinPack, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving file root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolving file root: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("file root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("file root %s is not a directory", root)
	}
	if maxReadBytes <= 0 {
		maxReadBytes = DefaultMaxReadBytes
	}

	h := &fileHandlers{root: resolved, maxReadBytes: maxReadBytes}
	return &packs.BuiltinPack{
		ID: FilesPackID,
		Tools: []*packs.Tool{
			{
				Name:        "list_files",
				Description: "List files in a directory under the document root",
				Params: []packs.Param{
					{Name: "directory", Type: packs.TypeString, Required: true, Description: "Directory path, relative to the document root"},
					{Name: "pattern", Type: packs.TypeString, Default: "*", Description: "Glob pattern matched against file names"},
					{Name: "recursive", Type: packs.TypeBoolean, Default: false, Description: "Descend into subdirectories"},
				},
				Handler: h.ListFiles,
			},
			{
				Name:        "read_file",
				Description: "Read file content; binary files are returned base64 encoded",
				Params: []packs.Param{
					{Name: "path", Type: packs.TypeString, Required: true, Description: "File path, relative to the document root"},
					{Name: "max_bytes", Type: packs.TypeInteger, Description: "Maximum bytes to read"},
					{Name: "encoding", Type: packs.TypeString, Default: "utf-8", Description: "Text encoding: utf-8, ascii or latin-1"},
				},
				Handler: h.ReadFile,
			},
			{
				Name:        "get_file_metadata",
				Description: "Get size, type and timestamps of a file or directory",
				Params: []packs.Param{
					{Name: "path", Type: packs.TypeString, Required: true, Description: "Path, relative to the document root"},
				},
				Handler: h.GetFileMetadata,
			},
		},
	}, nil
}

type fileHandlers struct {
	root         string
	maxReadBytes int64
}

// errOutsideRoot marks a path that resolves outside the document root.
var errOutsideRoot = errors.New("path outside file root")

// resolve maps a caller path onto the filesystem. Absolute paths are taken
// relative to the root. Symlinks are followed and must stay inside the root.
func (h *fileHandlers) resolve(p string) (string, error) {
	joined := filepath.Join(h.root, filepath.FromSlash(strings.TrimPrefix(filepath.ToSlash(p), "/")))
	if !h.inside(joined) {
		return "", errOutsideRoot
	}

	target, err := filepath.EvalSymlinks(joined)
	if errors.Is(err, fs.ErrNotExist) {
		return joined, nil
	}
	if err != nil {
		return "", err
	}
	if !h.inside(target) {
		return "", errOutsideRoot
	}
	return target, nil
}

func (h *fileHandlers) inside(p string) bool {
	rel, err := filepath.Rel(h.root, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// display returns p relative to the root, slash separated.
func (h *fileHandlers) display(p string) string {
	rel, err := filepath.Rel(h.root, p)
	if err != nil {
		return filepath.Base(p)
	}
	return filepath.ToSlash(rel)
}

// statError converts filesystem errors into not-found outcomes where the
// caller is at fault.
func statError(err error, kind, p string) error {
	switch {
	case errors.Is(err, errOutsideRoot), errors.Is(err, fs.ErrNotExist):
		return packs.NotFound("%s not found: %s", kind, p)
	case errors.Is(err, fs.ErrPermission):
		return packs.NotFound("Permission denied: %s", p)
	}
	return fmt.Errorf("%s %s: %w", strings.ToLower(kind), p, err)
}

// ListFiles lists regular files matching a glob pattern.
func (h *fileHandlers) ListFiles(_ context.Context, _ store.Session, args packs.Args) (any, error) {
	dir := args.String("directory", "")
	pattern := args.String("pattern", "*")
	recursive := args.Bool("recursive", false)

	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, packs.NotFound("Invalid pattern: %s", pattern)
	}

	resolved, err := h.resolve(dir)
	if err != nil {
		return nil, statError(err, "Directory", dir)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, statError(err, "Directory", dir)
	}
	if !info.IsDir() {
		return nil, packs.NotFound("Not a directory: %s", dir)
	}

	files := []any{}
	walkErr := filepath.WalkDir(resolved, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == resolved {
				return err
			}
			// Unreadable subtrees are skipped
			return nil
		}
		if d.IsDir() {
			if p != resolved && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if ok, _ := filepath.Match(pattern, d.Name()); !ok {
			return nil
		}
		files = append(files, h.fileInfo(p, d))
		return nil
	})
	if walkErr != nil {
		return nil, statError(walkErr, "Directory", dir)
	}

	return map[string]any{
		"directory": dir,
		"pattern":   pattern,
		"recursive": recursive,
		"count":     len(files),
		"files":     files,
	}, nil
}

func (h *fileHandlers) fileInfo(p string, d fs.DirEntry) map[string]any {
	out := map[string]any{
		"path":    h.display(p),
		"name":    d.Name(),
		"is_file": true,
	}
	if info, err := d.Info(); err == nil {
		out["size"] = info.Size()
		out["modified"] = float64(info.ModTime().UnixNano()) / 1e9
	}
	return out
}

// ReadFile reads up to max_bytes of a file, base64 encoding binary content.
func (h *fileHandlers) ReadFile(_ context.Context, _ store.Session, args packs.Args) (any, error) {
	p := args.String("path", "")
	encoding := strings.ToLower(args.String("encoding", "utf-8"))
	decode, ok := textDecoders[encoding]
	if !ok {
		return nil, packs.NotFound("Unsupported encoding: %s", encoding)
	}

	resolved, err := h.resolve(p)
	if err != nil {
		return nil, statError(err, "File", p)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, statError(err, "File", p)
	}
	if !info.Mode().IsRegular() {
		return nil, packs.NotFound("Not a file: %s", p)
	}

	size := info.Size()
	limit := min(size, h.maxReadBytes)
	if args.Has("max_bytes") {
		limit = min(limit, max(int64(args.Int("max_bytes", 0)), 0))
	}

	f, err := os.Open(resolved)
	if err != nil {
		return nil, statError(err, "File", p)
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, limit))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", p, err)
	}

	isBinary := isBinaryFile(resolved)
	var content string
	if !isBinary {
		text, ok := decode(raw)
		if ok {
			content = text
		} else {
			isBinary = true
		}
	}
	if isBinary {
		content = base64.StdEncoding.EncodeToString(raw)
		encoding = "base64"
	}

	return map[string]any{
		"path":       h.display(resolved),
		"content":    content,
		"size":       size,
		"bytes_read": len(raw),
		"encoding":   encoding,
		"is_binary":  isBinary,
		"truncated":  int64(len(raw)) < size,
	}, nil
}

var textDecoders = map[string]func([]byte) (string, bool){
	"utf-8": decodeUTF8,
	"utf8":  decodeUTF8,
	"ascii": func(b []byte) (string, bool) {
		for _, c := range b {
			if c >= 0x80 {
				return "", false
			}
		}
		return string(b), true
	},
	"latin-1":    decodeLatin1,
	"latin1":     decodeLatin1,
	"iso-8859-1": decodeLatin1,
}

func decodeUTF8(b []byte) (string, bool) {
	if !utf8.Valid(b) {
		return "", false
	}
	return string(b), true
}

func decodeLatin1(b []byte) (string, bool) {
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes), true
}

// isBinaryFile classifies by extension and registered MIME type. JSON, XML
// and other structured text types count as text.
func isBinaryFile(p string) bool {
	ext := strings.ToLower(filepath.Ext(p))
	if binaryExtensions[ext] {
		return true
	}
	mt := mimeType(p)
	if mt == "" {
		return false
	}
	return !isTextMIME(mt)
}

func isTextMIME(mt string) bool {
	if strings.HasPrefix(mt, "text/") {
		return true
	}
	return slices.Contains([]string{"application/json", "application/xml", "application/javascript", "application/x-yaml", "application/yaml", "application/toml"}, mt) ||
		strings.HasSuffix(mt, "+json") || strings.HasSuffix(mt, "+xml")
}

func mimeType(p string) string {
	mt := mime.TypeByExtension(filepath.Ext(p))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt
}

// GetFileMetadata describes a file or directory.
func (h *fileHandlers) GetFileMetadata(_ context.Context, _ store.Session, args packs.Args) (any, error) {
	p := args.String("path", "")

	resolved, err := h.resolve(p)
	if err != nil {
		return nil, statError(err, "Path", p)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, statError(err, "Path", p)
	}

	isFile := info.Mode().IsRegular()
	mt := mimeType(resolved)
	if mt == "" {
		if info.IsDir() {
			mt = "inode/directory"
		} else {
			mt = "application/octet-stream"
		}
	}

	out := map[string]any{
		"path":         h.display(resolved),
		"name":         info.Name(),
		"is_file":      isFile,
		"is_directory": info.IsDir(),
		"size":         nil,
		"size_human":   nil,
		"mime_type":    mt,
		"encoding":     nil,
		"modified":     info.ModTime().UTC().Format(time.RFC3339),
		"mode":         fmt.Sprintf("%#o", info.Mode().Perm()),
		"extension":    nil,
	}
	if isFile {
		ext := strings.ToLower(filepath.Ext(resolved))
		out["size"] = info.Size()
		out["size_human"] = humanize.Bytes(uint64(info.Size()))
		out["extension"] = ext
		if enc, ok := contentEncodings[ext]; ok {
			out["encoding"] = enc
		}
	}
	return out, nil
}
