package eynfs

import "strings"

// TraverseResult is what TraversePath resolves a path to: the entry
// itself plus the head block of the directory that contains it and the
// entry's index within that directory (needed to persist in-place
// updates, e.g. after a write changes size) — design §4.7.
type TraverseResult struct {
	Entry      DirEntry
	ParentHead uint32
	Index      int
}

// TraversePath resolves an absolute path to its entry. The single path
// "/" resolves to a synthetic entry describing the root directory
// (design §4.7). Components are resolved one at a time via FindInDir,
// starting at the root; a non-final component that is not a directory
// yields NotADirectory. Normalisation ("." , "..", repeated "/") is the
// caller's responsibility — this function treats names literally.
func (fs *FS) TraversePath(path string) (TraverseResult, error) {
	if len(path) == 0 || path[0] != '/' {
		return TraverseResult{}, &LogicalError{Kind: InvalidPath, Path: path}
	}
	if path == "/" {
		return TraverseResult{
			Entry: DirEntry{
				Type:       TypeDir,
				FirstBlock: fs.sb.RootDirBlock,
			},
			ParentHead: 0,
			Index:      0,
		}, nil
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	head := fs.sb.RootDirBlock
	var (
		entry      DirEntry
		parentHead uint32
		index      int
	)
	for i, part := range parts {
		if part == "" {
			return TraverseResult{}, &LogicalError{Kind: InvalidPath, Path: path}
		}
		e, idx, err := fs.FindInDir(head, part)
		if err != nil {
			return TraverseResult{}, err
		}
		if i != len(parts)-1 && e.Type != TypeDir {
			return TraverseResult{}, &LogicalError{Kind: NotADirectory, Path: path}
		}
		entry = e
		parentHead = head
		index = idx
		head = e.FirstBlock
	}
	return TraverseResult{Entry: entry, ParentHead: parentHead, Index: index}, nil
}

// SplitParent splits an absolute path into its parent directory path and
// base name, e.g. "/docs/note.txt" -> ("/docs", "note.txt").
func SplitParent(path string) (parent, base string) {
	trimmed := strings.TrimRight(path, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx <= 0 {
		return "/", trimmed[idx+1:]
	}
	return trimmed[:idx], trimmed[idx+1:]
}
