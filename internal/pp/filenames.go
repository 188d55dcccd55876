package pp

// cachedFilename is one node of the filename intern cache. The cache is a
// linear list: filenames are few (one per distinct translation unit) and are
// never removed before teardown, so lookup cost is irrelevant next to the
// stable-identity guarantee.
type cachedFilename struct {
	filename string
	next     *cachedFilename
}

// internFilename returns a pointer that is identical for any two byte-equal
// names, so tokens and include frames can carry a cheap reference to their
// origin. Returns nil on empty input or on allocation failure (which latches
// the out-of-memory state).
func (p *Preprocessor) internFilename(name string) *string {
	if name == "" {
		return nil
	}
	for item := p.filenameCache; item != nil; item = item.next {
		if item.filename == name {
			return &item.filename
		}
	}
	buf := p.allocBytes(len(name))
	if buf == nil {
		return nil
	}
	copy(buf, name)
	item := &cachedFilename{filename: string(buf), next: p.filenameCache}
	p.alloc.Free(buf)
	p.filenameCache = item
	return &item.filename
}

// freeFilenameCache drains the cache at teardown.
func (p *Preprocessor) freeFilenameCache() {
	p.filenameCache = nil
}
