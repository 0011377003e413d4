package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"abstractor/internal/chain"
	"abstractor/internal/fileutil"
	"abstractor/internal/risk"
	"abstractor/internal/services"
)

// RecordSet is everything a record source collects for one property.
type RecordSet struct {
	ChainEntries []chain.Entry      `json:"chain_entries"`
	Encumbrances []risk.Encumbrance `json:"encumbrances"`
}

// Request identifies the property a record source should collect for.
type Request struct {
	SearchID        int64
	PropertyAddress string
	County          string
	ParcelNumber    string
}

// RecordSource is the injected document collection capability. County
// recorder scraping adapters implement this; the built-in DirectorySource
// serves manual uploads and tests.
type RecordSource interface {
	// Fetch collects the record set for a property. Implementations report
	// transient infrastructure failures with services.ErrTransient so the
	// pipeline can retry them.
	Fetch(ctx context.Context, req Request) (*RecordSet, error)

	// Describe names the source for health reporting.
	Describe() string
}

// DirectorySource reads record sets dropped as JSON files into an ingest
// directory, named record-<search-id>.json. It backs the manual document
// upload recovery path.
type DirectorySource struct {
	dir string
}

// NewDirectorySource builds a source over the given ingest directory.
func NewDirectorySource(dir string) *DirectorySource {
	return &DirectorySource{dir: dir}
}

// DropPath returns the path a record set for the given search must be
// placed at for pickup.
func (d *DirectorySource) DropPath(searchID int64) string {
	return filepath.Join(d.dir, fmt.Sprintf("record-%d.json", searchID))
}

// Fetch loads the dropped record set for the search. A missing drop is a
// persistent failure: retrying without operator action cannot succeed.
func (d *DirectorySource) Fetch(ctx context.Context, req Request) (*RecordSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := d.DropPath(req.SearchID)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrPersistent, "scraping", "load records",
				fmt.Sprintf("no record drop found at %s; upload documents and retry", path), err)
		}
		return nil, services.Wrap(services.ErrTransient, "scraping", "load records",
			"record drop unreadable", err)
	}
	var records RecordSet
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, services.Wrap(services.ErrPersistent, "scraping", "parse records",
			"record drop is malformed", err)
	}
	d.archive(path)
	return &records, nil
}

// archive moves a consumed drop into the processed subdirectory so a fresh
// upload for the same search is never shadowed by stale records. Archiving is
// best effort; the records are already in hand.
func (d *DirectorySource) archive(path string) {
	processed := filepath.Join(d.dir, "processed")
	if err := os.MkdirAll(processed, 0o755); err != nil {
		return
	}
	dst := filepath.Join(processed, filepath.Base(path))
	if err := fileutil.CopyFileVerified(path, dst); err != nil {
		return
	}
	_ = os.Remove(path)
}

// Describe names the source for health reporting.
func (d *DirectorySource) Describe() string {
	return fmt.Sprintf("directory source at %s", d.dir)
}
