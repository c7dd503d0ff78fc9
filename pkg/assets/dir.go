package assets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Nephrolytics-ai/sheetscribe/pkg/model"
	"github.com/Nephrolytics-ai/sheetscribe/pkg/utils"
)

// DirStore serves assets from a local directory. An asset id matches a file
// named exactly after it or after it plus any extension.
type DirStore struct {
	root string
}

func NewDirStore(root string) (*DirStore, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	if !info.IsDir() {
		return nil, utils.WrapIfNotNil(fmt.Errorf("%s is not a directory", root))
	}
	return &DirStore{root: root}, nil
}

func (d *DirStore) FetchBytes(_ context.Context, assetID string) ([]byte, error) {
	if strings.TrimSpace(assetID) == "" || strings.ContainsAny(assetID, `/\`) || assetID == "." || assetID == ".." {
		return nil, utils.WrapIfNotNil(fmt.Errorf("invalid asset id %q", assetID))
	}

	path, err := d.resolve(assetID)
	if err != nil {
		return nil, utils.WrapIfNotNil(err, assetID)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, utils.WrapIfNotNil(err, assetID)
	}
	return data, nil
}

func (d *DirStore) resolve(assetID string) (string, error) {
	exact := filepath.Join(d.root, assetID)
	if info, err := os.Stat(exact); err == nil && !info.IsDir() {
		return exact, nil
	}

	matches, err := filepath.Glob(filepath.Join(d.root, escapeGlob(assetID)+".*"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", model.ErrAssetNotFound
	}
	sort.Strings(matches)
	return matches[0], nil
}

func escapeGlob(s string) string {
	replacer := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`)
	return replacer.Replace(s)
}

var _ model.AssetStore = (*DirStore)(nil)
