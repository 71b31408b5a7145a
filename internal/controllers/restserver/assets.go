package restserver

import (
	"embed"
	"io/fs"
	"os"
)

//go:embed all:assets
var assetsFS embed.FS

// GetAssets returns the dashboard assets. Setting CYCLEHIRE_RESTSERVER_ASSETS_DIR
// serves them from disk instead, so page edits show up without a rebuild.
func GetAssets() fs.FS {
	if dir := os.Getenv("CYCLEHIRE_RESTSERVER_ASSETS_DIR"); dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return os.DirFS(dir)
		}
	}

	assets, err := fs.Sub(assetsFS, "assets")
	if err != nil {
		panic("failed to create assets sub-filesystem: " + err.Error())
	}
	return assets
}
