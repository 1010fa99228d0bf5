package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/anacrolix/torrent/bencode"
	"github.com/anacrolix/torrent/metainfo"
)

const torrentPieceLength = 512 * 1024

// ExportTorrent builds a .torrent for an already-exported path and returns
// its path plus a magnet URI. This is an optional enrichment of Export: no
// tracker is contacted and nothing is seeded, it only produces a shareable
// metainfo bundle for handing off a prepared export.
func ExportTorrent(path string) (torrentPath, magnet string, err error) {
	info := metainfo.Info{
		PieceLength: torrentPieceLength,
		Name:        filepath.Base(path),
	}
	if err := info.BuildFromFilePath(path); err != nil {
		return "", "", fmt.Errorf("failed to build torrent info from %s: %w", path, err)
	}

	mi := metainfo.MetaInfo{CreatedBy: "modelsync"}
	mi.InfoBytes, err = bencode.Marshal(info)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode torrent info: %w", err)
	}

	torrentPath = path + ".torrent"
	f, err := os.Create(torrentPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to create torrent file: %w", err)
	}
	defer f.Close()
	if err := mi.Write(f); err != nil {
		return "", "", fmt.Errorf("failed to write torrent file: %w", err)
	}

	ih := mi.HashInfoBytes()
	magnet = fmt.Sprintf("magnet:?xt=urn:btih:%s&dn=%s", ih.HexString(), filepath.Base(path))
	return torrentPath, magnet, nil
}
