package gateways

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

type tarEntry struct {
	name     string
	body     string
	mode     int64
	typeflag byte
	linkname string
}

// writeArchive builds a tar archive compressed according to path's suffix
func writeArchive(t *testing.T, path string, entries []tarEntry) {
	t.Helper()

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		typeflag := e.typeflag
		if typeflag == 0 {
			typeflag = tar.TypeReg
			if strings.HasSuffix(e.name, "/") {
				typeflag = tar.TypeDir
			}
		}
		mode := e.mode
		if mode == 0 {
			mode = 0644
			if typeflag == tar.TypeDir {
				mode = 0755
			}
		}
		hdr := &tar.Header{
			Name:     e.name,
			Mode:     mode,
			Typeflag: typeflag,
			Linkname: e.linkname,
		}
		if typeflag == tar.TypeReg {
			hdr.Size = int64(len(e.body))
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())

	var out bytes.Buffer
	switch {
	case strings.HasSuffix(path, ".tar.gz"):
		gw := gzip.NewWriter(&out)
		_, err := io.Copy(gw, &buf)
		require.NoError(t, err)
		require.NoError(t, gw.Close())
	case strings.HasSuffix(path, ".tar.xz"):
		xw, err := xz.NewWriter(&out)
		require.NoError(t, err)
		_, err = io.Copy(xw, &buf)
		require.NoError(t, err)
		require.NoError(t, xw.Close())
	case strings.HasSuffix(path, ".tar.zst"):
		zw, err := zstd.NewWriter(&out)
		require.NoError(t, err)
		_, err = io.Copy(zw, &buf)
		require.NoError(t, err)
		require.NoError(t, zw.Close())
	default:
		out = buf
	}

	require.NoError(t, os.WriteFile(path, out.Bytes(), 0600))
}
