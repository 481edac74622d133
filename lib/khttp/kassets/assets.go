// Package kassets serves static assets compiled into the binary.
package kassets

import (
	"bytes"
	"mime"
	"net/http"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ccontavalli/webauth/lib/khttp"
)

// AssetMapper is invoked for each asset to be registered.
//
// original is the path of the asset in the map, name is the URL path it
// should be served at. It returns the list of URL paths actually registered.
type AssetMapper func(original, name string, handler khttp.FuncHandler) []string

// Mux is anything capable of registering handler functions.
type Mux interface {
	HandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request))
}

// MuxMapper registers each asset in mux under its name.
func MuxMapper(mux Mux) AssetMapper {
	return func(original, name string, handler khttp.FuncHandler) []string {
		mux.HandleFunc(name, handler)
		return []string{name}
	}
}

// PrefixMapper mounts assets under a URL prefix.
func PrefixMapper(prefix string, mapper AssetMapper) AssetMapper {
	prefix = strings.TrimSuffix(prefix, "/")
	return func(original, name string, handler khttp.FuncHandler) []string {
		return mapper(original, prefix+name, handler)
	}
}

// ServeContent returns a handler serving data as the file name.
func ServeContent(name string, data []byte, modtime time.Time) khttp.FuncHandler {
	ctype := mime.TypeByExtension(filepath.Ext(name))
	return func(w http.ResponseWriter, r *http.Request) {
		if ctype != "" {
			w.Header().Set("Content-Type", ctype)
		}
		w.Header().Set("Cache-Control", "max-age=3600")
		http.ServeContent(w, r, name, modtime, bytes.NewReader(data))
	}
}

// RegisterAssets invokes mapper for each asset, in lexicographic order.
//
// Returns the URL paths registered.
func RegisterAssets(assets map[string][]byte, mapper AssetMapper) []string {
	names := make([]string, 0, len(assets))
	for name := range assets {
		names = append(names, name)
	}
	sort.Strings(names)

	started := time.Now()
	var registered []string
	for _, original := range names {
		name := path.Clean("/" + original)
		registered = append(registered, mapper(original, name, ServeContent(name, assets[original], started))...)
	}
	return registered
}
