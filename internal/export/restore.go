package export

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/valyala/fastjson"

	"github.com/sadopc/alertlog/internal/feed"
)

var parsers fastjson.ParserPool

// ReadRestore loads a backup file for upload. The only check is that the
// document is a JSON array; its items are passed through untouched.
// Files ending in .zst are decompressed first.
func ReadRestore(path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read restore file: %w", err)
	}

	if strings.HasSuffix(path, zstdExt) {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		defer dec.Close()
		data, err = dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: decompress: %v", feed.ErrMalformed, err)
		}
	}

	p := parsers.Get()
	defer parsers.Put(p)

	v, err := p.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", feed.ErrMalformed, err)
	}
	if v.Type() != fastjson.TypeArray {
		return nil, fmt.Errorf("%w: restore file must hold a JSON array, got %s", feed.ErrMalformed, v.Type())
	}
	return json.RawMessage(data), nil
}

// CountItems returns the number of elements in a restore payload.
func CountItems(raw json.RawMessage) int {
	p := parsers.Get()
	defer parsers.Put(p)

	v, err := p.ParseBytes(raw)
	if err != nil {
		return 0
	}
	arr, err := v.Array()
	if err != nil {
		return 0
	}
	return len(arr)
}
