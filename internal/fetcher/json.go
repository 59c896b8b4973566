package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

// DecodeJSONArray streams the elements of a top-level JSON array over a
// channel. Both channels are closed when decoding stops. A body that is not
// an array yields an error.
func DecodeJSONArray[T any](ctx context.Context, r io.Reader) (<-chan T, <-chan error) {
	out := make(chan T, 64)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		dec := json.NewDecoder(r)
		tok, err := dec.Token()
		if err == io.EOF {
			return
		}
		if err != nil {
			errc <- eris.Wrap(err, "json: read opening token")
			return
		}
		if delim, ok := tok.(json.Delim); !ok || delim != '[' {
			errc <- eris.Errorf("json: expected array, got %v", tok)
			return
		}

		for dec.More() {
			var item T
			if err := dec.Decode(&item); err != nil {
				errc <- eris.Wrap(err, "json: decode element")
				return
			}
			select {
			case out <- item:
			case <-ctx.Done():
				errc <- eris.Wrap(ctx.Err(), "json: context cancelled")
				return
			}
		}
		if _, err := dec.Token(); err != nil && err != io.EOF {
			errc <- eris.Wrap(err, "json: read closing token")
		}
	}()

	return out, errc
}

// CollectJSONArray drains DecodeJSONArray over data into a slice.
func CollectJSONArray[T any](ctx context.Context, data []byte) ([]T, error) {
	items, errc := DecodeJSONArray[T](ctx, bytes.NewReader(data))
	var out []T
	for item := range items {
		out = append(out, item)
	}
	if err := <-errc; err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeJSONObject decodes a single JSON object.
func DecodeJSONObject[T any](data []byte) (*T, error) {
	var obj T
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, eris.Wrap(err, "json: decode object")
	}
	return &obj, nil
}
