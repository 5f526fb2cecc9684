package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"wishlist-bot/internal/apperr"
)

const maxBodyBytes = 1 << 20

// patch keeps the raw members of a JSON object so absent keys can be told apart
// from explicit nulls.
type patch map[string]json.RawMessage

func decodePatch(r *http.Request) (patch, error) {
	p := patch{}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&p)
	if errors.Is(err, io.EOF) {
		return p, nil
	}
	if err != nil {
		return nil, apperr.Validation("malformed JSON body: %v", err)
	}
	return p, nil
}

// field decodes key into a new T; it returns nil when the key is absent.
func field[T any](p patch, key string) (*T, error) {
	raw, ok := p[key]
	if !ok {
		return nil, nil
	}
	v := new(T)
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, apperr.Validation("invalid %s: %v", key, err)
	}
	return v, nil
}

// bodyID decodes a numeric identifier given either as a JSON number or a string.
func bodyID(p patch, key string) (*uint, error) {
	n, err := field[json.Number](p, key)
	if err != nil || n == nil || *n == "" {
		return nil, err
	}
	v, err := strconv.ParseUint(n.String(), 10, 64)
	if err != nil || v == 0 {
		return nil, apperr.Validation("%s must be a positive integer", key)
	}
	u := uint(v)
	return &u, nil
}

func telegramID(p patch, key string) (*int64, error) {
	n, err := field[json.Number](p, key)
	if err != nil || n == nil || *n == "" {
		return nil, err
	}
	v, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil || v <= 0 {
		return nil, apperr.Validation("%s must be a positive integer", key)
	}
	return &v, nil
}

// startParam accepts the Telegram start parameter as a string or a number.
func startParam(p patch) string {
	raw, ok := p["start_param"]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func pathID(r *http.Request, key string) (uint, error) {
	raw := chi.URLParam(r, key)
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		return 0, apperr.Validation("invalid id %q", raw)
	}
	return uint(v), nil
}

// queryUint reads an optional numeric query parameter.
func queryUint(r *http.Request, key string) (*uint, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, apperr.Validation("%s must be a positive integer", key)
	}
	u := uint(v)
	return &u, nil
}

func queryInt64(r *http.Request, key string) (*int64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, apperr.Validation("%s must be an integer", key)
	}
	return &v, nil
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation("%s must be an integer", key)
	}
	return v, nil
}
