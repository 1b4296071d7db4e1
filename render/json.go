package render

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dukerupert/checkmate"
	"github.com/gowebpki/jcs"
)

// JSON renders reports as RFC 8785 canonical JSON, so equal reports always
// produce identical bytes.
type JSON struct{}

// NewJSON creates a canonical JSON renderer.
func NewJSON() *JSON { return &JSON{} }

func (j *JSON) ContentType() string { return "application/json" }

func (j *JSON) Render(ctx context.Context, w io.Writer, r *checkmate.Report) error {
	canonical, err := Canonical(r)
	if err != nil {
		return err
	}
	_, err = w.Write(canonical)
	return err
}

// Canonical returns the canonical JSON encoding of a report.
func Canonical(r *checkmate.Report) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	canonical, err := jcs.Transform(data)
	if err != nil {
		return nil, fmt.Errorf("canonicalize report: %w", err)
	}
	return canonical, nil
}

// Digest returns the hex sha256 of the report's canonical JSON.
func Digest(r *checkmate.Report) (string, error) {
	canonical, err := Canonical(r)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
