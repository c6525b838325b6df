package app

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/yourusername/matchedge/internal/models"
)

// ReadMatches decodes a JSON array of settled historical matches.
func ReadMatches(path string) ([]*models.HistoricalMatch, error) {
	var matches []*models.HistoricalMatch
	if err := readJSON(path, &matches); err != nil {
		return nil, err
	}
	return matches, nil
}

// ReadMatchContext decodes a single pre-match context.
func ReadMatchContext(path string) (*models.RawMatchContext, error) {
	var mc models.RawMatchContext
	if err := readJSON(path, &mc); err != nil {
		return nil, err
	}
	return &mc, nil
}

func readJSON(path string, v interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// WriteJSON prints v indented to w.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
