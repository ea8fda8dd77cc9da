package database

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"github.com/jimdaga/briefdesk/internal/briefing"
)

// Importer stores a briefing keeping its original creation time.
// *store.Store implements it.
type Importer interface {
	Import(ctx context.Context, ownerID uint, b briefing.Briefing) (*briefing.Briefing, error)
}

// ImportLegacy reads a JSON array of rows exported from the old briefings
// table and stores each under ownerID. Both row layouts are accepted: flat
// title/content (content a JSON string) and titulo/conteudo (conteudo a JSON
// object). Rows that cannot be decoded are logged and skipped. It returns the
// number of rows imported.
func ImportLegacy(ctx context.Context, dst Importer, ownerID uint, r io.Reader) (int, error) {
	var rows []json.RawMessage
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return 0, fmt.Errorf("failed to read legacy export: %w", err)
	}

	imported := 0
	for i, raw := range rows {
		b, err := briefing.DecodeRow(raw)
		if err != nil {
			log.Printf("Warning: skipping legacy row %d: %v", i, err)
			continue
		}
		if _, err := dst.Import(ctx, ownerID, b); err != nil {
			return imported, fmt.Errorf("failed to import legacy row %d: %w", i, err)
		}
		imported++
	}

	log.Printf("Imported %d of %d legacy briefings", imported, len(rows))
	return imported, nil
}
