package storage

import (
	"context"

	"rentscout/models"
)

// SeedStore serves a small fixed listing set. It backs the "seed" driver
// and is the fallback dataset of the fetch guard.
type SeedStore struct{}

func NewSeedStore() *SeedStore {
	return &SeedStore{}
}

func (s *SeedStore) Name() string {
	return "seed"
}

func (s *SeedStore) FetchAll(ctx context.Context) ([]models.RawRecord, error) {
	return s.Records(), nil
}

// Records returns a fresh copy of the seed documents.
func (s *SeedStore) Records() []models.RawRecord {
	out := make([]models.RawRecord, len(seedRecords))
	for i, r := range seedRecords {
		cp := make(models.RawRecord, len(r))
		for k, v := range r {
			cp[k] = v
		}
		out[i] = cp
	}
	return out
}

var seedRecords = []models.RawRecord{
	{
		"id":          "seed-roma-trastevere",
		"title":       "Bilocale luminoso a Trastevere",
		"description": "<p>Bilocale arredato, <b>ultimo piano</b>, vicino al tram 8.</p>",
		"address":     "Via della Lungaretta 12",
		"city":        "Roma",
		"price":       950,
		"latitude":    41.8893,
		"longitude":   12.4708,
		"type":        "apartment",
		"size":        55,
		"rooms":       2,
		"bathrooms":   1,
		"months":      12,
		"images":      []any{"https://images.example.com/seed/roma-1.jpg"},
		"createdAt":   "2024-05-02T09:00:00Z",
		"available":   true,
	},
	{
		"id":          "seed-milano-citta-studi",
		"titolo":      "Stanza singola Città Studi",
		"descrizione": "Stanza in appartamento condiviso con tre studenti.",
		"indirizzo":   "Via Pascoli 40",
		"città":       "Milano",
		"prezzo":      "€ 600",
		"lat":         45.4781,
		"lng":         9.2262,
		"tipo":        "room",
		"mq":          14,
		"mesi":        6,
		"createdAt":   "2024-05-10T15:30:00Z",
	},
	{
		"id":          "seed-firenze-santo-spirito",
		"title":       "Studio in Santo Spirito",
		"description": "Monolocale ristrutturato a due passi dalla piazza.",
		"address":     "Via Maggio 21",
		"city":        "Firenze",
		"price":       780,
		"latitude":    43.7665,
		"longitude":   11.2486,
		"type":        "studio",
		"size":        32,
		"rooms":       1,
		"bathrooms":   1,
		"months":      3,
		"createdAt":   "2024-04-21T11:00:00Z",
	},
	{
		"id":          "seed-bologna-centro",
		"title":       "Loft in centro storico",
		"description": "Loft open space con soppalco.",
		"address":     "Via del Pratello 7",
		"city":        "Bologna",
		"price":       1100,
		"latitude":    44.4949,
		"longitude":   11.3332,
		"type":        "loft",
		"size":        70,
		"rooms":       2,
		"bathrooms":   1,
		"months":      12,
		"createdAt":   "2024-05-05T08:15:00Z",
	},
	{
		"id":          "seed-napoli-vomero",
		"title":       "Trilocale al Vomero",
		"description": "Trilocale con balcone e vista sul golfo.",
		"address":     "Via Scarlatti 88",
		"city":        "Napoli",
		"price":       850,
		"latitude":    40.8448,
		"longitude":   14.2347,
		"type":        "apartment",
		"size":        85,
		"rooms":       3,
		"bathrooms":   2,
		"months":      12,
		"createdAt":   "2024-04-28T17:45:00Z",
		"available":   true,
	},
}
