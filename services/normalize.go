package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"rentscout/models"
)

// ErrMalformedRecord marks a store document that cannot become a Listing.
var ErrMalformedRecord = errors.New("malformed record")

const (
	PlaceholderTitle   = "Untitled listing"
	PlaceholderAddress = "Address not available"
	PlaceholderCity    = "Unknown city"
)

// Field name variants seen in the collection, preferred first.
var (
	idKeys          = []string{"id", "_id", "uid"}
	titleKeys       = []string{"title", "titolo", "name"}
	descriptionKeys = []string{"description", "descrizione"}
	addressKeys     = []string{"address", "indirizzo"}
	cityKeys        = []string{"city", "citta", "città"}
	priceKeys       = []string{"price", "prezzo", "rent", "affitto"}
	typeKeys        = []string{"type", "tipo", "propertyType", "property_type"}
	sizeKeys        = []string{"size", "mq", "sqm", "superficie"}
	roomsKeys       = []string{"rooms", "locali", "stanze"}
	bathroomsKeys   = []string{"bathrooms", "bagni"}
	monthsKeys      = []string{"months", "mesi", "minStay", "min_stay", "minimumStay"}
	imagesKeys      = []string{"images", "foto", "photos", "immagini"}
	latKeys         = []string{"latitude", "lat"}
	lngKeys         = []string{"longitude", "lng", "lon"}
	locationKeys    = []string{"location", "coordinates", "posizione"}
	createdKeys     = []string{"createdAt", "created_at", "dataCreazione"}
	updatedKeys     = []string{"updatedAt", "updated_at"}
	availableKeys   = []string{"available", "disponibile", "isAvailable"}
)

var (
	multiSpaceRegex = regexp.MustCompile(`\s+`)
	numberRegex     = regexp.MustCompile(`-?[0-9][0-9.,]*`)
)

// NormalizeStats counts what happened to a batch of records.
type NormalizeStats struct {
	Fetched         int
	Dropped         int
	InvalidLocation int
}

// Normalize converts raw documents into listings. Malformed records and
// repeated ids are dropped; records without a usable position are kept.
func Normalize(records []models.RawRecord, logger zerolog.Logger) ([]models.Listing, NormalizeStats) {
	stats := NormalizeStats{Fetched: len(records)}
	listings := make([]models.Listing, 0, len(records))
	seen := make(map[string]struct{}, len(records))

	for i, r := range records {
		l, err := NormalizeRecord(r)
		if err != nil {
			stats.Dropped++
			logger.Debug().Err(err).Int("index", i).Msg("dropping record")
			continue
		}
		if _, dup := seen[l.ID]; dup {
			stats.Dropped++
			logger.Debug().Str("id", l.ID).Msg("dropping duplicate record")
			continue
		}
		seen[l.ID] = struct{}{}

		if v := pick(r, priceKeys...); v != nil {
			if _, ok := asPrice(v); !ok {
				logger.Debug().Str("id", l.ID).Interface("price", v).Msg("unparseable price, using 0")
			}
		}

		if _, ok := l.Coordinate(); !ok {
			stats.InvalidLocation++
			logger.Warn().Str("id", l.ID).Msg("listing has no usable location")
		}
		listings = append(listings, l)
	}

	return listings, stats
}

// NormalizeRecord converts one raw document. Missing display strings get
// placeholders, numeric strings are parsed and out of range coordinates
// are cleared.
func NormalizeRecord(r models.RawRecord) (models.Listing, error) {
	if r == nil {
		return models.Listing{}, fmt.Errorf("%w: empty document", ErrMalformedRecord)
	}

	id := strings.TrimSpace(asString(pick(r, idKeys...)))
	if id == "" {
		return models.Listing{}, fmt.Errorf("%w: missing id", ErrMalformedRecord)
	}

	l := models.Listing{
		ID:          id,
		Title:       textOr(pick(r, titleKeys...), PlaceholderTitle),
		Description: stripHTML(asString(pick(r, descriptionKeys...))),
		Address:     textOr(pick(r, addressKeys...), PlaceholderAddress),
		City:        textOr(pick(r, cityKeys...), PlaceholderCity),
		Type:        strings.ToLower(strings.TrimSpace(asString(pick(r, typeKeys...)))),
		Images:      asStrings(pick(r, imagesKeys...)),
		Available:   true,
	}

	// "on request" and similar text leave the price at 0
	if v := pick(r, priceKeys...); v != nil {
		price, ok := asPrice(v)
		if ok && price < 0 {
			return models.Listing{}, fmt.Errorf("%w: %s: negative price", ErrMalformedRecord, id)
		}
		if ok {
			l.Price = price
		}
	}

	l.Size = nonNegativeFloat(pick(r, sizeKeys...))
	l.Rooms = nonNegativeInt(pick(r, roomsKeys...))
	l.Bathrooms = nonNegativeInt(pick(r, bathroomsKeys...))
	l.Months = nonNegativeInt(pick(r, monthsKeys...))

	l.Latitude, l.Longitude = coordinates(r)

	if t, ok := asTime(pick(r, createdKeys...)); ok {
		l.CreatedAt = t
	}
	l.UpdatedAt = l.CreatedAt
	if t, ok := asTime(pick(r, updatedKeys...)); ok {
		l.UpdatedAt = t
	}
	if b, ok := asBool(pick(r, availableKeys...)); ok {
		l.Available = b
	}

	return l, nil
}

// pick returns the first non-nil value among keys.
func pick(r models.RawRecord, keys ...string) any {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func coordinates(r models.RawRecord) (*float64, *float64) {
	latV, lngV := pick(r, latKeys...), pick(r, lngKeys...)
	if latV == nil || lngV == nil {
		if nested, ok := pick(r, locationKeys...).(map[string]any); ok {
			latV, lngV = pick(nested, latKeys...), pick(nested, lngKeys...)
		}
	}

	lat, okLat := asFloat(latV)
	lng, okLng := asFloat(lngV)
	if !okLat || !okLng {
		return nil, nil
	}
	if !(models.Coordinate{Lat: lat, Lng: lng}).Valid() {
		return nil, nil
	}
	return &lat, &lng
}

func textOr(v any, placeholder string) string {
	s := multiSpaceRegex.ReplaceAllString(strings.TrimSpace(asString(v)), " ")
	if s == "" {
		return placeholder
	}
	return s
}

// stripHTML returns the text content of an HTML fragment, whitespace collapsed.
func stripHTML(s string) string {
	if strings.ContainsRune(s, '<') {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			s = doc.Text()
		}
	}
	return strings.TrimSpace(multiSpaceRegex.ReplaceAllString(s, " "))
}

func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, !math.IsNaN(x) && !math.IsInf(x, 0)
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return f, true
		}
		return parseNumber(x)
	}
	return 0, false
}

// asPrice is asFloat, except that strings always go through parseNumber so
// that "1.200" reads as twelve hundred.
func asPrice(v any) (float64, bool) {
	if s, ok := v.(string); ok {
		return parseNumber(s)
	}
	return asFloat(v)
}

// parseNumber reads the first number in s, accepting currency symbols and
// both "1.200,50" and "1,200.50" grouping.
func parseNumber(s string) (float64, bool) {
	m := numberRegex.FindString(strings.ReplaceAll(s, " ", ""))
	if m == "" {
		return 0, false
	}
	m = strings.TrimRight(m, ".,")

	dot, comma := strings.LastIndex(m, "."), strings.LastIndex(m, ",")
	switch {
	case dot >= 0 && comma >= 0:
		if comma > dot {
			m = strings.ReplaceAll(m, ".", "")
			m = strings.Replace(m, ",", ".", 1)
		} else {
			m = strings.ReplaceAll(m, ",", "")
		}
	case comma >= 0:
		if strings.Count(m, ",") == 1 && len(m)-comma-1 <= 2 {
			m = strings.Replace(m, ",", ".", 1)
		} else {
			m = strings.ReplaceAll(m, ",", "")
		}
	case dot >= 0:
		if strings.Count(m, ".") > 1 || len(m)-dot-1 == 3 {
			m = strings.ReplaceAll(m, ".", "")
		}
	}

	f, err := strconv.ParseFloat(m, 64)
	return f, err == nil
}

func nonNegativeFloat(v any) *float64 {
	f, ok := asFloat(v)
	if !ok || f < 0 {
		return nil
	}
	return &f
}

func nonNegativeInt(v any) *int {
	f, ok := asFloat(v)
	if !ok || f < 0 {
		return nil
	}
	n := int(math.Round(f))
	return &n
}

func asBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case float64:
		return x != 0, true
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "yes", "si", "sì", "1":
			return true, true
		case "false", "no", "0":
			return false, true
		}
	}
	return false, false
}

func asStrings(v any) []string {
	out := []string{}
	switch x := v.(type) {
	case string:
		if s := strings.TrimSpace(x); s != "" {
			out = append(out, s)
		}
	case []string:
		for _, s := range x {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case []any:
		for _, item := range x {
			s, ok := item.(string)
			if !ok {
				if m, isMap := item.(map[string]any); isMap {
					s = asString(pick(m, "url", "src"))
				}
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
}

// asTime accepts layout strings, unix seconds or milliseconds, and
// {seconds, nanoseconds} timestamp objects.
func asTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return unixTime(f), true
		}
	case map[string]any:
		secs, ok := asFloat(pick(x, "seconds", "_seconds"))
		if !ok {
			return time.Time{}, false
		}
		nanos, _ := asFloat(pick(x, "nanoseconds", "_nanoseconds"))
		return time.Unix(int64(secs), int64(nanos)).UTC(), true
	default:
		if f, ok := asFloat(x); ok {
			return unixTime(f), true
		}
	}
	return time.Time{}, false
}

func unixTime(f float64) time.Time {
	if f > 1e12 {
		return time.UnixMilli(int64(f)).UTC()
	}
	return time.Unix(int64(f), 0).UTC()
}
