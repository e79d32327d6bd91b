package types

import (
	"bytes"
	"database/sql/driver"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	wgs84SRID     = 4326
	earthRadiusKm = 6371.0

	wkbPoint    = 1
	ewkbSRIDBit = 0x20000000
)

// GeographyPoint is a WGS84 lat/lng pair stored in a PostGIS geography
// column. SQLite keeps the EWKT text.
type GeographyPoint struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lng float64 `json:"lng" validate:"longitude"`
}

func (g GeographyPoint) Valid() bool {
	return g.Lat >= -90 && g.Lat <= 90 && g.Lng >= -180 && g.Lng <= 180
}

// Value writes EWKT, which PostGIS casts to geography on insert.
func (g GeographyPoint) Value() (driver.Value, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("geography: point out of range (%v, %v)", g.Lat, g.Lng)
	}
	return fmt.Sprintf("SRID=%d;POINT(%s %s)", wgs84SRID, formatCoord(g.Lng), formatCoord(g.Lat)), nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Scan reads EWKT text, hex EWKB as PostGIS returns it over the text
// protocol, or raw (E)WKB bytes.
func (g *GeographyPoint) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*g = GeographyPoint{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("geography: cannot scan %T", src)
	}

	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) == 0:
		return errors.New("geography: empty value")
	case trimmed[0] == 0 || trimmed[0] == 1:
		return g.decodeWKB(trimmed)
	case isHex(trimmed):
		decoded := make([]byte, hex.DecodedLen(len(trimmed)))
		if _, err := hex.Decode(decoded, trimmed); err != nil {
			return fmt.Errorf("geography: decode hex: %w", err)
		}
		return g.decodeWKB(decoded)
	default:
		return g.decodeText(string(trimmed))
	}
}

func isHex(b []byte) bool {
	if len(b)%2 != 0 {
		return false
	}
	for _, c := range b {
		if !strings.ContainsRune("0123456789abcdefABCDEF", rune(c)) {
			return false
		}
	}
	return true
}

func (g *GeographyPoint) decodeText(text string) error {
	if head, rest, ok := strings.Cut(text, ";"); ok && strings.HasPrefix(strings.ToUpper(head), "SRID=") {
		text = rest
	}
	text = strings.TrimSpace(text)
	body, ok := strings.CutPrefix(strings.ToUpper(text), "POINT(")
	if !ok || !strings.HasSuffix(body, ")") {
		return fmt.Errorf("geography: not a point %q", text)
	}
	coords := strings.Fields(strings.TrimSuffix(body, ")"))
	if len(coords) != 2 {
		return fmt.Errorf("geography: want 2 coordinates, got %d", len(coords))
	}
	lng, err := strconv.ParseFloat(coords[0], 64)
	if err != nil {
		return fmt.Errorf("geography: longitude: %w", err)
	}
	lat, err := strconv.ParseFloat(coords[1], 64)
	if err != nil {
		return fmt.Errorf("geography: latitude: %w", err)
	}
	*g = GeographyPoint{Lat: lat, Lng: lng}
	return nil
}

// decodeWKB handles plain WKB and PostGIS EWKB with an embedded SRID.
func (g *GeographyPoint) decodeWKB(raw []byte) error {
	if len(raw) < 5 {
		return errors.New("geography: wkb header truncated")
	}
	var order binary.ByteOrder = binary.LittleEndian
	if raw[0] == 0 {
		order = binary.BigEndian
	}
	kind := order.Uint32(raw[1:5])
	offset := 5
	if kind&ewkbSRIDBit != 0 {
		offset += 4
	}
	if kind&0xffff != wkbPoint {
		return fmt.Errorf("geography: geometry type %d is not a point", kind&0xffff)
	}
	if len(raw) < offset+16 {
		return errors.New("geography: wkb point truncated")
	}
	*g = GeographyPoint{
		Lng: math.Float64frombits(order.Uint64(raw[offset : offset+8])),
		Lat: math.Float64frombits(order.Uint64(raw[offset+8 : offset+16])),
	}
	return nil
}

// DistanceKm is the haversine distance to other.
func (g GeographyPoint) DistanceKm(other GeographyPoint) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := rad(other.Lat - g.Lat)
	dLng := rad(other.Lng - g.Lng)
	h := math.Pow(math.Sin(dLat/2), 2) + math.Cos(rad(g.Lat))*math.Cos(rad(other.Lat))*math.Pow(math.Sin(dLng/2), 2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}
