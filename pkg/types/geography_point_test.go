package types

import (
	"encoding/binary"
	"encoding/hex"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

var soweto = GeographyPoint{Lat: -26.2485, Lng: 27.854}

func TestGeographyPointValueRoundTrip(t *testing.T) {
	raw, err := soweto.Value()
	require.NoError(t, err)
	require.Equal(t, "SRID=4326;POINT(27.854 -26.2485)", raw)

	var out GeographyPoint
	require.NoError(t, out.Scan(raw))
	require.Equal(t, soweto, out)

	require.NoError(t, out.Scan([]byte("point(28.1 -25.7)")))
	require.Equal(t, GeographyPoint{Lat: -25.7, Lng: 28.1}, out)
}

func TestGeographyPointRejectsOutOfRange(t *testing.T) {
	_, err := GeographyPoint{Lat: 91}.Value()
	require.Error(t, err)
}

func ewkb(order binary.ByteOrder, p GeographyPoint) []byte {
	buf := make([]byte, 25)
	if order == binary.LittleEndian {
		buf[0] = 1
	}
	order.PutUint32(buf[1:5], wkbPoint|ewkbSRIDBit)
	order.PutUint32(buf[5:9], wgs84SRID)
	order.PutUint64(buf[9:17], math.Float64bits(p.Lng))
	order.PutUint64(buf[17:25], math.Float64bits(p.Lat))
	return buf
}

func TestGeographyPointScansEWKB(t *testing.T) {
	var out GeographyPoint
	require.NoError(t, out.Scan(ewkb(binary.LittleEndian, soweto)))
	require.Equal(t, soweto, out)

	require.NoError(t, out.Scan(hex.EncodeToString(ewkb(binary.BigEndian, soweto))))
	require.Equal(t, soweto, out)

	require.Error(t, out.Scan([]byte{1, 2, 0, 0, 0}))
	require.Error(t, out.Scan("LINESTRING(0 0, 1 1)"))
	require.Error(t, out.Scan(42))

	require.NoError(t, out.Scan(nil))
	require.Equal(t, GeographyPoint{}, out)
}

func TestGeographyPointDistanceKm(t *testing.T) {
	alexandra := GeographyPoint{Lat: -26.1036, Lng: 28.0981}
	require.InDelta(t, 29, soweto.DistanceKm(alexandra), 1)
	require.Zero(t, soweto.DistanceKm(soweto))
}
