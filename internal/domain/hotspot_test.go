package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const firmsSample = `latitude,longitude,bright_ti4,scan,track,acq_date,acq_time,satellite,instrument,confidence,version,bright_ti5,frp,daynight
28.61,77.20,330.5,0.39,0.36,2024-01-03,815,N,VIIRS,80,2.0NRT,290.1,12.3,D
abc,77.30,331.0,0.40,0.37,2024-01-03,0930,N,VIIRS,n,2.0NRT,291.0,5.0,D

28.70,77.10,,0.41,0.38,2024-01-03,1200,N,VIIRS,,2.0NRT,289.9,,N
`

func TestParseHotspots_Sample(t *testing.T) {
	points, drops := ParseHotspots(firmsSample)

	require.Len(t, points, 2)
	assert.Equal(t, 1, drops[DropInvalidCoordinates])

	first := points[0]
	assert.Equal(t, 28.61, first.Latitude)
	assert.Equal(t, 77.20, first.Longitude)
	assert.Equal(t, time.Date(2024, 1, 3, 8, 15, 0, 0, time.UTC), first.DetectedAt)
	require.NotNil(t, first.Confidence)
	assert.Equal(t, "80", *first.Confidence)
	assert.Equal(t, fptr(12.3), first.FRP)
	require.NotNil(t, first.SourceID)
	assert.Equal(t, "firms:330.5:28.61:77.20", *first.SourceID)

	second := points[1]
	assert.Equal(t, 28.70, second.Latitude)
	assert.Equal(t, time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC), second.DetectedAt)
	assert.Nil(t, second.Confidence)
	assert.Nil(t, second.FRP)
	assert.Nil(t, second.SourceID)
}

func TestComposeDetectedAt(t *testing.T) {
	tests := []struct {
		date, hhmm string
		want       string
		wantOK     bool
	}{
		{"2024-01-03", "815", "2024-01-03T0815Z", true},
		{"2024-01-03", "5", "2024-01-03T0005Z", true},
		{"2024-01-03", "1340", "2024-01-03T1340Z", true},
		{"", "815", "", false},
		{"2024-01-03", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.date+"/"+tt.hhmm, func(t *testing.T) {
			got, ok := composeDetectedAt(tt.date, tt.hhmm)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseHotspots_DetectedAtFallback(t *testing.T) {
	now := time.Date(2024, 1, 4, 6, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(now))
	t.Cleanup(func() { SetClock(nil) })

	csv := "latitude,longitude,acq_date,acq_time\n" +
		"28.6,77.2,2024-01-03,\n" +
		"28.6,77.2,,0815\n" +
		"28.6,77.2,2024-01-03,9999\n"

	points, _ := ParseHotspots(csv)
	require.Len(t, points, 3)
	for _, p := range points {
		assert.Equal(t, now, p.DetectedAt)
	}
}

func TestParseHotspots_Tolerance(t *testing.T) {
	t.Run("lat/lon header aliases", func(t *testing.T) {
		points, _ := ParseHotspots("lat,lon,frp\n28.5,77.5,3.5\n")
		require.Len(t, points, 1)
		assert.Equal(t, 28.5, points[0].Latitude)
		assert.Equal(t, fptr(3.5), points[0].FRP)
	})

	t.Run("short row truncates", func(t *testing.T) {
		points, _ := ParseHotspots("latitude,longitude,confidence,frp\n28.5,77.5\n")
		require.Len(t, points, 1)
		assert.Nil(t, points[0].Confidence)
		assert.Nil(t, points[0].FRP)
	})

	t.Run("long row truncates", func(t *testing.T) {
		points, _ := ParseHotspots("latitude,longitude\n28.5,77.5,extra,columns\n")
		require.Len(t, points, 1)
	})

	t.Run("crlf line endings", func(t *testing.T) {
		points, _ := ParseHotspots("latitude,longitude,confidence\r\n28.5,77.5,h\r\n")
		require.Len(t, points, 1)
		require.NotNil(t, points[0].Confidence)
		assert.Equal(t, "h", *points[0].Confidence)
	})

	t.Run("unparseable frp is null", func(t *testing.T) {
		points, _ := ParseHotspots("latitude,longitude,frp\n28.5,77.5,n/a\n")
		require.Len(t, points, 1)
		assert.Nil(t, points[0].FRP)
	})

	t.Run("empty latitude dropped", func(t *testing.T) {
		points, drops := ParseHotspots("latitude,longitude\n,77.5\n28.5,77.5\n")
		assert.Len(t, points, 1)
		assert.Equal(t, 1, drops[DropInvalidCoordinates])
	})
}

func TestParseHotspots_Empty(t *testing.T) {
	points, drops := ParseHotspots("")
	assert.Empty(t, points)
	assert.Zero(t, drops.Total())

	points, drops = ParseHotspots("latitude,longitude\n\n")
	assert.Empty(t, points)
	assert.Zero(t, drops.Total())
}

func TestFormatDetectedAt(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	assert.Equal(t, "2024-01-03T0815Z", FormatDetectedAt(time.Date(2024, 1, 3, 8, 15, 0, 0, time.UTC)))
	assert.Equal(t, "2024-01-03T0815Z", FormatDetectedAt(time.Date(2024, 1, 3, 13, 45, 0, 0, ist)))
	assert.Equal(t, "2024-01-03T0005Z", FormatDetectedAt(time.Date(2024, 1, 3, 0, 5, 0, 0, time.UTC)))
}
