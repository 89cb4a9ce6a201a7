package zm2376

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quenchlab/labkit/internal/instrument"
)

func newTestMeter(replies map[string]string) (*ZM2376, *instrument.ScriptSession) {
	session := instrument.NewScriptSession(replies)
	return New("zm", session), session
}

func TestPrimarySecondaryFromFetch(t *testing.T) {
	z, _ := newTestMeter(map[string]string{
		":fetch?": "0,+1.23456E-09,+2.50000E-02",
	})

	primary, err := z.Primary.Measure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.23456e-09, primary)

	secondary, err := z.Secondary.Measure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2.5e-02, secondary)
}

func TestFetchStatusErrors(t *testing.T) {
	cases := []struct {
		reply string
		want  string
	}{
		{"1,+0.0E+00,+0.0E+00", "measurement error: ERR"},
		{"2,+0.0E+00,+0.0E+00", "measurement error: NC or LoC"},
		{"3,+0.0E+00,+0.0E+00", "measurement error: other errors"},
		{"7,+0.0E+00,+0.0E+00", "unknown status 7"},
	}
	for _, c := range cases {
		z, _ := newTestMeter(map[string]string{":fetch?": c.reply})
		_, err := z.Primary.Measure(context.Background())
		require.Error(t, err, "fetch %q", c.reply)
		assert.Contains(t, err.Error(), c.want)
	}
}

func TestFrequencyRoundTrip(t *testing.T) {
	z, session := newTestMeter(map[string]string{":sour:freq?": "1.000000E+05"})

	f, err := z.Frequency.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1e5, f)

	require.NoError(t, z.Frequency.Set(context.Background(), 1000))
	commands := session.Commands()
	assert.Equal(t, ":sour:freq 1000", commands[len(commands)-1])
}

func TestCorrectionRoutines(t *testing.T) {
	z, session := newTestMeter(nil)

	require.NoError(t, z.OpenCorrection(context.Background(), DefaultCorrectionLower, DefaultCorrectionUpper))
	require.NoError(t, z.ShortCorrection(context.Background(), DefaultCorrectionLower, DefaultCorrectionUpper))
	require.NoError(t, z.LoadCorrection(context.Background()))

	want := []string{
		":corr:lim:low 0.02",
		":corr:lim:upp 5500000",
		"corr:coll stan1",
		":corr:lim:low 0.02",
		":corr:lim:upp 5500000",
		"corr:coll stan2",
		"corr:coll stan3",
	}
	assert.Equal(t, want, session.Commands())
}

func TestMetadataSummary(t *testing.T) {
	z, _ := newTestMeter(map[string]string{
		":corr:shor?":  "1",
		":corr:open?":  "1",
		":corr:load?":  "0",
		":calc1:form?": "CP ",
		":calc2:form?": "D ",
	})

	summary, err := z.MetadataSummary(context.Background())
	require.NoError(t, err)

	calibrations, ok := summary["calibrations"].([]string)
	require.True(t, ok, "calibrations = %v", summary["calibrations"])
	require.Len(t, calibrations, 3)
	assert.Equal(t, "Load Correction State: false", calibrations[2])

	variables, ok := summary["variables"].([]string)
	require.True(t, ok, "variables = %v", summary["variables"])
	require.Len(t, variables, 2)
	assert.Equal(t, "Primary Parameter: CP", variables[0])
}
