package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePNG(t *testing.T) {
	png, err := EncodePNG("sched-cs-3|CS|CS301|saturday|08:00|1693290000|abc")
	require.NoError(t, err)
	assert.True(t, len(png) > 0)
	// PNG magic bytes.
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
}

func TestRendererFallsBackToDataURL(t *testing.T) {
	r := NewRenderer(nil)
	out, err := r.Render("some-token-value", "tok-1.png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "data:image/png;base64,"))
}
