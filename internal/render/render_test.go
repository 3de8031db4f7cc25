package render

import (
	"bytes"
	"testing"

	"github.com/AAReynosoG/gateward/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestAllPagesExecute(t *testing.T) {
	t.Parallel()

	r, err := New()
	require.NoError(t, err)

	for _, page := range pages {
		var buf bytes.Buffer
		err := r.RenderTo(&buf, page, Data{CSRFToken: "tok"})
		require.NoError(t, err, "page %s", page)
		require.Contains(t, buf.String(), "<!DOCTYPE html>", "page %s", page)
	}
}

func TestSignInEchoesValuesAndErrors(t *testing.T) {
	t.Parallel()

	r, err := New()
	require.NoError(t, err)

	var buf bytes.Buffer
	err = r.RenderTo(&buf, PageSignIn, Data{
		CSRFToken: "tok",
		Values:    map[string]string{"email": "a@x.com"},
		Errors:    map[string]string{"email": "The provided credentials do not match our records."},
		Flash:     domain.Flash{Error: "Session expired."},
	})
	require.NoError(t, err)

	out := buf.String()
	require.Contains(t, out, `value="a@x.com"`)
	require.Contains(t, out, "The provided credentials do not match our records.")
	require.Contains(t, out, "Session expired.")
	require.Contains(t, out, `name="_token" value="tok"`)
}

func TestEnrollPageShowsSecretOnce(t *testing.T) {
	t.Parallel()

	r, err := New()
	require.NoError(t, err)

	var buf bytes.Buffer
	err = r.RenderTo(&buf, PageEnroll2FA, Data{
		QRCodeDataURI: "data:image/png;base64,AAAA",
		SecretKey:     "JBSWY3DPEHPK3PXP",
	})
	require.NoError(t, err)
	require.Contains(t, buf.String(), "JBSWY3DPEHPK3PXP")
	require.Contains(t, buf.String(), "data:image/png;base64,AAAA")

	// Without the payload the page degrades to the missing-data notice.
	buf.Reset()
	require.NoError(t, r.RenderTo(&buf, PageEnroll2FA, Data{}))
	require.Contains(t, buf.String(), "Missing data")
}
