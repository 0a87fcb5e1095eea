package webui

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yyyoichi/mllab/spamfilter"
	"github.com/yyyoichi/mllab/svdimage"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func grayRamp(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetGray(x, y, color.Gray{Y: uint8(3*x + 5*y + 11*((x*y)%7))})
		}
	}
	return img
}

func setupServer(t *testing.T, withPipe bool) *Server {
	t.Helper()

	comp, err := svdimage.New()
	require.NoError(t, err)
	comp.AddGray("noise", grayRamp(20, 16))
	comp.Add("ramp", grayRamp(12, 12))

	var pipe *spamfilter.Pipeline
	if withPipe {
		recs := spamfilter.SyntheticDataset(120, 3)
		pipe, err = spamfilter.Train(context.Background(), recs,
			spamfilter.WithSequenceLength(10),
			spamfilter.WithEpochs(5),
			spamfilter.WithLearnRate(0.01),
			spamfilter.WithSeed(1),
		)
		require.NoError(t, err)
	}

	return New(DefaultConfig(), comp, pipe, nil)
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewBuffer(b)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, req)
	return rr
}

func TestHandleHealth(t *testing.T) {
	s := setupServer(t, false)
	rr := doRequest(t, s, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "healthy", resp["status"])
}

func TestHandleIndex(t *testing.T) {
	s := setupServer(t, false)
	rr := doRequest(t, s, "GET", "/", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rr.Body.String(), "<title>mllab</title>")

	rr = doRequest(t, s, "GET", "/no-such-page", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleImages(t *testing.T) {
	s := setupServer(t, false)
	rr := doRequest(t, s, "GET", "/api/images", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var infos []svdimage.Info
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&infos))
	require.Len(t, infos, 2)
	assert.Equal(t, "noise", infos[0].Name)
	assert.Equal(t, "ramp", infos[1].Name)
	assert.Equal(t, 20, infos[0].Width)
	assert.Equal(t, 16, infos[0].Height)
	assert.Equal(t, 16, infos[0].MaxRank)
	assert.True(t, infos[0].Gray)
	assert.False(t, infos[1].Gray)
}

func TestHandleCompress(t *testing.T) {
	s := setupServer(t, false)
	rr := doRequest(t, s, "GET", "/api/compress?image=noise&k=5", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp CompressResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "noise", resp.Name)
	assert.Equal(t, 5, resp.Rank)
	assert.Equal(t, 20, resp.Width)
	assert.Equal(t, 16, resp.Height)
	assert.InDelta(t, 320.0/(5.0*37.0), resp.Ratio, 1e-9)
	require.NotNil(t, resp.PSNR)
	assert.Greater(t, *resp.PSNR, 0.0)
	assert.Greater(t, resp.Energy, 0.0)
	assert.LessOrEqual(t, resp.Energy, 1.0)

	require.True(t, strings.HasPrefix(resp.Image, "data:image/jpeg;base64,"))
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(resp.Image, "data:image/jpeg;base64,"))
	require.NoError(t, err)
	img, err := jpeg.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 20, img.Bounds().Dx())
	assert.Equal(t, 16, img.Bounds().Dy())
}

func TestHandleCompressErrors(t *testing.T) {
	s := setupServer(t, false)

	for name, tt := range map[string]struct {
		path string
		code int
	}{
		"missing rank":      {"/api/compress?image=noise", http.StatusBadRequest},
		"malformed rank":    {"/api/compress?image=noise&k=abc", http.StatusBadRequest},
		"rank out of range": {"/api/compress?image=noise&k=999", http.StatusBadRequest},
		"unknown image":     {"/api/compress?image=nope&k=3", http.StatusNotFound},
	} {
		t.Run(name, func(t *testing.T) {
			rr := doRequest(t, s, "GET", tt.path, nil)
			assert.Equal(t, tt.code, rr.Code)

			var resp map[string]string
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
			assert.NotEmpty(t, resp["error"])
		})
	}
}

func TestHandleClassify(t *testing.T) {
	s := setupServer(t, true)
	rr := doRequest(t, s, "POST", "/api/classify", ClassifyRequest{Text: "FREE MONEY NOW CLICK HERE"})
	require.Equal(t, http.StatusOK, rr.Code)

	var resp ClassifyResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "free money click", resp.Text)
	assert.GreaterOrEqual(t, resp.Probability, 0.0)
	assert.LessOrEqual(t, resp.Probability, 1.0)
	assert.Equal(t, resp.Probability >= 0.5, resp.Spam)
}

func TestHandleClassifyBadBody(t *testing.T) {
	s := setupServer(t, true)

	req := httptest.NewRequest("POST", "/api/classify", strings.NewReader("not-json"))
	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleClassifyNoModel(t *testing.T) {
	s := setupServer(t, false)
	rr := doRequest(t, s, "POST", "/api/classify", ClassifyRequest{Text: "hello"})
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestStartShutdown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Address = "127.0.0.1:0"
	comp, err := svdimage.New()
	require.NoError(t, err)
	s := New(cfg, comp, nil, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	require.ErrorIs(t, <-errCh, http.ErrServerClosed)
}
