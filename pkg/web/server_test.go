package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"image/color"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-faceverify/internal/testimage"
	"github.com/teslashibe/go-faceverify/pkg/antispoof"
	"github.com/teslashibe/go-faceverify/pkg/imagebuf"
	"github.com/teslashibe/go-faceverify/pkg/quality"
	"github.com/teslashibe/go-faceverify/pkg/service"
	"github.com/teslashibe/go-faceverify/pkg/verification"
)

func newTestServer(t *testing.T, c verification.Classifier, maxBytes int64) *Server {
	t.Helper()
	svc := service.New(
		imagebuf.NewValidator(maxBytes),
		antispoof.New(antispoof.DefaultConfig()),
		verification.New(c, verification.DefaultConfig()),
	)
	return NewServer(svc, Config{
		Port:           "0",
		AllowedOrigins: []string{"http://localhost:8081"},
	})
}

func do(t *testing.T, s *Server, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	if len(body) > 0 {
		require.NoError(t, json.Unmarshal(body, &out), "body: %s", body)
	}
	return resp.StatusCode, out
}

func postJSON(t *testing.T, s *Server, path string, v any) (int, map[string]any) {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return do(t, s, req)
}

func postFile(t *testing.T, s *Server, field string, data []byte) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile(field, "photo.png")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/verify-file", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return do(t, s, req)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, verification.NewMock(verification.Estimate{}), 0)

	status, body := do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "face-verification", body["service"])
}

func TestVerify_Minor(t *testing.T) {
	mock := verification.NewMock(verification.Estimate{
		Age:            17,
		DominantGender: "Man",
		GenderScores:   map[string]float64{"Man": 88.8, "Woman": 11.2},
	})
	s := newTestServer(t, mock, 0)

	status, body := postJSON(t, s, "/verify", ImageRequest{Image: testimage.DataURL(testimage.Square(300, 300, 150))})
	require.Equal(t, http.StatusOK, status)

	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["faceDetected"])
	assert.Equal(t, float64(17), body["age"])
	assert.Equal(t, "<18", body["ageRange"])
	assert.Equal(t, "MALE", body["gender"])
	assert.Equal(t, 0.89, body["genderConfidence"])
	assert.Equal(t, false, body["isAdult"])
	assert.Equal(t, true, body["isRealFace"])
	assert.Contains(t, body["message"], "at least 18")
}

func TestVerify_NoFace(t *testing.T) {
	s := newTestServer(t, verification.WithError(verification.ErrNoFace), 0)

	status, body := postJSON(t, s, "/verify", ImageRequest{Image: testimage.Base64(testimage.Solid(300, 300, color.White))})
	require.Equal(t, http.StatusOK, status)

	assert.Equal(t, false, body["success"])
	assert.Equal(t, false, body["faceDetected"])
	assert.Equal(t, false, body["isAdult"])
	assert.Nil(t, body["age"])
	assert.Nil(t, body["gender"])
	assert.Equal(t, verification.MessageNoFace, body["message"])
}

func TestVerify_ClientErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		detail  string
		maxSize int64
	}{
		{"malformed json", `{"image":`, "invalid request body", 0},
		{"missing image", `{}`, "image is required", 0},
		{"bad base64", `{"image":"***"}`, "invalid image", 0},
		{"too large", `{"image":"` + strings.Repeat("A", 4000) + `"}`, "image too large", 1024},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mock := verification.NewMock(verification.Estimate{Age: 30, DominantGender: "Man"})
			s := newTestServer(t, mock, tc.maxSize)

			req := httptest.NewRequest(http.MethodPost, "/verify", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			status, body := do(t, s, req)

			assert.Equal(t, http.StatusBadRequest, status)
			assert.Contains(t, body["detail"], tc.detail)
			assert.Equal(t, 0, mock.CallCount("Analyze"))
		})
	}
}

func TestVerify_SystemFailureDoesNotLeak(t *testing.T) {
	s := newTestServer(t, verification.WithError(errors.New("dial tcp 10.0.0.7:5005: connection refused")), 0)

	status, body := postJSON(t, s, "/verify", ImageRequest{Image: testimage.Base64(testimage.Square(300, 300, 150))})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, detailVerifyFailed, body["detail"])
	assert.NotContains(t, body["detail"], "10.0.0.7")
}

func TestVerify_AmbiguousEstimateFailsClosed(t *testing.T) {
	s := newTestServer(t, verification.NewMock(verification.Estimate{Age: 30, DominantGender: "Unknown"}), 0)

	status, body := postJSON(t, s, "/verify", ImageRequest{Image: testimage.Base64(testimage.Square(300, 300, 150))})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Nil(t, body["success"])
}

func TestVerifyFile(t *testing.T) {
	mock := verification.NewMock(verification.Estimate{Age: 42, DominantGender: "Woman"})
	s := newTestServer(t, mock, 0)

	status, body := postFile(t, s, "file", testimage.PNG(testimage.Square(300, 300, 150)))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["isAdult"])
	assert.Equal(t, "35-44", body["ageRange"])
	assert.Equal(t, "FEMALE", body["gender"])
	assert.Equal(t, 0.5, body["genderConfidence"])
}

func TestVerifyFile_Errors(t *testing.T) {
	s := newTestServer(t, verification.NewMock(verification.Estimate{Age: 42, DominantGender: "Woman"}), 1024)

	status, body := postFile(t, s, "upload", []byte("x"))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "file is required", body["detail"])

	status, body = postFile(t, s, "file", bytes.Repeat([]byte{0xff}, 2048))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["detail"], "image too large")

	status, body = postFile(t, s, "file", []byte("not an image"))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["detail"], "invalid image")
}

func TestAntiSpoof(t *testing.T) {
	s := newTestServer(t, verification.NewMock(verification.Estimate{}), 0)

	tests := []struct {
		name       string
		image      string
		wantReal   bool
		wantConf   float64
		wantMsg    string
		wantChecks bool
	}{
		{
			name:       "authentic",
			image:      testimage.DataURL(testimage.Square(300, 300, 150)),
			wantReal:   true,
			wantConf:   antispoof.ConfidenceOK,
			wantMsg:    antispoof.ReasonOK.Message(),
			wantChecks: true,
		},
		{
			name:     "low resolution",
			image:    testimage.Base64(testimage.Solid(100, 100, color.Black)),
			wantConf: antispoof.ConfidenceLowResolution,
			wantMsg:  antispoof.ReasonLowResolution.Message(),
		},
		{
			name:     "blurry",
			image:    testimage.Base64(testimage.Solid(300, 300, color.Gray{Y: 90})),
			wantConf: antispoof.ConfidenceTooBlurry,
			wantMsg:  antispoof.ReasonTooBlurry.Message(),
		},
		{
			name:     "undecodable",
			image:    "not-an-image",
			wantConf: antispoof.ConfidenceDecodeError,
			wantMsg:  antispoof.ReasonDecodeError.Message(),
		},
		{
			name:     "empty image",
			image:    "",
			wantConf: antispoof.ConfidenceDecodeError,
			wantMsg:  antispoof.ReasonDecodeError.Message(),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, body := postJSON(t, s, "/anti-spoof", ImageRequest{Image: tc.image})
			require.Equal(t, http.StatusOK, status)

			assert.Equal(t, tc.wantReal, body["is_real"])
			assert.Equal(t, tc.wantConf, body["confidence"])
			assert.Equal(t, tc.wantMsg, body["message"])
			if !tc.wantChecks {
				assert.Nil(t, body["checks"])
				return
			}
			checks, ok := body["checks"].(map[string]any)
			require.True(t, ok, "checks missing: %v", body)
			assert.Equal(t, "300x300", checks["resolution"])
			assert.Greater(t, checks["blur_score"], 100.0)
			assert.Less(t, checks["edge_density"], 0.3)
		})
	}
}

func TestAntiSpoof_TooLarge(t *testing.T) {
	s := newTestServer(t, verification.NewMock(verification.Estimate{}), 1024)

	status, body := postJSON(t, s, "/anti-spoof", ImageRequest{Image: strings.Repeat("A", 4000)})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["detail"], "image too large")
}

func TestAntiSpoof_MalformedBody(t *testing.T) {
	s := newTestServer(t, verification.NewMock(verification.Estimate{}), 0)

	req := httptest.NewRequest(http.MethodPost, "/anti-spoof", strings.NewReader(`{"image":`))
	req.Header.Set("Content-Type", "application/json")
	status, body := do(t, s, req)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid request body", body["detail"])
}

func TestBodyOverTransportLimit(t *testing.T) {
	s := newTestServer(t, verification.NewMock(verification.Estimate{}), 1024)
	payload := ImageRequest{Image: strings.Repeat("A", bodyLimit(1024)+1024)}

	for _, path := range []string{"/verify", "/anti-spoof"} {
		t.Run(path, func(t *testing.T) {
			status, body := postJSON(t, s, path, payload)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, tooLargeDetail(1024), body["detail"])
		})
	}
}

func TestNewAntiSpoofResponse_Rounding(t *testing.T) {
	resp := NewAntiSpoofResponse(antispoof.Verdict{
		IsReal:     false,
		Confidence: antispoof.ConfidenceSuspectPattern,
		Reason:     antispoof.ReasonSuspectPattern,
		Metrics:    &quality.Metrics{Width: 640, Height: 480, Sharpness: 1234.5678, EdgeDensity: 0.345678},
	})
	require.NotNil(t, resp.Checks)
	assert.Equal(t, "640x480", resp.Checks.Resolution)
	assert.Equal(t, 1234.57, resp.Checks.BlurScore)
	assert.Equal(t, 0.3457, resp.Checks.EdgeDensity)
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, verification.NewMock(verification.Estimate{}), 0)

	req := httptest.NewRequest(http.MethodOptions, "/verify", nil)
	req.Header.Set("Origin", "http://localhost:8081")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "http://localhost:8081", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
}

func TestRequestID(t *testing.T) {
	s := newTestServer(t, verification.NewMock(verification.Estimate{}), 0)

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Len(t, resp.Header.Get("X-Request-ID"), 36)
}

func TestRateLimit(t *testing.T) {
	svc := service.New(
		imagebuf.NewValidator(0),
		antispoof.New(antispoof.DefaultConfig()),
		verification.New(verification.NewMock(verification.Estimate{}), verification.DefaultConfig()),
	)
	s := NewServer(svc, Config{AllowedOrigins: []string{"*"}, RateLimit: 2})

	var last int
	for i := 0; i < 3; i++ {
		last, _ = do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestNotFound(t *testing.T) {
	s := newTestServer(t, verification.NewMock(verification.Estimate{}), 0)

	status, body := do(t, s, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, status)
	assert.NotEmpty(t, body["detail"])
}

func TestBodyLimit(t *testing.T) {
	max := int64(10 * 1024 * 1024)
	dataURL := "data:image/jpeg;base64," + strings.Repeat("A", int(max*4/3))
	envelope := len(`{"image":""}`) + len(dataURL)
	assert.Greater(t, bodyLimit(max), envelope)
}
