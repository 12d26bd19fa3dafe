package authn

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/krancour/identity/apiserver/internal/lib/crypto"
	"github.com/stretchr/testify/require"
)

func TestIssuerTokenAuthFilter(t *testing.T) {
	const testIssuerToken = "openseasame"
	testCases := []struct {
		name         string
		header       string
		expectedCode int
	}{
		{
			name:         "header missing",
			expectedCode: http.StatusUnauthorized,
		},
		{
			name:         "wrong token",
			header:       "Bearer foo",
			expectedCode: http.StatusUnauthorized,
		},
		{
			name:         "correct token",
			header:       "Bearer " + testIssuerToken,
			expectedCode: http.StatusOK,
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			a := NewIssuerTokenAuthFilter(crypto.ShortSHA("", testIssuerToken))
			req, err := http.NewRequest(http.MethodPost, "/", nil)
			require.NoError(t, err)
			if testCase.header != "" {
				req.Header.Add("Authorization", testCase.header)
			}
			rr := httptest.NewRecorder()
			a.Decorate(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			})(rr, req)
			require.Equal(t, testCase.expectedCode, rr.Code)
		})
	}
}
