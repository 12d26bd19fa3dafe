package authn

import (
	"net/http"

	"github.com/krancour/identity/apiserver/internal/lib/crypto"
	"github.com/krancour/identity/apiserver/internal/lib/restmachinery"
	"github.com/krancour/identity/apiserver/internal/meta"
)

type issuerTokenAuthFilter struct {
	hashedIssuerToken string
}

// NewIssuerTokenAuthFilter returns a restmachinery.Filter that admits only
// requests bearing the shared token of the trusted component that checks
// user credentials and asks for sessions to be issued.
func NewIssuerTokenAuthFilter(hashedIssuerToken string) restmachinery.Filter {
	return &issuerTokenAuthFilter{
		hashedIssuerToken: hashedIssuerToken,
	}
}

func (i *issuerTokenAuthFilter) Decorate(
	handle http.HandlerFunc,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(w, r)
		if !ok {
			return
		}
		if !crypto.Equal(crypto.ShortSHA("", token), i.hashedIssuerToken) {
			restmachinery.WriteAPIResponse(
				w,
				http.StatusUnauthorized,
				&meta.ErrAuthentication{
					Reason: "Could not authenticate request using the supplied token.",
				},
			)
			return
		}
		handle(w, r)
	}
}
