package validate

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/prasenjit/go-mockapi/internal/apidoc"
	"github.com/prasenjit/go-mockapi/internal/httperr"
)

// checkSecurity passes when any one requirement has all of its schemes
// satisfied. Only the presence of credentials is checked.
func checkSecurity(in *Input) error {
	md := in.Metadata
	if md.API == nil || len(md.Security) == 0 {
		return nil
	}
	for _, req := range md.Security {
		if Satisfied(md.API.SecuritySchemes, req, in.Request) {
			return nil
		}
	}

	realm := in.Request.Host
	if realm == "" {
		realm = "server"
	}
	names := make([]string, 0, len(md.Security))
	for _, req := range md.Security {
		names = append(names, strings.Join(req, " + "))
	}
	return httperr.New(httperr.KindValidation, http.StatusUnauthorized,
		"%s %s requires authentication (%s)", in.Request.Method, in.Request.URL.Path, strings.Join(names, ", ")).
		WithHeader("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", realm))
}

// Satisfied reports whether r carries credentials for every scheme in req.
// Schemes other than basic and apiKey, and undeclared schemes, always pass.
func Satisfied(schemes map[string]*apidoc.SecurityScheme, req apidoc.SecurityRequirement, r *http.Request) bool {
	for _, name := range req {
		scheme := schemes[name]
		if scheme == nil {
			continue
		}
		switch scheme.Type {
		case apidoc.SchemeBasic:
			if !strings.HasPrefix(r.Header.Get("Authorization"), "Basic ") {
				return false
			}
		case apidoc.SchemeAPIKey:
			switch scheme.In {
			case "header":
				if r.Header.Get(scheme.ParamName) == "" {
					return false
				}
			case "query":
				if !r.URL.Query().Has(scheme.ParamName) {
					return false
				}
			}
		}
	}
	return true
}
