package metadata

import (
	"github.com/gin-gonic/gin"

	"github.com/prasenjit/go-mockapi/internal/apidoc"
)

const contextKey = "mockapi.metadata"

// Set stores md on the gin context.
func Set(c *gin.Context, md *RequestMetadata) {
	c.Set(contextKey, md)
}

// From returns the metadata stored by Set, or an empty value when the
// metadata middleware has not run.
func From(c *gin.Context) *RequestMetadata {
	if v, ok := c.Get(contextKey); ok {
		if md, ok := v.(*RequestMetadata); ok {
			return md
		}
	}
	return &RequestMetadata{
		Params:   []*apidoc.ParameterDescriptor{},
		Security: []apidoc.SecurityRequirement{},
		Values:   map[string]any{},
	}
}
