package mock

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/prasenjit/go-mockapi/internal/apidoc"
)

// Family is a group of mock handlers keyed by method.
type Family int

const (
	None Family = iota
	ResourceQuery
	ResourceEdit
	CollectionQuery
	CollectionEdit
)

func (f Family) String() string {
	switch f {
	case ResourceQuery:
		return "resource-query"
	case ResourceEdit:
		return "resource-edit"
	case CollectionQuery:
		return "collection-query"
	case CollectionEdit:
		return "collection-edit"
	}
	return "none"
}

// Select picks the handler family for a request.
func Select(isCollection bool, method string) Family {
	method = strings.ToUpper(method)
	if isCollection {
		switch method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodDelete:
			return CollectionQuery
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			return CollectionEdit
		}
		return None
	}
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return ResourceQuery
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return ResourceEdit
	}
	return None
}

// SelectResponse chooses the response to mock and its status code:
//
//  1. the preset status, if op declares it
//  2. the first declared 2XX or 3XX response
//  3. the default response, with a status inferred from the method
//  4. the first declared response
//
// A zero preset means no status was set upstream.
func SelectResponse(op *apidoc.OperationDescriptor, preset int) (*apidoc.ResponseDescriptor, int) {
	if preset != 0 {
		if r := op.Response(strconv.Itoa(preset)); r != nil {
			return r, preset
		}
	}
	for _, r := range op.Responses {
		if code, ok := statusOf(r.Code); ok && code >= 200 && code < 400 {
			return r, code
		}
	}
	if r := op.Response("default"); r != nil {
		switch {
		case op.Method == "post" || op.Method == "put":
			return r, http.StatusCreated
		case op.Method == "delete" && r.Schema == nil:
			return r, http.StatusNoContent
		}
		return r, http.StatusOK
	}
	if len(op.Responses) > 0 {
		r := op.Responses[0]
		if code, ok := statusOf(r.Code); ok {
			return r, code
		}
		return r, http.StatusOK
	}
	return nil, http.StatusOK
}

// statusOf turns "201" into 201 and a range such as "2XX" into 200.
func statusOf(code string) (int, bool) {
	if n, err := strconv.Atoi(code); err == nil {
		return n, true
	}
	if len(code) == 3 && strings.EqualFold(code[1:], "xx") && code[0] >= '1' && code[0] <= '5' {
		return int(code[0]-'0') * 100, true
	}
	return 0, false
}
