package restmachinery

import (
	"net/http"

	"github.com/xeipuuv/gojsonschema"
)

// InboundRequest represents an inbound HTTP request along with the logic
// for handling it and the status code to use on success.
type InboundRequest struct {
	W                   http.ResponseWriter
	R                   *http.Request
	ReqBodySchemaLoader gojsonschema.JSONLoader
	ReqBodyObj          interface{}
	EndpointLogic       func() (interface{}, error)
	SuccessCode         int
}
