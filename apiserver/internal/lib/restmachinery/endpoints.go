package restmachinery

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/golang/glog"
	"github.com/gorilla/mux"
	"github.com/krancour/identity/apiserver/internal/meta"
	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

// Endpoints is an interface for components that register handlers with a
// router.
type Endpoints interface {
	Register(router *mux.Router)
}

// BaseEndpoints provides request validation and response writing common to
// all Endpoints.
type BaseEndpoints struct{}

func (b *BaseEndpoints) readAndValidateRequestBody(
	w http.ResponseWriter,
	r *http.Request,
	bodySchemaLoader gojsonschema.JSONLoader,
	bodyObj interface{},
) bool {
	defer r.Body.Close()
	bodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		// Log it in case something is actually wrong...
		glog.Error(errors.Wrap(err, "error reading request body"))
		// But we're going to assume this is because the request body is missing,
		// so we'll treat it as a bad request.
		WriteAPIResponse(
			w,
			http.StatusBadRequest,
			&meta.ErrBadRequest{Reason: "Could not read request body."},
		)
		return false
	}
	if bodySchemaLoader != nil {
		var validationResult *gojsonschema.Result
		validationResult, err = gojsonschema.Validate(
			bodySchemaLoader,
			gojsonschema.NewBytesLoader(bodyBytes),
		)
		if err != nil {
			// As long as the schema itself was valid, the most likely scenario here
			// is that the request body wasn't valid JSON.
			glog.V(2).Info(errors.Wrap(err, "error validating request body"))
			WriteAPIResponse(
				w,
				http.StatusBadRequest,
				&meta.ErrBadRequest{Reason: "Could not validate request body."},
			)
			return false
		}
		if !validationResult.Valid() {
			verrStrs := make([]string, len(validationResult.Errors()))
			for i, verr := range validationResult.Errors() {
				verrStrs[i] = verr.String()
			}
			WriteAPIResponse(
				w,
				http.StatusBadRequest,
				&meta.ErrBadRequest{
					Reason:  "Request body failed JSON validation",
					Details: verrStrs,
				},
			)
			return false
		}
	}
	if bodyObj != nil {
		if err = json.Unmarshal(bodyBytes, bodyObj); err != nil {
			glog.Error(errors.Wrap(err, "error unmarshaling request body"))
			// We were already able to validate the request body, which means it
			// was valid JSON. If something went wrong with unmarshaling, it's NOT
			// because of a bad request-- it's a real, internal problem.
			WriteAPIResponse(
				w,
				http.StatusInternalServerError,
				&meta.ErrInternalServer{},
			)
			return false
		}
	}
	return true
}

// ServeRequest validates and unmarshals the body of an InboundRequest,
// executes its logic, and writes the result or an appropriate error to the
// response.
func (b *BaseEndpoints) ServeRequest(req InboundRequest) {
	if req.ReqBodySchemaLoader != nil || req.ReqBodyObj != nil {
		if !b.readAndValidateRequestBody(
			req.W,
			req.R,
			req.ReqBodySchemaLoader,
			req.ReqBodyObj,
		) {
			return
		}
	}
	respBodyObj, err := req.EndpointLogic()
	if err != nil {
		WriteAPIError(req.W, err)
		return
	}
	WriteAPIResponse(req.W, req.SuccessCode, respBodyObj)
}

// WriteAPIError maps an error to an HTTP status code and writes it to the
// response. Errors of unrecognized types are logged and replaced with a
// generic internal server error.
func WriteAPIError(w http.ResponseWriter, err error) {
	switch e := errors.Cause(err).(type) {
	case *meta.ErrBadRequest:
		WriteAPIResponse(w, http.StatusBadRequest, e)
	case *meta.ErrAuthentication:
		WriteAPIResponse(w, http.StatusUnauthorized, e)
	case *meta.ErrExpired:
		WriteAPIResponse(w, http.StatusUnauthorized, e)
	case *meta.ErrMalformed:
		WriteAPIResponse(w, http.StatusUnauthorized, e)
	case *meta.ErrAuthorization:
		WriteAPIResponse(w, http.StatusForbidden, e)
	case *meta.ErrNotFound:
		WriteAPIResponse(w, http.StatusNotFound, e)
	case *meta.ErrConflict:
		WriteAPIResponse(w, http.StatusConflict, e)
	case *meta.ErrStorageUnavailable:
		glog.Error(err)
		WriteAPIResponse(w, http.StatusServiceUnavailable, e)
	case *meta.ErrInternalServer:
		WriteAPIResponse(w, http.StatusInternalServerError, e)
	default:
		glog.Error(err)
		WriteAPIResponse(
			w,
			http.StatusInternalServerError,
			&meta.ErrInternalServer{},
		)
	}
}

// WriteAPIResponse writes a JSON response body with the given status code.
func WriteAPIResponse(
	w http.ResponseWriter,
	statusCode int,
	response interface{},
) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	responseBody, ok := response.([]byte)
	if !ok {
		var err error
		if responseBody, err = json.Marshal(response); err != nil {
			glog.Error(errors.Wrap(err, "error marshaling response body"))
		}
	}
	if _, err := w.Write(responseBody); err != nil {
		glog.Error(errors.Wrap(err, "error writing response body"))
	}
}
