package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/sprucehealth/payflow/libs/golog"
)

// JSONResponse encodes the provided object as the JSON body of the response.
func JSONResponse(w http.ResponseWriter, statusCode int, res interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		golog.Errorf("httputil: failed to encode JSON response: %s", err)
	}
}
