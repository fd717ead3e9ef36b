package server

import (
	"encoding/json"
	"image"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"sosguard/server/dispatch"
	"sosguard/server/evidence"
	"sosguard/server/geo"
	"sosguard/server/identity"
	"sosguard/server/settings"
	"sosguard/version"

	_ "image/jpeg"
	_ "image/png"
)

func healthCheckHandler(rw http.ResponseWriter, r *http.Request) {
	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: map[string]string{"version": version.Version}})
}

// ---------------------------------------------------------------------------------//
// Session handlers
// --------------------------------------------------------------------------------//

func logInHandler(rw http.ResponseWriter, r *http.Request) {
	data := make(map[string]string)
	decoder := json.NewDecoder(r.Body)
	decoder.Decode(&data)

	session, err := identityProvider.LogIn(r.Context(), data["name"], data["email"], data["password"])
	if errors.Is(err, identity.ErrInvalidCredentials) {
		writeErrorResponse(rw, err, http.StatusUnauthorized)
		return
	}

	if err != nil {
		writeErrorResponse(rw, err, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: session})
}

func currentSessionHandler(rw http.ResponseWriter, r *http.Request) {
	decodedSession := r.Context().Value(RequestContextKey("decodedSession")).(DecodedSession)

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: decodedSession.User})
}

func logOutHandler(rw http.ResponseWriter, r *http.Request) {
	if err := identityProvider.LogOut(); err != nil {
		writeErrorResponse(rw, err, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true})
}

// ---------------------------------------------------------------------------------//
// Settings handlers
// --------------------------------------------------------------------------------//

func findSettingsHandler(rw http.ResponseWriter, r *http.Request) {
	userSettings, err := settingsStore.Load()
	if err != nil {
		writeErrorResponse(rw, err, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: userSettings})
}

func updateSettingsHandler(rw http.ResponseWriter, r *http.Request) {
	data := settings.UserSettings{}
	decoder := json.NewDecoder(r.Body)

	if err := decoder.Decode(&data); err != nil {
		writeErrorResponse(rw, err, http.StatusBadRequest)
		return
	}

	if err := settingsStore.Save(&data); err != nil {
		writeResponse(rw, ResponsePayload{Errors: strings.Split(err.Error(), "\n")}, http.StatusBadRequest)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: data})
}

// ---------------------------------------------------------------------------------//
// Location & device handlers
// --------------------------------------------------------------------------------//

func currentLocationHandler(rw http.ResponseWriter, r *http.Request) {
	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: tracker.Current()})
}

func pushLocationHandler(rw http.ResponseWriter, r *http.Request) {
	if locationBridge == nil {
		writeResponse(rw, ResponsePayload{Errors: []string{"device location bridge is disabled"}}, http.StatusNotImplemented)
		return
	}

	data := struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Accuracy  float64 `json:"accuracy"`
		Error     string  `json:"error"`
	}{}

	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeErrorResponse(rw, err, http.StatusBadRequest)
		return
	}

	update := geo.Update{
		Latitude:  data.Latitude,
		Longitude: data.Longitude,
		Accuracy:  data.Accuracy,
		Timestamp: time.Now(),
	}
	if data.Error != "" {
		update.Err = errors.New(data.Error)
	}

	locationBridge.Push(update)

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true})
}

func pushFrameHandler(rw http.ResponseWriter, r *http.Request) {
	if cameraBridge == nil {
		writeResponse(rw, ResponsePayload{Errors: []string{"device camera bridge is disabled"}}, http.StatusNotImplemented)
		return
	}

	facing := evidence.Facing(mux.Vars(r)["facing"])
	if facing != evidence.FacingFront && facing != evidence.FacingEnvironment {
		writeResponse(rw, ResponsePayload{Errors: []string{"facing must be 'user' or 'environment'"}}, http.StatusBadRequest)
		return
	}

	frame, _, err := image.Decode(r.Body)
	if err != nil {
		writeErrorResponse(rw, errors.Wrap(err, "unable to decode frame"), http.StatusBadRequest)
		return
	}

	cameraBridge.Push(facing, frame)

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true})
}

// ---------------------------------------------------------------------------------//
// Activation handlers
// --------------------------------------------------------------------------------//

func activateHandler(rw http.ResponseWriter, r *http.Request) {
	session, err := orchestrator.Activate(r.Context())
	if err != nil {
		writeErrorResponse(rw, err, dispatchStatusCode(err))
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: session})
}

func currentActivationHandler(rw http.ResponseWriter, r *http.Request) {
	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: orchestrator.Session()})
}

func sendToGroupHandler(rw http.ResponseWriter, r *http.Request) {
	outcome, err := orchestrator.SendToGroup(r.Context())
	if err != nil {
		writeErrorResponse(rw, err, dispatchStatusCode(err))
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: outcome})
}

func sendToContactHandler(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	outcome, err := orchestrator.SendToContact(r.Context(), vars["id"], vars["channel"])
	if err != nil {
		writeErrorResponse(rw, err, dispatchStatusCode(err))
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: outcome})
}

func concludeActivationHandler(rw http.ResponseWriter, r *http.Request) {
	session, err := orchestrator.Conclude()
	if err != nil {
		writeErrorResponse(rw, err, dispatchStatusCode(err))
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: session})
}

func resetActivationHandler(rw http.ResponseWriter, r *http.Request) {
	session, err := orchestrator.Reset()
	if err != nil {
		writeErrorResponse(rw, err, dispatchStatusCode(err))
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: session})
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func dispatchStatusCode(err error) int {
	switch {
	case errors.Is(err, dispatch.ErrActivationInProgress):
		return http.StatusConflict
	case errors.Is(err, dispatch.ErrUnknownContact):
		return http.StatusNotFound
	case errors.Is(err, dispatch.ErrNoRecipients),
		errors.Is(err, dispatch.ErrNotReady),
		errors.Is(err, dispatch.ErrNothingSentYet),
		errors.Is(err, dispatch.ErrNoGroupLink),
		errors.Is(err, dispatch.ErrUnknownChannel),
		errors.Is(err, dispatch.ErrDirectSmsDisabled):
		return http.StatusBadRequest
	}

	return http.StatusInternalServerError
}
