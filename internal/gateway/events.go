package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"dryengineer/internal/domain"
)

// Inbound and outbound event names.
const (
	EventLogin        = "login"
	EventLoginSuccess = "loginSuccess"
	EventLoginError   = "loginError"

	EventRegister        = "register"
	EventRegisterSuccess = "registerSuccess"
	EventRegisterError   = "registerError"

	EventResumeSession   = "resumeSession"
	EventSessionRestored = "sessionRestored"
	EventSessionError    = "sessionError"

	EventGetUsers   = "get_users"
	EventUsersData  = "users_data"
	EventEditUser   = "edit-user"
	EventDeleteUser = "delete-user"

	EventGetListnames   = "get_listnames"
	EventListnamesData  = "listnames_data"
	EventCreateListname = "create-listname"
	EventEditListname   = "edit-listname"
	EventDeleteListname = "delete-listname"

	EventUploadImage   = "uploadImage"
	EventUploadSuccess = "uploadSuccess"
	EventUploadError   = "uploadError"
	EventUpdateIcon    = "updateIcon"

	EventRequestImage = "requestImage"
	EventImageData    = "imageData"
	EventImageError   = "imageError"

	EventGetUserDataPDF = "getUserDataPDF"
	EventPDFGenerated   = "pdfGenerated"
	EventPDFError       = "pdfError"

	EventClientMessage  = "clientMessage"
	EventSetCurrentUser = "setCurrentUser"
	EventMessage        = "message"

	EventCountry = "country"
	EventError   = "error"
)

func ackEvent(event string) string   { return event + "Ack" }
func errorEvent(event string) string { return event + "Error" }

// Envelope is the frame exchanged in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func encode(event string, data any) ([]byte, error) {
	env := Envelope{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", event, err)
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

var (
	errMalformed = errors.New("malformed payload")
	errMissingID = errors.New("missing or invalid id")
	errEmptyText = errors.New("message text is empty")
)

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type resumeRequest struct {
	Token string `json:"token"`
}

// authResponse is the user with a session token alongside its fields.
type authResponse struct {
	*domain.User
	Token string `json:"token"`
}

type uploadRequest struct {
	Filename string `json:"filename"`
	Data     string `json:"base64data"`
	UserID   flexID `json:"userId"`
}

type chatMessage struct {
	Text string `json:"text"`
	User string `json:"user"`
}

type countryNotice struct {
	Country string `json:"country"`
}

type iconUpdate struct {
	Icon string `json:"icon"`
}

type uploadResult struct {
	Filename string `json:"filename"`
}

type unknownEvent struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

// flexID accepts an id sent either as a JSON number or a numeric string.
type flexID int64

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %s", errMissingID, b)
	}
	*f = flexID(id)
	return nil
}

func decode(data json.RawMessage, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return errMalformed
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	return nil
}

// decodeID reads a positive id from either a bare value or an object
// holding it under key.
func decodeID(data json.RawMessage, key string) (int64, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return 0, errMissingID
	}
	if trimmed[0] == '{' {
		var obj map[string]json.RawMessage
		if err := decode(trimmed, &obj); err != nil {
			return 0, err
		}
		raw, ok := obj[key]
		if !ok {
			return 0, fmt.Errorf("%w: %s", errMissingID, key)
		}
		trimmed = raw
	}

	var id flexID
	if err := json.Unmarshal(trimmed, &id); err != nil {
		return 0, fmt.Errorf("%w: %v", errMissingID, err)
	}
	if id <= 0 {
		return 0, errMissingID
	}
	return int64(id), nil
}

// decodePatch reads {<key>: id, "updates": {...}}.
func decodePatch(data json.RawMessage, key string) (int64, map[string]any, error) {
	var obj map[string]json.RawMessage
	if err := decode(data, &obj); err != nil {
		return 0, nil, err
	}
	raw, ok := obj[key]
	if !ok {
		return 0, nil, fmt.Errorf("%w: %s", errMissingID, key)
	}
	id, err := decodeID(raw, key)
	if err != nil {
		return 0, nil, err
	}

	var updates map[string]any
	if rawUpdates, ok := obj["updates"]; ok {
		if err := decode(rawUpdates, &updates); err != nil {
			return 0, nil, err
		}
	}
	return id, updates, nil
}
