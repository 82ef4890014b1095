package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"dryengineer/internal/auth"
	"dryengineer/internal/domain"
	"dryengineer/internal/service"
)

const handlerTimeout = 30 * time.Second

type handlerFunc func(ctx context.Context, s *Session, data json.RawMessage) error

type route struct {
	// failure is the event that reports a handler error to the caller.
	failure string
	handle  handlerFunc
}

func (g *Gateway) buildRoutes() map[string]route {
	return map[string]route{
		EventLogin:          {EventLoginError, g.login},
		EventRegister:       {EventRegisterError, g.register},
		EventResumeSession:  {EventSessionError, g.resumeSession},
		EventGetUsers:       {errorEvent(EventGetUsers), g.listRecords(domain.Users, EventUsersData)},
		EventEditUser:       {errorEvent(EventEditUser), g.patchRecord(domain.Users, EventEditUser)},
		EventDeleteUser:     {errorEvent(EventDeleteUser), g.deleteRecord(domain.Users, EventDeleteUser)},
		EventGetListnames:   {errorEvent(EventGetListnames), g.listRecords(domain.Recipes, EventListnamesData)},
		EventCreateListname: {errorEvent(EventCreateListname), g.createRecord(domain.Recipes, EventCreateListname)},
		EventEditListname:   {errorEvent(EventEditListname), g.patchRecord(domain.Recipes, EventEditListname)},
		EventDeleteListname: {errorEvent(EventDeleteListname), g.deleteRecord(domain.Recipes, EventDeleteListname)},
		EventUploadImage:    {EventUploadError, g.uploadImage},
		EventRequestImage:   {EventImageError, g.requestImage},
		EventGetUserDataPDF: {EventPDFError, g.userDataPDF},
		EventClientMessage:  {errorEvent(EventClientMessage), g.clientMessage},
		EventSetCurrentUser: {errorEvent(EventSetCurrentUser), g.setCurrentUser},
		EventMessage:        {errorEvent(EventMessage), g.logMessage},
	}
}

func (g *Gateway) dispatch(s *Session, env Envelope) {
	log := s.log.WithField("event", env.Event)
	if u := s.User(); u != nil {
		log = log.WithField("user", u.Login)
	}

	r, ok := g.routes[env.Event]
	if !ok {
		log.Debug("unknown event")
		s.Emit(EventError, unknownEvent{Event: env.Event, Message: "unknown event"})
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, handlerTimeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
			}
		}()
		return r.handle(ctx, s, env.Data)
	}()
	if err != nil {
		log.WithError(err).Warn("event failed")
		s.Emit(r.failure, publicMessage(err))
	}
}

func (g *Gateway) login(ctx context.Context, s *Session, data json.RawMessage) error {
	var req loginRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	user, err := g.svc.Auth.Login(ctx, req.Login, req.Password)
	if err != nil {
		return err
	}
	return g.startSession(s, user, EventLoginSuccess)
}

func (g *Gateway) register(ctx context.Context, s *Session, data json.RawMessage) error {
	var reg domain.Registration
	if err := decode(data, &reg); err != nil {
		return err
	}
	user, err := g.svc.Auth.Register(ctx, reg)
	if err != nil {
		return err
	}
	return g.startSession(s, user, EventRegisterSuccess)
}

func (g *Gateway) startSession(s *Session, user *domain.User, event string) error {
	token, err := g.svc.Tokens.Issue(user.ID)
	if err != nil {
		return err
	}
	s.setUser(user)
	s.log.WithField("user", user.Login).Info("session started")
	s.Emit(event, authResponse{User: user, Token: token})
	return nil
}

func (g *Gateway) resumeSession(ctx context.Context, s *Session, data json.RawMessage) error {
	var req resumeRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	userID, err := g.svc.Tokens.Verify(req.Token)
	if err != nil {
		return err
	}
	user, err := g.svc.Auth.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	s.setUser(user)
	s.Emit(EventSessionRestored, user)
	return nil
}

func (g *Gateway) listRecords(c domain.Collection, reply string) handlerFunc {
	return func(ctx context.Context, s *Session, _ json.RawMessage) error {
		records, err := g.svc.Records.List(ctx, c)
		if err != nil {
			return err
		}
		s.Emit(reply, records)
		return nil
	}
}

func (g *Gateway) createRecord(c domain.Collection, event string) handlerFunc {
	return func(ctx context.Context, s *Session, data json.RawMessage) error {
		var fields map[string]any
		if err := decode(data, &fields); err != nil {
			return err
		}
		id, err := g.svc.Records.Create(ctx, c, fields)
		if err != nil {
			return err
		}
		g.ackWithRecord(ctx, s, c, event, id)
		return nil
	}
}

func (g *Gateway) patchRecord(c domain.Collection, event string) handlerFunc {
	return func(ctx context.Context, s *Session, data json.RawMessage) error {
		id, updates, err := decodePatch(data, c.PrimaryKey)
		if err != nil {
			return err
		}
		if err := g.svc.Records.Patch(ctx, c, id, updates); err != nil {
			return err
		}
		g.ackWithRecord(ctx, s, c, event, id)
		return nil
	}
}

// ackWithRecord acknowledges a write with the row as stored. The write has
// already succeeded, so a failed read back only drops the record from the ack.
func (g *Gateway) ackWithRecord(ctx context.Context, s *Session, c domain.Collection, event string, id int64) {
	ack := map[string]any{c.PrimaryKey: id}
	rec, err := g.svc.Records.Get(ctx, c, id)
	if err != nil {
		s.log.WithError(err).WithField("event", event).Warn("read back failed")
	} else {
		ack["record"] = rec
	}
	s.Emit(ackEvent(event), ack)
}

func (g *Gateway) deleteRecord(c domain.Collection, event string) handlerFunc {
	return func(ctx context.Context, s *Session, data json.RawMessage) error {
		id, err := decodeID(data, c.PrimaryKey)
		if err != nil {
			return err
		}
		if err := g.svc.Records.Delete(ctx, c, id); err != nil {
			return err
		}
		s.Emit(ackEvent(event), map[string]int64{c.PrimaryKey: id})
		return nil
	}
}

func (g *Gateway) uploadImage(ctx context.Context, s *Session, data json.RawMessage) error {
	var req uploadRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if req.UserID <= 0 {
		return errMissingID
	}
	key, err := g.svc.Assets.Store(ctx, req.Filename, req.Data, int64(req.UserID))
	if err != nil {
		return err
	}
	s.Emit(EventUploadSuccess, uploadResult{Filename: key})
	s.Emit(EventUpdateIcon, iconUpdate{Icon: key})
	return nil
}

func (g *Gateway) requestImage(ctx context.Context, s *Session, data json.RawMessage) error {
	userID, err := decodeID(data, "userId")
	if err != nil {
		return err
	}
	asset, err := g.svc.Assets.Retrieve(ctx, userID)
	if err != nil {
		return err
	}
	s.Emit(EventImageData, asset)
	return nil
}

func (g *Gateway) userDataPDF(ctx context.Context, s *Session, data json.RawMessage) error {
	userID, err := decodeID(data, "userId")
	if err != nil {
		return err
	}
	doc, err := g.svc.Documents.UserSheet(ctx, userID)
	if err != nil {
		return err
	}
	s.Emit(EventPDFGenerated, doc)
	return nil
}

// clientMessage relays the message to everyone, then the bot answer.
func (g *Gateway) clientMessage(ctx context.Context, s *Session, data json.RawMessage) error {
	var msg chatMessage
	if err := decode(data, &msg); err != nil {
		return err
	}
	if strings.TrimSpace(msg.Text) == "" {
		return errEmptyText
	}
	g.hub.Broadcast(EventClientMessage, msg)

	reply, err := g.svc.Responder.Respond(ctx, msg.Text, msg.User)
	if err != nil {
		return err
	}
	g.hub.Broadcast(EventClientMessage, chatMessage{Text: reply.Text, User: g.botName})
	return nil
}

// setCurrentUser records presence on the sender and announces it to all.
func (g *Gateway) setCurrentUser(_ context.Context, s *Session, data json.RawMessage) error {
	var user *domain.User
	if err := decode(data, &user); err != nil {
		return err
	}
	s.setPresence(user)
	g.hub.Broadcast(EventSetCurrentUser, user)
	return nil
}

func (g *Gateway) logMessage(_ context.Context, s *Session, data json.RawMessage) error {
	s.log.WithField("data", string(data)).Debug("client message")
	return nil
}

// publicMessage turns an error into the text reported to the client.
func publicMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		return "user not found"
	case errors.Is(err, service.ErrNotFound):
		return "record not found"
	case errors.Is(err, service.ErrInvalidCredential):
		return "invalid password"
	case errors.Is(err, service.ErrDuplicateLogin):
		return "a user with this login already exists"
	case errors.Is(err, service.ErrNoAsset):
		return "user has no image"
	case errors.Is(err, service.ErrAssetWrite):
		return "could not save image"
	case errors.Is(err, service.ErrAssetRead):
		return "image is missing"
	case errors.Is(err, service.ErrAssetLink):
		return "image saved but could not be linked to the user"
	case errors.Is(err, auth.ErrTokenExpired):
		return "session expired"
	case errors.Is(err, auth.ErrInvalidToken):
		return "invalid session"
	case errors.Is(err, service.ErrEmptyPatch),
		errors.Is(err, service.ErrUnknownField),
		errors.Is(err, service.ErrReadOnlyField),
		errors.Is(err, service.ErrInvalidValue),
		errors.Is(err, service.ErrInvalidAsset),
		errors.Is(err, errMalformed),
		errors.Is(err, errMissingID),
		errors.Is(err, errEmptyText):
		return err.Error()
	}
	return "internal error"
}
