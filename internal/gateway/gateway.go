// Package gateway serves the websocket event channel used by the dryer
// configuration front end.
package gateway

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"dryengineer/internal/geo"
	"dryengineer/internal/service"
)

// UserSheets renders the printable data sheet of a user.
type UserSheets interface {
	UserSheet(ctx context.Context, userID int64) ([]byte, error)
}

// ChatResponder answers chat messages.
type ChatResponder interface {
	Respond(ctx context.Context, text, user string) (service.Reply, error)
}

// SessionTokens issues and verifies the tokens handed out on login.
type SessionTokens interface {
	Issue(userID int64) (string, error)
	Verify(token string) (int64, error)
}

// Services are the dependencies the event handlers call into.
type Services struct {
	Auth      service.AuthService
	Records   service.Synchronizer
	Assets    service.AssetService
	Documents UserSheets
	Responder ChatResponder
	Tokens    SessionTokens
	Locator   geo.Locator
	// Addresses resolves the client address; nil ignores forwarding headers.
	Addresses *geo.AddressResolver
}

type Options struct {
	// AllowedOrigins lists browser origins allowed to connect; "*" allows any.
	AllowedOrigins []string
	BotName        string
	Logger         logrus.FieldLogger
}

// Gateway upgrades HTTP requests and dispatches the events of each
// connection in arrival order.
type Gateway struct {
	ctx      context.Context
	hub      *Hub
	svc      Services
	botName  string
	origins  map[string]struct{}
	anyOrig  bool
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
	routes   map[string]route
}

// New builds a gateway. Sessions inherit ctx and are closed when it ends.
func New(ctx context.Context, hub *Hub, svc Services, opts Options) *Gateway {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	if svc.Locator == nil {
		svc.Locator = geo.NopLocator{}
	}
	if svc.Addresses == nil {
		svc.Addresses, _ = geo.NewAddressResolver(nil)
	}
	botName := opts.BotName
	if botName == "" {
		botName = "DryBot"
	}

	g := &Gateway{
		ctx:     ctx,
		hub:     hub,
		svc:     svc,
		botName: botName,
		origins: make(map[string]struct{}),
		log:     log,
	}
	for _, o := range opts.AllowedOrigins {
		o = strings.TrimRight(strings.ToLower(strings.TrimSpace(o)), "/")
		switch o {
		case "":
		case "*":
			g.anyOrig = true
		default:
			g.origins[o] = struct{}{}
		}
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     g.checkOrigin,
	}
	g.routes = g.buildRoutes()
	return g
}

// checkOrigin lets non-browser clients through; they send no Origin header.
func (g *Gateway) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || g.anyOrig {
		return true
	}
	_, ok := g.origins[strings.TrimRight(strings.ToLower(origin), "/")]
	return ok
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ip := g.svc.Addresses.ClientIP(r)
	country := g.svc.Locator.Country(ip)

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.WithError(err).WithField("remote", r.RemoteAddr).Warn("websocket upgrade failed")
		return
	}

	log := g.log
	if ip != nil {
		log = log.WithField("remote", ip.String())
	}
	s := newSession(g.ctx, g.hub, conn, log)
	if !g.hub.Register(s) {
		s.Close()
		_ = conn.Close()
		return
	}
	s.log.WithField("country", country).Info("client connected")

	s.Emit(EventCountry, countryNotice{Country: country})

	go s.writePump()
	go s.readPump(g.dispatch)
}
