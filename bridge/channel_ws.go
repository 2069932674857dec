package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/gorilla/websocket"

	"github.com/nwierzbowski/pivot-blender-bridge/protocol"
)

type WebsocketChannelSettings struct {
	ConnectTimeout   time.Duration
	AuthTimeout      time.Duration
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
	PingTimeout      time.Duration
	ReconnectTimeout time.Duration
	ResponseTimeout  time.Duration

	// pending mesh sync batches kept between ticks. On overflow the
	// oldest batch is dropped; the engine resends current transforms on a
	// later tick.
	MeshSyncQueueSize int
}

func DefaultWebsocketChannelSettings() *WebsocketChannelSettings {
	return &WebsocketChannelSettings{
		ConnectTimeout:    5 * time.Second,
		AuthTimeout:       5 * time.Second,
		WriteTimeout:      5 * time.Second,
		ReadTimeout:       30 * time.Second,
		PingTimeout:       5 * time.Second,
		ReconnectTimeout:  1 * time.Second,
		ResponseTimeout:   10 * time.Second,
		MeshSyncQueueSize: 8,
	}
}

// WebsocketChannel talks to the engine process over a websocket: JSON text
// frames for commands and responses, binary frames for mesh sync pushes.
// It reconnects with backoff for the life of its context.
//
// Commands are strictly one in flight. Mesh sync frames land in a bounded
// queue drained by PollMeshSync, which never blocks.
type WebsocketChannel struct {
	ctx    context.Context
	cancel context.CancelFunc

	engineUrl string
	token     string
	settings  *WebsocketChannelSettings

	meshSync chan *protocol.MeshSyncBatch

	// one outstanding Send at a time
	sendLock sync.Mutex

	// serializes frame writes. The websocket allows one writer at a time
	// and Send overlaps the keepalive goroutine.
	writeLock sync.Mutex

	stateLock sync.Mutex
	ws        *websocket.Conn
	pending   chan *protocol.Response
}

func NewWebsocketChannel(ctx context.Context, engineUrl string, token string, settings *WebsocketChannelSettings) *WebsocketChannel {
	if settings == nil {
		settings = DefaultWebsocketChannelSettings()
	}
	cancelCtx, cancel := context.WithCancel(ctx)
	channel := &WebsocketChannel{
		ctx:       cancelCtx,
		cancel:    cancel,
		engineUrl: engineUrl,
		token:     token,
		settings:  settings,
		meshSync:  make(chan *protocol.MeshSyncBatch, settings.MeshSyncQueueSize),
	}
	go channel.run()
	return channel
}

func (self *WebsocketChannel) Close() {
	self.cancel()
}

func (self *WebsocketChannel) run() {
	defer self.cancel()

	if self.token != "" {
		// peek at the session claims for log correlation. The engine
		// verifies; the bridge does not.
		claims := gojwt.MapClaims{}
		gojwt.NewParser().ParseUnverified(self.token, claims)
		glog.Infof("[ch]session claims = %v\n", claims)
	}

	for {
		select {
		case <-self.ctx.Done():
			return
		default:
		}

		ws, err := self.connect()
		if err != nil {
			glog.Infof("[ch]connect %s error = %s\n", self.engineUrl, err)
			select {
			case <-self.ctx.Done():
				return
			case <-time.After(self.settings.ReconnectTimeout):
				continue
			}
		}

		self.setConn(ws)
		self.serve(ws)
		self.setConn(nil)
	}
}

func (self *WebsocketChannel) connect() (*websocket.Conn, error) {
	dialer := &websocket.Dialer{
		HandshakeTimeout: self.settings.ConnectTimeout,
	}
	ws, _, err := dialer.DialContext(self.ctx, self.engineUrl, nil)
	if err != nil {
		return nil, err
	}

	success := false
	defer func() {
		if !success {
			ws.Close()
		}
	}()

	if self.token != "" {
		authBytes, err := protocol.EncodeCommand(&protocol.Command{
			Id:    protocol.CommandAuth,
			Op:    protocol.OpAuth,
			Token: self.token,
		})
		if err != nil {
			return nil, err
		}
		ws.SetWriteDeadline(time.Now().Add(self.settings.AuthTimeout))
		if err := ws.WriteMessage(websocket.TextMessage, authBytes); err != nil {
			return nil, err
		}
		ws.SetReadDeadline(time.Now().Add(self.settings.AuthTimeout))
		_, message, err := ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		response, err := protocol.DecodeResponse(message)
		if err != nil {
			return nil, err
		}
		if !response.Ok {
			return nil, &AuthError{Message: response.Error}
		}
	}

	success = true
	return ws, nil
}

type AuthError struct {
	Message string
}

func (self *AuthError) Error() string {
	return "engine auth rejected: " + self.Message
}

func (self *WebsocketChannel) serve(ws *websocket.Conn) {
	defer ws.Close()

	handleCtx, handleCancel := context.WithCancel(self.ctx)
	defer handleCancel()

	// keepalive: empty binary frames, matching the engine's convention
	go func() {
		for {
			select {
			case <-handleCtx.Done():
				return
			case <-time.After(self.settings.PingTimeout):
			}
			if err := self.writeMessage(ws, websocket.BinaryMessage, make([]byte, 0)); err != nil {
				handleCancel()
				return
			}
		}
	}()

	for {
		select {
		case <-handleCtx.Done():
			return
		default:
		}

		ws.SetReadDeadline(time.Now().Add(self.settings.ReadTimeout))
		messageType, message, err := ws.ReadMessage()
		if err != nil {
			glog.Infof("[ch]<- error = %s\n", err)
			return
		}

		switch messageType {
		case websocket.TextMessage:
			response, err := protocol.DecodeResponse(message)
			if err != nil {
				glog.Infof("[ch]<- bad response = %s\n", err)
				continue
			}
			self.deliverResponse(response)
		case websocket.BinaryMessage:
			if len(message) == 0 {
				// ping
				continue
			}
			batch, err := protocol.DecodeMeshSync(message)
			if err != nil {
				glog.Infof("[ch]<- bad mesh sync frame = %s\n", err)
				continue
			}
			self.enqueueMeshSync(batch)
		}
	}
}

func (self *WebsocketChannel) setConn(ws *websocket.Conn) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.ws = ws
}

func (self *WebsocketChannel) deliverResponse(response *protocol.Response) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	if self.pending != nil {
		select {
		case self.pending <- response:
		default:
		}
		self.pending = nil
	} else {
		glog.V(2).Infof("[ch]<- unexpected response dropped\n")
	}
}

func (self *WebsocketChannel) enqueueMeshSync(batch *protocol.MeshSyncBatch) {
	for {
		select {
		case self.meshSync <- batch:
			return
		default:
		}
		// full: drop the oldest batch
		select {
		case <-self.meshSync:
			glog.V(1).Infof("[ch]mesh sync queue overflow, dropped oldest\n")
		default:
		}
	}
}

// Send writes one command and blocks for its response. Neutral failure
// (ErrChannelUnavailable) when the engine is not connected.
func (self *WebsocketChannel) Send(command *protocol.Command) (*protocol.Response, error) {
	self.sendLock.Lock()
	defer self.sendLock.Unlock()

	message, err := protocol.EncodeCommand(command)
	if err != nil {
		return nil, err
	}

	pending := make(chan *protocol.Response, 1)

	self.stateLock.Lock()
	ws := self.ws
	if ws == nil {
		self.stateLock.Unlock()
		return nil, ErrChannelUnavailable
	}
	self.pending = pending
	self.stateLock.Unlock()

	clearPending := func() {
		self.stateLock.Lock()
		if self.pending == pending {
			self.pending = nil
		}
		self.stateLock.Unlock()
	}

	if err := self.writeMessage(ws, websocket.TextMessage, message); err != nil {
		clearPending()
		return nil, err
	}
	glog.V(2).Infof("[ch]-> %s(%d)\n", command.Op, command.Id)

	select {
	case response := <-pending:
		return response, nil
	case <-time.After(self.settings.ResponseTimeout):
		clearPending()
		return nil, ErrChannelUnavailable
	case <-self.ctx.Done():
		clearPending()
		return nil, ErrChannelUnavailable
	}
}

func (self *WebsocketChannel) writeMessage(ws *websocket.Conn, messageType int, message []byte) error {
	self.writeLock.Lock()
	defer self.writeLock.Unlock()
	ws.SetWriteDeadline(time.Now().Add(self.settings.WriteTimeout))
	return ws.WriteMessage(messageType, message)
}

// PollMeshSync returns the next pending mesh sync batch without blocking.
func (self *WebsocketChannel) PollMeshSync() (*protocol.MeshSyncBatch, bool) {
	select {
	case batch := <-self.meshSync:
		return batch, true
	default:
		return nil, false
	}
}
