package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/docopt/docopt-go"

	"github.com/gorilla/websocket"

	"golang.org/x/term"

	"github.com/nwierzbowski/pivot-blender-bridge/bridge"
	"github.com/nwierzbowski/pivot-blender-bridge/protocol"
)

const BridgeCtlVersion = "0.1.0"

var Out *log.Logger
var Err *log.Logger

func init() {
	Out = log.New(os.Stdout, "", 0)
	Err = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lshortfile)
}

type EnvConfig struct {
	EngineUrl string `env:"PIVOT_ENGINE_URL" envDefault:"ws://127.0.0.1:7717/bridge"`
	Token     string `env:"PIVOT_ENGINE_TOKEN"`
}

func main() {
	usage := `Pivot engine control.

The default engine url is ws://127.0.0.1:7717/bridge. Defaults can also be
set with the PIVOT_ENGINE_URL and PIVOT_ENGINE_TOKEN environment variables.

Usage:
    bridgectl status [--engine_url=<engine_url>] [--token=<token>]
    bridgectl set-attr --group=<group> --attr=<attr> --value=<value>
        [--engine_url=<engine_url>] [--token=<token>]
    bridgectl classify --pairs=<pairs>
        [--engine_url=<engine_url>] [--token=<token>]
    bridgectl watch [--count=<count>]
        [--engine_url=<engine_url>] [--token=<token>]
    bridgectl simulate-engine [--listen=<listen>]

Options:
    -h --help                  Show this screen.
    --version                  Show version.
    --engine_url=<engine_url>  Engine websocket url.
    --token=<token>            Engine session token. Use - to prompt.
    --group=<group>            Group name.
    --attr=<attr>              Attribute name.
    --value=<value>            Attribute value.
    --pairs=<pairs>            Comma separated group=surface_type pairs.
    --count=<count>            Stop after this many batches [default: 0].
    --listen=<listen>          Simulator listen address [default: 127.0.0.1:7717].`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], BridgeCtlVersion)
	if err != nil {
		panic(err)
	}

	envConfig := EnvConfig{}
	if err := env.Parse(&envConfig); err != nil {
		Err.Fatalf("Could not parse environment: %s", err)
	}

	if status, _ := opts.Bool("status"); status {
		ctlStatus(opts, &envConfig)
	} else if setAttr, _ := opts.Bool("set-attr"); setAttr {
		ctlSetAttr(opts, &envConfig)
	} else if classify, _ := opts.Bool("classify"); classify {
		ctlClassify(opts, &envConfig)
	} else if watch, _ := opts.Bool("watch"); watch {
		ctlWatch(opts, &envConfig)
	} else if simulate, _ := opts.Bool("simulate-engine"); simulate {
		ctlSimulateEngine(opts)
	}
}

func engineUrl(opts docopt.Opts, envConfig *EnvConfig) string {
	if url, err := opts.String("--engine_url"); err == nil && url != "" {
		return url
	}
	return envConfig.EngineUrl
}

func engineToken(opts docopt.Opts, envConfig *EnvConfig) string {
	token, err := opts.String("--token")
	if err != nil || token == "" {
		return envConfig.Token
	}
	if token == "-" {
		fmt.Print("Engine session token: ")
		tokenBytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			Err.Fatalf("Could not read token: %s", err)
		}
		return strings.TrimSpace(string(tokenBytes))
	}
	return token
}

func openChannel(opts docopt.Opts, envConfig *EnvConfig) *bridge.WebsocketChannel {
	url := engineUrl(opts, envConfig)
	token := engineToken(opts, envConfig)
	channel := bridge.NewWebsocketChannel(context.Background(), url, token, nil)
	return channel
}

func sendWithRetry(channel *bridge.WebsocketChannel, command *protocol.Command) (*protocol.Response, error) {
	// the channel connects in the background; give it a moment
	var response *protocol.Response
	var err error
	for i := 0; i < 20; i += 1 {
		response, err = channel.Send(command)
		if err != bridge.ErrChannelUnavailable {
			return response, err
		}
		time.Sleep(250 * time.Millisecond)
	}
	return response, err
}

func ctlStatus(opts docopt.Opts, envConfig *EnvConfig) {
	channel := openChannel(opts, envConfig)
	defer channel.Close()

	response, err := sendWithRetry(channel, &protocol.Command{
		Id: protocol.CommandAuth,
		Op: protocol.OpAuth,
	})
	if err != nil {
		Out.Printf("engine: unreachable (%s)\n", err)
		os.Exit(1)
	}
	if response.Ok {
		Out.Printf("engine: ok\n")
	} else {
		Out.Printf("engine: error (%s)\n", response.Error)
		os.Exit(1)
	}
}

func ctlSetAttr(opts docopt.Opts, envConfig *EnvConfig) {
	group, _ := opts.String("--group")
	attr, _ := opts.String("--attr")
	value, _ := opts.String("--value")

	channel := openChannel(opts, envConfig)
	defer channel.Close()

	response, err := sendWithRetry(channel, &protocol.Command{
		Id:        protocol.CommandSetGroupAttr,
		Op:        protocol.OpSetGroupAttr,
		GroupName: group,
		Attr:      attr,
		Value:     value,
	})
	if err != nil {
		Err.Fatalf("Send error: %s", err)
	}
	if !response.Ok {
		Err.Fatalf("Rejected: %s", response.Error)
	}
	Out.Printf("ok\n")
}

func ctlClassify(opts docopt.Opts, envConfig *EnvConfig) {
	pairsArg, _ := opts.String("--pairs")
	classifications := []protocol.Classification{}
	for _, pair := range strings.Split(pairsArg, ",") {
		groupName, surfaceType, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			Err.Fatalf("Bad pair %q, want group=surface_type", pair)
		}
		classifications = append(classifications, protocol.Classification{
			GroupName:   groupName,
			SurfaceType: surfaceType,
		})
	}

	channel := openChannel(opts, envConfig)
	defer channel.Close()

	response, err := sendWithRetry(channel, &protocol.Command{
		Id:              protocol.CommandSyncGroupClassifications,
		Op:              protocol.OpSyncGroupClassifications,
		Classifications: classifications,
	})
	if err != nil {
		Err.Fatalf("Send error: %s", err)
	}
	if !response.Ok {
		Err.Fatalf("Rejected: %s", response.Error)
	}
	Out.Printf("ok (%d groups)\n", len(classifications))
}

func ctlWatch(opts docopt.Opts, envConfig *EnvConfig) {
	count, _ := opts.Int("--count")

	channel := openChannel(opts, envConfig)
	defer channel.Close()

	seen := 0
	for {
		batch, ok := channel.PollMeshSync()
		if !ok {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		for i := range batch.Groups {
			group := &batch.Groups[i]
			for slot := 0; slot < group.ObjectCount(); slot += 1 {
				name := group.Name(slot)
				if name == "" {
					continue
				}
				idBytes, ok := group.Identity(slot)
				if !ok {
					continue
				}
				floats, ok := group.Transform(slot)
				if !ok {
					continue
				}
				m, _ := bridge.Matrix4FromSlice(floats)
				t := m.Transposed().Translation()
				Out.Printf("%s %s t=(%.3f, %.3f, %.3f)\n", bridge.Id(idBytes), name, t.X, t.Y, t.Z)
			}
		}
		seen += 1
		if 0 < count && count <= seen {
			return
		}
	}
}

// a loopback engine for manual testing: acknowledges every command and
// pushes one mesh sync batch per second
func ctlSimulateEngine(opts docopt.Opts) {
	listen, _ := opts.String("--listen")

	upgrader := websocket.Upgrader{}
	http.HandleFunc("/bridge", func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			Err.Printf("Upgrade error: %s", err)
			return
		}
		defer ws.Close()
		Out.Printf("bridge connected from %s\n", r.RemoteAddr)

		go func() {
			id := bridge.NewId()
			transform := bridge.IdentityMatrix4()
			for i := 0; ; i += 1 {
				transform[3] = float32(i) // row-major x translation
				names := make([]byte, protocol.MaxNameLen)
				copy(names, "Chair")
				frame := protocol.EncodeMeshSync(&protocol.MeshSyncBatch{
					Groups: []protocol.MeshSyncGroup{
						{
							Transforms:   transform[:],
							VertexCounts: []uint32{0},
							EdgeCounts:   []uint32{0},
							Names:        names,
							Identities:   id.Bytes(),
						},
					},
				})
				if err := ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
					return
				}
				time.Sleep(1 * time.Second)
			}
		}()

		for {
			messageType, message, err := ws.ReadMessage()
			if err != nil {
				Out.Printf("bridge disconnected: %s\n", err)
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}
			command, err := protocol.DecodeCommand(message)
			if err != nil {
				Err.Printf("Bad command: %s", err)
				continue
			}
			Out.Printf("<- %s(%d) group=%s attr=%s\n", command.Op, command.Id, command.GroupName, command.Attr)
			reply, _ := protocol.EncodeResponse(&protocol.Response{Ok: true})
			if err := ws.WriteMessage(websocket.TextMessage, reply); err != nil {
				return
			}
		}
	})

	Out.Printf("simulated engine listening on %s\n", listen)
	if err := http.ListenAndServe(listen, nil); err != nil {
		Err.Fatalf("Listen error: %s", err)
	}
}
